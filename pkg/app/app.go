package app

import (
	"crypto/rand"
	"fmt"
	"io"
	"log"
	"log/slog"
	"os"
	"time"

	"github.com/mitchellh/mapstructure"
	"github.com/spf13/afero"
	"github.com/spf13/viper"

	"github.com/jeremyhahn/go-localca/pkg/localca"
	"github.com/jeremyhahn/go-localca/pkg/logging"
)

type App struct {
	CAConfig  *localca.Config `yaml:"certificate-authority" json:"certificate_authority" mapstructure:"certificate-authority"`
	ConfigDir string          `yaml:"config-dir" json:"config_dir" mapstructure:"config-dir"`
	DebugFlag bool            `yaml:"debug" json:"debug" mapstructure:"debug"`
	LogDir    string          `yaml:"log-dir" json:"log_dir" mapstructure:"log-dir"`
	FS        afero.Fs        `yaml:"-" json:"-" mapstructure:"-"`
	Logger    *logging.Logger `yaml:"-" json:"-" mapstructure:"-"`
	Random    io.Reader       `yaml:"-" json:"-" mapstructure:"-"`
}

func NewApp() *App {
	return new(App)
}

type AppInitParams struct {
	ConfigDir  string
	Debug      bool
	Home       string
	LogDir     string
	Passphrase []byte
}

// Init loads the configuration file and initializes the logger.
// CLI options override their configuration file counterparts.
func (app *App) Init(initParams *AppInitParams) *App {
	if initParams != nil {
		app.DebugFlag = initParams.Debug
		app.ConfigDir = initParams.ConfigDir
		app.LogDir = initParams.LogDir
	}
	app.FS = afero.NewOsFs()
	app.Random = rand.Reader
	app.initConfig()
	if initParams != nil && initParams.Home != "" {
		app.CAConfig.Home = initParams.Home
	}
	app.initLogger()
	return app
}

func (app *App) initConfig() {

	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(app.ConfigDir)
	viper.AddConfigPath(fmt.Sprintf("/etc/%s/", Name))
	viper.AddConfigPath(fmt.Sprintf("$HOME/.%s/", Name))
	viper.AddConfigPath(".")

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			panic(err)
		}
	}

	decodeHook := viper.DecodeHook(mapstructure.ComposeDecodeHookFunc(
		mapstructure.StringToTimeHookFunc(time.RFC3339),
		mapstructure.StringToTimeDurationHookFunc(),
		mapstructure.StringToSliceHookFunc(","),
	))
	if err := viper.Unmarshal(app, decodeHook); err != nil {
		panic(err)
	}

	if app.CAConfig == nil {
		app.CAConfig = &localca.Config{}
	}
	if app.CAConfig.Home == "" {
		app.CAConfig.Home = Name
	}
	if app.CAConfig.Identity.Name == "" {
		app.CAConfig.Identity.Name = "ca"
	}
}

// Creates a new file and STDOUT logger. If the global DebugFlag is
// set, the logger is initialized in debug mode, executing all
// logger.Debug* statements.
func (app *App) initLogger() {
	level := slog.LevelInfo
	if app.DebugFlag {
		level = slog.LevelDebug
	}
	var logFile afero.File
	if app.LogDir != "" {
		logFile = app.InitLogFile()
	}
	app.Logger = logging.NewLogger(level, logFile)
	app.Logger.Debugf("Using configuration file: %s", viper.ConfigFileUsed())
}

func (app *App) InitLogFile() afero.File {
	logFile := fmt.Sprintf("%s/%s.log", app.LogDir, Name)
	if err := app.FS.MkdirAll(app.LogDir, os.ModePerm); err != nil {
		log.Fatal(err)
	}
	f, err := app.FS.OpenFile(logFile, os.O_RDWR|os.O_CREATE|os.O_APPEND, 0644)
	if err != nil {
		log.Fatal(err)
	}
	return f
}

// DefaultTestConfig returns an App backed by an in-memory filesystem
// with a small test key size, for use by command tests.
func DefaultTestConfig() *App {
	return &App{
		CAConfig: &localca.Config{
			Home:    "localca-test",
			KeySize: 1024,
			Identity: localca.Identity{
				Name:  "ca",
				Valid: 10,
				Subject: localca.Subject{
					CommonName:   "Test Root CA",
					Organization: "Example, Inc.",
					Country:      "US",
					Province:     "California",
					Locality:     "San Francisco",
				},
			},
			Issue: []localca.CertificateRequest{
				testCertificateRequest("www.example.com", "example.com", "www.example.com"),
				testCertificateRequest("mail.example.com", "mail.example.com"),
				testCertificateRequest("vpn.example.com", "vpn.example.com"),
			},
		},
		DebugFlag: true,
		FS:        afero.NewMemMapFs(),
		Logger:    logging.DefaultLogger(),
		Random:    rand.Reader,
	}
}

func testCertificateRequest(cn string, sans ...string) localca.CertificateRequest {
	return localca.CertificateRequest{
		Name:  cn,
		Valid: 365,
		Subject: localca.Subject{
			CommonName:   cn,
			Organization: "Example, Inc.",
			Country:      "US",
			Province:     "California",
			Locality:     "San Francisco",
		},
		SANS: &localca.SubjectAlternativeNames{
			DNS: sans,
		},
	}
}
