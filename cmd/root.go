package cmd

import (
	"fmt"
	"log"
	"os/signal"
	"runtime"
	"syscall"

	"github.com/jeremyhahn/go-localca/pkg/app"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var rootCmd = &cobra.Command{
	Use:   app.Name,
	Short: "Local x509 Certificate Authority",
	Long: `Bootstraps a local Certificate Authority on the filesystem and
issues server certificates signed by it. The CA private key is encrypted
under an operator passphrase; issued certificates, signing requests and
keys are kept in an openssl compatible store layout.`,
	Run: func(cmd *cobra.Command, args []string) {
	},
	TraverseChildren: true,
}

func init() {

	cobra.OnInitialize(func() {
		// Command tests install their own App
		if App == nil {
			App = app.NewApp().Init(InitParams)
		}
	})

	rootCmd.PersistentFlags().BoolVarP(&InitParams.Debug, "debug", "", false, "Enable debug mode")
	rootCmd.PersistentFlags().StringVarP(&InitParams.ConfigDir, "config-dir", "", fmt.Sprintf("/etc/%s", app.Name), "Directory where configuration files are stored")
	rootCmd.PersistentFlags().StringVarP(&InitParams.LogDir, "log-dir", "", "localca-data/log", "Logging directory")
	rootCmd.PersistentFlags().StringVarP(&InitParams.Home, "home", "", "", "Certificate Authority home / data directory")
	rootCmd.PersistentFlags().StringVar(&Passphrase, "passphrase", "", "Certificate Authority private key passphrase")

	viper.BindPFlags(rootCmd.PersistentFlags())

	if runtime.GOOS == "darwin" {
		signal.Ignore(syscall.Signal(0xd))
	}
}

func Execute() error {
	if err := rootCmd.Execute(); err != nil {
		log.Fatal(err)
	}
	return nil
}
