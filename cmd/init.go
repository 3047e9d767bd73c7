package cmd

import (
	"github.com/jeremyhahn/go-localca/pkg/app"
	"github.com/jeremyhahn/go-localca/pkg/localca"
	"github.com/jeremyhahn/go-localca/pkg/platform/prompt"
	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(InitCmd)
}

var InitCmd = &cobra.Command{
	Use:   "init",
	Short: "Initializes the Certificate Authority",
	Long: `Creates the on-disk certificate store, the Certificate Authority,
and the server certificates declared in the configuration file.`,
	Run: func(cmd *cobra.Command, args []string) {

		prompt.PrintBanner(app.Version)

		store := localca.NewStore(App.Logger, App.FS, App.CAConfig.Home)
		if err = store.Initialize(); err != nil {
			App.Logger.FatalError(err)
		}

		passphrase := caPassphrase()
		if passphrase == nil {
			if passphrase, err = prompt.ConfirmedPassphrase(localca.MinPassphraseLength); err != nil {
				App.Logger.FatalError(err)
			}
		}

		authority := localca.NewCA(App.Logger, App.CAConfig, store, App.Random)
		if _, err = authority.Init(passphrase); err != nil {
			App.Logger.FatalError(err)
		}

		for _, request := range App.CAConfig.Issue {
			if _, err = authority.IssueCertificate(request); err != nil {
				App.Logger.FatalError(err)
			}
		}

		cmd.Println("Certificate Authority successfully initialized")
	},
}

// caPassphrase resolves a non-interactive passphrase from the CLI
// flag or init params, nil when the operator must be prompted.
func caPassphrase() []byte {
	if Passphrase != "" {
		return []byte(Passphrase)
	}
	if len(InitParams.Passphrase) > 0 {
		return InitParams.Passphrase
	}
	return nil
}
