package cmd

import (
	"github.com/jeremyhahn/go-localca/pkg/localca"
	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(ShowCmd)
}

var ShowCmd = &cobra.Command{
	Use:   "show [name]",
	Short: "Displays a certificate from the store",
	Long: `Displays a certificate issued by the Certificate Authority,
including the CA certificate itself, as a text summary followed by the
PEM encoding.`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {

		store := localca.NewStore(App.Logger, App.FS, App.CAConfig.Home)
		authority := localca.NewCA(App.Logger, App.CAConfig, store, App.Random)

		certificate, err := authority.Certificate(args[0])
		if err != nil {
			App.Logger.FatalError(err)
		}

		cmd.Printf("Serial Number: %X\n", certificate.SerialNumber)
		cmd.Printf("Issuer: %s\n", certificate.Issuer)
		cmd.Printf("Subject: %s\n", certificate.Subject)
		cmd.Printf("Not Before: %s\n", certificate.NotBefore)
		cmd.Printf("Not After: %s\n", certificate.NotAfter)
		cmd.Printf("Is CA: %t\n", certificate.IsCA)
		if len(certificate.DNSNames) > 0 {
			cmd.Printf("DNS Names: %s\n", certificate.DNSNames)
		}
		cmd.Println()

		certPEM, err := localca.EncodePEM(certificate.Raw)
		if err != nil {
			App.Logger.FatalError(err)
		}
		cmd.Print(string(certPEM))
	},
}
