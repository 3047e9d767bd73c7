package cmd

import (
	"strings"

	"github.com/jeremyhahn/go-localca/pkg/localca"
	"github.com/jeremyhahn/go-localca/pkg/platform/prompt"
	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(IssueCmd)
	IssueCmd.PersistentFlags().StringVar(&CommonName, "cn", "", "The common name for the certificate. Ex: --cn www.example.com")
	IssueCmd.PersistentFlags().StringVar(&CertName, "name", "", "File name base for the issued artifacts. Defaults to the common name")
	IssueCmd.PersistentFlags().StringVar(&SansDNS, "sans", "", "Comma separated list of DNS subject alternative names")
	IssueCmd.PersistentFlags().IntVar(&ValidDays, "days", 0, "Number of days the certificate is valid for")
}

var IssueCmd = &cobra.Command{
	Use:   "issue",
	Short: "Issues a new x509 server certificate",
	Long: `Issues a new server certificate signed by the Certificate
Authority. The subject is the CA base subject with the provided common
name, satisfying the signing policy match rules.`,
	Run: func(cmd *cobra.Command, args []string) {

		if CommonName == "" {
			cmd.PrintErrln("--cn is required")
			return
		}

		store := localca.NewStore(App.Logger, App.FS, App.CAConfig.Home)
		authority := localca.NewCA(App.Logger, App.CAConfig, store, App.Random)

		passphrase := caPassphrase()
		if passphrase == nil {
			passphrase = prompt.PasswordPrompt("CA Key Passphrase")
		}
		if _, err = authority.Load(passphrase); err != nil {
			App.Logger.FatalError(err)
		}

		subject := App.CAConfig.Identity.Subject
		subject.CommonName = CommonName

		request := localca.CertificateRequest{
			Name:    CertName,
			Valid:   ValidDays,
			Subject: subject,
		}
		if SansDNS != "" {
			request.SANS = &localca.SubjectAlternativeNames{
				DNS: strings.Split(SansDNS, ","),
			}
		}

		certificate, err := authority.IssueCertificate(request)
		if err != nil {
			App.Logger.FatalError(err)
		}

		certPEM, err := localca.EncodePEM(certificate.Raw)
		if err != nil {
			App.Logger.FatalError(err)
		}
		cmd.Print(string(certPEM))
	},
}
