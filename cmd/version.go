package cmd

import (
	"github.com/jeremyhahn/go-localca/pkg/app"
	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(versionCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Prints the software version",
	Long:  `Displays software build and version details`,
	Run: func(cmd *cobra.Command, args []string) {
		cmd.Printf("Name:\t\t\t%s\n", app.Name)
		cmd.Printf("Version:\t\t%s\n", app.Version)
		cmd.Printf("Git Branch:\t\t%s\n", app.GitBranch)
		cmd.Printf("Git Hash:\t\t%s\n", app.GitHash)
		cmd.Printf("Build Date:\t\t%s\n", app.BuildDate)
	},
}
