package cli

import (
	"github.com/spf13/cobra"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the connectorctl version",
	RunE: func(cmd *cobra.Command, args []string) error {
		cmd.Printf("connectorctl %s\n", version)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
