package cli

import (
	"github.com/spf13/cobra"

	"github.com/corpushq/connectors/internal/registry"
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List connector types and their capabilities",
	RunE: func(cmd *cobra.Command, args []string) error {
		cmd.Printf("%-14s %-6s %-9s %s\n", "TYPE", "OAUTH", "WEBHOOKS", "PUBLISH")
		for _, t := range registry.Types() {
			caps, err := registry.CapabilitiesFor(t)
			if err != nil {
				return err
			}
			cmd.Printf("%-14s %-6s %-9s %s\n", t,
				yesNo(caps.RequiresOAuth), yesNo(caps.SupportsWebhooks), yesNo(caps.SupportsPublish))
		}
		return nil
	},
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}

func init() {
	rootCmd.AddCommand(listCmd)
}
