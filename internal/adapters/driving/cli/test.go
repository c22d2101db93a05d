package cli

import (
	"github.com/spf13/cobra"
)

var testCmd = &cobra.Command{
	Use:   "test <type>",
	Short: "Test a connector's vendor connection",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		t, err := parseType(args[0])
		if err != nil {
			return err
		}
		env, err := newEnvironment()
		if err != nil {
			return err
		}
		defer env.Close()

		c, err := env.connector(t, instanceID(t))
		if err != nil {
			return err
		}
		res, err := c.TestConnection(cmd.Context())
		if err != nil {
			return err
		}
		if res.Success {
			cmd.Printf("ok: %s\n", res.Message)
		} else {
			cmd.Printf("failed: %s\n", res.Message)
		}
		for k, v := range res.Metadata {
			cmd.Printf("  %s: %v\n", k, v)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(testCmd)
}
