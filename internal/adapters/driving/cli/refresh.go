package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/corpushq/connectors/internal/core/ports/driven"
)

var refreshCmd = &cobra.Command{
	Use:   "refresh <type>",
	Short: "Force a credential refresh for an OAuth connector",
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

		id := instanceID(t)
		c, err := env.connector(t, id)
		if err != nil {
			return err
		}
		refresher, ok := c.(driven.CredentialRefresher)
		if !ok {
			return fmt.Errorf("%s does not use refreshable credentials", t)
		}

		ctx := cmd.Context()
		creds, err := env.store.CredentialsStore().Get(ctx, id)
		if err != nil {
			return fmt.Errorf("load credentials: %w", err)
		}
		refreshed, err := refresher.RefreshCredentials(ctx, *creds)
		if err != nil {
			return err
		}
		if err := env.store.CredentialsStore().Save(ctx, id, *refreshed, creds.Version); err != nil {
			return fmt.Errorf("store refreshed credentials: %w", err)
		}
		if refreshed.Expiry.IsZero() {
			cmd.Println("refreshed; token does not expire")
		} else {
			cmd.Printf("refreshed; token valid until %s\n", refreshed.Expiry.Format("2006-01-02 15:04:05 MST"))
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(refreshCmd)
}
