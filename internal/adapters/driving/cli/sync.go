package cli

import (
	"time"

	"github.com/spf13/cobra"

	"github.com/corpushq/connectors/internal/core/domain"
)

var (
	syncSince time.Duration
	syncLimit int
	syncFull  bool
)

var syncCmd = &cobra.Command{
	Use:   "sync <type>",
	Short: "Import content from a connector",
	Long: `sync lists the connector's content and imports it into the local
document store. Item failures are reported at the end without aborting
the run.`,
	Args: cobra.ExactArgs(1),
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

		opts := domain.SyncOptions{Limit: syncLimit}
		switch {
		case syncFull:
			opts.Mode = domain.SyncModeFull
		case syncSince > 0:
			opts.Mode = domain.SyncModeIncremental
			opts.Since = time.Now().Add(-syncSince)
		}

		res, err := c.Sync(cmd.Context(), opts)
		if err != nil {
			return err
		}

		cmd.Printf("processed %d, updated %d, failed %d (took %s)\n",
			res.FilesProcessed, res.FilesUpdated, res.FilesFailed,
			res.CompletedAt.Sub(res.StartedAt).Round(time.Millisecond))
		for _, e := range res.Errors {
			retry := ""
			if e.Retryable {
				retry = " (retryable)"
			}
			cmd.Printf("  %s: %s%s\n", e.ExternalID, e.Message, retry)
		}
		if !res.Success {
			cmd.Println("sync failed")
		}
		return nil
	},
}

func init() {
	syncCmd.Flags().DurationVar(&syncSince, "since", 0, "only import items modified in the last duration (e.g. 24h)")
	syncCmd.Flags().IntVar(&syncLimit, "limit", 0, "cap the number of items imported")
	syncCmd.Flags().BoolVar(&syncFull, "full", false, "force a full re-import")
	rootCmd.AddCommand(syncCmd)
}
