package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/corpushq/connectors/internal/connectors/upload"
	"github.com/corpushq/connectors/internal/core/domain"
	"github.com/corpushq/connectors/internal/core/ports/driven"
	"github.com/corpushq/connectors/internal/storage/memory"
)

var uploadWatch string

var uploadCmd = &cobra.Command{
	Use:   "upload [file...]",
	Short: "Queue local files and import them",
	Long: `upload validates the given files, queues them through the upload
connector and syncs the queue into the document store. With --watch it
instead ingests files dropped into a directory until interrupted.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if len(args) == 0 && uploadWatch == "" {
			return fmt.Errorf("%w: give files to upload or --watch a directory", domain.ErrInvalidInput)
		}
		env, err := newEnvironment()
		if err != nil {
			return err
		}
		defer env.Close()

		c, err := upload.New(driven.ConnectorOptions{
			ConnectorID: instanceID(domain.ConnectorTypeUpload),
			Documents:   env.store.DocumentStore(),
			Blobs:       memory.NewBlobStore(),
		})
		if err != nil {
			return err
		}

		ctx := cmd.Context()
		if uploadWatch != "" {
			cmd.Printf("watching %s (ctrl-c to stop)\n", uploadWatch)
			return c.Watch(ctx, uploadWatch)
		}

		for _, path := range args {
			data, err := os.ReadFile(path)
			if err != nil {
				return err
			}
			f, err := c.AddFile(ctx, filepath.Base(path), data, "")
			if err != nil {
				return fmt.Errorf("%s: %w", path, err)
			}
			cmd.Printf("queued %s as %s (%s)\n", path, f.ID, f.MIMEType)
		}

		res, err := c.Sync(ctx, domain.SyncOptions{})
		if err != nil {
			return err
		}
		cmd.Printf("imported %d, failed %d\n", res.FilesUpdated, res.FilesFailed)
		for _, e := range res.Errors {
			cmd.Printf("  %s: %s\n", e.ExternalID, e.Message)
		}
		return nil
	},
}

func init() {
	uploadCmd.Flags().StringVar(&uploadWatch, "watch", "", "ingest files dropped into this directory")
	rootCmd.AddCommand(uploadCmd)
}
