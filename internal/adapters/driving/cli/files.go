package cli

import (
	"encoding/base64"
	"os"

	"github.com/spf13/cobra"

	"github.com/corpushq/connectors/internal/core/domain"
)

var filesLimit int

var filesCmd = &cobra.Command{
	Use:   "files <type>",
	Short: "List a connector's files",
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
		files, err := c.ListFiles(cmd.Context(), domain.ListOptions{Limit: filesLimit})
		if err != nil {
			return err
		}
		for _, f := range files {
			modified := "-"
			if !f.ModifiedAt.IsZero() {
				modified = f.ModifiedAt.Format("2006-01-02 15:04")
			}
			cmd.Printf("%s\t%s\t%s\t%s\n", f.ID, f.Name, f.MIMEType, modified)
		}
		return nil
	},
}

var downloadOut string

var downloadCmd = &cobra.Command{
	Use:   "download <type> <file-id>",
	Short: "Download one file from a connector",
	Args:  cobra.ExactArgs(2),
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
		content, err := c.DownloadFile(cmd.Context(), args[1])
		if err != nil {
			return err
		}

		data := content.Content
		if enc, _ := content.Metadata["encoding"].(string); enc == "base64" {
			if decoded, err := base64.StdEncoding.DecodeString(string(content.Content)); err == nil {
				data = decoded
			}
		}
		if downloadOut == "" {
			cmd.Print(string(data))
			return nil
		}
		return os.WriteFile(downloadOut, data, 0o644)
	},
}

func init() {
	filesCmd.Flags().IntVar(&filesLimit, "limit", 0, "cap the listing")
	downloadCmd.Flags().StringVarP(&downloadOut, "output", "o", "", "write the content to a file instead of stdout")
	rootCmd.AddCommand(filesCmd)
	rootCmd.AddCommand(downloadCmd)
}
