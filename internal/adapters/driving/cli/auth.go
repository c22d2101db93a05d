package cli

import (
	"time"

	"github.com/spf13/cobra"

	"github.com/corpushq/connectors/internal/adapters/driving/oauth"
	"github.com/corpushq/connectors/internal/core/domain"
)

var (
	authPort    int
	authTimeout time.Duration
)

var authCmd = &cobra.Command{
	Use:   "auth <type>",
	Short: "Authenticate a connector against its vendor",
	Long: `auth runs the vendor's authorization flow. For OAuth vendors it starts
a local callback server, opens the authorization URL in the browser, waits
for the redirect and stores the exchanged tokens. No-auth connectors
complete immediately.`,
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

		id := instanceID(t)

		// The state parameter of the authorization URL is the connector id,
		// so the callback server validates against it.
		server := oauth.NewCallbackServer(authPort, id)
		if err := server.Start(); err != nil {
			return err
		}
		defer server.Stop()

		app := env.secrets.App(t)
		if app.RedirectURI == "" {
			app.RedirectURI = server.RedirectURI()
		}
		c, err := env.connectorWithApp(t, id, app)
		if err != nil {
			return err
		}

		ctx := cmd.Context()
		res, err := c.Authenticate(ctx, domain.ConnectorCredentials{})
		if err != nil {
			return err
		}
		if res.Success {
			cmd.Printf("authenticated as %s\n", userLabel(res))
			return nil
		}
		if res.AuthURL == "" {
			return domain.ErrMissingConfig
		}

		cmd.Printf("Open the following URL to authorize %s:\n\n  %s\n\n", t, res.AuthURL)
		if err := oauth.OpenBrowser(res.AuthURL); err == nil {
			cmd.Println("(opened in your browser)")
		}

		code, err := server.WaitForCode(authTimeout)
		if err != nil {
			return err
		}

		res, err = c.Authenticate(ctx, domain.ConnectorCredentials{
			Extra: map[string]string{"code": code},
		})
		if err != nil {
			return err
		}
		if !res.Success {
			cmd.Printf("authentication failed: %s\n", res.Error)
			return domain.ErrNotAuthenticated
		}
		cmd.Printf("authenticated as %s\n", userLabel(res))
		return nil
	},
}

func userLabel(res *domain.AuthResult) string {
	if res.UserName != "" {
		return res.UserName
	}
	if res.UserID != "" {
		return res.UserID
	}
	return "unknown user"
}

func init() {
	authCmd.Flags().IntVar(&authPort, "port", 0, "callback server port (0 picks a free port)")
	authCmd.Flags().DurationVar(&authTimeout, "timeout", 5*time.Minute, "how long to wait for the authorization redirect")
	rootCmd.AddCommand(authCmd)
}
