// Package cli implements the connectorctl command set: inspect registered
// connector types, test connections, trigger syncs and manage credentials.
package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/corpushq/connectors/internal/config"
	"github.com/corpushq/connectors/internal/core/domain"
	"github.com/corpushq/connectors/internal/core/ports/driven"
	"github.com/corpushq/connectors/internal/logger"
	"github.com/corpushq/connectors/internal/registry"
	"github.com/corpushq/connectors/internal/storage/memory"
	"github.com/corpushq/connectors/internal/storage/sqlite"
)

var version = "dev"

var (
	secretsPath string
	dataDir     string
	connectorID string
	verbose     bool
)

var rootCmd = &cobra.Command{
	Use:   "connectorctl",
	Short: "Manage content connectors",
	Long: `connectorctl operates the content connector subsystem from the
command line: list connector types and their capabilities, authenticate
against vendors, test connections, trigger syncs and refresh credentials.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&secretsPath, "secrets", "", "path to a TOML secrets file (env vars override it)")
	rootCmd.PersistentFlags().StringVar(&dataDir, "data-dir", ".", "directory holding the connectors database")
	rootCmd.PersistentFlags().StringVar(&connectorID, "id", "", "connector instance id (defaults to the connector type)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
}

// instanceID resolves the connector instance id for a command: the --id
// flag when given, otherwise the type name so credentials persist across
// invocations without the user naming anything.
func instanceID(t domain.ConnectorType) string {
	if connectorID != "" {
		return connectorID
	}
	return string(t)
}

// Execute runs the root command with the build version injected.
func Execute(v string) error {
	if v != "" {
		version = v
	}
	return rootCmd.Execute()
}

// environment bundles what every command needs: resolved vendor secrets
// and the storage layer.
type environment struct {
	secrets *config.Secrets
	store   *sqlite.Store
}

func newEnvironment() (*environment, error) {
	logger.Setup(verbose)

	secrets, err := config.Load(secretsPath)
	if err != nil {
		return nil, err
	}
	store, err := sqlite.NewStore(dataDir)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	return &environment{secrets: secrets, store: store}, nil
}

func (e *environment) Close() error {
	return e.store.Close()
}

// connector builds a connector instance wired against the local store.
func (e *environment) connector(t domain.ConnectorType, id string) (driven.Connector, error) {
	return e.connectorWithApp(t, id, e.secrets.App(t))
}

// connectorWithApp is connector with an overridden app registration, used
// by the auth flow to point the redirect URI at the local callback server.
func (e *environment) connectorWithApp(t domain.ConnectorType, id string, app domain.OAuthApp) (driven.Connector, error) {
	return registry.New(t, driven.ConnectorOptions{
		ConnectorID: id,
		App:         app,
		Credentials: e.store.CredentialsStore(),
		Documents:   e.store.DocumentStore(),
		Blobs:       memory.NewBlobStore(),
	})
}

// parseType validates a connector type argument.
func parseType(arg string) (domain.ConnectorType, error) {
	t := domain.ConnectorType(arg)
	if !t.Valid() {
		return "", fmt.Errorf("%w: %q (known: %v)", domain.ErrUnsupportedType, arg, registry.Types())
	}
	return t, nil
}
