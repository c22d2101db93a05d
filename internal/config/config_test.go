package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/corpushq/connectors/internal/core/domain"
)

func TestLoad(t *testing.T) {
	t.Run("reads secrets from TOML file", func(t *testing.T) {
		dir := t.TempDir()
		path := filepath.Join(dir, "secrets.toml")
		require.NoError(t, os.WriteFile(path, []byte(`
[google]
client_id = "gid"
client_secret = "gsecret"
redirect_uri = "https://app.example.com/oauth/google"

[microsoft]
client_id = "mid"
client_secret = "msecret"
tenant_id = "common"
`), 0600))

		secrets, err := Load(path)
		require.NoError(t, err)

		app, err := secrets.Require(domain.ConnectorTypeGoogleDrive)
		require.NoError(t, err)
		assert.Equal(t, "gid", app.ClientID)
		assert.Equal(t, "https://app.example.com/oauth/google", app.RedirectURI)

		// SharePoint and Teams share the Microsoft registration.
		ms, err := secrets.Require(domain.ConnectorTypeTeams)
		require.NoError(t, err)
		assert.Equal(t, "common", ms.TenantID)
		sp, err := secrets.Require(domain.ConnectorTypeSharePoint)
		require.NoError(t, err)
		assert.Equal(t, ms, sp)
	})

	t.Run("environment overrides file", func(t *testing.T) {
		dir := t.TempDir()
		path := filepath.Join(dir, "secrets.toml")
		require.NoError(t, os.WriteFile(path, []byte(`
[zoom]
client_id = "from-file"
client_secret = "s"
`), 0600))
		t.Setenv("ZOOM_CLIENT_ID", "from-env")

		secrets, err := Load(path)
		require.NoError(t, err)

		app := secrets.App(domain.ConnectorTypeZoom)
		assert.Equal(t, "from-env", app.ClientID)
		assert.Equal(t, "s", app.ClientSecret)
	})

	t.Run("missing file is not an error", func(t *testing.T) {
		secrets, err := Load(filepath.Join(t.TempDir(), "nope.toml"))
		require.NoError(t, err)
		require.NotNil(t, secrets)
	})

	t.Run("unconfigured vendor surfaces as missing config", func(t *testing.T) {
		secrets, err := Load("")
		require.NoError(t, err)

		_, err = secrets.Require(domain.ConnectorTypeNotion)
		assert.ErrorIs(t, err, domain.ErrMissingConfig)
	})

	t.Run("no-auth connectors have zero app", func(t *testing.T) {
		secrets, err := Load("")
		require.NoError(t, err)

		assert.False(t, secrets.App(domain.ConnectorTypeUpload).Configured())
	})
}
