package registry

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/corpushq/connectors/internal/core/domain"
	"github.com/corpushq/connectors/internal/core/ports/driven"
	"github.com/corpushq/connectors/internal/storage/memory"
)

func testOptions() driven.ConnectorOptions {
	return driven.ConnectorOptions{
		App:         domain.OAuthApp{ClientID: "id", ClientSecret: "secret"},
		Credentials: memory.NewCredentialsStore(),
		Documents:   memory.NewDocumentStore(),
		Blobs:       memory.NewBlobStore(),
	}
}

func TestNew_EveryRegisteredType(t *testing.T) {
	for _, ct := range domain.AllConnectorTypes() {
		c, err := New(ct, testOptions())
		require.NoError(t, err, ct)
		assert.Equal(t, ct, c.Type())
		assert.NotEmpty(t, c.ID())
	}
}

func TestNew_UnknownType(t *testing.T) {
	_, err := New("gopher-mail", testOptions())
	assert.ErrorIs(t, err, domain.ErrUnsupportedType)
}

func TestCapabilities(t *testing.T) {
	tests := []struct {
		ct   domain.ConnectorType
		want Capabilities
	}{
		{domain.ConnectorTypeGoogleDrive, Capabilities{RequiresOAuth: true, SupportsPublish: true}},
		{domain.ConnectorTypeSharePoint, Capabilities{RequiresOAuth: true, SupportsPublish: true}},
		{domain.ConnectorTypeNotion, Capabilities{RequiresOAuth: true}},
		{domain.ConnectorTypeZoom, Capabilities{RequiresOAuth: true, SupportsWebhooks: true}},
		{domain.ConnectorTypeTeams, Capabilities{RequiresOAuth: true, SupportsWebhooks: true}},
		{domain.ConnectorTypeUpload, Capabilities{}},
		{domain.ConnectorTypeURLImport, Capabilities{}},
	}
	for _, tt := range tests {
		caps, err := CapabilitiesFor(tt.ct)
		require.NoError(t, err, tt.ct)
		assert.Equal(t, tt.want, caps, tt.ct)
	}

	_, err := CapabilitiesFor("gopher-mail")
	assert.ErrorIs(t, err, domain.ErrUnsupportedType)
}

// The capability flags must agree with the interfaces instances actually
// implement.
func TestCapabilitiesMatchImplementations(t *testing.T) {
	for _, ct := range domain.AllConnectorTypes() {
		c, err := New(ct, testOptions())
		require.NoError(t, err, ct)
		caps, err := CapabilitiesFor(ct)
		require.NoError(t, err, ct)

		_, publishes := c.(driven.Publisher)
		assert.Equal(t, caps.SupportsPublish, publishes, "%s publish flag", ct)

		_, handles := c.(driven.WebhookHandler)
		assert.Equal(t, caps.SupportsWebhooks, handles, "%s webhook flag", ct)
	}
}

func TestTypes_CoversAllDomainTypes(t *testing.T) {
	assert.ElementsMatch(t, domain.AllConnectorTypes(), Types())
}
