// Package registry maps connector types to their constructors and
// capability flags. Dispatch is through this closed table; there is no
// reflection and no way to register types at runtime.
package registry

import (
	"fmt"
	"sort"

	"github.com/corpushq/connectors/internal/connectors/googledrive"
	"github.com/corpushq/connectors/internal/connectors/notion"
	"github.com/corpushq/connectors/internal/connectors/sharepoint"
	"github.com/corpushq/connectors/internal/connectors/teams"
	"github.com/corpushq/connectors/internal/connectors/upload"
	"github.com/corpushq/connectors/internal/connectors/urlimport"
	"github.com/corpushq/connectors/internal/connectors/zoom"
	"github.com/corpushq/connectors/internal/core/domain"
	"github.com/corpushq/connectors/internal/core/ports/driven"
)

// Capabilities describes what a connector type supports, for callers that
// need to know before constructing an instance (UI affordances, webhook
// routing, publish menus).
type Capabilities struct {
	// RequiresOAuth means Authenticate runs a vendor OAuth flow.
	RequiresOAuth bool
	// SupportsWebhooks means instances implement driven.WebhookHandler.
	SupportsWebhooks bool
	// SupportsPublish means instances implement driven.Publisher.
	SupportsPublish bool
}

type entry struct {
	build func(driven.ConnectorOptions) (driven.Connector, error)
	caps  Capabilities
}

var entries = map[domain.ConnectorType]entry{
	domain.ConnectorTypeGoogleDrive: {
		build: func(o driven.ConnectorOptions) (driven.Connector, error) { return googledrive.New(o) },
		caps:  Capabilities{RequiresOAuth: true, SupportsPublish: true},
	},
	domain.ConnectorTypeSharePoint: {
		build: func(o driven.ConnectorOptions) (driven.Connector, error) { return sharepoint.New(o) },
		caps:  Capabilities{RequiresOAuth: true, SupportsPublish: true},
	},
	domain.ConnectorTypeNotion: {
		build: func(o driven.ConnectorOptions) (driven.Connector, error) { return notion.New(o) },
		caps:  Capabilities{RequiresOAuth: true},
	},
	domain.ConnectorTypeZoom: {
		build: func(o driven.ConnectorOptions) (driven.Connector, error) { return zoom.New(o) },
		caps:  Capabilities{RequiresOAuth: true, SupportsWebhooks: true},
	},
	domain.ConnectorTypeTeams: {
		build: func(o driven.ConnectorOptions) (driven.Connector, error) { return teams.New(o) },
		caps:  Capabilities{RequiresOAuth: true, SupportsWebhooks: true},
	},
	domain.ConnectorTypeUpload: {
		build: func(o driven.ConnectorOptions) (driven.Connector, error) { return upload.New(o) },
		caps:  Capabilities{},
	},
	domain.ConnectorTypeURLImport: {
		build: func(o driven.ConnectorOptions) (driven.Connector, error) { return urlimport.New(o) },
		caps:  Capabilities{},
	},
}

// New constructs a connector of the given type.
func New(t domain.ConnectorType, opts driven.ConnectorOptions) (driven.Connector, error) {
	e, ok := entries[t]
	if !ok {
		return nil, fmt.Errorf("%w: %q", domain.ErrUnsupportedType, t)
	}
	c, err := e.build(opts)
	if err != nil {
		return nil, fmt.Errorf("build %s connector: %w", t, err)
	}
	return c, nil
}

// CapabilitiesFor returns the capability flags of a connector type.
func CapabilitiesFor(t domain.ConnectorType) (Capabilities, error) {
	e, ok := entries[t]
	if !ok {
		return Capabilities{}, fmt.Errorf("%w: %q", domain.ErrUnsupportedType, t)
	}
	return e.caps, nil
}

// Types lists every registered connector type, sorted for stable output.
func Types() []domain.ConnectorType {
	types := make([]domain.ConnectorType, 0, len(entries))
	for t := range entries {
		types = append(types, t)
	}
	sort.Slice(types, func(i, j int) bool { return types[i] < types[j] })
	return types
}
