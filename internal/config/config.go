// Package config reads the per-vendor OAuth application registrations.
// Values come from the environment, optionally overridden by a TOML secrets
// file. The subsystem consumes these secrets, it does not manage them;
// absence surfaces later as an authentication failure, never a crash.
package config

import (
	"fmt"
	"os"

	"github.com/pelletier/go-toml/v2"

	"github.com/corpushq/connectors/internal/core/domain"
)

// vendorApp mirrors one [vendor] table in the secrets file.
type vendorApp struct {
	ClientID     string `toml:"client_id"`
	ClientSecret string `toml:"client_secret"`
	RedirectURI  string `toml:"redirect_uri"`
	TenantID     string `toml:"tenant_id"`
}

// secretsFile is the TOML shape of an optional secrets file.
type secretsFile struct {
	Google vendorApp `toml:"google"`
	MS     vendorApp `toml:"microsoft"`
	Notion vendorApp `toml:"notion"`
	Zoom   vendorApp `toml:"zoom"`
}

// Secrets holds the resolved vendor app registrations.
type Secrets struct {
	apps map[domain.ConnectorType]domain.OAuthApp
}

// Load resolves vendor secrets from the environment. When path is non-empty
// the TOML file there is read first and environment variables override it.
func Load(path string) (*Secrets, error) {
	var file secretsFile
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if !os.IsNotExist(err) {
				return nil, fmt.Errorf("read secrets file: %w", err)
			}
		} else if err := toml.Unmarshal(data, &file); err != nil {
			return nil, fmt.Errorf("parse secrets file: %w", err)
		}
	}

	google := resolve(file.Google, "GOOGLE")
	ms := resolve(file.MS, "MS")
	notion := resolve(file.Notion, "NOTION")
	zoom := resolve(file.Zoom, "ZOOM")

	apps := map[domain.ConnectorType]domain.OAuthApp{
		domain.ConnectorTypeGoogleDrive: google,
		domain.ConnectorTypeSharePoint:  ms,
		domain.ConnectorTypeTeams:       ms,
		domain.ConnectorTypeNotion:      notion,
		domain.ConnectorTypeZoom:        zoom,
	}
	return &Secrets{apps: apps}, nil
}

// resolve merges env vars over a file entry. Env var names follow
// <PREFIX>_CLIENT_ID, <PREFIX>_CLIENT_SECRET, <PREFIX>_REDIRECT_URI and,
// for Microsoft, MS_TENANT_ID.
func resolve(base vendorApp, prefix string) domain.OAuthApp {
	pick := func(env, fallback string) string {
		if v := os.Getenv(prefix + "_" + env); v != "" {
			return v
		}
		return fallback
	}
	return domain.OAuthApp{
		ClientID:     pick("CLIENT_ID", base.ClientID),
		ClientSecret: pick("CLIENT_SECRET", base.ClientSecret),
		RedirectURI:  pick("REDIRECT_URI", base.RedirectURI),
		TenantID:     pick("TENANT_ID", base.TenantID),
	}
}

// App returns the registration for a connector type. Connector types that
// use no OAuth app (upload, url-import) get a zero value.
func (s *Secrets) App(t domain.ConnectorType) domain.OAuthApp {
	return s.apps[t]
}

// Require returns the registration or ErrMissingConfig when it is not
// usable for the given connector type.
func (s *Secrets) Require(t domain.ConnectorType) (domain.OAuthApp, error) {
	app := s.apps[t]
	if !app.Configured() {
		return domain.OAuthApp{}, fmt.Errorf("%w: %s", domain.ErrMissingConfig, t)
	}
	return app, nil
}
