// Package services contains the vendor-independent machinery shared by the
// connector adapters: the token lifecycle helper, the dedup/storage helper,
// the bounded-parallel batch runner, and the webhook dispatcher.
package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/corpushq/connectors/internal/core/domain"
	"github.com/corpushq/connectors/internal/core/ports/driven"
)

// RefreshFunc performs the vendor-specific refresh-token grant and returns
// the new credentials. The surrounding check/refresh/persist sequence is
// shared and lives in TokenManager.
type RefreshFunc func(ctx context.Context, creds domain.ConnectorCredentials) (*domain.ConnectorCredentials, error)

// TokenManager centralizes "is this token expiring soon, and if so refresh
// it" so OAuth adapters do not reimplement the race. Refreshed tokens are
// persisted before use; a version conflict on persist means another process
// refreshed first, in which case the stored token is reused rather than
// overwritten.
type TokenManager struct {
	connectorID string
	store       driven.CredentialsStore
	refresh     RefreshFunc
	buffer      time.Duration
	log         *slog.Logger

	mu sync.Mutex
}

// NewTokenManager creates a token manager for one connector instance.
// refresh may be nil for vendors with non-expiring tokens.
func NewTokenManager(connectorID string, store driven.CredentialsStore, refresh RefreshFunc, log *slog.Logger) *TokenManager {
	if log == nil {
		log = slog.Default()
	}
	return &TokenManager{
		connectorID: connectorID,
		store:       store,
		refresh:     refresh,
		buffer:      domain.TokenExpiryBuffer,
		log:         log,
	}
}

// Credentials returns the current stored credentials, refreshing first when
// the token is inside the expiry buffer.
func (m *TokenManager) Credentials(ctx context.Context) (*domain.ConnectorCredentials, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	creds, err := m.store.Get(ctx, m.connectorID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, domain.ErrNotAuthenticated
		}
		return nil, fmt.Errorf("get credentials: %w", err)
	}
	if !creds.IsAuthenticated() {
		return nil, domain.ErrNotAuthenticated
	}

	if !creds.ExpiresWithin(m.buffer) {
		return creds, nil
	}
	return m.refreshLocked(ctx, creds)
}

// Token returns a valid access token, refreshing when needed.
func (m *TokenManager) Token(ctx context.Context) (string, error) {
	creds, err := m.Credentials(ctx)
	if err != nil {
		return "", err
	}
	return creds.AccessToken, nil
}

// ForceRefresh refreshes regardless of expiry. Used after a vendor 401
// despite a valid-looking cached token.
func (m *TokenManager) ForceRefresh(ctx context.Context) (*domain.ConnectorCredentials, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	creds, err := m.store.Get(ctx, m.connectorID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, domain.ErrNotAuthenticated
		}
		return nil, fmt.Errorf("get credentials: %w", err)
	}
	return m.refreshLocked(ctx, creds)
}

// refreshLocked runs the refresh grant and persists the result before
// returning it. On a version conflict the stored credentials won the race;
// they are re-read and reused when still fresh.
func (m *TokenManager) refreshLocked(ctx context.Context, creds *domain.ConnectorCredentials) (*domain.ConnectorCredentials, error) {
	if creds.RefreshToken == "" {
		if creds.ExpiresWithin(0) {
			return nil, domain.ErrNoRefreshToken
		}
		// Expiring soon but still valid and nothing to refresh with.
		return creds, nil
	}
	if m.refresh == nil {
		return nil, domain.ErrNoRefreshToken
	}

	fresh, err := m.refresh(ctx, *creds)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrTokenRefreshFailed, err)
	}
	// Vendors that rotate refresh tokens return a new one; keep the old one
	// otherwise.
	if fresh.RefreshToken == "" {
		fresh.RefreshToken = creds.RefreshToken
	}
	if len(fresh.Scopes) == 0 {
		fresh.Scopes = creds.Scopes
	}

	err = m.store.Save(ctx, m.connectorID, *fresh, creds.Version)
	if err == nil {
		fresh.Version = creds.Version + 1
		return fresh, nil
	}
	if !errors.Is(err, domain.ErrCredentialConflict) {
		return nil, fmt.Errorf("persist refreshed credentials: %w", err)
	}

	// Another process refreshed first. First writer wins: reuse theirs.
	m.log.Debug("credential refresh lost race, reusing stored token",
		"connector_id", m.connectorID)
	stored, err := m.store.Get(ctx, m.connectorID)
	if err != nil {
		return nil, fmt.Errorf("re-read credentials after conflict: %w", err)
	}
	if stored.IsAuthenticated() && !stored.ExpiresWithin(m.buffer) {
		return stored, nil
	}
	return nil, domain.ErrTokenRefreshFailed
}

// WithAuthRetry runs op with a valid token and, on a 401 despite a
// valid-looking cached token, retries exactly once after a forced refresh.
// A second 401 surfaces as ErrAuthExpired so a revoked grant does not loop.
func (m *TokenManager) WithAuthRetry(ctx context.Context, op func(token string) error) error {
	token, err := m.Token(ctx)
	if err != nil {
		return err
	}

	err = op(token)
	if err == nil || !domain.IsUnauthorized(err) {
		return err
	}

	fresh, err := m.ForceRefresh(ctx)
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrAuthExpired, err)
	}

	err = op(fresh.AccessToken)
	if err != nil && domain.IsUnauthorized(err) {
		return fmt.Errorf("%w: %v", domain.ErrAuthExpired, err)
	}
	return err
}
