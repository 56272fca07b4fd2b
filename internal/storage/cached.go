package storage

import (
	"context"

	"go.uber.org/multierr"

	"github.com/thenexusengine/bidmachine_adapter/pkg/logger"
)

// CachedCredentialStore reads through a cache in front of a primary store.
// Cache failures are logged and fall back to the primary.
type CachedCredentialStore struct {
	cache   CredentialStore
	primary CredentialStore
}

// NewCachedCredentialStore creates a read-through store
func NewCachedCredentialStore(cache, primary CredentialStore) *CachedCredentialStore {
	return &CachedCredentialStore{cache: cache, primary: primary}
}

// Get returns cached credentials or loads and caches them from the primary store
func (s *CachedCredentialStore) Get(ctx context.Context, appID string) (*Credentials, error) {
	log := logger.FromContext(ctx)

	cached, err := s.cache.Get(ctx, appID)
	if err != nil {
		log.Warn().Err(err).Str("app_id", appID).Msg("Credential cache read failed")
	} else if cached != nil {
		return cached, nil
	}

	creds, err := s.primary.Get(ctx, appID)
	if err != nil || creds == nil {
		return creds, err
	}

	if err := s.cache.Put(ctx, creds); err != nil {
		log.Warn().Err(err).Str("app_id", appID).Msg("Credential cache write failed")
	}
	return creds, nil
}

// Put writes to the primary store and drops the cached copy
func (s *CachedCredentialStore) Put(ctx context.Context, creds *Credentials) error {
	if err := s.primary.Put(ctx, creds); err != nil {
		return err
	}
	return s.cache.Delete(ctx, creds.AppID)
}

// Delete removes the credentials from both stores
func (s *CachedCredentialStore) Delete(ctx context.Context, appID string) error {
	return multierr.Combine(
		s.primary.Delete(ctx, appID),
		s.cache.Delete(ctx, appID),
	)
}
