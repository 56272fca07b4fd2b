package endpoints

import (
	"context"

	"github.com/thenexusengine/bidmachine_adapter/internal/config"
	"github.com/thenexusengine/bidmachine_adapter/internal/storage"
)

// CredentialResolver picks the credentials used for setup. Inline credentials win,
// then the store entry for the app, then the configured default source ID.
type CredentialResolver struct {
	store           storage.CredentialStore
	defaultSourceID string
}

// NewCredentialResolver creates a resolver. store may be nil.
func NewCredentialResolver(store storage.CredentialStore, defaultSourceID string) *CredentialResolver {
	return &CredentialResolver{store: store, defaultSourceID: defaultSourceID}
}

// Resolve returns the credentials for appID. An empty result lets setup report invalid credentials.
func (r *CredentialResolver) Resolve(ctx context.Context, appID string, inline map[string]any) (map[string]any, error) {
	if len(inline) > 0 {
		return inline, nil
	}

	if r.store != nil && appID != "" {
		creds, err := r.store.Get(ctx, appID)
		if err != nil {
			return nil, err
		}
		if creds != nil {
			return creds.Values, nil
		}
	}

	if r.defaultSourceID != "" {
		return map[string]any{config.CredentialSourceID: r.defaultSourceID}, nil
	}
	return map[string]any{}, nil
}
