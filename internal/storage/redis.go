package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/thenexusengine/bidmachine_adapter/pkg/redis"
)

const credentialsKeyPrefix = "credentials:"

// RedisCredentialStore keeps credentials as Redis hashes, one per app.
// Non-string values are stored JSON encoded. Every value reads back as a string.
type RedisCredentialStore struct {
	client    *redis.Client
	partnerID string
	ttl       time.Duration
}

// NewRedisCredentialStore creates a store scoped to one partner. A zero ttl keeps entries forever.
func NewRedisCredentialStore(client *redis.Client, partnerID string, ttl time.Duration) *RedisCredentialStore {
	return &RedisCredentialStore{client: client, partnerID: partnerID, ttl: ttl}
}

func (s *RedisCredentialStore) key(appID string) string {
	return credentialsKeyPrefix + s.partnerID + ":" + appID
}

// Get retrieves the credentials of an app
func (s *RedisCredentialStore) Get(ctx context.Context, appID string) (*Credentials, error) {
	fields, err := s.client.HGetAll(ctx, s.key(appID))
	if err != nil {
		return nil, fmt.Errorf("failed to read credentials: %w", err)
	}
	if len(fields) == 0 {
		return nil, nil
	}

	values := make(map[string]any, len(fields))
	for k, v := range fields {
		values[k] = v
	}

	return &Credentials{
		AppID:     appID,
		PartnerID: s.partnerID,
		Values:    values,
		Status:    StatusActive,
	}, nil
}

// Put replaces the credentials of an app
func (s *RedisCredentialStore) Put(ctx context.Context, c *Credentials) error {
	if c == nil || c.AppID == "" {
		return fmt.Errorf("credentials require an app_id")
	}

	fields := make(map[string]string, len(c.Values))
	for k, v := range c.Values {
		if str, ok := v.(string); ok {
			fields[k] = str
			continue
		}
		encoded, err := json.Marshal(v)
		if err != nil {
			return fmt.Errorf("failed to marshal credential %q: %w", k, err)
		}
		fields[k] = string(encoded)
	}

	if err := s.client.HSetAll(ctx, s.key(c.AppID), fields, s.ttl); err != nil {
		return fmt.Errorf("failed to store credentials: %w", err)
	}
	return nil
}

// Delete removes the credentials of an app
func (s *RedisCredentialStore) Delete(ctx context.Context, appID string) error {
	if err := s.client.Del(ctx, s.key(appID)); err != nil {
		return fmt.Errorf("failed to delete credentials: %w", err)
	}
	return nil
}
