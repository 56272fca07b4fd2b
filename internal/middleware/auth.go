// Package middleware provides HTTP middleware for the adapter harness
package middleware

import (
	"context"
	"crypto/subtle"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/thenexusengine/bidmachine_adapter/pkg/logger"
)

// RedisAPIKeysHash maps API keys to app IDs
// #nosec G101 -- Redis key name, not a credential
const RedisAPIKeysHash = "bidmachine_adapter:api_keys"

const (
	authCacheTimeout         = 5 * time.Minute
	authNegativeCacheTimeout = 30 * time.Second
)

type contextKey string

// AppIDKey is the context key for the app ID resolved from the API key
const AppIDKey contextKey = "app_id"

// AppIDFromContext returns the app ID the request was authenticated as
func AppIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(AppIDKey).(string)
	return id
}

// RedisClient interface for API key validation
type RedisClient interface {
	HGet(ctx context.Context, key, field string) (string, error)
}

// AuthMetrics defines the metrics interface for auth middleware
type AuthMetrics interface {
	IncAuthFailures()
}

// AuthConfig holds authentication configuration
type AuthConfig struct {
	Enabled     bool
	APIKeys     map[string]string // key -> app ID
	HeaderName  string
	BypassPaths []string
}

// DefaultAuthConfig returns auth configuration with the given keys. Auth is enabled when keys exist.
func DefaultAuthConfig(apiKeys map[string]string) *AuthConfig {
	return &AuthConfig{
		Enabled:     len(apiKeys) > 0,
		APIKeys:     apiKeys,
		HeaderName:  "X-API-Key",
		BypassPaths: []string{"/health", "/metrics"},
	}
}

// ParseAPIKeys parses API keys in "key1:app1,key2:app2" form
func ParseAPIKeys(value string) map[string]string {
	keys := make(map[string]string)
	if value == "" {
		return keys
	}

	for _, pair := range strings.Split(value, ",") {
		parts := strings.SplitN(strings.TrimSpace(pair), ":", 2)
		if len(parts) == 2 {
			keys[strings.TrimSpace(parts[0])] = strings.TrimSpace(parts[1])
		} else if parts[0] != "" {
			keys[parts[0]] = ""
		}
	}
	return keys
}

// Auth provides API key authentication middleware
type Auth struct {
	config      *AuthConfig
	redisClient RedisClient
	metrics     AuthMetrics
	mu          sync.RWMutex

	keyCache map[string]cachedKey
	cacheMu  sync.RWMutex
	now      func() time.Time
}

type cachedKey struct {
	appID     string
	valid     bool
	expiresAt time.Time
}

// NewAuth creates a new Auth middleware
func NewAuth(config *AuthConfig) *Auth {
	if config == nil {
		config = DefaultAuthConfig(nil)
	}
	if config.HeaderName == "" {
		config.HeaderName = "X-API-Key"
	}
	return &Auth{
		config:   config,
		keyCache: make(map[string]cachedKey),
		now:      time.Now,
	}
}

// SetRedisClient sets the Redis client for API key validation
func (a *Auth) SetRedisClient(client RedisClient) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.redisClient = client
}

// SetMetrics sets the metrics interface for auth middleware
func (a *Auth) SetMetrics(m AuthMetrics) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.metrics = m
}

// IsEnabled returns whether authentication is enabled
func (a *Auth) IsEnabled() bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.config.Enabled
}

// Middleware returns the authentication middleware handler
func (a *Auth) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		a.mu.RLock()
		enabled := a.config.Enabled
		bypassPaths := a.config.BypassPaths
		headerName := a.config.HeaderName
		a.mu.RUnlock()

		if !enabled {
			next.ServeHTTP(w, r)
			return
		}

		for _, path := range bypassPaths {
			if strings.HasPrefix(r.URL.Path, path) {
				next.ServeHTTP(w, r)
				return
			}
		}

		apiKey := r.Header.Get(headerName)
		if apiKey == "" {
			if authHeader := r.Header.Get("Authorization"); strings.HasPrefix(authHeader, "Bearer ") {
				apiKey = strings.TrimPrefix(authHeader, "Bearer ")
			}
		}

		if apiKey == "" {
			a.recordAuthFailure()
			writeError(w, http.StatusUnauthorized, "missing API key")
			return
		}

		appID, valid := a.validateKey(r.Context(), apiKey)
		if !valid {
			a.recordAuthFailure()
			writeError(w, http.StatusForbidden, "invalid API key")
			return
		}

		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), AppIDKey, appID)))
	})
}

// validateKey checks an API key and returns the app ID it belongs to
func (a *Auth) validateKey(ctx context.Context, key string) (string, bool) {
	if cached, found := a.checkCache(key); found {
		return cached.appID, cached.valid
	}

	a.mu.RLock()
	redisClient := a.redisClient
	a.mu.RUnlock()

	if redisClient != nil {
		appID, err := redisClient.HGet(ctx, RedisAPIKeysHash, key)
		if err == nil && appID != "" {
			a.updateCache(key, appID, true)
			return appID, true
		}
		if err != nil {
			log := logger.FromContext(ctx)
			log.Debug().Err(err).Msg("Redis API key lookup failed, falling back to local keys")
		}
	}

	var (
		appID string
		found bool
	)
	a.mu.RLock()
	for validKey, id := range a.config.APIKeys {
		if subtle.ConstantTimeCompare([]byte(key), []byte(validKey)) == 1 {
			appID, found = id, true
			break
		}
	}
	a.mu.RUnlock()

	a.updateCache(key, appID, found)
	return appID, found
}

func (a *Auth) checkCache(key string) (cachedKey, bool) {
	a.cacheMu.RLock()
	defer a.cacheMu.RUnlock()

	cached, exists := a.keyCache[key]
	if !exists || a.now().After(cached.expiresAt) {
		return cachedKey{}, false
	}
	return cached, true
}

func (a *Auth) updateCache(key, appID string, valid bool) {
	a.cacheMu.Lock()
	defer a.cacheMu.Unlock()

	timeout := authCacheTimeout
	if !valid {
		timeout = authNegativeCacheTimeout
	}

	a.keyCache[key] = cachedKey{
		appID:     appID,
		valid:     valid,
		expiresAt: a.now().Add(timeout),
	}
}

// ClearCache clears the API key cache
func (a *Auth) ClearCache() {
	a.cacheMu.Lock()
	defer a.cacheMu.Unlock()
	a.keyCache = make(map[string]cachedKey)
}

func (a *Auth) recordAuthFailure() {
	a.mu.RLock()
	m := a.metrics
	a.mu.RUnlock()
	if m != nil {
		m.IncAuthFailures()
	}
}
