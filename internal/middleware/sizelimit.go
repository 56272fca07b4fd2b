package middleware

import (
	"net/http"

	"github.com/thenexusengine/bidmachine_adapter/internal/config"
)

// SizeLimitConfig holds request size limit configuration
type SizeLimitConfig struct {
	Enabled      bool
	MaxBodySize  int64
	MaxURLLength int
}

// DefaultSizeLimitConfig returns the default size limits
func DefaultSizeLimitConfig() *SizeLimitConfig {
	return &SizeLimitConfig{
		Enabled:      true,
		MaxBodySize:  config.DefaultMaxBodySize,
		MaxURLLength: 8192,
	}
}

// SizeLimiter provides request size limiting middleware
type SizeLimiter struct {
	config SizeLimitConfig
}

// NewSizeLimiter creates a new size limiter
func NewSizeLimiter(cfg *SizeLimitConfig) *SizeLimiter {
	if cfg == nil {
		cfg = DefaultSizeLimitConfig()
	}
	return &SizeLimiter{config: *cfg}
}

// Middleware returns the size limiting middleware handler
func (sl *SizeLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !sl.config.Enabled {
			next.ServeHTTP(w, r)
			return
		}

		if len(r.URL.String()) > sl.config.MaxURLLength {
			writeError(w, http.StatusRequestURITooLong, "URL too long")
			return
		}

		if r.ContentLength > sl.config.MaxBodySize {
			writeError(w, http.StatusRequestEntityTooLarge, "request body too large")
			return
		}

		if r.Body != nil {
			r.Body = http.MaxBytesReader(w, r.Body, sl.config.MaxBodySize)
		}

		next.ServeHTTP(w, r)
	})
}
