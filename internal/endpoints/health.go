package endpoints

import (
	"context"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/thenexusengine/bidmachine_adapter/internal/mediation"
)

// HealthCheck reports whether a dependency is reachable
type HealthCheck func(ctx context.Context) error

// HealthHandler reports partner identity, dependency checks and runtime details
type HealthHandler struct {
	adapter mediation.PartnerAdapter
	timeout time.Duration

	mu      sync.RWMutex
	checks  map[string]HealthCheck
	details map[string]func() any
}

// NewHealthHandler creates a health handler for a partner adapter
func NewHealthHandler(a mediation.PartnerAdapter) *HealthHandler {
	return &HealthHandler{
		adapter: a,
		timeout: 2 * time.Second,
		checks:  make(map[string]HealthCheck),
		details: make(map[string]func() any),
	}
}

// AddCheck registers a dependency check. A failing check makes the harness unhealthy.
func (h *HealthHandler) AddCheck(name string, check HealthCheck) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.checks[name] = check
}

// AddDetail registers a runtime detail included in every response
func (h *HealthHandler) AddDetail(name string, detail func() any) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.details[name] = detail
}

func (h *HealthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	h.mu.RLock()
	names := make([]string, 0, len(h.checks))
	for name := range h.checks {
		names = append(names, name)
	}
	sort.Strings(names)

	checks := make(map[string]any, len(names))
	healthy := true
	for _, name := range names {
		if err := h.checks[name](ctx); err != nil {
			checks[name] = map[string]string{"status": "unhealthy", "error": err.Error()}
			healthy = false
		} else {
			checks[name] = map[string]string{"status": "healthy"}
		}
	}

	details := make(map[string]any, len(h.details))
	for name, detail := range h.details {
		details[name] = detail()
	}
	h.mu.RUnlock()

	status := http.StatusOK
	state := "healthy"
	if !healthy {
		status = http.StatusServiceUnavailable
		state = "unhealthy"
	}

	writeJSON(w, status, map[string]any{
		"status":              state,
		"timestamp":           time.Now().UTC().Format(time.RFC3339),
		"partner_id":          h.adapter.PartnerID(),
		"partner_sdk_version": h.adapter.PartnerSDKVersion(),
		"adapter_version":     h.adapter.AdapterVersion(),
		"checks":              checks,
		"details":             details,
	})
}
