package endpoints

import (
	"sync"

	"github.com/thenexusengine/bidmachine_adapter/internal/mediation"
)

// AdRegistry holds loaded ads by load identifier until they are shown, dismissed or invalidated
type AdRegistry struct {
	mu  sync.Mutex
	ads map[string]mediation.PartnerAd
}

// NewAdRegistry creates an empty registry
func NewAdRegistry() *AdRegistry {
	return &AdRegistry{ads: make(map[string]mediation.PartnerAd)}
}

// Put stores a loaded ad
func (r *AdRegistry) Put(ad mediation.PartnerAd) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ads[ad.Request.Identifier] = ad
}

// Get returns the ad loaded under id
func (r *AdRegistry) Get(id string) (mediation.PartnerAd, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	ad, ok := r.ads[id]
	return ad, ok
}

// Remove drops the ad loaded under id and returns it
func (r *AdRegistry) Remove(id string) (mediation.PartnerAd, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	ad, ok := r.ads[id]
	delete(r.ads, id)
	return ad, ok
}

// Drain removes and returns every ad
func (r *AdRegistry) Drain() []mediation.PartnerAd {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]mediation.PartnerAd, 0, len(r.ads))
	for id, ad := range r.ads {
		out = append(out, ad)
		delete(r.ads, id)
	}
	return out
}

// Len returns the number of registered ads
func (r *AdRegistry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.ads)
}
