package adapter

import (
	"sync"

	"github.com/thenexusengine/bidmachine_adapter/internal/mediation"
	"github.com/thenexusengine/bidmachine_adapter/internal/partner"
)

// BannerHandle carries a loaded BidMachine banner view
type BannerHandle struct {
	View partner.BannerView
	Size partner.BannerSize
}

// AdKind implements mediation.AdHandle
func (BannerHandle) AdKind() mediation.AdFormat { return mediation.AdFormatBanner }

// InterstitialHandle carries a loaded BidMachine interstitial
type InterstitialHandle struct {
	Ad partner.InterstitialAd
}

// AdKind implements mediation.AdHandle
func (InterstitialHandle) AdKind() mediation.AdFormat { return mediation.AdFormatInterstitial }

// RewardedHandle carries a loaded BidMachine rewarded ad
type RewardedHandle struct {
	Ad partner.RewardedAd
}

// AdKind implements mediation.AdHandle
func (RewardedHandle) AdKind() mediation.AdFormat { return mediation.AdFormatRewarded }

// handleTracker holds fullscreen ads between load and their terminal callback, keyed by the
// load request identifier.
type handleTracker struct {
	mu            sync.Mutex
	interstitials map[string]partner.InterstitialAd
	rewardeds     map[string]partner.RewardedAd
}

func newHandleTracker() *handleTracker {
	return &handleTracker{
		interstitials: make(map[string]partner.InterstitialAd),
		rewardeds:     make(map[string]partner.RewardedAd),
	}
}

func (t *handleTracker) trackInterstitial(id string, ad partner.InterstitialAd) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.interstitials[id] = ad
	return len(t.interstitials)
}

// untrackInterstitial drops the entry for id only while it still holds ad, so a stale callback
// cannot evict a newer load that reused the identifier
func (t *handleTracker) untrackInterstitial(id string, ad partner.InterstitialAd) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	if cur, ok := t.interstitials[id]; ok && cur == ad {
		delete(t.interstitials, id)
	}
	return len(t.interstitials)
}

func (t *handleTracker) interstitial(id string) (partner.InterstitialAd, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	ad, ok := t.interstitials[id]
	return ad, ok
}

func (t *handleTracker) trackRewarded(id string, ad partner.RewardedAd) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.rewardeds[id] = ad
	return len(t.rewardeds)
}

// untrackRewarded drops the entry for id only while it still holds ad, so a stale callback
// cannot evict a newer load that reused the identifier
func (t *handleTracker) untrackRewarded(id string, ad partner.RewardedAd) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	if cur, ok := t.rewardeds[id]; ok && cur == ad {
		delete(t.rewardeds, id)
	}
	return len(t.rewardeds)
}

func (t *handleTracker) rewarded(id string) (partner.RewardedAd, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	ad, ok := t.rewardeds[id]
	return ad, ok
}

// clear drops every tracked handle without destroying it
func (t *handleTracker) clear() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.interstitials = make(map[string]partner.InterstitialAd)
	t.rewardeds = make(map[string]partner.RewardedAd)
}

// counts returns the number of tracked interstitial and rewarded ads
func (t *handleTracker) counts() (interstitials, rewardeds int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.interstitials), len(t.rewardeds)
}
