package httpsdk

import (
	"context"
	"sync"
	"time"

	"github.com/thenexusengine/bidmachine_adapter/internal/openrtb"
	"github.com/thenexusengine/bidmachine_adapter/internal/partner"
)

// adState is the lifecycle position of a single ad object
type adState int

const (
	stateIdle adState = iota
	stateLoading
	stateLoaded
	stateShown
	stateExpired
	stateDestroyed
)

// ad holds the state shared by every ad kind. An ad object loads at most once.
type ad struct {
	client *Client

	mu     sync.Mutex
	state  adState
	bid    openrtb.Bid
	expiry *time.Timer
}

// begin moves an idle ad to loading. It returns the error to report when the ad cannot load.
func (a *ad) begin() *partner.Error {
	a.mu.Lock()
	defer a.mu.Unlock()

	switch a.state {
	case stateIdle:
		a.state = stateLoading
		return nil
	case stateDestroyed:
		return partner.NewError(partner.ErrorCodeDestroyed, "ad was destroyed")
	default:
		return partner.NewError(partner.ErrorCodeAlreadyShown, "ad object was already loaded")
	}
}

// loaded stores the bid and arms the expiry timer. It reports false if the ad was destroyed
// while the request was in flight.
func (a *ad) loaded(bid openrtb.Bid, onExpire func()) bool {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.state != stateLoading {
		return false
	}
	a.state = stateLoaded
	a.bid = bid

	ttl := a.client.cfg.AdTTL
	if bid.Exp > 0 {
		ttl = time.Duration(bid.Exp) * time.Second
	}
	a.expiry = time.AfterFunc(ttl, func() {
		if a.expire() {
			onExpire()
		}
	})
	return true
}

// failed returns a loading ad to idle so the failure is terminal for this attempt only
func (a *ad) failed() {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.state == stateLoading {
		a.state = stateIdle
	}
}

func (a *ad) expire() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.state != stateLoaded {
		return false
	}
	a.state = stateExpired
	return true
}

func (a *ad) canShow() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.state == stateLoaded
}

// markShown moves a loaded ad to shown. It returns the error to report when it cannot show.
func (a *ad) markShown() (openrtb.Bid, *partner.Error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	switch a.state {
	case stateLoaded:
		a.state = stateShown
		a.stopExpiry()
		return a.bid, nil
	case stateShown:
		return openrtb.Bid{}, partner.NewError(partner.ErrorCodeAlreadyShown, "ad was already shown")
	case stateExpired:
		return openrtb.Bid{}, partner.NewError(partner.ErrorCodeExpired, "ad expired")
	case stateDestroyed:
		return openrtb.Bid{}, partner.NewError(partner.ErrorCodeDestroyed, "ad was destroyed")
	default:
		return openrtb.Bid{}, partner.NewError(partner.ErrorCodeInternalUnknown, "ad is not loaded")
	}
}

// destroy reports whether this call destroyed the ad
func (a *ad) destroy() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.state == stateDestroyed {
		return false
	}
	a.state = stateDestroyed
	a.stopExpiry()
	return true
}

// stopExpiry must be called with mu held
func (a *ad) stopExpiry() {
	if a.expiry != nil {
		a.expiry.Stop()
		a.expiry = nil
	}
}

// bannerView is a partner.BannerView. A banner is on screen as soon as it loads, so the
// impression follows the load callback.
type bannerView struct {
	ad
}

func (v *bannerView) Load(ctx context.Context, req partner.AdRequest, l partner.BannerListener) {
	if err := v.begin(); err != nil {
		v.client.spawn(func() { l.OnAdLoadFailed(v, err) })
		return
	}

	v.client.spawn(func() {
		bid, err := v.client.fetch(ctx, req)
		if err != nil {
			v.failed()
			l.OnAdLoadFailed(v, err)
			return
		}
		if !v.loaded(bid, func() { l.OnAdExpired(v) }) {
			return
		}
		l.OnAdLoaded(v)

		if _, err := v.markShown(); err != nil {
			l.OnAdShowFailed(v, err)
			return
		}
		v.client.notify(bid.BURL, bid.Price)
		l.OnAdImpression(v)
		if v.client.cfg.SimulateClicks {
			l.OnAdClicked(v)
		}
	})
}

func (v *bannerView) Destroy() {
	if v.destroy() {
		v.client.forget(v)
	}
}

// interstitialAd is a partner.InterstitialAd
type interstitialAd struct {
	ad
	listenerMu sync.Mutex
	listener   partner.InterstitialListener
}

func (a *interstitialAd) Load(ctx context.Context, req partner.AdRequest, l partner.InterstitialListener) {
	a.listenerMu.Lock()
	a.listener = l
	a.listenerMu.Unlock()

	if err := a.begin(); err != nil {
		a.client.spawn(func() { l.OnAdLoadFailed(a, err) })
		return
	}

	a.client.spawn(func() {
		bid, err := a.client.fetch(ctx, req)
		if err != nil {
			a.failed()
			l.OnAdLoadFailed(a, err)
			return
		}
		if a.loaded(bid, func() { l.OnAdExpired(a) }) {
			l.OnAdLoaded(a)
		}
	})
}

func (a *interstitialAd) CanShow() bool { return a.canShow() }

func (a *interstitialAd) Show() {
	a.listenerMu.Lock()
	l := a.listener
	a.listenerMu.Unlock()
	if l == nil {
		return
	}

	bid, err := a.markShown()
	a.client.spawn(func() {
		if err != nil {
			l.OnAdShowFailed(a, err)
			return
		}
		a.client.notify(bid.BURL, bid.Price)
		l.OnAdImpression(a)
		if a.client.cfg.SimulateClicks {
			l.OnAdClicked(a)
		}
		l.OnAdClosed(a, true)
	})
}

func (a *interstitialAd) Destroy() {
	if a.destroy() {
		a.client.forget(a)
	}
}

// rewardedAd is a partner.RewardedAd. A completed show earns the reward before closing.
type rewardedAd struct {
	ad
	listenerMu sync.Mutex
	listener   partner.RewardedListener
}

func (a *rewardedAd) Load(ctx context.Context, req partner.AdRequest, l partner.RewardedListener) {
	a.listenerMu.Lock()
	a.listener = l
	a.listenerMu.Unlock()

	if err := a.begin(); err != nil {
		a.client.spawn(func() { l.OnAdLoadFailed(a, err) })
		return
	}

	a.client.spawn(func() {
		bid, err := a.client.fetch(ctx, req)
		if err != nil {
			a.failed()
			l.OnAdLoadFailed(a, err)
			return
		}
		if a.loaded(bid, func() { l.OnAdExpired(a) }) {
			l.OnAdLoaded(a)
		}
	})
}

func (a *rewardedAd) CanShow() bool { return a.canShow() }

func (a *rewardedAd) Show() {
	a.listenerMu.Lock()
	l := a.listener
	a.listenerMu.Unlock()
	if l == nil {
		return
	}

	bid, err := a.markShown()
	a.client.spawn(func() {
		if err != nil {
			l.OnAdShowFailed(a, err)
			return
		}
		a.client.notify(bid.BURL, bid.Price)
		l.OnAdImpression(a)
		if a.client.cfg.SimulateClicks {
			l.OnAdClicked(a)
		}
		l.OnAdRewarded(a)
		l.OnAdClosed(a, true)
	})
}

func (a *rewardedAd) Destroy() {
	if a.destroy() {
		a.client.forget(a)
	}
}
