// Package partnertest provides a scriptable in-memory partner SDK for tests
package partnertest

import (
	"context"
	"sync"

	"github.com/thenexusengine/bidmachine_adapter/internal/partner"
)

// ConsentCall records a SetConsentConfig call
type ConsentCall struct {
	HasConsent    bool
	ConsentString string
}

// SDK is a fake partner.SDK. Callbacks are delivered on a new goroutine, Repeat times each,
// which lets tests exercise duplicate callback delivery.
type SDK struct {
	mu sync.Mutex

	VersionString string
	Repeat        int

	// InitErr is passed to the Initialize callback; InitSucceeds controls IsInitialized afterwards
	InitErr      error
	InitSucceeds bool
	InitCalls    int
	SourceID     string
	Options      partner.Options
	initialized  bool

	Tokens      map[partner.AdsFormat]string
	TokenCalls  []partner.AdsFormat
	GDPRSubject *bool
	Consents    []ConsentCall
	USPrivacy   []string
	Coppa       *bool

	// Load scripts run after Load records its request. Nil scripts report a successful load.
	OnBannerLoad       func(v *BannerView)
	OnInterstitialLoad func(ad *InterstitialAd)
	OnRewardedLoad     func(ad *RewardedAd)

	Banners       []*BannerView
	Interstitials []*InterstitialAd
	Rewardeds     []*RewardedAd
}

// New creates a fake SDK whose initialization succeeds
func New() *SDK {
	return &SDK{
		VersionString: "3.0.1",
		Repeat:        1,
		InitSucceeds:  true,
		Tokens:        map[partner.AdsFormat]string{},
	}
}

func (s *SDK) repeat() int {
	if s.Repeat < 1 {
		return 1
	}
	return s.Repeat
}

// Version implements partner.SDK
func (s *SDK) Version() string { return s.VersionString }

// Initialize implements partner.SDK
func (s *SDK) Initialize(_ context.Context, sourceID string, opts partner.Options, done func(err error)) {
	s.mu.Lock()
	s.InitCalls++
	s.SourceID = sourceID
	s.Options = opts
	s.initialized = s.InitSucceeds
	err := s.InitErr
	n := s.repeat()
	s.mu.Unlock()

	go func() {
		for i := 0; i < n; i++ {
			done(err)
		}
	}()
}

// IsInitialized implements partner.SDK
func (s *SDK) IsInitialized() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.initialized
}

// InitializeCalls returns how many times Initialize was called
func (s *SDK) InitializeCalls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.InitCalls
}

// BidToken implements partner.SDK
func (s *SDK) BidToken(_ context.Context, format partner.AdsFormat, cb func(token string)) {
	s.mu.Lock()
	s.TokenCalls = append(s.TokenCalls, format)
	token := s.Tokens[format]
	n := s.repeat()
	s.mu.Unlock()

	go func() {
		for i := 0; i < n; i++ {
			cb(token)
		}
	}()
}

// SetSubjectToGDPR implements partner.SDK
func (s *SDK) SetSubjectToGDPR(subject bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.GDPRSubject = &subject
}

// SetConsentConfig implements partner.SDK
func (s *SDK) SetConsentConfig(hasConsent bool, consentString string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Consents = append(s.Consents, ConsentCall{HasConsent: hasConsent, ConsentString: consentString})
}

// SetUSPrivacyString implements partner.SDK
func (s *SDK) SetUSPrivacyString(usPrivacy string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.USPrivacy = append(s.USPrivacy, usPrivacy)
}

// SetCoppa implements partner.SDK
func (s *SDK) SetCoppa(coppa bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Coppa = &coppa
}

// NewBannerView implements partner.SDK
func (s *SDK) NewBannerView() partner.BannerView {
	s.mu.Lock()
	defer s.mu.Unlock()
	v := &BannerView{sdk: s}
	s.Banners = append(s.Banners, v)
	return v
}

// NewInterstitialAd implements partner.SDK
func (s *SDK) NewInterstitialAd() partner.InterstitialAd {
	s.mu.Lock()
	defer s.mu.Unlock()
	ad := &InterstitialAd{sdk: s, fullscreen: fullscreen{ready: true}}
	s.Interstitials = append(s.Interstitials, ad)
	return ad
}

// NewRewardedAd implements partner.SDK
func (s *SDK) NewRewardedAd() partner.RewardedAd {
	s.mu.Lock()
	defer s.mu.Unlock()
	ad := &RewardedAd{sdk: s, fullscreen: fullscreen{ready: true}}
	s.Rewardeds = append(s.Rewardeds, ad)
	return ad
}

// LastBanner returns the most recently created banner view
func (s *SDK) LastBanner() *BannerView {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.Banners) == 0 {
		return nil
	}
	return s.Banners[len(s.Banners)-1]
}

// LastInterstitial returns the most recently created interstitial
func (s *SDK) LastInterstitial() *InterstitialAd {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.Interstitials) == 0 {
		return nil
	}
	return s.Interstitials[len(s.Interstitials)-1]
}

// LastRewarded returns the most recently created rewarded ad
func (s *SDK) LastRewarded() *RewardedAd {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.Rewardeds) == 0 {
		return nil
	}
	return s.Rewardeds[len(s.Rewardeds)-1]
}

// BannerView is a fake partner.BannerView
type BannerView struct {
	sdk *SDK

	mu        sync.Mutex
	request   partner.AdRequest
	listener  partner.BannerListener
	destroyed int
}

// Load implements partner.BannerView
func (v *BannerView) Load(_ context.Context, req partner.AdRequest, listener partner.BannerListener) {
	v.mu.Lock()
	v.request = req
	v.listener = listener
	v.mu.Unlock()

	v.sdk.mu.Lock()
	script := v.sdk.OnBannerLoad
	n := v.sdk.repeat()
	v.sdk.mu.Unlock()

	go func() {
		for i := 0; i < n; i++ {
			if script != nil {
				script(v)
			} else {
				listener.OnAdLoaded(v)
			}
		}
	}()
}

// Destroy implements partner.BannerView
func (v *BannerView) Destroy() {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.destroyed++
}

// Request returns the request passed to Load
func (v *BannerView) Request() partner.AdRequest {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.request
}

// Listener returns the listener passed to Load
func (v *BannerView) Listener() partner.BannerListener {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.listener
}

// DestroyCount returns how many times Destroy was called
func (v *BannerView) DestroyCount() int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.destroyed
}

// fullscreen holds state shared by interstitial and rewarded fakes
type fullscreen struct {
	mu        sync.Mutex
	request   partner.AdRequest
	ready     bool
	shown     int
	destroyed int
}

// SetReady controls what CanShow reports
func (f *fullscreen) SetReady(ready bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ready = ready
}

// CanShow implements the fullscreen ad contract
func (f *fullscreen) CanShow() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.ready
}

// Show implements the fullscreen ad contract
func (f *fullscreen) Show() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.shown++
}

// Destroy implements the fullscreen ad contract
func (f *fullscreen) Destroy() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.destroyed++
}

// Request returns the request passed to Load
func (f *fullscreen) Request() partner.AdRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.request
}

// ShowCount returns how many times Show was called
func (f *fullscreen) ShowCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.shown
}

// DestroyCount returns how many times Destroy was called
func (f *fullscreen) DestroyCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.destroyed
}

// InterstitialAd is a fake partner.InterstitialAd
type InterstitialAd struct {
	fullscreen
	sdk      *SDK
	listener partner.InterstitialListener
}

// Load implements partner.InterstitialAd
func (ad *InterstitialAd) Load(_ context.Context, req partner.AdRequest, listener partner.InterstitialListener) {
	ad.mu.Lock()
	ad.request = req
	ad.listener = listener
	ad.mu.Unlock()

	ad.sdk.mu.Lock()
	script := ad.sdk.OnInterstitialLoad
	n := ad.sdk.repeat()
	ad.sdk.mu.Unlock()

	go func() {
		for i := 0; i < n; i++ {
			if script != nil {
				script(ad)
			} else {
				listener.OnAdLoaded(ad)
			}
		}
	}()
}

// Listener returns the listener passed to Load
func (ad *InterstitialAd) Listener() partner.InterstitialListener {
	ad.mu.Lock()
	defer ad.mu.Unlock()
	return ad.listener
}

// RewardedAd is a fake partner.RewardedAd
type RewardedAd struct {
	fullscreen
	sdk      *SDK
	listener partner.RewardedListener
}

// Load implements partner.RewardedAd
func (ad *RewardedAd) Load(_ context.Context, req partner.AdRequest, listener partner.RewardedListener) {
	ad.mu.Lock()
	ad.request = req
	ad.listener = listener
	ad.mu.Unlock()

	ad.sdk.mu.Lock()
	script := ad.sdk.OnRewardedLoad
	n := ad.sdk.repeat()
	ad.sdk.mu.Unlock()

	go func() {
		for i := 0; i < n; i++ {
			if script != nil {
				script(ad)
			} else {
				listener.OnAdLoaded(ad)
			}
		}
	}()
}

// Listener returns the listener passed to Load
func (ad *RewardedAd) Listener() partner.RewardedListener {
	ad.mu.Lock()
	defer ad.mu.Unlock()
	return ad.listener
}
