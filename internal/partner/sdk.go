// Package partner defines the BidMachine SDK surface the adapter drives.
// Implementations invoke listener and completion callbacks asynchronously and may call them
// more than once or after the caller stopped waiting.
package partner

import (
	"context"
	"fmt"
)

// SDK is the partner SDK entry point
type SDK interface {
	// Version returns the SDK version string
	Version() string

	// Initialize starts the SDK and calls done once initialization has finished.
	// A nil error does not by itself mean the SDK is usable; check IsInitialized.
	Initialize(ctx context.Context, sourceID string, opts Options, done func(err error))

	// IsInitialized reports whether Initialize has completed successfully
	IsInitialized() bool

	// BidToken fetches a bidding token for the format and passes it to cb.
	// An empty token means none is available.
	BidToken(ctx context.Context, format AdsFormat, cb func(token string))

	SetSubjectToGDPR(subject bool)
	SetConsentConfig(hasConsent bool, consentString string)
	SetUSPrivacyString(usPrivacy string)
	SetCoppa(coppa bool)

	NewBannerView() BannerView
	NewInterstitialAd() InterstitialAd
	NewRewardedAd() RewardedAd
}

// Options is the SDK configuration applied at initialization
type Options struct {
	TestMode  bool
	Logging   bool
	Targeting *TargetingParams
	Publisher *Publisher
}

// TargetingParams carries optional user and app targeting
type TargetingParams struct {
	UserID      string
	Gender      string
	BirthYear   int
	Keywords    []string
	StoreURL    string
	StoreID     string
	Paid        bool
	Country     string
	BlockedApps []string
}

// Publisher identifies the publisher to the partner
type Publisher struct {
	ID         string
	Name       string
	Domain     string
	Categories []string
}

// AdsFormat is the partner's ad format used for bid tokens and requests
type AdsFormat string

const (
	AdsFormatBanner320x50  AdsFormat = "banner_320x50"
	AdsFormatBanner728x90  AdsFormat = "banner_728x90"
	AdsFormatBanner300x250 AdsFormat = "banner_300x250"
	AdsFormatInterstitial  AdsFormat = "interstitial"
	AdsFormatRewarded      AdsFormat = "rewarded"
)

// BannerSize returns the banner size for a banner format
func (f AdsFormat) BannerSize() (BannerSize, bool) {
	switch f {
	case AdsFormatBanner320x50:
		return BannerSize320x50, true
	case AdsFormatBanner728x90:
		return BannerSize728x90, true
	case AdsFormatBanner300x250:
		return BannerSize300x250, true
	default:
		return 0, false
	}
}

// BannerSize is a fixed partner banner size
type BannerSize int

const (
	BannerSize320x50 BannerSize = iota
	BannerSize728x90
	BannerSize300x250
)

// Dimensions returns the width and height of the size
func (s BannerSize) Dimensions() (width, height int) {
	switch s {
	case BannerSize728x90:
		return 728, 90
	case BannerSize300x250:
		return 300, 250
	default:
		return 320, 50
	}
}

// AdsFormat returns the matching request format
func (s BannerSize) AdsFormat() AdsFormat {
	switch s {
	case BannerSize728x90:
		return AdsFormatBanner728x90
	case BannerSize300x250:
		return AdsFormatBanner300x250
	default:
		return AdsFormatBanner320x50
	}
}

func (s BannerSize) String() string {
	w, h := s.Dimensions()
	return fmt.Sprintf("%dx%d", w, h)
}

// PriceFloor is a single floor entry sent with placement-based requests
type PriceFloor struct {
	ID    string
	Price float64
}

// AdRequest is a partner ad request. Exactly one of BidPayload or PlacementID is expected.
type AdRequest struct {
	Format      AdsFormat
	BidPayload  string
	PlacementID string
	PriceFloor  *PriceFloor
}

// BannerView is a partner banner ad
type BannerView interface {
	Load(ctx context.Context, req AdRequest, listener BannerListener)
	Destroy()
}

// InterstitialAd is a partner interstitial ad
type InterstitialAd interface {
	Load(ctx context.Context, req AdRequest, listener InterstitialListener)
	CanShow() bool
	Show()
	Destroy()
}

// RewardedAd is a partner rewarded ad
type RewardedAd interface {
	Load(ctx context.Context, req AdRequest, listener RewardedListener)
	CanShow() bool
	Show()
	Destroy()
}

// BannerListener receives banner callbacks
type BannerListener interface {
	OnAdLoaded(view BannerView)
	OnAdLoadFailed(view BannerView, err *Error)
	OnAdShowFailed(view BannerView, err *Error)
	OnAdImpression(view BannerView)
	OnAdClicked(view BannerView)
	OnAdExpired(view BannerView)
}

// InterstitialListener receives interstitial callbacks
type InterstitialListener interface {
	OnAdLoaded(ad InterstitialAd)
	OnAdLoadFailed(ad InterstitialAd, err *Error)
	OnAdShowFailed(ad InterstitialAd, err *Error)
	OnAdImpression(ad InterstitialAd)
	OnAdClicked(ad InterstitialAd)
	OnAdExpired(ad InterstitialAd)
	OnAdClosed(ad InterstitialAd, finished bool)
}

// RewardedListener receives rewarded callbacks
type RewardedListener interface {
	OnAdLoaded(ad RewardedAd)
	OnAdLoadFailed(ad RewardedAd, err *Error)
	OnAdShowFailed(ad RewardedAd, err *Error)
	OnAdImpression(ad RewardedAd)
	OnAdClicked(ad RewardedAd)
	OnAdExpired(ad RewardedAd)
	OnAdClosed(ad RewardedAd, finished bool)
	OnAdRewarded(ad RewardedAd)
}
