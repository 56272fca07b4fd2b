// Package adapter implements the BidMachine partner adapter for the mediation platform.
//
// Each operation blocks until the BidMachine SDK reports back through its callback and
// resumes the caller exactly once. Duplicate or late callbacks are ignored.
package adapter

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/thenexusengine/bidmachine_adapter/internal/config"
	"github.com/thenexusengine/bidmachine_adapter/internal/mediation"
	"github.com/thenexusengine/bidmachine_adapter/internal/partner"
	"github.com/thenexusengine/bidmachine_adapter/pkg/logger"
)

// Operation outcomes used for metrics
const (
	outcomeSuccess = "success"
	outcomeFailure = "failure"
)

// Recorder receives adapter metrics. *metrics.Metrics implements it.
type Recorder interface {
	RecordOperation(operation, format, outcome string, duration time.Duration)
	RecordPartnerError(operation, code string)
	RecordAdEvent(format, event string)
	SetTrackedAds(format string, count int)
}

type noopRecorder struct{}

func (noopRecorder) RecordOperation(string, string, string, time.Duration) {}
func (noopRecorder) RecordPartnerError(string, string)                    {}
func (noopRecorder) RecordAdEvent(string, string)                         {}
func (noopRecorder) SetTrackedAds(string, int)                            {}

// Config is the BidMachine configuration applied at setup
type Config struct {
	TestMode  bool
	Logging   bool
	Targeting *partner.TargetingParams
	Publisher *partner.Publisher
}

// Adapter adapts the BidMachine SDK to the mediation platform
type Adapter struct {
	sdk     partner.SDK
	cfg     Config
	metrics Recorder
	tracker *handleTracker

	privacyMu sync.Mutex
	tcfString string
}

var _ mediation.PartnerAdapter = (*Adapter)(nil)

// New creates an adapter driving sdk
func New(sdk partner.SDK, cfg Config) *Adapter {
	return &Adapter{
		sdk:     sdk,
		cfg:     cfg,
		metrics: noopRecorder{},
		tracker: newHandleTracker(),
	}
}

// SetMetrics wires a metrics recorder
func (a *Adapter) SetMetrics(r Recorder) {
	if r == nil {
		r = noopRecorder{}
	}
	a.metrics = r
}

// PartnerID returns the mediation platform identifier for BidMachine
func (a *Adapter) PartnerID() string { return config.PartnerID }

// PartnerDisplayName returns the human readable partner name
func (a *Adapter) PartnerDisplayName() string { return config.PartnerDisplayName }

// PartnerSDKVersion returns the wrapped SDK version
func (a *Adapter) PartnerSDKVersion() string { return a.sdk.Version() }

// AdapterVersion returns the adapter version
func (a *Adapter) AdapterVersion() string { return config.AdapterVersion }

func (a *Adapter) log() *zerolog.Logger {
	l := logger.Partner(config.PartnerID)
	return &l
}

func (a *Adapter) options() partner.Options {
	return partner.Options{
		TestMode:  a.cfg.TestMode,
		Logging:   a.cfg.Logging,
		Targeting: a.cfg.Targeting,
		Publisher: a.cfg.Publisher,
	}
}

// Setup initializes the BidMachine SDK with the source ID from the credentials
func (a *Adapter) Setup(ctx context.Context, cfg mediation.PartnerConfiguration) error {
	start := time.Now()
	log := a.log()
	log.Info().Str("event", "setup_started").Msg("Setting up BidMachine")

	a.tracker.clear()
	a.reportTracked()

	sourceID, _ := cfg.Credentials[config.CredentialSourceID].(string)
	if strings.TrimSpace(sourceID) == "" {
		log.Error().
			Str("event", "setup_failed").
			Str("credential", config.CredentialSourceID).
			Msg("Missing source ID")
		a.metrics.RecordOperation("setup", "", outcomeFailure, time.Since(start))
		return mediation.Errorf(mediation.ErrInitializationInvalidCredentials, "missing %s", config.CredentialSourceID)
	}

	p := newPending[struct{}]()
	a.sdk.Initialize(ctx, sourceID, a.options(), func(err error) {
		if err == nil && a.sdk.IsInitialized() {
			p.resolve(struct{}{})
			return
		}
		p.reject(mediation.WrapError(mediation.ErrInitializationUnknown, err))
	})

	if _, err := p.wait(ctx); err != nil {
		if mediation.CodeOf(err) == "" {
			err = mediation.WrapError(mediation.ErrInitializationUnknown, err)
		}
		log.Error().Err(err).Str("event", "setup_failed").Msg("BidMachine initialization failed")
		a.metrics.RecordOperation("setup", "", outcomeFailure, time.Since(start))
		return err
	}

	log.Info().
		Str("event", "setup_succeeded").
		Bool("test_mode", a.cfg.TestMode).
		Str("sdk_version", a.sdk.Version()).
		Msg("BidMachine initialized")
	a.metrics.RecordOperation("setup", "", outcomeSuccess, time.Since(start))
	return nil
}

// FetchBidderInformation returns the BidMachine bid token for the requested format.
// Unsupported formats yield an empty map. An empty token is logged but still returned.
func (a *Adapter) FetchBidderInformation(ctx context.Context, req mediation.PreBidRequest) (map[string]string, error) {
	start := time.Now()
	log := a.log()

	format, ok := bidTokenFormat(req.Format)
	if !ok {
		log.Debug().
			Str("event", "bid_token_fetch_skipped").
			Str("format", string(req.Format)).
			Msg("Format does not support bid tokens")
		return map[string]string{}, nil
	}

	log.Debug().Str("event", "bid_token_fetch_started").Str("format", string(req.Format)).Msg("Fetching bid token")

	p := newPending[string]()
	a.sdk.BidToken(ctx, format, func(token string) {
		p.resolve(token)
	})

	token, err := p.wait(ctx)
	if err != nil {
		log.Warn().Err(err).Str("event", "bid_token_fetch_failed").Msg("Bid token fetch abandoned")
		a.metrics.RecordOperation("bid_token", string(req.Format), outcomeFailure, time.Since(start))
		return map[string]string{}, err
	}

	if token == "" {
		log.Error().Str("event", "bid_token_fetch_failed").Str("format", string(req.Format)).Msg("Empty bid token")
		a.metrics.RecordOperation("bid_token", string(req.Format), outcomeFailure, time.Since(start))
	} else {
		log.Debug().Str("event", "bid_token_fetch_succeeded").Str("format", string(req.Format)).Msg("Bid token fetched")
		a.metrics.RecordOperation("bid_token", string(req.Format), outcomeSuccess, time.Since(start))
	}

	return map[string]string{config.BidTokenKey: token}, nil
}

// Load requests an ad and blocks until BidMachine reports the load outcome
func (a *Adapter) Load(ctx context.Context, req mediation.AdLoadRequest, listener mediation.PartnerAdListener) (mediation.PartnerAd, error) {
	start := time.Now()
	log := logger.Ad(config.PartnerID, string(req.Format), req.Identifier)
	log.Info().Str("event", "load_started").Str("placement", req.PartnerPlacement).Msg("Loading ad")

	if listener == nil {
		listener = nopListener{}
	}

	var (
		ad  mediation.PartnerAd
		err error
	)
	switch req.Format {
	case mediation.AdFormatBanner:
		ad, err = a.loadBanner(ctx, req, listener)
	case mediation.AdFormatInterstitial:
		ad, err = a.loadInterstitial(ctx, req, listener)
	case mediation.AdFormatRewarded:
		ad, err = a.loadRewarded(ctx, req, listener)
	default:
		err = mediation.Errorf(mediation.ErrLoadUnsupportedAdFormat, "format %s", req.Format)
	}

	if err != nil {
		log.Error().Err(err).Str("event", "load_failed").Msg("Ad load failed")
		a.metrics.RecordOperation("load", string(req.Format), outcomeFailure, time.Since(start))
		if code := partnerCode(err); code != "" {
			a.metrics.RecordPartnerError("load", code)
		}
		return mediation.PartnerAd{}, err
	}

	log.Info().Str("event", "load_succeeded").Dur("duration", time.Since(start)).Msg("Ad loaded")
	a.metrics.RecordOperation("load", string(req.Format), outcomeSuccess, time.Since(start))
	return ad, nil
}

// awaitLoad waits for a load outcome and converts an abandoned wait into ErrLoadAborted
func awaitLoad(ctx context.Context, p *pending[mediation.PartnerAd]) (mediation.PartnerAd, error) {
	ad, err := p.wait(ctx)
	if err != nil && mediation.CodeOf(err) == "" {
		return mediation.PartnerAd{}, mediation.WrapError(mediation.ErrLoadAborted, err)
	}
	return ad, err
}

// Show displays a loaded ad. Banners are displayed once loaded, so showing them is a no-op.
func (a *Adapter) Show(ctx context.Context, ad mediation.PartnerAd) error {
	start := time.Now()
	format := ad.Request.Format
	log := logger.Ad(config.PartnerID, string(format), ad.Request.Identifier)

	err := a.show(ad)
	if err != nil {
		log.Error().Err(err).Str("event", "show_failed").Msg("Ad show failed")
		a.metrics.RecordOperation("show", string(format), outcomeFailure, time.Since(start))
		return err
	}

	log.Info().Str("event", "show_succeeded").Msg("Ad shown")
	a.metrics.RecordOperation("show", string(format), outcomeSuccess, time.Since(start))
	return nil
}

func (a *Adapter) show(ad mediation.PartnerAd) error {
	if ad.Handle == nil {
		return mediation.NewError(mediation.ErrShowAdNotFound)
	}

	switch ad.Request.Format {
	case mediation.AdFormatBanner:
		return nil
	case mediation.AdFormatInterstitial:
		h, ok := ad.Handle.(InterstitialHandle)
		if !ok {
			return mediation.Errorf(mediation.ErrShowWrongResourceType, "expected interstitial, got %s", ad.Handle.AdKind())
		}
		if h.Ad == nil {
			return mediation.NewError(mediation.ErrShowAdNotFound)
		}
		if !h.Ad.CanShow() {
			return mediation.NewError(mediation.ErrShowAdNotReady)
		}
		h.Ad.Show()
		return nil
	case mediation.AdFormatRewarded:
		h, ok := ad.Handle.(RewardedHandle)
		if !ok {
			return mediation.Errorf(mediation.ErrShowWrongResourceType, "expected rewarded, got %s", ad.Handle.AdKind())
		}
		if h.Ad == nil {
			return mediation.NewError(mediation.ErrShowAdNotFound)
		}
		if !h.Ad.CanShow() {
			return mediation.NewError(mediation.ErrShowAdNotReady)
		}
		h.Ad.Show()
		return nil
	default:
		return mediation.Errorf(mediation.ErrShowUnsupportedAdFormat, "format %s", ad.Request.Format)
	}
}

// Invalidate destroys a loaded ad. A missing handle is a no-op.
func (a *Adapter) Invalidate(ctx context.Context, ad mediation.PartnerAd) error {
	format := ad.Request.Format
	log := logger.Ad(config.PartnerID, string(format), ad.Request.Identifier)

	switch h := ad.Handle.(type) {
	case nil:
		log.Debug().Str("event", "invalidate_succeeded").Msg("No ad to invalidate")
		return nil
	case BannerHandle:
		if h.View != nil {
			h.View.Destroy()
		}
	case InterstitialHandle:
		a.untrackInterstitial(ad.Request.Identifier, h.Ad)
		if h.Ad != nil {
			h.Ad.Destroy()
		}
	case RewardedHandle:
		a.untrackRewarded(ad.Request.Identifier, h.Ad)
		if h.Ad != nil {
			h.Ad.Destroy()
		}
	default:
		err := mediation.Errorf(mediation.ErrInvalidateWrongResourceType, "unexpected handle %T", ad.Handle)
		log.Error().Err(err).Str("event", "invalidate_failed").Msg("Ad invalidate failed")
		a.metrics.RecordOperation("invalidate", string(format), outcomeFailure, 0)
		return err
	}

	log.Info().Str("event", "invalidate_succeeded").Msg("Ad invalidated")
	a.metrics.RecordOperation("invalidate", string(format), outcomeSuccess, 0)
	return nil
}

func (a *Adapter) trackInterstitial(id string, ad partner.InterstitialAd) {
	a.metrics.SetTrackedAds(string(mediation.AdFormatInterstitial), a.tracker.trackInterstitial(id, ad))
}

func (a *Adapter) untrackInterstitial(id string, ad partner.InterstitialAd) {
	a.metrics.SetTrackedAds(string(mediation.AdFormatInterstitial), a.tracker.untrackInterstitial(id, ad))
}

func (a *Adapter) trackRewarded(id string, ad partner.RewardedAd) {
	a.metrics.SetTrackedAds(string(mediation.AdFormatRewarded), a.tracker.trackRewarded(id, ad))
}

func (a *Adapter) untrackRewarded(id string, ad partner.RewardedAd) {
	a.metrics.SetTrackedAds(string(mediation.AdFormatRewarded), a.tracker.untrackRewarded(id, ad))
}

func (a *Adapter) reportTracked() {
	interstitials, rewardeds := a.tracker.counts()
	a.metrics.SetTrackedAds(string(mediation.AdFormatInterstitial), interstitials)
	a.metrics.SetTrackedAds(string(mediation.AdFormatRewarded), rewardeds)
}

// partnerCode returns the partner error name wrapped in err, if any
func partnerCode(err error) string {
	var pe *partner.Error
	if errors.As(err, &pe) {
		return pe.Code.String()
	}
	return ""
}

// nopListener is used when the platform does not supply a listener
type nopListener struct{}

func (nopListener) OnPartnerAdImpression(mediation.PartnerAd)       {}
func (nopListener) OnPartnerAdClicked(mediation.PartnerAd)          {}
func (nopListener) OnPartnerAdRewarded(mediation.PartnerAd)         {}
func (nopListener) OnPartnerAdDismissed(mediation.PartnerAd, error) {}
func (nopListener) OnPartnerAdExpired(mediation.PartnerAd)          {}
