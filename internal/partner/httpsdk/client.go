// Package httpsdk implements the BidMachine SDK surface over OpenRTB 2.5 and HTTP.
//
// Callbacks are delivered on background goroutines, the way the mobile SDK delivers them on its
// own threads. Loaded ads expire after the bid TTL.
package httpsdk

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/thenexusengine/bidmachine_adapter/internal/config"
	"github.com/thenexusengine/bidmachine_adapter/internal/openrtb"
	"github.com/thenexusengine/bidmachine_adapter/internal/partner"
	"github.com/thenexusengine/bidmachine_adapter/pkg/circuitbreaker"
	"github.com/thenexusengine/bidmachine_adapter/pkg/logger"
)

// Version is the SDK version reported to the mediation platform
const Version = "3.0.1"

// Recorder receives partner request metrics. *metrics.Metrics implements it.
type Recorder interface {
	RecordPartnerRequest(status string, latency time.Duration)
	SetPartnerCircuitState(state string)
}

type noopRecorder struct{}

func (noopRecorder) RecordPartnerRequest(string, time.Duration) {}
func (noopRecorder) SetPartnerCircuitState(string)              {}

// Config holds ad server client configuration
type Config struct {
	Endpoint        string
	Timeout         time.Duration
	AdTTL           time.Duration
	MaxResponseSize int64
	Breaker         circuitbreaker.Config

	// SimulateClicks reports a click between impression and close on every show
	SimulateClicks bool
}

// DefaultConfig returns a configuration for endpoint
func DefaultConfig(endpoint string) Config {
	return Config{
		Endpoint:        endpoint,
		Timeout:         config.PartnerDefaultTimeout,
		AdTTL:           config.PartnerDefaultAdTTL,
		MaxResponseSize: config.PartnerMaxResponseSize,
		Breaker:         circuitbreaker.DefaultConfig(),
	}
}

// Client is a partner.SDK backed by an OpenRTB ad server
type Client struct {
	cfg       Config
	transport *transport
	breaker   *circuitbreaker.Breaker
	log       zerolog.Logger

	mu          sync.RWMutex
	metrics     Recorder
	sourceID    string
	opts        partner.Options
	initialized bool
	privacy     privacyState

	adsMu sync.Mutex
	ads   map[destroyer]struct{}

	// closeMu orders wg.Add against the wg.Wait in Close
	closeMu sync.Mutex
	closed  bool
	wg      sync.WaitGroup
}

type privacyState struct {
	subjectToGDPR *bool
	hasConsent    bool
	consentString string
	usPrivacy     string
	coppa         bool
}

type destroyer interface {
	Destroy()
}

var _ partner.SDK = (*Client)(nil)

// New creates an ad server client
func New(cfg Config) *Client {
	def := DefaultConfig(cfg.Endpoint)
	if cfg.Timeout <= 0 {
		cfg.Timeout = def.Timeout
	}
	if cfg.AdTTL <= 0 {
		cfg.AdTTL = def.AdTTL
	}
	if cfg.MaxResponseSize <= 0 {
		cfg.MaxResponseSize = def.MaxResponseSize
	}

	c := &Client{
		cfg:       cfg,
		transport: newTransport(cfg.Timeout, cfg.MaxResponseSize),
		log:       logger.SDK(),
		metrics:   noopRecorder{},
		ads:       make(map[destroyer]struct{}),
	}

	breakerCfg := cfg.Breaker
	breakerCfg.IsFailure = isOutage
	breakerCfg.OnStateChange = func(from, to string) {
		c.log.Warn().Str("from", from).Str("to", to).Msg("Partner circuit breaker state changed")
		c.recorder().SetPartnerCircuitState(to)
	}
	c.breaker = circuitbreaker.New(breakerCfg)

	return c
}

// SetMetrics wires a metrics recorder
func (c *Client) SetMetrics(r Recorder) {
	if r == nil {
		r = noopRecorder{}
	}
	c.mu.Lock()
	c.metrics = r
	c.mu.Unlock()
}

func (c *Client) recorder() Recorder {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.metrics
}

// BreakerStats returns the partner circuit breaker counters
func (c *Client) BreakerStats() circuitbreaker.Stats {
	return c.breaker.Stats()
}

// Version implements partner.SDK
func (c *Client) Version() string { return Version }

// Initialize implements partner.SDK. Initialization is local; the endpoint is only validated.
func (c *Client) Initialize(_ context.Context, sourceID string, opts partner.Options, done func(err error)) {
	var err error
	switch {
	case strings.TrimSpace(sourceID) == "":
		err = errors.New("source id is required")
	case c.cfg.Endpoint == "":
		err = errors.New("ad server endpoint is not configured")
	}

	c.mu.Lock()
	if err == nil {
		c.sourceID = sourceID
		c.opts = opts
		c.initialized = true
	}
	c.mu.Unlock()

	if err == nil {
		c.log.Info().Str("source_id", sourceID).Bool("test_mode", opts.TestMode).Msg("SDK initialized")
	}

	c.spawn(func() { done(err) })
}

// IsInitialized implements partner.SDK
func (c *Client) IsInitialized() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.initialized
}

// BidToken implements partner.SDK. Tokens are only issued once initialized.
func (c *Client) BidToken(_ context.Context, format partner.AdsFormat, cb func(token string)) {
	c.mu.RLock()
	initialized, sourceID, test := c.initialized, c.sourceID, c.opts.TestMode
	c.mu.RUnlock()

	token := ""
	if initialized {
		t, err := encodeBidToken(bidToken{
			Session:   uuid.NewString(),
			SourceID:  sourceID,
			Format:    format,
			Timestamp: time.Now().Unix(),
			Test:      test,
		})
		if err != nil {
			c.log.Error().Err(err).Msg("Failed to encode bid token")
		}
		token = t
	}

	c.spawn(func() { cb(token) })
}

// SetSubjectToGDPR implements partner.SDK
func (c *Client) SetSubjectToGDPR(subject bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.privacy.subjectToGDPR = &subject
}

// SetConsentConfig implements partner.SDK
func (c *Client) SetConsentConfig(hasConsent bool, consentString string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.privacy.hasConsent = hasConsent
	c.privacy.consentString = consentString
}

// SetUSPrivacyString implements partner.SDK
func (c *Client) SetUSPrivacyString(usPrivacy string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.privacy.usPrivacy = usPrivacy
}

// SetCoppa implements partner.SDK
func (c *Client) SetCoppa(coppa bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.privacy.coppa = coppa
}

// NewBannerView implements partner.SDK
func (c *Client) NewBannerView() partner.BannerView {
	v := &bannerView{}
	v.ad.client = c
	c.register(v)
	return v
}

// NewInterstitialAd implements partner.SDK
func (c *Client) NewInterstitialAd() partner.InterstitialAd {
	a := &interstitialAd{}
	a.ad.client = c
	c.register(a)
	return a
}

// NewRewardedAd implements partner.SDK
func (c *Client) NewRewardedAd() partner.RewardedAd {
	a := &rewardedAd{}
	a.ad.client = c
	c.register(a)
	return a
}

func (c *Client) register(d destroyer) {
	c.adsMu.Lock()
	defer c.adsMu.Unlock()
	c.ads[d] = struct{}{}
}

func (c *Client) forget(d destroyer) {
	c.adsMu.Lock()
	defer c.adsMu.Unlock()
	delete(c.ads, d)
}

// LiveAds returns the number of ads created and not yet destroyed
func (c *Client) LiveAds() int {
	c.adsMu.Lock()
	defer c.adsMu.Unlock()
	return len(c.ads)
}

// spawn runs fn on a goroutine that Close waits for. Once the client is closed, fn still
// runs so its callback is delivered, but Close no longer tracks it.
func (c *Client) spawn(fn func()) {
	c.closeMu.Lock()
	if c.closed {
		c.closeMu.Unlock()
		go fn()
		return
	}
	c.wg.Add(1)
	c.closeMu.Unlock()

	go func() {
		defer c.wg.Done()
		fn()
	}()
}

func (c *Client) isClosed() bool {
	c.closeMu.Lock()
	defer c.closeMu.Unlock()
	return c.closed
}

// Close destroys live ads and waits for pending callbacks until ctx is done.
// Loads requested after Close fail with a connection error.
func (c *Client) Close(ctx context.Context) error {
	c.closeMu.Lock()
	c.closed = true
	c.closeMu.Unlock()

	c.adsMu.Lock()
	live := make([]destroyer, 0, len(c.ads))
	for d := range c.ads {
		live = append(live, d)
	}
	c.adsMu.Unlock()

	for _, d := range live {
		d.Destroy()
	}

	done := make(chan struct{})
	go func() {
		c.wg.Wait()
		c.breaker.Close()
		close(done)
	}()

	defer c.transport.close()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// fetch obtains a bid for req. Bid payloads from an external auction are rendered as-is.
func (c *Client) fetch(ctx context.Context, req partner.AdRequest) (openrtb.Bid, *partner.Error) {
	if req.BidPayload != "" {
		return openrtb.Bid{ID: uuid.NewString(), AdM: req.BidPayload}, nil
	}
	if c.isClosed() {
		return openrtb.Bid{}, partner.NewError(partner.ErrorCodeNoConnection, "client is closed")
	}
	if !c.IsInitialized() {
		return openrtb.Bid{}, partner.NewError(partner.ErrorCodeInternalUnknown, "sdk is not initialized")
	}
	if req.PlacementID == "" && req.PriceFloor == nil {
		c.log.Debug().Str("format", string(req.Format)).Msg("Requesting without placement or floor")
	}

	body, err := json.Marshal(c.buildBidRequest(req))
	if err != nil {
		return openrtb.Bid{}, partner.NewError(partner.ErrorCodeInternalUnknown, err.Error())
	}

	var bid openrtb.Bid
	err = c.breaker.Execute(func() error {
		b, perr := c.exchange(ctx, body)
		if perr != nil {
			return perr
		}
		bid = b
		return nil
	})
	if err == nil {
		return bid, nil
	}

	if errors.Is(err, circuitbreaker.ErrOpen) || errors.Is(err, circuitbreaker.ErrTooManyRequests) {
		c.recorder().RecordPartnerRequest("circuit_open", 0)
		return openrtb.Bid{}, partner.NewError(partner.ErrorCodeNoConnection, err.Error())
	}

	var pe *partner.Error
	if errors.As(err, &pe) {
		return openrtb.Bid{}, pe
	}
	return openrtb.Bid{}, partner.NewError(partner.ErrorCodeInternalUnknown, err.Error())
}

// exchange posts a bid request and maps the outcome to a partner error
func (c *Client) exchange(ctx context.Context, body []byte) (openrtb.Bid, *partner.Error) {
	headers := http.Header{}
	headers.Set("Content-Type", "application/json;charset=utf-8")
	headers.Set("X-Openrtb-Version", "2.5")

	start := time.Now()
	resp, err := c.transport.do(ctx, http.MethodPost, c.cfg.Endpoint, body, headers, c.cfg.Timeout)
	latency := time.Since(start)

	if err != nil {
		perr := transportError(err)
		status := "error"
		if perr.Code == partner.ErrorCodeTimeout {
			status = "timeout"
		}
		c.recorder().RecordPartnerRequest(status, latency)
		c.log.Warn().Err(err).Dur("latency", latency).Msg("Ad server request failed")
		return openrtb.Bid{}, perr
	}

	c.recorder().RecordPartnerRequest(strconv.Itoa(resp.StatusCode), latency)

	switch {
	case resp.StatusCode == http.StatusNoContent:
		return openrtb.Bid{}, partner.NewError(partner.ErrorCodeNoContent, "no bid")
	case resp.StatusCode == http.StatusBadRequest:
		return openrtb.Bid{}, partner.NewError(partner.ErrorCodeBadContent, truncate(resp.Body))
	case resp.StatusCode >= http.StatusInternalServerError:
		return openrtb.Bid{}, partner.NewError(partner.ErrorCodeServer, "status "+strconv.Itoa(resp.StatusCode))
	case resp.StatusCode != http.StatusOK:
		return openrtb.Bid{}, partner.NewError(partner.ErrorCodeInternalUnknown, "status "+strconv.Itoa(resp.StatusCode))
	}

	var bidResp openrtb.BidResponse
	if err := json.Unmarshal(resp.Body, &bidResp); err != nil {
		return openrtb.Bid{}, partner.NewError(partner.ErrorCodeInternalUnknown, "malformed bid response: "+err.Error())
	}

	bid, ok := bidResp.FirstBid()
	if !ok || bid.AdM == "" {
		return openrtb.Bid{}, partner.NewError(partner.ErrorCodeNoContent, "no bid")
	}
	return bid, nil
}

// transportError maps a transport failure to a partner error
func transportError(err error) *partner.Error {
	if errors.Is(err, context.DeadlineExceeded) {
		return partner.NewError(partner.ErrorCodeTimeout, err.Error())
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return partner.NewError(partner.ErrorCodeTimeout, err.Error())
	}
	if errors.Is(err, errResponseTooLarge) {
		return partner.NewError(partner.ErrorCodeBadContent, err.Error())
	}
	return partner.NewError(partner.ErrorCodeNoConnection, err.Error())
}

// isOutage reports whether err should count against the circuit breaker
func isOutage(err error) bool {
	var pe *partner.Error
	if !errors.As(err, &pe) {
		return true
	}
	switch pe.Code {
	case partner.ErrorCodeNoConnection, partner.ErrorCodeServer, partner.ErrorCodeTimeout:
		return true
	default:
		return false
	}
}

func truncate(body []byte) string {
	const max = 256
	if len(body) > max {
		return string(body[:max])
	}
	return string(body)
}

// notify fires a win or billing notice URL in the background
func (c *Client) notify(uri string, price float64) {
	if uri == "" || c.isClosed() {
		return
	}
	uri = strings.ReplaceAll(uri, "${AUCTION_PRICE}", priceString(price))

	c.spawn(func() {
		ctx, cancel := context.WithTimeout(context.Background(), c.cfg.Timeout)
		defer cancel()
		if _, err := c.transport.do(ctx, http.MethodGet, uri, nil, nil, c.cfg.Timeout); err != nil {
			c.log.Debug().Err(err).Str("uri", uri).Msg("Notice URL failed")
		}
	})
}
