package endpoints

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/thenexusengine/bidmachine_adapter/internal/adapter"
	"github.com/thenexusengine/bidmachine_adapter/internal/mediation"
	"github.com/thenexusengine/bidmachine_adapter/internal/middleware"
	"github.com/thenexusengine/bidmachine_adapter/internal/partner"
	"github.com/thenexusengine/bidmachine_adapter/internal/partner/partnertest"
	"github.com/thenexusengine/bidmachine_adapter/internal/storage"
)

// stubStore is a CredentialStore returning fixed results
type stubStore struct {
	records map[string]*storage.Credentials
	err     error
}

func (s *stubStore) Get(_ context.Context, appID string) (*storage.Credentials, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.records[appID], nil
}

func (s *stubStore) Put(context.Context, *storage.Credentials) error { return nil }
func (s *stubStore) Delete(context.Context, string) error            { return nil }

// consentLog records consent signals
type consentLog struct {
	mu      sync.Mutex
	signals map[string]bool
}

func (c *consentLog) RecordConsentSignal(signalType string, hasConsent bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.signals == nil {
		c.signals = map[string]bool{}
	}
	c.signals[signalType] = hasConsent
}

type harness struct {
	sdk     *partnertest.SDK
	handler *AdapterHandler
	mux     *http.ServeMux
}

func newHarness(t *testing.T, store storage.CredentialStore, defaultSourceID string) *harness {
	t.Helper()
	sdk := partnertest.New()
	a := adapter.New(sdk, adapter.Config{})
	h := NewAdapterHandler(a, NewCredentialResolver(store, defaultSourceID), nil, 2*time.Second)
	mux := http.NewServeMux()
	h.Register(mux)
	return &harness{sdk: sdk, handler: h, mux: mux}
}

func (h *harness) post(t *testing.T, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	return h.postWithContext(t, context.Background(), path, body)
}

func (h *harness) postWithContext(t *testing.T, ctx context.Context, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("Failed to encode body: %v", err)
		}
	}
	req := httptest.NewRequest(http.MethodPost, path, &buf).WithContext(ctx)
	rec := httptest.NewRecorder()
	h.mux.ServeHTTP(rec, req)
	return rec
}

func (h *harness) setup(t *testing.T) {
	t.Helper()
	rec := h.post(t, "/v1/setup", map[string]any{"credentials": map[string]any{"source_id": "42"}})
	if rec.Code != http.StatusOK {
		t.Fatalf("Setup failed: %d %s", rec.Code, rec.Body.String())
	}
}

func decodeBody[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(rec.Body.Bytes(), &v); err != nil {
		t.Fatalf("Failed to decode response %q: %v", rec.Body.String(), err)
	}
	return v
}

func TestSetupHandler(t *testing.T) {
	store := &stubStore{records: map[string]*storage.Credentials{
		"app-1": {AppID: "app-1", Values: map[string]any{"source_id": "from-store"}},
	}}

	tests := []struct {
		name         string
		store        storage.CredentialStore
		defaultID    string
		ctxAppID     string
		body         any
		wantStatus   int
		wantSourceID string
		wantCode     mediation.ErrorCode
	}{
		{
			name:         "inline credentials",
			store:        store,
			body:         map[string]any{"app_id": "app-1", "credentials": map[string]any{"source_id": "inline"}},
			wantStatus:   http.StatusOK,
			wantSourceID: "inline",
		},
		{
			name:         "store lookup",
			store:        store,
			body:         map[string]any{"app_id": "app-1"},
			wantStatus:   http.StatusOK,
			wantSourceID: "from-store",
		},
		{
			name:         "app ID from API key",
			store:        store,
			ctxAppID:     "app-1",
			body:         map[string]any{},
			wantStatus:   http.StatusOK,
			wantSourceID: "from-store",
		},
		{
			name:         "default source ID",
			store:        store,
			defaultID:    "default",
			body:         map[string]any{"app_id": "unknown"},
			wantStatus:   http.StatusOK,
			wantSourceID: "default",
		},
		{
			name:       "no credentials",
			body:       nil,
			wantStatus: http.StatusBadRequest,
			wantCode:   mediation.ErrInitializationInvalidCredentials,
		},
		{
			name:       "store failure",
			store:      &stubStore{err: errors.New("db down")},
			body:       map[string]any{"app_id": "app-1"},
			wantStatus: http.StatusServiceUnavailable,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t, tt.store, tt.defaultID)

			ctx := context.Background()
			if tt.ctxAppID != "" {
				ctx = context.WithValue(ctx, middleware.AppIDKey, tt.ctxAppID)
			}
			rec := h.postWithContext(t, ctx, "/v1/setup", tt.body)

			if rec.Code != tt.wantStatus {
				t.Fatalf("Expected status %d, got %d: %s", tt.wantStatus, rec.Code, rec.Body.String())
			}
			if tt.wantSourceID != "" && h.sdk.SourceID != tt.wantSourceID {
				t.Errorf("Expected source ID %q, got %q", tt.wantSourceID, h.sdk.SourceID)
			}
			if tt.wantCode != "" {
				resp := decodeBody[errorResponse](t, rec)
				if resp.Code != tt.wantCode {
					t.Errorf("Expected code %s, got %s", tt.wantCode, resp.Code)
				}
			}
			if tt.wantStatus == http.StatusOK {
				resp := decodeBody[setupResponse](t, rec)
				if resp.PartnerID != "bidmachine" || resp.PartnerSDKVersion != "3.0.1" {
					t.Errorf("Unexpected identity: %+v", resp)
				}
			}
		})
	}
}

func TestBidTokenHandler(t *testing.T) {
	h := newHarness(t, nil, "")
	h.sdk.Tokens[partner.AdsFormatRewarded] = "tok-123"

	rec := h.post(t, "/v1/bid-token", mediation.PreBidRequest{Format: mediation.AdFormatRewarded})
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rec.Code)
	}
	resp := decodeBody[bidTokenResponse](t, rec)
	if resp.BidderInformation["token"] != "tok-123" {
		t.Errorf("Expected token tok-123, got %v", resp.BidderInformation)
	}

	rec = h.post(t, "/v1/bid-token", mediation.PreBidRequest{Format: mediation.AdFormatAdaptiveBanner})
	resp = decodeBody[bidTokenResponse](t, rec)
	if len(resp.BidderInformation) != 0 {
		t.Errorf("Expected empty bidder information, got %v", resp.BidderInformation)
	}
}

func TestLoadShowInvalidate(t *testing.T) {
	h := newHarness(t, nil, "")
	h.setup(t)

	rec := h.post(t, "/v1/load", mediation.AdLoadRequest{
		Format:           mediation.AdFormatInterstitial,
		PartnerPlacement: "placement-1",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("Load failed: %d %s", rec.Code, rec.Body.String())
	}
	loaded := decodeBody[loadResponse](t, rec)
	if loaded.Identifier == "" {
		t.Fatal("Expected a generated identifier")
	}
	if h.handler.Ads().Len() != 1 {
		t.Fatalf("Expected one registered ad, got %d", h.handler.Ads().Len())
	}

	rec = h.post(t, "/v1/show", adRequest{Identifier: loaded.Identifier})
	if rec.Code != http.StatusOK {
		t.Fatalf("Show failed: %d %s", rec.Code, rec.Body.String())
	}
	ad := h.sdk.LastInterstitial()
	if ad.ShowCount() != 1 {
		t.Errorf("Expected one show, got %d", ad.ShowCount())
	}

	rec = h.post(t, "/v1/invalidate", adRequest{Identifier: loaded.Identifier})
	if rec.Code != http.StatusOK {
		t.Fatalf("Invalidate failed: %d %s", rec.Code, rec.Body.String())
	}
	if ad.DestroyCount() != 1 {
		t.Errorf("Expected one destroy, got %d", ad.DestroyCount())
	}
	if h.handler.Ads().Len() != 0 {
		t.Errorf("Expected registry to be empty, got %d", h.handler.Ads().Len())
	}
}

func TestLoadHandler_KeepsIdentifier(t *testing.T) {
	h := newHarness(t, nil, "")
	h.setup(t)

	rec := h.post(t, "/v1/load", mediation.AdLoadRequest{
		Format:     mediation.AdFormatBanner,
		BannerSize: &mediation.BannerSize{Width: 320, Height: 50},
		Identifier: "load-1",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("Load failed: %d %s", rec.Code, rec.Body.String())
	}
	if _, ok := h.handler.Ads().Get("load-1"); !ok {
		t.Error("Expected ad under the request identifier")
	}
}

func TestLoadHandler_Failures(t *testing.T) {
	tests := []struct {
		name       string
		request    mediation.AdLoadRequest
		script     func(v *partnertest.BannerView)
		wantStatus int
		wantCode   mediation.ErrorCode
	}{
		{
			name:       "unsupported format",
			request:    mediation.AdLoadRequest{Format: mediation.AdFormatRewardedInterstitial},
			wantStatus: http.StatusBadRequest,
			wantCode:   mediation.ErrLoadUnsupportedAdFormat,
		},
		{
			name:    "no fill",
			request: mediation.AdLoadRequest{Format: mediation.AdFormatBanner},
			script: func(v *partnertest.BannerView) {
				v.Listener().OnAdLoadFailed(v, partner.NewError(partner.ErrorCodeNoContent, "no bid"))
			},
			wantStatus: http.StatusNotFound,
			wantCode:   mediation.ErrLoadNoFill,
		},
		{
			name:    "server error",
			request: mediation.AdLoadRequest{Format: mediation.AdFormatBanner},
			script: func(v *partnertest.BannerView) {
				v.Listener().OnAdLoadFailed(v, partner.NewError(partner.ErrorCodeServer, "502"))
			},
			wantStatus: http.StatusBadGateway,
			wantCode:   mediation.ErrLoadServerError,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t, nil, "")
			h.sdk.OnBannerLoad = tt.script
			h.setup(t)

			rec := h.post(t, "/v1/load", tt.request)
			if rec.Code != tt.wantStatus {
				t.Fatalf("Expected status %d, got %d: %s", tt.wantStatus, rec.Code, rec.Body.String())
			}
			if resp := decodeBody[errorResponse](t, rec); resp.Code != tt.wantCode {
				t.Errorf("Expected code %s, got %s", tt.wantCode, resp.Code)
			}
			if h.handler.Ads().Len() != 0 {
				t.Error("Expected failed load not to be registered")
			}
		})
	}
}

func TestShowHandler_UnknownIdentifier(t *testing.T) {
	h := newHarness(t, nil, "")

	rec := h.post(t, "/v1/show", adRequest{Identifier: "missing"})
	if rec.Code != http.StatusNotFound {
		t.Fatalf("Expected 404, got %d", rec.Code)
	}
	if resp := decodeBody[errorResponse](t, rec); resp.Code != mediation.ErrShowAdNotFound {
		t.Errorf("Expected %s, got %s", mediation.ErrShowAdNotFound, resp.Code)
	}
}

func TestShowHandler_NotReady(t *testing.T) {
	h := newHarness(t, nil, "")
	h.setup(t)

	rec := h.post(t, "/v1/load", mediation.AdLoadRequest{Format: mediation.AdFormatRewarded, Identifier: "r-1"})
	if rec.Code != http.StatusOK {
		t.Fatalf("Load failed: %d", rec.Code)
	}
	h.sdk.LastRewarded().SetReady(false)

	rec = h.post(t, "/v1/show", adRequest{Identifier: "r-1"})
	if rec.Code != http.StatusConflict {
		t.Fatalf("Expected 409, got %d", rec.Code)
	}
}

func TestInvalidateHandler_UnknownIdentifier(t *testing.T) {
	h := newHarness(t, nil, "")

	rec := h.post(t, "/v1/invalidate", adRequest{Identifier: "missing"})
	if rec.Code != http.StatusOK {
		t.Errorf("Expected invalidating an unknown ad to succeed, got %d", rec.Code)
	}
}

func TestDismissRetiresAd(t *testing.T) {
	h := newHarness(t, nil, "")
	h.setup(t)

	rec := h.post(t, "/v1/load", mediation.AdLoadRequest{Format: mediation.AdFormatInterstitial, Identifier: "i-1"})
	if rec.Code != http.StatusOK {
		t.Fatalf("Load failed: %d", rec.Code)
	}

	ad := h.sdk.LastInterstitial()
	ad.Listener().OnAdClosed(ad, true)

	if _, ok := h.handler.Ads().Get("i-1"); ok {
		t.Error("Expected dismissed ad to leave the registry")
	}
}

func TestPrivacyHandler(t *testing.T) {
	h := newHarness(t, nil, "")
	consent := &consentLog{}
	h.handler.SetConsentRecorder(consent)

	applies, coppa := true, true
	rec := h.post(t, "/v1/privacy", privacyRequest{
		GDPRApplies: &applies,
		GDPRConsent: mediation.GDPRConsentGranted,
		CCPA:        &ccpaSignal{HasConsent: false, PrivacyString: "1YY-"},
		COPPA:       &coppa,
		Consents:    map[mediation.ConsentKey]mediation.ConsentValue{mediation.ConsentKeyUSP: "1YN-"},
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rec.Code)
	}

	if h.sdk.GDPRSubject == nil || !*h.sdk.GDPRSubject {
		t.Error("Expected GDPR applicability to be relayed")
	}
	if len(h.sdk.Consents) == 0 || !h.sdk.Consents[0].HasConsent {
		t.Errorf("Expected granted GDPR consent, got %+v", h.sdk.Consents)
	}
	if len(h.sdk.USPrivacy) != 2 || h.sdk.USPrivacy[0] != "1YY-" || h.sdk.USPrivacy[1] != "1YN-" {
		t.Errorf("Expected CCPA then consent map USP strings, got %v", h.sdk.USPrivacy)
	}
	if h.sdk.Coppa == nil || !*h.sdk.Coppa {
		t.Error("Expected COPPA to be relayed")
	}
	if !consent.signals["gdpr"] || consent.signals["ccpa"] {
		t.Errorf("Unexpected consent signals: %v", consent.signals)
	}
	if _, ok := consent.signals[string(mediation.ConsentKeyUSP)]; !ok {
		t.Error("Expected consent map key to be recorded")
	}
}

func TestHandler_RequestValidation(t *testing.T) {
	h := newHarness(t, nil, "")

	t.Run("method not allowed", func(t *testing.T) {
		rec := httptest.NewRecorder()
		h.mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/load", nil))
		if rec.Code != http.StatusMethodNotAllowed {
			t.Errorf("Expected 405, got %d", rec.Code)
		}
	})

	t.Run("invalid JSON", func(t *testing.T) {
		rec := httptest.NewRecorder()
		h.mux.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/v1/load", bytes.NewBufferString("{")))
		if rec.Code != http.StatusBadRequest {
			t.Errorf("Expected 400, got %d", rec.Code)
		}
	})
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		code mediation.ErrorCode
		want int
	}{
		{mediation.ErrInitializationInvalidCredentials, http.StatusBadRequest},
		{mediation.ErrShowWrongResourceType, http.StatusBadRequest},
		{mediation.ErrLoadNoFill, http.StatusNotFound},
		{mediation.ErrShowAdNotFound, http.StatusNotFound},
		{mediation.ErrShowAdNotReady, http.StatusConflict},
		{mediation.ErrLoadAdExpired, http.StatusConflict},
		{mediation.ErrLoadTimeout, http.StatusGatewayTimeout},
		{mediation.ErrLoadAborted, http.StatusGatewayTimeout},
		{mediation.ErrLoadNoConnectivity, http.StatusBadGateway},
		{mediation.ErrPartnerError, http.StatusBadGateway},
		{"", http.StatusBadGateway},
	}

	for _, tt := range tests {
		t.Run(string(tt.code), func(t *testing.T) {
			if got := statusFor(tt.code); got != tt.want {
				t.Errorf("statusFor(%q) = %d, want %d", tt.code, got, tt.want)
			}
		})
	}
}
