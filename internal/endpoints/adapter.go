// Package endpoints provides the HTTP handlers of the adapter harness
package endpoints

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/thenexusengine/bidmachine_adapter/internal/config"
	"github.com/thenexusengine/bidmachine_adapter/internal/mediation"
	"github.com/thenexusengine/bidmachine_adapter/internal/middleware"
	"github.com/thenexusengine/bidmachine_adapter/pkg/logger"
)

type setupRequest struct {
	AppID       string         `json:"app_id,omitempty"`
	Credentials map[string]any `json:"credentials,omitempty"`
}

type setupResponse struct {
	PartnerID          string `json:"partner_id"`
	PartnerDisplayName string `json:"partner_display_name"`
	PartnerSDKVersion  string `json:"partner_sdk_version"`
	AdapterVersion     string `json:"adapter_version"`
}

type bidTokenResponse struct {
	BidderInformation map[string]string `json:"bidder_information"`
}

type loadResponse struct {
	Identifier string             `json:"identifier"`
	Format     mediation.AdFormat `json:"format"`
	Details    map[string]string  `json:"details,omitempty"`
}

type adRequest struct {
	Identifier string `json:"identifier"`
}

type ccpaSignal struct {
	HasConsent    bool   `json:"has_consent"`
	PrivacyString string `json:"privacy_string"`
}

type privacyRequest struct {
	GDPRApplies *bool                                           `json:"gdpr_applies,omitempty"`
	GDPRConsent mediation.GDPRConsentStatus                     `json:"gdpr_consent,omitempty"`
	CCPA        *ccpaSignal                                     `json:"ccpa,omitempty"`
	COPPA       *bool                                           `json:"coppa,omitempty"`
	Consents    map[mediation.ConsentKey]mediation.ConsentValue `json:"consents,omitempty"`
	Modified    []mediation.ConsentKey                          `json:"modified,omitempty"`
}

// ConsentRecorder counts relayed consent signals. *metrics.Metrics implements it.
type ConsentRecorder interface {
	RecordConsentSignal(signalType string, hasConsent bool)
}

type noopConsent struct{}

func (noopConsent) RecordConsentSignal(string, bool) {}

type errorResponse struct {
	Error string              `json:"error"`
	Code  mediation.ErrorCode `json:"code,omitempty"`
}

// AdapterHandler exposes a partner adapter over HTTP
type AdapterHandler struct {
	adapter     mediation.PartnerAdapter
	credentials *CredentialResolver
	ads         *AdRegistry
	consent     ConsentRecorder
	timeout     time.Duration
}

// NewAdapterHandler creates the handler. A zero timeout uses config.DefaultOperationTimeout.
func NewAdapterHandler(a mediation.PartnerAdapter, credentials *CredentialResolver, ads *AdRegistry, timeout time.Duration) *AdapterHandler {
	if credentials == nil {
		credentials = NewCredentialResolver(nil, "")
	}
	if ads == nil {
		ads = NewAdRegistry()
	}
	if timeout <= 0 {
		timeout = config.DefaultOperationTimeout
	}
	return &AdapterHandler{
		adapter:     a,
		credentials: credentials,
		ads:         ads,
		consent:     noopConsent{},
		timeout:     timeout,
	}
}

// SetConsentRecorder wires consent signal metrics
func (h *AdapterHandler) SetConsentRecorder(r ConsentRecorder) {
	if r == nil {
		r = noopConsent{}
	}
	h.consent = r
}

// Ads returns the registry of loaded ads
func (h *AdapterHandler) Ads() *AdRegistry {
	return h.ads
}

// Register mounts the handler routes on mux
func (h *AdapterHandler) Register(mux *http.ServeMux) {
	mux.HandleFunc("/v1/setup", post(h.Setup))
	mux.HandleFunc("/v1/bid-token", post(h.BidToken))
	mux.HandleFunc("/v1/load", post(h.Load))
	mux.HandleFunc("/v1/show", post(h.Show))
	mux.HandleFunc("/v1/invalidate", post(h.Invalidate))
	mux.HandleFunc("/v1/privacy", post(h.Privacy))
}

func (h *AdapterHandler) operationContext(r *http.Request) (context.Context, context.CancelFunc) {
	return context.WithTimeout(r.Context(), h.timeout)
}

// Setup resolves credentials and initializes the partner
func (h *AdapterHandler) Setup(w http.ResponseWriter, r *http.Request) {
	var req setupRequest
	if !decode(w, r, &req) {
		return
	}
	if req.AppID == "" {
		req.AppID = middleware.AppIDFromContext(r.Context())
	}

	ctx, cancel := h.operationContext(r)
	defer cancel()

	creds, err := h.credentials.Resolve(ctx, req.AppID, req.Credentials)
	if err != nil {
		log := logger.FromContext(r.Context())
		log.Error().Err(err).Str("app_id", req.AppID).Msg("Credential lookup failed")
		writeJSON(w, http.StatusServiceUnavailable, errorResponse{Error: "credential lookup failed"})
		return
	}

	if err := h.adapter.Setup(ctx, mediation.PartnerConfiguration{Credentials: creds}); err != nil {
		writeMediationError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, setupResponse{
		PartnerID:          h.adapter.PartnerID(),
		PartnerDisplayName: h.adapter.PartnerDisplayName(),
		PartnerSDKVersion:  h.adapter.PartnerSDKVersion(),
		AdapterVersion:     h.adapter.AdapterVersion(),
	})
}

// BidToken returns the bidder information for a pre-bid request
func (h *AdapterHandler) BidToken(w http.ResponseWriter, r *http.Request) {
	var req mediation.PreBidRequest
	if !decode(w, r, &req) {
		return
	}

	ctx, cancel := h.operationContext(r)
	defer cancel()

	info, err := h.adapter.FetchBidderInformation(ctx, req)
	if err != nil {
		writeJSON(w, http.StatusGatewayTimeout, errorResponse{Error: err.Error()})
		return
	}

	writeJSON(w, http.StatusOK, bidTokenResponse{BidderInformation: info})
}

// Load loads an ad and keeps it in the registry for show and invalidate
func (h *AdapterHandler) Load(w http.ResponseWriter, r *http.Request) {
	var req mediation.AdLoadRequest
	if !decode(w, r, &req) {
		return
	}
	if req.Identifier == "" {
		req.Identifier = uuid.NewString()
	}

	ctx, cancel := h.operationContext(r)
	defer cancel()
	ctx = logger.WithLoadID(ctx, req.Identifier)

	ad, err := h.adapter.Load(ctx, req, &adListener{ads: h.ads})
	if err != nil {
		writeMediationError(w, err)
		return
	}

	h.ads.Put(ad)
	writeJSON(w, http.StatusOK, loadResponse{
		Identifier: req.Identifier,
		Format:     req.Format,
		Details:    ad.Details,
	})
}

// Show shows a loaded ad. Unknown identifiers reach the adapter as an ad without a handle.
func (h *AdapterHandler) Show(w http.ResponseWriter, r *http.Request) {
	var req adRequest
	if !decode(w, r, &req) {
		return
	}

	ad, ok := h.ads.Get(req.Identifier)
	if !ok {
		ad = mediation.PartnerAd{Request: mediation.AdLoadRequest{Identifier: req.Identifier}}
	}

	ctx, cancel := h.operationContext(r)
	defer cancel()

	if err := h.adapter.Show(ctx, ad); err != nil {
		writeMediationError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"identifier": req.Identifier, "status": "shown"})
}

// Invalidate destroys a loaded ad and drops it from the registry
func (h *AdapterHandler) Invalidate(w http.ResponseWriter, r *http.Request) {
	var req adRequest
	if !decode(w, r, &req) {
		return
	}

	ad, ok := h.ads.Remove(req.Identifier)
	if !ok {
		ad = mediation.PartnerAd{Request: mediation.AdLoadRequest{Identifier: req.Identifier}}
	}

	ctx, cancel := h.operationContext(r)
	defer cancel()

	if err := h.adapter.Invalidate(ctx, ad); err != nil {
		writeMediationError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"identifier": req.Identifier, "status": "invalidated"})
}

// Privacy relays the privacy signals present in the request
func (h *AdapterHandler) Privacy(w http.ResponseWriter, r *http.Request) {
	var req privacyRequest
	if !decode(w, r, &req) {
		return
	}

	if req.GDPRApplies != nil || req.GDPRConsent != "" {
		h.adapter.SetGDPR(req.GDPRApplies, req.GDPRConsent)
		if req.GDPRConsent != "" && req.GDPRConsent != mediation.GDPRConsentUnknown {
			h.consent.RecordConsentSignal("gdpr", req.GDPRConsent == mediation.GDPRConsentGranted)
		}
	}
	if req.CCPA != nil {
		h.adapter.SetCCPAConsent(req.CCPA.HasConsent, req.CCPA.PrivacyString)
		h.consent.RecordConsentSignal("ccpa", req.CCPA.HasConsent)
	}
	if req.COPPA != nil {
		h.adapter.SetUserSubjectToCOPPA(*req.COPPA)
	}
	if len(req.Consents) > 0 {
		h.adapter.SetConsents(req.Consents, req.Modified)
		modified := req.Modified
		if modified == nil {
			for key := range req.Consents {
				modified = append(modified, key)
			}
		}
		for _, key := range modified {
			if v, ok := req.Consents[key]; ok {
				h.consent.RecordConsentSignal(string(key), v == mediation.ConsentValueGranted)
			}
		}
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// statusFor maps a mediation error code to an HTTP status
func statusFor(code mediation.ErrorCode) int {
	switch code {
	case mediation.ErrInitializationInvalidCredentials,
		mediation.ErrLoadUnsupportedAdFormat,
		mediation.ErrLoadInvalidAdRequest,
		mediation.ErrShowUnsupportedAdFormat,
		mediation.ErrShowWrongResourceType,
		mediation.ErrInvalidateWrongResourceType:
		return http.StatusBadRequest
	case mediation.ErrLoadNoFill, mediation.ErrShowAdNotFound:
		return http.StatusNotFound
	case mediation.ErrShowAdNotReady, mediation.ErrLoadAdExpired, mediation.ErrLoadAdAlreadyShown:
		return http.StatusConflict
	case mediation.ErrLoadTimeout, mediation.ErrLoadAborted:
		return http.StatusGatewayTimeout
	default:
		return http.StatusBadGateway
	}
}

func writeMediationError(w http.ResponseWriter, err error) {
	code := mediation.CodeOf(err)
	writeJSON(w, statusFor(code), errorResponse{Error: err.Error(), Code: code})
}

func post(fn http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			writeJSON(w, http.StatusMethodNotAllowed, errorResponse{Error: "method not allowed"})
			return
		}
		fn(w, r)
	}
}

// decode reads a JSON body into v and writes a 400 on failure. An empty body leaves v zero.
func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if r.Body == nil {
		return true
	}
	err := json.NewDecoder(r.Body).Decode(v)
	if err == nil || errors.Is(err, io.EOF) {
		return true
	}

	var maxErr *http.MaxBytesError
	if errors.As(err, &maxErr) {
		writeJSON(w, http.StatusRequestEntityTooLarge, errorResponse{Error: "request body too large"})
		return false
	}
	writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid JSON: " + err.Error()})
	return false
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log := logger.HTTP()
		log.Error().Err(err).Int("status", status).Msg("failed to encode response")
	}
}
