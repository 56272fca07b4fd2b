// Package mediation defines the mediation platform contract that partner adapters conform to
package mediation

import "context"

// AdFormat is the mediation platform's ad format
type AdFormat string

const (
	AdFormatBanner               AdFormat = "banner"
	AdFormatAdaptiveBanner       AdFormat = "adaptive_banner"
	AdFormatInterstitial         AdFormat = "interstitial"
	AdFormatRewarded             AdFormat = "rewarded"
	AdFormatRewardedInterstitial AdFormat = "rewarded_interstitial"
)

// BannerSize is a requested banner size in pixels
type BannerSize struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

// PartnerConfiguration carries the credentials blob configured for a partner
type PartnerConfiguration struct {
	Credentials map[string]any `json:"credentials"`
}

// PreBidRequest describes a bid-token request
type PreBidRequest struct {
	Format             AdFormat `json:"format"`
	MediationPlacement string   `json:"mediation_placement"`
	PartnerPlacement   string   `json:"partner_placement"`
}

// AdLoadRequest describes a single ad load. It is immutable for the duration of a load.
type AdLoadRequest struct {
	PartnerPlacement   string         `json:"partner_placement"`
	MediationPlacement string         `json:"mediation_placement"`
	Format             AdFormat       `json:"format"`
	BannerSize         *BannerSize    `json:"banner_size,omitempty"`
	Adm                string         `json:"adm,omitempty"`
	Identifier         string         `json:"identifier"`
	PartnerSettings    map[string]any `json:"partner_settings,omitempty"`
}

// PartnerAd is the result of a successful load
type PartnerAd struct {
	Handle  AdHandle
	Details map[string]string
	Request AdLoadRequest
}

// PartnerAdListener receives ad events after a load has completed
type PartnerAdListener interface {
	OnPartnerAdImpression(ad PartnerAd)
	OnPartnerAdClicked(ad PartnerAd)
	OnPartnerAdRewarded(ad PartnerAd)
	OnPartnerAdDismissed(ad PartnerAd, err error)
	OnPartnerAdExpired(ad PartnerAd)
}

// GDPRConsentStatus is the user's GDPR consent
type GDPRConsentStatus string

const (
	GDPRConsentUnknown GDPRConsentStatus = "unknown"
	GDPRConsentGranted GDPRConsentStatus = "granted"
	GDPRConsentDenied  GDPRConsentStatus = "denied"
)

// ConsentKey identifies a consent signal
type ConsentKey string

// ConsentValue is the value of a consent signal
type ConsentValue string

const (
	ConsentKeyGDPRConsentGiven ConsentKey = "gdpr_consent_given"
	ConsentKeyTCF              ConsentKey = "tcf"
	ConsentKeyUSP              ConsentKey = "usp"

	ConsentValueGranted ConsentValue = "granted"
	ConsentValueDenied  ConsentValue = "denied"
)

// PartnerAdapter is implemented by every partner adapter
type PartnerAdapter interface {
	PartnerID() string
	PartnerDisplayName() string
	PartnerSDKVersion() string
	AdapterVersion() string

	Setup(ctx context.Context, cfg PartnerConfiguration) error
	FetchBidderInformation(ctx context.Context, req PreBidRequest) (map[string]string, error)
	Load(ctx context.Context, req AdLoadRequest, listener PartnerAdListener) (PartnerAd, error)
	Show(ctx context.Context, ad PartnerAd) error
	Invalidate(ctx context.Context, ad PartnerAd) error

	SetGDPR(applies *bool, status GDPRConsentStatus)
	SetCCPAConsent(hasGrantedConsent bool, privacyString string)
	SetUserSubjectToCOPPA(isSubject bool)
	SetConsents(consents map[ConsentKey]ConsentValue, modified []ConsentKey)
}

// AdHandle is an opaque reference to a partner ad instance. Adapters provide one concrete
// variant per ad kind they load.
type AdHandle interface {
	AdKind() AdFormat
}
