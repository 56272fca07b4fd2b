package adapter

import (
	"github.com/thenexusengine/bidmachine_adapter/internal/mediation"
)

// SetGDPR relays GDPR applicability and consent. Unknown consent leaves the SDK untouched.
func (a *Adapter) SetGDPR(applies *bool, status mediation.GDPRConsentStatus) {
	log := a.log()

	if applies != nil {
		a.sdk.SetSubjectToGDPR(*applies)
		log.Debug().Str("event", "gdpr_applicable").Bool("applies", *applies).Msg("GDPR applicability set")
	}

	if status == mediation.GDPRConsentUnknown || status == "" {
		return
	}

	a.privacyMu.Lock()
	tcf := a.tcfString
	a.privacyMu.Unlock()

	granted := status == mediation.GDPRConsentGranted
	a.sdk.SetConsentConfig(granted, tcf)
	log.Debug().Str("event", "gdpr_consent").Bool("granted", granted).Msg("GDPR consent set")
}

// SetCCPAConsent relays the US privacy string
func (a *Adapter) SetCCPAConsent(hasGrantedConsent bool, privacyString string) {
	a.sdk.SetUSPrivacyString(privacyString)
	a.log().Debug().
		Str("event", "ccpa_consent").
		Bool("granted", hasGrantedConsent).
		Str("us_privacy", privacyString).
		Msg("CCPA consent set")
}

// SetUserSubjectToCOPPA relays the COPPA flag
func (a *Adapter) SetUserSubjectToCOPPA(isSubject bool) {
	a.sdk.SetCoppa(isSubject)
	a.log().Debug().Str("event", "coppa").Bool("subject", isSubject).Msg("COPPA set")
}

// SetConsents relays the generic consent map. Only modified keys are relayed; a nil modified
// list treats every key present in consents as modified.
func (a *Adapter) SetConsents(consents map[mediation.ConsentKey]mediation.ConsentValue, modified []mediation.ConsentKey) {
	if modified == nil {
		for key := range consents {
			modified = append(modified, key)
		}
	}

	var gdprChanged, uspChanged bool
	for _, key := range modified {
		switch key {
		case mediation.ConsentKeyTCF, mediation.ConsentKeyGDPRConsentGiven:
			gdprChanged = true
		case mediation.ConsentKeyUSP:
			uspChanged = true
		}
	}

	if gdprChanged {
		tcf := string(consents[mediation.ConsentKeyTCF])
		a.privacyMu.Lock()
		a.tcfString = tcf
		a.privacyMu.Unlock()

		granted := consents[mediation.ConsentKeyGDPRConsentGiven] == mediation.ConsentValueGranted
		a.sdk.SetConsentConfig(granted, tcf)
		a.log().Debug().Str("event", "gdpr_consent").Bool("granted", granted).Msg("Consent config set")
	}

	if uspChanged {
		a.sdk.SetUSPrivacyString(string(consents[mediation.ConsentKeyUSP]))
		a.log().Debug().Str("event", "ccpa_consent").Msg("US privacy string set")
	}
}
