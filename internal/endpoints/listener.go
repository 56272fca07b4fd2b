package endpoints

import (
	"github.com/thenexusengine/bidmachine_adapter/internal/config"
	"github.com/thenexusengine/bidmachine_adapter/internal/mediation"
	"github.com/thenexusengine/bidmachine_adapter/pkg/logger"
)

// Ad event names used in logs
const (
	EventImpression = "impression"
	EventClick      = "click"
	EventReward     = "reward"
	EventDismiss    = "dismiss"
	EventExpired    = "expired"
)

// adListener logs the events of one load and retires dismissed or expired ads
type adListener struct {
	ads *AdRegistry
}

func (l *adListener) record(ad mediation.PartnerAd, event string, err error) {
	log := logger.Ad(config.PartnerID, string(ad.Request.Format), ad.Request.Identifier)
	entry := log.Info()
	if err != nil {
		entry = log.Warn().Err(err)
	}
	entry.Str("event", event).Msg("Ad event")
}

func (l *adListener) OnPartnerAdImpression(ad mediation.PartnerAd) {
	l.record(ad, EventImpression, nil)
}

func (l *adListener) OnPartnerAdClicked(ad mediation.PartnerAd) {
	l.record(ad, EventClick, nil)
}

func (l *adListener) OnPartnerAdRewarded(ad mediation.PartnerAd) {
	l.record(ad, EventReward, nil)
}

func (l *adListener) OnPartnerAdDismissed(ad mediation.PartnerAd, err error) {
	l.record(ad, EventDismiss, err)
	l.ads.Remove(ad.Request.Identifier)
}

func (l *adListener) OnPartnerAdExpired(ad mediation.PartnerAd) {
	l.record(ad, EventExpired, nil)
	l.ads.Remove(ad.Request.Identifier)
}
