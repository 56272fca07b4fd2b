package adapter

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/thenexusengine/bidmachine_adapter/internal/config"
	"github.com/thenexusengine/bidmachine_adapter/internal/mediation"
	"github.com/thenexusengine/bidmachine_adapter/internal/partner"
	"github.com/thenexusengine/bidmachine_adapter/pkg/logger"
)

func (a *Adapter) loadInterstitial(ctx context.Context, req mediation.AdLoadRequest, listener mediation.PartnerAdListener) (mediation.PartnerAd, error) {
	p := newPending[mediation.PartnerAd]()

	ad := a.sdk.NewInterstitialAd()
	a.trackInterstitial(req.Identifier, ad)
	ad.Load(ctx, buildAdRequest(req, partner.AdsFormatInterstitial), &interstitialListener{
		adapter:  a,
		request:  req,
		listener: listener,
		pending:  p,
		log:      logger.Ad(config.PartnerID, string(req.Format), req.Identifier),
	})

	return awaitLoad(ctx, p)
}

func (a *Adapter) loadRewarded(ctx context.Context, req mediation.AdLoadRequest, listener mediation.PartnerAdListener) (mediation.PartnerAd, error) {
	p := newPending[mediation.PartnerAd]()

	ad := a.sdk.NewRewardedAd()
	a.trackRewarded(req.Identifier, ad)
	ad.Load(ctx, buildAdRequest(req, partner.AdsFormatRewarded), &rewardedListener{
		adapter:  a,
		request:  req,
		listener: listener,
		pending:  p,
		log:      logger.Ad(config.PartnerID, string(req.Format), req.Identifier),
	})

	return awaitLoad(ctx, p)
}

// interstitialListener resolves the load once and forwards later events. The ad is untracked
// and destroyed on load failure, show failure, expiry and close.
type interstitialListener struct {
	adapter  *Adapter
	request  mediation.AdLoadRequest
	listener mediation.PartnerAdListener
	pending  *pending[mediation.PartnerAd]
	log      zerolog.Logger
}

func (l *interstitialListener) partnerAd(ad partner.InterstitialAd) mediation.PartnerAd {
	return mediation.PartnerAd{
		Handle:  InterstitialHandle{Ad: ad},
		Details: map[string]string{},
		Request: l.request,
	}
}

func (l *interstitialListener) release(ad partner.InterstitialAd) {
	l.adapter.untrackInterstitial(l.request.Identifier, ad)
	ad.Destroy()
}

func (l *interstitialListener) OnAdLoaded(ad partner.InterstitialAd) {
	if l.pending.resolve(l.partnerAd(ad)) {
		return
	}
	if l.pending.abandoned() {
		l.log.Warn().Str("event", "load_succeeded").Msg("Releasing interstitial loaded after the load was abandoned")
		l.release(ad)
	}
}

func (l *interstitialListener) OnAdLoadFailed(ad partner.InterstitialAd, err *partner.Error) {
	if l.pending.delivered() {
		l.log.Debug().Str("event", "load_failed").Msg("Ignoring load failure after resolution")
		return
	}
	l.release(ad)
	l.pending.reject(translateError(err))
}

func (l *interstitialListener) OnAdShowFailed(ad partner.InterstitialAd, err *partner.Error) {
	l.log.Error().Err(err).Str("event", "show_failed").Msg("Interstitial failed to show")
	l.release(ad)
}

func (l *interstitialListener) OnAdImpression(ad partner.InterstitialAd) {
	l.log.Debug().Str("event", "did_track_impression").Msg("Interstitial impression")
	l.adapter.metrics.RecordAdEvent(string(mediation.AdFormatInterstitial), "impression")
	l.listener.OnPartnerAdImpression(l.partnerAd(ad))
}

func (l *interstitialListener) OnAdClicked(ad partner.InterstitialAd) {
	l.log.Debug().Str("event", "did_click").Msg("Interstitial clicked")
	l.adapter.metrics.RecordAdEvent(string(mediation.AdFormatInterstitial), "click")
	l.listener.OnPartnerAdClicked(l.partnerAd(ad))
}

func (l *interstitialListener) OnAdExpired(ad partner.InterstitialAd) {
	l.log.Debug().Str("event", "did_expire").Msg("Interstitial expired")
	l.adapter.metrics.RecordAdEvent(string(mediation.AdFormatInterstitial), "expired")
	l.listener.OnPartnerAdExpired(l.partnerAd(ad))
	l.release(ad)
}

func (l *interstitialListener) OnAdClosed(ad partner.InterstitialAd, _ bool) {
	l.log.Debug().Str("event", "did_dismiss").Msg("Interstitial closed")
	l.adapter.metrics.RecordAdEvent(string(mediation.AdFormatInterstitial), "dismiss")
	l.listener.OnPartnerAdDismissed(l.partnerAd(ad), nil)
	l.release(ad)
}

// rewardedListener mirrors interstitialListener and also forwards rewards
type rewardedListener struct {
	adapter  *Adapter
	request  mediation.AdLoadRequest
	listener mediation.PartnerAdListener
	pending  *pending[mediation.PartnerAd]
	log      zerolog.Logger
}

func (l *rewardedListener) partnerAd(ad partner.RewardedAd) mediation.PartnerAd {
	return mediation.PartnerAd{
		Handle:  RewardedHandle{Ad: ad},
		Details: map[string]string{},
		Request: l.request,
	}
}

func (l *rewardedListener) release(ad partner.RewardedAd) {
	l.adapter.untrackRewarded(l.request.Identifier, ad)
	ad.Destroy()
}

func (l *rewardedListener) OnAdLoaded(ad partner.RewardedAd) {
	if l.pending.resolve(l.partnerAd(ad)) {
		return
	}
	if l.pending.abandoned() {
		l.log.Warn().Str("event", "load_succeeded").Msg("Releasing rewarded ad loaded after the load was abandoned")
		l.release(ad)
	}
}

func (l *rewardedListener) OnAdLoadFailed(ad partner.RewardedAd, err *partner.Error) {
	if l.pending.delivered() {
		l.log.Debug().Str("event", "load_failed").Msg("Ignoring load failure after resolution")
		return
	}
	l.release(ad)
	l.pending.reject(translateError(err))
}

func (l *rewardedListener) OnAdShowFailed(ad partner.RewardedAd, err *partner.Error) {
	l.log.Error().Err(err).Str("event", "show_failed").Msg("Rewarded ad failed to show")
	l.release(ad)
}

func (l *rewardedListener) OnAdImpression(ad partner.RewardedAd) {
	l.log.Debug().Str("event", "did_track_impression").Msg("Rewarded impression")
	l.adapter.metrics.RecordAdEvent(string(mediation.AdFormatRewarded), "impression")
	l.listener.OnPartnerAdImpression(l.partnerAd(ad))
}

func (l *rewardedListener) OnAdClicked(ad partner.RewardedAd) {
	l.log.Debug().Str("event", "did_click").Msg("Rewarded clicked")
	l.adapter.metrics.RecordAdEvent(string(mediation.AdFormatRewarded), "click")
	l.listener.OnPartnerAdClicked(l.partnerAd(ad))
}

func (l *rewardedListener) OnAdExpired(ad partner.RewardedAd) {
	l.log.Debug().Str("event", "did_expire").Msg("Rewarded expired")
	l.adapter.metrics.RecordAdEvent(string(mediation.AdFormatRewarded), "expired")
	l.listener.OnPartnerAdExpired(l.partnerAd(ad))
	l.release(ad)
}

func (l *rewardedListener) OnAdClosed(ad partner.RewardedAd, _ bool) {
	l.log.Debug().Str("event", "did_dismiss").Msg("Rewarded closed")
	l.adapter.metrics.RecordAdEvent(string(mediation.AdFormatRewarded), "dismiss")
	l.listener.OnPartnerAdDismissed(l.partnerAd(ad), nil)
	l.release(ad)
}

func (l *rewardedListener) OnAdRewarded(ad partner.RewardedAd) {
	l.log.Debug().Str("event", "did_reward").Msg("Rewarded reward earned")
	l.adapter.metrics.RecordAdEvent(string(mediation.AdFormatRewarded), "reward")
	l.listener.OnPartnerAdRewarded(l.partnerAd(ad))
}
