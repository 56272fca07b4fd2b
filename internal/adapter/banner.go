package adapter

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/thenexusengine/bidmachine_adapter/internal/config"
	"github.com/thenexusengine/bidmachine_adapter/internal/mediation"
	"github.com/thenexusengine/bidmachine_adapter/internal/partner"
	"github.com/thenexusengine/bidmachine_adapter/pkg/logger"
)

func (a *Adapter) loadBanner(ctx context.Context, req mediation.AdLoadRequest, listener mediation.PartnerAdListener) (mediation.PartnerAd, error) {
	size := bannerSize(req.BannerSize)
	p := newPending[mediation.PartnerAd]()

	view := a.sdk.NewBannerView()
	view.Load(ctx, buildAdRequest(req, size.AdsFormat()), &bannerListener{
		adapter:  a,
		request:  req,
		size:     size,
		listener: listener,
		pending:  p,
		log:      logger.Ad(config.PartnerID, string(req.Format), req.Identifier),
	})

	return awaitLoad(ctx, p)
}

// bannerListener resolves the load once and forwards later banner events.
// The view is destroyed on load or show failure only.
type bannerListener struct {
	adapter  *Adapter
	request  mediation.AdLoadRequest
	size     partner.BannerSize
	listener mediation.PartnerAdListener
	pending  *pending[mediation.PartnerAd]
	log      zerolog.Logger
}

func (l *bannerListener) partnerAd(view partner.BannerView) mediation.PartnerAd {
	return mediation.PartnerAd{
		Handle:  BannerHandle{View: view, Size: l.size},
		Details: map[string]string{"banner_size": l.size.String()},
		Request: l.request,
	}
}

func (l *bannerListener) OnAdLoaded(view partner.BannerView) {
	if l.pending.resolve(l.partnerAd(view)) {
		return
	}
	if l.pending.abandoned() {
		l.log.Warn().Str("event", "load_succeeded").Msg("Destroying banner loaded after the load was abandoned")
		view.Destroy()
	}
}

func (l *bannerListener) OnAdLoadFailed(view partner.BannerView, err *partner.Error) {
	if l.pending.delivered() {
		l.log.Debug().Str("event", "load_failed").Msg("Ignoring load failure after resolution")
		return
	}
	view.Destroy()
	l.pending.reject(translateError(err))
}

func (l *bannerListener) OnAdShowFailed(view partner.BannerView, err *partner.Error) {
	l.log.Error().Err(err).Str("event", "show_failed").Msg("Banner failed to show")
	view.Destroy()
}

func (l *bannerListener) OnAdImpression(view partner.BannerView) {
	l.log.Debug().Str("event", "did_track_impression").Msg("Banner impression")
	l.adapter.metrics.RecordAdEvent(string(mediation.AdFormatBanner), "impression")
	l.listener.OnPartnerAdImpression(l.partnerAd(view))
}

func (l *bannerListener) OnAdClicked(view partner.BannerView) {
	l.log.Debug().Str("event", "did_click").Msg("Banner clicked")
	l.adapter.metrics.RecordAdEvent(string(mediation.AdFormatBanner), "click")
	l.listener.OnPartnerAdClicked(l.partnerAd(view))
}

func (l *bannerListener) OnAdExpired(view partner.BannerView) {
	l.log.Debug().Str("event", "did_expire").Msg("Banner expired")
	l.adapter.metrics.RecordAdEvent(string(mediation.AdFormatBanner), "expired")
	l.listener.OnPartnerAdExpired(l.partnerAd(view))
}
