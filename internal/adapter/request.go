package adapter

import (
	"encoding/json"
	"strconv"
	"strings"

	"github.com/thenexusengine/bidmachine_adapter/internal/config"
	"github.com/thenexusengine/bidmachine_adapter/internal/mediation"
	"github.com/thenexusengine/bidmachine_adapter/internal/partner"
)

// bannerSize buckets a requested banner into a fixed BidMachine size by height.
// Missing sizes and heights below the smallest breakpoint fall back to 320x50.
func bannerSize(size *mediation.BannerSize) partner.BannerSize {
	if size == nil {
		return partner.BannerSize320x50
	}
	switch h := size.Height; {
	case h >= config.BannerHeightMediumRectangle:
		return partner.BannerSize300x250
	case h >= config.BannerHeightLeaderboard:
		return partner.BannerSize728x90
	default:
		return partner.BannerSize320x50
	}
}

// buildAdRequest creates the partner request for a load. A non-empty bid payload wins and is
// sent alone; otherwise the partner placement and an optional price floor are used.
func buildAdRequest(req mediation.AdLoadRequest, format partner.AdsFormat) partner.AdRequest {
	adRequest := partner.AdRequest{Format: format}

	if req.Adm != "" {
		adRequest.BidPayload = req.Adm
		return adRequest
	}

	adRequest.PlacementID = req.PartnerPlacement
	if price, ok := priceFloor(req.PartnerSettings); ok {
		adRequest.PriceFloor = &partner.PriceFloor{
			ID:    req.Identifier,
			Price: price,
		}
	}
	return adRequest
}

// priceFloor reads a positive price floor from partner settings
func priceFloor(settings map[string]any) (float64, bool) {
	raw, ok := settings[config.PartnerSettingPriceFloor]
	if !ok {
		return 0, false
	}

	var price float64
	switch v := raw.(type) {
	case float64:
		price = v
	case float32:
		price = float64(v)
	case int:
		price = float64(v)
	case int64:
		price = float64(v)
	case json.Number:
		f, err := v.Float64()
		if err != nil {
			return 0, false
		}
		price = f
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return 0, false
		}
		price = f
	default:
		return 0, false
	}

	if price <= 0 {
		return 0, false
	}
	return price, true
}

// bidTokenFormat maps a mediation format to the partner token format
func bidTokenFormat(format mediation.AdFormat) (partner.AdsFormat, bool) {
	switch format {
	case mediation.AdFormatBanner:
		return partner.AdsFormatBanner320x50, true
	case mediation.AdFormatInterstitial:
		return partner.AdsFormatInterstitial, true
	case mediation.AdFormatRewarded:
		return partner.AdsFormatRewarded, true
	default:
		return "", false
	}
}
