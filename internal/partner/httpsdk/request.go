package httpsdk

import (
	"encoding/json"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/thenexusengine/bidmachine_adapter/internal/openrtb"
	"github.com/thenexusengine/bidmachine_adapter/internal/partner"
)

// Fullscreen placements are requested at a portrait phone size
const (
	fullscreenWidth  = 320
	fullscreenHeight = 480
)

// buildBidRequest converts a placement request into an OpenRTB bid request
func (c *Client) buildBidRequest(req partner.AdRequest) *openrtb.BidRequest {
	c.mu.RLock()
	opts := c.opts
	sourceID := c.sourceID
	privacy := c.privacy
	c.mu.RUnlock()

	imp := openrtb.Imp{
		ID:                "1",
		TagID:             req.PlacementID,
		DisplayManager:    "bidmachine-go",
		DisplayManagerVer: Version,
	}

	impExt := openrtb.ImpExt{}
	if req.PriceFloor != nil {
		imp.BidFloor = req.PriceFloor.Price
		imp.BidFloorCur = "USD"
		impExt.FloorID = req.PriceFloor.ID
	}

	if size, ok := req.Format.BannerSize(); ok {
		w, h := size.Dimensions()
		imp.Banner = &openrtb.Banner{W: w, H: h, Format: []openrtb.Format{{W: w, H: h}}}
	} else {
		imp.Instl = 1
		imp.Banner = &openrtb.Banner{W: fullscreenWidth, H: fullscreenHeight}
		imp.Video = &openrtb.Video{
			Mimes: []string{"video/mp4"},
			W:     fullscreenWidth,
			H:     fullscreenHeight,
		}
		if req.Format == partner.AdsFormatRewarded {
			impExt.Rewarded = 1
		}
	}
	if impExt != (openrtb.ImpExt{}) {
		imp.Ext, _ = json.Marshal(impExt)
	}

	br := &openrtb.BidRequest{
		ID:   uuid.NewString(),
		Imp:  []openrtb.Imp{imp},
		App:  &openrtb.App{ID: sourceID},
		TMax: int(c.cfg.Timeout.Milliseconds()),
		Regs: buildRegs(privacy),
	}
	if opts.TestMode {
		br.Test = 1
	}

	if pub := opts.Publisher; pub != nil {
		br.App.Publisher = &openrtb.Publisher{
			ID:     pub.ID,
			Name:   pub.Name,
			Domain: pub.Domain,
			Cat:    pub.Categories,
		}
	}

	if t := opts.Targeting; t != nil {
		br.App.StoreURL = t.StoreURL
		br.App.Bundle = t.StoreID
		if t.Paid {
			br.App.Paid = 1
		}
		br.BApp = t.BlockedApps

		br.User = &openrtb.User{
			ID:       t.UserID,
			YOB:      t.BirthYear,
			Gender:   t.Gender,
			Keywords: strings.Join(t.Keywords, ","),
		}
		if t.Country != "" {
			br.Device = &openrtb.Device{Geo: &openrtb.Geo{Country: t.Country}}
		}
	}

	if privacy.consentString != "" {
		if br.User == nil {
			br.User = &openrtb.User{}
		}
		br.User.Consent = privacy.consentString
	}

	return br
}

func buildRegs(p privacyState) *openrtb.Regs {
	regs := &openrtb.Regs{USPrivacy: p.usPrivacy}
	if p.coppa {
		regs.COPPA = 1
	}
	if p.subjectToGDPR != nil {
		gdpr := 0
		if *p.subjectToGDPR {
			gdpr = 1
		}
		regs.GDPR = &gdpr
	}
	if *regs == (openrtb.Regs{}) {
		return nil
	}
	return regs
}

// priceString formats a clearing price for notice macros
func priceString(price float64) string {
	return strconv.FormatFloat(price, 'f', -1, 64)
}
