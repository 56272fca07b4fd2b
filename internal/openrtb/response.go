package openrtb

import "encoding/json"

// BidResponse represents an OpenRTB 2.5 bid response
type BidResponse struct {
	ID      string          `json:"id"`
	SeatBid []SeatBid       `json:"seatbid,omitempty"`
	BidID   string          `json:"bidid,omitempty"`
	Cur     string          `json:"cur,omitempty"`
	NBR     int             `json:"nbr,omitempty"` // No-bid reason code
	Ext     json.RawMessage `json:"ext,omitempty"`
}

// SeatBid represents a seat bid
type SeatBid struct {
	Bid  []Bid  `json:"bid"`
	Seat string `json:"seat,omitempty"`
}

// Bid represents a bid
type Bid struct {
	ID      string          `json:"id"`
	ImpID   string          `json:"impid"`
	Price   float64         `json:"price"`
	NURL    string          `json:"nurl,omitempty"`
	BURL    string          `json:"burl,omitempty"`
	LURL    string          `json:"lurl,omitempty"`
	AdM     string          `json:"adm,omitempty"`
	AdID    string          `json:"adid,omitempty"`
	ADomain []string        `json:"adomain,omitempty"`
	CRID    string          `json:"crid,omitempty"`
	DealID  string          `json:"dealid,omitempty"`
	W       int             `json:"w,omitempty"`
	H       int             `json:"h,omitempty"`
	Exp     int             `json:"exp,omitempty"` // Seconds the bid stays valid
	Ext     json.RawMessage `json:"ext,omitempty"`
}

// FirstBid returns the first bid in the response, if any
func (r *BidResponse) FirstBid() (Bid, bool) {
	for _, sb := range r.SeatBid {
		if len(sb.Bid) > 0 {
			return sb.Bid[0], true
		}
	}
	return Bid{}, false
}

// NoBidReason represents no-bid reason codes (NBR) per OpenRTB 2.5 Section 5.24
type NoBidReason int

const (
	NoBidUnknown           NoBidReason = 0 // Unknown Error
	NoBidTechnicalError    NoBidReason = 1 // Technical Error
	NoBidInvalidRequest    NoBidReason = 2 // Invalid Request
	NoBidUnsupportedDevice NoBidReason = 6 // Unsupported Device
	NoBidBlockedPublisher  NoBidReason = 7 // Blocked Publisher or Site
)
