// Package openrtb provides the OpenRTB 2.5 subset spoken to the BidMachine ad server
package openrtb

import "encoding/json"

// BidRequest represents an OpenRTB 2.5 bid request
type BidRequest struct {
	ID     string          `json:"id"`
	Imp    []Imp           `json:"imp"`
	App    *App            `json:"app,omitempty"`
	Device *Device         `json:"device,omitempty"`
	User   *User           `json:"user,omitempty"`
	Test   int             `json:"test,omitempty"`
	TMax   int             `json:"tmax,omitempty"` // Max time in ms for bid response
	BApp   []string        `json:"bapp,omitempty"` // Blocked apps
	Regs   *Regs           `json:"regs,omitempty"`
	Ext    json.RawMessage `json:"ext,omitempty"`
}

// Imp represents an impression object
type Imp struct {
	ID                string          `json:"id"`
	Banner            *Banner         `json:"banner,omitempty"`
	Video             *Video          `json:"video,omitempty"`
	DisplayManager    string          `json:"displaymanager,omitempty"`
	DisplayManagerVer string          `json:"displaymanagerver,omitempty"`
	Instl             int             `json:"instl,omitempty"` // Interstitial flag
	TagID             string          `json:"tagid,omitempty"`
	BidFloor          float64         `json:"bidfloor,omitempty"`
	BidFloorCur       string          `json:"bidfloorcur,omitempty"`
	Secure            *int            `json:"secure,omitempty"`
	Exp               int             `json:"exp,omitempty"`
	Ext               json.RawMessage `json:"ext,omitempty"`
}

// ImpExt carries the BidMachine impression extension
type ImpExt struct {
	Rewarded int    `json:"rewarded,omitempty"`
	FloorID  string `json:"floor_id,omitempty"`
}

// Banner represents a banner impression
type Banner struct {
	Format []Format `json:"format,omitempty"`
	W      int      `json:"w,omitempty"`
	H      int      `json:"h,omitempty"`
	Pos    int      `json:"pos,omitempty"` // Ad position
	API    []int    `json:"api,omitempty"`
}

// Format represents size format
type Format struct {
	W int `json:"w,omitempty"`
	H int `json:"h,omitempty"`
}

// Video represents a fullscreen video placement
type Video struct {
	Mimes       []string `json:"mimes,omitempty"`
	W           int      `json:"w,omitempty"`
	H           int      `json:"h,omitempty"`
	Skip        *int     `json:"skip,omitempty"`
	Placement   int      `json:"placement,omitempty"`
	Protocols   []int    `json:"protocols,omitempty"`
	MinDuration int      `json:"minduration,omitempty"`
	MaxDuration int      `json:"maxduration,omitempty"`
}

// App represents a mobile application
type App struct {
	ID        string     `json:"id,omitempty"`
	Name      string     `json:"name,omitempty"`
	Bundle    string     `json:"bundle,omitempty"`
	Domain    string     `json:"domain,omitempty"`
	StoreURL  string     `json:"storeurl,omitempty"`
	Cat       []string   `json:"cat,omitempty"`
	Ver       string     `json:"ver,omitempty"`
	Paid      int        `json:"paid,omitempty"`
	Publisher *Publisher `json:"publisher,omitempty"`
	Keywords  string     `json:"keywords,omitempty"`
}

// Publisher represents a publisher
type Publisher struct {
	ID     string   `json:"id,omitempty"`
	Name   string   `json:"name,omitempty"`
	Cat    []string `json:"cat,omitempty"`
	Domain string   `json:"domain,omitempty"`
}

// Device represents a user device
type Device struct {
	UA         string `json:"ua,omitempty"`
	Geo        *Geo   `json:"geo,omitempty"`
	Lmt        *int   `json:"lmt,omitempty"`
	IP         string `json:"ip,omitempty"`
	DeviceType int    `json:"devicetype,omitempty"`
	OS         string `json:"os,omitempty"`
	OSV        string `json:"osv,omitempty"`
	IFA        string `json:"ifa,omitempty"`
}

// Geo represents geographic location
type Geo struct {
	Lat     float64 `json:"lat,omitempty"`
	Lon     float64 `json:"lon,omitempty"`
	Country string  `json:"country,omitempty"`
	City    string  `json:"city,omitempty"`
	ZIP     string  `json:"zip,omitempty"`
}

// User represents a user
type User struct {
	ID       string          `json:"id,omitempty"`
	YOB      int             `json:"yob,omitempty"`
	Gender   string          `json:"gender,omitempty"`
	Keywords string          `json:"keywords,omitempty"`
	Geo      *Geo            `json:"geo,omitempty"`
	Consent  string          `json:"consent,omitempty"`
	Ext      json.RawMessage `json:"ext,omitempty"`
}

// Regs represents regulations
type Regs struct {
	COPPA     int    `json:"coppa,omitempty"`
	GDPR      *int   `json:"gdpr,omitempty"`
	USPrivacy string `json:"us_privacy,omitempty"`
}
