// Package config provides shared configuration constants for the BidMachine adapter
package config

import "time"

// Partner identity
const (
	// PartnerID is the mediation platform identifier for BidMachine
	PartnerID = "bidmachine"

	// PartnerDisplayName is the human readable partner name
	PartnerDisplayName = "BidMachine"

	// AdapterVersion is <mediation major>.<partner SDK version>.<adapter build>
	AdapterVersion = "5.3.0.1.0"
)

// Credential and settings keys
const (
	// CredentialSourceID is the credentials field holding the BidMachine source ID
	CredentialSourceID = "source_id"

	// BidTokenKey is the key of the token in bidder information
	BidTokenKey = "token"

	// PartnerSettingPriceFloor is the partner settings key holding an optional price floor
	PartnerSettingPriceFloor = "price_floor"
)

// Banner height breakpoints used to bucket requested sizes
const (
	// BannerHeightSmall is the minimum height for a 320x50 banner
	BannerHeightSmall = 50

	// BannerHeightLeaderboard is the minimum height for a 728x90 banner
	BannerHeightLeaderboard = 90

	// BannerHeightMediumRectangle is the minimum height for a 300x250 banner
	BannerHeightMediumRectangle = 250
)

// Server timeout defaults
const (
	// ServerReadTimeout is the maximum duration for reading the entire request
	ServerReadTimeout = 5 * time.Second

	// ServerWriteTimeout is the maximum duration before timing out writes of the response
	ServerWriteTimeout = 35 * time.Second

	// ServerIdleTimeout is the maximum time to wait for the next request when keep-alives are enabled
	ServerIdleTimeout = 120 * time.Second

	// ShutdownTimeout is the maximum time to wait for graceful shutdown
	ShutdownTimeout = 30 * time.Second

	// DefaultOperationTimeout bounds how long the harness waits for a partner callback
	DefaultOperationTimeout = 30 * time.Second
)

// Partner HTTP defaults
const (
	// PartnerDefaultTimeout is the default timeout for partner ad requests
	PartnerDefaultTimeout = 3 * time.Second

	// PartnerMaxResponseSize is the maximum partner response size (1MB)
	PartnerMaxResponseSize = 1024 * 1024

	// PartnerDefaultAdTTL is how long a loaded ad stays valid when the bid has no exp
	PartnerDefaultAdTTL = 30 * time.Minute
)

// Size limiting defaults
const (
	// DefaultMaxBodySize is the default maximum harness request body size (1MB)
	DefaultMaxBodySize = 1024 * 1024
)
