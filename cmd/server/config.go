package main

import (
	"flag"
	"os"
	"strconv"
	"time"

	"github.com/thenexusengine/bidmachine_adapter/internal/adapter"
	"github.com/thenexusengine/bidmachine_adapter/internal/config"
	"github.com/thenexusengine/bidmachine_adapter/internal/middleware"
	"github.com/thenexusengine/bidmachine_adapter/internal/partner/httpsdk"
	"github.com/thenexusengine/bidmachine_adapter/internal/storage"
)

// ServerConfig holds all harness configuration
type ServerConfig struct {
	// Server
	Port             string
	OperationTimeout time.Duration
	MaxBodySize      int64
	APIKeys          map[string]string

	// Partner ad server
	PartnerEndpoint string
	PartnerTimeout  time.Duration
	AdTTL           time.Duration
	SimulateClicks  bool

	// BidMachine
	TestMode bool
	Logging  bool
	SourceID string

	// Credentials
	RedisURL       string
	CredentialsTTL time.Duration
	DatabaseConfig *storage.DBConfig
}

// ParseConfig parses configuration from flags and environment variables
func ParseConfig() *ServerConfig {
	port := flag.String("port", getEnvOrDefault("ADAPTER_PORT", "8000"), "Server port")
	endpoint := flag.String("partner-endpoint", getEnvOrDefault("PARTNER_ENDPOINT", "http://localhost:8081/openrtb2/auction"), "BidMachine ad server endpoint")
	partnerTimeout := flag.Duration("partner-timeout", getEnvDurationOrDefault("PARTNER_TIMEOUT", config.PartnerDefaultTimeout), "Partner ad request timeout")
	opTimeout := flag.Duration("operation-timeout", getEnvDurationOrDefault("OPERATION_TIMEOUT", config.DefaultOperationTimeout), "Maximum wait for a partner callback")
	testMode := flag.Bool("test-mode", getEnvBoolOrDefault("BIDMACHINE_TEST_MODE", false), "Request BidMachine test ads")
	simulateClicks := flag.Bool("simulate-clicks", getEnvBoolOrDefault("PARTNER_SIMULATE_CLICKS", false), "Report a click on every shown ad")
	flag.Parse()

	cfg := &ServerConfig{
		Port:             *port,
		OperationTimeout: *opTimeout,
		MaxBodySize:      getEnvInt64OrDefault("MAX_REQUEST_SIZE", config.DefaultMaxBodySize),
		APIKeys:          middleware.ParseAPIKeys(os.Getenv("API_KEYS")),
		PartnerEndpoint:  *endpoint,
		PartnerTimeout:   *partnerTimeout,
		AdTTL:            getEnvDurationOrDefault("PARTNER_AD_TTL", config.PartnerDefaultAdTTL),
		SimulateClicks:   *simulateClicks,
		TestMode:         *testMode,
		Logging:          getEnvBoolOrDefault("BIDMACHINE_LOGGING", false),
		SourceID:         os.Getenv("BIDMACHINE_SOURCE_ID"),
		RedisURL:         os.Getenv("REDIS_URL"),
		CredentialsTTL:   getEnvDurationOrDefault("CREDENTIALS_CACHE_TTL", 10*time.Minute),
	}

	if dbHost := os.Getenv("DB_HOST"); dbHost != "" {
		cfg.DatabaseConfig = &storage.DBConfig{
			Host:     dbHost,
			Port:     getEnvOrDefault("DB_PORT", "5432"),
			User:     getEnvOrDefault("DB_USER", "mediation"),
			Password: getEnvOrDefault("DB_PASSWORD", ""),
			Name:     getEnvOrDefault("DB_NAME", "mediation"),
			SSLMode:  getEnvOrDefault("DB_SSL_MODE", "disable"),
		}
	}

	return cfg
}

// ToPartnerConfig converts ServerConfig to the ad server client configuration
func (c *ServerConfig) ToPartnerConfig() httpsdk.Config {
	cfg := httpsdk.DefaultConfig(c.PartnerEndpoint)
	if c.PartnerTimeout > 0 {
		cfg.Timeout = c.PartnerTimeout
	}
	if c.AdTTL > 0 {
		cfg.AdTTL = c.AdTTL
	}
	cfg.SimulateClicks = c.SimulateClicks
	return cfg
}

// ToAdapterConfig converts ServerConfig to the adapter configuration
func (c *ServerConfig) ToAdapterConfig() adapter.Config {
	return adapter.Config{
		TestMode: c.TestMode,
		Logging:  c.Logging,
	}
}

// getEnvOrDefault returns the environment variable value or a default
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvBoolOrDefault returns the environment variable as bool or a default
func getEnvBoolOrDefault(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value == "true" || value == "1" || value == "yes"
}

// getEnvDurationOrDefault parses a duration such as "500ms" or falls back to a default
func getEnvDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	d, err := time.ParseDuration(os.Getenv(key))
	if err != nil || d <= 0 {
		return defaultValue
	}
	return d
}

func getEnvInt64OrDefault(key string, defaultValue int64) int64 {
	n, err := strconv.ParseInt(os.Getenv(key), 10, 64)
	if err != nil || n <= 0 {
		return defaultValue
	}
	return n
}
