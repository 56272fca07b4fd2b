package main

import (
	"flag"
	"os"
	"testing"
	"time"
)

func TestParseConfig_Defaults(t *testing.T) {
	clearEnvVars(t)
	flag.CommandLine = flag.NewFlagSet(os.Args[0], flag.ContinueOnError)

	cfg := ParseConfig()

	if cfg.Port != "8000" {
		t.Errorf("Expected default port '8000', got '%s'", cfg.Port)
	}

	if cfg.PartnerEndpoint != "http://localhost:8081/openrtb2/auction" {
		t.Errorf("Expected default partner endpoint, got '%s'", cfg.PartnerEndpoint)
	}

	if cfg.PartnerTimeout != 3*time.Second {
		t.Errorf("Expected default partner timeout 3s, got %v", cfg.PartnerTimeout)
	}

	if cfg.OperationTimeout != 30*time.Second {
		t.Errorf("Expected default operation timeout 30s, got %v", cfg.OperationTimeout)
	}

	if cfg.AdTTL != 30*time.Minute {
		t.Errorf("Expected default ad TTL 30m, got %v", cfg.AdTTL)
	}

	if cfg.TestMode || cfg.Logging || cfg.SimulateClicks {
		t.Error("Expected test mode, logging and click simulation to be off by default")
	}

	if cfg.MaxBodySize != 1024*1024 {
		t.Errorf("Expected default max body size 1MB, got %d", cfg.MaxBodySize)
	}

	if len(cfg.APIKeys) != 0 {
		t.Errorf("Expected no API keys, got %v", cfg.APIKeys)
	}

	if cfg.DatabaseConfig != nil {
		t.Error("Expected no database config when DB_HOST is not set")
	}

	if cfg.RedisURL != "" {
		t.Error("Expected empty Redis URL when REDIS_URL is not set")
	}
}

func TestParseConfig_EnvironmentOverrides(t *testing.T) {
	tests := []struct {
		name     string
		envVars  map[string]string
		validate func(*testing.T, *ServerConfig)
	}{
		{
			name:    "Custom port",
			envVars: map[string]string{"ADAPTER_PORT": "9000"},
			validate: func(t *testing.T, cfg *ServerConfig) {
				if cfg.Port != "9000" {
					t.Errorf("Expected port '9000', got '%s'", cfg.Port)
				}
			},
		},
		{
			name: "Partner endpoint and timeout",
			envVars: map[string]string{
				"PARTNER_ENDPOINT": "https://api.bidmachine.example/auction",
				"PARTNER_TIMEOUT":  "750ms",
			},
			validate: func(t *testing.T, cfg *ServerConfig) {
				if cfg.PartnerEndpoint != "https://api.bidmachine.example/auction" {
					t.Errorf("Unexpected endpoint '%s'", cfg.PartnerEndpoint)
				}
				if cfg.PartnerTimeout != 750*time.Millisecond {
					t.Errorf("Expected timeout 750ms, got %v", cfg.PartnerTimeout)
				}
			},
		},
		{
			name:    "Invalid timeout falls back",
			envVars: map[string]string{"PARTNER_TIMEOUT": "soon"},
			validate: func(t *testing.T, cfg *ServerConfig) {
				if cfg.PartnerTimeout != 3*time.Second {
					t.Errorf("Expected fallback timeout 3s, got %v", cfg.PartnerTimeout)
				}
			},
		},
		{
			name: "BidMachine options",
			envVars: map[string]string{
				"BIDMACHINE_TEST_MODE": "true",
				"BIDMACHINE_LOGGING":   "1",
				"BIDMACHINE_SOURCE_ID": "123",
			},
			validate: func(t *testing.T, cfg *ServerConfig) {
				if !cfg.TestMode || !cfg.Logging {
					t.Error("Expected test mode and logging to be enabled")
				}
				if cfg.SourceID != "123" {
					t.Errorf("Expected source ID '123', got '%s'", cfg.SourceID)
				}
			},
		},
		{
			name:    "Click simulation",
			envVars: map[string]string{"PARTNER_SIMULATE_CLICKS": "yes"},
			validate: func(t *testing.T, cfg *ServerConfig) {
				if !cfg.SimulateClicks {
					t.Error("Expected click simulation to be enabled")
				}
				if !cfg.ToPartnerConfig().SimulateClicks {
					t.Error("Expected click simulation to reach the partner config")
				}
			},
		},
		{
			name:    "API keys",
			envVars: map[string]string{"API_KEYS": "k1:app-1,k2:app-2"},
			validate: func(t *testing.T, cfg *ServerConfig) {
				if cfg.APIKeys["k1"] != "app-1" || cfg.APIKeys["k2"] != "app-2" {
					t.Errorf("Unexpected API keys %v", cfg.APIKeys)
				}
			},
		},
		{
			name: "Redis and cache TTL",
			envVars: map[string]string{
				"REDIS_URL":             "redis://localhost:6379",
				"CREDENTIALS_CACHE_TTL": "1m",
			},
			validate: func(t *testing.T, cfg *ServerConfig) {
				if cfg.RedisURL != "redis://localhost:6379" {
					t.Errorf("Unexpected Redis URL '%s'", cfg.RedisURL)
				}
				if cfg.CredentialsTTL != time.Minute {
					t.Errorf("Expected credentials TTL 1m, got %v", cfg.CredentialsTTL)
				}
			},
		},
		{
			name:    "Max request size",
			envVars: map[string]string{"MAX_REQUEST_SIZE": "2048"},
			validate: func(t *testing.T, cfg *ServerConfig) {
				if cfg.MaxBodySize != 2048 {
					t.Errorf("Expected max body size 2048, got %d", cfg.MaxBodySize)
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnvVars(t)
			for k, v := range tt.envVars {
				t.Setenv(k, v)
			}

			flag.CommandLine = flag.NewFlagSet(os.Args[0], flag.ContinueOnError)

			cfg := ParseConfig()
			tt.validate(t, cfg)
		})
	}
}

func TestParseConfig_Flags(t *testing.T) {
	clearEnvVars(t)
	t.Setenv("ADAPTER_PORT", "9000")

	args := os.Args
	defer func() { os.Args = args }()
	os.Args = []string{"server", "-port", "9100", "-simulate-clicks", "-test-mode", "-partner-timeout", "750ms"}
	flag.CommandLine = flag.NewFlagSet(os.Args[0], flag.ContinueOnError)

	cfg := ParseConfig()

	if cfg.Port != "9100" {
		t.Errorf("Expected flag to override env port, got '%s'", cfg.Port)
	}
	if !cfg.SimulateClicks || !cfg.TestMode {
		t.Error("Expected click simulation and test mode flags to be applied")
	}
	if cfg.PartnerTimeout != 750*time.Millisecond {
		t.Errorf("Expected partner timeout 750ms, got %v", cfg.PartnerTimeout)
	}
}

func TestParseConfig_DatabaseConfig(t *testing.T) {
	clearEnvVars(t)

	t.Setenv("DB_HOST", "postgres.example.com")
	t.Setenv("DB_PORT", "5433")
	t.Setenv("DB_USER", "testuser")
	t.Setenv("DB_PASSWORD", "testpass")
	t.Setenv("DB_NAME", "testdb")
	t.Setenv("DB_SSL_MODE", "require")

	flag.CommandLine = flag.NewFlagSet(os.Args[0], flag.ContinueOnError)

	cfg := ParseConfig()

	if cfg.DatabaseConfig == nil {
		t.Fatal("Expected database config to be set")
	}

	dbCfg := cfg.DatabaseConfig

	if dbCfg.Host != "postgres.example.com" {
		t.Errorf("Expected DB host 'postgres.example.com', got '%s'", dbCfg.Host)
	}

	if dbCfg.Port != "5433" {
		t.Errorf("Expected DB port '5433', got '%s'", dbCfg.Port)
	}

	if dbCfg.User != "testuser" {
		t.Errorf("Expected DB user 'testuser', got '%s'", dbCfg.User)
	}

	if dbCfg.Password != "testpass" {
		t.Errorf("Expected DB password 'testpass', got '%s'", dbCfg.Password)
	}

	if dbCfg.Name != "testdb" {
		t.Errorf("Expected DB name 'testdb', got '%s'", dbCfg.Name)
	}

	if dbCfg.SSLMode != "require" {
		t.Errorf("Expected DB SSL mode 'require', got '%s'", dbCfg.SSLMode)
	}
}

func TestParseConfig_DatabaseConfig_Defaults(t *testing.T) {
	clearEnvVars(t)
	t.Setenv("DB_HOST", "localhost")

	flag.CommandLine = flag.NewFlagSet(os.Args[0], flag.ContinueOnError)

	cfg := ParseConfig()

	if cfg.DatabaseConfig == nil {
		t.Fatal("Expected database config to be set")
	}

	dbCfg := cfg.DatabaseConfig

	if dbCfg.Port != "5432" {
		t.Errorf("Expected default DB port '5432', got '%s'", dbCfg.Port)
	}

	if dbCfg.User != "mediation" || dbCfg.Name != "mediation" {
		t.Errorf("Expected default DB user and name 'mediation', got '%s' '%s'", dbCfg.User, dbCfg.Name)
	}

	if dbCfg.SSLMode != "disable" {
		t.Errorf("Expected default DB SSL mode 'disable', got '%s'", dbCfg.SSLMode)
	}
}

func TestToPartnerConfig(t *testing.T) {
	cfg := &ServerConfig{
		PartnerEndpoint: "http://ads.example.com",
		PartnerTimeout:  500 * time.Millisecond,
		SimulateClicks:  true,
	}

	partnerCfg := cfg.ToPartnerConfig()

	if partnerCfg.Endpoint != "http://ads.example.com" {
		t.Errorf("Expected endpoint to carry over, got '%s'", partnerCfg.Endpoint)
	}
	if partnerCfg.Timeout != 500*time.Millisecond {
		t.Errorf("Expected timeout 500ms, got %v", partnerCfg.Timeout)
	}
	if partnerCfg.AdTTL != 30*time.Minute {
		t.Errorf("Expected default ad TTL when unset, got %v", partnerCfg.AdTTL)
	}
	if !partnerCfg.SimulateClicks {
		t.Error("Expected click simulation to carry over")
	}
}

func TestToAdapterConfig(t *testing.T) {
	cfg := &ServerConfig{TestMode: true, Logging: true}

	adapterCfg := cfg.ToAdapterConfig()

	if !adapterCfg.TestMode || !adapterCfg.Logging {
		t.Errorf("Expected test mode and logging to carry over, got %+v", adapterCfg)
	}
}

func TestGetEnvOrDefault(t *testing.T) {
	tests := []struct {
		name         string
		key          string
		value        string
		setValue     bool
		defaultValue string
		expected     string
	}{
		{name: "With value", key: "TEST_VAR", value: "test_value", setValue: true, defaultValue: "default", expected: "test_value"},
		{name: "Without value", key: "MISSING_VAR", defaultValue: "default", expected: "default"},
		{name: "Empty string", key: "EMPTY_VAR", value: "", setValue: true, defaultValue: "default", expected: "default"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.setValue {
				t.Setenv(tt.key, tt.value)
			} else {
				os.Unsetenv(tt.key)
			}

			result := getEnvOrDefault(tt.key, tt.defaultValue)

			if result != tt.expected {
				t.Errorf("Expected '%s', got '%s'", tt.expected, result)
			}
		})
	}
}

func TestGetEnvBoolOrDefault(t *testing.T) {
	tests := []struct {
		name         string
		value        string
		setValue     bool
		defaultValue bool
		expected     bool
	}{
		{name: "true", value: "true", setValue: true, expected: true},
		{name: "1", value: "1", setValue: true, expected: true},
		{name: "yes", value: "yes", setValue: true, expected: true},
		{name: "false", value: "false", setValue: true, defaultValue: true, expected: false},
		{name: "unset uses default", defaultValue: true, expected: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			key := "TEST_BOOL_VAR"
			if tt.setValue {
				t.Setenv(key, tt.value)
			} else {
				os.Unsetenv(key)
			}

			result := getEnvBoolOrDefault(key, tt.defaultValue)

			if result != tt.expected {
				t.Errorf("Expected %v, got %v", tt.expected, result)
			}
		})
	}
}

func TestGetEnvDurationOrDefault(t *testing.T) {
	tests := []struct {
		name     string
		value    string
		expected time.Duration
	}{
		{name: "valid", value: "250ms", expected: 250 * time.Millisecond},
		{name: "invalid", value: "later", expected: time.Second},
		{name: "negative", value: "-1s", expected: time.Second},
		{name: "empty", value: "", expected: time.Second},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("TEST_DURATION_VAR", tt.value)

			if got := getEnvDurationOrDefault("TEST_DURATION_VAR", time.Second); got != tt.expected {
				t.Errorf("Expected %v, got %v", tt.expected, got)
			}
		})
	}
}

// clearEnvVars unsets the harness environment for the duration of a test
func clearEnvVars(t *testing.T) {
	t.Helper()

	envVars := []string{
		"ADAPTER_PORT",
		"PARTNER_ENDPOINT",
		"PARTNER_TIMEOUT",
		"PARTNER_AD_TTL",
		"PARTNER_SIMULATE_CLICKS",
		"OPERATION_TIMEOUT",
		"MAX_REQUEST_SIZE",
		"API_KEYS",
		"BIDMACHINE_TEST_MODE",
		"BIDMACHINE_LOGGING",
		"BIDMACHINE_SOURCE_ID",
		"REDIS_URL",
		"CREDENTIALS_CACHE_TTL",
		"DB_HOST",
		"DB_PORT",
		"DB_USER",
		"DB_PASSWORD",
		"DB_NAME",
		"DB_SSL_MODE",
	}

	for _, key := range envVars {
		t.Setenv(key, "")
		os.Unsetenv(key)
	}
}
