package main

import (
	"context"
	"database/sql"
	"errors"
	"net/http"

	"go.uber.org/multierr"

	"github.com/thenexusengine/bidmachine_adapter/internal/adapter"
	"github.com/thenexusengine/bidmachine_adapter/internal/config"
	"github.com/thenexusengine/bidmachine_adapter/internal/endpoints"
	"github.com/thenexusengine/bidmachine_adapter/internal/metrics"
	"github.com/thenexusengine/bidmachine_adapter/internal/middleware"
	"github.com/thenexusengine/bidmachine_adapter/internal/partner/httpsdk"
	"github.com/thenexusengine/bidmachine_adapter/internal/storage"
	"github.com/thenexusengine/bidmachine_adapter/pkg/logger"
	"github.com/thenexusengine/bidmachine_adapter/pkg/redis"
)

// Server is the adapter harness
type Server struct {
	config      *ServerConfig
	httpServer  *http.Server
	metrics     *metrics.Metrics
	sdk         *httpsdk.Client
	adapter     *adapter.Adapter
	handler     *endpoints.AdapterHandler
	health      *endpoints.HealthHandler
	auth        *middleware.Auth
	credentials storage.CredentialStore
	db          *sql.DB
	redisClient *redis.Client
}

// NewServer creates a new harness instance
func NewServer(cfg *ServerConfig) (*Server, error) {
	s := &Server{
		config: cfg,
	}

	if err := s.initialize(); err != nil {
		return nil, err
	}

	return s, nil
}

// initialize sets up all server components
func (s *Server) initialize() error {
	log := logger.Log

	log.Info().
		Str("port", s.config.Port).
		Str("partner_endpoint", s.config.PartnerEndpoint).
		Dur("partner_timeout", s.config.PartnerTimeout).
		Bool("test_mode", s.config.TestMode).
		Msg("Initializing BidMachine adapter harness")

	s.metrics = metrics.NewMetrics("bidmachine_adapter", nil)

	// Storage failures are non-fatal; setup falls back to inline or default credentials
	if err := s.initDatabase(); err != nil {
		log.Warn().Err(err).Msg("Database initialization failed, continuing without stored credentials")
	}
	if err := s.initRedis(); err != nil {
		log.Warn().Err(err).Msg("Redis initialization failed, continuing without credential cache")
	}
	s.initCredentialStore()

	s.initPartner()
	s.initHandlers()

	return nil
}

// initDatabase connects to PostgreSQL when configured
func (s *Server) initDatabase() error {
	log := logger.Log

	if s.config.DatabaseConfig == nil {
		log.Info().Msg("DB_HOST not set, stored credentials disabled")
		return nil
	}

	db, err := storage.NewDBConnection(*s.config.DatabaseConfig)
	if err != nil {
		return err
	}
	s.db = db

	log.Info().Str("host", s.config.DatabaseConfig.Host).Msg("PostgreSQL connected")
	return nil
}

// initRedis initializes the Redis client when configured
func (s *Server) initRedis() error {
	log := logger.Log

	if s.config.RedisURL == "" {
		log.Info().Msg("REDIS_URL not set, Redis-backed features disabled")
		return nil
	}

	client, err := redis.New(s.config.RedisURL)
	if err != nil {
		return err
	}
	s.redisClient = client

	log.Info().Msg("Redis client initialized")
	return nil
}

// initCredentialStore layers the Redis cache over PostgreSQL when both exist
func (s *Server) initCredentialStore() {
	var postgres, cache storage.CredentialStore
	if s.db != nil {
		postgres = storage.NewPostgresCredentialStore(s.db, config.PartnerID)
	}
	if s.redisClient != nil {
		cache = storage.NewRedisCredentialStore(s.redisClient, config.PartnerID, s.config.CredentialsTTL)
	}

	switch {
	case postgres != nil && cache != nil:
		s.credentials = storage.NewCachedCredentialStore(cache, postgres)
	case postgres != nil:
		s.credentials = postgres
	case cache != nil:
		s.credentials = cache
	}

	logger.Log.Info().
		Bool("postgres", postgres != nil).
		Bool("redis", cache != nil).
		Msg("Credential store initialized")
}

// initPartner creates the BidMachine client and the adapter driving it
func (s *Server) initPartner() {
	s.sdk = httpsdk.New(s.config.ToPartnerConfig())
	s.sdk.SetMetrics(s.metrics)

	s.adapter = adapter.New(s.sdk, s.config.ToAdapterConfig())
	s.adapter.SetMetrics(s.metrics)

	logger.Log.Info().
		Str("partner", s.adapter.PartnerDisplayName()).
		Str("sdk_version", s.adapter.PartnerSDKVersion()).
		Str("adapter_version", s.adapter.AdapterVersion()).
		Msg("Partner adapter ready")
}

// initHandlers initializes HTTP handlers and builds the HTTP server
func (s *Server) initHandlers() {
	resolver := endpoints.NewCredentialResolver(s.credentials, s.config.SourceID)
	s.handler = endpoints.NewAdapterHandler(s.adapter, resolver, nil, s.config.OperationTimeout)
	s.handler.SetConsentRecorder(s.metrics)

	s.health = endpoints.NewHealthHandler(s.adapter)
	s.health.AddDetail("partner_circuit", func() any { return s.sdk.BreakerStats() })
	s.health.AddDetail("live_partner_ads", func() any { return s.sdk.LiveAds() })
	s.health.AddDetail("registered_ads", func() any { return s.handler.Ads().Len() })
	if s.redisClient != nil {
		s.health.AddCheck("redis", s.redisClient.Ping)
	}
	if s.db != nil {
		s.health.AddCheck("postgres", s.db.PingContext)
	}

	mux := http.NewServeMux()
	s.handler.Register(mux)
	mux.Handle("/health", s.health)
	mux.Handle("/metrics", s.metrics.Handler())

	s.httpServer = &http.Server{
		Addr:         ":" + s.config.Port,
		Handler:      s.buildHandler(mux),
		ReadTimeout:  config.ServerReadTimeout,
		WriteTimeout: config.ServerWriteTimeout,
		IdleTimeout:  config.ServerIdleTimeout,
	}
}

// buildHandler builds the middleware chain
func (s *Server) buildHandler(mux *http.ServeMux) http.Handler {
	s.auth = middleware.NewAuth(middleware.DefaultAuthConfig(s.config.APIKeys))
	s.auth.SetMetrics(s.metrics)
	if s.redisClient != nil {
		s.auth.SetRedisClient(s.redisClient)
	}

	sizeCfg := middleware.DefaultSizeLimitConfig()
	if s.config.MaxBodySize > 0 {
		sizeCfg.MaxBodySize = s.config.MaxBodySize
	}
	sizeLimiter := middleware.NewSizeLimiter(sizeCfg)

	logger.Log.Info().
		Bool("auth_enabled", s.auth.IsEnabled()).
		Int64("max_body_size", sizeCfg.MaxBodySize).
		Msg("Middleware chain built")

	// Logging -> Size Limit -> Auth -> Metrics -> Handler
	handler := http.Handler(mux)
	handler = s.metrics.Middleware(handler)
	handler = s.auth.Middleware(handler)
	handler = sizeLimiter.Middleware(handler)
	handler = middleware.Logging(handler)

	return handler
}

// Start starts the HTTP server
func (s *Server) Start() error {
	log := logger.Log
	log.Info().Str("addr", s.httpServer.Addr).Msg("Server listening")

	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops accepting requests, invalidates registered ads and closes every dependency.
// All close errors are returned together.
func (s *Server) Shutdown(ctx context.Context) error {
	log := logger.Log
	log.Info().Msg("Starting graceful shutdown")

	var err error
	if s.httpServer != nil {
		err = multierr.Append(err, s.httpServer.Shutdown(ctx))
	}

	if s.handler != nil {
		for _, ad := range s.handler.Ads().Drain() {
			err = multierr.Append(err, s.adapter.Invalidate(ctx, ad))
		}
	}

	if s.sdk != nil {
		err = multierr.Append(err, s.sdk.Close(ctx))
	}
	if s.redisClient != nil {
		err = multierr.Append(err, s.redisClient.Close())
	}
	if s.db != nil {
		err = multierr.Append(err, s.db.Close())
	}

	if err != nil {
		for _, e := range multierr.Errors(err) {
			log.Warn().Err(e).Msg("Shutdown error")
		}
		return err
	}

	log.Info().Msg("Server stopped gracefully")
	return nil
}
