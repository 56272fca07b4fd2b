// Package logger provides structured logging for the BidMachine adapter
package logger

import (
	"context"
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// ServiceName is attached to every log line
const ServiceName = "bidmachine-adapter"

// Log is the global logger instance
var Log zerolog.Logger = zerolog.New(os.Stdout).With().Timestamp().Str("service", ServiceName).Logger()

// contextKey is an unexported type for context keys
type contextKey string

const (
	// RequestIDKey is the context key for the harness request ID
	RequestIDKey contextKey = "request_id"
	// LoadIDKey is the context key for the ad load identifier
	LoadIDKey contextKey = "load_id"
)

// Config holds logger configuration
type Config struct {
	Level      string // debug, info, warn, error
	Format     string // json, console
	TimeFormat string
}

// DefaultConfig returns configuration from LOG_LEVEL and LOG_FORMAT
func DefaultConfig() Config {
	return Config{
		Level:      getEnv("LOG_LEVEL", "info"),
		Format:     getEnv("LOG_FORMAT", "json"),
		TimeFormat: time.RFC3339,
	}
}

// Init initializes the global logger
func Init(cfg Config) {
	level, err := zerolog.ParseLevel(strings.ToLower(cfg.Level))
	if err != nil || cfg.Level == "" {
		level = zerolog.InfoLevel
	}

	if cfg.TimeFormat != "" {
		zerolog.TimeFieldFormat = cfg.TimeFormat
	}

	var output io.Writer = os.Stdout
	if cfg.Format == "console" {
		output = zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: cfg.TimeFormat}
	}

	Log = zerolog.New(output).
		Level(level).
		With().
		Timestamp().
		Str("service", ServiceName).
		Logger()
}

// WithRequestID adds a request ID to the context
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, RequestIDKey, requestID)
}

// WithLoadID adds an ad load identifier to the context
func WithLoadID(ctx context.Context, loadID string) context.Context {
	return context.WithValue(ctx, LoadIDKey, loadID)
}

// FromContext returns a logger carrying the IDs stored in ctx
func FromContext(ctx context.Context) zerolog.Logger {
	l := Log.With()
	if id, ok := ctx.Value(RequestIDKey).(string); ok && id != "" {
		l = l.Str("request_id", id)
	}
	if id, ok := ctx.Value(LoadIDKey).(string); ok && id != "" {
		l = l.Str("load_id", id)
	}
	return l.Logger()
}

// Partner returns a logger for a partner adapter
func Partner(partnerID string) zerolog.Logger {
	return Log.With().Str("partner", partnerID).Logger()
}

// Ad returns a logger for a single ad load
func Ad(partnerID, format, loadID string) zerolog.Logger {
	return Log.With().
		Str("partner", partnerID).
		Str("format", format).
		Str("load_id", loadID).
		Logger()
}

// HTTP returns a logger for HTTP components
func HTTP() zerolog.Logger {
	return Log.With().Str("component", "http").Logger()
}

// SDK returns a logger for the partner SDK client
func SDK() zerolog.Logger {
	return Log.With().Str("component", "sdk").Logger()
}

// RequestLogger tracks a single harness request
type RequestLogger struct {
	logger    zerolog.Logger
	requestID string
	start     time.Time
}

// NewRequestLogger creates a logger scoped to a request
func NewRequestLogger(requestID string) *RequestLogger {
	return &RequestLogger{
		logger:    Log.With().Str("request_id", requestID).Logger(),
		requestID: requestID,
		start:     time.Now(),
	}
}

// WithField returns a copy of the request logger with an extra field
func (rl *RequestLogger) WithField(key string, value interface{}) *RequestLogger {
	return &RequestLogger{
		logger:    rl.logger.With().Interface(key, value).Logger(),
		requestID: rl.requestID,
		start:     rl.start,
	}
}

// Info logs an info message
func (rl *RequestLogger) Info(msg string) {
	rl.logger.Info().Msg(msg)
}

// Error logs an error message
func (rl *RequestLogger) Error(msg string, err error) {
	rl.logger.Error().Err(err).Msg(msg)
}

// Duration returns the time since the request started
func (rl *RequestLogger) Duration() time.Duration {
	return time.Since(rl.start)
}

// LogComplete logs request completion with status and duration
func (rl *RequestLogger) LogComplete(status int) {
	rl.logger.Info().
		Int("status", status).
		Float64("duration_ms", float64(rl.Duration().Microseconds())/1000.0).
		Msg("request completed")
}

// getEnv returns an environment variable or a default when unset or empty
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
