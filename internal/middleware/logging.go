package middleware

import (
	"encoding/json"
	"net/http"

	"github.com/google/uuid"

	"github.com/thenexusengine/bidmachine_adapter/pkg/logger"
)

// RequestIDHeader carries the harness request ID
const RequestIDHeader = "X-Request-ID"

// statusRecorder wraps http.ResponseWriter to capture status code
type statusRecorder struct {
	http.ResponseWriter
	statusCode int
}

func (rw *statusRecorder) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// Logging assigns a request ID, stores it in the request context and logs completion
func Logging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get(RequestIDHeader)
		if requestID == "" {
			requestID = uuid.NewString()
		}
		w.Header().Set(RequestIDHeader, requestID)

		rl := logger.NewRequestLogger(requestID).
			WithField("method", r.Method).
			WithField("path", r.URL.Path)

		wrapped := &statusRecorder{ResponseWriter: w, statusCode: http.StatusOK}
		next.ServeHTTP(wrapped, r.WithContext(logger.WithRequestID(r.Context(), requestID)))

		rl.LogComplete(wrapped.statusCode)
	})
}

func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
