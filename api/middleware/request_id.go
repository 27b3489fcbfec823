package middleware

import (
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/toolyard/toolyard-backend/pkg/logger"
)

const (
	requestIDHeader = "X-Request-Id"
	// Caller ids longer than this are replaced; they are almost always
	// junk and they ride on every log line for the request.
	maxRequestIDLen = 64
)

// RequestID tags each request with an identifier and echoes it back in the
// response so gateway traces line up with server logs. A usable caller
// value is kept, anything else is swapped for a fresh UUID.
func RequestID(logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			reqID := strings.TrimSpace(r.Header.Get(requestIDHeader))
			if reqID == "" || len(reqID) > maxRequestIDLen {
				reqID = uuid.NewString()
			}
			w.Header().Set(requestIDHeader, reqID)

			ctx := r.Context()
			if logg != nil {
				ctx = logg.WithRequestID(ctx, reqID)
			}
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
