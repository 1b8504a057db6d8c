package middleware

import (
	"crypto/rand"
	"encoding/hex"
	"net/http"

	"github.com/blackroad/searchcore/pkg/logger"
)

const requestIDHeader = "X-Request-ID"

// RequestID attaches a request ID to every request, honouring an incoming
// X-Request-ID header or generating one, and propagates it via the context
// and the response headers.
func RequestID() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			requestID := r.Header.Get(requestIDHeader)
			if requestID == "" {
				requestID = newRequestID()
			}
			ctx := logger.WithRequestID(r.Context(), requestID)
			w.Header().Set(requestIDHeader, requestID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func newRequestID() string {
	buf := make([]byte, 8)
	if _, err := rand.Read(buf); err != nil {
		return "unknown"
	}
	return hex.EncodeToString(buf)
}
