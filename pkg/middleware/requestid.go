package middleware

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"github.com/shardmesh/searchcore/pkg/logger"
)

// requestIDHeader is the header clients may set to propagate a request id
// from an upstream hop; if absent, one is generated.
const requestIDHeader = "X-Request-Id"

// RequestID assigns a request id (from the incoming X-Request-Id header, or
// a freshly generated one), stores it on the response header and request
// context, and makes it available to handlers via GetRequestID.
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(requestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set(requestIDHeader, id)
		ctx := logger.WithRequestID(r.Context(), id)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// GetRequestID extracts the request id logger.WithRequestID stored on ctx,
// or "" if none is present.
func GetRequestID(ctx context.Context) string {
	return logger.RequestIDFromContext(ctx)
}
