package httpx

import (
	"context"
	"net/http"

	"github.com/google/uuid"
)

type requestIDKey struct{}

const (
	RequestIDHeader = "X-Request-Id"

	// Set by the gateway after token verification. Backends trust them as-is.
	UserIDHeader = "X-User-Id"
	RoleHeader   = "X-Role"
)

// RequestIDFromContext returns the id stored by WithRequestID or
// ContextWithRequestID, or "" if none.
func RequestIDFromContext(ctx context.Context) string {
	v, _ := ctx.Value(requestIDKey{}).(string)
	return v
}

func ContextWithRequestID(ctx context.Context, id string) context.Context {
	if id == "" {
		return ctx
	}
	return context.WithValue(ctx, requestIDKey{}, id)
}

func NewRequestID() string { return uuid.NewString() }

// WithRequestID reuses the caller's X-Request-Id or assigns one. The id is
// written back onto the request so a reverse proxy forwards it upstream.
func WithRequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(RequestIDHeader)
		if id == "" {
			id = NewRequestID()
			r.Header.Set(RequestIDHeader, id)
		}
		w.Header().Set(RequestIDHeader, id)
		next.ServeHTTP(w, r.WithContext(ContextWithRequestID(r.Context(), id)))
	})
}

// WithoutIdentityHeaders drops client supplied identity headers. Edge services
// put it ahead of anything that reads them, such as CallerKey.
func WithoutIdentityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		r.Header.Del(UserIDHeader)
		r.Header.Del(RoleHeader)
		next.ServeHTTP(w, r)
	})
}
