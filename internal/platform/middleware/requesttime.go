package middleware

import (
	"net/http"
	"time"

	"nutridash/pkg/requestcontext"
)

// RequestTime pins one "now" per request so change events and session
// bookkeeping from the same request agree on the timestamp.
func RequestTime(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := requestcontext.WithTime(r.Context(), time.Now())
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
