package middleware

import (
	"net/http"
	"time"

	"github.com/google/uuid"

	"nutridash/pkg/requestcontext"
)

// SessionCookie names the cookie binding a browser to its record cache.
const SessionCookie = "nutridash_session"

// Session ensures every request carries a dashboard session ID, issuing a
// fresh cookie when the browser has none (or a malformed one).
func Session(ttl time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			sessionID := ""
			if c, err := r.Cookie(SessionCookie); err == nil {
				if _, perr := uuid.Parse(c.Value); perr == nil {
					sessionID = c.Value
				}
			}
			if sessionID == "" {
				sessionID = uuid.NewString()
			}
			http.SetCookie(w, &http.Cookie{
				Name:     SessionCookie,
				Value:    sessionID,
				Path:     "/",
				MaxAge:   int(ttl.Seconds()),
				HttpOnly: true,
				SameSite: http.SameSiteLaxMode,
			})
			ctx := requestcontext.WithSessionID(r.Context(), sessionID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
