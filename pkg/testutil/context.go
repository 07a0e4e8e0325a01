package testutil

import (
	"context"
	"net/http"

	"nutridash/pkg/requestcontext"
)

// WithSession attaches a dashboard session ID to the request context,
// simulating the session middleware.
func WithSession(req *http.Request, sessionID string) *http.Request {
	ctx := requestcontext.WithSessionID(req.Context(), sessionID)
	return req.WithContext(ctx)
}

// WithContextValue adds an arbitrary key-value pair to the request context.
func WithContextValue(req *http.Request, key, value any) *http.Request {
	ctx := context.WithValue(req.Context(), key, value)
	return req.WithContext(ctx)
}
