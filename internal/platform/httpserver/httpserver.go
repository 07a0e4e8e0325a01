package httpserver

import (
	"net/http"
	"time"
)

// New builds the dashboard HTTP server. WriteTimeout is generous because CSV
// ingestion runs inside the upload request.
func New(addr string, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      2 * time.Minute,
		IdleTimeout:       2 * time.Minute,
	}
}
