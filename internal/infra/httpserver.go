package infra

import (
	"context"
	"net/http"
	"time"
)

// Slow-loris guard; request body timeouts come from Config.
const readHeaderTimeout = 5 * time.Second

// HTTPServer wraps http.Server so the API binary can start and stop the
// listener without touching net/http details.
type HTTPServer struct {
	server *http.Server
}

// NewHTTPServer builds a server for the job API with timeouts taken from cfg.
func NewHTTPServer(cfg *Config, handler http.Handler) *HTTPServer {
	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           handler,
		ReadTimeout:       cfg.HTTPReadTimeout,
		ReadHeaderTimeout: readHeaderTimeout,
		WriteTimeout:      cfg.HTTPWriteTimeout,
		IdleTimeout:       cfg.HTTPIdleTimeout,
	}

	return &HTTPServer{server: srv}
}

// Start blocks serving requests until the listener closes.
func (s *HTTPServer) Start() error {
	if s.server == nil {
		return nil
	}
	return s.server.ListenAndServe()
}

// Shutdown drains in-flight requests and stops the server.
func (s *HTTPServer) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}
