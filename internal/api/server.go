package api

import (
	"net/http"

	"github.com/oriys/tower/internal/logging"
	"github.com/oriys/tower/internal/observability"
)

// NewRouter builds the bridge's HTTP handler, wrapped with tracing.
func NewRouter(h *Handler) http.Handler {
	mux := http.NewServeMux()
	h.RegisterRoutes(mux)
	return observability.HTTPMiddleware(mux)
}

// StartHTTPServer creates and starts the HTTP server for the work item
// bridge. A listen failure is logged and sent on the returned channel.
func StartHTTPServer(addr string, h *Handler) (*http.Server, <-chan error) {
	server := &http.Server{
		Addr:    addr,
		Handler: NewRouter(h),
	}

	errCh := make(chan error, 1)
	go func() {
		logging.Op().Info("work item bridge started", "addr", addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logging.Op().Error("HTTP server error", "error", err)
			errCh <- err
		}
	}()

	return server, errCh
}
