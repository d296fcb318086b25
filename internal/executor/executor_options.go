package executor

import (
	"net/http"

	"github.com/oriys/tower/internal/logging"
	"github.com/oriys/tower/internal/resulttype"
	"github.com/oriys/tower/internal/secrets"
)

type Option func(*Executor)

// WithHTTPClient sets the client used for every call. The default client
// has no timeout.
func WithHTTPClient(c *http.Client) Option {
	return func(e *Executor) {
		if c != nil {
			e.client = c
		}
	}
}

// WithResultTypes sets the registry used to bind resultClass names.
func WithResultTypes(r *resulttype.Registry) Option {
	return func(e *Executor) {
		if r != nil {
			e.types = r
		}
	}
}

// WithTokenResolver sets the resolver for $SECRET: and $ENV: bearer tokens.
func WithTokenResolver(r *secrets.Resolver) Option {
	return func(e *Executor) {
		e.tokens = r
	}
}

// WithLogger sets the request logger. Nil disables request logging.
func WithLogger(logger *logging.Logger) Option {
	return func(e *Executor) {
		e.logger = logger
	}
}

// WithErrorBodyCapture makes non-2xx responses carry the raw body in
// Result. Off by default, which leaves Result absent for non-2xx.
func WithErrorBodyCapture(enabled bool) Option {
	return func(e *Executor) {
		e.captureErrorBody = enabled
	}
}

// WithMaxResponseBytes caps how much of a response body is read. A 2xx
// body over the cap fails the call with a transport error; a captured
// non-2xx body is cut at the cap. Zero means unlimited.
func WithMaxResponseBytes(n int64) Option {
	return func(e *Executor) {
		e.maxResponseBytes = n
	}
}

// WithUserAgent overrides the User-Agent header.
func WithUserAgent(ua string) Option {
	return func(e *Executor) {
		if ua != "" {
			e.userAgent = ua
		}
	}
}
