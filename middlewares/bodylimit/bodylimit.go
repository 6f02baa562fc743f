// Package bodylimit caps request body size, rejecting oversized payloads
// either up front (via Content-Length) or during the read (via
// http.MaxBytesReader). Adapted from the teacher's own bodylimit
// middleware (import path and Ctx type updated; behavior unchanged).
package bodylimit

import (
	"net/http"

	reef "github.com/go-mizu/reef"
)

// Options configures the middleware.
type Options struct {
	Limit   int64
	Handler reef.Handler
}

const defaultLimit = 1 * 1024 * 1024

// New returns a bodylimit middleware rejecting bodies over limit bytes
// with 413 Request Entity Too Large.
func New(limit int64) reef.Middleware { return WithOptions(Options{Limit: limit}) }

// WithHandler returns a bodylimit middleware invoking handler, instead of
// the default 413 response, when the limit is exceeded.
func WithHandler(limit int64, handler reef.Handler) reef.Middleware {
	return WithOptions(Options{Limit: limit, Handler: handler})
}

// WithOptions returns a bodylimit middleware configured by opts.
func WithOptions(opts Options) reef.Middleware {
	limit := opts.Limit
	if limit <= 0 {
		limit = defaultLimit
	}

	return func(next reef.Handler) reef.Handler {
		return func(c *reef.Ctx) error {
			if c.Request().ContentLength > limit {
				return reject(c, opts)
			}
			if c.Request().Body != nil {
				c.Request().Body = http.MaxBytesReader(c.Writer(), c.Request().Body, limit)
			}
			return next(c)
		}
	}
}

func reject(c *reef.Ctx, opts Options) error {
	if opts.Handler != nil {
		return opts.Handler(c)
	}
	return c.Text(http.StatusRequestEntityTooLarge, "request body too large")
}

// KB converts n kilobytes to bytes.
func KB(n int64) int64 { return n * 1024 }

// MB converts n megabytes to bytes.
func MB(n int64) int64 { return n * 1024 * 1024 }

// GB converts n gigabytes to bytes.
func GB(n int64) int64 { return n * 1024 * 1024 * 1024 }
