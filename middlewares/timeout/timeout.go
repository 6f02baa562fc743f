// Package timeout bounds handler execution time, responding with a
// configurable status once the deadline elapses. Adapted from the
// teacher's own timeout middleware (import path and Ctx type updated),
// generalized so its default status matches the pipeline's own TIMEOUT
// status per spec §5 "HTTP transport surfaces a read timeout ... as a
// TIMEOUT response (status 408)."
package timeout

import (
	"context"
	"net/http"
	"time"

	reef "github.com/go-mizu/reef"
)

// Options configures the middleware.
type Options struct {
	Timeout      time.Duration
	ErrorHandler func(w http.ResponseWriter, r *http.Request)
	ErrorMessage string
}

const defaultTimeout = 30 * time.Second

// New returns a timeout middleware bounding every request to d.
func New(d time.Duration) reef.Middleware { return WithOptions(Options{Timeout: d}) }

// WithOptions returns a timeout middleware configured by opts.
func WithOptions(opts Options) reef.Middleware {
	d := opts.Timeout
	if d <= 0 {
		d = defaultTimeout
	}

	return func(next reef.Handler) reef.Handler {
		return func(c *reef.Ctx) error {
			ctx, cancel := context.WithTimeout(c.Request().Context(), d)
			defer cancel()
			*c.Request() = *c.Request().WithContext(ctx)

			done := make(chan error, 1)
			go func() {
				done <- next(c)
			}()

			select {
			case err := <-done:
				return err
			case <-ctx.Done():
				if opts.ErrorHandler != nil {
					opts.ErrorHandler(c.Writer(), c.Request())
					return nil
				}
				msg := opts.ErrorMessage
				if msg == "" {
					msg = "request timed out"
				}
				return c.Text(http.StatusRequestTimeout, msg)
			}
		}
	}
}
