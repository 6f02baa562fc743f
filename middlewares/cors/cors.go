// Package cors implements Cross-Origin Resource Sharing header negotiation
// as reef middleware. Adapted from the teacher's own cors middleware
// (import path and Ctx type updated; behavior unchanged).
package cors

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	reef "github.com/go-mizu/reef"
)

// Options configures the middleware.
type Options struct {
	AllowOrigins        []string
	AllowOriginFunc     func(origin string) bool
	AllowMethods        []string
	AllowHeaders        []string
	ExposeHeaders       []string
	AllowCredentials    bool
	AllowPrivateNetwork bool
	MaxAge              time.Duration
}

var defaultMethods = []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"}

// New returns a cors middleware configured by opts.
func New(opts Options) reef.Middleware {
	methods := opts.AllowMethods
	if len(methods) == 0 {
		methods = defaultMethods
	}

	return func(next reef.Handler) reef.Handler {
		return func(c *reef.Ctx) error {
			origin := c.Request().Header.Get("Origin")
			if origin == "" {
				return next(c)
			}

			if !originAllowed(opts, origin) {
				if c.Request().Method == http.MethodOptions {
					c.Status(http.StatusNoContent)
					return c.NoContent()
				}
				return next(c)
			}

			allowOrigin := origin
			if !opts.AllowCredentials && containsString(opts.AllowOrigins, "*") {
				allowOrigin = "*"
			}
			c.Header().Set("Access-Control-Allow-Origin", allowOrigin)
			c.Header().Add("Vary", "Origin")
			if opts.AllowCredentials {
				c.Header().Set("Access-Control-Allow-Credentials", "true")
			}
			if len(opts.ExposeHeaders) > 0 {
				c.Header().Set("Access-Control-Expose-Headers", strings.Join(opts.ExposeHeaders, ", "))
			}

			if c.Request().Method != http.MethodOptions {
				return next(c)
			}

			c.Header().Set("Access-Control-Allow-Methods", strings.Join(methods, ", "))
			if len(opts.AllowHeaders) > 0 {
				c.Header().Set("Access-Control-Allow-Headers", strings.Join(opts.AllowHeaders, ", "))
			} else if reqHeaders := c.Request().Header.Get("Access-Control-Request-Headers"); reqHeaders != "" {
				c.Header().Set("Access-Control-Allow-Headers", reqHeaders)
			}
			if opts.MaxAge > 0 {
				c.Header().Set("Access-Control-Max-Age", strconv.Itoa(int(opts.MaxAge.Seconds())))
			}
			if opts.AllowPrivateNetwork && c.Request().Header.Get("Access-Control-Request-Private-Network") == "true" {
				c.Header().Set("Access-Control-Allow-Private-Network", "true")
			}

			c.Status(http.StatusNoContent)
			return c.NoContent()
		}
	}
}

// AllowAll returns a permissive cors middleware allowing any origin.
func AllowAll() reef.Middleware {
	return New(Options{AllowOrigins: []string{"*"}})
}

// WithOrigins returns a cors middleware allowing exactly the given origins.
func WithOrigins(origins ...string) reef.Middleware {
	return New(Options{AllowOrigins: origins})
}

func originAllowed(opts Options, origin string) bool {
	if opts.AllowOriginFunc != nil {
		return opts.AllowOriginFunc(origin)
	}
	return containsString(opts.AllowOrigins, "*") || containsString(opts.AllowOrigins, origin)
}

func containsString(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}
