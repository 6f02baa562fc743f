// compat.go
package reef

import (
	"net/http"
	"strings"
)

// httpRouter bridges plain net/http handlers and middleware into a Router.
// Reached via Router.Compat.
type httpRouter struct {
	r *Router
}

// Handle mounts a stdlib http.Handler at path for any method.
func (hr *httpRouter) Handle(path string, h http.Handler) {
	hr.r.mux.Handle(hr.r.fullPath(path), hr.wrapStd(h))
}

// HandleMethod mounts h at path restricted to method.
func (hr *httpRouter) HandleMethod(method, path string, h http.Handler) {
	hr.r.mux.Handle(method+" "+hr.r.fullPath(path), hr.wrapStd(h))
}

// Mount serves h for every path under prefix (and prefix itself).
func (hr *httpRouter) Mount(prefix string, h http.Handler) {
	full := strings.TrimRight(hr.r.fullPath(prefix), "/")
	hr.r.mux.Handle(full, hr.wrapStd(h))
	hr.r.mux.Handle(full+"/", hr.wrapStd(http.StripPrefix(full, h)))
}

// Group creates a Prefix'd sub-router and passes its Compat bridge to fn.
func (hr *httpRouter) Group(prefix string, fn func(*httpRouter)) {
	sub := hr.r.Prefix(prefix)
	fn(sub.Compat)
}

// Use adapts a stdlib-style middleware into the router's global chain.
func (hr *httpRouter) Use(mw func(http.Handler) http.Handler) {
	hr.r.use = append(hr.r.use, func(next Handler) Handler {
		return func(c *Ctx) error {
			var handlerErr error
			bridge := http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
				c.w = w
				c.req = req
				handlerErr = next(c)
			})
			mw(bridge).ServeHTTP(c.Writer(), c.Request())
			return handlerErr
		}
	})
}

// wrapStd converts a stdlib http.Handler into a route registered through the
// owning Router's scoped middleware and error handling.
func (hr *httpRouter) wrapStd(h http.Handler) http.HandlerFunc {
	return hr.r.wrapRoute(func(c *Ctx) error {
		h.ServeHTTP(c.Writer(), c.Request())
		return nil
	})
}
