// router.go
package reef

import (
	"io"
	"log/slog"
	"net/http"
	"runtime/debug"
	"strings"
)

// Handler is a reef request handler.
type Handler func(*Ctx) error

// Middleware wraps a Handler with additional behavior.
type Middleware func(Handler) Handler

// Router dispatches HTTP requests to Handler functions built on top of
// http.ServeMux. Use registers global middleware that wraps this router's
// own ServeHTTP; With returns a derived Router whose registered routes carry
// extra middleware regardless of who calls ServeHTTP.
type Router struct {
	mux    *http.ServeMux
	base   string
	use    []Middleware
	scoped []Middleware

	log        *slog.Logger
	errHandler func(*Ctx, error)

	Compat *httpRouter
}

// NewRouter creates an empty Router with a default logger.
func NewRouter() *Router {
	r := &Router{mux: http.NewServeMux(), log: slog.Default()}
	r.Compat = &httpRouter{r: r}
	return r
}

// Logger returns the router's logger.
func (r *Router) Logger() *slog.Logger { return r.log }

// SetLogger replaces the router's logger. A nil logger is ignored.
func (r *Router) SetLogger(l *slog.Logger) {
	if l != nil {
		r.log = l
	}
}

// ErrorHandler installs a handler invoked whenever a route Handler returns a
// non-nil error or panics.
func (r *Router) ErrorHandler(fn func(*Ctx, error)) { r.errHandler = fn }

// Use appends global middleware applied when this exact Router's ServeHTTP
// is invoked. A Prefix'd or With'd router that is never directly served
// does not see these middlewares run.
func (r *Router) Use(mws ...Middleware) {
	r.use = append(r.use, mws...)
}

// Prefix returns a derived Router whose routes are registered under path,
// sharing the same underlying mux.
func (r *Router) Prefix(path string) *Router {
	nr := &Router{
		mux:        r.mux,
		base:       joinPath(r.base, cleanLeading(path)),
		scoped:     append([]Middleware{}, r.scoped...),
		log:        r.log,
		errHandler: r.errHandler,
	}
	nr.Compat = &httpRouter{r: nr}
	return nr
}

// With returns a derived Router whose routes additionally run mws, applied
// at registration time regardless of which router serves the request.
func (r *Router) With(mws ...Middleware) *Router {
	nr := &Router{
		mux:        r.mux,
		base:       r.base,
		scoped:     append(append([]Middleware{}, r.scoped...), mws...),
		log:        r.log,
		errHandler: r.errHandler,
	}
	nr.Compat = &httpRouter{r: nr}
	return nr
}

// Get registers a GET handler.
func (r *Router) Get(path string, h Handler) { r.Handle(http.MethodGet, path, h) }

// Post registers a POST handler.
func (r *Router) Post(path string, h Handler) { r.Handle(http.MethodPost, path, h) }

// Put registers a PUT handler.
func (r *Router) Put(path string, h Handler) { r.Handle(http.MethodPut, path, h) }

// Delete registers a DELETE handler.
func (r *Router) Delete(path string, h Handler) { r.Handle(http.MethodDelete, path, h) }

// Patch registers a PATCH handler.
func (r *Router) Patch(path string, h Handler) { r.Handle(http.MethodPatch, path, h) }

// Handle registers h for method at path.
func (r *Router) Handle(method, path string, h Handler) {
	pattern := method + " " + r.fullPath(path)
	r.mux.HandleFunc(pattern, r.wrapRoute(h))
}

// Static serves files from fsys under prefix. A bare request for prefix
// redirects to prefix with a trailing slash.
func (r *Router) Static(prefix string, fsys http.FileSystem) {
	full := r.fullPath(prefix)
	fileServer := http.FileServer(fsys)

	if full == "/" {
		r.handleRaw("/", func(c *Ctx) error {
			fileServer.ServeHTTP(c.Writer(), c.Request())
			return nil
		})
		return
	}

	full = strings.TrimRight(full, "/")
	stripped := http.StripPrefix(full, fileServer)

	r.handleRaw(full, func(c *Ctx) error {
		http.Redirect(c.Writer(), c.Request(), full+"/", http.StatusMovedPermanently)
		return nil
	})
	r.handleRaw(full+"/", func(c *Ctx) error {
		stripped.ServeHTTP(c.Writer(), c.Request())
		return nil
	})
}

// handleRaw registers h at an exact pattern with no method restriction.
func (r *Router) handleRaw(pattern string, h Handler) {
	r.mux.HandleFunc(pattern, r.wrapRoute(h))
}

// fullPath joins the router's base with path per cleanLeading/joinPath rules.
func (r *Router) fullPath(path string) string {
	return joinPath(r.base, cleanLeading(path))
}

// wrapRoute applies scoped middleware and converts a Handler into an
// http.HandlerFunc with panic recovery and error handling.
func (r *Router) wrapRoute(h Handler) http.HandlerFunc {
	full := h
	for i := len(r.scoped) - 1; i >= 0; i-- {
		full = r.scoped[i](full)
	}
	logger := r.log
	errHandler := r.errHandler

	return func(w http.ResponseWriter, req *http.Request) {
		c := newCtx(w, req, logger)
		defer func() {
			if rec := recover(); rec != nil {
				reportError(errHandler, c, &PanicError{Value: rec, Stack: debug.Stack()})
			}
		}()
		if err := full(c); err != nil {
			reportError(errHandler, c, err)
		}
	}
}

// ServeHTTP runs the global middleware chain around the mux dispatch.
func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	c := newCtx(w, req, r.log)

	core := Handler(func(c *Ctx) error {
		r.mux.ServeHTTP(c.Writer(), c.Request())
		return nil
	})
	h := core
	for i := len(r.use) - 1; i >= 0; i-- {
		h = r.use[i](h)
	}

	errHandler := r.errHandler
	defer func() {
		if rec := recover(); rec != nil {
			reportError(errHandler, c, &PanicError{Value: rec, Stack: debug.Stack()})
		}
	}()
	if err := h(c); err != nil {
		reportError(errHandler, c, err)
	}
}

func reportError(errHandler func(*Ctx, error), c *Ctx, err error) {
	if errHandler != nil {
		errHandler(c, err)
		return
	}
	defaultErrorHandler(c, err)
}

func defaultErrorHandler(c *Ctx, _ error) {
	w := c.Writer()
	w.WriteHeader(http.StatusInternalServerError)
	_, _ = io.WriteString(w, http.StatusText(http.StatusInternalServerError))
}

// cleanLeading ensures path begins with a single leading slash.
func cleanLeading(p string) string {
	if p == "" {
		return "/"
	}
	if p[0] != '/' {
		return "/" + p
	}
	return p
}

// joinPath joins a base and a path segment, collapsing slashes.
func joinPath(a, b string) string {
	a = strings.TrimRight(a, "/")
	if b == "" || b == "/" {
		if a == "" {
			return "/"
		}
		return a
	}
	b = strings.TrimPrefix(b, "/")
	b = strings.TrimRight(b, "/")
	if a == "" {
		return "/" + b
	}
	return a + "/" + b
}
