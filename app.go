// app.go
package reef

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"sync/atomic"
	"syscall"
	"time"

	meshtransport "github.com/go-mizu/reef/transport/mesh"
)

// App owns the HTTP server lifecycle and embeds Router.
// It favors the standard library for graceful shutdown.
// Extras kept small: readiness flip, optional pre-shutdown delay, structured logs.
type App struct {
	*Router

	preShutdownDelay time.Duration // wait after marking unready
	shutdownTimeout  time.Duration // max drain window

	shuttingDown atomic.Bool // exposed by HealthzHandler

	meshListener net.Listener
	meshServer   *meshtransport.Server
}

// AppOption configures App.
type AppOption func(*App)

// WithLogger sets the logger. If nil, slog.Default is used.
func WithLogger(l *slog.Logger) AppOption {
	return func(a *App) {
		a.SetLogger(l)
	}
}

// WithPreShutdownDelay sets the delay after flipping readiness and before Shutdown.
func WithPreShutdownDelay(d time.Duration) AppOption {
	return func(a *App) {
		if d >= 0 {
			a.preShutdownDelay = d
		}
	}
}

// WithShutdownTimeout sets the maximum duration for http.Server.Shutdown.
func WithShutdownTimeout(d time.Duration) AppOption {
	return func(a *App) {
		if d > 0 {
			a.shutdownTimeout = d
		}
	}
}

// WithMeshListener runs the length-framed mesh/1 transport alongside the
// HTTP server: its accept loop starts when the HTTP server does, and its
// listener is closed as part of the same graceful shutdown sequence.
func WithMeshListener(l net.Listener, s *meshtransport.Server) AppOption {
	return func(a *App) {
		a.meshListener = l
		a.meshServer = s
	}
}

// New creates an App with conservative defaults.
func New(opts ...AppOption) *App {
	a := &App{
		Router:           NewRouter(),
		preShutdownDelay: 1 * time.Second,
		shutdownTimeout:  15 * time.Second,
	}
	for _, o := range opts {
		o(a)
	}
	return a
}

// HealthzHandler reports 200 while serving and 503 after shutdown begins.
func (a *App) HealthzHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if a.shuttingDown.Load() {
			http.Error(w, "shutting down", http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = io.WriteString(w, "ok\n")
	})
}

// Listen starts an HTTP server at addr and handles SIGINT and SIGTERM.
func (a *App) Listen(addr string) error {
	srv := &http.Server{Addr: addr, Handler: a}
	return a.serveWithSignals(srv, func() error { return srv.ListenAndServe() })
}

// ListenTLS starts an HTTPS server and handles SIGINT and SIGTERM.
func (a *App) ListenTLS(addr, certFile, keyFile string) error {
	srv := &http.Server{Addr: addr, Handler: a}
	return a.serveWithSignals(srv, func() error { return srv.ListenAndServeTLS(certFile, keyFile) })
}

// Serve serves on a custom listener and handles SIGINT and SIGTERM.
func (a *App) Serve(l net.Listener) error {
	srv := &http.Server{Addr: l.Addr().String(), Handler: a}
	return a.serveWithSignals(srv, func() error { return srv.Serve(l) })
}

// ServeContext runs the server until ctx is canceled, then performs a graceful drain.
func (a *App) ServeContext(ctx context.Context, srv *http.Server, serveFn func() error) error {
	baseCtx, cancelBase := context.WithCancel(context.Background())
	defer cancelBase()
	srv.BaseContext = func(net.Listener) context.Context { return baseCtx }

	log := a.Logger().With(
		slog.String("addr", srv.Addr),
		slog.Int("pid", os.Getpid()),
		slog.String("go_version", runtime.Version()),
	)
	log.Info("server starting")

	if a.meshListener != nil {
		log.Info("mesh transport starting", slog.String("addr", a.meshListener.Addr().String()))
		go func() {
			if err := a.meshServer.Serve(a.meshListener); err != nil {
				log.Warn("mesh transport stopped", slog.Any("error", err))
			}
		}()
	}

	errCh := make(chan error, 1)
	go func() {
		if err := serveFn(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
			return
		}
		errCh <- nil
	}()

	select {
	case err := <-errCh:
		if err != nil {
			log.Error("server start failed", slog.Any("error", err))
		}
		return err

	case <-ctx.Done():
		start := time.Now()
		a.shuttingDown.Store(true)
		log.Info("shutdown initiated")

		if a.preShutdownDelay > 0 {
			time.Sleep(a.preShutdownDelay)
		}

		if a.meshListener != nil {
			_ = a.meshListener.Close()
		}

		drainCtx, cancel := context.WithTimeout(context.Background(), a.shutdownTimeout)
		defer cancel()

		if err := srv.Shutdown(drainCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			// Grace period expired or other failure. Close and cancel base to nudge handlers.
			log.Warn("graceful shutdown incomplete", slog.Any("error", err))
			_ = srv.Close()
			cancelBase()
		} else {
			// Drain completed. Cancel base to release any background waiters tied to BaseContext.
			cancelBase()
		}

		if err := <-errCh; err != nil {
			log.Error("server exit error after shutdown", slog.Any("error", err))
			return err
		}

		log.Info("server stopped gracefully", slog.Duration("duration", time.Since(start)))
		return nil
	}
}

// serveWithSignals wraps ServeContext with a signal-aware parent context.
func (a *App) serveWithSignals(srv *http.Server, serveFn func() error) error {
	parent, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	return a.ServeContext(parent, srv, serveFn)
}
