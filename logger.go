// logger.go
package reef

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"runtime"
	"strings"
	"sync"
	"time"
)

// Mode selects how Logger renders its output.
type Mode int

const (
	Auto Mode = iota
	Dev
	Prod
)

// LoggerOptions configures the Logger middleware.
type LoggerOptions struct {
	Mode            Mode
	Output          io.Writer
	Logger          *slog.Logger
	UserAgent       bool
	RequestIDHeader string
	RequestIDGen    func() string
	TraceExtractor  func(ctx context.Context) (traceID, spanID string, sampled bool)
}

// Logger returns a Middleware that emits one structured line per request.
func Logger(opts LoggerOptions) Middleware {
	out := opts.Output
	if out == nil {
		out = os.Stdout
	}

	mode := opts.Mode
	if mode == Auto {
		if isTerminal(out) {
			mode = Dev
		} else {
			mode = Prod
		}
	}

	var base *slog.Logger
	switch {
	case opts.Logger != nil:
		base = opts.Logger
	case mode == Dev:
		base = slog.New(newColorTextHandler(out, &slog.HandlerOptions{Level: slog.LevelDebug}))
	default:
		base = slog.New(slog.NewJSONHandler(out, &slog.HandlerOptions{Level: slog.LevelDebug}))
	}

	headerName := opts.RequestIDHeader
	if headerName == "" {
		headerName = "X-Request-Id"
	}

	return func(next Handler) Handler {
		return func(c *Ctx) error {
			start := time.Now()

			reqID := ""
			if opts.RequestIDHeader != "" {
				reqID = c.Request().Header.Get(opts.RequestIDHeader)
			}
			if reqID == "" && opts.RequestIDGen != nil {
				reqID = opts.RequestIDGen()
				c.Writer().Header().Set(headerName, reqID)
			}

			err := next(c)
			dur := time.Since(start)
			status := c.StatusCode()

			attrs := []slog.Attr{
				slog.Int("status", status),
				slog.String("method", c.Request().Method),
				slog.String("path", c.Request().URL.Path),
				slog.String("host", c.Request().Host),
				slog.Duration("duration", dur),
				slog.String("query", c.Request().URL.RawQuery),
			}
			if reqID != "" {
				attrs = append(attrs, slog.String("request_id", reqID))
			}
			if opts.UserAgent {
				attrs = append(attrs, slog.String("user_agent", c.Request().UserAgent()))
			}
			if opts.TraceExtractor != nil {
				if tid, sid, sampled := opts.TraceExtractor(c.Request().Context()); tid != "" || sid != "" {
					attrs = append(attrs,
						slog.String("trace_id", tid),
						slog.String("span_id", sid),
						slog.Bool("trace_sampled", sampled))
				}
			}
			if mode == Dev {
				attrs = append(attrs, slog.String("latency_human", humanDuration(dur)))
			}
			if err != nil {
				attrs = append(attrs, slog.String("error", err.Error()))
			}

			base.LogAttrs(c.Request().Context(), levelFor(status, err), "request", attrs...)
			return err
		}
	}
}

func levelFor(status int, err error) slog.Level {
	if err != nil {
		return slog.LevelError
	}
	switch {
	case status >= 500:
		return slog.LevelError
	case status >= 400:
		return slog.LevelWarn
	default:
		return slog.LevelInfo
	}
}

func humanDuration(d time.Duration) string {
	switch {
	case d < time.Microsecond:
		return fmt.Sprintf("%dns", d.Nanoseconds())
	case d < time.Millisecond:
		return fmt.Sprintf("%.1fµs", float64(d.Nanoseconds())/1e3)
	case d < time.Second:
		return fmt.Sprintf("%.1fms", float64(d.Nanoseconds())/1e6)
	default:
		return fmt.Sprintf("%.2fs", d.Seconds())
	}
}

func attrInt(a slog.Attr) (int64, bool) {
	v := a.Value.Resolve()
	switch v.Kind() {
	case slog.KindInt64:
		return v.Int64(), true
	case slog.KindUint64:
		return int64(v.Uint64()), true
	case slog.KindFloat64:
		return int64(v.Float64()), true
	default:
		return 0, false
	}
}

// colorTextHandler is a small slog.Handler rendering key=value lines,
// colorized with ANSI codes when the environment supports it.
type colorTextHandler struct {
	w     io.Writer
	opts  *slog.HandlerOptions
	attrs []slog.Attr
	color bool
	mu    *sync.Mutex
}

func newColorTextHandler(w io.Writer, opts *slog.HandlerOptions) *colorTextHandler {
	if opts == nil {
		opts = &slog.HandlerOptions{}
	}
	return &colorTextHandler{w: w, opts: opts, color: supportsColorEnv(), mu: &sync.Mutex{}}
}

func (h *colorTextHandler) Enabled(_ context.Context, level slog.Level) bool {
	min := slog.LevelInfo
	if h.opts.Level != nil {
		min = h.opts.Level.Level()
	}
	return level >= min
}

func (h *colorTextHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	nh := *h
	nh.attrs = append(append([]slog.Attr{}, h.attrs...), attrs...)
	return &nh
}

func (h *colorTextHandler) WithGroup(_ string) slog.Handler { return h }

func (h *colorTextHandler) Handle(_ context.Context, r slog.Record) error {
	var b strings.Builder

	ts := r.Time.Format("15:04:05.000")
	if h.color {
		b.WriteString("\x1b[90m" + ts + "\x1b[0m ")
	} else {
		b.WriteString(ts + " ")
	}
	b.WriteString(levelTag(r.Level, h.color))
	b.WriteString(" ")
	b.WriteString(r.Message)

	write := func(a slog.Attr) {
		b.WriteString(" ")
		if a.Key == "status" && h.color {
			if n, ok := attrInt(a); ok {
				b.WriteString(fmt.Sprintf("%s%s=%d\x1b[0m", statusColor(int(n)), a.Key, n))
				return
			}
		}
		b.WriteString(a.Key)
		b.WriteString("=")
		b.WriteString(a.Value.String())
	}
	for _, a := range h.attrs {
		write(a)
	}
	r.Attrs(func(a slog.Attr) bool {
		write(a)
		return true
	})
	b.WriteString("\n")

	h.mu.Lock()
	defer h.mu.Unlock()
	_, err := io.WriteString(h.w, b.String())
	return err
}

func levelTag(l slog.Level, color bool) string {
	tag := l.String()
	if !color {
		return tag
	}
	switch {
	case l >= slog.LevelError:
		return "\x1b[31m" + tag + "\x1b[0m"
	case l >= slog.LevelWarn:
		return "\x1b[33m" + tag + "\x1b[0m"
	default:
		return "\x1b[36m" + tag + "\x1b[0m"
	}
}

func statusColor(status int) string {
	switch {
	case status >= 500:
		return "\x1b[31m"
	case status >= 400:
		return "\x1b[33m"
	case status >= 300:
		return "\x1b[36m"
	default:
		return "\x1b[32m"
	}
}

func supportsColorEnv() bool {
	if os.Getenv("NO_COLOR") != "" {
		return false
	}
	if os.Getenv("FORCE_COLOR") != "" {
		return true
	}
	if runtime.GOOS == "windows" {
		return false
	}
	term := os.Getenv("TERM")
	if term == "" || term == "dumb" {
		return false
	}
	return true
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	info, err := f.Stat()
	if err != nil {
		return false
	}
	return info.Mode()&os.ModeCharDevice != 0
}
