// Package obslog wires internal/config's Log settings into the ambient
// logging this module uses in two places: a standalone *slog.Logger for
// startup/shutdown/bundle-mount messages, and a reef.LoggerOptions value
// for the root package's own per-request Logger middleware. Grounded on
// the root reef package's logger.go (Mode/Auto/Dev/Prod, the dev-vs-prod
// handler split) so both logging paths agree on the same rendering rules.
package obslog

import (
	"log/slog"
	"os"
	"strings"

	reef "github.com/go-mizu/reef"
	"github.com/go-mizu/reef/internal/config"
	"github.com/go-mizu/reef/middlewares/requestid"
)

// New builds the process-wide *slog.Logger for non-request log lines
// (listener startup, bundle mounts, shutdown), honoring cfg's mode/level.
// "dev" renders human-readable text to stderr; "auto" and "prod" render
// JSON, matching the root package's own default when output isn't a
// terminal.
func New(cfg config.Log) *slog.Logger {
	handlerOpts := &slog.HandlerOptions{Level: parseLevel(cfg.Level)}
	if strings.EqualFold(cfg.Mode, "dev") {
		return slog.New(slog.NewTextHandler(os.Stderr, handlerOpts))
	}
	return slog.New(slog.NewJSONHandler(os.Stderr, handlerOpts))
}

// HTTPOptions translates cfg into reef.LoggerOptions for mounting onto a
// reef.Router via router.Use(reef.Logger(HTTPOptions(cfg))), sharing one ID
// generator with the requestid middleware so a request's log line and its
// X-Request-ID header always agree.
func HTTPOptions(cfg config.Log) reef.LoggerOptions {
	return reef.LoggerOptions{
		Mode:            parseMode(cfg.Mode),
		RequestIDHeader: "X-Request-ID",
		RequestIDGen:    requestid.Generate,
	}
}

func parseMode(mode string) reef.Mode {
	switch strings.ToLower(mode) {
	case "dev":
		return reef.Dev
	case "prod":
		return reef.Prod
	default:
		return reef.Auto
	}
}

func parseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
