package daemon

import (
	"io"
	"log/slog"
	"strings"

	slogctx "github.com/veqryn/slog-context"

	"github.com/ivanvanderbyl/gmg-smoker/pkg/config"
)

// NewLogger builds a logger for cfg whose records carry attributes appended
// to the context with slogctx.Append.
func NewLogger(w io.Writer, cfg config.LoggingConfig) *slog.Logger {
	opts := &slog.HandlerOptions{Level: ParseLevel(cfg.Level)}

	var h slog.Handler
	switch strings.ToLower(cfg.Format) {
	case "json":
		h = slog.NewJSONHandler(w, opts)
	default:
		h = slog.NewTextHandler(w, opts)
	}

	return slog.New(slogctx.NewHandler(h, nil))
}

// SetupLogging installs the default logger.
func SetupLogging(w io.Writer, cfg config.LoggingConfig) *slog.Logger {
	logger := NewLogger(w, cfg)
	slog.SetDefault(logger)
	return logger
}

func ParseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
