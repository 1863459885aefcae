// Package observability provides the structured logger and the token
// accounting used by the CLI session report.
package observability

import (
	"io"
	"log/slog"
	"strings"

	"github.com/datatalk/datatalk/internal/config"
)

// NewLogger builds the application logger. Level comes from
// DATATALK_LOG_LEVEL (debug, info, warn, error; default warn so normal
// runs stay quiet), format from DATATALK_LOG_JSON.
func NewLogger(lookup config.LookupFunc, writer io.Writer) *slog.Logger {
	if writer == nil {
		writer = io.Discard
	}

	level := slog.LevelWarn
	if lookup != nil {
		if raw, ok := lookup("DATATALK_LOG_LEVEL"); ok {
			switch strings.ToLower(strings.TrimSpace(raw)) {
			case "debug":
				level = slog.LevelDebug
			case "info":
				level = slog.LevelInfo
			case "warn", "warning":
				level = slog.LevelWarn
			case "error":
				level = slog.LevelError
			}
		}
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if lookup != nil {
		if raw, ok := lookup("DATATALK_LOG_JSON"); ok && strings.EqualFold(strings.TrimSpace(raw), "true") {
			handler = slog.NewJSONHandler(writer, opts)
		}
	}
	if handler == nil {
		handler = slog.NewTextHandler(writer, opts)
	}
	return slog.New(handler)
}
