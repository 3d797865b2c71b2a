// Package logging builds the process logger.
package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/google/uuid"
)

// New creates the application logger.
// It writes to stderr so stdout stays free for command output and JSON.
// The "error" key is renamed to "err" and every record carries the run id.
func New(level slog.Level, runID string) *slog.Logger {
	return NewWithWriter(os.Stderr, level, runID)
}

// NewWithWriter is New with an explicit destination.
func NewWithWriter(w io.Writer, level slog.Level, runID string) *slog.Logger {
	logger := slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{
		Level: level,
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			if a.Key == "error" {
				a.Key = "err"
			}
			return a
		},
	}))
	if runID != "" {
		logger = logger.With("run", runID)
	}
	return logger
}

// NewNop returns a logger that discards everything.
func NewNop() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// NewRunID returns a short random id used to correlate the log lines of
// one invocation.
func NewRunID() string {
	return strings.SplitN(uuid.NewString(), "-", 2)[0]
}

// ParseLevel maps a config log level to slog. verbose forces debug.
func ParseLevel(s string, verbose bool) slog.Level {
	if verbose {
		return slog.LevelDebug
	}
	switch strings.ToLower(s) {
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
