// Package logger builds the structured logger used by the hosting layers
package logger

import (
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/lmittmann/tint"
	"github.com/mattn/go-isatty"
)

// New constructs a slog logger on stderr tagged with the service name.
// LOG_FORMAT=text switches from JSON to a console handler.
func New(service string) *slog.Logger {
	level := os.Getenv("LOG_LEVEL")
	if strings.EqualFold(os.Getenv("LOG_FORMAT"), "text") {
		return NewConsole(os.Stderr, service, level, !isatty.IsTerminal(os.Stderr.Fd()))
	}
	return NewWithWriter(os.Stderr, service, level)
}

// NewWithWriter is New with an explicit destination and level.
func NewWithWriter(w io.Writer, service, level string) *slog.Logger {
	handler := slog.NewJSONHandler(w, &slog.HandlerOptions{Level: parseLevel(level)})
	return slog.New(handler).With("service", service)
}

// NewConsole writes human-readable lines, coloured unless noColor is set
func NewConsole(w io.Writer, service, level string, noColor bool) *slog.Logger {
	handler := tint.NewHandler(w, &tint.Options{
		Level:      parseLevel(level),
		TimeFormat: time.TimeOnly,
		NoColor:    noColor,
	})
	return slog.New(handler).With("service", service)
}

// Discard returns a logger that drops everything, handy in tests.
func Discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func parseLevel(level string) slog.Leveler {
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
