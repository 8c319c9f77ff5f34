// Package logger provides structured logging functionality
package logger

import (
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	charmlog "github.com/charmbracelet/log"
	"github.com/mattn/go-isatty"
)

// Logger wraps slog.Logger for application-wide logging
type Logger struct {
	*slog.Logger
}

// Config holds logger configuration
type Config struct {
	Level  string    // debug, info, warn, error
	Format string    // text, json, console, auto
	Output io.Writer // defaults to os.Stdout
}

// ParseLevel maps a level name to a slog level, defaulting to info.
func ParseLevel(name string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(name)) {
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

// New creates a new structured logger
func New(cfg Config) *Logger {
	out := cfg.Output
	if out == nil {
		out = os.Stdout
	}
	level := ParseLevel(cfg.Level)

	var handler slog.Handler
	switch resolveFormat(cfg.Format, out) {
	case "json":
		handler = slog.NewJSONHandler(out, &slog.HandlerOptions{Level: level})
	case "console":
		handler = charmlog.NewWithOptions(out, charmlog.Options{
			Level:           charmlog.Level(level),
			ReportTimestamp: true,
			TimeFormat:      time.Kitchen,
		})
	default:
		handler = slog.NewTextHandler(out, &slog.HandlerOptions{Level: level})
	}

	return &Logger{
		Logger: slog.New(handler),
	}
}

// resolveFormat turns "auto" into console on a terminal and text elsewhere.
func resolveFormat(format string, out io.Writer) string {
	format = strings.ToLower(strings.TrimSpace(format))
	if format != "auto" {
		return format
	}
	if f, ok := out.(*os.File); ok && (isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())) {
		return "console"
	}
	return "text"
}

// WithComponent returns a logger with a component attribute
func (l *Logger) WithComponent(component string) *Logger {
	return &Logger{
		Logger: l.With("component", component),
	}
}

// WithSync returns a logger scoped to one sync cycle
func (l *Logger) WithSync(cycleID string) *Logger {
	return &Logger{
		Logger: l.With("cycle_id", cycleID),
	}
}

// WithRecording returns a logger with recording context attributes
func (l *Logger) WithRecording(recordingID, filePath string) *Logger {
	return &Logger{
		Logger: l.With("recording_id", recordingID, "path", filePath),
	}
}

// Default returns a default logger for quick usage
func Default() *Logger {
	return New(Config{
		Level:  "info",
		Format: "text",
	})
}

// Discard returns a logger that drops everything, for tests
func Discard() *Logger {
	return &Logger{
		Logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
}
