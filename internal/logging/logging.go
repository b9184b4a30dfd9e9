// Package logging provides structured logging for the feedlog daemon.
//
// This package wraps the standard library's log/slog package to provide
// consistent logging across all components. It supports text and JSON
// output, picks between them automatically when the output is a terminal,
// and hands out component-scoped loggers.
//
// Usage:
//
//	// Initialize at startup
//	logging.Init(logging.Options{Level: slog.LevelInfo, Format: "auto"})
//
//	// Get a component logger
//	log := logging.Component("writer")
//	log.Info("starting new file", "path", path)
package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"golang.org/x/term"
)

// Logger is the global logger instance.
var Logger *slog.Logger

// Output formats.
const (
	FormatText = "text"
	FormatJSON = "json"
	FormatAuto = "auto"
)

// Options configures the global logger.
type Options struct {
	// Level is the minimum level that is emitted.
	Level slog.Level

	// Format is "text", "json" or "auto". Auto selects text when Output is a
	// terminal and JSON otherwise.
	Format string

	// Output is where log lines go. Default: os.Stdout.
	Output io.Writer
}

// Init initializes the global logger.
func Init(opts Options) {
	Logger = New(opts)
	slog.SetDefault(Logger)
}

// New builds a logger without touching the global one.
func New(opts Options) *slog.Logger {
	out := opts.Output
	if out == nil {
		out = os.Stdout
	}

	handlerOpts := &slog.HandlerOptions{
		Level:     opts.Level,
		AddSource: opts.Level == slog.LevelDebug,
	}

	var handler slog.Handler
	if useJSON(opts.Format, out) {
		handler = slog.NewJSONHandler(out, handlerOpts)
	} else {
		handler = slog.NewTextHandler(out, handlerOpts)
	}
	return slog.New(handler)
}

func useJSON(format string, out io.Writer) bool {
	switch strings.ToLower(format) {
	case FormatJSON:
		return true
	case FormatText:
		return false
	}
	f, ok := out.(*os.File)
	if !ok {
		return true
	}
	return !term.IsTerminal(int(f.Fd()))
}

// InitWithHandler initializes the global logger with a custom handler.
// This is useful for testing or custom output destinations.
func InitWithHandler(handler slog.Handler) {
	Logger = slog.New(handler)
	slog.SetDefault(Logger)
}

// Component returns a logger for a specific component.
// The component name is added as an attribute to all log entries.
//
// Example:
//
//	log := logging.Component("supervisor")
//	log.Info("connecting") // Output: time=... level=INFO component=supervisor msg=connecting
func Component(name string) *slog.Logger {
	if Logger == nil {
		Init(Options{Level: slog.LevelInfo, Format: FormatAuto})
	}
	return Logger.With("component", name)
}

// ParseLevel maps a level name to a slog level, case-insensitively.
// CRITICAL and FATAL map to error.
func ParseLevel(name string) (slog.Level, error) {
	switch strings.ToUpper(strings.TrimSpace(name)) {
	case "DEBUG":
		return slog.LevelDebug, nil
	case "", "INFO":
		return slog.LevelInfo, nil
	case "WARN", "WARNING":
		return slog.LevelWarn, nil
	case "ERROR", "CRITICAL", "FATAL":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("unknown log level %q", name)
	}
}

// OpenFile opens path for appending log lines, creating it if needed.
func OpenFile(path string) (*os.File, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open log file: %w", err)
	}
	return f, nil
}
