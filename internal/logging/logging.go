// Package logging wraps zerolog behind a small adapter exposing only the
// handful of methods cmd/simulator needs, the way logiface-zerolog wraps
// zerolog.Logger behind its own narrower interface rather than passing
// zerolog.Logger around directly.
package logging

import (
	"io"
	"os"

	"github.com/rs/zerolog"
)

// Logger is the narrow logging surface the simulator CLI uses.
type Logger struct {
	z zerolog.Logger
}

// New builds a Logger writing human-readable console output to w
// (typically os.Stderr), at debug level when verbose is set and info
// level otherwise.
func New(w io.Writer, verbose bool) Logger {
	level := zerolog.InfoLevel
	if verbose {
		level = zerolog.DebugLevel
	}
	console := zerolog.ConsoleWriter{Out: w, TimeFormat: "15:04:05"}
	z := zerolog.New(console).Level(level).With().Timestamp().Logger()
	return Logger{z: z}
}

// Discard returns a Logger that drops everything, for tests and
// library callers that don't want console noise.
func Discard() Logger {
	return Logger{z: zerolog.Nop()}
}

// Default is a convenience Logger writing to stderr at info level.
func Default() Logger { return New(os.Stderr, false) }

// Info logs a structured info-level message with key/value fields.
func (l Logger) Info(msg string, fields map[string]any) {
	ev := l.z.Info()
	for k, v := range fields {
		ev = ev.Interface(k, v)
	}
	ev.Msg(msg)
}

// Warn logs a structured warn-level message.
func (l Logger) Warn(msg string, fields map[string]any) {
	ev := l.z.Warn()
	for k, v := range fields {
		ev = ev.Interface(k, v)
	}
	ev.Msg(msg)
}

// Error logs a structured error-level message, attaching err.
func (l Logger) Error(msg string, err error, fields map[string]any) {
	ev := l.z.Error().Err(err)
	for k, v := range fields {
		ev = ev.Interface(k, v)
	}
	ev.Msg(msg)
}

// Debug logs a structured debug-level message. It is emitted only when the
// Logger was built with verbose set (the CLI's --verbose flag).
func (l Logger) Debug(msg string, fields map[string]any) {
	ev := l.z.Debug()
	for k, v := range fields {
		ev = ev.Interface(k, v)
	}
	ev.Msg(msg)
}
