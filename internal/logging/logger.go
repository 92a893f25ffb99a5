package logging

import (
	"fmt"
	"io"
	"os"
	"strings"
)

// Logger writes human-oriented progress and debug lines to stderr.
// Resolved plaintext values must never reach it except through Secret.
type Logger struct {
	out     io.Writer
	debug   bool
	noColor bool
}

// New creates a logger. With debug=false, Debug calls are dropped.
func New(debug, noColor bool) *Logger {
	return &Logger{out: os.Stderr, debug: debug, noColor: noColor}
}

func (l *Logger) emit(color, mark, format string, args ...interface{}) {
	msg := fmt.Sprintf(format, args...)
	if l.noColor {
		fmt.Fprintf(l.out, "%s %s\n", mark, msg)
		return
	}
	fmt.Fprintf(l.out, "%s%s\033[0m %s\n", color, mark, msg)
}

// Info logs a progress message.
func (l *Logger) Info(format string, args ...interface{}) {
	l.emit("\033[32m", "✓", format, args...)
}

// Warn logs a warning message.
func (l *Logger) Warn(format string, args ...interface{}) {
	l.emit("\033[33m", "⚠", format, args...)
}

// Error logs an error message.
func (l *Logger) Error(format string, args ...interface{}) {
	l.emit("\033[31m", "✗", format, args...)
}

// Debug logs a message only when debug mode is enabled.
func (l *Logger) Debug(format string, args ...interface{}) {
	if !l.debug {
		return
	}
	l.emit("\033[36m", "[DEBUG]", format, args...)
}

// Secret wraps a sensitive value so it renders as [REDACTED] in any
// fmt verb that goes through Stringer or GoStringer.
type Secret string

func (s Secret) String() string   { return "[REDACTED]" }
func (s Secret) GoString() string { return "[REDACTED]" }

// Redact replaces each known sensitive value in s with [REDACTED].
// Values of three characters or fewer are left alone to avoid
// shredding ordinary text.
func Redact(s string, secrets []string) string {
	for _, secret := range secrets {
		if len(secret) > 3 {
			s = strings.ReplaceAll(s, secret, "[REDACTED]")
		}
	}
	return s
}
