// SPDX-License-Identifier: MPL-2.0
// Copyright (c) 2025 Daniel Schmidt

package axonius

import (
	"context"
	"fmt"
	"io"
	"log"
	"log/slog"
	"os"
	"strings"
	"unicode/utf8"
)

// MaxLogValueLength limits the length of a single logged value. Longer values
// are truncated.
const MaxLogValueLength = 1024

// Logger is the pluggable structured logger used by the client and the saved
// query service.
//
// Implementations receive key-value pairs after the message. The library ships
// three implementations:
//   - NoOpLogger: discards everything (default)
//   - DefaultLogger: level-filtered lines through the standard log package
//   - SlogLogger: forwards to a *slog.Logger
//
// Example:
//
//	client, _ := axonius.NewClient("https://axonius.example.com",
//	    axonius.APIKey(key),
//	    axonius.APISecret(secret),
//	    axonius.WithLogger(axonius.NewDefaultLogger(axonius.LogLevelInfo)))
type Logger interface {
	Debug(ctx context.Context, msg string, keysAndValues ...any)
	Info(ctx context.Context, msg string, keysAndValues ...any)
	Warn(ctx context.Context, msg string, keysAndValues ...any)
	Error(ctx context.Context, msg string, keysAndValues ...any)
}

// LogLevel represents the severity threshold for logging
type LogLevel int

const (
	// LogLevelDebug enables all log levels (most verbose)
	LogLevelDebug LogLevel = iota

	// LogLevelInfo enables Info, Warn, and Error logs
	LogLevelInfo

	// LogLevelWarn enables Warn and Error logs
	LogLevelWarn

	// LogLevelError enables only Error logs
	LogLevelError

	// LogLevelNone disables all logging
	LogLevelNone
)

// String returns the string representation of a LogLevel
func (l LogLevel) String() string {
	switch l {
	case LogLevelDebug:
		return "DEBUG"
	case LogLevelInfo:
		return "INFO"
	case LogLevelWarn:
		return "WARN"
	case LogLevelError:
		return "ERROR"
	case LogLevelNone:
		return "NONE"
	default:
		return fmt.Sprintf("UNKNOWN(%d)", l)
	}
}

// ParseLogLevel converts a level name (case-insensitive) to a LogLevel.
// Unknown names return LogLevelNone and an error.
func ParseLogLevel(name string) (LogLevel, error) {
	switch strings.ToUpper(strings.TrimSpace(name)) {
	case "DEBUG":
		return LogLevelDebug, nil
	case "INFO":
		return LogLevelInfo, nil
	case "WARN", "WARNING":
		return LogLevelWarn, nil
	case "ERROR":
		return LogLevelError, nil
	case "NONE", "OFF", "":
		return LogLevelNone, nil
	default:
		return LogLevelNone, fmt.Errorf("invalid log level: %q (valid values: debug, info, warn, error, none)", name)
	}
}

// DefaultLogger writes level-filtered lines of the form
// "[LEVEL] message key1=value1 key2=value2" through a standard library logger.
type DefaultLogger struct {
	level LogLevel
	out   *log.Logger
}

// NewDefaultLogger creates a DefaultLogger writing to stderr
func NewDefaultLogger(level LogLevel) *DefaultLogger {
	return NewDefaultLoggerWriter(level, os.Stderr)
}

// NewDefaultLoggerWriter creates a DefaultLogger writing to w
func NewDefaultLoggerWriter(level LogLevel, w io.Writer) *DefaultLogger {
	return &DefaultLogger{level: level, out: log.New(w, "", log.LstdFlags)}
}

// Debug logs a debug message with structured key-value pairs
func (l *DefaultLogger) Debug(_ context.Context, msg string, keysAndValues ...any) {
	l.log(LogLevelDebug, msg, keysAndValues...)
}

// Info logs an informational message with structured key-value pairs
func (l *DefaultLogger) Info(_ context.Context, msg string, keysAndValues ...any) {
	l.log(LogLevelInfo, msg, keysAndValues...)
}

// Warn logs a warning message with structured key-value pairs
func (l *DefaultLogger) Warn(_ context.Context, msg string, keysAndValues ...any) {
	l.log(LogLevelWarn, msg, keysAndValues...)
}

// Error logs an error message with structured key-value pairs
func (l *DefaultLogger) Error(_ context.Context, msg string, keysAndValues ...any) {
	l.log(LogLevelError, msg, keysAndValues...)
}

// sanitizeLogValue renders val for a single log line. Control characters,
// ANSI escapes, zero-width runes and RTL overrides are neutralized so a value
// cannot forge additional log entries, and long values are truncated.
func sanitizeLogValue(val any) string {
	str := fmt.Sprintf("%v", val)

	if len(str) > MaxLogValueLength {
		str = str[:MaxLogValueLength] + "...[TRUNCATED]"
	}

	var builder strings.Builder
	builder.Grow(len(str))

	for i := 0; i < len(str); {
		r, size := utf8.DecodeRuneInString(str[i:])
		if size == 0 {
			size = 1
		}
		i += size

		if r == utf8.RuneError && size == 1 {
			builder.WriteRune('.')
			continue
		}

		switch {
		case r == 0x200B, r == 0x200C, r == 0x200D, r == 0xFEFF:
			// zero-width: dropped
		case r == 0x202E:
			builder.WriteRune(' ')
		case r == '\n', r == '\r', r == '\t', r == 0x0C:
			builder.WriteRune(' ')
		case r < 32, r == 127:
			builder.WriteRune('.')
		default:
			builder.WriteRune(r)
		}
	}

	return builder.String()
}

func (l *DefaultLogger) log(level LogLevel, msg string, keysAndValues ...any) {
	if l.level > level || level == LogLevelNone {
		return
	}

	var builder strings.Builder
	builder.Grow(len(msg) + 10 + len(keysAndValues)*25)

	builder.WriteString("[")
	builder.WriteString(level.String())
	builder.WriteString("] ")
	builder.WriteString(msg)

	for i := 0; i < len(keysAndValues); i += 2 {
		builder.WriteString(" ")
		builder.WriteString(sanitizeLogValue(keysAndValues[i]))
		if i+1 < len(keysAndValues) {
			builder.WriteString("=")
			builder.WriteString(sanitizeLogValue(keysAndValues[i+1]))
		} else {
			builder.WriteString("=<MISSING>")
		}
	}

	l.out.Println(builder.String())
}

// SlogLogger forwards log calls to a *slog.Logger.
type SlogLogger struct {
	logger *slog.Logger
}

// NewSlogLogger wraps logger. A nil logger uses slog.Default().
func NewSlogLogger(logger *slog.Logger) *SlogLogger {
	if logger == nil {
		logger = slog.Default()
	}
	return &SlogLogger{logger: logger}
}

// Debug forwards to slog.Logger.DebugContext
func (s *SlogLogger) Debug(ctx context.Context, msg string, keysAndValues ...any) {
	s.logger.DebugContext(ctx, msg, keysAndValues...)
}

// Info forwards to slog.Logger.InfoContext
func (s *SlogLogger) Info(ctx context.Context, msg string, keysAndValues ...any) {
	s.logger.InfoContext(ctx, msg, keysAndValues...)
}

// Warn forwards to slog.Logger.WarnContext
func (s *SlogLogger) Warn(ctx context.Context, msg string, keysAndValues ...any) {
	s.logger.WarnContext(ctx, msg, keysAndValues...)
}

// Error forwards to slog.Logger.ErrorContext
func (s *SlogLogger) Error(ctx context.Context, msg string, keysAndValues ...any) {
	s.logger.ErrorContext(ctx, msg, keysAndValues...)
}

// NoOpLogger discards all log messages. It is the default logger.
type NoOpLogger struct{}

// Debug discards the log message
func (n *NoOpLogger) Debug(_ context.Context, _ string, _ ...any) {}

// Info discards the log message
func (n *NoOpLogger) Info(_ context.Context, _ string, _ ...any) {}

// Warn discards the log message
func (n *NoOpLogger) Warn(_ context.Context, _ string, _ ...any) {}

// Error discards the log message
func (n *NoOpLogger) Error(_ context.Context, _ string, _ ...any) {}
