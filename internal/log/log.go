// SPDX-License-Identifier: Apache-2.0

// Package log provides the leveled, context-aware logger used across docbridge.
package log

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
)

// Logger is the logging surface every docbridge package depends on.
type Logger interface {
	DebugContext(ctx context.Context, msg string, keysAndValues ...any)
	InfoContext(ctx context.Context, msg string, keysAndValues ...any)
	WarnContext(ctx context.Context, msg string, keysAndValues ...any)
	ErrorContext(ctx context.Context, msg string, keysAndValues ...any)
}

const (
	Debug = "DEBUG"
	Info  = "INFO"
	Warn  = "WARN"
	Error = "ERROR"
)

// NewLogger creates a Logger for the given format ("standard" or "json") and level.
func NewLogger(format, level string, out, err io.Writer) (Logger, error) {
	switch strings.ToLower(format) {
	case "json":
		return NewStructuredLogger(out, err, level)
	case "standard":
		return NewStdLogger(out, err, level)
	default:
		return nil, fmt.Errorf("logging format invalid: %s", format)
	}
}

func SeverityToLevel(s string) (slog.Level, error) {
	switch strings.ToUpper(s) {
	case Debug:
		return slog.LevelDebug, nil
	case Info:
		return slog.LevelInfo, nil
	case Warn:
		return slog.LevelWarn, nil
	case Error:
		return slog.LevelError, nil
	default:
		return slog.Level(-5), fmt.Errorf("invalid log level: %s", s)
	}
}

// StdLogger logs human-readable text, splitting info/debug to out and warn/error to err.
type StdLogger struct {
	outLogger *slog.Logger
	errLogger *slog.Logger
}

var _ Logger = (*StdLogger)(nil)

func NewStdLogger(outW, errW io.Writer, logLevel string) (Logger, error) {
	level, err := SeverityToLevel(logLevel)
	if err != nil {
		return nil, err
	}
	programLevel := new(slog.LevelVar)
	programLevel.Set(level)

	opts := &slog.HandlerOptions{Level: programLevel}
	return &StdLogger{
		outLogger: slog.New(slog.NewTextHandler(outW, opts)),
		errLogger: slog.New(slog.NewTextHandler(errW, opts)),
	}, nil
}

func (l *StdLogger) DebugContext(ctx context.Context, msg string, kv ...any) {
	l.outLogger.DebugContext(ctx, msg, kv...)
}

func (l *StdLogger) InfoContext(ctx context.Context, msg string, kv ...any) {
	l.outLogger.InfoContext(ctx, msg, kv...)
}

func (l *StdLogger) WarnContext(ctx context.Context, msg string, kv ...any) {
	l.errLogger.WarnContext(ctx, msg, kv...)
}

func (l *StdLogger) ErrorContext(ctx context.Context, msg string, kv ...any) {
	l.errLogger.ErrorContext(ctx, msg, kv...)
}

// StructuredLogger logs JSON records, tagging each with a trace/span id when the
// context carries one so a tunnel acquire or a schema load can be correlated with its
// otel span.
type StructuredLogger struct {
	outLogger *slog.Logger
	errLogger *slog.Logger
}

var _ Logger = (*StructuredLogger)(nil)

func NewStructuredLogger(outW, errW io.Writer, logLevel string) (Logger, error) {
	level, err := SeverityToLevel(logLevel)
	if err != nil {
		return nil, err
	}
	programLevel := new(slog.LevelVar)
	programLevel.Set(level)

	opts := &slog.HandlerOptions{Level: programLevel, AddSource: true}
	return &StructuredLogger{
		outLogger: slog.New(NewSpanContextHandler(slog.NewJSONHandler(outW, opts))),
		errLogger: slog.New(NewSpanContextHandler(slog.NewJSONHandler(errW, opts))),
	}, nil
}

func (l *StructuredLogger) DebugContext(ctx context.Context, msg string, kv ...any) {
	l.outLogger.DebugContext(ctx, msg, kv...)
}

func (l *StructuredLogger) InfoContext(ctx context.Context, msg string, kv ...any) {
	l.outLogger.InfoContext(ctx, msg, kv...)
}

func (l *StructuredLogger) WarnContext(ctx context.Context, msg string, kv ...any) {
	l.errLogger.WarnContext(ctx, msg, kv...)
}

func (l *StructuredLogger) ErrorContext(ctx context.Context, msg string, kv ...any) {
	l.errLogger.ErrorContext(ctx, msg, kv...)
}
