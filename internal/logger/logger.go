// Package logger provides structured logging built on log/slog with
// trace-aware records.
package logger

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"runtime"
	"time"

	"go.opentelemetry.io/otel/trace"
)

// Level represents a logging level.
type Level slog.Level

// Log levels.
const (
	LevelDebug = Level(slog.LevelDebug)
	LevelInfo  = Level(slog.LevelInfo)
	LevelWarn  = Level(slog.LevelWarn)
	LevelError = Level(slog.LevelError)
)

// LoggerInterface is the logging contract consumed across the application.
// All methods take a context so trace IDs can be attached to records.
type LoggerInterface interface {
	Debug(ctx context.Context, msg string, args ...any)
	Info(ctx context.Context, msg string, args ...any)
	Warn(ctx context.Context, msg string, args ...any)
	Error(ctx context.Context, msg string, args ...any)
	With(args ...any) LoggerInterface
}

// EventFunc is an optional hook invoked for every record at or above Error.
type EventFunc func(ctx context.Context, msg string)

// Logger wraps slog.Logger adding trace correlation and an error hook.
type Logger struct {
	handler slog.Handler
	onError EventFunc
}

// New constructs a Logger writing JSON records to w at the given minimum
// level. The service name is attached to every record. onError may be nil.
func New(w io.Writer, minLevel Level, serviceName string, onError EventFunc) *Logger {
	h := slog.NewJSONHandler(w, &slog.HandlerOptions{
		AddSource: true,
		Level:     slog.Level(minLevel),
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			if a.Key == slog.SourceKey {
				if src, ok := a.Value.Any().(*slog.Source); ok {
					a.Value = slog.StringValue(fmt.Sprintf("%s:%d", src.File, src.Line))
				}
			}
			return a
		},
	})

	return &Logger{
		handler: h.WithAttrs([]slog.Attr{slog.String("service", serviceName)}),
		onError: onError,
	}
}

// NewStdLogger returns a Logger suitable for tests: text output, debug level.
func NewStdLogger(w io.Writer) *Logger {
	return &Logger{handler: slog.NewTextHandler(w, &slog.HandlerOptions{Level: slog.LevelDebug})}
}

// Debug logs at debug level.
func (l *Logger) Debug(ctx context.Context, msg string, args ...any) {
	l.write(ctx, slog.LevelDebug, msg, args...)
}

// Info logs at info level.
func (l *Logger) Info(ctx context.Context, msg string, args ...any) {
	l.write(ctx, slog.LevelInfo, msg, args...)
}

// Warn logs at warn level.
func (l *Logger) Warn(ctx context.Context, msg string, args ...any) {
	l.write(ctx, slog.LevelWarn, msg, args...)
}

// Error logs at error level and fires the error hook if configured.
func (l *Logger) Error(ctx context.Context, msg string, args ...any) {
	l.write(ctx, slog.LevelError, msg, args...)
	if l.onError != nil {
		l.onError(ctx, msg)
	}
}

// With returns a Logger with the given attributes attached to every record.
func (l *Logger) With(args ...any) LoggerInterface {
	attrs := argsToAttrs(args)
	return &Logger{handler: l.handler.WithAttrs(attrs), onError: l.onError}
}

func (l *Logger) write(ctx context.Context, level slog.Level, msg string, args ...any) {
	if !l.handler.Enabled(ctx, level) {
		return
	}

	var pcs [1]uintptr
	runtime.Callers(3, pcs[:]) // skip Callers, write, and the public method
	r := slog.NewRecord(time.Now(), level, msg, pcs[0])
	r.Add(args...)

	// Correlate with the active span, if any.
	if span := trace.SpanFromContext(ctx); span.SpanContext().IsValid() {
		sc := span.SpanContext()
		r.AddAttrs(
			slog.String("trace_id", sc.TraceID().String()),
			slog.String("span_id", sc.SpanID().String()),
		)
	}

	_ = l.handler.Handle(ctx, r)
}

func argsToAttrs(args []any) []slog.Attr {
	attrs := make([]slog.Attr, 0, len(args)/2)
	for i := 0; i+1 < len(args); i += 2 {
		key, ok := args[i].(string)
		if !ok {
			key = fmt.Sprint(args[i])
		}
		attrs = append(attrs, slog.Any(key, args[i+1]))
	}
	return attrs
}
