package log

import (
	"context"
	"log/slog"
	"time"
)

type contextKey string

const loggerContextKey contextKey = "logger"

// WithContext stores logger in ctx.
func WithContext(ctx context.Context, logger *Logger) context.Context {
	return context.WithValue(ctx, loggerContextKey, logger)
}

// FromContext extracts a logger from ctx, falling back to the default one.
func FromContext(ctx context.Context) *Logger {
	if logger, ok := ctx.Value(loggerContextKey).(*Logger); ok {
		return logger
	}
	return &Logger{
		Logger:    slog.Default(),
		component: "unknown",
	}
}

// RequestInfo is what the HTTP layer knows about a finished request.
type RequestInfo struct {
	RequestID string
	Method    string
	Path      string
	UserAgent string
	ClientIP  string
	Status    int
	Duration  time.Duration
}

// StructuredLogger provides structured logging methods with context awareness
type StructuredLogger struct {
	logger *Logger
}

func NewStructuredLogger(logger *Logger) *StructuredLogger {
	return &StructuredLogger{logger: logger}
}

// LogRequest logs a completed HTTP request. 4xx is logged as a warning and
// 5xx as an error.
func (sl *StructuredLogger) LogRequest(ctx context.Context, r RequestInfo) {
	level := slog.LevelInfo
	switch {
	case r.Status >= 500:
		level = slog.LevelError
	case r.Status >= 400:
		level = slog.LevelWarn
	}

	fields := NewFields().
		WithRequestID(r.RequestID).
		WithHTTPRequest(r.Method, r.Path, r.UserAgent, r.ClientIP).
		WithHTTPResponse(r.Status, r.Duration.Milliseconds()).
		WithComponent(ComponentHTTP)

	sl.logger.Logger.Log(ctx, level, "HTTP request completed", fields.ToSlice()...)
}

// LogError logs an error with structured context
func (sl *StructuredLogger) LogError(ctx context.Context, msg string, err error, component, operation string, fields LogFields) {
	if fields == nil {
		fields = NewFields()
	}
	all := fields.
		WithError(err).
		WithOperation(operation).
		WithComponent(component)

	sl.logger.Logger.ErrorContext(ctx, msg, all.ToSlice()...)
}
