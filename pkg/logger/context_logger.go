package logger

import (
	"context"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

type contextKey string

const (
	sessionIDKey contextKey = "session_id"
	streamIDKey  contextKey = "stream_id"
)

// WithSessionID returns a context carrying the viewer session ID.
func WithSessionID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, sessionIDKey, id)
}

// WithStreamID returns a context carrying the stream ID.
func WithStreamID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, streamIDKey, id)
}

// ContextLogger enriches log entries with identifiers carried in the
// request context.
type ContextLogger struct {
	logger *zap.Logger
}

func NewContextLogger(logger *zap.Logger) *ContextLogger {
	return &ContextLogger{logger: logger}
}

// WithContext returns a logger annotated with any known context fields.
func (cl *ContextLogger) WithContext(ctx context.Context) *zap.Logger {
	var fields []zapcore.Field

	if id, ok := ctx.Value(sessionIDKey).(string); ok && id != "" {
		fields = append(fields, zap.String("session_id", id))
	}
	if id, ok := ctx.Value(streamIDKey).(string); ok && id != "" {
		fields = append(fields, zap.String("stream_id", id))
	}

	if len(fields) == 0 {
		return cl.logger
	}
	return cl.logger.With(fields...)
}

// LogRequest logs one control API request.
func (cl *ContextLogger) LogRequest(ctx context.Context, method, path string, statusCode int, durationMS int64) {
	cl.WithContext(ctx).Info("http_request",
		zap.String("method", method),
		zap.String("path", path),
		zap.Int("status_code", statusCode),
		zap.Int64("duration_ms", durationMS),
	)
}

// LogError logs an error with context fields attached.
func (cl *ContextLogger) LogError(ctx context.Context, err error, message string, fields ...zapcore.Field) {
	cl.WithContext(ctx).With(zap.Error(err)).Error(message, fields...)
}
