package log

import (
	"context"

	"github.com/rs/zerolog"
)

type ctxKey string

const requestIDKey ctxKey = "request_id"

// ContextWithRequestID stores id in ctx.
func ContextWithRequestID(ctx context.Context, id string) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, requestIDKey, id)
}

// RequestIDFromContext returns the request ID stored in ctx, or "".
func RequestIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if v, ok := ctx.Value(requestIDKey).(string); ok {
		return v
	}
	return ""
}

// WithContext adds correlation fields found in ctx to logger. The result is
// a pointer so callers can chain level methods directly.
func WithContext(ctx context.Context, logger zerolog.Logger) *zerolog.Logger {
	rid := RequestIDFromContext(ctx)
	if rid != "" {
		logger = logger.With().Str(FieldRequestID, rid).Logger()
	}
	return &logger
}
