package logging

import (
	"context"

	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

type ctxKey struct{}

// WithContext attaches logger to ctx. A nil logger leaves ctx as is.
func WithContext(ctx context.Context, logger *zap.Logger) context.Context {
	if logger == nil {
		return ctx
	}
	return context.WithValue(ctx, ctxKey{}, logger)
}

// FromContext returns the logger attached to ctx, else fallback, else
// zap.L(). Inside a recording span the trace and span ids are added.
func FromContext(ctx context.Context, fallback *zap.Logger) *zap.Logger {
	logger := fallback
	if ctx != nil {
		if l, ok := ctx.Value(ctxKey{}).(*zap.Logger); ok && l != nil {
			logger = l
		}
	}
	if logger == nil {
		logger = zap.L()
	}
	if ctx == nil {
		return logger
	}
	if sc := trace.SpanContextFromContext(ctx); sc.IsValid() {
		logger = logger.With(
			zap.String("trace_id", sc.TraceID().String()),
			zap.String("span_id", sc.SpanID().String()),
		)
	}
	return logger
}
