package log

import (
	"context"

	"github.com/smallbiznis/perkhub/pkg/log/ctxlogger"
	"go.uber.org/zap"
)

// L returns a context-aware logger with correlation and tracing metadata.
func L(ctx context.Context) *zap.Logger {
	return ctxlogger.FromContext(ctx)
}

// With enriches a named service logger with request metadata from ctx.
func With(ctx context.Context, base *zap.Logger) *zap.Logger {
	if base == nil {
		return L(ctx)
	}
	return ctxlogger.WithContext(ctx, base)
}
