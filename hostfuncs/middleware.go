package hostfuncs

import (
	"context"
	"log/slog"
	"time"
)

// Middleware wraps a ByteHandler.
type Middleware func(next ByteHandler) ByteHandler

// PanicRecoveryMiddleware turns a panicking binding into an ErrorResponse so
// a host-side bug cannot take the plugin call down with it.
func PanicRecoveryMiddleware() Middleware {
	return func(next ByteHandler) ByteHandler {
		return func(ctx context.Context, payload []byte) (resp []byte, err error) {
			defer func() {
				if r := recover(); r != nil {
					resp, err = NewPanicError(r).ToJSON(), nil
				}
			}()
			return next(ctx, payload)
		}
	}
}

// LoggingMiddleware logs each binding call at debug level, and failures at
// error level, with the calling plugin and function name.
func LoggingMiddleware(logger *slog.Logger) Middleware {
	if logger == nil {
		logger = slog.Default()
	}
	return func(next ByteHandler) ByteHandler {
		return func(ctx context.Context, payload []byte) ([]byte, error) {
			call, _ := CallFrom(ctx)
			start := time.Now()
			resp, err := next(ctx, payload)
			attrs := []any{
				"plugin", call.Plugin,
				"function", call.Function,
				"request_bytes", len(payload),
				"duration", time.Since(start),
			}
			if err != nil {
				logger.ErrorContext(ctx, "host function failed", append(attrs, "error", err)...)
			} else {
				logger.DebugContext(ctx, "host function called", attrs...)
			}
			return resp, err
		}
	}
}
