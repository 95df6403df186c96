// Package logging carries a request scoped slog.Logger through a context so
// transport middleware and application services share the same attributes.
package logging

import (
	"context"
	"log/slog"
)

type ctxKey struct{}

// ContextWithLogger attaches the logger to a derived context. A nil logger
// leaves the context untouched.
func ContextWithLogger(ctx context.Context, logger *slog.Logger) context.Context {
	if ctx == nil || logger == nil {
		return ctx
	}
	return context.WithValue(ctx, ctxKey{}, logger)
}

// FromContext returns the attached logger, or nil when none was attached.
func FromContext(ctx context.Context) *slog.Logger {
	if ctx == nil {
		return nil
	}
	logger, _ := ctx.Value(ctxKey{}).(*slog.Logger)
	return logger
}
