// Package slogctx carries a slog.Logger in a context.Context.
package slogctx

import (
	"context"
	"log/slog"
)

type slogCtxKey struct{}

func New(l *slog.Logger) context.Context {
	return NewWithContext(context.Background(), l)
}

func NewWithContext(ctx context.Context, l *slog.Logger) context.Context {
	return context.WithValue(ctx, slogCtxKey{}, l)
}

// With returns a context whose logger has the given attributes added.
func With(ctx context.Context, args ...any) context.Context {
	return NewWithContext(ctx, FromContext(ctx).With(args...))
}

// FromContext returns the context's logger. If the context has no logger, slog.Default() is returned.
func FromContext(ctx context.Context) *slog.Logger {
	if l, ok := ctx.Value(slogCtxKey{}).(*slog.Logger); ok {
		return l
	}
	return slog.Default()
}
