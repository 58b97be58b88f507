package logger

import (
	"context"
	"io"
	"log/slog"
	"os"
)

const serviceName = "marketplace-pricing"

// New returns the JSON logger used by the API process, writing to stdout.
func New(appEnv string) *slog.Logger { return NewTo(os.Stdout, appEnv) }

// NewTo is New with an explicit sink. local and dev log at debug level.
func NewTo(w io.Writer, appEnv string) *slog.Logger {
	opts := &slog.HandlerOptions{Level: slog.LevelInfo}
	switch appEnv {
	case "local", "dev":
		opts.Level = slog.LevelDebug
	}
	return slog.New(slog.NewJSONHandler(w, opts)).With("service", serviceName, "env", appEnv)
}

type ctxKey struct{}

// With stores a logger in context.
func With(ctx context.Context, l *slog.Logger) context.Context {
	return context.WithValue(ctx, ctxKey{}, l)
}

// From returns the request-scoped logger, or slog.Default() outside a request.
func From(ctx context.Context) *slog.Logger {
	if l, ok := ctx.Value(ctxKey{}).(*slog.Logger); ok && l != nil {
		return l
	}
	return slog.Default()
}
