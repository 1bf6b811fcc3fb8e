package session

import (
	"context"
	"log/slog"

	slogctx "github.com/veqryn/slog-context"
)

// Notice is a transient message for the user, shown apart from the store error.
type Notice struct {
	Level   slog.Level
	Message string
}

// Notifier delivers notices raised by store operations.
type Notifier interface {
	Notify(ctx context.Context, n Notice)
}

// NotifierFunc adapts a function to the Notifier interface.
type NotifierFunc func(ctx context.Context, n Notice)

func (f NotifierFunc) Notify(ctx context.Context, n Notice) {
	f(ctx, n)
}

type logNotifier struct{}

func (logNotifier) Notify(ctx context.Context, n Notice) {
	slogctx.FromCtx(ctx).Log(ctx, n.Level, n.Message)
}
