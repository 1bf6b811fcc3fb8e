package business

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	slogctx "github.com/veqryn/slog-context"

	"github.com/openkcm/course-client/internal/config"
	"github.com/openkcm/course-client/internal/course"
	"github.com/openkcm/course-client/internal/serviceerr"
)

var ErrInvalidInterval = errors.New("watch interval must be positive")

// WatchMain refreshes the session list periodically until ctx is cancelled.
func WatchMain(ctx context.Context, cfg *config.Config) error {
	app, err := NewApp(ctx, cfg)
	if err != nil {
		return fmt.Errorf("failed to initialise the application: %w", err)
	}
	defer app.Close()

	return Watch(ctx, app, cfg.Watch.Interval, func(ctx context.Context, sessions []course.Session) {
		slogctx.Info(ctx, "Session list changed", "sessions", len(sessions))
	})
}

// Watch calls FetchAll every interval and reports the list to onChange whenever it
// differs from the previous one. Failed refreshes are logged and keep the cached list.
func Watch(ctx context.Context, app *App, interval time.Duration, onChange func(context.Context, []course.Session)) error {
	if interval <= 0 {
		return fmt.Errorf("%w: %s", ErrInvalidInterval, interval)
	}
	if err := app.Auth.RequireRole(); err != nil {
		return err
	}

	var last []course.Session
	first := true

	c := time.Tick(interval)
	for {
		sessions, err := app.Sessions.FetchAll(ctx)
		switch {
		case err != nil:
			slogctx.Error(ctx, "Failed to refresh sessions", "error", serviceerr.Message(err, "Fetch failed"))
		case first || !slices.EqualFunc(last, sessions, sameSession):
			first = false
			last = sessions
			onChange(ctx, sessions)
		}

		select {
		case <-c:
			continue
		case <-ctx.Done():
			return nil
		}
	}
}

func sameSession(a, b course.Session) bool {
	if a.ID != b.ID || a.Title != b.Title || deref(a.Description) != deref(b.Description) {
		return false
	}
	return slices.EqualFunc(a.Videos, b.Videos, func(x, y course.Video) bool {
		return x.ID == y.ID && x.Title == y.Title
	})
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
