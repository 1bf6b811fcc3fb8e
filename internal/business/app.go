package business

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/exaring/otelpgx"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/openkcm/common-sdk/pkg/commoncfg"
	"github.com/valkey-io/valkey-go"

	slogctx "github.com/veqryn/slog-context"

	"github.com/openkcm/course-client/internal/auth"
	"github.com/openkcm/course-client/internal/config"
	"github.com/openkcm/course-client/internal/localstate"
	localstatefile "github.com/openkcm/course-client/internal/localstate/file"
	localstatemem "github.com/openkcm/course-client/internal/localstate/mem"
	localstatepg "github.com/openkcm/course-client/internal/localstate/pg"
	localstatesqlite "github.com/openkcm/course-client/internal/localstate/sqlite"
	localstatevalkey "github.com/openkcm/course-client/internal/localstate/valkey"
	"github.com/openkcm/course-client/internal/opstatus"
	"github.com/openkcm/course-client/internal/remote"
	"github.com/openkcm/course-client/internal/session"
)

// App is the application context shared by every command. It is created once per
// process and owns the connections of the local state backend.
type App struct {
	Config   *config.Config
	Remote   *remote.Client
	Auth     *auth.Store
	Sessions *session.Store

	closeFns []func()
}

type AppOption func(*appOptions)

type appOptions struct {
	remoteOpts  []remote.Option
	sessionOpts []session.Option
	durable     localstate.Store
}

// WithRemoteOptions passes options to the remote client.
func WithRemoteOptions(opts ...remote.Option) AppOption {
	return func(o *appOptions) { o.remoteOpts = append(o.remoteOpts, opts...) }
}

// WithSessionOptions passes options to the session store.
func WithSessionOptions(opts ...session.Option) AppOption {
	return func(o *appOptions) { o.sessionOpts = append(o.sessionOpts, opts...) }
}

// WithLocalState bypasses the configured backend.
func WithLocalState(s localstate.Store) AppOption {
	return func(o *appOptions) { o.durable = s }
}

// NewApp wires the stores. The auth store is the token source of the remote client, so
// a login is visible to every later call.
func NewApp(ctx context.Context, cfg *config.Config, opts ...AppOption) (*App, error) {
	var o appOptions
	for _, opt := range opts {
		opt(&o)
	}

	app := &App{Config: cfg}

	durable := o.durable
	if durable == nil {
		var closeFn func()
		var err error
		durable, closeFn, err = openLocalState(ctx, cfg.Storage)
		if err != nil {
			return nil, fmt.Errorf("opening local state: %w", err)
		}
		app.closeFns = append(app.closeFns, closeFn)
	}

	tokens := &tokenSource{}
	remoteOpts := append([]remote.Option{remote.WithApplication(cfg.Application)}, o.remoteOpts...)
	client, err := remote.New(cfg.Remote, tokens, remoteOpts...)
	if err != nil {
		app.Close()
		return nil, fmt.Errorf("creating remote client: %w", err)
	}

	app.Remote = client
	app.Auth = auth.New(ctx, client, durable)
	tokens.store = app.Auth

	sessionOpts := append([]session.Option{
		session.WithTracker(opstatus.NewTracker(cfg.Sessions.OperationRetention)),
	}, o.sessionOpts...)
	app.Sessions = session.New(client, sessionOpts...)

	return app, nil
}

// Close releases the local state backend. It is safe to call more than once.
func (a *App) Close() {
	for i := len(a.closeFns) - 1; i >= 0; i-- {
		a.closeFns[i]()
	}
	a.closeFns = nil
}

// tokenSource breaks the construction cycle between the remote client and the auth store.
type tokenSource struct {
	store *auth.Store
}

func (t *tokenSource) Token() string {
	if t.store == nil {
		return ""
	}
	return t.store.Token()
}

func openLocalState(ctx context.Context, cfg config.Storage) (localstate.Store, func(), error) {
	noop := func() {}

	switch cfg.Backend {
	case config.StorageFile, "":
		return localstatefile.NewStore(cfg.File.Dir, cfg.Profile), noop, nil

	case config.StorageMemory:
		return localstatemem.NewStore(), noop, nil

	case config.StorageSQLite:
		store, err := localstatesqlite.Open(ctx, expandPath(cfg.SQLite.Path), cfg.Profile)
		if err != nil {
			return nil, nil, fmt.Errorf("opening sqlite local state: %w", err)
		}
		return store, func() {
			if err := store.Close(); err != nil {
				slogctx.Warn(ctx, "Failed to close sqlite local state", "error", err)
			}
		}, nil

	case config.StorageValKey:
		client, err := newValKeyClient(cfg.ValKey)
		if err != nil {
			return nil, nil, err
		}
		return localstatevalkey.NewStore(client, cfg.ValKey.Prefix), client.Close, nil

	case config.StoragePostgres:
		connStr, err := config.MakeConnStr(cfg.Database)
		if err != nil {
			return nil, nil, fmt.Errorf("making dsn from config: %w", err)
		}

		poolCfg, err := pgxpool.ParseConfig(connStr)
		if err != nil {
			return nil, nil, fmt.Errorf("parsing pgxpool config: %w", err)
		}
		poolCfg.ConnConfig.Tracer = otelpgx.NewTracer()

		db, err := pgxpool.NewWithConfig(ctx, poolCfg)
		if err != nil {
			return nil, nil, fmt.Errorf("initialising pgxpool connection: %w", err)
		}
		return localstatepg.NewStore(db, cfg.Profile), db.Close, nil

	default:
		return nil, nil, fmt.Errorf("unknown storage backend %q", cfg.Backend)
	}
}

func newValKeyClient(cfg config.ValKey) (valkey.Client, error) {
	valkeyHost, err := commoncfg.LoadValueFromSourceRef(cfg.Host)
	if err != nil {
		return nil, fmt.Errorf("loading valkey host: %w", err)
	}

	valkeyUsername, err := commoncfg.LoadValueFromSourceRef(cfg.User)
	if err != nil {
		return nil, fmt.Errorf("loading valkey username: %w", err)
	}

	valkeyPassword, err := commoncfg.LoadValueFromSourceRef(cfg.Password)
	if err != nil {
		return nil, fmt.Errorf("loading valkey password: %w", err)
	}

	if len(valkeyHost) == 0 {
		return nil, errors.New("valkey host is not configured")
	}

	valkeyClient, err := valkey.NewClient(valkey.ClientOption{
		InitAddress: []string{string(valkeyHost)},
		Username:    string(valkeyUsername),
		Password:    string(valkeyPassword),
	})
	if err != nil {
		return nil, fmt.Errorf("creating a new valkey client: %w", err)
	}

	return valkeyClient, nil
}

func expandPath(p string) string {
	if p == ":memory:" {
		return p
	}
	return os.ExpandEnv(p)
}
