package business

import (
	"context"
	"fmt"

	"github.com/XSAM/otelsql"
	"github.com/pressly/goose/v3"
	"github.com/samber/oops"

	// Register pgx driver
	_ "github.com/jackc/pgx/v5/stdlib"

	slogctx "github.com/veqryn/slog-context"
	semconv "go.opentelemetry.io/otel/semconv/v1.37.0"

	"github.com/openkcm/course-client/internal/config"
	localstatesqlite "github.com/openkcm/course-client/internal/localstate/sqlite"
	migrations "github.com/openkcm/course-client/sql"
)

// MigrateMain applies the schema migrations of the configured SQL storage backend.
func MigrateMain(ctx context.Context, cfg *config.Config) error {
	switch cfg.Storage.Backend {
	case config.StoragePostgres:
		return migratePostgres(ctx, cfg.Storage.Database)
	case config.StorageSQLite:
		store, err := localstatesqlite.Open(ctx, expandPath(cfg.Storage.SQLite.Path), cfg.Storage.Profile)
		if err != nil {
			return fmt.Errorf("migrating sqlite local state: %w", err)
		}
		return store.Close()
	default:
		slogctx.Info(ctx, "Storage backend has no schema, nothing to migrate", "backend", cfg.Storage.Backend)
		return nil
	}
}

func migratePostgres(ctx context.Context, dbCfg config.Database) error {
	const dialect = "pgx"
	dbSystemName := semconv.DBSystemNamePostgreSQL

	connStr, err := config.MakeConnStr(dbCfg)
	if err != nil {
		return fmt.Errorf("making connection string from config: %w", err)
	}

	db, err := otelsql.Open(dialect, connStr, otelsql.WithAttributes(dbSystemName))
	if err != nil {
		return oops.In("main").Wrapf(err, "opening DB connection")
	}
	defer db.Close()

	reg, err := otelsql.RegisterDBStatsMetrics(db, otelsql.WithAttributes(dbSystemName))
	if err != nil {
		return fmt.Errorf("registering db stats metrics: %w", err)
	}

	defer func() {
		if err := reg.Unregister(); err != nil {
			slogctx.Error(ctx, "failed to unregister db stats metrics", "error", err)
		}
	}()

	provider, err := goose.NewProvider(goose.DialectPostgres, db, migrations.Postgres())
	if err != nil {
		return fmt.Errorf("creating migration provider: %w", err)
	}

	results, err := provider.Up(ctx)
	if err != nil {
		return fmt.Errorf("applying migrations: %w", err)
	}

	for _, r := range results {
		slogctx.Info(ctx, "Applied migration", "version", r.Source.Version, "duration", r.Duration)
	}

	return nil
}
