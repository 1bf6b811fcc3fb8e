// Package localstatesqlite keeps the local state in an embedded SQLite database.
package localstatesqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/XSAM/otelsql"
	"github.com/pressly/goose/v3"

	// Register the pure Go sqlite driver
	_ "modernc.org/sqlite"

	semconv "go.opentelemetry.io/otel/semconv/v1.37.0"

	"github.com/openkcm/course-client/internal/localstate"
	migrations "github.com/openkcm/course-client/sql"
)

const driverName = "sqlite"

var dbSystemName = semconv.DBSystemNameKey.String("sqlite")

type Store struct {
	db      *sql.DB
	profile string
}

var _ = localstate.Store(&Store{})

// Open opens or creates the database at path and applies the pending migrations.
// Use ":memory:" for a throwaway database.
func Open(ctx context.Context, path, profile string) (*Store, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
			return nil, fmt.Errorf("creating database directory: %w", err)
		}
	}

	db, err := otelsql.Open(driverName, dsn(path), otelsql.WithAttributes(dbSystemName))
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	// A single connection keeps ":memory:" databases alive and serialises writers.
	db.SetMaxOpenConns(1)

	provider, err := goose.NewProvider(goose.DialectSQLite3, db, migrations.SQLite())
	if err != nil {
		return nil, errors.Join(fmt.Errorf("creating migration provider: %w", err), db.Close())
	}

	if _, err := provider.Up(ctx); err != nil {
		return nil, errors.Join(fmt.Errorf("applying migrations: %w", err), db.Close())
	}

	return &Store{
		db:      db,
		profile: profile,
	}, nil
}

func dsn(path string) string {
	return "file:" + path + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) Get(ctx context.Context, key string) (value string, _ error) {
	err := s.db.QueryRowContext(ctx, `SELECT value FROM local_state WHERE profile = ? AND key = ?;`, s.profile, key).Scan(&value)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", localstate.ErrNotFound
		}

		return "", fmt.Errorf("selecting from local_state: %w", err)
	}

	return value, nil
}

func (s *Store) Set(ctx context.Context, key, value string) error {
	if _, err := s.db.ExecContext(ctx, `INSERT INTO local_state (profile, key, value)
VALUES (?, ?, ?)
	ON CONFLICT (profile, key)
	DO UPDATE SET value = excluded.value, updated_at = strftime('%Y-%m-%dT%H:%M:%fZ', 'now');`,
		s.profile, key, value,
	); err != nil {
		return fmt.Errorf("inserting into local_state: %w", err)
	}

	return nil
}

func (s *Store) Delete(ctx context.Context, key string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM local_state WHERE profile = ? AND key = ?;`, s.profile, key); err != nil {
		return fmt.Errorf("deleting from local_state: %w", err)
	}

	return nil
}
