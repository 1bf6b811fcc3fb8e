package localstatepg

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/openkcm/course-client/internal/localstate"
)

const undefinedTable = "42P01"

var ErrNotMigrated = errors.New("local_state table is missing, run the migrate command")

// Store keeps the local state of one profile in PostgreSQL.
type Store struct {
	db      *pgxpool.Pool
	profile string
}

var _ = localstate.Store(&Store{})

func NewStore(db *pgxpool.Pool, profile string) *Store {
	return &Store{
		db:      db,
		profile: profile,
	}
}

func (s *Store) Get(ctx context.Context, key string) (value string, _ error) {
	if err := s.db.QueryRow(ctx, `SELECT value
FROM local_state
WHERE profile = $1
	AND key = $2;`,
		s.profile, key,
	).Scan(&value); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", localstate.ErrNotFound
		}
		if err, ok := handlePgError(err); ok {
			return "", err
		}

		return "", fmt.Errorf("selecting from local_state: %w", err)
	}

	return value, nil
}

func (s *Store) Set(ctx context.Context, key, value string) error {
	tx, err := s.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return fmt.Errorf("starting transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(
		ctx, `INSERT INTO local_state (profile, key, value)
VALUES ($1, $2, $3)
	ON CONFLICT (profile, key)
	DO UPDATE SET (value, updated_at) = (EXCLUDED.value, now());`,
		s.profile, key, value,
	); err != nil {
		if err, ok := handlePgError(err); ok {
			return err
		}

		return fmt.Errorf("inserting into local_state: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("committing tx: %w", err)
	}

	return nil
}

func (s *Store) Delete(ctx context.Context, key string) error {
	if _, err := s.db.Exec(ctx, `DELETE FROM local_state WHERE profile = $1 AND key = $2;`, s.profile, key); err != nil {
		if err, ok := handlePgError(err); ok {
			return err
		}

		return fmt.Errorf("deleting from local_state: %w", err)
	}

	return nil
}

func handlePgError(err error) (error, bool) {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == undefinedTable {
		return errors.Join(ErrNotMigrated, err), true
	}

	return err, false
}
