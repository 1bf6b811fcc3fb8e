// Package migrations embeds the goose migrations of the SQL local state backends.
package migrations

import (
	"embed"
	"io/fs"
)

//go:embed postgres/*.sql
var postgresFS embed.FS

//go:embed sqlite/*.sql
var sqliteFS embed.FS

// Postgres returns the migrations of the PostgreSQL backend rooted at the migration files.
func Postgres() fs.FS {
	return mustSub(postgresFS, "postgres")
}

// SQLite returns the migrations of the SQLite backend rooted at the migration files.
func SQLite() fs.FS {
	return mustSub(sqliteFS, "sqlite")
}

func mustSub(fsys embed.FS, dir string) fs.FS {
	sub, err := fs.Sub(fsys, dir)
	if err != nil {
		panic(err)
	}
	return sub
}
