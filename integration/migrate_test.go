//go:build integration

package integration_test

import (
	"testing"

	"github.com/docker/go-connections/nat"
	"github.com/jackc/pgx/v5"
	"github.com/openkcm/common-sdk/pkg/commoncfg"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go/modules/postgres"

	"github.com/openkcm/course-client/internal/config"
	"github.com/openkcm/course-client/internal/dbtest/postgrestest"
)

func TestMigrate(t *testing.T) {
	ctx := t.Context()

	// This test doesn't use postgrestest.Start because it needs an empty DB
	pgContainer, err := postgres.Run(
		ctx,
		"postgres:17-alpine",
		postgres.WithDatabase(postgrestest.DBName),
		postgres.WithUsername(postgrestest.DBUser),
		postgres.WithPassword(postgrestest.DBPassword),
		postgres.BasicWaitStrategies(),
	)
	require.NoError(t, err, "failed to start PostgreSQL")
	defer pgContainer.Terminate(ctx)

	port, err := pgContainer.MappedPort(ctx, nat.Port("5432"))
	require.NoError(t, err, "failed to get mapped port for the PostgreSQL container")

	istat := initInfra(t, "migrate")
	defer istat.Close(ctx)

	istat.Cfg.Storage.Backend = config.StoragePostgres
	istat.Cfg.Storage.Database.Name = postgrestest.DBName
	istat.Cfg.Storage.Database.User = commoncfg.SourceRef{Source: "embedded", Value: postgrestest.DBUser}
	istat.Cfg.Storage.Database.Password = commoncfg.SourceRef{Source: "embedded", Value: postgrestest.DBPassword}
	istat.Cfg.Storage.Database.Host = commoncfg.SourceRef{Source: "embedded", Value: postgrestest.DBHost}
	istat.Cfg.Storage.Database.Port = port.Port()
	istat.PrepareConfig(t)

	istat.MustRun(t, "", "migrate")
	// a second run has nothing to apply
	istat.MustRun(t, "", "migrate")

	conn, err := pgx.Connect(ctx, postgrestest.ConnStr(port))
	require.NoError(t, err)
	defer conn.Close(ctx)

	var exists bool
	err = conn.QueryRow(ctx, "SELECT to_regclass('public.local_state') IS NOT NULL").Scan(&exists)
	require.NoError(t, err)
	assert.True(t, exists, "local_state table is missing")
}

func TestMigrate_InvalidDatabaseConfig(t *testing.T) {
	ctx := t.Context()

	istat := initInfra(t, "migrate-invalid")
	defer istat.Close(ctx)

	istat.Cfg.Storage.Backend = config.StoragePostgres
	istat.Cfg.Storage.Database.Host = commoncfg.SourceRef{Source: "file", File: commoncfg.CredentialFile{Path: "/nonexistent/host"}}
	istat.PrepareConfig(t)

	_, err := istat.Run(t, "", "migrate")
	assert.Error(t, err)
}
