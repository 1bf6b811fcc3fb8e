//go:build integration

package integration_test

import (
	"bytes"
	"context"
	"io"
	"io/fs"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"

	"github.com/docker/go-connections/nat"
	"github.com/goccy/go-yaml"
	"github.com/openkcm/common-sdk/pkg/commoncfg"
	"github.com/stretchr/testify/require"

	"github.com/openkcm/course-client/internal/config"
	"github.com/openkcm/course-client/internal/dbtest/postgrestest"
	"github.com/openkcm/course-client/internal/dbtest/valkeytest"
	"github.com/openkcm/course-client/internal/remote/remotetest"
)

type closeFunc func(ctx context.Context)

type infraStat struct {
	PostgresPort   nat.Port
	ValKeyPort     nat.Port
	Remote         *remotetest.Server
	ConfigFilePath string
	Procdir        string
	Cfg            config.Config

	closeFuncs []closeFunc
}

func initInfra(t *testing.T, testName string) (istat infraStat) {
	t.Helper()

	// Since the config is read from the file $PWD/config.yaml,
	// we're running the process in a subdirectory so that we aren't interferring with the other tests.
	wd, err := os.Getwd()
	require.NoError(t, err, "failed to get wd")
	istat.Procdir = filepath.Join(wd, testName+"-test")
	istat.ConfigFilePath = filepath.Join(istat.Procdir, "config.yaml")

	err = os.MkdirAll(istat.Procdir, fs.ModePerm)
	require.NoError(t, err, "failed to create a dir for the process")

	err = os.WriteFile(istat.ConfigFilePath, []byte(validConfig), fs.ModePerm)
	require.NoError(t, err, "failed to write config file")

	err = commoncfg.LoadConfig(&istat.Cfg, nil, istat.Procdir)
	require.NoError(t, err, "failed to load config")

	istat.Cfg.Storage.Backend = config.StorageFile
	istat.Cfg.Storage.File.Dir = filepath.Join(istat.Procdir, "state")
	istat.Cfg.Storage.SQLite.Path = filepath.Join(istat.Procdir, "state.db")

	return istat
}

func (istat *infraStat) PrepareRemote(t *testing.T, opts ...remotetest.Option) {
	t.Helper()

	istat.Remote = remotetest.New(opts...)
	istat.closeFuncs = append(istat.closeFuncs, func(context.Context) { istat.Remote.Close() })

	istat.Cfg.Remote.BaseURL = istat.Remote.URL
}

func (istat *infraStat) PreparePostgres(t *testing.T) {
	t.Helper()

	pgClient, pgPort, pgTerminate := postgrestest.Start(t.Context())
	pgClient.Close()

	istat.PostgresPort = pgPort
	istat.closeFuncs = append(istat.closeFuncs, pgTerminate)

	istat.Cfg.Storage.Backend = config.StoragePostgres
	istat.Cfg.Storage.Database.Name = postgrestest.DBName
	istat.Cfg.Storage.Database.User = commoncfg.SourceRef{Source: "embedded", Value: postgrestest.DBUser}
	istat.Cfg.Storage.Database.Password = commoncfg.SourceRef{Source: "embedded", Value: postgrestest.DBPassword}
	istat.Cfg.Storage.Database.Host = commoncfg.SourceRef{Source: "embedded", Value: postgrestest.DBHost}
	istat.Cfg.Storage.Database.Port = pgPort.Port()
}

func (istat *infraStat) PrepareValKey(t *testing.T) {
	t.Helper()

	_, vkPort, vkTerminate := valkeytest.Start(t.Context())

	istat.ValKeyPort = vkPort
	istat.closeFuncs = append(istat.closeFuncs, vkTerminate)

	istat.Cfg.Storage.Backend = config.StorageValKey
	istat.Cfg.Storage.ValKey.Host = commoncfg.SourceRef{Source: "embedded", Value: valkeytest.Addr(vkPort)}
	istat.Cfg.Storage.ValKey.User = commoncfg.SourceRef{Source: "embedded", Value: ""}
	istat.Cfg.Storage.ValKey.Password = commoncfg.SourceRef{Source: "embedded", Value: ""}
}

// PrepareConfig writes a config file for running the test into the ConfigFilePath.
func (istat *infraStat) PrepareConfig(t *testing.T) {
	t.Helper()

	data, err := yaml.Marshal(istat.Cfg)
	require.NoError(t, err, "failed to encode config")

	err = os.WriteFile(istat.ConfigFilePath, data, fs.ModePerm)
	require.NoError(t, err, "failed to write config")
}

// Run executes the client inside Procdir and returns its standard output.
func (istat *infraStat) Run(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()

	wd, err := os.Getwd()
	require.NoError(t, err, "failed to get wd")

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(t.Context(), filepath.Join(wd, binary), args...)
	cmd.Dir = istat.Procdir
	cmd.Stdin = strings.NewReader(stdin)
	cmd.Stdout = &stdout
	cmd.Stderr = io.MultiWriter(&stderr, testWriter{t})

	err = cmd.Run()
	if err != nil {
		return stdout.String(), &runError{err: err, stderr: stderr.String()}
	}

	return stdout.String(), nil
}

// MustRun is Run failing the test on a non-zero exit.
func (istat *infraStat) MustRun(t *testing.T, stdin string, args ...string) string {
	t.Helper()

	out, err := istat.Run(t, stdin, args...)
	require.NoError(t, err, "running %v", args)

	return out
}

func (istat *infraStat) Close(ctx context.Context) {
	os.Remove(istat.ConfigFilePath)
	os.RemoveAll(istat.Procdir)

	for _, close := range istat.closeFuncs {
		close(ctx)
	}
}

type runError struct {
	err    error
	stderr string
}

func (e *runError) Error() string {
	return e.err.Error() + ": " + e.stderr
}

type testWriter struct {
	t *testing.T
}

func (w testWriter) Write(p []byte) (int, error) {
	w.t.Logf("%s", p)
	return len(p), nil
}
