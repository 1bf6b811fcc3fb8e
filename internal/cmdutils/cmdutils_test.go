package cmdutils

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/openkcm/common-sdk/pkg/commoncfg"
	"github.com/openkcm/common-sdk/pkg/health"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openkcm/course-client/internal/config"
)

func TestCobraCommand(t *testing.T) {
	noop := func(context.Context, *config.Config) error { return nil }
	passthrough := func(ctx context.Context, fn BusinessFunc, cfg *config.Config) error {
		return fn(ctx, cfg)
	}

	t.Run("creates command with correct properties", func(t *testing.T) {
		cmd := CobraCommand("watch", "short desc", "long description", "{}", passthrough, noop)

		assert.Equal(t, "watch", cmd.Use)
		assert.Equal(t, "short desc", cmd.Short)
		assert.Equal(t, "long description", cmd.Long)
		assert.NotNil(t, cmd.RunE)
	})

	t.Run("fails without a config file", func(t *testing.T) {
		t.Chdir(t.TempDir())
		t.Setenv("HOME", t.TempDir())

		cmd := CobraCommand("watch", "short", "long", "{}", passthrough, noop)
		cmd.SetArgs([]string{})

		err := cmd.Execute()
		assert.ErrorContains(t, err, "loading config")
	})

	t.Run("passes the loaded config to the business function", func(t *testing.T) {
		writeConfig(t, "remote:\n  baseURL: http://courses.example.com/api\n")

		var got *config.Config
		business := func(_ context.Context, cfg *config.Config) error {
			got = cfg
			return nil
		}

		cmd := CobraCommand("watch", "short", "long", "{}", passthrough, business)
		cmd.SetArgs([]string{})

		require.NoError(t, cmd.Execute())
		require.NotNil(t, got)
		assert.Equal(t, "http://courses.example.com/api", got.Remote.BaseURL)
	})

	t.Run("wraps the wrapper error", func(t *testing.T) {
		writeConfig(t, "storage:\n  backend: memory\n")

		wrapperErr := errors.New("wrapper error")
		failing := func(context.Context, BusinessFunc, *config.Config) error {
			return wrapperErr
		}

		cmd := CobraCommand("migrate", "short", "long", "{}", failing, noop)
		cmd.SetArgs([]string{})

		err := cmd.Execute()
		assert.ErrorIs(t, err, wrapperErr)
		assert.ErrorContains(t, err, "running the command")
	})
}

// writeConfig chdirs into a fresh directory holding config.yaml.
func writeConfig(t *testing.T, content string) {
	t.Helper()

	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(content), 0o600))
	t.Chdir(dir)
	t.Setenv("HOME", t.TempDir())
}

func TestStatusListener(t *testing.T) {
	tests := []struct {
		name  string
		state health.State
	}{
		{
			name:  "no checks",
			state: health.State{Status: "up", CheckState: map[string]health.CheckState{}},
		},
		{
			name: "database up",
			state: health.State{
				Status:     "up",
				CheckState: map[string]health.CheckState{"database": {Status: "up"}},
			},
		},
		{
			name: "database down",
			state: health.State{
				Status: "down",
				CheckState: map[string]health.CheckState{
					"database": {Status: "down", Result: errors.New("connection refused")},
				},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.NotPanics(t, func() {
				statusListener(context.Background(), tt.state)
			})
		})
	}
}

func TestStartStatusServer(t *testing.T) {
	t.Run("returns error when connection string creation fails", func(t *testing.T) {
		cfg := &config.Config{
			Storage: config.Storage{
				Backend: config.StoragePostgres,
				Database: config.Database{
					Host: commoncfg.SourceRef{Source: "file", File: commoncfg.CredentialFile{Path: "/nonexistent/file"}},
				},
			},
		}
		ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
		defer cancel()

		err := startStatusServer(ctx, cfg)
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "making connection string from config")
	})
}

func TestReadinessOptions(t *testing.T) {
	tests := []struct {
		name    string
		backend config.StorageBackend
		want    int
	}{
		{name: "file backend has no database checker", backend: config.StorageFile, want: 3},
		{name: "postgres backend adds the database checker", backend: config.StoragePostgres, want: 4},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &config.Config{Storage: config.Storage{
				Backend: tt.backend,
				Database: config.Database{
					Name:     "course_client",
					Port:     "5432",
					Host:     commoncfg.SourceRef{Source: "embedded", Value: "localhost"},
					User:     commoncfg.SourceRef{Source: "embedded", Value: "postgres"},
					Password: commoncfg.SourceRef{Source: "embedded", Value: "secret"},
				},
			}}

			opts, err := readinessOptions(cfg)
			assert.NoError(t, err)
			assert.Len(t, opts, tt.want)
		})
	}
}

func TestHealthStatusTimeout(t *testing.T) {
	t.Run("has correct value", func(t *testing.T) {
		assert.Equal(t, 5*time.Second, healthStatusTimeout)
	})
}

func ExampleCobraCommand() {
	cmd := CobraCommand(
		"watch",
		"Course Client session watcher",
		"Refreshes the session list periodically",
		"{}",
		RunAsService,
		func(context.Context, *config.Config) error { return nil },
	)

	fmt.Printf("Command use: %s\n", cmd.Use)
	// Output: Command use: watch
}
