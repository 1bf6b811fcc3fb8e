package cmdutils

import (
	"context"
	"fmt"
	"log/slog"
	"syscall"
	"time"

	"github.com/openkcm/common-sdk/pkg/commoncfg"
	"github.com/openkcm/common-sdk/pkg/health"
	"github.com/openkcm/common-sdk/pkg/logger"
	"github.com/openkcm/common-sdk/pkg/otlp"
	"github.com/openkcm/common-sdk/pkg/status"
	"github.com/samber/oops"
	"github.com/spf13/cobra"

	slogctx "github.com/veqryn/slog-context"

	"github.com/openkcm/course-client/internal/config"
)

const (
	healthStatusTimeout = 5 * time.Second
)

// BusinessFunc is the body of a command once the configuration is loaded.
type BusinessFunc func(context.Context, *config.Config) error

// WrapperFunc prepares the process (logger, telemetry, status server) around a BusinessFunc.
type WrapperFunc func(context.Context, BusinessFunc, *config.Config) error

func CobraCommand(
	use, short, long, buildInfo string,
	wrapperFunc WrapperFunc,
	businessFunc BusinessFunc,
) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		Long:  long,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return Run(cmd.Context(), buildInfo, wrapperFunc, businessFunc)
		},
	}
}

// Run loads the configuration and runs fn through wrapperFunc. Commands with their own
// flags and arguments call it from their RunE.
func Run(
	ctx context.Context,
	buildInfo string,
	wrapperFunc WrapperFunc,
	fn BusinessFunc,
) error {
	cfg, err := LoadConfig(buildInfo)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	err = wrapperFunc(ctx, fn, cfg)
	if err != nil {
		return fmt.Errorf("running the command: %w", err)
	}

	return nil
}

// RunAsService is for long running commands: telemetry and the status server are started.
func RunAsService(ctx context.Context, fn BusinessFunc, cfg *config.Config) error {
	return run(ctx, true, true, fn, cfg)
}

// RunAsJob is for one-off jobs with telemetry, such as migrations.
func RunAsJob(ctx context.Context, fn BusinessFunc, cfg *config.Config) error {
	return run(ctx, true, false, fn, cfg)
}

// RunAsCommand is for interactive commands: only the logger is initialised.
func RunAsCommand(ctx context.Context, fn BusinessFunc, cfg *config.Config) error {
	return run(ctx, false, false, fn, cfg)
}

func run(ctx context.Context, withTelemetry, withStatusServer bool, fn BusinessFunc, cfg *config.Config) error {
	// LoggerConfig
	err := logger.InitAsDefault(cfg.Logger, cfg.Application)
	if err != nil {
		return oops.In("main").
			Wrapf(err, "Failed to initialise the logger")
	}
	slogctx.Debug(ctx, "Starting the application", slog.Any("config", cfg))

	// OpenTelemetry
	if withTelemetry {
		err = otlp.Init(ctx, &cfg.Application, &cfg.Telemetry, &cfg.Logger)
		if err != nil {
			return oops.In("main").Wrapf(err, "Failed to load the telemetry")
		}
	}

	// Status Server
	if withStatusServer {
		go func() {
			err := startStatusServer(ctx, cfg)
			if err != nil {
				slogctx.Error(ctx, "Failure on the status server", "error", err)
				_ = syscall.Kill(syscall.Getpid(), syscall.SIGTERM)
			}
		}()
	}

	// Business Logic
	err = fn(ctx, cfg)
	if err != nil {
		return oops.In("main").Wrapf(err, "Failed to run the course client")
	}

	return nil
}

// LoadConfig reads config.yaml from /etc/course-client, $HOME/.course-client or the
// working directory.
func LoadConfig(buildInfo string) (*config.Config, error) {
	defaultValues := map[string]any{}
	cfg := &config.Config{}

	err := commoncfg.LoadConfig(
		cfg,
		defaultValues,
		"/etc/course-client",
		"$HOME/.course-client",
		".",
	)
	if err != nil {
		return nil, fmt.Errorf("loading configuration: %w", err)
	}

	// Update Version
	err = commoncfg.UpdateConfigVersion(
		&cfg.BaseConfig,
		buildInfo,
	)
	if err != nil {
		return nil, fmt.Errorf("updating the version configuration: %w", err)
	}

	return cfg, nil
}

func startStatusServer(ctx context.Context, cfg *config.Config) error {
	liveness := status.WithLiveness(
		health.NewHandler(
			health.NewChecker(health.WithDisabledAutostart()),
		),
	)

	healthOptions, err := readinessOptions(cfg)
	if err != nil {
		return err
	}

	readiness := status.WithReadiness(
		health.NewHandler(
			health.NewChecker(healthOptions...),
		),
	)

	err = status.Start(ctx, &cfg.BaseConfig, liveness, readiness)
	if err != nil {
		return fmt.Errorf("starting status server: %w", err)
	}

	return nil
}

// readinessOptions checks the database only when the local state lives in PostgreSQL.
func readinessOptions(cfg *config.Config) ([]health.Option, error) {
	healthOptions := []health.Option{
		health.WithDisabledAutostart(),
		health.WithTimeout(healthStatusTimeout),
		health.WithStatusListener(statusListener),
	}

	if cfg.Storage.Backend == config.StoragePostgres {
		connStr, err := config.MakeConnStr(cfg.Storage.Database)
		if err != nil {
			return nil, fmt.Errorf("making connection string from config: %w", err)
		}
		healthOptions = append(healthOptions, health.WithDatabaseChecker("pgx", connStr))
	}

	return healthOptions, nil
}

func statusListener(ctx context.Context, state health.State) {
	checks := make(map[string]string, len(state.CheckState))
	for name, check := range state.CheckState {
		checks[name] = fmt.Sprint(check.Status)
		if check.Result != nil {
			slogctx.Warn(ctx, "readiness check failed", "check", name, "error", check.Result)
		}
	}
	slogctx.Info(ctx, "readiness status changed", "status", state.Status, "checks", checks)
}
