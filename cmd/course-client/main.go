package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"time"

	"github.com/openkcm/common-sdk/pkg/utils"
	"github.com/spf13/cobra"

	slogctx "github.com/veqryn/slog-context"

	"github.com/openkcm/course-client/cmd/course-client/account"
	"github.com/openkcm/course-client/cmd/course-client/migrate"
	"github.com/openkcm/course-client/cmd/course-client/sessions"
	"github.com/openkcm/course-client/cmd/course-client/videos"
	"github.com/openkcm/course-client/cmd/course-client/watch"
	"github.com/openkcm/course-client/internal/cmdutils"
)

var (
	// BuildInfo will be set by the build system
	BuildInfo = "{}"

	isVersionCmd     bool
	gracefulShutdown time.Duration
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Course Client Version",
	RunE: func(cmd *cobra.Command, _ []string) error {
		isVersionCmd = true

		value, err := utils.ExtractFromComplexValue(BuildInfo)
		if err != nil {
			return err
		}

		slog.InfoContext(cmd.Context(), value)

		return nil
	},
}

func rootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "course-client",
		Short:         "Course Client",
		Long:          "Course Client browses course sessions and manages their videos on a course service.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().DurationVar(&gracefulShutdown, "graceful-shutdown", 0, "graceful shutdown")
	cmd.PersistentFlags().StringP(cmdutils.OutputFlag, "o", "text", "output format: text, yaml or json")

	cmd.AddCommand(versionCmd)
	cmd.AddCommand(account.Cmds(BuildInfo)...)
	cmd.AddCommand(
		sessions.Cmd(BuildInfo),
		videos.Cmd(BuildInfo),
		watch.Cmd(BuildInfo),
		migrate.Cmd(BuildInfo),
	)

	return cmd
}

func execute() error {
	ctx, cancelOnSignal := signal.NotifyContext(context.Background(), os.Interrupt, os.Kill)
	defer cancelOnSignal()

	if err := rootCmd().ExecuteContext(ctx); err != nil {
		slogctx.Debug(ctx, "command failed", "error", err)
		_, _ = fmt.Fprintln(os.Stderr, err)

		return err
	}

	if !isVersionCmd && gracefulShutdown > 0 {
		_, _ = fmt.Fprintf(os.Stderr, "Graceful shutdown in %s\n", gracefulShutdown)
		time.Sleep(gracefulShutdown)
	}

	return nil
}

func main() {
	if err := execute(); err != nil {
		os.Exit(1)
	}
}
