package cmdutils

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/openkcm/course-client/internal/business"
	"github.com/openkcm/course-client/internal/config"
	"github.com/openkcm/course-client/internal/course"
	"github.com/openkcm/course-client/internal/render"
	"github.com/openkcm/course-client/internal/serviceerr"
)

// OutputFlag is the persistent flag selecting the output format.
const OutputFlag = "output"

// AppFunc is the body of an interactive command.
type AppFunc func(ctx context.Context, app *business.App, p *render.Printer) error

// RunWithApp loads the configuration, builds the application and runs fn with a
// printer writing to the command output.
func RunWithApp(cmd *cobra.Command, buildInfo string, fn AppFunc) error {
	printer, err := Printer(cmd)
	if err != nil {
		return err
	}

	return Run(cmd.Context(), buildInfo, RunAsCommand, func(ctx context.Context, cfg *config.Config) error {
		app, err := business.NewApp(ctx, cfg)
		if err != nil {
			return fmt.Errorf("failed to initialise the application: %w", err)
		}
		defer app.Close()

		return fn(ctx, app, printer)
	})
}

// Printer returns a printer honouring the output flag.
func Printer(cmd *cobra.Command) (*render.Printer, error) {
	var value string
	if flag := cmd.Flags().Lookup(OutputFlag); flag != nil {
		value = flag.Value.String()
	}

	format, err := render.ParseFormat(value)
	if err != nil {
		return nil, err
	}

	return render.NewPrinter(cmd.OutOrStdout(), format), nil
}

// RequireAdmin rejects the command unless an admin is logged in.
func RequireAdmin(app *business.App, action string) error {
	err := app.Auth.RequireRole(course.RoleAdmin)
	switch {
	case errors.Is(err, serviceerr.ErrUnauthenticated):
		return fmt.Errorf("you must be logged in to %s: %w", action, err)
	case errors.Is(err, serviceerr.ErrForbidden):
		return fmt.Errorf("only admins can %s: %w", action, err)
	}
	return err
}
