// Package account holds the commands managing the identity of the client.
package account

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/openkcm/course-client/internal/business"
	"github.com/openkcm/course-client/internal/cmdutils"
	"github.com/openkcm/course-client/internal/course"
	"github.com/openkcm/course-client/internal/render"
)

func Cmds(buildInfo string) []*cobra.Command {
	return []*cobra.Command{
		registerCmd(buildInfo),
		loginCmd(buildInfo),
		logoutCmd(buildInfo),
		whoamiCmd(buildInfo),
	}
}

func registerCmd(buildInfo string) *cobra.Command {
	var in course.RegisterInput
	var role string

	cmd := &cobra.Command{
		Use:   "register",
		Short: "Create an account and log in",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			password, err := readPassword(cmd, in.Password)
			if err != nil {
				return err
			}
			in.Password = password
			in.Role = course.Role(strings.ToUpper(role))

			in = in.Normalize()
			if err := in.ValidateForm(); err != nil {
				return err
			}

			return cmdutils.RunWithApp(cmd, buildInfo, func(ctx context.Context, app *business.App, p *render.Printer) error {
				creds, err := app.Auth.Register(ctx, in)
				if err != nil {
					return err
				}
				return p.User(&creds.User)
			})
		},
	}

	cmd.Flags().StringVar(&in.Name, "name", "", "display name")
	cmd.Flags().StringVar(&in.Email, "email", "", "email address")
	cmd.Flags().StringVar(&in.Password, "password", "", "password, read from stdin when omitted")
	cmd.Flags().StringVar(&role, "role", "", "ADMIN or STUDENT, the service default when omitted")

	return cmd
}

func loginCmd(buildInfo string) *cobra.Command {
	var in course.LoginInput

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Log in with email and password",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			password, err := readPassword(cmd, in.Password)
			if err != nil {
				return err
			}
			in.Password = password

			in = in.Normalize()
			if err := in.ValidateForm(); err != nil {
				return err
			}

			return cmdutils.RunWithApp(cmd, buildInfo, func(ctx context.Context, app *business.App, p *render.Printer) error {
				creds, err := app.Auth.Login(ctx, in)
				if err != nil {
					return err
				}
				return p.User(&creds.User)
			})
		},
	}

	cmd.Flags().StringVar(&in.Email, "email", "", "email address")
	cmd.Flags().StringVar(&in.Password, "password", "", "password, read from stdin when omitted")

	return cmd
}

func logoutCmd(buildInfo string) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Forget the stored identity",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmdutils.RunWithApp(cmd, buildInfo, func(ctx context.Context, app *business.App, p *render.Printer) error {
				app.Auth.Logout(ctx)
				return p.Message("Logged out.")
			})
		},
	}
}

func whoamiCmd(buildInfo string) *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the logged in user",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmdutils.RunWithApp(cmd, buildInfo, func(_ context.Context, app *business.App, p *render.Printer) error {
				if exp, ok := app.Auth.TokenExpiry(); ok && exp.Before(time.Now()) {
					fmt.Fprintf(cmd.ErrOrStderr(), "The stored token expired at %s, log in again.\n", exp.Format(time.RFC3339))
				}
				return p.User(app.Auth.User())
			})
		},
	}
}

// readPassword returns the flag value, or the first line of stdin.
func readPassword(cmd *cobra.Command, flagValue string) (string, error) {
	if flagValue != "" {
		return flagValue, nil
	}

	line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", fmt.Errorf("reading password: %w", err)
	}

	return strings.TrimRight(line, "\r\n"), nil
}
