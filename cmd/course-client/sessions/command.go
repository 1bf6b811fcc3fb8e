// Package sessions holds the commands browsing and editing course sessions.
package sessions

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/openkcm/course-client/internal/business"
	"github.com/openkcm/course-client/internal/cmdutils"
	"github.com/openkcm/course-client/internal/course"
	"github.com/openkcm/course-client/internal/render"
)

func Cmd(buildInfo string) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "sessions",
		Aliases: []string{"session"},
		Short:   "Browse and manage course sessions",
	}

	cmd.AddCommand(
		listCmd(buildInfo),
		getCmd(buildInfo),
		createCmd(buildInfo),
		deleteCmd(buildInfo),
	)

	return cmd
}

func listCmd(buildInfo string) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List all sessions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmdutils.RunWithApp(cmd, buildInfo, func(ctx context.Context, app *business.App, p *render.Printer) error {
				sessions, err := app.Sessions.FetchAll(ctx)
				if err != nil {
					return err
				}
				return p.Sessions(sessions)
			})
		},
	}
}

func getCmd(buildInfo string) *cobra.Command {
	return &cobra.Command{
		Use:   "get SESSION_ID",
		Short: "Show a session with its videos",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmdutils.RunWithApp(cmd, buildInfo, func(ctx context.Context, app *business.App, p *render.Printer) error {
				sess, err := app.Sessions.FetchOne(ctx, args[0])
				if err != nil {
					return err
				}
				return p.Session(sess)
			})
		},
	}
}

func createCmd(buildInfo string) *cobra.Command {
	var in course.SessionInput
	var description string

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a session (admins only)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if cmd.Flags().Changed("description") {
				in.Description = &description
			}
			if err := in.ValidateForm(); err != nil {
				return err
			}

			return cmdutils.RunWithApp(cmd, buildInfo, func(ctx context.Context, app *business.App, p *render.Printer) error {
				if err := cmdutils.RequireAdmin(app, "create sessions"); err != nil {
					return err
				}

				sess, err := app.Sessions.Create(ctx, in)
				if err != nil {
					return err
				}
				return p.Session(sess)
			})
		},
	}

	cmd.Flags().StringVar(&in.Title, "title", "", "session title")
	cmd.Flags().StringVar(&description, "description", "", "session description")

	return cmd
}

func deleteCmd(buildInfo string) *cobra.Command {
	return &cobra.Command{
		Use:   "delete SESSION_ID",
		Short: "Delete a session (admins only)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmdutils.RunWithApp(cmd, buildInfo, func(ctx context.Context, app *business.App, p *render.Printer) error {
				if err := cmdutils.RequireAdmin(app, "delete sessions"); err != nil {
					return err
				}

				if err := app.Sessions.Delete(ctx, args[0]); err != nil {
					return err
				}
				return p.Message("Session deleted.")
			})
		},
	}
}
