// Package videos holds the commands attaching videos to sessions.
package videos

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/openkcm/course-client/internal/business"
	"github.com/openkcm/course-client/internal/cmdutils"
	"github.com/openkcm/course-client/internal/course"
	"github.com/openkcm/course-client/internal/render"
)

func Cmd(buildInfo string) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "videos",
		Aliases: []string{"video"},
		Short:   "Manage the videos of a session (admins only)",
	}

	cmd.AddCommand(
		addCmd(buildInfo),
		deleteCmd(buildInfo),
	)

	return cmd
}

type addFlags struct {
	sessionID   string
	title       string
	description string
	file        string
	url         string
	duration    float64
}

// input maps the flags onto a VideoInput. The caller closes the returned file.
func (f addFlags) input(cmd *cobra.Command) (course.VideoInput, *os.File, error) {
	in := course.VideoInput{
		Title:     f.title,
		SessionID: f.sessionID,
		URL:       f.url,
	}
	if cmd.Flags().Changed("description") {
		in.Description = course.Ptr(f.description)
	}
	if cmd.Flags().Changed("duration") {
		in.Duration = course.Ptr(f.duration)
	}

	if f.file == "" {
		return in, nil, nil
	}

	file, err := os.Open(f.file)
	if err != nil {
		return course.VideoInput{}, nil, fmt.Errorf("opening video file: %w", err)
	}
	in.File = file
	in.FileName = filepath.Base(f.file)

	return in, file, nil
}

func addCmd(buildInfo string) *cobra.Command {
	var flags addFlags

	cmd := &cobra.Command{
		Use:   "add",
		Short: "Upload a video into a session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			in, file, err := flags.input(cmd)
			if err != nil {
				return err
			}
			if file != nil {
				defer file.Close()
			}

			return cmdutils.RunWithApp(cmd, buildInfo, func(ctx context.Context, app *business.App, p *render.Printer) error {
				if err := cmdutils.RequireAdmin(app, "add videos"); err != nil {
					return err
				}
				if err := in.ValidateForm(app.Remote.VideoSource()); err != nil {
					return err
				}

				parent, err := app.Sessions.CreateVideo(ctx, in)
				if err != nil {
					return err
				}
				return p.Session(parent)
			})
		},
	}

	cmd.Flags().StringVar(&flags.sessionID, "session", "", "id of the parent session")
	cmd.Flags().StringVar(&flags.title, "title", "", "video title")
	cmd.Flags().StringVar(&flags.description, "description", "", "video description")
	cmd.Flags().StringVar(&flags.file, "file", "", "path of the video file to upload")
	cmd.Flags().StringVar(&flags.url, "url", "", "video URL, for services that reference videos by URL")
	cmd.Flags().Float64Var(&flags.duration, "duration", 0, "duration in seconds")

	return cmd
}

func deleteCmd(buildInfo string) *cobra.Command {
	return &cobra.Command{
		Use:   "delete VIDEO_ID",
		Short: "Delete a video",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmdutils.RunWithApp(cmd, buildInfo, func(ctx context.Context, app *business.App, p *render.Printer) error {
				if err := cmdutils.RequireAdmin(app, "delete videos"); err != nil {
					return err
				}

				if err := app.Sessions.DeleteVideo(ctx, args[0]); err != nil {
					return err
				}
				return p.Message("Video deleted.")
			})
		},
	}
}
