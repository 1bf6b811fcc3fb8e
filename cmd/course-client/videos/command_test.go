package videos

import (
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func parsedAdd(t *testing.T, args ...string) (*cobra.Command, addFlags) {
	t.Helper()

	var flags addFlags
	cmd := &cobra.Command{Use: "add"}
	cmd.Flags().StringVar(&flags.sessionID, "session", "", "")
	cmd.Flags().StringVar(&flags.title, "title", "", "")
	cmd.Flags().StringVar(&flags.description, "description", "", "")
	cmd.Flags().StringVar(&flags.file, "file", "", "")
	cmd.Flags().StringVar(&flags.url, "url", "", "")
	cmd.Flags().Float64Var(&flags.duration, "duration", 0, "")
	require.NoError(t, cmd.Flags().Parse(args))

	return cmd, flags
}

func TestAddFlags_Input(t *testing.T) {
	t.Run("optional fields stay unset when the flags are absent", func(t *testing.T) {
		cmd, flags := parsedAdd(t, "--session", "s-1", "--title", "Intro", "--url", "https://cdn.example.com/v.mp4")

		in, file, err := flags.input(cmd)
		require.NoError(t, err)
		assert.Nil(t, file)
		assert.Nil(t, in.Description)
		assert.Nil(t, in.Duration)
		assert.Nil(t, in.File)
		assert.Equal(t, "s-1", in.SessionID)
		assert.Equal(t, "https://cdn.example.com/v.mp4", in.URL)
	})

	t.Run("explicit zero duration and empty description are kept", func(t *testing.T) {
		cmd, flags := parsedAdd(t, "--duration", "0", "--description", "")

		in, _, err := flags.input(cmd)
		require.NoError(t, err)
		require.NotNil(t, in.Duration)
		assert.Zero(t, *in.Duration)
		require.NotNil(t, in.Description)
		assert.Empty(t, *in.Description)
	})

	t.Run("opens the file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "lesson.mp4")
		require.NoError(t, os.WriteFile(path, []byte("video-bytes"), 0o600))

		cmd, flags := parsedAdd(t, "--file", path)

		in, file, err := flags.input(cmd)
		require.NoError(t, err)
		require.NotNil(t, file)
		defer file.Close()

		assert.Equal(t, "lesson.mp4", in.FileName)
		data, err := io.ReadAll(in.File)
		require.NoError(t, err)
		assert.Equal(t, "video-bytes", string(data))
	})

	t.Run("missing file", func(t *testing.T) {
		cmd, flags := parsedAdd(t, "--file", filepath.Join(t.TempDir(), "missing.mp4"))

		_, _, err := flags.input(cmd)
		assert.ErrorContains(t, err, "opening video file")
	})
}
