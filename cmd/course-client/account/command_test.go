package account

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"testing"
	"testing/iotest"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadPassword(t *testing.T) {
	tests := []struct {
		name  string
		flag  string
		stdin string
		want  string
	}{
		{name: "flag wins", flag: "secret", stdin: "ignored\n", want: "secret"},
		{name: "first stdin line", stdin: "from-stdin\nrest\n", want: "from-stdin"},
		{name: "windows line ending", stdin: "from-stdin\r\n", want: "from-stdin"},
		{name: "no trailing newline", stdin: "from-stdin", want: "from-stdin"},
		{name: "empty stdin", want: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cmd := &cobra.Command{}
			cmd.SetIn(strings.NewReader(tt.stdin))

			got, err := readPassword(cmd, tt.flag)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestReadPassword_ReaderErrors(t *testing.T) {
	t.Run("wrapped end of input keeps the partial line", func(t *testing.T) {
		cmd := &cobra.Command{}
		cmd.SetIn(io.MultiReader(strings.NewReader("partial"), iotest.ErrReader(fmt.Errorf("stdin closed: %w", io.EOF))))

		got, err := readPassword(cmd, "")
		require.NoError(t, err)
		assert.Equal(t, "partial", got)
	})

	t.Run("other read errors are returned", func(t *testing.T) {
		readErr := errors.New("device gone")
		cmd := &cobra.Command{}
		cmd.SetIn(iotest.ErrReader(readErr))

		_, err := readPassword(cmd, "")
		require.ErrorIs(t, err, readErr)
	})
}

func TestCmds_ValidateBeforeLoadingConfig(t *testing.T) {
	tests := []struct {
		name    string
		args    []string
		wantErr string
	}{
		{
			name:    "login with a short password",
			args:    []string{"login", "--email", "ann@example.com", "--password", "abc"},
			wantErr: "Password must be at least 6 characters long",
		},
		{
			name:    "login with an invalid email",
			args:    []string{"login", "--email", "not-an-email", "--password", "secret1"},
			wantErr: "Invalid email address",
		},
		{
			name:    "register with a short name",
			args:    []string{"register", "--name", "Al", "--email", "al@example.com", "--password", "secret1"},
			wantErr: "Name must be at least 3 characters long",
		},
		{
			name:    "register with an unknown role",
			args:    []string{"register", "--name", "Alice", "--email", "al@example.com", "--password", "secret1", "--role", "mentor"},
			wantErr: "Role must be ADMIN or STUDENT",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			root := &cobra.Command{Use: "root", SilenceUsage: true, SilenceErrors: true}
			root.AddCommand(Cmds("{}")...)
			root.SetArgs(tt.args)

			err := root.Execute()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
