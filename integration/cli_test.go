//go:build integration

package integration_test

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openkcm/course-client/internal/course"
)

var (
	adminUser   = course.User{Name: "Ada Admin", Email: "ada@example.com", Role: course.RoleAdmin}
	studentUser = course.User{Name: "Sam Student", Email: "sam@example.com", Role: course.RoleStudent}
)

const password = "secret1"

func TestCLI_Identity(t *testing.T) {
	ctx := t.Context()

	istat := initInfra(t, "identity")
	defer istat.Close(ctx)

	istat.PrepareRemote(t)
	istat.PrepareConfig(t)

	out := istat.MustRun(t, "", "whoami")
	assert.Equal(t, "Not logged in.\n", out)

	out = istat.MustRun(t, password+"\n", "register", "--name", "Nora New", "--email", " nora@example.com ")
	assert.Equal(t, "Nora New <nora@example.com> (STUDENT)\n", out)

	// the identity survives the process
	out = istat.MustRun(t, "", "whoami", "-o", "json")
	var user course.User
	require.NoError(t, json.Unmarshal([]byte(out), &user))
	assert.Equal(t, "nora@example.com", user.Email)
	assert.Equal(t, course.RoleStudent, user.Role)
	assert.NotEmpty(t, user.ID)

	_, err := istat.Run(t, password+"\n", "register", "--name", "Nora New", "--email", "nora@example.com")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "User already exists")

	_, err = istat.Run(t, "", "login", "--email", "nora@example.com", "--password", "wrong-password")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Invalid credentials")

	out = istat.MustRun(t, "", "logout")
	assert.Equal(t, "Logged out.\n", out)

	out = istat.MustRun(t, "", "whoami")
	assert.Equal(t, "Not logged in.\n", out)
}

func TestCLI_SessionsAndVideos(t *testing.T) {
	ctx := t.Context()

	istat := initInfra(t, "sessions")
	defer istat.Close(ctx)

	istat.PrepareRemote(t)
	istat.PrepareConfig(t)
	istat.Remote.AddUser(adminUser, password)

	istat.MustRun(t, "", "login", "--email", adminUser.Email, "--password", password)

	out := istat.MustRun(t, "", "sessions", "list")
	assert.Equal(t, "No sessions.\n", out)

	out = istat.MustRun(t, "", "sessions", "create", "--title", "Algebra", "--description", "Linear equations", "-o", "json")
	var created course.Session
	require.NoError(t, json.Unmarshal([]byte(out), &created))
	require.NotEmpty(t, created.ID)
	assert.Empty(t, created.Videos)

	videoPath := filepath.Join(istat.Procdir, "lesson.mp4")
	require.NoError(t, os.WriteFile(videoPath, []byte("not really a video"), 0o600))

	out = istat.MustRun(t, "", "videos", "add",
		"--session", created.ID,
		"--title", "Lesson one",
		"--file", videoPath,
		"--duration", "125",
		"-o", "json",
	)
	var parent course.Session
	require.NoError(t, json.Unmarshal([]byte(out), &parent))
	require.Len(t, parent.Videos, 1)
	videoID := parent.Videos[0].ID

	upload, ok := istat.Remote.Upload(videoID)
	require.True(t, ok)
	assert.Equal(t, "not really a video", string(upload))

	out = istat.MustRun(t, "", "sessions", "get", created.ID)
	assert.Contains(t, out, "Algebra")
	assert.Contains(t, out, "Lesson one")
	assert.Contains(t, out, "2:05")

	istat.MustRun(t, "", "videos", "delete", videoID)
	out = istat.MustRun(t, "", "sessions", "get", created.ID, "-o", "json")
	var afterDelete course.Session
	require.NoError(t, json.Unmarshal([]byte(out), &afterDelete))
	assert.Empty(t, afterDelete.Videos)

	istat.MustRun(t, "", "sessions", "delete", created.ID)
	// deleting twice is not an error
	istat.MustRun(t, "", "sessions", "delete", created.ID)

	_, err := istat.Run(t, "", "sessions", "get", created.ID)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Session not found")
}

func TestCLI_AdminOnlyCommands(t *testing.T) {
	ctx := t.Context()

	istat := initInfra(t, "admin-only")
	defer istat.Close(ctx)

	istat.PrepareRemote(t)
	istat.PrepareConfig(t)
	istat.Remote.AddUser(studentUser, password)
	istat.Remote.Seed(course.Session{ID: "s-1", Title: "Geometry", Videos: []course.Video{}})

	_, err := istat.Run(t, "", "videos", "add", "--session", "s-1", "--title", "Intro", "--url", "https://cdn.example.com/intro.mp4")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "you must be logged in to add videos")

	istat.MustRun(t, "", "login", "--email", studentUser.Email, "--password", password)

	out := istat.MustRun(t, "", "sessions", "list")
	assert.Contains(t, out, "Geometry")

	_, err = istat.Run(t, "", "videos", "add", "--session", "s-1", "--title", "Intro", "--url", "https://cdn.example.com/intro.mp4")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "only admins can add videos")

	_, err = istat.Run(t, "", "sessions", "delete", "s-1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "only admins can delete sessions")

	assert.Len(t, istat.Remote.Sessions(), 1)
	assert.Zero(t, istat.Remote.Requests("createVideo"))
}
