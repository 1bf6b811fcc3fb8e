package remote

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"

	"github.com/go-viper/mapstructure/v2"

	"github.com/openkcm/course-client/internal/course"
	"github.com/openkcm/course-client/internal/serviceerr"
)

// Fallback messages used when an error answer carries no message.
const (
	FallbackRegister    = "Registration failed"
	FallbackLogin       = "Login failed"
	FallbackFetchAll    = "Fetch failed"
	FallbackFetchOne    = "Failed to fetch session"
	FallbackCreate      = "Create failed"
	FallbackDelete      = "Delete failed"
	FallbackCreateVideo = "Failed to upload video"
	FallbackDeleteVideo = "Delete video failed"
)

// DeletedVideo is the answer of DELETE /videos/:id. SessionID is empty when the
// service did not disclose the owning session.
type DeletedVideo struct {
	ID        string `mapstructure:"id"`
	SessionID string `mapstructure:"sessionId"`
}

func (c *Client) Register(ctx context.Context, in course.RegisterInput) (course.Credentials, error) {
	return c.authenticate(ctx, "register", "/auth/register", in, FallbackRegister)
}

func (c *Client) Login(ctx context.Context, in course.LoginInput) (course.Credentials, error) {
	return c.authenticate(ctx, "login", "/auth/login", in, FallbackLogin)
}

func (c *Client) authenticate(ctx context.Context, operation, path string, in any, fallback string) (course.Credentials, error) {
	body, err := jsonBody(in)
	if err != nil {
		return course.Credentials{}, err
	}

	resp, err := c.do(ctx, call{
		operation:   operation,
		method:      http.MethodPost,
		path:        path,
		body:        body,
		contentType: "application/json",
		fallback:    fallback,
	})
	if err != nil {
		return course.Credentials{}, err
	}

	var creds course.Credentials
	if err := decode(resp, &creds, fallback); err != nil {
		return course.Credentials{}, err
	}
	if creds.Token == "" || creds.User.ID == "" {
		return course.Credentials{}, &serviceerr.RemoteError{StatusCode: http.StatusOK, Message: fallback}
	}

	return creds, nil
}

func (c *Client) ListSessions(ctx context.Context) ([]course.Session, error) {
	resp, err := c.do(ctx, call{
		operation: "listSessions",
		method:    http.MethodGet,
		path:      "/sessions",
		auth:      true,
		fallback:  FallbackFetchAll,
	})
	if err != nil {
		return nil, err
	}

	var sessions []course.Session
	if err := decode(resp, &sessions, FallbackFetchAll); err != nil {
		return nil, err
	}
	if sessions == nil {
		sessions = []course.Session{}
	}

	return sessions, nil
}

func (c *Client) GetSession(ctx context.Context, id string) (course.Session, error) {
	resp, err := c.do(ctx, call{
		operation: "getSession",
		method:    http.MethodGet,
		path:      pathID("/sessions", id),
		auth:      true,
		fallback:  FallbackFetchOne,
	})
	if err != nil {
		return course.Session{}, err
	}

	return decodeSession(resp, FallbackFetchOne)
}

func (c *Client) CreateSession(ctx context.Context, in course.SessionInput) (course.Session, error) {
	body, err := jsonBody(in)
	if err != nil {
		return course.Session{}, err
	}

	resp, err := c.do(ctx, call{
		operation:   "createSession",
		method:      http.MethodPost,
		path:        "/sessions",
		body:        body,
		contentType: "application/json",
		auth:        true,
		fallback:    FallbackCreate,
	})
	if err != nil {
		return course.Session{}, err
	}

	return decodeSession(resp, FallbackCreate)
}

// DeleteSession treats 404 as success, deleting is idempotent for the client.
func (c *Client) DeleteSession(ctx context.Context, id string) error {
	_, err := c.do(ctx, call{
		operation: "deleteSession",
		method:    http.MethodDelete,
		path:      pathID("/sessions", id),
		auth:      true,
		fallback:  FallbackDelete,
		okStatus:  []int{http.StatusNotFound},
	})
	return err
}

// CreateVideo uploads the video as multipart form data and returns the updated parent session.
func (c *Client) CreateVideo(ctx context.Context, in course.VideoInput) (course.Session, error) {
	pr, pw := io.Pipe()
	form := multipart.NewWriter(pw)

	go func() {
		pw.CloseWithError(writeVideoForm(form, in))
	}()
	defer pr.Close()

	resp, err := c.do(ctx, call{
		operation:   "createVideo",
		method:      http.MethodPost,
		path:        "/videos",
		body:        pr,
		contentType: form.FormDataContentType(),
		auth:        true,
		fallback:    FallbackCreateVideo,
	})
	if err != nil {
		return course.Session{}, err
	}

	return decodeSession(resp, FallbackCreateVideo)
}

func writeVideoForm(form *multipart.Writer, in course.VideoInput) error {
	description := ""
	if in.Description != nil {
		description = *in.Description
	}

	fields := [][2]string{
		{"title", in.Title},
		{"description", description},
		{"sessionId", in.SessionID},
	}
	if in.Duration != nil {
		fields = append(fields, [2]string{"duration", strconv.FormatFloat(*in.Duration, 'f', -1, 64)})
	}
	if in.URL != "" {
		fields = append(fields, [2]string{"url", in.URL})
	}

	for _, f := range fields {
		if err := form.WriteField(f[0], f[1]); err != nil {
			return fmt.Errorf("writing field %s: %w", f[0], err)
		}
	}

	if in.File != nil {
		name := in.FileName
		if name == "" {
			name = "video"
		}
		part, err := form.CreateFormFile("video", name)
		if err != nil {
			return fmt.Errorf("creating video part: %w", err)
		}
		if _, err := io.Copy(part, in.File); err != nil {
			return fmt.Errorf("copying video payload: %w", err)
		}
	}

	return form.Close()
}

// DeleteVideo accepts {id, sessionId?}, the same wrapped in a data envelope, or an empty body.
func (c *Client) DeleteVideo(ctx context.Context, id string) (DeletedVideo, error) {
	resp, err := c.do(ctx, call{
		operation: "deleteVideo",
		method:    http.MethodDelete,
		path:      pathID("/videos", id),
		auth:      true,
		fallback:  FallbackDeleteVideo,
	})
	if err != nil {
		return DeletedVideo{}, err
	}

	deleted := DeletedVideo{ID: id}
	if len(bytes.TrimSpace(resp)) == 0 {
		return deleted, nil
	}

	var raw any
	if err := decode(resp, &raw, FallbackDeleteVideo); err != nil {
		// An unparsable body still means the video is gone.
		return deleted, nil //nolint:nilerr
	}

	fields, ok := raw.(map[string]any)
	if !ok {
		return deleted, nil
	}

	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		WeaklyTypedInput: true,
		Result:           &deleted,
	})
	if err != nil {
		return DeletedVideo{}, fmt.Errorf("creating decoder: %w", err)
	}
	if err := decoder.Decode(fields); err != nil {
		return DeletedVideo{ID: id}, nil //nolint:nilerr
	}
	if deleted.ID == "" {
		deleted.ID = id
	}

	return deleted, nil
}

func decodeSession(resp []byte, fallback string) (course.Session, error) {
	var s course.Session
	if err := decode(resp, &s, fallback); err != nil {
		return course.Session{}, err
	}
	if s.ID == "" {
		return course.Session{}, &serviceerr.RemoteError{StatusCode: http.StatusOK, Message: fallback}
	}
	if s.Videos == nil {
		s.Videos = []course.Video{}
	}
	return s, nil
}
