// Package sessionmock is a programmable in-memory Remote for Store tests.
package sessionmock

import (
	"context"
	"io"
	"slices"
	"sync"

	"github.com/google/uuid"

	"github.com/openkcm/course-client/internal/course"
	"github.com/openkcm/course-client/internal/remote"
	"github.com/openkcm/course-client/internal/serviceerr"
	"github.com/openkcm/course-client/internal/session"
)

// Operation names used by WithGate and Calls.
const (
	OpListSessions  = "listSessions"
	OpGetSession    = "getSession"
	OpCreateSession = "createSession"
	OpDeleteSession = "deleteSession"
	OpCreateVideo   = "createVideo"
	OpDeleteVideo   = "deleteVideo"
)

type RemoteOption func(*Remote)

type Remote struct {
	mu       sync.Mutex
	sessions []course.Session
	source   course.SourceKind
	calls    map[string]int
	gates    map[string]<-chan struct{}

	omitSessionOnDelete bool

	listErr, getErr, createErr, deleteErr, createVideoErr, deleteVideoErr error
}

var _ = session.Remote(&Remote{})

func WithSessions(sessions ...course.Session) RemoteOption {
	return func(r *Remote) {
		for _, s := range sessions {
			r.sessions = append(r.sessions, s.Clone())
		}
	}
}
func WithVideoSource(kind course.SourceKind) RemoteOption {
	return func(r *Remote) { r.source = kind }
}
func WithListSessionsError(err error) RemoteOption {
	return func(r *Remote) { r.listErr = err }
}
func WithGetSessionError(err error) RemoteOption {
	return func(r *Remote) { r.getErr = err }
}
func WithCreateSessionError(err error) RemoteOption {
	return func(r *Remote) { r.createErr = err }
}
func WithDeleteSessionError(err error) RemoteOption {
	return func(r *Remote) { r.deleteErr = err }
}
func WithCreateVideoError(err error) RemoteOption {
	return func(r *Remote) { r.createVideoErr = err }
}
func WithDeleteVideoError(err error) RemoteOption {
	return func(r *Remote) { r.deleteVideoErr = err }
}

// WithoutSessionOnDeleteVideo makes DeleteVideo hide the owning session.
func WithoutSessionOnDeleteVideo() RemoteOption {
	return func(r *Remote) { r.omitSessionOnDelete = true }
}

// WithGate blocks every call of op until release is closed or the context ends.
func WithGate(op string, release <-chan struct{}) RemoteOption {
	return func(r *Remote) { r.gates[op] = release }
}

func NewInMemRemote(opts ...RemoteOption) *Remote {
	r := &Remote{
		source: course.SourceUpload,
		calls:  make(map[string]int),
		gates:  make(map[string]<-chan struct{}),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(r)
		}
	}
	return r
}

// Calls returns how many times op was invoked.
func (r *Remote) Calls(op string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.calls[op]
}

// ServerSessions returns the remote side state.
func (r *Remote) ServerSessions() []course.Session {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]course.Session, len(r.sessions))
	for i, s := range r.sessions {
		out[i] = s.Clone()
	}
	return out
}

func (r *Remote) VideoSource() course.SourceKind {
	return r.source
}

func (r *Remote) enter(ctx context.Context, op string) error {
	r.mu.Lock()
	r.calls[op]++
	gate := r.gates[op]
	r.mu.Unlock()

	if gate == nil {
		return nil
	}
	select {
	case <-gate:
		return nil
	case <-ctx.Done():
		return &serviceerr.NetworkError{Err: ctx.Err()}
	}
}

func (r *Remote) ListSessions(ctx context.Context) ([]course.Session, error) {
	if err := r.enter(ctx, OpListSessions); err != nil {
		return nil, err
	}
	if r.listErr != nil {
		return nil, r.listErr
	}
	return r.ServerSessions(), nil
}

func (r *Remote) GetSession(ctx context.Context, id string) (course.Session, error) {
	if err := r.enter(ctx, OpGetSession); err != nil {
		return course.Session{}, err
	}
	if r.getErr != nil {
		return course.Session{}, r.getErr
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if i := r.indexOf(id); i >= 0 {
		return r.sessions[i].Clone(), nil
	}
	return course.Session{}, &serviceerr.RemoteError{StatusCode: 404, Message: "Session not found"}
}

func (r *Remote) CreateSession(ctx context.Context, in course.SessionInput) (course.Session, error) {
	if err := r.enter(ctx, OpCreateSession); err != nil {
		return course.Session{}, err
	}
	if r.createErr != nil {
		return course.Session{}, r.createErr
	}

	s := course.Session{ID: uuid.NewString(), Title: in.Title, Description: in.Description, Videos: []course.Video{}}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.sessions = append(r.sessions, s.Clone())
	return s, nil
}

func (r *Remote) DeleteSession(ctx context.Context, id string) error {
	if err := r.enter(ctx, OpDeleteSession); err != nil {
		return err
	}
	if r.deleteErr != nil {
		return r.deleteErr
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.sessions = slices.DeleteFunc(r.sessions, func(s course.Session) bool { return s.ID == id })
	return nil
}

func (r *Remote) CreateVideo(ctx context.Context, in course.VideoInput) (course.Session, error) {
	if err := r.enter(ctx, OpCreateVideo); err != nil {
		return course.Session{}, err
	}
	if r.createVideoErr != nil {
		return course.Session{}, r.createVideoErr
	}
	if in.File != nil {
		if _, err := io.Copy(io.Discard, in.File); err != nil {
			return course.Session{}, &serviceerr.NetworkError{Err: err}
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	i := r.indexOf(in.SessionID)
	if i < 0 {
		return course.Session{}, &serviceerr.RemoteError{StatusCode: 404, Message: "Session not found"}
	}
	r.sessions[i].Videos = append(r.sessions[i].Videos, course.Video{
		ID:          uuid.NewString(),
		Title:       in.Title,
		Description: in.Description,
		SessionID:   in.SessionID,
		URL:         in.URL,
		Duration:    in.Duration,
	})
	return r.sessions[i].Clone(), nil
}

func (r *Remote) DeleteVideo(ctx context.Context, id string) (remote.DeletedVideo, error) {
	if err := r.enter(ctx, OpDeleteVideo); err != nil {
		return remote.DeletedVideo{}, err
	}
	if r.deleteVideoErr != nil {
		return remote.DeletedVideo{}, r.deleteVideoErr
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	deleted := remote.DeletedVideo{ID: id}
	for i := range r.sessions {
		if r.sessions[i].HasVideo(id) {
			if !r.omitSessionOnDelete {
				deleted.SessionID = r.sessions[i].ID
			}
			r.sessions[i] = r.sessions[i].WithoutVideo(id)
		}
	}
	return deleted, nil
}

func (r *Remote) indexOf(id string) int {
	return slices.IndexFunc(r.sessions, func(s course.Session) bool { return s.ID == id })
}
