// Package session caches the sessions of the course service and keeps the cache in sync
// with the outcome of remote calls.
//
// Mutations are commit-on-success: a failed call never changes the cached list or the
// focused session. The store keeps one shared Status that reflects the call that
// completed last; per call records are kept by an opstatus.Tracker.
package session

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"sync"

	slogctx "github.com/veqryn/slog-context"

	"github.com/openkcm/course-client/internal/course"
	"github.com/openkcm/course-client/internal/opstatus"
	"github.com/openkcm/course-client/internal/remote"
	"github.com/openkcm/course-client/internal/serviceerr"
)

const (
	opFetchAll    = "fetchAll"
	opFetchOne    = "fetchOne"
	opCreate      = "create"
	opDelete      = "delete"
	opCreateVideo = "createVideo"
	opDeleteVideo = "deleteVideo"
)

// State is an immutable snapshot of the store.
type State struct {
	Sessions []course.Session
	Focused  *course.Session
	Status   opstatus.Status
	Err      string
}

type Store struct {
	remote   Remote
	notifier Notifier
	tracker  *opstatus.Tracker

	mu      sync.RWMutex
	state   State
	subs    map[int]func(State)
	nextSub int
	seq     uint64

	// notifyMu orders deliveries; a snapshot older than the last delivered one is dropped.
	notifyMu  sync.Mutex
	delivered uint64
}

type Option func(*Store)

// WithNotifier replaces the default notifier, which logs notices.
func WithNotifier(n Notifier) Option {
	return func(s *Store) {
		s.notifier = n
	}
}

// WithTracker replaces the default tracker, which never expires records.
func WithTracker(t *opstatus.Tracker) Option {
	return func(s *Store) {
		s.tracker = t
	}
}

func New(r Remote, opts ...Option) *Store {
	s := &Store{
		remote:   r,
		notifier: logNotifier{},
		tracker:  opstatus.NewTracker(0),
		state: State{
			Sessions: []course.Session{},
			Status:   opstatus.StatusIdle,
		},
		subs: map[int]func(State){},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s
}

// FetchAll replaces the cached list with the server's, in server order.
func (s *Store) FetchAll(ctx context.Context) ([]course.Session, error) {
	ctx, id := s.begin(ctx, opFetchAll)

	sessions, err := s.remote.ListSessions(ctx)
	if err != nil {
		return nil, s.fail(ctx, id, err, remote.FallbackFetchAll)
	}

	sessions = cloneAll(sessions)
	s.succeed(ctx, id, func(st *State) {
		st.Sessions = cloneAll(sessions)
	})

	return sessions, nil
}

// FetchOne replaces the focused session.
func (s *Store) FetchOne(ctx context.Context, sessionID string) (course.Session, error) {
	ctx, id := s.begin(ctx, opFetchOne)

	sess, err := s.remote.GetSession(ctx, sessionID)
	if err != nil {
		return course.Session{}, s.fail(ctx, id, err, remote.FallbackFetchOne)
	}

	s.succeed(ctx, id, func(st *State) {
		focused := sess.Clone()
		st.Focused = &focused
	})

	return sess.Clone(), nil
}

// Create adds the new session at the front of the list.
func (s *Store) Create(ctx context.Context, in course.SessionInput) (course.Session, error) {
	if err := in.Validate(); err != nil {
		return course.Session{}, s.reject(ctx, opCreate, err, remote.FallbackCreate)
	}

	ctx, id := s.begin(ctx, opCreate)

	sess, err := s.remote.CreateSession(ctx, in)
	if err != nil {
		return course.Session{}, s.fail(ctx, id, err, remote.FallbackCreate)
	}

	s.succeed(ctx, id, func(st *State) {
		st.Sessions = slices.Insert(cloneAll(st.Sessions), 0, sess.Clone())
	})

	return sess.Clone(), nil
}

// Delete removes the session from the list. Deleting an unknown id leaves the list as is.
func (s *Store) Delete(ctx context.Context, sessionID string) error {
	ctx, id := s.begin(ctx, opDelete)

	if err := s.remote.DeleteSession(ctx, sessionID); err != nil {
		return s.fail(ctx, id, err, remote.FallbackDelete)
	}

	s.succeed(ctx, id, func(st *State) {
		st.Sessions = slices.DeleteFunc(cloneAll(st.Sessions), func(sess course.Session) bool {
			return sess.ID == sessionID
		})
		if st.Focused != nil && st.Focused.ID == sessionID {
			st.Focused = nil
		}
	})

	return nil
}

// CreateVideo uploads a video and stores the updated parent session returned by the
// service. A failure additionally raises a notice.
func (s *Store) CreateVideo(ctx context.Context, in course.VideoInput) (course.Session, error) {
	if err := in.Validate(s.remote.VideoSource()); err != nil {
		err = s.reject(ctx, opCreateVideo, err, remote.FallbackCreateVideo)
		s.notifyUploadFailure(ctx, err)
		return course.Session{}, err
	}

	ctx, id := s.begin(ctx, opCreateVideo)

	parent, err := s.remote.CreateVideo(ctx, in)
	if err != nil {
		err = s.fail(ctx, id, err, remote.FallbackCreateVideo)
		s.notifyUploadFailure(ctx, err)
		return course.Session{}, err
	}

	s.succeed(ctx, id, func(st *State) {
		sessions := cloneAll(st.Sessions)
		if i := slices.IndexFunc(sessions, func(sess course.Session) bool { return sess.ID == parent.ID }); i >= 0 {
			sessions[i] = parent.Clone()
		} else {
			sessions = slices.Insert(sessions, 0, parent.Clone())
		}
		st.Sessions = sessions

		if st.Focused != nil && st.Focused.ID == parent.ID {
			focused := parent.Clone()
			st.Focused = &focused
		}
	})

	return parent.Clone(), nil
}

func (s *Store) notifyUploadFailure(ctx context.Context, err error) {
	s.notifier.Notify(ctx, Notice{
		Level:   slog.LevelError,
		Message: fmt.Sprintf("%s: %s", remote.FallbackCreateVideo, serviceerr.Message(err, remote.FallbackCreateVideo)),
	})
}

// DeleteVideo removes the video from the session the service names, or from every
// cached session when the service does not disclose it.
func (s *Store) DeleteVideo(ctx context.Context, videoID string) error {
	ctx, id := s.begin(ctx, opDeleteVideo)

	deleted, err := s.remote.DeleteVideo(ctx, videoID)
	if err != nil {
		return s.fail(ctx, id, err, remote.FallbackDeleteVideo)
	}

	owns := func(sess course.Session) bool {
		return deleted.SessionID == "" || sess.ID == deleted.SessionID
	}

	s.succeed(ctx, id, func(st *State) {
		sessions := cloneAll(st.Sessions)
		for i, sess := range sessions {
			if owns(sess) && sess.HasVideo(videoID) {
				sessions[i] = sess.WithoutVideo(videoID)
			}
		}
		st.Sessions = sessions

		if st.Focused != nil && owns(*st.Focused) && st.Focused.HasVideo(videoID) {
			focused := st.Focused.WithoutVideo(videoID)
			st.Focused = &focused
		}
	})

	return nil
}

// ClearError drops the shared error message.
func (s *Store) ClearError() {
	s.commit(func(st *State) {
		st.Err = ""
	})
}

func (s *Store) Snapshot() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.clone()
}

func (s *Store) Sessions() []course.Session {
	return s.Snapshot().Sessions
}

func (s *Store) Focused() *course.Session {
	return s.Snapshot().Focused
}

func (s *Store) Status() opstatus.Status {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.Status
}

func (s *Store) Err() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.Err
}

// Operation returns the record of a single call.
func (s *Store) Operation(id string) (opstatus.Operation, bool) {
	return s.tracker.Get(id)
}

// Operations returns the retained call records, oldest first.
func (s *Store) Operations() []opstatus.Operation {
	return s.tracker.List()
}

// Subscribe registers fn to receive committed states. Deliveries are serialised and
// a state older than one already delivered is skipped, so the last state fn sees is
// the current one. fn must not mutate the store. The returned function unsubscribes
// and may be called more than once.
func (s *Store) Subscribe(fn func(State)) func() {
	s.mu.Lock()
	id := s.nextSub
	s.nextSub++
	s.subs[id] = fn
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		delete(s.subs, id)
		s.mu.Unlock()
	}
}

// begin records the pending transition: shared status loading, shared error cleared.
func (s *Store) begin(ctx context.Context, name string) (context.Context, string) {
	id := opstatus.IDFromContext(ctx)
	ctx = slogctx.With(ctx, "operation", name, "operationID", id)

	s.tracker.Begin(id, name)
	s.commit(func(st *State) {
		st.Status = opstatus.StatusLoading
		st.Err = ""
	})

	slogctx.Debug(ctx, "Operation started")

	return ctx, id
}

func (s *Store) succeed(ctx context.Context, id string, mutate func(*State)) {
	s.tracker.Succeed(id)
	s.commit(func(st *State) {
		mutate(st)
		st.Status = opstatus.StatusSucceeded
	})

	slogctx.Debug(ctx, "Operation succeeded")
}

func (s *Store) fail(ctx context.Context, id string, err error, fallback string) error {
	msg := serviceerr.Message(err, fallback)

	s.tracker.Fail(id, msg)
	s.commit(func(st *State) {
		st.Status = opstatus.StatusFailed
		st.Err = msg
	})

	slogctx.Debug(ctx, "Operation failed", "error", err)

	return err
}

// reject fails a call whose input did not validate. No remote call is made.
func (s *Store) reject(ctx context.Context, name string, err error, fallback string) error {
	id := opstatus.IDFromContext(ctx)
	ctx = slogctx.With(ctx, "operation", name, "operationID", id)

	s.tracker.Begin(id, name)
	return s.fail(ctx, id, err, fallback)
}

func (s *Store) commit(mutate func(*State)) {
	s.mu.Lock()
	mutate(&s.state)
	s.seq++
	seq := s.seq
	snapshot := s.state.clone()
	subs := make([]func(State), 0, len(s.subs))
	for _, fn := range s.subs {
		subs = append(subs, fn)
	}
	s.mu.Unlock()

	s.notifyMu.Lock()
	defer s.notifyMu.Unlock()
	if seq <= s.delivered {
		return
	}
	s.delivered = seq
	for _, fn := range subs {
		fn(snapshot)
	}
}

func (st State) clone() State {
	c := st
	c.Sessions = cloneAll(st.Sessions)
	if st.Focused != nil {
		f := st.Focused.Clone()
		c.Focused = &f
	}
	return c
}

func cloneAll(sessions []course.Session) []course.Session {
	out := make([]course.Session, len(sessions))
	for i, sess := range sessions {
		out[i] = sess.Clone()
	}
	return out
}
