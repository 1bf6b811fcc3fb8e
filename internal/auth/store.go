// Package auth holds the identity of the current user and its bearer token.
//
// The identity is restored from the durable local state on construction and written back
// by Login, Register and Logout only. The store is safe for concurrent use; concurrent
// calls are not queued and Status reflects whichever call completed last.
package auth

import (
	"context"
	"encoding/json"
	"errors"
	"slices"
	"sync"
	"time"

	"github.com/go-jose/go-jose/v4"
	"github.com/go-jose/go-jose/v4/jwt"

	slogctx "github.com/veqryn/slog-context"

	"github.com/openkcm/course-client/internal/course"
	"github.com/openkcm/course-client/internal/localstate"
	"github.com/openkcm/course-client/internal/opstatus"
	"github.com/openkcm/course-client/internal/serviceerr"
)

// Remote is the part of the course service used for authentication.
type Remote interface {
	Register(ctx context.Context, in course.RegisterInput) (course.Credentials, error)
	Login(ctx context.Context, in course.LoginInput) (course.Credentials, error)
}

const (
	fallbackRegister = "Registration failed"
	fallbackLogin    = "Login failed"
)

var tokenAlgorithms = []jose.SignatureAlgorithm{
	jose.HS256, jose.HS384, jose.HS512,
	jose.RS256, jose.RS384, jose.RS512,
	jose.ES256, jose.ES384, jose.ES512,
	jose.PS256, jose.PS384, jose.PS512,
	jose.EdDSA,
}

// State is an immutable snapshot of the store.
type State struct {
	User   *course.User
	Token  string
	Status opstatus.Status
	Err    string
}

type Store struct {
	remote  Remote
	durable localstate.Store

	mu      sync.RWMutex
	state   State
	subs    map[int]func(State)
	nextSub int
	seq     uint64

	// notifyMu orders deliveries; a snapshot older than the last delivered one is dropped.
	notifyMu  sync.Mutex
	delivered uint64
}

// New restores the identity from durable. A malformed user record is discarded and
// removed, never returned as an error.
func New(ctx context.Context, remote Remote, durable localstate.Store) *Store {
	s := &Store{
		remote:  remote,
		durable: durable,
		state:   State{Status: opstatus.StatusIdle},
		subs:    map[int]func(State){},
	}
	s.restore(ctx)
	return s
}

func (s *Store) restore(ctx context.Context) {
	token, err := s.durable.Get(ctx, localstate.KeyToken)
	switch {
	case err == nil:
		s.state.Token = token
	case !errors.Is(err, localstate.ErrNotFound):
		slogctx.Warn(ctx, "Failed to read stored token", "error", err)
	}

	raw, err := s.durable.Get(ctx, localstate.KeyUser)
	if err != nil {
		if errors.Is(err, localstate.ErrNotFound) {
			return
		}
		if !errors.Is(err, localstate.ErrCorrupted) {
			slogctx.Warn(ctx, "Failed to read stored user", "error", err)
			return
		}
	}

	if err == nil {
		user, decodeErr := decodeUser(raw)
		if decodeErr == nil {
			s.state.User = &user
			return
		}
		err = decodeErr
	}

	slogctx.Warn(ctx, "Discarding corrupted stored user", "error", err)
	if err := s.durable.Delete(ctx, localstate.KeyUser); err != nil {
		slogctx.Warn(ctx, "Failed to delete corrupted stored user", "error", err)
	}
}

func decodeUser(raw string) (course.User, error) {
	var user course.User
	if err := json.Unmarshal([]byte(raw), &user); err != nil {
		return course.User{}, errors.Join(serviceerr.ErrCorruptedLocalState, err)
	}
	if user.ID == "" || !user.Role.Valid() {
		return course.User{}, serviceerr.ErrCorruptedLocalState
	}
	return user, nil
}

// Register creates an account and logs it in.
func (s *Store) Register(ctx context.Context, in course.RegisterInput) (course.Credentials, error) {
	in = in.Normalize()
	return s.authenticate(ctx, "register", fallbackRegister, in.Validate, func(ctx context.Context) (course.Credentials, error) {
		return s.remote.Register(ctx, in)
	})
}

func (s *Store) Login(ctx context.Context, in course.LoginInput) (course.Credentials, error) {
	in = in.Normalize()
	return s.authenticate(ctx, "login", fallbackLogin, in.Validate, func(ctx context.Context) (course.Credentials, error) {
		return s.remote.Login(ctx, in)
	})
}

func (s *Store) authenticate(
	ctx context.Context,
	operation, fallback string,
	validate func() error,
	call func(context.Context) (course.Credentials, error),
) (course.Credentials, error) {
	ctx = slogctx.With(ctx, "operation", operation)

	s.commit(func(st *State) {
		st.Status = opstatus.StatusLoading
		st.Err = ""
	})

	if err := validate(); err != nil {
		s.fail(ctx, err, fallback)
		return course.Credentials{}, err
	}

	creds, err := call(ctx)
	if err != nil {
		s.fail(ctx, err, fallback)
		return course.Credentials{}, err
	}

	user := creds.User
	s.commit(func(st *State) {
		st.User = &user
		st.Token = creds.Token
		st.Status = opstatus.StatusSucceeded
		st.Err = ""
	})

	s.persist(ctx, creds)

	slogctx.Debug(ctx, "Authenticated", "userID", user.ID, "role", user.Role)

	return creds, nil
}

func (s *Store) persist(ctx context.Context, creds course.Credentials) {
	data, err := json.Marshal(creds.User)
	if err != nil {
		slogctx.Error(ctx, "Failed to encode user", "error", err)
		return
	}
	if err := s.durable.Set(ctx, localstate.KeyUser, string(data)); err != nil {
		slogctx.Error(ctx, "Failed to persist user", "error", err)
	}
	if err := s.durable.Set(ctx, localstate.KeyToken, creds.Token); err != nil {
		slogctx.Error(ctx, "Failed to persist token", "error", err)
	}
}

func (s *Store) fail(ctx context.Context, err error, fallback string) {
	msg := serviceerr.Message(err, fallback)
	slogctx.Debug(ctx, "Authentication failed", "error", err)
	s.commit(func(st *State) {
		st.Status = opstatus.StatusFailed
		st.Err = msg
	})
}

// Logout clears the identity in memory and in the durable state. It never fails.
func (s *Store) Logout(ctx context.Context) {
	s.commit(func(st *State) {
		st.User = nil
		st.Token = ""
		st.Err = ""
		st.Status = opstatus.StatusIdle
	})

	for _, key := range []string{localstate.KeyUser, localstate.KeyToken} {
		if err := s.durable.Delete(ctx, key); err != nil {
			slogctx.Warn(ctx, "Failed to delete stored credentials", "key", key, "error", err)
		}
	}
}

// ClearError drops the last error message.
func (s *Store) ClearError() {
	s.commit(func(st *State) {
		st.Err = ""
	})
}

// User returns a copy of the current user, nil when logged out.
func (s *Store) User() *course.User {
	return s.Snapshot().User
}

// Token implements remote.TokenSource.
func (s *Store) Token() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.Token
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

func (s *Store) Snapshot() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.clone()
}

// RequireRole returns ErrUnauthenticated without a user and ErrForbidden when the user
// has none of roles.
func (s *Store) RequireRole(roles ...course.Role) error {
	user := s.User()
	if user == nil {
		return serviceerr.ErrUnauthenticated
	}
	if len(roles) > 0 && !slices.Contains(roles, user.Role) {
		return serviceerr.ErrForbidden
	}
	return nil
}

// TokenExpiry reads the exp claim when the token is a JWT. The signature is not
// verified; the result is informational only.
func (s *Store) TokenExpiry() (time.Time, bool) {
	token := s.Token()
	if token == "" {
		return time.Time{}, false
	}

	parsed, err := jwt.ParseSigned(token, tokenAlgorithms)
	if err != nil {
		return time.Time{}, false
	}

	var claims jwt.Claims
	if err := parsed.UnsafeClaimsWithoutVerification(&claims); err != nil || claims.Expiry == nil {
		return time.Time{}, false
	}

	return claims.Expiry.Time(), true
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
	if st.User != nil {
		u := *st.User
		c.User = &u
	}
	return c
}
