// Package remotetest provides an in-memory course service for tests.
package remotetest

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"slices"
	"strconv"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/openkcm/course-client/internal/course"
)

// DeleteVideoShape selects the body of DELETE /videos/:id answers.
type DeleteVideoShape int

const (
	DeleteVideoWithSession DeleteVideoShape = iota
	DeleteVideoWithoutSession
	DeleteVideoEmpty
)

type account struct {
	user     course.User
	password string
}

type failure struct {
	status  int
	message string
}

// Server is a fake course service. The zero value is not usable, use New.
type Server struct {
	*httptest.Server

	mu       sync.Mutex
	accounts map[string]account
	tokens   map[string]string
	sessions []course.Session
	uploads  map[string][]byte
	failures map[string]failure
	requests map[string]int

	envelope    bool
	deleteShape DeleteVideoShape
}

type Option func(*Server)

// WithEnvelope wraps every answer except register in {"data": ...}.
func WithEnvelope() Option {
	return func(s *Server) {
		s.envelope = true
	}
}

func WithDeleteVideoShape(shape DeleteVideoShape) Option {
	return func(s *Server) {
		s.deleteShape = shape
	}
}

// New starts the server. Close it with Server.Close.
func New(opts ...Option) *Server {
	s := &Server{
		accounts: map[string]account{},
		tokens:   map[string]string{},
		uploads:  map[string][]byte{},
		failures: map[string]failure{},
		requests: map[string]int{},
	}
	for _, opt := range opts {
		opt(s)
	}

	r := mux.NewRouter()
	r.HandleFunc("/auth/register", s.register).Methods(http.MethodPost).Name("register")
	r.HandleFunc("/auth/login", s.login).Methods(http.MethodPost).Name("login")
	r.HandleFunc("/sessions", s.authenticated(s.listSessions)).Methods(http.MethodGet).Name("listSessions")
	r.HandleFunc("/sessions", s.authenticated(s.admin(s.createSession))).Methods(http.MethodPost).Name("createSession")
	r.HandleFunc("/sessions/{id}", s.authenticated(s.getSession)).Methods(http.MethodGet).Name("getSession")
	r.HandleFunc("/sessions/{id}", s.authenticated(s.admin(s.deleteSession))).Methods(http.MethodDelete).Name("deleteSession")
	r.HandleFunc("/videos", s.authenticated(s.admin(s.createVideo))).Methods(http.MethodPost).Name("createVideo")
	r.HandleFunc("/videos/{id}", s.authenticated(s.admin(s.deleteVideo))).Methods(http.MethodDelete).Name("deleteVideo")
	r.Use(s.countAndFail)

	s.Server = httptest.NewServer(r)

	return s
}

// AddUser registers an account directly and returns a valid token for it.
func (s *Server) AddUser(user course.User, password string) string {
	s.mu.Lock()
	defer s.mu.Unlock()

	if user.ID == "" {
		user.ID = uuid.NewString()
	}
	s.accounts[user.Email] = account{user: user, password: password}
	return s.issueToken(user.ID)
}

// Seed appends sessions in server order.
func (s *Server) Seed(sessions ...course.Session) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, sess := range sessions {
		if sess.Videos == nil {
			sess.Videos = []course.Video{}
		}
		s.sessions = append(s.sessions, sess.Clone())
	}
}

// Sessions returns the server side state.
func (s *Server) Sessions() []course.Session {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]course.Session, len(s.sessions))
	for i, sess := range s.sessions {
		out[i] = sess.Clone()
	}
	return out
}

// Upload returns the payload received for a video.
func (s *Server) Upload(videoID string) ([]byte, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, ok := s.uploads[videoID]
	return data, ok
}

// FailNext makes the next request to the named route answer with status and message.
// An empty message produces a body without a message field.
func (s *Server) FailNext(route string, status int, message string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.failures[route] = failure{status: status, message: message}
}

// Requests returns how many requests reached the named route.
func (s *Server) Requests(route string) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.requests[route]
}

func (s *Server) countAndFail(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		name := ""
		if route := mux.CurrentRoute(r); route != nil {
			name = route.GetName()
		}

		s.mu.Lock()
		s.requests[name]++
		f, fail := s.failures[name]
		delete(s.failures, name)
		s.mu.Unlock()

		if fail {
			if f.message == "" {
				writeJSON(w, f.status, map[string]any{})
				return
			}
			writeError(w, f.status, f.message)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func (s *Server) authenticated(next func(http.ResponseWriter, *http.Request, course.User)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
		if !ok || token == "" {
			writeError(w, http.StatusUnauthorized, "Unauthorized")
			return
		}

		s.mu.Lock()
		userID, known := s.tokens[token]
		var user course.User
		for _, acc := range s.accounts {
			if acc.user.ID == userID {
				user = acc.user
			}
		}
		s.mu.Unlock()

		if !known || user.ID == "" {
			writeError(w, http.StatusUnauthorized, "Invalid token")
			return
		}

		next(w, r, user)
	}
}

func (s *Server) admin(next func(http.ResponseWriter, *http.Request, course.User)) func(http.ResponseWriter, *http.Request, course.User) {
	return func(w http.ResponseWriter, r *http.Request, user course.User) {
		if user.Role != course.RoleAdmin {
			writeError(w, http.StatusForbidden, "Forbidden")
			return
		}
		next(w, r, user)
	}
}

func (s *Server) register(w http.ResponseWriter, r *http.Request) {
	var in course.RegisterInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if in.Email == "" || in.Password == "" || in.Name == "" {
		writeError(w, http.StatusBadRequest, "Missing required fields")
		return
	}
	if in.Role == "" {
		in.Role = course.RoleStudent
	}

	s.mu.Lock()
	if _, exists := s.accounts[in.Email]; exists {
		s.mu.Unlock()
		writeError(w, http.StatusConflict, "User already exists")
		return
	}
	user := course.User{ID: uuid.NewString(), Name: in.Name, Email: in.Email, Role: in.Role}
	s.accounts[in.Email] = account{user: user, password: in.Password}
	token := s.issueToken(user.ID)
	s.mu.Unlock()

	writeJSON(w, http.StatusCreated, course.Credentials{User: user, Token: token})
}

func (s *Server) login(w http.ResponseWriter, r *http.Request) {
	var in course.LoginInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	s.mu.Lock()
	acc, ok := s.accounts[in.Email]
	if !ok || acc.password != in.Password {
		s.mu.Unlock()
		writeError(w, http.StatusUnauthorized, "Invalid credentials")
		return
	}
	token := s.issueToken(acc.user.ID)
	s.mu.Unlock()

	s.reply(w, http.StatusOK, course.Credentials{User: acc.user, Token: token})
}

func (s *Server) listSessions(w http.ResponseWriter, _ *http.Request, _ course.User) {
	s.reply(w, http.StatusOK, s.Sessions())
}

func (s *Server) getSession(w http.ResponseWriter, r *http.Request, _ course.User) {
	id := mux.Vars(r)["id"]

	s.mu.Lock()
	idx := s.indexOf(id)
	var sess course.Session
	if idx >= 0 {
		sess = s.sessions[idx].Clone()
	}
	s.mu.Unlock()

	if idx < 0 {
		writeError(w, http.StatusNotFound, "Session not found")
		return
	}
	s.reply(w, http.StatusOK, sess)
}

func (s *Server) createSession(w http.ResponseWriter, r *http.Request, _ course.User) {
	var in course.SessionInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if in.Title == "" {
		writeError(w, http.StatusBadRequest, "Title is required")
		return
	}

	sess := course.Session{ID: uuid.NewString(), Title: in.Title, Description: in.Description, Videos: []course.Video{}}

	s.mu.Lock()
	s.sessions = append(s.sessions, sess.Clone())
	s.mu.Unlock()

	s.reply(w, http.StatusCreated, sess)
}

func (s *Server) deleteSession(w http.ResponseWriter, r *http.Request, _ course.User) {
	id := mux.Vars(r)["id"]

	s.mu.Lock()
	idx := s.indexOf(id)
	if idx >= 0 {
		s.sessions = slices.Delete(s.sessions, idx, idx+1)
	}
	s.mu.Unlock()

	if idx < 0 {
		writeError(w, http.StatusNotFound, "Session not found")
		return
	}
	w.WriteHeader(http.StatusOK)
}

func (s *Server) createVideo(w http.ResponseWriter, r *http.Request, _ course.User) {
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid multipart body")
		return
	}

	video := course.Video{
		ID:        uuid.NewString(),
		Title:     r.FormValue("title"),
		SessionID: r.FormValue("sessionId"),
		URL:       r.FormValue("url"),
	}
	if d := r.FormValue("description"); d != "" {
		video.Description = &d
	}
	if d := r.FormValue("duration"); d != "" {
		seconds, err := strconv.ParseFloat(d, 64)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid duration")
			return
		}
		video.Duration = &seconds
	}

	var payload []byte
	file, _, err := r.FormFile("video")
	if err == nil {
		defer file.Close()
		payload, err = io.ReadAll(file)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid video payload")
			return
		}
		video.URL = "/uploads/" + video.ID
	}
	if payload == nil && video.URL == "" {
		writeError(w, http.StatusBadRequest, "No video file uploaded")
		return
	}

	s.mu.Lock()
	idx := s.indexOf(video.SessionID)
	if idx < 0 {
		s.mu.Unlock()
		writeError(w, http.StatusNotFound, "Session not found")
		return
	}
	s.sessions[idx].Videos = append(s.sessions[idx].Videos, video)
	if payload != nil {
		s.uploads[video.ID] = payload
	}
	sess := s.sessions[idx].Clone()
	s.mu.Unlock()

	s.reply(w, http.StatusCreated, sess)
}

func (s *Server) deleteVideo(w http.ResponseWriter, r *http.Request, _ course.User) {
	id := mux.Vars(r)["id"]

	s.mu.Lock()
	sessionID := ""
	for i := range s.sessions {
		if s.sessions[i].HasVideo(id) {
			sessionID = s.sessions[i].ID
			s.sessions[i] = s.sessions[i].WithoutVideo(id)
		}
	}
	delete(s.uploads, id)
	s.mu.Unlock()

	if sessionID == "" {
		writeError(w, http.StatusNotFound, "Video not found")
		return
	}

	switch s.deleteShape {
	case DeleteVideoEmpty:
		w.WriteHeader(http.StatusOK)
	case DeleteVideoWithoutSession:
		s.reply(w, http.StatusOK, map[string]any{"id": id})
	default:
		s.reply(w, http.StatusOK, map[string]any{"id": id, "sessionId": sessionID})
	}
}

func (s *Server) indexOf(id string) int {
	return slices.IndexFunc(s.sessions, func(sess course.Session) bool { return sess.ID == id })
}

func (s *Server) issueToken(userID string) string {
	token := uuid.NewString()
	s.tokens[token] = userID
	return token
}

func (s *Server) reply(w http.ResponseWriter, status int, v any) {
	if s.envelope {
		v = map[string]any{"data": v}
	}
	writeJSON(w, status, v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"message": message})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
