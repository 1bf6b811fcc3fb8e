// Package course holds the entities exchanged with the course service and the
// inputs accepted by the state stores.
package course

// Role of an authenticated user.
type Role string

const (
	RoleAdmin   Role = "ADMIN"
	RoleStudent Role = "STUDENT"
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	return r == RoleAdmin || r == RoleStudent
}

// User is the identity returned by the login and register endpoints.
type User struct {
	ID    string `json:"id" yaml:"id"`
	Name  string `json:"name" yaml:"name"`
	Email string `json:"email" yaml:"email"`
	Role  Role   `json:"role" yaml:"role"`
}

// Credentials pairs a user with its bearer token.
type Credentials struct {
	User  User   `json:"user"`
	Token string `json:"token"`
}

// Session is a course module holding an ordered list of videos.
// The order of Videos is decided by the server and never changed locally.
type Session struct {
	ID          string  `json:"id" yaml:"id"`
	Title       string  `json:"title" yaml:"title"`
	Description *string `json:"description,omitempty" yaml:"description,omitempty"`
	Videos      []Video `json:"videos" yaml:"videos"`
}

// Video belongs to exactly one Session.
type Video struct {
	ID          string   `json:"id" yaml:"id"`
	Title       string   `json:"title" yaml:"title"`
	Description *string  `json:"description,omitempty" yaml:"description,omitempty"`
	SessionID   string   `json:"sessionId" yaml:"sessionId"`
	URL         string   `json:"url,omitempty" yaml:"url,omitempty"`
	Duration    *float64 `json:"duration,omitempty" yaml:"duration,omitempty"`
}

// Clone returns a deep copy so cached snapshots never share backing arrays.
func (s Session) Clone() Session {
	c := s
	if s.Description != nil {
		d := *s.Description
		c.Description = &d
	}
	if s.Videos != nil {
		c.Videos = make([]Video, len(s.Videos))
		for i, v := range s.Videos {
			c.Videos[i] = v.Clone()
		}
	}
	return c
}

func (v Video) Clone() Video {
	c := v
	if v.Description != nil {
		d := *v.Description
		c.Description = &d
	}
	if v.Duration != nil {
		d := *v.Duration
		c.Duration = &d
	}
	return c
}

// HasVideo reports whether the session contains a video with the given id.
func (s Session) HasVideo(videoID string) bool {
	for _, v := range s.Videos {
		if v.ID == videoID {
			return true
		}
	}
	return false
}

// WithoutVideo returns a copy of s with the video removed. Removing an unknown id is a no-op.
func (s Session) WithoutVideo(videoID string) Session {
	c := s.Clone()
	videos := make([]Video, 0, len(c.Videos))
	for _, v := range c.Videos {
		if v.ID != videoID {
			videos = append(videos, v)
		}
	}
	c.Videos = videos
	return c
}

// Ptr is a small helper for optional fields.
func Ptr[T any](v T) *T {
	return &v
}
