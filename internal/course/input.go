package course

import (
	"io"
	"math"
	"net/mail"
	"strings"
	"unicode/utf8"

	"github.com/openkcm/course-client/internal/serviceerr"
)

const (
	minNameLen        = 3
	minPasswordLen    = 6
	minTitleLen       = 3
	minDescriptionLen = 3
)

// SourceKind selects which video source a deployment expects.
type SourceKind string

const (
	SourceUpload SourceKind = "upload"
	SourceURL    SourceKind = "url"
)

// RegisterInput is the payload of POST /auth/register.
type RegisterInput struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
	Role     Role   `json:"role,omitempty"`
}

// LoginInput is the payload of POST /auth/login.
type LoginInput struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// SessionInput is the payload of POST /sessions.
type SessionInput struct {
	Title       string  `json:"title"`
	Description *string `json:"description"`
}

// VideoInput describes a video to be attached to a session.
// Exactly one of File or URL is set, depending on the deployment variant.
type VideoInput struct {
	Title       string
	Description *string
	SessionID   string
	File        io.Reader
	FileName    string
	URL         string
	Duration    *float64
}

// Normalize trims the email and returns the receiver for chaining.
func (in RegisterInput) Normalize() RegisterInput {
	in.Email = strings.TrimSpace(in.Email)
	return in
}

// Validate checks the contract of the register endpoint.
func (in RegisterInput) Validate() error {
	verr := &serviceerr.ValidationError{}
	if strings.TrimSpace(in.Name) == "" {
		verr.Add("name", "Name is required")
	}
	validateEmail(verr, in.Email)
	if in.Password == "" {
		verr.Add("password", "Password is required")
	}
	if in.Role != "" && !in.Role.Valid() {
		verr.Add("role", "Role must be ADMIN or STUDENT")
	}
	return verr.OrNil()
}

// ValidateForm applies the stricter rules of the registration form on top of Validate.
func (in RegisterInput) ValidateForm() error {
	if err := in.Validate(); err != nil {
		return err
	}
	verr := &serviceerr.ValidationError{}
	if utf8.RuneCountInString(in.Name) < minNameLen {
		verr.Add("name", "Name must be at least 3 characters long")
	}
	validatePassword(verr, in.Password)
	return verr.OrNil()
}

func (in LoginInput) Normalize() LoginInput {
	in.Email = strings.TrimSpace(in.Email)
	return in
}

func (in LoginInput) Validate() error {
	verr := &serviceerr.ValidationError{}
	validateEmail(verr, in.Email)
	if in.Password == "" {
		verr.Add("password", "Password is required")
	}
	return verr.OrNil()
}

func (in LoginInput) ValidateForm() error {
	if err := in.Validate(); err != nil {
		return err
	}
	verr := &serviceerr.ValidationError{}
	validatePassword(verr, in.Password)
	return verr.OrNil()
}

// Validate checks that the session has a title.
func (in SessionInput) Validate() error {
	verr := &serviceerr.ValidationError{}
	if strings.TrimSpace(in.Title) == "" {
		verr.Add("title", "Title is required")
	}
	return verr.OrNil()
}

func (in SessionInput) ValidateForm() error {
	if err := in.Validate(); err != nil {
		return err
	}
	verr := &serviceerr.ValidationError{}
	validateTitle(verr, in.Title)
	validateDescription(verr, in.Description)
	return verr.OrNil()
}

// Validate checks the input against the source kind of the deployment.
func (in VideoInput) Validate(kind SourceKind) error {
	verr := &serviceerr.ValidationError{}
	if strings.TrimSpace(in.Title) == "" {
		verr.Add("title", "Title is required")
	}
	if strings.TrimSpace(in.SessionID) == "" {
		verr.Add("sessionId", "Session is required")
	}
	if in.Duration != nil && (math.IsNaN(*in.Duration) || math.IsInf(*in.Duration, 0) || *in.Duration < 0) {
		verr.Add("duration", "Duration must be a non-negative number of seconds")
	}

	hasFile := in.File != nil
	hasURL := strings.TrimSpace(in.URL) != ""
	switch {
	case hasFile && hasURL:
		verr.Add("source", "Provide either a file or a URL, not both")
	case kind == SourceURL && !hasURL:
		verr.Add("url", "URL is required")
	case kind != SourceURL && !hasFile:
		verr.Add("file", serviceerr.ErrFileRequired.Error())
	}

	return verr.OrNil()
}

func (in VideoInput) ValidateForm(kind SourceKind) error {
	if err := in.Validate(kind); err != nil {
		return err
	}
	verr := &serviceerr.ValidationError{}
	validateTitle(verr, in.Title)
	validateDescription(verr, in.Description)
	return verr.OrNil()
}

func validateEmail(verr *serviceerr.ValidationError, email string) {
	addr, err := mail.ParseAddress(strings.TrimSpace(email))
	if err != nil || addr.Name != "" || addr.Address != strings.TrimSpace(email) {
		verr.Add("email", "Invalid email address")
	}
}

func validatePassword(verr *serviceerr.ValidationError, password string) {
	if utf8.RuneCountInString(password) < minPasswordLen {
		verr.Add("password", "Password must be at least 6 characters long")
	}
}

func validateTitle(verr *serviceerr.ValidationError, title string) {
	if utf8.RuneCountInString(strings.TrimSpace(title)) < minTitleLen {
		verr.Add("title", "Title must be at least 3 characters long")
	}
}

func validateDescription(verr *serviceerr.ValidationError, description *string) {
	if description != nil && utf8.RuneCountInString(*description) < minDescriptionLen {
		verr.Add("description", "Description must be at least 3 characters long")
	}
}
