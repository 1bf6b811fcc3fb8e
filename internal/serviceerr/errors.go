package serviceerr

import (
	"errors"
	"fmt"
	"strings"
)

var ErrNotFound = errors.New("not found")
var ErrUnauthenticated = errors.New("not logged in")
var ErrForbidden = errors.New("insufficient role")
var ErrFileRequired = errors.New("File is required")
var ErrCorruptedLocalState = errors.New("corrupted local state")

// FieldError describes a single rejected input field.
type FieldError struct {
	Field   string
	Message string
}

// ValidationError is returned when an input is rejected before it reaches the remote service,
// or when the remote service rejects the payload.
type ValidationError struct {
	Fields []FieldError
}

func (e *ValidationError) Error() string {
	msgs := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		msgs = append(msgs, f.Message)
	}
	return strings.Join(msgs, "; ")
}

// Add records a field error and returns the receiver for chaining.
func (e *ValidationError) Add(field, message string) *ValidationError {
	e.Fields = append(e.Fields, FieldError{Field: field, Message: message})
	return e
}

// OrNil returns nil when no field errors were recorded.
func (e *ValidationError) OrNil() error {
	if e == nil || len(e.Fields) == 0 {
		return nil
	}
	return e
}

// Field returns the message recorded for the given field, if any.
func (e *ValidationError) Field(name string) (string, bool) {
	for _, f := range e.Fields {
		if f.Field == name {
			return f.Message, true
		}
	}
	return "", false
}

// RemoteError is a non-2xx answer of the remote session service.
type RemoteError struct {
	StatusCode int
	Message    string
}

func (e *RemoteError) Error() string {
	return e.Message
}

// NetworkError means no response was received at all.
type NetworkError struct {
	Err error
}

func (e *NetworkError) Error() string {
	return e.Err.Error()
}

func (e *NetworkError) Unwrap() error {
	return e.Err
}

// Message flattens err into the single human-readable string kept by the state stores.
// Remote and validation messages are surfaced verbatim, anything else falls back to
// the error text, and fallback is used when there is nothing to show.
func Message(err error, fallback string) string {
	if err == nil {
		return ""
	}

	var remoteErr *RemoteError
	if errors.As(err, &remoteErr) {
		if remoteErr.Message != "" {
			return remoteErr.Message
		}
		return fallback
	}

	var validationErr *ValidationError
	if errors.As(err, &validationErr) {
		if msg := validationErr.Error(); msg != "" {
			return msg
		}
		return fallback
	}

	var networkErr *NetworkError
	if errors.As(err, &networkErr) {
		return fmt.Sprintf("%s: %s", fallback, networkErr.Err.Error())
	}

	if errors.Is(err, ErrFileRequired) {
		return ErrFileRequired.Error()
	}

	if msg := err.Error(); msg != "" {
		return msg
	}

	return fallback
}
