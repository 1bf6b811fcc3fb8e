// Package localstate defines the durable key/value storage that keeps the user
// identity and the bearer token across restarts.
package localstate

import (
	"context"
	"errors"

	"github.com/openkcm/course-client/internal/serviceerr"
)

const (
	KeyUser  = "user"
	KeyToken = "token"
)

var ErrNotFound = errors.New("local state key not found")

// ErrCorrupted is returned when a persisted value cannot be decoded.
var ErrCorrupted = serviceerr.ErrCorruptedLocalState

// Store is implemented by every storage backend. Deleting an absent key is not an error.
type Store interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string) error
	Delete(ctx context.Context, key string) error
}
