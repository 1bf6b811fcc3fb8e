package session

import (
	"context"

	"github.com/openkcm/course-client/internal/course"
	"github.com/openkcm/course-client/internal/remote"
)

// Remote is the part of the course service used by the Store.
type Remote interface {
	ListSessions(ctx context.Context) ([]course.Session, error)
	GetSession(ctx context.Context, id string) (course.Session, error)
	CreateSession(ctx context.Context, in course.SessionInput) (course.Session, error)
	DeleteSession(ctx context.Context, id string) error
	CreateVideo(ctx context.Context, in course.VideoInput) (course.Session, error)
	DeleteVideo(ctx context.Context, id string) (remote.DeletedVideo, error)
	VideoSource() course.SourceKind
}

var _ = Remote(&remote.Client{})
