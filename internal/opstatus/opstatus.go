// Package opstatus tracks the lifecycle of asynchronous store operations.
//
// Stores keep one shared Status for the whole store, which only reflects whichever
// operation completed last. The Tracker complements it with one record per operation
// so callers can follow a specific call.
package opstatus

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"
)

type Status string

const (
	StatusIdle      Status = "idle"
	StatusLoading   Status = "loading"
	StatusSucceeded Status = "succeeded"
	StatusFailed    Status = "failed"
)

// Done reports whether s is a terminal status.
func (s Status) Done() bool {
	return s == StatusSucceeded || s == StatusFailed
}

// Operation is the record of a single store call.
type Operation struct {
	ID       string
	Name     string
	Status   Status
	Err      string
	Started  time.Time
	Finished time.Time
}

type ctxKey struct{}

// NewContext returns a context carrying a caller-chosen operation ID.
func NewContext(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, ctxKey{}, id)
}

// IDFromContext returns the operation ID set with NewContext, or a fresh one.
func IDFromContext(ctx context.Context) string {
	if id, ok := ctx.Value(ctxKey{}).(string); ok && id != "" {
		return id
	}
	return uuid.NewString()
}

// Tracker keeps per-operation records for a retention period.
type Tracker struct {
	ops *cache.Cache
	now func() time.Time
}

// NewTracker creates a tracker whose records expire after retention.
// A zero retention keeps records until the tracker is dropped.
func NewTracker(retention time.Duration) *Tracker {
	expiry := cache.NoExpiration
	cleanup := time.Duration(0)
	if retention > 0 {
		expiry = retention
		cleanup = retention
	}

	return &Tracker{
		ops: cache.New(expiry, cleanup),
		now: time.Now,
	}
}

// Begin records a pending operation.
func (t *Tracker) Begin(id, name string) Operation {
	op := Operation{
		ID:      id,
		Name:    name,
		Status:  StatusLoading,
		Started: t.now(),
	}
	t.ops.SetDefault(id, op)
	return op
}

// Succeed marks the operation as succeeded.
func (t *Tracker) Succeed(id string) Operation {
	return t.finish(id, StatusSucceeded, "")
}

// Fail marks the operation as failed with a flattened message.
func (t *Tracker) Fail(id, msg string) Operation {
	return t.finish(id, StatusFailed, msg)
}

func (t *Tracker) finish(id string, status Status, msg string) Operation {
	op, _ := t.Get(id)
	op.ID = id
	op.Status = status
	op.Err = msg
	op.Finished = t.now()
	t.ops.SetDefault(id, op)
	return op
}

// Get returns the record for id.
func (t *Tracker) Get(id string) (Operation, bool) {
	v, ok := t.ops.Get(id)
	if !ok {
		return Operation{}, false
	}
	op, ok := v.(Operation)
	return op, ok
}

// List returns all retained records ordered by start time.
func (t *Tracker) List() []Operation {
	items := t.ops.Items()
	ops := make([]Operation, 0, len(items))
	for _, item := range items {
		if op, ok := item.Object.(Operation); ok {
			ops = append(ops, op)
		}
	}
	sort.SliceStable(ops, func(i, j int) bool {
		if ops[i].Started.Equal(ops[j].Started) {
			return ops[i].ID < ops[j].ID
		}
		return ops[i].Started.Before(ops[j].Started)
	})
	return ops
}
