package store

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

// ErrNotFound is returned by lookups that have no stored value.
var ErrNotFound = errors.New("store: not found")

// Stores is the top-level container for all storage backends.
type Stores struct {
	Bindings BindingStore
	Threads  ThreadStore

	// Close releases the backing resources (nil for in-memory stores).
	Close func() error
}

// BindingStore caches the delivery channel chosen for a chat surface, so the
// binder can skip listing active threads on every request.
type BindingStore interface {
	GetBinding(ctx context.Context, surfaceID string) (string, error)
	PutBinding(ctx context.Context, surfaceID, channelID string) error
	DeleteBinding(ctx context.Context, surfaceID string) error
}

// ThreadRecord is a remote thread known to exist on the agent service.
type ThreadRecord struct {
	ThreadID  uuid.UUID `json:"thread_id"`
	ScopeKey  string    `json:"scope_key"`
	CreatedAt time.Time `json:"created_at"`
}

// ThreadStore remembers remote threads that have been materialized, so a
// restart does not need a fetch round trip per scope.
type ThreadStore interface {
	IsKnownThread(ctx context.Context, threadID uuid.UUID) (bool, error)
	MarkThread(ctx context.Context, threadID uuid.UUID, scopeKey string) error
	// ForgetThread drops a thread the service no longer has. Unknown ids are not an error.
	ForgetThread(ctx context.Context, threadID uuid.UUID) error
	ListThreads(ctx context.Context) ([]ThreadRecord, error)
}
