// Package threads maps conversation scopes onto durable remote agent threads.
//
// Thread ids are UUIDv5 values derived from the scope key, so any process can
// re-derive them without shared state, and creating the thread is idempotent.
package threads

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	"github.com/nextlevelbuilder/chefbot/internal/langgraph"
	"github.com/nextlevelbuilder/chefbot/internal/store"
)

// Namespace is the fixed UUIDv5 namespace for thread ids.
var Namespace = uuid.NameSpaceDNS

// ErrResolution wraps every failure to fetch or create a remote thread other
// than a plain not-found. Such failures are retryable by the caller.
var ErrResolution = errors.New("resolve remote thread")

// DeriveID returns the remote thread id for a scope key.
func DeriveID(scopeKey string) uuid.UUID {
	return uuid.NewSHA1(Namespace, []byte(scopeKey))
}

// Client is the subset of the agent service API the resolver needs.
type Client interface {
	GetThread(ctx context.Context, threadID uuid.UUID) (*langgraph.Thread, error)
	CreateThread(ctx context.Context, threadID uuid.UUID, metadata map[string]any) (*langgraph.Thread, error)
}

// Resolver ensures a remote thread exists for each scope it is asked about.
// Safe for concurrent use.
type Resolver struct {
	client Client
	derive func(string) uuid.UUID
	known  store.ThreadStore // optional persistent cache

	materialized sync.Map // uuid.UUID → struct{}
	inflight     singleflight.Group
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithDeriver replaces the id derivation function.
func WithDeriver(fn func(scopeKey string) uuid.UUID) Option {
	return func(r *Resolver) { r.derive = fn }
}

// WithThreadStore persists materialized thread ids across restarts.
func WithThreadStore(s store.ThreadStore) Option {
	return func(r *Resolver) { r.known = s }
}

// NewResolver creates a resolver over client. Ids come from DeriveID unless
// WithDeriver is given.
func NewResolver(client Client, opts ...Option) *Resolver {
	r := &Resolver{client: client, derive: DeriveID}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// ID derives the thread id for a scope without any network call.
func (r *Resolver) ID(scopeKey string) uuid.UUID { return r.derive(scopeKey) }

// Resolve returns the remote thread id for scopeKey, creating the thread on
// first use. Concurrent calls for the same scope share one round trip.
func (r *Resolver) Resolve(ctx context.Context, scopeKey string) (uuid.UUID, error) {
	id := r.derive(scopeKey)

	if _, ok := r.materialized.Load(id); ok {
		return id, nil
	}
	if r.known != nil {
		known, err := r.known.IsKnownThread(ctx, id)
		if err != nil {
			slog.Warn("threads: store lookup failed", "thread_id", id, "error", err)
		} else if known {
			r.materialized.Store(id, struct{}{})
			return id, nil
		}
	}

	// Joined callers must not fail because the first caller went away.
	callCtx := context.WithoutCancel(ctx)
	_, err, joined := r.inflight.Do(id.String(), func() (any, error) {
		return nil, r.ensure(callCtx, id, scopeKey)
	})
	if err != nil {
		return uuid.Nil, err
	}
	if joined {
		slog.Debug("threads: shared in-flight resolution", "scope", scopeKey, "thread_id", id)
	}
	return id, nil
}

// Forget drops every cached materialization of a thread, in process and in
// the thread store, so the next Resolve checks the service again. Used when
// a run reports the thread missing.
func (r *Resolver) Forget(ctx context.Context, threadID uuid.UUID) {
	r.materialized.Delete(threadID)
	if r.known == nil {
		return
	}
	if err := r.known.ForgetThread(ctx, threadID); err != nil {
		slog.Warn("threads: store forget failed", "thread_id", threadID, "error", err)
	}
}

func (r *Resolver) ensure(ctx context.Context, id uuid.UUID, scopeKey string) error {
	_, err := r.client.GetThread(ctx, id)
	if err == nil {
		r.remember(ctx, id, scopeKey)
		return nil
	}
	if !errors.Is(err, langgraph.ErrNotFound) {
		slog.Warn("threads: fetch failed", "scope", scopeKey, "thread_id", id,
			"retryable", langgraph.IsRetryable(err), "error", err)
		return fmt.Errorf("%w %s: %w", ErrResolution, id, err)
	}

	slog.Info("threads: creating remote thread", "scope", scopeKey, "thread_id", id)
	_, err = r.client.CreateThread(ctx, id, map[string]any{
		"scope":  scopeKey,
		"source": "chefbot",
	})
	if errors.Is(err, langgraph.ErrConflict) {
		// Created concurrently elsewhere; confirm it is there.
		_, err = r.client.GetThread(ctx, id)
	}
	if err != nil {
		return fmt.Errorf("%w %s: %w", ErrResolution, id, err)
	}

	r.remember(ctx, id, scopeKey)
	return nil
}

func (r *Resolver) remember(ctx context.Context, id uuid.UUID, scopeKey string) {
	r.materialized.Store(id, struct{}{})
	if r.known == nil {
		return
	}
	if err := r.known.MarkThread(ctx, id, scopeKey); err != nil {
		slog.Warn("threads: store mark failed", "thread_id", id, "error", err)
	}
}
