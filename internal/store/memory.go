package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryStore implements BindingStore and ThreadStore in process memory.
// Contents are lost on restart. Safe for concurrent use.
type MemoryStore struct {
	mu       sync.RWMutex
	bindings map[string]string
	threads  map[uuid.UUID]ThreadRecord
}

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		bindings: make(map[string]string),
		threads:  make(map[uuid.UUID]ThreadRecord),
	}
}

// NewMemoryStores returns Stores backed by a single MemoryStore.
func NewMemoryStores() *Stores {
	m := NewMemoryStore()
	return &Stores{Bindings: m, Threads: m}
}

func (m *MemoryStore) GetBinding(_ context.Context, surfaceID string) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	id, ok := m.bindings[surfaceID]
	if !ok {
		return "", ErrNotFound
	}
	return id, nil
}

func (m *MemoryStore) PutBinding(_ context.Context, surfaceID, channelID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.bindings[surfaceID] = channelID
	return nil
}

func (m *MemoryStore) DeleteBinding(_ context.Context, surfaceID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.bindings, surfaceID)
	return nil
}

func (m *MemoryStore) IsKnownThread(_ context.Context, threadID uuid.UUID) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.threads[threadID]
	return ok, nil
}

func (m *MemoryStore) MarkThread(_ context.Context, threadID uuid.UUID, scopeKey string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.threads[threadID]; ok {
		return nil
	}
	m.threads[threadID] = ThreadRecord{ThreadID: threadID, ScopeKey: scopeKey, CreatedAt: time.Now().UTC()}
	return nil
}

func (m *MemoryStore) ForgetThread(_ context.Context, threadID uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.threads, threadID)
	return nil
}

func (m *MemoryStore) ListThreads(_ context.Context) ([]ThreadRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]ThreadRecord, 0, len(m.threads))
	for _, r := range m.threads {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ScopeKey < out[j].ScopeKey })
	return out, nil
}
