package session

import (
	"context"
	"sync"
)

// MemoryBackend keeps sessions in process memory. Sessions vanish on
// restart, matching the original "lives for the browser session" model.
type MemoryBackend struct {
	mu       sync.RWMutex
	sessions map[string]Session
}

// NewMemoryBackend creates an empty in-memory backend.
func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{sessions: make(map[string]Session)}
}

func (b *MemoryBackend) Put(_ context.Context, s Session) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.sessions[s.ID] = s
	return nil
}

func (b *MemoryBackend) Get(_ context.Context, id string) (*Session, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	s, ok := b.sessions[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &s, nil
}

func (b *MemoryBackend) Delete(_ context.Context, id string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.sessions, id)
	return nil
}

func (b *MemoryBackend) Close() error { return nil }
