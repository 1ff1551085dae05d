// Package session owns per-visitor session state: identity fields from the
// auth provider, the start timestamp, and the deepest wizard step reached.
// Construction is explicit; nothing here is a package-level singleton.
package session

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
)

// Session is one visitor's funnel session.
type Session struct {
	ID          string    `json:"id"`
	GoogleID    *string   `json:"googleId"`
	GoogleName  *string   `json:"googleFullName"`
	GoogleEmail *string   `json:"googleEmail"`
	StartTime   time.Time `json:"startTime"`

	// MaxStep is the deepest wizard step reached. It only ever grows, so
	// drop-off analytics always see the furthest point in the funnel even
	// when the visitor navigates back.
	MaxStep int `json:"maxStep"`
}

// ErrNotFound is returned when no session exists for an id.
var ErrNotFound = eris.New("session: not found")

// Backend stores sessions. Implementations: in-memory map (single
// instance) and Redis (multi-instance serving).
type Backend interface {
	Put(ctx context.Context, s Session) error
	Get(ctx context.Context, id string) (*Session, error)
	Delete(ctx context.Context, id string) error
	Close() error
}

// Manager creates and mutates sessions on top of a Backend. Mutations are
// serialized so the max-step counter stays monotonic under concurrent
// requests from the same visitor.
type Manager struct {
	mu      sync.Mutex
	backend Backend
	now     func() time.Time
}

// NewManager creates a session manager over the given backend.
func NewManager(backend Backend) *Manager {
	return &Manager{
		backend: backend,
		now:     time.Now,
	}
}

// Create starts a fresh session with a new id.
func (m *Manager) Create(ctx context.Context) (*Session, error) {
	s := Session{
		ID:        uuid.New().String(),
		StartTime: m.now().UTC(),
	}
	if err := m.backend.Put(ctx, s); err != nil {
		return nil, eris.Wrap(err, "session: create")
	}
	return &s, nil
}

// Get returns the session for an id, or ErrNotFound.
func (m *Manager) Get(ctx context.Context, id string) (*Session, error) {
	return m.backend.Get(ctx, id)
}

// Touch records that the visitor reached the given step and returns the
// updated session. Steps below the current maximum leave it unchanged.
func (m *Manager) Touch(ctx context.Context, id string, step int) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, err := m.backend.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if step > s.MaxStep {
		s.MaxStep = step
		if err := m.backend.Put(ctx, *s); err != nil {
			return nil, eris.Wrap(err, "session: touch")
		}
	}
	return s, nil
}

// SetIdentity attaches the auth provider's identity fields to a session.
func (m *Manager) SetIdentity(ctx context.Context, id string, googleID, name, email string) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, err := m.backend.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	s.GoogleID = &googleID
	s.GoogleName = &name
	s.GoogleEmail = &email
	if err := m.backend.Put(ctx, *s); err != nil {
		return nil, eris.Wrap(err, "session: set identity")
	}
	return s, nil
}

// Close releases the backing store.
func (m *Manager) Close() error {
	return m.backend.Close()
}
