// Package store persists funnel sessions and tracking events for
// drop-off analytics and the optional delivery outbox.
package store

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
)

// ErrNotFound is returned when a record does not exist.
var ErrNotFound = eris.New("store: not found")

// SessionRecord is the durable snapshot of one funnel session.
type SessionRecord struct {
	ID         string    `json:"id"`
	ClientName *string   `json:"client_name"`
	Product    *string   `json:"product"`
	MaxStep    int       `json:"max_step"`
	TotalSteps int       `json:"total_steps"`
	Completed  bool      `json:"completed"`
	State      []byte    `json:"state"`
	StartedAt  time.Time `json:"started_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// TrackingEvent is one outbound tracking payload, recorded before sending
// when the outbox is enabled.
type TrackingEvent struct {
	ID          string     `json:"id"`
	SessionID   string     `json:"session_id"`
	Step        int        `json:"step"`
	Payload     []byte     `json:"payload"`
	Delivered   bool       `json:"delivered"`
	Attempts    int        `json:"attempts"`
	CreatedAt   time.Time  `json:"created_at"`
	DeliveredAt *time.Time `json:"delivered_at,omitempty"`
}

// SessionFilter narrows ListSessions results.
type SessionFilter struct {
	Product       string    `json:"product,omitempty"`
	CompletedOnly bool      `json:"completed_only,omitempty"`
	StartedAfter  time.Time `json:"started_after,omitempty"`
	Limit         int       `json:"limit,omitempty"`
	Offset        int       `json:"offset,omitempty"`
}

// Store is the persistence interface for the funnel service.
type Store interface {
	// Sessions
	UpsertSession(ctx context.Context, rec SessionRecord) error
	GetSession(ctx context.Context, id string) (*SessionRecord, error)
	ListSessions(ctx context.Context, filter SessionFilter) ([]SessionRecord, error)

	// Tracking events
	RecordEvent(ctx context.Context, event TrackingEvent) (string, error)
	MarkDelivered(ctx context.Context, eventID string) error
	MarkAttempt(ctx context.Context, eventID string) error
	ListUndelivered(ctx context.Context, limit int) ([]TrackingEvent, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}
