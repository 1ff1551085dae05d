package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestSQLite(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := NewSQLite(filepath.Join(t.TempDir(), "funnel.db"))
	require.NoError(t, err)
	require.NoError(t, s.Migrate(context.Background()))
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func strPtr(s string) *string { return &s }

func TestSQLiteStore_SessionRoundTrip(t *testing.T) {
	s := newTestSQLite(t)
	ctx := context.Background()

	rec := SessionRecord{
		ID:         "sess-1",
		ClientName: strPtr("Acme Plumbing"),
		Product:    strPtr("SEO"),
		MaxStep:    4,
		TotalSteps: 9,
		State:      []byte(`{"clientName":"Acme Plumbing"}`),
		StartedAt:  time.Now().UTC().Truncate(time.Second),
	}
	require.NoError(t, s.UpsertSession(ctx, rec))

	got, err := s.GetSession(ctx, "sess-1")
	require.NoError(t, err)
	assert.Equal(t, rec.ID, got.ID)
	assert.Equal(t, "Acme Plumbing", *got.ClientName)
	assert.Equal(t, 4, got.MaxStep)
	assert.JSONEq(t, string(rec.State), string(got.State))
	assert.False(t, got.Completed)
}

func TestSQLiteStore_UpsertOverwrites(t *testing.T) {
	s := newTestSQLite(t)
	ctx := context.Background()

	rec := SessionRecord{ID: "sess-1", MaxStep: 2, StartedAt: time.Now().UTC()}
	require.NoError(t, s.UpsertSession(ctx, rec))

	rec.MaxStep = 7
	rec.Completed = true
	rec.Product = strPtr("LeadGen")
	require.NoError(t, s.UpsertSession(ctx, rec))

	got, err := s.GetSession(ctx, "sess-1")
	require.NoError(t, err)
	assert.Equal(t, 7, got.MaxStep)
	assert.True(t, got.Completed)
	assert.Equal(t, "LeadGen", *got.Product)
}

func TestSQLiteStore_GetSessionNotFound(t *testing.T) {
	s := newTestSQLite(t)

	_, err := s.GetSession(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSQLiteStore_ListSessionsFilters(t *testing.T) {
	s := newTestSQLite(t)
	ctx := context.Background()
	base := time.Now().UTC().Add(-time.Hour)

	for i, rec := range []SessionRecord{
		{ID: "a", Product: strPtr("SEO"), Completed: true},
		{ID: "b", Product: strPtr("SEO")},
		{ID: "c", Product: strPtr("LSA")},
	} {
		rec.StartedAt = base.Add(time.Duration(i) * time.Minute)
		require.NoError(t, s.UpsertSession(ctx, rec))
	}

	all, err := s.ListSessions(ctx, SessionFilter{})
	require.NoError(t, err)
	assert.Len(t, all, 3)
	assert.Equal(t, "c", all[0].ID, "newest first")

	seo, err := s.ListSessions(ctx, SessionFilter{Product: "SEO"})
	require.NoError(t, err)
	assert.Len(t, seo, 2)

	done, err := s.ListSessions(ctx, SessionFilter{CompletedOnly: true})
	require.NoError(t, err)
	require.Len(t, done, 1)
	assert.Equal(t, "a", done[0].ID)

	recent, err := s.ListSessions(ctx, SessionFilter{StartedAfter: base.Add(90 * time.Second)})
	require.NoError(t, err)
	require.Len(t, recent, 1)
	assert.Equal(t, "c", recent[0].ID)

	limited, err := s.ListSessions(ctx, SessionFilter{Limit: 1, Offset: 1})
	require.NoError(t, err)
	require.Len(t, limited, 1)
	assert.Equal(t, "b", limited[0].ID)
}

func TestSQLiteStore_EventOutboxFlow(t *testing.T) {
	s := newTestSQLite(t)
	ctx := context.Background()

	id1, err := s.RecordEvent(ctx, TrackingEvent{SessionID: "sess-1", Step: 2, Payload: []byte(`{"step":2}`)})
	require.NoError(t, err)
	require.NotEmpty(t, id1)

	id2, err := s.RecordEvent(ctx, TrackingEvent{SessionID: "sess-1", Step: 3, Payload: []byte(`{"step":3}`)})
	require.NoError(t, err)

	pending, err := s.ListUndelivered(ctx, 10)
	require.NoError(t, err)
	require.Len(t, pending, 2)
	assert.Equal(t, id1, pending[0].ID, "oldest first")

	require.NoError(t, s.MarkAttempt(ctx, id1))
	require.NoError(t, s.MarkDelivered(ctx, id1))

	pending, err = s.ListUndelivered(ctx, 10)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, id2, pending[0].ID)
}

func TestSQLiteStore_MarkDeliveredUnknown(t *testing.T) {
	s := newTestSQLite(t)
	err := s.MarkDelivered(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}
