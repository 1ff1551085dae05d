package store

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newMockPostgresStore creates a PostgresStore backed by pgxmock.
func newMockPostgresStore(t *testing.T) (*PostgresStore, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { mock.Close() })

	return &PostgresStore{pool: mock}, mock
}

func TestPostgresStore_GetSessionNotFound(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`SELECT id, client_name, product, max_step, total_steps, completed, state, started_at, updated_at`).
		WithArgs("missing").
		WillReturnError(pgx.ErrNoRows)

	_, err := s.GetSession(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_UpsertSession(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`INSERT INTO sessions`).
		WithArgs("sess-1", strPtr("Acme"), strPtr("SEO"), 3, 9, false,
			`{"clientName":"Acme"}`, pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	err := s.UpsertSession(context.Background(), SessionRecord{
		ID:         "sess-1",
		ClientName: strPtr("Acme"),
		Product:    strPtr("SEO"),
		MaxStep:    3,
		TotalSteps: 9,
		State:      []byte(`{"clientName":"Acme"}`),
		StartedAt:  time.Now(),
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_RecordEventGeneratesID(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`INSERT INTO tracking_events`).
		WithArgs(pgxmock.AnyArg(), "sess-1", 2, `{"step":2}`, false, 0, pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	id, err := s.RecordEvent(context.Background(), TrackingEvent{
		SessionID: "sess-1",
		Step:      2,
		Payload:   []byte(`{"step":2}`),
	})
	require.NoError(t, err)
	assert.NotEmpty(t, id)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_MarkDelivered(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`UPDATE tracking_events SET delivered = true`).
		WithArgs("evt-1").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	require.NoError(t, s.MarkDelivered(context.Background(), "evt-1"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_MarkDeliveredUnknown(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`UPDATE tracking_events SET delivered = true`).
		WithArgs("missing").
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	err := s.MarkDelivered(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_ListUndelivered(t *testing.T) {
	s, mock := newMockPostgresStore(t)
	now := time.Now().UTC()

	rows := pgxmock.NewRows([]string{
		"id", "session_id", "step", "payload", "delivered", "attempts", "created_at", "delivered_at",
	}).AddRow("evt-1", "sess-1", 2, `{"step":2}`, false, 1, now, nil)

	mock.ExpectQuery(`SELECT id, session_id, step, payload, delivered, attempts, created_at, delivered_at`).
		WithArgs(50).
		WillReturnRows(rows)

	events, err := s.ListUndelivered(context.Background(), 50)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "evt-1", events[0].ID)
	assert.Equal(t, 1, events[0].Attempts)
	assert.Nil(t, events[0].DeliveredAt)
	assert.NoError(t, mock.ExpectationsWereMet())
}
