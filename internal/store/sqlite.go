package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS sessions (
	id          TEXT PRIMARY KEY,
	client_name TEXT,
	product     TEXT,
	max_step    INTEGER NOT NULL DEFAULT 0,
	total_steps INTEGER NOT NULL DEFAULT 0,
	completed   INTEGER NOT NULL DEFAULT 0,
	state       TEXT,
	started_at  DATETIME NOT NULL,
	updated_at  DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS tracking_events (
	id           TEXT PRIMARY KEY,
	session_id   TEXT NOT NULL,
	step         INTEGER NOT NULL,
	payload      TEXT NOT NULL,
	delivered    INTEGER NOT NULL DEFAULT 0,
	attempts     INTEGER NOT NULL DEFAULT 0,
	created_at   DATETIME NOT NULL,
	delivered_at DATETIME
);

CREATE INDEX IF NOT EXISTS idx_sessions_product ON sessions(product);
CREATE INDEX IF NOT EXISTS idx_sessions_started_at ON sessions(started_at);
CREATE INDEX IF NOT EXISTS idx_tracking_events_session ON tracking_events(session_id);
CREATE INDEX IF NOT EXISTS idx_tracking_events_delivered ON tracking_events(delivered);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) UpsertSession(ctx context.Context, rec SessionRecord) error {
	if rec.ID == "" {
		return eris.New("sqlite: session id is required")
	}
	now := time.Now().UTC()
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO sessions (id, client_name, product, max_step, total_steps, completed, state, started_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			client_name = excluded.client_name,
			product     = excluded.product,
			max_step    = excluded.max_step,
			total_steps = excluded.total_steps,
			completed   = excluded.completed,
			state       = excluded.state,
			updated_at  = excluded.updated_at`,
		rec.ID, rec.ClientName, rec.Product, rec.MaxStep, rec.TotalSteps,
		rec.Completed, nullableText(rec.State), rec.StartedAt.UTC(), now,
	)
	return eris.Wrapf(err, "sqlite: upsert session %s", rec.ID)
}

func (s *SQLiteStore) GetSession(ctx context.Context, id string) (*SessionRecord, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, client_name, product, max_step, total_steps, completed, state, started_at, updated_at
		FROM sessions WHERE id = ?`, id)
	return scanSession(row)
}

func (s *SQLiteStore) ListSessions(ctx context.Context, filter SessionFilter) ([]SessionRecord, error) {
	query := `
		SELECT id, client_name, product, max_step, total_steps, completed, state, started_at, updated_at
		FROM sessions WHERE 1=1`
	var args []any

	if filter.Product != "" {
		query += ` AND product = ?`
		args = append(args, filter.Product)
	}
	if filter.CompletedOnly {
		query += ` AND completed = 1`
	}
	if !filter.StartedAfter.IsZero() {
		query += ` AND started_at > ?`
		args = append(args, filter.StartedAfter.UTC())
	}
	query += ` ORDER BY started_at DESC`
	if filter.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, filter.Limit)
	}
	if filter.Offset > 0 {
		query += ` OFFSET ?`
		args = append(args, filter.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list sessions")
	}
	defer rows.Close()

	var records []SessionRecord
	for rows.Next() {
		rec, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, *rec)
	}
	return records, eris.Wrap(rows.Err(), "sqlite: iterate sessions")
}

func (s *SQLiteStore) RecordEvent(ctx context.Context, event TrackingEvent) (string, error) {
	id := event.ID
	if id == "" {
		id = uuid.New().String()
	}
	createdAt := event.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO tracking_events (id, session_id, step, payload, delivered, attempts, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		id, event.SessionID, event.Step, string(event.Payload), event.Delivered, event.Attempts, createdAt.UTC(),
	)
	if err != nil {
		return "", eris.Wrap(err, "sqlite: record event")
	}
	return id, nil
}

func (s *SQLiteStore) MarkDelivered(ctx context.Context, eventID string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE tracking_events SET delivered = 1, delivered_at = ? WHERE id = ?`,
		time.Now().UTC(), eventID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: mark delivered %s", eventID)
	}
	return checkRowsAffected(res, "tracking event", eventID)
}

func (s *SQLiteStore) MarkAttempt(ctx context.Context, eventID string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE tracking_events SET attempts = attempts + 1 WHERE id = ?`,
		eventID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: mark attempt %s", eventID)
	}
	return checkRowsAffected(res, "tracking event", eventID)
}

func (s *SQLiteStore) ListUndelivered(ctx context.Context, limit int) ([]TrackingEvent, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, session_id, step, payload, delivered, attempts, created_at, delivered_at
		FROM tracking_events WHERE delivered = 0 ORDER BY created_at ASC LIMIT ?`, limit)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list undelivered")
	}
	defer rows.Close()

	var events []TrackingEvent
	for rows.Next() {
		var e TrackingEvent
		var payload string
		if err := rows.Scan(&e.ID, &e.SessionID, &e.Step, &payload, &e.Delivered, &e.Attempts, &e.CreatedAt, &e.DeliveredAt); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan event")
		}
		e.Payload = []byte(payload)
		events = append(events, e)
	}
	return events, eris.Wrap(rows.Err(), "sqlite: iterate events")
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSession(row rowScanner) (*SessionRecord, error) {
	var rec SessionRecord
	var state sql.NullString
	err := row.Scan(&rec.ID, &rec.ClientName, &rec.Product, &rec.MaxStep,
		&rec.TotalSteps, &rec.Completed, &state, &rec.StartedAt, &rec.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, eris.Wrap(err, "sqlite: scan session")
	}
	if state.Valid {
		rec.State = []byte(state.String)
	}
	return &rec, nil
}

func nullableText(b []byte) any {
	if len(b) == 0 {
		return nil
	}
	return string(b)
}

func checkRowsAffected(res sql.Result, kind, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrapf(err, "sqlite: rows affected for %s %s", kind, id)
	}
	if n == 0 {
		return eris.Wrapf(ErrNotFound, "%s %s", kind, id)
	}
	return nil
}
