package store

import (
	"context"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"
)

// Pool is the subset of pgxpool.Pool the store uses. pgxmock satisfies it
// in tests.
type Pool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool    Pool
	closeFn func()
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}
	pgxCfg.MaxConns = 10
	pgxCfg.MinConns = 2
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool, closeFn: pool.Close}, nil
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS sessions (
	id          TEXT PRIMARY KEY,
	client_name TEXT,
	product     TEXT,
	max_step    INTEGER NOT NULL DEFAULT 0,
	total_steps INTEGER NOT NULL DEFAULT 0,
	completed   BOOLEAN NOT NULL DEFAULT false,
	state       JSONB,
	started_at  TIMESTAMPTZ NOT NULL,
	updated_at  TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS tracking_events (
	id           TEXT PRIMARY KEY,
	session_id   TEXT NOT NULL,
	step         INTEGER NOT NULL,
	payload      JSONB NOT NULL,
	delivered    BOOLEAN NOT NULL DEFAULT false,
	attempts     INTEGER NOT NULL DEFAULT 0,
	created_at   TIMESTAMPTZ NOT NULL,
	delivered_at TIMESTAMPTZ
);

CREATE INDEX IF NOT EXISTS idx_sessions_product ON sessions(product);
CREATE INDEX IF NOT EXISTS idx_sessions_started_at ON sessions(started_at);
CREATE INDEX IF NOT EXISTS idx_tracking_events_session ON tracking_events(session_id);
CREATE INDEX IF NOT EXISTS idx_tracking_events_delivered ON tracking_events(delivered) WHERE NOT delivered;
`

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

func (s *PostgresStore) UpsertSession(ctx context.Context, rec SessionRecord) error {
	if rec.ID == "" {
		return eris.New("postgres: session id is required")
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO sessions (id, client_name, product, max_step, total_steps, completed, state, started_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, now())
		ON CONFLICT (id) DO UPDATE SET
			client_name = EXCLUDED.client_name,
			product     = EXCLUDED.product,
			max_step    = EXCLUDED.max_step,
			total_steps = EXCLUDED.total_steps,
			completed   = EXCLUDED.completed,
			state       = EXCLUDED.state,
			updated_at  = now()`,
		rec.ID, rec.ClientName, rec.Product, rec.MaxStep, rec.TotalSteps,
		rec.Completed, nullableText(rec.State), rec.StartedAt.UTC(),
	)
	return eris.Wrapf(err, "postgres: upsert session %s", rec.ID)
}

func (s *PostgresStore) GetSession(ctx context.Context, id string) (*SessionRecord, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT id, client_name, product, max_step, total_steps, completed, state, started_at, updated_at
		FROM sessions WHERE id = $1`, id)

	rec, err := scanPgSession(row)
	if err != nil {
		if eris.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, eris.Wrapf(err, "postgres: get session %s", id)
	}
	return rec, nil
}

func (s *PostgresStore) ListSessions(ctx context.Context, filter SessionFilter) ([]SessionRecord, error) {
	query := `
		SELECT id, client_name, product, max_step, total_steps, completed, state, started_at, updated_at
		FROM sessions WHERE 1=1`
	var args []any

	if filter.Product != "" {
		args = append(args, filter.Product)
		query += ` AND product = $` + itoa(len(args))
	}
	if filter.CompletedOnly {
		query += ` AND completed`
	}
	if !filter.StartedAfter.IsZero() {
		args = append(args, filter.StartedAfter.UTC())
		query += ` AND started_at > $` + itoa(len(args))
	}
	query += ` ORDER BY started_at DESC`
	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		query += ` LIMIT $` + itoa(len(args))
	}
	if filter.Offset > 0 {
		args = append(args, filter.Offset)
		query += ` OFFSET $` + itoa(len(args))
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list sessions")
	}
	defer rows.Close()

	var records []SessionRecord
	for rows.Next() {
		rec, err := scanPgSession(rows)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: scan session")
		}
		records = append(records, *rec)
	}
	return records, eris.Wrap(rows.Err(), "postgres: iterate sessions")
}

func (s *PostgresStore) RecordEvent(ctx context.Context, event TrackingEvent) (string, error) {
	id := event.ID
	if id == "" {
		id = uuid.New().String()
	}
	createdAt := event.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO tracking_events (id, session_id, step, payload, delivered, attempts, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		id, event.SessionID, event.Step, string(event.Payload), event.Delivered, event.Attempts, createdAt.UTC(),
	)
	if err != nil {
		return "", eris.Wrap(err, "postgres: record event")
	}
	return id, nil
}

func (s *PostgresStore) MarkDelivered(ctx context.Context, eventID string) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE tracking_events SET delivered = true, delivered_at = now() WHERE id = $1`,
		eventID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: mark delivered %s", eventID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Wrapf(ErrNotFound, "tracking event %s", eventID)
	}
	return nil
}

func (s *PostgresStore) MarkAttempt(ctx context.Context, eventID string) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE tracking_events SET attempts = attempts + 1 WHERE id = $1`,
		eventID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: mark attempt %s", eventID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Wrapf(ErrNotFound, "tracking event %s", eventID)
	}
	return nil
}

func (s *PostgresStore) ListUndelivered(ctx context.Context, limit int) ([]TrackingEvent, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.pool.Query(ctx, `
		SELECT id, session_id, step, payload, delivered, attempts, created_at, delivered_at
		FROM tracking_events WHERE NOT delivered ORDER BY created_at ASC LIMIT $1`, limit)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list undelivered")
	}
	defer rows.Close()

	var events []TrackingEvent
	for rows.Next() {
		var e TrackingEvent
		var payload string
		if err := rows.Scan(&e.ID, &e.SessionID, &e.Step, &payload, &e.Delivered, &e.Attempts, &e.CreatedAt, &e.DeliveredAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan event")
		}
		e.Payload = []byte(payload)
		events = append(events, e)
	}
	return events, eris.Wrap(rows.Err(), "postgres: iterate events")
}

func scanPgSession(row pgx.Row) (*SessionRecord, error) {
	var rec SessionRecord
	var state *string
	err := row.Scan(&rec.ID, &rec.ClientName, &rec.Product, &rec.MaxStep,
		&rec.TotalSteps, &rec.Completed, &state, &rec.StartedAt, &rec.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if state != nil {
		rec.State = []byte(*state)
	}
	return &rec, nil
}

func itoa(n int) string {
	return strconv.Itoa(n)
}
