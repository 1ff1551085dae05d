package main

import (
	"context"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/funnel-wizard/internal/session"
	"github.com/sells-group/funnel-wizard/internal/store"
)

// initStore opens the configured persistence backend and runs migrations.
func initStore(ctx context.Context) (store.Store, error) {
	var (
		st  store.Store
		err error
	)
	switch cfg.Store.Driver {
	case "postgres":
		st, err = store.NewPostgres(ctx, cfg.Store.DatabaseURL)
	case "sqlite":
		st, err = store.NewSQLite(cfg.Store.SQLitePath)
	default:
		return nil, eris.Errorf("unknown store driver %q", cfg.Store.Driver)
	}
	if err != nil {
		return nil, err
	}
	if err := st.Migrate(ctx); err != nil {
		st.Close()
		return nil, err
	}
	return st, nil
}

// initSessions builds the configured session backend.
func initSessions(ctx context.Context) (*session.Manager, error) {
	switch cfg.Session.Backend {
	case "redis":
		ttl := time.Duration(cfg.Session.TTLHours) * time.Hour
		backend, err := session.NewRedisBackend(ctx,
			cfg.Session.Redis.Addr, cfg.Session.Redis.Password, cfg.Session.Redis.DB, ttl)
		if err != nil {
			return nil, err
		}
		return session.NewManager(backend), nil
	case "memory":
		return session.NewManager(session.NewMemoryBackend()), nil
	default:
		return nil, eris.Errorf("unknown session backend %q", cfg.Session.Backend)
	}
}
