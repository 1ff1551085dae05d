package webhook

import (
	"context"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/funnel-wizard/internal/resilience"
	"github.com/sells-group/funnel-wizard/internal/store"
)

// Drainer periodically redelivers tracking events the best-effort path
// failed to send. Only runs when the outbox is enabled.
type Drainer struct {
	store    store.Store
	reporter *Reporter
	interval time.Duration
	batch    int
	parallel int
	retry    resilience.RetryConfig
	logger   *zap.Logger
}

// DrainerOption configures a Drainer.
type DrainerOption func(*Drainer)

// WithRetry overrides the per-event redelivery retry policy.
func WithRetry(cfg resilience.RetryConfig) DrainerOption {
	return func(d *Drainer) { d.retry = cfg }
}

// NewDrainer creates a drainer over the given store and reporter.
func NewDrainer(s store.Store, r *Reporter, interval time.Duration, batch int, opts ...DrainerOption) *Drainer {
	if interval <= 0 {
		interval = time.Minute
	}
	if batch <= 0 {
		batch = 50
	}
	d := &Drainer{
		store:    s,
		reporter: r,
		interval: interval,
		batch:    batch,
		parallel: 4,
		retry:    resilience.DefaultRetryConfig(),
		logger:   zap.L(),
	}
	for _, o := range opts {
		o(d)
	}
	return d
}

// Run drains the outbox on a ticker until the context is canceled.
func (d *Drainer) Run(ctx context.Context) error {
	ticker := time.NewTicker(d.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := d.DrainOnce(ctx); err != nil && ctx.Err() == nil {
				d.logger.Warn("outbox drain failed", zap.Error(err))
			}
		}
	}
}

// DrainOnce attempts redelivery of one batch of undelivered events.
func (d *Drainer) DrainOnce(ctx context.Context) error {
	events, err := d.store.ListUndelivered(ctx, d.batch)
	if err != nil {
		return err
	}
	if len(events) == 0 {
		return nil
	}

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(d.parallel)

	for _, event := range events {
		g.Go(func() error {
			if err := d.store.MarkAttempt(ctx, event.ID); err != nil {
				d.logger.Warn("outbox mark attempt failed",
					zap.String("eventId", event.ID), zap.Error(err))
			}

			cfg := d.retry
			cfg.OnRetry = resilience.RetryLogger("tracking", "redeliver")
			err := resilience.Do(ctx, cfg, func(ctx context.Context) error {
				return d.reporter.SendRaw(ctx, event.Payload)
			})
			if err != nil {
				d.logger.Warn("outbox redelivery failed",
					zap.String("eventId", event.ID),
					zap.Int("attempts", event.Attempts+1),
					zap.Error(err),
				)
				return nil
			}
			return d.store.MarkDelivered(ctx, event.ID)
		})
	}
	return g.Wait()
}
