// Package monitoring reports funnel health: completion rates, per-step
// drop-off, and tracking-outbox backlog.
package monitoring

import (
	"context"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/funnel-wizard/internal/store"
)

// ProductFunnel summarizes one product's funnel within the window.
type ProductFunnel struct {
	Total          int     `json:"total"`
	Completed      int     `json:"completed"`
	CompletionRate float64 `json:"completion_rate"`
}

// MetricsSnapshot holds a point-in-time view of funnel health.
type MetricsSnapshot struct {
	// Session metrics (within lookback window).
	SessionsTotal     int     `json:"sessions_total"`
	SessionsCompleted int     `json:"sessions_completed"`
	CompletionRate    float64 `json:"completion_rate"`

	// ByProduct breaks sessions down by effective product. Sessions that
	// dropped out before classification group under "unclassified".
	ByProduct map[string]ProductFunnel `json:"by_product"`

	// DropOffByStep counts abandoned sessions by the deepest step reached.
	DropOffByStep map[int]int `json:"drop_off_by_step"`

	// OutboxBacklog is the number of undelivered tracking events.
	OutboxBacklog int `json:"outbox_backlog"`

	// Metadata.
	LookbackHours int       `json:"lookback_hours"`
	CollectedAt   time.Time `json:"collected_at"`
}

// Collector gathers funnel metrics from the store.
type Collector struct {
	store store.Store
}

// NewCollector creates a new metrics collector.
func NewCollector(st store.Store) *Collector {
	return &Collector{store: st}
}

const unclassified = "unclassified"

// Collect gathers a snapshot of funnel metrics over the given lookback window.
func (c *Collector) Collect(ctx context.Context, lookbackHours int) (*MetricsSnapshot, error) {
	snap := &MetricsSnapshot{
		ByProduct:     make(map[string]ProductFunnel),
		DropOffByStep: make(map[int]int),
		LookbackHours: lookbackHours,
		CollectedAt:   time.Now().UTC(),
	}

	cutoff := time.Now().UTC().Add(-time.Duration(lookbackHours) * time.Hour)

	sessions, err := c.store.ListSessions(ctx, store.SessionFilter{
		StartedAfter: cutoff,
		Limit:        10000,
	})
	if err != nil {
		return nil, eris.Wrap(err, "monitoring: list sessions")
	}

	snap.SessionsTotal = len(sessions)
	for _, s := range sessions {
		product := unclassified
		if s.Product != nil && *s.Product != "" {
			product = *s.Product
		}
		pf := snap.ByProduct[product]
		pf.Total++

		if s.Completed {
			snap.SessionsCompleted++
			pf.Completed++
		} else {
			snap.DropOffByStep[s.MaxStep]++
		}
		snap.ByProduct[product] = pf
	}

	if snap.SessionsTotal > 0 {
		snap.CompletionRate = float64(snap.SessionsCompleted) / float64(snap.SessionsTotal)
	}
	for product, pf := range snap.ByProduct {
		if pf.Total > 0 {
			pf.CompletionRate = float64(pf.Completed) / float64(pf.Total)
		}
		snap.ByProduct[product] = pf
	}

	undelivered, err := c.store.ListUndelivered(ctx, 10000)
	if err != nil {
		return nil, eris.Wrap(err, "monitoring: list undelivered")
	}
	snap.OutboxBacklog = len(undelivered)

	return snap, nil
}
