// Package recommend owns the async lifecycle of product recommendations:
// requesting a classification for a business and exposing the in-flight or
// resolved state to whichever wizard screen needs it.
package recommend

import (
	"context"
	"sync"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/funnel-wizard/internal/funnel"
	"github.com/sells-group/funnel-wizard/internal/resilience"
	"github.com/sells-group/funnel-wizard/pkg/classifier"
)

// Status is the resolution lifecycle state.
type Status string

const (
	StatusIdle     Status = "idle"
	StatusLoading  Status = "loading"
	StatusResolved Status = "resolved"
)

// Resolution is the current recommendation state for one session. A
// resolved state with a nil Product means the classification failed or
// returned nothing usable; the caller offers a retry.
type Resolution struct {
	Status  Status          `json:"status"`
	Product *funnel.Product `json:"product"`
}

// Resolver tracks per-session recommendation state. Retries re-issue the
// request as-is: there is no caching by input and no request sequencing, so
// a slow earlier request can resolve after (and clobber) a retry. That race
// is accepted; a single visitor drives at most one request at a time in
// practice.
type Resolver struct {
	client  classifier.Client
	breaker *resilience.CircuitBreaker

	mu     sync.Mutex
	states map[string]Resolution
}

// ResolverOption configures a Resolver.
type ResolverOption func(*Resolver)

// WithCircuitBreaker guards classification calls with the given breaker.
// While the circuit is open, resolutions fail fast without hitting the
// classification service.
func WithCircuitBreaker(cb *resilience.CircuitBreaker) ResolverOption {
	return func(r *Resolver) { r.breaker = cb }
}

// NewResolver creates a resolver backed by the given classification client.
func NewResolver(client classifier.Client, opts ...ResolverOption) *Resolver {
	r := &Resolver{
		client: client,
		states: make(map[string]Resolution),
	}
	for _, o := range opts {
		o(r)
	}
	return r
}

// State returns the session's current resolution; idle if never triggered.
func (r *Resolver) State(sessionID string) Resolution {
	r.mu.Lock()
	defer r.mu.Unlock()
	if res, ok := r.states[sessionID]; ok {
		return res
	}
	return Resolution{Status: StatusIdle}
}

// Resolve validates the business identity, moves the session to loading,
// and requests a classification in the background. The ctx should outlive
// the triggering request (pass the server's base context); requests run to
// completion, there is no cancellation or timeout beyond the client's own.
func (r *Resolver) Resolve(ctx context.Context, sessionID, name, websiteURL string) error {
	if name == "" {
		return eris.New("recommend: business name is required")
	}
	if err := classifier.ValidateWebsiteURL(websiteURL); err != nil {
		return err
	}

	r.setState(sessionID, Resolution{Status: StatusLoading})

	go func() {
		raw, err := r.classify(ctx, name, websiteURL)
		if err != nil {
			zap.L().Warn("recommend: classification failed",
				zap.String("session_id", sessionID),
				zap.Error(err),
			)
			r.setState(sessionID, Resolution{Status: StatusResolved})
			return
		}

		product, ok := funnel.ParseProduct(raw)
		if !ok {
			zap.L().Warn("recommend: unrecognized product",
				zap.String("session_id", sessionID),
				zap.String("product", raw),
			)
			r.setState(sessionID, Resolution{Status: StatusResolved})
			return
		}

		zap.L().Info("recommend: resolved",
			zap.String("session_id", sessionID),
			zap.String("product", string(product)),
		)
		r.setState(sessionID, Resolution{Status: StatusResolved, Product: &product})
	}()

	return nil
}

func (r *Resolver) classify(ctx context.Context, name, websiteURL string) (string, error) {
	if r.breaker == nil {
		return r.client.Classify(ctx, name, websiteURL)
	}
	return resilience.ExecuteVal(ctx, r.breaker, func(ctx context.Context) (string, error) {
		return r.client.Classify(ctx, name, websiteURL)
	})
}

func (r *Resolver) setState(sessionID string, res Resolution) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.states[sessionID] = res
}
