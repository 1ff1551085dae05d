package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/funnel-wizard/internal/resilience"
	"github.com/sells-group/funnel-wizard/internal/store"
)

// Reporter delivers tracking payloads to the automation endpoint. Delivery
// is best-effort: failures are logged and swallowed, never returned to the
// caller, so tracking can never block a visitor's path through the funnel.
//
// With an outbox store attached, every payload is recorded before the send
// attempt and a Drainer redelivers whatever did not make it.
type Reporter struct {
	url     string
	client  *http.Client
	store   store.Store
	timeout time.Duration
	logger  *zap.Logger

	wg sync.WaitGroup
}

// Option configures a Reporter.
type Option func(*Reporter)

// WithHTTPClient overrides the HTTP client used for sends.
func WithHTTPClient(c *http.Client) Option {
	return func(r *Reporter) { r.client = c }
}

// WithOutbox records payloads in the store before sending so undelivered
// ones survive restarts and can be drained later.
func WithOutbox(s store.Store) Option {
	return func(r *Reporter) { r.store = s }
}

// WithTimeout sets the per-send timeout.
func WithTimeout(d time.Duration) Option {
	return func(r *Reporter) { r.timeout = d }
}

// WithLogger overrides the logger.
func WithLogger(l *zap.Logger) Option {
	return func(r *Reporter) { r.logger = l }
}

// NewReporter creates a reporter posting to the given endpoint URL.
func NewReporter(url string, opts ...Option) *Reporter {
	r := &Reporter{
		url:     url,
		client:  &http.Client{Timeout: 15 * time.Second},
		timeout: 15 * time.Second,
		logger:  zap.L(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// ReportBestEffort dispatches the payload without blocking the caller and
// without any error surface. The send runs on its own goroutine with its
// own deadline; the result is only logged.
func (r *Reporter) ReportBestEffort(p Payload) {
	body, err := json.Marshal(p)
	if err != nil {
		r.logger.Error("tracking payload marshal failed", zap.Error(err))
		return
	}

	var eventID string
	if r.store != nil {
		ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
		eventID, err = r.store.RecordEvent(ctx, store.TrackingEvent{
			SessionID: deref(p.SessionID),
			Step:      derefInt(p.Step),
			Payload:   body,
		})
		cancel()
		if err != nil {
			r.logger.Warn("tracking outbox record failed", zap.Error(err))
			eventID = ""
		}
	}

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()

		ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
		defer cancel()

		if err := r.send(ctx, body); err != nil {
			r.logger.Warn("tracking send failed",
				zap.String("sessionId", deref(p.SessionID)),
				zap.Intp("step", p.Step),
				zap.Error(err),
			)
			return
		}
		if r.store != nil && eventID != "" {
			if err := r.store.MarkDelivered(ctx, eventID); err != nil {
				r.logger.Warn("tracking outbox mark failed",
					zap.String("eventId", eventID), zap.Error(err))
			}
		}
	}()
}

// Flush waits for in-flight sends to finish. Used on shutdown and in tests.
func (r *Reporter) Flush() {
	r.wg.Wait()
}

// Send delivers one payload synchronously. The Drainer uses it for
// redelivery; interactive paths should use ReportBestEffort.
func (r *Reporter) Send(ctx context.Context, p Payload) error {
	body, err := json.Marshal(p)
	if err != nil {
		return eris.Wrap(err, "webhook: marshal payload")
	}
	return r.send(ctx, body)
}

// SendRaw delivers an already-marshaled payload body.
func (r *Reporter) SendRaw(ctx context.Context, body []byte) error {
	return r.send(ctx, body)
}

func (r *Reporter) send(ctx context.Context, body []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.url, bytes.NewReader(body))
	if err != nil {
		return eris.Wrap(err, "webhook: build request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := r.client.Do(req)
	if err != nil {
		return eris.Wrap(err, "webhook: post")
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		err := eris.Errorf("webhook: endpoint returned %d", resp.StatusCode)
		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
			return resilience.NewTransientError(err, resp.StatusCode)
		}
		return err
	}
	return nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func derefInt(n *int) int {
	if n == nil {
		return 0
	}
	return *n
}
