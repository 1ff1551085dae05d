package webhook

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/sells-group/funnel-wizard/internal/store"
	"github.com/sells-group/funnel-wizard/internal/wizard"
)

// fakeStore is an in-memory outbox for reporter tests.
type fakeStore struct {
	mu     sync.Mutex
	events map[string]store.TrackingEvent
	nextID int
}

func newFakeStore() *fakeStore {
	return &fakeStore{events: make(map[string]store.TrackingEvent)}
}

func (f *fakeStore) RecordEvent(_ context.Context, e store.TrackingEvent) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	e.ID = "evt-" + strconv.Itoa(f.nextID)
	e.CreatedAt = time.Now().Add(time.Duration(f.nextID) * time.Millisecond)
	f.events[e.ID] = e
	return e.ID, nil
}

func (f *fakeStore) MarkDelivered(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	e, ok := f.events[id]
	if !ok {
		return store.ErrNotFound
	}
	e.Delivered = true
	f.events[id] = e
	return nil
}

func (f *fakeStore) MarkAttempt(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	e, ok := f.events[id]
	if !ok {
		return store.ErrNotFound
	}
	e.Attempts++
	f.events[id] = e
	return nil
}

func (f *fakeStore) ListUndelivered(_ context.Context, limit int) ([]store.TrackingEvent, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []store.TrackingEvent
	for _, e := range f.events {
		if !e.Delivered {
			out = append(out, e)
		}
	}
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (f *fakeStore) undeliveredCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, e := range f.events {
		if !e.Delivered {
			n++
		}
	}
	return n
}

func (f *fakeStore) UpsertSession(context.Context, store.SessionRecord) error { return nil }

func (f *fakeStore) GetSession(context.Context, string) (*store.SessionRecord, error) {
	return nil, store.ErrNotFound
}

func (f *fakeStore) ListSessions(context.Context, store.SessionFilter) ([]store.SessionRecord, error) {
	return nil, nil
}

func (f *fakeStore) Migrate(context.Context) error { return nil }

func (f *fakeStore) Close() error { return nil }

func TestReporter_ReportBestEffortDelivers(t *testing.T) {
	received := make(chan []byte, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		received <- body
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	r := NewReporter(srv.URL, WithLogger(zap.NewNop()))
	p := Build(nil, wizard.NewState(), StepInfo{Step: 1, TotalSteps: 9}, true, false, testNow())
	r.ReportBestEffort(p)
	r.Flush()

	select {
	case body := <-received:
		var doc map[string]json.RawMessage
		require.NoError(t, json.Unmarshal(body, &doc))
		assert.Equal(t, "true", string(doc["startPage"]))
	case <-time.After(2 * time.Second):
		t.Fatal("payload never arrived")
	}
}

func TestReporter_FailureIsSwallowed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	r := NewReporter(srv.URL, WithLogger(zap.NewNop()))

	// Must not panic or surface an error in any way.
	r.ReportBestEffort(Build(nil, wizard.NewState(), StepInfo{}, false, false, testNow()))
	r.Flush()
}

func TestReporter_OutboxMarksDelivered(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	fs := newFakeStore()
	r := NewReporter(srv.URL, WithOutbox(fs), WithLogger(zap.NewNop()))
	r.ReportBestEffort(Build(nil, wizard.NewState(), StepInfo{Step: 2}, false, false, testNow()))
	r.Flush()

	assert.Equal(t, 0, fs.undeliveredCount())
}

func TestDrainer_RedeliversFailedSends(t *testing.T) {
	var mu sync.Mutex
	failing := true
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		mu.Lock()
		defer mu.Unlock()
		if failing {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	fs := newFakeStore()
	r := NewReporter(srv.URL, WithOutbox(fs), WithLogger(zap.NewNop()))
	r.ReportBestEffort(Build(nil, wizard.NewState(), StepInfo{Step: 3}, false, false, testNow()))
	r.Flush()
	require.Equal(t, 1, fs.undeliveredCount(), "failed send stays in the outbox")

	mu.Lock()
	failing = false
	mu.Unlock()

	d := NewDrainer(fs, r, time.Minute, 10)
	require.NoError(t, d.DrainOnce(context.Background()))
	assert.Equal(t, 0, fs.undeliveredCount())
}
