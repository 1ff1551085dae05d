package recommend

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/funnel-wizard/internal/funnel"
	"github.com/sells-group/funnel-wizard/internal/resilience"
	"github.com/sells-group/funnel-wizard/pkg/classifier"
)

func waitResolved(t *testing.T, r *Resolver, sessionID string) Resolution {
	t.Helper()
	require.Eventually(t, func() bool {
		return r.State(sessionID).Status == StatusResolved
	}, 2*time.Second, 10*time.Millisecond)
	return r.State(sessionID)
}

func TestResolver_IdleByDefault(t *testing.T) {
	r := NewResolver(classifier.NewClient("http://unused.invalid"))
	res := r.State("s1")
	assert.Equal(t, StatusIdle, res.Status)
	assert.Nil(t, res.Product)
}

func TestResolver_ResolvesProduct(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`[{"product": "LeadGen"}]`))
	}))
	defer ts.Close()

	r := NewResolver(classifier.NewClient(ts.URL))
	require.NoError(t, r.Resolve(context.Background(), "s1", "Acme", "https://acme.example"))

	res := waitResolved(t, r, "s1")
	require.NotNil(t, res.Product)
	assert.Equal(t, funnel.ProductLeadGen, *res.Product)
}

func TestResolver_FailureResolvesNil(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "down", http.StatusServiceUnavailable)
	}))
	defer ts.Close()

	r := NewResolver(classifier.NewClient(ts.URL))
	require.NoError(t, r.Resolve(context.Background(), "s1", "Acme", "https://acme.example"))

	res := waitResolved(t, r, "s1")
	assert.Nil(t, res.Product)
}

func TestResolver_UnknownProductResolvesNil(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`[{"product": "Billboards"}]`))
	}))
	defer ts.Close()

	r := NewResolver(classifier.NewClient(ts.URL))
	require.NoError(t, r.Resolve(context.Background(), "s1", "Acme", "https://acme.example"))

	res := waitResolved(t, r, "s1")
	assert.Nil(t, res.Product)
}

func TestResolver_RejectsInvalidInput(t *testing.T) {
	r := NewResolver(classifier.NewClient("http://unused.invalid"))

	assert.Error(t, r.Resolve(context.Background(), "s1", "", "https://acme.example"))
	assert.Error(t, r.Resolve(context.Background(), "s1", "Acme", "not-a-url"))
	assert.Equal(t, StatusIdle, r.State("s1").Status, "invalid input leaves the state alone")
}

func TestResolver_RetryAfterFailure(t *testing.T) {
	var calls atomic.Int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if calls.Add(1) == 1 {
			http.Error(w, "flaky", http.StatusBadGateway)
			return
		}
		_, _ = w.Write([]byte(`[{"product": "SEO"}]`))
	}))
	defer ts.Close()

	r := NewResolver(classifier.NewClient(ts.URL))
	ctx := context.Background()

	require.NoError(t, r.Resolve(ctx, "s1", "Acme", "https://acme.example"))
	res := waitResolved(t, r, "s1")
	require.Nil(t, res.Product)

	require.NoError(t, r.Resolve(ctx, "s1", "Acme", "https://acme.example"))
	res = waitResolved(t, r, "s1")
	require.NotNil(t, res.Product)
	assert.Equal(t, funnel.ProductSEO, *res.Product)
}

// Two overlapping resolves may settle in either order; the resolver must
// end resolved with an outcome matching one of the two calls. Asserting a
// specific winner would require request sequencing, which this component
// intentionally does not have.
func TestResolver_OverlappingResolves(t *testing.T) {
	slow := make(chan struct{})
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req classifier.ClassifyRequest
		_ = jsonDecode(r, &req)
		if req.Name == "Slow Co" {
			<-slow
			_, _ = w.Write([]byte(`[{"product": "LSA"}]`))
			return
		}
		_, _ = w.Write([]byte(`[{"product": "SEO"}]`))
	}))
	defer ts.Close()

	r := NewResolver(classifier.NewClient(ts.URL))
	ctx := context.Background()

	require.NoError(t, r.Resolve(ctx, "s1", "Slow Co", "https://slow.example"))
	require.NoError(t, r.Resolve(ctx, "s1", "Fast Co", "https://fast.example"))
	close(slow)

	require.Eventually(t, func() bool {
		res := r.State("s1")
		if res.Status != StatusResolved || res.Product == nil {
			return false
		}
		return *res.Product == funnel.ProductLSA || *res.Product == funnel.ProductSEO
	}, 2*time.Second, 10*time.Millisecond)
}

func TestResolver_OpenCircuitFailsFast(t *testing.T) {
	var hits atomic.Int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		hits.Add(1)
		http.Error(w, "down", http.StatusServiceUnavailable)
	}))
	defer ts.Close()

	cb := resilience.NewCircuitBreaker(resilience.CircuitBreakerConfig{
		FailureThreshold: 1,
		ResetTimeout:     time.Hour,
		ShouldTrip:       func(error) bool { return true },
	})
	r := NewResolver(classifier.NewClient(ts.URL), WithCircuitBreaker(cb))
	ctx := context.Background()

	require.NoError(t, r.Resolve(ctx, "s1", "Acme", "https://acme.example"))
	res := waitResolved(t, r, "s1")
	assert.Nil(t, res.Product)
	require.Equal(t, int32(1), hits.Load())

	require.NoError(t, r.Resolve(ctx, "s1", "Acme", "https://acme.example"))
	res = waitResolved(t, r, "s1")
	assert.Nil(t, res.Product)
	assert.Equal(t, int32(1), hits.Load(), "open circuit skips the endpoint")
}

func jsonDecode(r *http.Request, v any) error {
	defer r.Body.Close()
	return json.NewDecoder(r.Body).Decode(v)
}
