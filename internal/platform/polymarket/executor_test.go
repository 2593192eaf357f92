package polymarket

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/polytrack/internal/domain"
	"github.com/alanyoungcy/polytrack/internal/resilience"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestExecutor(maxRetries, breakerThreshold int) *Executor {
	limiter := resilience.NewRateLimiter(1000, 1000)
	breakers := resilience.NewRegistry(breakerThreshold, 30*time.Second, nil)
	return NewExecutor(limiter, breakers, ExecutorConfig{
		MaxRetries:     maxRetries,
		BaseBackoff:    time.Millisecond,
		MaxBackoff:     5 * time.Millisecond,
		RequestTimeout: 2 * time.Second,
		AuditTrailSize: 16,
	}, discardLogger())
}

func TestDoReturnsBodyOnSuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/markets", r.URL.Path)
		assert.Equal(t, "10", r.URL.Query().Get("limit"))
		w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	e := newTestExecutor(3, 5)
	params := url.Values{"limit": []string{"10"}}
	body, err := e.Do(context.Background(), "gamma", http.MethodGet, srv.URL, "/markets", params)
	require.NoError(t, err)
	assert.JSONEq(t, `{"ok":true}`, string(body))

	trail := e.AuditTrail()
	require.Len(t, trail, 1)
	assert.Equal(t, http.StatusOK, trail[0].Status)
	assert.Empty(t, trail[0].Err)
}

func TestDoRetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	e := newTestExecutor(3, 10)
	_, err := e.Do(context.Background(), "gamma", http.MethodGet, srv.URL, "/m", nil)
	require.NoError(t, err)
	assert.Equal(t, int32(3), calls.Load())
	assert.Len(t, e.AuditTrail(), 3, "every attempt lands in the audit trail")
}

func TestDoRetriesRateLimitResponses(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	e := newTestExecutor(3, 10)
	_, err := e.Do(context.Background(), "clob", http.MethodGet, srv.URL, "/m", nil)
	require.NoError(t, err)
	assert.Equal(t, int32(2), calls.Load())
}

func TestDoClientErrorsAreNotRetried(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer srv.Close()

	e := newTestExecutor(3, 10)
	_, err := e.Do(context.Background(), "gamma", http.MethodGet, srv.URL, "/m", nil)
	require.ErrorIs(t, err, domain.ErrClient)
	assert.Equal(t, int32(1), calls.Load())
}

func TestDoNotFoundMapsToDomainError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	e := newTestExecutor(3, 10)
	_, err := e.Do(context.Background(), "gamma", http.MethodGet, srv.URL, "/m", nil)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestDoClientErrorsDoNotTripBreaker(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	e := newTestExecutor(0, 2)
	for i := 0; i < 10; i++ {
		_, err := e.Do(context.Background(), "gamma", http.MethodGet, srv.URL, "/m", nil)
		require.ErrorIs(t, err, domain.ErrNotFound, "breaker must stay closed on 404s")
	}
}

func TestDoOpensBreakerAfterUpstreamFailures(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	e := newTestExecutor(0, 2)
	ctx := context.Background()

	_, err := e.Do(ctx, "gamma", http.MethodGet, srv.URL, "/m", nil)
	require.Error(t, err)
	_, err = e.Do(ctx, "gamma", http.MethodGet, srv.URL, "/m", nil)
	require.Error(t, err)

	_, err = e.Do(ctx, "gamma", http.MethodGet, srv.URL, "/m", nil)
	var open *domain.CircuitOpenError
	require.ErrorAs(t, err, &open)
	assert.Equal(t, "gamma", open.Group)
	assert.Greater(t, open.RetryAfter, time.Duration(0))
}

func TestDoBreakerGroupsAreIndependent(t *testing.T) {
	bad := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer bad.Close()
	good := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{}`))
	}))
	defer good.Close()

	e := newTestExecutor(0, 1)
	ctx := context.Background()

	_, err := e.Do(ctx, "gamma", http.MethodGet, bad.URL, "/m", nil)
	require.Error(t, err)

	var open *domain.CircuitOpenError
	_, err = e.Do(ctx, "gamma", http.MethodGet, bad.URL, "/m", nil)
	require.ErrorAs(t, err, &open)

	_, err = e.Do(ctx, "clob", http.MethodGet, good.URL, "/m", nil)
	assert.NoError(t, err, "an open gamma breaker must not block clob")
}

func TestDoExhaustedRetriesReportLastError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	e := newTestExecutor(2, 10)
	_, err := e.Do(context.Background(), "gamma", http.MethodGet, srv.URL, "/m", nil)
	require.ErrorIs(t, err, domain.ErrUpstream)
	assert.Len(t, e.AuditTrail(), 3, "initial attempt plus two retries")
}

func TestDoCancelledContextStopsRetrying(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	e := newTestExecutor(5, 10)
	_, err := e.Do(ctx, "gamma", http.MethodGet, srv.URL, "/m", nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestAuditTrailWrapsAround(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	limiter := resilience.NewRateLimiter(1000, 1000)
	breakers := resilience.NewRegistry(5, time.Second, nil)
	e := NewExecutor(limiter, breakers, ExecutorConfig{
		MaxRetries:     0,
		BaseBackoff:    time.Millisecond,
		MaxBackoff:     time.Millisecond,
		RequestTimeout: time.Second,
		AuditTrailSize: 4,
	}, discardLogger())

	for i := 0; i < 6; i++ {
		_, err := e.Do(context.Background(), "gamma", http.MethodGet, srv.URL, "/m", nil)
		require.NoError(t, err)
	}

	trail := e.AuditTrail()
	require.Len(t, trail, 4, "trail is bounded")
	for i := 1; i < len(trail); i++ {
		assert.False(t, trail[i].At.Before(trail[i-1].At), "trail is ordered oldest first")
	}
}
