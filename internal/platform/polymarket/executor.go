package polymarket

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"math/rand"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/alanyoungcy/polytrack/internal/domain"
	"github.com/alanyoungcy/polytrack/internal/resilience"
)

// ExecutorConfig tunes retry and timeout behaviour of the Executor.
type ExecutorConfig struct {
	MaxRetries     int
	BaseBackoff    time.Duration
	MaxBackoff     time.Duration
	RequestTimeout time.Duration
	AuditTrailSize int
}

// Attempt is one entry in the executor's bounded audit trail.
type Attempt struct {
	Group    string
	Method   string
	Path     string
	Attempt  int
	Status   int
	Err      string
	Duration time.Duration
	At       time.Time
}

// Executor issues HTTP requests to the upstream provider through the rate
// limiter and per-group circuit breakers, retrying transient failures with
// jittered exponential backoff. Client errors (4xx other than 429) are
// surfaced immediately and do not count against the breaker.
type Executor struct {
	httpClient *http.Client
	limiter    *resilience.RateLimiter
	breakers   *resilience.Registry
	cfg        ExecutorConfig
	logger     *slog.Logger

	mu    sync.Mutex
	trail []Attempt
	next  int
	full  bool
}

// NewExecutor creates an Executor. The http.Client carries no timeout of its
// own; every attempt runs under a per-attempt context deadline instead.
func NewExecutor(limiter *resilience.RateLimiter, breakers *resilience.Registry, cfg ExecutorConfig, logger *slog.Logger) *Executor {
	if cfg.AuditTrailSize < 1 {
		cfg.AuditTrailSize = 64
	}
	return &Executor{
		httpClient: &http.Client{},
		limiter:    limiter,
		breakers:   breakers,
		cfg:        cfg,
		logger:     logger.With(slog.String("component", "executor")),
		trail:      make([]Attempt, cfg.AuditTrailSize),
	}
}

// Do performs a request against baseURL+path for the given upstream group and
// returns the response body. params are encoded as the query string.
func (e *Executor) Do(ctx context.Context, group, method, baseURL, path string, params url.Values) ([]byte, error) {
	breaker := e.breakers.Get(group)
	if ok, retryAfter := breaker.Allow(); !ok {
		return nil, &domain.CircuitOpenError{Group: group, RetryAfter: retryAfter}
	}

	if err := e.limiter.Acquire(ctx); err != nil {
		return nil, err
	}

	fullURL := baseURL + path
	if len(params) > 0 {
		sep := "?"
		if strings.Contains(path, "?") {
			sep = "&"
		}
		fullURL += sep + params.Encode()
	}

	var lastErr error
	for attempt := 0; attempt <= e.cfg.MaxRetries; attempt++ {
		start := time.Now()
		body, status, err := e.attempt(ctx, method, fullURL)
		e.record(Attempt{
			Group:    group,
			Method:   method,
			Path:     path,
			Attempt:  attempt,
			Status:   status,
			Err:      errString(err),
			Duration: time.Since(start),
			At:       start.UTC(),
		})

		if err == nil {
			breaker.RecordSuccess()
			return body, nil
		}
		lastErr = err

		if ctx.Err() != nil {
			return nil, fmt.Errorf("polymarket: %s %s: %w", method, path, ctx.Err())
		}
		if !domain.IsRetryable(err) {
			// Caller error, not upstream degradation.
			return nil, err
		}
		breaker.RecordFailure()

		if attempt == e.cfg.MaxRetries {
			break
		}
		if ok, retryAfter := breaker.Allow(); !ok {
			return nil, &domain.CircuitOpenError{Group: group, RetryAfter: retryAfter}
		}

		delay := e.backoff(attempt)
		e.logger.WarnContext(ctx, "retrying upstream request",
			slog.String("group", group),
			slog.String("path", path),
			slog.Int("attempt", attempt+1),
			slog.Duration("delay", delay),
			slog.String("error", err.Error()),
		)

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, fmt.Errorf("polymarket: %s %s: %w", method, path, ctx.Err())
		case <-timer.C:
		}
	}

	return nil, fmt.Errorf("polymarket: %s %s exhausted %d retries: %w", method, path, e.cfg.MaxRetries, lastErr)
}

// attempt issues a single HTTP request under the per-attempt timeout.
func (e *Executor) attempt(ctx context.Context, method, fullURL string) ([]byte, int, error) {
	attemptCtx, cancel := context.WithTimeout(ctx, e.cfg.RequestTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(attemptCtx, method, fullURL, nil)
	if err != nil {
		return nil, 0, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := e.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			// Caller cancelled; do not blame the upstream.
			return nil, 0, ctx.Err()
		}
		return nil, 0, fmt.Errorf("%w: %v", domain.ErrUpstream, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resp.StatusCode, fmt.Errorf("%w: read response: %v", domain.ErrUpstream, err)
	}

	if err := checkHTTPStatus(resp.StatusCode, body); err != nil {
		return nil, resp.StatusCode, err
	}
	return body, resp.StatusCode, nil
}

// backoff computes min(base*2^attempt + jitter(0..1s), max).
func (e *Executor) backoff(attempt int) time.Duration {
	delay := e.cfg.BaseBackoff << uint(attempt)
	delay += time.Duration(rand.Int63n(int64(time.Second)))
	if delay > e.cfg.MaxBackoff {
		delay = e.cfg.MaxBackoff
	}
	return delay
}

// record appends an attempt to the bounded audit ring.
func (e *Executor) record(a Attempt) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.trail[e.next] = a
	e.next = (e.next + 1) % len(e.trail)
	if e.next == 0 {
		e.full = true
	}
}

// AuditTrail returns the recorded attempts, oldest first.
func (e *Executor) AuditTrail() []Attempt {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.full {
		out := make([]Attempt, e.next)
		copy(out, e.trail[:e.next])
		return out
	}
	out := make([]Attempt, 0, len(e.trail))
	out = append(out, e.trail[e.next:]...)
	out = append(out, e.trail[:e.next]...)
	return out
}

// checkHTTPStatus maps non-2xx status codes to appropriate domain errors.
// 429 and all 5xx responses are treated as transient; remaining 4xx codes are
// caller errors and are never retried.
func checkHTTPStatus(statusCode int, body []byte) error {
	if statusCode >= 200 && statusCode < 300 {
		return nil
	}

	bodyStr := string(body)
	switch {
	case statusCode == http.StatusNotFound:
		return fmt.Errorf("%w: %s", domain.ErrNotFound, bodyStr)
	case statusCode == http.StatusUnauthorized || statusCode == http.StatusForbidden:
		return fmt.Errorf("%w: %s", domain.ErrUnauthorized, bodyStr)
	case statusCode == http.StatusTooManyRequests:
		return fmt.Errorf("%w: %s", domain.ErrRateLimited, bodyStr)
	case statusCode >= 500:
		return fmt.Errorf("%w: HTTP %d: %s", domain.ErrUpstream, statusCode, bodyStr)
	default:
		return fmt.Errorf("%w: HTTP %d: %s", domain.ErrClient, statusCode, bodyStr)
	}
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
