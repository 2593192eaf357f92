package resilience

import (
	"sync"
	"time"
)

// BreakerState is the lifecycle state of a circuit breaker.
type BreakerState string

const (
	StateClosed   BreakerState = "CLOSED"
	StateOpen     BreakerState = "OPEN"
	StateHalfOpen BreakerState = "HALF_OPEN"
)

// StateChangeFunc is invoked whenever a breaker transitions between states.
type StateChangeFunc func(group string, from, to BreakerState)

// Breaker isolates failures for one upstream group. After threshold
// consecutive countable failures it opens and fails calls fast until the
// cooldown elapses; the first call after the cooldown probes the upstream in
// HALF_OPEN, and a success there closes the circuit again.
type Breaker struct {
	group     string
	threshold int
	timeout   time.Duration
	onChange  StateChangeFunc

	mu          sync.Mutex
	state       BreakerState
	failures    int
	lastFailure time.Time
	nextAttempt time.Time
	now         func() time.Time
}

// NewBreaker creates a closed breaker for the named upstream group.
func NewBreaker(group string, threshold int, timeout time.Duration, onChange StateChangeFunc) *Breaker {
	return &Breaker{
		group:     group,
		threshold: threshold,
		timeout:   timeout,
		onChange:  onChange,
		state:     StateClosed,
		now:       time.Now,
	}
}

// Allow reports whether a call may proceed. When the breaker is open and the
// cooldown has not elapsed it returns false together with the remaining wait;
// once the cooldown passes the breaker moves to HALF_OPEN and the call
// proceeds as a probe.
func (b *Breaker) Allow() (bool, time.Duration) {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case StateClosed, StateHalfOpen:
		return true, 0
	default: // StateOpen
		now := b.now()
		if now.Before(b.nextAttempt) {
			return false, b.nextAttempt.Sub(now)
		}
		b.transition(StateHalfOpen)
		return true, 0
	}
}

// RecordSuccess resets the failure count and closes the circuit if it was
// half-open.
func (b *Breaker) RecordSuccess() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.failures = 0
	if b.state == StateHalfOpen {
		b.transition(StateClosed)
	}
}

// RecordFailure counts a failure. Reaching the threshold, or failing the
// half-open probe, opens the circuit for the configured timeout.
func (b *Breaker) RecordFailure() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.failures++
	b.lastFailure = b.now()
	if b.state == StateHalfOpen || b.failures >= b.threshold {
		b.nextAttempt = b.now().Add(b.timeout)
		b.transition(StateOpen)
	}
}

// State returns the current breaker state.
func (b *Breaker) State() BreakerState {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// transition changes state and fires the callback. Caller holds b.mu.
func (b *Breaker) transition(to BreakerState) {
	if b.state == to {
		return
	}
	from := b.state
	b.state = to
	if b.onChange != nil {
		b.onChange(b.group, from, to)
	}
}

// Registry hands out one breaker per upstream group so a degraded dependency
// never blocks calls to healthy ones.
type Registry struct {
	threshold int
	timeout   time.Duration
	onChange  StateChangeFunc

	mu       sync.Mutex
	breakers map[string]*Breaker
}

// NewRegistry creates a Registry that configures every breaker it creates
// with the given threshold and cooldown.
func NewRegistry(threshold int, timeout time.Duration, onChange StateChangeFunc) *Registry {
	return &Registry{
		threshold: threshold,
		timeout:   timeout,
		onChange:  onChange,
		breakers:  make(map[string]*Breaker),
	}
}

// Get returns the breaker for group, creating it on first use.
func (r *Registry) Get(group string) *Breaker {
	r.mu.Lock()
	defer r.mu.Unlock()

	b, ok := r.breakers[group]
	if !ok {
		b = NewBreaker(group, r.threshold, r.timeout, r.onChange)
		r.breakers[group] = b
	}
	return b
}
