package domain

import (
	"errors"
	"fmt"
	"time"
)

var (
	ErrNotFound       = errors.New("not found")
	ErrAlreadyExists  = errors.New("already exists")
	ErrAlreadyClosed  = errors.New("position already closed")
	ErrRateLimited    = errors.New("rate limited")
	ErrUnauthorized   = errors.New("unauthorized")
	ErrClient         = errors.New("client error")             // 4xx: not retried, not counted by the breaker
	ErrUpstream       = errors.New("upstream transient error") // network/5xx/timeout: retried, counted
	ErrInvalidAddress = errors.New("invalid wallet address")
	ErrWSDisconnect   = errors.New("websocket disconnected")
)

// CircuitOpenError is returned when a call is refused without touching the
// network because the group's circuit breaker is open.
type CircuitOpenError struct {
	Group      string
	RetryAfter time.Duration
}

func (e *CircuitOpenError) Error() string {
	return fmt.Sprintf("circuit open for %s, retry after %s", e.Group, e.RetryAfter.Round(time.Millisecond))
}

// NoMatchError is returned when market resolution finds no candidate scoring
// above the configured minimum. It carries the best-scoring alternatives so
// callers can distinguish "no match, try these" from a lookup failure.
type NoMatchError struct {
	Query       string
	Suggestions []Suggestion
}

func (e *NoMatchError) Error() string {
	return fmt.Sprintf("no market matched %q (%d suggestions)", e.Query, len(e.Suggestions))
}

// IsRetryable reports whether err represents transient upstream degradation
// that should be retried and counted against the circuit breaker.
func IsRetryable(err error) bool {
	if errors.Is(err, ErrClient) || errors.Is(err, ErrNotFound) || errors.Is(err, ErrUnauthorized) {
		return false
	}
	var open *CircuitOpenError
	return !errors.As(err, &open)
}
