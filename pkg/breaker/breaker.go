// Package breaker implements a per-provider circuit breaker for upstream
// model calls, failing fast while a provider is unhealthy.
package breaker

import (
	"context"
	"log"
	"sync"
	"time"
)

// State is the breaker's position in its lifecycle.
type State int

const (
	Closed State = iota
	Open
	HalfOpen
)

func (s State) String() string {
	switch s {
	case Closed:
		return "closed"
	case Open:
		return "open"
	case HalfOpen:
		return "half_open"
	default:
		return "unknown"
	}
}

// Config tunes one breaker. Zero values fall back to defaults.
type Config struct {
	// FailureThreshold is how many consecutive failures trip the breaker.
	FailureThreshold int
	// SuccessThreshold is how many consecutive half-open successes close it.
	SuccessThreshold int
	// Timeout is how long the breaker stays open before probing.
	Timeout time.Duration
	// HalfOpenMaxCalls caps concurrent probes while half-open.
	HalfOpenMaxCalls int
}

func (c Config) withDefaults() Config {
	if c.FailureThreshold <= 0 {
		c.FailureThreshold = 5
	}
	if c.SuccessThreshold <= 0 {
		c.SuccessThreshold = 2
	}
	if c.Timeout <= 0 {
		c.Timeout = 30 * time.Second
	}
	if c.HalfOpenMaxCalls <= 0 {
		c.HalfOpenMaxCalls = 1
	}
	return c
}

// Stats are the mutable counters of one breaker. Failure and success counts
// reset when the breaker closes; the totals are monotonic for the breaker's
// lifetime.
type Stats struct {
	FailureCount    int       `json:"failure_count"`
	SuccessCount    int       `json:"success_count"`
	LastFailureTime time.Time `json:"last_failure_time"`
	TripsTotal      uint64    `json:"trips_total"`
	RejectionsTotal uint64    `json:"rejections_total"`
}

// CircuitBreaker guards calls to a single upstream provider. All state
// transitions happen under one mutex so concurrent callers cannot race past
// a threshold crossing.
type CircuitBreaker struct {
	provider string
	cfg      Config

	mu               sync.Mutex
	state            State
	stats            Stats
	halfOpenInFlight int
	clock            func() time.Time
}

// New builds a breaker for the named provider.
func New(provider string, cfg Config) *CircuitBreaker {
	return &CircuitBreaker{
		provider: provider,
		cfg:      cfg.withDefaults(),
		state:    Closed,
		clock:    time.Now,
	}
}

// Call wraps one streaming invocation. The outcome is recorded only after
// fn returns, so a stream that yields tokens and then errors still counts
// as a single failure.
func (cb *CircuitBreaker) Call(ctx context.Context, fn func(context.Context) error) error {
	probe, err := cb.allow()
	if err != nil {
		return err
	}

	callErr := fn(ctx)
	cb.record(callErr == nil, probe)
	return callErr
}

// State reports the current state without side effects.
func (cb *CircuitBreaker) State() State {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}

// Stats returns a snapshot of the counters.
func (cb *CircuitBreaker) Stats() Stats {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.stats
}

// allow decides whether a call may proceed, performing the open→half-open
// transition when the timeout has elapsed. probe is true when the call was
// admitted as a half-open probe and must be drained from the in-flight cap.
func (cb *CircuitBreaker) allow() (probe bool, err error) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	now := cb.clock()

	if cb.state == Open {
		if now.Sub(cb.stats.LastFailureTime) >= cb.cfg.Timeout {
			cb.transition(HalfOpen)
		} else {
			cb.stats.RejectionsTotal++
			return false, cb.openErrorLocked(now)
		}
	}

	if cb.state == HalfOpen {
		if cb.halfOpenInFlight >= cb.cfg.HalfOpenMaxCalls {
			cb.stats.RejectionsTotal++
			return false, cb.openErrorLocked(now)
		}
		cb.halfOpenInFlight++
		return true, nil
	}

	return false, nil
}

func (cb *CircuitBreaker) record(success, probe bool) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if probe && cb.halfOpenInFlight > 0 {
		cb.halfOpenInFlight--
	}

	if success {
		switch cb.state {
		case HalfOpen:
			cb.stats.SuccessCount++
			if cb.stats.SuccessCount >= cb.cfg.SuccessThreshold {
				cb.transition(Closed)
			}
		case Closed:
			cb.stats.FailureCount = 0
		}
		return
	}

	cb.stats.LastFailureTime = cb.clock()
	switch cb.state {
	case HalfOpen:
		cb.stats.TripsTotal++
		cb.transition(Open)
	case Closed:
		cb.stats.FailureCount++
		if cb.stats.FailureCount >= cb.cfg.FailureThreshold {
			cb.stats.TripsTotal++
			cb.transition(Open)
		}
	}
}

// transition must be called with the mutex held.
func (cb *CircuitBreaker) transition(next State) {
	prev := cb.state
	cb.state = next
	switch next {
	case Closed:
		cb.stats.FailureCount = 0
		cb.stats.SuccessCount = 0
	case HalfOpen:
		cb.stats.SuccessCount = 0
		cb.halfOpenInFlight = 0
	}
	log.Printf("[breaker/%s] state %s -> %s", cb.provider, prev, next)
}

func (cb *CircuitBreaker) openErrorLocked(now time.Time) *OpenError {
	retryAfter := cb.cfg.Timeout - now.Sub(cb.stats.LastFailureTime)
	if retryAfter < 0 {
		retryAfter = 0
	}
	return &OpenError{
		Provider:   cb.provider,
		State:      cb.state,
		RetryAfter: retryAfter,
	}
}
