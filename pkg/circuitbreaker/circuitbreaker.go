package circuitbreaker

import (
	"context"
	"errors"
	"sync"
	"time"
)

// State represents the circuit breaker state.
type State int

const (
	StateClosed State = iota
	StateOpen
	StateHalfOpen
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

var (
	// ErrOpen is returned when the breaker rejects a call because the
	// circuit is open.
	ErrOpen = errors.New("circuit breaker is open")
	// ErrTooManyRequests is returned when the half-open probe budget
	// is already consumed.
	ErrTooManyRequests = errors.New("too many requests in half-open state")
)

// Config holds circuit breaker configuration.
type Config struct {
	FailureThreshold    int           // consecutive failures that open the circuit
	SuccessThreshold    int           // consecutive half-open successes that close it
	Timeout             time.Duration // how long the circuit stays open
	MaxRequestsHalfOpen int           // in-flight probe budget while half-open
}

// DefaultConfig returns a default circuit breaker configuration.
func DefaultConfig() Config {
	return Config{
		FailureThreshold:    5,
		SuccessThreshold:    2,
		Timeout:             30 * time.Second,
		MaxRequestsHalfOpen: 1,
	}
}

// CircuitBreaker protects a downstream dependency from repeated calls
// while it is failing. Consecutive failures open the circuit; after
// Timeout a limited number of probe requests decide whether to close
// it again.
type CircuitBreaker struct {
	cfg Config

	mu            sync.Mutex
	state         State
	failures      int
	successes     int
	halfOpenCalls int
	openedAt      time.Time
	onStateChange func(from, to State)
}

// New creates a circuit breaker in the closed state.
func New(cfg Config) *CircuitBreaker {
	return &CircuitBreaker{cfg: cfg, state: StateClosed}
}

// OnStateChange registers a callback invoked on every state transition.
func (cb *CircuitBreaker) OnStateChange(fn func(from, to State)) {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.onStateChange = fn
}

// State returns the current state.
func (cb *CircuitBreaker) State() State {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.currentLocked()
}

// Execute runs fn if the circuit allows it and records the outcome.
func (cb *CircuitBreaker) Execute(ctx context.Context, fn func() error) error {
	if err := cb.allow(); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		cb.record(err)
		return err
	}

	err := fn()
	cb.record(err)
	return err
}

func (cb *CircuitBreaker) allow() error {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.currentLocked() {
	case StateOpen:
		return ErrOpen
	case StateHalfOpen:
		if cb.halfOpenCalls >= cb.cfg.MaxRequestsHalfOpen {
			return ErrTooManyRequests
		}
		cb.halfOpenCalls++
	}
	return nil
}

func (cb *CircuitBreaker) record(err error) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	state := cb.currentLocked()
	if state == StateHalfOpen && cb.halfOpenCalls > 0 {
		// the completed probe frees its slot
		cb.halfOpenCalls--
	}
	if err != nil {
		cb.failures++
		cb.successes = 0
		switch state {
		case StateClosed:
			if cb.failures >= cb.cfg.FailureThreshold {
				cb.transitionLocked(StateOpen)
			}
		case StateHalfOpen:
			// a failed probe reopens the circuit
			cb.transitionLocked(StateOpen)
		}
		return
	}

	cb.failures = 0
	if state == StateHalfOpen {
		cb.successes++
		if cb.successes >= cb.cfg.SuccessThreshold {
			cb.transitionLocked(StateClosed)
		}
	}
}

// currentLocked resolves the effective state, moving open to half-open
// once the timeout has elapsed.
func (cb *CircuitBreaker) currentLocked() State {
	if cb.state == StateOpen && time.Since(cb.openedAt) >= cb.cfg.Timeout {
		cb.transitionLocked(StateHalfOpen)
	}
	return cb.state
}

func (cb *CircuitBreaker) transitionLocked(to State) {
	from := cb.state
	if from == to {
		return
	}
	cb.state = to
	switch to {
	case StateOpen:
		cb.openedAt = time.Now()
	case StateHalfOpen:
		cb.halfOpenCalls = 0
		cb.successes = 0
	case StateClosed:
		cb.failures = 0
		cb.successes = 0
	}
	if cb.onStateChange != nil {
		cb.onStateChange(from, to)
	}
}
