package observability

import (
	"errors"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// ErrCircuitOpen is returned by Allow while the breaker rejects calls.
var ErrCircuitOpen = errors.New("circuit breaker open")

// CircuitBreakerState represents the state of a circuit breaker.
type CircuitBreakerState int

const (
	// StateClosed allows every call.
	StateClosed CircuitBreakerState = iota
	// StateOpen rejects calls until the cool-down elapses.
	StateOpen
	// StateHalfOpen lets a limited number of probe calls through.
	StateHalfOpen
)

func (s CircuitBreakerState) String() string {
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

// CircuitBreakerStateGauge exposes the current state per breaker (0 closed, 1 open, 2 half-open).
var CircuitBreakerStateGauge = prometheus.NewGaugeVec(
	prometheus.GaugeOpts{
		Name: "circuit_breaker_state",
		Help: "Circuit breaker state (0 closed, 1 open, 2 half-open)",
	},
	[]string{"name"},
)

// CircuitBreaker guards an upstream dependency. Callers ask Allow before the
// call and Record the result afterwards; the lock is never held across the call.
type CircuitBreaker struct {
	name        string
	maxFailures int
	coolDown    time.Duration
	halfOpenMax int
	now         func() time.Time

	mu        sync.Mutex
	state     CircuitBreakerState
	failures  int
	openedAt  time.Time
	inFlight  int
	successes int
}

// NewCircuitBreaker opens after maxFailures consecutive failures and probes again after coolDown.
func NewCircuitBreaker(name string, maxFailures int, coolDown time.Duration) *CircuitBreaker {
	if maxFailures <= 0 {
		maxFailures = 5
	}
	return &CircuitBreaker{
		name:        name,
		maxFailures: maxFailures,
		coolDown:    coolDown,
		halfOpenMax: 1,
		now:         time.Now,
	}
}

// Allow reports whether a call may proceed.
func (cb *CircuitBreaker) Allow() error {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	if cb.state == StateOpen && cb.now().Sub(cb.openedAt) >= cb.coolDown {
		cb.setState(StateHalfOpen)
		cb.inFlight = 0
		cb.successes = 0
	}
	switch cb.state {
	case StateOpen:
		return ErrCircuitOpen
	case StateHalfOpen:
		if cb.inFlight >= cb.halfOpenMax {
			return ErrCircuitOpen
		}
		cb.inFlight++
	}
	return nil
}

// Record feeds the outcome of an allowed call. Only failures of the upstream
// itself should be recorded as failures.
func (cb *CircuitBreaker) Record(failed bool) {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	if cb.state == StateHalfOpen && cb.inFlight > 0 {
		cb.inFlight--
	}
	if failed {
		cb.failures++
		if cb.state == StateHalfOpen || cb.failures >= cb.maxFailures {
			cb.openedAt = cb.now()
			cb.setState(StateOpen)
		}
		return
	}
	switch cb.state {
	case StateHalfOpen:
		cb.successes++
		if cb.successes >= cb.halfOpenMax {
			cb.failures = 0
			cb.setState(StateClosed)
		}
	default:
		cb.failures = 0
	}
}

// Release frees a half-open slot taken by Allow for a call that ended without
// an upstream answer (caller cancelled, request never built). Counts are unchanged.
func (cb *CircuitBreaker) Release() {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	if cb.state == StateHalfOpen && cb.inFlight > 0 {
		cb.inFlight--
	}
}

// State returns the current state.
func (cb *CircuitBreaker) State() CircuitBreakerState {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}

func (cb *CircuitBreaker) setState(s CircuitBreakerState) {
	cb.state = s
	CircuitBreakerStateGauge.WithLabelValues(cb.name).Set(float64(s))
}
