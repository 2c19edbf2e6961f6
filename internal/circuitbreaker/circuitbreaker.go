// Package circuitbreaker stops calling a gateway host after repeated
// transport failures and probes it again after a cool-down.
package circuitbreaker

import (
	"sync"
	"time"
)

// State represents the state of the circuit for one host.
type State int

const (
	StateClosed State = iota
	StateOpen
	StateHalfOpen
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "Closed"
	case StateOpen:
		return "Open"
	case StateHalfOpen:
		return "HalfOpen"
	default:
		return "Unknown"
	}
}

const (
	defaultFailureThreshold = 3
	defaultResetTimeout     = 30 * time.Second
)

// Config tunes the breaker. Zero values fall back to the defaults.
type Config struct {
	FailureThreshold int           // consecutive failures that open the circuit
	ResetTimeout     time.Duration // time spent Open before a HalfOpen probe
}

type hostState struct {
	state     State
	failures  int
	openUntil time.Time
}

// CircuitBreaker tracks one circuit per gateway host.
type CircuitBreaker struct {
	mu    sync.Mutex
	cfg   Config
	hosts map[string]*hostState
	now   func() time.Time
}

// NewCircuitBreaker creates a breaker with cfg, filling in defaults.
func NewCircuitBreaker(cfg Config) *CircuitBreaker {
	if cfg.FailureThreshold <= 0 {
		cfg.FailureThreshold = defaultFailureThreshold
	}
	if cfg.ResetTimeout <= 0 {
		cfg.ResetTimeout = defaultResetTimeout
	}
	return &CircuitBreaker{
		cfg:   cfg,
		hosts: make(map[string]*hostState),
		now:   time.Now,
	}
}

// caller holds mu
func (cb *CircuitBreaker) get(host string) *hostState {
	hs, ok := cb.hosts[host]
	if !ok {
		hs = &hostState{state: StateClosed}
		cb.hosts[host] = hs
	}
	return hs
}

// AllowRequest reports whether a call to host may proceed. An Open circuit
// whose timeout has elapsed moves to HalfOpen and lets the probe through.
func (cb *CircuitBreaker) AllowRequest(host string) bool {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	hs := cb.get(host)
	if hs.state != StateOpen {
		return true
	}
	if cb.now().Before(hs.openUntil) {
		return false
	}
	hs.state = StateHalfOpen
	hs.failures = 0
	return true
}

// RecordFailure counts a failed call. Reaching the threshold while Closed, or
// any failure while HalfOpen, opens the circuit.
func (cb *CircuitBreaker) RecordFailure(host string) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	hs := cb.get(host)
	switch hs.state {
	case StateClosed:
		hs.failures++
		if hs.failures >= cb.cfg.FailureThreshold {
			cb.open(hs)
		}
	case StateHalfOpen:
		cb.open(hs)
	case StateOpen:
	}
}

func (cb *CircuitBreaker) open(hs *hostState) {
	hs.state = StateOpen
	hs.failures = cb.cfg.FailureThreshold
	hs.openUntil = cb.now().Add(cb.cfg.ResetTimeout)
}

// RecordSuccess closes a HalfOpen circuit and clears the failure count.
func (cb *CircuitBreaker) RecordSuccess(host string) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	hs := cb.get(host)
	if hs.state == StateOpen {
		return
	}
	hs.state = StateClosed
	hs.failures = 0
}

// Status returns the state and consecutive failure count for host without
// triggering any transition.
func (cb *CircuitBreaker) Status(host string) (State, int) {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	hs, ok := cb.hosts[host]
	if !ok {
		return StateClosed, 0
	}
	return hs.state, hs.failures
}
