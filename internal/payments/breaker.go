package payments

import (
	"errors"
	"sync"
	"time"
)

var ErrBreakerOpen = errors.New("payment authority circuit breaker is open")

type BreakerState int

const (
	StateClosed BreakerState = iota
	StateHalfOpen
	StateOpen
)

func (s BreakerState) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateHalfOpen:
		return "half_open"
	default:
		return "open"
	}
}

// CircuitBreaker trips after maxFailures consecutive failures and lets a
// single probe through once timeout has passed.
type CircuitBreaker struct {
	name        string
	maxFailures int
	timeout     time.Duration
	now         func() time.Time

	mutex               sync.Mutex
	state               BreakerState
	consecutiveFailures int
	expiry              time.Time
	probing             bool
}

func NewCircuitBreaker(name string, maxFailures int, timeout time.Duration) *CircuitBreaker {
	if maxFailures <= 0 {
		maxFailures = 5
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &CircuitBreaker{
		name:        name,
		maxFailures: maxFailures,
		timeout:     timeout,
		now:         time.Now,
		state:       StateClosed,
	}
}

// Execute runs req unless the breaker is open. Only errors for which
// countable returns true move the breaker towards open.
func (cb *CircuitBreaker) Execute(req func() error, countable func(error) bool) error {
	if err := cb.beforeRequest(); err != nil {
		return err
	}

	defer func() {
		if e := recover(); e != nil {
			cb.afterRequest(false)
			panic(e)
		}
	}()

	err := req()
	cb.afterRequest(err == nil || !countable(err))
	return err
}

// State returns the current state
func (cb *CircuitBreaker) State() BreakerState {
	cb.mutex.Lock()
	defer cb.mutex.Unlock()
	return cb.currentState()
}

func (cb *CircuitBreaker) beforeRequest() error {
	cb.mutex.Lock()
	defer cb.mutex.Unlock()

	switch cb.currentState() {
	case StateOpen:
		return ErrBreakerOpen
	case StateHalfOpen:
		if cb.probing {
			return ErrBreakerOpen
		}
		cb.probing = true
	}
	return nil
}

func (cb *CircuitBreaker) afterRequest(success bool) {
	cb.mutex.Lock()
	defer cb.mutex.Unlock()

	state := cb.currentState()
	cb.probing = false
	if success {
		cb.consecutiveFailures = 0
		cb.state = StateClosed
		return
	}

	cb.consecutiveFailures++
	if state == StateHalfOpen || cb.consecutiveFailures >= cb.maxFailures {
		cb.state = StateOpen
		cb.expiry = cb.now().Add(cb.timeout)
	}
}

func (cb *CircuitBreaker) currentState() BreakerState {
	if cb.state == StateOpen && !cb.now().Before(cb.expiry) {
		cb.state = StateHalfOpen
		cb.probing = false
	}
	return cb.state
}
