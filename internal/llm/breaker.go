package llm

import (
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"
)

var ErrCircuitOpen = errors.New("llm backend unavailable: circuit breaker open")

type BreakerState string

const (
	StateClosed   BreakerState = "closed"    // Normal operation
	StateOpen     BreakerState = "open"      // Backend failing, reject calls
	StateHalfOpen BreakerState = "half-open" // Testing whether the backend recovered
)

// Breaker stops calling a failing LLM backend for a cool-down period.
type Breaker struct {
	mu                   sync.Mutex
	state                BreakerState
	failures             int
	consecutiveSuccesses int
	openedAt             time.Time

	failureThreshold int
	successThreshold int
	openFor          time.Duration

	now func() time.Time
	log *zap.Logger
}

// NewBreaker opens after failureThreshold consecutive failures and stays
// open for openFor before letting trial calls through.
func NewBreaker(failureThreshold int, openFor time.Duration, log *zap.Logger) *Breaker {
	if failureThreshold < 1 {
		failureThreshold = 3
	}
	if openFor < time.Second {
		openFor = 30 * time.Second
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Breaker{
		state:            StateClosed,
		failureThreshold: failureThreshold,
		successThreshold: 2,
		openFor:          openFor,
		now:              time.Now,
		log:              log.Named("breaker"),
	}
}

// Allow reports whether a call may proceed.
func (b *Breaker) Allow() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.state == StateOpen {
		if b.now().Sub(b.openedAt) < b.openFor {
			return ErrCircuitOpen
		}
		b.setState(StateHalfOpen)
		b.consecutiveSuccesses = 0
	}
	return nil
}

// Record feeds the outcome of a call back into the breaker.
func (b *Breaker) Record(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if err != nil {
		b.failures++
		b.consecutiveSuccesses = 0
		switch b.state {
		case StateClosed:
			if b.failures >= b.failureThreshold {
				b.open()
			}
		case StateHalfOpen:
			b.open()
		}
		return
	}

	b.consecutiveSuccesses++
	switch b.state {
	case StateClosed:
		b.failures = 0
	case StateHalfOpen:
		if b.consecutiveSuccesses >= b.successThreshold {
			b.failures = 0
			b.setState(StateClosed)
		}
	}
}

func (b *Breaker) State() BreakerState {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

func (b *Breaker) open() {
	b.openedAt = b.now()
	b.setState(StateOpen)
}

func (b *Breaker) setState(s BreakerState) {
	if b.state != s {
		b.log.Info("state transition",
			zap.String("from", string(b.state)),
			zap.String("to", string(s)),
			zap.Int("failures", b.failures))
	}
	b.state = s
}
