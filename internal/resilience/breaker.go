// Package resilience guards calls to unreliable collaborators.
package resilience

import (
	"context"
	"errors"
	"sync"
	"time"

	"projectron-api/internal/logger"

	"go.uber.org/zap"
)

// ErrCircuitOpen is returned without calling fn while the breaker is open.
var ErrCircuitOpen = errors.New("circuit breaker is open")

// State of a Breaker.
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
	}
	return "unknown"
}

// Breaker opens after a run of consecutive failures and rejects every
// call until the cooldown has passed. The first call after the cooldown
// is a trial: success closes the breaker, failure opens it again.
type Breaker struct {
	name        string
	maxFailures int
	cooldown    time.Duration
	logger      *zap.Logger
	now         func() time.Time

	mu       sync.Mutex
	state    State
	failures int
	openedAt time.Time
	trial    bool
}

func NewBreaker(name string, maxFailures int, cooldown time.Duration, l *zap.Logger) *Breaker {
	if maxFailures < 1 {
		maxFailures = 1
	}
	return &Breaker{
		name:        name,
		maxFailures: maxFailures,
		cooldown:    cooldown,
		logger:      logger.Or(l),
		now:         time.Now,
	}
}

// Execute runs fn unless the breaker rejects the call. Context
// cancellation of the caller is not counted as a failure.
func (b *Breaker) Execute(ctx context.Context, fn func(ctx context.Context) error) error {
	if !b.allow() {
		return ErrCircuitOpen
	}

	err := fn(ctx)

	b.mu.Lock()
	defer b.mu.Unlock()
	switch {
	case err == nil:
		b.onSuccess()
	case ctx.Err() != nil && errors.Is(err, ctx.Err()):
		b.trial = false
	default:
		b.onFailure()
	}
	return err
}

// State reports the current state, moving an expired open breaker to half-open.
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.state == Open && b.now().Sub(b.openedAt) >= b.cooldown {
		return HalfOpen
	}
	return b.state
}

func (b *Breaker) allow() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case Closed:
		return true
	case Open:
		if b.now().Sub(b.openedAt) < b.cooldown {
			return false
		}
		b.state = HalfOpen
		b.trial = true
		b.logger.Info("circuit breaker half-open", zap.String("breaker", b.name))
		return true
	case HalfOpen:
		// only one trial call at a time
		if b.trial {
			return false
		}
		b.trial = true
		return true
	}
	return false
}

// onFailure must be called with b.mu held.
func (b *Breaker) onFailure() {
	b.failures++
	b.trial = false
	if b.state == HalfOpen || b.failures >= b.maxFailures {
		if b.state != Open {
			b.logger.Warn("circuit breaker opened",
				zap.String("breaker", b.name),
				zap.Int("consecutive_failures", b.failures),
				zap.Duration("cooldown", b.cooldown))
		}
		b.state = Open
		b.openedAt = b.now()
	}
}

// onSuccess must be called with b.mu held.
func (b *Breaker) onSuccess() {
	if b.state != Closed {
		b.logger.Info("circuit breaker closed", zap.String("breaker", b.name))
	}
	b.failures = 0
	b.trial = false
	b.state = Closed
}
