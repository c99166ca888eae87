package notifications

import (
	"context"
	"errors"
	"sync"
	"time"
)

var ErrCircuitOpen = errors.New("circuit breaker open")

type circuitState int

const (
	stateClosed circuitState = iota
	stateOpen
	stateHalfOpen
)

type ProtectedNotifierConfig struct {
	Timeout          time.Duration // per send
	FailureThreshold int           // consecutive failures before opening
	Cooldown         time.Duration // open duration before a trial call
	HalfOpenMaxCalls int
}

// ProtectedNotifier bounds each send with a timeout and stops calling a failing
// provider until the cooldown has passed.
type ProtectedNotifier struct {
	inner Notifier
	cfg   ProtectedNotifierConfig
	now   func() time.Time

	mu               sync.Mutex
	state            circuitState
	failures         int
	openedAt         time.Time
	halfOpenInFlight int
}

func NewProtectedNotifier(inner Notifier, cfg ProtectedNotifierConfig) *ProtectedNotifier {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 3 * time.Second
	}

	if cfg.FailureThreshold <= 0 {
		cfg.FailureThreshold = 3
	}

	if cfg.Cooldown <= 0 {
		cfg.Cooldown = 15 * time.Second
	}

	if cfg.HalfOpenMaxCalls <= 0 {
		cfg.HalfOpenMaxCalls = 1
	}

	return &ProtectedNotifier{inner: inner, cfg: cfg, now: time.Now}
}

func (n *ProtectedNotifier) SendPasswordReset(ctx context.Context, in PasswordResetInput) error {
	if !n.allow() {
		return ErrCircuitOpen
	}

	sendCtx, cancel := context.WithTimeout(ctx, n.cfg.Timeout)
	defer cancel()

	err := n.inner.SendPasswordReset(sendCtx, in)
	n.done(err)

	return err
}

func (n *ProtectedNotifier) allow() bool {
	n.mu.Lock()
	defer n.mu.Unlock()

	switch n.state {
	case stateOpen:
		if n.now().Sub(n.openedAt) < n.cfg.Cooldown {
			return false
		}

		n.state = stateHalfOpen
		n.halfOpenInFlight = 1

		return true
	case stateHalfOpen:
		if n.halfOpenInFlight >= n.cfg.HalfOpenMaxCalls {
			return false
		}

		n.halfOpenInFlight++

		return true
	default:
		return true
	}
}

func (n *ProtectedNotifier) done(err error) {
	n.mu.Lock()
	defer n.mu.Unlock()

	if n.state == stateHalfOpen && n.halfOpenInFlight > 0 {
		n.halfOpenInFlight--
	}

	if err == nil {
		n.failures = 0
		n.state = stateClosed
		return
	}

	n.failures++

	if n.state == stateHalfOpen || n.failures >= n.cfg.FailureThreshold {
		n.state = stateOpen
		n.openedAt = n.now()
	}
}
