// Package circuitbreaker guards calls to flaky downstream dependencies.
// When a dependency fails repeatedly the breaker opens and callers fail
// fast instead of stacking timeouts; after a cooling period a limited
// number of probe calls decide whether to close it again.
package circuitbreaker

import (
	"errors"
	"log/slog"
	"sync"
	"time"
)

// State is the breaker's current disposition toward the dependency.
type State int

const (
	StateClosed   State = iota // calls pass through
	StateOpen                  // calls fail fast
	StateHalfOpen              // limited probe calls allowed
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

// ErrOpen is returned while the breaker is rejecting calls.
var ErrOpen = errors.New("circuit breaker open")

// Config tunes a Breaker. Zero values pick the defaults documented per field.
type Config struct {
	Name string

	// FailureThreshold is the consecutive-failure count that opens the
	// breaker. Default 5.
	FailureThreshold int

	// CoolDown is how long the breaker stays open before probing.
	// Default 30s.
	CoolDown time.Duration

	// ProbeQuota is how many calls may pass in half-open state. Default 1.
	ProbeQuota int
}

// Breaker implements the circuit breaker pattern around an arbitrary call.
type Breaker struct {
	cfg Config
	now func() time.Time

	mu           sync.Mutex
	state        State
	failures     int
	probesInUse  int
	probesPassed int
	openedAt     time.Time
}

// New creates a closed Breaker.
func New(cfg Config) *Breaker {
	if cfg.FailureThreshold <= 0 {
		cfg.FailureThreshold = 5
	}
	if cfg.CoolDown <= 0 {
		cfg.CoolDown = 30 * time.Second
	}
	if cfg.ProbeQuota <= 0 {
		cfg.ProbeQuota = 1
	}
	return &Breaker{cfg: cfg, now: time.Now}
}

// State returns the breaker's current state, advancing open to half-open
// once the cooling period has elapsed.
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.refresh()
	return b.state
}

// Do runs fn through the breaker. While open it returns ErrOpen without
// calling fn; otherwise fn's error decides the next state.
func (b *Breaker) Do(fn func() error) error {
	if err := b.before(); err != nil {
		return err
	}
	err := fn()
	b.after(err)
	return err
}

func (b *Breaker) before() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.refresh()

	switch b.state {
	case StateOpen:
		return ErrOpen
	case StateHalfOpen:
		if b.probesInUse >= b.cfg.ProbeQuota {
			return ErrOpen
		}
		b.probesInUse++
	}
	return nil
}

func (b *Breaker) after(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if err != nil {
		b.failures++
		if b.state == StateHalfOpen || b.failures >= b.cfg.FailureThreshold {
			b.transition(StateOpen)
		}
		return
	}

	switch b.state {
	case StateHalfOpen:
		b.probesPassed++
		if b.probesPassed >= b.cfg.ProbeQuota {
			b.transition(StateClosed)
		}
	case StateClosed:
		b.failures = 0
	}
}

// refresh moves open to half-open after the cooling period. Callers hold mu.
func (b *Breaker) refresh() {
	if b.state == StateOpen && b.now().Sub(b.openedAt) >= b.cfg.CoolDown {
		b.transition(StateHalfOpen)
	}
}

// transition switches state and resets the counters. Callers hold mu.
func (b *Breaker) transition(to State) {
	if b.state == to {
		return
	}
	slog.Info("circuit breaker state change",
		"name", b.cfg.Name, "from", b.state.String(), "to", to.String())
	b.state = to
	b.failures = 0
	b.probesInUse = 0
	b.probesPassed = 0
	if to == StateOpen {
		b.openedAt = b.now()
	}
}
