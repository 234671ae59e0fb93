package engine

import (
	"sync"
	"time"
	"unicode/utf8"
)

const maxNameLength = 32

// Agent is a registered participant: identity, collateral, and the accumulated
// deal history the reputation score is derived from.
type Agent struct {
	Identity           string    `json:"identity"`
	Name               string    `json:"name"`
	Staked             uint64    `json:"staked"`
	DealsCompleted     uint64    `json:"deals_completed"`
	DealsFailed        uint64    `json:"deals_failed"`
	TotalVolume        uint64    `json:"total_volume"`
	RegisteredAt       time.Time `json:"registered_at"`
	UnstakeRequestedAt time.Time `json:"unstake_requested_at,omitempty"` // zero = no pending request
}

// Registry is the identity table: one profile per caller identity, created
// exactly once and never deleted, plus an append-only registration-order
// index. The map and the index never drift: every insert updates both under
// the same lock.
//
// The registry mutex guards only the map and index structure. Mutation of an
// Agent's fields happens under the engine's per-agent lock.
type Registry struct {
	mu     sync.RWMutex
	agents map[string]*Agent
	order  []string
}

func NewRegistry() *Registry {
	return &Registry{agents: make(map[string]*Agent)}
}

// add validates the profile and inserts it. The caller must already hold the
// per-agent lock for identity.
func (r *Registry) add(identity, name string, now time.Time) (*Agent, error) {
	if n := utf8.RuneCountInString(name); n == 0 || n > maxNameLength {
		return nil, ErrInvalidName
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.agents[identity]; ok {
		return nil, ErrAlreadyRegistered
	}
	a := &Agent{
		Identity:     identity,
		Name:         name,
		RegisteredAt: now,
	}
	r.agents[identity] = a
	r.order = append(r.order, identity)
	return a, nil
}

func (r *Registry) get(identity string) (*Agent, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.agents[identity]
	return a, ok
}

// Exists reports whether the identity is registered.
func (r *Registry) Exists(identity string) bool {
	_, ok := r.get(identity)
	return ok
}

// Identities returns the registered identities in registration order.
func (r *Registry) Identities() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, len(r.order))
	copy(out, r.order)
	return out
}

// Count returns the number of registered agents.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.order)
}
