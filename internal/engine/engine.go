// Package engine implements the staking / escrow / reputation state machine.
//
// Agents lock collateral, complete bilaterally-confirmed escrow deals, and
// accumulate the statistics a bounded reputation score is derived from. Every
// operation is a single atomic unit: all preconditions are validated first,
// then every effect is applied, or nothing is. Operations on disjoint agents
// and deals are serialized only against themselves.
package engine

import (
	"time"
)

// Event types published on each state change. These are the only mechanism by
// which external collaborators (CLI, dashboard, journal) learn of mutations.
const (
	EventAgentRegistered  = "trustmesh.agent.registered"
	EventStaked           = "trustmesh.stake.deposited"
	EventUnstakeRequested = "trustmesh.stake.unstake_requested"
	EventUnstaked         = "trustmesh.stake.withdrawn"
	EventSlashed          = "trustmesh.stake.slashed"
	EventDealCreated      = "trustmesh.deal.created"
	EventDealCompleted    = "trustmesh.deal.completed"
	EventDealDisputed     = "trustmesh.deal.disputed"
	EventDealExpired      = "trustmesh.deal.expired"
)

// eventSource identifies the engine as the CloudEvents source.
const eventSource = "trustmesh/engine"

// zeroTime marks an absent timestamp (no pending unstake request).
var zeroTime = time.Time{}

// Emitter receives one event per observable state change. The in-process
// events.Bus satisfies this; a nil emitter disables emission.
type Emitter interface {
	Emit(eventType, source, subject string, data map[string]interface{})
}

// Params are the economic constants of the protocol.
type Params struct {
	// MinStake is the smallest accepted stake deposit, in units.
	MinStake uint64
	// UnstakeCooldown is the mandatory wait between requesting and executing
	// an unstake.
	UnstakeCooldown time.Duration
	// DefaultDealExpiry applies when a deal is created without an explicit
	// expiry duration.
	DefaultDealExpiry time.Duration
	// SlashPercent of the non-disputing party's stake is paid to the disputer
	// when a deal is disputed.
	SlashPercent uint64
}

// DefaultParams returns the protocol defaults: 1-unit minimum stake, 24h
// unstake cooldown, 7-day deal expiry, 10% dispute slash.
func DefaultParams() Params {
	return Params{
		MinStake:          1,
		UnstakeCooldown:   24 * time.Hour,
		DefaultDealExpiry: 7 * 24 * time.Hour,
		SlashPercent:      10,
	}
}

// Engine is the operation facade over the registry, the stake ledger, the
// deal store, and the vault. It owns per-entity serialization and event
// emission; external components mutate state only through its methods.
type Engine struct {
	params   Params
	vault    Vault
	emitter  Emitter
	now      func() time.Time
	locks    *lockTable
	registry *Registry
	deals    *DealStore
}

// Option configures an Engine.
type Option func(*Engine)

// WithEmitter attaches the event bus.
func WithEmitter(em Emitter) Option {
	return func(e *Engine) { e.emitter = em }
}

// WithClock overrides the time source. Cooldowns and expiries compare stored
// timestamps against this clock at call time; there are no scheduled events.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		if now != nil {
			e.now = now
		}
	}
}

// New creates an engine over the given vault.
func New(vault Vault, params Params, opts ...Option) *Engine {
	e := &Engine{
		params:   params,
		vault:    vault,
		now:      time.Now,
		locks:    newLockTable(),
		registry: NewRegistry(),
		deals:    NewDealStore(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(e)
		}
	}
	return e
}

// Params returns the engine's economic constants.
func (e *Engine) Params() Params {
	return e.params
}

func (e *Engine) emit(eventType, subject string, data map[string]interface{}) {
	if e.emitter != nil {
		e.emitter.Emit(eventType, eventSource, subject, data)
	}
}

// Register creates the agent profile, exactly once per identity.
func (e *Engine) Register(identity, name string) error {
	release := e.locks.acquire(agentKey(identity))
	defer release()

	a, err := e.registry.add(identity, name, e.now())
	if err != nil {
		return err
	}
	e.emit(EventAgentRegistered, identity, map[string]interface{}{
		"identity":      identity,
		"name":          name,
		"registered_at": a.RegisteredAt,
	})
	return nil
}

// GetAgent returns a snapshot of the agent's profile.
func (e *Engine) GetAgent(identity string) (Agent, bool) {
	release := e.locks.acquire(agentKey(identity))
	defer release()

	a, ok := e.registry.get(identity)
	if !ok {
		return Agent{}, false
	}
	return *a, true
}

// GetDeal returns a snapshot of the deal.
func (e *Engine) GetDeal(id uint64) (Deal, bool) {
	d, ok := e.deals.get(id)
	if !ok {
		return Deal{}, false
	}
	release := e.locks.acquire(dealKey(id))
	defer release()
	return *d, true
}

// AgentCount returns the number of registered agents.
func (e *Engine) AgentCount() int {
	return e.registry.Count()
}

// DealCount returns the number of deals ever created.
func (e *Engine) DealCount() int {
	return e.deals.Count()
}

// Agents returns snapshots of every agent, in registration order.
func (e *Engine) Agents() []Agent {
	ids := e.registry.Identities()
	out := make([]Agent, 0, len(ids))
	for _, id := range ids {
		if a, ok := e.GetAgent(id); ok {
			out = append(out, a)
		}
	}
	return out
}

// VaultHeld returns the total amount in vault custody. It always equals the
// sum of staked balances plus the amounts of all active deals.
func (e *Engine) VaultHeld() uint64 {
	return e.vault.Held()
}

// Conservation returns the vault's held total alongside the ledger
// expectation: the sum of all staked balances plus the amounts of all active
// deals. The two are equal whenever the engine is quiescent.
func (e *Engine) Conservation() (held, expected uint64) {
	held = e.vault.Held()
	for _, a := range e.Agents() {
		expected += a.Staked
	}
	n := uint64(e.deals.Count())
	for id := uint64(1); id <= n; id++ {
		if d, ok := e.GetDeal(id); ok && d.Status == StatusActive {
			expected += d.Amount
		}
	}
	return held, expected
}
