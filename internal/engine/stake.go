package engine

import "fmt"

// Stake locks amount of the agent's free vault balance as collateral. Staking
// always clears any pending unstake request: topping up restarts the
// cooldown clock from scratch.
func (e *Engine) Stake(identity string, amount uint64) error {
	release := e.locks.acquire(agentKey(identity))
	defer release()

	a, ok := e.registry.get(identity)
	if !ok {
		return ErrNotRegistered
	}
	if amount < e.params.MinStake {
		return ErrBelowMinimumStake
	}
	if err := e.vault.Lock(identity, amount); err != nil {
		return err
	}
	a.Staked += amount
	a.UnstakeRequestedAt = zeroTime

	e.emit(EventStaked, identity, map[string]interface{}{
		"identity": identity,
		"amount":   amount,
		"staked":   a.Staked,
	})
	return nil
}

// RequestUnstake starts (or restarts) the unstake cooldown.
func (e *Engine) RequestUnstake(identity string) error {
	release := e.locks.acquire(agentKey(identity))
	defer release()

	a, ok := e.registry.get(identity)
	if !ok {
		return ErrNotRegistered
	}
	if a.Staked == 0 {
		return ErrNothingStaked
	}
	a.UnstakeRequestedAt = e.now()

	e.emit(EventUnstakeRequested, identity, map[string]interface{}{
		"identity":     identity,
		"staked":       a.Staked,
		"requested_at": a.UnstakeRequestedAt,
		"available_at": a.UnstakeRequestedAt.Add(e.params.UnstakeCooldown),
	})
	return nil
}

// Unstake releases amount of collateral back to the agent's free balance once
// the cooldown has elapsed. Unstaking down to zero clears the pending request.
func (e *Engine) Unstake(identity string, amount uint64) error {
	release := e.locks.acquire(agentKey(identity))
	defer release()

	a, ok := e.registry.get(identity)
	if !ok {
		return ErrNotRegistered
	}
	if amount > a.Staked {
		return ErrInsufficientStake
	}
	if a.UnstakeRequestedAt.IsZero() {
		return ErrNoUnstakeRequested
	}
	if e.now().Before(a.UnstakeRequestedAt.Add(e.params.UnstakeCooldown)) {
		return ErrCooldownNotElapsed
	}

	a.Staked -= amount
	if a.Staked == 0 {
		a.UnstakeRequestedAt = zeroTime
	}
	if err := e.vault.Release(identity, amount); err != nil {
		return fmt.Errorf("unstake release: %w", err)
	}

	e.emit(EventUnstaked, identity, map[string]interface{}{
		"identity": identity,
		"amount":   amount,
		"staked":   a.Staked,
	})
	return nil
}
