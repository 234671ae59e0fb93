package engine

import (
	"fmt"
	"sync"
)

// Vault is the custodial holder of the fungible asset. Lock pulls funds from
// an account's free balance into custody; Release pays custody funds out to
// an account. The engine guarantees that the held total always equals the sum
// of all staked balances plus the amounts of all active deals.
type Vault interface {
	Lock(from string, amount uint64) error
	Release(to string, amount uint64) error
	Held() uint64
	BalanceOf(account string) uint64
}

// MemoryVault is the in-process Vault used by the daemon and the tests.
// Free balances are funded through Credit (the dev faucet); in a deployment
// backed by a real settlement layer this type is replaced wholesale.
type MemoryVault struct {
	mu       sync.Mutex
	balances map[string]uint64
	held     uint64
}

func NewMemoryVault() *MemoryVault {
	return &MemoryVault{balances: make(map[string]uint64)}
}

// Credit funds an account's free balance.
func (v *MemoryVault) Credit(account string, amount uint64) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.balances[account] += amount
}

// Lock moves amount from the account's free balance into custody.
func (v *MemoryVault) Lock(from string, amount uint64) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.balances[from] < amount {
		return fmt.Errorf("%w: account %s has %d, need %d", ErrInsufficientFunds, from, v.balances[from], amount)
	}
	v.balances[from] -= amount
	v.held += amount
	return nil
}

// Release pays amount out of custody to the account's free balance.
// A shortfall in custody indicates corrupted bookkeeping upstream.
func (v *MemoryVault) Release(to string, amount uint64) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.held < amount {
		return fmt.Errorf("vault: release of %d exceeds held total %d", amount, v.held)
	}
	v.held -= amount
	v.balances[to] += amount
	return nil
}

// Held returns the total amount in custody.
func (v *MemoryVault) Held() uint64 {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.held
}

// BalanceOf returns the account's free (non-custodial) balance.
func (v *MemoryVault) BalanceOf(account string) uint64 {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.balances[account]
}
