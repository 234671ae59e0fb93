package engine

import (
	"fmt"
	"time"
)

// CreateDeal locks amount from the creator into escrow and appends a new
// Active deal. A non-positive expiry duration selects the protocol default.
// This is the only path that creates escrowed funds.
func (e *Engine) CreateDeal(creator, counterparty string, amount uint64, description string, expiry time.Duration) (uint64, error) {
	release := e.locks.acquire(agentKey(creator), agentKey(counterparty))
	defer release()

	if !e.registry.Exists(creator) || !e.registry.Exists(counterparty) {
		return 0, ErrNotRegistered
	}
	if creator == counterparty {
		return 0, ErrSelfDeal
	}
	if amount == 0 {
		return 0, ErrInvalidAmount
	}
	if expiry <= 0 {
		expiry = e.params.DefaultDealExpiry
	}

	if err := e.vault.Lock(creator, amount); err != nil {
		return 0, err
	}

	now := e.now()
	d := &Deal{
		Creator:      creator,
		Counterparty: counterparty,
		Amount:       amount,
		Description:  description,
		Status:       StatusActive,
		CreatedAt:    now,
		ExpiresAt:    now.Add(expiry),
	}
	id := e.deals.append(d)

	e.emit(EventDealCreated, fmt.Sprintf("deal/%d", id), map[string]interface{}{
		"deal_id":      id,
		"creator":      creator,
		"counterparty": counterparty,
		"amount":       amount,
		"expires_at":   d.ExpiresAt,
	})
	return id, nil
}

// ConfirmDeal records the caller's confirmation. Confirming twice has no
// additional effect. When both parties have confirmed, the deal completes
// atomically: escrow is released in full to the counterparty, and both
// parties receive completion and volume credit even though funds move one
// way.
func (e *Engine) ConfirmDeal(id uint64, caller string) error {
	d, ok := e.deals.get(id)
	if !ok {
		return ErrDealNotFound
	}
	release := e.locks.acquire(dealKey(id), agentKey(d.Creator), agentKey(d.Counterparty))
	defer release()

	if d.Status != StatusActive {
		return ErrDealNotActive
	}
	if !d.party(caller) {
		return ErrNotAParty
	}

	if caller == d.Creator {
		d.CreatorConfirmed = true
	} else {
		d.CounterpartyConfirmed = true
	}
	if !d.CreatorConfirmed || !d.CounterpartyConfirmed {
		return nil
	}

	// Both confirmed: finalize all bookkeeping before the fund transfer.
	d.Status = StatusCompleted
	creator, _ := e.registry.get(d.Creator)
	counterparty, _ := e.registry.get(d.Counterparty)
	creator.DealsCompleted++
	counterparty.DealsCompleted++
	creator.TotalVolume += d.Amount
	counterparty.TotalVolume += d.Amount

	if err := e.vault.Release(d.Counterparty, d.Amount); err != nil {
		return fmt.Errorf("completion release: %w", err)
	}

	e.emit(EventDealCompleted, fmt.Sprintf("deal/%d", id), map[string]interface{}{
		"deal_id":                   id,
		"creator":                   d.Creator,
		"counterparty":              d.Counterparty,
		"amount":                    d.Amount,
		"creator_completed":         creator.DealsCompleted,
		"counterparty_completed":    counterparty.DealsCompleted,
		"creator_total_volume":      creator.TotalVolume,
		"counterparty_total_volume": counterparty.TotalVolume,
	})
	return nil
}

// DisputeDeal terminates the deal as Disputed. The full escrow returns to the
// creator; the party that did NOT dispute is slashed SlashPercent of its
// current stake, paid to the disputer as compensation. The protocol does not
// judge fault; it always slashes whichever party stayed silent. A zero stake
// means no transfer, but the dispute proceeds and the failure still counts.
func (e *Engine) DisputeDeal(id uint64, caller string) error {
	d, ok := e.deals.get(id)
	if !ok {
		return ErrDealNotFound
	}
	release := e.locks.acquire(dealKey(id), agentKey(d.Creator), agentKey(d.Counterparty))
	defer release()

	if d.Status != StatusActive {
		return ErrDealNotActive
	}
	if !d.party(caller) {
		return ErrNotAParty
	}

	slashed := d.other(caller)
	slashedAgent, _ := e.registry.get(slashed)
	slash := slashedAgent.Staked * e.params.SlashPercent / 100

	d.Status = StatusDisputed
	slashedAgent.DealsFailed++
	slashedAgent.Staked -= slash

	if err := e.vault.Release(d.Creator, d.Amount); err != nil {
		return fmt.Errorf("dispute escrow return: %w", err)
	}
	if slash > 0 {
		if err := e.vault.Release(caller, slash); err != nil {
			return fmt.Errorf("dispute slash payout: %w", err)
		}
	}

	e.emit(EventDealDisputed, fmt.Sprintf("deal/%d", id), map[string]interface{}{
		"deal_id":      id,
		"disputer":     caller,
		"creator":      d.Creator,
		"counterparty": d.Counterparty,
		"amount":       d.Amount,
	})
	if slash > 0 {
		e.emit(EventSlashed, slashed, map[string]interface{}{
			"deal_id":      id,
			"identity":     slashed,
			"amount":       slash,
			"paid_to":      caller,
			"staked":       slashedAgent.Staked,
			"deals_failed": slashedAgent.DealsFailed,
		})
	}
	return nil
}

// CancelExpiredDeal terminates an expired deal and returns the full escrow to
// the creator. Any identity may call it, not just the parties; caller is
// recorded in the event only. No statistics change: an expired deal counts
// toward neither completion nor failure.
func (e *Engine) CancelExpiredDeal(id uint64, caller string) error {
	d, ok := e.deals.get(id)
	if !ok {
		return ErrDealNotFound
	}
	release := e.locks.acquire(dealKey(id), agentKey(d.Creator), agentKey(d.Counterparty))
	defer release()

	if d.Status != StatusActive {
		return ErrDealNotActive
	}
	if e.now().Before(d.ExpiresAt) {
		return ErrDealNotExpired
	}

	d.Status = StatusExpired
	if err := e.vault.Release(d.Creator, d.Amount); err != nil {
		return fmt.Errorf("expiry escrow return: %w", err)
	}

	e.emit(EventDealExpired, fmt.Sprintf("deal/%d", id), map[string]interface{}{
		"deal_id":      id,
		"caller":       caller,
		"creator":      d.Creator,
		"counterparty": d.Counterparty,
		"amount":       d.Amount,
	})
	return nil
}
