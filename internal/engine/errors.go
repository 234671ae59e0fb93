package engine

import "errors"

// Named precondition failures. Every rejected operation leaves all engine
// state unchanged; callers match with errors.Is and decide whether to
// resubmit.
var (
	ErrNotRegistered      = errors.New("engine: agent not registered")
	ErrAlreadyRegistered  = errors.New("engine: agent already registered")
	ErrInvalidName        = errors.New("engine: display name must be 1-32 characters")
	ErrBelowMinimumStake  = errors.New("engine: amount below minimum stake")
	ErrInsufficientStake  = errors.New("engine: amount exceeds staked balance")
	ErrNothingStaked      = errors.New("engine: nothing staked")
	ErrNoUnstakeRequested = errors.New("engine: no unstake requested")
	ErrCooldownNotElapsed = errors.New("engine: unstake cooldown not elapsed")
	ErrDealNotFound       = errors.New("engine: deal not found")
	ErrDealNotActive      = errors.New("engine: deal is not active")
	ErrNotAParty          = errors.New("engine: caller is not a party to the deal")
	ErrSelfDeal           = errors.New("engine: counterparty must differ from creator")
	ErrInvalidAmount      = errors.New("engine: amount must be positive")
	ErrDealNotExpired     = errors.New("engine: deal has not expired")

	// ErrInsufficientFunds is a vault condition, not an engine precondition:
	// the caller's external balance cannot cover the requested lock.
	ErrInsufficientFunds = errors.New("engine: insufficient vault balance")
)
