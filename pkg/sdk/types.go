package sdk

import "time"

// Agent is the gateway's representation of an agent profile.
type Agent struct {
	Identity           string    `json:"identity"`
	Name               string    `json:"name"`
	Staked             uint64    `json:"staked"`
	DealsCompleted     uint64    `json:"deals_completed"`
	DealsFailed        uint64    `json:"deals_failed"`
	TotalVolume        uint64    `json:"total_volume"`
	RegisteredAt       time.Time `json:"registered_at"`
	UnstakeRequestedAt time.Time `json:"unstake_requested_at,omitempty"`
	Reputation         int       `json:"reputation"`
}

// Deal is the gateway's representation of an escrow deal.
type Deal struct {
	ID                    uint64    `json:"id"`
	Creator               string    `json:"creator"`
	Counterparty          string    `json:"counterparty"`
	Amount                uint64    `json:"amount"`
	Description           string    `json:"description"`
	Status                int       `json:"status"`
	CreatedAt             time.Time `json:"created_at"`
	ExpiresAt             time.Time `json:"expires_at"`
	CreatorConfirmed      bool      `json:"creator_confirmed"`
	CounterpartyConfirmed bool      `json:"counterparty_confirmed"`
}

// StatusString renders the deal lifecycle state.
func (d Deal) StatusString() string {
	switch d.Status {
	case 0:
		return "active"
	case 1:
		return "completed"
	case 2:
		return "disputed"
	case 3:
		return "expired"
	default:
		return "unknown"
	}
}

// Stats is the engine-wide summary served by /api/stats.
type Stats struct {
	Agents         int    `json:"agents"`
	Deals          int    `json:"deals"`
	VaultHeld      uint64 `json:"vault_held"`
	LedgerExpected uint64 `json:"ledger_expected"`
	Conserved      bool   `json:"conserved"`
}

// APIError is a named engine failure surfaced by the gateway. Code is stable;
// Message is human-readable.
type APIError struct {
	Code    string `json:"code"`
	Message string `json:"error"`
	Status  int    `json:"-"`
}

func (e *APIError) Error() string {
	return e.Code + ": " + e.Message
}
