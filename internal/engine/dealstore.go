package engine

import (
	"sync"
	"time"
)

// DealStatus is the lifecycle state of a deal. Once a deal leaves Active it
// is terminal and never changes again.
type DealStatus int

const (
	StatusActive DealStatus = iota
	StatusCompleted
	StatusDisputed
	StatusExpired
)

func (s DealStatus) String() string {
	switch s {
	case StatusActive:
		return "active"
	case StatusCompleted:
		return "completed"
	case StatusDisputed:
		return "disputed"
	case StatusExpired:
		return "expired"
	default:
		return "unknown"
	}
}

// Deal is a two-party escrow agreement. Creator and counterparty are fixed at
// creation; amount stays in vault custody for exactly as long as the status
// is Active.
type Deal struct {
	ID                    uint64     `json:"id"`
	Creator               string     `json:"creator"`
	Counterparty          string     `json:"counterparty"`
	Amount                uint64     `json:"amount"`
	Description           string     `json:"description"`
	Status                DealStatus `json:"status"`
	CreatedAt             time.Time  `json:"created_at"`
	ExpiresAt             time.Time  `json:"expires_at"`
	CreatorConfirmed      bool       `json:"creator_confirmed"`
	CounterpartyConfirmed bool       `json:"counterparty_confirmed"`
}

// party reports whether identity is one of the two deal parties.
func (d *Deal) party(identity string) bool {
	return identity == d.Creator || identity == d.Counterparty
}

// other returns the deal party that is not identity.
func (d *Deal) other(identity string) string {
	if identity == d.Creator {
		return d.Counterparty
	}
	return d.Creator
}

// DealStore holds every deal ever created, in id order. Deals are never
// removed; terminal deals stay as append-only history. The store mutex guards
// the slice structure only; field mutation happens under the engine's
// per-deal lock.
type DealStore struct {
	mu    sync.RWMutex
	deals []*Deal
}

func NewDealStore() *DealStore {
	return &DealStore{}
}

// append assigns the next sequential id (starting at 1) and stores the deal.
func (s *DealStore) append(d *Deal) uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	d.ID = uint64(len(s.deals)) + 1
	s.deals = append(s.deals, d)
	return d.ID
}

func (s *DealStore) get(id uint64) (*Deal, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if id == 0 || id > uint64(len(s.deals)) {
		return nil, false
	}
	return s.deals[id-1], true
}

// Count returns the number of deals ever created.
func (s *DealStore) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.deals)
}
