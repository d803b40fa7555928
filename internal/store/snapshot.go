package store

import (
	"time"

	"github.com/ayo6706/payment-console/internal/domain"
	"github.com/ayo6706/payment-console/internal/models"
	"github.com/shopspring/decimal"
)

// Snapshot is an immutable point-in-time view of the store. Callers must not
// modify the slices it exposes.
type Snapshot struct {
	Version      uint64
	Generation   uint64
	Pending      map[domain.PendingList][]models.Transaction
	Approved     []models.Transaction
	RecentFailed []models.Transaction
	Counters     models.Counters
	Balance      *decimal.Decimal
	UpdatedAt    time.Time
}

func emptySnapshot(generation uint64) *Snapshot {
	pending := make(map[domain.PendingList][]models.Transaction, len(domain.PendingLists))
	for _, l := range domain.PendingLists {
		pending[l] = nil
	}
	return &Snapshot{Generation: generation, Pending: pending}
}

// PendingFor returns the named pending list.
func (s *Snapshot) PendingFor(list domain.PendingList) []models.Transaction {
	return s.Pending[list]
}

// AllPending concatenates the pending lists in domain.PendingLists order.
func (s *Snapshot) AllPending() []models.Transaction {
	var n int
	for _, l := range domain.PendingLists {
		n += len(s.Pending[l])
	}
	out := make([]models.Transaction, 0, n)
	for _, l := range domain.PendingLists {
		out = append(out, s.Pending[l]...)
	}
	return out
}

// PendingCount is the number of pending transactions across all lists.
func (s *Snapshot) PendingCount() int {
	var n int
	for _, l := range domain.PendingLists {
		n += len(s.Pending[l])
	}
	return n
}

func (s *Snapshot) clone() *Snapshot {
	next := *s
	next.Pending = make(map[domain.PendingList][]models.Transaction, len(s.Pending))
	for k, v := range s.Pending {
		next.Pending[k] = v
	}
	return &next
}
