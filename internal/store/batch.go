package store

import (
	"fmt"

	"github.com/ayo6706/payment-console/internal/domain"
	"github.com/ayo6706/payment-console/internal/identity"
	"github.com/ayo6706/payment-console/internal/models"
	"github.com/shopspring/decimal"
)

// Collection names an accumulating list.
type Collection string

const (
	CollectionApproved     Collection = "approved"
	CollectionRecentFailed Collection = "recent_failed"
)

// Batch is the write handle passed to RunBatch. Every operation replaces the
// slices it touches instead of mutating them, so published snapshots stay intact.
type Batch struct {
	draft    *Snapshot
	resolver identity.Resolver
	dirty    bool
}

// ReplaceResult reports what ReplacePending kept and dropped.
type ReplaceResult struct {
	Kept             int
	DroppedApproved  int
	DroppedDuplicate int
	Evicted          int
}

// ReplacePending swaps the named pending list for txs. Entries whose identity
// is already approved are dropped, as are repeated identities within txs.
// Matching entries in the other pending lists are evicted: the newest
// snapshot decides which channel an identity belongs to.
func (b *Batch) ReplacePending(list domain.PendingList, txs []models.Transaction) (ReplaceResult, error) {
	if !list.Valid() {
		return ReplaceResult{}, fmt.Errorf("unknown pending list %q", list)
	}

	var res ReplaceResult
	approved := identity.NewIndex(b.resolver, b.draft.Approved...)
	seen := identity.NewIndex(b.resolver)
	next := make([]models.Transaction, 0, len(txs))
	for _, tx := range txs {
		keys := b.resolver.Keys(tx)
		if approved.MatchesKeys(keys) {
			res.DroppedApproved++
			continue
		}
		if seen.MatchesKeys(keys) {
			res.DroppedDuplicate++
			continue
		}
		seen.Add(tx)
		tx.Status = domain.StatusPending
		next = append(next, tx)
	}

	for _, other := range domain.PendingLists {
		if other == list {
			continue
		}
		kept, removed := b.without(b.draft.Pending[other], seen)
		if len(removed) > 0 {
			b.draft.Pending[other] = kept
			res.Evicted += len(removed)
		}
	}

	res.Kept = len(next)
	if len(next) == 0 {
		next = nil
	}
	b.draft.Pending[list] = next
	b.dirty = true
	return res, nil
}

// AddUnique puts tx at the front of the collection unless an entry with the
// same identity is already there. It reports whether tx was added.
func (b *Batch) AddUnique(c Collection, tx models.Transaction) (bool, error) {
	list, err := b.collection(c)
	if err != nil {
		return false, err
	}
	if identity.NewIndex(b.resolver, *list...).Matches(tx) {
		return false, nil
	}
	b.prepend(list, tx)
	return true, nil
}

// AppendFailed records tx in the recent-failed audit list without any
// uniqueness check.
func (b *Batch) AppendFailed(tx models.Transaction) {
	b.prepend(&b.draft.RecentFailed, tx)
}

// RemoveFromAllPending removes every pending entry matching tx's identity,
// whichever list it sits in, and returns the removed entries.
func (b *Batch) RemoveFromAllPending(tx models.Transaction) []models.Transaction {
	target := identity.NewIndex(b.resolver, tx)
	if target.Len() == 0 {
		return nil
	}
	var removed []models.Transaction
	for _, l := range domain.PendingLists {
		kept, gone := b.without(b.draft.Pending[l], target)
		if len(gone) == 0 {
			continue
		}
		b.draft.Pending[l] = kept
		removed = append(removed, gone...)
	}
	if len(removed) > 0 {
		b.dirty = true
	}
	return removed
}

// RestorePending puts tx back at the front of its pending list unless the
// identity is already pending or approved. It reports whether tx was restored.
func (b *Batch) RestorePending(tx models.Transaction) bool {
	idx := identity.NewIndex(b.resolver, b.draft.Approved...)
	for _, l := range domain.PendingLists {
		for _, p := range b.draft.Pending[l] {
			idx.Add(p)
		}
	}
	if idx.Matches(tx) {
		return false
	}
	list := tx.PendingList()
	tx.Status = domain.StatusPending
	next := make([]models.Transaction, 0, len(b.draft.Pending[list])+1)
	next = append(next, tx)
	next = append(next, b.draft.Pending[list]...)
	b.draft.Pending[list] = next
	b.dirty = true
	return true
}

// MergeCounters overlays the supplied counters; absent counters are kept.
func (b *Batch) MergeCounters(c models.Counters) {
	if c.UPI == nil && c.Bank == nil && c.Payout == nil {
		return
	}
	b.draft.Counters = b.draft.Counters.Merge(c)
	b.dirty = true
}

// SetBalance replaces the balance figure when one is supplied.
func (b *Batch) SetBalance(balance *decimal.Decimal) {
	if balance == nil {
		return
	}
	v := *balance
	b.draft.Balance = &v
	b.dirty = true
}

// IsPending reports whether any pending list holds tx's identity.
func (b *Batch) IsPending(tx models.Transaction) bool {
	idx := identity.NewIndex(b.resolver, tx)
	for _, l := range domain.PendingLists {
		for _, p := range b.draft.Pending[l] {
			if idx.Matches(p) {
				return true
			}
		}
	}
	return false
}

// View exposes the draft state for reads inside the batch.
func (b *Batch) View() *Snapshot {
	return b.draft
}

func (b *Batch) collection(c Collection) (*[]models.Transaction, error) {
	switch c {
	case CollectionApproved:
		return &b.draft.Approved, nil
	case CollectionRecentFailed:
		return &b.draft.RecentFailed, nil
	}
	return nil, fmt.Errorf("unknown collection %q", c)
}

func (b *Batch) prepend(list *[]models.Transaction, tx models.Transaction) {
	next := make([]models.Transaction, 0, len(*list)+1)
	next = append(next, tx)
	next = append(next, (*list)...)
	*list = next
	b.dirty = true
}

func (b *Batch) without(list []models.Transaction, idx *identity.Index) (kept, removed []models.Transaction) {
	for _, tx := range list {
		if idx.Matches(tx) {
			removed = append(removed, tx)
			continue
		}
		kept = append(kept, tx)
	}
	if len(removed) == 0 {
		return list, nil
	}
	return kept, removed
}
