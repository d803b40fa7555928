package store

import (
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/ayo6706/payment-console/internal/domain"
	"github.com/ayo6706/payment-console/internal/identity"
	"github.com/ayo6706/payment-console/internal/models"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func bankTopup(id string, amount int64) models.Transaction {
	return models.Transaction{
		ID:      id,
		Channel: domain.ChannelTopup,
		Method:  domain.MethodBank,
		Amount:  decimal.NewFromInt(amount),
		Status:  domain.StatusPending,
	}
}

func upiTopup(id string, amount int64) models.Transaction {
	tx := bankTopup(id, amount)
	tx.Method = domain.MethodUPI
	return tx
}

func payout(id string, amount int64) models.Transaction {
	tx := bankTopup(id, amount)
	tx.Channel = domain.ChannelPayout
	return tx
}

func seedPending(t *testing.T, s *Store, list domain.PendingList, txs ...models.Transaction) {
	t.Helper()
	_, err := s.Apply(func(b *Batch) error {
		_, err := b.ReplacePending(list, txs)
		return err
	})
	require.NoError(t, err)
}

func TestReplacePendingWithEmptyBlanksList(t *testing.T) {
	s := New(identity.NewAnyFieldResolver())
	seedPending(t, s, domain.PendingBankTopup, bankTopup("TX-1", 10), bankTopup("TX-2", 20), bankTopup("TX-3", 30))
	require.Len(t, s.Snapshot().PendingFor(domain.PendingBankTopup), 3)

	seedPending(t, s, domain.PendingBankTopup)
	assert.Empty(t, s.Snapshot().PendingFor(domain.PendingBankTopup))
}

func TestReplacePendingDropsApprovedAndDuplicates(t *testing.T) {
	s := New(identity.NewAnyFieldResolver())
	_, err := s.Apply(func(b *Batch) error {
		_, err := b.AddUnique(CollectionApproved, bankTopup("TX-1", 10))
		return err
	})
	require.NoError(t, err)

	var res ReplaceResult
	_, err = s.Apply(func(b *Batch) error {
		var err error
		res, err = b.ReplacePending(domain.PendingBankTopup, []models.Transaction{
			{FundID: "tx-1", Channel: domain.ChannelTopup, Method: domain.MethodBank},
			bankTopup("TX-2", 20),
			{UTRNumber: "UTR-XYZ", ID: "TX-2"},
			bankTopup("TX-3", 30),
		})
		return err
	})
	require.NoError(t, err)

	assert.Equal(t, ReplaceResult{Kept: 2, DroppedApproved: 1, DroppedDuplicate: 1}, res)
	pending := s.Snapshot().PendingFor(domain.PendingBankTopup)
	require.Len(t, pending, 2)
	assert.Equal(t, "TX-2", pending[0].ID)
	assert.Equal(t, "TX-3", pending[1].ID)
}

func TestReplacePendingEvictsFromOtherLists(t *testing.T) {
	s := New(identity.NewAnyFieldResolver())
	seedPending(t, s, domain.PendingUPITopup, upiTopup("TX-1", 10), upiTopup("TX-2", 20))

	_, err := s.Apply(func(b *Batch) error {
		res, err := b.ReplacePending(domain.PendingBankTopup, []models.Transaction{bankTopup("TX-1", 10)})
		assert.Equal(t, 1, res.Evicted)
		return err
	})
	require.NoError(t, err)

	snap := s.Snapshot()
	require.Len(t, snap.PendingFor(domain.PendingUPITopup), 1)
	assert.Equal(t, "TX-2", snap.PendingFor(domain.PendingUPITopup)[0].ID)
	require.Len(t, snap.PendingFor(domain.PendingBankTopup), 1)
}

func TestReplacePendingUnknownList(t *testing.T) {
	s := New(nil)
	_, err := s.Apply(func(b *Batch) error {
		_, err := b.ReplacePending(domain.PendingList("bogus"), nil)
		return err
	})
	require.Error(t, err)
	assert.Equal(t, uint64(0), s.Snapshot().Version)
}

func TestAddUniqueDeduplicatesByIdentity(t *testing.T) {
	s := New(identity.NewAnyFieldResolver())

	a := bankTopup("TX-100", 50)
	b := models.Transaction{FundID: "tx-100", UTRNumber: "UTR-1", Amount: decimal.NewFromInt(50)}

	var added []bool
	_, err := s.Apply(func(batch *Batch) error {
		for _, tx := range []models.Transaction{a, b} {
			ok, err := batch.AddUnique(CollectionApproved, tx)
			if err != nil {
				return err
			}
			added = append(added, ok)
		}
		return nil
	})
	require.NoError(t, err)

	assert.Equal(t, []bool{true, false}, added)
	assert.Len(t, s.Snapshot().Approved, 1)
}

func TestAddUniquePrepends(t *testing.T) {
	s := New(nil)
	_, err := s.Apply(func(b *Batch) error {
		_, _ = b.AddUnique(CollectionApproved, bankTopup("TX-1", 1))
		_, _ = b.AddUnique(CollectionApproved, bankTopup("TX-2", 2))
		_, err := b.AddUnique(Collection("nope"), bankTopup("TX-3", 3))
		assert.Error(t, err)
		return nil
	})
	require.NoError(t, err)

	approved := s.Snapshot().Approved
	require.Len(t, approved, 2)
	assert.Equal(t, "TX-2", approved[0].ID)
	assert.Equal(t, "TX-1", approved[1].ID)
}

func TestAppendFailedIsNotDeduplicated(t *testing.T) {
	s := New(nil)
	_, err := s.Apply(func(b *Batch) error {
		b.AppendFailed(bankTopup("TX-1", 1))
		b.AppendFailed(bankTopup("TX-1", 1))
		return nil
	})
	require.NoError(t, err)
	assert.Len(t, s.Snapshot().RecentFailed, 2)
}

func TestRemoveFromAllPendingIgnoresClaimedChannel(t *testing.T) {
	s := New(nil)
	seedPending(t, s, domain.PendingUPITopup, upiTopup("TX-1", 10))
	seedPending(t, s, domain.PendingPayout, payout("PO-1", 10))

	// Claims to be a bank top-up, but the identity lives in the UPI list.
	claimed := bankTopup("TX-1", 10)
	var removed []models.Transaction
	_, err := s.Apply(func(b *Batch) error {
		removed = b.RemoveFromAllPending(claimed)
		return nil
	})
	require.NoError(t, err)

	require.Len(t, removed, 1)
	snap := s.Snapshot()
	assert.Empty(t, snap.PendingFor(domain.PendingUPITopup))
	assert.Len(t, snap.PendingFor(domain.PendingPayout), 1)
}

func TestRestorePending(t *testing.T) {
	s := New(nil)
	seedPending(t, s, domain.PendingBankTopup, bankTopup("TX-2", 20))

	_, err := s.Apply(func(b *Batch) error {
		assert.True(t, b.RestorePending(bankTopup("TX-1", 10).WithStatus(domain.StatusFailed)))
		assert.False(t, b.RestorePending(bankTopup("TX-2", 20)))
		return nil
	})
	require.NoError(t, err)

	pending := s.Snapshot().PendingFor(domain.PendingBankTopup)
	require.Len(t, pending, 2)
	assert.Equal(t, "TX-1", pending[0].ID)
	assert.Equal(t, domain.StatusPending, pending[0].Status)
}

func TestCountersAndBalanceAreSticky(t *testing.T) {
	s := New(nil)
	upi := decimal.NewFromInt(700)
	balance := decimal.NewFromInt(12345)
	_, err := s.Apply(func(b *Batch) error {
		b.MergeCounters(models.Counters{UPI: &upi})
		b.SetBalance(&balance)
		return nil
	})
	require.NoError(t, err)

	bank := decimal.NewFromInt(300)
	_, err = s.Apply(func(b *Batch) error {
		b.MergeCounters(models.Counters{Bank: &bank})
		b.SetBalance(nil)
		return nil
	})
	require.NoError(t, err)

	snap := s.Snapshot()
	require.NotNil(t, snap.Counters.UPI)
	assert.True(t, snap.Counters.UPI.Equal(upi))
	assert.True(t, snap.Counters.Bank.Equal(bank))
	assert.Nil(t, snap.Counters.Payout)
	require.NotNil(t, snap.Balance)
	assert.True(t, snap.Balance.Equal(balance))
}

func TestFailedBatchIsNotPublished(t *testing.T) {
	s := New(nil)
	seedPending(t, s, domain.PendingBankTopup, bankTopup("TX-1", 10))
	before := s.Snapshot()

	boom := errors.New("boom")
	_, err := s.Apply(func(b *Batch) error {
		b.RemoveFromAllPending(bankTopup("TX-1", 10))
		return boom
	})
	require.ErrorIs(t, err, boom)
	assert.Same(t, before, s.Snapshot())
	assert.Len(t, s.Snapshot().PendingFor(domain.PendingBankTopup), 1)
}

func TestPublishedSnapshotsAreImmutable(t *testing.T) {
	s := New(nil)
	seedPending(t, s, domain.PendingBankTopup, bankTopup("TX-1", 10), bankTopup("TX-2", 20))
	old := s.Snapshot()

	_, err := s.Apply(func(b *Batch) error {
		b.RemoveFromAllPending(bankTopup("TX-1", 10))
		_, err := b.AddUnique(CollectionApproved, bankTopup("TX-1", 10))
		return err
	})
	require.NoError(t, err)

	assert.Len(t, old.PendingFor(domain.PendingBankTopup), 2)
	assert.Empty(t, old.Approved)
	assert.Equal(t, old.Version+1, s.Snapshot().Version)
}

func TestNoopBatchKeepsVersion(t *testing.T) {
	s := New(nil)
	snap, err := s.Apply(func(b *Batch) error {
		b.RemoveFromAllPending(bankTopup("TX-404", 1))
		b.MergeCounters(models.Counters{})
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, uint64(0), snap.Version)
}

func TestGenerationGuard(t *testing.T) {
	s := New(nil)
	gen := s.Generation()

	s.Close()
	assert.True(t, s.Closed())
	assert.NotEqual(t, gen, s.Generation())

	_, err := s.RunBatch(gen, func(b *Batch) error { return nil })
	assert.ErrorIs(t, err, ErrClosed)

	fresh := New(nil)
	_, err = fresh.RunBatch(fresh.Generation()+1, func(b *Batch) error { return nil })
	assert.ErrorIs(t, err, ErrStaleGeneration)
}

func TestGenerationsAreUniqueAcrossStores(t *testing.T) {
	first := New(nil)
	second := New(nil)
	assert.NotEqual(t, first.Generation(), second.Generation())

	first.Close()
	assert.NotEqual(t, first.Generation(), second.Generation())

	third := New(nil)
	assert.NotEqual(t, first.Generation(), third.Generation())
	assert.NotEqual(t, second.Generation(), third.Generation())

	// A token issued by one store is stale everywhere else.
	_, err := third.RunBatch(second.Generation(), func(b *Batch) error { return nil })
	assert.ErrorIs(t, err, ErrStaleGeneration)
}

func TestCommitHookSeesEveryCommit(t *testing.T) {
	var versions []uint64
	s := New(nil, WithCommitHook(func(snap *Snapshot) {
		versions = append(versions, snap.Version)
	}))
	seedPending(t, s, domain.PendingPayout, payout("PO-1", 1))
	seedPending(t, s, domain.PendingPayout)
	assert.Equal(t, []uint64{1, 2}, versions)
}

func TestConcurrentWritersKeepInvariants(t *testing.T) {
	s := New(nil)
	var wg sync.WaitGroup
	for w := 0; w < 8; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < 50; i++ {
				id := fmt.Sprintf("TX-%03d", i)
				_, err := s.Apply(func(b *Batch) error {
					if w%2 == 0 {
						_, err := b.ReplacePending(domain.PendingBankTopup, []models.Transaction{bankTopup(id, 1)})
						return err
					}
					b.RemoveFromAllPending(bankTopup(id, 1))
					_, err := b.AddUnique(CollectionApproved, bankTopup(id, 1))
					return err
				})
				assert.NoError(t, err)
				_ = s.Snapshot().AllPending()
			}
		}(w)
	}
	wg.Wait()

	snap := s.Snapshot()
	assert.Len(t, snap.Approved, 50)
	approved := identity.NewIndex(s.Resolver(), snap.Approved...)
	for _, tx := range snap.AllPending() {
		assert.False(t, approved.Matches(tx), "pending %s is also approved", tx.ID)
	}
}
