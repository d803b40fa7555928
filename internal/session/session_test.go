package session

import (
	"context"
	"encoding/json"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ayo6706/payment-console/internal/aggregation"
	"github.com/ayo6706/payment-console/internal/domain"
	"github.com/ayo6706/payment-console/internal/gateway"
	"github.com/ayo6706/payment-console/internal/identity"
	"github.com/ayo6706/payment-console/internal/models"
	"github.com/ayo6706/payment-console/internal/normalizer"
	"github.com/ayo6706/payment-console/internal/service"
	"github.com/ayo6706/payment-console/internal/store"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type staticFetcher struct {
	calls int32
}

func (f *staticFetcher) Fetch(ctx context.Context) (models.PollPayload, error) {
	atomic.AddInt32(&f.calls, 1)
	return models.PollPayload{Lists: map[domain.PendingList][]json.RawMessage{
		domain.PendingBankTopup: {json.RawMessage(`{"id":"TX-100","amount":5000,"accountNo":"ACC-1"}`)},
	}}, nil
}

// lateSubscription holds one payload until it is cancelled and then hands it
// over anyway, like a response that resolves during teardown.
type lateSubscription struct {
	started chan struct{}
}

func (l *lateSubscription) Run(ctx context.Context, handle func(context.Context, models.PushPayload)) {
	close(l.started)
	<-ctx.Done()
	handle(ctx, models.PushPayload{Lists: map[domain.PendingList][]json.RawMessage{
		domain.PendingPayout: {json.RawMessage(`{"id":"PO-1","amount":1}`)},
	}})
}

func testConfig(t *testing.T) Config {
	t.Helper()
	n, err := normalizer.New("")
	require.NoError(t, err)
	return Config{
		Normalizer:   n,
		Resolver:     identity.NewAnyFieldResolver(),
		Effector:     &gateway.MockEffector{},
		PollInterval: time.Hour,
	}
}

func TestSessionPollsAndActs(t *testing.T) {
	cfg := testConfig(t)
	cfg.Fetcher = &staticFetcher{}
	s := New(cfg)
	s.Start(context.Background())
	defer s.Close()

	require.Eventually(t, func() bool { return s.Snapshot().PendingCount() == 1 }, 5*time.Second, 5*time.Millisecond)

	tx, ok := service.FindPending(s.Snapshot(), s.Store().Resolver(), "TX-100")
	require.True(t, ok)
	res, err := s.Coordinator().Approve(context.Background(), service.ApproveRequest{Transaction: tx})
	require.NoError(t, err)
	assert.True(t, res.OK())

	d := s.Dashboard(7)
	assert.True(t, d.Totals.Topup.Equal(tx.Amount))
	assert.Zero(t, d.PendingCounts[domain.PendingBankTopup])
}

func TestSessionCloseDropsLateResults(t *testing.T) {
	cfg := testConfig(t)
	sub := &lateSubscription{started: make(chan struct{})}
	cfg.Subscription = sub
	s := New(cfg)
	s.Start(context.Background())
	<-sub.started

	s.Close()
	assert.True(t, s.Store().Closed())
	assert.Zero(t, s.Snapshot().PendingCount())
	assert.Zero(t, s.Snapshot().Version)
}

func TestSessionCloseIsIdempotent(t *testing.T) {
	s := New(testConfig(t))
	s.Start(context.Background())
	s.Close()
	s.Close()
	assert.True(t, s.Store().Closed())

	// Starting a closed session is a no-op.
	s.Start(context.Background())
}

func TestManagerRestart(t *testing.T) {
	cfg := testConfig(t)
	cfg.Fetcher = &staticFetcher{}
	m := NewManager(context.Background(), func() *Session { return New(cfg) })
	defer m.Close()

	first := m.Current()
	require.Eventually(t, func() bool { return first.Snapshot().PendingCount() == 1 }, 5*time.Second, 5*time.Millisecond)

	second := m.Restart()
	assert.NotEqual(t, first.ID(), second.ID())
	assert.True(t, first.Store().Closed())
	assert.Same(t, second, m.Current())
	require.Eventually(t, func() bool { return second.Snapshot().PendingCount() == 1 }, 5*time.Second, 5*time.Millisecond)
}

func TestManagerRestartDoesNotServeCachedDashboard(t *testing.T) {
	cfg := testConfig(t)
	cfg.Engine = aggregation.NewEngine(aggregation.WithCacheTTL(time.Hour))
	m := NewManager(context.Background(), func() *Session { return New(cfg) })
	defer m.Close()

	first := m.Current()
	_, err := first.Ingestion().ApplyPush(context.Background(), first.Store().Generation(), models.PushPayload{
		Lists: map[domain.PendingList][]json.RawMessage{
			domain.PendingBankTopup: {json.RawMessage(`{"id":"TX-1001","amount":5000,"accountNo":"ACC-1"}`)},
		},
	})
	require.NoError(t, err)
	tx, ok := service.FindPending(first.Snapshot(), first.Store().Resolver(), "TX-1001")
	require.True(t, ok)
	res, err := first.Coordinator().Approve(context.Background(), service.ApproveRequest{Transaction: tx})
	require.NoError(t, err)
	require.True(t, res.OK())

	before := first.Dashboard(7)
	require.True(t, before.Totals.Topup.Equal(decimal.NewFromInt(5000)))

	second := m.Restart()
	// Bring the new store to the version the old dashboard was cached at.
	for i := int64(1); second.Snapshot().Version < before.Version; i++ {
		balance := decimal.NewFromInt(i)
		_, err := second.Store().Apply(func(b *store.Batch) error {
			b.SetBalance(&balance)
			return nil
		})
		require.NoError(t, err)
	}
	require.Equal(t, before.Version, second.Snapshot().Version)

	after := second.Dashboard(7)
	assert.True(t, after.Totals.Topup.IsZero())
	assert.Empty(t, second.Snapshot().Approved)
	assert.NotSame(t, before, after)
}
