package worker

import (
	"context"
	"encoding/json"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ayo6706/payment-console/internal/domain"
	"github.com/ayo6706/payment-console/internal/identity"
	"github.com/ayo6706/payment-console/internal/models"
	"github.com/ayo6706/payment-console/internal/normalizer"
	"github.com/ayo6706/payment-console/internal/service"
	"github.com/ayo6706/payment-console/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeFetcher struct {
	calls int32
	err   error
	lists map[domain.PendingList][]json.RawMessage
}

func (f *fakeFetcher) Fetch(ctx context.Context) (models.PollPayload, error) {
	atomic.AddInt32(&f.calls, 1)
	if f.err != nil {
		return models.PollPayload{}, f.err
	}
	return models.PollPayload{Lists: f.lists}, nil
}

type fakeSubscription struct {
	payloads []models.PushPayload
}

func (s *fakeSubscription) Run(ctx context.Context, handle func(context.Context, models.PushPayload)) {
	for _, p := range s.payloads {
		handle(ctx, p)
	}
	<-ctx.Done()
}

func newIngestion(t *testing.T) (*service.IngestionService, *store.Store) {
	t.Helper()
	n, err := normalizer.New("")
	require.NoError(t, err)
	st := store.New(identity.NewAnyFieldResolver())
	return service.NewIngestionService(st, n), st
}

func waitDone(t *testing.T, done <-chan struct{}) {
	t.Helper()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("worker did not stop")
	}
}

func TestPollWorkerProcessOnce(t *testing.T) {
	ing, st := newIngestion(t)
	f := &fakeFetcher{lists: map[domain.PendingList][]json.RawMessage{
		domain.PendingBankTopup: {json.RawMessage(`{"id":"TX-1","amount":10}`)},
	}}
	w := NewPollWorker(f, ing, st.Generation())

	report, err := w.ProcessOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, report.Pending[domain.PendingBankTopup])
}

func TestPollWorkerFetchError(t *testing.T) {
	ing, st := newIngestion(t)
	w := NewPollWorker(&fakeFetcher{err: errors.New("502")}, ing, st.Generation())

	_, err := w.ProcessOnce(context.Background())
	require.Error(t, err)
	assert.Zero(t, st.Snapshot().Version)
}

func TestPollWorkerTicksUntilStopped(t *testing.T) {
	ing, st := newIngestion(t)
	f := &fakeFetcher{}
	w := NewPollWorker(f, ing, st.Generation()).WithInterval(5 * time.Millisecond)

	stop := w.Run(context.Background())
	require.Eventually(t, func() bool { return atomic.LoadInt32(&f.calls) >= 3 }, 5*time.Second, 5*time.Millisecond)
	stop()
	stop()
	waitDone(t, w.Done())
}

func TestPushWorkerAppliesPayloads(t *testing.T) {
	ing, st := newIngestion(t)
	sub := &fakeSubscription{payloads: []models.PushPayload{
		{Lists: map[domain.PendingList][]json.RawMessage{
			domain.PendingUPITopup: {json.RawMessage(`{"id":"U-1","amount":5,"upiId":"x@upi"}`)},
		}},
		{Lists: map[domain.PendingList][]json.RawMessage{
			domain.PendingPayout: {json.RawMessage(`{"id":"P-1","amount":7}`)},
		}},
	}}
	w := NewPushWorker(sub, ing, st.Generation())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	stop := w.Run(ctx)
	require.Eventually(t, func() bool { return st.Snapshot().Version == 2 }, 5*time.Second, 5*time.Millisecond)

	snap := st.Snapshot()
	assert.Empty(t, snap.PendingFor(domain.PendingUPITopup), "second payload omits the upi list")
	assert.Len(t, snap.PendingFor(domain.PendingPayout), 1)

	stop()
	waitDone(t, w.Done())
}

func TestPushWorkerStaleGenerationIsDropped(t *testing.T) {
	ing, st := newIngestion(t)
	gen := st.Generation()
	st.Close()

	sub := &fakeSubscription{payloads: []models.PushPayload{{Lists: map[domain.PendingList][]json.RawMessage{
		domain.PendingPayout: {json.RawMessage(`{"id":"P-1","amount":7}`)},
	}}}}
	w := NewPushWorker(sub, ing, gen)
	ctx, cancel := context.WithCancel(context.Background())
	w.Run(ctx)
	cancel()
	waitDone(t, w.Done())
	assert.Zero(t, st.Snapshot().PendingCount())
}
