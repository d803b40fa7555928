package worker

import (
	"context"
	"sync"

	"github.com/ayo6706/payment-console/internal/models"
	"github.com/ayo6706/payment-console/internal/observability"
	"github.com/ayo6706/payment-console/internal/service"
	"go.uber.org/zap"
)

// Subscription delivers push payloads until its context ends.
type Subscription interface {
	Run(ctx context.Context, handle func(context.Context, models.PushPayload))
}

// PushWorker applies every payload from a push subscription to one session's store.
type PushWorker struct {
	subscription Subscription
	ingestion    *service.IngestionService
	generation   uint64
	stopCh       chan struct{}
	stopOnce     sync.Once
	done         chan struct{}
}

// NewPushWorker creates a worker bound to the store generation it was started for.
func NewPushWorker(sub Subscription, ingestion *service.IngestionService, generation uint64) *PushWorker {
	return &PushWorker{
		subscription: sub,
		ingestion:    ingestion,
		generation:   generation,
		stopCh:       make(chan struct{}),
		done:         make(chan struct{}),
	}
}

// Start blocks until Stop is called or the context is canceled.
func (w *PushWorker) Start(ctx context.Context) {
	defer close(w.done)
	zap.L().Info("push worker starting")

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		select {
		case <-w.stopCh:
			zap.L().Info("push worker stop signal received")
			cancel()
		case <-ctx.Done():
		}
	}()

	w.subscription.Run(ctx, w.apply)
	zap.L().Info("push worker stopped")
}

// Stop stops the running subscription.
func (w *PushWorker) Stop() {
	w.stopOnce.Do(func() {
		close(w.stopCh)
	})
}

// Done is closed once Start has returned.
func (w *PushWorker) Done() <-chan struct{} {
	return w.done
}

// Run starts the worker in a goroutine and returns a stop function.
func (w *PushWorker) Run(ctx context.Context) func() {
	go w.Start(ctx)
	return w.Stop
}

func (w *PushWorker) apply(ctx context.Context, payload models.PushPayload) {
	if _, err := w.ingestion.ApplyPush(ctx, w.generation, payload); err != nil {
		if ctx.Err() != nil {
			return
		}
		observability.IncrementWorkerRun("push", "failed")
		zap.L().Error("push apply failed", zap.Error(err))
		return
	}
	observability.IncrementWorkerRun("push", "success")
}
