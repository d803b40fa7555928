package worker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/ayo6706/payment-console/internal/models"
	"github.com/ayo6706/payment-console/internal/observability"
	"github.com/ayo6706/payment-console/internal/service"
	"go.uber.org/zap"
)

// Fetcher returns one full snapshot from the poll source.
type Fetcher interface {
	Fetch(ctx context.Context) (models.PollPayload, error)
}

// PollWorker fetches the pending snapshot on a fixed interval and applies it
// to one session's store.
type PollWorker struct {
	fetcher    Fetcher
	ingestion  *service.IngestionService
	generation uint64
	interval   time.Duration
	stopCh     chan struct{}
	stopOnce   sync.Once
	done       chan struct{}
}

// NewPollWorker creates a worker bound to the store generation it was started for.
func NewPollWorker(fetcher Fetcher, ingestion *service.IngestionService, generation uint64) *PollWorker {
	return &PollWorker{
		fetcher:    fetcher,
		ingestion:  ingestion,
		generation: generation,
		interval:   15 * time.Second,
		stopCh:     make(chan struct{}),
		done:       make(chan struct{}),
	}
}

// WithInterval sets the poll interval for the worker.
func (w *PollWorker) WithInterval(interval time.Duration) *PollWorker {
	if interval > 0 {
		w.interval = interval
	}
	return w
}

// Start polls once immediately, then on every tick until Stop is called or
// the context is canceled.
func (w *PollWorker) Start(ctx context.Context) {
	defer close(w.done)
	zap.L().Info("poll worker starting", zap.Duration("interval", w.interval))

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	w.runOnce(ctx)
	for {
		select {
		case <-ctx.Done():
			zap.L().Info("poll worker context canceled")
			return
		case <-w.stopCh:
			zap.L().Info("poll worker stop signal received")
			return
		case <-ticker.C:
			w.runOnce(ctx)
		}
	}
}

// Stop signals the worker to stop.
func (w *PollWorker) Stop() {
	w.stopOnce.Do(func() {
		close(w.stopCh)
	})
}

// Done is closed once Start has returned.
func (w *PollWorker) Done() <-chan struct{} {
	return w.done
}

// Run starts the worker in a goroutine and returns a stop function.
func (w *PollWorker) Run(ctx context.Context) func() {
	go w.Start(ctx)
	return w.Stop
}

// ProcessOnce fetches and applies a single snapshot.
func (w *PollWorker) ProcessOnce(ctx context.Context) (*service.IngestReport, error) {
	payload, err := w.fetcher.Fetch(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetch poll snapshot: %w", err)
	}
	return w.ingestion.ApplyPoll(ctx, w.generation, payload)
}

func (w *PollWorker) runOnce(ctx context.Context) {
	if _, err := w.ProcessOnce(ctx); err != nil {
		if ctx.Err() != nil {
			return
		}
		// The source is retried on the next tick.
		observability.IncrementWorkerRun("poll", "failed")
		zap.L().Warn("poll run failed", zap.Error(err))
		return
	}
	observability.IncrementWorkerRun("poll", "success")
}

// String returns a string representation of the worker.
func (w *PollWorker) String() string {
	return fmt.Sprintf("PollWorker(interval=%v, generation=%d)", w.interval, w.generation)
}
