// Package session owns one console session: its store, the adapters feeding
// it, and the services acting on it. Closing a session cancels the adapters
// before the store is retired, and anything still in flight is dropped.
package session

import (
	"context"
	"sync"
	"time"

	"github.com/ayo6706/payment-console/internal/aggregation"
	"github.com/ayo6706/payment-console/internal/domain"
	"github.com/ayo6706/payment-console/internal/gateway"
	"github.com/ayo6706/payment-console/internal/identity"
	"github.com/ayo6706/payment-console/internal/normalizer"
	"github.com/ayo6706/payment-console/internal/observability"
	"github.com/ayo6706/payment-console/internal/service"
	"github.com/ayo6706/payment-console/internal/store"
	"github.com/ayo6706/payment-console/internal/worker"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const stopTimeout = 10 * time.Second

// Config wires a session. Fetcher and Subscription are optional; a session
// without either only changes through actions.
type Config struct {
	Fetcher            worker.Fetcher
	PollInterval       time.Duration
	Subscription       worker.Subscription
	Normalizer         *normalizer.Normalizer
	Resolver           identity.Resolver
	Effector           gateway.Effector
	Engine             *aggregation.Engine
	CoordinatorOptions []service.CoordinatorOption
}

// Session is safe for concurrent use.
type Session struct {
	id          uuid.UUID
	startedAt   time.Time
	store       *store.Store
	ingestion   *service.IngestionService
	coordinator *service.Coordinator
	engine      *aggregation.Engine

	cfg       Config
	mu        sync.Mutex
	cancel    context.CancelFunc
	poll      *worker.PollWorker
	push      *worker.PushWorker
	closeOnce sync.Once
}

// New builds a session with an empty store. Call Start to attach the adapters.
func New(cfg Config) *Session {
	if cfg.Engine == nil {
		cfg.Engine = aggregation.NewEngine()
	}
	st := store.New(cfg.Resolver, store.WithCommitHook(publishPendingCounts))
	return &Session{
		id:          uuid.New(),
		startedAt:   time.Now(),
		store:       st,
		ingestion:   service.NewIngestionService(st, cfg.Normalizer),
		coordinator: service.NewCoordinator(st, cfg.Effector, cfg.CoordinatorOptions...),
		engine:      cfg.Engine,
		cfg:         cfg,
	}
}

// Start launches the configured adapters against this session's generation.
func (s *Session) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil || s.store.Closed() {
		return
	}

	ctx, s.cancel = context.WithCancel(ctx)
	gen := s.store.Generation()
	if s.cfg.Fetcher != nil {
		s.poll = worker.NewPollWorker(s.cfg.Fetcher, s.ingestion, gen).WithInterval(s.cfg.PollInterval)
		s.poll.Run(ctx)
	}
	if s.cfg.Subscription != nil {
		s.push = worker.NewPushWorker(s.cfg.Subscription, s.ingestion, gen)
		s.push.Run(ctx)
	}
	zap.L().Info("session started",
		zap.String("session_id", s.id.String()),
		zap.Bool("poll", s.poll != nil),
		zap.Bool("push", s.push != nil),
	)
}

// Close cancels both adapters, waits for them to return, then closes the store.
func (s *Session) Close() {
	s.closeOnce.Do(func() {
		s.mu.Lock()
		cancel, poll, push := s.cancel, s.poll, s.push
		s.mu.Unlock()

		if cancel != nil {
			cancel()
		}
		if poll != nil {
			poll.Stop()
			waitFor(poll.Done(), "poll")
		}
		if push != nil {
			push.Stop()
			waitFor(push.Done(), "push")
		}
		s.store.Close()
		zap.L().Info("session closed", zap.String("session_id", s.id.String()))
	})
}

func waitFor(done <-chan struct{}, name string) {
	select {
	case <-done:
	case <-time.After(stopTimeout):
		// The store is closed regardless; a late apply is rejected by the generation check.
		zap.L().Warn("adapter did not stop in time", zap.String("adapter", name))
	}
}

func (s *Session) ID() uuid.UUID { return s.id }

func (s *Session) StartedAt() time.Time { return s.startedAt }

func (s *Session) Store() *store.Store { return s.store }

func (s *Session) Snapshot() *store.Snapshot { return s.store.Snapshot() }

func (s *Session) Coordinator() *service.Coordinator { return s.coordinator }

func (s *Session) Ingestion() *service.IngestionService { return s.ingestion }

// Dashboard computes the rollups over the latest snapshot.
func (s *Session) Dashboard(days int) *aggregation.Dashboard {
	return s.engine.Dashboard(s.store.Snapshot(), days)
}

// Trend computes one trend series over the latest snapshot.
func (s *Session) Trend(series aggregation.Series, days int) []aggregation.TrendPoint {
	return s.engine.Trend(s.store.Snapshot(), series, days)
}

func publishPendingCounts(snap *store.Snapshot) {
	for _, l := range domain.PendingLists {
		observability.SetPendingCount(string(l), len(snap.PendingFor(l)))
	}
}
