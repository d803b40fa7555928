package service

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/ayo6706/payment-console/internal/domain"
	"github.com/ayo6706/payment-console/internal/models"
	"github.com/ayo6706/payment-console/internal/normalizer"
	"github.com/ayo6706/payment-console/internal/observability"
	"github.com/ayo6706/payment-console/internal/store"
	"go.uber.org/zap"
)

// IngestReport summarises one applied batch.
type IngestReport struct {
	Source           normalizer.Source
	Version          uint64
	Pending          map[domain.PendingList]int
	Settled          int
	DroppedApproved  int
	DroppedDuplicate int
	Evicted          int
	// Unidentified counts kept records with no usable identity key. They can
	// be displayed but never deduplicated or acted on.
	Unidentified int
	Skipped          []*normalizer.SkipError
	// Discarded is set when the batch arrived after its session was torn down.
	Discarded bool
}

// IngestionService normalizes delivered batches and applies each one to the
// store as a single atomic write.
type IngestionService struct {
	store      StateStore
	normalizer *normalizer.Normalizer
}

func NewIngestionService(st StateStore, n *normalizer.Normalizer) *IngestionService {
	return &IngestionService{store: st, normalizer: n}
}

// ApplyPoll applies a full poll snapshot. Records flagged as settled go
// straight to approved; the rest replace the pending lists.
func (s *IngestionService) ApplyPoll(ctx context.Context, generation uint64, payload models.PollPayload) (*IngestReport, error) {
	return s.apply(ctx, generation, normalizer.SourcePoll, payload.Lists, true, func(b *store.Batch) {})
}

// ApplyPush applies a server-sent update. Pending lists are replaced, absent
// ones with an empty list; counters and balance only change when present.
func (s *IngestionService) ApplyPush(ctx context.Context, generation uint64, payload models.PushPayload) (*IngestReport, error) {
	return s.apply(ctx, generation, normalizer.SourcePush, payload.Lists, false, func(b *store.Batch) {
		b.MergeCounters(payload.Counters)
		b.SetBalance(payload.Balance)
	})
}

func (s *IngestionService) apply(
	ctx context.Context,
	generation uint64,
	source normalizer.Source,
	lists map[domain.PendingList][]json.RawMessage,
	settleFlagged bool,
	extra func(b *store.Batch),
) (*IngestReport, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	report := &IngestReport{Source: source, Pending: make(map[domain.PendingList]int, len(domain.PendingLists))}
	resolver := s.store.Resolver()
	snap, err := s.store.RunBatch(generation, func(b *store.Batch) error {
		grouped := make(map[domain.PendingList][]models.Transaction, len(domain.PendingLists))
		for _, list := range domain.PendingLists {
			res := s.normalizer.NormalizeBatch(source, list, lists[list])
			report.Skipped = append(report.Skipped, res.Skipped...)
			for _, tx := range res.Transactions {
				if len(resolver.Keys(tx)) == 0 {
					report.Unidentified++
					zap.L().Warn("record has no usable identifier; it cannot be deduplicated or acted on",
						zap.String("source", string(source)),
						zap.String("list", string(tx.PendingList())),
						zap.String("id", tx.ID),
						zap.String("fund_id", tx.FundID),
					)
				}
				if settleFlagged && tx.Settled {
					b.RemoveFromAllPending(tx)
					if added, err := b.AddUnique(store.CollectionApproved, tx.WithStatus(domain.StatusCompleted)); err != nil {
						return err
					} else if added {
						report.Settled++
					}
					continue
				}
				// The record's own channel decides its list, not the key it arrived under.
				target := tx.PendingList()
				grouped[target] = append(grouped[target], tx)
			}
		}

		for _, list := range domain.PendingLists {
			res, err := b.ReplacePending(list, grouped[list])
			if err != nil {
				return fmt.Errorf("replace %s: %w", list, err)
			}
			report.DroppedApproved += res.DroppedApproved
			report.DroppedDuplicate += res.DroppedDuplicate
			report.Evicted += res.Evicted
		}
		extra(b)
		return nil
	})

	observability.AddNormalizationSkips(string(source), len(report.Skipped))
	observability.AddUnidentifiedRecords(string(source), report.Unidentified)
	for _, skip := range report.Skipped {
		zap.L().Warn("skipped malformed record",
			zap.String("source", string(source)),
			zap.Int("index", skip.Index),
			zap.String("reason", skip.Reason),
		)
	}

	if err != nil {
		if isStale(err) {
			report.Discarded = true
			observability.IncrementIngestBatch(string(source), "discarded")
			observability.IncrementStaleApply(string(source))
			zap.L().Debug("dropping batch after session teardown", zap.String("source", string(source)))
			return report, nil
		}
		observability.IncrementIngestBatch(string(source), "failed")
		return nil, fmt.Errorf("apply %s batch: %w", source, err)
	}

	report.Version = snap.Version
	for _, list := range domain.PendingLists {
		report.Pending[list] = len(snap.PendingFor(list))
	}
	observability.IncrementIngestBatch(string(source), "applied")
	zap.L().Debug("applied ingestion batch",
		zap.String("source", string(source)),
		zap.Uint64("version", snap.Version),
		zap.Int("settled", report.Settled),
		zap.Int("skipped", len(report.Skipped)),
		zap.Int("evicted", report.Evicted),
	)
	return report, nil
}
