package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ayo6706/payment-console/internal/domain"
	"github.com/ayo6706/payment-console/internal/gateway"
	"github.com/ayo6706/payment-console/internal/idempotency"
	"github.com/ayo6706/payment-console/internal/models"
	"github.com/ayo6706/payment-console/internal/observability"
	"github.com/ayo6706/payment-console/internal/store"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

var (
	ErrMissingDestination = errors.New("payout destination account is required")
	ErrMissingReason      = errors.New("reject reason is required")
	ErrMissingEvidence    = errors.New("reject evidence is required")
	ErrAlreadyInProgress  = errors.New("an action for this transaction is already in progress")
	ErrNoIdentity         = errors.New("transaction has no usable identifier")
	ErrSessionClosed      = errors.New("session closed")
)

const defaultEffectorTimeout = 30 * time.Second

// InFlightGuard claims transaction identity keys for the duration of an action.
type InFlightGuard interface {
	Acquire(ctx context.Context, keys []string) (func(), error)
}

// ApproveRequest asks for a pending transaction to be settled.
type ApproveRequest struct {
	Transaction models.Transaction
	// DestinationAccountID is required for payouts.
	DestinationAccountID string
	ActorID              string
}

// RejectRequest asks for a pending transaction to be declined.
type RejectRequest struct {
	Transaction models.Transaction
	Reason      string
	Evidence    *models.Evidence
	ActorID     string
}

// ActionResult is the outcome of one approve or reject. Status is the action
// outcome; Transaction.Status is where the transaction landed. A successful
// reject has Status completed and a failed transaction.
type ActionResult struct {
	ActionID    uuid.UUID          `json:"action_id"`
	Kind        domain.ActionKind  `json:"kind"`
	Status      domain.Status      `json:"status"`
	Transaction models.Transaction `json:"transaction"`
	Error       string             `json:"error,omitempty"`
	// Restored is set when a failed action put the item back into pending.
	Restored bool `json:"restored"`
	// Discarded is set when the session was torn down while the remote call
	// was in flight; the outcome was not applied to any store.
	Discarded bool `json:"discarded"`

	EffectorErr error `json:"-"`
}

// OK reports whether the remote side accepted the action.
func (r *ActionResult) OK() bool {
	return r.Status == domain.StatusCompleted
}

// Coordinator runs approve and reject actions: it removes the item from
// pending optimistically, calls the effector and records the outcome.
type Coordinator struct {
	store              StateStore
	effector           gateway.Effector
	guard              InFlightGuard
	audit              AuditWriter
	policy             domain.FailurePolicy
	allowNoDestination bool
	timeout            time.Duration
	clock              func() time.Time
}

// CoordinatorOption configures a Coordinator.
type CoordinatorOption func(*Coordinator)

func WithFailurePolicy(p domain.FailurePolicy) CoordinatorOption {
	return func(c *Coordinator) { c.policy = p }
}

func WithGuard(g InFlightGuard) CoordinatorOption {
	return func(c *Coordinator) {
		if g != nil {
			c.guard = g
		}
	}
}

func WithAuditWriter(w AuditWriter) CoordinatorOption {
	return func(c *Coordinator) {
		if w != nil {
			c.audit = w
		}
	}
}

// AllowPayoutWithoutDestination lets payout approvals reach the effector with
// an empty destination instead of failing with ErrMissingDestination.
func AllowPayoutWithoutDestination(allow bool) CoordinatorOption {
	return func(c *Coordinator) { c.allowNoDestination = allow }
}

func WithEffectorTimeout(d time.Duration) CoordinatorOption {
	return func(c *Coordinator) {
		if d > 0 {
			c.timeout = d
		}
	}
}

func WithCoordinatorClock(clock func() time.Time) CoordinatorOption {
	return func(c *Coordinator) {
		if clock != nil {
			c.clock = clock
		}
	}
}

func NewCoordinator(st StateStore, effector gateway.Effector, opts ...CoordinatorOption) *Coordinator {
	c := &Coordinator{
		store:    st,
		effector: effector,
		guard:    idempotency.NewGuard(nil, 0),
		audit:    NopAuditWriter{},
		policy:   domain.FailureRemove,
		timeout:  defaultEffectorTimeout,
		clock:    time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Approve settles req.Transaction. Precondition failures are returned as
// errors before anything changes; effector failures are reported through the
// result with a nil error.
func (c *Coordinator) Approve(ctx context.Context, req ApproveRequest) (*ActionResult, error) {
	tx := req.Transaction
	dest := strings.TrimSpace(req.DestinationAccountID)
	if tx.Channel == domain.ChannelPayout && dest == "" && !c.allowNoDestination {
		return nil, ErrMissingDestination
	}

	audit := models.ActionAudit{Destination: dest, ActorID: req.ActorID}
	return c.run(ctx, domain.ActionApprove, tx, audit, func(ctx context.Context) error {
		if tx.Channel == domain.ChannelPayout {
			return c.effector.SettlePayout(ctx, tx.RemoteID(), dest)
		}
		return c.effector.SettleTopup(ctx, tx.Method, tx.RemoteID())
	})
}

// Reject declines req.Transaction. A reason and evidence are required; the
// transaction always ends up in the recent-failed list.
func (c *Coordinator) Reject(ctx context.Context, req RejectRequest) (*ActionResult, error) {
	tx := req.Transaction
	reason := sanitizeReason(req.Reason)
	if reason == "" {
		return nil, ErrMissingReason
	}
	if req.Evidence.Empty() {
		return nil, ErrMissingEvidence
	}

	audit := models.ActionAudit{Reason: reason, EvidenceRef: req.Evidence.Ref, ActorID: req.ActorID}
	return c.run(ctx, domain.ActionReject, tx, audit, func(ctx context.Context) error {
		if tx.Channel == domain.ChannelPayout {
			return c.effector.RejectPayout(ctx, tx.RemoteID(), reason, req.Evidence)
		}
		return c.effector.RejectTopup(ctx, tx.Method, tx.RemoteID(), reason, req.Evidence)
	})
}

func (c *Coordinator) run(ctx context.Context, kind domain.ActionKind, tx models.Transaction, audit models.ActionAudit, call func(context.Context) error) (*ActionResult, error) {
	keys := c.store.Resolver().Keys(tx)
	if len(keys) == 0 || tx.RemoteID() == "" {
		return nil, ErrNoIdentity
	}

	release, err := c.guard.Acquire(ctx, keys)
	if err != nil {
		if errors.Is(err, idempotency.ErrInProgress) {
			observability.IncrementInFlightRejection()
			return nil, ErrAlreadyInProgress
		}
		return nil, fmt.Errorf("acquire in-flight guard: %w", err)
	}
	defer release()

	act := newAction(kind, c.clock())
	generation := c.store.Generation()

	// Optimistic removal: the item leaves pending before the remote call.
	if _, err := c.store.RunBatch(generation, func(b *store.Batch) error {
		b.RemoveFromAllPending(tx)
		return nil
	}); err != nil {
		if isStale(err) {
			return nil, ErrSessionClosed
		}
		return nil, fmt.Errorf("remove pending transaction: %w", err)
	}

	// The remote call outlives the caller's request; only the timeout bounds it.
	callCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.timeout)
	effErr := call(callCtx)
	cancel()

	outcome := domain.StatusCompleted
	if effErr != nil {
		outcome = domain.StatusFailed
	}
	if err := act.transition(outcome, c.clock()); err != nil {
		return nil, err
	}

	result := &ActionResult{
		ActionID:    act.id,
		Kind:        kind,
		Status:      act.status,
		EffectorErr: effErr,
	}
	if effErr != nil {
		result.Error = effErr.Error()
		zap.L().Warn("action failed at effector",
			zap.String("action_id", act.id.String()),
			zap.String("kind", string(kind)),
			zap.String("tx_id", tx.RemoteID()),
			zap.Error(effErr),
		)
	}

	landed := tx.WithStatus(domain.StatusFailed)
	if kind == domain.ActionApprove && effErr == nil {
		landed = tx.WithStatus(domain.StatusCompleted)
	}
	result.Transaction = landed

	_, err = c.store.RunBatch(generation, func(b *store.Batch) error {
		return c.applyOutcome(b, kind, tx, landed, effErr, result)
	})
	switch {
	case isStale(err):
		result.Discarded = true
		observability.IncrementStaleApply("action")
		zap.L().Debug("dropping action outcome after session teardown",
			zap.String("action_id", act.id.String()),
			zap.String("tx_id", tx.RemoteID()),
		)
	case err != nil:
		return nil, fmt.Errorf("apply action outcome: %w", err)
	}

	observability.IncrementAction(string(kind), string(act.status))
	c.writeAudit(ctx, act, tx, audit, result)
	return result, nil
}

func (c *Coordinator) applyOutcome(b *store.Batch, kind domain.ActionKind, original, landed models.Transaction, effErr error, result *ActionResult) error {
	if effErr != nil && c.policy == domain.FailureRestore {
		b.AppendFailed(landed)
		result.Restored = b.RestorePending(original)
		return nil
	}

	// A snapshot may have re-delivered the item while the call was in flight.
	b.RemoveFromAllPending(original)
	if kind == domain.ActionApprove && effErr == nil {
		_, err := b.AddUnique(store.CollectionApproved, landed)
		return err
	}
	b.AppendFailed(landed)
	return nil
}

func (c *Coordinator) writeAudit(ctx context.Context, act *action, tx models.Transaction, entry models.ActionAudit, result *ActionResult) {
	entry.ActionID = act.id.String()
	entry.Kind = act.kind
	entry.Outcome = act.status
	entry.TransactionID = tx.RemoteID()
	entry.Channel = tx.Channel
	entry.Method = tx.Method
	entry.Amount = tx.Amount
	entry.Error = result.Error
	entry.Restored = result.Restored
	entry.StartedAt = act.startedAt
	entry.FinishedAt = act.finishedAt

	auditCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if err := c.audit.WriteAction(auditCtx, entry); err != nil {
		zap.L().Warn("failed to write action audit", zap.String("action_id", entry.ActionID), zap.Error(err))
	}
}
