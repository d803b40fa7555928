package repository

import (
	"context"
	"fmt"

	"github.com/ayo6706/payment-console/internal/domain"
	"github.com/ayo6706/payment-console/internal/models"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

const schema = `
CREATE TABLE IF NOT EXISTS console_action_audit (
	action_id      TEXT PRIMARY KEY,
	kind           TEXT NOT NULL,
	outcome        TEXT NOT NULL,
	transaction_id TEXT NOT NULL,
	channel        TEXT NOT NULL,
	method         TEXT NOT NULL,
	amount         NUMERIC NOT NULL,
	destination    TEXT,
	reason         TEXT,
	evidence_ref   TEXT,
	error          TEXT,
	actor_id       TEXT,
	restored       BOOLEAN NOT NULL DEFAULT FALSE,
	started_at     TIMESTAMPTZ NOT NULL,
	finished_at    TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS console_action_audit_tx_idx ON console_action_audit (transaction_id, finished_at DESC);
`

// ActionAuditRepository records finished user actions in Postgres.
type ActionAuditRepository struct {
	db *pgxpool.Pool
}

func NewActionAuditRepository(db *pgxpool.Pool) *ActionAuditRepository {
	return &ActionAuditRepository{db: db}
}

// EnsureSchema creates the audit table when it does not exist.
func (r *ActionAuditRepository) EnsureSchema(ctx context.Context) error {
	if _, err := r.db.Exec(ctx, schema); err != nil {
		return fmt.Errorf("failed to ensure audit schema: %w", err)
	}
	return nil
}

func (r *ActionAuditRepository) WriteAction(ctx context.Context, a models.ActionAudit) error {
	query := `
		INSERT INTO console_action_audit (
			action_id, kind, outcome, transaction_id, channel, method, amount,
			destination, reason, evidence_ref, error, actor_id, restored, started_at, finished_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7::text::numeric, $8, $9, $10, $11, $12, $13, $14, $15)
		ON CONFLICT (action_id) DO NOTHING
	`
	_, err := r.db.Exec(ctx, query,
		a.ActionID,
		string(a.Kind),
		string(a.Outcome),
		a.TransactionID,
		string(a.Channel),
		string(a.Method),
		a.Amount.String(),
		nullable(a.Destination),
		nullable(a.Reason),
		nullable(a.EvidenceRef),
		nullable(a.Error),
		nullable(a.ActorID),
		a.Restored,
		a.StartedAt,
		a.FinishedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to write action audit: %w", err)
	}
	return nil
}

// ListByTransaction returns audit entries for a transaction, newest first.
func (r *ActionAuditRepository) ListByTransaction(ctx context.Context, transactionID string, limit int) ([]models.ActionAudit, error) {
	if limit <= 0 {
		limit = 50
	}
	query := `
		SELECT action_id, kind, outcome, transaction_id, channel, method, amount::text,
			COALESCE(destination, ''), COALESCE(reason, ''), COALESCE(evidence_ref, ''),
			COALESCE(error, ''), COALESCE(actor_id, ''), restored, started_at, finished_at
		FROM console_action_audit
		WHERE transaction_id = $1
		ORDER BY finished_at DESC
		LIMIT $2
	`
	rows, err := r.db.Query(ctx, query, transactionID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list action audit: %w", err)
	}
	defer rows.Close()

	var out []models.ActionAudit
	for rows.Next() {
		var (
			a      models.ActionAudit
			kind   string
			status string
			ch     string
			method string
			amount string
		)
		if err := rows.Scan(&a.ActionID, &kind, &status, &a.TransactionID, &ch, &method, &amount,
			&a.Destination, &a.Reason, &a.EvidenceRef, &a.Error, &a.ActorID, &a.Restored, &a.StartedAt, &a.FinishedAt); err != nil {
			return nil, fmt.Errorf("failed to scan action audit: %w", err)
		}
		a.Kind = domain.ActionKind(kind)
		a.Outcome = domain.Status(status)
		a.Channel = domain.Channel(ch)
		a.Method = domain.Method(method)
		a.Amount, err = decimal.NewFromString(amount)
		if err != nil {
			return nil, fmt.Errorf("failed to parse audit amount: %w", err)
		}
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate action audit: %w", err)
	}
	return out, nil
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
