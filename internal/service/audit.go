package service

import (
	"context"

	"github.com/ayo6706/payment-console/internal/models"
)

// AuditWriter persists finished actions. Writes are best effort: a failure is
// logged and never changes the action outcome.
type AuditWriter interface {
	WriteAction(ctx context.Context, entry models.ActionAudit) error
}

// NopAuditWriter discards entries. It is used when no database is configured.
type NopAuditWriter struct{}

func (NopAuditWriter) WriteAction(context.Context, models.ActionAudit) error {
	return nil
}
