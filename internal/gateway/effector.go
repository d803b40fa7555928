// Package gateway is the boundary to the remote services that settle or
// reject transactions.
package gateway

import (
	"context"
	"errors"

	"github.com/ayo6706/payment-console/internal/domain"
	"github.com/ayo6706/payment-console/internal/models"
)

// ErrEffectorFailure wraps every error an effector returns, whether the call
// never reached the remote side or the remote side refused it.
var ErrEffectorFailure = errors.New("effector failure")

// Effector performs settlement and rejection against the remote backend.
type Effector interface {
	// SettleTopup approves a top-up received through method.
	SettleTopup(ctx context.Context, method domain.Method, id string) error
	// SettlePayout approves a payout to the chosen destination account.
	SettlePayout(ctx context.Context, id, destinationAccountID string) error
	// RejectTopup declines a top-up with a reason and supporting evidence.
	RejectTopup(ctx context.Context, method domain.Method, id, reason string, evidence *models.Evidence) error
	// RejectPayout declines a payout with a reason and supporting evidence.
	RejectPayout(ctx context.Context, id, reason string, evidence *models.Evidence) error
}
