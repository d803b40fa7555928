package gateway

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/ayo6706/payment-console/internal/domain"
	"github.com/ayo6706/payment-console/internal/models"
)

// Call records one invocation of a MockEffector.
type Call struct {
	Op          string
	Method      domain.Method
	ID          string
	Destination string
	Reason      string
	Evidence    *models.Evidence
}

// MockEffector simulates the remote backend for local runs and tests.
// It waits for a random delay and fails a configurable share of calls.
type MockEffector struct {
	// FailureRate is the probability of failure (0.0 to 1.0). Default: 0.1 (10%)
	FailureRate float64
	// MinDelay and MaxDelay bound the simulated latency.
	MinDelay time.Duration
	MaxDelay time.Duration
	// Err, when set, is returned (wrapped) by every call.
	Err error

	mu    sync.Mutex
	calls []Call
}

// NewMockEffector creates a MockEffector with default settings.
func NewMockEffector() *MockEffector {
	return &MockEffector{
		FailureRate: 0.1,
		MinDelay:    200 * time.Millisecond,
		MaxDelay:    1200 * time.Millisecond,
	}
}

func (m *MockEffector) SettleTopup(ctx context.Context, method domain.Method, id string) error {
	return m.invoke(ctx, Call{Op: "settle_topup", Method: method, ID: id})
}

func (m *MockEffector) SettlePayout(ctx context.Context, id, destinationAccountID string) error {
	return m.invoke(ctx, Call{Op: "settle_payout", Method: domain.MethodBank, ID: id, Destination: destinationAccountID})
}

func (m *MockEffector) RejectTopup(ctx context.Context, method domain.Method, id, reason string, evidence *models.Evidence) error {
	return m.invoke(ctx, Call{Op: "reject_topup", Method: method, ID: id, Reason: reason, Evidence: evidence})
}

func (m *MockEffector) RejectPayout(ctx context.Context, id, reason string, evidence *models.Evidence) error {
	return m.invoke(ctx, Call{Op: "reject_payout", Method: domain.MethodBank, ID: id, Reason: reason, Evidence: evidence})
}

// Calls returns a copy of the recorded invocations.
func (m *MockEffector) Calls() []Call {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Call(nil), m.calls...)
}

func (m *MockEffector) invoke(ctx context.Context, call Call) error {
	m.mu.Lock()
	m.calls = append(m.calls, call)
	m.mu.Unlock()

	if delay := m.delay(); delay > 0 {
		timer := time.NewTimer(delay)
		defer timer.Stop()
		select {
		case <-timer.C:
		case <-ctx.Done():
			return fmt.Errorf("%w: call canceled: %v", ErrEffectorFailure, ctx.Err())
		}
	}

	if m.Err != nil {
		return fmt.Errorf("%w: %v", ErrEffectorFailure, m.Err)
	}
	if m.FailureRate > 0 && rand.Float64() < m.FailureRate {
		return fmt.Errorf("%w: backend temporarily unavailable", ErrEffectorFailure)
	}
	return nil
}

func (m *MockEffector) delay() time.Duration {
	if m.MaxDelay <= m.MinDelay {
		return m.MinDelay
	}
	return m.MinDelay + time.Duration(rand.Int63n(int64(m.MaxDelay-m.MinDelay)))
}
