package service

import (
	"github.com/ayo6706/payment-console/internal/identity"
	"github.com/ayo6706/payment-console/internal/store"
)

// StateStore is the reconciliation store contract the services write through.
type StateStore interface {
	Snapshot() *store.Snapshot
	Generation() uint64
	Resolver() identity.Resolver
	RunBatch(generation uint64, fn func(b *store.Batch) error) (*store.Snapshot, error)
}
