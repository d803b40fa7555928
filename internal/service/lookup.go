package service

import (
	"github.com/ayo6706/payment-console/internal/identity"
	"github.com/ayo6706/payment-console/internal/models"
	"github.com/ayo6706/payment-console/internal/store"
)

// FindPending returns the pending transaction that ref identifies, matching
// ref against every identity field the resolver knows about.
func FindPending(snap *store.Snapshot, resolver identity.Resolver, ref string) (models.Transaction, bool) {
	probe := models.Transaction{ID: ref}
	if len(resolver.Keys(probe)) == 0 {
		return models.Transaction{}, false
	}
	for _, tx := range snap.AllPending() {
		if resolver.SameEntity(probe, tx) {
			return tx, true
		}
	}
	return models.Transaction{}, false
}
