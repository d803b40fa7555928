package service

import (
	"fmt"
	"time"

	"github.com/ayo6706/payment-console/internal/domain"
	"github.com/google/uuid"
)

// Actions are one-shot: pending until the effector answers, then terminal.
// Retrying a failed action is a new action.
var actionTransitions = map[domain.Status]map[domain.Status]struct{}{
	domain.StatusPending: {
		domain.StatusCompleted: {},
		domain.StatusFailed:    {},
	},
	domain.StatusCompleted: {},
	domain.StatusFailed:    {},
}

func canTransition(current, next domain.Status) bool {
	nextStates, ok := actionTransitions[current]
	if !ok {
		return false
	}
	_, ok = nextStates[next]
	return ok
}

type action struct {
	id         uuid.UUID
	kind       domain.ActionKind
	status     domain.Status
	startedAt  time.Time
	finishedAt time.Time
}

func newAction(kind domain.ActionKind, now time.Time) *action {
	return &action{id: uuid.New(), kind: kind, status: domain.StatusPending, startedAt: now}
}

func (a *action) transition(next domain.Status, now time.Time) error {
	if a.status == next {
		return nil
	}
	if !canTransition(a.status, next) {
		return fmt.Errorf("invalid action state transition: %s -> %s", a.status, next)
	}
	a.status = next
	a.finishedAt = now
	return nil
}
