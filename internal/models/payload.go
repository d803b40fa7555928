package models

import (
	"encoding/json"
	"time"

	"github.com/ayo6706/payment-console/internal/domain"
	"github.com/shopspring/decimal"
)

// PollPayload is one full snapshot fetched by the poll adapter. A list with
// no entry in Lists is delivered as empty.
type PollPayload struct {
	Lists     map[domain.PendingList][]json.RawMessage
	FetchedAt time.Time
}

// PushPayload is one server-sent update. Pending lists are authoritative
// snapshots and an absent list means empty; nil counters and balance mean
// "unchanged".
type PushPayload struct {
	Lists      map[domain.PendingList][]json.RawMessage
	Counters   Counters
	Balance    *decimal.Decimal
	ReceivedAt time.Time
}

// ActionAudit is the durable record of one finished user action.
type ActionAudit struct {
	ActionID      string            `json:"action_id"`
	Kind          domain.ActionKind `json:"kind"`
	Outcome       domain.Status     `json:"outcome"`
	TransactionID string            `json:"transaction_id"`
	Channel       domain.Channel    `json:"channel"`
	Method        domain.Method     `json:"method"`
	Amount        decimal.Decimal   `json:"amount"`
	Destination   string            `json:"destination,omitempty"`
	Reason        string            `json:"reason,omitempty"`
	EvidenceRef   string            `json:"evidence_ref,omitempty"`
	Error         string            `json:"error,omitempty"`
	ActorID       string            `json:"actor_id,omitempty"`
	Restored      bool              `json:"restored"`
	StartedAt     time.Time         `json:"started_at"`
	FinishedAt    time.Time         `json:"finished_at"`
}
