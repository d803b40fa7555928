package models

import (
	"encoding/json"
	"time"

	"github.com/ayo6706/payment-console/internal/domain"
	"github.com/shopspring/decimal"
)

// Transaction is the canonical, normalized view of a top-up or payout.
// Values are immutable once produced by the normalizer; the store replaces
// them wholesale when the lifecycle status changes.
type Transaction struct {
	ID          string          `json:"id,omitempty"`
	FundID      string          `json:"fund_id,omitempty"`
	ExternalID  string          `json:"external_id,omitempty"`
	NestedID    string          `json:"-"`
	Channel     domain.Channel  `json:"channel"`
	Method      domain.Method   `json:"method"`
	Amount      decimal.Decimal `json:"amount"`
	Timestamp   time.Time       `json:"timestamp"`
	AccountNo   string          `json:"account_no,omitempty"`
	BankID      string          `json:"bank_id,omitempty"`
	BankName    string          `json:"bank_name,omitempty"`
	UPIID       string          `json:"upi_id,omitempty"`
	UTRNumber   string          `json:"utr_number,omitempty"`
	HolderName  string          `json:"holder_name,omitempty"`
	WebsiteRef  string          `json:"website_ref,omitempty"`
	EvidenceRef string          `json:"evidence_ref,omitempty"`
	Settled     bool            `json:"settled"`
	Status      domain.Status   `json:"status"`
	Raw         json.RawMessage `json:"raw,omitempty"`
}

// PendingList returns the pending collection this transaction belongs to.
func (t Transaction) PendingList() domain.PendingList {
	return domain.PendingListFor(t.Channel, t.Method)
}

// RemoteID is the identifier effectors operate on: the fund id when known,
// otherwise the source id.
func (t Transaction) RemoteID() string {
	if t.FundID != "" {
		return t.FundID
	}
	if t.ID != "" {
		return t.ID
	}
	return t.ExternalID
}

// WithStatus returns a copy carrying the given lifecycle status.
func (t Transaction) WithStatus(status domain.Status) Transaction {
	t.Status = status
	if status == domain.StatusCompleted {
		t.Settled = true
	}
	return t
}

// Evidence is the proof attached to a rejection: an uploaded file or a
// reference to one that is already stored remotely.
type Evidence struct {
	Ref         string `json:"ref,omitempty"`
	FileName    string `json:"file_name,omitempty"`
	ContentType string `json:"content_type,omitempty"`
	Content     []byte `json:"-"`
}

// Empty reports whether the evidence carries neither a reference nor content.
func (e *Evidence) Empty() bool {
	return e == nil || (e.Ref == "" && len(e.Content) == 0)
}

// Counters are server-side accepted-amount aggregates delivered by the push source.
// A nil field means the source has never supplied that counter.
type Counters struct {
	UPI    *decimal.Decimal `json:"upi,omitempty"`
	Bank   *decimal.Decimal `json:"bank,omitempty"`
	Payout *decimal.Decimal `json:"payout,omitempty"`
}

// Merge overlays the non-nil fields of next onto c.
func (c Counters) Merge(next Counters) Counters {
	if next.UPI != nil {
		c.UPI = next.UPI
	}
	if next.Bank != nil {
		c.Bank = next.Bank
	}
	if next.Payout != nil {
		c.Payout = next.Payout
	}
	return c
}
