package domain

import (
	"fmt"
	"strings"
)

// Channel is the transaction category as seen by the console.
type Channel string

const (
	ChannelTopup  Channel = "topup"
	ChannelPayout Channel = "payout"
)

// Method is the settlement mechanism within a channel.
type Method string

const (
	MethodUPI  Method = "upi"
	MethodBank Method = "bank"
)

// Status is the local lifecycle flag of a transaction. It never comes from a source.
type Status string

const (
	StatusPending   Status = "pending"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

// PendingList names one of the three disjoint pending collections.
type PendingList string

const (
	PendingUPITopup  PendingList = "upi_topup"
	PendingBankTopup PendingList = "bank_topup"
	PendingPayout    PendingList = "payout"
)

// PendingLists is the fixed iteration order used by the store and aggregation.
var PendingLists = []PendingList{PendingUPITopup, PendingBankTopup, PendingPayout}

// PendingListFor maps a channel/method pair onto its pending collection.
// Payouts share a single list regardless of destination method.
func PendingListFor(channel Channel, method Method) PendingList {
	if channel == ChannelPayout {
		return PendingPayout
	}
	if method == MethodUPI {
		return PendingUPITopup
	}
	return PendingBankTopup
}

// Channel returns the channel served by the list.
func (l PendingList) Channel() Channel {
	if l == PendingPayout {
		return ChannelPayout
	}
	return ChannelTopup
}

// Method returns the method served by the list.
func (l PendingList) Method() Method {
	if l == PendingUPITopup {
		return MethodUPI
	}
	return MethodBank
}

// Valid reports whether l is one of the known lists.
func (l PendingList) Valid() bool {
	switch l {
	case PendingUPITopup, PendingBankTopup, PendingPayout:
		return true
	}
	return false
}

// ActionKind is a user-initiated operation on a pending transaction.
type ActionKind string

const (
	ActionApprove ActionKind = "approve"
	ActionReject  ActionKind = "reject"
)

// FailurePolicy controls what happens to a pending item when its action fails.
type FailurePolicy string

const (
	// FailureRemove drops the item from pending regardless of the remote outcome.
	FailureRemove FailurePolicy = "remove"
	// FailureRestore puts the item back into its pending list when the effector fails.
	FailureRestore FailurePolicy = "restore"
)

// ParseFailurePolicy accepts "remove" or "restore", case-insensitively.
func ParseFailurePolicy(v string) (FailurePolicy, error) {
	switch p := FailurePolicy(strings.ToLower(strings.TrimSpace(v))); p {
	case FailureRemove, FailureRestore:
		return p, nil
	}
	return "", fmt.Errorf("unknown failure policy %q", v)
}
