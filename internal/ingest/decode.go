// Package ingest holds the transport adapters that deliver raw batches: an
// HTTP poller for full snapshots and a websocket subscriber for pushes.
package ingest

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ayo6706/payment-console/internal/domain"
	"github.com/ayo6706/payment-console/internal/models"
	"github.com/shopspring/decimal"
)

var ErrUnrecognizedPayload = errors.New("unrecognized payload")

var (
	pushListKeys = map[domain.PendingList][]string{
		domain.PendingUPITopup:  {"pendingupi", "upipending", "pendingupitopups", "pendingupideposits"},
		domain.PendingBankTopup: {"pendingbank", "bankpending", "pendingbanktopups", "pendingbankdeposits"},
		domain.PendingPayout:    {"pendingpayout", "pendingpayouts", "payoutpending", "pendingwithdrawals", "pendingwithdrawal"},
	}
	counterKeys   = []string{"acceptedamounts", "acceptedamount", "accepted", "counters"}
	balanceKeys   = []string{"balance", "availablebalance", "walletbalance"}
	envelopeKeys  = []string{"data", "payload", "message"}
	recordSetKeys = []string{"data", "items", "records", "results", "transactions", "rows"}
)

func fold(k string) string {
	return strings.NewReplacer("_", "", "-", "", " ", "").Replace(strings.ToLower(k))
}

func foldObject(raw []byte) (map[string]json.RawMessage, bool) {
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(raw, &obj); err != nil {
		return nil, false
	}
	out := make(map[string]json.RawMessage, len(obj))
	for k, v := range obj {
		out[fold(k)] = v
	}
	return out, true
}

func lookup(obj map[string]json.RawMessage, keys ...string) (json.RawMessage, bool) {
	for _, k := range keys {
		if v, ok := obj[k]; ok {
			return v, true
		}
	}
	return nil, false
}

func isNull(v json.RawMessage) bool {
	v = bytes.TrimSpace(v)
	return len(v) == 0 || bytes.Equal(v, []byte("null"))
}

// DecodePush parses one server-sent message. A list key that is missing or
// null decodes to an empty list; a counter or balance that is missing stays nil.
func DecodePush(raw []byte, receivedAt time.Time) (models.PushPayload, error) {
	obj, ok := foldObject(raw)
	if !ok {
		return models.PushPayload{}, fmt.Errorf("%w: push message is not an object", ErrUnrecognizedPayload)
	}
	if !hasPushKeys(obj) {
		if inner, found := lookup(obj, envelopeKeys...); found {
			if unwrapped, ok := foldObject(inner); ok && hasPushKeys(unwrapped) {
				obj = unwrapped
			}
		}
	}
	// A message carrying none of the known keys (a heartbeat, say) must not
	// be mistaken for "every list is now empty".
	if !hasPushKeys(obj) {
		return models.PushPayload{}, fmt.Errorf("%w: no recognized push keys", ErrUnrecognizedPayload)
	}

	payload := models.PushPayload{
		Lists:      make(map[domain.PendingList][]json.RawMessage, len(pushListKeys)),
		ReceivedAt: receivedAt,
	}
	for list, keys := range pushListKeys {
		v, found := lookup(obj, keys...)
		if !found || isNull(v) {
			continue
		}
		records, err := DecodeRecords(v)
		if err != nil {
			return models.PushPayload{}, fmt.Errorf("decode %s: %w", list, err)
		}
		payload.Lists[list] = records
	}

	if v, found := lookup(obj, counterKeys...); found && !isNull(v) {
		if counters, ok := foldObject(v); ok {
			payload.Counters = models.Counters{
				UPI:    amountField(counters, "upi"),
				Bank:   amountField(counters, "bank"),
				Payout: amountField(counters, "payout", "withdrawal", "withdrawals"),
			}
		}
	}
	payload.Balance = amountField(obj, balanceKeys...)
	return payload, nil
}

func hasPushKeys(obj map[string]json.RawMessage) bool {
	for _, keys := range pushListKeys {
		if _, ok := lookup(obj, keys...); ok {
			return true
		}
	}
	_, counters := lookup(obj, counterKeys...)
	_, balance := lookup(obj, balanceKeys...)
	return counters || balance
}

func amountField(obj map[string]json.RawMessage, keys ...string) *decimal.Decimal {
	v, found := lookup(obj, keys...)
	if !found || isNull(v) {
		return nil
	}
	dec := json.NewDecoder(bytes.NewReader(v))
	dec.UseNumber()
	var val any
	if err := dec.Decode(&val); err != nil {
		return nil
	}
	amount := domain.ParseAmount(val)
	return &amount
}

// DecodeRecords accepts either a bare JSON array or an object wrapping one
// under a common key such as "data" or "items".
func DecodeRecords(raw []byte) ([]json.RawMessage, error) {
	trimmed := bytes.TrimSpace(raw)
	if isNull(trimmed) {
		return nil, nil
	}
	switch trimmed[0] {
	case '[':
		var records []json.RawMessage
		if err := json.Unmarshal(trimmed, &records); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrUnrecognizedPayload, err)
		}
		return records, nil
	case '{':
		obj, _ := foldObject(trimmed)
		if v, found := lookup(obj, recordSetKeys...); found {
			return DecodeRecords(v)
		}
	}
	return nil, fmt.Errorf("%w: expected a list of records", ErrUnrecognizedPayload)
}
