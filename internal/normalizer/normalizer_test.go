package normalizer

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/ayo6706/payment-console/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fixedNow = time.Date(2026, 10, 16, 12, 0, 0, 0, time.Local)

func newTestNormalizer(t *testing.T) *Normalizer {
	t.Helper()
	n, err := New("https://files.example.com/static", WithClock(func() time.Time { return fixedNow }))
	require.NoError(t, err)
	return n
}

func raw(s string) json.RawMessage {
	return json.RawMessage(s)
}

func TestNormalizeChannelInference(t *testing.T) {
	n := newTestNormalizer(t)

	cases := []struct {
		name    string
		body    string
		hint    domain.PendingList
		channel domain.Channel
		method  domain.Method
	}{
		{name: "explicit_upi_type", body: `{"id":"T-1","type":"UPI"}`, channel: domain.ChannelTopup, method: domain.MethodUPI},
		{name: "explicit_withdrawal_type", body: `{"id":"T-2","transactionType":"withdrawal"}`, channel: domain.ChannelPayout, method: domain.MethodBank},
		{name: "explicit_beats_hint", body: `{"id":"T-3","type":"bank"}`, hint: domain.PendingUPITopup, channel: domain.ChannelTopup, method: domain.MethodBank},
		{name: "hint_when_no_type", body: `{"id":"T-4","amount":10}`, hint: domain.PendingPayout, channel: domain.ChannelPayout, method: domain.MethodBank},
		{name: "upi_structural", body: `{"id":"T-5","upiId":"alice@okbank"}`, channel: domain.ChannelTopup, method: domain.MethodUPI},
		{name: "account_structural", body: `{"id":"T-6","accountNo":"00112233"}`, channel: domain.ChannelTopup, method: domain.MethodBank},
		{name: "payout_marker", body: `{"id":"T-7","isWithdrawal":true,"upi_id":"bob@ok"}`, channel: domain.ChannelPayout, method: domain.MethodBank},
		{name: "false_payout_marker_ignored", body: `{"id":"T-8","isWithdrawal":false}`, channel: domain.ChannelTopup, method: domain.MethodBank},
		{name: "deposit_type_upi_structure", body: `{"id":"T-9","type":"deposit","vpa":"c@ok"}`, channel: domain.ChannelTopup, method: domain.MethodUPI},
		{name: "ambiguous_defaults_bank_topup", body: `{"id":"T-10"}`, channel: domain.ChannelTopup, method: domain.MethodBank},
		{name: "upi_method_keeps_payout_hint", body: `{"id":"W-1001","amount":100,"paymentMethod":"UPI","upiId":"bob@ok"}`, hint: domain.PendingPayout, channel: domain.ChannelPayout, method: domain.MethodBank},
		{name: "upi_method_keeps_payout_marker", body: `{"id":"W-1002","method":"upi","isWithdrawal":true}`, channel: domain.ChannelPayout, method: domain.MethodBank},
		{name: "payout_marker_beats_topup_hint", body: `{"id":"W-1003","withdrawalId":"WD-9"}`, hint: domain.PendingUPITopup, channel: domain.ChannelPayout, method: domain.MethodBank},
		{name: "method_field_picks_topup_method", body: `{"id":"T-11","paymentMode":"UPI","accountNo":"00112233"}`, hint: domain.PendingBankTopup, channel: domain.ChannelTopup, method: domain.MethodUPI},
		{name: "unknown_method_falls_back_to_hint", body: `{"id":"T-12","method":"cash"}`, hint: domain.PendingUPITopup, channel: domain.ChannelTopup, method: domain.MethodUPI},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			tx, err := n.Normalize(RawRecord{Source: SourcePush, Hint: tc.hint, Body: raw(tc.body)})
			require.NoError(t, err)
			assert.Equal(t, tc.channel, tx.Channel)
			assert.Equal(t, tc.method, tx.Method)
			assert.Equal(t, domain.StatusPending, tx.Status)
		})
	}
}

func TestNormalizeFieldAliases(t *testing.T) {
	n := newTestNormalizer(t)

	tx, err := n.Normalize(RawRecord{Source: SourcePoll, Body: raw(`{
		"_id": "65f0c1",
		"fund_id": "FR-1001",
		"amount": "5,000.50",
		"created_at": "2026-10-15T09:30:00Z",
		"bank": {"id": "BK-7", "name": "State Bank"},
		"account_number": "998877",
		"utr": "UTR000123",
		"accountHolderName": "Asha Rao",
		"website": "site-a",
		"screenshot": "/uploads/proof.png",
		"data": {"id": "nested-42"},
		"status": "approved"
	}`)})
	require.NoError(t, err)

	assert.Equal(t, "65f0c1", tx.ID)
	assert.Equal(t, "FR-1001", tx.FundID)
	assert.Equal(t, "nested-42", tx.NestedID)
	assert.Equal(t, "5000.5", tx.Amount.String())
	assert.Equal(t, time.Date(2026, 10, 15, 9, 30, 0, 0, time.UTC), tx.Timestamp.UTC())
	assert.Equal(t, "BK-7", tx.BankID)
	assert.Equal(t, "State Bank", tx.BankName)
	assert.Equal(t, "998877", tx.AccountNo)
	assert.Equal(t, "UTR000123", tx.UTRNumber)
	assert.Equal(t, "Asha Rao", tx.HolderName)
	assert.Equal(t, "site-a", tx.WebsiteRef)
	assert.Equal(t, "https://files.example.com/static/uploads/proof.png", tx.EvidenceRef)
	assert.True(t, tx.Settled)
	assert.NotEmpty(t, tx.Raw)
}

func TestNormalizeAmountCoercion(t *testing.T) {
	n := newTestNormalizer(t)

	cases := map[string]string{
		`{"id":"A-1","amount":"oops"}`: "0",
		`{"id":"A-2"}`:                 "0",
		`{"id":"A-3","amount":-50}`:    "0",
		`{"id":"A-4","amount":1250}`:   "1250",
		`{"id":"A-5","amt":"99.9"}`:    "99.9",
	}
	for body, want := range cases {
		tx, err := n.Normalize(RawRecord{Source: SourcePoll, Body: raw(body)})
		require.NoError(t, err, body)
		assert.Equal(t, want, tx.Amount.String(), body)
	}
}

func TestNormalizeTimestamps(t *testing.T) {
	n := newTestNormalizer(t)

	cases := []struct {
		name string
		body string
		want time.Time
	}{
		{name: "epoch_millis", body: `{"id":"X-1","createdAt":1760605200000}`, want: time.UnixMilli(1760605200000)},
		{name: "epoch_seconds_string", body: `{"id":"X-2","timestamp":"1760605200"}`, want: time.Unix(1760605200, 0)},
		{name: "updated_fallback", body: `{"id":"X-3","updatedAt":"2026-10-01 08:00:00"}`, want: time.Date(2026, 10, 1, 8, 0, 0, 0, time.Local)},
		{name: "missing_defaults_to_now", body: `{"id":"X-4"}`, want: fixedNow},
		{name: "garbage_defaults_to_now", body: `{"id":"X-5","createdAt":"yesterday"}`, want: fixedNow},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			tx, err := n.Normalize(RawRecord{Source: SourcePoll, Body: raw(tc.body)})
			require.NoError(t, err)
			assert.True(t, tc.want.Equal(tx.Timestamp), "got %s want %s", tx.Timestamp, tc.want)
		})
	}
}

func TestNormalizeEvidenceResolution(t *testing.T) {
	n := newTestNormalizer(t)

	cases := map[string]string{
		"uploads/a.png":                 "https://files.example.com/static/uploads/a.png",
		"https://cdn.example.com/b.png": "https://cdn.example.com/b.png",
		"data:image/png;base64,AAAA":    "data:image/png;base64,AAAA",
	}
	for ref, want := range cases {
		body, err := json.Marshal(map[string]string{"id": "E-100", "evidence": ref})
		require.NoError(t, err)
		tx, err := n.Normalize(RawRecord{Source: SourcePush, Body: body})
		require.NoError(t, err)
		assert.Equal(t, want, tx.EvidenceRef)
	}

	bare, err := New("")
	require.NoError(t, err)
	tx, err := bare.Normalize(RawRecord{Source: SourcePush, Body: raw(`{"id":"E-200","evidence":"uploads/c.png"}`)})
	require.NoError(t, err)
	assert.Equal(t, "uploads/c.png", tx.EvidenceRef)
}

func TestNormalizeRejectsMalformed(t *testing.T) {
	n := newTestNormalizer(t)

	for _, body := range []string{``, `null`, `[]`, `"text"`, `{}`, `{"amount":10}`, `{"id":"  "}`, `{bad json`} {
		_, err := n.Normalize(RawRecord{Source: SourcePush, Body: raw(body)})
		require.Error(t, err, body)
		assert.True(t, errors.Is(err, ErrSkip), body)
	}
}

func TestNormalizeBatchPartialSuccess(t *testing.T) {
	n := newTestNormalizer(t)

	batch := []json.RawMessage{
		raw(`{"id":"B-1","amount":100}`),
		raw(`{"id":"B-2","amount":200}`),
		raw(`not-json`),
		raw(`{"id":"B-4","amount":400}`),
		raw(`{"id":"B-5","amount":500}`),
	}
	res := n.NormalizeBatch(SourcePoll, domain.PendingBankTopup, batch)

	require.Len(t, res.Transactions, 4)
	require.Len(t, res.Skipped, 1)
	assert.Equal(t, 2, res.Skipped[0].Index)
	assert.Equal(t, SourcePoll, res.Skipped[0].Source)
	for _, tx := range res.Transactions {
		assert.Equal(t, domain.PendingBankTopup, tx.PendingList())
	}
}
