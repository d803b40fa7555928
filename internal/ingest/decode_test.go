package ingest

import (
	"testing"
	"time"

	"github.com/ayo6706/payment-console/internal/domain"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var receivedAt = time.Date(2024, 3, 15, 12, 0, 0, 0, time.UTC)

func TestDecodePush(t *testing.T) {
	msg := `{
		"pendingUpi": [{"id":"U-1"},{"id":"U-2"}],
		"pending_bank": null,
		"acceptedAmounts": {"upi": "1,500.50", "bank": 200},
		"balance": 9000
	}`
	payload, err := DecodePush([]byte(msg), receivedAt)
	require.NoError(t, err)

	assert.Len(t, payload.Lists[domain.PendingUPITopup], 2)
	assert.Empty(t, payload.Lists[domain.PendingBankTopup])
	_, hasPayout := payload.Lists[domain.PendingPayout]
	assert.False(t, hasPayout)

	require.NotNil(t, payload.Counters.UPI)
	assert.True(t, payload.Counters.UPI.Equal(decimal.RequireFromString("1500.50")))
	require.NotNil(t, payload.Counters.Bank)
	assert.Nil(t, payload.Counters.Payout)
	require.NotNil(t, payload.Balance)
	assert.True(t, payload.Balance.Equal(decimal.NewFromInt(9000)))
	assert.Equal(t, receivedAt, payload.ReceivedAt)
}

func TestDecodePushEnvelope(t *testing.T) {
	payload, err := DecodePush([]byte(`{"event":"update","data":{"pendingPayout":{"items":[{"id":"P-1"}]}}}`), receivedAt)
	require.NoError(t, err)
	assert.Len(t, payload.Lists[domain.PendingPayout], 1)
	assert.Nil(t, payload.Balance)
}

func TestDecodePushRejectsUnknownMessages(t *testing.T) {
	for _, msg := range []string{`{"type":"ping"}`, `[1,2]`, `nonsense`} {
		_, err := DecodePush([]byte(msg), receivedAt)
		assert.ErrorIs(t, err, ErrUnrecognizedPayload, msg)
	}
}

func TestDecodeRecords(t *testing.T) {
	cases := []struct {
		name string
		body string
		want int
		err  bool
	}{
		{name: "array", body: `[{"id":1},{"id":2}]`, want: 2},
		{name: "wrapped", body: `{"success":true,"data":[{"id":1}]}`, want: 1},
		{name: "nested wrap", body: `{"data":{"records":[{"id":1},{"id":2},{"id":3}]}}`, want: 3},
		{name: "null", body: `null`, want: 0},
		{name: "object without list", body: `{"id":1}`, err: true},
		{name: "scalar", body: `42`, err: true},
	}
	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			got, err := DecodeRecords([]byte(tc.body))
			if tc.err {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Len(t, got, tc.want)
		})
	}
}
