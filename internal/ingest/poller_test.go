package ingest

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/ayo6706/payment-console/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPollerFetch(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/bank", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		_, _ = io.WriteString(w, `[{"id":"B-1"},{"id":"B-2"}]`)
	})
	mux.HandleFunc("/payout", func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"data":[{"id":"P-1"}]}`)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	p := NewPoller(map[domain.PendingList]string{
		domain.PendingBankTopup: srv.URL + "/bank",
		domain.PendingPayout:    srv.URL + "/payout",
		domain.PendingUPITopup:  "",
	}, WithPollToken("tok"))
	require.True(t, p.Configured())

	payload, err := p.Fetch(context.Background())
	require.NoError(t, err)
	assert.Len(t, payload.Lists[domain.PendingBankTopup], 2)
	assert.Len(t, payload.Lists[domain.PendingPayout], 1)
	assert.Empty(t, payload.Lists[domain.PendingUPITopup])
	assert.False(t, payload.FetchedAt.IsZero())
}

func TestPollerFailsWholeFetch(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/bank", func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `[]`)
	})
	mux.HandleFunc("/upi", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	p := NewPoller(map[domain.PendingList]string{
		domain.PendingBankTopup: srv.URL + "/bank",
		domain.PendingUPITopup:  srv.URL + "/upi",
	})
	_, err := p.Fetch(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "upi_topup")
}

func TestPollerNotConfigured(t *testing.T) {
	assert.False(t, NewPoller(nil).Configured())
}
