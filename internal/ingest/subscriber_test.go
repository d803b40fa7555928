package ingest

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ayo6706/payment-console/internal/domain"
	"github.com/ayo6706/payment-console/internal/models"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testUpgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

func TestSubscriberDeliversInOrderAndReconnects(t *testing.T) {
	var connections int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := testUpgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		n := atomic.AddInt32(&connections, 1)
		if n == 1 {
			_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"pendingBank":[{"id":"B-1"}]}`))
			_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"heartbeat"}`))
			_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"pendingBank":[{"id":"B-1"},{"id":"B-2"}]}`))
			// Drop the connection to force a reconnect.
			return
		}
		_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"balance":"42"}`))
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	sub := NewSubscriber(url, WithReconnectDelay(10*time.Millisecond))

	ctx, cancel := context.WithCancel(context.Background())
	got := make(chan models.PushPayload, 8)
	done := make(chan struct{})
	go func() {
		sub.Run(ctx, func(_ context.Context, p models.PushPayload) { got <- p })
		close(done)
	}()

	var payloads []models.PushPayload
	timeout := time.After(5 * time.Second)
	for len(payloads) < 3 {
		select {
		case p := <-got:
			payloads = append(payloads, p)
		case <-timeout:
			t.Fatalf("received %d payloads before timeout", len(payloads))
		}
	}
	cancel()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("subscriber did not stop after cancel")
	}

	assert.Len(t, payloads[0].Lists[domain.PendingBankTopup], 1)
	assert.Len(t, payloads[1].Lists[domain.PendingBankTopup], 2)
	require.NotNil(t, payloads[2].Balance)
	assert.GreaterOrEqual(t, atomic.LoadInt32(&connections), int32(2))
}

func TestSubscriberStopsWhileDisconnected(t *testing.T) {
	sub := NewSubscriber("ws://127.0.0.1:1/none", WithReconnectDelay(time.Hour))
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		sub.Run(ctx, func(context.Context, models.PushPayload) {})
		close(done)
	}()
	time.Sleep(20 * time.Millisecond)
	cancel()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("subscriber did not stop")
	}
}
