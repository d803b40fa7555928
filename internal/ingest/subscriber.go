package ingest

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/ayo6706/payment-console/internal/models"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
	writeWait  = 10 * time.Second
	maxMessage = 8 << 20
)

// Subscriber keeps a websocket subscription to the push source open,
// reconnecting after every failure until its context ends.
type Subscriber struct {
	url            string
	header         http.Header
	dialer         *websocket.Dialer
	reconnectDelay time.Duration
	clock          func() time.Time
}

// SubscriberOption configures a Subscriber.
type SubscriberOption func(*Subscriber)

func WithReconnectDelay(d time.Duration) SubscriberOption {
	return func(s *Subscriber) {
		if d > 0 {
			s.reconnectDelay = d
		}
	}
}

func WithPushToken(token string) SubscriberOption {
	return func(s *Subscriber) {
		if token != "" {
			s.header.Set("Authorization", "Bearer "+token)
		}
	}
}

func WithSubscriberClock(clock func() time.Time) SubscriberOption {
	return func(s *Subscriber) {
		if clock != nil {
			s.clock = clock
		}
	}
}

func NewSubscriber(url string, opts ...SubscriberOption) *Subscriber {
	s := &Subscriber{
		url:            url,
		header:         http.Header{},
		dialer:         &websocket.Dialer{HandshakeTimeout: 10 * time.Second},
		reconnectDelay: 3 * time.Second,
		clock:          time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Run delivers each decoded payload to handle, in arrival order, until ctx is
// done. Transport and decode errors are logged and never returned.
func (s *Subscriber) Run(ctx context.Context, handle func(context.Context, models.PushPayload)) {
	for {
		err := s.session(ctx, handle)
		if ctx.Err() != nil {
			return
		}
		zap.L().Warn("push subscription dropped, reconnecting",
			zap.Error(err),
			zap.Duration("delay", s.reconnectDelay),
		)
		timer := time.NewTimer(s.reconnectDelay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}
	}
}

func (s *Subscriber) session(ctx context.Context, handle func(context.Context, models.PushPayload)) error {
	conn, _, err := s.dialer.DialContext(ctx, s.url, s.header)
	if err != nil {
		return err
	}
	defer conn.Close()
	zap.L().Info("push subscription connected", zap.String("url", s.url))

	conn.SetReadLimit(maxMessage)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	done := make(chan struct{})
	defer close(done)
	go s.keepAlive(ctx, conn, done)

	for {
		kind, msg, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure) {
				return errors.New("server closed subscription")
			}
			return err
		}
		if kind != websocket.TextMessage && kind != websocket.BinaryMessage {
			continue
		}
		_ = conn.SetReadDeadline(time.Now().Add(pongWait))

		payload, err := DecodePush(msg, s.clock())
		if err != nil {
			zap.L().Warn("ignoring undecodable push message", zap.Error(err))
			continue
		}
		handle(ctx, payload)
	}
}

// keepAlive pings the server and closes the connection when ctx ends, which
// unblocks the reader.
func (s *Subscriber) keepAlive(ctx context.Context, conn *websocket.Conn, done <-chan struct{}) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-done:
			return
		case <-ctx.Done():
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(writeWait))
			_ = conn.Close()
			return
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				return
			}
		}
	}
}
