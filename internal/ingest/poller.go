package ingest

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/ayo6706/payment-console/internal/domain"
	"github.com/ayo6706/payment-console/internal/models"
)

const maxPollBody = 16 << 20

// Poller fetches the full pending snapshot, one endpoint per list.
type Poller struct {
	endpoints map[domain.PendingList]string
	client    *http.Client
	token     string
	clock     func() time.Time
}

// PollerOption configures a Poller.
type PollerOption func(*Poller)

func WithPollClient(c *http.Client) PollerOption {
	return func(p *Poller) {
		if c != nil {
			p.client = c
		}
	}
}

func WithPollToken(token string) PollerOption {
	return func(p *Poller) { p.token = token }
}

func WithPollClock(clock func() time.Time) PollerOption {
	return func(p *Poller) {
		if clock != nil {
			p.clock = clock
		}
	}
}

// NewPoller builds a poller. Lists without an endpoint are never fetched.
func NewPoller(endpoints map[domain.PendingList]string, opts ...PollerOption) *Poller {
	p := &Poller{
		endpoints: make(map[domain.PendingList]string, len(endpoints)),
		client:    &http.Client{Timeout: 15 * time.Second},
		clock:     time.Now,
	}
	for list, u := range endpoints {
		if u != "" {
			p.endpoints[list] = u
		}
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Configured reports whether at least one endpoint is set.
func (p *Poller) Configured() bool {
	return len(p.endpoints) > 0
}

// Fetch downloads every configured list. Any failure fails the whole fetch, so
// a partial snapshot is never applied.
func (p *Poller) Fetch(ctx context.Context) (models.PollPayload, error) {
	payload := models.PollPayload{Lists: make(map[domain.PendingList][]json.RawMessage, len(p.endpoints))}
	for _, list := range domain.PendingLists {
		endpoint, ok := p.endpoints[list]
		if !ok {
			continue
		}
		records, err := p.fetchList(ctx, endpoint)
		if err != nil {
			return models.PollPayload{}, fmt.Errorf("poll %s: %w", list, err)
		}
		payload.Lists[list] = records
	}
	payload.FetchedAt = p.clock()
	return payload, nil
}

func (p *Poller) fetchList(ctx context.Context, endpoint string) ([]json.RawMessage, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	if p.token != "" {
		req.Header.Set("Authorization", "Bearer "+p.token)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxPollBody))
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	return DecodeRecords(body)
}
