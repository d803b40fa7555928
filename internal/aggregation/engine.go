package aggregation

import (
	"fmt"
	"time"

	"github.com/ayo6706/payment-console/internal/domain"
	"github.com/ayo6706/payment-console/internal/store"
	"github.com/patrickmn/go-cache"
	"github.com/shopspring/decimal"
)

// DefaultDays is the trend window used when none is requested.
const DefaultDays = 7

// Windows are the trend windows the dashboard offers.
var Windows = []int{7, 30, 90}

// ValidWindow reports whether days is one of Windows.
func ValidWindow(days int) bool {
	for _, w := range Windows {
		if w == days {
			return true
		}
	}
	return false
}

// Dashboard is every rollup the presentation layer renders, computed from one
// snapshot. Cached values are shared, so callers must treat it as read-only.
type Dashboard struct {
	Version           uint64                     `json:"version"`
	Days              int                        `json:"days"`
	Totals            Totals                     `json:"totals"`
	ActiveAccounts    int                        `json:"active_accounts"`
	Trend             []TrendPoint               `json:"trend"`
	PendingTrend      []TrendPoint               `json:"pending_trend"`
	Methods           MethodBreakdown            `json:"methods"`
	TopCounterparties []Counterparty             `json:"top_counterparties"`
	Balance           *decimal.Decimal           `json:"balance,omitempty"`
	PendingCounts     map[domain.PendingList]int `json:"pending_counts"`
	RecentFailed      int                        `json:"recent_failed"`
	UpdatedAt         time.Time                  `json:"updated_at"`
}

// Engine computes rollups against an injected clock and calendar location and
// memoizes dashboards per snapshot version.
type Engine struct {
	clock func() time.Time
	loc   *time.Location
	cache *cache.Cache
}

// Option configures an Engine.
type Option func(*Engine)

// WithClock overrides the clock used for "today".
func WithClock(clock func() time.Time) Option {
	return func(e *Engine) {
		if clock != nil {
			e.clock = clock
		}
	}
}

// WithLocation sets the location whose calendar days bucket the trend.
func WithLocation(loc *time.Location) Option {
	return func(e *Engine) {
		if loc != nil {
			e.loc = loc
		}
	}
}

// WithCacheTTL sets how long a computed dashboard is reused. Zero disables caching.
func WithCacheTTL(ttl time.Duration) Option {
	return func(e *Engine) {
		if ttl <= 0 {
			e.cache = nil
			return
		}
		e.cache = cache.New(ttl, 2*ttl)
	}
}

// NewEngine builds an engine using local time and a five second cache.
func NewEngine(opts ...Option) *Engine {
	e := &Engine{
		clock: time.Now,
		loc:   time.Local,
		cache: cache.New(5*time.Second, 10*time.Second),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Trend returns the per-day series for the last days calendar days.
func (e *Engine) Trend(snap *store.Snapshot, series Series, days int) []TrendPoint {
	return trend(snap, series, days, e.clock(), e.loc)
}

// Dashboard computes, or returns the cached, dashboard for snap.
func (e *Engine) Dashboard(snap *store.Snapshot, days int) *Dashboard {
	if days <= 0 {
		days = DefaultDays
	}
	now := e.clock().In(e.loc)
	// Generations are unique per store instance, so entries from a torn-down
	// session never match. The day keeps a cached trend from outliving midnight.
	key := fmt.Sprintf("%d:%d:%d:%s", snap.Generation, snap.Version, days, now.Format(dayLayout))
	if e.cache != nil {
		if v, ok := e.cache.Get(key); ok {
			return v.(*Dashboard)
		}
	}

	counts := make(map[domain.PendingList]int, len(domain.PendingLists))
	for _, l := range domain.PendingLists {
		counts[l] = len(snap.PendingFor(l))
	}

	d := &Dashboard{
		Version:           snap.Version,
		Days:              days,
		Totals:            ComputeTotals(snap),
		ActiveAccounts:    ActiveAccounts(snap),
		Trend:             trend(snap, SeriesApproved, days, now, e.loc),
		PendingTrend:      trend(snap, SeriesPending, days, now, e.loc),
		Methods:           Methods(snap),
		TopCounterparties: TopCounterparties(snap, DefaultTopN),
		Balance:           snap.Balance,
		PendingCounts:     counts,
		RecentFailed:      len(snap.RecentFailed),
		UpdatedAt:         snap.UpdatedAt,
	}
	if e.cache != nil {
		e.cache.Set(key, d, cache.DefaultExpiration)
	}
	return d
}
