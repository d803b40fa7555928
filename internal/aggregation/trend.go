package aggregation

import (
	"fmt"
	"time"

	"github.com/ayo6706/payment-console/internal/domain"
	"github.com/ayo6706/payment-console/internal/models"
	"github.com/ayo6706/payment-console/internal/store"
	"github.com/shopspring/decimal"
)

// Series selects which collections feed a trend.
type Series string

const (
	SeriesApproved Series = "approved"
	SeriesPending  Series = "pending"
	SeriesAll      Series = "all"
)

// ParseSeries maps a query value onto a Series, defaulting to approved.
func ParseSeries(v string) (Series, error) {
	switch Series(v) {
	case "", SeriesApproved:
		return SeriesApproved, nil
	case SeriesPending, SeriesAll:
		return Series(v), nil
	}
	return "", fmt.Errorf("unknown series %q", v)
}

// TrendPoint is one calendar day of the trend.
type TrendPoint struct {
	Date   string          `json:"date"`
	Topup  decimal.Decimal `json:"topup"`
	Payout decimal.Decimal `json:"payout"`
}

const dayLayout = "2006-01-02"

// trend buckets amounts into the last days calendar days ending on today's
// date in loc, oldest first. Empty days are present with zero sums.
func trend(snap *store.Snapshot, series Series, days int, now time.Time, loc *time.Location) []TrendPoint {
	if days <= 0 {
		return nil
	}
	now = now.In(loc)
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, loc)

	points := make([]TrendPoint, days)
	index := make(map[string]int, days)
	for i := 0; i < days; i++ {
		day := today.AddDate(0, 0, i-(days-1)).Format(dayLayout)
		points[i] = TrendPoint{Date: day, Topup: decimal.Zero, Payout: decimal.Zero}
		index[day] = i
	}

	add := func(tx models.Transaction) {
		i, ok := index[tx.Timestamp.In(loc).Format(dayLayout)]
		if !ok {
			return
		}
		switch tx.Channel {
		case domain.ChannelTopup:
			points[i].Topup = points[i].Topup.Add(tx.Amount)
		case domain.ChannelPayout:
			points[i].Payout = points[i].Payout.Add(tx.Amount)
		}
	}

	if series == SeriesApproved || series == SeriesAll {
		for _, tx := range snap.Approved {
			add(tx)
		}
	}
	if series == SeriesPending || series == SeriesAll {
		for _, tx := range snap.AllPending() {
			add(tx)
		}
	}
	return points
}
