// Package aggregation derives dashboard rollups from a store snapshot.
// Nothing here mutates the snapshot it is given.
package aggregation

import (
	"sort"
	"strings"

	"github.com/ayo6706/payment-console/internal/domain"
	"github.com/ayo6706/payment-console/internal/models"
	"github.com/ayo6706/payment-console/internal/store"
	"github.com/shopspring/decimal"
)

const (
	// DefaultTopN is the counterparty list length used when callers pass n <= 0.
	DefaultTopN = 10
	// UnknownCounterparty groups payouts with no bank name, account or holder.
	UnknownCounterparty = "Unknown"
)

// Totals are settled amounts split by channel.
type Totals struct {
	Topup  decimal.Decimal `json:"topup"`
	Payout decimal.Decimal `json:"payout"`
}

// MethodBreakdown is accepted volume per settlement method. Fields marked as
// supplied came straight from the push source's counters.
type MethodBreakdown struct {
	UPI            decimal.Decimal `json:"upi"`
	Bank           decimal.Decimal `json:"bank"`
	Payout         decimal.Decimal `json:"payout"`
	UPISupplied    bool            `json:"upi_supplied"`
	BankSupplied   bool            `json:"bank_supplied"`
	PayoutSupplied bool            `json:"payout_supplied"`
}

// Counterparty is one row of the top-counterparties table.
type Counterparty struct {
	Name  string          `json:"name"`
	Total decimal.Decimal `json:"total"`
}

// ComputeTotals sums approved amounts by channel.
func ComputeTotals(snap *store.Snapshot) Totals {
	t := Totals{Topup: decimal.Zero, Payout: decimal.Zero}
	for _, tx := range snap.Approved {
		switch tx.Channel {
		case domain.ChannelTopup:
			t.Topup = t.Topup.Add(tx.Amount)
		case domain.ChannelPayout:
			t.Payout = t.Payout.Add(tx.Amount)
		}
	}
	return t
}

// ActiveAccounts counts distinct counterpart identifiers across every pending
// list. Each transaction contributes its account number, else its bank id,
// else its website reference.
func ActiveAccounts(snap *store.Snapshot) int {
	seen := make(map[string]struct{})
	for _, tx := range snap.AllPending() {
		key := firstNonEmpty(tx.AccountNo, tx.BankID, tx.WebsiteRef)
		if key == "" {
			continue
		}
		seen[strings.ToLower(key)] = struct{}{}
	}
	return len(seen)
}

// Methods reports accepted volume by method. A counter supplied by the push
// source always wins over the local sum of approved transactions.
func Methods(snap *store.Snapshot) MethodBreakdown {
	var local MethodBreakdown
	for _, tx := range snap.Approved {
		switch {
		case tx.Channel == domain.ChannelPayout:
			local.Payout = local.Payout.Add(tx.Amount)
		case tx.Method == domain.MethodUPI:
			local.UPI = local.UPI.Add(tx.Amount)
		default:
			local.Bank = local.Bank.Add(tx.Amount)
		}
	}

	c := snap.Counters
	if c.UPI != nil {
		local.UPI, local.UPISupplied = *c.UPI, true
	}
	if c.Bank != nil {
		local.Bank, local.BankSupplied = *c.Bank, true
	}
	if c.Payout != nil {
		local.Payout, local.PayoutSupplied = *c.Payout, true
	}
	return local
}

// TopCounterparties groups approved and pending payouts by counterparty and
// returns the n largest by summed amount. Ties keep first-seen order.
func TopCounterparties(snap *store.Snapshot, n int) []Counterparty {
	if n <= 0 {
		n = DefaultTopN
	}

	payouts := make([]models.Transaction, 0, len(snap.Approved)+len(snap.PendingFor(domain.PendingPayout)))
	for _, tx := range snap.Approved {
		if tx.Channel == domain.ChannelPayout {
			payouts = append(payouts, tx)
		}
	}
	payouts = append(payouts, snap.PendingFor(domain.PendingPayout)...)

	index := make(map[string]int)
	var rows []Counterparty
	for _, tx := range payouts {
		name := counterpartyKey(tx)
		i, ok := index[name]
		if !ok {
			i = len(rows)
			index[name] = i
			rows = append(rows, Counterparty{Name: name, Total: decimal.Zero})
		}
		rows[i].Total = rows[i].Total.Add(tx.Amount)
	}

	sort.SliceStable(rows, func(i, j int) bool {
		return rows[i].Total.GreaterThan(rows[j].Total)
	})
	if len(rows) > n {
		rows = rows[:n]
	}
	return rows
}

func counterpartyKey(tx models.Transaction) string {
	if key := firstNonEmpty(tx.BankName, tx.AccountNo, tx.HolderName); key != "" {
		return key
	}
	return UnknownCounterparty
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}
