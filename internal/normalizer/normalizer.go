// Package normalizer turns raw transaction records from either ingestion
// source into canonical models.Transaction values.
package normalizer

import (
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/ayo6706/payment-console/internal/domain"
	"github.com/ayo6706/payment-console/internal/models"
)

var (
	idAliases         = []string{"id", "_id", "transactionid", "txnid", "requestid"}
	fundIDAliases     = []string{"fundid", "fundrequestid", "fundsid"}
	externalIDAliases = []string{"externalid", "extid", "referenceid", "reference", "orderid"}
	amountAliases     = []string{"amount", "amt", "value", "transactionamount"}
	createdAliases    = []string{"createdat", "created", "createdon", "createdtime"}
	updatedAliases    = []string{"updatedat", "updated", "updatedon"}
	eventTimeAliases  = []string{"eventtime", "timestamp", "time", "date"}
	accountNoAliases  = []string{"accountno", "accountnumber", "acno", "accno"}
	bankIDAliases     = []string{"bankid", "bankaccountid"}
	bankNameAliases   = []string{"bankname", "bank"}
	upiIDAliases      = []string{"upiid", "upi", "vpa", "upiaddress"}
	utrAliases        = []string{"utrnumber", "utr", "utrno", "rrn"}
	holderAliases     = []string{"holdername", "accountholdername", "accountholder", "name", "username"}
	websiteAliases    = []string{"website", "websiteid", "websiteref", "site"}
	evidenceAliases   = []string{"evidence", "evidencefile", "screenshot", "proof", "receipt", "attachment", "file", "image"}
	settledAliases    = []string{"settled", "issettled", "approved", "isapproved"}
	statusAliases     = []string{"status", "state"}
	typeAliases       = []string{"type", "channel", "transactiontype", "txntype", "category"}
	methodAliases     = []string{"method", "paymentmethod", "mode", "paymentmode"}
	payoutMarkers     = []string{"iswithdrawal", "withdrawal", "withdrawalid", "withdrawid", "payoutid", "ispayout"}
)

var timeLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05.000Z",
	"02/01/2006 15:04:05",
	"2006-01-02",
}

// Normalizer converts raw records. It is safe for concurrent use.
type Normalizer struct {
	fileBase *url.URL
	clock    func() time.Time
}

// Option configures a Normalizer.
type Option func(*Normalizer)

// WithClock overrides the ingestion-time clock used when a record has no usable timestamp.
func WithClock(clock func() time.Time) Option {
	return func(n *Normalizer) {
		if clock != nil {
			n.clock = clock
		}
	}
}

// New builds a normalizer. fileBase is joined with relative evidence paths and may be empty.
func New(fileBase string, opts ...Option) (*Normalizer, error) {
	n := &Normalizer{clock: time.Now}
	if strings.TrimSpace(fileBase) != "" {
		u, err := url.Parse(strings.TrimSpace(fileBase))
		if err != nil {
			return nil, fmt.Errorf("parse file base url: %w", err)
		}
		n.fileBase = u
	}
	for _, opt := range opts {
		opt(n)
	}
	return n, nil
}

// Normalize converts one raw record. Any error wraps ErrSkip.
func (n *Normalizer) Normalize(rec RawRecord) (models.Transaction, error) {
	tx, reason := n.normalize(rec)
	if reason != "" {
		return models.Transaction{}, &SkipError{Index: 0, Source: rec.Source, Reason: reason}
	}
	return tx, nil
}

// BatchResult is the outcome of normalizing a batch: partial success is the norm.
type BatchResult struct {
	Transactions []models.Transaction
	Skipped      []*SkipError
}

// NormalizeBatch converts every record it can; malformed records are reported
// in Skipped and never abort the rest of the batch.
func (n *Normalizer) NormalizeBatch(source Source, hint domain.PendingList, bodies []json.RawMessage) BatchResult {
	res := BatchResult{Transactions: make([]models.Transaction, 0, len(bodies))}
	for i, body := range bodies {
		tx, reason := n.normalize(RawRecord{Source: source, Hint: hint, Body: body})
		if reason != "" {
			res.Skipped = append(res.Skipped, &SkipError{Index: i, Source: source, Reason: reason})
			continue
		}
		res.Transactions = append(res.Transactions, tx)
	}
	return res
}

func (n *Normalizer) normalize(rec RawRecord) (models.Transaction, string) {
	f, nested, err := decodeFields(rec.Body)
	if err != nil {
		return models.Transaction{}, err.Error()
	}

	tx := models.Transaction{
		ID:          f.str(idAliases...),
		FundID:      f.str(fundIDAliases...),
		ExternalID:  f.str(externalIDAliases...),
		NestedID:    nested.str("id", "_id", "fundid", "transactionid"),
		Amount:      domain.ParseAmount(f.first(amountAliases...)),
		AccountNo:   f.str(accountNoAliases...),
		BankID:      f.str(bankIDAliases...),
		BankName:    f.str(bankNameAliases...),
		UPIID:       f.str(upiIDAliases...),
		UTRNumber:   f.str(utrAliases...),
		HolderName:  f.str(holderAliases...),
		WebsiteRef:  f.str(websiteAliases...),
		EvidenceRef: n.resolveEvidence(f.str(evidenceAliases...)),
		Settled:     settled(f),
		Status:      domain.StatusPending,
		Raw:         append(json.RawMessage(nil), rec.Body...),
	}
	if tx.ID == "" && tx.FundID == "" && tx.ExternalID == "" && tx.UTRNumber == "" && tx.NestedID == "" {
		return models.Transaction{}, "no identifier"
	}

	tx.Channel, tx.Method = inferChannel(f, rec.Hint)
	tx.Timestamp = n.timestamp(f)
	return tx, ""
}

func settled(f fields) bool {
	if v := f.first(settledAliases...); v != nil {
		return truthy(v)
	}
	if s := f.str(statusAliases...); s != "" {
		return truthy(s)
	}
	return false
}

// inferChannel decides the channel from, in order: explicit type fields,
// payout markers, the delivery hint, and the top-up default. Method fields
// only ever pick the settlement method of a top-up; payouts settle by bank.
func inferChannel(f fields, hint domain.PendingList) (domain.Channel, domain.Method) {
	channel, method := classifyType(strings.ToLower(f.str(typeAliases...)))

	switch {
	case channel != "":
	case hasPayoutMarker(f):
		channel = domain.ChannelPayout
	case hint.Valid():
		channel = hint.Channel()
	default:
		channel = domain.ChannelTopup
	}

	if channel == domain.ChannelPayout {
		return domain.ChannelPayout, domain.MethodBank
	}
	if method == "" {
		method = classifyMethod(strings.ToLower(f.str(methodAliases...)))
	}
	if method == "" && hint.Valid() && hint.Channel() == domain.ChannelTopup {
		method = hint.Method()
	}
	if method == "" {
		switch {
		case f.str(upiIDAliases...) != "" && f.str(accountNoAliases...) == "":
			method = domain.MethodUPI
		default:
			method = domain.MethodBank
		}
	}
	return domain.ChannelTopup, method
}

func classifyMethod(m string) domain.Method {
	switch {
	case m == "":
		return ""
	case strings.Contains(m, "upi"):
		return domain.MethodUPI
	case strings.Contains(m, "bank"), strings.Contains(m, "imps"), strings.Contains(m, "neft"), strings.Contains(m, "rtgs"):
		return domain.MethodBank
	}
	return ""
}

func classifyType(t string) (domain.Channel, domain.Method) {
	switch {
	case t == "":
		return "", ""
	case strings.Contains(t, "withdraw"), strings.Contains(t, "payout"):
		return domain.ChannelPayout, domain.MethodBank
	case strings.Contains(t, "upi"):
		return domain.ChannelTopup, domain.MethodUPI
	case strings.Contains(t, "bank"), strings.Contains(t, "imps"), strings.Contains(t, "neft"), strings.Contains(t, "rtgs"):
		return domain.ChannelTopup, domain.MethodBank
	case strings.Contains(t, "deposit"), strings.Contains(t, "topup"), strings.Contains(t, "top-up"), strings.Contains(t, "fund"):
		return domain.ChannelTopup, ""
	}
	return "", ""
}

func hasPayoutMarker(f fields) bool {
	for _, marker := range payoutMarkers {
		v, ok := f[marker]
		if !ok || v == nil {
			continue
		}
		if _, isBool := v.(bool); isBool {
			if truthy(v) {
				return true
			}
			continue
		}
		if scalarString(v) != "" {
			return true
		}
	}
	return false
}

func (n *Normalizer) timestamp(f fields) time.Time {
	for _, group := range [][]string{createdAliases, updatedAliases, eventTimeAliases} {
		if ts, ok := parseTime(f.first(group...)); ok {
			return ts
		}
	}
	return n.clock()
}

func parseTime(v any) (time.Time, bool) {
	switch val := v.(type) {
	case json.Number:
		return fromEpoch(val.String())
	case string:
		s := strings.TrimSpace(val)
		if s == "" {
			return time.Time{}, false
		}
		if ts, ok := fromEpoch(s); ok {
			return ts, true
		}
		for _, layout := range timeLayouts {
			if ts, err := time.ParseInLocation(layout, s, time.Local); err == nil {
				return ts, true
			}
		}
	}
	return time.Time{}, false
}

// fromEpoch accepts seconds or milliseconds since the epoch. Values before
// 2001 are rejected so that compact dates are not read as epochs.
func fromEpoch(s string) (time.Time, bool) {
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || f < 1e9 {
		return time.Time{}, false
	}
	if f >= 1e12 {
		return time.UnixMilli(int64(f)), true
	}
	return time.Unix(int64(f), 0), true
}

// resolveEvidence joins a relative evidence path onto the configured file base.
// Absolute URLs and data URIs are returned unchanged.
func (n *Normalizer) resolveEvidence(ref string) string {
	if ref == "" {
		return ""
	}
	if u, err := url.Parse(ref); err == nil && u.Scheme != "" {
		return ref
	}
	if strings.HasPrefix(ref, "//") || n.fileBase == nil {
		return ref
	}
	return n.fileBase.JoinPath(strings.TrimLeft(ref, "/")).String()
}
