// Package identity decides whether two differently-sourced transactions
// describe the same underlying entity.
package identity

import (
	"regexp"
	"strings"

	"github.com/ayo6706/payment-console/internal/models"
)

// DefaultMinNumericLength drops purely numeric candidates shorter than this;
// sources emit values like "0" or "1" as defaults.
const DefaultMinNumericLength = 3

var (
	whitespaceRegex = regexp.MustCompile(`\s+`)
	digitsRegex     = regexp.MustCompile(`^[0-9]+$`)
)

var placeholders = map[string]struct{}{
	"null":      {},
	"nil":       {},
	"none":      {},
	"undefined": {},
	"n/a":       {},
	"na":        {},
	"-":         {},
	"--":        {},
	"unknown":   {},
	"nan":       {},
}

// Resolver is the identity strategy consulted by the store.
type Resolver interface {
	// Keys returns the normalized identity candidates of tx. Two transactions
	// with no keys never match.
	Keys(tx models.Transaction) []string
	// SameEntity reports whether a and b share at least one key.
	SameEntity(a, b models.Transaction) bool
}

// AnyFieldResolver matches on any overlap between the candidate id fields of
// two transactions, since the sources do not share a common id field.
type AnyFieldResolver struct {
	minNumericLength int
}

// Option configures an AnyFieldResolver.
type Option func(*AnyFieldResolver)

// WithMinNumericLength overrides DefaultMinNumericLength. Values below 1 keep every numeric id.
func WithMinNumericLength(n int) Option {
	return func(r *AnyFieldResolver) {
		r.minNumericLength = n
	}
}

// NewAnyFieldResolver builds the default resolver.
func NewAnyFieldResolver(opts ...Option) *AnyFieldResolver {
	r := &AnyFieldResolver{minNumericLength: DefaultMinNumericLength}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Keys collects fund id, id, external id, UTR and the nested payload id.
func (r *AnyFieldResolver) Keys(tx models.Transaction) []string {
	candidates := [...]string{tx.FundID, tx.ID, tx.ExternalID, tx.UTRNumber, tx.NestedID}
	keys := make([]string, 0, len(candidates))
	seen := make(map[string]struct{}, len(candidates))
	for _, c := range candidates {
		key := r.normalize(c)
		if key == "" {
			continue
		}
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		keys = append(keys, key)
	}
	return keys
}

// SameEntity reports whether the key sets of a and b intersect.
func (r *AnyFieldResolver) SameEntity(a, b models.Transaction) bool {
	left := r.Keys(a)
	if len(left) == 0 {
		return false
	}
	return NewIndex(r, b).MatchesKeys(left)
}

func (r *AnyFieldResolver) normalize(value string) string {
	value = whitespaceRegex.ReplaceAllString(value, " ")
	value = strings.ToLower(strings.TrimSpace(value))
	if value == "" {
		return ""
	}
	if _, ok := placeholders[value]; ok {
		return ""
	}
	if digitsRegex.MatchString(value) {
		if strings.Trim(value, "0") == "" {
			return ""
		}
		if len(value) < r.minNumericLength {
			return ""
		}
	}
	return value
}

// Index is a key set over one or more transactions, used to test membership
// without recomputing keys for every comparison.
type Index struct {
	resolver Resolver
	keys     map[string]struct{}
}

// NewIndex indexes the given transactions.
func NewIndex(resolver Resolver, txs ...models.Transaction) *Index {
	idx := &Index{resolver: resolver, keys: make(map[string]struct{})}
	for _, tx := range txs {
		idx.Add(tx)
	}
	return idx
}

// Add indexes tx's keys.
func (i *Index) Add(tx models.Transaction) {
	for _, k := range i.resolver.Keys(tx) {
		i.keys[k] = struct{}{}
	}
}

// Matches reports whether tx shares a key with anything indexed.
func (i *Index) Matches(tx models.Transaction) bool {
	return i.MatchesKeys(i.resolver.Keys(tx))
}

// MatchesKeys reports whether any of keys is indexed.
func (i *Index) MatchesKeys(keys []string) bool {
	for _, k := range keys {
		if _, ok := i.keys[k]; ok {
			return true
		}
	}
	return false
}

// Len is the number of distinct keys indexed.
func (i *Index) Len() int {
	return len(i.keys)
}
