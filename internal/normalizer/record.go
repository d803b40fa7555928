package normalizer

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/ayo6706/payment-console/internal/domain"
)

// Source identifies the ingestion channel a raw record arrived through.
type Source string

const (
	SourcePoll Source = "poll"
	SourcePush Source = "push"
)

// RawRecord is the only shape of raw data the rest of the system may hand to
// the normalizer. Hint names the payload key the record was delivered under
// and may be empty.
type RawRecord struct {
	Source Source
	Hint   domain.PendingList
	Body   json.RawMessage
}

// ErrSkip marks a single record that could not be normalized.
var ErrSkip = errors.New("normalization skip")

// SkipError describes why one record of a batch was dropped.
type SkipError struct {
	Index  int
	Source Source
	Reason string
}

func (e *SkipError) Error() string {
	return fmt.Sprintf("%s record %d skipped: %s", e.Source, e.Index, e.Reason)
}

func (e *SkipError) Unwrap() error {
	return ErrSkip
}

// fields is a raw record keyed by folded field name ("fund_id", "fundId" and
// "FundID" all fold to "fundid").
type fields map[string]any

func foldKey(k string) string {
	k = strings.ToLower(strings.TrimSpace(k))
	return strings.NewReplacer("_", "", "-", "", " ", "").Replace(k)
}

// nestedRenames lifts well-known nested objects into the flat field set.
// Keys are folded container names; values map folded child keys to the
// folded top-level key they populate.
var nestedRenames = map[string]map[string]string{
	"bank": {
		"id":            "bankid",
		"name":          "bankname",
		"accountno":     "accountno",
		"accountnumber": "accountno",
		"holdername":    "holdername",
	},
	"bankaccount": {
		"id":            "bankid",
		"bankname":      "bankname",
		"name":          "holdername",
		"holdername":    "holdername",
		"accountno":     "accountno",
		"accountnumber": "accountno",
		"number":        "accountno",
	},
	"destination": {
		"accountno":     "accountno",
		"accountnumber": "accountno",
		"bankname":      "bankname",
		"upiid":         "upiid",
		"vpa":           "upiid",
		"name":          "holdername",
	},
	"user": {
		"name":     "holdername",
		"username": "holdername",
		"website":  "website",
	},
}

var nestedContainers = []string{"bank", "bankaccount", "destination", "user"}

var nestedIDContainers = []string{"data", "transaction", "fund", "fundrequest", "payload"}

func decodeFields(body json.RawMessage) (fields, fields, error) {
	trimmed := strings.TrimSpace(string(body))
	if trimmed == "" || trimmed == "null" {
		return nil, nil, errors.New("empty record")
	}
	dec := json.NewDecoder(strings.NewReader(trimmed))
	dec.UseNumber()
	var raw map[string]any
	if err := dec.Decode(&raw); err != nil {
		return nil, nil, fmt.Errorf("not a JSON object: %w", err)
	}
	if len(raw) == 0 {
		return nil, nil, errors.New("empty object")
	}

	flat := make(fields, len(raw))
	nested := make(fields)
	for k, v := range raw {
		flat[foldKey(k)] = v
	}
	for _, container := range nestedContainers {
		renames := nestedRenames[container]
		obj, ok := flat[container].(map[string]any)
		if !ok {
			continue
		}
		for ck, cv := range obj {
			target, ok := renames[foldKey(ck)]
			if !ok {
				continue
			}
			if _, exists := flat[target]; !exists {
				flat[target] = cv
			}
		}
	}
	for _, container := range nestedIDContainers {
		obj, ok := flat[container].(map[string]any)
		if !ok {
			continue
		}
		for ck, cv := range obj {
			nested[foldKey(ck)] = cv
		}
		break
	}
	return flat, nested, nil
}

// str returns the first non-empty scalar among the aliases.
func (f fields) str(aliases ...string) string {
	for _, a := range aliases {
		if s := scalarString(f[a]); s != "" {
			return s
		}
	}
	return ""
}

// first returns the first present, non-nil value among the aliases.
func (f fields) first(aliases ...string) any {
	for _, a := range aliases {
		if v, ok := f[a]; ok && v != nil {
			if s, isStr := v.(string); isStr && strings.TrimSpace(s) == "" {
				continue
			}
			return v
		}
	}
	return nil
}

func (f fields) has(aliases ...string) bool {
	return f.first(aliases...) != nil
}

func scalarString(v any) string {
	switch val := v.(type) {
	case string:
		return strings.TrimSpace(val)
	case json.Number:
		return val.String()
	default:
		return ""
	}
}

func truthy(v any) bool {
	switch val := v.(type) {
	case bool:
		return val
	case json.Number:
		f, err := val.Float64()
		return err == nil && f != 0
	case string:
		switch strings.ToLower(strings.TrimSpace(val)) {
		case "true", "yes", "y", "1", "settled", "approved", "completed", "success", "successful", "done":
			return true
		}
	}
	return false
}
