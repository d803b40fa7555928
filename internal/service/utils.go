package service

import (
	"errors"
	"html"
	"strings"
	"unicode"

	"github.com/ayo6706/payment-console/internal/store"
	"github.com/microcosm-cc/bluemonday"
)

const maxReasonLength = 500

var reasonPolicy = bluemonday.StrictPolicy()

// sanitizeReason strips markup and control characters from a free-text
// reject reason before it is sent anywhere.
func sanitizeReason(s string) string {
	// The policy entity-encodes what it keeps; the reason is plain text, not HTML.
	s = html.UnescapeString(reasonPolicy.Sanitize(s))
	s = strings.Map(func(r rune) rune {
		if unicode.IsPrint(r) || r == '\n' {
			return r
		}
		return -1
	}, s)
	s = strings.TrimSpace(s)
	if r := []rune(s); len(r) > maxReasonLength {
		s = string(r[:maxReasonLength])
	}
	return s
}

func isStale(err error) bool {
	return errors.Is(err, store.ErrStaleGeneration) || errors.Is(err, store.ErrClosed)
}
