// Package parser implements the SMS parsing pipeline: normalization,
// classification, the ordered pattern bank, and typed field extraction.
// Everything in this package is pure; the same input always yields the
// same output, so batches can be parsed concurrently without coordination.
package parser

import (
	"regexp"
	"strings"
)

var (
	whitespaceRe    = regexp.MustCompile(`\s+`)
	kshVariantRe    = regexp.MustCompile(`ksh\.?s?`)
	kesVariantRe    = regexp.MustCompile(`kes\.`)
	trailingPunctRe = regexp.MustCompile(`[.,;!]+\s*$`)

	// Classification probes. The reference-code shape covers messages whose
	// only provider marker is a leading code followed by the confirmation
	// word.
	modernRefShapeRe = regexp.MustCompile(`(?i)^[A-Z0-9]{6,12}\s+confirmed`)
	legacyRefShapeRe = regexp.MustCompile(`(?i)[A-Z0-9]{6,12}\s+confirmed`)
	currencyShapeRe  = regexp.MustCompile(`(?i)ksh?\.?\s*[0-9,]+(?:\.[0-9]{1,2})?`)
)

var primaryKeywords = []string{"confirmed", "mpesa", "m-pesa", "safaricom", "fuliza"}

var actionKeywords = []string{"sent to", "received from", "withdrawn", "deposited", "paid to", "purchased"}

// CollapseWhitespace trims the string and collapses runs of whitespace,
// including line breaks, into single spaces.
func CollapseWhitespace(s string) string {
	return whitespaceRe.ReplaceAllString(strings.TrimSpace(s), " ")
}

// Normalize produces the canonical lower-cased form of a raw message used
// for pattern matching: whitespace collapsed, currency spelling unified and
// trailing punctuation trimmed. It is total and never fails.
func Normalize(raw string) string {
	if raw == "" {
		return ""
	}

	msg := strings.ToLower(raw)
	msg = CollapseWhitespace(msg)
	msg = kshVariantRe.ReplaceAllString(msg, "ksh")
	msg = kesVariantRe.ReplaceAllString(msg, "kes")
	msg = trailingPunctRe.ReplaceAllString(msg, "")

	return msg
}

// IsMobileMoneyMessage decides whether a text blob is a mobile-money
// notification at all. A message qualifies when it carries a provider
// marker (primary keyword or a reference-code-plus-confirmation shape) AND
// a currency amount AND either an action keyword or a balance mention. The
// currency amount alone must never classify, which is why the conditions
// combine exactly this way.
func IsMobileMoneyMessage(raw string) bool {
	lower := strings.ToLower(raw)

	hasPrimary := false
	for _, kw := range primaryKeywords {
		if strings.Contains(lower, kw) {
			hasPrimary = true
			break
		}
	}

	hasRefShape := modernRefShapeRe.MatchString(raw) || legacyRefShapeRe.MatchString(raw)
	hasCurrency := currencyShapeRe.MatchString(raw)

	hasAction := false
	for _, kw := range actionKeywords {
		if strings.Contains(lower, kw) {
			hasAction = true
			break
		}
	}
	hasBalance := strings.Contains(lower, "balance")

	return (hasPrimary || hasRefShape) && hasCurrency && (hasAction || hasBalance)
}

// HasModernReferenceShape reports whether the raw message starts with a
// provider reference code followed by the confirmation marker. Messages of
// this shape score a higher classification base than keyword-only matches.
func HasModernReferenceShape(raw string) bool {
	return modernRefShapeRe.MatchString(raw)
}
