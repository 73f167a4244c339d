package parser

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"mpesa-ledger-service/internal/models"

	"github.com/nyaruka/phonenumbers"
	"github.com/shopspring/decimal"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

var (
	amountCleanRe = regexp.MustCompile(`[,\s]`)

	dayFirstDateRe  = regexp.MustCompile(`(\d{1,2})[/\-](\d{1,2})[/\-](\d{2,4})`)
	yearFirstDateRe = regexp.MustCompile(`(\d{4})/(\d{1,2})/(\d{1,2})`)
	clockTimeRe     = regexp.MustCompile(`(?i)(\d{1,2}):(\d{2})\s*(AM|PM)?`)

	phoneCleanRe    = regexp.MustCompile(`[^\d+]`)
	phoneFallbackRe = regexp.MustCompile(`^(\+254|254|0)\d{9}$`)

	digitsOnlyRe = regexp.MustCompile(`^[0-9]+$`)
)

var titleCaser = cases.Title(language.English)

// ExtractAmount parses a captured amount substring into an exact decimal,
// stripping thousands separators. A missing, malformed or negative value is
// an extraction failure for that field, never an error.
func ExtractAmount(s string) (decimal.Decimal, bool) {
	s = amountCleanRe.ReplaceAllString(s, "")
	if s == "" {
		return decimal.Zero, false
	}

	d, err := decimal.NewFromString(s)
	if err != nil || d.IsNegative() {
		return decimal.Zero, false
	}
	return d, true
}

// resolveTwoDigitYear expands a two-digit year against the reference time.
// A year within five of the current year, in either direction, stays in the
// current century; recent statements dated just behind the clock are the
// common case. Otherwise a year landing fifty or more years ahead is read
// as the previous century.
func resolveTwoDigitYear(yy int, now time.Time) int {
	century := now.Year() / 100 * 100
	nowYY := now.Year() % 100

	diff := yy - nowYY
	if diff < 0 {
		diff = -diff
	}
	if diff <= 5 {
		return century + yy
	}

	ahead := (yy - nowYY + 100) % 100
	if ahead >= 50 {
		return century + yy - 100
	}
	return century + yy
}

// ParseTimestamp builds an event timestamp from captured date and time
// tokens. Supported date shapes are day-first D/M/YY and D-M-YY plus
// YYYY/M/D; time shapes are H:MM AM/PM and 24-hour HH:MM. Invalid
// month/day/hour/minute combinations fail silently, leaving the field
// empty rather than aborting the parse. A constructed date landing more
// than 365 days in the future is reinterpreted one century earlier.
func ParseTimestamp(dateStr, timeStr string, now time.Time) (time.Time, bool) {
	if dateStr == "" || timeStr == "" {
		return time.Time{}, false
	}

	var year, month, day int
	if m := yearFirstDateRe.FindStringSubmatch(dateStr); m != nil {
		year, _ = strconv.Atoi(m[1])
		month, _ = strconv.Atoi(m[2])
		day, _ = strconv.Atoi(m[3])
	} else if m := dayFirstDateRe.FindStringSubmatch(dateStr); m != nil {
		day, _ = strconv.Atoi(m[1])
		month, _ = strconv.Atoi(m[2])
		year, _ = strconv.Atoi(m[3])
		if year < 100 {
			year = resolveTwoDigitYear(year, now)
		}
	} else {
		return time.Time{}, false
	}

	tm := clockTimeRe.FindStringSubmatch(timeStr)
	if tm == nil {
		return time.Time{}, false
	}
	hour, _ := strconv.Atoi(tm[1])
	minute, _ := strconv.Atoi(tm[2])

	switch strings.ToUpper(tm[3]) {
	case "PM":
		if hour != 12 {
			hour += 12
		}
	case "AM":
		if hour == 12 {
			hour = 0
		}
	}

	if month < 1 || month > 12 || day < 1 || day > 31 || hour > 23 || minute > 59 {
		return time.Time{}, false
	}

	ts := time.Date(year, time.Month(month), day, hour, minute, 0, 0, time.UTC)
	// time.Date normalizes out-of-range days (Feb 30 becomes Mar 2); treat
	// any normalization as an invalid token.
	if ts.Day() != day || ts.Month() != time.Month(month) {
		return time.Time{}, false
	}

	// Guard against a systematically misparsed year.
	if ts.After(now.AddDate(0, 0, 365)) {
		ts = ts.AddDate(-100, 0, 0)
	}

	return ts, true
}

// ExtractPhoneNumber normalizes a captured phone token to international
// E.164 format, parsing with Kenya as the default region. When structured
// parsing rejects the token, a conservative shape check accepts the
// familiar 0XXXXXXXXX / 254XXXXXXXXX / +254XXXXXXXXX forms as-is.
func ExtractPhoneNumber(s string) (string, bool) {
	cleaned := phoneCleanRe.ReplaceAllString(s, "")
	if cleaned == "" {
		return "", false
	}

	if parsed, err := phonenumbers.Parse(cleaned, "KE"); err == nil {
		if phonenumbers.IsValidNumber(parsed) {
			return phonenumbers.Format(parsed, phonenumbers.E164), true
		}
	}

	if phoneFallbackRe.MatchString(cleaned) {
		return cleaned, true
	}
	return "", false
}

// CleanRecipientName tidies a captured counterparty name for display:
// whitespace collapsed, shouty or all-lowercase words re-cased to title
// case, and known provider name variants collapsed to one canonical label.
func CleanRecipientName(s string) string {
	name := CollapseWhitespace(s)
	if name == "" {
		return ""
	}

	upper := strings.ToUpper(name)
	if strings.Contains(upper, "SAFARICOM") {
		switch {
		case strings.Contains(upper, "DATA BUNDLES"):
			return "Safaricom Data Bundles"
		case strings.Contains(upper, "AIRTIME"):
			return "Safaricom Airtime"
		default:
			return "Safaricom"
		}
	}

	words := strings.Split(name, " ")
	for i, word := range words {
		if len(word) <= 2 {
			continue
		}
		if word == strings.ToUpper(word) || word == strings.ToLower(word) {
			words[i] = titleCaser.String(strings.ToLower(word))
		}
	}
	return strings.Join(words, " ")
}

// feeProbe is one independent fee-vocabulary scan. Each probe is optional
// and scans the whole whitespace-normalized original text, so a fee missed
// by the structural pattern is still accounted for.
type feeProbe struct {
	kind models.FeeKind
	re   *regexp.Regexp
}

var feeProbes = []feeProbe{
	{models.FeeTransaction, regexp.MustCompile(`(?i)transaction (?:cost|fee)[:\s,]*(?:(?:ksh?|kes)\.?\s*)?([0-9,]+(?:\.[0-9]{1,2})?)`)},
	{models.FeeAccess, regexp.MustCompile(`(?i)access fee(?: charged)?[:\s,]*(?:(?:ksh?|kes)\.?\s*)?([0-9,]+(?:\.[0-9]{1,2})?)`)},
	{models.FeeService, regexp.MustCompile(`(?i)service fee[:\s,]*(?:(?:ksh?|kes)\.?\s*)?([0-9,]+(?:\.[0-9]{1,2})?)`)},
	{models.FeeProcessing, regexp.MustCompile(`(?i)processing fee[:\s,]*(?:(?:ksh?|kes)\.?\s*)?([0-9,]+(?:\.[0-9]{1,2})?)`)},
	{models.FeeATM, regexp.MustCompile(`(?i)atm fee[:\s,]*(?:(?:ksh?|kes)\.?\s*)?([0-9,]+(?:\.[0-9]{1,2})?)`)},
	{models.FeeBank, regexp.MustCompile(`(?i)bank charges?[:\s,]*(?:(?:ksh?|kes)\.?\s*)?([0-9,]+(?:\.[0-9]{1,2})?)`)},
	{models.FeeMerchant, regexp.MustCompile(`(?i)merchant fee[:\s,]*(?:(?:ksh?|kes)\.?\s*)?([0-9,]+(?:\.[0-9]{1,2})?)`)},
	{models.FeeInterest, regexp.MustCompile(`(?i)interest charged?[:\s,]*(?:(?:ksh?|kes)\.?\s*)?([0-9,]+(?:\.[0-9]{1,2})?)`)},
	{models.FeeLatePayment, regexp.MustCompile(`(?i)late payment fee[:\s,]*(?:(?:ksh?|kes)\.?\s*)?([0-9,]+(?:\.[0-9]{1,2})?)`)},
}

// ExtractFees runs the fee-vocabulary probes over the whitespace-normalized
// original message. Zero-value transaction fees are retained in the
// breakdown because the provider states them explicitly; zero-value fees of
// other kinds are dropped as noise.
func ExtractFees(raw string) (map[models.FeeKind]decimal.Decimal, decimal.Decimal) {
	text := CollapseWhitespace(raw)
	breakdown := make(map[models.FeeKind]decimal.Decimal)
	total := decimal.Zero

	for _, probe := range feeProbes {
		match := probe.re.FindStringSubmatch(text)
		if match == nil {
			continue
		}
		fee, ok := ExtractAmount(match[1])
		if !ok {
			continue
		}
		if fee.IsZero() && probe.kind != models.FeeTransaction {
			continue
		}
		breakdown[probe.kind] = fee
		total = total.Add(fee)
	}

	return breakdown, total
}

// looksNumeric reports whether a cleaned string is digits only, used to
// grade recipient-name quality in scoring.
func looksNumeric(s string) bool {
	return digitsOnlyRe.MatchString(s)
}
