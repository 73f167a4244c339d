package parser

import (
	"regexp"

	"mpesa-ledger-service/internal/models"
)

// patternEntry ties one transaction kind to the regexps that recognize it.
// Entries are evaluated in bank order against the normalized text and the
// first successful match wins; there is no scoring across patterns.
type patternEntry struct {
	kind     models.TransactionKind
	modern   bool
	matchers []*regexp.Regexp
}

const (
	refGroup    = `(?P<ref>[a-z0-9]{6,12})`
	moneyGroup  = `(?:ksh|kes)\s*(?P<amount>[0-9,]+(?:\.[0-9]{1,2})?)`
	dateGroup   = `(?P<date>[0-9/\-]+)`
	timeGroup   = `(?P<time>[0-9:]+\s*(?:am|pm)?)`
	onAtClause  = `\s+on\s+` + dateGroup + `\s+at\s+` + timeGroup
	phoneClause = `(?P<phone>(?:\+?254|0)[0-9]{9})`
)

// patternBank is ordered most-specific first. Compound and overdraft shapes
// must precede the plain sent/received shapes: a received-with-repayment
// message would otherwise be captured only partially by the generic
// received pattern, dropping the swept repayment leg.
var patternBank = []patternEntry{
	{
		kind:   models.KindCompoundReceived,
		modern: true,
		matchers: []*regexp.Regexp{
			regexp.MustCompile(`^` + refGroup + ` confirmed\.?\s*you have received ` + moneyGroup +
				` from (?P<recipient>[^.]+?)(?:\s+` + phoneClause + `)?(?:` + onAtClause + `)?\..*?` +
				`(?:ksh|kes)\s*[0-9,]+(?:\.[0-9]{1,2})?\s+from your m-pesa has been used to (?:pay|repay).*?fuliza`),
		},
	},
	{
		kind:   models.KindOverdraftLoan,
		modern: true,
		matchers: []*regexp.Regexp{
			regexp.MustCompile(`^` + refGroup + ` confirmed\.?\s*fuliza m-pesa amount is ` + moneyGroup +
				`\.?\s*access fee charged (?:ksh|kes)\s*(?P<accessfee>[0-9,]+(?:\.[0-9]{1,2})?)` +
				`\.?\s*total fuliza m-pesa outstanding amount is (?:ksh|kes)\s*(?P<outstanding>[0-9,]+(?:\.[0-9]{1,2})?)` +
				`\s+due on (?P<duedate>[0-9/]+)`),
		},
	},
	{
		kind:   models.KindOverdraftRepayment,
		modern: true,
		matchers: []*regexp.Regexp{
			regexp.MustCompile(`^` + refGroup + ` confirmed\.?\s*` + moneyGroup +
				` from your m-pesa has been used to (?:pay|repay).*?fuliza`),
			regexp.MustCompile(`^` + refGroup + ` confirmed\.?\s*` + moneyGroup +
				` sent to (?:pay|repay) fuliza`),
		},
	},
	{
		kind:   models.KindSent,
		modern: true,
		matchers: []*regexp.Regexp{
			// Service payments carry an account token between recipient and
			// the date clause; person-to-person payments do not.
			regexp.MustCompile(`^` + refGroup + ` confirmed\.?\s*` + moneyGroup +
				` sent to (?P<recipient>.+?) for account (?P<account>\S+)` + onAtClause),
			regexp.MustCompile(`^` + refGroup + ` confirmed\.?\s*` + moneyGroup +
				` sent to (?P<recipient>.+?)(?:\s+` + phoneClause + `)?` + onAtClause),
			regexp.MustCompile(`^` + refGroup + ` confirmed\.?\s*` + moneyGroup +
				` sent to (?P<recipient>[^.]+?)(?:\s+` + phoneClause + `)?(?:\.|$)`),
		},
	},
	{
		kind:   models.KindReceived,
		modern: true,
		matchers: []*regexp.Regexp{
			regexp.MustCompile(`^` + refGroup + ` confirmed\.?\s*you have received ` + moneyGroup +
				` from (?P<recipient>.+?)(?:\s+` + phoneClause + `)?` + onAtClause),
			regexp.MustCompile(`^` + refGroup + ` confirmed\.?\s*you have received ` + moneyGroup +
				` from (?P<recipient>[^.]+?)(?:\s+` + phoneClause + `)?(?:\.|$)`),
			regexp.MustCompile(`^` + refGroup + ` confirmed\.?\s*` + moneyGroup +
				` received from (?P<recipient>.+?)\s+` + phoneClause),
		},
	},
	{
		kind: models.KindPaybill,
		matchers: []*regexp.Regexp{
			regexp.MustCompile(moneyGroup + ` (?:sent|paid) to (?P<recipient>.+?) paybill (?P<account>[0-9]+)`),
		},
	},
	{
		kind: models.KindTill,
		matchers: []*regexp.Regexp{
			regexp.MustCompile(moneyGroup + ` (?:sent|paid) to (?P<recipient>.+?) till (?P<account>[0-9]+)`),
		},
	},
	{
		kind: models.KindReceived,
		matchers: []*regexp.Regexp{
			regexp.MustCompile(`(?:you have )?received ` + moneyGroup +
				` from (?P<recipient>[^.]+?)(?:\s+(?P<phone>[0-9+][0-9+\- ]{8,}))?(?:\.|$)`),
		},
	},
	{
		kind: models.KindSent,
		matchers: []*regexp.Regexp{
			regexp.MustCompile(`you have paid ` + moneyGroup + ` to (?P<recipient>[^.]+)`),
			regexp.MustCompile(moneyGroup + ` sent to (?P<recipient>[^.]+?)(?:` + onAtClause + `)?(?:\.|$)`),
		},
	},
	{
		kind: models.KindWithdrawal,
		matchers: []*regexp.Regexp{
			regexp.MustCompile(`(?:you have )?withdrawn? ` + moneyGroup + ` from (?P<recipient>[^.]+)`),
		},
	},
	{
		kind: models.KindAirtime,
		matchers: []*regexp.Regexp{
			regexp.MustCompile(`(?:you have )?(?:purchased|bought) airtime ` + moneyGroup +
				`(?: for (?P<phone>[0-9+][0-9+\- ]{6,}))?`),
		},
	},
}

// Probes evaluated independently of the pattern bank. Running these over
// the whole message is more reliable than trailing optional groups inside
// the bank patterns, which a lazy match can skip even when present.
var (
	balanceProbeRe  = regexp.MustCompile(`(?i)m-?pesa balance (?:is\s*)?(?:ksh?|kes)\.?\s*([0-9,]+(?:\.[0-9]{1,2})?)`)
	limitProbeRe    = regexp.MustCompile(`(?i)available fuliza m-?pesa limit is (?:ksh?|kes)\.?\s*([0-9,]+(?:\.[0-9]{1,2})?)`)
	genericAmountRe = regexp.MustCompile(`(?:ksh|kes)\s*([0-9,]+(?:\.[0-9]{1,2})?)`)
	genericRefRe    = regexp.MustCompile(`(?:transaction|receipt|ref)[:\s]+([a-z0-9\-]{6,})`)
)

// namedGroups maps a match's named capture groups to their captured text,
// omitting groups that did not participate.
func namedGroups(re *regexp.Regexp, match []string) map[string]string {
	groups := make(map[string]string)
	for i, name := range re.SubexpNames() {
		if name == "" || i >= len(match) || match[i] == "" {
			continue
		}
		groups[name] = match[i]
	}
	return groups
}

// matchPatternBank tries each bank entry in order against the normalized
// text and returns the first match.
func matchPatternBank(normalized string) (*patternEntry, map[string]string, bool) {
	for i := range patternBank {
		entry := &patternBank[i]
		for _, re := range entry.matchers {
			if match := re.FindStringSubmatch(normalized); match != nil {
				return entry, namedGroups(re, match), true
			}
		}
	}
	return nil, nil, false
}
