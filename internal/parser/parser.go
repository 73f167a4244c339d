package parser

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"mpesa-ledger-service/internal/categorize"
	"mpesa-ledger-service/internal/models"
	"mpesa-ledger-service/internal/scorer"

	"github.com/shopspring/decimal"
)

// Parser runs the full SMS pipeline: classification, normalization,
// pattern matching, field extraction, category suggestion and confidence
// scoring. It holds no mutable state, so one Parser can serve concurrent
// callers.
type Parser struct {
	scoring *scorer.Config
	now     func() time.Time
}

// New creates a Parser with the production scoring weights.
func New() *Parser {
	return NewWithConfig(scorer.DefaultConfig())
}

// NewWithConfig creates a Parser with custom scoring weights.
func NewWithConfig(cfg *scorer.Config) *Parser {
	if cfg == nil {
		cfg = scorer.DefaultConfig()
	}
	return &Parser{scoring: cfg, now: time.Now}
}

// WithClock overrides the reference time used to resolve two-digit years.
// Intended for tests.
func (p *Parser) WithClock(now func() time.Time) *Parser {
	p.now = now
	return p
}

// Confidence the generic fallback assigns when no structural pattern
// matched but the message carries a currency amount.
const genericConfidence = 0.4

var (
	// Ancillary signals graded by the scorer. Balance and fee mentions and
	// a complete date+time pair each nudge confidence up slightly.
	dateShapeRe = regexp.MustCompile(`\d{1,2}/\d{1,2}/\d{2,4}`)
	timeShapeRe = regexp.MustCompile(`(?i)\d{1,2}:\d{2}\s*(?:AM|PM)`)
)

// Parse extracts a typed transaction from one raw SMS. The second return
// is false when the text is not a mobile-money notification or no amount
// could be found anywhere; parsing never returns an error.
func (p *Parser) Parse(raw string) (*models.ParsedMessage, bool) {
	if strings.TrimSpace(raw) == "" {
		return nil, false
	}
	if !IsMobileMoneyMessage(raw) {
		return nil, false
	}

	normalized := Normalize(raw)

	entry, groups, ok := matchPatternBank(normalized)
	if !ok {
		return p.parseGeneric(raw, normalized)
	}

	amount, ok := ExtractAmount(groups["amount"])
	if !ok {
		return p.parseGeneric(raw, normalized)
	}

	msg := &models.ParsedMessage{
		Kind:        entry.kind,
		Direction:   models.DirectionForKind(entry.kind),
		Amount:      amount,
		Reference:   groups["account"],
		ContentHash: ContentHash(raw),
	}

	if ref := groups["ref"]; ref != "" {
		msg.ProviderReference = strings.ToUpper(ref)
	}
	if phone, ok := ExtractPhoneNumber(groups["phone"]); ok {
		msg.CounterpartyPhone = phone
	}
	if ts, ok := ParseTimestamp(groups["date"], groups["time"], p.now()); ok {
		msg.Timestamp = &ts
	}

	msg.Counterparty = p.resolveCounterparty(entry.kind, groups, msg.CounterpartyPhone)

	if balance, ok := probeAmount(balanceProbeRe, normalized); ok {
		msg.BalanceAfter = &balance
	}

	p.applyOverdraftDetails(msg, groups, normalized)
	p.applyFees(msg, raw, groups)

	msg.Description = buildDescription(entry.kind, msg.Counterparty, amount, msg.Reference)
	msg.SuggestedCategory = categorize.Suggest(raw, msg.Counterparty)
	// The pattern bonus is reserved for the modern sent/received shapes;
	// other structural matches score on their extracted fields alone.
	patternBonus := entry.modern &&
		(entry.kind == models.KindSent || entry.kind == models.KindReceived)

	msg.Confidence, msg.RequiresReview = p.scoring.Score(scorer.Signals{
		ModernShape:        HasModernReferenceShape(raw),
		PatternMatched:     patternBonus,
		Amount:             amount,
		Recipient:          msg.Counterparty,
		RecipientIsNumeric: looksNumeric(msg.Counterparty),
		ProviderReference:  msg.ProviderReference,
		HasBalance:         hasBalanceMention(raw),
		HasFeeText:         hasFeeMention(raw),
		HasDateTime:        dateShapeRe.MatchString(raw) && timeShapeRe.MatchString(raw),
	})

	return msg, true
}

// parseGeneric is the last-resort extraction for classified messages no
// bank pattern recognizes: a bare amount, an optional reference token, a
// fixed low confidence and a mandatory review flag.
func (p *Parser) parseGeneric(raw, normalized string) (*models.ParsedMessage, bool) {
	amountMatch := genericAmountRe.FindStringSubmatch(normalized)
	if amountMatch == nil {
		return nil, false
	}
	amount, ok := ExtractAmount(amountMatch[1])
	if !ok || amount.IsZero() {
		return nil, false
	}

	msg := &models.ParsedMessage{
		Kind:              models.KindGeneric,
		Direction:         models.DirectionForKind(models.KindGeneric),
		Amount:            amount,
		ContentHash:       ContentHash(raw),
		Confidence:        genericConfidence,
		RequiresReview:    true,
		SuggestedCategory: categorize.CategoryOther,
		Description:       fmt.Sprintf("M-Pesa Transaction - %s", amount.StringFixed(2)),
	}

	if refMatch := genericRefRe.FindStringSubmatch(normalized); refMatch != nil {
		msg.ProviderReference = strings.ToUpper(strings.TrimSpace(refMatch[1]))
	}

	return msg, true
}

// resolveCounterparty derives the display counterparty for a kind. Loan
// and repayment notifications have no named party, and airtime purchases
// name the target line instead.
func (p *Parser) resolveCounterparty(kind models.TransactionKind, groups map[string]string, phone string) string {
	switch kind {
	case models.KindOverdraftLoan:
		return "Fuliza M-PESA Loan"
	case models.KindOverdraftRepayment:
		return "Fuliza M-PESA Repayment"
	case models.KindAirtime:
		if phone != "" {
			return "Airtime for " + phone
		}
		return "Airtime Purchase"
	default:
		return CleanRecipientName(groups["recipient"])
	}
}

// applyOverdraftDetails fills the overdraft block from the loan pattern's
// named groups and the independent limit probe. Repayment messages state
// the replenished limit rather than the outstanding debt.
func (p *Parser) applyOverdraftDetails(msg *models.ParsedMessage, groups map[string]string, normalized string) {
	details := &models.OverdraftDetails{}
	found := false

	if outstanding, ok := ExtractAmount(groups["outstanding"]); ok && groups["outstanding"] != "" {
		details.Outstanding = &outstanding
		found = true
	}
	if due := groups["duedate"]; due != "" {
		details.DueDate = due
		found = true
	}
	if limit, ok := probeAmount(limitProbeRe, normalized); ok {
		details.Limit = &limit
		found = true
	}

	if found {
		msg.Overdraft = details
	}
}

// applyFees merges the fee-vocabulary probe results with the access fee
// captured structurally by the overdraft loan pattern, then fixes up the
// convenience pointers and the total.
func (p *Parser) applyFees(msg *models.ParsedMessage, raw string, groups map[string]string) {
	breakdown, total := ExtractFees(raw)

	if accessStr := groups["accessfee"]; accessStr != "" {
		if access, ok := ExtractAmount(accessStr); ok {
			if _, present := breakdown[models.FeeAccess]; !present {
				breakdown[models.FeeAccess] = access
				total = total.Add(access)
			}
		}
	}

	if len(breakdown) == 0 {
		return
	}

	msg.FeeBreakdown = breakdown
	msg.TotalFees = total
	if fee, ok := breakdown[models.FeeTransaction]; ok {
		f := fee
		msg.TransactionFee = &f
	}
	if fee, ok := breakdown[models.FeeAccess]; ok {
		f := fee
		msg.AccessFee = &f
	}
}

// probeAmount runs a single-group amount regexp over the text and parses
// the capture.
func probeAmount(re *regexp.Regexp, text string) (decimal.Decimal, bool) {
	match := re.FindStringSubmatch(text)
	if match == nil {
		return decimal.Zero, false
	}
	return ExtractAmount(match[1])
}

func hasBalanceMention(raw string) bool {
	lower := strings.ToLower(raw)
	return strings.Contains(lower, "new m-pesa balance") || strings.Contains(lower, "balance is")
}

func hasFeeMention(raw string) bool {
	return strings.Contains(strings.ToLower(raw), "transaction cost")
}

// buildDescription renders the human-readable summary line stored on the
// transaction. Well-known billers get a more specific phrasing.
func buildDescription(kind models.TransactionKind, counterparty string, amount decimal.Decimal, reference string) string {
	lower := strings.ToLower(counterparty)

	switch kind {
	case models.KindOverdraftLoan:
		return fmt.Sprintf("Fuliza Loan - KSh %s", amount.StringFixed(2))
	case models.KindOverdraftRepayment:
		return fmt.Sprintf("Fuliza Repayment - KSh %s", amount.StringFixed(2))

	case models.KindReceived, models.KindCompoundReceived:
		if counterparty != "" {
			return "Received from " + counterparty
		}
		return "Money Received"

	case models.KindSent:
		if counterparty == "" {
			return "Money Sent"
		}
		switch {
		case strings.Contains(lower, "kplc") || strings.Contains(lower, "kenya power"):
			return withAccount("Electricity Payment - "+counterparty, reference)
		case strings.Contains(lower, "safaricom") && strings.Contains(lower, "data"):
			return "Data Bundle Purchase - " + counterparty
		case strings.Contains(lower, "safaricom"):
			return "Airtime Purchase - " + counterparty
		case strings.Contains(lower, "water"):
			return withAccount("Water Bill Payment - "+counterparty, reference)
		default:
			desc := "Payment to " + counterparty
			if reference != "" {
				desc += fmt.Sprintf(" (Ref: %s)", reference)
			}
			return desc
		}

	case models.KindWithdrawal:
		if counterparty != "" {
			return "Cash Withdrawal - " + counterparty
		}
		return "Cash Withdrawal"

	case models.KindAirtime:
		return "Airtime Purchase"

	case models.KindPaybill:
		desc := "Paybill Payment"
		if counterparty != "" {
			desc = "Paybill Payment - " + counterparty
		}
		return withAccount(desc, reference)

	case models.KindTill:
		if counterparty != "" {
			return "Till Payment - " + counterparty
		}
		return "Till Payment"

	default:
		return "M-Pesa Transaction"
	}
}

func withAccount(desc, reference string) string {
	if reference != "" {
		return desc + fmt.Sprintf(" (Account: %s)", reference)
	}
	return desc
}
