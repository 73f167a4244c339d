// Package decomposer splits one parsed mobile-money message into the set
// of monetary movements it implies, so every shilling the message moves is
// accounted for: the primary transfer, the carrier fee, the overdraft
// access fee, and the automatic overdraft repayment swept out of an
// incoming transfer.
package decomposer

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"mpesa-ledger-service/internal/categorize"
	"mpesa-ledger-service/internal/models"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// SourceSMS marks movements created from an SMS import.
const SourceSMS = "sms"

// Confidence assigned to the non-primary legs. Fee amounts are stated
// verbatim in the message; the swept repayment is read by a secondary scan
// and graded slightly lower.
const (
	feeLegConfidence       = 1.0
	deductionLegConfidence = 0.9
)

// deductionRe finds the overdraft amount swept out of a compound received
// message. The amount must sit directly before "from your m-pesa has been
// used to pay/repay"; a looser scan would capture the received amount,
// which appears earlier in the same message.
var deductionRe = regexp.MustCompile(`(?:ksh?|kes)\s*([0-9,]+(?:\.[0-9]{1,2})?)\s+from your m-?pesa has been used to (?:pay|repay)`)

// Options configures a decomposition run.
type Options struct {
	// CategoryIDs maps suggested category names to ledger category ids.
	// Unmapped names fall back to the General id.
	CategoryIDs map[string]string

	// NewID generates movement group ids. Defaults to uuid.NewString;
	// overridable for deterministic tests.
	NewID func() string

	// Now supplies the fallback timestamp for messages without one.
	Now func() time.Time
}

func (o *Options) newID() string {
	if o != nil && o.NewID != nil {
		return o.NewID()
	}
	return uuid.NewString()
}

func (o *Options) now() time.Time {
	if o != nil && o.Now != nil {
		return o.Now()
	}
	return time.Now()
}

func (o *Options) categoryID(name string) string {
	if o == nil || o.CategoryIDs == nil {
		return ""
	}
	if id, ok := o.CategoryIDs[name]; ok {
		return id
	}
	return o.CategoryIDs["General"]
}

// Decompose turns a parsed message into its linked movements. The first
// movement is always the primary; non-primary legs reference it through
// ParentRef. The signed sum over the returned group equals the net cash
// effect of the message to the minor unit.
func Decompose(parsed *models.ParsedMessage, originalText string, opts *Options) []models.MonetaryMovement {
	if parsed == nil {
		return nil
	}

	groupID := opts.newID()
	occurredAt := opts.now()
	if parsed.Timestamp != nil {
		occurredAt = *parsed.Timestamp
	}

	primary := models.MonetaryMovement{
		ID:                opts.newID(),
		Amount:            parsed.Amount,
		Direction:         parsed.Direction,
		CategoryID:        opts.categoryID(parsed.SuggestedCategory),
		Description:       parsed.Description,
		Source:            SourceSMS,
		GroupID:           groupID,
		Role:              models.RolePrimary,
		Kind:              parsed.Kind,
		Counterparty:      parsed.Counterparty,
		ProviderReference: parsed.ProviderReference,
		ContentHash:       parsed.ContentHash,
		Confidence:        parsed.Confidence,
		RequiresReview:    parsed.RequiresReview,
		OccurredAt:        occurredAt,
	}
	movements := []models.MonetaryMovement{primary}

	parentRef := primary.ProviderReference
	if parentRef == "" {
		parentRef = primary.ID
	}

	if fee := parsed.TransactionFeeAmount(); fee.IsPositive() {
		movements = append(movements, models.MonetaryMovement{
			ID:             opts.newID(),
			Amount:         fee,
			Direction:      models.DirectionDebit,
			CategoryID:     opts.categoryID(categorize.CategoryTransactionFees),
			Description:    fmt.Sprintf("M-Pesa Transaction Fee - %s", parsed.Description),
			Source:         SourceSMS,
			GroupID:        groupID,
			Role:           models.RoleFee,
			ParentRef:      parentRef,
			Kind:           parsed.Kind,
			Counterparty:   "M-Pesa Transaction Fee",
			ContentHash:    parsed.ContentHash,
			Confidence:     feeLegConfidence,
			RequiresReview: false,
			OccurredAt:     occurredAt,
		})
	}

	if fee := parsed.AccessFeeAmount(); fee.IsPositive() {
		movements = append(movements, models.MonetaryMovement{
			ID:             opts.newID(),
			Amount:         fee,
			Direction:      models.DirectionDebit,
			CategoryID:     opts.categoryID(categorize.CategoryLoansCredit),
			Description:    fmt.Sprintf("Fuliza Access Fee - %s", parsed.Description),
			Source:         SourceSMS,
			GroupID:        groupID,
			Role:           models.RoleAccessFee,
			ParentRef:      parentRef,
			Kind:           parsed.Kind,
			Counterparty:   "Fuliza Access Fee",
			ContentHash:    parsed.ContentHash,
			Confidence:     feeLegConfidence,
			RequiresReview: false,
			OccurredAt:     occurredAt,
		})
	}

	if parsed.Kind == models.KindCompoundReceived {
		if deduction, ok := extractDeduction(originalText); ok {
			movements = append(movements, models.MonetaryMovement{
				ID:             opts.newID(),
				Amount:         deduction,
				Direction:      models.DirectionDebit,
				CategoryID:     opts.categoryID(categorize.CategoryLoansCredit),
				Description:    fmt.Sprintf("Automatic Fuliza Repayment - %s", parsed.Description),
				Source:         SourceSMS,
				GroupID:        groupID,
				Role:           models.RoleOverdraftDeduction,
				ParentRef:      parentRef,
				Kind:           parsed.Kind,
				Counterparty:   "Fuliza M-PESA Repayment",
				ContentHash:    parsed.ContentHash,
				Confidence:     deductionLegConfidence,
				RequiresReview: false,
				OccurredAt:     occurredAt,
			})
		}
		// A failed secondary scan silently drops the repayment leg; the
		// primary credit still imports.
	}

	return movements
}

// extractDeduction reads the swept repayment amount out of a compound
// received message.
func extractDeduction(originalText string) (decimal.Decimal, bool) {
	match := deductionRe.FindStringSubmatch(strings.ToLower(originalText))
	if match == nil {
		return decimal.Zero, false
	}

	amount, err := decimal.NewFromString(strings.ReplaceAll(match[1], ",", ""))
	if err != nil || !amount.IsPositive() {
		return decimal.Zero, false
	}
	return amount, true
}
