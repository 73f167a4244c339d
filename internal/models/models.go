// Package models defines the typed values produced by the SMS parsing
// pipeline: parsed messages, the monetary movements decomposed from them,
// and the verdict objects returned by duplicate detection.
package models

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// TransactionKind identifies the shape of mobile-money notification a
// message was matched as.
type TransactionKind string

const (
	// KindSent covers person-to-person and service payments ("sent to").
	KindSent TransactionKind = "sent"
	// KindReceived covers incoming transfers ("received from").
	KindReceived TransactionKind = "received"
	// KindWithdrawal covers agent/ATM cash withdrawals.
	KindWithdrawal TransactionKind = "withdrawal"
	// KindAirtime covers airtime purchases.
	KindAirtime TransactionKind = "airtime"
	// KindPaybill covers bill payments addressed to a paybill number.
	KindPaybill TransactionKind = "paybill"
	// KindTill covers point-of-sale payments addressed to a till number.
	KindTill TransactionKind = "till"
	// KindOverdraftLoan covers Fuliza overdraft disbursements.
	KindOverdraftLoan TransactionKind = "overdraft_loan"
	// KindOverdraftRepayment covers explicit Fuliza repayments.
	KindOverdraftRepayment TransactionKind = "overdraft_repayment"
	// KindCompoundReceived covers messages describing money received that
	// is immediately partially swept into an overdraft repayment.
	KindCompoundReceived TransactionKind = "compound_received_repayment"
	// KindGeneric is the low-confidence fallback when only a bare amount
	// could be located.
	KindGeneric TransactionKind = "generic"
)

// String returns the string representation of the kind.
func (k TransactionKind) String() string {
	return string(k)
}

// IsValid checks if the transaction kind is one of the known variants.
func (k TransactionKind) IsValid() bool {
	switch k {
	case KindSent, KindReceived, KindWithdrawal, KindAirtime, KindPaybill,
		KindTill, KindOverdraftLoan, KindOverdraftRepayment,
		KindCompoundReceived, KindGeneric:
		return true
	}
	return false
}

// Direction marks which way cash moves relative to the wallet owner.
type Direction string

const (
	// DirectionCredit represents money flowing into the wallet.
	DirectionCredit Direction = "credit"
	// DirectionDebit represents money flowing out of the wallet.
	DirectionDebit Direction = "debit"
)

// String returns the string representation of the direction.
func (d Direction) String() string {
	return string(d)
}

// IsValid checks if the direction is valid.
func (d Direction) IsValid() bool {
	return d == DirectionCredit || d == DirectionDebit
}

// Sign returns +1 for credits and -1 for debits, used when summing the net
// cash effect of a movement group.
func (d Direction) Sign() decimal.Decimal {
	if d == DirectionDebit {
		return decimal.NewFromInt(-1)
	}
	return decimal.NewFromInt(1)
}

// DirectionForKind returns the cash direction implied by a transaction kind.
// Received money and overdraft disbursements credit the wallet; everything
// else, including the generic fallback, is treated as a debit.
func DirectionForKind(kind TransactionKind) Direction {
	switch kind {
	case KindReceived, KindOverdraftLoan, KindCompoundReceived:
		return DirectionCredit
	default:
		return DirectionDebit
	}
}

// MovementRole tags a movement's position within a decomposition group.
type MovementRole string

const (
	// RolePrimary is the main cash effect of the message.
	RolePrimary MovementRole = "primary"
	// RoleFee is the carrier transaction fee leg.
	RoleFee MovementRole = "fee"
	// RoleAccessFee is the overdraft access fee leg.
	RoleAccessFee MovementRole = "access_fee"
	// RoleOverdraftDeduction is the automatic overdraft repayment swept
	// from received funds.
	RoleOverdraftDeduction MovementRole = "overdraft_deduction"
)

// String returns the string representation of the role.
func (r MovementRole) String() string {
	return string(r)
}

// IsValid checks if the movement role is valid.
func (r MovementRole) IsValid() bool {
	switch r {
	case RolePrimary, RoleFee, RoleAccessFee, RoleOverdraftDeduction:
		return true
	}
	return false
}

// FeeKind keys the fee breakdown map. Keeping the breakdown enum-keyed
// preserves the open reporting behavior without stringly-typed lookups.
type FeeKind string

const (
	FeeTransaction FeeKind = "transaction_fee"
	FeeAccess      FeeKind = "access_fee"
	FeeService     FeeKind = "service_fee"
	FeeProcessing  FeeKind = "processing_fee"
	FeeATM         FeeKind = "atm_fee"
	FeeBank        FeeKind = "bank_charge"
	FeeMerchant    FeeKind = "merchant_fee"
	FeeInterest    FeeKind = "interest_charge"
	FeeLatePayment FeeKind = "late_payment_fee"
)

// String returns the string representation of the fee kind.
func (f FeeKind) String() string {
	return string(f)
}

// OverdraftDetails carries the Fuliza-specific fields some messages expose.
type OverdraftDetails struct {
	Limit       *decimal.Decimal `json:"limit,omitempty"`
	Outstanding *decimal.Decimal `json:"outstanding,omitempty"`
	DueDate     string           `json:"due_date,omitempty"`
}

// ParsedMessage is the typed result of classifying and extracting one
// mobile-money SMS. Amount is always present and non-negative; Kind is
// always set, falling back to KindGeneric.
type ParsedMessage struct {
	Kind              TransactionKind             `json:"kind"`
	Direction         Direction                   `json:"direction"`
	Amount            decimal.Decimal             `json:"amount"`
	Counterparty      string                      `json:"counterparty,omitempty"`
	CounterpartyPhone string                      `json:"counterparty_phone,omitempty"`
	Reference         string                      `json:"reference,omitempty"`
	ProviderReference string                      `json:"provider_reference,omitempty"`
	BalanceAfter      *decimal.Decimal            `json:"balance_after,omitempty"`
	TransactionFee    *decimal.Decimal            `json:"transaction_fee,omitempty"`
	AccessFee         *decimal.Decimal            `json:"access_fee,omitempty"`
	FeeBreakdown      map[FeeKind]decimal.Decimal `json:"fee_breakdown,omitempty"`
	TotalFees         decimal.Decimal             `json:"total_fees"`
	Overdraft         *OverdraftDetails           `json:"overdraft,omitempty"`
	Timestamp         *time.Time                  `json:"timestamp,omitempty"`
	ContentHash       string                      `json:"content_hash"`
	Confidence        float64                     `json:"confidence"`
	RequiresReview    bool                        `json:"requires_review"`
	SuggestedCategory string                      `json:"suggested_category"`
	Description       string                      `json:"description"`
}

// Validate performs basic validation on the ParsedMessage.
func (pm *ParsedMessage) Validate() error {
	if !pm.Kind.IsValid() {
		return fmt.Errorf("invalid transaction kind: %s", pm.Kind)
	}
	if pm.Amount.IsNegative() {
		return fmt.Errorf("amount cannot be negative: %s", pm.Amount.String())
	}
	if !pm.Direction.IsValid() {
		return fmt.Errorf("invalid direction: %s", pm.Direction)
	}
	if strings.TrimSpace(pm.ContentHash) == "" {
		return fmt.Errorf("content hash cannot be empty")
	}
	if pm.Confidence < 0.0 || pm.Confidence > 1.0 {
		return fmt.Errorf("confidence must be between 0.0 and 1.0: %f", pm.Confidence)
	}
	return nil
}

// TransactionFeeAmount returns the extracted carrier fee or zero.
func (pm *ParsedMessage) TransactionFeeAmount() decimal.Decimal {
	if pm.TransactionFee == nil {
		return decimal.Zero
	}
	return *pm.TransactionFee
}

// AccessFeeAmount returns the extracted overdraft access fee or zero.
func (pm *ParsedMessage) AccessFeeAmount() decimal.Decimal {
	if pm.AccessFee == nil {
		return decimal.Zero
	}
	return *pm.AccessFee
}

// String returns a string representation of the ParsedMessage.
func (pm *ParsedMessage) String() string {
	return fmt.Sprintf("ParsedMessage{Kind: %s, Amount: %s, Counterparty: %s, Confidence: %.2f}",
		pm.Kind, pm.Amount.String(), pm.Counterparty, pm.Confidence)
}

// MonetaryMovement is one ledger-ready cash effect decomposed from a parsed
// message. All movements from one message share a GroupID; exactly one of
// them carries RolePrimary and an empty ParentRef. The persisted identity of
// the primary is assigned by the caller and threaded back into the
// ParentRef of the remaining legs.
type MonetaryMovement struct {
	ID                string          `json:"id,omitempty"`
	Amount            decimal.Decimal `json:"amount"`
	Direction         Direction       `json:"direction"`
	CategoryID        string          `json:"category_id"`
	Description       string          `json:"description"`
	Source            string          `json:"source"`
	GroupID           string          `json:"group_id"`
	Role              MovementRole    `json:"role"`
	ParentRef         string          `json:"parent_ref,omitempty"`
	Kind              TransactionKind `json:"kind"`
	Counterparty      string          `json:"counterparty,omitempty"`
	ProviderReference string          `json:"provider_reference,omitempty"`
	ContentHash       string          `json:"content_hash"`
	Confidence        float64         `json:"confidence"`
	RequiresReview    bool            `json:"requires_review"`
	OccurredAt        time.Time       `json:"occurred_at"`
}

// Validate performs basic validation on the MonetaryMovement.
func (m *MonetaryMovement) Validate() error {
	if m.Amount.IsNegative() {
		return fmt.Errorf("movement amount cannot be negative: %s", m.Amount.String())
	}
	if !m.Direction.IsValid() {
		return fmt.Errorf("invalid movement direction: %s", m.Direction)
	}
	if !m.Role.IsValid() {
		return fmt.Errorf("invalid movement role: %s", m.Role)
	}
	if strings.TrimSpace(m.GroupID) == "" {
		return fmt.Errorf("movement group id cannot be empty")
	}
	if m.Role == RolePrimary && m.ParentRef != "" {
		return fmt.Errorf("primary movement cannot have a parent reference")
	}
	return nil
}

// SignedAmount returns the amount signed by direction, used for the group
// net-effect invariant.
func (m *MonetaryMovement) SignedAmount() decimal.Decimal {
	return m.Amount.Mul(m.Direction.Sign())
}

// MarshalJSON implements custom JSON marshaling for MonetaryMovement so
// amounts serialize as exact decimal strings.
func (m *MonetaryMovement) MarshalJSON() ([]byte, error) {
	type Alias MonetaryMovement
	return json.Marshal(&struct {
		Amount     string `json:"amount"`
		OccurredAt string `json:"occurred_at"`
		*Alias
	}{
		Amount:     m.Amount.String(),
		OccurredAt: m.OccurredAt.Format(time.RFC3339),
		Alias:      (*Alias)(m),
	})
}

// UnmarshalJSON implements custom JSON unmarshaling for MonetaryMovement.
func (m *MonetaryMovement) UnmarshalJSON(data []byte) error {
	type Alias MonetaryMovement
	aux := &struct {
		Amount     string `json:"amount"`
		OccurredAt string `json:"occurred_at"`
		*Alias
	}{
		Alias: (*Alias)(m),
	}

	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}

	var err error
	m.Amount, err = decimal.NewFromString(aux.Amount)
	if err != nil {
		return fmt.Errorf("invalid amount format: %w", err)
	}

	m.OccurredAt, err = time.Parse(time.RFC3339, aux.OccurredAt)
	if err != nil {
		return fmt.Errorf("invalid occurred_at format: %w", err)
	}

	return nil
}

// GroupNetEffect sums the signed amounts of all movements in a group.
func GroupNetEffect(movements []MonetaryMovement) decimal.Decimal {
	net := decimal.Zero
	for i := range movements {
		net = net.Add(movements[i].SignedAmount())
	}
	return net
}

// PrimaryOf returns the primary movement of a group, or nil if the group
// has none.
func PrimaryOf(movements []MonetaryMovement) *MonetaryMovement {
	for i := range movements {
		if movements[i].Role == RolePrimary {
			return &movements[i]
		}
	}
	return nil
}

// DuplicateReason identifies which check flagged a candidate duplicate.
type DuplicateReason string

const (
	// ReasonExactMessage is an exact content-hash match.
	ReasonExactMessage DuplicateReason = "exact_message_match"
	// ReasonTransactionID is an exact provider reference code match.
	ReasonTransactionID DuplicateReason = "transaction_id_match"
	// ReasonAmountRecipient is an exact amount plus counterparty match
	// within the lookback window.
	ReasonAmountRecipient DuplicateReason = "amount_recipient_match"
	// ReasonSimilarAmount is bare amount proximity with no other
	// corroboration; it never triggers duplicate status on its own.
	ReasonSimilarAmount DuplicateReason = "similar_amount_recent"
)

// CandidateRecord is a snapshot of a previously persisted movement supplied
// by the caller's storage layer for fuzzy comparison. The detector never
// mutates or stores these.
type CandidateRecord struct {
	ID           string          `json:"id"`
	Amount       decimal.Decimal `json:"amount"`
	Counterparty string          `json:"counterparty,omitempty"`
	Reference    string          `json:"reference,omitempty"`
	ContentHash  string          `json:"content_hash,omitempty"`
	RecordedAt   time.Time       `json:"recorded_at"`
}

// DuplicateVerdict is the outcome of a layered duplicate check.
type DuplicateVerdict struct {
	IsDuplicate bool              `json:"is_duplicate"`
	Confidence  float64           `json:"confidence"`
	Reasons     []DuplicateReason `json:"reasons"`
	Candidates  []CandidateRecord `json:"candidates,omitempty"`
}

// HasReason reports whether the verdict was triggered by the given reason.
func (v *DuplicateVerdict) HasReason(reason DuplicateReason) bool {
	for _, r := range v.Reasons {
		if r == reason {
			return true
		}
	}
	return false
}
