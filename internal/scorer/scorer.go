// Package scorer assigns a confidence score to a parsed mobile-money
// message and decides whether it needs manual review. The weights are
// policy constants carried in a config struct so deployments can tune
// them without code changes.
package scorer

import (
	"fmt"
	"regexp"

	"github.com/shopspring/decimal"
)

// Config holds the scoring weights and the review threshold. The zero
// value is not usable; start from DefaultConfig.
type Config struct {
	// Base credit for a message whose pattern matched, depending on
	// whether it has the modern reference-code shape.
	BaseWeightModern float64 `json:"base_weight_modern"`
	BaseWeightLegacy float64 `json:"base_weight_legacy"`

	// Bonus for a structural pattern match over the generic fallback.
	PatternBonus float64 `json:"pattern_bonus"`

	// Amount credit: full weight inside the plausible range, reduced
	// weight outside it.
	AmountWeight        float64 `json:"amount_weight"`
	AmountWeightOutlier float64 `json:"amount_weight_outlier"`
	RecipientWeight     float64 `json:"recipient_weight"`
	RecipientWeightWeak float64 `json:"recipient_weight_weak"`
	ReferenceWeight     float64 `json:"reference_weight"`
	ReferenceWeightWeak float64 `json:"reference_weight_weak"`

	// Per-signal bonus for ancillary details: balance text, fee text,
	// and a complete date+time pair.
	AncillaryBonus float64 `json:"ancillary_bonus"`

	// Scores below the threshold flag the message for review.
	ReviewThreshold float64 `json:"review_threshold"`
}

// DefaultConfig returns the production scoring weights.
func DefaultConfig() *Config {
	return &Config{
		BaseWeightModern:    0.4,
		BaseWeightLegacy:    0.3,
		PatternBonus:        0.1,
		AmountWeight:        0.3,
		AmountWeightOutlier: 0.2,
		RecipientWeight:     0.2,
		RecipientWeightWeak: 0.1,
		ReferenceWeight:     0.2,
		ReferenceWeightWeak: 0.1,
		AncillaryBonus:      0.05,
		ReviewThreshold:     0.8,
	}
}

// Validate checks that every weight is a sane fraction and the reduced
// tiers do not exceed their full tiers.
func (c *Config) Validate() error {
	weights := map[string]float64{
		"base_weight_modern":    c.BaseWeightModern,
		"base_weight_legacy":    c.BaseWeightLegacy,
		"pattern_bonus":         c.PatternBonus,
		"amount_weight":         c.AmountWeight,
		"amount_weight_outlier": c.AmountWeightOutlier,
		"recipient_weight":      c.RecipientWeight,
		"recipient_weight_weak": c.RecipientWeightWeak,
		"reference_weight":      c.ReferenceWeight,
		"reference_weight_weak": c.ReferenceWeightWeak,
		"ancillary_bonus":       c.AncillaryBonus,
		"review_threshold":      c.ReviewThreshold,
	}
	for name, w := range weights {
		if w < 0 || w > 1 {
			return fmt.Errorf("%s must be between 0 and 1, got %f", name, w)
		}
	}

	if c.AmountWeightOutlier > c.AmountWeight {
		return fmt.Errorf("amount_weight_outlier (%f) exceeds amount_weight (%f)", c.AmountWeightOutlier, c.AmountWeight)
	}
	if c.RecipientWeightWeak > c.RecipientWeight {
		return fmt.Errorf("recipient_weight_weak (%f) exceeds recipient_weight (%f)", c.RecipientWeightWeak, c.RecipientWeight)
	}
	if c.ReferenceWeightWeak > c.ReferenceWeight {
		return fmt.Errorf("reference_weight_weak (%f) exceeds reference_weight (%f)", c.ReferenceWeightWeak, c.ReferenceWeight)
	}
	return nil
}

// Clone returns a copy of the config.
func (c *Config) Clone() *Config {
	clone := *c
	return &clone
}

// Signals carries the extraction facts the scorer grades. It is built by
// the parser after field extraction; the scorer itself never looks at the
// message text.
type Signals struct {
	ModernShape    bool
	PatternMatched bool

	Amount             decimal.Decimal
	Recipient          string
	ProviderReference  string
	RecipientIsNumeric bool

	HasBalance  bool
	HasFeeText  bool
	HasDateTime bool
}

var (
	plausibleMin = decimal.NewFromInt(1)
	plausibleMax = decimal.NewFromInt(500000)

	strongReferenceRe = regexp.MustCompile(`^[A-Z0-9]{8,12}$`)
)

// Score computes the confidence in [0, 1] and whether the message should
// be flagged for manual review. Review is purely threshold-driven; no
// signal forces review on its own.
func (c *Config) Score(sig Signals) (float64, bool) {
	var score float64
	if sig.ModernShape {
		score = c.BaseWeightModern
	} else {
		score = c.BaseWeightLegacy
	}
	if sig.PatternMatched {
		score += c.PatternBonus
	}

	if !sig.Amount.IsZero() {
		if sig.Amount.GreaterThanOrEqual(plausibleMin) && sig.Amount.LessThanOrEqual(plausibleMax) {
			score += c.AmountWeight
		} else {
			score += c.AmountWeightOutlier
		}
	}

	if r := sig.Recipient; r != "" {
		if len(r) > 5 && !sig.RecipientIsNumeric {
			score += c.RecipientWeight
		} else if len(r) > 2 {
			score += c.RecipientWeightWeak
		}
	}

	if ref := sig.ProviderReference; ref != "" {
		if strongReferenceRe.MatchString(ref) {
			score += c.ReferenceWeight
		} else if len(ref) >= 6 {
			score += c.ReferenceWeightWeak
		}
	}

	if sig.HasBalance {
		score += c.AncillaryBonus
	}
	if sig.HasFeeText {
		score += c.AncillaryBonus
	}
	if sig.HasDateTime {
		score += c.AncillaryBonus
	}

	if score > 1.0 {
		score = 1.0
	}
	return score, score < c.ReviewThreshold
}
