// Package dedup guards the at-most-once import contract. It layers
// progressively fuzzier checks over the caller's storage: exact content
// hash, provider reference, amount-plus-counterparty within a lookback
// window, and bare amount proximity. The detector only reads; persisting
// records and serializing concurrent imports for a user is the caller's
// job.
package dedup

import (
	"context"
	"fmt"
	"strings"
	"time"

	"mpesa-ledger-service/internal/models"

	"github.com/shopspring/decimal"
)

// Store is the read-side storage surface the detector queries.
type Store interface {
	// ExistsByHash reports whether a movement with this content hash has
	// been persisted.
	ExistsByHash(ctx context.Context, hash string) (bool, error)

	// ExistsByReference reports whether a movement with this provider
	// reference code has been persisted.
	ExistsByReference(ctx context.Context, reference string) (bool, error)

	// FindSimilar returns the user's persisted records whose amount is
	// within one minor unit of the given amount and whose timestamp falls
	// inside the lookback window.
	FindSimilar(ctx context.Context, userID string, amount decimal.Decimal, window time.Duration) ([]models.CandidateRecord, error)
}

// AttemptLogger records every detection attempt for later analysis. The
// log is append-only; implementations must not block the import path on
// log durability.
type AttemptLogger interface {
	LogAttempt(ctx context.Context, attempt Attempt) error
}

// Attempt is one detection-attempt log entry.
type Attempt struct {
	UserID      string                   `json:"user_id"`
	ContentHash string                   `json:"content_hash"`
	Confidence  float64                  `json:"confidence"`
	Reasons     []models.DuplicateReason `json:"reasons"`
	Outcome     string                   `json:"outcome"`
	DetectedAt  time.Time                `json:"detected_at"`
}

// Attempt outcomes.
const (
	OutcomeBlocked = "blocked"
	OutcomeAllowed = "allowed"
)

// Confidence assigned by each layer. A verdict is a duplicate when the
// highest-confidence hit reaches the block threshold.
const (
	hashConfidence      = 1.0
	referenceConfidence = 0.9
	amountConfidence    = 0.7
	proximityConfidence = 0.3

	// BlockThreshold is the confidence at or above which an import is
	// refused.
	BlockThreshold = 0.7

	// maxCandidates caps the similar records returned for review.
	maxCandidates = 5
)

// Config holds the detector's tunables.
type Config struct {
	// Window is the lookback period for the fuzzy checks.
	Window time.Duration `json:"window"`
}

// DefaultConfig returns the production detection settings.
func DefaultConfig() *Config {
	return &Config{Window: 24 * time.Hour}
}

// Validate checks the config for usable values.
func (c *Config) Validate() error {
	if c.Window <= 0 {
		return fmt.Errorf("window must be positive, got %s", c.Window)
	}
	return nil
}

// Request describes one incoming movement to check.
type Request struct {
	UserID            string
	Amount            decimal.Decimal
	Counterparty      string
	ProviderReference string
	ContentHash       string
}

// Detector runs the layered duplicate checks.
type Detector struct {
	store   Store
	log     AttemptLogger
	config  *Config
	nowFunc func() time.Time
}

// NewDetector creates a Detector over the given store. The logger may be
// nil, in which case attempts are not recorded.
func NewDetector(store Store, log AttemptLogger, config *Config) (*Detector, error) {
	if store == nil {
		return nil, fmt.Errorf("store is required")
	}
	if config == nil {
		config = DefaultConfig()
	}
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid dedup config: %w", err)
	}
	return &Detector{store: store, log: log, config: config, nowFunc: time.Now}, nil
}

// CheckDuplicate runs the layers in confidence order and returns the
// verdict. Every layer runs even after a hit so the verdict carries all
// applicable reasons; the confidence is the maximum across hits.
func (d *Detector) CheckDuplicate(ctx context.Context, req Request) (*models.DuplicateVerdict, error) {
	verdict := &models.DuplicateVerdict{}

	if req.ContentHash != "" {
		found, err := d.store.ExistsByHash(ctx, req.ContentHash)
		if err != nil {
			return nil, fmt.Errorf("hash lookup failed: %w", err)
		}
		if found {
			verdict.Reasons = append(verdict.Reasons, models.ReasonExactMessage)
			verdict.Confidence = hashConfidence
		}
	}

	if req.ProviderReference != "" {
		found, err := d.store.ExistsByReference(ctx, req.ProviderReference)
		if err != nil {
			return nil, fmt.Errorf("reference lookup failed: %w", err)
		}
		if found {
			verdict.Reasons = append(verdict.Reasons, models.ReasonTransactionID)
			if verdict.Confidence < referenceConfidence {
				verdict.Confidence = referenceConfidence
			}
		}
	}

	similar, err := d.store.FindSimilar(ctx, req.UserID, req.Amount, d.config.Window)
	if err != nil {
		return nil, fmt.Errorf("similarity lookup failed: %w", err)
	}
	if len(similar) > 0 {
		exact := false
		for _, candidate := range similar {
			if candidate.Amount.Equal(req.Amount) && candidate.Counterparty == req.Counterparty {
				exact = true
				break
			}
		}
		if exact {
			verdict.Reasons = append(verdict.Reasons, models.ReasonAmountRecipient)
			if verdict.Confidence < amountConfidence {
				verdict.Confidence = amountConfidence
			}
		} else if len(verdict.Reasons) == 0 {
			verdict.Reasons = append(verdict.Reasons, models.ReasonSimilarAmount)
			if verdict.Confidence < proximityConfidence {
				verdict.Confidence = proximityConfidence
			}
		}

		if len(similar) > maxCandidates {
			similar = similar[:maxCandidates]
		}
		verdict.Candidates = similar
	}

	verdict.IsDuplicate = len(verdict.Reasons) > 0 && verdict.Confidence >= BlockThreshold

	if d.log != nil {
		outcome := OutcomeAllowed
		if verdict.IsDuplicate {
			outcome = OutcomeBlocked
		}
		attempt := Attempt{
			UserID:      req.UserID,
			ContentHash: req.ContentHash,
			Confidence:  verdict.Confidence,
			Reasons:     verdict.Reasons,
			Outcome:     outcome,
			DetectedAt:  d.nowFunc(),
		}
		if err := d.log.LogAttempt(ctx, attempt); err != nil {
			return nil, fmt.Errorf("attempt log failed: %w", err)
		}
	}

	return verdict, nil
}

// Similarity weights: amount closeness dominates, then counterparty token
// overlap, then time proximity, then reference equality.
const (
	amountWeight    = 0.4
	recipientWeight = 0.3
	timeWeight      = 0.2
	referenceWeight = 0.1
)

// SimilarityScore grades how alike two records are, in [0, 1]. Used for
// ranking review candidates, not for the block decision.
func SimilarityScore(a, b models.CandidateRecord) float64 {
	var score float64

	if a.Amount.IsPositive() && b.Amount.IsPositive() {
		larger := decimal.Max(a.Amount, b.Amount)
		diff := a.Amount.Sub(b.Amount).Abs()
		closeness, _ := decimal.NewFromInt(1).Sub(diff.Div(larger)).Float64()
		if closeness < 0 {
			closeness = 0
		}
		score += closeness * amountWeight
	}

	if a.Counterparty != "" && b.Counterparty != "" {
		score += jaccardSimilarity(a.Counterparty, b.Counterparty) * recipientWeight
	}

	if !a.RecordedAt.IsZero() && !b.RecordedAt.IsZero() {
		gap := a.RecordedAt.Sub(b.RecordedAt).Abs()
		proximity := 1 - gap.Seconds()/(24*time.Hour).Seconds()
		if proximity < 0 {
			proximity = 0
		}
		score += proximity * timeWeight
	}

	if a.Reference != "" && b.Reference != "" && a.Reference == b.Reference {
		score += referenceWeight
	}

	return score
}

// jaccardSimilarity computes word-set overlap between two names.
func jaccardSimilarity(a, b string) float64 {
	a = strings.ToLower(strings.TrimSpace(a))
	b = strings.ToLower(strings.TrimSpace(b))
	if a == "" || b == "" {
		return 0
	}
	if a == b {
		return 1
	}

	setA := make(map[string]struct{})
	for _, w := range strings.Fields(a) {
		setA[w] = struct{}{}
	}
	setB := make(map[string]struct{})
	for _, w := range strings.Fields(b) {
		setB[w] = struct{}{}
	}

	intersection := 0
	for w := range setA {
		if _, ok := setB[w]; ok {
			intersection++
		}
	}
	union := len(setA) + len(setB) - intersection
	if union == 0 {
		return 0
	}
	return float64(intersection) / float64(union)
}
