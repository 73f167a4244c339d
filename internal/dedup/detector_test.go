package dedup

import (
	"context"
	"errors"
	"testing"
	"time"

	"mpesa-ledger-service/internal/models"

	"github.com/shopspring/decimal"
)

// fakeStore is an in-memory Store with per-layer knobs.
type fakeStore struct {
	hashes     map[string]bool
	references map[string]bool
	similar    []models.CandidateRecord
	err        error
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		hashes:     make(map[string]bool),
		references: make(map[string]bool),
	}
}

func (s *fakeStore) ExistsByHash(ctx context.Context, hash string) (bool, error) {
	if s.err != nil {
		return false, s.err
	}
	return s.hashes[hash], nil
}

func (s *fakeStore) ExistsByReference(ctx context.Context, reference string) (bool, error) {
	if s.err != nil {
		return false, s.err
	}
	return s.references[reference], nil
}

func (s *fakeStore) FindSimilar(ctx context.Context, userID string, amount decimal.Decimal, window time.Duration) ([]models.CandidateRecord, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.similar, nil
}

type fakeLogger struct {
	attempts []Attempt
}

func (l *fakeLogger) LogAttempt(ctx context.Context, attempt Attempt) error {
	l.attempts = append(l.attempts, attempt)
	return nil
}

func createTestRequest() Request {
	return Request{
		UserID:            "user-1",
		Amount:            decimal.NewFromFloat(1450.00),
		Counterparty:      "Simon Nderitu",
		ProviderReference: "TJ6CF6NDST",
		ContentHash:       "abc123",
	}
}

func TestNewDetectorRequiresStore(t *testing.T) {
	if _, err := NewDetector(nil, nil, nil); err == nil {
		t.Error("Expected error for nil store")
	}
}

func TestNewDetectorRejectsBadConfig(t *testing.T) {
	if _, err := NewDetector(newFakeStore(), nil, &Config{Window: -time.Hour}); err == nil {
		t.Error("Expected error for non-positive window")
	}
}

func TestCheckDuplicateCleanMessage(t *testing.T) {
	detector, err := NewDetector(newFakeStore(), nil, nil)
	if err != nil {
		t.Fatalf("NewDetector failed: %v", err)
	}

	verdict, err := detector.CheckDuplicate(context.Background(), createTestRequest())
	if err != nil {
		t.Fatalf("CheckDuplicate failed: %v", err)
	}

	if verdict.IsDuplicate {
		t.Error("Clean message must not be flagged")
	}
	if len(verdict.Reasons) != 0 {
		t.Errorf("Expected no reasons, got %v", verdict.Reasons)
	}
	if verdict.Confidence != 0 {
		t.Errorf("Expected zero confidence, got %f", verdict.Confidence)
	}
}

func TestCheckDuplicateExactHashBlocks(t *testing.T) {
	store := newFakeStore()
	store.hashes["abc123"] = true

	detector, _ := NewDetector(store, nil, nil)
	verdict, err := detector.CheckDuplicate(context.Background(), createTestRequest())
	if err != nil {
		t.Fatalf("CheckDuplicate failed: %v", err)
	}

	if !verdict.IsDuplicate {
		t.Error("Exact hash match must block")
	}
	if !verdict.HasReason(models.ReasonExactMessage) {
		t.Errorf("Expected %s reason, got %v", models.ReasonExactMessage, verdict.Reasons)
	}
	if verdict.Confidence != 1.0 {
		t.Errorf("Expected confidence 1.0, got %f", verdict.Confidence)
	}
}

func TestCheckDuplicateReferenceBlocks(t *testing.T) {
	store := newFakeStore()
	store.references["TJ6CF6NDST"] = true

	detector, _ := NewDetector(store, nil, nil)
	verdict, err := detector.CheckDuplicate(context.Background(), createTestRequest())
	if err != nil {
		t.Fatalf("CheckDuplicate failed: %v", err)
	}

	if !verdict.IsDuplicate {
		t.Error("Known provider reference must block")
	}
	if !verdict.HasReason(models.ReasonTransactionID) {
		t.Errorf("Expected %s reason, got %v", models.ReasonTransactionID, verdict.Reasons)
	}
	if verdict.Confidence != 0.9 {
		t.Errorf("Expected confidence 0.9, got %f", verdict.Confidence)
	}
}

func TestCheckDuplicateAmountRecipientBlocks(t *testing.T) {
	store := newFakeStore()
	store.similar = []models.CandidateRecord{
		{ID: "mv-1", Amount: decimal.NewFromFloat(1450.00), Counterparty: "Simon Nderitu"},
	}

	detector, _ := NewDetector(store, nil, nil)
	verdict, err := detector.CheckDuplicate(context.Background(), createTestRequest())
	if err != nil {
		t.Fatalf("CheckDuplicate failed: %v", err)
	}

	if !verdict.IsDuplicate {
		t.Error("Same amount and counterparty in the window must block")
	}
	if !verdict.HasReason(models.ReasonAmountRecipient) {
		t.Errorf("Expected %s reason, got %v", models.ReasonAmountRecipient, verdict.Reasons)
	}
	if verdict.Confidence != 0.7 {
		t.Errorf("Expected confidence 0.7, got %f", verdict.Confidence)
	}
}

func TestCheckDuplicateProximityWarnsButAllows(t *testing.T) {
	store := newFakeStore()
	store.similar = []models.CandidateRecord{
		{ID: "mv-1", Amount: decimal.NewFromFloat(1450.50), Counterparty: "Someone Else"},
	}

	detector, _ := NewDetector(store, nil, nil)
	verdict, err := detector.CheckDuplicate(context.Background(), createTestRequest())
	if err != nil {
		t.Fatalf("CheckDuplicate failed: %v", err)
	}

	if verdict.IsDuplicate {
		t.Error("Bare amount proximity must not block on its own")
	}
	if !verdict.HasReason(models.ReasonSimilarAmount) {
		t.Errorf("Expected %s reason, got %v", models.ReasonSimilarAmount, verdict.Reasons)
	}
	if verdict.Confidence != 0.3 {
		t.Errorf("Expected confidence 0.3, got %f", verdict.Confidence)
	}
	if len(verdict.Candidates) != 1 {
		t.Errorf("Expected the candidate to be surfaced, got %d", len(verdict.Candidates))
	}
}

func TestCheckDuplicateAccumulatesReasons(t *testing.T) {
	store := newFakeStore()
	store.hashes["abc123"] = true
	store.references["TJ6CF6NDST"] = true
	store.similar = []models.CandidateRecord{
		{ID: "mv-1", Amount: decimal.NewFromFloat(1450.00), Counterparty: "Simon Nderitu"},
	}

	detector, _ := NewDetector(store, nil, nil)
	verdict, err := detector.CheckDuplicate(context.Background(), createTestRequest())
	if err != nil {
		t.Fatalf("CheckDuplicate failed: %v", err)
	}

	if len(verdict.Reasons) != 3 {
		t.Errorf("Expected all three reasons, got %v", verdict.Reasons)
	}
	if verdict.Confidence != 1.0 {
		t.Errorf("Confidence must be the maximum across layers, got %f", verdict.Confidence)
	}
}

func TestCheckDuplicateProximitySuppressedByStrongerReason(t *testing.T) {
	store := newFakeStore()
	store.hashes["abc123"] = true
	store.similar = []models.CandidateRecord{
		{ID: "mv-1", Amount: decimal.NewFromFloat(1450.50), Counterparty: "Someone Else"},
	}

	detector, _ := NewDetector(store, nil, nil)
	verdict, err := detector.CheckDuplicate(context.Background(), createTestRequest())
	if err != nil {
		t.Fatalf("CheckDuplicate failed: %v", err)
	}

	if verdict.HasReason(models.ReasonSimilarAmount) {
		t.Error("Proximity must not be reported alongside a stronger reason")
	}
	if !verdict.HasReason(models.ReasonExactMessage) {
		t.Error("Expected the hash reason")
	}
}

func TestCheckDuplicateCapsCandidates(t *testing.T) {
	store := newFakeStore()
	for i := 0; i < 8; i++ {
		store.similar = append(store.similar, models.CandidateRecord{
			ID:     string(rune('a' + i)),
			Amount: decimal.NewFromFloat(1450.40),
		})
	}

	detector, _ := NewDetector(store, nil, nil)
	verdict, err := detector.CheckDuplicate(context.Background(), createTestRequest())
	if err != nil {
		t.Fatalf("CheckDuplicate failed: %v", err)
	}

	if len(verdict.Candidates) != maxCandidates {
		t.Errorf("Expected candidates capped at %d, got %d", maxCandidates, len(verdict.Candidates))
	}
}

func TestCheckDuplicateLogsAttempts(t *testing.T) {
	store := newFakeStore()
	store.hashes["abc123"] = true
	log := &fakeLogger{}

	detector, _ := NewDetector(store, log, nil)
	if _, err := detector.CheckDuplicate(context.Background(), createTestRequest()); err != nil {
		t.Fatalf("CheckDuplicate failed: %v", err)
	}

	clean := createTestRequest()
	clean.ContentHash = "other"
	clean.ProviderReference = "OTHER"
	if _, err := detector.CheckDuplicate(context.Background(), clean); err != nil {
		t.Fatalf("CheckDuplicate failed: %v", err)
	}

	if len(log.attempts) != 2 {
		t.Fatalf("Expected 2 logged attempts, got %d", len(log.attempts))
	}
	if log.attempts[0].Outcome != OutcomeBlocked {
		t.Errorf("First attempt outcome = %s, want %s", log.attempts[0].Outcome, OutcomeBlocked)
	}
	if log.attempts[1].Outcome != OutcomeAllowed {
		t.Errorf("Second attempt outcome = %s, want %s", log.attempts[1].Outcome, OutcomeAllowed)
	}
}

func TestCheckDuplicatePropagatesStoreErrors(t *testing.T) {
	store := newFakeStore()
	store.err = errors.New("storage offline")

	detector, _ := NewDetector(store, nil, nil)
	if _, err := detector.CheckDuplicate(context.Background(), createTestRequest()); err == nil {
		t.Error("Expected store error to propagate")
	}
}

func TestSimilarityScore(t *testing.T) {
	at := time.Date(2025, 10, 6, 8, 0, 0, 0, time.UTC)

	identical := models.CandidateRecord{
		Amount:       decimal.NewFromInt(100),
		Counterparty: "Simon Nderitu",
		Reference:    "TJ6CF6NDST",
		RecordedAt:   at,
	}
	if score := SimilarityScore(identical, identical); score < 0.999 {
		t.Errorf("Identical records should score near 1.0, got %f", score)
	}

	unrelated := models.CandidateRecord{
		Amount:       decimal.NewFromInt(99999),
		Counterparty: "Completely Different",
		Reference:    "OTHER",
		RecordedAt:   at.Add(-48 * time.Hour),
	}
	if score := SimilarityScore(identical, unrelated); score > 0.5 {
		t.Errorf("Unrelated records should score low, got %f", score)
	}

	partial := models.CandidateRecord{
		Amount:       decimal.NewFromInt(100),
		Counterparty: "Simon Kamau",
		RecordedAt:   at,
	}
	score := SimilarityScore(identical, partial)
	if score <= 0.5 || score >= 1.0 {
		t.Errorf("Partially matching records should score between 0.5 and 1.0, got %f", score)
	}
}

func TestJaccardSimilarity(t *testing.T) {
	tests := []struct {
		a, b string
		want float64
	}{
		{"Simon Nderitu", "Simon Nderitu", 1.0},
		{"simon nderitu", "SIMON NDERITU", 1.0},
		{"Simon Nderitu", "Simon Kamau", 1.0 / 3.0},
		{"Simon", "Kamau", 0},
		{"", "Simon", 0},
	}

	for _, tt := range tests {
		if got := jaccardSimilarity(tt.a, tt.b); got != tt.want {
			t.Errorf("jaccardSimilarity(%q, %q) = %f, want %f", tt.a, tt.b, got, tt.want)
		}
	}
}
