package importer

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"mpesa-ledger-service/internal/dedup"
	"mpesa-ledger-service/internal/loader"
	"mpesa-ledger-service/internal/models"
	"mpesa-ledger-service/internal/parser"

	"github.com/shopspring/decimal"
)

// memorySink is an in-memory ledger backing for tests: it records every
// persisted movement and answers the detector's read queries from the same
// data, the way the production store does.
type memorySink struct {
	movements  []models.MonetaryMovement
	persistErr error
}

func (s *memorySink) Persist(ctx context.Context, movement models.MonetaryMovement) (string, error) {
	if s.persistErr != nil {
		return "", s.persistErr
	}
	if movement.ID == "" {
		movement.ID = fmt.Sprintf("mv-%03d", len(s.movements)+1)
	}
	s.movements = append(s.movements, movement)
	return movement.ID, nil
}

func (s *memorySink) ExistsByHash(ctx context.Context, hash string) (bool, error) {
	for _, m := range s.movements {
		if m.ContentHash == hash {
			return true, nil
		}
	}
	return false, nil
}

func (s *memorySink) ExistsByReference(ctx context.Context, reference string) (bool, error) {
	for _, m := range s.movements {
		if m.Role == models.RolePrimary && m.ProviderReference == reference {
			return true, nil
		}
	}
	return false, nil
}

func (s *memorySink) FindSimilar(ctx context.Context, userID string, amount decimal.Decimal, window time.Duration) ([]models.CandidateRecord, error) {
	var candidates []models.CandidateRecord
	for _, m := range s.movements {
		if m.Role != models.RolePrimary {
			continue
		}
		if m.Amount.Sub(amount).Abs().LessThanOrEqual(decimal.NewFromInt(1)) {
			candidates = append(candidates, models.CandidateRecord{
				ID:           m.ID,
				Amount:       m.Amount,
				Counterparty: m.Counterparty,
				Reference:    m.ProviderReference,
				ContentHash:  m.ContentHash,
			})
		}
	}
	return candidates, nil
}

func createTestImporter(t *testing.T, sink *memorySink, config *Config) *Importer {
	t.Helper()

	detector, err := dedup.NewDetector(sink, nil, nil)
	if err != nil {
		t.Fatalf("NewDetector failed: %v", err)
	}

	p := parser.New().WithClock(func() time.Time {
		return time.Date(2025, 11, 1, 12, 0, 0, 0, time.UTC)
	})

	im, err := NewImporter(p, detector, sink, config)
	if err != nil {
		t.Fatalf("NewImporter failed: %v", err)
	}
	return im
}

func batchOf(texts ...string) []loader.Message {
	messages := make([]loader.Message, len(texts))
	for i, text := range texts {
		messages[i] = loader.Message{Line: i + 1, Text: text}
	}
	return messages
}

const (
	sentSMS = "TJ6CF6NDST Confirmed. Ksh30.00 sent to Simon Nderitu 0715151515 on 6/10/25 at 7:43 AM. " +
		"New M-PESA balance is Ksh2,116.96. Transaction cost, Ksh23.00."
	fulizaSMS = "TJ8CF6WXYZ Confirmed. Fuliza M-PESA amount is Ksh50.00. Access fee charged Ksh5.00. " +
		"Total Fuliza M-PESA outstanding amount is Ksh55.00 due on 20/10/25. New M-PESA balance is Ksh50.00."
	noiseSMS = "Your OTP code is 483920. Do not share it with anyone."
)

func TestNewImporterRequiresComponents(t *testing.T) {
	sink := &memorySink{}
	detector, _ := dedup.NewDetector(sink, nil, nil)
	p := parser.New()

	if _, err := NewImporter(nil, detector, sink, nil); err == nil {
		t.Error("Expected error for nil parser")
	}
	if _, err := NewImporter(p, nil, sink, nil); err == nil {
		t.Error("Expected error for nil detector")
	}
	if _, err := NewImporter(p, detector, nil, nil); err == nil {
		t.Error("Expected error for nil sink")
	}
	if _, err := NewImporter(p, detector, sink, &Config{Workers: 0}); err == nil {
		t.Error("Expected error for zero workers")
	}
}

func TestImportBatch(t *testing.T) {
	sink := &memorySink{}
	im := createTestImporter(t, sink, nil)

	result, err := im.ImportBatch(context.Background(), batchOf(sentSMS, fulizaSMS, noiseSMS))
	if err != nil {
		t.Fatalf("ImportBatch failed: %v", err)
	}

	if result.TotalMessages != 3 {
		t.Errorf("TotalMessages = %d, want 3", result.TotalMessages)
	}
	if result.Parsed != 2 {
		t.Errorf("Parsed = %d, want 2", result.Parsed)
	}
	if result.ParseFailures != 1 {
		t.Errorf("ParseFailures = %d, want 1", result.ParseFailures)
	}
	if len(result.Skipped) != 1 || result.Skipped[0].Line != 3 {
		t.Errorf("Expected line 3 to be skipped, got %v", result.Skipped)
	}

	// sent: primary + fee; fuliza: primary + access fee.
	if result.MovementsEmitted != 4 {
		t.Errorf("MovementsEmitted = %d, want 4", result.MovementsEmitted)
	}
	if len(sink.movements) != 4 {
		t.Fatalf("Persisted %d movements, want 4", len(sink.movements))
	}
	if result.Duplicates != 0 {
		t.Errorf("Duplicates = %d, want 0", result.Duplicates)
	}
}

func TestImportBatchThreadsParentRefs(t *testing.T) {
	sink := &memorySink{}
	im := createTestImporter(t, sink, nil)

	if _, err := im.ImportBatch(context.Background(), batchOf(sentSMS)); err != nil {
		t.Fatalf("ImportBatch failed: %v", err)
	}

	if len(sink.movements) != 2 {
		t.Fatalf("Expected primary plus fee, got %d movements", len(sink.movements))
	}

	primary := sink.movements[0]
	fee := sink.movements[1]
	if primary.Role != models.RolePrimary {
		t.Fatalf("First persisted movement should be the primary, got %s", primary.Role)
	}
	if fee.ParentRef != primary.ID {
		t.Errorf("Fee parent ref = %q, want the persisted primary id %q", fee.ParentRef, primary.ID)
	}
	if fee.GroupID != primary.GroupID {
		t.Error("Fee must share the primary's group id")
	}
}

func TestImportBatchBlocksResubmittedMessage(t *testing.T) {
	sink := &memorySink{}
	im := createTestImporter(t, sink, nil)

	result, err := im.ImportBatch(context.Background(), batchOf(sentSMS, sentSMS))
	if err != nil {
		t.Fatalf("ImportBatch failed: %v", err)
	}

	if result.Duplicates != 1 {
		t.Errorf("Duplicates = %d, want 1", result.Duplicates)
	}
	if result.DuplicateReasons[models.ReasonExactMessage] != 1 {
		t.Errorf("Expected one exact message block, got %v", result.DuplicateReasons)
	}
	if len(sink.movements) != 2 {
		t.Errorf("Resubmission must not persist again, got %d movements", len(sink.movements))
	}
}

func TestImportBatchBlocksAcrossBatches(t *testing.T) {
	sink := &memorySink{}
	im := createTestImporter(t, sink, nil)

	if _, err := im.ImportBatch(context.Background(), batchOf(sentSMS)); err != nil {
		t.Fatalf("First batch failed: %v", err)
	}

	result, err := im.ImportBatch(context.Background(), batchOf(sentSMS))
	if err != nil {
		t.Fatalf("Second batch failed: %v", err)
	}
	if result.Duplicates != 1 {
		t.Errorf("Expected resubmitted batch to be blocked, got %d duplicates", result.Duplicates)
	}
}

func TestImportBatchContinuesOnSinkError(t *testing.T) {
	sink := &memorySink{persistErr: errors.New("disk full")}
	im := createTestImporter(t, sink, nil)

	result, err := im.ImportBatch(context.Background(), batchOf(sentSMS, fulizaSMS))
	if err != nil {
		t.Fatalf("ImportBatch should continue on error, got %v", err)
	}

	if len(result.Errors) != 2 {
		t.Errorf("Expected both failures recorded, got %d", len(result.Errors))
	}
	if result.MovementsEmitted != 0 {
		t.Errorf("MovementsEmitted = %d, want 0", result.MovementsEmitted)
	}
}

func TestImportBatchAbortsWhenConfigured(t *testing.T) {
	sink := &memorySink{persistErr: errors.New("disk full")}
	im := createTestImporter(t, sink, &Config{Workers: 2, ContinueOnError: false})

	result, err := im.ImportBatch(context.Background(), batchOf(sentSMS, fulizaSMS))
	if err == nil {
		t.Fatal("Expected abort error")
	}
	if result == nil {
		t.Fatal("Result must be returned even on abort")
	}
	if len(result.Errors) != 1 {
		t.Errorf("Expected exactly one recorded error before aborting, got %d", len(result.Errors))
	}
}

func TestImportBatchFlagsReviewItems(t *testing.T) {
	// Mobile-money text that only the generic fallback can read.
	generic := "M-PESA notice: Ksh320.00 reversal processed, balance is Ksh900.00. Ref: ABC123XYZ"

	sink := &memorySink{}
	im := createTestImporter(t, sink, nil)

	result, err := im.ImportBatch(context.Background(), batchOf(generic))
	if err != nil {
		t.Fatalf("ImportBatch failed: %v", err)
	}

	if result.ReviewFlagged != 1 {
		t.Fatalf("ReviewFlagged = %d, want 1", result.ReviewFlagged)
	}
	if len(result.ReviewItems) != 1 {
		t.Fatalf("Expected one review item, got %d", len(result.ReviewItems))
	}
	if result.ReviewItems[0].Line != 1 {
		t.Errorf("Review item line = %d, want 1", result.ReviewItems[0].Line)
	}
}

func TestImportBatchCountsCategories(t *testing.T) {
	sink := &memorySink{}
	im := createTestImporter(t, sink, nil)

	result, err := im.ImportBatch(context.Background(), batchOf(sentSMS, fulizaSMS))
	if err != nil {
		t.Fatalf("ImportBatch failed: %v", err)
	}

	if result.CategoryCounts["Personal Transfer"] != 1 {
		t.Errorf("Expected one Personal Transfer, got %v", result.CategoryCounts)
	}
	if result.CategoryCounts["Loans & Credit"] != 1 {
		t.Errorf("Expected one Loans & Credit, got %v", result.CategoryCounts)
	}
}

func TestImportBatchReportsProgress(t *testing.T) {
	sink := &memorySink{}
	im := createTestImporter(t, sink, nil)

	var snapshots []Progress
	im.AddProgressCallback(func(p *Progress) {
		snapshots = append(snapshots, *p)
	})

	if _, err := im.ImportBatch(context.Background(), batchOf(sentSMS, fulizaSMS)); err != nil {
		t.Fatalf("ImportBatch failed: %v", err)
	}

	if len(snapshots) == 0 {
		t.Fatal("Expected progress callbacks")
	}
	last := snapshots[len(snapshots)-1]
	if last.CurrentStep != "done" {
		t.Errorf("Final step = %q, want done", last.CurrentStep)
	}
	if last.Processed != 2 {
		t.Errorf("Final processed = %d, want 2", last.Processed)
	}
}
