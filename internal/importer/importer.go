// Package importer orchestrates batch SMS imports: parallel parsing,
// decomposition into movement groups, the duplicate gate, and emission to
// the ledger sink. Parsing is pure and fans out over a worker pool; the
// dedup-then-emit stage runs serially so a batch containing the same
// message twice cannot race past the duplicate check.
package importer

import (
	"context"
	"fmt"
	"sync"
	"time"

	"mpesa-ledger-service/internal/decomposer"
	"mpesa-ledger-service/internal/dedup"
	"mpesa-ledger-service/internal/loader"
	"mpesa-ledger-service/internal/models"
	"mpesa-ledger-service/internal/parser"
	apperrors "mpesa-ledger-service/pkg/errors"
	"mpesa-ledger-service/pkg/logger"
)

// Sink receives the movements that survive the duplicate gate. Persist
// returns the stored identity of the movement, which the importer threads
// into the ParentRef of the group's non-primary legs.
type Sink interface {
	Persist(ctx context.Context, movement models.MonetaryMovement) (string, error)
}

// Config holds import options.
type Config struct {
	// UserID owns the imported movements; scoped duplicate checks use it.
	UserID string `json:"user_id"`

	// Workers bounds the parse worker pool.
	Workers int `json:"workers"`

	// CategoryIDs maps suggested category names to ledger category ids.
	CategoryIDs map[string]string `json:"category_ids,omitempty"`

	// ContinueOnError keeps the batch going when persisting one group
	// fails; the failure is recorded in the result.
	ContinueOnError bool `json:"continue_on_error"`
}

// DefaultConfig returns the default import options.
func DefaultConfig() *Config {
	return &Config{Workers: 4, ContinueOnError: true}
}

// Validate checks the config for usable values.
func (c *Config) Validate() error {
	if c.Workers < 1 {
		return fmt.Errorf("workers must be at least 1, got %d", c.Workers)
	}
	return nil
}

// Progress is a snapshot of a running import, delivered to registered
// callbacks after each step.
type Progress struct {
	CurrentStep      string        `json:"current_step"`
	TotalMessages    int           `json:"total_messages"`
	Processed        int           `json:"processed"`
	Parsed           int           `json:"parsed"`
	ParseFailures    int           `json:"parse_failures"`
	Duplicates       int           `json:"duplicates"`
	MovementsEmitted int           `json:"movements_emitted"`
	StartTime        time.Time     `json:"start_time"`
	Elapsed          time.Duration `json:"elapsed"`
}

// ProgressCallback receives progress snapshots.
type ProgressCallback func(*Progress)

// ReviewItem identifies a low-confidence import for manual follow-up.
type ReviewItem struct {
	Line        int     `json:"line"`
	Description string  `json:"description"`
	Category    string  `json:"category"`
	Confidence  float64 `json:"confidence"`
}

// SkippedMessage records a message the parser produced no result for.
type SkippedMessage struct {
	Line int    `json:"line"`
	Text string `json:"text"`
}

// Result summarizes one batch import.
type Result struct {
	TotalMessages    int `json:"total_messages"`
	Parsed           int `json:"parsed"`
	ParseFailures    int `json:"parse_failures"`
	Duplicates       int `json:"duplicates"`
	MovementsEmitted int `json:"movements_emitted"`
	ReviewFlagged    int `json:"review_flagged"`

	CategoryCounts   map[string]int                 `json:"category_counts"`
	DuplicateReasons map[models.DuplicateReason]int `json:"duplicate_reasons"`
	ReviewItems      []ReviewItem                   `json:"review_items,omitempty"`
	Skipped          []SkippedMessage               `json:"skipped,omitempty"`
	Errors           []*apperrors.LedgerError       `json:"errors,omitempty"`

	StartTime time.Time     `json:"start_time"`
	Duration  time.Duration `json:"duration"`
}

// Importer runs batch imports.
type Importer struct {
	parser   *parser.Parser
	detector *dedup.Detector
	sink     Sink
	config   *Config
	logger   logger.Logger

	progressCallbacks []ProgressCallback
	progressMutex     sync.Mutex
}

// NewImporter creates an Importer over the given pipeline components.
func NewImporter(p *parser.Parser, detector *dedup.Detector, sink Sink, config *Config) (*Importer, error) {
	if p == nil {
		return nil, apperrors.ValidationError(apperrors.CodeMissingField, "parser", nil, nil)
	}
	if detector == nil {
		return nil, apperrors.ValidationError(apperrors.CodeMissingField, "detector", nil, nil)
	}
	if sink == nil {
		return nil, apperrors.ValidationError(apperrors.CodeMissingField, "sink", nil, nil)
	}
	if config == nil {
		config = DefaultConfig()
	}
	if err := config.Validate(); err != nil {
		return nil, apperrors.ConfigurationError(apperrors.CodeInvalidConfig, "importer", config.Workers, err)
	}

	return &Importer{
		parser:   p,
		detector: detector,
		sink:     sink,
		config:   config,
		logger:   logger.GetGlobalLogger().WithComponent("importer"),
	}, nil
}

// AddProgressCallback registers a callback invoked with progress
// snapshots during imports.
func (im *Importer) AddProgressCallback(cb ProgressCallback) {
	im.progressMutex.Lock()
	defer im.progressMutex.Unlock()
	im.progressCallbacks = append(im.progressCallbacks, cb)
}

func (im *Importer) reportProgress(progress *Progress) {
	im.progressMutex.Lock()
	callbacks := make([]ProgressCallback, len(im.progressCallbacks))
	copy(callbacks, im.progressCallbacks)
	im.progressMutex.Unlock()

	progress.Elapsed = time.Since(progress.StartTime)
	for _, cb := range callbacks {
		cb(progress)
	}
}

// parseOutcome carries one message through the pipeline stages.
type parseOutcome struct {
	source loader.Message
	parsed *models.ParsedMessage
}

// ImportBatch parses, deduplicates and persists a batch of messages.
// The returned Result is always non-nil; the error is non-nil only when
// the batch had to be aborted.
func (im *Importer) ImportBatch(ctx context.Context, messages []loader.Message) (*Result, error) {
	op := logger.NewOperationLogger("sms_batch_import", im.logger).
		WithField("messages", len(messages)).
		WithField("user_id", im.config.UserID)

	result := &Result{
		TotalMessages:    len(messages),
		CategoryCounts:   make(map[string]int),
		DuplicateReasons: make(map[models.DuplicateReason]int),
		StartTime:        time.Now(),
	}
	progress := &Progress{
		CurrentStep:   "parsing",
		TotalMessages: len(messages),
		StartTime:     result.StartTime,
	}

	op.Step("parse")
	outcomes := im.parseAll(ctx, messages)
	for _, outcome := range outcomes {
		if outcome.parsed == nil {
			result.ParseFailures++
			result.Skipped = append(result.Skipped, SkippedMessage{
				Line: outcome.source.Line,
				Text: outcome.source.Text,
			})
			continue
		}
		result.Parsed++
	}
	progress.Parsed = result.Parsed
	progress.ParseFailures = result.ParseFailures
	progress.CurrentStep = "deduplicating"
	im.reportProgress(progress)

	op.Step("dedup_and_emit")
	for _, outcome := range outcomes {
		if outcome.parsed == nil {
			progress.Processed++
			continue
		}

		if err := im.importOne(ctx, outcome, result); err != nil {
			ledgerErr := apperrors.WrapIfNeeded(err, apperrors.CategoryImport, apperrors.CodeProcessingError,
				fmt.Sprintf("importing message at line %d", outcome.source.Line))
			result.Errors = append(result.Errors, ledgerErr)
			if !im.config.ContinueOnError {
				result.Duration = time.Since(result.StartTime)
				op.Error(ledgerErr, "Batch import aborted")
				return result, ledgerErr
			}
			op.Warning(fmt.Sprintf("message at line %d failed: %v", outcome.source.Line, ledgerErr))
		}

		progress.Processed++
		progress.Duplicates = result.Duplicates
		progress.MovementsEmitted = result.MovementsEmitted
		im.reportProgress(progress)
	}

	progress.CurrentStep = "done"
	im.reportProgress(progress)

	result.Duration = time.Since(result.StartTime)
	op.WithField("movements", result.MovementsEmitted).Success("Batch import completed")
	return result, nil
}

// parseAll fans the pure parse stage out over the worker pool, keeping
// results in input order.
func (im *Importer) parseAll(ctx context.Context, messages []loader.Message) []parseOutcome {
	outcomes := make([]parseOutcome, len(messages))

	tracker := logger.NewProgressTracker(logger.ProgressConfig{
		Operation: "parse_sms",
		Total:     int64(len(messages)),
		Logger:    im.logger,
	})

	jobs := make(chan int)
	var wg sync.WaitGroup
	for w := 0; w < im.config.Workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				parsed, ok := im.parser.Parse(messages[i].Text)
				if !ok {
					parsed = nil
				}
				outcomes[i] = parseOutcome{source: messages[i], parsed: parsed}
				tracker.Increment()
			}
		}()
	}

feed:
	for i := range messages {
		select {
		case jobs <- i:
		case <-ctx.Done():
			break feed
		}
	}
	close(jobs)
	wg.Wait()
	tracker.Complete()

	return outcomes
}

// importOne runs the duplicate gate for a single parsed message and, when
// it passes, persists its movement group with parent threading.
func (im *Importer) importOne(ctx context.Context, outcome parseOutcome, result *Result) error {
	parsed := outcome.parsed

	verdict, err := im.detector.CheckDuplicate(ctx, dedup.Request{
		UserID:            im.config.UserID,
		Amount:            parsed.Amount,
		Counterparty:      parsed.Counterparty,
		ProviderReference: parsed.ProviderReference,
		ContentHash:       parsed.ContentHash,
	})
	if err != nil {
		return apperrors.ImportError(apperrors.CodeDuplicateCheckFailed, "duplicate check", err)
	}

	if verdict.IsDuplicate {
		result.Duplicates++
		for _, reason := range verdict.Reasons {
			result.DuplicateReasons[reason]++
		}
		im.logger.WithFields(logger.Fields{
			"line":       outcome.source.Line,
			"confidence": verdict.Confidence,
		}).Info("Duplicate message blocked")
		return nil
	}

	movements := decomposer.Decompose(parsed, outcome.source.Text, &decomposer.Options{
		CategoryIDs: im.config.CategoryIDs,
	})

	// Persist the primary first so its stored id can parent the rest of
	// the group.
	primaryID := ""
	for i := range movements {
		if movements[i].Role == models.RolePrimary {
			id, err := im.sink.Persist(ctx, movements[i])
			if err != nil {
				return apperrors.ImportError(apperrors.CodeSinkFailed, "persist primary movement", err)
			}
			primaryID = id
			result.MovementsEmitted++
			break
		}
	}

	for i := range movements {
		if movements[i].Role == models.RolePrimary {
			continue
		}
		if primaryID != "" {
			movements[i].ParentRef = primaryID
		}
		if _, err := im.sink.Persist(ctx, movements[i]); err != nil {
			return apperrors.ImportError(apperrors.CodeSinkFailed, "persist linked movement", err)
		}
		result.MovementsEmitted++
	}

	result.CategoryCounts[parsed.SuggestedCategory]++
	if parsed.RequiresReview {
		result.ReviewFlagged++
		result.ReviewItems = append(result.ReviewItems, ReviewItem{
			Line:        outcome.source.Line,
			Description: parsed.Description,
			Category:    parsed.SuggestedCategory,
			Confidence:  parsed.Confidence,
		})
	}

	return nil
}
