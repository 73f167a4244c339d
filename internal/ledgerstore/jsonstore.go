// Package ledgerstore provides a JSON-file-backed movement store for the
// CLI. It implements the duplicate detector's Store, the importer's Sink,
// and the attempt log on one file, which is enough for single-user local
// ledgers; server deployments would swap in a database-backed store.
package ledgerstore

import (
	"context"
	"encoding/json"
	"os"
	"sync"
	"time"

	"mpesa-ledger-service/internal/dedup"
	"mpesa-ledger-service/internal/models"
	apperrors "mpesa-ledger-service/pkg/errors"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// storedMovement wraps a persisted movement with its storage timestamp,
// which anchors the duplicate detector's lookback window.
type storedMovement struct {
	Movement   models.MonetaryMovement `json:"movement"`
	RecordedAt time.Time               `json:"recorded_at"`
}

// ledgerFile is the on-disk layout.
type ledgerFile struct {
	Movements []storedMovement `json:"movements"`
	Attempts  []dedup.Attempt  `json:"attempts,omitempty"`
}

// JSONStore is a file-backed movement store. All operations are guarded
// by one mutex; the file is rewritten on every mutation.
type JSONStore struct {
	path string
	mu   sync.Mutex
	data ledgerFile
	now  func() time.Time
}

// Open loads the ledger at path, creating an empty one if the file does
// not exist yet.
func Open(path string) (*JSONStore, error) {
	store := &JSONStore{path: path, now: time.Now}

	raw, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return store, nil
	}
	if err != nil {
		return nil, apperrors.StorageError(apperrors.CodeStorageUnavailable, path, err)
	}

	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &store.data); err != nil {
			return nil, apperrors.StorageError(apperrors.CodeStorageCorrupted, path, err)
		}
	}
	return store, nil
}

// MovementCount returns the number of persisted movements.
func (s *JSONStore) MovementCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.data.Movements)
}

// Persist stores one movement and returns its identity, assigning one if
// the movement arrived without an id.
func (s *JSONStore) Persist(ctx context.Context, movement models.MonetaryMovement) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if movement.ID == "" {
		movement.ID = uuid.NewString()
	}
	s.data.Movements = append(s.data.Movements, storedMovement{
		Movement:   movement,
		RecordedAt: s.now(),
	})

	if err := s.save(); err != nil {
		return "", err
	}
	return movement.ID, nil
}

// ExistsByHash reports whether any stored movement carries the hash.
func (s *JSONStore) ExistsByHash(ctx context.Context, hash string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.data.Movements {
		if s.data.Movements[i].Movement.ContentHash == hash {
			return true, nil
		}
	}
	return false, nil
}

// ExistsByReference reports whether any stored movement carries the
// provider reference.
func (s *JSONStore) ExistsByReference(ctx context.Context, reference string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.data.Movements {
		if s.data.Movements[i].Movement.ProviderReference == reference {
			return true, nil
		}
	}
	return false, nil
}

// FindSimilar returns primary movements within one minor unit of the
// amount recorded inside the lookback window. The single-user file store
// ignores the user id.
func (s *JSONStore) FindSimilar(ctx context.Context, userID string, amount decimal.Decimal, window time.Duration) ([]models.CandidateRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cutoff := s.now().Add(-window)
	one := decimal.NewFromInt(1)

	var candidates []models.CandidateRecord
	for i := range s.data.Movements {
		stored := &s.data.Movements[i]
		if stored.Movement.Role != models.RolePrimary {
			continue
		}
		if stored.RecordedAt.Before(cutoff) {
			continue
		}
		if stored.Movement.Amount.Sub(amount).Abs().GreaterThan(one) {
			continue
		}
		candidates = append(candidates, models.CandidateRecord{
			ID:           stored.Movement.ID,
			Amount:       stored.Movement.Amount,
			Counterparty: stored.Movement.Counterparty,
			Reference:    stored.Movement.ProviderReference,
			ContentHash:  stored.Movement.ContentHash,
			RecordedAt:   stored.RecordedAt,
		})
	}
	return candidates, nil
}

// LogAttempt appends one detection attempt to the ledger file.
func (s *JSONStore) LogAttempt(ctx context.Context, attempt dedup.Attempt) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.data.Attempts = append(s.data.Attempts, attempt)
	return s.save()
}

// save rewrites the ledger file through a temp-file rename so a crash
// mid-write never leaves a truncated ledger. Caller holds the mutex.
func (s *JSONStore) save() error {
	raw, err := json.MarshalIndent(&s.data, "", "  ")
	if err != nil {
		return apperrors.InternalError(apperrors.CodeUnexpectedError, "encode ledger", err)
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, raw, 0644); err != nil {
		return apperrors.StorageError(apperrors.CodeStorageUnavailable, s.path, err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		os.Remove(tmp)
		return apperrors.StorageError(apperrors.CodeStorageUnavailable, s.path, err)
	}
	return nil
}
