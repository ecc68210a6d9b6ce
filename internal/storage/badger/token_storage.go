package badger

import (
	"context"
	"fmt"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/sentio/internal/interfaces"
	"github.com/ternarybob/sentio/internal/models"
	"github.com/timshannon/badgerhold/v4"
)

// TokenStorage implements the TokenStorage interface for Badger.
// Records are keyed by "{userID}:{platform}" so a (user, platform)
// pair has exactly one credential.
type TokenStorage struct {
	db     *BadgerDB
	logger arbor.ILogger
}

var _ interfaces.TokenStorage = (*TokenStorage)(nil)

// NewTokenStorage creates a new TokenStorage instance
func NewTokenStorage(db *BadgerDB, logger arbor.ILogger) interfaces.TokenStorage {
	return &TokenStorage{
		db:     db,
		logger: logger,
	}
}

func (s *TokenStorage) Upsert(ctx context.Context, record *models.TokenRecord) error {
	if record.UserID == "" {
		return fmt.Errorf("user ID is required")
	}
	if !record.Platform.IsValid() {
		return fmt.Errorf("invalid platform: %s", record.Platform)
	}

	record.ID = models.TokenRecordID(record.UserID, record.Platform)
	now := time.Now().UTC()
	if record.ConnectedAt.IsZero() {
		record.ConnectedAt = now
	}
	record.UpdatedAt = now

	if err := s.db.Store().Upsert(record.ID, record); err != nil {
		return fmt.Errorf("failed to store token record: %w", err)
	}

	s.logger.Debug().
		Str("user_id", record.UserID).
		Str("platform", string(record.Platform)).
		Msg("Token record stored")

	return nil
}

func (s *TokenStorage) Find(ctx context.Context, userID string, platform models.Platform) (*models.TokenRecord, error) {
	var record models.TokenRecord
	if err := s.db.Store().Get(models.TokenRecordID(userID, platform), &record); err != nil {
		if err == badgerhold.ErrNotFound {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get token record: %w", err)
	}
	return &record, nil
}

func (s *TokenStorage) Delete(ctx context.Context, userID string, platform models.Platform) error {
	if err := s.db.Store().Delete(models.TokenRecordID(userID, platform), &models.TokenRecord{}); err != nil {
		if err == badgerhold.ErrNotFound {
			return nil // Already deleted
		}
		return fmt.Errorf("failed to delete token record: %w", err)
	}
	return nil
}

func (s *TokenStorage) FindByUser(ctx context.Context, userID string) ([]*models.TokenRecord, error) {
	var records []models.TokenRecord
	if err := s.db.Store().Find(&records, badgerhold.Where("UserID").Eq(userID).Index("UserID")); err != nil {
		return nil, fmt.Errorf("failed to find token records: %w", err)
	}

	result := make([]*models.TokenRecord, len(records))
	for i := range records {
		result[i] = &records[i]
	}
	return result, nil
}

func (s *TokenStorage) FindExpiredBefore(ctx context.Context, cutoff time.Time) ([]*models.TokenRecord, error) {
	var records []models.TokenRecord
	if err := s.db.Store().Find(&records, nil); err != nil {
		return nil, fmt.Errorf("failed to scan token records: %w", err)
	}

	var result []*models.TokenRecord
	for i := range records {
		if records[i].ExpiresAt != nil && records[i].ExpiresAt.Before(cutoff) {
			result = append(result, &records[i])
		}
	}
	return result, nil
}
