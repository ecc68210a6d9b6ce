package badger

import (
	"context"
	"fmt"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/sentio/internal/interfaces"
	"github.com/ternarybob/sentio/internal/models"
	"github.com/timshannon/badgerhold/v4"
)

// ResultStorage implements the ResultStorage interface for Badger
type ResultStorage struct {
	db     *BadgerDB
	logger arbor.ILogger
}

var _ interfaces.ResultStorage = (*ResultStorage)(nil)

// NewResultStorage creates a new ResultStorage instance
func NewResultStorage(db *BadgerDB, logger arbor.ILogger) interfaces.ResultStorage {
	return &ResultStorage{
		db:     db,
		logger: logger,
	}
}

func (s *ResultStorage) Save(ctx context.Context, result *models.AnalysisResult) error {
	if result.ID == "" {
		return fmt.Errorf("result ID is required")
	}
	if result.PostID == "" {
		return fmt.Errorf("post ID is required")
	}

	if err := s.db.Store().Upsert(result.ID, result); err != nil {
		return fmt.Errorf("failed to store analysis result: %w", err)
	}

	s.logger.Debug().
		Str("result_id", result.ID).
		Str("post_id", result.PostID).
		Msg("Analysis result stored")

	return nil
}

func (s *ResultStorage) Get(ctx context.Context, resultID string) (*models.AnalysisResult, error) {
	var result models.AnalysisResult
	if err := s.db.Store().Get(resultID, &result); err != nil {
		if err == badgerhold.ErrNotFound {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get analysis result: %w", err)
	}
	return &result, nil
}

func (s *ResultStorage) LatestByPost(ctx context.Context, postID string) (*models.AnalysisResult, error) {
	var results []models.AnalysisResult
	if err := s.db.Store().Find(&results, badgerhold.Where("PostID").Eq(postID).Index("PostID")); err != nil {
		return nil, fmt.Errorf("failed to find analysis results: %w", err)
	}
	if len(results) == 0 {
		return nil, nil
	}

	latest := &results[0]
	for i := range results {
		if results[i].AnalyzedAt.After(latest.AnalyzedAt) {
			latest = &results[i]
		}
	}
	return latest, nil
}

func (s *ResultStorage) ByJob(ctx context.Context, jobID string) (*models.AnalysisResult, error) {
	var results []models.AnalysisResult
	if err := s.db.Store().Find(&results, badgerhold.Where("JobID").Eq(jobID).Index("JobID")); err != nil {
		return nil, fmt.Errorf("failed to find analysis result by job: %w", err)
	}
	if len(results) == 0 {
		return nil, nil
	}
	return &results[0], nil
}
