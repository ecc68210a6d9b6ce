package badger

import (
	"context"
	"fmt"
	"sort"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/sentio/internal/interfaces"
	"github.com/ternarybob/sentio/internal/models"
	"github.com/timshannon/badgerhold/v4"
)

// JobStorage implements the JobStorage interface for Badger
type JobStorage struct {
	db     *BadgerDB
	logger arbor.ILogger
}

var _ interfaces.JobStorage = (*JobStorage)(nil)

// NewJobStorage creates a new JobStorage instance
func NewJobStorage(db *BadgerDB, logger arbor.ILogger) interfaces.JobStorage {
	return &JobStorage{
		db:     db,
		logger: logger,
	}
}

func (s *JobStorage) Insert(ctx context.Context, job *models.AnalysisJob) error {
	if err := job.Validate(); err != nil {
		return fmt.Errorf("invalid job: %w", err)
	}

	if err := s.db.Store().Insert(job.ID, job); err != nil {
		if err == badgerhold.ErrKeyExists {
			return fmt.Errorf("job already exists: %s", job.ID)
		}
		return fmt.Errorf("failed to insert job: %w", err)
	}

	s.logger.Debug().
		Str("job_id", job.ID).
		Str("post_id", job.PostID).
		Str("user_id", job.UserID).
		Msg("Job record inserted")

	return nil
}

func (s *JobStorage) Update(ctx context.Context, job *models.AnalysisJob) error {
	if err := s.db.Store().Update(job.ID, job); err != nil {
		if err == badgerhold.ErrNotFound {
			return models.ErrJobNotFound
		}
		return fmt.Errorf("failed to update job: %w", err)
	}
	return nil
}

func (s *JobStorage) Get(ctx context.Context, jobID string) (*models.AnalysisJob, error) {
	var job models.AnalysisJob
	if err := s.db.Store().Get(jobID, &job); err != nil {
		if err == badgerhold.ErrNotFound {
			return nil, models.ErrJobNotFound
		}
		return nil, fmt.Errorf("failed to get job: %w", err)
	}
	return &job, nil
}

func (s *JobStorage) GetByUser(ctx context.Context, userID string, limit int) ([]*models.AnalysisJob, error) {
	var jobs []models.AnalysisJob
	if err := s.db.Store().Find(&jobs, badgerhold.Where("UserID").Eq(userID).Index("UserID")); err != nil {
		return nil, fmt.Errorf("failed to find jobs: %w", err)
	}

	// Newest first
	sort.Slice(jobs, func(i, j int) bool {
		return jobs[i].CreatedAt.After(jobs[j].CreatedAt)
	})

	if limit > 0 && len(jobs) > limit {
		jobs = jobs[:limit]
	}

	result := make([]*models.AnalysisJob, len(jobs))
	for i := range jobs {
		result[i] = &jobs[i]
	}
	return result, nil
}

func (s *JobStorage) FindActive(ctx context.Context, postID, userID string) (*models.AnalysisJob, error) {
	var jobs []models.AnalysisJob
	query := badgerhold.Where("PostID").Eq(postID).Index("PostID").
		And("UserID").Eq(userID)
	if err := s.db.Store().Find(&jobs, query); err != nil {
		return nil, fmt.Errorf("failed to find active job: %w", err)
	}

	for i := range jobs {
		if !jobs[i].IsTerminal() {
			return &jobs[i], nil
		}
	}
	return nil, nil
}

func (s *JobStorage) Delete(ctx context.Context, jobID string) error {
	if err := s.db.Store().Delete(jobID, &models.AnalysisJob{}); err != nil {
		if err == badgerhold.ErrNotFound {
			return nil // Already deleted
		}
		return fmt.Errorf("failed to delete job: %w", err)
	}
	return nil
}
