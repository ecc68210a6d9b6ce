package interfaces

import (
	"context"
	"time"

	"github.com/ternarybob/sentio/internal/models"
)

// TokenStorage is the credential-store adapter: a durable table of
// encrypted tokens keyed by (user, platform). Point-lookup consistency
// is assumed; no cross-call transactions.
type TokenStorage interface {
	// Upsert creates or overwrites the credential for the record's
	// (user, platform) pair.
	Upsert(ctx context.Context, record *models.TokenRecord) error

	// Find returns the credential for (userID, platform), or nil when
	// none exists. Not-found is not an error.
	Find(ctx context.Context, userID string, platform models.Platform) (*models.TokenRecord, error)

	// Delete removes the credential. Deleting a missing record is a no-op.
	Delete(ctx context.Context, userID string, platform models.Platform) error

	// FindByUser returns all credentials for a user.
	FindByUser(ctx context.Context, userID string) ([]*models.TokenRecord, error)

	// FindExpiredBefore returns credentials whose expiry is set and
	// earlier than the cutoff.
	FindExpiredBefore(ctx context.Context, cutoff time.Time) ([]*models.TokenRecord, error)
}

// JobStorage persists analysis job records.
type JobStorage interface {
	Insert(ctx context.Context, job *models.AnalysisJob) error
	Update(ctx context.Context, job *models.AnalysisJob) error
	Get(ctx context.Context, jobID string) (*models.AnalysisJob, error)

	// GetByUser returns a user's jobs, newest first, capped at limit.
	GetByUser(ctx context.Context, userID string, limit int) ([]*models.AnalysisJob, error)

	// FindActive returns the non-terminal job for (postID, userID), or
	// nil when none exists.
	FindActive(ctx context.Context, postID, userID string) (*models.AnalysisJob, error)

	Delete(ctx context.Context, jobID string) error
}

// ResultStorage persists analysis results. The most recent result per
// post backs the cache's durable freshness check.
type ResultStorage interface {
	Save(ctx context.Context, result *models.AnalysisResult) error
	Get(ctx context.Context, resultID string) (*models.AnalysisResult, error)

	// LatestByPost returns the most recent result for a post, or nil.
	LatestByPost(ctx context.Context, postID string) (*models.AnalysisResult, error)

	// ByJob returns the result produced by a job, or nil.
	ByJob(ctx context.Context, jobID string) (*models.AnalysisResult, error)
}

// StorageManager provides access to all storage implementations and
// owns the shared database handle.
type StorageManager interface {
	TokenStorage() TokenStorage
	JobStorage() JobStorage
	ResultStorage() ResultStorage

	// RunGC reclaims space in the underlying store. Safe to call while
	// the store is serving traffic.
	RunGC() error

	Close() error
}
