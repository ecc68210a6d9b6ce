package interfaces

import (
	"context"

	"github.com/ternarybob/sentio/internal/models"
)

// TokenService keeps per-user, per-platform credentials usable across
// the pipeline: validation, transparent refresh, invalidation.
type TokenService interface {
	// Connect stores a credential obtained from an OAuth handshake.
	// Re-connecting overwrites the existing credential.
	Connect(ctx context.Context, userID string, platform models.Platform, token *models.TokenResponse) error

	// GetConnection reads and decrypts a stored credential. Returns
	// nil when none exists; not-found is not an error.
	GetConnection(ctx context.Context, userID string, platform models.Platform) (*models.Credential, error)

	// GetValidToken returns a token guaranteed fresh at call time,
	// refreshing once if needed. Fails with models.ErrNoConnection when
	// no credential exists and *models.ReconnectRequiredError when
	// refresh fails.
	GetValidToken(ctx context.Context, userID string, platform models.Platform) (string, error)

	// RefreshToken performs the platform-specific refresh call and
	// persists the new credential. The outcome is tagged: Refreshed,
	// NotSupported, or Failed.
	RefreshToken(ctx context.Context, userID string, platform models.Platform) (models.RefreshOutcome, error)

	// ValidateToken combines the local expiry check with a live
	// provider call. Advisory: false on any failure, never errors.
	ValidateToken(ctx context.Context, userID string, platform models.Platform) bool

	// DisconnectPlatform deletes the credential.
	DisconnectPlatform(ctx context.Context, userID string, platform models.Platform) error

	// GetConnectionsStatus reports health across all of a user's
	// connections.
	GetConnectionsStatus(ctx context.Context, userID string) ([]models.ConnectionStatus, error)

	// CleanupExpiredTokens sweeps credentials long past expiry,
	// deleting the ones that can neither validate nor refresh.
	CleanupExpiredTokens(ctx context.Context) (*models.CleanupResult, error)
}

// PreprocessService classifies and cleans a raw comment batch before
// analysis. Pure and stateless: same input always yields same output.
type PreprocessService interface {
	PreprocessComments(comments []models.Comment) *models.PreprocessResult
}

// CacheSettings is a partial cache configuration update; nil fields
// are left unchanged.
type CacheSettings struct {
	Enabled    *bool
	TTLSeconds *int
	MaxSize    *int
}

// CacheService is the two-tier result cache: an in-process bounded
// FIFO map plus a durable freshness check. A cache miss is always a
// valid outcome; the cache never causes a caller-visible error.
type CacheService interface {
	// Get returns the cached value for key, or nil when absent or
	// older than the TTL (stale entries are evicted on read).
	Get(key string) interface{}

	// Set inserts a value, evicting the single oldest-inserted entry
	// when the cache is full.
	Set(key string, value interface{})

	// CheckDurableFreshness consults the durable store for the most
	// recent result for postID; a result younger than the TTL counts
	// as a hit and warms the in-process cache.
	CheckDurableFreshness(ctx context.Context, postID string) *models.AnalysisResult

	// ScheduleResultCaching polls job status until terminal and caches
	// the result under both job and post keys on completion. The poll
	// loop self-terminates after a hard ceiling.
	ScheduleResultCaching(ctx context.Context, jobID, postID string)

	// Invalidate clears the cache wholesale.
	Invalidate()

	// UpdateConfig merges new TTL/size/enabled settings.
	UpdateConfig(settings CacheSettings)

	Stats() models.CacheStats
}

// ProcessorFunc is the asynchronous work function the scheduler
// dispatches for each job. Supplied by the orchestrator via
// RegisterProcessor.
type ProcessorFunc func(ctx context.Context, job *models.AnalysisJob, commentIDs []string) error

// SchedulerService owns the lifecycle of analysis jobs and guarantees
// bounded-concurrency, retrying dispatch.
type SchedulerService interface {
	// CreateJob durably inserts a PENDING job with zero progress.
	CreateJob(ctx context.Context, postID, userID string, totalComments int) (*models.AnalysisJob, error)

	// QueueAnalysisJob creates the durable job and enqueues the
	// in-process work item. Returns the existing job's id when a
	// non-terminal job already exists for (postID, userID).
	QueueAnalysisJob(ctx context.Context, postID, userID string, commentIDs []string) (string, error)

	// UpdateJobProgress merges a progress report and marks the job
	// RUNNING. Persistence failures are logged, never escalated.
	UpdateJobProgress(ctx context.Context, jobID string, update models.ProgressUpdate) error

	CompleteJob(ctx context.Context, jobID string) error
	FailJob(ctx context.Context, jobID string, errorMessage string) error
	CancelJob(ctx context.Context, jobID string) error

	GetJobStatus(ctx context.Context, jobID string) (*models.JobView, error)
	GetUserJobs(ctx context.Context, userID string, limit int) ([]*models.JobView, error)

	// RegisterProcessor attaches the work function to every currently
	// waiting item (late binding) and to all items queued afterwards.
	RegisterProcessor(fn ProcessorFunc)

	GetQueueStats() models.QueueStats

	// Start launches the dispatch tick.
	Start()

	// Stop halts the tick immediately, then waits (bounded) for
	// in-flight jobs to drain.
	Stop()
}

// AnalysisEngine is the black-box analysis stage: slow, expensive,
// and the reason the result cache exists.
type AnalysisEngine interface {
	Analyze(ctx context.Context, comments []models.Comment) (*models.AnalysisResult, error)
	Provider() string
}
