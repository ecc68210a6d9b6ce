// Package scheduler owns the lifecycle of analysis jobs: durable state
// transitions plus an in-process dispatch loop with bounded concurrency
// and per-job retry.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/sentio/internal/common"
	"github.com/ternarybob/sentio/internal/interfaces"
	"github.com/ternarybob/sentio/internal/models"
)

// Pipeline stage count reported on every job: cache check, token,
// fetch, preprocess, analyze.
const totalPipelineSteps = 5

// queueItem is the in-process work item backing one queued job. The
// durable job record is the source of truth for status; the item only
// carries dispatch bookkeeping.
type queueItem struct {
	jobID      string
	postID     string
	userID     string
	commentIDs []string
	attempts   int
	enqueuedAt time.Time
	running    bool
	cancel     context.CancelFunc
}

// Service implements SchedulerService. One instance per process; the
// dispatch loop starts at most one job per tick and never exceeds the
// configured concurrency.
type Service struct {
	mu        sync.Mutex
	items     map[string]*queueItem
	processor interfaces.ProcessorFunc

	jobs   interfaces.JobStorage
	events interfaces.EventService
	logger arbor.ILogger

	tickInterval  time.Duration
	drainTimeout  time.Duration
	maxConcurrent int
	maxAttempts   int

	runCtx    context.Context
	runCancel context.CancelFunc
	wg        sync.WaitGroup
	started   bool
}

var _ interfaces.SchedulerService = (*Service)(nil)

// NewService creates the job scheduler.
func NewService(cfg *common.SchedulerConfig, jobs interfaces.JobStorage, events interfaces.EventService, logger arbor.ILogger) *Service {
	return &Service{
		items:         make(map[string]*queueItem),
		jobs:          jobs,
		events:        events,
		logger:        logger.WithPrefix("scheduler"),
		tickInterval:  cfg.Tick(),
		drainTimeout:  cfg.DrainTimeout(),
		maxConcurrent: cfg.MaxConcurrentJobs,
		maxAttempts:   cfg.MaxAttempts,
	}
}

// CreateJob durably inserts a PENDING job with zero progress.
func (s *Service) CreateJob(ctx context.Context, postID, userID string, totalComments int) (*models.AnalysisJob, error) {
	job := &models.AnalysisJob{
		ID:            common.NewJobID(),
		PostID:        postID,
		UserID:        userID,
		Status:        models.JobStatusPending,
		Progress:      0,
		TotalSteps:    totalPipelineSteps,
		TotalComments: totalComments,
		CreatedAt:     time.Now().UTC(),
	}

	if err := s.jobs.Insert(ctx, job); err != nil {
		return nil, fmt.Errorf("failed to create job: %w", err)
	}

	s.logger.Info().
		Str("job_id", job.ID).
		Str("post_id", postID).
		Str("user_id", userID).
		Int("total_comments", totalComments).
		Msg("Job created")

	return job, nil
}

// QueueAnalysisJob creates the durable job and enqueues the in-process
// work item. When a non-terminal job already exists for (postID,
// userID) its id is returned instead of creating a duplicate.
func (s *Service) QueueAnalysisJob(ctx context.Context, postID, userID string, commentIDs []string) (string, error) {
	existing, err := s.jobs.FindActive(ctx, postID, userID)
	if err != nil {
		return "", fmt.Errorf("failed to check for active job: %w", err)
	}
	if existing != nil {
		s.logger.Debug().
			Str("job_id", existing.ID).
			Str("post_id", postID).
			Msg("Active job already queued for post, reusing")
		return existing.ID, nil
	}

	job, err := s.CreateJob(ctx, postID, userID, len(commentIDs))
	if err != nil {
		return "", err
	}

	s.mu.Lock()
	s.items[job.ID] = &queueItem{
		jobID:      job.ID,
		postID:     postID,
		userID:     userID,
		commentIDs: commentIDs,
		enqueuedAt: time.Now(),
	}
	s.mu.Unlock()

	s.publishJobEvent(interfaces.EventJobQueued, job)
	return job.ID, nil
}

// UpdateJobProgress merges a progress report and marks the job RUNNING.
// Persistence failures are logged, never escalated: progress reporting
// must not abort a job.
func (s *Service) UpdateJobProgress(ctx context.Context, jobID string, update models.ProgressUpdate) error {
	job, err := s.jobs.Get(ctx, jobID)
	if err != nil {
		if errors.Is(err, models.ErrJobNotFound) {
			return err
		}
		s.logger.Warn().Err(err).Str("job_id", jobID).Msg("Progress update read failed")
		return nil
	}
	if job.IsTerminal() {
		return nil
	}

	job.ApplyProgress(update)
	job.MarkRunning()

	if err := s.jobs.Update(ctx, job); err != nil {
		s.logger.Warn().Err(err).Str("job_id", jobID).Msg("Progress update persist failed")
		return nil
	}

	s.publishJobEvent(interfaces.EventJobProgress, job)
	return nil
}

// CompleteJob transitions the job to COMPLETED and drops its queue
// bookkeeping.
func (s *Service) CompleteJob(ctx context.Context, jobID string) error {
	s.removeItem(jobID)

	job, err := s.jobs.Get(ctx, jobID)
	if err != nil {
		return err
	}
	if job.IsTerminal() {
		// A cancel (or earlier terminal write) wins over a late result.
		return nil
	}

	job.MarkCompleted()
	if err := s.jobs.Update(ctx, job); err != nil {
		return fmt.Errorf("failed to persist job completion: %w", err)
	}

	s.logger.Info().Str("job_id", jobID).Msg("Job completed")
	s.publishJobEvent(interfaces.EventJobCompleted, job)
	return nil
}

// FailJob transitions the job to FAILED with the final error message.
func (s *Service) FailJob(ctx context.Context, jobID string, errorMessage string) error {
	s.removeItem(jobID)

	job, err := s.jobs.Get(ctx, jobID)
	if err != nil {
		return err
	}
	if job.IsTerminal() {
		return nil
	}

	job.MarkFailed(errorMessage)
	if err := s.jobs.Update(ctx, job); err != nil {
		return fmt.Errorf("failed to persist job failure: %w", err)
	}

	s.logger.Warn().
		Str("job_id", jobID).
		Str("error", errorMessage).
		Msg("Job failed")
	s.publishJobEvent(interfaces.EventJobFailed, job)
	return nil
}

// CancelJob cancels a PENDING or RUNNING job. A waiting job is removed
// from the queue; a running one has its context cancelled and the
// processor is expected to stop cooperatively.
func (s *Service) CancelJob(ctx context.Context, jobID string) error {
	job, err := s.jobs.Get(ctx, jobID)
	if err != nil {
		return err
	}
	if job.IsTerminal() {
		return fmt.Errorf("job %s is already %s", jobID, job.Status)
	}

	s.mu.Lock()
	item := s.items[jobID]
	var cancel context.CancelFunc
	if item != nil {
		cancel = item.cancel
		delete(s.items, jobID)
	}
	s.mu.Unlock()

	if cancel != nil {
		cancel()
	}

	job.MarkCancelled()
	if err := s.jobs.Update(ctx, job); err != nil {
		return fmt.Errorf("failed to persist job cancellation: %w", err)
	}

	s.logger.Info().Str("job_id", jobID).Msg("Job cancelled")
	s.publishJobEvent(interfaces.EventJobCancelled, job)
	return nil
}

// GetJobStatus returns the read-only projection of one job.
func (s *Service) GetJobStatus(ctx context.Context, jobID string) (*models.JobView, error) {
	job, err := s.jobs.Get(ctx, jobID)
	if err != nil {
		return nil, err
	}
	return job.View(), nil
}

// GetUserJobs returns a user's jobs, newest first.
func (s *Service) GetUserJobs(ctx context.Context, userID string, limit int) ([]*models.JobView, error) {
	jobs, err := s.jobs.GetByUser(ctx, userID, limit)
	if err != nil {
		return nil, err
	}

	views := make([]*models.JobView, len(jobs))
	for i, job := range jobs {
		views[i] = job.View()
	}
	return views, nil
}

// RegisterProcessor attaches the work function. Items queued before
// registration are picked up on the next tick; the dispatch loop never
// starts a job without a processor.
func (s *Service) RegisterProcessor(fn interfaces.ProcessorFunc) {
	s.mu.Lock()
	s.processor = fn
	waiting := len(s.items)
	s.mu.Unlock()

	s.logger.Info().Int("waiting", waiting).Msg("Processor registered")
}

// GetQueueStats reports a snapshot of the in-process queue.
func (s *Service) GetQueueStats() models.QueueStats {
	s.mu.Lock()
	defer s.mu.Unlock()

	stats := models.QueueStats{
		MaxConcurrent:     s.maxConcurrent,
		ProcessorAttached: s.processor != nil,
	}
	for _, item := range s.items {
		if item.running {
			stats.Active++
		} else {
			stats.Waiting++
		}
	}
	return stats
}

// Start launches the dispatch tick. At most one job is started per
// tick, which paces bursts of queued work.
func (s *Service) Start() {
	s.mu.Lock()
	if s.started {
		s.mu.Unlock()
		return
	}
	s.started = true
	s.runCtx, s.runCancel = context.WithCancel(context.Background())
	s.mu.Unlock()

	common.SafeGo(s.logger, "scheduler.dispatch", func() {
		ticker := time.NewTicker(s.tickInterval)
		defer ticker.Stop()

		for {
			select {
			case <-s.runCtx.Done():
				return
			case <-ticker.C:
				s.dispatchOne()
			}
		}
	})

	s.logger.Info().
		Dur("tick", s.tickInterval).
		Int("max_concurrent", s.maxConcurrent).
		Int("max_attempts", s.maxAttempts).
		Msg("Scheduler started")
}

// Stop halts the tick immediately, then waits for in-flight jobs to
// drain, bounded by the shutdown timeout.
func (s *Service) Stop() {
	s.mu.Lock()
	if !s.started {
		s.mu.Unlock()
		return
	}
	s.started = false
	cancel := s.runCancel
	s.mu.Unlock()

	cancel()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.logger.Info().Msg("Scheduler stopped, all jobs drained")
	case <-time.After(s.drainTimeout):
		s.logger.Warn().
			Dur("timeout", s.drainTimeout).
			Msg("Scheduler drain timeout exceeded, abandoning in-flight jobs")
	}
}

// dispatchOne starts the oldest waiting item when a concurrency slot
// is free. Called once per tick.
func (s *Service) dispatchOne() {
	s.mu.Lock()

	if s.processor == nil {
		s.mu.Unlock()
		return
	}

	active := 0
	var next *queueItem
	for _, item := range s.items {
		if item.running {
			active++
			continue
		}
		if next == nil || item.enqueuedAt.Before(next.enqueuedAt) {
			next = item
		}
	}
	if next == nil || active >= s.maxConcurrent {
		s.mu.Unlock()
		return
	}

	next.running = true
	next.attempts++
	jobCtx, cancel := context.WithCancel(s.runCtx)
	next.cancel = cancel
	processor := s.processor
	item := next
	attempt := next.attempts

	s.wg.Add(1)
	s.mu.Unlock()

	common.SafeGo(s.logger, "scheduler.job:"+item.jobID, func() {
		defer s.wg.Done()
		defer cancel()
		s.runJob(jobCtx, processor, item, attempt)
	})
}

// runJob executes one dispatch attempt of one job.
func (s *Service) runJob(ctx context.Context, processor interfaces.ProcessorFunc, item *queueItem, attempt int) {
	job, err := s.jobs.Get(ctx, item.jobID)
	if err != nil {
		s.logger.Error().Err(err).Str("job_id", item.jobID).Msg("Dispatched job missing from storage")
		s.removeItem(item.jobID)
		return
	}
	if job.IsTerminal() {
		s.removeItem(item.jobID)
		return
	}

	job.MarkRunning()
	if err := s.jobs.Update(ctx, job); err != nil {
		s.logger.Warn().Err(err).Str("job_id", item.jobID).Msg("Failed to persist RUNNING transition")
	}
	s.publishJobEvent(interfaces.EventJobStarted, job)

	s.logger.Info().
		Str("job_id", item.jobID).
		Int("attempt", attempt).
		Msg("Job dispatched")

	err = processor(ctx, job, item.commentIDs)
	if err == nil {
		if cerr := s.CompleteJob(context.Background(), item.jobID); cerr != nil {
			s.logger.Error().Err(cerr).Str("job_id", item.jobID).Msg("Failed to complete job")
		}
		return
	}

	if ctx.Err() != nil {
		// Cancelled mid-flight; CancelJob already owns the durable state.
		s.logger.Debug().Str("job_id", item.jobID).Msg("Job run aborted by cancellation")
		s.removeItem(item.jobID)
		return
	}

	if attempt >= s.maxAttempts {
		if ferr := s.FailJob(context.Background(), item.jobID, err.Error()); ferr != nil {
			s.logger.Error().Err(ferr).Str("job_id", item.jobID).Msg("Failed to mark job failed")
		}
		return
	}

	s.logger.Warn().
		Err(err).
		Str("job_id", item.jobID).
		Int("attempt", attempt).
		Int("max_attempts", s.maxAttempts).
		Msg("Job attempt failed, will retry")

	s.mu.Lock()
	if current, ok := s.items[item.jobID]; ok {
		current.running = false
		current.cancel = nil
	}
	s.mu.Unlock()
}

func (s *Service) removeItem(jobID string) {
	s.mu.Lock()
	delete(s.items, jobID)
	s.mu.Unlock()
}

func (s *Service) publishJobEvent(eventType interfaces.EventType, job *models.AnalysisJob) {
	if s.events == nil {
		return
	}

	event := interfaces.Event{
		Type:      eventType,
		Timestamp: time.Now().UTC(),
		Payload: map[string]interface{}{
			"job_id":   job.ID,
			"post_id":  job.PostID,
			"user_id":  job.UserID,
			"status":   string(job.Status),
			"progress": job.Progress,
		},
	}
	if job.ErrorMessage != "" {
		event.Payload["error"] = job.ErrorMessage
	}

	if err := s.events.Publish(context.Background(), event); err != nil {
		s.logger.Warn().Err(err).Str("job_id", job.ID).Msg("Failed to publish job event")
	}
}
