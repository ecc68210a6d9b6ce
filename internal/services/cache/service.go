// Package cache implements the two-tier result cache: an in-process
// bounded FIFO map for hot lookups plus a durable-store freshness
// check consulted before triggering fresh analysis.
package cache

import (
	"context"
	"sync"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/sentio/internal/common"
	"github.com/ternarybob/sentio/internal/interfaces"
	"github.com/ternarybob/sentio/internal/models"
)

// Service owns the in-process cache map. External code only calls its
// operations; a miss is always a valid outcome and the cache never
// causes a caller-visible error.
type Service struct {
	mu      sync.Mutex
	store   *fifoStore
	ttl     time.Duration
	enabled bool
	hits    uint64
	misses  uint64

	pollInterval time.Duration
	pollCeiling  time.Duration

	results   interfaces.ResultStorage
	scheduler interfaces.SchedulerService
	logger    arbor.ILogger
}

var _ interfaces.CacheService = (*Service)(nil)

// NewService creates the result cache. The scheduler reference is used
// only to poll job status during result-caching; it is attached after
// construction to keep initialization order simple.
func NewService(cfg *common.CacheConfig, results interfaces.ResultStorage, logger arbor.ILogger) *Service {
	return &Service{
		store:        newFifoStore(cfg.MaxSize),
		ttl:          cfg.TTL(),
		enabled:      cfg.Enabled,
		pollInterval: cfg.Poll(),
		pollCeiling:  cfg.Ceiling(),
		results:      results,
		logger:       logger.WithPrefix("cache"),
	}
}

// AttachScheduler wires the scheduler used for result-caching polls.
func (s *Service) AttachScheduler(scheduler interfaces.SchedulerService) {
	s.scheduler = scheduler
}

// JobKey builds the cache key for a job's result.
func JobKey(jobID string) string { return "job:" + jobID }

// PostKey builds the cache key for a post's result.
func PostKey(postID string) string { return "post:" + postID }

// Get returns the cached value for key, or nil when absent or stale.
// Stale entries are evicted on read.
func (s *Service) Get(key string) interface{} {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.enabled {
		return nil
	}

	e, ok := s.store.get(key)
	if !ok {
		s.misses++
		return nil
	}
	if time.Since(e.insertedAt) >= s.ttl {
		s.store.remove(key)
		s.misses++
		return nil
	}

	s.hits++
	return e.value
}

// Set inserts a value, evicting the single oldest-inserted entry when
// the cache is at capacity.
func (s *Service) Set(key string, value interface{}) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.enabled {
		return
	}

	if evicted, ok := s.store.set(key, value, time.Now()); ok {
		s.logger.Debug().
			Str("evicted_key", evicted).
			Str("new_key", key).
			Msg("Oldest cache entry evicted")
	}
}

// CheckDurableFreshness consults the durable store for the most recent
// result for postID. A result younger than the TTL counts as a hit and
// warms the in-process cache. The durable store is authoritative; the
// in-process map only saves round trips within a TTL window.
func (s *Service) CheckDurableFreshness(ctx context.Context, postID string) *models.AnalysisResult {
	if s.results == nil {
		return nil
	}

	result, err := s.results.LatestByPost(ctx, postID)
	if err != nil {
		s.logger.Warn().Err(err).Str("post_id", postID).Msg("Durable freshness check failed")
		return nil
	}
	if result == nil {
		return nil
	}
	if time.Since(result.AnalyzedAt) >= s.ttl {
		return nil
	}

	s.Set(PostKey(postID), result)
	return result
}

// ScheduleResultCaching polls job status until the job reaches a
// terminal state. On COMPLETED the result is cached under both the
// job and post keys; on FAILED or CANCELLED polling stops without
// caching. The loop self-terminates at the ceiling even if the job
// never reaches a terminal state.
func (s *Service) ScheduleResultCaching(ctx context.Context, jobID, postID string) {
	if s.scheduler == nil {
		s.logger.Warn().Str("job_id", jobID).Msg("No scheduler attached, skipping result caching")
		return
	}

	common.SafeGoWithContext(ctx, s.logger, "resultCaching:"+jobID, func() {
		ticker := time.NewTicker(s.pollInterval)
		defer ticker.Stop()
		deadline := time.NewTimer(s.pollCeiling)
		defer deadline.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-deadline.C:
				s.logger.Warn().
					Str("job_id", jobID).
					Dur("ceiling", s.pollCeiling).
					Msg("Result caching poll hit ceiling, giving up")
				return
			case <-ticker.C:
				view, err := s.scheduler.GetJobStatus(ctx, jobID)
				if err != nil {
					s.logger.Debug().Err(err).Str("job_id", jobID).Msg("Job status poll failed")
					continue
				}
				if !view.Status.IsTerminal() {
					continue
				}

				if view.Status == models.JobStatusCompleted {
					s.cacheCompletedResult(ctx, jobID, postID)
				}
				return
			}
		}
	})
}

func (s *Service) cacheCompletedResult(ctx context.Context, jobID, postID string) {
	result, err := s.results.ByJob(ctx, jobID)
	if err != nil || result == nil {
		// Fall back to the post's latest result; the processor persists
		// before the job completes, so one of the two lookups holds.
		result, err = s.results.LatestByPost(ctx, postID)
		if err != nil || result == nil {
			s.logger.Warn().Str("job_id", jobID).Str("post_id", postID).Msg("Completed job has no stored result to cache")
			return
		}
	}

	s.Set(JobKey(jobID), result)
	s.Set(PostKey(postID), result)

	s.logger.Debug().
		Str("job_id", jobID).
		Str("post_id", postID).
		Msg("Analysis result cached")
}

// Invalidate clears the cache wholesale.
func (s *Service) Invalidate() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.store.clear()
	s.logger.Info().Msg("Cache invalidated")
}

// UpdateConfig merges new TTL/size/enabled settings; nil fields are
// left unchanged. Disabling clears the cache.
func (s *Service) UpdateConfig(settings interfaces.CacheSettings) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if settings.TTLSeconds != nil && *settings.TTLSeconds > 0 {
		s.ttl = time.Duration(*settings.TTLSeconds) * time.Second
	}
	if settings.MaxSize != nil && *settings.MaxSize > 0 {
		s.store.setMaxSize(*settings.MaxSize)
	}
	if settings.Enabled != nil {
		s.enabled = *settings.Enabled
		if !s.enabled {
			s.store.clear()
		}
	}

	s.logger.Info().
		Bool("enabled", s.enabled).
		Dur("ttl", s.ttl).
		Int("max_size", s.store.maxSize).
		Msg("Cache configuration updated")
}

// Stats scans entries and compares age to TTL. Observability only.
func (s *Service) Stats() models.CacheStats {
	s.mu.Lock()
	defer s.mu.Unlock()

	stats := models.CacheStats{
		TotalEntries: s.store.len(),
		MaxSize:      s.store.maxSize,
	}

	now := time.Now()
	s.store.each(func(e *entry) {
		if now.Sub(e.insertedAt) < s.ttl {
			stats.ValidEntries++
		} else {
			stats.ExpiredEntries++
		}
	})

	if lookups := s.hits + s.misses; lookups > 0 {
		stats.HitRate = float64(s.hits) / float64(lookups)
	}
	return stats
}
