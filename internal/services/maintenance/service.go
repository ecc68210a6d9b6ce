// Package maintenance runs the recurring background chores: the nightly
// stale-credential sweep and a periodic cache health log line.
package maintenance

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/sentio/internal/interfaces"
)

// Service schedules recurring maintenance with cron expressions.
type Service struct {
	cron    *cron.Cron
	tokens  interfaces.TokenService
	cache   interfaces.CacheService
	events  interfaces.EventService
	storage interfaces.StorageManager
	logger  arbor.ILogger
	running bool
}

// NewService creates the maintenance scheduler.
func NewService(tokens interfaces.TokenService, cache interfaces.CacheService, events interfaces.EventService, storage interfaces.StorageManager, logger arbor.ILogger) *Service {
	return &Service{
		cron:    cron.New(),
		tokens:  tokens,
		cache:   cache,
		events:  events,
		storage: storage,
		logger:  logger.WithPrefix("maintenance"),
	}
}

// Start registers the cleanup schedule and begins ticking.
func (s *Service) Start(cleanupSchedule string) error {
	if s.running {
		return fmt.Errorf("maintenance service already running")
	}

	if cleanupSchedule == "" {
		cleanupSchedule = "0 3 * * *"
	}

	if _, err := s.cron.AddFunc(cleanupSchedule, s.runTokenCleanup); err != nil {
		return fmt.Errorf("invalid cleanup schedule %q: %w", cleanupSchedule, err)
	}

	// Hourly cache health line, mainly for spotting runaway eviction.
	if _, err := s.cron.AddFunc("0 * * * *", s.logCacheStats); err != nil {
		return fmt.Errorf("failed to register cache stats task: %w", err)
	}

	s.cron.Start()
	s.running = true

	s.logger.Info().
		Str("cleanup_schedule", cleanupSchedule).
		Msg("Maintenance service started")

	return nil
}

// Stop halts the cron runner, waiting for a running task to finish.
func (s *Service) Stop() {
	if !s.running {
		return
	}

	ctx := s.cron.Stop()
	<-ctx.Done()
	s.running = false

	s.logger.Info().Msg("Maintenance service stopped")
}

func (s *Service) runTokenCleanup() {
	s.logger.Info().Msg("Running scheduled token cleanup")

	result, err := s.tokens.CleanupExpiredTokens(context.Background())
	if err != nil {
		s.logger.Error().Err(err).Msg("Scheduled token cleanup failed")
		return
	}

	if s.events != nil {
		s.events.Publish(context.Background(), interfaces.Event{
			Type:      interfaces.EventTokenCleanup,
			Timestamp: time.Now().UTC(),
			Payload: map[string]interface{}{
				"deleted": result.DeletedConnections,
				"errors":  len(result.Errors),
			},
		})
	}

	// Reclaim store space freed by the sweep.
	if s.storage != nil {
		if err := s.storage.RunGC(); err != nil {
			s.logger.Warn().Err(err).Msg("Store garbage collection failed")
		}
	}
}

func (s *Service) logCacheStats() {
	stats := s.cache.Stats()
	s.logger.Info().
		Int("entries", stats.TotalEntries).
		Int("valid", stats.ValidEntries).
		Int("expired", stats.ExpiredEntries).
		Float64("hit_rate", stats.HitRate).
		Msg("Cache health")
}
