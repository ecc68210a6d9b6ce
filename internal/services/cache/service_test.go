package cache

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/sentio/internal/common"
	"github.com/ternarybob/sentio/internal/interfaces"
	"github.com/ternarybob/sentio/internal/models"
)

type stubResultStorage struct {
	latest map[string]*models.AnalysisResult
	byJob  map[string]*models.AnalysisResult
}

func (s *stubResultStorage) Save(ctx context.Context, result *models.AnalysisResult) error {
	return nil
}

func (s *stubResultStorage) Get(ctx context.Context, resultID string) (*models.AnalysisResult, error) {
	return nil, nil
}

func (s *stubResultStorage) LatestByPost(ctx context.Context, postID string) (*models.AnalysisResult, error) {
	return s.latest[postID], nil
}

func (s *stubResultStorage) ByJob(ctx context.Context, jobID string) (*models.AnalysisResult, error) {
	return s.byJob[jobID], nil
}

func newTestService(t *testing.T, results *stubResultStorage) *Service {
	t.Helper()
	cfg := &common.CacheConfig{
		Enabled:      true,
		TTLSeconds:   300,
		MaxSize:      3,
		PollInterval: "10ms",
		PollCeiling:  "1s",
	}
	return NewService(cfg, results, arbor.NewLogger())
}

func TestService_SetGet(t *testing.T) {
	s := newTestService(t, &stubResultStorage{})

	s.Set("job:j1", "value")
	assert.Equal(t, "value", s.Get("job:j1"))
	assert.Nil(t, s.Get("job:missing"))
}

func TestService_StaleEntryEvictedOnRead(t *testing.T) {
	s := newTestService(t, &stubResultStorage{})

	s.Set("post:p1", "value")

	// Age the entry past the TTL.
	s.mu.Lock()
	e, ok := s.store.get("post:p1")
	require.True(t, ok)
	e.insertedAt = time.Now().Add(-10 * time.Minute)
	s.mu.Unlock()

	assert.Nil(t, s.Get("post:p1"))

	// The stale entry was removed, not just hidden.
	s.mu.Lock()
	_, ok = s.store.get("post:p1")
	s.mu.Unlock()
	assert.False(t, ok)
}

func TestService_CapacityEviction(t *testing.T) {
	s := newTestService(t, &stubResultStorage{})

	s.Set("a", 1)
	s.Set("b", 2)
	s.Set("c", 3)
	s.Set("d", 4)

	assert.Nil(t, s.Get("a"))
	assert.Equal(t, 4, s.Get("d"))

	stats := s.Stats()
	assert.Equal(t, 3, stats.TotalEntries)
	assert.Equal(t, 3, stats.MaxSize)
}

func TestService_DisabledCacheIsInert(t *testing.T) {
	s := newTestService(t, &stubResultStorage{})

	enabled := false
	s.UpdateConfig(interfaces.CacheSettings{Enabled: &enabled})

	s.Set("k", "v")
	assert.Nil(t, s.Get("k"))
	assert.Equal(t, 0, s.Stats().TotalEntries)
}

func TestService_DisablingClearsEntries(t *testing.T) {
	s := newTestService(t, &stubResultStorage{})
	s.Set("k", "v")

	enabled := false
	s.UpdateConfig(interfaces.CacheSettings{Enabled: &enabled})
	enabled = true
	s.UpdateConfig(interfaces.CacheSettings{Enabled: &enabled})

	assert.Nil(t, s.Get("k"))
}

func TestService_UpdateConfigShrinksCapacity(t *testing.T) {
	s := newTestService(t, &stubResultStorage{})
	s.Set("a", 1)
	s.Set("b", 2)
	s.Set("c", 3)

	maxSize := 1
	s.UpdateConfig(interfaces.CacheSettings{MaxSize: &maxSize})

	stats := s.Stats()
	assert.Equal(t, 1, stats.TotalEntries)
	assert.Equal(t, 3, s.Get("c"))
}

func TestService_Invalidate(t *testing.T) {
	s := newTestService(t, &stubResultStorage{})
	s.Set("a", 1)
	s.Set("b", 2)

	s.Invalidate()

	assert.Nil(t, s.Get("a"))
	assert.Equal(t, 0, s.Stats().TotalEntries)
}

func TestService_CheckDurableFreshness(t *testing.T) {
	fresh := &models.AnalysisResult{
		ID:         "res_1",
		PostID:     "p1",
		AnalyzedAt: time.Now().Add(-time.Minute),
	}
	stale := &models.AnalysisResult{
		ID:         "res_2",
		PostID:     "p2",
		AnalyzedAt: time.Now().Add(-time.Hour),
	}
	results := &stubResultStorage{
		latest: map[string]*models.AnalysisResult{"p1": fresh, "p2": stale},
	}
	s := newTestService(t, results)

	got := s.CheckDurableFreshness(context.Background(), "p1")
	require.NotNil(t, got)
	assert.Equal(t, "res_1", got.ID)

	// The durable hit warms the in-process cache.
	assert.Equal(t, fresh, s.Get(PostKey("p1")))

	assert.Nil(t, s.CheckDurableFreshness(context.Background(), "p2"))
	assert.Nil(t, s.CheckDurableFreshness(context.Background(), "unknown"))
}

// stubScheduler serves scripted job views to the result-caching poll
// loop. Only GetJobStatus does anything.
type stubScheduler struct {
	mu    sync.Mutex
	view  *models.JobView
	polls int
}

func (s *stubScheduler) setStatus(status models.JobStatus) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.view.Status = status
}

func (s *stubScheduler) pollCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.polls
}

func (s *stubScheduler) GetJobStatus(ctx context.Context, jobID string) (*models.JobView, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.polls++
	if s.view == nil || s.view.ID != jobID {
		return nil, models.ErrJobNotFound
	}
	copied := *s.view
	return &copied, nil
}

func (s *stubScheduler) CreateJob(ctx context.Context, postID, userID string, totalComments int) (*models.AnalysisJob, error) {
	return nil, nil
}
func (s *stubScheduler) QueueAnalysisJob(ctx context.Context, postID, userID string, commentIDs []string) (string, error) {
	return "", nil
}
func (s *stubScheduler) UpdateJobProgress(ctx context.Context, jobID string, update models.ProgressUpdate) error {
	return nil
}
func (s *stubScheduler) CompleteJob(ctx context.Context, jobID string) error            { return nil }
func (s *stubScheduler) FailJob(ctx context.Context, jobID, errorMessage string) error  { return nil }
func (s *stubScheduler) CancelJob(ctx context.Context, jobID string) error              { return nil }
func (s *stubScheduler) GetUserJobs(ctx context.Context, userID string, limit int) ([]*models.JobView, error) {
	return nil, nil
}
func (s *stubScheduler) RegisterProcessor(fn interfaces.ProcessorFunc) {}
func (s *stubScheduler) GetQueueStats() models.QueueStats              { return models.QueueStats{} }
func (s *stubScheduler) Start()                                        {}
func (s *stubScheduler) Stop()                                         {}

func TestScheduleResultCaching_CachesCompletedResult(t *testing.T) {
	result := &models.AnalysisResult{ID: "res_1", PostID: "p1", JobID: "j1"}
	results := &stubResultStorage{
		byJob: map[string]*models.AnalysisResult{"j1": result},
	}
	s := newTestService(t, results)

	scheduler := &stubScheduler{view: &models.JobView{ID: "j1", Status: models.JobStatusRunning}}
	s.AttachScheduler(scheduler)

	s.ScheduleResultCaching(context.Background(), "j1", "p1")

	// Let a few polls observe the running job, then finish it.
	require.Eventually(t, func() bool {
		return scheduler.pollCount() >= 2
	}, time.Second, 5*time.Millisecond)
	assert.Nil(t, s.Get(JobKey("j1")))

	scheduler.setStatus(models.JobStatusCompleted)

	require.Eventually(t, func() bool {
		return s.Get(JobKey("j1")) != nil
	}, time.Second, 5*time.Millisecond)
	assert.Equal(t, result, s.Get(JobKey("j1")))
	assert.Equal(t, result, s.Get(PostKey("p1")))
}

func TestScheduleResultCaching_StopsSilentlyOnFailure(t *testing.T) {
	for _, status := range []models.JobStatus{models.JobStatusFailed, models.JobStatusCancelled} {
		t.Run(string(status), func(t *testing.T) {
			results := &stubResultStorage{
				byJob: map[string]*models.AnalysisResult{"j1": {ID: "res_1", PostID: "p1", JobID: "j1"}},
			}
			s := newTestService(t, results)

			scheduler := &stubScheduler{view: &models.JobView{ID: "j1", Status: status}}
			s.AttachScheduler(scheduler)

			s.ScheduleResultCaching(context.Background(), "j1", "p1")

			// The first poll sees the terminal status and the loop exits.
			require.Eventually(t, func() bool {
				return scheduler.pollCount() >= 1
			}, time.Second, 5*time.Millisecond)

			settled := scheduler.pollCount()
			time.Sleep(50 * time.Millisecond)
			assert.Equal(t, settled, scheduler.pollCount(), "poll loop kept running past terminal status")

			// Nothing cached even though a stored result exists.
			assert.Nil(t, s.Get(JobKey("j1")))
			assert.Nil(t, s.Get(PostKey("p1")))
		})
	}
}

func TestScheduleResultCaching_PollCeilingTerminatesLoop(t *testing.T) {
	cfg := &common.CacheConfig{
		Enabled:      true,
		TTLSeconds:   300,
		MaxSize:      3,
		PollInterval: "10ms",
		PollCeiling:  "60ms",
	}
	s := NewService(cfg, &stubResultStorage{}, arbor.NewLogger())

	// The job never reaches a terminal state.
	scheduler := &stubScheduler{view: &models.JobView{ID: "j1", Status: models.JobStatusRunning}}
	s.AttachScheduler(scheduler)

	s.ScheduleResultCaching(context.Background(), "j1", "p1")

	require.Eventually(t, func() bool {
		return scheduler.pollCount() >= 1
	}, time.Second, 5*time.Millisecond)

	// Past the ceiling the loop must have given up.
	time.Sleep(150 * time.Millisecond)
	settled := scheduler.pollCount()
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, settled, scheduler.pollCount(), "poll loop outlived the ceiling")
	assert.Nil(t, s.Get(JobKey("j1")))
}

func TestService_HitRate(t *testing.T) {
	s := newTestService(t, &stubResultStorage{})
	s.Set("k", "v")

	s.Get("k")       // hit
	s.Get("k")       // hit
	s.Get("missing") // miss

	stats := s.Stats()
	assert.InDelta(t, 2.0/3.0, stats.HitRate, 0.001)
}
