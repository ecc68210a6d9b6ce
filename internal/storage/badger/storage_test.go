package badger

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/sentio/internal/common"
	"github.com/ternarybob/sentio/internal/interfaces"
	"github.com/ternarybob/sentio/internal/models"
)

func setupManager(t *testing.T) interfaces.StorageManager {
	t.Helper()
	cfg := &common.StorageConfig{
		Path: filepath.Join(t.TempDir(), "sentio-test"),
	}
	manager, err := NewManager(arbor.NewLogger(), cfg)
	require.NoError(t, err)
	t.Cleanup(func() {
		require.NoError(t, manager.Close())
	})
	return manager
}

func TestTokenStorage_UpsertFindDelete(t *testing.T) {
	storage := setupManager(t).TokenStorage()
	ctx := context.Background()

	expiry := time.Now().UTC().Add(time.Hour)
	record := &models.TokenRecord{
		UserID:               "u1",
		Platform:             models.PlatformYouTube,
		EncryptedAccessToken: "enc-access",
		ExpiresAt:            &expiry,
	}
	require.NoError(t, storage.Upsert(ctx, record))
	assert.Equal(t, "u1:youtube", record.ID)
	assert.False(t, record.ConnectedAt.IsZero())

	found, err := storage.Find(ctx, "u1", models.PlatformYouTube)
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, "enc-access", found.EncryptedAccessToken)

	// Upsert overwrites, keeping one record per (user, platform).
	record.EncryptedAccessToken = "enc-access-2"
	require.NoError(t, storage.Upsert(ctx, record))
	found, err = storage.Find(ctx, "u1", models.PlatformYouTube)
	require.NoError(t, err)
	assert.Equal(t, "enc-access-2", found.EncryptedAccessToken)

	require.NoError(t, storage.Delete(ctx, "u1", models.PlatformYouTube))
	found, err = storage.Find(ctx, "u1", models.PlatformYouTube)
	require.NoError(t, err)
	assert.Nil(t, found)

	// Deleting again is a no-op.
	assert.NoError(t, storage.Delete(ctx, "u1", models.PlatformYouTube))
}

func TestTokenStorage_UpsertValidation(t *testing.T) {
	storage := setupManager(t).TokenStorage()
	ctx := context.Background()

	assert.Error(t, storage.Upsert(ctx, &models.TokenRecord{Platform: models.PlatformYouTube}))
	assert.Error(t, storage.Upsert(ctx, &models.TokenRecord{UserID: "u1", Platform: "myspace"}))
}

func TestTokenStorage_FindByUser(t *testing.T) {
	storage := setupManager(t).TokenStorage()
	ctx := context.Background()

	for _, platform := range []models.Platform{models.PlatformYouTube, models.PlatformTwitter} {
		require.NoError(t, storage.Upsert(ctx, &models.TokenRecord{
			UserID:               "u1",
			Platform:             platform,
			EncryptedAccessToken: "enc",
		}))
	}
	require.NoError(t, storage.Upsert(ctx, &models.TokenRecord{
		UserID:               "u2",
		Platform:             models.PlatformYouTube,
		EncryptedAccessToken: "enc",
	}))

	records, err := storage.FindByUser(ctx, "u1")
	require.NoError(t, err)
	assert.Len(t, records, 2)

	records, err = storage.FindByUser(ctx, "nobody")
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestTokenStorage_FindExpiredBefore(t *testing.T) {
	storage := setupManager(t).TokenStorage()
	ctx := context.Background()

	old := time.Now().UTC().Add(-30 * 24 * time.Hour)
	recent := time.Now().UTC().Add(-time.Hour)

	require.NoError(t, storage.Upsert(ctx, &models.TokenRecord{
		UserID: "u1", Platform: models.PlatformYouTube, EncryptedAccessToken: "enc", ExpiresAt: &old,
	}))
	require.NoError(t, storage.Upsert(ctx, &models.TokenRecord{
		UserID: "u1", Platform: models.PlatformTwitter, EncryptedAccessToken: "enc", ExpiresAt: &recent,
	}))
	// No expiry never shows up in the sweep.
	require.NoError(t, storage.Upsert(ctx, &models.TokenRecord{
		UserID: "u1", Platform: models.PlatformFacebook, EncryptedAccessToken: "enc",
	}))

	cutoff := time.Now().UTC().Add(-7 * 24 * time.Hour)
	records, err := storage.FindExpiredBefore(ctx, cutoff)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, models.PlatformYouTube, records[0].Platform)
}

func TestJobStorage_InsertGetUpdate(t *testing.T) {
	storage := setupManager(t).JobStorage()
	ctx := context.Background()

	job := &models.AnalysisJob{
		ID:        "job_1",
		PostID:    "p1",
		UserID:    "u1",
		Status:    models.JobStatusPending,
		CreatedAt: time.Now().UTC(),
	}
	require.NoError(t, storage.Insert(ctx, job))

	// Duplicate insert is rejected.
	assert.Error(t, storage.Insert(ctx, job))

	got, err := storage.Get(ctx, "job_1")
	require.NoError(t, err)
	assert.Equal(t, models.JobStatusPending, got.Status)

	got.MarkRunning()
	require.NoError(t, storage.Update(ctx, got))

	got, err = storage.Get(ctx, "job_1")
	require.NoError(t, err)
	assert.Equal(t, models.JobStatusRunning, got.Status)
	assert.NotNil(t, got.StartedAt)

	_, err = storage.Get(ctx, "job_missing")
	assert.ErrorIs(t, err, models.ErrJobNotFound)

	assert.ErrorIs(t, storage.Update(ctx, &models.AnalysisJob{ID: "job_missing"}), models.ErrJobNotFound)
}

func TestJobStorage_FindActive(t *testing.T) {
	storage := setupManager(t).JobStorage()
	ctx := context.Background()

	terminal := &models.AnalysisJob{
		ID: "job_done", PostID: "p1", UserID: "u1",
		Status: models.JobStatusCompleted, CreatedAt: time.Now().UTC(),
	}
	require.NoError(t, storage.Insert(ctx, terminal))

	active, err := storage.FindActive(ctx, "p1", "u1")
	require.NoError(t, err)
	assert.Nil(t, active, "terminal jobs are not active")

	pending := &models.AnalysisJob{
		ID: "job_pending", PostID: "p1", UserID: "u1",
		Status: models.JobStatusPending, CreatedAt: time.Now().UTC(),
	}
	require.NoError(t, storage.Insert(ctx, pending))

	active, err = storage.FindActive(ctx, "p1", "u1")
	require.NoError(t, err)
	require.NotNil(t, active)
	assert.Equal(t, "job_pending", active.ID)

	// Other users' jobs never match.
	active, err = storage.FindActive(ctx, "p1", "u2")
	require.NoError(t, err)
	assert.Nil(t, active)
}

func TestJobStorage_GetByUserNewestFirst(t *testing.T) {
	storage := setupManager(t).JobStorage()
	ctx := context.Background()

	base := time.Now().UTC()
	for i := 0; i < 4; i++ {
		require.NoError(t, storage.Insert(ctx, &models.AnalysisJob{
			ID:        fmt.Sprintf("job_%d", i),
			PostID:    fmt.Sprintf("p%d", i),
			UserID:    "u1",
			Status:    models.JobStatusPending,
			CreatedAt: base.Add(time.Duration(i) * time.Minute),
		}))
	}

	jobs, err := storage.GetByUser(ctx, "u1", 3)
	require.NoError(t, err)
	require.Len(t, jobs, 3)
	assert.Equal(t, "job_3", jobs[0].ID)
	assert.Equal(t, "job_2", jobs[1].ID)
	assert.Equal(t, "job_1", jobs[2].ID)
}

func TestResultStorage_SaveAndLookups(t *testing.T) {
	storage := setupManager(t).ResultStorage()
	ctx := context.Background()

	older := &models.AnalysisResult{
		ID:         "res_1",
		PostID:     "p1",
		JobID:      "job_1",
		Provider:   "offline",
		AnalyzedAt: time.Now().UTC().Add(-time.Hour),
	}
	newer := &models.AnalysisResult{
		ID:         "res_2",
		PostID:     "p1",
		JobID:      "job_2",
		Provider:   "offline",
		AnalyzedAt: time.Now().UTC(),
	}
	require.NoError(t, storage.Save(ctx, older))
	require.NoError(t, storage.Save(ctx, newer))

	got, err := storage.Get(ctx, "res_1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "job_1", got.JobID)

	latest, err := storage.LatestByPost(ctx, "p1")
	require.NoError(t, err)
	require.NotNil(t, latest)
	assert.Equal(t, "res_2", latest.ID)

	byJob, err := storage.ByJob(ctx, "job_1")
	require.NoError(t, err)
	require.NotNil(t, byJob)
	assert.Equal(t, "res_1", byJob.ID)

	// Absent lookups are nil, not errors.
	missing, err := storage.Get(ctx, "res_missing")
	require.NoError(t, err)
	assert.Nil(t, missing)

	latest, err = storage.LatestByPost(ctx, "p_missing")
	require.NoError(t, err)
	assert.Nil(t, latest)
}

func TestResultStorage_SaveValidation(t *testing.T) {
	storage := setupManager(t).ResultStorage()
	ctx := context.Background()

	assert.Error(t, storage.Save(ctx, &models.AnalysisResult{PostID: "p1"}))
	assert.Error(t, storage.Save(ctx, &models.AnalysisResult{ID: "res_1"}))
}

func TestManager_RunGC(t *testing.T) {
	manager := setupManager(t)

	// Nothing to collect on a fresh store; the pass must still succeed.
	assert.NoError(t, manager.RunGC())
}

func TestManager_ResetOnStartup(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "sentio-reset")
	cfg := &common.StorageConfig{Path: dir}

	manager, err := NewManager(arbor.NewLogger(), cfg)
	require.NoError(t, err)
	require.NoError(t, manager.JobStorage().Insert(context.Background(), &models.AnalysisJob{
		ID: "job_1", PostID: "p1", UserID: "u1",
		Status: models.JobStatusPending, CreatedAt: time.Now().UTC(),
	}))
	require.NoError(t, manager.Close())

	// Reopen with reset: previous data is gone.
	cfg.ResetOnStartup = true
	manager, err = NewManager(arbor.NewLogger(), cfg)
	require.NoError(t, err)
	defer manager.Close()

	_, err = manager.JobStorage().Get(context.Background(), "job_1")
	assert.ErrorIs(t, err, models.ErrJobNotFound)
}
