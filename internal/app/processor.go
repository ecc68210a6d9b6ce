package app

import (
	"context"
	"fmt"

	"github.com/ternarybob/sentio/internal/common"
	"github.com/ternarybob/sentio/internal/interfaces"
	"github.com/ternarybob/sentio/internal/models"
	"github.com/ternarybob/sentio/internal/services/cache"
)

const commentPageSize = 100

// analysisProcessor builds the work function the scheduler runs for
// each job: freshness check, token acquisition, comment fetch,
// preprocessing, analysis, result persistence.
func (a *App) analysisProcessor() interfaces.ProcessorFunc {
	logger := a.Logger.WithPrefix("processor")

	return func(ctx context.Context, job *models.AnalysisJob, commentIDs []string) error {
		report := func(step int, progress int, description string) {
			a.SchedulerService.UpdateJobProgress(ctx, job.ID, models.ProgressUpdate{
				Progress:        progress,
				CurrentStep:     step,
				TotalSteps:      job.TotalSteps,
				StepDescription: description,
			})
		}

		// Step 1: a fresh durable result makes the whole pipeline a no-op.
		report(1, 5, "checking cached results")
		if cached := a.CacheService.CheckDurableFreshness(ctx, job.PostID); cached != nil {
			logger.Info().
				Str("job_id", job.ID).
				Str("post_id", job.PostID).
				Msg("Fresh analysis already stored, skipping pipeline")
			report(5, 100, "served from cache")
			return nil
		}
		if err := ctx.Err(); err != nil {
			return err
		}

		// Step 2: find a platform connection that yields a usable token.
		report(2, 20, "acquiring platform token")
		client, token, err := a.resolvePlatform(ctx, job.UserID)
		if err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}

		// Step 3: page through the post's comments.
		report(3, 40, "fetching comments")
		comments, err := a.fetchAllComments(ctx, client, token, job.PostID, commentIDs)
		if err != nil {
			return fmt.Errorf("failed to fetch comments for post %s: %w", job.PostID, err)
		}
		if len(comments) == 0 {
			return fmt.Errorf("post %s has no comments to analyze", job.PostID)
		}
		if err := ctx.Err(); err != nil {
			return err
		}

		// Step 4: clean and filter before the comments reach the engine.
		report(4, 60, "preprocessing comments")
		preprocessed := a.PreprocessService.PreprocessComments(comments)
		if len(preprocessed.FilteredComments) == 0 {
			return fmt.Errorf("post %s: all %d comments filtered out", job.PostID, preprocessed.Stats.Total)
		}
		if err := ctx.Err(); err != nil {
			return err
		}

		// Step 5: analyze and persist.
		report(5, 80, "analyzing comments")
		result, err := a.AnalysisEngine.Analyze(ctx, preprocessed.FilteredComments)
		if err != nil {
			return fmt.Errorf("analysis failed for post %s: %w", job.PostID, err)
		}

		result.ID = common.NewResultID()
		result.PostID = job.PostID
		result.JobID = job.ID
		result.FilterStats = preprocessed.Stats

		if err := a.StorageManager.ResultStorage().Save(ctx, result); err != nil {
			return fmt.Errorf("failed to persist analysis result: %w", err)
		}

		a.CacheService.Set(cache.JobKey(job.ID), result)
		a.CacheService.Set(cache.PostKey(job.PostID), result)

		logger.Info().
			Str("job_id", job.ID).
			Str("post_id", job.PostID).
			Str("provider", result.Provider).
			Int("comments_analyzed", result.CommentsAnalyzed).
			Msg("Analysis pipeline complete")

		report(5, 95, "finalizing")
		return nil
	}
}

// resolvePlatform walks the user's connections and returns the first
// platform client a valid token could be obtained for. Jobs carry no
// platform of their own; the connection set decides.
func (a *App) resolvePlatform(ctx context.Context, userID string) (interfaces.PlatformClient, string, error) {
	statuses, err := a.TokenService.GetConnectionsStatus(ctx, userID)
	if err != nil {
		return nil, "", fmt.Errorf("failed to read connections for user %s: %w", userID, err)
	}

	var lastErr error
	for _, status := range statuses {
		if !status.Connected {
			continue
		}

		token, err := a.TokenService.GetValidToken(ctx, userID, status.Platform)
		if err != nil {
			lastErr = err
			continue
		}

		client, err := a.Platforms.Get(status.Platform)
		if err != nil {
			lastErr = err
			continue
		}
		return client, token, nil
	}

	if lastErr != nil {
		return nil, "", fmt.Errorf("no usable platform connection for user %s: %w", userID, lastErr)
	}
	return nil, "", models.ErrNoConnection
}

// fetchAllComments pages through the post's comments. When the caller
// supplied explicit comment ids, the fetched set is narrowed to those.
func (a *App) fetchAllComments(ctx context.Context, client interfaces.PlatformClient, token, postID string, commentIDs []string) ([]models.Comment, error) {
	var wanted map[string]struct{}
	if len(commentIDs) > 0 {
		wanted = make(map[string]struct{}, len(commentIDs))
		for _, id := range commentIDs {
			wanted[id] = struct{}{}
		}
	}

	var comments []models.Comment
	opts := models.PageOptions{Limit: commentPageSize}

	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		page, err := client.FetchPostComments(ctx, token, postID, opts)
		if err != nil {
			return nil, err
		}

		for _, comment := range page.Comments {
			if wanted != nil {
				if _, ok := wanted[comment.ID]; !ok {
					continue
				}
			}
			comments = append(comments, comment)
		}

		if page.NextPageToken == "" {
			break
		}
		opts.PageToken = page.NextPageToken
	}

	return comments, nil
}
