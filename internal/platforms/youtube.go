package platforms

import (
	"context"
	"net/url"
	"strconv"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/sentio/internal/common"
	"github.com/ternarybob/sentio/internal/interfaces"
	"github.com/ternarybob/sentio/internal/models"
)

const (
	youtubeBaseURL  = "https://www.googleapis.com/youtube/v3"
	youtubeTokenURL = "https://oauth2.googleapis.com/token"
)

// YouTubeClient talks to the YouTube Data API v3.
type YouTubeClient struct {
	baseClient
}

var _ interfaces.PlatformClient = (*YouTubeClient)(nil)

// NewYouTubeClient creates a YouTube platform client.
func NewYouTubeClient(cfg common.PlatformConfig, logger arbor.ILogger) *YouTubeClient {
	c := &YouTubeClient{
		baseClient: newBaseClient(models.PlatformYouTube, youtubeBaseURL, youtubeTokenURL, cfg, logger),
	}
	return c
}

type youtubeSearchResponse struct {
	NextPageToken string `json:"nextPageToken"`
	Items         []struct {
		ID struct {
			VideoID string `json:"videoId"`
		} `json:"id"`
		Snippet struct {
			Title       string `json:"title"`
			PublishedAt string `json:"publishedAt"`
		} `json:"snippet"`
	} `json:"items"`
}

type youtubeCommentThreadsResponse struct {
	NextPageToken string `json:"nextPageToken"`
	Items         []struct {
		ID      string `json:"id"`
		Snippet struct {
			TopLevelComment struct {
				Snippet struct {
					TextDisplay       string `json:"textDisplay"`
					AuthorDisplayName string `json:"authorDisplayName"`
					LikeCount         int    `json:"likeCount"`
					PublishedAt       string `json:"publishedAt"`
				} `json:"snippet"`
			} `json:"topLevelComment"`
		} `json:"snippet"`
	} `json:"items"`
}

func (c *YouTubeClient) FetchUserPosts(ctx context.Context, token string, opts models.PageOptions) (*models.PostPage, error) {
	params := url.Values{}
	params.Set("part", "snippet")
	params.Set("forMine", "true")
	params.Set("type", "video")
	params.Set("order", "date")
	params.Set("maxResults", strconv.Itoa(pageLimit(opts.Limit, 25, 50)))
	if opts.PageToken != "" {
		params.Set("pageToken", opts.PageToken)
	}

	var resp youtubeSearchResponse
	if err := c.getJSON(ctx, token, "/search", params, &resp); err != nil {
		return nil, err
	}

	page := &models.PostPage{NextPageToken: resp.NextPageToken}
	for _, item := range resp.Items {
		page.Posts = append(page.Posts, models.Post{
			ID:          item.ID.VideoID,
			Title:       item.Snippet.Title,
			PublishedAt: parseRFC3339(item.Snippet.PublishedAt),
		})
	}
	return page, nil
}

func (c *YouTubeClient) FetchPostComments(ctx context.Context, token, postID string, opts models.PageOptions) (*models.CommentPage, error) {
	params := url.Values{}
	params.Set("part", "snippet")
	params.Set("videoId", postID)
	params.Set("textFormat", "html")
	params.Set("maxResults", strconv.Itoa(pageLimit(opts.Limit, 100, 100)))
	if opts.PageToken != "" {
		params.Set("pageToken", opts.PageToken)
	}

	var resp youtubeCommentThreadsResponse
	if err := c.getJSON(ctx, token, "/commentThreads", params, &resp); err != nil {
		return nil, err
	}

	page := &models.CommentPage{NextPageToken: resp.NextPageToken}
	for _, item := range resp.Items {
		snippet := item.Snippet.TopLevelComment.Snippet
		page.Comments = append(page.Comments, models.Comment{
			ID:          item.ID,
			Text:        snippet.TextDisplay,
			Author:      snippet.AuthorDisplayName,
			LikeCount:   snippet.LikeCount,
			PublishedAt: parseRFC3339(snippet.PublishedAt),
		})
	}
	return page, nil
}

func (c *YouTubeClient) ValidateToken(ctx context.Context, token string) bool {
	params := url.Values{}
	params.Set("part", "id")
	params.Set("mine", "true")
	err := c.getJSON(ctx, token, "/channels", params, nil)
	return err == nil
}

func (c *YouTubeClient) RateLimitInfo(ctx context.Context, token string) (*models.RateLimitInfo, error) {
	// YouTube exposes a daily quota, not per-window headers; report a
	// conservative static window.
	return &models.RateLimitInfo{
		Remaining: 10000,
		Limit:     10000,
		ResetTime: time.Now().UTC().Truncate(24 * time.Hour).Add(24 * time.Hour),
	}, nil
}
