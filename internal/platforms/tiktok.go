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
	tiktokBaseURL  = "https://open.tiktokapis.com/v2"
	tiktokTokenURL = "https://open.tiktokapis.com/v2/oauth/token/"
)

// TikTokClient talks to the TikTok open API.
type TikTokClient struct {
	baseClient
}

var _ interfaces.PlatformClient = (*TikTokClient)(nil)

// NewTikTokClient creates a TikTok platform client.
func NewTikTokClient(cfg common.PlatformConfig, logger arbor.ILogger) *TikTokClient {
	return &TikTokClient{
		baseClient: newBaseClient(models.PlatformTikTok, tiktokBaseURL, tiktokTokenURL, cfg, logger),
	}
}

type tiktokVideoListResponse struct {
	Data struct {
		Videos []struct {
			ID           string `json:"id"`
			Title        string `json:"title"`
			CreateTime   int64  `json:"create_time"`
			CommentCount int    `json:"comment_count"`
		} `json:"videos"`
		Cursor  int64 `json:"cursor"`
		HasMore bool  `json:"has_more"`
	} `json:"data"`
}

type tiktokCommentListResponse struct {
	Data struct {
		Comments []struct {
			ID         string `json:"id"`
			Text       string `json:"text"`
			Username   string `json:"username"`
			CreateTime int64  `json:"create_time"`
			LikeCount  int    `json:"like_count"`
		} `json:"comments"`
		Cursor  int64 `json:"cursor"`
		HasMore bool  `json:"has_more"`
	} `json:"data"`
}

func (c *TikTokClient) FetchUserPosts(ctx context.Context, token string, opts models.PageOptions) (*models.PostPage, error) {
	params := url.Values{}
	params.Set("fields", "id,title,create_time,comment_count")
	params.Set("max_count", strconv.Itoa(pageLimit(opts.Limit, 20, 20)))
	if opts.PageToken != "" {
		params.Set("cursor", opts.PageToken)
	}

	var resp tiktokVideoListResponse
	if err := c.getJSON(ctx, token, "/video/list/", params, &resp); err != nil {
		return nil, err
	}

	page := &models.PostPage{}
	if resp.Data.HasMore {
		page.NextPageToken = strconv.FormatInt(resp.Data.Cursor, 10)
	}
	for _, video := range resp.Data.Videos {
		page.Posts = append(page.Posts, models.Post{
			ID:           video.ID,
			Title:        video.Title,
			PublishedAt:  time.Unix(video.CreateTime, 0).UTC(),
			CommentCount: video.CommentCount,
		})
	}
	return page, nil
}

func (c *TikTokClient) FetchPostComments(ctx context.Context, token, postID string, opts models.PageOptions) (*models.CommentPage, error) {
	params := url.Values{}
	params.Set("fields", "id,text,username,create_time,like_count")
	params.Set("video_id", postID)
	params.Set("max_count", strconv.Itoa(pageLimit(opts.Limit, 50, 100)))
	if opts.PageToken != "" {
		params.Set("cursor", opts.PageToken)
	}

	var resp tiktokCommentListResponse
	if err := c.getJSON(ctx, token, "/comment/list/", params, &resp); err != nil {
		return nil, err
	}

	page := &models.CommentPage{}
	if resp.Data.HasMore {
		page.NextPageToken = strconv.FormatInt(resp.Data.Cursor, 10)
	}
	for _, comment := range resp.Data.Comments {
		page.Comments = append(page.Comments, models.Comment{
			ID:          comment.ID,
			Text:        comment.Text,
			Author:      comment.Username,
			LikeCount:   comment.LikeCount,
			PublishedAt: time.Unix(comment.CreateTime, 0).UTC(),
		})
	}
	return page, nil
}

func (c *TikTokClient) ValidateToken(ctx context.Context, token string) bool {
	params := url.Values{}
	params.Set("fields", "open_id")
	err := c.getJSON(ctx, token, "/user/info/", params, nil)
	return err == nil
}

func (c *TikTokClient) RateLimitInfo(ctx context.Context, token string) (*models.RateLimitInfo, error) {
	if info := c.lastRateLimit(); info != nil {
		return info, nil
	}
	return &models.RateLimitInfo{
		Remaining: 600,
		Limit:     600,
		ResetTime: time.Now().UTC().Add(time.Minute),
	}, nil
}
