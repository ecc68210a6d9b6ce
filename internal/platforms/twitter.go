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

const twitterBaseURL = "https://api.twitter.com/2"

// TwitterClient talks to the Twitter v2 API. No refresh endpoint is
// configured: expired Twitter connections require the user to redo the
// OAuth handshake.
type TwitterClient struct {
	baseClient
}

var _ interfaces.PlatformClient = (*TwitterClient)(nil)

// NewTwitterClient creates a Twitter platform client.
func NewTwitterClient(cfg common.PlatformConfig, logger arbor.ILogger) *TwitterClient {
	c := &TwitterClient{
		baseClient: newBaseClient(models.PlatformTwitter, twitterBaseURL, "", cfg, logger),
	}
	c.rlHeaders = rateLimitHeaders{
		Remaining: "x-rate-limit-remaining",
		Limit:     "x-rate-limit-limit",
		Reset:     "x-rate-limit-reset",
	}
	return c
}

type twitterUserResponse struct {
	Data struct {
		ID       string `json:"id"`
		Username string `json:"username"`
	} `json:"data"`
}

type twitterTweetsResponse struct {
	Data []struct {
		ID        string `json:"id"`
		Text      string `json:"text"`
		CreatedAt string `json:"created_at"`
		AuthorID  string `json:"author_id"`
		Metrics   struct {
			ReplyCount int `json:"reply_count"`
			LikeCount  int `json:"like_count"`
		} `json:"public_metrics"`
	} `json:"data"`
	Meta struct {
		NextToken string `json:"next_token"`
	} `json:"meta"`
}

func (c *TwitterClient) FetchUserPosts(ctx context.Context, token string, opts models.PageOptions) (*models.PostPage, error) {
	// The tweets endpoint is keyed by user id, so resolve it first.
	var me twitterUserResponse
	if err := c.getJSON(ctx, token, "/users/me", nil, &me); err != nil {
		return nil, err
	}

	params := url.Values{}
	params.Set("tweet.fields", "created_at,public_metrics")
	params.Set("max_results", strconv.Itoa(pageLimit(opts.Limit, 25, 100)))
	if opts.PageToken != "" {
		params.Set("pagination_token", opts.PageToken)
	}

	var resp twitterTweetsResponse
	if err := c.getJSON(ctx, token, "/users/"+me.Data.ID+"/tweets", params, &resp); err != nil {
		return nil, err
	}

	page := &models.PostPage{NextPageToken: resp.Meta.NextToken}
	for _, tweet := range resp.Data {
		page.Posts = append(page.Posts, models.Post{
			ID:           tweet.ID,
			Title:        tweet.Text,
			PublishedAt:  parseRFC3339(tweet.CreatedAt),
			CommentCount: tweet.Metrics.ReplyCount,
		})
	}
	return page, nil
}

func (c *TwitterClient) FetchPostComments(ctx context.Context, token, postID string, opts models.PageOptions) (*models.CommentPage, error) {
	// Replies to a tweet live in its conversation thread.
	params := url.Values{}
	params.Set("query", "conversation_id:"+postID)
	params.Set("tweet.fields", "created_at,author_id,public_metrics")
	params.Set("max_results", strconv.Itoa(pageLimit(opts.Limit, 50, 100)))
	if opts.PageToken != "" {
		params.Set("next_token", opts.PageToken)
	}

	var resp twitterTweetsResponse
	if err := c.getJSON(ctx, token, "/tweets/search/recent", params, &resp); err != nil {
		return nil, err
	}

	page := &models.CommentPage{NextPageToken: resp.Meta.NextToken}
	for _, tweet := range resp.Data {
		page.Comments = append(page.Comments, models.Comment{
			ID:          tweet.ID,
			Text:        tweet.Text,
			Author:      tweet.AuthorID,
			LikeCount:   tweet.Metrics.LikeCount,
			PublishedAt: parseRFC3339(tweet.CreatedAt),
		})
	}
	return page, nil
}

func (c *TwitterClient) ValidateToken(ctx context.Context, token string) bool {
	err := c.getJSON(ctx, token, "/users/me", nil, nil)
	return err == nil
}

func (c *TwitterClient) RateLimitInfo(ctx context.Context, token string) (*models.RateLimitInfo, error) {
	if info := c.lastRateLimit(); info != nil {
		return info, nil
	}
	return &models.RateLimitInfo{
		Remaining: 75,
		Limit:     75,
		ResetTime: time.Now().UTC().Add(15 * time.Minute),
	}, nil
}
