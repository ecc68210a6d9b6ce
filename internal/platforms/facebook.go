package platforms

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/sentio/internal/common"
	"github.com/ternarybob/sentio/internal/interfaces"
	"github.com/ternarybob/sentio/internal/models"
)

const facebookBaseURL = "https://graph.facebook.com/v19.0"

// FacebookClient talks to the Facebook Graph API. Long-lived tokens
// are renewed through the fb_exchange_token flow, so RefreshToken is
// overridden here.
type FacebookClient struct {
	baseClient
	clientID     string
	clientSecret string
}

var _ interfaces.PlatformClient = (*FacebookClient)(nil)

// NewFacebookClient creates a Facebook platform client.
func NewFacebookClient(cfg common.PlatformConfig, logger arbor.ILogger) *FacebookClient {
	return &FacebookClient{
		baseClient:   newBaseClient(models.PlatformFacebook, facebookBaseURL, "", cfg, logger),
		clientID:     cfg.ClientID,
		clientSecret: cfg.ClientSecret,
	}
}

// SupportsRefresh is true even though no OAuth token URL is configured;
// Facebook renews long-lived tokens through the exchange endpoint.
func (c *FacebookClient) SupportsRefresh() bool {
	return true
}

// RefreshToken exchanges the stored long-lived token for a new one.
func (c *FacebookClient) RefreshToken(ctx context.Context, refreshToken string) (*models.TokenResponse, error) {
	params := url.Values{}
	params.Set("grant_type", "fb_exchange_token")
	params.Set("client_id", c.clientID)
	params.Set("client_secret", c.clientSecret)
	params.Set("fb_exchange_token", refreshToken)

	endpoint := c.baseURL + "/oauth/access_token?" + params.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build refresh request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &models.RefreshError{Platform: c.platform, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, &models.RefreshError{
			Platform: c.platform,
			Err:      fmt.Errorf("token exchange returned %d: %s", resp.StatusCode, string(body)),
		}
	}

	var payload struct {
		AccessToken string `json:"access_token"`
		ExpiresIn   int64  `json:"expires_in"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, &models.RefreshError{Platform: c.platform, Err: err}
	}

	response := &models.TokenResponse{
		AccessToken:  payload.AccessToken,
		RefreshToken: payload.AccessToken,
	}
	if payload.ExpiresIn > 0 {
		expiry := time.Now().UTC().Add(time.Duration(payload.ExpiresIn) * time.Second)
		response.ExpiresAt = &expiry
	}
	return response, nil
}

type facebookPostsResponse struct {
	Data []struct {
		ID          string `json:"id"`
		Message     string `json:"message"`
		CreatedTime string `json:"created_time"`
	} `json:"data"`
	Paging struct {
		Cursors struct {
			After string `json:"after"`
		} `json:"cursors"`
	} `json:"paging"`
}

type facebookCommentsResponse struct {
	Data []struct {
		ID          string `json:"id"`
		Message     string `json:"message"`
		CreatedTime string `json:"created_time"`
		From        struct {
			Name string `json:"name"`
		} `json:"from"`
		LikeCount int `json:"like_count"`
	} `json:"data"`
	Paging struct {
		Cursors struct {
			After string `json:"after"`
		} `json:"cursors"`
	} `json:"paging"`
}

func (c *FacebookClient) FetchUserPosts(ctx context.Context, token string, opts models.PageOptions) (*models.PostPage, error) {
	params := url.Values{}
	params.Set("fields", "id,message,created_time")
	params.Set("limit", strconv.Itoa(pageLimit(opts.Limit, 25, 100)))
	if opts.PageToken != "" {
		params.Set("after", opts.PageToken)
	}

	var resp facebookPostsResponse
	if err := c.getJSON(ctx, token, "/me/posts", params, &resp); err != nil {
		return nil, err
	}

	page := &models.PostPage{NextPageToken: resp.Paging.Cursors.After}
	for _, post := range resp.Data {
		page.Posts = append(page.Posts, models.Post{
			ID:          post.ID,
			Title:       post.Message,
			PublishedAt: parseFacebookTime(post.CreatedTime),
		})
	}
	return page, nil
}

func (c *FacebookClient) FetchPostComments(ctx context.Context, token, postID string, opts models.PageOptions) (*models.CommentPage, error) {
	params := url.Values{}
	params.Set("fields", "id,message,created_time,from,like_count")
	params.Set("limit", strconv.Itoa(pageLimit(opts.Limit, 50, 100)))
	if opts.PageToken != "" {
		params.Set("after", opts.PageToken)
	}

	var resp facebookCommentsResponse
	if err := c.getJSON(ctx, token, "/"+postID+"/comments", params, &resp); err != nil {
		return nil, err
	}

	page := &models.CommentPage{NextPageToken: resp.Paging.Cursors.After}
	for _, comment := range resp.Data {
		page.Comments = append(page.Comments, models.Comment{
			ID:          comment.ID,
			Text:        comment.Message,
			Author:      comment.From.Name,
			LikeCount:   comment.LikeCount,
			PublishedAt: parseFacebookTime(comment.CreatedTime),
		})
	}
	return page, nil
}

func (c *FacebookClient) ValidateToken(ctx context.Context, token string) bool {
	params := url.Values{}
	params.Set("fields", "id")
	err := c.getJSON(ctx, token, "/me", params, nil)
	return err == nil
}

func (c *FacebookClient) RateLimitInfo(ctx context.Context, token string) (*models.RateLimitInfo, error) {
	if info := c.lastRateLimit(); info != nil {
		return info, nil
	}
	return &models.RateLimitInfo{
		Remaining: 200,
		Limit:     200,
		ResetTime: time.Now().UTC().Add(time.Hour),
	}, nil
}

// parseFacebookTime parses Facebook's created_time format, which uses
// a numeric zone offset without a colon.
func parseFacebookTime(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	t, err := time.Parse("2006-01-02T15:04:05-0700", s)
	if err != nil {
		return parseRFC3339(s)
	}
	return t.UTC()
}
