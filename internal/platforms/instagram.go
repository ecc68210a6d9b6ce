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

const instagramBaseURL = "https://graph.instagram.com"

// InstagramClient talks to the Instagram Graph API. Long-lived tokens
// are renewed through the refresh_access_token endpoint rather than a
// standard OAuth token exchange, so RefreshToken is overridden here.
type InstagramClient struct {
	baseClient
}

var _ interfaces.PlatformClient = (*InstagramClient)(nil)

// NewInstagramClient creates an Instagram platform client.
func NewInstagramClient(cfg common.PlatformConfig, logger arbor.ILogger) *InstagramClient {
	return &InstagramClient{
		baseClient: newBaseClient(models.PlatformInstagram, instagramBaseURL, "", cfg, logger),
	}
}

// SupportsRefresh is true even though no OAuth token URL is configured;
// Instagram renews long-lived tokens through its own endpoint.
func (c *InstagramClient) SupportsRefresh() bool {
	return true
}

// RefreshToken renews a long-lived Instagram token. The stored refresh
// token for Instagram is the long-lived access token itself.
func (c *InstagramClient) RefreshToken(ctx context.Context, refreshToken string) (*models.TokenResponse, error) {
	params := url.Values{}
	params.Set("grant_type", "ig_refresh_token")
	params.Set("access_token", refreshToken)

	endpoint := c.baseURL + "/refresh_access_token?" + params.Encode()
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
			Err:      fmt.Errorf("refresh endpoint returned %d: %s", resp.StatusCode, string(body)),
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

type instagramMediaResponse struct {
	Data []struct {
		ID            string `json:"id"`
		Caption       string `json:"caption"`
		Timestamp     string `json:"timestamp"`
		CommentsCount int    `json:"comments_count"`
	} `json:"data"`
	Paging struct {
		Cursors struct {
			After string `json:"after"`
		} `json:"cursors"`
	} `json:"paging"`
}

type instagramCommentsResponse struct {
	Data []struct {
		ID        string `json:"id"`
		Text      string `json:"text"`
		Username  string `json:"username"`
		Timestamp string `json:"timestamp"`
		LikeCount int    `json:"like_count"`
	} `json:"data"`
	Paging struct {
		Cursors struct {
			After string `json:"after"`
		} `json:"cursors"`
	} `json:"paging"`
}

func (c *InstagramClient) FetchUserPosts(ctx context.Context, token string, opts models.PageOptions) (*models.PostPage, error) {
	params := url.Values{}
	params.Set("fields", "id,caption,timestamp,comments_count")
	params.Set("limit", strconv.Itoa(pageLimit(opts.Limit, 25, 100)))
	if opts.PageToken != "" {
		params.Set("after", opts.PageToken)
	}

	var resp instagramMediaResponse
	if err := c.getJSON(ctx, token, "/me/media", params, &resp); err != nil {
		return nil, err
	}

	page := &models.PostPage{NextPageToken: resp.Paging.Cursors.After}
	for _, item := range resp.Data {
		page.Posts = append(page.Posts, models.Post{
			ID:           item.ID,
			Title:        item.Caption,
			PublishedAt:  parseRFC3339(item.Timestamp),
			CommentCount: item.CommentsCount,
		})
	}
	return page, nil
}

func (c *InstagramClient) FetchPostComments(ctx context.Context, token, postID string, opts models.PageOptions) (*models.CommentPage, error) {
	params := url.Values{}
	params.Set("fields", "id,text,username,timestamp,like_count")
	params.Set("limit", strconv.Itoa(pageLimit(opts.Limit, 50, 100)))
	if opts.PageToken != "" {
		params.Set("after", opts.PageToken)
	}

	var resp instagramCommentsResponse
	if err := c.getJSON(ctx, token, "/"+postID+"/comments", params, &resp); err != nil {
		return nil, err
	}

	page := &models.CommentPage{NextPageToken: resp.Paging.Cursors.After}
	for _, item := range resp.Data {
		page.Comments = append(page.Comments, models.Comment{
			ID:          item.ID,
			Text:        item.Text,
			Author:      item.Username,
			LikeCount:   item.LikeCount,
			PublishedAt: parseRFC3339(item.Timestamp),
		})
	}
	return page, nil
}

func (c *InstagramClient) ValidateToken(ctx context.Context, token string) bool {
	params := url.Values{}
	params.Set("fields", "id")
	err := c.getJSON(ctx, token, "/me", params, nil)
	return err == nil
}

func (c *InstagramClient) RateLimitInfo(ctx context.Context, token string) (*models.RateLimitInfo, error) {
	if info := c.lastRateLimit(); info != nil {
		return info, nil
	}
	return &models.RateLimitInfo{
		Remaining: 200,
		Limit:     200,
		ResetTime: time.Now().UTC().Add(time.Hour),
	}, nil
}
