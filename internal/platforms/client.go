// Package platforms contains the per-platform HTTP clients. All five
// clients share a uniform shape; tokens are passed in decrypted and
// the clients never touch the credential store.
package platforms

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/sentio/internal/common"
	"github.com/ternarybob/sentio/internal/models"
	"golang.org/x/oauth2"
	"golang.org/x/time/rate"
)

const defaultRequestTimeout = 30 * time.Second

// rateLimitHeaders names the provider-specific response headers the
// base client watches for rate-limit bookkeeping.
type rateLimitHeaders struct {
	Remaining string
	Limit     string
	Reset     string
}

// baseClient carries the plumbing shared by every platform client:
// HTTP transport, client-side rate limiting, OAuth refresh config and
// last-seen provider rate-limit headers.
type baseClient struct {
	platform    models.Platform
	baseURL     string
	httpClient  *http.Client
	limiter     *rate.Limiter
	oauthConfig *oauth2.Config
	rlHeaders   rateLimitHeaders
	logger      arbor.ILogger

	mu       sync.Mutex
	lastRate *models.RateLimitInfo
}

func newBaseClient(platform models.Platform, baseURL, tokenURL string, cfg common.PlatformConfig, logger arbor.ILogger) baseClient {
	limit := rate.Limit(cfg.RateLimit)
	if limit <= 0 {
		limit = rate.Limit(5)
	}
	burst := cfg.Burst
	if burst <= 0 {
		burst = 1
	}

	var oauthConfig *oauth2.Config
	if tokenURL != "" {
		oauthConfig = &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			Endpoint:     oauth2.Endpoint{TokenURL: tokenURL},
		}
	}

	return baseClient{
		platform:    platform,
		baseURL:     baseURL,
		httpClient:  &http.Client{Timeout: defaultRequestTimeout},
		limiter:     rate.NewLimiter(limit, burst),
		oauthConfig: oauthConfig,
		logger:      logger.WithPrefix(string(platform)),
	}
}

// Platform identifies which provider this client talks to.
func (c *baseClient) Platform() models.Platform {
	return c.platform
}

// SupportsRefresh reports whether a refresh endpoint is configured.
func (c *baseClient) SupportsRefresh() bool {
	return c.oauthConfig != nil
}

// RefreshToken exchanges a refresh token via the provider's OAuth
// token endpoint.
func (c *baseClient) RefreshToken(ctx context.Context, refreshToken string) (*models.TokenResponse, error) {
	if c.oauthConfig == nil {
		return nil, models.ErrRefreshNotSupported
	}
	if refreshToken == "" {
		return nil, fmt.Errorf("refresh token is empty")
	}

	source := c.oauthConfig.TokenSource(ctx, &oauth2.Token{RefreshToken: refreshToken})
	token, err := source.Token()
	if err != nil {
		return nil, &models.RefreshError{Platform: c.platform, Err: err}
	}

	response := &models.TokenResponse{
		AccessToken:  token.AccessToken,
		RefreshToken: token.RefreshToken,
	}
	if !token.Expiry.IsZero() {
		expiry := token.Expiry.UTC()
		response.ExpiresAt = &expiry
	}

	c.logger.Debug().Msg("Token refreshed via provider endpoint")
	return response, nil
}

// getJSON performs a rate-limited, token-authorized GET against the
// provider and decodes the JSON response body into out.
func (c *baseClient) getJSON(ctx context.Context, token, path string, params url.Values, out interface{}) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limiter wait cancelled: %w", err)
	}

	endpoint := c.baseURL + path
	if len(params) > 0 {
		endpoint += "?" + params.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request to %s failed: %w", c.platform, err)
	}
	defer resp.Body.Close()

	c.captureRateLimit(resp.Header)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("%s API returned %d: %s", c.platform, resp.StatusCode, string(body))
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode %s response: %w", c.platform, err)
	}
	return nil
}

// captureRateLimit records provider rate-limit headers when present.
func (c *baseClient) captureRateLimit(header http.Header) {
	if c.rlHeaders.Remaining == "" {
		return
	}

	remaining, err := strconv.Atoi(header.Get(c.rlHeaders.Remaining))
	if err != nil {
		return
	}

	info := &models.RateLimitInfo{Remaining: remaining}
	if limit, err := strconv.Atoi(header.Get(c.rlHeaders.Limit)); err == nil {
		info.Limit = limit
	}
	if reset, err := strconv.ParseInt(header.Get(c.rlHeaders.Reset), 10, 64); err == nil {
		info.ResetTime = time.Unix(reset, 0).UTC()
	}

	c.mu.Lock()
	c.lastRate = info
	c.mu.Unlock()
}

// lastRateLimit returns the most recently observed rate-limit window,
// or nil when the provider has not reported one yet.
func (c *baseClient) lastRateLimit() *models.RateLimitInfo {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.lastRate == nil {
		return nil
	}
	copied := *c.lastRate
	return &copied
}
