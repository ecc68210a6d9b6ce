package interfaces

import (
	"context"

	"github.com/ternarybob/sentio/internal/models"
)

// PlatformClient is the uniform shape every platform-specific HTTP
// client implements. Tokens are passed in decrypted; clients never
// touch the credential store.
type PlatformClient interface {
	// Platform identifies which provider this client talks to.
	Platform() models.Platform

	// FetchUserPosts returns one page of the user's posts.
	FetchUserPosts(ctx context.Context, token string, opts models.PageOptions) (*models.PostPage, error)

	// FetchPostComments returns one page of a post's comments.
	FetchPostComments(ctx context.Context, token string, postID string, opts models.PageOptions) (*models.CommentPage, error)

	// ValidateToken makes a cheap live provider call (e.g. fetch own
	// profile). Advisory only: returns false on any failure, never errors.
	ValidateToken(ctx context.Context, token string) bool

	// SupportsRefresh reports whether the provider has a refresh endpoint.
	SupportsRefresh() bool

	// RefreshToken exchanges a refresh token for a new access token.
	// Returns models.ErrRefreshNotSupported when SupportsRefresh is false.
	RefreshToken(ctx context.Context, refreshToken string) (*models.TokenResponse, error)

	// RateLimitInfo reports the provider's current rate-limit window.
	RateLimitInfo(ctx context.Context, token string) (*models.RateLimitInfo, error)
}

// PlatformRegistry resolves a client per platform. Clients are
// constructed once at startup and injected; there are no lazily
// initialized globals.
type PlatformRegistry interface {
	Get(platform models.Platform) (PlatformClient, error)
	All() []PlatformClient
}
