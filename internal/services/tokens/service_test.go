package tokens

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/sentio/internal/common"
	"github.com/ternarybob/sentio/internal/interfaces"
	"github.com/ternarybob/sentio/internal/models"
)

// fakeEncryptor is a reversible stand-in so tests can assert that
// storage only ever sees the encrypted form.
type fakeEncryptor struct{}

func (fakeEncryptor) Encrypt(plaintext string) (string, error) {
	if plaintext == "" {
		return "", fmt.Errorf("plaintext cannot be empty")
	}
	return "enc:" + plaintext, nil
}

func (fakeEncryptor) Decrypt(ciphertext string) (string, error) {
	if !strings.HasPrefix(ciphertext, "enc:") {
		return "", &models.DecryptionError{Reason: "bad ciphertext"}
	}
	return strings.TrimPrefix(ciphertext, "enc:"), nil
}

type memTokenStorage struct {
	records map[string]*models.TokenRecord
}

func newMemTokenStorage() *memTokenStorage {
	return &memTokenStorage{records: make(map[string]*models.TokenRecord)}
}

func (m *memTokenStorage) Upsert(ctx context.Context, record *models.TokenRecord) error {
	record.ID = models.TokenRecordID(record.UserID, record.Platform)
	record.UpdatedAt = time.Now().UTC()
	if existing, ok := m.records[record.ID]; ok && record.ConnectedAt.IsZero() {
		record.ConnectedAt = existing.ConnectedAt
	}
	if record.ConnectedAt.IsZero() {
		record.ConnectedAt = time.Now().UTC()
	}
	copied := *record
	m.records[record.ID] = &copied
	return nil
}

func (m *memTokenStorage) Find(ctx context.Context, userID string, platform models.Platform) (*models.TokenRecord, error) {
	record, ok := m.records[models.TokenRecordID(userID, platform)]
	if !ok {
		return nil, nil
	}
	copied := *record
	return &copied, nil
}

func (m *memTokenStorage) Delete(ctx context.Context, userID string, platform models.Platform) error {
	delete(m.records, models.TokenRecordID(userID, platform))
	return nil
}

func (m *memTokenStorage) FindByUser(ctx context.Context, userID string) ([]*models.TokenRecord, error) {
	var out []*models.TokenRecord
	for _, record := range m.records {
		if record.UserID == userID {
			copied := *record
			out = append(out, &copied)
		}
	}
	return out, nil
}

func (m *memTokenStorage) FindExpiredBefore(ctx context.Context, cutoff time.Time) ([]*models.TokenRecord, error) {
	var out []*models.TokenRecord
	for _, record := range m.records {
		if record.ExpiresAt != nil && record.ExpiresAt.Before(cutoff) {
			copied := *record
			out = append(out, &copied)
		}
	}
	return out, nil
}

// fakeClient scripts one platform's refresh and validate behavior.
type fakeClient struct {
	platform        models.Platform
	supportsRefresh bool
	refreshResponse *models.TokenResponse
	refreshErr      error
	validateResult  bool
	refreshCalls    int
}

func (c *fakeClient) Platform() models.Platform { return c.platform }

func (c *fakeClient) FetchUserPosts(ctx context.Context, token string, opts models.PageOptions) (*models.PostPage, error) {
	return &models.PostPage{}, nil
}

func (c *fakeClient) FetchPostComments(ctx context.Context, token string, postID string, opts models.PageOptions) (*models.CommentPage, error) {
	return &models.CommentPage{}, nil
}

func (c *fakeClient) ValidateToken(ctx context.Context, token string) bool {
	return c.validateResult
}

func (c *fakeClient) SupportsRefresh() bool { return c.supportsRefresh }

func (c *fakeClient) RefreshToken(ctx context.Context, refreshToken string) (*models.TokenResponse, error) {
	c.refreshCalls++
	if !c.supportsRefresh {
		return nil, models.ErrRefreshNotSupported
	}
	if c.refreshErr != nil {
		return nil, c.refreshErr
	}
	return c.refreshResponse, nil
}

func (c *fakeClient) RateLimitInfo(ctx context.Context, token string) (*models.RateLimitInfo, error) {
	return &models.RateLimitInfo{}, nil
}

type fakeRegistry struct {
	clients map[models.Platform]*fakeClient
}

func (r *fakeRegistry) Get(platform models.Platform) (interfaces.PlatformClient, error) {
	client, ok := r.clients[platform]
	if !ok {
		return nil, fmt.Errorf("no client for platform %s", platform)
	}
	return client, nil
}

func (r *fakeRegistry) All() []interfaces.PlatformClient {
	var out []interfaces.PlatformClient
	for _, client := range r.clients {
		out = append(out, client)
	}
	return out
}

func newTestTokenService(clients map[models.Platform]*fakeClient) (*Service, *memTokenStorage) {
	storage := newMemTokenStorage()
	cfg := &common.TokensConfig{
		ExpiryBufferMinutes: 30,
		StaleAfterDays:      7,
	}
	service := NewService(cfg, storage, fakeEncryptor{}, &fakeRegistry{clients: clients}, arbor.NewLogger())
	return service, storage
}

func future(d time.Duration) *time.Time {
	t := time.Now().Add(d)
	return &t
}

func TestIsExpired(t *testing.T) {
	buffer := 30 * time.Minute

	// No expiry never expires.
	assert.False(t, IsExpired(nil, buffer))

	// Well in the future.
	assert.False(t, IsExpired(future(2*time.Hour), buffer))

	// Inside the buffer window counts as expired.
	assert.True(t, IsExpired(future(10*time.Minute), buffer))

	// Already past.
	assert.True(t, IsExpired(future(-time.Hour), buffer))

	// Zero buffer only expires at the instant itself.
	assert.False(t, IsExpired(future(time.Minute), 0))
	assert.True(t, IsExpired(future(-time.Second), 0))
}

func TestConnect_EncryptsBeforeStorage(t *testing.T) {
	service, storage := newTestTokenService(nil)
	ctx := context.Background()

	err := service.Connect(ctx, "u1", models.PlatformYouTube, &models.TokenResponse{
		AccessToken:  "access-123",
		RefreshToken: "refresh-456",
		ExpiresAt:    future(time.Hour),
	})
	require.NoError(t, err)

	record := storage.records["u1:youtube"]
	require.NotNil(t, record)
	assert.Equal(t, "enc:access-123", record.EncryptedAccessToken)
	assert.Equal(t, "enc:refresh-456", record.EncryptedRefreshToken)
	assert.NotContains(t, record.EncryptedAccessToken, "access-123\x00")

	// Round-trip through GetConnection decrypts.
	credential, err := service.GetConnection(ctx, "u1", models.PlatformYouTube)
	require.NoError(t, err)
	require.NotNil(t, credential)
	assert.Equal(t, "access-123", credential.AccessToken)
	assert.Equal(t, "refresh-456", credential.RefreshToken)
}

func TestConnect_RequiresAccessToken(t *testing.T) {
	service, _ := newTestTokenService(nil)

	assert.Error(t, service.Connect(context.Background(), "u1", models.PlatformYouTube, nil))
	assert.Error(t, service.Connect(context.Background(), "u1", models.PlatformYouTube, &models.TokenResponse{}))
}

func TestGetConnection_MissingIsNilNotError(t *testing.T) {
	service, _ := newTestTokenService(nil)

	credential, err := service.GetConnection(context.Background(), "u1", models.PlatformYouTube)
	require.NoError(t, err)
	assert.Nil(t, credential)
}

func TestGetValidToken_NoConnection(t *testing.T) {
	service, _ := newTestTokenService(nil)

	_, err := service.GetValidToken(context.Background(), "u1", models.PlatformYouTube)
	assert.ErrorIs(t, err, models.ErrNoConnection)
}

func TestGetValidToken_FreshTokenReturnedDirectly(t *testing.T) {
	client := &fakeClient{platform: models.PlatformYouTube, supportsRefresh: true}
	service, _ := newTestTokenService(map[models.Platform]*fakeClient{models.PlatformYouTube: client})
	ctx := context.Background()

	require.NoError(t, service.Connect(ctx, "u1", models.PlatformYouTube, &models.TokenResponse{
		AccessToken: "fresh-token",
		ExpiresAt:   future(2 * time.Hour),
	}))

	token, err := service.GetValidToken(ctx, "u1", models.PlatformYouTube)
	require.NoError(t, err)
	assert.Equal(t, "fresh-token", token)
	assert.Zero(t, client.refreshCalls)
}

func TestGetValidToken_ExpiredTriggersRefresh(t *testing.T) {
	client := &fakeClient{
		platform:        models.PlatformYouTube,
		supportsRefresh: true,
		refreshResponse: &models.TokenResponse{
			AccessToken: "new-access",
			ExpiresAt:   future(time.Hour),
		},
	}
	service, storage := newTestTokenService(map[models.Platform]*fakeClient{models.PlatformYouTube: client})
	ctx := context.Background()

	require.NoError(t, service.Connect(ctx, "u1", models.PlatformYouTube, &models.TokenResponse{
		AccessToken:  "old-access",
		RefreshToken: "refresh-1",
		ExpiresAt:    future(-time.Hour),
	}))

	token, err := service.GetValidToken(ctx, "u1", models.PlatformYouTube)
	require.NoError(t, err)
	assert.Equal(t, "new-access", token)
	assert.Equal(t, 1, client.refreshCalls)

	// Provider returned no rotated refresh token, so the old one is kept.
	record := storage.records["u1:youtube"]
	assert.Equal(t, "enc:refresh-1", record.EncryptedRefreshToken)
}

func TestGetValidToken_NoRefreshPathRequiresReconnect(t *testing.T) {
	client := &fakeClient{platform: models.PlatformInstagram, supportsRefresh: false}
	service, _ := newTestTokenService(map[models.Platform]*fakeClient{models.PlatformInstagram: client})
	ctx := context.Background()

	require.NoError(t, service.Connect(ctx, "u1", models.PlatformInstagram, &models.TokenResponse{
		AccessToken: "expired",
		ExpiresAt:   future(-time.Hour),
	}))

	_, err := service.GetValidToken(ctx, "u1", models.PlatformInstagram)
	require.Error(t, err)

	var reconnect *models.ReconnectRequiredError
	require.True(t, errors.As(err, &reconnect))
	assert.Equal(t, "u1", reconnect.UserID)
	assert.Equal(t, models.PlatformInstagram, reconnect.Platform)
}

func TestGetValidToken_RefreshFailureRequiresReconnect(t *testing.T) {
	client := &fakeClient{
		platform:        models.PlatformYouTube,
		supportsRefresh: true,
		refreshErr:      fmt.Errorf("invalid_grant"),
	}
	service, _ := newTestTokenService(map[models.Platform]*fakeClient{models.PlatformYouTube: client})
	ctx := context.Background()

	require.NoError(t, service.Connect(ctx, "u1", models.PlatformYouTube, &models.TokenResponse{
		AccessToken:  "expired",
		RefreshToken: "refresh-1",
		ExpiresAt:    future(-time.Hour),
	}))

	_, err := service.GetValidToken(ctx, "u1", models.PlatformYouTube)

	var reconnect *models.ReconnectRequiredError
	require.True(t, errors.As(err, &reconnect))
	assert.Contains(t, reconnect.Reason, "invalid_grant")
}

func TestRefreshToken_Outcomes(t *testing.T) {
	ctx := context.Background()

	t.Run("not supported by platform", func(t *testing.T) {
		client := &fakeClient{platform: models.PlatformTikTok, supportsRefresh: false}
		service, _ := newTestTokenService(map[models.Platform]*fakeClient{models.PlatformTikTok: client})
		require.NoError(t, service.Connect(ctx, "u1", models.PlatformTikTok, &models.TokenResponse{
			AccessToken:  "a",
			RefreshToken: "r",
		}))

		outcome, err := service.RefreshToken(ctx, "u1", models.PlatformTikTok)
		require.NoError(t, err)
		assert.Equal(t, models.RefreshStatusNotSupported, outcome.Status)
	})

	t.Run("no stored refresh token", func(t *testing.T) {
		client := &fakeClient{platform: models.PlatformYouTube, supportsRefresh: true}
		service, _ := newTestTokenService(map[models.Platform]*fakeClient{models.PlatformYouTube: client})
		require.NoError(t, service.Connect(ctx, "u1", models.PlatformYouTube, &models.TokenResponse{
			AccessToken: "a",
		}))

		outcome, err := service.RefreshToken(ctx, "u1", models.PlatformYouTube)
		require.NoError(t, err)
		assert.Equal(t, models.RefreshStatusNotSupported, outcome.Status)
		assert.Zero(t, client.refreshCalls)
	})

	t.Run("provider rejection is Failed, not an error", func(t *testing.T) {
		client := &fakeClient{
			platform:        models.PlatformYouTube,
			supportsRefresh: true,
			refreshErr:      fmt.Errorf("revoked"),
		}
		service, _ := newTestTokenService(map[models.Platform]*fakeClient{models.PlatformYouTube: client})
		require.NoError(t, service.Connect(ctx, "u1", models.PlatformYouTube, &models.TokenResponse{
			AccessToken:  "a",
			RefreshToken: "r",
		}))

		outcome, err := service.RefreshToken(ctx, "u1", models.PlatformYouTube)
		require.NoError(t, err)
		assert.Equal(t, models.RefreshStatusFailed, outcome.Status)
		assert.Contains(t, outcome.Reason, "revoked")
	})

	t.Run("missing connection is an error", func(t *testing.T) {
		service, _ := newTestTokenService(nil)
		_, err := service.RefreshToken(ctx, "u1", models.PlatformYouTube)
		assert.ErrorIs(t, err, models.ErrNoConnection)
	})
}

func TestValidateToken(t *testing.T) {
	ctx := context.Background()
	client := &fakeClient{platform: models.PlatformYouTube, validateResult: true}
	service, _ := newTestTokenService(map[models.Platform]*fakeClient{models.PlatformYouTube: client})

	// No connection.
	assert.False(t, service.ValidateToken(ctx, "u1", models.PlatformYouTube))

	require.NoError(t, service.Connect(ctx, "u1", models.PlatformYouTube, &models.TokenResponse{
		AccessToken: "a",
		ExpiresAt:   future(2 * time.Hour),
	}))
	assert.True(t, service.ValidateToken(ctx, "u1", models.PlatformYouTube))

	// Locally expired short-circuits before the live call.
	require.NoError(t, service.Connect(ctx, "u2", models.PlatformYouTube, &models.TokenResponse{
		AccessToken: "b",
		ExpiresAt:   future(-time.Hour),
	}))
	assert.False(t, service.ValidateToken(ctx, "u2", models.PlatformYouTube))

	// Provider rejection.
	client.validateResult = false
	assert.False(t, service.ValidateToken(ctx, "u1", models.PlatformYouTube))
}

func TestGetConnectionsStatus(t *testing.T) {
	ctx := context.Background()
	service, _ := newTestTokenService(nil)

	require.NoError(t, service.Connect(ctx, "u1", models.PlatformYouTube, &models.TokenResponse{
		AccessToken: "a",
		ExpiresAt:   future(2 * time.Hour),
	}))
	// Expired without a refresh token: needs reconnect.
	require.NoError(t, service.Connect(ctx, "u1", models.PlatformTwitter, &models.TokenResponse{
		AccessToken: "b",
		ExpiresAt:   future(-time.Hour),
	}))

	statuses, err := service.GetConnectionsStatus(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, statuses, len(models.AllPlatforms))

	byPlatform := make(map[models.Platform]models.ConnectionStatus)
	for _, status := range statuses {
		byPlatform[status.Platform] = status
	}

	assert.True(t, byPlatform[models.PlatformYouTube].Connected)
	assert.False(t, byPlatform[models.PlatformYouTube].NeedsReconnect)

	assert.True(t, byPlatform[models.PlatformTwitter].Connected)
	assert.True(t, byPlatform[models.PlatformTwitter].NeedsReconnect)

	assert.False(t, byPlatform[models.PlatformFacebook].Connected)
}

func TestDisconnectPlatform(t *testing.T) {
	ctx := context.Background()
	service, _ := newTestTokenService(nil)

	require.NoError(t, service.Connect(ctx, "u1", models.PlatformYouTube, &models.TokenResponse{AccessToken: "a"}))
	require.NoError(t, service.DisconnectPlatform(ctx, "u1", models.PlatformYouTube))

	credential, err := service.GetConnection(ctx, "u1", models.PlatformYouTube)
	require.NoError(t, err)
	assert.Nil(t, credential)

	// Deleting an absent credential is a no-op.
	assert.NoError(t, service.DisconnectPlatform(ctx, "u1", models.PlatformYouTube))
}

func TestCleanupExpiredTokens(t *testing.T) {
	ctx := context.Background()
	refreshable := &fakeClient{
		platform:        models.PlatformYouTube,
		supportsRefresh: true,
		refreshResponse: &models.TokenResponse{AccessToken: "renewed", ExpiresAt: future(time.Hour)},
	}
	dead := &fakeClient{platform: models.PlatformInstagram, supportsRefresh: false}
	service, storage := newTestTokenService(map[models.Platform]*fakeClient{
		models.PlatformYouTube:   refreshable,
		models.PlatformInstagram: dead,
	})

	// Stale but refreshable: survives.
	require.NoError(t, service.Connect(ctx, "u1", models.PlatformYouTube, &models.TokenResponse{
		AccessToken:  "a",
		RefreshToken: "r",
		ExpiresAt:    future(-30 * 24 * time.Hour),
	}))
	// Stale with no refresh path: deleted.
	require.NoError(t, service.Connect(ctx, "u1", models.PlatformInstagram, &models.TokenResponse{
		AccessToken: "b",
		ExpiresAt:   future(-30 * 24 * time.Hour),
	}))
	// Recently expired: outside the stale window, untouched.
	require.NoError(t, service.Connect(ctx, "u2", models.PlatformInstagram, &models.TokenResponse{
		AccessToken: "c",
		ExpiresAt:   future(-time.Hour),
	}))

	result, err := service.CleanupExpiredTokens(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, result.DeletedConnections)
	assert.Empty(t, result.Errors)

	assert.Contains(t, storage.records, "u1:youtube")
	assert.NotContains(t, storage.records, "u1:instagram")
	assert.Contains(t, storage.records, "u2:instagram")
}
