// Package tokens implements the token lifecycle manager: it validates,
// refreshes and invalidates OAuth credentials and exposes "give me a
// usable token" to everything downstream.
package tokens

import (
	"context"
	"fmt"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/sentio/internal/common"
	"github.com/ternarybob/sentio/internal/interfaces"
	"github.com/ternarybob/sentio/internal/models"
)

// Service holds no mutable shared state beyond what is durable; it
// reads and writes through the credential store on every call.
type Service struct {
	storage   interfaces.TokenStorage
	crypto    interfaces.Encryptor
	platforms interfaces.PlatformRegistry
	buffer    time.Duration
	staleFor  time.Duration
	logger    arbor.ILogger
}

var _ interfaces.TokenService = (*Service)(nil)

// NewService creates the token lifecycle manager.
func NewService(cfg *common.TokensConfig, storage interfaces.TokenStorage, crypto interfaces.Encryptor, platforms interfaces.PlatformRegistry, logger arbor.ILogger) *Service {
	return &Service{
		storage:   storage,
		crypto:    crypto,
		platforms: platforms,
		buffer:    cfg.ExpiryBuffer(),
		staleFor:  cfg.StaleWindow(),
		logger:    logger.WithPrefix("tokens"),
	}
}

// IsExpired reports whether a token expiring at expiresAt should be
// treated as expired given the buffer. A token with no expiry is never
// expired. The buffer exists so callers refresh before mid-call
// failure, not after.
func IsExpired(expiresAt *time.Time, buffer time.Duration) bool {
	if expiresAt == nil {
		return false
	}
	return !time.Now().Before(expiresAt.Add(-buffer))
}

// Connect stores a credential obtained from an OAuth handshake,
// encrypting token material before it touches storage. Re-connecting
// overwrites.
func (s *Service) Connect(ctx context.Context, userID string, platform models.Platform, token *models.TokenResponse) error {
	if token == nil || token.AccessToken == "" {
		return fmt.Errorf("access token is required")
	}

	record, err := s.buildRecord(userID, platform, token)
	if err != nil {
		return err
	}
	if err := s.storage.Upsert(ctx, record); err != nil {
		return fmt.Errorf("failed to persist connection: %w", err)
	}

	s.logger.Info().
		Str("user_id", userID).
		Str("platform", string(platform)).
		Msg("Platform connected")
	return nil
}

// GetConnection reads and decrypts a stored credential. Returns nil
// when none exists; not-found is never an error.
func (s *Service) GetConnection(ctx context.Context, userID string, platform models.Platform) (*models.Credential, error) {
	record, err := s.storage.Find(ctx, userID, platform)
	if err != nil {
		return nil, fmt.Errorf("failed to read connection: %w", err)
	}
	if record == nil {
		return nil, nil
	}
	return s.decryptRecord(record)
}

// GetValidToken is the single entry point most callers use: it returns
// a token guaranteed fresh at call time, refreshing once if needed.
func (s *Service) GetValidToken(ctx context.Context, userID string, platform models.Platform) (string, error) {
	credential, err := s.GetConnection(ctx, userID, platform)
	if err != nil {
		return "", err
	}
	if credential == nil {
		return "", models.ErrNoConnection
	}

	if !IsExpired(credential.ExpiresAt, s.buffer) {
		return credential.AccessToken, nil
	}

	outcome, err := s.RefreshToken(ctx, userID, platform)
	if err != nil {
		return "", err
	}
	switch outcome.Status {
	case models.RefreshStatusRefreshed:
		return outcome.Token.AccessToken, nil
	case models.RefreshStatusNotSupported:
		return "", &models.ReconnectRequiredError{
			UserID:   userID,
			Platform: platform,
			Reason:   "token expired and platform has no refresh path",
		}
	default:
		return "", &models.ReconnectRequiredError{
			UserID:   userID,
			Platform: platform,
			Reason:   outcome.Reason,
		}
	}
}

// RefreshToken performs the platform-specific refresh call and
// persists the new credential. The outcome is tagged so callers branch
// on meaning: Refreshed, NotSupported or Failed. The error return is
// reserved for storage and decryption faults.
func (s *Service) RefreshToken(ctx context.Context, userID string, platform models.Platform) (models.RefreshOutcome, error) {
	credential, err := s.GetConnection(ctx, userID, platform)
	if err != nil {
		return models.RefreshOutcome{}, err
	}
	if credential == nil {
		return models.RefreshOutcome{}, models.ErrNoConnection
	}

	client, err := s.platforms.Get(platform)
	if err != nil {
		return models.RefreshOutcome{}, err
	}

	if !client.SupportsRefresh() || !credential.HasRefreshToken() {
		s.logger.Debug().
			Str("user_id", userID).
			Str("platform", string(platform)).
			Msg("No refresh path for credential")
		return models.RefreshNotSupported(), nil
	}

	token, err := client.RefreshToken(ctx, credential.RefreshToken)
	if err != nil {
		s.logger.Warn().
			Err(err).
			Str("user_id", userID).
			Str("platform", string(platform)).
			Msg("Provider rejected token refresh")
		return models.RefreshFailed(err.Error()), nil
	}

	// Providers that rotate refresh tokens return a new one; keep the
	// old one otherwise.
	if token.RefreshToken == "" {
		token.RefreshToken = credential.RefreshToken
	}

	record, err := s.buildRecord(userID, platform, token)
	if err != nil {
		return models.RefreshOutcome{}, err
	}
	record.ConnectedAt = credential.ConnectedAt
	if err := s.storage.Upsert(ctx, record); err != nil {
		return models.RefreshOutcome{}, fmt.Errorf("failed to persist refreshed token: %w", err)
	}

	s.logger.Info().
		Str("user_id", userID).
		Str("platform", string(platform)).
		Msg("Token refreshed")
	return models.Refreshed(token), nil
}

// ValidateToken combines the local expiry check with a live provider
// call. Advisory: false on any failure, never an error. Token validity
// is a hint, not a hard fact.
func (s *Service) ValidateToken(ctx context.Context, userID string, platform models.Platform) bool {
	credential, err := s.GetConnection(ctx, userID, platform)
	if err != nil || credential == nil {
		return false
	}
	if IsExpired(credential.ExpiresAt, s.buffer) {
		return false
	}

	client, err := s.platforms.Get(platform)
	if err != nil {
		return false
	}
	return client.ValidateToken(ctx, credential.AccessToken)
}

// DisconnectPlatform deletes the credential. Deleting an absent
// credential is a no-op at the storage layer; an actual delete failure
// is returned.
func (s *Service) DisconnectPlatform(ctx context.Context, userID string, platform models.Platform) error {
	if err := s.storage.Delete(ctx, userID, platform); err != nil {
		return fmt.Errorf("failed to disconnect platform: %w", err)
	}
	s.logger.Info().
		Str("user_id", userID).
		Str("platform", string(platform)).
		Msg("Platform disconnected")
	return nil
}

// GetConnectionsStatus reports health across all of a user's
// connections.
func (s *Service) GetConnectionsStatus(ctx context.Context, userID string) ([]models.ConnectionStatus, error) {
	records, err := s.storage.FindByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list connections: %w", err)
	}

	connected := make(map[models.Platform]*models.TokenRecord, len(records))
	for _, record := range records {
		connected[record.Platform] = record
	}

	statuses := make([]models.ConnectionStatus, 0, len(models.AllPlatforms))
	for _, platform := range models.AllPlatforms {
		record, ok := connected[platform]
		if !ok {
			statuses = append(statuses, models.ConnectionStatus{Platform: platform})
			continue
		}

		status := models.ConnectionStatus{
			Platform:    platform,
			Connected:   true,
			ExpiresAt:   record.ExpiresAt,
			ConnectedAt: &record.ConnectedAt,
		}
		if IsExpired(record.ExpiresAt, s.buffer) && record.EncryptedRefreshToken == "" {
			status.NeedsReconnect = true
		}
		statuses = append(statuses, status)
	}
	return statuses, nil
}

// CleanupExpiredTokens sweeps credentials past the long staleness
// window. Each is given a last chance to validate or refresh; the ones
// that can do neither are deleted. Per-credential errors are collected
// and never abort the sweep.
func (s *Service) CleanupExpiredTokens(ctx context.Context) (*models.CleanupResult, error) {
	cutoff := time.Now().Add(-s.staleFor)
	records, err := s.storage.FindExpiredBefore(ctx, cutoff)
	if err != nil {
		return nil, fmt.Errorf("failed to scan stale credentials: %w", err)
	}

	result := &models.CleanupResult{}
	for _, record := range records {
		if s.ValidateToken(ctx, record.UserID, record.Platform) {
			continue
		}

		outcome, err := s.RefreshToken(ctx, record.UserID, record.Platform)
		if err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("%s/%s: %v", record.UserID, record.Platform, err))
			continue
		}
		if outcome.Status == models.RefreshStatusRefreshed {
			continue
		}

		if err := s.storage.Delete(ctx, record.UserID, record.Platform); err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("%s/%s: delete failed: %v", record.UserID, record.Platform, err))
			continue
		}
		result.DeletedConnections++

		s.logger.Info().
			Str("user_id", record.UserID).
			Str("platform", string(record.Platform)).
			Msg("Stale credential removed")
	}

	s.logger.Info().
		Int("deleted", result.DeletedConnections).
		Int("errors", len(result.Errors)).
		Msg("Token cleanup sweep finished")
	return result, nil
}

func (s *Service) buildRecord(userID string, platform models.Platform, token *models.TokenResponse) (*models.TokenRecord, error) {
	encryptedAccess, err := s.crypto.Encrypt(token.AccessToken)
	if err != nil {
		return nil, fmt.Errorf("failed to encrypt access token: %w", err)
	}

	record := &models.TokenRecord{
		UserID:               userID,
		Platform:             platform,
		EncryptedAccessToken: encryptedAccess,
		ExpiresAt:            token.ExpiresAt,
	}
	if token.RefreshToken != "" {
		encryptedRefresh, err := s.crypto.Encrypt(token.RefreshToken)
		if err != nil {
			return nil, fmt.Errorf("failed to encrypt refresh token: %w", err)
		}
		record.EncryptedRefreshToken = encryptedRefresh
	}
	return record, nil
}

func (s *Service) decryptRecord(record *models.TokenRecord) (*models.Credential, error) {
	accessToken, err := s.crypto.Decrypt(record.EncryptedAccessToken)
	if err != nil {
		return nil, err
	}

	credential := &models.Credential{
		UserID:      record.UserID,
		Platform:    record.Platform,
		AccessToken: accessToken,
		ExpiresAt:   record.ExpiresAt,
		ConnectedAt: record.ConnectedAt,
	}
	if record.EncryptedRefreshToken != "" {
		refreshToken, err := s.crypto.Decrypt(record.EncryptedRefreshToken)
		if err != nil {
			return nil, err
		}
		credential.RefreshToken = refreshToken
	}
	return credential, nil
}
