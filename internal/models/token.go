package models

import (
	"fmt"
	"strings"
	"time"
)

// Platform identifies a supported social media provider.
type Platform string

const (
	PlatformYouTube   Platform = "youtube"
	PlatformInstagram Platform = "instagram"
	PlatformTwitter   Platform = "twitter"
	PlatformTikTok    Platform = "tiktok"
	PlatformFacebook  Platform = "facebook"
)

// AllPlatforms lists every supported platform in presentation order.
var AllPlatforms = []Platform{
	PlatformYouTube,
	PlatformInstagram,
	PlatformTwitter,
	PlatformTikTok,
	PlatformFacebook,
}

// IsValid reports whether p names a supported platform.
func (p Platform) IsValid() bool {
	switch p {
	case PlatformYouTube, PlatformInstagram, PlatformTwitter, PlatformTikTok, PlatformFacebook:
		return true
	}
	return false
}

// ParsePlatform converts a string to a Platform, case-insensitively.
func ParsePlatform(s string) (Platform, error) {
	p := Platform(strings.ToLower(strings.TrimSpace(s)))
	if !p.IsValid() {
		return "", fmt.Errorf("unknown platform: %s", s)
	}
	return p, nil
}

// TokenRecordID builds the storage key for a (user, platform) pair.
func TokenRecordID(userID string, platform Platform) string {
	return userID + ":" + string(platform)
}

// TokenRecord is the durable form of a platform credential. Token
// material is encrypted before it reaches this struct; plaintext
// tokens never touch storage.
type TokenRecord struct {
	ID                    string     `json:"id" badgerhold:"key"`
	UserID                string     `json:"user_id" badgerhold:"index"`
	Platform              Platform   `json:"platform"`
	EncryptedAccessToken  string     `json:"encrypted_access_token"`
	EncryptedRefreshToken string     `json:"encrypted_refresh_token,omitempty"`
	ExpiresAt             *time.Time `json:"expires_at,omitempty"`
	ConnectedAt           time.Time  `json:"connected_at"`
	UpdatedAt             time.Time  `json:"updated_at"`
}

// Credential is the decrypted, in-memory view of a TokenRecord.
type Credential struct {
	UserID       string
	Platform     Platform
	AccessToken  string
	RefreshToken string
	ExpiresAt    *time.Time
	ConnectedAt  time.Time
}

// HasRefreshToken reports whether the credential carries a refresh
// token.
func (c *Credential) HasRefreshToken() bool {
	return c.RefreshToken != ""
}

// TokenResponse is what a platform returns from an OAuth handshake or
// refresh call. A nil ExpiresAt means the provider reported no expiry.
type TokenResponse struct {
	AccessToken  string     `json:"access_token"`
	RefreshToken string     `json:"refresh_token,omitempty"`
	ExpiresAt    *time.Time `json:"expires_at,omitempty"`
}

// RefreshStatus tags the outcome of a refresh attempt.
type RefreshStatus string

const (
	RefreshStatusRefreshed    RefreshStatus = "refreshed"
	RefreshStatusNotSupported RefreshStatus = "not_supported"
	RefreshStatusFailed       RefreshStatus = "failed"
)

// RefreshOutcome is the tagged result of a token refresh. Callers
// branch on Status; Token is set only when Status is Refreshed and
// Reason only when Failed.
type RefreshOutcome struct {
	Status RefreshStatus  `json:"status"`
	Token  *TokenResponse `json:"token,omitempty"`
	Reason string         `json:"reason,omitempty"`
}

// Refreshed builds a successful refresh outcome.
func Refreshed(token *TokenResponse) RefreshOutcome {
	return RefreshOutcome{Status: RefreshStatusRefreshed, Token: token}
}

// RefreshNotSupported builds the outcome for platforms without a
// refresh path.
func RefreshNotSupported() RefreshOutcome {
	return RefreshOutcome{Status: RefreshStatusNotSupported}
}

// RefreshFailed builds the outcome for a rejected refresh attempt.
func RefreshFailed(reason string) RefreshOutcome {
	return RefreshOutcome{Status: RefreshStatusFailed, Reason: reason}
}

// ConnectionStatus reports the health of one platform connection.
type ConnectionStatus struct {
	Platform       Platform   `json:"platform"`
	Connected      bool       `json:"connected"`
	NeedsReconnect bool       `json:"needs_reconnect,omitempty"`
	ExpiresAt      *time.Time `json:"expires_at,omitempty"`
	ConnectedAt    *time.Time `json:"connected_at,omitempty"`
}

// CleanupResult summarizes a stale-credential sweep.
type CleanupResult struct {
	DeletedConnections int      `json:"deleted_connections"`
	Errors             []string `json:"errors,omitempty"`
}
