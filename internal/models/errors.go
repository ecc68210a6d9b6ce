package models

import (
	"errors"
	"fmt"
)

// Sentinel errors callers branch on with errors.Is.
var (
	// ErrNoConnection means no credential exists for the requested
	// (user, platform) pair.
	ErrNoConnection = errors.New("no platform connection")

	// ErrRefreshNotSupported means the platform has no refresh endpoint.
	ErrRefreshNotSupported = errors.New("token refresh not supported")

	// ErrJobNotFound means the requested job does not exist.
	ErrJobNotFound = errors.New("job not found")
)

// ReconnectRequiredError means the stored credential is unusable and
// the user must re-run the OAuth handshake.
type ReconnectRequiredError struct {
	UserID   string
	Platform Platform
	Reason   string
}

func (e *ReconnectRequiredError) Error() string {
	return fmt.Sprintf("reconnect required for %s on %s: %s", e.UserID, e.Platform, e.Reason)
}

// RefreshError wraps a provider-side refresh failure.
type RefreshError struct {
	Platform Platform
	Err      error
}

func (e *RefreshError) Error() string {
	return fmt.Sprintf("%s token refresh failed: %v", e.Platform, e.Err)
}

func (e *RefreshError) Unwrap() error {
	return e.Err
}

// DecryptionError means stored ciphertext could not be decrypted,
// typically after a key rotation or data corruption.
type DecryptionError struct {
	Reason string
}

func (e *DecryptionError) Error() string {
	return fmt.Sprintf("decryption failed: %s", e.Reason)
}
