// Package crypto provides the symmetric-encryption primitive used to
// protect stored platform credentials.
package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"io"

	"github.com/ternarybob/sentio/internal/interfaces"
	"github.com/ternarybob/sentio/internal/models"
)

// AESGCM encrypts and decrypts strings with AES-256-GCM. Ciphertext is
// base64(nonce || sealed); a fresh random nonce is drawn per call.
type AESGCM struct {
	aead cipher.AEAD
}

var _ interfaces.Encryptor = (*AESGCM)(nil)

// NewAESGCM builds an encryptor from a hex-encoded 32-byte key.
func NewAESGCM(hexKey string) (*AESGCM, error) {
	key, err := hex.DecodeString(hexKey)
	if err != nil {
		return nil, fmt.Errorf("encryption key must be hex encoded: %w", err)
	}
	if len(key) != 32 {
		return nil, fmt.Errorf("encryption key must be 32 bytes, got %d", len(key))
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize cipher: %w", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize GCM: %w", err)
	}

	return &AESGCM{aead: aead}, nil
}

// Encrypt seals a non-empty plaintext string.
func (a *AESGCM) Encrypt(plaintext string) (string, error) {
	if plaintext == "" {
		return "", fmt.Errorf("plaintext cannot be empty")
	}

	nonce := make([]byte, a.aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", fmt.Errorf("failed to generate nonce: %w", err)
	}

	sealed := a.aead.Seal(nonce, nonce, []byte(plaintext), nil)
	return base64.StdEncoding.EncodeToString(sealed), nil
}

// Decrypt opens ciphertext produced by Encrypt. Any malformed or
// tampered input fails with *models.DecryptionError.
func (a *AESGCM) Decrypt(ciphertext string) (string, error) {
	if ciphertext == "" {
		return "", &models.DecryptionError{Reason: "ciphertext is empty"}
	}

	raw, err := base64.StdEncoding.DecodeString(ciphertext)
	if err != nil {
		return "", &models.DecryptionError{Reason: "ciphertext is not valid base64"}
	}

	nonceSize := a.aead.NonceSize()
	if len(raw) <= nonceSize {
		return "", &models.DecryptionError{Reason: "ciphertext is too short"}
	}

	nonce, sealed := raw[:nonceSize], raw[nonceSize:]
	plaintext, err := a.aead.Open(nil, nonce, sealed, nil)
	if err != nil {
		return "", &models.DecryptionError{Reason: "ciphertext failed authentication"}
	}

	return string(plaintext), nil
}
