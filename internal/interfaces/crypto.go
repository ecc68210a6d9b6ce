package interfaces

// Encryptor is the symmetric-encryption primitive protecting stored
// credentials. Both operations are total over non-empty strings;
// Decrypt fails loudly with *models.DecryptionError on malformed
// ciphertext.
type Encryptor interface {
	Encrypt(plaintext string) (string, error)
	Decrypt(ciphertext string) (string, error)
}
