// Package crypto provides AES-256-GCM encryption and decryption for token
// material at rest.
//
// Each encryption uses a fresh random nonce which is prepended to the
// ciphertext, so decryption is self-describing. GCM authenticates the
// ciphertext: any tampering or a wrong key is detected and surfaces as
// ErrDecryptionFailed instead of producing garbage plaintext.
package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"io"

	"golang.org/x/crypto/pbkdf2"
	"slack-jira-bridge/internal/common/errors"
)

// ErrDecryptionFailed indicates a ciphertext could not be authenticated or
// decoded. The stored value is unusable; callers should treat the credential
// as absent and prompt for a reconnect.
var ErrDecryptionFailed = errors.AuthError("unable to decrypt stored token")

const keySize = 32 // AES-256

// TokenCipher encrypts and decrypts token material with AES-256-GCM.
// It is safe for concurrent use; the key is immutable after construction.
type TokenCipher struct {
	key []byte
}

// NewTokenCipher creates a TokenCipher from the configured secret.
//
// A secret that is valid base64 for exactly 32 bytes is used as the AES key
// directly (the production configuration). Any other non-empty secret is
// stretched to 32 bytes with PBKDF2 so local setups can use a passphrase.
func NewTokenCipher(secret string) (*TokenCipher, error) {
	if secret == "" {
		return nil, errors.ValidationError("encryption key cannot be empty")
	}

	if raw, err := base64.StdEncoding.DecodeString(secret); err == nil && len(raw) == keySize {
		return &TokenCipher{key: raw}, nil
	}

	salt := []byte("slack-jira-bridge-token-key")
	derived := pbkdf2.Key([]byte(secret), salt, 10000, keySize, sha256.New)

	return &TokenCipher{key: derived}, nil
}

// Encrypt encrypts plaintext and returns base64(nonce || ciphertext || tag).
// Encrypting the same plaintext twice produces different ciphertexts because
// of the random nonce. An empty plaintext is a valid input and round-trips.
func (c *TokenCipher) Encrypt(plaintext []byte) (string, error) {
	block, err := aes.NewCipher(c.key)
	if err != nil {
		return "", errors.InternalError("failed to create cipher", err)
	}

	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return "", errors.InternalError("failed to create GCM", err)
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", errors.InternalError("failed to create nonce", err)
	}

	sealed := gcm.Seal(nonce, nonce, plaintext, nil)

	return base64.StdEncoding.EncodeToString(sealed), nil
}

// Decrypt reverses Encrypt. It fails with ErrDecryptionFailed on malformed
// input, a truncated or tampered ciphertext, or a wrong key.
func (c *TokenCipher) Decrypt(ciphertext string) ([]byte, error) {
	data, err := base64.StdEncoding.DecodeString(ciphertext)
	if err != nil {
		return nil, ErrDecryptionFailed
	}

	block, err := aes.NewCipher(c.key)
	if err != nil {
		return nil, errors.InternalError("failed to create cipher", err)
	}

	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, errors.InternalError("failed to create GCM", err)
	}

	nonceSize := gcm.NonceSize()
	if len(data) < nonceSize {
		return nil, ErrDecryptionFailed
	}

	nonce, sealed := data[:nonceSize], data[nonceSize:]
	plaintext, err := gcm.Open(nil, nonce, sealed, nil)
	if err != nil {
		return nil, ErrDecryptionFailed
	}

	return plaintext, nil
}

// EncryptString is a convenience wrapper around Encrypt for string plaintext.
func (c *TokenCipher) EncryptString(plaintext string) (string, error) {
	return c.Encrypt([]byte(plaintext))
}

// DecryptString is a convenience wrapper around Decrypt returning a string.
func (c *TokenCipher) DecryptString(ciphertext string) (string, error) {
	plaintext, err := c.Decrypt(ciphertext)
	if err != nil {
		return "", err
	}
	return string(plaintext), nil
}
