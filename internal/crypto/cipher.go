// Package crypto protects secrets at rest. Webhook signing secrets must be
// recoverable for signing, so they are sealed with AES-256-GCM; client
// secrets are only ever compared, so they are bcrypt hashed.
package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"io"

	"golang.org/x/crypto/pbkdf2"

	"api-gateway/internal/common/errors"
)

const (
	kdfIterations = 10000
	keyLength     = 32
)

var kdfSalt = []byte("api-gateway-secret-box")

// SecretBox seals and opens short secrets. It is safe for concurrent use.
type SecretBox struct {
	aead cipher.AEAD
}

// NewSecretBox derives an AES-256 key from passphrase with PBKDF2.
func NewSecretBox(passphrase string) (*SecretBox, error) {
	if passphrase == "" {
		return nil, errors.ValidationError("encryption key cannot be empty")
	}

	key := pbkdf2.Key([]byte(passphrase), kdfSalt, kdfIterations, keyLength, sha256.New)
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, errors.InternalError("failed to create cipher", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, errors.InternalError("failed to create GCM", err)
	}

	return &SecretBox{aead: aead}, nil
}

// Seal returns base64(nonce || ciphertext). Sealing the same plaintext twice
// yields different output.
func (b *SecretBox) Seal(plaintext string) (string, error) {
	if plaintext == "" {
		return "", errors.ValidationError("refusing to seal an empty secret")
	}

	nonce := make([]byte, b.aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", errors.InternalError("failed to create nonce", err)
	}

	sealed := b.aead.Seal(nonce, nonce, []byte(plaintext), nil)
	return base64.StdEncoding.EncodeToString(sealed), nil
}

// Open reverses Seal. Tampered input or a different key fails.
func (b *SecretBox) Open(sealed string) (string, error) {
	data, err := base64.StdEncoding.DecodeString(sealed)
	if err != nil {
		return "", errors.InternalError("failed to decode sealed secret", err)
	}

	n := b.aead.NonceSize()
	if len(data) <= n {
		return "", errors.ValidationError("sealed secret too short")
	}

	plaintext, err := b.aead.Open(nil, data[:n], data[n:], nil)
	if err != nil {
		return "", errors.InternalError("failed to open sealed secret", err)
	}
	return string(plaintext), nil
}
