package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
)

// ErrMalformed is returned when a ciphertext cannot be opened.
var ErrMalformed = errors.New("malformed ciphertext")

// Encryptor handles AES-GCM encryption of secrets at rest: two-factor
// secrets and payment method details.
type Encryptor struct {
	gcm cipher.AEAD
}

// NewEncryptor creates a new AES-GCM encryptor with the given 32-byte key.
func NewEncryptor(key string) (*Encryptor, error) {
	if len(key) != 32 {
		return nil, fmt.Errorf("encryption key must be exactly 32 bytes, got %d", len(key))
	}

	block, err := aes.NewCipher([]byte(key))
	if err != nil {
		return nil, fmt.Errorf("failed to create cipher: %w", err)
	}

	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCM: %w", err)
	}

	return &Encryptor{gcm: gcm}, nil
}

// Encrypt seals plaintext under a fresh random nonce and returns
// base64(nonce || ciphertext). aad is authenticated but not stored.
func (e *Encryptor) Encrypt(plaintext, aad []byte) (string, error) {
	nonce := make([]byte, e.gcm.NonceSize(), e.gcm.NonceSize()+len(plaintext)+e.gcm.Overhead())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", fmt.Errorf("failed to generate nonce: %w", err)
	}
	return base64.StdEncoding.EncodeToString(e.gcm.Seal(nonce, nonce, plaintext, aad)), nil
}

// Decrypt opens a value produced by Encrypt with the same aad. Tampered
// input, a different key or a different aad all return ErrMalformed.
func (e *Encryptor) Decrypt(encoded string, aad []byte) ([]byte, error) {
	sealed, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	n := e.gcm.NonceSize()
	if len(sealed) < n+e.gcm.Overhead() {
		return nil, ErrMalformed
	}
	plaintext, err := e.gcm.Open(nil, sealed[:n], sealed[n:], aad)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	return plaintext, nil
}

// Seal encrypts a secret owned by owner. The ciphertext only opens for the
// same owner, so a row copied to another account is unreadable.
func (e *Encryptor) Seal(owner, secret string) (string, error) {
	return e.Encrypt([]byte(secret), []byte(owner))
}

// Open reverses Seal.
func (e *Encryptor) Open(owner, encoded string) (string, error) {
	b, err := e.Decrypt(encoded, []byte(owner))
	if err != nil {
		return "", err
	}
	return string(b), nil
}
