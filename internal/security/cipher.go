package security

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
)

// ErrCipher marks any encryption or decryption failure. Callers must treat a
// wrapped ErrCipher as "credential unusable" and drop the owning session
// instead of retrying.
var ErrCipher = errors.New("security: cipher failure")

const (
	envelopeVersion = "v1"
	nonceSize       = 12
	tagSize         = 16
)

// TokenCipher seals the upstream refresh credential with AES-256-GCM.
// Envelope format: v1.<nonce>.<tag>.<ciphertext>, each part base64url without
// padding. Any modification of the envelope makes Decrypt fail closed.
type TokenCipher struct {
	aead cipher.AEAD
}

func NewTokenCipher(key []byte) (*TokenCipher, error) {
	if len(key) != 32 {
		return nil, fmt.Errorf("token cipher key must be 32 bytes, got %d", len(key))
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}
	return &TokenCipher{aead: aead}, nil
}

func (c *TokenCipher) Encrypt(plaintext string) (string, error) {
	nonce := make([]byte, nonceSize)
	if _, err := rand.Read(nonce); err != nil {
		return "", fmt.Errorf("%w: %v", ErrCipher, err)
	}

	sealed := c.aead.Seal(nil, nonce, []byte(plaintext), nil)
	ciphertext := sealed[:len(sealed)-tagSize]
	tag := sealed[len(sealed)-tagSize:]

	enc := base64.RawURLEncoding
	return strings.Join([]string{
		envelopeVersion,
		enc.EncodeToString(nonce),
		enc.EncodeToString(tag),
		enc.EncodeToString(ciphertext),
	}, "."), nil
}

func (c *TokenCipher) Decrypt(envelope string) (string, error) {
	parts := strings.Split(envelope, ".")
	if len(parts) != 4 || parts[0] != envelopeVersion {
		return "", fmt.Errorf("%w: invalid envelope format", ErrCipher)
	}

	// Strict decoding rejects non-zero trailing padding bits, so two distinct
	// encodings can never alias to the same bytes. Without it, a mutation of a
	// segment's final character could decode identically and slip past the
	// authentication check.
	enc := base64.RawURLEncoding.Strict()
	nonce, err := enc.DecodeString(parts[1])
	if err != nil || len(nonce) != nonceSize {
		return "", fmt.Errorf("%w: invalid nonce", ErrCipher)
	}
	tag, err := enc.DecodeString(parts[2])
	if err != nil || len(tag) != tagSize {
		return "", fmt.Errorf("%w: invalid auth tag", ErrCipher)
	}
	ciphertext, err := enc.DecodeString(parts[3])
	if err != nil {
		return "", fmt.Errorf("%w: invalid ciphertext", ErrCipher)
	}

	plaintext, err := c.aead.Open(nil, nonce, append(ciphertext, tag...), nil)
	if err != nil {
		return "", fmt.Errorf("%w: authentication failed", ErrCipher)
	}
	return string(plaintext), nil
}
