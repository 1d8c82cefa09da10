package security

import (
	"crypto/rand"
	"math/big"

	"github.com/google/uuid"
)

// NewSessionID returns an unguessable session identifier. UUIDv4 carries 122
// bits of randomness, which matches what the store key needs.
func NewSessionID() string {
	return uuid.NewString()
}

const shortCodeAlphabet = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// NewShortCode samples n characters from the base62 alphabet with crypto/rand
// so codes stay unpredictable.
func NewShortCode(n int) (string, error) {
	out := make([]byte, n)
	max := big.NewInt(int64(len(shortCodeAlphabet)))
	for i := range out {
		idx, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", err
		}
		out[i] = shortCodeAlphabet[idx.Int64()]
	}
	return string(out), nil
}
