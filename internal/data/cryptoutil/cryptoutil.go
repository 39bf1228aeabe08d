// Package cryptoutil generates and digests API key secrets.
package cryptoutil

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
)

// RandomHex returns n random bytes from crypto/rand, hex-encoded (2n characters).
func RandomHex(n int) (string, error) {
	return randomHexFrom(rand.Reader, n)
}

func randomHexFrom(r io.Reader, n int) (string, error) {
	if n <= 0 {
		return "", fmt.Errorf("random length must be positive, got %d", n)
	}
	buf := make([]byte, n)
	if _, err := io.ReadFull(r, buf); err != nil {
		return "", fmt.Errorf("read random bytes: %w", err)
	}
	return hex.EncodeToString(buf), nil
}

// IsHex reports whether s is non-empty and made only of hex digits.
func IsHex(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		if (c < '0' || c > '9') && (c < 'a' || c > 'f') && (c < 'A' || c > 'F') {
			return false
		}
	}
	return true
}

// KeyHasher derives the stored lookup digest of a secret.
type KeyHasher interface {
	Hash(secret string) string
}

// SHA256Hasher digests secrets with SHA-256, keyed with HMAC when a pepper is set.
type SHA256Hasher struct {
	pepper []byte
}

// NewSHA256Hasher builds a hasher. An empty pepper yields plain SHA-256.
func NewSHA256Hasher(pepper string) *SHA256Hasher {
	if pepper == "" {
		return &SHA256Hasher{}
	}
	return &SHA256Hasher{pepper: []byte(pepper)}
}

// Hash returns the hex digest of secret.
func (h *SHA256Hasher) Hash(secret string) string {
	if len(h.pepper) == 0 {
		sum := sha256.Sum256([]byte(secret))
		return hex.EncodeToString(sum[:])
	}
	mac := hmac.New(sha256.New, h.pepper)
	mac.Write([]byte(secret))
	return hex.EncodeToString(mac.Sum(nil))
}
