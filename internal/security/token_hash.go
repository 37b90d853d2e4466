package security

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
)

// HashRefreshToken derives the storage key for a refresh token: HMAC-SHA256
// keyed with a server-side pepper, hex encoded. The store never sees the raw
// token, and a database dump alone cannot be replayed against the API.
func HashRefreshToken(token, pepper string) string {
	mac := hmac.New(sha256.New, []byte(pepper))
	mac.Write([]byte(token))
	return hex.EncodeToString(mac.Sum(nil))
}

// HashActionToken derives the storage key for one-shot action tokens
// (email verification, password reset). These are random 256-bit values, so
// a plain SHA-256 is enough; no pepper needed.
func HashActionToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

// NewOpaqueToken returns a random URL-safe token for one-shot links
// (email verification, password reset).
func NewOpaqueToken() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}
