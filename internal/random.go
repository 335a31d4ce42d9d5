package internal

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
)

const nonceSize = 32

// NewNonce returns a base64url-encoded 256-bit random challenge nonce.
func NewNonce() (string, error) {
	var raw [nonceSize]byte
	if _, err := rand.Read(raw[:]); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(raw[:]), nil
}

// ValidNonce reports whether s has the shape of a nonce produced by NewNonce.
func ValidNonce(s string) bool {
	raw, err := base64.RawURLEncoding.DecodeString(s)
	if err != nil {
		return false
	}
	return len(raw) == nonceSize
}

// HashToken returns the SHA-256 digest of a token string. Stores index and
// blacklist tokens by digest so raw credentials never land in Redis keys.
func HashToken(token string) [32]byte {
	return sha256.Sum256([]byte(token))
}

// HashTokenHex returns the lowercase hex form of HashToken, sized for use as a
// Redis key segment.
func HashTokenHex(token string) string {
	sum := HashToken(token)
	return hex.EncodeToString(sum[:])
}

// TruncateSecret returns a loggable prefix of a secret value. Audit events
// carry only this prefix, never the full token or nonce.
func TruncateSecret(s string) string {
	const keep = 8
	if len(s) <= keep {
		return s
	}
	return s[:keep] + "..."
}

// NewID returns n random bytes base64url-encoded, used for session IDs.
func NewID(n int) (string, error) {
	raw := make([]byte, n)
	if _, err := rand.Read(raw); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(raw), nil
}
