package crypto

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
)

// MinTokenBytes is the 128-bit floor for unguessable credential tokens.
const MinTokenBytes = 16

// GenerateRandomString produces a cryptographically random base64url string of n bytes.
func GenerateRandomString(n int) (string, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("failed to generate random bytes: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

// GenerateToken generates a credential token string of n random bytes,
// never fewer than MinTokenBytes (16 bytes = 22 chars base64url).
func GenerateToken(n int) (string, error) {
	if n < MinTokenBytes {
		n = MinTokenBytes
	}
	return GenerateRandomString(n)
}
