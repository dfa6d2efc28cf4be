package security

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
)

const singleUseTokenBytes = 32

// GenerateSingleUseToken returns a url-safe random string for email
// verification and password reset links.
func GenerateSingleUseToken() (string, error) {
	buf := make([]byte, singleUseTokenBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate token: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}
