package session

import (
	"crypto/sha256"
	"fmt"
)

// Fingerprint returns a short stable digest of a bearer token. Sessions are
// indexed and logged by fingerprint so raw tokens never sit in maps or logs.
func Fingerprint(token string) string {
	if token == "" {
		return ""
	}
	sum := sha256.Sum256([]byte(token))
	return fmt.Sprintf("%x", sum[:6])
}
