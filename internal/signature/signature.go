// Package signature signs outbound webhook bodies and verifies them on the
// receiving side. The header value is "hmac-sha256=" followed by the hex
// HMAC-SHA256 of the raw body under the subscription secret.
package signature

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

const (
	Header = "X-Signature"
	prefix = "hmac-sha256="
)

// Sign returns the X-Signature header value for body.
func Sign(secret string, body []byte) string {
	return prefix + hex.EncodeToString(digest(secret, body))
}

// Verify checks a header value produced by Sign in constant time.
func Verify(secret string, body []byte, headerValue string) error {
	encoded, ok := strings.CutPrefix(strings.TrimSpace(headerValue), prefix)
	if !ok {
		return rejected(ReasonPrefix)
	}

	got, err := hex.DecodeString(encoded)
	if err != nil {
		return rejected(ReasonEncoding)
	}

	if !hmac.Equal(got, digest(secret, body)) {
		return rejected(ReasonMismatch)
	}
	return nil
}

func digest(secret string, body []byte) []byte {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return mac.Sum(nil)
}
