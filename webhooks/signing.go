package webhooks

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"strings"

	"github.com/goliatone/go-payments/core"
)

const (
	SignatureHeader   = "X-Webhook-Signature"
	ContentTypeHeader = "Content-Type"
	ContentTypeJSON   = "application/json"
)

// Canonicalize renders payload as the exact byte string that is signed and
// sent.
func Canonicalize(payload any) ([]byte, error) {
	return core.CanonicalJSON(payload)
}

// Sign returns the hex HMAC-SHA256 of body keyed by secret.
func Sign(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

// Verify checks a received signature in constant time.
func Verify(secret string, body []byte, signature string) bool {
	expected, err := hex.DecodeString(Sign(secret, body))
	if err != nil {
		return false
	}
	received, err := hex.DecodeString(strings.TrimSpace(signature))
	if err != nil {
		return false
	}
	return hmac.Equal(expected, received)
}
