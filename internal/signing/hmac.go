package signing

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
)

// Headers carried on every outbound webhook request.
const (
	SignatureHeader = "X-Webhook-Signature-256"
	EventTypeHeader = "X-Webhook-Event"
)

// Sign computes the HMAC-SHA256 of payload under the subscriber's secret and
// returns the hex-encoded token. Deterministic: the same (payload, secret)
// pair always yields the same token, so subscribers can recompute it to
// authenticate the request.
func Sign(payload []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	return "sha256=" + hex.EncodeToString(mac.Sum(nil))
}

// Verify reports whether signature matches the HMAC-SHA256 of payload under
// secret. Comparison is constant-time.
func Verify(payload []byte, secret, signature string) bool {
	expected := Sign(payload, secret)
	return hmac.Equal([]byte(expected), []byte(signature))
}
