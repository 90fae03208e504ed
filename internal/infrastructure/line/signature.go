package line

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
)

// SignatureHeader carries the base64 HMAC-SHA256 of the raw request body.
const SignatureHeader = "X-Line-Signature"

// Sign returns the signature LINE computes for body with the channel secret.
func Sign(body []byte, channelSecret string) string {
	mac := hmac.New(sha256.New, []byte(channelSecret))
	mac.Write(body)
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

// VerifySignature reports whether signature matches the exact bytes of body.
// The body must not be re-encoded before the check.
func VerifySignature(body []byte, signature, channelSecret string) bool {
	if signature == "" || channelSecret == "" {
		return false
	}
	return hmac.Equal([]byte(Sign(body, channelSecret)), []byte(signature))
}
