package razorpay

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
)

// SignatureHeader carries the hex HMAC of the webhook body.
const SignatureHeader = "X-Razorpay-Signature"

// VerifySignature reports whether signature is the lowercase hex HMAC-SHA256 of
// rawBody keyed by secret. rawBody must be the bytes exactly as received.
// Any malformed input yields false.
func VerifySignature(rawBody []byte, signature, secret string) bool {
	if secret == "" || len(signature) != hex.EncodedLen(sha256.Size) {
		return false
	}
	expected := Sign(rawBody, secret)
	return hmac.Equal([]byte(expected), []byte(signature))
}

// Sign returns the signature Razorpay sends for rawBody.
func Sign(rawBody []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(rawBody)
	return hex.EncodeToString(mac.Sum(nil))
}
