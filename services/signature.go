package services

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
)

// ComputeSignature returns hex(HMAC-SHA256(secret, orderRef + "|" + paymentRef)).
func ComputeSignature(orderRef, paymentRef, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(orderRef + "|" + paymentRef))
	return hex.EncodeToString(mac.Sum(nil))
}

// VerifySignature reports whether candidate is the signature of the order and
// payment references under secret. The comparison is constant time and any
// mismatch, including an empty candidate, yields false.
func VerifySignature(orderRef, paymentRef, secret, candidate string) bool {
	expected := ComputeSignature(orderRef, paymentRef, secret)
	return hmac.Equal([]byte(expected), []byte(candidate))
}

// SignatureVerifier binds VerifySignature to the configured shared secret.
type SignatureVerifier struct {
	secret string
}

func NewSignatureVerifier(secret string) *SignatureVerifier {
	return &SignatureVerifier{secret: secret}
}

func (v *SignatureVerifier) Verify(orderRef, paymentRef, candidate string) bool {
	return VerifySignature(orderRef, paymentRef, v.secret, candidate)
}
