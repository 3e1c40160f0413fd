package gateway

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strings"
)

var ErrBadSignature = errors.New("gateway: webhook signature mismatch")

// VerifySignature checks the HMAC-SHA256 signature the provider sends with
// every webhook delivery. The comparison is constant time. An optional
// "sha256=" prefix on the header value is tolerated.
func VerifySignature(secret string, body []byte, signature string) error {
	if secret == "" {
		return errors.New("gateway: webhook secret not configured")
	}
	signature = strings.TrimPrefix(strings.TrimSpace(signature), "sha256=")
	provided, err := hex.DecodeString(signature)
	if err != nil {
		return ErrBadSignature
	}
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	if !hmac.Equal(provided, mac.Sum(nil)) {
		return ErrBadSignature
	}
	return nil
}

// Sign computes the hex HMAC-SHA256 of a payload. Tests and the local dev
// gateway stub use it to produce valid deliveries.
func Sign(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}
