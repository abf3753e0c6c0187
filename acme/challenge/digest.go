package challenge

import (
	"crypto/sha256"
	"encoding/base64"
)

// dnsDigest computes the DNS-01 TXT record value from a key authorization:
// base64url(SHA-256(keyAuthorization)), per RFC 8555 §8.4.
func dnsDigest(keyAuth string) string {
	sum := sha256.Sum256([]byte(keyAuth))
	return base64.RawURLEncoding.EncodeToString(sum[:])
}
