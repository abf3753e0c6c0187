// Package acme provides ACME protocol constants shared across the renewal
// engine's packages.
package acme

// Directory resource keys.
//
// See https://www.rfc-editor.org/rfc/rfc8555#section-7.1.1
const (
	NewNonceEndpoint   = "newNonce"
	NewAccountEndpoint = "newAccount"
	NewOrderEndpoint   = "newOrder"
	KeyChangeEndpoint  = "keyChange"
)

// ReplayNonceHeader is the HTTP response header ACME servers use to
// communicate a fresh nonce.
//
// See https://www.rfc-editor.org/rfc/rfc8555#section-6.5.1
const ReplayNonceHeader = "Replay-Nonce"

// LocationHeader carries the URL of a newly created resource (Account,
// Order) in newAccount/newOrder responses.
const LocationHeader = "Location"

// JOSEContentType is the content type required on every signed ACME
// request body.
const JOSEContentType = "application/jose+json"

// ChallengeKind names an ACME challenge type the engine is configured to
// attempt.
type ChallengeKind string

const (
	ChallengeHTTP01 ChallengeKind = "http-01"
	ChallengeDNS01  ChallengeKind = "dns-01"
)

// KeyType names the family of key the engine should generate for
// a certificate's subject key.
type KeyType string

const (
	KeyTypeRSA   KeyType = "RSA"
	KeyTypeECDSA KeyType = "ECDSA"
)

// AccountDoesNotExist is the ACME problem type returned by CHKACCOUNT when
// onlyReturnExisting finds no matching account.
//
// See https://www.rfc-editor.org/rfc/rfc8555#section-7.3.1
const AccountDoesNotExist = "urn:ietf:params:acme:error:accountDoesNotExist"

// BadNonce is the ACME problem type signaling a stale or unknown nonce was
// used to sign a request. It is always transient; the response carries
// a fresh Replay-Nonce header to retry with.
//
// See https://www.rfc-editor.org/rfc/rfc8555#section-6.7
const BadNonce = "urn:ietf:params:acme:error:badNonce"

// nonRetryableErrors is the set of ACME problem "type" suffixes (after the
// "urn:ietf:params:acme:error:" prefix) that are terminal rather than
// transient. See spec §4.3 "Error classification".
var nonRetryableErrors = map[string]bool{
	"badCSR":                true,
	"rejectedIdentifier":    true,
	"unsupportedIdentifier": true,
	"malformed":             true,
	"unauthorized":          true,
}

// IsRetryable reports whether an ACME problem document of the given type
// should be treated as a transient failure eligible for retry. Unknown
// types are treated as retryable, matching spec §4.3's "transient unless
// the type is in the non-retryable set" rule.
func IsRetryable(problemType string) bool {
	return !nonRetryableErrors[problemType]
}

// DefaultRetries is the ACME_RETRY budget from spec §4.3: the number of
// transient-failure attempts a renewal gets before it gives up.
const DefaultRetries = 3

// DefaultRSABits and DefaultCurve are the §6 configuration defaults.
const (
	DefaultRSABits = 4096
	DefaultCurve   = "P-384"
)
