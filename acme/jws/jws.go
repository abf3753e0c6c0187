// Package jws implements the flattened JWS envelope builder described in
// spec §4.1. Build is a pure function: given a payload, the current nonce,
// the target URL, and an account key, it produces the JWS a signed ACME
// request carries as its body. It never issues HTTP requests and never
// looks at a RenewalContext; the engine supplies exactly the five inputs
// spec §4.1 names.
package jws

import (
	"crypto"
	"encoding/json"
	"fmt"

	jose "github.com/go-jose/go-jose/v4"
	"github.com/wlallemand/acme-core/acme/keys"
)

// Envelope is the flattened JSON form of a signed ACME request body, per
// RFC 8555 §6.2.
type Envelope struct {
	Protected string `json:"protected"`
	Payload   string `json:"payload"`
	Signature string `json:"signature"`
}

// oneShotNonceSource hands back a single nonce value to satisfy go-jose's
// jose.NonceSource interface. The engine, not go-jose, owns nonce
// bookkeeping (spec invariant 2), so Build only ever asks for one nonce per
// call.
type oneShotNonceSource string

func (n oneShotNonceSource) Nonce() (string, error) {
	return string(n), nil
}

// Build wraps payload in a flattened JWS per spec §4.1. kid, if non-empty,
// selects the "kid" header form; otherwise the protected header embeds the
// account key's public JWK ("jwk" form). Exactly one of {jwk, kid} is ever
// present, satisfying invariant 3 and testable property P2.
//
// payload may be nil or empty, which is encoded as the empty string per
// RFC 8555 §6.2 (used for POST-as-GET requests).
func Build(payload []byte, nonce, url string, signer crypto.Signer, kid string) (*Envelope, error) {
	if nonce == "" {
		return nil, fmt.Errorf("jws.Build: nonce must not be empty")
	}
	if url == "" {
		return nil, fmt.Errorf("jws.Build: url must not be empty")
	}
	if signer == nil {
		return nil, fmt.Errorf("jws.Build: signer must not be nil")
	}

	var signingKey jose.SigningKey
	var err error
	extraHeaders := map[jose.HeaderKey]interface{}{"url": url}
	opts := &jose.SignerOptions{
		NonceSource:  oneShotNonceSource(nonce),
		ExtraHeaders: extraHeaders,
	}

	if kid == "" {
		signingKey, err = keys.SigningKeyForSigner(signer, "")
		if err != nil {
			return nil, fmt.Errorf("jws.Build: %w", err)
		}
		opts.EmbedJWK = true
	} else {
		signingKey, err = keys.SigningKeyForSigner(signer, kid)
		if err != nil {
			return nil, fmt.Errorf("jws.Build: %w", err)
		}
		opts.EmbedJWK = false
	}

	joseSigner, err := jose.NewSigner(signingKey, opts)
	if err != nil {
		return nil, fmt.Errorf("jws.Build: constructing signer: %w", err)
	}

	if payload == nil {
		payload = []byte{}
	}
	signed, err := joseSigner.Sign(payload)
	if err != nil {
		return nil, fmt.Errorf("jws.Build: signing failed: %w", err)
	}

	serialized := signed.FullSerialize()
	var parsed struct {
		Protected string `json:"protected"`
		Payload   string `json:"payload"`
		Signature string `json:"signature"`
	}
	if err := json.Unmarshal([]byte(serialized), &parsed); err != nil {
		return nil, fmt.Errorf("jws.Build: reparsing serialized JWS: %w", err)
	}

	if len(parsed.Protected) == 0 || len(parsed.Signature) == 0 {
		return nil, fmt.Errorf("jws.Build: produced zero-length protected header or signature")
	}

	return &Envelope{
		Protected: parsed.Protected,
		Payload:   parsed.Payload,
		Signature: parsed.Signature,
	}, nil
}

// Serialize marshals the Envelope to its flattened JSON form, ready to use
// as an HTTP request body with content-type application/jose+json.
func (e *Envelope) Serialize() ([]byte, error) {
	return json.Marshal(e)
}
