// Package keys implements the host cryptography provider contract the
// renewal engine depends on: key generation, CSR construction, JWK
// encoding, and PEM I/O. Per spec §1 these primitives belong to the host
// proxy; this package is a stdlib-backed default implementation of that
// contract, exercised by the engine's own tests and swappable by a real
// host.
package keys

import (
	"crypto"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"fmt"

	jose "github.com/go-jose/go-jose/v4"
)

// SigAlgForKey selects the JWS signature algorithm for an account key, per
// spec §4.1 step 1: EC P-256→ES256, EC P-384→ES384, EC P-521→ES512,
// RSA→RS256.
func SigAlgForKey(signer crypto.Signer) (jose.SignatureAlgorithm, error) {
	switch k := signer.(type) {
	case *ecdsa.PrivateKey:
		switch k.Curve {
		case elliptic.P256():
			return jose.ES256, nil
		case elliptic.P384():
			return jose.ES384, nil
		case elliptic.P521():
			return jose.ES512, nil
		default:
			return "", fmt.Errorf("unsupported EC curve: %s", k.Curve.Params().Name)
		}
	case *rsa.PrivateKey:
		return jose.RS256, nil
	default:
		return "", fmt.Errorf("unsupported signer type: %T", signer)
	}
}

func algForKey(signer crypto.Signer) string {
	switch signer.(type) {
	case *ecdsa.PrivateKey:
		return "EC"
	case *rsa.PrivateKey:
		return "RSA"
	default:
		return "unknown"
	}
}

// JWKForSigner returns the public JWK for a signer, used in the protected
// header's "jwk" field (spec §4.1 step 2) and for thumbprint computation.
func JWKForSigner(signer crypto.Signer) jose.JSONWebKey {
	return jose.JSONWebKey{
		Key:       signer.Public(),
		Algorithm: algForKey(signer),
	}
}

// JWKJSON returns the JSON serialization of a signer's public JWK.
func JWKJSON(signer crypto.Signer) (string, error) {
	jwk := JWKForSigner(signer)
	jwkJSON, err := json.Marshal(&jwk)
	if err != nil {
		return "", err
	}
	return string(jwkJSON), nil
}

// JWKThumbprint computes the base64url(SHA-256(canonical JWK)) thumbprint
// used to build a challenge key-authorization (spec §4.2, GLOSSARY).
func JWKThumbprint(signer crypto.Signer) (string, error) {
	jwk := JWKForSigner(signer)
	thumbBytes, err := jwk.Thumbprint(crypto.SHA256)
	if err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(thumbBytes), nil
}

// KeyAuthorization builds the HTTP-01 key authorization:
// token || "." || thumbprint, per spec §4.2.
func KeyAuthorization(signer crypto.Signer, token string) (string, error) {
	thumbprint, err := JWKThumbprint(signer)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s.%s", token, thumbprint), nil
}

// SigningKeyForSigner builds the go-jose SigningKey used to construct
// a jose.Signer, embedding keyID when signing with a kid header.
func SigningKeyForSigner(signer crypto.Signer, keyID string) (jose.SigningKey, error) {
	alg, err := SigAlgForKey(signer)
	if err != nil {
		return jose.SigningKey{}, err
	}
	jwk := jose.JSONWebKey{
		Key:       signer,
		Algorithm: string(alg),
		KeyID:     keyID,
	}
	return jose.SigningKey{Key: jwk, Algorithm: alg}, nil
}
