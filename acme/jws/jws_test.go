package jws

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"testing"

	jose "github.com/go-jose/go-jose/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testKey(t *testing.T) *ecdsa.PrivateKey {
	t.Helper()
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)
	return key
}

func TestBuildEmbedsJWKWhenNoKID(t *testing.T) {
	key := testKey(t)
	env, err := Build([]byte(`{"hello":"world"}`), "nonce-1", "https://example.test/acme/new-order", key, "")
	require.NoError(t, err)

	header := decodeProtected(t, env.Protected)
	assert.Contains(t, header, "jwk")
	assert.NotContains(t, header, "kid")
	assert.Equal(t, "nonce-1", header["nonce"])
	assert.Equal(t, "https://example.test/acme/new-order", header["url"])
}

func TestBuildUsesKIDWhenProvided(t *testing.T) {
	key := testKey(t)
	env, err := Build([]byte(`{}`), "nonce-2", "https://example.test/acme/order/1", key, "https://example.test/acme/acct/1")
	require.NoError(t, err)

	header := decodeProtected(t, env.Protected)
	assert.Equal(t, "https://example.test/acme/acct/1", header["kid"])
	assert.NotContains(t, header, "jwk")
}

func TestBuildEmptyPayloadEncodesAsEmptyString(t *testing.T) {
	key := testKey(t)
	env, err := Build(nil, "nonce-3", "https://example.test/acme/authz/1", key, "https://example.test/acme/acct/1")
	require.NoError(t, err)
	assert.Equal(t, "", env.Payload)
}

func TestBuildRejectsMissingInputs(t *testing.T) {
	key := testKey(t)
	_, err := Build(nil, "", "https://example.test", key, "")
	assert.Error(t, err)

	_, err = Build(nil, "nonce", "", key, "")
	assert.Error(t, err)

	_, err = Build(nil, "nonce", "https://example.test", nil, "")
	assert.Error(t, err)
}

func TestEnvelopeSerializeRoundTrips(t *testing.T) {
	key := testKey(t)
	env, err := Build([]byte(`{"a":1}`), "nonce-4", "https://example.test/acme/finalize/1", key, "kid-1")
	require.NoError(t, err)

	out, err := env.Serialize()
	require.NoError(t, err)

	var round Envelope
	require.NoError(t, json.Unmarshal(out, &round))
	assert.Equal(t, *env, round)
}

func decodeProtected(t *testing.T, protected string) map[string]interface{} {
	t.Helper()
	raw, err := base64.RawURLEncoding.DecodeString(protected)
	require.NoError(t, err)
	var header map[string]interface{}
	require.NoError(t, json.Unmarshal(raw, &header))
	return header
}

// TestBuildSignatureVerifies checks that a jwk-form envelope parses as an
// ES256 JWS and verifies against the signing key's public half, exercising
// the same library (go-jose) used to build it.
func TestBuildSignatureVerifies(t *testing.T) {
	key := testKey(t)
	env, err := Build([]byte(`{"ping":true}`), "nonce-5", "https://example.test/acme/new-account", key, "")
	require.NoError(t, err)

	serialized, err := env.Serialize()
	require.NoError(t, err)

	sig, err := jose.ParseSigned(string(serialized), []jose.SignatureAlgorithm{jose.ES256})
	require.NoError(t, err)

	payload, err := sig.Verify(key.Public())
	require.NoError(t, err)
	assert.Equal(t, `{"ping":true}`, string(payload))
}
