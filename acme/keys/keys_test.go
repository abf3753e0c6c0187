package keys

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/x509"
	"testing"

	jose "github.com/go-jose/go-jose/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wlallemand/acme-core/acme"
)

func TestSigAlgForKeyCoversConfiguredCurves(t *testing.T) {
	p := StdProvider{}

	for _, tc := range []struct {
		curve string
		alg   jose.SignatureAlgorithm
	}{
		{"P-256", jose.ES256},
		{"P-384", jose.ES384},
		{"P-521", jose.ES512},
	} {
		key, err := p.NewKey(acme.KeyTypeECDSA, 0, tc.curve)
		require.NoError(t, err)
		alg, err := SigAlgForKey(key)
		require.NoError(t, err)
		assert.Equal(t, tc.alg, alg)
	}
}

func TestSigAlgForRSAKeyIsRS256(t *testing.T) {
	p := StdProvider{}
	key, err := p.NewKey(acme.KeyTypeRSA, 2048, "")
	require.NoError(t, err)
	alg, err := SigAlgForKey(key)
	require.NoError(t, err)
	assert.Equal(t, jose.RS256, alg)
}

func TestJWKThumbprintIsStableForSameKey(t *testing.T) {
	p := StdProvider{}
	key, err := p.NewKey(acme.KeyTypeECDSA, 0, "P-256")
	require.NoError(t, err)

	t1, err := JWKThumbprint(key)
	require.NoError(t, err)
	t2, err := JWKThumbprint(key)
	require.NoError(t, err)
	assert.Equal(t, t1, t2)
	assert.NotEmpty(t, t1)
}

func TestKeyAuthorizationFormat(t *testing.T) {
	p := StdProvider{}
	key, err := p.NewKey(acme.KeyTypeECDSA, 0, "P-256")
	require.NoError(t, err)

	keyAuth, err := KeyAuthorization(key, "token-value")
	require.NoError(t, err)

	thumb, err := JWKThumbprint(key)
	require.NoError(t, err)
	assert.Equal(t, "token-value."+thumb, keyAuth)
}

func TestBuildCSRWellFormed(t *testing.T) {
	p := StdProvider{}
	key, err := p.NewKey(acme.KeyTypeECDSA, 0, "P-384")
	require.NoError(t, err)

	der, err := p.BuildCSR(key, "example.test", []string{"example.test", "www.example.test"})
	require.NoError(t, err)

	csr, err := x509.ParseCertificateRequest(der)
	require.NoError(t, err)
	assert.NoError(t, csr.CheckSignature())
	assert.Equal(t, "example.test", csr.Subject.CommonName)
	assert.ElementsMatch(t, []string{"example.test", "www.example.test"}, csr.DNSNames)
}

func TestBuildCSRRejectsEmptySANs(t *testing.T) {
	p := StdProvider{}
	key, err := p.NewKey(acme.KeyTypeECDSA, 0, "P-256")
	require.NoError(t, err)

	_, err = p.BuildCSR(key, "example.test", nil)
	assert.Error(t, err)
}

func TestNewKeyDefaultsToP384ForUnspecifiedCurve(t *testing.T) {
	p := StdProvider{}
	key, err := p.NewKey(acme.KeyTypeECDSA, 0, "")
	require.NoError(t, err)

	ecKey, ok := key.(*ecdsa.PrivateKey)
	require.True(t, ok)
	assert.Equal(t, elliptic.P384(), ecKey.Curve)
}
