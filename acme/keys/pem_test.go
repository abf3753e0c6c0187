package keys

import (
	"crypto"
	"crypto/rand"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"math/big"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wlallemand/acme-core/acme"
)

func selfSignedDER(t *testing.T, key crypto.Signer) []byte {
	t.Helper()
	template := &x509.Certificate{
		SerialNumber: big.NewInt(1),
		Subject:      pkix.Name{CommonName: "example.test"},
		NotBefore:    time.Now().Add(-time.Hour),
		NotAfter:     time.Now().Add(time.Hour),
	}
	der, err := x509.CreateCertificate(rand.Reader, template, template, key.Public(), key)
	require.NoError(t, err)
	return der
}

func TestSignerToPEMRoundTripsECDSA(t *testing.T) {
	p := StdProvider{}
	key, err := p.NewKey(acme.KeyTypeECDSA, 0, "P-256")
	require.NoError(t, err)

	keyPEM, err := SignerToPEM(key)
	require.NoError(t, err)

	dir := t.TempDir()
	path := filepath.Join(dir, "account.key")
	require.NoError(t, os.WriteFile(path, keyPEM, 0o600))

	loaded, err := LoadAccountKey(path)
	require.NoError(t, err)
	assert.Equal(t, key.Public(), loaded.Public())
}

func TestSignerToPEMRoundTripsRSA(t *testing.T) {
	p := StdProvider{}
	key, err := p.NewKey(acme.KeyTypeRSA, 2048, "")
	require.NoError(t, err)

	keyPEM, err := SignerToPEM(key)
	require.NoError(t, err)

	dir := t.TempDir()
	path := filepath.Join(dir, "account.key")
	require.NoError(t, os.WriteFile(path, keyPEM, 0o600))

	loaded, err := LoadAccountKey(path)
	require.NoError(t, err)
	assert.Equal(t, key.Public(), loaded.Public())
}

func TestLoadAccountKeyMissingFile(t *testing.T) {
	_, err := LoadAccountKey(filepath.Join(t.TempDir(), "missing.key"))
	assert.Error(t, err)
}

func TestParseCertificateChainSplitsBundle(t *testing.T) {
	p := StdProvider{}
	key, err := p.NewKey(acme.KeyTypeECDSA, 0, "P-256")
	require.NoError(t, err)

	certDER := selfSignedDER(t, key)
	bundle := append(
		pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: certDER}),
		pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: certDER})...,
	)

	chain, err := ParseCertificateChain(bundle)
	require.NoError(t, err)
	assert.Len(t, chain, 2)
}

func TestParseCertificateChainRejectsEmptyBundle(t *testing.T) {
	_, err := ParseCertificateChain([]byte("not a pem bundle"))
	assert.Error(t, err)
}
