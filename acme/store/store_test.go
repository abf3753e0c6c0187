package store

import (
	"context"
	"crypto"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/tls"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"math/big"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wlallemand/acme-core/acme/keys"
	"github.com/wlallemand/acme-core/acme/resources"
)

func selfSignedChainPEM(t *testing.T, key crypto.Signer) []byte {
	t.Helper()
	template := &x509.Certificate{
		SerialNumber: big.NewInt(1),
		Subject:      pkix.Name{CommonName: "example.test"},
		NotBefore:    time.Now().Add(-time.Hour),
		NotAfter:     time.Now().Add(time.Hour),
	}
	der, err := x509.CreateCertificate(rand.Reader, template, template, key.Public(), key)
	require.NoError(t, err)
	return pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: der})
}

func TestMemStoreLockLookupReplace(t *testing.T) {
	s := NewMemStore()

	_, ok := s.Lookup("a/b")
	assert.False(t, ok)

	unlock, ok := s.TryLock()
	require.True(t, ok)

	require.NoError(t, s.Replace("a/b", &Entry{Chain: []byte("chain-1")}))
	unlock()

	entry, ok := s.Lookup("a/b")
	require.True(t, ok)
	assert.Equal(t, []byte("chain-1"), entry.Chain)
}

func TestMemStoreTryLockFailsWhileHeld(t *testing.T) {
	s := NewMemStore()
	_, ok := s.TryLock()
	require.True(t, ok)

	_, ok = s.TryLock()
	assert.False(t, ok, "a second TryLock must not block or succeed while the first holder has not unlocked")
}

func TestInstallerInstallReplacesEntryAndRebindsInstances(t *testing.T) {
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)
	keyPEM, err := keys.SignerToPEM(key)
	require.NoError(t, err)
	chainPEM := selfSignedChainPEM(t, key)

	s := NewMemStore()
	installer := NewInstaller(s)
	inst := &Instance{}
	installer.Bind("acct/example.test", inst)

	req := resources.CertRequest{AccountID: "acct", StorePath: "acct/example.test", Identifiers: []string{"example.test"}}
	require.NoError(t, installer.Install(context.Background(), req, keyPEM, chainPEM))

	entry, ok := s.Lookup(req.StorePath)
	require.True(t, ok)
	assert.Equal(t, chainPEM, entry.Chain)

	crt, err := inst.GetCertificate(nil)
	require.NoError(t, err)
	assert.NotNil(t, crt.Leaf)
	assert.Equal(t, "example.test", crt.Leaf.Subject.CommonName)
}

func TestInstallerInstallAbortsWithoutPartialStateWhenLockHeld(t *testing.T) {
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)
	keyPEM, err := keys.SignerToPEM(key)
	require.NoError(t, err)
	chainPEM := selfSignedChainPEM(t, key)

	s := NewMemStore()
	installer := NewInstaller(s)
	inst := &Instance{}
	installer.Bind("acct/example.test", inst)

	unlock, ok := s.TryLock()
	require.True(t, ok)

	req := resources.CertRequest{AccountID: "acct", StorePath: "acct/example.test", Identifiers: []string{"example.test"}}
	err = installer.Install(context.Background(), req, keyPEM, chainPEM)
	assert.Error(t, err, "Install must fail when it cannot acquire the store's advisory lock")

	// MemStore.Lookup takes the same mutex as TryLock, so release it before
	// inspecting the store.
	unlock()

	_, ok = s.Lookup(req.StorePath)
	assert.False(t, ok, "a failed lock acquisition must not leave a partially installed entry")

	_, err = inst.GetCertificate(nil)
	assert.Error(t, err, "an unbound instance must not observe a certificate from an aborted install")
}

func TestInstanceRebindSwapsServedCertificate(t *testing.T) {
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)
	chainPEM := selfSignedChainPEM(t, key)
	der, _ := pem.Decode(chainPEM)
	require.NotNil(t, der)

	leaf, err := x509.ParseCertificate(der.Bytes)
	require.NoError(t, err)

	inst := &Instance{}
	_, err = inst.GetCertificate(nil)
	assert.Error(t, err, "an Instance with nothing bound yet must report an error rather than serve nil")

	inst.Rebind(&tls.Certificate{Leaf: leaf})
	crt, err := inst.GetCertificate(nil)
	require.NoError(t, err)
	assert.Same(t, leaf, crt.Leaf)
}
