package challenge

import (
	"context"
	"crypto"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wlallemand/acme-core/acme"
)

type recordingPublisher struct {
	kind       acme.ChallengeKind
	identifier string
	token      string
	err        error
}

func (p *recordingPublisher) Publish(ctx context.Context, kind acme.ChallengeKind, identifier, token string, accountKey crypto.Signer) error {
	p.kind, p.identifier, p.token = kind, identifier, token
	return p.err
}

func testKey(t *testing.T) *ecdsa.PrivateKey {
	t.Helper()
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)
	return key
}

func TestMultiPublisherDispatchesByKind(t *testing.T) {
	http01 := &recordingPublisher{}
	dns01 := &recordingPublisher{}
	m := &MultiPublisher{HTTP01: http01, DNS01: dns01}
	key := testKey(t)

	require.NoError(t, m.Publish(context.Background(), acme.ChallengeHTTP01, "a.example.test", "tok-http", key))
	assert.Equal(t, "a.example.test", http01.identifier)
	assert.Equal(t, "tok-http", http01.token)
	assert.Empty(t, dns01.identifier, "dispatch must not also call the DNS-01 publisher")

	require.NoError(t, m.Publish(context.Background(), acme.ChallengeDNS01, "b.example.test", "tok-dns", key))
	assert.Equal(t, "b.example.test", dns01.identifier)
	assert.Equal(t, "tok-dns", dns01.token)
}

func TestMultiPublisherRejectsUnconfiguredKind(t *testing.T) {
	m := &MultiPublisher{HTTP01: &recordingPublisher{}}
	err := m.Publish(context.Background(), acme.ChallengeDNS01, "example.test", "tok", testKey(t))
	assert.Error(t, err)
}

func TestMultiPublisherRejectsUnknownKind(t *testing.T) {
	m := &MultiPublisher{HTTP01: &recordingPublisher{}, DNS01: &recordingPublisher{}}
	err := m.Publish(context.Background(), acme.ChallengeKind("tls-alpn-01"), "example.test", "tok", testKey(t))
	assert.Error(t, err)
}

func TestKeyAuthorizationMatchesThumbprintFormat(t *testing.T) {
	key := testKey(t)
	keyAuth, err := KeyAuthorization(key, "token-1")
	require.NoError(t, err)
	assert.Regexp(t, `^token-1\.[A-Za-z0-9_-]+$`, keyAuth)
}

func TestDNSDigestMatchesRFC8555Formula(t *testing.T) {
	sum := sha256.Sum256([]byte("key-auth-value"))
	want := base64.RawURLEncoding.EncodeToString(sum[:])
	assert.Equal(t, want, dnsDigest("key-auth-value"))
}
