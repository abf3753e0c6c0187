package keys

import (
	"crypto"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"crypto/x509/pkix"
	"fmt"

	"github.com/wlallemand/acme-core/acme"
)

// Provider is the host cryptography contract the engine depends on to
// create a new subject key and build a CSR over it (spec §1, §4.2-adjacent;
// SPEC_FULL.md §4.2).
type Provider interface {
	NewKey(kt acme.KeyType, bits int, curve string) (crypto.Signer, error)
	BuildCSR(key crypto.Signer, commonName string, sans []string) ([]byte, error)
}

// StdProvider is the default Provider backed by crypto/ecdsa, crypto/rsa,
// and crypto/x509 — the same primitives a host proxy's own crypto layer
// would already use.
type StdProvider struct{}

var _ Provider = StdProvider{}

func curveByName(name string) (elliptic.Curve, error) {
	switch name {
	case "P-256":
		return elliptic.P256(), nil
	case "P-384", "":
		return elliptic.P384(), nil
	case "P-521":
		return elliptic.P521(), nil
	default:
		return nil, fmt.Errorf("unsupported EC curve %q", name)
	}
}

// NewKey generates a fresh subject key per spec §3's "newKey" field: EC on
// the configured named curve, or RSA of the configured bit length.
func (StdProvider) NewKey(kt acme.KeyType, bits int, curve string) (crypto.Signer, error) {
	switch kt {
	case acme.KeyTypeRSA:
		if bits == 0 {
			bits = acme.DefaultRSABits
		}
		return rsa.GenerateKey(rand.Reader, bits)
	case acme.KeyTypeECDSA, "":
		c, err := curveByName(curve)
		if err != nil {
			return nil, err
		}
		return ecdsa.GenerateKey(c, rand.Reader)
	default:
		return nil, fmt.Errorf("unsupported key type %q", kt)
	}
}

// BuildCSR constructs a DER-encoded PKCS#10 request over key, with
// CommonName = commonName and subjectAltName listing exactly sans as DNS
// names, per spec §3's "csr" field and testable property P6.
func (StdProvider) BuildCSR(key crypto.Signer, commonName string, sans []string) ([]byte, error) {
	if len(sans) == 0 {
		return nil, fmt.Errorf("BuildCSR: no identifiers provided")
	}
	template := &x509.CertificateRequest{
		Subject:  pkix.Name{CommonName: commonName},
		DNSNames: sans,
	}
	return x509.CreateCertificateRequest(rand.Reader, template, key)
}
