package resources

import (
	"crypto"
	"fmt"
	"strings"

	"github.com/wlallemand/acme-core/acme"
)

// AccountConfig is the immutable, fully-resolved configuration for one ACME
// provider section, per spec §3/§6. A RenewalContext holds a pointer to one
// of these for its lifetime; the engine never mutates or re-resolves it.
type AccountConfig struct {
	// ID names this section for CertRequest.AccountID lookups (spec §6.2).
	ID string
	// URI is the absolute URL of the ACME directory.
	URI string
	// Contact is a bare email address (no "mailto:" prefix); the engine adds
	// the prefix when building the newAccount request.
	Contact string
	// Challenge is the challenge kind to attempt for every identifier.
	Challenge acme.ChallengeKind
	// KeyType/Bits/Curve select the subject key algorithm for certificates
	// requested under this section.
	KeyType acme.KeyType
	Bits    int
	Curve   string
	// AccountKey is the account's private key, loaded from the PEM file
	// named in configuration. The engine never generates this key.
	AccountKey crypto.Signer
}

// Normalize fills in the §6 defaults and validates the required fields.
func (c *AccountConfig) Normalize() error {
	c.URI = strings.TrimSpace(c.URI)
	c.Contact = strings.TrimSpace(c.Contact)

	if c.URI == "" {
		return fmt.Errorf("acme account %q: uri must not be empty", c.ID)
	}
	if c.AccountKey == nil {
		return fmt.Errorf("acme account %q: account key must be loaded", c.ID)
	}
	if c.Challenge == "" {
		c.Challenge = acme.ChallengeHTTP01
	}
	if c.KeyType == "" {
		c.KeyType = acme.KeyTypeECDSA
	}
	if c.Bits == 0 {
		c.Bits = acme.DefaultRSABits
	}
	if c.Curve == "" {
		c.Curve = acme.DefaultCurve
	}
	return nil
}

// CertRequest is one per-certificate entry: a SAN list bound to an
// AccountConfig (by id) and the store path it renews into, per spec §6.
type CertRequest struct {
	AccountID   string
	StorePath   string
	Identifiers []string
}

// CommonName returns the configured CSR CommonName: the first identifier.
func (r CertRequest) CommonName() (string, error) {
	if len(r.Identifiers) == 0 {
		return "", fmt.Errorf("certificate request for %q has no identifiers", r.StorePath)
	}
	return r.Identifiers[0], nil
}
