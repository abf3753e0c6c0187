package resources

import (
	"crypto"

	"github.com/wlallemand/acme-core/acme"
)

// Directory holds the subset of the ACME directory resource the engine
// needs, extracted by the RESSOURCES state.
//
// See https://www.rfc-editor.org/rfc/rfc8555#section-7.1.1
type Directory struct {
	NewNonce   string
	NewAccount string
	NewOrder   string
}

// RenewalContext is the typed state carried across every step of one
// renewal, per spec §3. Exactly one exists per active renewal; it is
// created by the command entry point and destroyed on terminal success or
// final failure.
type RenewalContext struct {
	// Config is the immutable account configuration this renewal runs
	// under.
	Config *AccountConfig
	// Request is the certificate-specific SAN list and store path.
	Request CertRequest

	// NewKey is the freshly generated subject key, created before the
	// state machine starts.
	NewKey crypto.Signer
	// CSR is the DER-encoded PKCS#10 request built over NewKey.
	CSR []byte

	// Directory holds the URLs extracted from the ACME directory.
	Directory Directory
	// Nonce is the most recent Replay-Nonce header value. Invariant: after
	// any non-terminal HTTP response, Nonce is non-empty.
	Nonce string
	// KID is the account URL returned by newAccount. Empty before account
	// resolution, then immutable.
	KID string
	// Order is the order URL from newOrder's Location header.
	Order string
	// Finalize is the URL from the order JSON's finalize field.
	Finalize string
	// Certificate is the URL from the completed order JSON's certificate
	// field.
	Certificate string

	// Auths is the ordered sequence of per-identifier Authorization
	// bookkeeping entries.
	Auths []Authorization
	// Cursor indexes the current authorization in Auths. It is reset to 0
	// when advancing between the AUTH/CHALLENGE/CHKCHALLENGE states.
	Cursor int

	// Retries is the remaining transient-failure budget.
	Retries int

	// CertChainPEM holds the PEM certificate chain downloaded in the
	// CERTIFICATE state, pending install.
	CertChainPEM []byte
}

// NewRenewalContext creates a RenewalContext ready to start at the
// RESSOURCES state, per spec §3's lifecycle note ("created by the command
// entry point").
func NewRenewalContext(cfg *AccountConfig, req CertRequest, newKey crypto.Signer, csr []byte) *RenewalContext {
	return &RenewalContext{
		Config:  cfg,
		Request: req,
		NewKey:  newKey,
		CSR:     csr,
		Retries: acme.DefaultRetries,
	}
}

// CurrentAuth returns the authorization the cursor currently points to, or
// nil if the cursor has been exhausted (spec §4.3's "when exhausted" edges).
func (rc *RenewalContext) CurrentAuth() *Authorization {
	if rc.Cursor < 0 || rc.Cursor >= len(rc.Auths) {
		return nil
	}
	return &rc.Auths[rc.Cursor]
}

// AdvanceCursor moves the cursor to the next authorization. It reports
// whether the cursor is now exhausted (i.e. every authorization has been
// visited for the current sub-state).
func (rc *RenewalContext) AdvanceCursor() (exhausted bool) {
	rc.Cursor++
	return rc.Cursor >= len(rc.Auths)
}

// ResetCursor rewinds the cursor to the first authorization, as spec §4.3
// requires on the AUTH→CHALLENGE, CHALLENGE→CHKCHALLENGE, and
// CHKCHALLENGE→FINALIZE edges.
func (rc *RenewalContext) ResetCursor() {
	rc.Cursor = 0
}

// SetNonce overwrites Nonce, discarding the previous value per invariant 2.
func (rc *RenewalContext) SetNonce(nonce string) {
	if nonce != "" {
		rc.Nonce = nonce
	}
}
