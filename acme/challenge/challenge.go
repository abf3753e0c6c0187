// Package challenge defines the challenge-publisher collaborator contract
// (spec §4.2) and default HTTP-01/DNS-01 implementations. The engine never
// serves a token or writes a DNS record itself; it calls Publisher and
// blocks until publication completes, per spec §4.2's "the publisher is
// a blocking dependency".
package challenge

import (
	"context"
	"crypto"
	"fmt"

	"github.com/wlallemand/acme-core/acme"
	"github.com/wlallemand/acme-core/acme/keys"
)

// Publisher makes a challenge response available for validation. Kind
// selects HTTP-01 or DNS-01; identifier is the domain being validated;
// token and accountKey are enough to compute the key authorization.
//
// The engine assumes publication completes before it advances to the
// CHALLENGE state (spec §4.2).
type Publisher interface {
	Publish(ctx context.Context, kind acme.ChallengeKind, identifier, token string, accountKey crypto.Signer) error
}

// KeyAuthorization computes token.thumbprint, the value an HTTP-01
// responder serves and the input to the DNS-01 TXT record digest (spec
// §4.2, GLOSSARY "Thumbprint").
func KeyAuthorization(accountKey crypto.Signer, token string) (string, error) {
	return keys.KeyAuthorization(accountKey, token)
}

// MultiPublisher dispatches to the HTTP-01 or DNS-01 publisher by kind.
// A host wiring this module together registers whichever of the two
// bundled default implementations (or its own) it needs.
type MultiPublisher struct {
	HTTP01 Publisher
	DNS01  Publisher
}

var _ Publisher = (*MultiPublisher)(nil)

func (m *MultiPublisher) Publish(ctx context.Context, kind acme.ChallengeKind, identifier, token string, accountKey crypto.Signer) error {
	switch kind {
	case acme.ChallengeHTTP01:
		if m.HTTP01 == nil {
			return fmt.Errorf("challenge: no HTTP-01 publisher configured")
		}
		return m.HTTP01.Publish(ctx, kind, identifier, token, accountKey)
	case acme.ChallengeDNS01:
		if m.DNS01 == nil {
			return fmt.Errorf("challenge: no DNS-01 publisher configured")
		}
		return m.DNS01.Publish(ctx, kind, identifier, token, accountKey)
	default:
		return fmt.Errorf("challenge: unsupported challenge kind %q", kind)
	}
}
