package challenge

import (
	"context"
	"crypto"
	"fmt"

	challtestsrv "github.com/letsencrypt/challtestsrv"

	"github.com/wlallemand/acme-core/acme"
)

// TestServerPublisher publishes HTTP-01 and DNS-01 responses against
// a github.com/letsencrypt/challtestsrv instance, the same challenge
// response server the teacher embeds in its interactive shell
// (shell/solve.go's AddHTTPOneChallenge/AddDNSOneChallenge calls).
//
// It is the default Publisher wired by cmd/acmerenew's demo mode (the
// engine tests use their own recording fake); a production host would instead run
// a Publisher against its real HTTP listener and DNS zone.
type TestServerPublisher struct {
	Srv *challtestsrv.ChallSrv
}

var _ Publisher = (*TestServerPublisher)(nil)

func (p *TestServerPublisher) Publish(ctx context.Context, kind acme.ChallengeKind, identifier, token string, accountKey crypto.Signer) error {
	keyAuth, err := KeyAuthorization(accountKey, token)
	if err != nil {
		return fmt.Errorf("computing key authorization: %w", err)
	}

	switch kind {
	case acme.ChallengeHTTP01:
		p.Srv.AddHTTPOneChallenge(token, keyAuth)
	case acme.ChallengeDNS01:
		p.Srv.AddDNSOneChallenge(identifier, keyAuth)
	default:
		return fmt.Errorf("challenge: unsupported challenge kind %q", kind)
	}
	return nil
}
