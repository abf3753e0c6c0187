package challenge

import (
	"context"
	"crypto"
	"fmt"
	"time"

	"github.com/miekg/dns"

	"github.com/wlallemand/acme-core/acme"
)

// DynamicDNSPublisher installs a DNS-01 TXT record by sending an RFC 2136
// dynamic update to an authoritative nameserver, the way
// kube-cert-manager's dns.go talks to DNS (there via a provider exec
// script; here directly through miekg/dns, which already ships the
// update-message primitives).
type DynamicDNSPublisher struct {
	// Server is the authoritative nameserver's host:port for zone updates.
	Server string
	// Zone is the DNS zone the TXT record is inserted into (with trailing dot).
	Zone string
	// TSIGKeyName/TSIGSecret, if set, sign the update per RFC 2845.
	TSIGKeyName string
	TSIGSecret  string
	// TTL is the record's time-to-live, in seconds.
	TTL uint32
}

var _ Publisher = (*DynamicDNSPublisher)(nil)

func (p *DynamicDNSPublisher) Publish(ctx context.Context, kind acme.ChallengeKind, identifier, token string, accountKey crypto.Signer) error {
	if kind != acme.ChallengeDNS01 {
		return fmt.Errorf("challenge: DynamicDNSPublisher only handles dns-01, got %q", kind)
	}

	keyAuth, err := KeyAuthorization(accountKey, token)
	if err != nil {
		return fmt.Errorf("computing key authorization: %w", err)
	}
	digest := dnsDigest(keyAuth)

	fqdn := dns.Fqdn(fmt.Sprintf("_acme-challenge.%s", identifier))
	ttl := p.TTL
	if ttl == 0 {
		ttl = 120
	}
	rr, err := dns.NewRR(fmt.Sprintf("%s %d IN TXT %q", fqdn, ttl, digest))
	if err != nil {
		return fmt.Errorf("building TXT record: %w", err)
	}

	msg := new(dns.Msg)
	msg.SetUpdate(p.Zone)
	msg.Insert([]dns.RR{rr})

	client := new(dns.Client)
	if p.TSIGKeyName != "" {
		msg.SetTsig(dns.Fqdn(p.TSIGKeyName), dns.HmacSHA256, 300, time.Now().Unix())
		client.TsigSecret = map[string]string{dns.Fqdn(p.TSIGKeyName): p.TSIGSecret}
	}

	resp, _, err := client.ExchangeContext(ctx, msg, p.Server)
	if err != nil {
		return fmt.Errorf("dynamic update to %s failed: %w", p.Server, err)
	}
	if resp.Rcode != dns.RcodeSuccess {
		return fmt.Errorf("dynamic update to %s rejected: %s", p.Server, dns.RcodeToString[resp.Rcode])
	}
	return nil
}
