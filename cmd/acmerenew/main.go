// The acmerenew command line tool drives a single certificate renewal
// through the engine, wiring together the default transport, challenge
// publisher, and certificate store. It demonstrates the wiring a host
// proxy performs; the operator-facing command surface itself is out of
// the renewal core's scope.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	challtestsrv "github.com/letsencrypt/challtestsrv"

	acmecmd "github.com/wlallemand/acme-core/cmd"

	"github.com/wlallemand/acme-core/acme"
	"github.com/wlallemand/acme-core/acme/challenge"
	"github.com/wlallemand/acme-core/acme/engine"
	"github.com/wlallemand/acme-core/acme/keys"
	"github.com/wlallemand/acme-core/acme/resources"
	"github.com/wlallemand/acme-core/acme/store"
	"github.com/wlallemand/acme-core/acme/transport"
)

const (
	DIRECTORY_DEFAULT = "https://acme-staging-v02.api.letsencrypt.org/directory"
	CHALLENGE_DEFAULT = "http-01"
	HTTP_PORT_DEFAULT = 5002
	DNS_PORT_DEFAULT  = 5253
)

func main() {
	directory := flag.String("directory", DIRECTORY_DEFAULT, "ACME directory URL")
	accountKeyPath := flag.String("account-key", "", "Path to the PEM-encoded ACME account key")
	contact := flag.String("contact", "", "Optional contact email for the ACME account")
	challengeType := flag.String("challenge", CHALLENGE_DEFAULT, "Challenge type to attempt: http-01 or dns-01")
	keyType := flag.String("key-type", "ECDSA", "Subject key type: RSA or ECDSA")
	curve := flag.String("curve", acme.DefaultCurve, "Named EC curve, when -key-type=ECDSA")
	bits := flag.Int("bits", acme.DefaultRSABits, "RSA key size, when -key-type=RSA")
	storePath := flag.String("store-path", "", "Store path to install the renewed certificate under")
	identifiers := flag.String("identifiers", "", "Comma-separated list of DNS identifiers")
	httpPort := flag.Int("http-port", HTTP_PORT_DEFAULT, "Local HTTP-01 challenge response port")
	dnsPort := flag.Int("dns-port", DNS_PORT_DEFAULT, "Local DNS-01 challenge response port")

	flag.Parse()

	sans := splitAndTrim(*identifiers)
	if len(sans) == 0 {
		acmecmd.FailOnError(fmt.Errorf("at least one -identifiers value is required"), "invalid configuration")
	}
	if *storePath == "" {
		acmecmd.FailOnError(fmt.Errorf("-store-path is required"), "invalid configuration")
	}

	accountKey, err := keys.LoadAccountKey(*accountKeyPath)
	acmecmd.FailOnError(err, "loading ACME account key")

	cfg := &resources.AccountConfig{
		ID:         "default",
		URI:        *directory,
		Contact:    *contact,
		Challenge:  acme.ChallengeKind(*challengeType),
		KeyType:    acme.KeyType(strings.ToUpper(*keyType)),
		Bits:       *bits,
		Curve:      *curve,
		AccountKey: accountKey,
	}
	acmecmd.FailOnError(cfg.Normalize(), "normalizing account configuration")

	req := resources.CertRequest{
		AccountID:   cfg.ID,
		StorePath:   *storePath,
		Identifiers: sans,
	}

	provider := keys.StdProvider{}
	newKey, err := provider.NewKey(cfg.KeyType, cfg.Bits, cfg.Curve)
	acmecmd.FailOnError(err, "generating subject key")

	commonName, err := req.CommonName()
	acmecmd.FailOnError(err, "resolving CSR common name")

	csr, err := provider.BuildCSR(newKey, commonName, req.Identifiers)
	acmecmd.FailOnError(err, "building CSR")

	challSrv, err := challtestsrv.New(challtestsrv.Config{
		HTTPOneAddrs: []string{fmt.Sprintf(":%d", *httpPort)},
		DNSOneAddrs:  []string{fmt.Sprintf(":%d", *dnsPort)},
		Log:          log.New(os.Stdout, "acmerenew/challsrv: ", log.Ldate|log.Ltime),
	})
	acmecmd.FailOnError(err, "starting challenge response server")
	publisher := &challenge.TestServerPublisher{Srv: challSrv}

	memStore := store.NewMemStore()
	installer := store.NewInstaller(memStore)

	rc := resources.NewRenewalContext(cfg, req, newKey, csr)
	requester := transport.NewHTTPRequester(nil)
	driver := engine.NewDriver(rc, requester, publisher, installer, provider)

	go acmecmd.CatchSignals(func() {
		log.Printf("renewal interrupted in state %s", driver.State())
	})

	ctx := context.Background()
	for {
		effect, err := driver.Step(ctx)
		switch effect {
		case engine.EffectDone:
			log.Printf("renewal of %s complete, installed at %q", commonName, *storePath)
			return
		case engine.EffectFailed:
			acmecmd.FailOnError(err, fmt.Sprintf("renewal of %s failed in state %s", commonName, driver.State()))
			return
		case engine.EffectRetrying:
			log.Printf("state %s: transient failure, retrying: %s", driver.State(), err)
		case engine.EffectWaiting:
			time.Sleep(50 * time.Millisecond)
		case engine.EffectAdvanced:
			log.Printf("state -> %s", driver.State())
		}
	}
}

func splitAndTrim(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}
