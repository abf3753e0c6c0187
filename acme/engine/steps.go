package engine

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/wlallemand/acme-core/acme"
	"github.com/wlallemand/acme-core/acme/jws"
	"github.com/wlallemand/acme-core/acme/keys"
	"github.com/wlallemand/acme-core/acme/resources"
	"github.com/wlallemand/acme-core/acme/transport"
)

// signedRequest builds a POST carrying a flattened JWS over payload, using
// kid-form if d.Ctx.KID is already known, jwk-form otherwise (spec §4.1).
// Every signed state in the lifecycle funnels through this helper.
func signedRequest(d *Driver, url string, payload []byte) (transport.Request, error) {
	env, err := jws.Build(payload, d.Ctx.Nonce, url, d.Ctx.Config.AccountKey, d.Ctx.KID)
	if err != nil {
		return transport.Request{}, err
	}
	body, err := env.Serialize()
	if err != nil {
		return transport.Request{}, err
	}
	header := http.Header{}
	header.Set("Content-Type", acme.JOSEContentType)
	return transport.Request{Method: http.MethodPost, URL: url, Body: body, Header: header}, nil
}

func unsignedRequest(method, url string) transport.Request {
	return transport.Request{Method: method, URL: url}
}

// --- RESSOURCES ---

func buildResources(d *Driver) (transport.Request, error) {
	return unsignedRequest(http.MethodGet, d.Ctx.Config.URI), nil
}

func handleResources(ctx context.Context, d *Driver, resp *transport.Response) (Effect, error) {
	if ce := classifyHTTPResponse(resp); ce != nil {
		return EffectFailed, ce
	}
	var doc struct {
		NewNonce   string `json:"newNonce"`
		NewAccount string `json:"newAccount"`
		NewOrder   string `json:"newOrder"`
	}
	if err := json.Unmarshal(resp.Body, &doc); err != nil {
		return EffectFailed, transientErr("parsing directory: %s", err)
	}
	if doc.NewNonce == "" || doc.NewAccount == "" || doc.NewOrder == "" {
		return EffectFailed, transientErr("directory response missing a mandatory field")
	}
	d.Ctx.Directory = resources.Directory{
		NewNonce:   doc.NewNonce,
		NewAccount: doc.NewAccount,
		NewOrder:   doc.NewOrder,
	}
	d.advance(StateNewNonce)
	return EffectAdvanced, nil
}

// --- NEWNONCE ---

func buildNewNonce(d *Driver) (transport.Request, error) {
	return unsignedRequest(http.MethodHead, d.Ctx.Directory.NewNonce), nil
}

func handleNewNonce(ctx context.Context, d *Driver, resp *transport.Response) (Effect, error) {
	if resp.StatusCode != http.StatusOK {
		return EffectFailed, transientErr("newNonce returned HTTP %d", resp.StatusCode)
	}
	if d.Ctx.Nonce == "" {
		return EffectFailed, transientErr("newNonce response carried no Replay-Nonce header")
	}
	d.advance(StateCheckAccount)
	return EffectAdvanced, nil
}

// --- CHKACCOUNT ---

func buildCheckAccount(d *Driver) (transport.Request, error) {
	payload, err := json.Marshal(map[string]interface{}{
		"termsOfServiceAgreed": true,
		"onlyReturnExisting":   true,
	})
	if err != nil {
		return transport.Request{}, err
	}
	return signedRequest(d, d.Ctx.Directory.NewAccount, payload)
}

func handleCheckAccount(ctx context.Context, d *Driver, resp *transport.Response) (Effect, error) {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		loc := resp.Header.Get(acme.LocationHeader)
		if loc == "" {
			return EffectFailed, transientErr("newAccount existing-account check missing Location header")
		}
		d.Ctx.KID = loc
		d.advance(StateNewOrder)
		return EffectAdvanced, nil
	}
	if problemType(resp) == acme.AccountDoesNotExist {
		d.advance(StateNewAccount)
		return EffectAdvanced, nil
	}
	if ce := classifyHTTPResponse(resp); ce != nil {
		return EffectFailed, ce
	}
	return EffectFailed, terminalErr("unexpected CHKACCOUNT response with status %d", resp.StatusCode)
}

// --- NEWACCOUNT ---

func buildNewAccount(d *Driver) (transport.Request, error) {
	body := map[string]interface{}{"termsOfServiceAgreed": true}
	if d.Ctx.Config.Contact != "" {
		body["contact"] = []string{"mailto:" + d.Ctx.Config.Contact}
	}
	payload, err := json.Marshal(body)
	if err != nil {
		return transport.Request{}, err
	}
	return signedRequest(d, d.Ctx.Directory.NewAccount, payload)
}

func handleNewAccount(ctx context.Context, d *Driver, resp *transport.Response) (Effect, error) {
	if ce := classifyHTTPResponse(resp); ce != nil {
		return EffectFailed, ce
	}
	loc := resp.Header.Get(acme.LocationHeader)
	if loc == "" {
		return EffectFailed, transientErr("newAccount response missing Location header")
	}
	d.Ctx.KID = loc
	d.advance(StateNewOrder)
	return EffectAdvanced, nil
}

// --- NEWORDER ---

func buildNewOrder(d *Driver) (transport.Request, error) {
	payload, err := json.Marshal(map[string]interface{}{
		"identifiers": resources.DNSIdentifiers(d.Ctx.Request.Identifiers),
	})
	if err != nil {
		return transport.Request{}, err
	}
	return signedRequest(d, d.Ctx.Directory.NewOrder, payload)
}

func handleNewOrder(ctx context.Context, d *Driver, resp *transport.Response) (Effect, error) {
	if ce := classifyHTTPResponse(resp); ce != nil {
		return EffectFailed, ce
	}
	loc := resp.Header.Get(acme.LocationHeader)
	if loc == "" {
		return EffectFailed, transientErr("newOrder response missing Location header")
	}
	var order resources.OrderResource
	if err := json.Unmarshal(resp.Body, &order); err != nil {
		return EffectFailed, transientErr("parsing order: %s", err)
	}
	if order.Finalize == "" || len(order.Authorizations) == 0 {
		return EffectFailed, transientErr("order response missing a mandatory field")
	}
	d.Ctx.Order = loc
	d.Ctx.Finalize = order.Finalize
	auths := make([]resources.Authorization, len(order.Authorizations))
	for i, url := range order.Authorizations {
		auths[i] = resources.Authorization{AuthURL: url}
	}
	d.Ctx.Auths = auths
	d.Ctx.ResetCursor()
	d.advance(StateAuth)
	return EffectAdvanced, nil
}

// --- AUTH ---

func buildAuth(d *Driver) (transport.Request, error) {
	cur := d.Ctx.CurrentAuth()
	if cur == nil {
		return transport.Request{}, fmt.Errorf("AUTH: cursor has no current authorization")
	}
	return signedRequest(d, cur.AuthURL, nil)
}

func handleAuth(ctx context.Context, d *Driver, resp *transport.Response) (Effect, error) {
	if ce := classifyHTTPResponse(resp); ce != nil {
		return EffectFailed, ce
	}
	var ar resources.AuthorizationResource
	if err := json.Unmarshal(resp.Body, &ar); err != nil {
		return EffectFailed, transientErr("parsing authorization: %s", err)
	}
	var matched *resources.Challenge
	for i := range ar.Challenges {
		if ar.Challenges[i].Type == string(d.Ctx.Config.Challenge) {
			matched = &ar.Challenges[i]
			break
		}
	}
	if matched == nil {
		return EffectFailed, terminalErr("no %s challenge offered for %s", d.Ctx.Config.Challenge, ar.Identifier.Value)
	}

	cur := d.Ctx.CurrentAuth()
	cur.Identifier = ar.Identifier.Value
	cur.Chall = matched.URL
	cur.Token = matched.Token
	cur.Status = ar.Status

	if exhausted := d.Ctx.AdvanceCursor(); exhausted {
		if err := d.publishAll(ctx); err != nil {
			return EffectFailed, terminalErr("publishing challenges: %s", err)
		}
		d.Ctx.ResetCursor()
		d.advance(StateChallenge)
	} else {
		d.phase = PhaseRequest
	}
	return EffectAdvanced, nil
}

// publishAll calls Publisher.Publish for every authorization once all
// tokens are known, at the AUTH→CHALLENGE edge.
func (d *Driver) publishAll(ctx context.Context) error {
	for i := range d.Ctx.Auths {
		a := &d.Ctx.Auths[i]
		if err := d.Publisher.Publish(ctx, d.Ctx.Config.Challenge, a.Identifier, a.Token, d.Ctx.Config.AccountKey); err != nil {
			return fmt.Errorf("identifier %s: %w", a.Identifier, err)
		}
	}
	return nil
}

// --- CHALLENGE ---

func buildChallenge(d *Driver) (transport.Request, error) {
	cur := d.Ctx.CurrentAuth()
	if cur == nil {
		return transport.Request{}, fmt.Errorf("CHALLENGE: cursor has no current authorization")
	}
	return signedRequest(d, cur.Chall, []byte("{}"))
}

func handleChallenge(ctx context.Context, d *Driver, resp *transport.Response) (Effect, error) {
	return checkChallengeResponse(d, resp, StateCheckChallenge)
}

// --- CHKCHALLENGE ---

func buildCheckChallenge(d *Driver) (transport.Request, error) {
	cur := d.Ctx.CurrentAuth()
	if cur == nil {
		return transport.Request{}, fmt.Errorf("CHKCHALLENGE: cursor has no current authorization")
	}
	return unsignedRequest(http.MethodGet, cur.Chall), nil
}

func handleCheckChallenge(ctx context.Context, d *Driver, resp *transport.Response) (Effect, error) {
	return checkChallengeResponse(d, resp, StateFinalize)
}

// checkChallengeResponse implements the CHALLENGE/CHKCHALLENGE shared
// validation spec §4.3 describes ("same validation as CHALLENGE"): fail on
// an error object or non-2xx, otherwise advance the cursor and, once
// exhausted, reset it and move to next.
func checkChallengeResponse(d *Driver, resp *transport.Response, next State) (Effect, error) {
	if ce := classifyHTTPResponse(resp); ce != nil {
		return EffectFailed, ce
	}
	var ch resources.Challenge
	if err := json.Unmarshal(resp.Body, &ch); err != nil {
		return EffectFailed, transientErr("parsing challenge: %s", err)
	}
	if ch.Error != nil {
		return EffectFailed, terminalErr("challenge invalid: %s", ch.Error.Error())
	}

	cur := d.Ctx.CurrentAuth()
	cur.Status = ch.Status

	if exhausted := d.Ctx.AdvanceCursor(); exhausted {
		d.Ctx.ResetCursor()
		d.advance(next)
	} else {
		d.phase = PhaseRequest
	}
	return EffectAdvanced, nil
}

// --- FINALIZE ---

func buildFinalize(d *Driver) (transport.Request, error) {
	payload, err := json.Marshal(map[string]string{
		"csr": base64.RawURLEncoding.EncodeToString(d.Ctx.CSR),
	})
	if err != nil {
		return transport.Request{}, err
	}
	return signedRequest(d, d.Ctx.Finalize, payload)
}

func handleFinalize(ctx context.Context, d *Driver, resp *transport.Response) (Effect, error) {
	if ce := classifyHTTPResponse(resp); ce != nil {
		return EffectFailed, ce
	}
	d.advance(StateCheckOrder)
	return EffectAdvanced, nil
}

// --- CHKORDER ---

func buildCheckOrder(d *Driver) (transport.Request, error) {
	return unsignedRequest(http.MethodGet, d.Ctx.Order), nil
}

func handleCheckOrder(ctx context.Context, d *Driver, resp *transport.Response) (Effect, error) {
	if ce := classifyHTTPResponse(resp); ce != nil {
		return EffectFailed, ce
	}
	var order resources.OrderResource
	if err := json.Unmarshal(resp.Body, &order); err != nil {
		return EffectFailed, transientErr("parsing order: %s", err)
	}
	if strings.EqualFold(order.Status, "invalid") {
		return EffectFailed, terminalErr("order reached invalid status")
	}
	if !order.StatusValid() {
		return EffectFailed, transientErr("order status %q, not yet valid", order.Status)
	}
	if order.Certificate == "" {
		return EffectFailed, transientErr("valid order missing certificate field")
	}
	d.Ctx.Certificate = order.Certificate
	d.advance(StateCertificate)
	return EffectAdvanced, nil
}

// --- CERTIFICATE ---

func buildCertificate(d *Driver) (transport.Request, error) {
	return unsignedRequest(http.MethodGet, d.Ctx.Certificate), nil
}

func handleCertificate(ctx context.Context, d *Driver, resp *transport.Response) (Effect, error) {
	if ce := classifyHTTPResponse(resp); ce != nil {
		return EffectFailed, ce
	}
	d.Ctx.CertChainPEM = resp.Body

	keyPEM, err := keys.SignerToPEM(d.Ctx.NewKey)
	if err != nil {
		return EffectFailed, terminalErr("encoding new subject key: %s", err)
	}
	if err := d.Installer.Install(ctx, d.Ctx.Request, keyPEM, d.Ctx.CertChainPEM); err != nil {
		return EffectFailed, transientErr("installing certificate: %s", err)
	}
	d.state = StateDone
	d.phase = PhaseRequest
	return EffectDone, nil
}
