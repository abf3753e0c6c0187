package engine

import (
	"context"
	"fmt"

	"github.com/wlallemand/acme-core/acme"
	"github.com/wlallemand/acme-core/acme/challenge"
	"github.com/wlallemand/acme-core/acme/keys"
	"github.com/wlallemand/acme-core/acme/resources"
	"github.com/wlallemand/acme-core/acme/transport"
)

// Installer is the final collaborator a Driver calls once a certificate
// chain has been downloaded: it receives the new subject key (already
// PEM-encoded by the Driver) and the chain, and atomically swaps them into
// the store (spec §4.4).
type Installer interface {
	Install(ctx context.Context, req resources.CertRequest, keyPEM, certChainPEM []byte) error
}

// Driver is the Protocol State Machine of spec §4.3: a tick-based runner
// that advances one RenewalContext through the 12-state lifecycle, one
// HTTP_REQ or HTTP_RES sub-phase per Step call.
type Driver struct {
	Ctx       *resources.RenewalContext
	Requester transport.Requester
	Publisher challenge.Publisher
	Installer Installer
	Provider  keys.Provider

	state State
	phase Phase

	pending transport.Handle
}

// NewDriver builds a Driver ready to start at StateResources/PhaseRequest.
func NewDriver(rc *resources.RenewalContext, requester transport.Requester, publisher challenge.Publisher, installer Installer, provider keys.Provider) *Driver {
	return &Driver{
		Ctx:       rc,
		Requester: requester,
		Publisher: publisher,
		Installer: installer,
		Provider:  provider,
		state:     StateResources,
		phase:     PhaseRequest,
	}
}

// State reports the current State.
func (d *Driver) State() State { return d.state }

// Phase reports the current Phase.
func (d *Driver) Phase() Phase { return d.phase }

// stateOps binds a State to its request builder and response handler, the
// shape spec §9 calls a per-state step function.
type stateOps struct {
	build  func(d *Driver) (transport.Request, error)
	handle func(ctx context.Context, d *Driver, resp *transport.Response) (Effect, error)
}

var stateTable = map[State]stateOps{
	StateResources:      {buildResources, handleResources},
	StateNewNonce:       {buildNewNonce, handleNewNonce},
	StateCheckAccount:   {buildCheckAccount, handleCheckAccount},
	StateNewAccount:     {buildNewAccount, handleNewAccount},
	StateNewOrder:       {buildNewOrder, handleNewOrder},
	StateAuth:           {buildAuth, handleAuth},
	StateChallenge:      {buildChallenge, handleChallenge},
	StateCheckChallenge: {buildCheckChallenge, handleCheckChallenge},
	StateFinalize:       {buildFinalize, handleFinalize},
	StateCheckOrder:     {buildCheckOrder, handleCheckOrder},
	StateCertificate:    {buildCertificate, handleCertificate},
}

// Step advances the state machine by exactly one sub-phase: it either
// dispatches the current state's HTTP request (returning EffectWaiting) or,
// once the in-flight response is ready, parses it and transitions state
// (returning EffectAdvanced/EffectRetrying/EffectDone/EffectFailed).
//
// Step must be called again after EffectWaiting; it must not be called
// again after EffectDone or EffectFailed (spec §4.3, §9).
func (d *Driver) Step(ctx context.Context) (Effect, error) {
	if d.state == StateDone {
		return EffectDone, nil
	}

	ops, ok := stateTable[d.state]
	if !ok {
		return EffectFailed, fmt.Errorf("engine: no step behavior for state %s", d.state)
	}

	switch d.phase {
	case PhaseRequest:
		req, err := ops.build(d)
		if err != nil {
			return d.absorb(terminalErr("building request for %s: %s", d.state, err))
		}
		handle, err := d.Requester.Start(ctx, req)
		if err != nil {
			return d.absorb(transientErr("dispatching %s request: %s", d.state, err))
		}
		d.pending = handle
		d.phase = PhaseResponse
		return EffectWaiting, nil

	case PhaseResponse:
		select {
		case <-d.pending.Done():
		default:
			return EffectWaiting, nil
		}
		resp, err := d.pending.Result()
		d.pending = nil
		if err != nil {
			return d.absorb(transientErr("awaiting %s response: %s", d.state, err))
		}
		d.Ctx.SetNonce(resp.Header.Get(acme.ReplayNonceHeader))
		effect, err := ops.handle(ctx, d, resp)
		if err != nil {
			if ce, ok := err.(*classifiedError); ok {
				return d.absorb(ce)
			}
			return d.absorb(terminalErr("%s", err))
		}
		return effect, nil

	default:
		return EffectFailed, fmt.Errorf("engine: unknown phase %v", d.phase)
	}
}

// absorb applies spec §4.3's retry rule to a classified error: a transient
// failure decrements the budget and re-enters the same state at HTTP_REQ;
// a terminal failure, or a transient failure with no budget left, ends the
// renewal.
func (d *Driver) absorb(ce *classifiedError) (Effect, error) {
	if !ce.transient {
		return EffectFailed, ce
	}
	d.Ctx.Retries--
	if d.Ctx.Retries < 0 {
		return EffectFailed, fmt.Errorf("retry budget exhausted in state %s: %w", d.state, ce)
	}
	d.phase = PhaseRequest
	d.pending = nil
	return EffectRetrying, ce
}

// advance moves the Driver to next, resetting the sub-phase to HTTP_REQ, as
// every state transition does (spec §4.3).
func (d *Driver) advance(next State) {
	d.state = next
	d.phase = PhaseRequest
}
