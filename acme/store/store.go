// Package store implements Install & Hand-off (spec §4.4): an
// advisory-locked, read-copy-update swap of a certificate Entry, and
// Instance objects that rebind to the new Entry without interrupting
// in-flight TLS handshakes. Grounded on the RWMutex-guarded pointer swap
// in kelseyhightower-kube-cert-manager's dynamic-certs/certificate-manager.go,
// generalized from a single file-backed certificate into a path-keyed,
// multi-entry store.
package store

import (
	"context"
	"crypto"
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"sync"

	"github.com/wlallemand/acme-core/acme/keys"
	"github.com/wlallemand/acme-core/acme/resources"
)

// Entry is one installed certificate: its private key and the PEM-encoded
// chain returned by the CERTIFICATE state.
type Entry struct {
	Key   crypto.Signer
	Chain []byte
}

// Store is the collaborator contract the engine's Installer implementation
// depends on (SPEC_FULL.md §4.4).
type Store interface {
	TryLock() (unlock func(), ok bool)
	Lookup(path string) (*Entry, bool)
	Replace(path string, next *Entry) error
}

// MemStore is the default Store: an in-process, mutex-guarded map from
// store path to Entry. A host with a durable store (filesystem, KV) wraps
// the same TryLock/Lookup/Replace contract around its own backing.
type MemStore struct {
	mu      sync.Mutex
	entries map[string]*Entry
}

// NewMemStore returns an empty MemStore.
func NewMemStore() *MemStore {
	return &MemStore{entries: make(map[string]*Entry)}
}

var _ Store = (*MemStore)(nil)

// TryLock attempts the non-blocking advisory lock spec invariant 5 requires
// before any install. It never blocks; a caller that cannot acquire the
// lock treats that as a transient failure and retries later.
func (s *MemStore) TryLock() (unlock func(), ok bool) {
	if !s.mu.TryLock() {
		return nil, false
	}
	return s.mu.Unlock, true
}

// Lookup returns the currently installed Entry for path, if any.
func (s *MemStore) Lookup(path string) (*Entry, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[path]
	return e, ok
}

// Replace atomically swaps path's Entry for next. Callers must hold the
// lock returned by TryLock while calling Replace, per the install algorithm
// in Install.
func (s *MemStore) Replace(path string, next *Entry) error {
	s.entries[path] = next
	return nil
}

// Instance is a live binding of a certificate to a consumer — e.g.
// a TLS listener's GetCertificate callback — modeled after
// CertificateManager.GetCertificate in the teacher pack's
// kube-cert-manager example. Rebind swaps the pointer it serves without
// interrupting a handshake that already captured the previous
// *tls.Certificate.
type Instance struct {
	mu  sync.RWMutex
	crt *tls.Certificate
}

// GetCertificate implements the tls.Config.GetCertificate signature.
func (i *Instance) GetCertificate(*tls.ClientHelloInfo) (*tls.Certificate, error) {
	i.mu.RLock()
	defer i.mu.RUnlock()
	if i.crt == nil {
		return nil, fmt.Errorf("store: instance has no certificate bound")
	}
	return i.crt, nil
}

// Rebind atomically swaps in a freshly built *tls.Certificate.
func (i *Instance) Rebind(crt *tls.Certificate) {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.crt = crt
}

// Installer performs Install & Hand-off (spec §4.4) against a Store and the
// set of live Instances bound to a given store path. It does not require an
// existing Entry for the path: when none exists, Install creates one.
type Installer struct {
	Store Store

	mu        sync.Mutex
	instances map[string][]*Instance
}

// NewInstaller returns an Installer with no bound instances.
func NewInstaller(s Store) *Installer {
	return &Installer{Store: s, instances: make(map[string][]*Instance)}
}

// Bind registers inst as a live consumer of path's certificate. Every
// successful Install for path calls inst.Rebind with the new
// *tls.Certificate.
func (in *Installer) Bind(path string, inst *Instance) {
	in.mu.Lock()
	defer in.mu.Unlock()
	in.instances[path] = append(in.instances[path], inst)
}

// Install implements engine.Installer: it builds a *tls.Certificate from
// the new key and chain, acquires the store's advisory lock, replaces the
// Entry, and rebinds every Instance bound to path. A failed lock
// acquisition aborts without touching the Store or any Instance (spec
// invariant 5).
func (in *Installer) Install(ctx context.Context, req resources.CertRequest, keyPEM, certChainPEM []byte) error {
	der, err := keys.ParseCertificateChain(certChainPEM)
	if err != nil {
		return fmt.Errorf("store: parsing certificate chain: %w", err)
	}
	leaf, err := x509.ParseCertificate(der[0])
	if err != nil {
		return fmt.Errorf("store: parsing leaf certificate: %w", err)
	}

	tlsCert, err := tls.X509KeyPair(certChainPEM, keyPEM)
	if err != nil {
		return fmt.Errorf("store: building tls certificate: %w", err)
	}
	tlsCert.Leaf = leaf

	unlock, ok := in.Store.TryLock()
	if !ok {
		return fmt.Errorf("store: could not acquire install lock for %q", req.StorePath)
	}
	defer unlock()

	signer, ok := tlsCert.PrivateKey.(crypto.Signer)
	if !ok {
		return fmt.Errorf("store: installed key is not a crypto.Signer")
	}
	if err := in.Store.Replace(req.StorePath, &Entry{Key: signer, Chain: certChainPEM}); err != nil {
		return fmt.Errorf("store: replacing entry for %q: %w", req.StorePath, err)
	}

	in.mu.Lock()
	bound := in.instances[req.StorePath]
	in.mu.Unlock()
	for _, inst := range bound {
		inst.Rebind(&tlsCert)
	}
	return nil
}
