package keys

import (
	"crypto"
	"crypto/ecdsa"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"fmt"
	"os"
)

// LoadAccountKey reads and parses a PEM-encoded private key from path, per
// spec §6's account key file format. A missing or unreadable file, or one
// containing no readable private key, is a fatal configuration error (spec
// §7 kind 1); this package never generates an account key as a fallback
// (spec §9 design note).
func LoadAccountKey(path string) (crypto.Signer, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading account key %q: %w", path, err)
	}
	block, _ := pem.Decode(raw)
	if block == nil {
		return nil, fmt.Errorf("account key %q: no PEM block found", path)
	}

	if key, err := x509.ParseECPrivateKey(block.Bytes); err == nil {
		return key, nil
	}
	if key, err := x509.ParsePKCS1PrivateKey(block.Bytes); err == nil {
		return key, nil
	}
	if key, err := x509.ParsePKCS8PrivateKey(block.Bytes); err == nil {
		signer, ok := key.(crypto.Signer)
		if !ok {
			return nil, fmt.Errorf("account key %q: PKCS8 key is not a signer", path)
		}
		return signer, nil
	}

	return nil, fmt.Errorf("account key %q: unreadable private key (tried EC, PKCS1, PKCS8)", path)
}

// SignerToPEM encodes a signer's private key as PEM, used to persist
// a freshly generated subject key alongside its certificate.
func SignerToPEM(signer crypto.Signer) ([]byte, error) {
	var keyBytes []byte
	var keyHeader string
	var err error
	switch k := signer.(type) {
	case *ecdsa.PrivateKey:
		keyBytes, err = x509.MarshalECPrivateKey(k)
		keyHeader = "EC PRIVATE KEY"
	case *rsa.PrivateKey:
		keyBytes = x509.MarshalPKCS1PrivateKey(k)
		keyHeader = "RSA PRIVATE KEY"
	default:
		err = fmt.Errorf("unknown key type: %T", k)
	}
	if err != nil {
		return nil, err
	}
	return pem.EncodeToMemory(&pem.Block{Type: keyHeader, Bytes: keyBytes}), nil
}

// ParseCertificateChain splits a PEM bundle (as returned by the CERTIFICATE
// state, spec §4.3) into its individual DER certificates, in order.
func ParseCertificateChain(pemChain []byte) ([][]byte, error) {
	var der [][]byte
	rest := pemChain
	for {
		var block *pem.Block
		block, rest = pem.Decode(rest)
		if block == nil {
			break
		}
		if block.Type != "CERTIFICATE" {
			continue
		}
		der = append(der, block.Bytes)
	}
	if len(der) == 0 {
		return nil, fmt.Errorf("no PEM certificates found in chain")
	}
	return der, nil
}
