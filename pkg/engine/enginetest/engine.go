// Copyright 2026 Jeremy Hahn
// SPDX-License-Identifier: MIT

// Package enginetest provides a deterministic in-memory implementation of
// the engine interfaces for tests, plus a non-blocking in-memory pipe to
// connect two endpoints. Sessions speak a framed toy record protocol over
// the real pull/push callbacks, so handshakes, suspensions, renegotiation,
// close-notify, resumption and SNI are exercised end to end without any
// cryptography.
package enginetest

import (
	"crypto"
	"crypto/x509"
	"strings"

	"github.com/jeremyhahn/go-nettls/pkg/engine"
)

// Name is the engine name reported by Engine.Name.
const Name = "loopback"

// Engine is the in-memory engine. The zero value is ready to use; an
// optional system trust bundle can be attached for tests that exercise
// platform-trust loading.
type Engine struct {
	systemTrust [][]byte
}

// NewEngine returns a fresh loopback engine.
func NewEngine() *Engine {
	return &Engine{}
}

// SetSystemTrustBundle installs DER certificates that stand in for the
// platform trust store.
func (e *Engine) SetSystemTrustBundle(ders [][]byte) {
	e.systemTrust = ders
}

// Name returns "loopback".
func (e *Engine) Name() string {
	return Name
}

// NewSession allocates a session for the given role.
func (e *Engine) NewSession(role engine.Role) (engine.Session, error) {
	s := &session{eng: e, role: role}
	if role == engine.RoleClient {
		s.hsPhase = hsSendHello
	} else {
		s.hsPhase = hsAwaitClient
	}
	return s, nil
}

// NewCertificateCredentials allocates an empty credential set.
func (e *Engine) NewCertificateCredentials() (engine.CertCredentials, error) {
	return &certCredentials{eng: e}, nil
}

// NewPriority compiles a priority string. Specs containing "INVALID" are
// rejected, for tests of configuration failure paths.
func (e *Engine) NewPriority(spec string) (engine.Priority, error) {
	if strings.Contains(spec, "INVALID") {
		return nil, engine.NewError(engine.CodeInvalidRequest)
	}
	return &priority{spec: spec}, nil
}

// GenerateDHParams pretends to generate parameters of the given length.
func (e *Engine) GenerateDHParams(bits uint) (engine.DHParams, error) {
	if bits == 0 {
		return nil, engine.NewError(engine.CodeInvalidRequest)
	}
	return &dhParams{bits: bits}, nil
}

// ImportDHParams accepts any non-empty blob as PKCS#3 parameters.
func (e *Engine) ImportDHParams(der []byte) (engine.DHParams, error) {
	if len(der) == 0 {
		return nil, engine.NewError(engine.CodeInvalidRequest)
	}
	return &dhParams{bits: 2048, der: der}, nil
}

// SupportsSystemTrust reports whether a trust bundle was attached.
func (e *Engine) SupportsSystemTrust() bool {
	return len(e.systemTrust) > 0
}

// CheckHostname matches a DER certificate against a DNS name using the
// standard library's hostname rules.
func (e *Engine) CheckHostname(certDER []byte, host string) bool {
	cert, err := x509.ParseCertificate(certDER)
	if err != nil {
		return false
	}
	return cert.VerifyHostname(host) == nil
}

// Strerror returns the stock message for code.
func (e *Engine) Strerror(code engine.Code) string {
	return code.String()
}

// priority is a compiled priority string.
type priority struct {
	spec string
}

func (p *priority) Spec() string { return p.spec }

// dhParams is an opaque parameter handle.
type dhParams struct {
	bits uint
	der  []byte
}

func (d *dhParams) Bits() uint { return d.bits }

// identity is one installed (chain, key) pair.
type identity struct {
	chain [][]byte
}

// certCredentials is the credential set: trust anchors, CRLs and
// identities, with enough validation to catch mismatched keys.
type certCredentials struct {
	eng        *Engine
	trust      [][]byte
	crls       [][]byte
	identities []identity
}

// SetSystemTrust copies the engine's attached bundle into the trust list.
func (c *certCredentials) SetSystemTrust() (int, error) {
	if len(c.eng.systemTrust) == 0 {
		return 0, engine.NewError(engine.CodeInvalidRequest)
	}
	c.trust = append(c.trust, c.eng.systemTrust...)
	return len(c.eng.systemTrust), nil
}

// AddTrust validates and records one trust anchor.
func (c *certCredentials) AddTrust(der []byte) error {
	if _, err := x509.ParseCertificate(der); err != nil {
		return engine.NewError(engine.CodeCertificateError)
	}
	c.trust = append(c.trust, der)
	return nil
}

// AddCRL validates and records one CRL.
func (c *certCredentials) AddCRL(der []byte) error {
	if _, err := x509.ParseRevocationList(der); err != nil {
		return engine.NewError(engine.CodeCertificateError)
	}
	c.crls = append(c.crls, der)
	return nil
}

// SetKeyPairPEM installs a PEM chain and PEM key after checking that the
// key belongs to the leaf certificate.
func (c *certCredentials) SetKeyPairPEM(chainPEM, keyPEM []byte) error {
	chain, err := decodePEMChain(chainPEM)
	if err != nil {
		return err
	}
	key, err := decodePEMKey(keyPEM)
	if err != nil {
		return err
	}
	return c.install(chain, key)
}

// SetKeyPairPKCS8 installs a PEM chain with an unencrypted PKCS#8 key.
func (c *certCredentials) SetKeyPairPKCS8(chainPEM, keyDER []byte) error {
	chain, err := decodePEMChain(chainPEM)
	if err != nil {
		return err
	}
	key, err := x509.ParsePKCS8PrivateKey(keyDER)
	if err != nil {
		return engine.NewError(engine.CodeCertificateError)
	}
	return c.install(chain, key)
}

// SetVerifyDefaults is a no-op: the loopback engine has only its default
// verification rules.
func (c *certCredentials) SetVerifyDefaults() {}

// install validates key/leaf agreement and records the identity.
func (c *certCredentials) install(chain [][]byte, key any) error {
	leaf, err := x509.ParseCertificate(chain[0])
	if err != nil {
		return engine.NewError(engine.CodeCertificateError)
	}
	if key != nil {
		signer, ok := key.(crypto.Signer)
		if ok {
			type equaler interface{ Equal(crypto.PublicKey) bool }
			pub, ok := leaf.PublicKey.(equaler)
			if !ok || !pub.Equal(signer.Public()) {
				return engine.NewError(engine.CodeCertificateKeyMismatch)
			}
		}
	}
	c.identities = append(c.identities, identity{chain: chain})
	return nil
}
