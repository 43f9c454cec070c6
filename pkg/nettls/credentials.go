// Copyright 2026 Jeremy Hahn
// SPDX-License-Identifier: MIT

package nettls

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/jeremyhahn/go-nettls/pkg/engine"
	"github.com/jeremyhahn/go-nettls/pkg/pemdec"
	"github.com/jeremyhahn/go-nettls/pkg/pkcs8"
)

// CertSource supplies one or more DER-encoded X.509 certificates.
type CertSource interface {
	resolveCerts() ([][]byte, error)
}

// CertFile is a PEM file containing certificate blocks.
type CertFile string

func (f CertFile) resolveCerts() ([][]byte, error) {
	blocks, err := pemdec.DecodeFile(string(f), pemdec.CertificateTags, false)
	if err != nil {
		return nil, err
	}
	ders := make([][]byte, len(blocks))
	for i, b := range blocks {
		ders[i] = b.DER
	}
	return ders, nil
}

// CertDER is a list of DER-encoded certificates supplied directly.
type CertDER [][]byte

func (d CertDER) resolveCerts() ([][]byte, error) {
	return d, nil
}

// CRLSource supplies one or more DER-encoded certificate revocation lists.
type CRLSource interface {
	resolveCRLs() ([][]byte, error)
}

// CRLFile is a PEM file containing X509 CRL blocks.
type CRLFile string

func (f CRLFile) resolveCRLs() ([][]byte, error) {
	blocks, err := pemdec.DecodeFile(string(f), pemdec.CRLTags, false)
	if err != nil {
		return nil, err
	}
	ders := make([][]byte, len(blocks))
	for i, b := range blocks {
		ders[i] = b.DER
	}
	return ders, nil
}

// CRLDER is a list of DER-encoded CRLs supplied directly.
type CRLDER [][]byte

func (d CRLDER) resolveCRLs() ([][]byte, error) {
	return d, nil
}

// KeySource supplies one private key in one of the supported encodings.
// Key kinds without a dedicated DER importer in the engine are re-armored
// into PEM before being handed over; PKCS#8 uses the plain importer, and
// encrypted PKCS#8 is decrypted locally first.
type KeySource interface {
	install(ec engine.CertCredentials, chainPEM, password []byte) error
}

// installPEMKey re-armors a legacy key DER under tag and installs it.
func installPEMKey(ec engine.CertCredentials, chainPEM []byte, tag string, der []byte) error {
	return ec.SetKeyPairPEM(chainPEM, pemdec.Encode(tag, der))
}

// installPKCS8Key decrypts der if needed and installs it through the
// engine's plain PKCS#8 importer.
func installPKCS8Key(ec engine.CertCredentials, chainPEM, der, password []byte, encrypted bool) error {
	if encrypted {
		if password == nil {
			return ErrPasswordRequired
		}
		plain, err := pkcs8.Decrypt(der, password)
		if err != nil {
			return fmt.Errorf("%w: %w", ErrCredential, err)
		}
		der = plain
	}
	return ec.SetKeyPairPKCS8(chainPEM, der)
}

// KeyFile is a PEM file containing a private key. The first recognized
// private-key block is used; its armor tag dictates the decoding.
type KeyFile string

func (f KeyFile) install(ec engine.CertCredentials, chainPEM, password []byte) error {
	blocks, err := pemdec.DecodeFile(string(f), pemdec.PrivateKeyTags, false)
	if err != nil {
		return err
	}
	blk := blocks[0]
	switch blk.Tag {
	case pemdec.TagPrivateKey:
		return installPKCS8Key(ec, chainPEM, blk.DER, password, false)
	case pemdec.TagEncryptedPrivateKey:
		return installPKCS8Key(ec, chainPEM, blk.DER, password, true)
	default:
		return installPEMKey(ec, chainPEM, blk.Tag, blk.DER)
	}
}

// KeyRSA is a PKCS#1 DER-encoded RSA private key.
type KeyRSA []byte

func (k KeyRSA) install(ec engine.CertCredentials, chainPEM, _ []byte) error {
	return installPEMKey(ec, chainPEM, pemdec.TagRSAPrivateKey, k)
}

// KeyDSA is an OpenSSL-format DER-encoded DSA private key.
type KeyDSA []byte

func (k KeyDSA) install(ec engine.CertCredentials, chainPEM, _ []byte) error {
	return installPEMKey(ec, chainPEM, pemdec.TagDSAPrivateKey, k)
}

// KeyEC is a SEC 1 DER-encoded EC private key.
type KeyEC []byte

func (k KeyEC) install(ec engine.CertCredentials, chainPEM, _ []byte) error {
	return installPEMKey(ec, chainPEM, pemdec.TagECPrivateKey, k)
}

// KeyPKCS8 is an unencrypted PKCS#8 DER-encoded private key.
type KeyPKCS8 []byte

func (k KeyPKCS8) install(ec engine.CertCredentials, chainPEM, password []byte) error {
	return installPKCS8Key(ec, chainPEM, k, password, false)
}

// KeyPKCS8Encrypted is a PBES2-encrypted PKCS#8 DER-encoded private key.
// Installing it without a password fails with ErrPasswordRequired.
type KeyPKCS8Encrypted []byte

func (k KeyPKCS8Encrypted) install(ec engine.CertCredentials, chainPEM, password []byte) error {
	return installPKCS8Key(ec, chainPEM, k, password, true)
}

// Identity pairs a certificate chain with its private key. Password is
// only consulted for encrypted key sources.
type Identity struct {
	Chain    CertSource
	Key      KeySource
	Password []byte
}

// CredentialsConfig collects the material for one credential set. The
// zero value is a set with no trust anchors and no identities.
type CredentialsConfig struct {
	// SystemTrust loads the platform trust store as trust anchors. When
	// the engine cannot load it directly, SystemTrustFile must name a
	// PEM bundle standing in for it.
	SystemTrust bool

	// SystemTrustFile is a PEM bundle used for SystemTrust on engines
	// without direct platform trust support.
	SystemTrustFile string

	// Trust lists additional trust anchors.
	Trust []CertSource

	// Revoke lists certificate revocation lists.
	Revoke []CRLSource

	// Identities lists (chain, key) pairs usable as server or client
	// identities.
	Identities []Identity

	// Logger for structured logging. If nil, slog.Default() is used.
	Logger *slog.Logger
}

// Credentials is an immutable credential set shared by any number of
// configurations and endpoints.
type Credentials struct {
	ec engine.CertCredentials
}

// NewCredentials assembles an X.509 credential set from cfg. Each
// identity installs its (chain, key) tuple atomically; a mismatched key
// and chain surfaces as ErrCredential. The resulting set carries the
// engine's default verification rules.
func (p *Provider) NewCredentials(cfg *CredentialsConfig) (*Credentials, error) {
	if cfg == nil {
		cfg = &CredentialsConfig{}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "credentials")

	ec, err := p.eng.NewCertificateCredentials()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCredential, err)
	}

	if cfg.SystemTrust {
		if err := loadSystemTrust(p.eng, ec, cfg.SystemTrustFile, logger); err != nil {
			return nil, err
		}
	}

	for _, src := range cfg.Trust {
		ders, err := src.resolveCerts()
		if err != nil {
			return nil, fmt.Errorf("%w: trust: %w", ErrCredential, err)
		}
		for _, der := range ders {
			if err := ec.AddTrust(der); err != nil {
				return nil, fmt.Errorf("%w: trust: %w", ErrCredential, err)
			}
		}
	}

	for _, src := range cfg.Revoke {
		ders, err := src.resolveCRLs()
		if err != nil {
			return nil, fmt.Errorf("%w: revoke: %w", ErrCredential, err)
		}
		for _, der := range ders {
			if err := ec.AddCRL(der); err != nil {
				return nil, fmt.Errorf("%w: revoke: %w", ErrCredential, err)
			}
		}
	}

	for i, id := range cfg.Identities {
		if err := installIdentity(ec, id); err != nil {
			return nil, fmt.Errorf("identity %d: %w", i, err)
		}
	}

	ec.SetVerifyDefaults()
	logger.Debug("credentials assembled",
		"trust_sources", len(cfg.Trust),
		"crl_sources", len(cfg.Revoke),
		"identities", len(cfg.Identities))
	return &Credentials{ec: ec}, nil
}

// loadSystemTrust prefers the engine's platform store and falls back to a
// configured PEM bundle.
func loadSystemTrust(eng engine.Engine, ec engine.CertCredentials, file string, logger *slog.Logger) error {
	if eng.SupportsSystemTrust() {
		n, err := ec.SetSystemTrust()
		if err != nil {
			return fmt.Errorf("%w: system trust: %w", ErrCredential, err)
		}
		logger.Debug("loaded platform trust store", "certificates", n)
		return nil
	}
	if file == "" {
		return fmt.Errorf("%w: engine has no platform trust store and no SystemTrustFile was configured", ErrCredential)
	}
	ders, err := CertFile(file).resolveCerts()
	if err != nil {
		return fmt.Errorf("%w: system trust: %w", ErrCredential, err)
	}
	for _, der := range ders {
		if err := ec.AddTrust(der); err != nil {
			return fmt.Errorf("%w: system trust: %w", ErrCredential, err)
		}
	}
	logger.Debug("loaded trust bundle", "file", file, "certificates", len(ders))
	return nil
}

// installIdentity resolves the chain, re-armors it, and hands chain and
// key to the engine together.
func installIdentity(ec engine.CertCredentials, id Identity) error {
	if id.Chain == nil || id.Key == nil {
		return fmt.Errorf("%w: identity needs both a chain and a key", ErrCredential)
	}
	ders, err := id.Chain.resolveCerts()
	if err != nil {
		return fmt.Errorf("%w: chain: %w", ErrCredential, err)
	}
	if len(ders) == 0 {
		return fmt.Errorf("%w: empty certificate chain", ErrCredential)
	}
	var chainPEM []byte
	for _, der := range ders {
		chainPEM = append(chainPEM, pemdec.Encode(pemdec.TagCertificate, der)...)
	}
	if err := id.Key.install(ec, chainPEM, id.Password); err != nil {
		if errors.Is(err, ErrPasswordRequired) || errors.Is(err, ErrCredential) {
			return err
		}
		return fmt.Errorf("%w: %w", ErrCredential, err)
	}
	return nil
}
