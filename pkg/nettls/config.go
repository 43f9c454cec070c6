// Copyright 2026 Jeremy Hahn
// SPDX-License-Identifier: MIT

package nettls

import (
	"fmt"
	"log/slog"

	"github.com/jeremyhahn/go-nettls/pkg/engine"
	"github.com/jeremyhahn/go-nettls/pkg/pemdec"
)

// DefaultPriority is the priority string compiled when none is given.
const DefaultPriority = "NORMAL"

// PeerAuth is the peer-authentication policy of a configuration.
type PeerAuth int

const (
	// PeerAuthNone performs no certificate verification.
	PeerAuthNone PeerAuth = iota

	// PeerAuthOptional verifies a certificate when the peer presents
	// one but tolerates its absence.
	PeerAuthOptional

	// PeerAuthRequired refuses peers that do not present a valid
	// certificate.
	PeerAuthRequired
)

// String returns "none", "optional" or "required".
func (a PeerAuth) String() string {
	switch a {
	case PeerAuthOptional:
		return "optional"
	case PeerAuthRequired:
		return "required"
	}
	return "none"
}

// VerifyFunc is a user verification hook invoked by Endpoint.Verify after
// chain validation and name checking succeed. Returning false fails the
// verification with ErrUserVerificationFailed.
type VerifyFunc func(ep *Endpoint) bool

// DHSource supplies Diffie-Hellman parameters for a configuration.
type DHSource interface {
	materialize(eng engine.Engine) (engine.DHParams, error)
}

// DHFile is a PEM file containing a DH PARAMETERS block.
type DHFile string

func (f DHFile) materialize(eng engine.Engine) (engine.DHParams, error) {
	blocks, err := pemdec.DecodeFile(string(f), []string{pemdec.TagDHParameters}, false)
	if err != nil {
		return nil, err
	}
	return eng.ImportDHParams(blocks[0].DER)
}

// DHDER is a PKCS#3 DER-encoded parameter blob.
type DHDER []byte

func (d DHDER) materialize(eng engine.Engine) (engine.DHParams, error) {
	return eng.ImportDHParams(d)
}

// DHGenerate generates fresh parameters of the given bit length.
type DHGenerate uint

func (g DHGenerate) materialize(eng engine.Engine) (engine.DHParams, error) {
	return eng.GenerateDHParams(uint(g))
}

// ConfigSpec collects the inputs for NewConfig.
type ConfigSpec struct {
	// Priority is the engine's algorithm preference string. Empty means
	// DefaultPriority.
	Priority string

	// DH optionally supplies Diffie-Hellman parameters.
	DH DHSource

	// PeerAuth is the peer-authentication policy.
	PeerAuth PeerAuth

	// PeerNameUnchecked disables hostname matching during Verify even
	// when a peer name is set.
	PeerNameUnchecked bool

	// Verify is the optional user verification hook.
	Verify VerifyFunc

	// Credentials is the credential set endpoints under this
	// configuration present and verify against. Required.
	Credentials *Credentials

	// Logger for structured logging. If nil, slog.Default() is used.
	Logger *slog.Logger
}

// Config is an immutable tuple of compiled priority, DH parameters,
// peer-authentication policy, credentials and verification hooks. A
// configuration may be shared by any number of endpoints and replaced on
// a live endpoint only through Switch and AcceptSwitch.
type Config struct {
	priority          engine.Priority
	dh                engine.DHParams
	peerAuth          PeerAuth
	peerNameUnchecked bool
	verify            VerifyFunc
	creds             *Credentials
	logger            *slog.Logger
}

// NewConfig compiles spec into a reusable configuration. Engine rejection
// of the priority string or DH material surfaces as ErrConfig.
func (p *Provider) NewConfig(spec *ConfigSpec) (*Config, error) {
	if spec == nil || spec.Credentials == nil {
		return nil, fmt.Errorf("%w: credentials are required", ErrConfig)
	}
	logger := spec.Logger
	if logger == nil {
		logger = slog.Default()
	}

	prioritySpec := spec.Priority
	if prioritySpec == "" {
		prioritySpec = DefaultPriority
	}
	priority, err := p.eng.NewPriority(prioritySpec)
	if err != nil {
		return nil, fmt.Errorf("%w: priority %q: %w", ErrConfig, prioritySpec, err)
	}

	var dh engine.DHParams
	if spec.DH != nil {
		dh, err = spec.DH.materialize(p.eng)
		if err != nil {
			return nil, fmt.Errorf("%w: dh params: %w", ErrConfig, err)
		}
	}

	return &Config{
		priority:          priority,
		dh:                dh,
		peerAuth:          spec.PeerAuth,
		peerNameUnchecked: spec.PeerNameUnchecked,
		verify:            spec.Verify,
		creds:             spec.Credentials,
		logger:            logger.With("component", "endpoint"),
	}, nil
}

// PeerAuth returns the peer-authentication policy.
func (c *Config) PeerAuth() PeerAuth {
	return c.peerAuth
}

// PeerNameUnchecked reports whether hostname matching is disabled.
func (c *Config) PeerNameUnchecked() bool {
	return c.peerNameUnchecked
}

// Priority returns the compiled priority handle.
func (c *Config) Priority() engine.Priority {
	return c.priority
}

// Credentials returns the credential set.
func (c *Config) Credentials() *Credentials {
	return c.creds
}

// apply installs the configuration on an engine session.
func (c *Config) apply(sess engine.Session) error {
	if err := sess.SetPriority(c.priority); err != nil {
		return err
	}
	if err := sess.SetCredentials(c.creds.ec); err != nil {
		return err
	}
	if c.dh != nil {
		if err := sess.SetDHParams(c.dh); err != nil {
			return err
		}
	}
	return nil
}
