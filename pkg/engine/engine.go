// Copyright 2026 Jeremy Hahn
// SPDX-License-Identifier: MIT

// Package engine defines the interface to the native TLS engine that
// go-nettls wraps. The engine owns the cryptography: handshaking, record
// encryption and decryption, alerts, and session serialization. Everything
// above it (state sequencing, credential assembly, peer verification policy,
// session-cache bookkeeping) lives in pkg/nettls.
//
// The interface is modeled on GnuTLS: error codes mirror GnuTLS numbering,
// sessions exchange bytes exclusively through caller-supplied pull/push
// callbacks, and a "last direction" hint disambiguates would-block results.
// A cgo binding to a real library satisfies Engine in production;
// enginetest provides a deterministic in-memory implementation for tests.
package engine

// Role selects which side of the TLS handshake a session plays.
type Role int

const (
	// RoleClient initiates the handshake.
	RoleClient Role = iota

	// RoleServer accepts the handshake.
	RoleServer
)

// String returns "client" or "server".
func (r Role) String() string {
	if r == RoleServer {
		return "server"
	}
	return "client"
}

// Direction is the transport direction an engine operation was blocked on.
type Direction int

const (
	// DirRead means the engine needs the transport to become readable.
	DirRead Direction = iota

	// DirWrite means the engine needs the transport to become writable.
	DirWrite
)

// CloseHow selects which directions a close-notify shuts down.
type CloseHow int

const (
	// CloseWrite sends close-notify but leaves the read side open.
	CloseWrite CloseHow = iota

	// CloseReadWrite sends close-notify and terminates both directions.
	CloseReadWrite
)

// CertificateRequest is the server-side client-certificate policy.
type CertificateRequest int

const (
	// CertIgnore does not ask the client for a certificate.
	CertIgnore CertificateRequest = iota

	// CertRequest asks for a certificate but tolerates its absence.
	CertRequest

	// CertRequire asks for a certificate and aborts without one.
	CertRequire
)

// PullFunc reads up to len(p) bytes from the transport into p. It returns
// 0, nil at transport EOF and ErrTransportAgain (possibly wrapped) when the
// transport is not readable. Partial reads are normal.
type PullFunc func(p []byte) (int, error)

// PushFunc writes p to the transport, returning the number of bytes
// accepted. It returns ErrTransportAgain (possibly wrapped) when the
// transport is not writable.
type PushFunc func(p []byte) (int, error)

// CacheCallbacks are the session-cache hooks installed on a session.
// Store persists serialized session data under key, Remove forgets it,
// and Retrieve returns previously stored data or an error when the key
// is unknown.
type CacheCallbacks struct {
	Store    func(key, data []byte) error
	Remove   func(key []byte) error
	Retrieve func(key []byte) ([]byte, error)
}

// Priority is an opaque handle to a compiled priority (algorithm
// preference) string.
type Priority interface {
	// Spec returns the priority string the handle was compiled from.
	Spec() string
}

// DHParams is an opaque handle to a set of Diffie-Hellman parameters.
type DHParams interface {
	// Bits returns the prime size in bits.
	Bits() uint
}

// CertCredentials is a certificate credential set under construction or in
// use. A single set may serve any number of sessions concurrently once
// built; the mutating methods are only called during assembly.
type CertCredentials interface {
	// SetSystemTrust loads the platform trust store and returns the number
	// of certificates added.
	SetSystemTrust() (int, error)

	// AddTrust adds one DER-encoded certificate as a trust anchor.
	AddTrust(der []byte) error

	// AddCRL adds one DER-encoded certificate revocation list.
	AddCRL(der []byte) error

	// SetKeyPairPEM installs a PEM-encoded certificate chain and matching
	// PEM-encoded private key as an identity.
	SetKeyPairPEM(chainPEM, keyPEM []byte) error

	// SetKeyPairPKCS8 installs a PEM-encoded certificate chain with an
	// unencrypted PKCS#8 DER private key as an identity.
	SetKeyPairPKCS8(chainPEM, keyDER []byte) error

	// SetVerifyDefaults applies the engine's standard chain-verification
	// rules to this credential set.
	SetVerifyDefaults()
}

// Session is one TLS session inside the engine. Sessions are not safe for
// concurrent use; the caller serializes all access.
type Session interface {
	// SetTransport attaches the byte transport. The engine performs all
	// record I/O through these callbacks.
	SetTransport(pull PullFunc, push PushFunc)

	// SetPriority applies a compiled priority handle.
	SetPriority(p Priority) error

	// SetCredentials attaches a credential set.
	SetCredentials(c CertCredentials) error

	// SetDHParams supplies Diffie-Hellman parameters for key exchanges
	// that need them.
	SetDHParams(dh DHParams) error

	// SetServerName sets the SNI name a client sends.
	SetServerName(name string) error

	// SetCertificateRequest sets the server's client-certificate policy.
	SetCertificateRequest(req CertificateRequest)

	// Handshake drives the handshake until completion or suspension.
	// A client also uses Handshake to answer a rehandshake request and,
	// as initiator, to complete an accepted renegotiation.
	Handshake() error

	// Rehandshake sends a renegotiation request to the peer without
	// blocking on the resulting handshake.
	Rehandshake() error

	// Read decrypts application data into p. It returns 0, nil when the
	// peer sent close-notify.
	Read(p []byte) (int, error)

	// Write encrypts and sends up to len(p) bytes of application data,
	// returning the number of bytes the engine accepted.
	Write(p []byte) (int, error)

	// Bye sends close-notify for the given directions.
	Bye(how CloseHow) error

	// SendAlert transmits a TLS alert record.
	SendAlert(level AlertLevel, alert Alert) error

	// LastAlert returns the most recently received alert.
	LastAlert() Alert

	// Direction reports which transport direction the last Again-coded
	// failure was blocked on. Only meaningful immediately after such a
	// failure.
	Direction() Direction

	// Pending returns the number of decrypted bytes buffered inside the
	// engine, readable without touching the transport.
	Pending() uint

	// SessionID returns the session identifier negotiated on handshake.
	SessionID() ([]byte, error)

	// SessionData serializes the session's resumption state.
	SessionData() ([]byte, error)

	// SetSessionData loads resumption state serialized by SessionData,
	// before the handshake, so the client attempts an abbreviated
	// handshake.
	SetSessionData(data []byte) error

	// SetCacheCallbacks installs server-side session-cache hooks.
	SetCacheCallbacks(cb CacheCallbacks)

	// ServerName returns the index-th SNI entry the client supplied. It
	// fails with CodeRequestedDataNotAvailable past the last entry.
	ServerName(index int) (string, error)

	// OurCertificate returns the DER certificate this side presented
	// during the handshake, or nil if none was sent.
	OurCertificate() ([]byte, error)

	// PeerCertificates returns the peer's presented chain in DER,
	// leaf first. The slice is empty on anonymous suites.
	PeerCertificates() ([][]byte, error)

	// VerifyPeers runs the engine's chain validation against the session
	// credentials and returns the verification status flags; zero means
	// the chain verified cleanly.
	VerifyPeers() (uint, error)

	// Cipher, KX, MAC, Compression, CertificateType and Protocol report
	// the negotiated parameters.
	Cipher() string
	KX() string
	MAC() string
	Compression() string
	CertificateType() string
	Protocol() string

	// Close releases engine-side resources without touching the
	// transport.
	Close() error
}

// Engine is a native TLS library. Implementations must be safe for
// concurrent session creation once initialized.
type Engine interface {
	// Name identifies the implementation, e.g. "gnutls".
	Name() string

	// NewSession allocates a session for the given role.
	NewSession(role Role) (Session, error)

	// NewCertificateCredentials allocates an empty credential set.
	NewCertificateCredentials() (CertCredentials, error)

	// NewPriority compiles a priority string.
	NewPriority(spec string) (Priority, error)

	// GenerateDHParams generates fresh Diffie-Hellman parameters of the
	// given bit length.
	GenerateDHParams(bits uint) (DHParams, error)

	// ImportDHParams imports PKCS#3 DER-encoded Diffie-Hellman
	// parameters.
	ImportDHParams(der []byte) (DHParams, error)

	// SupportsSystemTrust reports whether SetSystemTrust can load a
	// platform trust store on this build.
	SupportsSystemTrust() bool

	// CheckHostname reports whether the DER certificate matches the DNS
	// hostname under the engine's matching rules.
	CheckHostname(certDER []byte, host string) bool

	// Strerror returns the engine's message for one of its error codes.
	Strerror(code Code) string
}
