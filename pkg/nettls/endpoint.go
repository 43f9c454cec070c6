// Copyright 2026 Jeremy Hahn
// SPDX-License-Identifier: MIT

package nettls

import (
	"errors"
	"fmt"
	"log/slog"
	"syscall"

	"github.com/jeremyhahn/go-nettls/pkg/engine"
)

// RecvFunc reads from the transport into p, returning the number of bytes
// read. It returns 0, nil at transport EOF. When the transport is not
// readable it returns an error matching engine.ErrTransportAgain,
// syscall.EAGAIN or syscall.EWOULDBLOCK.
type RecvFunc func(p []byte) (int, error)

// SendFunc writes p to the transport, returning the number of bytes
// accepted. Would-block is signaled like RecvFunc.
type SendFunc func(p []byte) (int, error)

// RawCredential is the raw identity one party presented during the
// handshake: a DER-encoded X.509 certificate, or nothing (anonymous).
type RawCredential struct {
	X509 []byte
}

// IsAnonymous reports whether no certificate was presented.
func (c RawCredential) IsAnonymous() bool {
	return len(c.X509) == 0
}

// Endpoint is a TLS session bound to one peer over a byte transport. An
// endpoint is driven by a single goroutine; operations that exchange
// bytes may suspend with ErrAgainRead / ErrAgainWrite and are re-driven
// by the caller. See the package documentation for the state machine.
type Endpoint struct {
	eng      engine.Engine
	sess     engine.Session
	role     engine.Role
	recv     RecvFunc
	send     SendFunc
	config   *Config
	peerName string

	// ourCert is the certificate this endpoint actually presented,
	// captured after the handshake or restored by the session-cache
	// retrieve path, since the engine does not re-emit it on resumption.
	ourCert      []byte
	ourCertKnown bool

	state    State
	transEOF bool
	logger   *slog.Logger
}

// NewEndpoint binds a new TLS session to a transport. A client whose
// configuration requires peer authentication must name the peer unless
// the configuration opted out of name checking; creation fails closed
// otherwise.
func (p *Provider) NewEndpoint(role engine.Role, recv RecvFunc, send SendFunc, peerName string, config *Config) (*Endpoint, error) {
	if config == nil {
		return nil, fmt.Errorf("%w: configuration is required", ErrConfig)
	}
	if role == engine.RoleClient && config.peerAuth != PeerAuthNone &&
		!config.peerNameUnchecked && peerName == "" {
		return nil, fmt.Errorf("%w: peer name is required when peer authentication is enabled", ErrConfig)
	}

	sess, err := p.eng.NewSession(role)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrConfig, err)
	}

	ep := &Endpoint{
		eng:      p.eng,
		sess:     sess,
		role:     role,
		recv:     recv,
		send:     send,
		config:   config,
		peerName: peerName,
		state:    StateStart,
		logger:   config.logger,
	}

	if err := config.apply(sess); err != nil {
		sess.Close()
		return nil, fmt.Errorf("%w: %w", ErrConfig, err)
	}
	if role == engine.RoleClient && peerName != "" {
		if err := sess.SetServerName(peerName); err != nil {
			sess.Close()
			return nil, fmt.Errorf("%w: %w", ErrConfig, err)
		}
	}
	if role == engine.RoleServer {
		sess.SetCertificateRequest(certRequest(config.peerAuth))
	}
	sess.SetTransport(ep.pull, ep.push)
	return ep, nil
}

// ResumeClient creates a client endpoint pre-loaded with session data
// from a previous connection, so the next Hello attempts an abbreviated
// handshake.
func (p *Provider) ResumeClient(recv RecvFunc, send SendFunc, peerName string, config *Config, sessionBlob []byte) (*Endpoint, error) {
	ep, err := p.NewEndpoint(engine.RoleClient, recv, send, peerName, config)
	if err != nil {
		return nil, err
	}
	if err := ep.sess.SetSessionData(sessionBlob); err != nil {
		ep.sess.Close()
		return nil, ep.wrapEngine(err)
	}
	return ep, nil
}

// certRequest maps the peer-auth policy onto the server's
// client-certificate request.
func certRequest(a PeerAuth) engine.CertificateRequest {
	switch a {
	case PeerAuthOptional:
		return engine.CertRequest
	case PeerAuthRequired:
		return engine.CertRequire
	}
	return engine.CertIgnore
}

// pull adapts the caller's recv callback into the engine's pull
// convention and latches the transport-EOF bit the first time the
// transport reports EOF for a non-empty request.
func (ep *Endpoint) pull(p []byte) (int, error) {
	n, err := ep.recv(p)
	if err != nil {
		return 0, mapTransportErr(err)
	}
	if n == 0 && len(p) > 0 {
		ep.transEOF = true
	}
	return n, nil
}

// push adapts the caller's send callback into the engine's push
// convention.
func (ep *Endpoint) push(p []byte) (int, error) {
	n, err := ep.send(p)
	if err != nil {
		return 0, mapTransportErr(err)
	}
	return n, nil
}

// mapTransportErr normalizes the caller's would-block and interruption
// signals onto the engine's transport sentinels.
func mapTransportErr(err error) error {
	switch {
	case errors.Is(err, engine.ErrTransportAgain),
		errors.Is(err, syscall.EAGAIN),
		errors.Is(err, syscall.EWOULDBLOCK):
		return engine.ErrTransportAgain
	case errors.Is(err, engine.ErrTransportInterrupted),
		errors.Is(err, syscall.EINTR):
		return engine.ErrTransportInterrupted
	}
	return err
}

// Hello drives the handshake. On success the endpoint enters DataRW and
// its presented certificate is captured. Suspensions, warnings and
// interruptions permit retrying Hello; fatal errors do not. Hello also
// completes an accepted configuration switch from state Switching.
func (ep *Endpoint) Hello() error {
	if !permitted(opHello, ep.state) {
		return &UnexpectedStateError{Op: string(opHello), State: ep.state}
	}
	ep.state = StateHandshake

	if err := ep.sess.Handshake(); err != nil {
		return ep.translate(opHello, err, true)
	}
	ep.captureOurCert()
	ep.state = StateDataRW
	ep.logger.Debug("handshake complete",
		"role", ep.role,
		"protocol", ep.sess.Protocol(),
		"cipher", ep.sess.Cipher())
	return nil
}

// ByeDirection selects which directions Bye shuts down.
type ByeDirection int

const (
	// ByeReceive is accepted for symmetry but is a no-op: a close of
	// the receive direction cannot be driven to the peer.
	ByeReceive ByeDirection = iota

	// ByeSend sends close-notify for the write direction.
	ByeSend

	// ByeAll sends close-notify and terminates both directions.
	ByeAll
)

// Bye performs a graceful TLS shutdown of the given directions. From
// DataRW, Bye(ByeSend) half-closes to DataR; Bye(ByeAll), or ByeSend
// once the peer already closed, ends the session.
func (ep *Endpoint) Bye(dir ByeDirection) error {
	if !permitted(opBye, ep.state) {
		return &UnexpectedStateError{Op: string(opBye), State: ep.state}
	}
	if dir == ByeReceive {
		return nil
	}

	how := engine.CloseWrite
	if dir == ByeAll {
		how = engine.CloseReadWrite
	}
	if err := ep.sess.Bye(how); err != nil {
		return ep.translate(opBye, err, false)
	}

	switch {
	case dir == ByeAll:
		ep.state = StateEnd
	case ep.state == StateDataRW:
		ep.state = StateDataR
	case ep.state == StateDataW:
		ep.state = StateEnd
	}
	return nil
}

// Verify applies the configuration's peer-authentication policy to the
// peer's presented credentials: certificate presence, engine chain
// validation, hostname matching against the expected peer name, and the
// user verification hook, in that order.
func (ep *Endpoint) Verify() error {
	if !permitted(opVerify, ep.state) {
		return &UnexpectedStateError{Op: string(opVerify), State: ep.state}
	}

	peerCerts, err := ep.sess.PeerCertificates()
	if err != nil {
		return ep.wrapEngine(err)
	}

	if len(peerCerts) == 0 {
		if ep.config.peerAuth == PeerAuthRequired {
			return ErrNoCertificateFound
		}
	} else if ep.config.peerAuth != PeerAuthNone {
		flags, err := ep.sess.VerifyPeers()
		if err != nil {
			return ep.wrapEngine(err)
		}
		if flags != 0 {
			ep.logger.Debug("peer chain validation failed", "flags", flags)
			return ErrCertVerificationFailed
		}
	}

	if !ep.config.peerNameUnchecked && ep.peerName != "" {
		if len(peerCerts) == 0 || !ep.eng.CheckHostname(peerCerts[0], ep.peerName) {
			ep.logger.Debug("peer name mismatch", "peer_name", ep.peerName)
			return ErrNameVerificationFailed
		}
	}

	if ep.config.verify != nil && !ep.config.verify(ep) {
		return ErrUserVerificationFailed
	}
	return nil
}

// Switch initiates a renegotiation under a new configuration. On success
// the endpoint enters DataRS, where only Recv is allowed until the peer
// answers: a Recv error of SwitchResponseError{Accepted: true} moves to
// Switching (complete with Hello), Accepted: false returns to DataRW.
func (ep *Endpoint) Switch(newcfg *Config) error {
	if !permitted(opSwitch, ep.state) {
		return &UnexpectedStateError{Op: string(opSwitch), State: ep.state}
	}
	if newcfg == nil {
		return fmt.Errorf("%w: configuration is required", ErrConfig)
	}
	ep.state = StateSwitching

	if err := newcfg.apply(ep.sess); err != nil {
		return ep.wrapEngine(err)
	}
	if ep.role == engine.RoleServer {
		ep.sess.SetCertificateRequest(certRequest(newcfg.peerAuth))
	}
	if err := ep.sess.Rehandshake(); err != nil {
		return ep.translate(opSwitch, err, false)
	}
	ep.config = newcfg
	ep.state = StateDataRS
	ep.logger.Debug("switch requested")
	return nil
}

// AcceptSwitch answers a peer's switch request (ErrSwitchRequest from
// Recv) by driving the renegotiation handshake under a new
// configuration. On success the endpoint returns to DataRW with its
// presented certificate re-captured.
func (ep *Endpoint) AcceptSwitch(newcfg *Config) error {
	if !permitted(opAcceptSwitch, ep.state) {
		return &UnexpectedStateError{Op: string(opAcceptSwitch), State: ep.state}
	}
	if newcfg == nil {
		return fmt.Errorf("%w: configuration is required", ErrConfig)
	}
	ep.state = StateAccepting

	if err := newcfg.apply(ep.sess); err != nil {
		return ep.wrapEngine(err)
	}
	if ep.role == engine.RoleServer {
		ep.sess.SetCertificateRequest(certRequest(newcfg.peerAuth))
	}
	if err := ep.sess.Handshake(); err != nil {
		return ep.translate(opAcceptSwitch, err, true)
	}
	ep.config = newcfg
	ep.captureOurCert()
	ep.state = StateDataRW
	ep.logger.Debug("switch accepted")
	return nil
}

// RefuseSwitch answers a peer's switch request with a no_renegotiation
// warning alert. A suspension permits retrying; any other failure leaves
// the endpoint in Refusing.
func (ep *Endpoint) RefuseSwitch() error {
	if !permitted(opRefuseSwitch, ep.state) {
		return &UnexpectedStateError{Op: string(opRefuseSwitch), State: ep.state}
	}
	ep.state = StateRefusing

	if err := ep.sess.SendAlert(engine.AlertWarning, engine.AlertNoRenegotiation); err != nil {
		return ep.translate(opRefuseSwitch, err, false)
	}
	ep.state = StateDataRW
	ep.logger.Debug("switch refused")
	return nil
}

// Send writes up to len(p) bytes of application data and returns the
// number of bytes the engine accepted, which may be short.
func (ep *Endpoint) Send(p []byte) (int, error) {
	if !permitted(opSend, ep.state) {
		return 0, &UnexpectedStateError{Op: string(opSend), State: ep.state}
	}
	n, err := ep.sess.Write(p)
	if err != nil {
		return 0, ep.translate(opSend, err, false)
	}
	return n, nil
}

// Recv reads at most len(p) bytes of application data. A return of
// 0, nil on a non-empty buffer is TLS-level EOF: the peer sent
// close-notify, and the endpoint moves to DataW (or End if the write
// side was already closed). Recv is also where renegotiation signals
// surface, as ErrSwitchRequest or SwitchResponseError.
func (ep *Endpoint) Recv(p []byte) (int, error) {
	if !permitted(opRecv, ep.state) {
		return 0, &UnexpectedStateError{Op: string(opRecv), State: ep.state}
	}
	n, err := ep.sess.Read(p)
	if err != nil {
		return 0, ep.translate(opRecv, err, true)
	}
	if n == 0 && len(p) > 0 {
		if ep.state == StateDataR {
			ep.state = StateEnd
		} else {
			ep.state = StateDataW
		}
	}
	return n, nil
}

// RecvWillNotBlock reports whether the engine holds buffered plaintext,
// so the next Recv cannot suspend.
func (ep *Endpoint) RecvWillNotBlock() bool {
	return ep.sess.Pending() > 0
}

// captureOurCert records the certificate this endpoint presented. The
// engine cannot answer on resumed sessions, in which case a value
// restored by the session-cache retrieve path is kept.
func (ep *Endpoint) captureOurCert() {
	der, err := ep.sess.OurCertificate()
	if err != nil {
		return
	}
	if len(der) > 0 {
		ep.ourCert = der
		ep.ourCertKnown = true
		return
	}
	if !ep.ourCertKnown {
		ep.ourCert = nil
		ep.ourCertKnown = true
	}
}

// State returns the endpoint's current state.
func (ep *Endpoint) State() State {
	return ep.state
}

// Role returns which side of the handshake this endpoint plays.
func (ep *Endpoint) Role() engine.Role {
	return ep.role
}

// Config returns the endpoint's current configuration.
func (ep *Endpoint) Config() *Config {
	return ep.config
}

// PeerName returns the expected peer hostname, or "" when unset.
func (ep *Endpoint) PeerName() string {
	return ep.peerName
}

// AtTransportEOF reports whether the transport ever returned EOF for a
// non-empty read. Once set it stays set.
func (ep *Endpoint) AtTransportEOF() bool {
	return ep.transEOF
}

// SessionID returns the negotiated session identifier.
func (ep *Endpoint) SessionID() ([]byte, error) {
	id, err := ep.sess.SessionID()
	if err != nil {
		return nil, ep.wrapEngine(err)
	}
	return id, nil
}

// SessionData serializes the engine's resumption state for this session,
// suitable for ResumeClient.
func (ep *Endpoint) SessionData() ([]byte, error) {
	data, err := ep.sess.SessionData()
	if err != nil {
		return nil, ep.wrapEngine(err)
	}
	return data, nil
}

// CipherAlgo returns the negotiated cipher name.
func (ep *Endpoint) CipherAlgo() string { return ep.sess.Cipher() }

// KxAlgo returns the negotiated key-exchange algorithm name.
func (ep *Endpoint) KxAlgo() string { return ep.sess.KX() }

// MacAlgo returns the negotiated MAC algorithm name.
func (ep *Endpoint) MacAlgo() string { return ep.sess.MAC() }

// CompressionAlgo returns the negotiated compression method name.
func (ep *Endpoint) CompressionAlgo() string { return ep.sess.Compression() }

// CertType returns the negotiated certificate type.
func (ep *Endpoint) CertType() string { return ep.sess.CertificateType() }

// Protocol returns the negotiated protocol version, e.g. "TLS1.3".
func (ep *Endpoint) Protocol() string { return ep.sess.Protocol() }

// AddressedServers enumerates the SNI names the client supplied,
// leaving servers free to pick a configuration per virtual host.
func (ep *Endpoint) AddressedServers() ([]string, error) {
	var names []string
	for i := 0; ; i++ {
		name, err := ep.sess.ServerName(i)
		if err != nil {
			if ee, ok := engine.AsError(err); ok && ee.Code == engine.CodeRequestedDataNotAvailable {
				return names, nil
			}
			return nil, ep.wrapEngine(err)
		}
		names = append(names, name)
	}
}

// EndpointCreds returns the raw identity this endpoint presented,
// capturing it lazily when the handshake already completed.
func (ep *Endpoint) EndpointCreds() RawCredential {
	if !ep.ourCertKnown {
		ep.captureOurCert()
	}
	return RawCredential{X509: ep.ourCert}
}

// PeerCreds returns the raw identity of the peer: its leaf certificate,
// or anonymous when none was presented.
func (ep *Endpoint) PeerCreds() (RawCredential, error) {
	certs, err := ep.sess.PeerCertificates()
	if err != nil {
		return RawCredential{}, ep.wrapEngine(err)
	}
	if len(certs) == 0 {
		return RawCredential{}, nil
	}
	return RawCredential{X509: certs[0]}, nil
}

// PeerCredsList returns the peer's full presented chain, leaf first.
func (ep *Endpoint) PeerCredsList() ([]RawCredential, error) {
	certs, err := ep.sess.PeerCertificates()
	if err != nil {
		return nil, ep.wrapEngine(err)
	}
	creds := make([]RawCredential, len(certs))
	for i, der := range certs {
		creds[i] = RawCredential{X509: der}
	}
	return creds, nil
}
