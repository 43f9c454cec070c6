// Copyright 2026 Jeremy Hahn
// SPDX-License-Identifier: MIT

package nettls

import (
	"github.com/jeremyhahn/go-nettls/pkg/engine"
)

// StashToken is an opaque capture of a detached endpoint: its session,
// configuration and state attributes, without a transport. Tokens move a
// live TLS session between transports, e.g. across an accept loop
// hand-off.
type StashToken struct {
	role         engine.Role
	config       *Config
	sess         engine.Session
	peerName     string
	ourCert      []byte
	ourCertKnown bool
	priorState   State
	transEOF     bool
}

// Stash detaches the endpoint from its transport and returns a token
// that restores the session elsewhere. The endpoint itself is finished:
// its callbacks are replaced with EOF/no-op stubs and its state is
// forced to End; any further use follows the End-state rules.
func (ep *Endpoint) Stash() *StashToken {
	tok := &StashToken{
		role:         ep.role,
		config:       ep.config,
		sess:         ep.sess,
		peerName:     ep.peerName,
		ourCert:      ep.ourCert,
		ourCertKnown: ep.ourCertKnown,
		priorState:   ep.state,
		transEOF:     ep.transEOF,
	}

	ep.recv = func(p []byte) (int, error) { return 0, nil }
	ep.send = func(p []byte) (int, error) { return len(p), nil }
	ep.sess.SetTransport(ep.pull, ep.push)
	ep.state = StateEnd
	return tok
}

// RestoreEndpoint reattaches a stashed session to a new transport. The
// restored endpoint carries the token's role, configuration, peer name,
// presented certificate, prior state and transport-EOF latch.
func (p *Provider) RestoreEndpoint(tok *StashToken, recv RecvFunc, send SendFunc) *Endpoint {
	ep := &Endpoint{
		eng:          p.eng,
		sess:         tok.sess,
		role:         tok.role,
		recv:         recv,
		send:         send,
		config:       tok.config,
		peerName:     tok.peerName,
		ourCert:      tok.ourCert,
		ourCertKnown: tok.ourCertKnown,
		state:        tok.priorState,
		transEOF:     tok.transEOF,
		logger:       tok.config.logger,
	}
	ep.sess.SetTransport(ep.pull, ep.push)
	return ep
}
