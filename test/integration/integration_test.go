// Copyright 2026 Jeremy Hahn
// SPDX-License-Identifier: MIT

//go:build integration

// Package integration drives full endpoint lifecycles over the loopback
// engine: handshake, bidirectional data, renegotiation, graceful
// shutdown, session resumption and transport hand-off, the way a server
// accept loop would compose the pieces.
package integration

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeremyhahn/go-nettls/pkg/engine"
	"github.com/jeremyhahn/go-nettls/pkg/engine/enginetest"
	"github.com/jeremyhahn/go-nettls/pkg/nettls"
)

// world is the shared PKI and provider for one scenario.
type world struct {
	provider *nettls.Provider
	ca       *enginetest.CA
	serverID *enginetest.Identity
	clientID *enginetest.Identity
	srvCfg   *nettls.Config
	cliCfg   *nettls.Config
}

func newWorld(t *testing.T) *world {
	t.Helper()

	ca, err := enginetest.NewCA("integration root")
	require.NoError(t, err)
	serverID, err := ca.Issue("svc.example.test", []string{"svc.example.test"})
	require.NoError(t, err)
	clientID, err := ca.Issue("node.example.test", []string{"node.example.test"})
	require.NoError(t, err)

	w := &world{
		provider: nettls.New(enginetest.NewEngine(), nil),
		ca:       ca,
		serverID: serverID,
		clientID: clientID,
	}

	srvKey, err := serverID.KeyPKCS8()
	require.NoError(t, err)
	srvCreds, err := w.provider.NewCredentials(&nettls.CredentialsConfig{
		Trust: []nettls.CertSource{nettls.CertDER{ca.CertDER}},
		Identities: []nettls.Identity{{
			Chain: nettls.CertDER{serverID.CertDER},
			Key:   nettls.KeyPKCS8(srvKey),
		}},
	})
	require.NoError(t, err)
	w.srvCfg, err = w.provider.NewConfig(&nettls.ConfigSpec{
		PeerAuth:    nettls.PeerAuthRequired,
		Credentials: srvCreds,
	})
	require.NoError(t, err)

	cliKey, err := clientID.KeyPKCS8()
	require.NoError(t, err)
	cliCreds, err := w.provider.NewCredentials(&nettls.CredentialsConfig{
		Trust: []nettls.CertSource{nettls.CertDER{ca.CertDER}},
		Identities: []nettls.Identity{{
			Chain: nettls.CertDER{clientID.CertDER},
			Key:   nettls.KeyPKCS8(cliKey),
		}},
	})
	require.NoError(t, err)
	w.cliCfg, err = w.provider.NewConfig(&nettls.ConfigSpec{
		PeerAuth:    nettls.PeerAuthRequired,
		Credentials: cliCreds,
	})
	require.NoError(t, err)

	return w
}

// connect creates a connected endpoint pair.
func (w *world) connect(t *testing.T) (*nettls.Endpoint, *nettls.Endpoint, *enginetest.PipeEnd, *enginetest.PipeEnd) {
	t.Helper()
	cliEnd, srvEnd := enginetest.NewPipe()
	cli, err := w.provider.NewEndpoint(engine.RoleClient, cliEnd.Read, cliEnd.Write, "svc.example.test", w.cliCfg)
	require.NoError(t, err)
	srv, err := w.provider.NewEndpoint(engine.RoleServer, srvEnd.Read, srvEnd.Write, "", w.srvCfg)
	require.NoError(t, err)
	return cli, srv, cliEnd, srvEnd
}

func suspension(err error) bool {
	return errors.Is(err, nettls.ErrAgainRead) || errors.Is(err, nettls.ErrAgainWrite) ||
		errors.Is(err, nettls.ErrInterrupted)
}

// drive retries an operation through suspensions, interleaving a peer
// pump so both sides make progress.
func drive(t *testing.T, op func() error, pump func()) {
	t.Helper()
	for i := 0; i < 200; i++ {
		err := op()
		if err == nil {
			return
		}
		if !suspension(err) {
			t.Fatalf("operation failed: %v", err)
		}
		if pump != nil {
			pump()
		}
	}
	t.Fatal("operation did not converge")
}

func handshake(t *testing.T, cli, srv *nettls.Endpoint) {
	t.Helper()
	srvDone := false
	drive(t, cli.Hello, func() {
		if !srvDone {
			if err := srv.Hello(); err == nil {
				srvDone = true
			} else if !suspension(err) {
				t.Fatalf("server hello: %v", err)
			}
		}
	})
	if !srvDone {
		drive(t, srv.Hello, nil)
	}
}

func TestFullLifecycle(t *testing.T) {
	w := newWorld(t)
	limiter := nettls.NewHandshakeLimiter(100, 10, 0, 0)
	defer limiter.Stop()

	require.True(t, limiter.Allow("node.example.test"), "accept loop admits the peer")

	cli, srv, _, _ := w.connect(t)
	handshake(t, cli, srv)

	// Mutual verification.
	require.NoError(t, cli.Verify())
	require.NoError(t, srv.Verify())
	assert.Equal(t, []string{"svc.example.test"}, mustServers(t, srv))

	// Request/response traffic in both directions.
	buf := make([]byte, 256)
	for i := 0; i < 5; i++ {
		msg := []byte("request payload")
		_, err := cli.Send(msg)
		require.NoError(t, err)
		n := mustRecv(t, srv, buf)
		assert.Equal(t, msg, buf[:n])

		reply := []byte("response payload")
		_, err = srv.Send(reply)
		require.NoError(t, err)
		n = mustRecv(t, cli, buf)
		assert.Equal(t, reply, buf[:n])
	}

	// Graceful shutdown from the client side.
	require.NoError(t, cli.Bye(nettls.ByeSend))
	n, err := srv.Recv(buf)
	require.NoError(t, err)
	require.Zero(t, n)
	require.NoError(t, srv.Bye(nettls.ByeAll))
	assert.Equal(t, nettls.StateEnd, srv.State())
}

func TestRenegotiationLifecycle(t *testing.T) {
	w := newWorld(t)
	cli, srv, _, _ := w.connect(t)
	handshake(t, cli, srv)

	// The client initiates a switch; the server accepts under a fresh
	// configuration.
	require.NoError(t, cli.Switch(w.cliCfg))

	buf := make([]byte, 64)
	_, err := srv.Recv(buf)
	require.ErrorIs(t, err, nettls.ErrSwitchRequest)

	err = srv.AcceptSwitch(w.srvCfg)
	require.True(t, err == nil || suspension(err), "accept: %v", err)

	_, err = cli.Recv(buf)
	accepted, ok := nettls.AsSwitchResponse(err)
	require.True(t, ok, "expected switch response, got %v", err)
	require.True(t, accepted)
	drive(t, cli.Hello, nil)
	drive(t, func() error { return srv.AcceptSwitch(w.srvCfg) }, nil)

	require.NoError(t, srv.Verify())

	// Traffic continues after the renegotiation.
	_, err = cli.Send([]byte("again"))
	require.NoError(t, err)
	n := mustRecv(t, srv, buf)
	assert.Equal(t, []byte("again"), buf[:n])
}

func TestResumptionLifecycle(t *testing.T) {
	w := newWorld(t)
	store := map[string][]byte{}
	cache := nettls.SessionCache{
		Store:    func(key, data []byte) error { store[string(key)] = data; return nil },
		Remove:   func(key []byte) error { delete(store, string(key)); return nil },
		Retrieve: func(key []byte) ([]byte, error) {
			data, ok := store[string(key)]
			if !ok {
				return nil, errors.New("not found")
			}
			return data, nil
		},
	}

	cli1, srv1, _, _ := w.connect(t)
	srv1.SetSessionCache(cache)
	handshake(t, cli1, srv1)
	require.Len(t, store, 1)

	blob, err := cli1.SessionData()
	require.NoError(t, err)

	// Second connection resumes and the server still knows the
	// certificate it presented originally.
	cliEnd, srvEnd := enginetest.NewPipe()
	cli2, err := w.provider.ResumeClient(cliEnd.Read, cliEnd.Write, "svc.example.test", w.cliCfg, blob)
	require.NoError(t, err)
	srv2, err := w.provider.NewEndpoint(engine.RoleServer, srvEnd.Read, srvEnd.Write, "", w.srvCfg)
	require.NoError(t, err)
	srv2.SetSessionCache(cache)
	handshake(t, cli2, srv2)

	assert.Equal(t, w.serverID.CertDER, srv2.EndpointCreds().X509)
	require.NoError(t, cli2.Verify())
}

func TestStashHandoffLifecycle(t *testing.T) {
	w := newWorld(t)
	cli, srv, cliEnd, _ := w.connect(t)
	handshake(t, cli, srv)

	// Detach the client from its transport and hand the session to a
	// new endpoint on the same wire.
	tok := cli.Stash()
	assert.Equal(t, nettls.StateEnd, cli.State())

	restored := w.provider.RestoreEndpoint(tok, cliEnd.Read, cliEnd.Write)
	assert.Equal(t, nettls.StateDataRW, restored.State())
	assert.Equal(t, w.clientID.CertDER, restored.EndpointCreds().X509)

	buf := make([]byte, 64)
	_, err := restored.Send([]byte("handed off"))
	require.NoError(t, err)
	n := mustRecv(t, srv, buf)
	assert.Equal(t, []byte("handed off"), buf[:n])
}

func mustRecv(t *testing.T, ep *nettls.Endpoint, buf []byte) int {
	t.Helper()
	var n int
	drive(t, func() error {
		var err error
		n, err = ep.Recv(buf)
		return err
	}, nil)
	return n
}

func mustServers(t *testing.T, ep *nettls.Endpoint) []string {
	t.Helper()
	names, err := ep.AddressedServers()
	require.NoError(t, err)
	return names
}
