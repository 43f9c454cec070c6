// Copyright 2026 Jeremy Hahn
// SPDX-License-Identifier: MIT

package nettls

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/jeremyhahn/go-nettls/pkg/engine"
	"github.com/jeremyhahn/go-nettls/pkg/engine/enginetest"
)

// testbed wires a loopback engine, a CA, a server identity and a
// connected pipe pair for endpoint tests.
type testbed struct {
	provider *Provider
	ca       *enginetest.CA
	server   *enginetest.Identity
	cliEnd   *enginetest.PipeEnd
	srvEnd   *enginetest.PipeEnd
}

func newTestbed(t *testing.T) *testbed {
	t.Helper()

	ca, err := enginetest.NewCA("test root")
	require.NoError(t, err)
	server, err := ca.Issue("example.test", []string{"example.test"})
	require.NoError(t, err)

	cliEnd, srvEnd := enginetest.NewPipe()
	return &testbed{
		provider: New(enginetest.NewEngine(), nil),
		ca:       ca,
		server:   server,
		cliEnd:   cliEnd,
		srvEnd:   srvEnd,
	}
}

// serverConfig builds a server configuration presenting tb.server with
// the given client-auth policy.
func (tb *testbed) serverConfig(t *testing.T, peerAuth PeerAuth) *Config {
	t.Helper()

	keyDER, err := tb.server.KeyPKCS8()
	require.NoError(t, err)
	creds, err := tb.provider.NewCredentials(&CredentialsConfig{
		Trust: []CertSource{CertDER{tb.ca.CertDER}},
		Identities: []Identity{{
			Chain: CertDER{tb.server.CertDER},
			Key:   KeyPKCS8(keyDER),
		}},
	})
	require.NoError(t, err)

	cfg, err := tb.provider.NewConfig(&ConfigSpec{
		PeerAuth:    peerAuth,
		Credentials: creds,
	})
	require.NoError(t, err)
	return cfg
}

// clientConfig builds a client configuration trusting tb.ca, optionally
// with its own identity for mutual authentication.
func (tb *testbed) clientConfig(t *testing.T, peerAuth PeerAuth, id *enginetest.Identity) *Config {
	t.Helper()

	ccfg := &CredentialsConfig{
		Trust: []CertSource{CertDER{tb.ca.CertDER}},
	}
	if id != nil {
		keyDER, err := id.KeyPKCS8()
		require.NoError(t, err)
		ccfg.Identities = []Identity{{
			Chain: CertDER{id.CertDER},
			Key:   KeyPKCS8(keyDER),
		}}
	}
	creds, err := tb.provider.NewCredentials(ccfg)
	require.NoError(t, err)

	cfg, err := tb.provider.NewConfig(&ConfigSpec{
		PeerAuth:    peerAuth,
		Credentials: creds,
	})
	require.NoError(t, err)
	return cfg
}

// endpoints creates the client and server endpoints over the testbed
// pipe.
func (tb *testbed) endpoints(t *testing.T, cliCfg, srvCfg *Config, peerName string) (*Endpoint, *Endpoint) {
	t.Helper()

	cli, err := tb.provider.NewEndpoint(engine.RoleClient, tb.cliEnd.Read, tb.cliEnd.Write, peerName, cliCfg)
	require.NoError(t, err)
	srv, err := tb.provider.NewEndpoint(engine.RoleServer, tb.srvEnd.Read, tb.srvEnd.Write, "", srvCfg)
	require.NoError(t, err)
	return cli, srv
}

// isSuspension reports whether err is a retryable suspension signal.
func isSuspension(err error) bool {
	return errors.Is(err, ErrAgainRead) || errors.Is(err, ErrAgainWrite) ||
		errors.Is(err, ErrInterrupted)
}

// driveHellos alternates Hello on both endpoints until both complete,
// failing the test on anything but a suspension.
func driveHellos(t *testing.T, eps ...*Endpoint) {
	t.Helper()

	done := make([]bool, len(eps))
	for iter := 0; ; iter++ {
		require.Less(t, iter, 100, "handshake did not converge")
		remaining := false
		for i, ep := range eps {
			if done[i] {
				continue
			}
			err := ep.Hello()
			switch {
			case err == nil:
				done[i] = true
			case isSuspension(err):
				remaining = true
			default:
				t.Fatalf("hello: %v", err)
			}
		}
		if !remaining {
			allDone := true
			for _, d := range done {
				allDone = allDone && d
			}
			if allDone {
				return
			}
		}
	}
}

// recvSome retries Recv through suspensions until data or EOF arrives.
func recvSome(t *testing.T, ep *Endpoint, buf []byte) int {
	t.Helper()

	for iter := 0; iter < 100; iter++ {
		n, err := ep.Recv(buf)
		if err == nil {
			return n
		}
		if !isSuspension(err) {
			t.Fatalf("recv: %v", err)
		}
	}
	t.Fatal("recv did not complete")
	return 0
}
