// Copyright 2026 Jeremy Hahn
// SPDX-License-Identifier: MIT

package nettls

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSwitch_Refused(t *testing.T) {
	tb := newTestbed(t)
	cli, srv := tb.endpoints(t,
		tb.clientConfig(t, PeerAuthNone, nil),
		tb.serverConfig(t, PeerAuthNone),
		"example.test")
	driveHellos(t, cli, srv)

	newCfg := tb.clientConfig(t, PeerAuthNone, nil)
	require.NoError(t, cli.Switch(newCfg))
	assert.Equal(t, StateDataRS, cli.State())

	// The responder observes the request through its read path.
	buf := make([]byte, 32)
	_, err := srv.Recv(buf)
	require.ErrorIs(t, err, ErrSwitchRequest)
	assert.Equal(t, StateDataRW, srv.State())

	require.NoError(t, srv.RefuseSwitch())
	assert.Equal(t, StateDataRW, srv.State())

	// The initiator's next read carries the refusal and falls back to
	// the data state.
	_, err = cli.Recv(buf)
	accepted, ok := AsSwitchResponse(err)
	require.True(t, ok, "expected a switch response, got %v", err)
	assert.False(t, accepted)
	assert.Equal(t, StateDataRW, cli.State())

	// The session continues unharmed.
	_, err = cli.Send([]byte("still here"))
	require.NoError(t, err)
	n := recvSome(t, srv, buf)
	assert.Equal(t, []byte("still here"), buf[:n])
}

func TestSwitch_AcceptedClientInitiated(t *testing.T) {
	tb := newTestbed(t)
	clientID, err := tb.ca.Issue("client.test", []string{"client.test"})
	require.NoError(t, err)

	cli, srv := tb.endpoints(t,
		tb.clientConfig(t, PeerAuthNone, nil),
		tb.serverConfig(t, PeerAuthNone),
		"example.test")
	driveHellos(t, cli, srv)

	// Before the switch the client is anonymous.
	assert.True(t, cli.EndpointCreds().IsAnonymous())

	// Renegotiate into mutual authentication.
	newCliCfg := tb.clientConfig(t, PeerAuthNone, clientID)
	newSrvCfg := tb.serverConfig(t, PeerAuthRequired)

	require.NoError(t, cli.Switch(newCliCfg))
	assert.Equal(t, StateDataRS, cli.State())
	assert.Same(t, newCliCfg, cli.Config())

	buf := make([]byte, 32)
	_, err = srv.Recv(buf)
	require.ErrorIs(t, err, ErrSwitchRequest)

	// The responder drives the renegotiation; it suspends until the
	// client answers the certificate request.
	err = srv.AcceptSwitch(newSrvCfg)
	require.ErrorIs(t, err, ErrAgainRead)
	assert.Equal(t, StateAccepting, srv.State())

	// The initiator learns the peer accepted and completes with Hello.
	_, err = cli.Recv(buf)
	accepted, ok := AsSwitchResponse(err)
	require.True(t, ok, "expected a switch response, got %v", err)
	assert.True(t, accepted)
	assert.Equal(t, StateSwitching, cli.State())

	require.NoError(t, cli.Hello())
	assert.Equal(t, StateDataRW, cli.State())

	require.NoError(t, srv.AcceptSwitch(newSrvCfg))
	assert.Equal(t, StateDataRW, srv.State())
	assert.Same(t, newSrvCfg, srv.Config())

	// The renegotiated identities are visible on both sides.
	assert.Equal(t, clientID.CertDER, cli.EndpointCreds().X509)
	peer, err := srv.PeerCreds()
	require.NoError(t, err)
	assert.Equal(t, clientID.CertDER, peer.X509)
	require.NoError(t, srv.Verify())

	// Data flows under the new configuration.
	_, err = srv.Send([]byte("post-switch"))
	require.NoError(t, err)
	n := recvSome(t, cli, buf)
	assert.Equal(t, []byte("post-switch"), buf[:n])
}

func TestSwitch_AcceptedServerInitiated(t *testing.T) {
	tb := newTestbed(t)
	cli, srv := tb.endpoints(t,
		tb.clientConfig(t, PeerAuthNone, nil),
		tb.serverConfig(t, PeerAuthNone),
		"example.test")
	driveHellos(t, cli, srv)

	newSrvCfg := tb.serverConfig(t, PeerAuthNone)
	newCliCfg := tb.clientConfig(t, PeerAuthNone, nil)

	require.NoError(t, srv.Switch(newSrvCfg))
	assert.Equal(t, StateDataRS, srv.State())

	// The client sees the hello request.
	buf := make([]byte, 32)
	_, err := cli.Recv(buf)
	require.ErrorIs(t, err, ErrSwitchRequest)

	// The client accepts: it sends its hello and suspends on the
	// server's answer.
	err = cli.AcceptSwitch(newCliCfg)
	require.ErrorIs(t, err, ErrAgainRead)
	assert.Equal(t, StateAccepting, cli.State())

	// The initiating server sees the hello arrive, completes via Hello.
	_, err = srv.Recv(buf)
	accepted, ok := AsSwitchResponse(err)
	require.True(t, ok, "expected a switch response, got %v", err)
	assert.True(t, accepted)
	require.NoError(t, srv.Hello())
	assert.Equal(t, StateDataRW, srv.State())

	require.NoError(t, cli.AcceptSwitch(newCliCfg))
	assert.Equal(t, StateDataRW, cli.State())

	_, err = cli.Send([]byte("renegotiated"))
	require.NoError(t, err)
	n := recvSome(t, srv, buf)
	assert.Equal(t, []byte("renegotiated"), buf[:n])
}

func TestSwitch_RequiresConfig(t *testing.T) {
	tb := newTestbed(t)
	cli, srv := tb.endpoints(t,
		tb.clientConfig(t, PeerAuthNone, nil),
		tb.serverConfig(t, PeerAuthNone),
		"example.test")
	driveHellos(t, cli, srv)

	err := cli.Switch(nil)
	assert.ErrorIs(t, err, ErrConfig)
	err = cli.AcceptSwitch(nil)
	assert.ErrorIs(t, err, ErrConfig)
}
