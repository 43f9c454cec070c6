// Copyright 2026 Jeremy Hahn
// SPDX-License-Identifier: MIT

package nettls

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeremyhahn/go-nettls/pkg/engine"
)

func TestStashRestore(t *testing.T) {
	tb := newTestbed(t)
	cliCfg := tb.clientConfig(t, PeerAuthRequired, nil)
	cli, srv := tb.endpoints(t, cliCfg, tb.serverConfig(t, PeerAuthNone), "example.test")
	driveHellos(t, cli, srv)

	ourCert := cli.EndpointCreds()
	tok := cli.Stash()

	// The stashed endpoint is finished.
	assert.Equal(t, StateEnd, cli.State())
	_, err := cli.Send([]byte("x"))
	assert.ErrorIs(t, err, ErrUnexpectedState)

	// Restore onto the same transport and check the attributes carried
	// over.
	restored := tb.provider.RestoreEndpoint(tok, tb.cliEnd.Read, tb.cliEnd.Write)
	assert.Equal(t, engine.RoleClient, restored.Role())
	assert.Same(t, cliCfg, restored.Config())
	assert.Equal(t, "example.test", restored.PeerName())
	assert.Equal(t, StateDataRW, restored.State())
	assert.False(t, restored.AtTransportEOF())
	assert.Equal(t, ourCert, restored.EndpointCreds())

	// The restored endpoint keeps driving the same session.
	_, err = restored.Send([]byte("after restore"))
	require.NoError(t, err)
	buf := make([]byte, 32)
	n := recvSome(t, srv, buf)
	assert.Equal(t, []byte("after restore"), buf[:n])

	require.NoError(t, restored.Verify())
}

func TestStash_PreservesTransportEOF(t *testing.T) {
	tb := newTestbed(t)
	cli, srv := tb.endpoints(t,
		tb.clientConfig(t, PeerAuthNone, nil),
		tb.serverConfig(t, PeerAuthNone),
		"example.test")
	driveHellos(t, cli, srv)

	// Latch transport EOF on the client, then stash and restore.
	tb.srvEnd.Close()
	buf := make([]byte, 8)
	_, _ = cli.Recv(buf)
	require.True(t, cli.AtTransportEOF())
	priorState := cli.State()

	tok := cli.Stash()
	restored := tb.provider.RestoreEndpoint(tok, tb.cliEnd.Read, tb.cliEnd.Write)
	assert.True(t, restored.AtTransportEOF())
	assert.Equal(t, priorState, restored.State())
}
