// Copyright 2026 Jeremy Hahn
// SPDX-License-Identifier: MIT

package nettls

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeremyhahn/go-nettls/pkg/engine"
	"github.com/jeremyhahn/go-nettls/pkg/engine/enginetest"
)

// memCache is a map-backed session store.
type memCache struct {
	entries map[string][]byte
	removed []string
}

func newMemCache() *memCache {
	return &memCache{entries: make(map[string][]byte)}
}

func (m *memCache) cache() SessionCache {
	return SessionCache{
		Store: func(key, data []byte) error {
			m.entries[string(key)] = data
			return nil
		},
		Remove: func(key []byte) error {
			m.removed = append(m.removed, string(key))
			delete(m.entries, string(key))
			return nil
		},
		Retrieve: func(key []byte) ([]byte, error) {
			data, ok := m.entries[string(key)]
			if !ok {
				return nil, errors.New("not found")
			}
			return data, nil
		},
	}
}

func TestSessionCache_ResumptionRestoresOurCert(t *testing.T) {
	tb := newTestbed(t)
	store := newMemCache()
	cliCfg := tb.clientConfig(t, PeerAuthRequired, nil)
	srvCfg := tb.serverConfig(t, PeerAuthNone)

	// First connection: full handshake, session stored.
	cli1, srv1 := tb.endpoints(t, cliCfg, srvCfg, "example.test")
	srv1.SetSessionCache(store.cache())
	driveHellos(t, cli1, srv1)
	require.Len(t, store.entries, 1)

	sessionData, err := cli1.SessionData()
	require.NoError(t, err)
	id1, err := cli1.SessionID()
	require.NoError(t, err)

	// Second connection on a fresh transport: the client resumes, the
	// server restores its own certificate from the cache envelope even
	// though the engine does not re-emit it.
	cliEnd2, srvEnd2 := enginetest.NewPipe()
	cli2, err := tb.provider.ResumeClient(cliEnd2.Read, cliEnd2.Write, "example.test", cliCfg, sessionData)
	require.NoError(t, err)
	srv2, err := tb.provider.NewEndpoint(engine.RoleServer, srvEnd2.Read, srvEnd2.Write, "", srvCfg)
	require.NoError(t, err)
	srv2.SetSessionCache(store.cache())

	driveHellos(t, cli2, srv2)

	assert.Equal(t, tb.server.CertDER, srv2.EndpointCreds().X509,
		"our_cert must survive resumption through the cache envelope")

	id2, err := cli2.SessionID()
	require.NoError(t, err)
	assert.Equal(t, id1, id2, "abbreviated handshake resumes the same session")

	// The resumed client still knows the server identity and verifies.
	peer, err := cli2.PeerCreds()
	require.NoError(t, err)
	assert.Equal(t, tb.server.CertDER, peer.X509)
	require.NoError(t, cli2.Verify())

	// Data flows on the resumed session.
	_, err = cli2.Send([]byte("resumed"))
	require.NoError(t, err)
	buf := make([]byte, 16)
	n := recvSome(t, srv2, buf)
	assert.Equal(t, []byte("resumed"), buf[:n])
}

func TestSessionEnvelope_RoundTrip(t *testing.T) {
	blob := []byte("opaque engine state")
	cert := []byte{0x30, 0x82, 0x01, 0x02}

	enc, err := encodeSessionEnvelope(blob, cert)
	require.NoError(t, err)

	env, err := decodeSessionEnvelope(enc)
	require.NoError(t, err)
	assert.Equal(t, blob, env.Session)
	assert.Equal(t, cert, env.OurCert)
	assert.Equal(t, sessionEnvelopeVersion, env.Version)
}

func TestSessionEnvelope_AnonymousRoundTrip(t *testing.T) {
	enc, err := encodeSessionEnvelope([]byte("state"), nil)
	require.NoError(t, err)

	env, err := decodeSessionEnvelope(enc)
	require.NoError(t, err)
	assert.Empty(t, env.OurCert)
}

func TestSessionEnvelope_RejectsUnknownVersion(t *testing.T) {
	_, err := decodeSessionEnvelope([]byte(`{"version":99,"session":"AA=="}`))
	assert.Error(t, err)

	_, err = decodeSessionEnvelope([]byte("not json"))
	assert.Error(t, err)
}
