// Copyright 2026 Jeremy Hahn
// SPDX-License-Identifier: MIT

package nettls

import (
	"encoding/json"
	"fmt"

	"github.com/jeremyhahn/go-nettls/pkg/engine"
)

// sessionEnvelopeVersion versions the serialized-session format. Bump it
// on incompatible changes; decode rejects unknown versions instead of
// guessing.
const sessionEnvelopeVersion = 1

// sessionEnvelope is the self-describing wrapper persisted by the
// session cache. The engine's own blob loses the certificate this side
// presented, so the envelope carries it out of band and the retrieve
// path reinstates it on the endpoint.
type sessionEnvelope struct {
	Version int    `json:"version"`
	Session []byte `json:"session"`
	OurCert []byte `json:"our_cert,omitempty"`
}

// encodeSessionEnvelope wraps the engine blob and local certificate into
// one opaque value.
func encodeSessionEnvelope(session, ourCert []byte) ([]byte, error) {
	return json.Marshal(&sessionEnvelope{
		Version: sessionEnvelopeVersion,
		Session: session,
		OurCert: ourCert,
	})
}

// decodeSessionEnvelope unwraps a value produced by
// encodeSessionEnvelope.
func decodeSessionEnvelope(blob []byte) (*sessionEnvelope, error) {
	var env sessionEnvelope
	if err := json.Unmarshal(blob, &env); err != nil {
		return nil, fmt.Errorf("nettls: session envelope: %w", err)
	}
	if env.Version != sessionEnvelopeVersion {
		return nil, fmt.Errorf("nettls: session envelope: unsupported version %d", env.Version)
	}
	return &env, nil
}

// SessionCache is the store the session-cache adapter persists into.
// Retrieve fails with an error when the key is unknown.
type SessionCache struct {
	Store    func(key, data []byte) error
	Remove   func(key []byte) error
	Retrieve func(key []byte) ([]byte, error)
}

// SetSessionCache installs cache on the endpoint's session. Stored
// entries are self-describing envelopes that carry the certificate this
// endpoint presented alongside the engine's session blob; retrieval
// reinstates that certificate on the endpoint before handing the engine
// its blob back, so a resumed endpoint knows its identity before any
// handshake.
func (ep *Endpoint) SetSessionCache(cache SessionCache) {
	ep.sess.SetCacheCallbacks(engine.CacheCallbacks{
		Store: func(key, data []byte) error {
			if !ep.ourCertKnown {
				ep.captureOurCert()
			}
			blob, err := encodeSessionEnvelope(data, ep.ourCert)
			if err != nil {
				return err
			}
			return cache.Store(key, blob)
		},
		Remove: cache.Remove,
		Retrieve: func(key []byte) ([]byte, error) {
			blob, err := cache.Retrieve(key)
			if err != nil {
				return nil, err
			}
			env, err := decodeSessionEnvelope(blob)
			if err != nil {
				return nil, err
			}
			ep.ourCert = env.OurCert
			ep.ourCertKnown = true
			return env.Session, nil
		},
	})
}
