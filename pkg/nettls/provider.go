// Copyright 2026 Jeremy Hahn
// SPDX-License-Identifier: MIT

package nettls

import (
	"log/slog"
	"strconv"

	"github.com/jeremyhahn/go-nettls/pkg/engine"
)

// Provider is a concrete TLS provider bound to one native engine. It is
// the capability surface the rest of the world sees: credential and
// configuration builders, endpoint creation, resumption and restoration.
// A Provider is safe for concurrent use; the endpoints it creates are not.
type Provider struct {
	eng    engine.Engine
	logger *slog.Logger
}

// New wraps eng in a provider. If logger is nil, slog.Default() is used.
func New(eng engine.Engine, logger *slog.Logger) *Provider {
	if logger == nil {
		logger = slog.Default()
	}
	return &Provider{
		eng:    eng,
		logger: logger.With("component", "provider", "engine", eng.Name()),
	}
}

// Name identifies the provider by its engine, e.g. "gnutls".
func (p *Provider) Name() string {
	return p.eng.Name()
}

// Engine exposes the wrapped engine for callers that need implementation-
// specific capabilities beyond the provider surface.
func (p *Provider) Engine() engine.Engine {
	return p.eng
}

// ErrorMessage maps an error code to human-readable text: NETTLS_
// sentinel codes resolve locally, decimal engine codes defer to the
// engine.
func (p *Provider) ErrorMessage(code string) string {
	if msg, ok := sentinelMessages[code]; ok {
		return msg
	}
	if n, err := strconv.Atoi(code); err == nil {
		return p.eng.Strerror(engine.Code(n))
	}
	return "unknown error " + code
}
