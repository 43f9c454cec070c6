// Copyright 2026 Jeremy Hahn
// SPDX-License-Identifier: MIT

package dane

import (
	"context"
	"log/slog"
	"time"

	"github.com/jeremyhahn/go-nettls/pkg/nettls"
)

// HookConfig configures a DANE verification hook.
type HookConfig struct {
	// Resolver looks up the TLSA records. Required.
	Resolver TLSAResolver

	// Hostname and Port identify the service whose records are queried.
	Hostname string
	Port     uint16

	// Timeout bounds the lookup performed inside the hook. Zero means
	// 5 seconds.
	Timeout time.Duration

	// Logger for structured logging. If nil, slog.Default() is used.
	Logger *slog.Logger
}

// NewVerifyHook returns a configuration verify hook that checks the
// peer's presented chain against the service's TLSA records. The hook
// runs after the endpoint's chain validation and name check, so DANE
// acts as an additional constraint, not a replacement.
func NewVerifyHook(cfg *HookConfig) (nettls.VerifyFunc, error) {
	if cfg == nil || cfg.Resolver == nil {
		return nil, ErrResolverConfig
	}
	if cfg.Hostname == "" {
		return nil, ErrInvalidHostname
	}
	if cfg.Port == 0 {
		return nil, ErrInvalidPort
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "dane_hook", "hostname", cfg.Hostname, "port", cfg.Port)

	return func(ep *nettls.Endpoint) bool {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()

		records, err := cfg.Resolver.LookupTLSA(ctx, cfg.Hostname, cfg.Port)
		if err != nil {
			logger.Debug("TLSA lookup failed", "error", err)
			return false
		}

		creds, err := ep.PeerCredsList()
		if err != nil || len(creds) == 0 {
			logger.Debug("peer presented no chain to match")
			return false
		}
		chain := make([][]byte, len(creds))
		for i, c := range creds {
			chain[i] = c.X509
		}

		if err := VerifyChain(chain, records); err != nil {
			logger.Debug("TLSA match failed", "error", err, "records", len(records))
			return false
		}
		return true
	}, nil
}
