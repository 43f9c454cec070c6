// Copyright 2026 Jeremy Hahn
// SPDX-License-Identifier: MIT

package spkipin

import (
	"crypto/sha256"
	"crypto/x509"
	"encoding/hex"
	"fmt"
	"log/slog"
	"strings"

	"github.com/jeremyhahn/go-nettls/pkg/nettls"
)

// ComputePin computes the hex-encoded SHA-256 hash of a DER
// certificate's SubjectPublicKeyInfo.
func ComputePin(certDER []byte) (string, error) {
	cert, err := x509.ParseCertificate(certDER)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrNoCertificates, err)
	}
	hash := sha256.Sum256(cert.RawSubjectPublicKeyInfo)
	return hex.EncodeToString(hash[:]), nil
}

// ParsePin validates and normalizes a hex-encoded SHA-256 pin.
func ParsePin(pin string) (string, error) {
	if pin == "" {
		return "", ErrNoPinConfigured
	}
	pin = strings.ToLower(pin)
	raw, err := hex.DecodeString(pin)
	if err != nil || len(raw) != sha256.Size {
		return "", fmt.Errorf("%w: expected 64 hex chars, got %q", ErrInvalidPinFormat, pin)
	}
	return pin, nil
}

// VerifyChain reports whether at least one certificate of a DER chain
// matches the expected pin.
func VerifyChain(chain [][]byte, expectedPin string) error {
	normalized, err := ParsePin(expectedPin)
	if err != nil {
		return err
	}
	if len(chain) == 0 {
		return ErrNoCertificates
	}
	for _, certDER := range chain {
		pin, err := ComputePin(certDER)
		if err != nil {
			continue
		}
		if pin == normalized {
			return nil
		}
	}
	return ErrSPKIPinMismatch
}

// NewVerifyHook returns a configuration verify hook that accepts the
// peer only when its presented chain carries a key matching the pin. It
// runs after the endpoint's chain validation, so pinning tightens rather
// than replaces the trust decision; pair it with PeerNameUnchecked and
// an empty trust set for pure trust-on-first-use setups.
func NewVerifyHook(pin string, logger *slog.Logger) (nettls.VerifyFunc, error) {
	normalized, err := ParsePin(pin)
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "spki_hook")

	return func(ep *nettls.Endpoint) bool {
		creds, err := ep.PeerCredsList()
		if err != nil || len(creds) == 0 {
			logger.Debug("peer presented no chain to pin against")
			return false
		}
		chain := make([][]byte, len(creds))
		for i, c := range creds {
			chain[i] = c.X509
		}
		if err := VerifyChain(chain, normalized); err != nil {
			logger.Debug("SPKI pin mismatch", "error", err)
			return false
		}
		return true
	}, nil
}
