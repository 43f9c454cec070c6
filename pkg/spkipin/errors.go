// Copyright 2026 Jeremy Hahn
// SPDX-License-Identifier: MIT

// Package spkipin provides SHA-256 Subject Public Key Info pinning as a
// peer-verification hook for TLS endpoints. Pins are distributed
// out-of-band and constrain which keys a peer may present, independent of
// the chain of trust.
package spkipin

import "errors"

var (
	// ErrSPKIPinMismatch is returned when no certificate in the chain matches the expected SPKI pin.
	ErrSPKIPinMismatch = errors.New("spkipin: SPKI pin mismatch")

	// ErrNoPinConfigured is returned when the SPKI pin is empty or not provided.
	ErrNoPinConfigured = errors.New("spkipin: no SPKI pin configured")

	// ErrNoCertificates is returned when no certificates are presented during verification.
	ErrNoCertificates = errors.New("spkipin: no certificates presented")

	// ErrInvalidPinFormat is returned when the SPKI pin is not valid hex or wrong length.
	ErrInvalidPinFormat = errors.New("spkipin: invalid pin format")
)
