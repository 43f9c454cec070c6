// Copyright 2026 Jeremy Hahn
// SPDX-License-Identifier: MIT

// Package dane provides RFC 6698 DANE/TLSA verification as a ready-made
// peer-verification hook for TLS endpoints. A resolver looks up TLSA
// records for the peer's name and port, and the hook matches the peer's
// presented certificate chain against them after the endpoint's own chain
// validation has run.
package dane

import "errors"

// DNS lookup errors.
var (
	// ErrNoTLSARecords indicates no TLSA records exist for the queried name.
	ErrNoTLSARecords = errors.New("dane: no TLSA records found")

	// ErrDNSLookupFailed indicates the TLSA query itself failed.
	ErrDNSLookupFailed = errors.New("dane: DNS lookup failed")

	// ErrDNSSECRequired indicates DNSSEC validation was required but the
	// response lacked the Authenticated Data flag.
	ErrDNSSECRequired = errors.New("dane: DNSSEC validation required but AD flag not set")
)

// Verification errors.
var (
	// ErrTLSAVerificationFailed indicates no presented certificate
	// matched any TLSA record.
	ErrTLSAVerificationFailed = errors.New("dane: TLSA verification failed")

	// ErrUnsupportedSelector indicates an unknown TLSA selector value.
	ErrUnsupportedSelector = errors.New("dane: unsupported TLSA selector")

	// ErrUnsupportedMatching indicates an unknown TLSA matching type.
	ErrUnsupportedMatching = errors.New("dane: unsupported TLSA matching type")
)

// Input validation errors.
var (
	// ErrInvalidCertificate indicates an empty or unparsable certificate.
	ErrInvalidCertificate = errors.New("dane: invalid certificate")

	// ErrInvalidHostname indicates an empty or malformed hostname.
	ErrInvalidHostname = errors.New("dane: invalid hostname")

	// ErrInvalidPort indicates port number zero.
	ErrInvalidPort = errors.New("dane: invalid port")

	// ErrResolverConfig indicates an invalid resolver configuration.
	ErrResolverConfig = errors.New("dane: invalid resolver configuration")
)
