// Copyright 2026 Jeremy Hahn
// SPDX-License-Identifier: MIT

package dane

import "time"

// Certificate Usage values, RFC 6698 section 2.1.1.
const (
	// UsageCAConstraint (PKIX-TA) constrains the CA; the chain must also
	// pass PKIX validation, which the endpoint performs separately.
	UsageCAConstraint uint8 = 0

	// UsageServiceCert (PKIX-EE) pins the end-entity certificate on top
	// of PKIX validation.
	UsageServiceCert uint8 = 1

	// UsageDANETA (DANE-TA) asserts a trust anchor anywhere in the
	// presented chain.
	UsageDANETA uint8 = 2

	// UsageDANEEE (DANE-EE) pins the end-entity certificate directly.
	UsageDANEEE uint8 = 3
)

// Selector values, RFC 6698 section 2.1.2.
const (
	// SelectorFullCert matches against the full DER certificate.
	SelectorFullCert uint8 = 0

	// SelectorSPKI matches against the DER SubjectPublicKeyInfo.
	SelectorSPKI uint8 = 1
)

// Matching Type values, RFC 6698 section 2.1.3.
const (
	// MatchingExact compares the selected data byte for byte.
	MatchingExact uint8 = 0

	// MatchingSHA256 compares SHA-256 digests of the selected data.
	MatchingSHA256 uint8 = 1

	// MatchingSHA512 compares SHA-512 digests of the selected data.
	MatchingSHA512 uint8 = 2
)

// TLSARecord is one parsed TLSA resource record.
type TLSARecord struct {
	// Usage is the Certificate Usage field (0-3).
	Usage uint8

	// Selector is the Selector field (0-1).
	Selector uint8

	// MatchingType is the Matching Type field (0-2).
	MatchingType uint8

	// CertData is the Certificate Association Data: a digest or the raw
	// selected bytes, depending on MatchingType.
	CertData []byte
}

// ResolverConfig configures the TLSA resolver.
type ResolverConfig struct {
	// Server is the DNS resolver address (e.g. "9.9.9.9:53"). Empty
	// selects the system resolver from /etc/resolv.conf.
	Server string

	// UseTLS switches the transport to DNS-over-TLS on port 853.
	UseTLS bool

	// TLSServerName is the SNI value for DNS-over-TLS connections.
	TLSServerName string

	// RequireAD demands the Authenticated Data flag in responses,
	// i.e. resolver-validated DNSSEC.
	RequireAD bool

	// Timeout bounds one DNS query. Zero means 5 seconds.
	Timeout time.Duration
}

// RecordString is a TLSA record formatted for a DNS zone file.
type RecordString struct {
	// Name is the DNS owner name, e.g. "_443._tcp.example.test.".
	Name string

	// Usage, Selector and MatchingType are the record parameters.
	Usage        uint8
	Selector     uint8
	MatchingType uint8

	// HexData is the hex-encoded association data.
	HexData string

	// ZoneLine is the complete zone file line.
	ZoneLine string
}
