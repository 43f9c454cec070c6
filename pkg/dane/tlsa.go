// Copyright 2026 Jeremy Hahn
// SPDX-License-Identifier: MIT

package dane

import (
	"crypto/sha256"
	"crypto/sha512"
	"crypto/subtle"
	"crypto/x509"
)

// selectData extracts the certificate bytes a TLSA selector refers to.
func selectData(cert *x509.Certificate, selector uint8) ([]byte, error) {
	switch selector {
	case SelectorFullCert:
		return cert.Raw, nil
	case SelectorSPKI:
		return cert.RawSubjectPublicKeyInfo, nil
	}
	return nil, ErrUnsupportedSelector
}

// matchData reduces selected bytes to the form stored in a TLSA record.
func matchData(data []byte, matchingType uint8) ([]byte, error) {
	switch matchingType {
	case MatchingExact:
		return data, nil
	case MatchingSHA256:
		h := sha256.Sum256(data)
		return h[:], nil
	case MatchingSHA512:
		h := sha512.Sum512(data)
		return h[:], nil
	}
	return nil, ErrUnsupportedMatching
}

// AssociationData computes the TLSA Certificate Association Data for a
// DER certificate under the given selector and matching type.
func AssociationData(certDER []byte, selector, matchingType uint8) ([]byte, error) {
	if len(certDER) == 0 {
		return nil, ErrInvalidCertificate
	}
	cert, err := x509.ParseCertificate(certDER)
	if err != nil {
		return nil, ErrInvalidCertificate
	}
	selected, err := selectData(cert, selector)
	if err != nil {
		return nil, err
	}
	return matchData(selected, matchingType)
}

// matchRecord reports whether one DER certificate satisfies one record.
func matchRecord(certDER []byte, record *TLSARecord) bool {
	computed, err := AssociationData(certDER, record.Selector, record.MatchingType)
	if err != nil {
		return false
	}
	return subtle.ConstantTimeCompare(computed, record.CertData) == 1
}

// VerifyChain matches a presented chain (leaf first, DER encoded)
// against a TLSA record set. End-entity usages (PKIX-EE, DANE-EE) are
// satisfied only by the leaf; trust-anchor usages (PKIX-TA, DANE-TA) by
// any certificate of the chain. PKIX chain validation itself is the
// caller's concern. The first satisfied record wins.
func VerifyChain(chain [][]byte, records []*TLSARecord) error {
	if len(chain) == 0 {
		return ErrInvalidCertificate
	}
	if len(records) == 0 {
		return ErrNoTLSARecords
	}
	for _, record := range records {
		if record == nil {
			continue
		}
		switch record.Usage {
		case UsageServiceCert, UsageDANEEE:
			if matchRecord(chain[0], record) {
				return nil
			}
		case UsageCAConstraint, UsageDANETA:
			for _, certDER := range chain {
				if matchRecord(certDER, record) {
					return nil
				}
			}
		}
	}
	return ErrTLSAVerificationFailed
}
