// Copyright 2026 Jeremy Hahn
// SPDX-License-Identifier: MIT

package dane

import (
	"encoding/hex"
	"fmt"
)

// GenerateRecord formats a TLSA record for a DER certificate as a DNS
// zone file line.
func GenerateRecord(certDER []byte, hostname string, port uint16, usage, selector, matchingType uint8) (*RecordString, error) {
	if hostname == "" {
		return nil, ErrInvalidHostname
	}
	if port == 0 {
		return nil, ErrInvalidPort
	}
	data, err := AssociationData(certDER, selector, matchingType)
	if err != nil {
		return nil, err
	}

	name := tlsaName(hostname, port)
	hexData := hex.EncodeToString(data)
	return &RecordString{
		Name:         name,
		Usage:        usage,
		Selector:     selector,
		MatchingType: matchingType,
		HexData:      hexData,
		ZoneLine:     fmt.Sprintf("%s IN TLSA %d %d %d %s", name, usage, selector, matchingType, hexData),
	}, nil
}

// GenerateAnchorRecords formats the four common DANE-TA variants (both
// selectors, SHA-256 and SHA-512) so the operator can publish whichever
// fits their zone tooling.
func GenerateAnchorRecords(certDER []byte, hostname string, port uint16) ([]*RecordString, error) {
	params := []struct{ selector, matching uint8 }{
		{SelectorFullCert, MatchingSHA256},
		{SelectorSPKI, MatchingSHA256},
		{SelectorFullCert, MatchingSHA512},
		{SelectorSPKI, MatchingSHA512},
	}
	records := make([]*RecordString, 0, len(params))
	for _, p := range params {
		rec, err := GenerateRecord(certDER, hostname, port, UsageDANETA, p.selector, p.matching)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, nil
}
