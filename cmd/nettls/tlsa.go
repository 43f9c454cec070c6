// Copyright 2026 Jeremy Hahn
// SPDX-License-Identifier: MIT

package main

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jeremyhahn/go-nettls/pkg/dane"
	"github.com/jeremyhahn/go-nettls/pkg/pemdec"
)

// tlsaCmd emits DANE/TLSA zone file records for a certificate, so the
// operator can publish them alongside the service.
var tlsaCmd = &cobra.Command{
	Use:   "tlsa",
	Short: "Emit TLSA zone file records for a certificate",
	Long: `Compute DANE/TLSA records for the first certificate in a PEM file and
print them as DNS zone file lines.

By default a single DANE-EE SPKI SHA-256 record (3 1 1) is produced.
With --anchor, the four common DANE-TA variants are produced instead,
covering both selectors and both hash algorithms.`,
	RunE: runTLSA,
}

func init() {
	tlsaCmd.Flags().String("cert-file", "", "path to the PEM certificate file (required)")
	tlsaCmd.Flags().String("hostname", "", "service hostname (required)")
	tlsaCmd.Flags().Uint16("port", 443, "service TCP port")
	tlsaCmd.Flags().Bool("anchor", false, "emit DANE-TA trust anchor records instead of DANE-EE")
}

// runTLSA loads the certificate and prints the requested records.
func runTLSA(cmd *cobra.Command, args []string) error {
	certFile, _ := cmd.Flags().GetString("cert-file")
	hostname, _ := cmd.Flags().GetString("hostname")
	port, _ := cmd.Flags().GetUint16("port")
	anchor, _ := cmd.Flags().GetBool("anchor")

	if certFile == "" {
		return fmt.Errorf("%w: --cert-file is required", ErrInvalidInput)
	}
	if hostname == "" {
		return fmt.Errorf("%w: --hostname is required", ErrInvalidInput)
	}

	blocks, err := pemdec.DecodeFile(certFile, pemdec.CertificateTags, false)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidInput, err)
	}
	certDER := blocks[0].DER
	slog.Debug("loaded certificate", "file", certFile, "bytes", len(certDER))

	var records []*dane.RecordString
	if anchor {
		records, err = dane.GenerateAnchorRecords(certDER, hostname, port)
	} else {
		var rec *dane.RecordString
		rec, err = dane.GenerateRecord(certDER, hostname, port,
			dane.UsageDANEEE, dane.SelectorSPKI, dane.MatchingSHA256)
		records = []*dane.RecordString{rec}
	}
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidInput, err)
	}

	var b strings.Builder
	for _, rec := range records {
		b.WriteString(rec.ZoneLine)
		b.WriteByte('\n')
	}
	return writeOutput([]byte(b.String()))
}
