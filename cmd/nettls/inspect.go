// Copyright 2026 Jeremy Hahn
// SPDX-License-Identifier: MIT

package main

import (
	"crypto/x509"
	"fmt"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jeremyhahn/go-nettls/pkg/pemdec"
)

// inspectCmd lists the blocks of a PEM container with a summary per
// block: certificates get subject, issuer, SAN and validity; keys and
// other kinds get their armor tag.
var inspectCmd = &cobra.Command{
	Use:   "inspect",
	Short: "List and describe the blocks of a PEM container",
	Long: `Decode a PEM container and describe each block it holds.

Certificate blocks are parsed and summarized with subject, issuer,
subject alternative names and validity period. Every other block, of
any armor tag, is listed by its tag and DER size.`,
	RunE: runInspect,
}

func init() {
	inspectCmd.Flags().String("file", "", "path to the PEM container (required)")
}

// runInspect decodes the container and renders one summary per block.
func runInspect(cmd *cobra.Command, args []string) error {
	path, _ := cmd.Flags().GetString("file")
	if path == "" {
		return fmt.Errorf("%w: --file is required", ErrInvalidInput)
	}

	blocks, err := pemdec.DecodeFile(path, nil, false)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInspectFailed, err)
	}
	slog.Debug("decoded container", "path", path, "blocks", len(blocks))

	var b strings.Builder
	fmt.Fprintf(&b, "%s: %d block(s)\n", path, len(blocks))
	for i, blk := range blocks {
		fmt.Fprintf(&b, "[%d] %s (%d bytes DER)\n", i, blk.Tag, len(blk.DER))
		if blk.Tag == pemdec.TagCertificate || blk.Tag == pemdec.TagX509Certificate {
			describeCertificate(&b, blk.DER)
		}
	}
	return writeOutput([]byte(b.String()))
}

// describeCertificate appends a short human summary of a DER certificate.
func describeCertificate(b *strings.Builder, der []byte) {
	cert, err := x509.ParseCertificate(der)
	if err != nil {
		fmt.Fprintf(b, "    (unparsable certificate: %v)\n", err)
		return
	}
	fmt.Fprintf(b, "    subject: %s\n", cert.Subject)
	fmt.Fprintf(b, "    issuer:  %s\n", cert.Issuer)
	if len(cert.DNSNames) > 0 {
		fmt.Fprintf(b, "    san:     %s\n", strings.Join(cert.DNSNames, ", "))
	}
	fmt.Fprintf(b, "    valid:   %s to %s\n",
		cert.NotBefore.Format("2006-01-02"), cert.NotAfter.Format("2006-01-02"))
	if cert.IsCA {
		fmt.Fprintf(b, "    ca:      true\n")
	}
}
