// Copyright 2026 Jeremy Hahn
// SPDX-License-Identifier: MIT

package main

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/jeremyhahn/go-nettls/pkg/pemdec"
	"github.com/jeremyhahn/go-nettls/pkg/spkipin"
)

// spkiCmd computes the SPKI SHA-256 pin of a certificate, for
// distribution to peers that verify with an SPKI pinning hook.
var spkiCmd = &cobra.Command{
	Use:   "spki",
	Short: "Show the SPKI pin (SHA-256) of a PEM certificate file",
	Long: `Compute and display the SHA-256 hash of the SubjectPublicKeyInfo (SPKI)
from the first certificate in a PEM file. Peers configured with an SPKI
pinning verification hook accept only chains carrying this key.`,
	RunE: runSPKI,
}

func init() {
	spkiCmd.Flags().String("cert-file", "", "path to PEM certificate file (required)")
	rootCmd.AddCommand(spkiCmd)
}

// runSPKI prints the pin of the file's first certificate.
func runSPKI(cmd *cobra.Command, args []string) error {
	certFile, _ := cmd.Flags().GetString("cert-file")
	if certFile == "" {
		return fmt.Errorf("%w: --cert-file is required", ErrInvalidInput)
	}

	blocks, err := pemdec.DecodeFile(certFile, pemdec.CertificateTags, false)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrFileOperation, err)
	}
	pin, err := spkipin.ComputePin(blocks[0].DER)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidInput, err)
	}
	slog.Debug("computed SPKI pin", "file", certFile)
	return writeOutput([]byte(pin + "\n"))
}
