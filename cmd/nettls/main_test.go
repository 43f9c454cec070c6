// Copyright 2026 Jeremy Hahn
// SPDX-License-Identifier: MIT

package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/jeremyhahn/go-nettls/pkg/engine/enginetest"
	"github.com/jeremyhahn/go-nettls/pkg/pemdec"
)

// createTestCertFile writes a CA-signed certificate PEM for CLI tests
// and returns its path together with the DER bytes.
func createTestCertFile(t *testing.T) (string, []byte) {
	t.Helper()

	ca, err := enginetest.NewCA("cli test root")
	require.NoError(t, err)
	id, err := ca.Issue("cli.example.test", []string{"cli.example.test"})
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "cert.pem")
	require.NoError(t, os.WriteFile(path, id.CertPEM(), 0o600))
	return path, id.CertDER
}

// createTestBundleFile writes a mixed PEM container: a certificate, an
// EC private key and a DH PARAMETERS block.
func createTestBundleFile(t *testing.T) string {
	t.Helper()

	ca, err := enginetest.NewCA("cli bundle root")
	require.NoError(t, err)
	id, err := ca.Issue("bundle.example.test", []string{"bundle.example.test"})
	require.NoError(t, err)
	keyPEM, err := id.KeyPEM()
	require.NoError(t, err)

	data := append(id.CertPEM(), keyPEM...)
	data = append(data, pemdec.Encode(pemdec.TagDHParameters, []byte{0x30, 0x01, 0x00})...)

	path := filepath.Join(t.TempDir(), "bundle.pem")
	require.NoError(t, os.WriteFile(path, data, 0o600))
	return path
}
