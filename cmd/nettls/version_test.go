// Copyright 2026 Jeremy Hahn
// SPDX-License-Identifier: MIT

package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolveVersion_FromVariable(t *testing.T) {
	oldVersion := version
	version = "1.2.3"
	defer func() { version = oldVersion }()

	assert.Equal(t, "1.2.3", resolveVersion())
}

func TestResolveVersion_FromFile(t *testing.T) {
	oldVersion := version
	version = ""
	defer func() { version = oldVersion }()

	tmpDir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(tmpDir, "VERSION"), []byte("2.3.4\n"), 0644))

	oldWd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(tmpDir))
	defer os.Chdir(oldWd)

	assert.Equal(t, "2.3.4", resolveVersion())
}

func TestResolveVersion_Unknown(t *testing.T) {
	oldVersion := version
	version = ""
	defer func() { version = oldVersion }()

	tmpDir := t.TempDir()
	oldWd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(tmpDir))
	defer os.Chdir(oldWd)

	assert.Equal(t, "unknown", resolveVersion())
}
