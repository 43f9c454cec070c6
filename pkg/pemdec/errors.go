// Copyright 2026 Jeremy Hahn
// SPDX-License-Identifier: MIT

package pemdec

import "errors"

var (
	// ErrParse indicates the input could not be read or its armor is
	// malformed.
	ErrParse = errors.New("pemdec: parse error")

	// ErrEmptyPEM indicates decoding produced no accepted blocks and the
	// caller did not opt into empty results.
	ErrEmptyPEM = errors.New("pemdec: no matching PEM blocks")
)
