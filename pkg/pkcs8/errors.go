// Copyright 2026 Jeremy Hahn
// SPDX-License-Identifier: MIT

package pkcs8

import "errors"

var (
	// ErrMalformed indicates the input is not a well-formed
	// EncryptedPrivateKeyInfo structure.
	ErrMalformed = errors.New("pkcs8: malformed encrypted key")

	// ErrUnsupportedScheme indicates an encryption scheme or KDF outside
	// the supported PBES2 profile.
	ErrUnsupportedScheme = errors.New("pkcs8: unsupported encryption scheme")

	// ErrDecrypt indicates decryption failed, most commonly because of a
	// wrong password.
	ErrDecrypt = errors.New("pkcs8: decryption failed")
)
