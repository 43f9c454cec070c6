// Copyright 2026 Jeremy Hahn
// SPDX-License-Identifier: MIT

// Package pkcs8 decrypts PBES2-protected PKCS#8 private keys (RFC 5958 /
// RFC 8018) so that engines only ever see plain PKCS#8 DER. Supported key
// derivation is PBKDF2 with HMAC-SHA1, -SHA256, -SHA384 or -SHA512;
// supported encryption schemes are AES-128/192/256-CBC and DES-EDE3-CBC.
package pkcs8

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/des"
	"crypto/sha1"
	"crypto/sha256"
	"crypto/sha512"
	"encoding/asn1"
	"fmt"
	"hash"

	"golang.org/x/crypto/pbkdf2"
)

// Object identifiers from RFC 8018 and NIST CSOR.
var (
	oidPBES2  = asn1.ObjectIdentifier{1, 2, 840, 113549, 1, 5, 13}
	oidPBKDF2 = asn1.ObjectIdentifier{1, 2, 840, 113549, 1, 5, 12}

	oidHMACWithSHA1   = asn1.ObjectIdentifier{1, 2, 840, 113549, 2, 7}
	oidHMACWithSHA256 = asn1.ObjectIdentifier{1, 2, 840, 113549, 2, 9}
	oidHMACWithSHA384 = asn1.ObjectIdentifier{1, 2, 840, 113549, 2, 10}
	oidHMACWithSHA512 = asn1.ObjectIdentifier{1, 2, 840, 113549, 2, 11}

	oidAES128CBC  = asn1.ObjectIdentifier{2, 16, 840, 1, 101, 3, 4, 1, 2}
	oidAES192CBC  = asn1.ObjectIdentifier{2, 16, 840, 1, 101, 3, 4, 1, 22}
	oidAES256CBC  = asn1.ObjectIdentifier{2, 16, 840, 1, 101, 3, 4, 1, 42}
	oidDESEDE3CBC = asn1.ObjectIdentifier{1, 2, 840, 113549, 3, 7}
)

// encryptedPrivateKeyInfo is the outer RFC 5958 structure.
type encryptedPrivateKeyInfo struct {
	Algorithm     algorithmIdentifier
	EncryptedData []byte
}

type algorithmIdentifier struct {
	Algorithm  asn1.ObjectIdentifier
	Parameters asn1.RawValue `asn1:"optional"`
}

// pbes2Params ties the KDF to the encryption scheme.
type pbes2Params struct {
	KDF    algorithmIdentifier
	Scheme algorithmIdentifier
}

// pbkdf2Params carries salt, iteration count, optional explicit key length
// and the PRF (defaulting to HMAC-SHA1 when absent).
type pbkdf2Params struct {
	Salt       []byte
	Iterations int
	KeyLength  int                 `asn1:"optional"`
	PRF        algorithmIdentifier `asn1:"optional"`
}

// Decrypt decrypts a DER-encoded EncryptedPrivateKeyInfo and returns the
// plain PKCS#8 PrivateKeyInfo DER. A wrong password typically surfaces as
// ErrDecrypt via the padding check, though random corruption into valid
// padding cannot be ruled out; callers feed the result to an engine
// importer which performs the authoritative validation.
func Decrypt(der, password []byte) ([]byte, error) {
	var info encryptedPrivateKeyInfo
	if rest, err := asn1.Unmarshal(der, &info); err != nil || len(rest) > 0 {
		return nil, fmt.Errorf("%w: EncryptedPrivateKeyInfo", ErrMalformed)
	}
	if !info.Algorithm.Algorithm.Equal(oidPBES2) {
		return nil, fmt.Errorf("%w: %v", ErrUnsupportedScheme, info.Algorithm.Algorithm)
	}

	var params pbes2Params
	if _, err := asn1.Unmarshal(info.Algorithm.Parameters.FullBytes, &params); err != nil {
		return nil, fmt.Errorf("%w: PBES2 parameters", ErrMalformed)
	}
	if !params.KDF.Algorithm.Equal(oidPBKDF2) {
		return nil, fmt.Errorf("%w: KDF %v", ErrUnsupportedScheme, params.KDF.Algorithm)
	}

	var kdf pbkdf2Params
	if _, err := asn1.Unmarshal(params.KDF.Parameters.FullBytes, &kdf); err != nil {
		return nil, fmt.Errorf("%w: PBKDF2 parameters", ErrMalformed)
	}
	if kdf.Iterations <= 0 {
		return nil, fmt.Errorf("%w: iteration count %d", ErrMalformed, kdf.Iterations)
	}

	prf, err := prfByOID(kdf.PRF)
	if err != nil {
		return nil, err
	}

	keyLen, newBlock, err := schemeByOID(params.Scheme.Algorithm)
	if err != nil {
		return nil, err
	}
	if kdf.KeyLength > 0 {
		keyLen = kdf.KeyLength
	}

	var iv []byte
	if _, err := asn1.Unmarshal(params.Scheme.Parameters.FullBytes, &iv); err != nil {
		return nil, fmt.Errorf("%w: scheme IV", ErrMalformed)
	}

	key := pbkdf2.Key(password, kdf.Salt, kdf.Iterations, keyLen, prf)
	block, err := newBlock(key)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecrypt, err)
	}
	if len(iv) != block.BlockSize() {
		return nil, fmt.Errorf("%w: IV length %d", ErrMalformed, len(iv))
	}
	ct := info.EncryptedData
	if len(ct) == 0 || len(ct)%block.BlockSize() != 0 {
		return nil, fmt.Errorf("%w: ciphertext length %d", ErrMalformed, len(ct))
	}

	pt := make([]byte, len(ct))
	cipher.NewCBCDecrypter(block, iv).CryptBlocks(pt, ct)

	return stripPadding(pt, block.BlockSize())
}

// prfByOID resolves the PBKDF2 PRF. An absent PRF means HMAC-SHA1.
func prfByOID(prf algorithmIdentifier) (func() hash.Hash, error) {
	switch {
	case prf.Algorithm == nil, prf.Algorithm.Equal(oidHMACWithSHA1):
		return sha1.New, nil
	case prf.Algorithm.Equal(oidHMACWithSHA256):
		return sha256.New, nil
	case prf.Algorithm.Equal(oidHMACWithSHA384):
		return sha512.New384, nil
	case prf.Algorithm.Equal(oidHMACWithSHA512):
		return sha512.New, nil
	}
	return nil, fmt.Errorf("%w: PRF %v", ErrUnsupportedScheme, prf.Algorithm)
}

// schemeByOID resolves the encryption scheme to its default key length and
// block cipher constructor.
func schemeByOID(oid asn1.ObjectIdentifier) (int, func([]byte) (cipher.Block, error), error) {
	switch {
	case oid.Equal(oidAES128CBC):
		return 16, aes.NewCipher, nil
	case oid.Equal(oidAES192CBC):
		return 24, aes.NewCipher, nil
	case oid.Equal(oidAES256CBC):
		return 32, aes.NewCipher, nil
	case oid.Equal(oidDESEDE3CBC):
		return 24, des.NewTripleDESCipher, nil
	}
	return 0, nil, fmt.Errorf("%w: cipher %v", ErrUnsupportedScheme, oid)
}

// stripPadding validates and removes PKCS#7 block padding.
func stripPadding(pt []byte, blockSize int) ([]byte, error) {
	n := int(pt[len(pt)-1])
	if n == 0 || n > blockSize || n > len(pt) {
		return nil, ErrDecrypt
	}
	for _, b := range pt[len(pt)-n:] {
		if int(b) != n {
			return nil, ErrDecrypt
		}
	}
	return pt[:len(pt)-n], nil
}
