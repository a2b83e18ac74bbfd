// Copyright 2018 The klaytn Authors
// This file is part of the klaytn library.
//
// The klaytn library is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// The klaytn library is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with the klaytn library. If not, see <http://www.gnu.org/licenses/>.

// Package cryptoutil wraps the cryptographic primitives the ledger core
// treats as an external collaborator: hashing, signing/verification and
// base64/hex decoding. Nothing here carries ledger business logic.
package cryptoutil

import (
	"crypto/ed25519"
	"encoding/base64"
	"encoding/hex"

	"golang.org/x/crypto/sha3"
)

// KeccakHex hashes the concatenation of parts with Keccak-256 and returns
// lowercase hex, matching the merkle/id hashing scheme used throughout the
// ledger (id = hash(previousId ‖ hash ‖ ...)).
func KeccakHex(parts ...string) string {
	h := sha3.NewLegacyKeccak256()
	for _, p := range parts {
		h.Write([]byte(p))
	}
	return hex.EncodeToString(h.Sum(nil))
}

// KeccakBytesHex is KeccakHex over raw byte slices, used when hashing
// decoded key material rather than hex/text fields.
func KeccakBytesHex(parts ...[]byte) string {
	h := sha3.NewLegacyKeccak256()
	for _, p := range parts {
		h.Write(p)
	}
	return hex.EncodeToString(h.Sum(nil))
}

// DecodeBase64 decodes a standard base64 string, as used for publicKey and
// signature fields on the wire.
func DecodeBase64(s string) ([]byte, error) {
	return base64.StdEncoding.DecodeString(s)
}

// DecodeHex decodes a hex string, tolerating an optional "0x" prefix.
func DecodeHex(s string) ([]byte, error) {
	if len(s) >= 2 && s[0] == '0' && (s[1] == 'x' || s[1] == 'X') {
		s = s[2:]
	}
	return hex.DecodeString(s)
}

// OwnerFromPublicKey derives the canonical owner id for a base64-encoded
// public key: owner = hash(decode(publicKey)).
func OwnerFromPublicKey(publicKeyB64 string) (string, error) {
	raw, err := DecodeBase64(publicKeyB64)
	if err != nil {
		return "", err
	}
	return KeccakBytesHex(raw), nil
}

// Verify checks an ed25519 signature over message, given a base64-encoded
// public key and base64-encoded signature.
func Verify(publicKeyB64, signatureB64 string, message []byte) (bool, error) {
	pub, err := DecodeBase64(publicKeyB64)
	if err != nil {
		return false, err
	}
	sig, err := DecodeBase64(signatureB64)
	if err != nil {
		return false, err
	}
	if len(pub) != ed25519.PublicKeySize || len(sig) != ed25519.SignatureSize {
		return false, nil
	}
	return ed25519.Verify(ed25519.PublicKey(pub), message, sig), nil
}

// Sign signs message with an ed25519 private key and returns base64.
func Sign(privateKey ed25519.PrivateKey, message []byte) string {
	sig := ed25519.Sign(privateKey, message)
	return base64.StdEncoding.EncodeToString(sig)
}
