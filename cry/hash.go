// Copyright (c) 2025 The Norsh developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

// Package cry hosts the hashing, key-decoding and signing primitives shared
// by the ledger services. Record ids and the merkle tree use SHA3-256; the
// proof-of-work loop uses SHA-256. Both render as lowercase hex.
package cry

import (
	"crypto/sha256"
	"encoding/hex"

	"golang.org/x/crypto/sha3"
)

// Sha3Hex returns the lowercase hex SHA3-256 digest of data.
func Sha3Hex(data []byte) string {
	sum := sha3.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// Sha3HexString hashes the UTF-8 bytes of s.
func Sha3HexString(s string) string {
	return Sha3Hex([]byte(s))
}

// Sha256Hex returns the lowercase hex SHA-256 digest of data.
func Sha256Hex(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// Sha256HexString hashes the UTF-8 bytes of s.
func Sha256HexString(s string) string {
	return Sha256Hex([]byte(s))
}
