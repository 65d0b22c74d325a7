// Copyright (c) 2025 The Norsh developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package cry

import (
	"encoding/base64"
	"encoding/hex"
	"strings"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	"github.com/pkg/errors"
)

// DecodeKey accepts a key encoded as hex (with or without 0x) or standard
// base64 and returns the raw bytes. Envelopes arrive from clients in either
// form, so every key field goes through here.
func DecodeKey(s string) ([]byte, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, errors.New("empty key")
	}
	h := strings.TrimPrefix(s, "0x")
	if b, err := hex.DecodeString(h); err == nil {
		return b, nil
	}
	if b, err := base64.StdEncoding.DecodeString(s); err == nil {
		return b, nil
	}
	return nil, errors.Errorf("key is neither hex nor base64: %.16s", s)
}

// ParsePublicKey decodes and parses a secp256k1 public key, compressed or
// uncompressed.
func ParsePublicKey(s string) (*secp256k1.PublicKey, error) {
	raw, err := DecodeKey(s)
	if err != nil {
		return nil, err
	}
	pub, err := secp256k1.ParsePubKey(raw)
	if err != nil {
		return nil, errors.Wrap(err, "parse public key")
	}
	return pub, nil
}

// Owner derives the ledger address of a public key: the SHA3-256 hex of its
// raw encoded bytes, exactly as they arrived. Two encodings of the same curve
// point are two distinct owners.
func Owner(publicKey string) (string, error) {
	raw, err := DecodeKey(publicKey)
	if err != nil {
		return "", err
	}
	return Sha3Hex(raw), nil
}
