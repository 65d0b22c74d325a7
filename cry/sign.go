// Copyright (c) 2025 The Norsh developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package cry

import (
	"encoding/hex"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/pkg/errors"
)

// SignHash signs a hex-encoded 32-byte hash with a secp256k1 private key
// (hex or base64). The signature is returned as hex [R ‖ S ‖ V].
func SignHash(privateKey, hashHex string) (string, error) {
	digest, err := hex.DecodeString(hashHex)
	if err != nil {
		return "", errors.Wrap(err, "decode hash")
	}
	if len(digest) != 32 {
		return "", errors.Errorf("hash must be 32 bytes, got %d", len(digest))
	}
	raw, err := DecodeKey(privateKey)
	if err != nil {
		return "", err
	}
	priv, err := crypto.ToECDSA(raw)
	if err != nil {
		return "", errors.Wrap(err, "parse private key")
	}
	sig, err := crypto.Sign(digest, priv)
	if err != nil {
		return "", errors.Wrap(err, "sign hash")
	}
	return hex.EncodeToString(sig), nil
}

// VerifyHash reports whether signature (hex or base64, 64 or 65 bytes) is a
// valid secp256k1 signature of the hex-encoded hash by publicKey.
func VerifyHash(publicKey, signature, hashHex string) bool {
	digest, err := hex.DecodeString(hashHex)
	if err != nil || len(digest) != 32 {
		return false
	}
	pub, err := ParsePublicKey(publicKey)
	if err != nil {
		return false
	}
	sig, err := DecodeKey(signature)
	if err != nil {
		return false
	}
	if len(sig) == 65 {
		sig = sig[:64] // drop recovery id
	}
	if len(sig) != 64 {
		return false
	}
	return crypto.VerifySignature(pub.SerializeCompressed(), digest, sig)
}

// PublicKeyHex returns the compressed hex encoding of the public key paired
// with the given private key. Used by keygen and the solo toolchain.
func PublicKeyHex(privateKey string) (string, error) {
	raw, err := DecodeKey(privateKey)
	if err != nil {
		return "", err
	}
	priv, err := crypto.ToECDSA(raw)
	if err != nil {
		return "", errors.Wrap(err, "parse private key")
	}
	return hex.EncodeToString(crypto.CompressPubkey(&priv.PublicKey)), nil
}
