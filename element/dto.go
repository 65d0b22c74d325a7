// Copyright (c) 2025 The Norsh developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package element

import (
	"encoding/json"

	"github.com/pkg/errors"

	"github.com/norsh/blockchain/cry"
)

// Payload tags recognized by the dispatcher for this package.
const (
	TagCreate   = "elements.ElementCreate"
	TagGet      = "elements.ElementGet"
	TagMetadata = "elements.ElementMetadataUpdate"
)

// CreateDTO is the signed element creation request.
type CreateDTO struct {
	Type          Type   `json:"type"`
	Symbol        string `json:"symbol"`
	Decimals      int32  `json:"decimals"`
	InitialSupply int64  `json:"initialSupply,omitempty"`
	TFO           string `json:"tfo,omitempty"`
	Hash          string `json:"hash"`
	PublicKey     string `json:"publicKey"`
	Signature     string `json:"signature"`
}

// Validate checks structural integrity, recomputes the canonical hash and
// verifies the signature over it.
func (dto *CreateDTO) Validate() error {
	if dto.Symbol == "" {
		return errors.New("symbol is required")
	}
	if dto.Type != TypeCoin && dto.Type != TypeProxy {
		return errors.Errorf("unknown element type %q", dto.Type)
	}
	if dto.Decimals < 0 || dto.Decimals > 18 {
		return errors.New("decimals must be between 0 and 18")
	}
	if dto.PublicKey == "" || dto.Signature == "" || dto.Hash == "" {
		return errors.New("hash, publicKey and signature are required")
	}
	if HashOf(dto.Symbol, dto.Decimals, dto.InitialSupply, dto.TFO, dto.PublicKey) != dto.Hash {
		return errors.New("hash does not match element contents")
	}
	if !cry.VerifyHash(dto.PublicKey, dto.Signature, dto.Hash) {
		return errors.New("invalid signature")
	}
	return nil
}

// GetDTO fetches one element by id.
type GetDTO struct {
	ID string `json:"id"`
}

// Validate checks the id is present.
func (dto *GetDTO) Validate() error {
	if dto.ID == "" {
		return errors.New("id is required")
	}
	return nil
}

// MetadataDTO is the signed metadata patch request. Per field: nil leaves
// the value, empty string unsets it, anything else sets it. When the
// element already carries metadata the patch is gated on the embedded fee
// transaction.
type MetadataDTO struct {
	ID        string  `json:"id"`
	Hash      string  `json:"hash"`
	PublicKey string  `json:"publicKey"`
	Signature string  `json:"signature"`
	Name      *string `json:"name,omitempty"`
	About     *string `json:"about,omitempty"`
	Logo      *string `json:"logo,omitempty"`
	Site      *string `json:"site,omitempty"`
	Policy    *string `json:"policy,omitempty"`
	// Transaction is the raw fee-transfer payload, decoded and executed by
	// the transaction service when the patch requires a charge.
	Transaction json.RawMessage `json:"transaction,omitempty"`
}

// Validate checks structural integrity and the signature over the hash.
func (dto *MetadataDTO) Validate() error {
	if dto.ID == "" {
		return errors.New("id is required")
	}
	if dto.PublicKey == "" || dto.Signature == "" || dto.Hash == "" {
		return errors.New("hash, publicKey and signature are required")
	}
	if !cry.VerifyHash(dto.PublicKey, dto.Signature, dto.Hash) {
		return errors.New("invalid signature")
	}
	return nil
}
