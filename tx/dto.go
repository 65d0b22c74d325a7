// Copyright (c) 2025 The Norsh developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package tx

import (
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"

	"github.com/norsh/blockchain/cry"
)

// Payload tags recognized by the dispatcher for this package.
const (
	TagCreate = "transactions.TransactionCreate"
	TagGet    = "transactions.TransactionGet"
)

// CreateDTO is the signed transfer request.
type CreateDTO struct {
	To        string          `json:"to"`
	Element   string          `json:"element"`
	Volume    decimal.Decimal `json:"volume"`
	Nonce     int64           `json:"nonce"`
	Hash      string          `json:"hash"`
	PublicKey string          `json:"publicKey"`
	Signature string          `json:"signature"`
}

// Validate checks structural integrity, recomputes the canonical hash and
// verifies the signature over it.
func (dto *CreateDTO) Validate() error {
	if dto.To == "" {
		return errors.New("to is required")
	}
	if dto.Element == "" {
		return errors.New("element is required")
	}
	if !dto.Volume.IsPositive() {
		return errors.New("volume must be positive")
	}
	if dto.PublicKey == "" || dto.Signature == "" || dto.Hash == "" {
		return errors.New("hash, publicKey and signature are required")
	}
	if HashOf(dto.Element, dto.To, dto.Volume, dto.Nonce, dto.PublicKey) != dto.Hash {
		return errors.New("hash does not match transaction contents")
	}
	if !cry.VerifyHash(dto.PublicKey, dto.Signature, dto.Hash) {
		return errors.New("invalid signature")
	}
	return nil
}

// GetDTO fetches one transaction by id.
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
