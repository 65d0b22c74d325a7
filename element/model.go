// Copyright (c) 2025 The Norsh developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

// Package element manages ledgered assets: coins and the proxies that
// mirror assets on monitored external networks. Elements are insert-only;
// identity chains through the shared "elements" sequence.
package element

import (
	"github.com/shopspring/decimal"

	"github.com/norsh/blockchain/cry"
	"github.com/norsh/blockchain/norsh"
)

// Type classifies an element.
type Type string

const (
	TypeCoin  Type = "COIN"
	TypeProxy Type = "PROXY"
)

// Status is the element lifecycle state.
type Status string

const (
	StatusPending  Status = "PENDING"
	StatusEnabled  Status = "ENABLED"
	StatusDisabled Status = "DISABLED"
)

// Policy is the owner-set rule block of an element. TransactionTax is a
// percentage; nil means no element fee.
type Policy struct {
	CanMint        *bool            `json:"canMint,omitempty"`
	CanBurn        *bool            `json:"canBurn,omitempty"`
	CanPause       *bool            `json:"canPause,omitempty"`
	TransactionTax *decimal.Decimal `json:"transactionTax,omitempty"`
	FreezeDuration *int             `json:"freezeDuration,omitempty"`
	Script         string           `json:"script,omitempty"`
}

// Element is the persisted asset document.
type Element struct {
	ID                string            `json:"id"`
	PreviousID        string            `json:"previousId,omitempty"`
	Owner             string            `json:"owner"`
	Symbol            string            `json:"symbol"`
	Type              Type              `json:"type"`
	Decimals          int32             `json:"decimals"`
	InitialSupply     int64             `json:"initialSupply,omitempty"`
	TFO               string            `json:"tfo,omitempty"`
	Hash              string            `json:"hash"`
	PublicKey         string            `json:"publicKey"`
	Signature         string            `json:"signature"`
	Timestamp         int64             `json:"timestamp"`
	Privacy           bool              `json:"privacy"`
	Status            Status            `json:"status"`
	Policy            *Policy           `json:"policy,omitempty"`
	Metadata          map[string]string `json:"metadata,omitempty"`
	MonitoredNetworks map[string]string `json:"monitoredNetworks,omitempty"`
	Version           int               `json:"version"`
}

// HashOf computes the canonical element hash over the identity fields. Client
// DTOs must arrive with exactly this hash; the bootstrap builds it the same
// way.
func HashOf(symbol string, decimals int32, initialSupply int64, tfo, publicKey string) string {
	var supply any
	if initialSupply != 0 {
		supply = initialSupply
	}
	return cry.Sha256HexString(norsh.Concat(symbol, decimals, supply, tfo, publicKey))
}

// ChainID derives the chained element id from its predecessor, its hash and
// its creation time.
func ChainID(previousID, hash string, timestamp int64) string {
	return cry.Sha3HexString(norsh.Concat(previousID, hash, timestamp))
}
