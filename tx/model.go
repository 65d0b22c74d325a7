// Copyright (c) 2025 The Norsh developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

// Package tx implements ledger transactions: user transfers plus the
// network-issued capture and reward records. Transactions append to weekly
// ledger buckets and chain per element through the element's dynamic
// sequence.
package tx

import (
	"github.com/shopspring/decimal"

	"github.com/norsh/blockchain/cry"
	"github.com/norsh/blockchain/norsh"
)

// Type classifies a ledger transaction.
type Type string

const (
	TypeTransfer Type = "TRANSFER"
	TypeCapture  Type = "CAPTURE"
	TypeReward   Type = "REWARD"
)

// Transaction is the persisted ledger document.
type Transaction struct {
	ID         string          `json:"id"`
	PreviousID string          `json:"previousId,omitempty"`
	Type       Type            `json:"type"`
	From       string          `json:"from"`
	To         string          `json:"to"`
	Element    string          `json:"element"`
	Volume     decimal.Decimal `json:"volume"`
	Nonce      int64           `json:"nonce"`
	Hash       string          `json:"hash"`
	PublicKey  string          `json:"publicKey,omitempty"`
	Signature  string          `json:"signature,omitempty"`
	Timestamp  int64           `json:"timestamp"`
	Shard      int64           `json:"shard"`
	Ledger     string          `json:"ledger"`
	Block      int64           `json:"block,omitempty"`
	Confirmed  bool            `json:"confirmed"`
	// CreditPending marks a transaction whose sender side committed but whose
	// receiver credit failed; reconciliation retries these.
	CreditPending bool `json:"creditPending,omitempty"`
	Privacy       bool `json:"privacy"`
	Version    int             `json:"version"`

	ElementTax decimal.Decimal `json:"elementTax"`
	NetworkTax decimal.Decimal `json:"networkTax"`
	TotalTax   decimal.Decimal `json:"totalTax"`
	Total      decimal.Decimal `json:"total"`

	Link     string            `json:"link,omitempty"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

// HashOf computes the canonical transfer hash over the request fields. The
// volume enters in its normalized decimal string form.
func HashOf(element, to string, volume decimal.Decimal, nonce int64, publicKey string) string {
	return cry.Sha256HexString(norsh.Concat(element, to, volume.String(), nonce, publicKey))
}

// ChainID derives the chained transaction id from its predecessor and its
// hash.
func ChainID(previousID, hash string) string {
	return cry.Sha3HexString(norsh.Concat(previousID, hash))
}
