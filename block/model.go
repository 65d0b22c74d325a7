// Copyright (c) 2025 The Norsh developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

// Package block maintains the block timeline: one block per 6-minute wall
// clock window, opened on demand, closed in order and chained to the last
// mined predecessor by hash.
package block

import (
	"strings"

	"github.com/shopspring/decimal"

	"github.com/norsh/blockchain/cry"
	"github.com/norsh/blockchain/norsh"
)

// TxRef is the compact transaction record embedded in a block. Volume is
// carried only for privacy elements, whose full transactions are not openly
// readable from the ledger bucket.
type TxRef struct {
	ID      string           `json:"id"`
	Ledger  string           `json:"ledger"`
	Element string           `json:"element"`
	Tax     decimal.Decimal  `json:"tax"`
	Privacy bool             `json:"privacy"`
	Volume  *decimal.Decimal `json:"volume,omitempty"`
}

// Block is the persisted block document.
type Block struct {
	ID                     string          `json:"id"`
	PreviousID             string          `json:"previousId,omitempty"`
	Number                 int64           `json:"number"`
	Height                 int64           `json:"height"`
	Closed                 bool            `json:"closed"`
	Mined                  bool            `json:"mined"`
	Timestamp              int64           `json:"timestamp"`
	CloseTimestamp         int64           `json:"closeTimestamp,omitempty"`
	MiningReleaseTimestamp int64           `json:"miningReleaseTimestamp,omitempty"`
	MiningEndTimestamp     int64           `json:"miningEndTimestamp,omitempty"`
	PreviousBlockHash      string          `json:"previousBlockHash,omitempty"`
	BlockHash              string          `json:"blockHash,omitempty"`
	MerkleRoot             string          `json:"merkleRoot,omitempty"`
	Difficulty             int             `json:"difficulty,omitempty"`
	TotalFee               decimal.Decimal `json:"totalFee"`
	Nonces                 []uint64        `json:"nonces,omitempty"`
	Transactions           []TxRef         `json:"transactions"`
	Miner                  string          `json:"miner,omitempty"`
}

// ChainID derives a block id from its predecessor and window number.
func ChainID(previousID string, number int64) string {
	return cry.Sha3HexString(norsh.Concat(previousID, number))
}

// MerkleRoot computes the bottom-up pairwise SHA3-256 root over transaction
// ids, duplicating an odd trailing node. Empty input yields "".
func MerkleRoot(ids []string) string {
	if len(ids) == 0 {
		return ""
	}
	level := append([]string(nil), ids...)
	for len(level) > 1 {
		next := make([]string, 0, (len(level)+1)/2)
		for i := 0; i < len(level); i += 2 {
			left := level[i]
			right := left
			if i+1 < len(level) {
				right = level[i+1]
			}
			next = append(next, cry.Sha3HexString(left+right))
		}
		level = next
	}
	return level[0]
}

// Difficulty is twice the digit count of the integer part of the block's
// total fee; a zero fee counts one digit, so the floor is 2.
func Difficulty(totalFee decimal.Decimal) int {
	integer := totalFee.Abs().Truncate(0)
	if integer.IsZero() {
		return 2
	}
	return len(integer.String()) * 2
}

// HashBase is the fixed prefix of the proof-of-work input.
func (b *Block) HashBase() string {
	return norsh.Concat(b.ID, b.Timestamp, b.MerkleRoot, b.PreviousBlockHash, b.MiningReleaseTimestamp)
}

// NoncesString renders a nonce vector the way it enters the hash input:
// decimal values appended in order.
func NoncesString(nonces []uint64) string {
	var sb strings.Builder
	for _, n := range nonces {
		sb.WriteString(norsh.Concat(n))
	}
	return sb.String()
}

// PowHash computes the proof-of-work digest for a base and nonce vector.
func PowHash(base string, nonces []uint64) string {
	return cry.Sha256HexString(base + NoncesString(nonces))
}

// CheckPow reports whether hash satisfies the difficulty prefix.
func CheckPow(hash string, difficulty int) bool {
	return strings.HasPrefix(hash, strings.Repeat("0", difficulty))
}
