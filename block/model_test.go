// Copyright (c) 2025 The Norsh developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package block

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"github.com/norsh/blockchain/cry"
)

func TestMerkleRoot(t *testing.T) {
	assert.Equal(t, "", MerkleRoot(nil))

	// Single leaf is its own root.
	assert.Equal(t, "a", MerkleRoot([]string{"a"}))

	ab := cry.Sha3HexString("ab")
	assert.Equal(t, ab, MerkleRoot([]string{"a", "b"}))

	// Odd tail pairs with itself.
	cc := cry.Sha3HexString("cc")
	assert.Equal(t, cry.Sha3HexString(ab+cc), MerkleRoot([]string{"a", "b", "c"}))

	cd := cry.Sha3HexString("cd")
	assert.Equal(t, cry.Sha3HexString(ab+cd), MerkleRoot([]string{"a", "b", "c", "d"}))
}

func TestDifficulty(t *testing.T) {
	assert.Equal(t, 2, Difficulty(decimal.Zero))
	assert.Equal(t, 2, Difficulty(decimal.RequireFromString("0.73")))
	assert.Equal(t, 2, Difficulty(decimal.NewFromInt(9)))
	assert.Equal(t, 4, Difficulty(decimal.NewFromInt(10)))
	assert.Equal(t, 6, Difficulty(decimal.RequireFromString("123.456")))
}

func TestPowHash(t *testing.T) {
	base := "feedface"
	hash := PowHash(base, []uint64{0, 12, 345})
	assert.Equal(t, cry.Sha256HexString("feedface012345"), hash)

	assert.True(t, CheckPow("00abc", 2))
	assert.False(t, CheckPow("0abc", 2))
	assert.True(t, CheckPow("anything", 0))
}

func TestChainID(t *testing.T) {
	assert.Equal(t, cry.Sha3HexString("42"), ChainID("", 42))
	assert.Equal(t, cry.Sha3HexString("prev42"), ChainID("prev", 42))
}
