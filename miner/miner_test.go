// Copyright (c) 2025 The Norsh developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package miner

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/norsh/blockchain/block"
)

func testBlock(difficulty int) *block.Block {
	return &block.Block{
		ID:                     "block-1",
		Timestamp:              1_700_000_000_000,
		MerkleRoot:             "abc",
		PreviousBlockHash:      "def",
		MiningReleaseTimestamp: 1_700_000_360_000,
		Difficulty:             difficulty,
		Closed:                 true,
	}
}

func TestIncrement(t *testing.T) {
	assert.Equal(t, []uint64{1}, increment([]uint64{0}))
	assert.Equal(t, []uint64{5, 0}, increment([]uint64{4, ^uint64(0)}))
	// Full carry grows a new dimension.
	assert.Equal(t, []uint64{0, 0, 0}, increment([]uint64{^uint64(0), ^uint64(0)}))
}

func TestUnderTargetMatchesPrefix(t *testing.T) {
	hash := block.PowHash("base", []uint64{42})
	for d := 0; d <= 4; d++ {
		assert.Equal(t, strings.HasPrefix(hash, strings.Repeat("0", d)),
			underTarget(hash, powTarget(d)), "difficulty %d", d)
	}
	assert.True(t, underTarget("00ff"+strings.Repeat("a", 60), powTarget(2)))
	assert.False(t, underTarget("0f"+strings.Repeat("a", 62), powTarget(2)))
}

func TestMineFindsSolution(t *testing.T) {
	b := testBlock(2)
	sol, err := Mine(context.Background(), b, 4, 8)
	require.NoError(t, err)

	assert.Equal(t, block.PowHash(b.HashBase(), sol.Nonces), sol.Hash)
	assert.True(t, block.CheckPow(sol.Hash, b.Difficulty))
}

func TestMineRejectsUnreleasedBlock(t *testing.T) {
	b := testBlock(2)
	b.MiningReleaseTimestamp = 0
	_, err := Mine(context.Background(), b, 1, 8)
	assert.Error(t, err)
}

func TestMineCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	// An impossible difficulty would search forever without the context.
	_, err := Mine(ctx, testBlock(64), 2, 8)
	assert.ErrorIs(t, err, context.Canceled)
}
