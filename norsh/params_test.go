// Copyright (c) 2025 The Norsh developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package norsh

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBlockNumber(t *testing.T) {
	assert.Equal(t, int64(0), BlockNumber(0))
	assert.Equal(t, int64(0), BlockNumber(BlockWindowMillis-1))
	assert.Equal(t, int64(1), BlockNumber(BlockWindowMillis))
	assert.Equal(t, int64(4902776), BlockNumber(4902776*BlockWindowMillis+1234))
}

func TestShard(t *testing.T) {
	assert.Equal(t, int64(0), Shard(0))
	assert.Equal(t, int64(0), Shard(WeekMillis-1))
	assert.Equal(t, int64(1), Shard(WeekMillis))

	// shard boundaries never depend on the block window
	assert.Less(t, BlockWindowMillis, WeekMillis)
}

func TestLedgerName(t *testing.T) {
	assert.Equal(t, "ledger_0", LedgerName(0))
	assert.Equal(t, "ledger_2921", LedgerName(2921))

	assert.True(t, IsLedgerName("ledger_2921"))
	assert.False(t, IsLedgerName("elements"))
	assert.False(t, IsLedgerName("ledgers"))
}
