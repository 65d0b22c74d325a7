// Copyright (c) 2025 The Norsh developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package balance

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/norsh/blockchain/docdb"
)

func newTestStore(t *testing.T, seed int64) *Store {
	db, err := docdb.OpenMem()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewStore(db, decimal.NewFromInt(seed))
}

func TestID(t *testing.T) {
	assert.Equal(t, "owner_element", ID("owner", "element"))
}

func TestGetSeedsAbsentBalance(t *testing.T) {
	s := newTestStore(t, 10_000)

	b, err := s.Get("alice", "nsh")
	require.NoError(t, err)
	assert.Equal(t, "alice_nsh", b.ID)
	assert.True(t, decimal.NewFromInt(10_000).Equal(b.Amount))

	// Seeding is read-side only until Save.
	zero := newTestStore(t, 0)
	b2, err := zero.Get("alice", "nsh")
	require.NoError(t, err)
	assert.True(t, b2.Amount.IsZero())
}

func TestSetPersists(t *testing.T) {
	s := newTestStore(t, 10_000)

	b, err := s.Get("alice", "nsh")
	require.NoError(t, err)
	require.NoError(t, s.Set(b, decimal.RequireFromString("9899.7")))

	got, err := s.Get("alice", "nsh")
	require.NoError(t, err)
	assert.Equal(t, "9899.7", got.Amount.String())
}

func TestHas(t *testing.T) {
	s := newTestStore(t, 100)

	ok, err := s.Has("alice", "nsh", decimal.NewFromInt(100))
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = s.Has("alice", "nsh", decimal.RequireFromString("100.0001"))
	require.NoError(t, err)
	assert.False(t, ok)
}
