// Copyright (c) 2025 The Norsh developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package sequence

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/norsh/blockchain/docdb"
)

func newTestStore(t *testing.T) *Store {
	db, err := docdb.OpenMem()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewStore(db)
}

func TestGetCreatesLazily(t *testing.T) {
	s := newTestStore(t)

	ok, err := s.Exists("elements")
	require.NoError(t, err)
	assert.False(t, ok)

	seq, err := s.Get("elements")
	require.NoError(t, err)
	assert.Equal(t, int64(0), seq.Sequence)
	assert.Empty(t, seq.Data)

	// Lazy creation persists.
	ok, err = s.Exists("elements")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestSetAndUnsetData(t *testing.T) {
	s := newTestStore(t)

	require.NoError(t, s.SetData("elements", "id-1"))
	seq, err := s.Get("elements")
	require.NoError(t, err)
	assert.Equal(t, "id-1", seq.Data)
	assert.Equal(t, int64(0), seq.Sequence)

	n := int64(7)
	require.NoError(t, s.Set("elements", &n, nil))
	seq, _ = s.Get("elements")
	assert.Equal(t, int64(7), seq.Sequence)
	assert.Equal(t, "id-1", seq.Data)

	// Empty string unsets.
	empty := ""
	require.NoError(t, s.Set("elements", nil, &empty))
	seq, _ = s.Get("elements")
	assert.Empty(t, seq.Data)
}

func TestIncIsAtomic(t *testing.T) {
	s := newTestStore(t)

	var wg sync.WaitGroup
	for range 20 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range 5 {
				require.NoError(t, s.Inc("blockchain-block-id", nil))
			}
		}()
	}
	wg.Wait()

	seq, err := s.Get("blockchain-block-id")
	require.NoError(t, err)
	assert.Equal(t, int64(100), seq.Sequence)
}

func TestIncWithData(t *testing.T) {
	s := newTestStore(t)

	data := "block-id-0"
	require.NoError(t, s.Inc("blockchain-block-id", &data))

	seq, err := s.Get("blockchain-block-id")
	require.NoError(t, err)
	assert.Equal(t, int64(1), seq.Sequence)
	assert.Equal(t, "block-id-0", seq.Data)
}
