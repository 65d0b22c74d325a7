// Copyright (c) 2025 The Norsh developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package docdb

import (
	"encoding/json"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testDoc struct {
	ID    string `json:"id"`
	Count int    `json:"count"`
}

func openTestStore(t *testing.T) *Store {
	store, err := OpenMem()
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func TestPutGetDelete(t *testing.T) {
	c := openTestStore(t).Collection("docs")

	require.NoError(t, c.Put("a", &testDoc{ID: "a", Count: 1}))

	var got testDoc
	require.NoError(t, c.Get("a", &got))
	assert.Equal(t, testDoc{ID: "a", Count: 1}, got)

	ok, err := c.Exists("a")
	require.NoError(t, err)
	assert.True(t, ok)

	require.NoError(t, c.Delete("a"))
	err = c.Get("a", &got)
	assert.True(t, IsNotFound(err))

	ok, err = c.Exists("a")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestCollectionsAreDisjoint(t *testing.T) {
	store := openTestStore(t)
	a := store.Collection("ledger_1")
	b := store.Collection("ledger_10")

	require.NoError(t, a.Put("x", &testDoc{ID: "x"}))

	var got testDoc
	assert.True(t, IsNotFound(b.Get("x", &got)))

	n, err := b.Count()
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestUpdateCreatesAndMutates(t *testing.T) {
	c := openTestStore(t).Collection("docs")

	err := c.Update("seq", func(raw []byte) (any, error) {
		assert.Nil(t, raw)
		return &testDoc{ID: "seq", Count: 0}, nil
	})
	require.NoError(t, err)

	err = c.Update("seq", func(raw []byte) (any, error) {
		var doc testDoc
		require.NoError(t, json.Unmarshal(raw, &doc))
		doc.Count++
		return &doc, nil
	})
	require.NoError(t, err)

	var got testDoc
	require.NoError(t, c.Get("seq", &got))
	assert.Equal(t, 1, got.Count)
}

func TestUpdateIsAtomic(t *testing.T) {
	c := openTestStore(t).Collection("docs")
	require.NoError(t, c.Put("n", &testDoc{ID: "n"}))

	var wg sync.WaitGroup
	for range 32 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range 10 {
				_ = c.Update("n", func(raw []byte) (any, error) {
					var doc testDoc
					if err := json.Unmarshal(raw, &doc); err != nil {
						return nil, err
					}
					doc.Count++
					return &doc, nil
				})
			}
		}()
	}
	wg.Wait()

	var got testDoc
	require.NoError(t, c.Get("n", &got))
	assert.Equal(t, 320, got.Count)
}

func TestUpdateWhere(t *testing.T) {
	c := openTestStore(t).Collection("docs")

	open := func(raw []byte) bool {
		var doc testDoc
		return json.Unmarshal(raw, &doc) == nil && doc.Count == 0
	}
	bump := func(raw []byte) (any, error) {
		var doc testDoc
		if err := json.Unmarshal(raw, &doc); err != nil {
			return nil, err
		}
		doc.Count++
		return &doc, nil
	}

	// Absent document: no match, no error.
	modified, err := c.UpdateWhere("a", open, bump)
	require.NoError(t, err)
	assert.False(t, modified)

	require.NoError(t, c.Put("a", &testDoc{ID: "a", Count: 0}))

	modified, err = c.UpdateWhere("a", open, bump)
	require.NoError(t, err)
	assert.True(t, modified)

	// Predicate now rejects; document is untouched.
	modified, err = c.UpdateWhere("a", open, bump)
	require.NoError(t, err)
	assert.False(t, modified)

	var got testDoc
	require.NoError(t, c.Get("a", &got))
	assert.Equal(t, 1, got.Count)
}

func TestIterateAndCount(t *testing.T) {
	c := openTestStore(t).Collection("docs")
	ids := []string{"a", "b", "c", "d"}
	for _, id := range ids {
		require.NoError(t, c.Put(id, &testDoc{ID: id}))
	}

	var seen []string
	require.NoError(t, c.Iterate(func(id string, raw []byte) bool {
		seen = append(seen, id)
		return true
	}))
	assert.Equal(t, ids, seen)

	n, err := c.Count()
	require.NoError(t, err)
	assert.Equal(t, len(ids), n)

	// Early stop.
	seen = seen[:0]
	require.NoError(t, c.Iterate(func(id string, raw []byte) bool {
		seen = append(seen, id)
		return len(seen) < 2
	}))
	assert.Len(t, seen, 2)
}

func TestLongIDsRoundTrip(t *testing.T) {
	c := openTestStore(t).Collection("docs")

	long := ""
	for range 8 {
		long += "0123456789abcdef"
	}
	require.NoError(t, c.Put(long, &testDoc{ID: long}))

	var seen []string
	require.NoError(t, c.Iterate(func(id string, raw []byte) bool {
		seen = append(seen, id)
		return true
	}))
	require.Len(t, seen, 1)
	assert.Equal(t, long, seen[0])
}
