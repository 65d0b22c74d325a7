// Copyright (c) 2025 The Norsh developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package cache

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemorySetGetDel(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	_, ok, err := m.Get(ctx, "k")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, m.Set(ctx, "k", "v", time.Minute))
	val, ok, err := m.Get(ctx, "k")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "v", val)

	deleted, err := m.Del(ctx, "k")
	require.NoError(t, err)
	assert.True(t, deleted)

	deleted, err = m.Del(ctx, "k")
	require.NoError(t, err)
	assert.False(t, deleted)
}

func TestMemoryTTLExpiry(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	now := time.Now()
	m.now = func() time.Time { return now }

	require.NoError(t, m.Set(ctx, "k", "v", 100*time.Millisecond))

	_, ok, _ := m.Get(ctx, "k")
	assert.True(t, ok)

	now = now.Add(101 * time.Millisecond)
	_, ok, _ = m.Get(ctx, "k")
	assert.False(t, ok)

	// Expired entry no longer blocks SetNX.
	set, err := m.SetNX(ctx, "k", "v2", time.Minute)
	require.NoError(t, err)
	assert.True(t, set)
}

func TestMemorySetNX(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	set, err := m.SetNX(ctx, "lock", "a", time.Minute)
	require.NoError(t, err)
	assert.True(t, set)

	set, err = m.SetNX(ctx, "lock", "b", time.Minute)
	require.NoError(t, err)
	assert.False(t, set)

	val, _, _ := m.Get(ctx, "lock")
	assert.Equal(t, "a", val)
}

func TestMemorySetNXSingleWinner(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	var wins atomic.Int32
	var wg sync.WaitGroup
	for range 64 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, err := m.SetNX(ctx, "lock", "id", time.Minute)
			require.NoError(t, err)
			if ok {
				wins.Add(1)
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(1), wins.Load())
}

func TestLRUGetOrLoad(t *testing.T) {
	l, err := NewLRU(8)
	require.NoError(t, err)

	var loads atomic.Int32
	loader := func(key string) (interface{}, error) {
		loads.Add(1)
		return "v:" + key, nil
	}

	v, err := l.GetOrLoad("a", loader)
	require.NoError(t, err)
	assert.Equal(t, "v:a", v)

	v, err = l.GetOrLoad("a", loader)
	require.NoError(t, err)
	assert.Equal(t, "v:a", v)
	assert.Equal(t, int32(1), loads.Load())

	hit, miss := l.Stats()
	assert.Equal(t, int64(1), hit)
	assert.Equal(t, int64(1), miss)
}
