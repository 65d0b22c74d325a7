// Copyright (c) 2025 The Norsh developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package cache

import (
	"context"
	"encoding/binary"
	"errors"
	"sync"
	"time"

	"github.com/golang/snappy"
	"github.com/qianbin/directcache"
)

// memory capacity; directcache grows entries within this budget and evicts
// the coldest beyond it.
const memoryCacheCapacity = 4 * 1024 * 1024

// Memory is the in-process Cache backend: a directcache with the expiry
// deadline embedded in each value (8-byte unix-milli prefix, snappy-packed
// payload). Compound operations hold a mutex so that SetNX keeps the same
// check-then-set atomicity Redis gives for free.
type Memory struct {
	mu  sync.Mutex
	c   *directcache.Cache
	now func() time.Time
}

// NewMemory creates a memory cache.
func NewMemory() *Memory {
	return &Memory{
		c:   directcache.New(memoryCacheCapacity),
		now: time.Now,
	}
}

// load returns the live value for key, expiring stale entries in place.
// Callers hold m.mu.
func (m *Memory) load(key string) (string, bool) {
	raw, ok := m.c.Get([]byte(key))
	if !ok || len(raw) < 8 {
		return "", false
	}
	deadline := int64(binary.BigEndian.Uint64(raw[:8]))
	if m.now().UnixMilli() >= deadline {
		m.c.Del([]byte(key))
		return "", false
	}
	val, err := snappy.Decode(nil, raw[8:])
	if err != nil {
		m.c.Del([]byte(key))
		return "", false
	}
	return string(val), true
}

func (m *Memory) store(key, value string, ttl time.Duration) error {
	buf := make([]byte, 8, 8+snappy.MaxEncodedLen(len(value)))
	binary.BigEndian.PutUint64(buf, uint64(m.now().Add(ttl).UnixMilli()))
	buf = append(buf, snappy.Encode(nil, []byte(value))...)
	if !m.c.Set([]byte(key), buf) {
		return errors.New("cache: set failed")
	}
	return nil
}

// Get implements Cache.
func (m *Memory) Get(_ context.Context, key string) (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	val, ok := m.load(key)
	return val, ok, nil
}

// Set implements Cache.
func (m *Memory) Set(_ context.Context, key, value string, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.store(key, value, ttl)
}

// SetNX implements Cache.
func (m *Memory) SetNX(_ context.Context, key, value string, ttl time.Duration) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.load(key); ok {
		return false, nil
	}
	if err := m.store(key, value, ttl); err != nil {
		return false, err
	}
	return true, nil
}

// Del implements Cache.
func (m *Memory) Del(_ context.Context, key string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.load(key)
	if ok {
		m.c.Del([]byte(key))
	}
	return ok, nil
}

// Close implements Cache.
func (m *Memory) Close() error {
	return nil
}
