// Copyright (c) 2025 The Norsh developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package cache

import (
	lru "github.com/hashicorp/golang-lru"
	"golang.org/x/sync/singleflight"
)

// LRU a LRU cache extends golang-lru, with single-flight loading. Used as
// the element read-through cache in front of the document store.
type LRU struct {
	*lru.Cache
	group singleflight.Group
	stats Stats
}

// NewLRU create a LRU cache instance.
// maxSize should be > 0, or an error returned.
func NewLRU(maxSize int) (*LRU, error) {
	cache, err := lru.New(maxSize)
	if err != nil {
		return nil, err
	}
	return &LRU{Cache: cache}, nil
}

// Loader defines loader to load value.
type Loader func(key string) (interface{}, error)

// GetOrLoad first tries the cache, and loads on a miss. Concurrent misses
// of the same key share one loader call.
func (l *LRU) GetOrLoad(key string, loader Loader) (interface{}, error) {
	if v, ok := l.Get(key); ok {
		l.stats.Hit()
		return v, nil
	}
	l.stats.Miss()

	v, err, _ := l.group.Do(key, func() (interface{}, error) {
		if v, ok := l.Get(key); ok {
			return v, nil
		}
		v, err := loader(key)
		if err != nil {
			return nil, err
		}
		l.Add(key, v)
		return v, nil
	})
	if err != nil {
		return nil, err
	}
	return v, nil
}

// Stats returns hit/miss counts since creation.
func (l *LRU) Stats() (hit, miss int64) {
	_, hit, miss = l.stats.Stats()
	return
}
