// Copyright (c) 2025 The Norsh developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

// Package cache provides the TTL-backed key-value cache holding lock tokens
// and response envelopes, with a Redis backend for real deployments and a
// memory backend for solo mode and tests, plus a small read-through LRU for
// hot documents.
package cache

import (
	"context"
	"time"
)

// Cache is a TTL-backed KV store. SetNX is the atomic set-if-absent the
// distributed semaphore is built on; its atomicity is the correctness
// anchor of the whole write path.
type Cache interface {
	// Get returns the value for key, and whether it was present.
	Get(ctx context.Context, key string) (string, bool, error)
	// Set stores value under key with the given TTL.
	Set(ctx context.Context, key, value string, ttl time.Duration) error
	// SetNX stores value only when key is absent, reporting success.
	SetNX(ctx context.Context, key, value string, ttl time.Duration) (bool, error)
	// Del removes key, reporting whether it was present.
	Del(ctx context.Context, key string) (bool, error)
	// Close releases backend resources.
	Close() error
}
