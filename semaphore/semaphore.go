// Copyright (c) 2025 The Norsh developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

// Package semaphore implements the distributed lock serializing writers
// against logically named resources. Ownership lives in the cache as an
// atomic set-if-absent token with TTL; an in-process mutex per name keeps
// local contenders from hammering the cache. The TTL is the upper bound on
// lock lifetime, so a crashed holder self-heals.
package semaphore

import (
	"context"
	"sync"
	"time"

	"github.com/pborman/uuid"
	"github.com/pkg/errors"

	"github.com/norsh/blockchain/cache"
	"github.com/norsh/blockchain/config"
	"github.com/norsh/blockchain/log"
	"github.com/norsh/blockchain/metrics"
)

var logger = log.WithContext("pkg", "semaphore")

var (
	metricWaitMillis = metrics.LazyLoadHistogram("semaphore_wait_ms", metrics.BucketLockWaitMillis)
	metricTimeouts   = metrics.LazyLoadCounter("semaphore_timeout_count")
)

// ErrNotAcquired is returned when the lock could not be taken within the
// caller's timeout.
var ErrNotAcquired = errors.New("semaphore: not acquired")

// Semaphore hands out named mutual exclusion across the fleet.
type Semaphore struct {
	cache          cache.Cache
	ttl            time.Duration
	initialBackoff time.Duration
	maxBackoff     time.Duration

	mu      sync.Mutex
	mutexes map[string]*sync.Mutex
}

// New creates a semaphore on the given cache, timed per the defaults.
func New(c cache.Cache, defaults config.Defaults) *Semaphore {
	return &Semaphore{
		cache:          c,
		ttl:            time.Duration(defaults.SemaphoreLockTimeoutMs) * time.Millisecond,
		initialBackoff: time.Duration(defaults.ThreadInitialBackoffMs) * time.Millisecond,
		maxBackoff:     time.Duration(defaults.ThreadMaxBackoffMs) * time.Millisecond,
		mutexes:        make(map[string]*sync.Mutex),
	}
}

// TTL returns the lock lifetime, which doubles as the default acquire
// timeout.
func (s *Semaphore) TTL() time.Duration {
	return s.ttl
}

func (s *Semaphore) localMutex(name string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	mu, ok := s.mutexes[name]
	if !ok {
		mu = &sync.Mutex{}
		s.mutexes[name] = mu
	}
	return mu
}

// Acquire takes the named lock, retrying with linear-growth backoff until
// timeout. It returns the lock token needed to release, or ErrNotAcquired
// on timeout. Cache failures surface as wrapped errors.
func (s *Semaphore) Acquire(ctx context.Context, name string, timeout time.Duration) (string, error) {
	// Local contenders queue here instead of spinning on the cache.
	mu := s.localMutex(name)
	mu.Lock()
	defer mu.Unlock()

	lockID := uuid.New()
	start := time.Now()
	for attempt := 1; ; attempt++ {
		ok, err := s.cache.SetNX(ctx, name, lockID, s.ttl)
		if err != nil {
			return "", errors.Wrapf(err, "acquire lock [%v]", name)
		}
		if ok {
			metricWaitMillis().Observe(time.Since(start).Milliseconds())
			return lockID, nil
		}
		if time.Since(start) >= timeout {
			metricTimeouts().Add(1)
			return "", ErrNotAcquired
		}
		if err := ctx.Err(); err != nil {
			return "", err
		}
		backoff := min(s.initialBackoff*time.Duration(attempt), s.maxBackoff)
		time.Sleep(backoff)
	}
}

// Release gives the named lock back. Only the holder of lockID may release;
// a mismatched token means the lock expired and was re-taken, in which case
// nothing is deleted and Release reports false.
func (s *Semaphore) Release(ctx context.Context, name, lockID string) bool {
	current, ok, err := s.cache.Get(ctx, name)
	if err != nil {
		logger.Error("failed to read lock for release", "name", name, "err", err)
		return false
	}
	if !ok || current != lockID {
		logger.Warn("release without ownership", "name", name)
		return false
	}
	s.ForceRelease(ctx, name)
	return true
}

// ForceRelease unconditionally deletes the lock token and prunes the local
// mutex entry so the map does not grow with dead names.
func (s *Semaphore) ForceRelease(ctx context.Context, name string) {
	if _, err := s.cache.Del(ctx, name); err != nil {
		logger.Error("failed to delete lock", "name", name, "err", err)
	}
	s.mu.Lock()
	delete(s.mutexes, name)
	s.mu.Unlock()
}

// Execute runs fn with the named lock held, using the default timeout. The
// lock is released on every exit path, panics included.
func (s *Semaphore) Execute(ctx context.Context, name string, fn func() error) error {
	return s.ExecuteTimeout(ctx, name, s.ttl, fn)
}

// ExecuteTimeout is Execute with a caller-picked acquire timeout.
func (s *Semaphore) ExecuteTimeout(ctx context.Context, name string, timeout time.Duration, fn func() error) error {
	lockID, err := s.Acquire(ctx, name, timeout)
	if err != nil {
		return err
	}
	defer s.Release(ctx, name, lockID)
	return fn()
}

// Execute runs fn with the named lock held and hands back its value, for
// call sites that produce a result inside the critical section.
func Execute[T any](ctx context.Context, s *Semaphore, name string, fn func() (T, error)) (T, error) {
	var result T
	err := s.Execute(ctx, name, func() error {
		var err error
		result, err = fn()
		return err
	})
	return result, err
}
