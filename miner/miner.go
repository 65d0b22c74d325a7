// Copyright (c) 2025 The Norsh developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

// Package miner searches proof-of-work solutions for released blocks. The
// nonce space is a growing vector of uint64 dimensions; candidates are cut
// into batches and fanned out over a worker pool.
package miner

import (
	"context"
	"encoding/hex"
	"sync/atomic"
	"time"

	"github.com/holiman/uint256"
	"github.com/pkg/errors"

	"github.com/norsh/blockchain/block"
	"github.com/norsh/blockchain/co"
	"github.com/norsh/blockchain/log"
	"github.com/norsh/blockchain/metrics"
)

var logger = log.WithContext("pkg", "miner")

var (
	metricHashes    = metrics.LazyLoadCounter("miner_hash_count")
	metricSolutions = metrics.LazyLoadCounter("miner_solution_count")
)

const nonceBatchSize = 10_000

// ErrExhausted is returned when the nonce vector outgrew the depth limit
// without producing a solution.
var ErrExhausted = errors.New("miner: nonce space exhausted")

// Solution is a winning nonce vector and its hash.
type Solution struct {
	Nonces []uint64
	Hash   string
}

// powTarget converts a leading-zero difficulty into the numeric bound a
// winning hash must stay under: d leading zero hex digits means the hash is
// below 2^(256-4d). A nil target accepts everything.
func powTarget(difficulty int) *uint256.Int {
	if difficulty <= 0 {
		return nil
	}
	if difficulty >= 64 {
		return uint256.NewInt(1)
	}
	return new(uint256.Int).Lsh(uint256.NewInt(1), uint(256-4*difficulty))
}

// underTarget numerically tests a hex digest against the target.
func underTarget(hash string, target *uint256.Int) bool {
	if target == nil {
		return true
	}
	raw, err := hex.DecodeString(hash)
	if err != nil {
		return false
	}
	return new(uint256.Int).SetBytes(raw).Lt(target)
}

// increment advances the nonce vector by one: the last dimension counts up,
// overflow carries left, a carry past the first dimension grows the vector.
// Returns the (possibly reallocated) vector.
func increment(nonces []uint64) []uint64 {
	for i := len(nonces) - 1; i >= 0; i-- {
		nonces[i]++
		if nonces[i] != 0 {
			return nonces
		}
	}
	return append([]uint64{0}, nonces...)
}

// Mine searches a solution for the block, which must be closed and released
// for mining. threads bounds worker concurrency, maxDepth the nonce vector
// length. Cancelling ctx stops the search.
func Mine(ctx context.Context, b *block.Block, threads, maxDepth int) (*Solution, error) {
	if !b.Closed || b.MiningReleaseTimestamp == 0 {
		return nil, errors.New("miner: block not released for mining")
	}
	if threads < 1 {
		threads = 1
	}

	base := b.HashBase()
	target := powTarget(b.Difficulty)
	start := time.Now()

	var found atomic.Pointer[Solution]
	var exhausted bool

	co.ParallelN(threads, func(enqueue co.Enqueue) {
		nonces := []uint64{0}
		for found.Load() == nil && ctx.Err() == nil {
			if len(nonces) > maxDepth {
				exhausted = true
				return
			}

			// Snapshot a batch of candidates for one worker.
			batch := make([][]uint64, 0, nonceBatchSize)
			for i := 0; i < nonceBatchSize; i++ {
				candidate := append([]uint64(nil), nonces...)
				batch = append(batch, candidate)
				nonces = increment(nonces)
			}

			enqueue(func() {
				for _, candidate := range batch {
					if found.Load() != nil || ctx.Err() != nil {
						return
					}
					hash := block.PowHash(base, candidate)
					metricHashes().Add(1)
					if underTarget(hash, target) {
						found.CompareAndSwap(nil, &Solution{Nonces: candidate, Hash: hash})
						return
					}
				}
			})
		}
	})

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	sol := found.Load()
	if sol == nil {
		if exhausted {
			return nil, ErrExhausted
		}
		return nil, errors.New("miner: no solution")
	}

	metricSolutions().Add(1)
	logger.Info("solution found", "block", b.ID, "difficulty", b.Difficulty,
		"depth", len(sol.Nonces), "elapsed", time.Since(start))
	return sol, nil
}
