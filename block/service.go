// Copyright (c) 2025 The Norsh developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package block

import (
	"context"
	"encoding/json"
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"

	"github.com/norsh/blockchain/config"
	"github.com/norsh/blockchain/docdb"
	"github.com/norsh/blockchain/log"
	"github.com/norsh/blockchain/metrics"
	"github.com/norsh/blockchain/norsh"
	"github.com/norsh/blockchain/semaphore"
	"github.com/norsh/blockchain/sequence"
)

var logger = log.WithContext("pkg", "block")

var (
	metricOpens   = metrics.LazyLoadCounter("block_open_count")
	metricCloses  = metrics.LazyLoadCounter("block_close_count")
	metricAppends = metrics.LazyLoadCounter("block_tx_append_count")
	metricMined   = metrics.LazyLoadCounter("block_mined_count")
)

// Companion collections resolving blocks by window number and by height.
// Both are only ever written under the blockchain lock, so a pointer read
// inside the same lock is consistent with the block it names.
const (
	indexByNumber = "blocks_by_number"
	indexByHeight = "blocks_by_height"
)

// ErrTimelineBusy is returned when the block timeline could not take the
// transaction within the configured window.
var ErrTimelineBusy = errors.New("block: timeline busy")

type pointer struct {
	ID string `json:"id"`
}

// Indexer receives every closed block, for the relational index.
type Indexer interface {
	IndexBlock(b *Block) error
}

// RewardFunc mints the mining reward once a block is verified.
type RewardFunc func(ctx context.Context, b *Block) error

// Service owns the block timeline.
type Service struct {
	blocks   *docdb.Collection
	byNumber *docdb.Collection
	byHeight *docdb.Collection
	seqs     *sequence.Store
	sem      *semaphore.Semaphore

	feed    *Feed
	indexer Indexer
	reward  RewardFunc

	initialBackoff time.Duration
	maxBackoff     time.Duration
	addTimeout     time.Duration

	nowMilli func() int64
}

// NewService creates the block service.
func NewService(store *docdb.Store, seqs *sequence.Store, sem *semaphore.Semaphore, defaults config.Defaults, nowMilli func() int64) *Service {
	if nowMilli == nil {
		nowMilli = func() int64 { return time.Now().UnixMilli() }
	}
	return &Service{
		blocks:         store.Collection(norsh.CollectionBlocks),
		byNumber:       store.Collection(indexByNumber),
		byHeight:       store.Collection(indexByHeight),
		seqs:           seqs,
		sem:            sem,
		feed:           NewFeed(),
		initialBackoff: time.Duration(defaults.ThreadInitialBackoffMs) * time.Millisecond,
		maxBackoff:     time.Duration(defaults.ThreadMaxBackoffMs) * time.Millisecond,
		addTimeout:     time.Duration(defaults.SemaphoreLockTimeoutMs) * time.Millisecond,
		nowMilli:       nowMilli,
	}
}

// SetIndexer installs the closed-block index sink. Must be called before the
// timeline starts moving.
func (s *Service) SetIndexer(ix Indexer) { s.indexer = ix }

// SetReward installs the mining reward hook.
func (s *Service) SetReward(fn RewardFunc) { s.reward = fn }

// Feed returns the closed-block feed.
func (s *Service) Feed() *Feed { return s.feed }

// Get returns a block by id.
func (s *Service) Get(id string) (*Block, error) {
	var b Block
	if err := s.blocks.Get(id, &b); err != nil {
		return nil, err
	}
	return &b, nil
}

// ByHeight returns the block at the given height, or nil when no block has
// reached it yet.
func (s *Service) ByHeight(height int64) (*Block, error) {
	return s.byPointer(s.byHeight, norsh.Concat(height))
}

// ByNumber returns the block of the given window number, or nil.
func (s *Service) ByNumber(number int64) (*Block, error) {
	return s.byPointer(s.byNumber, norsh.Concat(number))
}

func (s *Service) byPointer(idx *docdb.Collection, key string) (*Block, error) {
	var ptr pointer
	err := idx.Get(key, &ptr)
	if docdb.IsNotFound(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var b Block
	if err := s.blocks.Get(ptr.ID, &b); err != nil {
		return nil, err
	}
	return &b, nil
}

// AddTransaction places the reference into the block of the current window,
// opening the block (and closing its predecessor) when the window has rolled
// over. It returns the window number the transaction landed in. The whole
// attempt is bounded by the lock timeout; exhaustion surfaces as
// ErrTimelineBusy.
func (s *Service) AddTransaction(ctx context.Context, ref TxRef) (int64, error) {
	start := time.Now()
	for attempt := 1; ; attempt++ {
		number, err := semaphore.Execute(ctx, s.sem, norsh.LockBlockchain, func() (int64, error) {
			return s.tryAdd(ref)
		})
		if err == nil {
			metricAppends().Add(1)
			return number, nil
		}
		if !errors.Is(err, errRetry) && !errors.Is(err, semaphore.ErrNotAcquired) {
			return 0, err
		}
		if time.Since(start) >= s.addTimeout {
			logger.Error("block append exhausted retries", "tx", ref.ID)
			return 0, ErrTimelineBusy
		}
		if err := ctx.Err(); err != nil {
			return 0, err
		}
		time.Sleep(min(s.initialBackoff*time.Duration(attempt), s.maxBackoff))
	}
}

// errRetry signals an attempt that lost the race against a window rollover
// and should run again.
var errRetry = errors.New("block: retry")

// tryAdd runs one append attempt under the blockchain lock.
func (s *Service) tryAdd(ref TxRef) (int64, error) {
	now := s.nowMilli()
	number := norsh.BlockNumber(now)

	current, err := s.ByNumber(number)
	if err != nil {
		return 0, err
	}
	if current != nil {
		ok, err := s.blocks.UpdateWhere(current.ID,
			func(raw []byte) bool {
				var b Block
				if json.Unmarshal(raw, &b) != nil {
					return false
				}
				return b.Number == number && !b.Closed
			},
			func(raw []byte) (any, error) {
				var b Block
				if err := json.Unmarshal(raw, &b); err != nil {
					return nil, errors.Wrap(err, "decode block")
				}
				b.Transactions = append(b.Transactions, ref)
				return &b, nil
			})
		if err != nil {
			return 0, err
		}
		if ok {
			return number, nil
		}
		// The window's block is already closed; only a clock moving
		// backwards gets here. Retry lands in the next window.
		return 0, errRetry
	}

	if err := s.open(number, now); err != nil {
		return 0, err
	}
	return 0, errRetry
}

// open creates the block of the given window, chained to its predecessor.
// The predecessor is sealed before the new head is persisted, so a crash in
// between leaves every stored block closed instead of two open ones. Caller
// holds the blockchain lock.
func (s *Service) open(number, now int64) error {
	seq, err := s.seqs.Get(norsh.SequenceBlockID)
	if err != nil {
		return err
	}
	if seq.Data != "" {
		if err := s.close(seq.Data); err != nil {
			return err
		}
	}

	id := ChainID(seq.Data, number)
	if err := s.seqs.Inc(norsh.SequenceBlockID, &id); err != nil {
		return err
	}

	b := Block{
		ID:           id,
		PreviousID:   seq.Data,
		Number:       number,
		Height:       seq.Sequence,
		Timestamp:    now,
		TotalFee:     decimal.Zero,
		Transactions: []TxRef{},
	}
	if err := s.blocks.Put(id, &b); err != nil {
		return err
	}
	if err := s.byNumber.Put(norsh.Concat(number), &pointer{ID: id}); err != nil {
		return err
	}
	if err := s.byHeight.Put(norsh.Concat(b.Height), &pointer{ID: id}); err != nil {
		return err
	}
	metricOpens().Add(1)
	logger.Info("opened block", "number", number, "height", b.Height, "id", id)
	return nil
}

// close seals the named block: Merkle root, difficulty, fee total, mining
// release linking, index row, feed publish. Caller holds the blockchain
// lock. Closing a closed block is a no-op.
func (s *Service) close(id string) error {
	var closed *Block
	ok, err := s.blocks.UpdateWhere(id,
		func(raw []byte) bool {
			var b Block
			if json.Unmarshal(raw, &b) != nil {
				return false
			}
			return !b.Closed
		},
		func(raw []byte) (any, error) {
			var b Block
			if err := json.Unmarshal(raw, &b); err != nil {
				return nil, errors.Wrap(err, "decode block")
			}
			now := s.nowMilli()

			ids := make([]string, len(b.Transactions))
			total := decimal.Zero
			for i, ref := range b.Transactions {
				ids[i] = ref.ID
				total = total.Add(ref.Tax)
			}
			b.MerkleRoot = MerkleRoot(ids)
			b.TotalFee = total
			b.Difficulty = Difficulty(total)
			b.CloseTimestamp = now
			b.Closed = true

			if b.Height == 0 {
				b.MiningReleaseTimestamp = now
			} else {
				prev, err := s.ByHeight(b.Height - 1)
				if err != nil {
					return nil, err
				}
				if prev != nil && prev.Mined && prev.BlockHash != "" {
					b.PreviousBlockHash = prev.BlockHash
					b.MiningReleaseTimestamp = now
				}
			}
			closed = &b
			return &b, nil
		})
	if err != nil {
		return err
	}
	if !ok {
		return nil
	}

	metricCloses().Add(1)
	logger.Info("closed block", "id", id, "height", closed.Height,
		"txs", len(closed.Transactions), "difficulty", closed.Difficulty,
		"totalFee", closed.TotalFee)

	if s.indexer != nil {
		if err := s.indexer.IndexBlock(closed); err != nil {
			// The relational index is derived data; the timeline moves on.
			logger.Error("failed to index block", "id", id, "err", err)
		}
	}
	s.feed.Publish(closed)
	return nil
}

// ReleaseNext promotes the block above the given height for mining once its
// predecessor hash is known. Caller holds the blockchain lock.
func (s *Service) ReleaseNext(height int64, prevHash string) error {
	next, err := s.ByHeight(height + 1)
	if err != nil || next == nil {
		return err
	}
	_, err = s.blocks.UpdateWhere(next.ID,
		func(raw []byte) bool {
			var b Block
			if json.Unmarshal(raw, &b) != nil {
				return false
			}
			return b.Closed && b.PreviousBlockHash == ""
		},
		func(raw []byte) (any, error) {
			var b Block
			if err := json.Unmarshal(raw, &b); err != nil {
				return nil, errors.Wrap(err, "decode block")
			}
			b.PreviousBlockHash = prevHash
			b.MiningReleaseTimestamp = s.nowMilli()
			logger.Info("released block for mining", "id", b.ID, "height", b.Height)
			return &b, nil
		})
	return err
}

// VerifyAndReward validates a mining solution and, first come only, marks
// the block mined, mints the reward and releases the successor. A repeat or
// losing submission reports false.
func (s *Service) VerifyAndReward(ctx context.Context, blockID string, nonces []uint64, hash, miner string) (bool, error) {
	mined, err := semaphore.Execute(ctx, s.sem, norsh.LockBlockchain, func() (*Block, error) {
		b, err := s.Get(blockID)
		if err != nil {
			if docdb.IsNotFound(err) {
				return nil, nil
			}
			return nil, err
		}
		if !b.Closed || b.MiningReleaseTimestamp == 0 {
			return nil, nil
		}
		if PowHash(b.HashBase(), nonces) != hash || !CheckPow(hash, b.Difficulty) {
			return nil, nil
		}

		var won *Block
		ok, err := s.blocks.UpdateWhere(blockID,
			func(raw []byte) bool {
				var cur Block
				if json.Unmarshal(raw, &cur) != nil {
					return false
				}
				return !cur.Mined
			},
			func(raw []byte) (any, error) {
				var cur Block
				if err := json.Unmarshal(raw, &cur); err != nil {
					return nil, errors.Wrap(err, "decode block")
				}
				cur.Mined = true
				cur.Miner = miner
				cur.MiningEndTimestamp = s.nowMilli()
				cur.Nonces = nonces
				cur.BlockHash = hash
				won = &cur
				return &cur, nil
			})
		if err != nil || !ok {
			return nil, err
		}

		if err := s.ReleaseNext(won.Height, hash); err != nil {
			logger.Error("failed to release next block", "height", won.Height+1, "err", err)
		}
		return won, nil
	})
	if err != nil || mined == nil {
		return false, err
	}

	metricMined().Add(1)
	logger.Info("block mined", "id", blockID, "height", mined.Height, "miner", miner)

	// The reward mints a transaction of its own and must take the timeline
	// lock, so it runs after the critical section.
	if s.reward != nil {
		if err := s.reward(ctx, mined); err != nil {
			logger.Error("failed to mint mining reward", "block", blockID, "err", err)
		}
	}
	return true, nil
}

// FindByTransaction scans the timeline for the block holding the given
// transaction. Returns nil when no block references it.
func (s *Service) FindByTransaction(txID string) (*Block, error) {
	var found *Block
	err := s.blocks.Iterate(func(id string, raw []byte) bool {
		var b Block
		if json.Unmarshal(raw, &b) != nil {
			return true
		}
		for _, ref := range b.Transactions {
			if ref.ID == txID {
				found = &b
				return false
			}
		}
		return true
	})
	return found, err
}
