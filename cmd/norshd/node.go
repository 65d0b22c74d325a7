// Copyright (c) 2025 The Norsh developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package main

import (
	"context"
	"time"

	"github.com/norsh/blockchain/balance"
	"github.com/norsh/blockchain/block"
	"github.com/norsh/blockchain/cache"
	"github.com/norsh/blockchain/config"
	"github.com/norsh/blockchain/dispatch"
	"github.com/norsh/blockchain/docdb"
	"github.com/norsh/blockchain/element"
	"github.com/norsh/blockchain/genesis"
	"github.com/norsh/blockchain/indexdb"
	"github.com/norsh/blockchain/log"
	"github.com/norsh/blockchain/miner"
	"github.com/norsh/blockchain/norsh"
	"github.com/norsh/blockchain/semaphore"
	"github.com/norsh/blockchain/sequence"
	"github.com/norsh/blockchain/tx"
)

// node bundles the wired services of a running worker.
type node struct {
	cfg      *config.Config
	store    *docdb.Store
	cache    cache.Cache
	sem      *semaphore.Semaphore
	seqs     *sequence.Store
	balances *balance.Store
	elements *element.Service
	blocks   *block.Service
	txs      *tx.Service
	disp     *dispatch.Dispatcher
	gen      *genesis.Result
}

// buildNode wires the full service graph on the given backends and runs the
// genesis bootstrap.
func buildNode(ctx context.Context, cfg *config.Config, store *docdb.Store, c cache.Cache, idx *indexdb.IndexDB) (*node, error) {
	sem := semaphore.New(c, cfg.Defaults)
	seqs := sequence.NewStore(store)
	balances := balance.NewStore(store, cfg.Balances.SeedAmount)

	blocks := block.NewService(store, seqs, sem, cfg.Defaults, nil)
	if idx != nil {
		blocks.SetIndexer(idx)
	}

	elements := element.NewService(store, seqs, sem, nil)
	txs := tx.NewService(store, balances, seqs, sem, blocks, elements, cfg, nil)
	elements.SetFeeCharger(txs.ChargeFee)
	blocks.SetReward(txs.MintReward)

	gen, err := genesis.Bootstrap(ctx, elements, seqs, cfg, nil)
	if err != nil {
		return nil, err
	}
	txs.SetRewardElement(gen.NshID, gen.Owner)

	disp := dispatch.New(c, time.Duration(cfg.Defaults.MessagingTtlMs)*time.Millisecond)
	disp.Register(element.TagCreate, norsh.POST, elements.Create)
	disp.Register(element.TagGet, norsh.GET, elements.Get)
	disp.Register(element.TagMetadata, norsh.PUT, elements.SetMetadata)
	disp.Register(tx.TagCreate, norsh.POST, txs.Create)
	disp.Register(tx.TagGet, norsh.GET, txs.Get)

	return &node{
		cfg:      cfg,
		store:    store,
		cache:    c,
		sem:      sem,
		seqs:     seqs,
		balances: balances,
		elements: elements,
		blocks:   blocks,
		txs:      txs,
		disp:     disp,
		gen:      gen,
	}, nil
}

// mineLoop walks the timeline from genesis, mining each released block and
// submitting the solution. It returns when ctx is cancelled.
func (n *node) mineLoop(ctx context.Context, threads int) {
	const maxNonceDepth = 8

	var cursor int64
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		b, err := n.blocks.ByHeight(cursor)
		if err != nil {
			log.Error("miner: read block", "height", cursor, "err", err)
			continue
		}
		if b == nil {
			continue
		}
		if b.Mined {
			cursor++
			continue
		}
		if !b.Closed || b.MiningReleaseTimestamp == 0 {
			continue
		}

		sol, err := miner.Mine(ctx, b, threads, maxNonceDepth)
		if err != nil {
			if ctx.Err() == nil {
				log.Error("miner: search failed", "id", b.ID, "err", err)
			}
			continue
		}
		ok, err := n.blocks.VerifyAndReward(ctx, b.ID, sol.Nonces, sol.Hash, n.gen.Owner)
		if err != nil {
			log.Error("miner: submit solution", "id", b.ID, "err", err)
			continue
		}
		if ok {
			cursor++
		}
	}
}
