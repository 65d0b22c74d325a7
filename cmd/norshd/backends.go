// Copyright (c) 2025 The Norsh developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package main

import (
	"context"
	"fmt"

	"github.com/pkg/errors"

	"github.com/norsh/blockchain/cache"
	"github.com/norsh/blockchain/config"
	"github.com/norsh/blockchain/log"
	"github.com/norsh/blockchain/queue"
)

// openCache selects the configured cache backend. Validation already
// constrained the backend name.
func openCache(ctx context.Context, cfg *config.Config) cache.Cache {
	switch cfg.Cache.Backend {
	case "redis":
		c, err := cache.NewRedis(ctx, cfg.Cache.Addr, cfg.Cache.Password, cfg.Cache.DB)
		if err != nil {
			fatal(fmt.Sprintf("connect redis [%v]: %v", cfg.Cache.Addr, err))
		}
		return c
	default:
		log.Warn("memory cache selected; locks and responses are node-local")
		return cache.NewMemory()
	}
}

func closeCache(c cache.Cache) {
	if closer, ok := c.(interface{ Close() error }); ok {
		closer.Close()
	}
}

// openConsumer selects the configured queue backend. The in-proc backend has
// no external producer; it exists for solo mode and manual testing through
// the REST endpoint.
func openConsumer(cfg *config.Config) (queue.Consumer, error) {
	switch cfg.Queue.Backend {
	case "kafka":
		return queue.NewKafka(cfg.Queue), nil
	case "inproc":
		log.Warn("in-proc queue selected; requests arrive through the API only")
		return queue.NewInproc(0), nil
	default:
		return nil, errors.Errorf("unknown queue backend %q", cfg.Queue.Backend)
	}
}
