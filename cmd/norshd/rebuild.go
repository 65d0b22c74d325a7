// Copyright (c) 2025 The Norsh developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package main

import (
	"fmt"
	"path/filepath"

	cli "gopkg.in/urfave/cli.v1"

	"github.com/norsh/blockchain/indexdb"
	"github.com/norsh/blockchain/log"
)

// rebuildIndexAction re-derives the relational block index from the ledger
// database. The worker must be stopped; both databases are opened directly.
func rebuildIndexAction(ctx *cli.Context) error {
	initLogger(ctx)
	cfg := loadConfig(ctx)

	dataDir := makeDataDir(cfg)
	store := openStore(ctx, dataDir)
	defer store.Close()

	idx, err := indexdb.New(filepath.Join(dataDir, "index.db"))
	if err != nil {
		return err
	}
	defer idx.Close()

	if err := idx.Rebuild(store, true); err != nil {
		return err
	}
	fmt.Println("index rebuilt")
	log.Info("index rebuilt", "dataDir", dataDir)
	return nil
}
