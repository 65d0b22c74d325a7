// Copyright (c) 2025 The Norsh developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package main

import (
	"encoding/hex"
	"fmt"
	"path/filepath"

	"github.com/ethereum/go-ethereum/crypto"
	cli "gopkg.in/urfave/cli.v1"

	"github.com/norsh/blockchain/admin"
	"github.com/norsh/blockchain/api"
	"github.com/norsh/blockchain/cry"
	"github.com/norsh/blockchain/docdb"
	"github.com/norsh/blockchain/health"
	"github.com/norsh/blockchain/indexdb"
	"github.com/norsh/blockchain/log"
	"github.com/norsh/blockchain/queue"
)

func soloAction(ctx *cli.Context) error {
	defer func() { log.Info("exited") }()

	logLevel := initLogger(ctx)
	cfg := loadConfig(ctx)
	cfg.Cache.Backend = "memory"
	cfg.Queue.Backend = "inproc"

	// Solo runs self-contained: a throwaway genesis key pair unless the
	// config carries one.
	if cfg.Genesis.PrivateKey == "" {
		priv, err := crypto.GenerateKey()
		if err != nil {
			fatal(fmt.Sprintf("generate solo genesis key: %v", err))
		}
		cfg.Genesis.PrivateKey = hex.EncodeToString(crypto.FromECDSA(priv))
		pub, err := cry.PublicKeyHex(cfg.Genesis.PrivateKey)
		if err != nil {
			fatal(err)
		}
		cfg.Genesis.PublicKey = pub
		log.Info("solo genesis key generated", "publicKey", pub)
	}

	var store *docdb.Store
	var idx *indexdb.IndexDB
	var err error
	instanceDir := "Memory"

	if ctx.Bool(persistFlag.Name) {
		instanceDir = makeDataDir(cfg)
		store = openStore(ctx, instanceDir)
		idx, err = indexdb.New(filepath.Join(instanceDir, "index.db"))
	} else {
		store, err = docdb.OpenMem()
		if err == nil {
			idx, err = indexdb.NewMem()
		}
	}
	if err != nil {
		fatal(fmt.Sprintf("open solo databases: %v", err))
	}
	defer func() { log.Info("closing ledger database..."); store.Close() }()
	defer func() { log.Info("closing index database..."); idx.Close() }()

	exitCtx := handleExitSignal()

	c := openCache(exitCtx, cfg)
	n, err := buildNode(exitCtx, cfg, store, c, idx)
	if err != nil {
		fatal(fmt.Sprintf("bootstrap: %v", err))
	}

	consumer := queue.NewInproc(0)
	worker := queue.NewWorker(consumer, n.disp, cfg.Defaults.QueueConsumerThreadPool)
	worker.Start()
	defer func() { log.Info("stopping queue worker..."); worker.Stop() }()

	var h health.Health
	h.SetConsumerProbe(worker.LastPoll)
	h.BootstrapDone()

	apiHandler, apiRelease := api.New(n.disp, n.blocks, api.Options{
		AllowedOrigins: ctx.String(apiCorsFlag.Name),
	})
	apiURL, apiStop := startAPIServer(cfg.APIAddr, apiHandler)
	defer func() { log.Info("stopping API server..."); apiStop(); apiRelease() }()

	adminURL, adminStop, err := admin.StartServer(cfg.AdminAddr, logLevel, &h)
	if err != nil {
		fatal(err)
	}
	defer func() { log.Info("stopping admin server..."); adminStop() }()

	go n.mineLoop(exitCtx, ctx.Int(minerThreadsFlag.Name))

	fmt.Printf(`Starting %v [solo]
    Genesis nsh [ %v ]
    Data dir    [ %v ]
    API portal  [ %v ]
    Admin       [ %v ]
`,
		fullVersion(), n.gen.NshID, instanceDir, apiURL, adminURL)

	<-exitCtx.Done()
	return nil
}
