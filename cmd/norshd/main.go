// Copyright (c) 2025 The Norsh developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package main

import (
	"fmt"
	"os"
	"path/filepath"

	cli "gopkg.in/urfave/cli.v1"

	"github.com/norsh/blockchain/admin"
	"github.com/norsh/blockchain/api"
	"github.com/norsh/blockchain/config"
	"github.com/norsh/blockchain/health"
	"github.com/norsh/blockchain/indexdb"
	"github.com/norsh/blockchain/log"
	"github.com/norsh/blockchain/metrics"
	"github.com/norsh/blockchain/queue"
)

var (
	version   string
	gitCommit string
	gitTag    string
)

func fullVersion() string {
	versionMeta := "release"
	if gitTag == "" {
		versionMeta = "dev"
	}
	return fmt.Sprintf("%s-%s-%s", version, gitCommit, versionMeta)
}

func main() {
	app := cli.App{
		Version:   fullVersion(),
		Name:      "norshd",
		Usage:     "Write-side worker of the Norsh blockchain",
		Copyright: "2025 The Norsh developers <https://norsh.org/>",
		Flags: []cli.Flag{
			configFlag,
			dataDirFlag,
			apiAddrFlag,
			apiCorsFlag,
			adminAddrFlag,
			verbosityFlag,
			jsonLogsFlag,
			enableMetricsFlag,
			cacheFlag,
			ntpServerFlag,
			minerThreadsFlag,
		},
		Action: defaultAction,
		Commands: []cli.Command{
			{
				Name:  "solo",
				Usage: "Norsh worker for test & dev, on in-memory backends",
				Flags: []cli.Flag{
					configFlag,
					dataDirFlag,
					apiAddrFlag,
					apiCorsFlag,
					adminAddrFlag,
					verbosityFlag,
					jsonLogsFlag,
					persistFlag,
					minerThreadsFlag,
				},
				Action: soloAction,
			},
			{
				Name:   "keygen",
				Usage:  "generate a secp256k1 key pair",
				Flags:  []cli.Flag{keyFileFlag},
				Action: keygenAction,
			},
			{
				Name:  "index",
				Usage: "relational index maintenance",
				Subcommands: []cli.Command{
					{
						Name:  "rebuild",
						Usage: "rebuild the block index from the ledger database",
						Flags: []cli.Flag{
							configFlag,
							dataDirFlag,
							verbosityFlag,
							jsonLogsFlag,
						},
						Action: rebuildIndexAction,
					},
				},
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func defaultAction(ctx *cli.Context) error {
	defer func() { log.Info("exited") }()

	logLevel := initLogger(ctx)
	cfg := loadConfig(ctx)

	if ctx.Bool(enableMetricsFlag.Name) {
		metrics.InitializePrometheusMetrics()
	}

	dataDir := makeDataDir(cfg)
	store := openStore(ctx, dataDir)
	defer func() { log.Info("closing ledger database..."); store.Close() }()

	idx, err := indexdb.New(filepath.Join(dataDir, "index.db"))
	if err != nil {
		fatal(fmt.Sprintf("open index database: %v", err))
	}
	defer func() { log.Info("closing index database..."); idx.Close() }()

	exitCtx := handleExitSignal()

	c := openCache(exitCtx, cfg)
	defer closeCache(c)

	n, err := buildNode(exitCtx, cfg, store, c, idx)
	if err != nil {
		fatal(fmt.Sprintf("bootstrap: %v", err))
	}

	consumer, err := openConsumer(cfg)
	if err != nil {
		fatal(err)
	}
	worker := queue.NewWorker(consumer, n.disp, cfg.Defaults.QueueConsumerThreadPool)
	worker.Start()
	defer func() { log.Info("stopping queue worker..."); worker.Stop() }()

	var h health.Health
	h.SetConsumerProbe(worker.LastPoll)
	h.BootstrapDone()
	if server := ctx.String(ntpServerFlag.Name); server != "" {
		stopProbe := h.StartClockProbe(server)
		defer stopProbe()
	}

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

	printStartupMessage(cfg, n, dataDir, apiURL, adminURL)

	<-exitCtx.Done()
	return nil
}

func printStartupMessage(cfg *config.Config, n *node, dataDir, apiURL, adminURL string) {
	fmt.Printf(`Starting %v
    Network     [ genesis nsh %v ]
    Data dir    [ %v ]
    Cache       [ %v ]
    Queue       [ %v ]
    API portal  [ %v ]
    Admin       [ %v ]
`,
		fullVersion(),
		n.gen.NshID,
		dataDir,
		cfg.Cache.Backend,
		cfg.Queue.Backend,
		apiURL,
		adminURL)
}
