// Copyright (c) 2025 The Norsh developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"runtime"
	"syscall"
	"time"

	"github.com/davecgh/go-spew/spew"
	"github.com/elastic/gosigar"
	"github.com/ethereum/go-ethereum/common/fdlimit"
	"github.com/mattn/go-isatty"
	cli "gopkg.in/urfave/cli.v1"

	"github.com/norsh/blockchain/co"
	"github.com/norsh/blockchain/config"
	"github.com/norsh/blockchain/docdb"
	"github.com/norsh/blockchain/log"
)

func fatal(args ...interface{}) {
	var w io.Writer
	if runtime.GOOS == "windows" {
		// The SameFile check below doesn't work on Windows.
		// stdout is unlikely to get redirected though, so just print there.
		w = os.Stdout
	} else {
		outf, _ := os.Stdout.Stat()
		errf, _ := os.Stderr.Stat()
		if outf != nil && errf != nil && os.SameFile(outf, errf) {
			w = os.Stderr
		} else {
			w = io.MultiWriter(os.Stdout, os.Stderr)
		}
	}
	fmt.Fprint(w, "Fatal: ")
	fmt.Fprintln(w, args...)
	os.Exit(1)
}

func initLogger(ctx *cli.Context) *slog.LevelVar {
	level, err := log.ParseLevel(ctx.String(verbosityFlag.Name))
	if err != nil {
		fatal(err)
	}
	logLevel := new(slog.LevelVar)
	logLevel.Set(level)

	var handler slog.Handler
	if ctx.Bool(jsonLogsFlag.Name) || !isatty.IsTerminal(os.Stderr.Fd()) {
		handler = log.JSONHandlerWithLevel(os.Stderr, logLevel)
	} else {
		handler = log.NewTerminalHandlerWithLevel(os.Stderr, logLevel, true)
	}
	log.SetDefault(log.NewLogger(handler))
	return logLevel
}

func loadConfig(ctx *cli.Context) *config.Config {
	path := config.Resolve(ctx.String(configFlag.Name))
	cfg, err := config.Load(path)
	if err != nil {
		fatal(err)
	}
	if v := ctx.String(dataDirFlag.Name); v != "" {
		cfg.Store.DataDir = v
	}
	if v := ctx.String(apiAddrFlag.Name); v != "" {
		cfg.APIAddr = v
	}
	if v := ctx.String(adminAddrFlag.Name); v != "" {
		cfg.AdminAddr = v
	}
	log.Trace("loaded config", "path", path, "config", spew.Sdump(cfg))
	return cfg
}

func makeDataDir(cfg *config.Config) string {
	dir := cfg.Store.DataDir
	if dir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			fatal(fmt.Sprintf("locate home dir: %v", err))
		}
		dir = filepath.Join(home, ".norsh")
	}
	if err := os.MkdirAll(dir, 0o700); err != nil {
		fatal(fmt.Sprintf("create data dir [%v]: %v", dir, err))
	}
	return dir
}

func openStore(ctx *cli.Context, dataDir string) *docdb.Store {
	cacheMB := normalizeCacheSize(int(ctx.Uint64(cacheFlag.Name)))
	log.Debug("cache size(MB)", "size", cacheMB)

	fdCache := suggestFDCache()
	log.Debug("fd cache", "n", fdCache)

	dir := filepath.Join(dataDir, "main.db")
	store, err := docdb.Open(dir, docdb.Options{
		CacheSizeMB:            cacheMB,
		OpenFilesCacheCapacity: fdCache,
	})
	if err != nil {
		fatal(fmt.Sprintf("open ledger database [%v]: %v", dir, err))
	}
	return store
}

func normalizeCacheSize(sizeMB int) int {
	if sizeMB < 32 {
		sizeMB = 32
	}

	var mem gosigar.Mem
	if err := mem.Get(); err != nil {
		log.Warn("failed to get total mem:", "err", err)
	} else {
		// limit to 1/2 os physical ram
		limitMB := int(mem.Total / 1024 / 1024 / 2)
		if sizeMB > limitMB {
			sizeMB = limitMB
			log.Warn("cache size(MB) limited", "limit", limitMB)
		}
	}
	return sizeMB
}

func suggestFDCache() int {
	limit, err := fdlimit.Current()
	if err != nil {
		fatal("failed to get fd limit:", err)
	}
	if limit <= 1024 {
		log.Warn("low fd limit, increase it if possible", "limit", limit)
	}

	n := limit / 2
	if n > 5120 {
		return 5120
	}
	return n
}

func startAPIServer(addr string, handler http.Handler) (string, func()) {
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		fatal(fmt.Sprintf("listen API addr [%v]: %v", addr, err))
	}
	srv := &http.Server{Handler: handler, ReadHeaderTimeout: 5 * time.Second}
	var goes co.Goes
	goes.Go(func() {
		srv.Serve(listener)
	})
	return "http://" + listener.Addr().String() + "/", func() {
		srv.Close()
		goes.Wait()
	}
}

func handleExitSignal() context.Context {
	exitSignalCtx, cancel := context.WithCancel(context.Background())

	go func() {
		exitSignalCh := make(chan os.Signal, 1)
		signal.Notify(exitSignalCh, os.Interrupt, syscall.SIGTERM)

		sig := <-exitSignalCh
		log.Info("exit signal received", "signal", sig)
		cancel()
	}()
	return exitSignalCtx
}
