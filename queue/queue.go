// Copyright (c) 2025 The Norsh developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

// Package queue consumes operation requests from the message bus and feeds
// them to the dispatcher. The broker behind the Consumer interface is
// kafka in production and an in-process channel in solo mode and tests.
package queue

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/pkg/errors"

	"github.com/norsh/blockchain/co"
	"github.com/norsh/blockchain/dispatch"
	"github.com/norsh/blockchain/log"
	"github.com/norsh/blockchain/metrics"
)

var logger = log.WithContext("pkg", "queue")

var (
	metricConsumed = metrics.LazyLoadCounter("queue_consumed_count")
	metricFailures = metrics.LazyLoadCounter("queue_fetch_failure_count")
)

// drainTimeout bounds the wait for in-flight requests on shutdown.
const drainTimeout = 5 * time.Second

// defaultFetchTimeout bounds a single poll. A quiet topic then still
// advances the heartbeat every cycle; only a consumer that stops polling
// counts as stalled.
const defaultFetchTimeout = 30 * time.Second

// Message is one request pulled off the bus. Commit acknowledges it; an
// uncommitted message is redelivered after a restart.
type Message struct {
	Value  []byte
	commit func(ctx context.Context) error
}

// Commit acknowledges the message with the broker.
func (m *Message) Commit(ctx context.Context) error {
	if m.commit == nil {
		return nil
	}
	return m.commit(ctx)
}

// Consumer pulls request messages from the bus.
type Consumer interface {
	// Fetch blocks for the next message. It returns the context's error
	// when ctx is cancelled or its deadline passes.
	Fetch(ctx context.Context) (*Message, error)
	Close() error
}

// Worker pumps the consumer into the dispatcher with a fixed goroutine
// pool. Messages commit after handling, so a crash mid-request redelivers
// rather than drops; response caching makes the redelivery idempotent.
type Worker struct {
	consumer     Consumer
	disp         *dispatch.Dispatcher
	threads      int
	fetchTimeout time.Duration

	goes     co.Goes
	cancel   context.CancelFunc
	lastPoll atomic.Int64
}

// NewWorker creates a worker pool of the given size, minimum 1.
func NewWorker(consumer Consumer, disp *dispatch.Dispatcher, threads int) *Worker {
	if threads < 1 {
		threads = 1
	}
	return &Worker{consumer: consumer, disp: disp, threads: threads, fetchTimeout: defaultFetchTimeout}
}

// Start launches the pool. Call Stop to shut down.
func (w *Worker) Start() {
	ctx, cancel := context.WithCancel(context.Background())
	w.cancel = cancel
	w.lastPoll.Store(time.Now().UnixMilli())

	for i := 0; i < w.threads; i++ {
		w.goes.Go(func() { w.loop(ctx) })
	}
	logger.Info("queue consumer started", "threads", w.threads)
}

func (w *Worker) loop(ctx context.Context) {
	for {
		fetchCtx, cancel := context.WithTimeout(ctx, w.fetchTimeout)
		msg, err := w.consumer.Fetch(fetchCtx)
		cancel()
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			if errors.Is(err, context.DeadlineExceeded) {
				// Quiet topic; the poll attempt itself is the liveness signal.
				w.lastPoll.Store(time.Now().UnixMilli())
				continue
			}
			metricFailures().Add(1)
			logger.Error("fetch failed", "err", err)
			select {
			case <-ctx.Done():
				return
			case <-time.After(time.Second):
			}
			continue
		}
		w.lastPoll.Store(time.Now().UnixMilli())

		w.disp.DispatchRaw(ctx, msg.Value)
		metricConsumed().Add(1)

		if err := msg.Commit(ctx); err != nil && ctx.Err() == nil {
			logger.Error("commit failed", "err", err)
		}
	}
}

// Stop cancels the pool and waits for in-flight requests, bounded by the
// drain timeout.
func (w *Worker) Stop() {
	if w.cancel == nil {
		return
	}
	w.cancel()

	select {
	case <-w.goes.Done():
	case <-time.After(drainTimeout):
		logger.Warn("drain timeout, abandoning in-flight requests")
	}
	if err := w.consumer.Close(); err != nil {
		logger.Error("consumer close failed", "err", err)
	}
	logger.Info("queue consumer stopped")
}

// LastPoll reports when a worker last completed a poll attempt — a message,
// or a quiet cycle that timed out. It is the liveness signal of the health
// probe; an empty topic does not count as a stall.
func (w *Worker) LastPoll() time.Time {
	return time.UnixMilli(w.lastPoll.Load())
}
