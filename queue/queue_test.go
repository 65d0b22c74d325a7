// Copyright (c) 2025 The Norsh developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/norsh/blockchain/cache"
	"github.com/norsh/blockchain/dispatch"
	"github.com/norsh/blockchain/norsh"
)

func envelope(t *testing.T, requestID, tag string, verb norsh.Verb) []byte {
	raw, err := json.Marshal(&dispatch.Envelope{
		RequestID:        requestID,
		RequestClassName: tag,
		Method:           verb,
		RequestData:      json.RawMessage(`{}`),
	})
	require.NoError(t, err)
	return raw
}

func TestWorkerDispatchesAndResponds(t *testing.T) {
	disp := dispatch.New(cache.NewMemory(), time.Minute)

	var mu sync.Mutex
	handled := map[string]int{}
	disp.Register("elements.ElementGet", norsh.GET, func(ctx context.Context, payload json.RawMessage) dispatch.Result {
		mu.Lock()
		defer mu.Unlock()
		handled["get"]++
		return dispatch.Ok("hello")
	})

	q := NewInproc(16)
	w := NewWorker(q, disp, 4)
	w.Start()

	ctx := context.Background()
	for i := 0; i < 10; i++ {
		require.NoError(t, q.Publish(ctx, envelope(t, fmt.Sprintf("req-%d", i), "elements.ElementGet", norsh.GET)))
	}

	// Responses land in the cache once handled.
	require.Eventually(t, func() bool {
		resp, ok, err := disp.Response(ctx, "req-9")
		return err == nil && ok && resp.Status == norsh.StatusOK
	}, 2*time.Second, 10*time.Millisecond)

	w.Stop()

	mu.Lock()
	defer mu.Unlock()
	assert.GreaterOrEqual(t, handled["get"], 10)
}

func TestWorkerDropsMalformed(t *testing.T) {
	disp := dispatch.New(cache.NewMemory(), time.Minute)
	q := NewInproc(4)
	w := NewWorker(q, disp, 1)
	w.Start()
	defer w.Stop()

	ctx := context.Background()
	require.NoError(t, q.Publish(ctx, []byte("not json")))
	require.NoError(t, q.Publish(ctx, envelope(t, "req-ok", "elements.ElementGet", norsh.GET)))

	// The malformed message is skipped, the next one still processes.
	require.Eventually(t, func() bool {
		_, ok, err := disp.Response(ctx, "req-ok")
		return err == nil && ok
	}, 2*time.Second, 10*time.Millisecond)
}

func TestWorkerHeartbeatOnQuietTopic(t *testing.T) {
	disp := dispatch.New(cache.NewMemory(), time.Minute)
	q := NewInproc(1)
	w := NewWorker(q, disp, 1)
	w.fetchTimeout = 20 * time.Millisecond
	w.Start()
	defer w.Stop()

	// Nothing is published; every poll cycle times out. The heartbeat must
	// keep advancing anyway, so an empty topic never reads as a stall.
	start := w.LastPoll()
	require.Eventually(t, func() bool {
		return w.LastPoll().After(start)
	}, 2*time.Second, 10*time.Millisecond)

	mark := w.LastPoll()
	require.Eventually(t, func() bool {
		return w.LastPoll().After(mark)
	}, 2*time.Second, 10*time.Millisecond)
}

func TestInprocClose(t *testing.T) {
	q := NewInproc(1)
	require.NoError(t, q.Close())

	_, err := q.Fetch(context.Background())
	assert.ErrorIs(t, err, ErrClosed)
	assert.ErrorIs(t, q.Publish(context.Background(), nil), ErrClosed)
	// Close is idempotent.
	require.NoError(t, q.Close())
}
