// Copyright (c) 2025 The Norsh developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/norsh/blockchain/block"
	"github.com/norsh/blockchain/cache"
	"github.com/norsh/blockchain/config"
	"github.com/norsh/blockchain/dispatch"
	"github.com/norsh/blockchain/docdb"
	"github.com/norsh/blockchain/norsh"
	"github.com/norsh/blockchain/semaphore"
	"github.com/norsh/blockchain/sequence"
)

func newServer(t *testing.T) (*httptest.Server, *dispatch.Dispatcher, *block.Service) {
	db, err := docdb.OpenMem()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	defaults := config.Default().Defaults
	defaults.ThreadInitialBackoffMs = 1
	sem := semaphore.New(cache.NewMemory(), defaults)
	blocks := block.NewService(db, sequence.NewStore(db), sem, defaults, nil)

	disp := dispatch.New(cache.NewMemory(), time.Minute)
	disp.Register("elements.ElementGet", norsh.GET, func(ctx context.Context, payload json.RawMessage) dispatch.Result {
		return dispatch.Ok(restutilEcho(payload))
	})

	handler, release := New(disp, blocks, Options{})
	srv := httptest.NewServer(handler)
	t.Cleanup(func() {
		srv.Close()
		release()
	})
	return srv, disp, blocks
}

func restutilEcho(payload json.RawMessage) map[string]any {
	var m map[string]any
	_ = json.Unmarshal(payload, &m)
	return m
}

func TestDispatchEndpoint(t *testing.T) {
	srv, disp, _ := newServer(t)

	body, _ := json.Marshal(&dispatch.Envelope{
		RequestID:        "req-1",
		RequestClassName: "elements.ElementGet",
		Method:           norsh.GET,
		RequestData:      json.RawMessage(`{"id":"abc"}`),
	})
	resp, err := http.Post(srv.URL+"/v1/blockchain", "application/json", bytes.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var env dispatch.Envelope
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&env))
	assert.Equal(t, norsh.StatusOK, env.Status)
	assert.Equal(t, "req-1", env.RequestID)

	// The response is also resolvable by requestId.
	cached, ok, err := disp.Response(context.Background(), "req-1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, norsh.StatusOK, cached.Status)

	got, err := http.Get(srv.URL + "/v1/blockchain/req-1")
	require.NoError(t, err)
	defer got.Body.Close()
	assert.Equal(t, http.StatusOK, got.StatusCode)
}

func TestDispatchEndpointRejectsBadBody(t *testing.T) {
	srv, _, _ := newServer(t)

	resp, err := http.Post(srv.URL+"/v1/blockchain", "application/json", strings.NewReader("not json"))
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, err = http.Post(srv.URL+"/v1/blockchain", "application/json", strings.NewReader(`{"requestClassName":"x"}`))
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestResponseNotFound(t *testing.T) {
	srv, _, _ := newServer(t)

	resp, err := http.Get(srv.URL + "/v1/blockchain/unknown")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestGetBlock(t *testing.T) {
	srv, _, blocks := newServer(t)

	_, err := blocks.AddTransaction(context.Background(), block.TxRef{ID: "tx1", Ledger: "ledger_0", Element: "nsh"})
	require.NoError(t, err)

	resp, err := http.Get(srv.URL + "/v1/blocks/0")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var b block.Block
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&b))
	assert.Equal(t, int64(0), b.Height)
	require.Len(t, b.Transactions, 1)

	byID, err := http.Get(srv.URL + "/v1/blocks/" + b.ID)
	require.NoError(t, err)
	byID.Body.Close()
	assert.Equal(t, http.StatusOK, byID.StatusCode)

	missing, err := http.Get(srv.URL + "/v1/blocks/999")
	require.NoError(t, err)
	missing.Body.Close()
	assert.Equal(t, http.StatusNotFound, missing.StatusCode)
}

func TestBlocksWebsocket(t *testing.T) {
	srv, _, blocks := newServer(t)

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/v1/blocks/ws"
	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	if resp != nil {
		resp.Body.Close()
	}
	defer conn.Close()

	closed := &block.Block{ID: "b1", Number: 7, Closed: true}
	// Give the server a beat to register the subscription.
	time.Sleep(50 * time.Millisecond)
	blocks.Feed().Publish(closed)

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var got block.Block
	require.NoError(t, conn.ReadJSON(&got))
	assert.Equal(t, "b1", got.ID)
	assert.Equal(t, int64(7), got.Number)
}
