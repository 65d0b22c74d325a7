// Copyright (c) 2025 The Norsh developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package dispatch

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/pmezard/go-difflib/difflib"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/norsh/blockchain/cache"
	"github.com/norsh/blockchain/norsh"
)

func newTestDispatcher() *Dispatcher {
	return New(cache.NewMemory(), time.Minute)
}

func TestDispatchRoutesByTagAndVerb(t *testing.T) {
	d := newTestDispatcher()
	ctx := context.Background()

	d.Register("elements.ElementGet", norsh.GET, func(_ context.Context, payload json.RawMessage) Result {
		var dto struct {
			ID string `json:"id"`
		}
		require.NoError(t, json.Unmarshal(payload, &dto))
		return Ok(map[string]string{"id": dto.ID})
	})

	resp := d.Dispatch(ctx, &Envelope{
		RequestID:        "req-1",
		RequestClassName: "elements.ElementGet",
		Method:           norsh.GET,
		RequestData:      json.RawMessage(`{"id":"abc"}`),
	})

	assert.Equal(t, norsh.StatusOK, resp.Status)
	assert.Equal(t, map[string]string{"id": "abc"}, resp.Data)
}

func TestDispatchUnknownTagIsInternal(t *testing.T) {
	d := newTestDispatcher()

	resp := d.Dispatch(context.Background(), &Envelope{
		RequestID:        "req-1",
		RequestClassName: "elements.Unregistered",
		Method:           norsh.POST,
	})
	assert.Equal(t, norsh.StatusInternal, resp.Status)

	resp = d.Dispatch(context.Background(), &Envelope{
		RequestID:        "req-2",
		RequestClassName: "evil.Payload",
		Method:           norsh.POST,
	})
	assert.Equal(t, norsh.StatusInternal, resp.Status)
}

func TestDispatchCachesResponse(t *testing.T) {
	d := newTestDispatcher()
	ctx := context.Background()

	d.Register("transactions.TransactionCreate", norsh.POST, func(context.Context, json.RawMessage) Result {
		return Err(norsh.StatusExists, "duplicate")
	})

	d.Dispatch(ctx, &Envelope{
		RequestID:        "req-9",
		RequestClassName: "transactions.TransactionCreate",
		Method:           norsh.POST,
	})

	cached, ok, err := d.Response(ctx, "req-9")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, norsh.StatusExists, cached.Status)
	assert.Equal(t, "duplicate", cached.Message)
}

func TestDispatchRawDropsMalformed(t *testing.T) {
	d := newTestDispatcher()
	ctx := context.Background()

	// Neither of these should panic or cache anything.
	d.DispatchRaw(ctx, []byte("{not json"))
	d.DispatchRaw(ctx, []byte(`{"requestClassName":"elements.ElementGet","method":"GET"}`))

	_, ok, err := d.Response(ctx, "")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestEnvelopeRoundTrip(t *testing.T) {
	env := &Envelope{
		RequestID:        "11fe3b0c",
		RequestClassName: "transactions.TransactionCreate",
		Method:           norsh.POST,
		RequestData:      json.RawMessage(`{"to":"bob","volume":"100"}`),
	}

	raw, err := json.Marshal(env)
	require.NoError(t, err)

	var back Envelope
	require.NoError(t, json.Unmarshal(raw, &back))

	want, _ := json.MarshalIndent(env, "", "  ")
	got, _ := json.MarshalIndent(&back, "", "  ")
	if string(want) != string(got) {
		diff, _ := difflib.GetUnifiedDiffString(difflib.UnifiedDiff{
			A:        difflib.SplitLines(string(want)),
			B:        difflib.SplitLines(string(got)),
			FromFile: "marshalled",
			ToFile:   "reparsed",
			Context:  2,
		})
		t.Fatalf("envelope round-trip changed:\n%s", diff)
	}
}
