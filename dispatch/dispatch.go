// Copyright (c) 2025 The Norsh developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

// Package dispatch routes request envelopes to handlers. Handlers register
// under an explicit (payload tag, verb) table; unknown tags are rejected.
// Every dispatched request leaves a response envelope in the cache under its
// requestId for the messaging TTL, so callers can poll results out of band.
package dispatch

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/norsh/blockchain/cache"
	"github.com/norsh/blockchain/log"
	"github.com/norsh/blockchain/metrics"
	"github.com/norsh/blockchain/norsh"
)

var logger = log.WithContext("pkg", "dispatch")

var (
	metricDispatched = metrics.LazyLoadCounterVec("dispatch_total", []string{"tag", "verb", "status"})
	metricLatency    = metrics.LazyLoadHistogram("dispatch_handler_ms", metrics.BucketHandlerMillis)
)

// Recognized payload tag namespaces. Tags outside these never reach a
// handler even if somehow registered.
var tagNamespaces = []string{"elements.", "transactions."}

// Envelope is the wire shape shared by requests and responses.
type Envelope struct {
	RequestID        string          `json:"requestId"`
	RequestClassName string          `json:"requestClassName,omitempty"`
	Method           norsh.Verb      `json:"method,omitempty"`
	RequestData      json.RawMessage `json:"requestData,omitempty"`
	Status           norsh.Status    `json:"status,omitempty"`
	Message          string          `json:"message,omitempty"`
	Data             any             `json:"data,omitempty"`
}

// Handler processes one decoded payload. The raw JSON of requestData is
// handed over; the handler owns decoding into its DTO.
type Handler func(ctx context.Context, payload json.RawMessage) Result

// Dispatcher is the (tag, verb) routing table plus the response cache.
type Dispatcher struct {
	handlers map[string]Handler
	cache    cache.Cache
	ttl      time.Duration
}

// New creates a dispatcher caching responses with the messaging TTL.
func New(c cache.Cache, messagingTTL time.Duration) *Dispatcher {
	return &Dispatcher{
		handlers: make(map[string]Handler),
		cache:    c,
		ttl:      messagingTTL,
	}
}

func key(tag string, verb norsh.Verb) string {
	return tag + ":" + string(verb)
}

// Register binds a handler to a payload tag and verb. Registration happens
// once at wiring time; later calls with the same pair overwrite.
func (d *Dispatcher) Register(tag string, verb norsh.Verb, h Handler) {
	d.handlers[key(tag, verb)] = h
}

func knownNamespace(tag string) bool {
	for _, ns := range tagNamespaces {
		if strings.HasPrefix(tag, ns) {
			return true
		}
	}
	return false
}

// Dispatch routes one envelope and returns the response envelope. The
// response is also written to the cache keyed by requestId, whatever the
// outcome, so at-least-once transports can always resolve a replayed
// request to its answer.
func (d *Dispatcher) Dispatch(ctx context.Context, env *Envelope) *Envelope {
	started := time.Now()

	result := d.invoke(ctx, env)

	metricLatency().Observe(time.Since(started).Milliseconds())
	metricDispatched().AddWithLabel(1, map[string]string{
		"tag":    env.RequestClassName,
		"verb":   string(env.Method),
		"status": string(result.Status),
	})

	resp := &Envelope{
		RequestID:        env.RequestID,
		RequestClassName: env.RequestClassName,
		Method:           env.Method,
		Status:           result.Status,
		Message:          result.Message,
		Data:             result.Data,
	}
	d.cacheResponse(ctx, resp)
	return resp
}

func (d *Dispatcher) invoke(ctx context.Context, env *Envelope) Result {
	tag := env.RequestClassName
	if !knownNamespace(tag) {
		logger.Warn("payload tag outside recognized namespaces", "tag", tag)
		return Internal()
	}
	h, ok := d.handlers[key(tag, env.Method)]
	if !ok {
		logger.Warn("no handler registered", "tag", tag, "verb", env.Method)
		return Internal()
	}
	return h(ctx, env.RequestData)
}

// DispatchRaw decodes a JSON envelope off the wire and dispatches it.
// Malformed envelopes are logged and dropped; the transport is at least
// once and a reply cannot be addressed without a requestId anyway.
func (d *Dispatcher) DispatchRaw(ctx context.Context, raw []byte) {
	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		logger.Warn("dropping malformed envelope", "err", err)
		return
	}
	if env.RequestID == "" {
		logger.Warn("dropping envelope without requestId")
		return
	}
	d.Dispatch(ctx, &env)
}

func (d *Dispatcher) cacheResponse(ctx context.Context, resp *Envelope) {
	if resp.RequestID == "" {
		return
	}
	raw, err := json.Marshal(resp)
	if err != nil {
		logger.Error("failed to encode response envelope", "requestId", resp.RequestID, "err", err)
		return
	}
	if err := d.cache.Set(ctx, resp.RequestID, string(raw), d.ttl); err != nil {
		logger.Error("failed to cache response envelope", "requestId", resp.RequestID, "err", err)
	}
}

// Response fetches the cached response envelope for a requestId, if still
// within the messaging TTL.
func (d *Dispatcher) Response(ctx context.Context, requestID string) (*Envelope, bool, error) {
	raw, ok, err := d.cache.Get(ctx, requestID)
	if err != nil || !ok {
		return nil, false, err
	}
	var env Envelope
	if err := json.Unmarshal([]byte(raw), &env); err != nil {
		return nil, false, err
	}
	return &env, true, nil
}
