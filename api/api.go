// Copyright (c) 2025 The Norsh developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

// Package api exposes the public HTTP surface: synchronous envelope
// dispatch, cached response lookup, block reads and the closed-block
// websocket feed.
package api

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"github.com/pkg/errors"

	"github.com/norsh/blockchain/api/restutil"
	"github.com/norsh/blockchain/block"
	"github.com/norsh/blockchain/dispatch"
	"github.com/norsh/blockchain/docdb"
	"github.com/norsh/blockchain/log"
)

var logger = log.WithContext("pkg", "api")

// Options tunes the public server.
type Options struct {
	AllowedOrigins string
}

// New returns the public api handler and its release func.
func New(disp *dispatch.Dispatcher, blocks *block.Service, opts Options) (http.HandlerFunc, func()) {
	origins := []string{"*"}
	if strings.TrimSpace(opts.AllowedOrigins) != "" {
		origins = strings.Split(opts.AllowedOrigins, ",")
		for i, o := range origins {
			origins[i] = strings.ToLower(strings.TrimSpace(o))
		}
	}

	a := &api{disp: disp, blocks: blocks, origins: origins}

	router := mux.NewRouter()
	sub := router.PathPrefix("/v1").Subrouter()
	sub.Path("/blockchain").Methods(http.MethodPost).HandlerFunc(restutil.WrapHandlerFunc(a.handleDispatch))
	sub.Path("/blockchain/{requestId}").Methods(http.MethodGet).HandlerFunc(restutil.WrapHandlerFunc(a.handleResponse))
	sub.Path("/blocks/ws").Methods(http.MethodGet).HandlerFunc(restutil.WrapHandlerFunc(a.handleBlocksWS))
	sub.Path("/blocks/{revision}").Methods(http.MethodGet).HandlerFunc(restutil.WrapHandlerFunc(a.handleGetBlock))

	handler := handlers.CORS(
		handlers.AllowedOrigins(origins),
		handlers.AllowedHeaders([]string{"content-type"}),
		handlers.AllowedMethods([]string{http.MethodGet, http.MethodPost}),
	)(router)

	return handler.ServeHTTP, a.shutdown
}

type api struct {
	disp    *dispatch.Dispatcher
	blocks  *block.Service
	origins []string

	conns connSet
}

func (a *api) shutdown() {
	a.conns.closeAll()
}

// handleDispatch runs one envelope synchronously and returns the response
// envelope, which is also cached under its requestId.
func (a *api) handleDispatch(w http.ResponseWriter, req *http.Request) error {
	var env dispatch.Envelope
	if err := restutil.ParseJSON(req.Body, &env); err != nil {
		return restutil.BadRequest(errors.WithMessage(err, "body"))
	}
	if env.RequestID == "" {
		return restutil.BadRequest(errors.New("requestId is required"))
	}
	resp := a.disp.Dispatch(req.Context(), &env)
	return restutil.WriteJSON(w, resp)
}

// handleResponse resolves the cached response of an earlier request, for
// clients polling on the queue path.
func (a *api) handleResponse(w http.ResponseWriter, req *http.Request) error {
	requestID := mux.Vars(req)["requestId"]
	env, ok, err := a.disp.Response(req.Context(), requestID)
	if err != nil {
		return err
	}
	if !ok {
		return restutil.NotFound(errors.New("response not available"))
	}
	return restutil.WriteJSON(w, env)
}

// handleGetBlock reads a block by height when the revision is numeric, by id
// otherwise.
func (a *api) handleGetBlock(w http.ResponseWriter, req *http.Request) error {
	revision := mux.Vars(req)["revision"]

	var (
		b   *block.Block
		err error
	)
	if height, convErr := strconv.ParseInt(revision, 10, 64); convErr == nil {
		b, err = a.blocks.ByHeight(height)
	} else {
		b, err = a.blocks.Get(revision)
		if docdb.IsNotFound(err) {
			b, err = nil, nil
		}
	}
	if err != nil {
		return err
	}
	if b == nil {
		return restutil.NotFound(errors.New("no such block"))
	}
	return restutil.WriteJSON(w, b)
}
