// Copyright (c) 2025 The Norsh developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package api

import (
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	wsPingPeriod = 30 * time.Second
	wsWriteWait  = 10 * time.Second
)

// connSet tracks live websocket connections so shutdown can close them.
type connSet struct {
	mu    sync.Mutex
	conns map[*websocket.Conn]struct{}
}

func (s *connSet) add(c *websocket.Conn) {
	s.mu.Lock()
	if s.conns == nil {
		s.conns = make(map[*websocket.Conn]struct{})
	}
	s.conns[c] = struct{}{}
	s.mu.Unlock()
}

func (s *connSet) remove(c *websocket.Conn) {
	s.mu.Lock()
	delete(s.conns, c)
	s.mu.Unlock()
}

func (s *connSet) closeAll() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for c := range s.conns {
		c.Close()
	}
	s.conns = nil
}

func (a *api) checkOrigin(req *http.Request) bool {
	origin := req.Header.Get("Origin")
	if origin == "" {
		return true
	}
	for _, o := range a.origins {
		if o == "*" || o == origin {
			return true
		}
	}
	return false
}

// handleBlocksWS streams closed blocks as JSON frames until the client
// disconnects.
func (a *api) handleBlocksWS(w http.ResponseWriter, req *http.Request) error {
	upgrader := websocket.Upgrader{CheckOrigin: a.checkOrigin}
	conn, err := upgrader.Upgrade(w, req, nil)
	if err != nil {
		// Upgrade already replied to the client.
		logger.Debug("websocket upgrade failed", "err", err)
		return nil
	}
	a.conns.add(conn)
	defer func() {
		a.conns.remove(conn)
		conn.Close()
	}()

	feed, cancel := a.blocks.Feed().Subscribe()
	defer cancel()

	// Drain reads to surface the client's close frame.
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(wsPingPeriod)
	defer ticker.Stop()

	for {
		select {
		case b := <-feed:
			conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := conn.WriteJSON(b); err != nil {
				return nil
			}
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return nil
			}
		case <-closed:
			return nil
		case <-req.Context().Done():
			return nil
		}
	}
}
