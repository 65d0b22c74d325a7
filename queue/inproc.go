// Copyright (c) 2025 The Norsh developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package queue

import (
	"context"

	"github.com/pkg/errors"
)

// ErrClosed is returned by a closed in-process queue.
var ErrClosed = errors.New("queue: closed")

// Inproc is a channel-backed consumer for solo mode and tests. Publish
// feeds it from the same process; there is no redelivery.
type Inproc struct {
	ch   chan []byte
	done chan struct{}
}

// NewInproc creates an in-process queue with a fixed backlog.
func NewInproc(backlog int) *Inproc {
	if backlog < 1 {
		backlog = 256
	}
	return &Inproc{
		ch:   make(chan []byte, backlog),
		done: make(chan struct{}),
	}
}

// Publish enqueues one raw request. Blocks while the backlog is full.
func (q *Inproc) Publish(ctx context.Context, value []byte) error {
	select {
	case q.ch <- value:
		return nil
	case <-q.done:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Fetch blocks for the next request.
func (q *Inproc) Fetch(ctx context.Context) (*Message, error) {
	select {
	case value := <-q.ch:
		return &Message{Value: value}, nil
	case <-q.done:
		return nil, ErrClosed
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Close shuts the queue down; pending Publish and Fetch calls unblock.
func (q *Inproc) Close() error {
	select {
	case <-q.done:
	default:
		close(q.done)
	}
	return nil
}
