// Copyright (c) 2025 The Norsh developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package co

import "sync"

// Waiter exposes the channel to wait on for the next event. The value read
// is true for a single wakeup, false when the channel was broadcast-closed.
type Waiter interface {
	C() <-chan bool
}

// Signal is a channel-based rendezvous point: goroutines announce an event
// with Signal or Broadcast, and waiters select on the channel obtained from
// NewWaiter. Unlike sync.Cond it composes with other channel operations.
// The zero value is ready to use.
type Signal struct {
	mu sync.Mutex
	ch chan bool
}

func (s *Signal) init() {
	if s.ch == nil {
		s.ch = make(chan bool, 1)
	}
}

// Signal wakes at most one waiter. Wakeups do not accumulate.
func (s *Signal) Signal() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.init()
	select {
	case s.ch <- true:
	default:
	}
}

// Broadcast wakes every current waiter.
func (s *Signal) Broadcast() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.init()
	close(s.ch)
	s.ch = make(chan bool, 1)
}

// NewWaiter returns a Waiter bound to s. Each call to C observes the channel
// current at that moment, so a waiter loop stays valid across broadcasts.
func (s *Signal) NewWaiter() Waiter {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.init()
	ref := s.ch

	return waiterFunc(func() <-chan bool {
		ch := ref

		s.mu.Lock()
		ref = s.ch
		s.mu.Unlock()

		return ch
	})
}

type waiterFunc func() <-chan bool

func (w waiterFunc) C() <-chan bool { return w() }
