// Copyright (c) 2025 The Norsh developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package block

import "sync"

// Feed broadcasts closed blocks to subscribers. Slow subscribers drop
// blocks rather than stall the close path.
type Feed struct {
	mu   sync.Mutex
	subs map[chan *Block]struct{}
}

func NewFeed() *Feed {
	return &Feed{subs: make(map[chan *Block]struct{})}
}

// Subscribe returns a buffered channel of closed blocks and a cancel func.
func (f *Feed) Subscribe() (<-chan *Block, func()) {
	ch := make(chan *Block, 16)
	f.mu.Lock()
	f.subs[ch] = struct{}{}
	f.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			f.mu.Lock()
			delete(f.subs, ch)
			f.mu.Unlock()
		})
	}
	return ch, cancel
}

// Publish delivers b to every subscriber that has buffer room.
func (f *Feed) Publish(b *Block) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for ch := range f.subs {
		select {
		case ch <- b:
		default:
		}
	}
}
