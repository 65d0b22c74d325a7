// Copyright (c) 2025 The Norsh developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package co_test

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/norsh/blockchain/co"
)

func TestGoes(t *testing.T) {
	var (
		goes co.Goes
		n    atomic.Int32
	)
	for i := 0; i < 10; i++ {
		goes.Go(func() { n.Add(1) })
	}
	goes.Wait()
	assert.Equal(t, int32(10), n.Load())

	select {
	case <-goes.Done():
	case <-time.After(time.Second):
		t.Fatal("Done channel never closed")
	}
}

func TestSignalWakesOneWaiter(t *testing.T) {
	var sig co.Signal
	w := sig.NewWaiter()

	sig.Signal()
	select {
	case v := <-w.C():
		assert.True(t, v)
	case <-time.After(time.Second):
		t.Fatal("waiter missed signal")
	}
}

func TestSignalBroadcast(t *testing.T) {
	var sig co.Signal

	var goes co.Goes
	var woken atomic.Int32
	ready := make(chan struct{}, 8)
	for i := 0; i < 8; i++ {
		w := sig.NewWaiter()
		goes.Go(func() {
			ready <- struct{}{}
			v := <-w.C()
			assert.False(t, v)
			woken.Add(1)
		})
	}
	for i := 0; i < 8; i++ {
		<-ready
	}

	sig.Broadcast()
	goes.Wait()
	assert.Equal(t, int32(8), woken.Load())
}

func TestSignalWaiterSurvivesBroadcast(t *testing.T) {
	var sig co.Signal
	w := sig.NewWaiter()

	sig.Broadcast()
	<-w.C()

	// the same waiter must observe the next event too
	sig.Signal()
	select {
	case <-w.C():
	case <-time.After(time.Second):
		t.Fatal("waiter detached after broadcast")
	}
}

func TestParallelN(t *testing.T) {
	var n atomic.Int64
	co.ParallelN(4, func(enqueue co.Enqueue) {
		for i := 0; i < 100; i++ {
			enqueue(func() { n.Add(1) })
		}
	})
	assert.Equal(t, int64(100), n.Load())
}
