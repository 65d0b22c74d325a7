// Copyright (c) 2025 The Norsh developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package co

import "runtime"

// Enqueue submits one unit of work to a Parallel pool. It blocks while all
// workers are busy and the backlog is full.
type Enqueue func(work func())

// Parallel runs the work enqueued by cb on one worker per CPU and returns
// after all of it has finished.
func Parallel(cb func(Enqueue)) {
	ParallelN(runtime.NumCPU(), cb)
}

// ParallelN is Parallel with an explicit worker count.
func ParallelN(n int, cb func(Enqueue)) {
	if n < 1 {
		n = 1
	}

	var goes Goes
	defer goes.Wait()

	ch := make(chan func(), n*2)
	defer close(ch)

	for i := 0; i < n; i++ {
		goes.Go(func() {
			for work := range ch {
				work()
			}
		})
	}
	cb(func(work func()) { ch <- work })
}
