// Copyright (c) 2025 The Norsh developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

// Package health aggregates node liveness signals: bootstrap completion,
// queue consumer activity and wall-clock drift. Block numbers derive from
// wall clock time, so a drifting clock silently corrupts the timeline and
// counts as unhealthy.
package health

import (
	"sync"
	"time"

	"github.com/beevik/ntp"

	"github.com/norsh/blockchain/log"
)

var logger = log.WithContext("pkg", "health")

const (
	// MaxConsumerSilence is how long the queue consumer may go without
	// pulling a message before it counts as stalled.
	MaxConsumerSilence = 2 * time.Minute

	// MaxClockDrift bounds the NTP offset; beyond it block numbering is no
	// longer trustworthy.
	MaxClockDrift = 2 * time.Second

	defaultProbePeriod = 5 * time.Minute
)

// Status is the JSON health report.
type Status struct {
	Healthy          bool       `json:"healthy"`
	BootstrapDone    bool       `json:"bootstrapDone"`
	ConsumerLastPoll *time.Time `json:"consumerLastPoll,omitempty"`
	ClockDriftMs     *int64     `json:"clockDriftMs,omitempty"`
}

// Health collects the signals. Zero value is usable; probes are optional
// and a missing probe does not count against the verdict.
type Health struct {
	lock          sync.RWMutex
	bootstrapDone bool
	consumerPoll  func() time.Time
	drift         *time.Duration

	stopProbe chan struct{}
	probeOnce sync.Once
}

// BootstrapDone marks the genesis bootstrap as finished.
func (h *Health) BootstrapDone() {
	h.lock.Lock()
	h.bootstrapDone = true
	h.lock.Unlock()
}

// SetConsumerProbe installs the queue consumer's last-poll source.
func (h *Health) SetConsumerProbe(fn func() time.Time) {
	h.lock.Lock()
	h.consumerPoll = fn
	h.lock.Unlock()
}

// StartClockProbe begins periodic NTP drift measurement against the given
// server. The returned func stops the probe.
func (h *Health) StartClockProbe(server string) func() {
	h.stopProbe = make(chan struct{})
	go func() {
		h.probeClock(server)
		ticker := time.NewTicker(defaultProbePeriod)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				h.probeClock(server)
			case <-h.stopProbe:
				return
			}
		}
	}()
	return func() {
		h.probeOnce.Do(func() { close(h.stopProbe) })
	}
}

func (h *Health) probeClock(server string) {
	resp, err := ntp.Query(server)
	if err != nil {
		logger.Warn("ntp probe failed", "server", server, "err", err)
		return
	}
	offset := resp.ClockOffset

	h.lock.Lock()
	h.drift = &offset
	h.lock.Unlock()

	if offset > MaxClockDrift || offset < -MaxClockDrift {
		logger.Error("wall clock drifting", "offset", offset)
	}
}

// Status computes the current verdict.
func (h *Health) Status() *Status {
	h.lock.RLock()
	defer h.lock.RUnlock()

	s := &Status{BootstrapDone: h.bootstrapDone}
	healthy := h.bootstrapDone

	if h.consumerPoll != nil {
		last := h.consumerPoll()
		s.ConsumerLastPoll = &last
		if time.Since(last) > MaxConsumerSilence {
			healthy = false
		}
	}
	if h.drift != nil {
		ms := h.drift.Milliseconds()
		s.ClockDriftMs = &ms
		if *h.drift > MaxClockDrift || *h.drift < -MaxClockDrift {
			healthy = false
		}
	}

	s.Healthy = healthy
	return s
}
