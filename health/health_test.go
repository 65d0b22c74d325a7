// Copyright (c) 2025 The Norsh developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package health

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestStatusBootstrap(t *testing.T) {
	var h Health

	s := h.Status()
	assert.False(t, s.Healthy)
	assert.False(t, s.BootstrapDone)

	h.BootstrapDone()
	s = h.Status()
	assert.True(t, s.Healthy)
	assert.True(t, s.BootstrapDone)
}

func TestStatusConsumer(t *testing.T) {
	var h Health
	h.BootstrapDone()

	last := time.Now()
	h.SetConsumerProbe(func() time.Time { return last })
	assert.True(t, h.Status().Healthy)

	last = time.Now().Add(-MaxConsumerSilence - time.Second)
	s := h.Status()
	assert.False(t, s.Healthy)
	assert.Equal(t, last, *s.ConsumerLastPoll)
}

func TestStatusClockDrift(t *testing.T) {
	var h Health
	h.BootstrapDone()

	drift := 500 * time.Millisecond
	h.drift = &drift
	s := h.Status()
	assert.True(t, s.Healthy)
	assert.Equal(t, int64(500), *s.ClockDriftMs)

	drift = -MaxClockDrift - time.Second
	assert.False(t, h.Status().Healthy)
}
