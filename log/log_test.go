// Copyright (c) 2025 The Norsh developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package log

import (
	"bytes"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	for _, s := range []string{"trace", "debug", "info", "warn", "error", "crit"} {
		lvl, err := ParseLevel(s)
		require.NoError(t, err)
		assert.Equal(t, s, LevelString(lvl))
	}

	_, err := ParseLevel("chatty")
	assert.Error(t, err)
}

func TestTerminalHandlerLevelFilter(t *testing.T) {
	var buf bytes.Buffer
	var lvl slog.LevelVar
	lvl.Set(LevelWarn)

	l := NewLogger(NewTerminalHandlerWithLevel(&buf, &lvl, false))
	l.Info("dropped")
	assert.Zero(t, buf.Len())

	l.Warn("kept", "n", 1)
	out := buf.String()
	assert.Contains(t, out, "WARN")
	assert.Contains(t, out, "kept")
	assert.Contains(t, out, "n=1")
}

func TestWithContextBindsPairs(t *testing.T) {
	var buf bytes.Buffer
	var lvl slog.LevelVar
	lvl.Set(LevelTrace)

	old := Root()
	defer SetDefault(old)
	SetDefault(NewLogger(NewTerminalHandlerWithLevel(&buf, &lvl, false)))

	logger := WithContext("pkg", "queue").With("worker", 7)
	logger.Debug("poll", "lag", "2s")

	out := buf.String()
	assert.Contains(t, out, "pkg=queue")
	assert.Contains(t, out, "worker=7")
	assert.Contains(t, out, "lag=2s")
}

func TestAttrValueQuoting(t *testing.T) {
	assert.Equal(t, "plain", attrValue(slog.StringValue("plain")))
	assert.Equal(t, `"two words"`, attrValue(slog.StringValue("two words")))
	assert.Equal(t, `""`, attrValue(slog.StringValue("")))
}
