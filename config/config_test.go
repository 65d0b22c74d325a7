// Copyright (c) 2025 The Norsh developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultValidates(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, int64(30_000), cfg.Defaults.SemaphoreLockTimeoutMs)
	assert.Equal(t, "0.3", cfg.NetworkPolicy.NetworkTax.String())
	assert.Equal(t, "10000", cfg.Balances.SeedAmount.String())
	assert.False(t, cfg.Balances.DeductTotal)
}

func TestLoadJSONOverlay(t *testing.T) {
	path := filepath.Join(t.TempDir(), "blockchain.json")
	require.NoError(t, os.WriteFile(path, []byte(`{
		"defaults": {"queueConsumerThreadPool": 4},
		"networkPolicy": {"networkTax": "0.5"},
		"balances": {"seedAmount": "0", "deductTotal": true},
		"cache": {"backend": "redis", "addr": "localhost:6379"}
	}`), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 4, cfg.Defaults.QueueConsumerThreadPool)
	// Untouched fields keep their defaults.
	assert.Equal(t, int64(600_000), cfg.Defaults.MessagingTtlMs)
	assert.Equal(t, "0.5", cfg.NetworkPolicy.NetworkTax.String())
	assert.True(t, cfg.Balances.SeedAmount.IsZero())
	assert.True(t, cfg.Balances.DeductTotal)
	assert.Equal(t, "redis", cfg.Cache.Backend)
}

func TestLoadYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "blockchain.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
defaults:
  semaphoreLockTimeoutMs: 5000
queue:
  backend: kafka
  brokers: [localhost:9092]
genesis:
  nshTFO: tfo
`), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, int64(5000), cfg.Defaults.SemaphoreLockTimeoutMs)
	assert.Equal(t, "kafka", cfg.Queue.Backend)
	assert.Equal(t, "norsh.blockchain.requests", cfg.Queue.Topic)
	assert.Equal(t, "tfo", cfg.Genesis.NshTFO)
}

func TestLoadRejectsBadConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"cache": {"backend": "redis"}}`), 0o600))
	_, err := Load(path)
	assert.ErrorContains(t, err, "cache.addr")

	path = filepath.Join(t.TempDir(), "bad2.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"queue": {"backend": "rabbit"}}`), 0o600))
	_, err = Load(path)
	assert.ErrorContains(t, err, "queue backend")
}

func TestResolve(t *testing.T) {
	assert.Equal(t, "/tmp/x.json", Resolve("/tmp/x.json"))

	t.Setenv(EnvConfigPath, "/tmp/env.json")
	assert.Equal(t, "/tmp/env.json", Resolve(""))

	t.Setenv(EnvConfigPath, "")
	assert.Equal(t, "", Resolve(""))
}
