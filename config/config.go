// Copyright (c) 2025 The Norsh developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

// Package config loads the worker configuration from a JSON or YAML file.
package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

// EnvConfigPath overrides the config file location when set.
const EnvConfigPath = "NORSH_BLOCKCHAIN_CONFIG"

// DefaultPath is tried when neither flag nor env var names a file.
const DefaultPath = "/etc/norsh/blockchain.json"

// Defaults holds the timing and sizing knobs of the worker.
type Defaults struct {
	SemaphoreLockTimeoutMs  int64 `json:"semaphoreLockTimeoutMs" yaml:"semaphoreLockTimeoutMs"`
	ThreadInitialBackoffMs  int64 `json:"threadInitialBackoffMs" yaml:"threadInitialBackoffMs"`
	ThreadMaxBackoffMs      int64 `json:"threadMaxBackoffMs" yaml:"threadMaxBackoffMs"`
	MessagingTtlMs          int64 `json:"messagingTtlMs" yaml:"messagingTtlMs"`
	QueueConsumerThreadPool int   `json:"queueConsumerThreadPool" yaml:"queueConsumerThreadPool"`
}

// NetworkPolicy carries the universal fee rate, in percent.
type NetworkPolicy struct {
	NetworkTax decimal.Decimal `json:"networkTax" yaml:"networkTax"`
}

// Balances configures balance seeding and deduction behavior. SeedAmount is
// credited to absent balances on first read; the non-zero default mirrors the
// demonstration network and must be "0" in production. DeductTotal switches
// the sender deduction from volume to volume+taxes.
type Balances struct {
	SeedAmount  decimal.Decimal `json:"seedAmount" yaml:"seedAmount"`
	DeductTotal bool            `json:"deductTotal" yaml:"deductTotal"`
}

// Genesis is the material consumed by the bootstrap: the NSH treasury file
// origin and the key pair that signs the genesis elements.
type Genesis struct {
	NshTFO     string `json:"nshTFO" yaml:"nshTFO"`
	PublicKey  string `json:"publicKey" yaml:"publicKey"`
	PrivateKey string `json:"privateKey" yaml:"privateKey"`
}

// CacheConfig selects the cache backend: "redis" or "memory".
type CacheConfig struct {
	Backend  string `json:"backend" yaml:"backend"`
	Addr     string `json:"addr" yaml:"addr"`
	Password string `json:"password" yaml:"password"`
	DB       int    `json:"db" yaml:"db"`
}

// QueueConfig selects the queue backend: "kafka" or "inproc".
type QueueConfig struct {
	Backend string   `json:"backend" yaml:"backend"`
	Brokers []string `json:"brokers" yaml:"brokers"`
	Topic   string   `json:"topic" yaml:"topic"`
	Group   string   `json:"group" yaml:"group"`
}

// StoreConfig locates the document store.
type StoreConfig struct {
	DataDir string `json:"dataDir" yaml:"dataDir"`
}

// Config is the root of the worker configuration file.
type Config struct {
	Defaults      Defaults      `json:"defaults" yaml:"defaults"`
	NetworkPolicy NetworkPolicy `json:"networkPolicy" yaml:"networkPolicy"`
	Balances      Balances      `json:"balances" yaml:"balances"`
	Genesis       Genesis       `json:"genesis" yaml:"genesis"`
	Cache         CacheConfig   `json:"cache" yaml:"cache"`
	Queue         QueueConfig   `json:"queue" yaml:"queue"`
	Store         StoreConfig   `json:"store" yaml:"store"`
	APIAddr       string        `json:"apiAddr" yaml:"apiAddr"`
	AdminAddr     string        `json:"adminAddr" yaml:"adminAddr"`
}

// Default returns a config populated with the documented defaults. A loaded
// file overlays it field by field.
func Default() *Config {
	return &Config{
		Defaults: Defaults{
			SemaphoreLockTimeoutMs:  30_000,
			ThreadInitialBackoffMs:  20,
			ThreadMaxBackoffMs:      2_000,
			MessagingTtlMs:          600_000,
			QueueConsumerThreadPool: 20,
		},
		NetworkPolicy: NetworkPolicy{
			NetworkTax: decimal.RequireFromString("0.3"),
		},
		Balances: Balances{
			SeedAmount: decimal.NewFromInt(10_000),
		},
		Cache: CacheConfig{Backend: "memory"},
		Queue: QueueConfig{
			Backend: "inproc",
			Topic:   "norsh.blockchain.requests",
			Group:   "norsh-blockchain-worker",
		},
		APIAddr:   "localhost:8660",
		AdminAddr: "localhost:2113",
	}
}

// Resolve picks the config file path: the explicit flag value, then the
// environment, then the default location. An empty return means no file,
// which is valid; defaults apply.
func Resolve(flagPath string) string {
	if flagPath != "" {
		return flagPath
	}
	if p := os.Getenv(EnvConfigPath); p != "" {
		return p
	}
	if _, err := os.Stat(DefaultPath); err == nil {
		return DefaultPath
	}
	return ""
}

// Load reads path (JSON or YAML by extension) over the defaults and
// validates the result. An empty path returns validated defaults.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, errors.Wrapf(err, "read config [%v]", path)
		}
		switch strings.ToLower(filepath.Ext(path)) {
		case ".yaml", ".yml":
			err = yaml.Unmarshal(data, cfg)
		default:
			err = json.Unmarshal(data, cfg)
		}
		if err != nil {
			return nil, errors.Wrapf(err, "parse config [%v]", path)
		}
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects configurations the worker cannot run on.
func (c *Config) Validate() error {
	if c.Defaults.SemaphoreLockTimeoutMs <= 0 {
		return errors.New("defaults.semaphoreLockTimeoutMs must be positive")
	}
	if c.Defaults.ThreadInitialBackoffMs <= 0 || c.Defaults.ThreadMaxBackoffMs < c.Defaults.ThreadInitialBackoffMs {
		return errors.New("defaults thread backoff envelope is inverted")
	}
	if c.Defaults.MessagingTtlMs <= 0 {
		return errors.New("defaults.messagingTtlMs must be positive")
	}
	if c.Defaults.QueueConsumerThreadPool <= 0 {
		return errors.New("defaults.queueConsumerThreadPool must be positive")
	}
	if c.NetworkPolicy.NetworkTax.IsNegative() {
		return errors.New("networkPolicy.networkTax must not be negative")
	}
	if c.Balances.SeedAmount.IsNegative() {
		return errors.New("balances.seedAmount must not be negative")
	}
	switch c.Cache.Backend {
	case "memory":
	case "redis":
		if c.Cache.Addr == "" {
			return errors.New("cache.addr is required for the redis backend")
		}
	default:
		return errors.Errorf("unknown cache backend %q", c.Cache.Backend)
	}
	switch c.Queue.Backend {
	case "inproc":
	case "kafka":
		if len(c.Queue.Brokers) == 0 {
			return errors.New("queue.brokers is required for the kafka backend")
		}
		if c.Queue.Topic == "" || c.Queue.Group == "" {
			return errors.New("queue.topic and queue.group are required for the kafka backend")
		}
	default:
		return errors.Errorf("unknown queue backend %q", c.Queue.Backend)
	}
	return nil
}
