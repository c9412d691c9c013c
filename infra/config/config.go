// Package config loads and validates the server configuration file.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"odin/domain/engine"
)

// Config is everything the server needs to come up. Secrets can be
// overridden from the environment after the file is parsed.
type Config struct {
	Server struct {
		ListenAddr  string `yaml:"listen_addr"`
		OperatorKey string `yaml:"operator_key"`
	} `yaml:"server"`

	Log struct {
		Level      string `yaml:"level"`
		File       string `yaml:"file"`
		MaxSizeMB  int    `yaml:"max_size_mb"`
		MaxBackups int    `yaml:"max_backups"`
		MaxAgeDays int    `yaml:"max_age_days"`
	} `yaml:"log"`

	WAL struct {
		Dir           string `yaml:"dir"`
		SegmentSizeMB int64  `yaml:"segment_size_mb"`
	} `yaml:"wal"`

	Outbox struct {
		Dir string `yaml:"dir"`
	} `yaml:"outbox"`

	Snapshot struct {
		Dir         string `yaml:"dir"`
		IntervalSec int    `yaml:"interval_sec"`
	} `yaml:"snapshot"`

	Kafka struct {
		Enabled   bool     `yaml:"enabled"`
		Brokers   []string `yaml:"brokers"`
		Topic     string   `yaml:"topic"`
		TapeTopic string   `yaml:"tape_topic"` // trade tape; empty disables it
	} `yaml:"kafka"`

	Pairs []Pair `yaml:"pairs"`
}

// Pair is one trade pair entry of the config file. Amounts are plain
// fixed-point integers in the pair's own decimals.
type Pair struct {
	ID             string `yaml:"id"`
	Base           string `yaml:"base"`
	Quote          string `yaml:"quote"`
	BaseDecimals   int    `yaml:"base_decimals"`
	QuoteDecimals  int    `yaml:"quote_decimals"`
	TickSize       int64  `yaml:"tick_size"`
	MinTradeAmount int64  `yaml:"min_trade_amount"`
	MaxTradeAmount int64  `yaml:"max_trade_amount"`
	MakerFeeBps    int64  `yaml:"maker_fee_bps"`
	TakerFeeBps    int64  `yaml:"taker_fee_bps"`
}

// Engine converts the entry into the matching core's pair configuration.
func (p Pair) Engine() engine.Config {
	return engine.Config{
		ID:             p.ID,
		Base:           p.Base,
		Quote:          p.Quote,
		BaseDecimals:   p.BaseDecimals,
		QuoteDecimals:  p.QuoteDecimals,
		TickSize:       p.TickSize,
		MinTradeAmount: p.MinTradeAmount,
		MaxTradeAmount: p.MaxTradeAmount,
		MakerFeeBps:    p.MakerFeeBps,
		TakerFeeBps:    p.TakerFeeBps,
	}
}

func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	cfg := defaults()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}

	if key := os.Getenv("ODIN_OPERATOR_KEY"); key != "" {
		cfg.Server.OperatorKey = key
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func defaults() *Config {
	cfg := &Config{}
	cfg.Server.ListenAddr = ":8080"
	cfg.Log.Level = "info"
	cfg.Log.MaxSizeMB = 50
	cfg.Log.MaxBackups = 5
	cfg.Log.MaxAgeDays = 14
	cfg.WAL.Dir = "./data/wal"
	cfg.WAL.SegmentSizeMB = 64
	cfg.Outbox.Dir = "./data/outbox"
	cfg.Snapshot.Dir = "./data/snapshot"
	cfg.Snapshot.IntervalSec = 300
	cfg.Kafka.Topic = "odin.events"
	return cfg
}

func (c *Config) Validate() error {
	if c.Server.ListenAddr == "" {
		return fmt.Errorf("server.listen_addr is required")
	}
	if c.WAL.Dir == "" || c.Outbox.Dir == "" || c.Snapshot.Dir == "" {
		return fmt.Errorf("wal, outbox, and snapshot directories are required")
	}
	if c.WAL.SegmentSizeMB <= 0 {
		return fmt.Errorf("wal.segment_size_mb must be positive")
	}
	if c.Snapshot.IntervalSec <= 0 {
		return fmt.Errorf("snapshot.interval_sec must be positive")
	}
	if c.Kafka.Enabled && len(c.Kafka.Brokers) == 0 {
		return fmt.Errorf("kafka.brokers is required when kafka is enabled")
	}
	if len(c.Pairs) == 0 {
		return fmt.Errorf("at least one pair is required")
	}
	if err := c.validatePairs(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validatePairs() error {
	seen := make(map[string]bool, len(c.Pairs))
	for _, p := range c.Pairs {
		if seen[p.ID] {
			return fmt.Errorf("duplicate pair %s", p.ID)
		}
		seen[p.ID] = true
		if err := p.Engine().Validate(); err != nil {
			return err
		}
	}
	return nil
}

// SnapshotInterval returns the snapshot cadence as a duration.
func (c *Config) SnapshotInterval() time.Duration {
	return time.Duration(c.Snapshot.IntervalSec) * time.Second
}
