package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleConfig = `
server:
  listen_addr: ":9090"
  operator_key: "secret"
wal:
  dir: "/tmp/odin/wal"
outbox:
  dir: "/tmp/odin/outbox"
snapshot:
  dir: "/tmp/odin/snapshot"
  interval_sec: 60
kafka:
  enabled: true
  brokers: ["localhost:9092"]
  topic: "events"
pairs:
  - id: "ALOT/USDC"
    base: "ALOT"
    quote: "USDC"
    base_decimals: 2
    quote_decimals: 2
    tick_size: 5
    min_trade_amount: 10
    max_trade_amount: 1000000
    maker_fee_bps: 25
    taker_fee_bps: 45
    auction: true
`

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoad(t *testing.T) {
	cfg, err := Load(writeConfig(t, sampleConfig))
	require.NoError(t, err)

	assert.Equal(t, ":9090", cfg.Server.ListenAddr)
	assert.Equal(t, "secret", cfg.Server.OperatorKey)
	assert.Equal(t, time.Minute, cfg.SnapshotInterval())
	require.Len(t, cfg.Pairs, 1)

	ec := cfg.Pairs[0].Engine()
	assert.Equal(t, "ALOT/USDC", ec.ID)
	assert.Equal(t, int64(5), ec.TickSize)
	require.NoError(t, ec.Validate())

	// Defaults fill what the file omits.
	assert.Equal(t, int64(64), cfg.WAL.SegmentSizeMB)
	assert.Equal(t, "info", cfg.Log.Level)
}

func TestLoadOperatorKeyFromEnv(t *testing.T) {
	t.Setenv("ODIN_OPERATOR_KEY", "from-env")
	cfg, err := Load(writeConfig(t, sampleConfig))
	require.NoError(t, err)
	assert.Equal(t, "from-env", cfg.Server.OperatorKey)
}

func TestLoadRejectsBadConfig(t *testing.T) {
	cases := []struct {
		name string
		body string
	}{
		{"no pairs", `
wal: {dir: /tmp/w}
outbox: {dir: /tmp/o}
snapshot: {dir: /tmp/s}
`},
		{"kafka without brokers", sampleConfig + `
kafka:
  enabled: true
  brokers: []
`},
		{"bad pair tick", `
wal: {dir: /tmp/w}
outbox: {dir: /tmp/o}
snapshot: {dir: /tmp/s}
pairs:
  - {id: "A/B", base: A, quote: B, tick_size: 0, min_trade_amount: 1, max_trade_amount: 10}
`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tc.body))
			assert.Error(t, err)
		})
	}
}
