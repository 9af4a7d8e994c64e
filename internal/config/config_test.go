package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoad_AppliesDefaults(t *testing.T) {
	path := writeConfig(t, `
[dpinet.capture]
interface = "eth0"
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 65535, cfg.Capture.SnapLen)
	assert.Equal(t, 4, cfg.Dissect.Workers)
	assert.Equal(t, 9977, cfg.Broadcast.Port)
	assert.Equal(t, "none", cfg.Broadcast.Compression)
	assert.Equal(t, 1000, cfg.Stats.IntervalMs)
}

func TestLoad_RejectsMissingCaptureSource(t *testing.T) {
	path := writeConfig(t, `
[dpinet.broadcast]
port = 9000
`)

	_, err := Load(path)
	assert.Error(t, err, "expected an error when neither interface nor offline_file is set")
}

func TestLoad_RejectsInvalidCompression(t *testing.T) {
	path := writeConfig(t, `
[dpinet.capture]
interface = "eth0"

[dpinet.broadcast]
compression = "lz4"
`)

	_, err := Load(path)
	assert.Error(t, err, "expected an error for an unsupported compression mode")
}

func TestValidateAndApplyDefaults_RejectsKafkaWithoutBrokers(t *testing.T) {
	cfg := &GlobalConfig{
		Capture: CaptureConfig{Interface: "eth0"},
		Dissect: DissectConfig{Workers: 1},
		Broadcast: BroadcastConfig{
			Port:                 9977,
			HeartbeatIntervalMs:  5000,
			SubscriberQueueDepth: 4096,
			Compression:          "none",
		},
		Stats: StatsConfig{IntervalMs: 1000},
		Kafka: KafkaConfig{Enabled: true},
	}

	err := cfg.ValidateAndApplyDefaults()
	assert.Error(t, err, "expected an error when kafka.enabled=true with no brokers")
}
