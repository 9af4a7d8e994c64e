// Package config handles global configuration loading using viper.
package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// GlobalConfig is the top-level static configuration. It maps to the
// `dpinet:` root key in the TOML config file; env vars use a DPINET_
// prefix (e.g. DPINET_BROADCAST_PORT).
type GlobalConfig struct {
	Capture   CaptureConfig   `mapstructure:"capture"`
	Dissect   DissectConfig   `mapstructure:"dissect"`
	Broadcast BroadcastConfig `mapstructure:"broadcast"`
	Stats     StatsConfig     `mapstructure:"stats"`
	Kafka     KafkaConfig     `mapstructure:"kafka"`
	Log       LogConfig       `mapstructure:"log"`
}

// CaptureConfig configures the capture source.
type CaptureConfig struct {
	Interface   string `mapstructure:"interface"`
	Promiscuous bool   `mapstructure:"promiscuous"`
	SnapLen     int    `mapstructure:"snap_len"`
	Filter      string `mapstructure:"filter"`
	OfflineFile string `mapstructure:"offline_file"`
}

// DissectConfig configures the dissection worker pool.
type DissectConfig struct {
	Workers int `mapstructure:"workers"`
}

// BroadcastConfig configures the subscriber-facing TCP server.
type BroadcastConfig struct {
	Port                 int    `mapstructure:"port"`
	Password             string `mapstructure:"password"`
	HeartbeatIntervalMs  int    `mapstructure:"heartbeat_interval_ms"`
	SubscriberQueueDepth int    `mapstructure:"subscriber_queue_depth"`
	Compression          string `mapstructure:"compression"` // "none" | "zlib"
}

// StatsConfig configures the aggregator's snapshot cadence.
type StatsConfig struct {
	IntervalMs int `mapstructure:"interval_ms"`
}

// KafkaConfig configures the optional secondary stats exporter.
type KafkaConfig struct {
	Enabled bool     `mapstructure:"enabled"`
	Brokers []string `mapstructure:"brokers"`
	Topic   string   `mapstructure:"topic"`
}

// LogConfig configures the structured logger.
type LogConfig struct {
	Level    string `mapstructure:"level"`
	Pattern  string `mapstructure:"pattern"`
	Time     string `mapstructure:"time"`
	Appender string `mapstructure:"appender"` // "stdout" | "file"
	FilePath string `mapstructure:"file_path"`
}

type configRoot struct {
	Dpinet GlobalConfig `mapstructure:"dpinet"`
}

// Load reads a TOML configuration file and returns the validated
// GlobalConfig, with defaults applied for anything left unset.
func Load(path string) (*GlobalConfig, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("toml")

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	var root configRoot
	if err := v.Unmarshal(&root); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	cfg := root.Dpinet

	if err := cfg.ValidateAndApplyDefaults(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

// setDefaults sets default values for configuration not present in the
// file or environment. All keys use the "dpinet." prefix to match the
// TOML root table.
func setDefaults(v *viper.Viper) {
	v.SetDefault("dpinet.capture.promiscuous", false)
	v.SetDefault("dpinet.capture.snap_len", 65535)

	v.SetDefault("dpinet.dissect.workers", 4)

	v.SetDefault("dpinet.broadcast.port", 9977)
	v.SetDefault("dpinet.broadcast.heartbeat_interval_ms", 5000)
	v.SetDefault("dpinet.broadcast.subscriber_queue_depth", 4096)
	v.SetDefault("dpinet.broadcast.compression", "none")

	v.SetDefault("dpinet.stats.interval_ms", 1000)

	v.SetDefault("dpinet.kafka.enabled", false)

	v.SetDefault("dpinet.log.level", "info")
	v.SetDefault("dpinet.log.pattern", "%time [%level] %field %msg (%caller)")
	v.SetDefault("dpinet.log.time", "2006-01-02T15:04:05.000Z07:00")
	v.SetDefault("dpinet.log.appender", "stdout")
}

// ValidateAndApplyDefaults enforces the bounds every field below this
// layer relies on: workers/intervals/queue depth that are too small
// would starve or thrash the pipeline rather than fail cleanly.
func (cfg *GlobalConfig) ValidateAndApplyDefaults() error {
	if cfg.Capture.Interface == "" && cfg.Capture.OfflineFile == "" {
		return fmt.Errorf("capture.interface or capture.offline_file is required")
	}

	if cfg.Dissect.Workers < 1 {
		return fmt.Errorf("dissect.workers must be >= 1, got %d", cfg.Dissect.Workers)
	}

	if cfg.Stats.IntervalMs < 100 {
		return fmt.Errorf("stats.interval_ms must be >= 100, got %d", cfg.Stats.IntervalMs)
	}

	if cfg.Broadcast.HeartbeatIntervalMs < 1000 {
		return fmt.Errorf("broadcast.heartbeat_interval_ms must be >= 1000, got %d", cfg.Broadcast.HeartbeatIntervalMs)
	}
	if cfg.Broadcast.SubscriberQueueDepth < 64 {
		return fmt.Errorf("broadcast.subscriber_queue_depth must be >= 64, got %d", cfg.Broadcast.SubscriberQueueDepth)
	}
	switch cfg.Broadcast.Compression {
	case "none", "zlib":
	default:
		return fmt.Errorf("broadcast.compression must be none or zlib, got %q", cfg.Broadcast.Compression)
	}
	if cfg.Broadcast.Port < 1 || cfg.Broadcast.Port > 65535 {
		return fmt.Errorf("broadcast.port must be a valid TCP port, got %d", cfg.Broadcast.Port)
	}

	if cfg.Kafka.Enabled && len(cfg.Kafka.Brokers) == 0 {
		return fmt.Errorf("kafka.brokers is required when kafka.enabled=true")
	}

	return nil
}
