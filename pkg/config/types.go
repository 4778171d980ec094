package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/papercomputeco/tokentap/pkg/logger"
)

// Config represents the persistent tokentap configuration stored as
// config.toml in the .tokentap/ directory. The TOML layout uses sections for
// logical grouping.
type Config struct {
	Version     int               `toml:"version"`
	Proxy       ProxyConfig       `toml:"proxy"`
	API         APIConfig         `toml:"api"`
	Log         LogConfig         `toml:"log"`
	Metrics     MetricsConfig     `toml:"metrics"`
	Storage     StorageConfig     `toml:"storage"`
	Eventstream EventstreamConfig `toml:"eventstream"`
	Worker      WorkerConfig      `toml:"worker"`
}

// ProxyConfig holds proxy server and streaming settings.
type ProxyConfig struct {
	Listen          string `toml:"listen,omitempty"`
	UpstreamHost    string `toml:"upstream_host,omitempty"`
	UpstreamTimeout string `toml:"upstream_timeout,omitempty"`
	ChannelCapacity int    `toml:"channel_capacity,omitempty"`
	ReadSize        int    `toml:"read_size,omitempty"`
}

// APIConfig holds the read-only records API settings. An empty Listen
// disables the API.
type APIConfig struct {
	Listen string `toml:"listen,omitempty"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Format string `toml:"format,omitempty"`
	Level  string `toml:"level,omitempty"`
}

// MetricsConfig holds Prometheus exposition settings.
type MetricsConfig struct {
	Enabled bool `toml:"enabled"`
}

// StorageConfig holds metrics record persistence settings. At most one
// backend is used; PostgresDSN wins when both are set.
type StorageConfig struct {
	SQLitePath  string `toml:"sqlite_path,omitempty"`
	PostgresDSN string `toml:"postgres_dsn,omitempty"`
}

// EventstreamConfig holds event publishing settings.
type EventstreamConfig struct {
	KafkaBrokers string `toml:"kafka_brokers,omitempty"`
	KafkaTopic   string `toml:"kafka_topic,omitempty"`
}

// Brokers splits the comma separated broker list, dropping blanks.
func (e EventstreamConfig) Brokers() []string {
	return SplitList(e.KafkaBrokers)
}

// WorkerConfig sizes the asynchronous storage worker pool.
type WorkerConfig struct {
	Count     uint `toml:"count,omitempty"`
	QueueSize uint `toml:"queue_size,omitempty"`
}

// SplitList splits a comma separated value, trimming whitespace and dropping
// empty entries.
func SplitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// configKeyInfo maps a user-facing dotted key name to a getter and setter on *Config.
type configKeyInfo struct {
	get func(c *Config) string
	set func(c *Config, v string) error
}

func stringKey(field func(c *Config) *string) configKeyInfo {
	return configKeyInfo{
		get: func(c *Config) string { return *field(c) },
		set: func(c *Config, v string) error { *field(c) = v; return nil },
	}
}

func intKey(key string, field func(c *Config) *int) configKeyInfo {
	return configKeyInfo{
		get: func(c *Config) string { return strconv.Itoa(*field(c)) },
		set: func(c *Config, v string) error {
			n, err := strconv.Atoi(v)
			if err != nil || n <= 0 {
				return fmt.Errorf("invalid value for %s: must be a positive integer", key)
			}
			*field(c) = n
			return nil
		},
	}
}

func uintKey(key string, field func(c *Config) *uint) configKeyInfo {
	return configKeyInfo{
		get: func(c *Config) string { return strconv.FormatUint(uint64(*field(c)), 10) },
		set: func(c *Config, v string) error {
			n, err := strconv.ParseUint(v, 10, 32)
			if err != nil {
				return fmt.Errorf("invalid value for %s: %w", key, err)
			}
			*field(c) = uint(n)
			return nil
		},
	}
}

// configKeys is the authoritative map of all supported config keys.
// Keys use dotted notation matching the TOML section structure.
var configKeys = map[string]configKeyInfo{
	"proxy.listen":        stringKey(func(c *Config) *string { return &c.Proxy.Listen }),
	"proxy.upstream_host": stringKey(func(c *Config) *string { return &c.Proxy.UpstreamHost }),
	"proxy.upstream_timeout": {
		get: func(c *Config) string { return c.Proxy.UpstreamTimeout },
		set: func(c *Config, v string) error {
			if _, err := time.ParseDuration(v); err != nil {
				return fmt.Errorf("invalid value for proxy.upstream_timeout: %w", err)
			}
			c.Proxy.UpstreamTimeout = v
			return nil
		},
	},
	"proxy.channel_capacity": intKey("proxy.channel_capacity", func(c *Config) *int { return &c.Proxy.ChannelCapacity }),
	"proxy.read_size":        intKey("proxy.read_size", func(c *Config) *int { return &c.Proxy.ReadSize }),
	"api.listen":             stringKey(func(c *Config) *string { return &c.API.Listen }),
	"log.format": {
		get: func(c *Config) string { return c.Log.Format },
		set: func(c *Config, v string) error {
			switch v {
			case LogFormatPretty, LogFormatJSON, LogFormatText:
				c.Log.Format = v
				return nil
			}
			return fmt.Errorf("invalid value for log.format: %q (available: pretty, json, text)", v)
		},
	},
	"log.level": {
		get: func(c *Config) string { return c.Log.Level },
		set: func(c *Config, v string) error {
			if _, err := logger.ParseLevel(v); err != nil {
				return err
			}
			c.Log.Level = v
			return nil
		},
	},
	"metrics.enabled": {
		get: func(c *Config) string { return strconv.FormatBool(c.Metrics.Enabled) },
		set: func(c *Config, v string) error {
			b, err := strconv.ParseBool(v)
			if err != nil {
				return fmt.Errorf("invalid value for metrics.enabled: %w", err)
			}
			c.Metrics.Enabled = b
			return nil
		},
	},
	"storage.sqlite_path":       stringKey(func(c *Config) *string { return &c.Storage.SQLitePath }),
	"storage.postgres_dsn":      stringKey(func(c *Config) *string { return &c.Storage.PostgresDSN }),
	"eventstream.kafka_brokers": stringKey(func(c *Config) *string { return &c.Eventstream.KafkaBrokers }),
	"eventstream.kafka_topic":   stringKey(func(c *Config) *string { return &c.Eventstream.KafkaTopic }),
	"worker.count":              uintKey("worker.count", func(c *Config) *uint { return &c.Worker.Count }),
	"worker.queue_size":         uintKey("worker.queue_size", func(c *Config) *uint { return &c.Worker.QueueSize }),
}
