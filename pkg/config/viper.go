package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/viper"

	"github.com/papercomputeco/tokentap/pkg/dotdir"
)

// EnvPrefix is prepended to every environment variable override,
// e.g. TOKENTAP_PROXY_LISTEN.
const EnvPrefix = "TOKENTAP"

// InitViper creates and returns a configured *viper.Viper.
// It sets defaults from NewDefaultConfig(), reads config.toml (if found via
// dotdir resolution), and binds environment variables with the TOKENTAP_ prefix.
//
// Config precedence (highest to lowest):
//  1. CLI flags (once bound via BindRegisteredFlags)
//  2. Environment variables (TOKENTAP_PROXY_LISTEN, TOKENTAP_LOG_LEVEL, etc.)
//  3. config.toml file values
//  4. Defaults from NewDefaultConfig()
func InitViper(configDir string) (*viper.Viper, error) {
	v := viper.New()

	setViperDefaults(v)

	v.SetConfigName("config")
	v.SetConfigType("toml")

	ddm := dotdir.NewManager()
	target, err := ddm.Target(configDir)
	if err != nil {
		return nil, fmt.Errorf("resolving config dir: %w", err)
	}

	if target != "" {
		v.AddConfigPath(target)
	}

	if err := v.ReadInConfig(); err != nil {
		if !errors.As(err, &viper.ConfigFileNotFoundError{}) {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	return v, nil
}

// setViperDefaults registers defaults from NewDefaultConfig() into viper
// using dotted-key notation.
func setViperDefaults(v *viper.Viper) {
	d := NewDefaultConfig()

	v.SetDefault("version", d.Version)

	// Proxy
	v.SetDefault("proxy.listen", d.Proxy.Listen)
	v.SetDefault("proxy.upstream_host", d.Proxy.UpstreamHost)
	v.SetDefault("proxy.upstream_timeout", d.Proxy.UpstreamTimeout)
	v.SetDefault("proxy.channel_capacity", d.Proxy.ChannelCapacity)
	v.SetDefault("proxy.read_size", d.Proxy.ReadSize)

	v.SetDefault("api.listen", d.API.Listen)

	// Log
	v.SetDefault("log.format", d.Log.Format)
	v.SetDefault("log.level", d.Log.Level)

	v.SetDefault("metrics.enabled", d.Metrics.Enabled)

	// Storage
	v.SetDefault("storage.sqlite_path", d.Storage.SQLitePath)
	v.SetDefault("storage.postgres_dsn", d.Storage.PostgresDSN)

	// Eventstream
	v.SetDefault("eventstream.kafka_brokers", d.Eventstream.KafkaBrokers)
	v.SetDefault("eventstream.kafka_topic", d.Eventstream.KafkaTopic)

	// Worker
	v.SetDefault("worker.count", d.Worker.Count)
	v.SetDefault("worker.queue_size", d.Worker.QueueSize)
}
