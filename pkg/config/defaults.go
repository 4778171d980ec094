package config

const (
	defaultProxyListen     = "127.0.0.1:3000"
	defaultUpstreamHost    = "127.0.0.1"
	defaultUpstreamTimeout = "10m"
	defaultChannelCapacity = 32
	defaultReadSize        = 32 * 1024

	defaultKafkaTopic = "tokentap.metrics"

	defaultWorkerCount     = 3
	defaultWorkerQueueSize = 256
)

// Log formats accepted by log.format.
const (
	LogFormatPretty = "pretty"
	LogFormatJSON   = "json"
	LogFormatText   = "text"
)

// NewDefaultConfig returns a Config with sane defaults for all fields.
// This is the single source of truth for default values.
func NewDefaultConfig() *Config {
	return &Config{
		Version: CurrentV,
		Proxy: ProxyConfig{
			Listen:          defaultProxyListen,
			UpstreamHost:    defaultUpstreamHost,
			UpstreamTimeout: defaultUpstreamTimeout,
			ChannelCapacity: defaultChannelCapacity,
			ReadSize:        defaultReadSize,
		},
		Log: LogConfig{
			Format: LogFormatPretty,
			Level:  "info",
		},
		Metrics: MetricsConfig{
			Enabled: true,
		},
		Eventstream: EventstreamConfig{
			KafkaTopic: defaultKafkaTopic,
		},
		Worker: WorkerConfig{
			Count:     defaultWorkerCount,
			QueueSize: defaultWorkerQueueSize,
		},
	}
}
