// Package servecmder provides the serve command that runs the tokentap proxy.
package servecmder

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/papercomputeco/tokentap/api"
	"github.com/papercomputeco/tokentap/pkg/config"
	"github.com/papercomputeco/tokentap/pkg/eventstream"
	"github.com/papercomputeco/tokentap/pkg/eventstream/kafka"
	"github.com/papercomputeco/tokentap/pkg/logger"
	"github.com/papercomputeco/tokentap/pkg/storage"
	"github.com/papercomputeco/tokentap/pkg/storage/postgres"
	"github.com/papercomputeco/tokentap/pkg/storage/sqlite"
	"github.com/papercomputeco/tokentap/proxy"
)

type serveCommander struct {
	listen          string
	upstreamHost    string
	upstreamTimeout time.Duration
	channelCapacity int
	readSize        int

	apiListen string

	logFormat string
	logLevel  string
	metrics   bool

	sqlitePath  string
	postgresDSN string

	kafkaBrokers string
	kafkaTopic   string

	workers   uint
	queueSize uint

	logger *slog.Logger
}

// serveFlags are the registry keys bound to viper for this command.
var serveFlags = []string{
	config.FlagListen,
	config.FlagUpstreamHost,
	config.FlagUpstreamTimeout,
	config.FlagChannelCapacity,
	config.FlagReadSize,
	config.FlagAPIListen,
	config.FlagLogFormat,
	config.FlagLogLevel,
	config.FlagMetrics,
	config.FlagSQLite,
	config.FlagPostgres,
	config.FlagKafkaBrokers,
	config.FlagKafkaTopic,
	config.FlagWorkers,
	config.FlagQueueSize,
}

const serveLongDesc string = `Run the tokentap proxy.

Every request to /proxy/{port}/{path} is forwarded to {upstream-host}:{port}/{path}.
Responses stream back to the client unchanged while token usage is parsed
from the stream (Ollama NDJSON and OpenAI-compatible SSE).

One metrics record is emitted per request. Records are always logged,
exported as Prometheus metrics on /metrics when enabled, and persisted to
SQLite or PostgreSQL when a database is configured. With Kafka brokers set,
each stored record is also published as an event. With storage and
--api-listen set, a read-only records API is served as well.

Flags override environment variables (TOKENTAP_*), which override
config.toml, which overrides built-in defaults.`

const serveShortDesc string = "Run the tokentap proxy"

func NewServeCmd() *cobra.Command {
	cmder := &serveCommander{}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: serveShortDesc,
		Long:  serveLongDesc,
		Args:  cobra.NoArgs,
		PreRunE: func(cmd *cobra.Command, _ []string) error {
			configDir, _ := cmd.Flags().GetString("config-dir")
			v, err := config.InitViper(configDir)
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}

			config.BindRegisteredFlags(v, cmd, config.Flags, serveFlags)
			return cmder.load(v)
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			return cmder.run(ctx)
		},
	}

	config.AddStringFlag(cmd, config.Flags, config.FlagListen, &cmder.listen)
	config.AddStringFlag(cmd, config.Flags, config.FlagUpstreamHost, &cmder.upstreamHost)
	config.AddDurationFlag(cmd, config.Flags, config.FlagUpstreamTimeout, &cmder.upstreamTimeout)
	config.AddIntFlag(cmd, config.Flags, config.FlagChannelCapacity, &cmder.channelCapacity)
	config.AddIntFlag(cmd, config.Flags, config.FlagReadSize, &cmder.readSize)
	config.AddStringFlag(cmd, config.Flags, config.FlagAPIListen, &cmder.apiListen)
	config.AddStringFlag(cmd, config.Flags, config.FlagLogFormat, &cmder.logFormat)
	config.AddStringFlag(cmd, config.Flags, config.FlagLogLevel, &cmder.logLevel)
	config.AddBoolFlag(cmd, config.Flags, config.FlagMetrics, &cmder.metrics)
	config.AddStringFlag(cmd, config.Flags, config.FlagSQLite, &cmder.sqlitePath)
	config.AddStringFlag(cmd, config.Flags, config.FlagPostgres, &cmder.postgresDSN)
	config.AddStringFlag(cmd, config.Flags, config.FlagKafkaBrokers, &cmder.kafkaBrokers)
	config.AddStringFlag(cmd, config.Flags, config.FlagKafkaTopic, &cmder.kafkaTopic)
	config.AddUintFlag(cmd, config.Flags, config.FlagWorkers, &cmder.workers)
	config.AddUintFlag(cmd, config.Flags, config.FlagQueueSize, &cmder.queueSize)

	return cmd
}

// load resolves every setting through viper so flags, env, file and
// defaults apply in order.
func (c *serveCommander) load(v *viper.Viper) error {
	c.listen = v.GetString("proxy.listen")
	c.upstreamHost = v.GetString("proxy.upstream_host")
	c.channelCapacity = v.GetInt("proxy.channel_capacity")
	c.readSize = v.GetInt("proxy.read_size")
	c.apiListen = v.GetString("api.listen")
	c.logFormat = v.GetString("log.format")
	c.logLevel = v.GetString("log.level")
	c.metrics = v.GetBool("metrics.enabled")
	c.sqlitePath = v.GetString("storage.sqlite_path")
	c.postgresDSN = v.GetString("storage.postgres_dsn")
	c.kafkaBrokers = v.GetString("eventstream.kafka_brokers")
	c.kafkaTopic = v.GetString("eventstream.kafka_topic")
	c.workers = v.GetUint("worker.count")
	c.queueSize = v.GetUint("worker.queue_size")

	timeout, err := time.ParseDuration(v.GetString("proxy.upstream_timeout"))
	if err != nil {
		return fmt.Errorf("invalid proxy.upstream_timeout: %w", err)
	}
	c.upstreamTimeout = timeout

	if c.channelCapacity <= 0 {
		return errors.New("proxy.channel_capacity must be positive")
	}
	if c.readSize <= 0 {
		return errors.New("proxy.read_size must be positive")
	}

	return nil
}

func (c *serveCommander) run(ctx context.Context) error {
	var err error
	c.logger, err = newLogger(c.logFormat, c.logLevel)
	if err != nil {
		return err
	}

	driver, err := c.newStorageDriver(ctx)
	if err != nil {
		return err
	}
	if driver != nil {
		defer driver.Close()
	}

	publisher, err := c.newPublisher()
	if err != nil {
		return err
	}
	if publisher != nil {
		defer publisher.Close()
		if driver == nil {
			c.logger.Warn("kafka brokers set without storage, no events will be published")
		}
	}

	p, err := proxy.New(proxy.Config{
		ListenAddr:      c.listen,
		UpstreamHost:    c.upstreamHost,
		UpstreamTimeout: c.upstreamTimeout,
		ChannelCapacity: c.channelCapacity,
		ReadSize:        c.readSize,
		MetricsEnabled:  c.metrics,
		Publisher:       publisher,
		NumWorkers:      c.workers,
		QueueSize:       c.queueSize,
	}, driver, c.logger)
	if err != nil {
		return fmt.Errorf("creating proxy: %w", err)
	}

	errChan := make(chan error, 2)
	go func() {
		if err := p.Run(); err != nil {
			errChan <- fmt.Errorf("proxy error: %w", err)
		}
	}()

	apiServer := c.newAPIServer(driver)
	if apiServer != nil {
		go func() {
			if err := apiServer.Run(); err != nil {
				errChan <- fmt.Errorf("API server error: %w", err)
			}
		}()
	}

	var runErr error
	select {
	case runErr = <-errChan:
	case <-ctx.Done():
		c.logger.Info("shutting down")
	}

	if apiServer != nil {
		if err := apiServer.Shutdown(); err != nil {
			c.logger.Warn("API server shutdown failed", "error", err)
		}
	}
	if err := p.Close(); err != nil && runErr == nil {
		runErr = err
	}
	return runErr
}

// newAPIServer returns the records API when an address and storage are both
// configured, nil otherwise.
func (c *serveCommander) newAPIServer(driver storage.Driver) *api.Server {
	if c.apiListen == "" {
		return nil
	}
	if driver == nil {
		c.logger.Warn("api listen address set without storage, records API disabled")
		return nil
	}

	return api.NewServer(api.Config{ListenAddr: c.apiListen}, driver, c.logger)
}

// newStorageDriver opens the configured database. PostgreSQL wins when both
// are set. Returns a nil driver when neither is configured.
func (c *serveCommander) newStorageDriver(ctx context.Context) (storage.Driver, error) {
	switch {
	case c.postgresDSN != "":
		driver, err := postgres.NewDriver(ctx, c.postgresDSN)
		if err != nil {
			return nil, fmt.Errorf("failed to create PostgreSQL driver: %w", err)
		}
		c.logger.Info("using PostgreSQL storage")
		return driver, nil

	case c.sqlitePath != "":
		driver, err := sqlite.NewDriver(ctx, c.sqlitePath)
		if err != nil {
			return nil, fmt.Errorf("failed to create SQLite driver: %w", err)
		}
		c.logger.Info("using SQLite storage", "path", c.sqlitePath)
		return driver, nil
	}

	c.logger.Info("metrics records are not persisted, no storage configured")
	return nil, nil
}

// newPublisher returns a Kafka publisher when brokers are configured, nil otherwise.
func (c *serveCommander) newPublisher() (eventstream.Publisher, error) {
	brokers := config.SplitList(c.kafkaBrokers)
	if len(brokers) == 0 {
		return nil, nil
	}

	publisher, err := kafka.NewPublisher(kafka.Config{
		Brokers: brokers,
		Topic:   c.kafkaTopic,
	})
	if err != nil {
		return nil, fmt.Errorf("creating kafka publisher: %w", err)
	}

	c.logger.Info("publishing metrics events to kafka",
		"brokers", brokers,
		"topic", c.kafkaTopic,
	)
	return publisher, nil
}

// newLogger builds the process logger from log.format and log.level.
func newLogger(format, level string) (*slog.Logger, error) {
	lvl, err := logger.ParseLevel(level)
	if err != nil {
		return nil, err
	}

	opts := []logger.Option{
		logger.WithLevel(lvl),
		logger.WithWriter(os.Stderr),
		logger.WithSource(lvl <= logger.LevelTrace),
	}
	switch format {
	case config.LogFormatPretty:
		opts = append(opts, logger.WithPretty(true))
	case config.LogFormatJSON:
		opts = append(opts, logger.WithJSON(true))
	case config.LogFormatText:
	default:
		return nil, fmt.Errorf("unknown log format: %q (available: pretty, json, text)", format)
	}

	return logger.New(opts...), nil
}
