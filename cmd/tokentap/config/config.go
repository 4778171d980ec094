// Package configcmder provides the config command for managing persistent
// tokentap configuration stored in the .tokentap/ directory.
package configcmder

import (
	"github.com/spf13/cobra"

	"github.com/papercomputeco/tokentap/pkg/config"
)

const configLongDesc string = `Manage persistent tokentap configuration.

Configuration is stored as config.toml in the .tokentap/ directory and provides
default values for command flags. CLI flags and TOKENTAP_* environment
variables take precedence over config file values.

Keys use dotted notation matching the TOML section structure:
  proxy.listen, proxy.upstream_host, proxy.upstream_timeout,
  proxy.channel_capacity, proxy.read_size,
  log.format, log.level, metrics.enabled,
  storage.sqlite_path, storage.postgres_dsn,
  eventstream.kafka_brokers, eventstream.kafka_topic,
  worker.count, worker.queue_size

Examples:
  tokentap config set proxy.upstream_host 10.0.0.5
  tokentap config set storage.sqlite_path ~/.tokentap/metrics.db
  tokentap config get proxy.listen
  tokentap config list`

const configShortDesc string = "Manage persistent tokentap configuration"

func NewConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: configShortDesc,
		Long:  configLongDesc,
	}

	cmd.AddCommand(newSetCmd())
	cmd.AddCommand(newGetCmd())
	cmd.AddCommand(newListCmd())

	return cmd
}

func completeKeys(_ *cobra.Command, args []string, _ string) ([]string, cobra.ShellCompDirective) {
	if len(args) == 0 {
		return config.ValidConfigKeys(), cobra.ShellCompDirectiveNoFileComp
	}
	return nil, cobra.ShellCompDirectiveNoFileComp
}
