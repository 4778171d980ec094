// Package tokentapcmder
package tokentapcmder

import (
	"github.com/spf13/cobra"

	versioncmder "github.com/papercomputeco/tokentap/cmd/version"
	configcmder "github.com/papercomputeco/tokentap/cmd/tokentap/config"
	servecmder "github.com/papercomputeco/tokentap/cmd/tokentap/serve"
	usagecmder "github.com/papercomputeco/tokentap/cmd/tokentap/usage"
)

const tokentapLongDesc string = `Tokentap is a token accounting proxy for local LLM servers.

Point clients at http://{listen}/proxy/{port}/... and tokentap forwards the
request to the upstream server on that port, streams the response back
unchanged, and records token usage for every request.

Commands:
  tokentap serve       Run the proxy
  tokentap usage       Summarize recorded token usage
  tokentap config      Manage persistent configuration`

const tokentapShortDesc string = "Tokentap - LLM token accounting proxy"

func NewTokentapCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:          "tokentap",
		Short:        tokentapShortDesc,
		Long:         tokentapLongDesc,
		SilenceUsage: true,
	}

	// Global flags
	cmd.PersistentFlags().String("config-dir", "", "Directory holding config.toml (default: ./.tokentap or ~/.tokentap)")

	cmd.AddCommand(servecmder.NewServeCmd())
	cmd.AddCommand(usagecmder.NewUsageCmd())
	cmd.AddCommand(configcmder.NewConfigCmd())
	cmd.AddCommand(versioncmder.NewVersionCmd())

	return cmd
}
