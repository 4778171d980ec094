// Package usagecmder provides the usage command that summarizes recorded
// token usage from the metrics database.
package usagecmder

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/papercomputeco/tokentap/cmd/tokentap/sqlitepath"
	"github.com/papercomputeco/tokentap/pkg/cliui"
	"github.com/papercomputeco/tokentap/pkg/config"
	"github.com/papercomputeco/tokentap/pkg/llm"
	"github.com/papercomputeco/tokentap/pkg/storage"
	"github.com/papercomputeco/tokentap/pkg/storage/postgres"
	"github.com/papercomputeco/tokentap/pkg/storage/sqlite"
	"github.com/papercomputeco/tokentap/pkg/utils"
)

type usageCommander struct {
	sqlitePath  string
	postgresDSN string

	recent  int
	model   string
	backend string
	outcome string
	json    bool
}

const usageLongDesc string = `Summarize recorded token usage.

Reads metrics records from the SQLite or PostgreSQL database the proxy writes
to and prints prompt and completion token totals per backend and model.
Use --recent to also list the newest individual requests.

When neither --sqlite nor --postgres is given, the configured storage is used,
then TOKENTAP_SQLITE, then .tokentap/metrics.db and ~/.tokentap/metrics.db.

Examples:
  tokentap usage
  tokentap usage --recent 20 --model llama3
  tokentap usage --postgres postgres://localhost/tokentap --json`

const usageShortDesc string = "Summarize recorded token usage"

func NewUsageCmd() *cobra.Command {
	cmder := &usageCommander{}

	cmd := &cobra.Command{
		Use:   "usage",
		Short: usageShortDesc,
		Long:  usageLongDesc,
		Args:  cobra.NoArgs,
		PreRunE: func(cmd *cobra.Command, _ []string) error {
			configDir, _ := cmd.Flags().GetString("config-dir")
			v, err := config.InitViper(configDir)
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}

			config.BindRegisteredFlags(v, cmd, config.Flags, []string{config.FlagSQLite, config.FlagPostgres})
			cmder.sqlitePath = v.GetString("storage.sqlite_path")
			cmder.postgresDSN = v.GetString("storage.postgres_dsn")
			return nil
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmder.run(cmd.Context(), cmd.OutOrStdout())
		},
	}

	config.AddStringFlag(cmd, config.Flags, config.FlagSQLite, &cmder.sqlitePath)
	config.AddStringFlag(cmd, config.Flags, config.FlagPostgres, &cmder.postgresDSN)
	cmd.Flags().IntVarP(&cmder.recent, "recent", "n", 0, "Also list the N most recent requests")
	cmd.Flags().StringVar(&cmder.model, "model", "", "Only list recent requests for this model")
	cmd.Flags().StringVar(&cmder.backend, "backend", "", "Only list recent requests for this backend (ollama, openai, unknown)")
	cmd.Flags().StringVar(&cmder.outcome, "outcome", "", "Only list recent requests with this outcome")
	cmd.Flags().BoolVar(&cmder.json, "json", false, "Print machine readable JSON")

	return cmd
}

// report is the JSON output shape.
type report struct {
	Totals []storage.Totals `json:"totals"`
	Recent []*llm.Metrics   `json:"recent,omitempty"`
}

func (c *usageCommander) run(ctx context.Context, w io.Writer) error {
	driver, err := c.openDriver(ctx)
	if err != nil {
		return err
	}
	defer driver.Close()

	totals, err := driver.Totals(ctx)
	if err != nil {
		return fmt.Errorf("reading totals: %w", err)
	}

	var recent []*llm.Metrics
	if c.recent > 0 {
		recent, err = driver.List(ctx, storage.Query{
			Model:   c.model,
			Backend: c.backend,
			Outcome: llm.Outcome(c.outcome),
			Limit:   c.recent,
		})
		if err != nil {
			return fmt.Errorf("listing records: %w", err)
		}
	}

	if c.json {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(report{Totals: totals, Recent: recent})
	}

	printTotals(w, totals)
	if c.recent > 0 {
		printRecent(w, recent)
	}
	return nil
}

func (c *usageCommander) openDriver(ctx context.Context) (storage.Driver, error) {
	if c.postgresDSN != "" {
		driver, err := postgres.NewDriver(ctx, c.postgresDSN)
		if err != nil {
			return nil, fmt.Errorf("opening PostgreSQL: %w", err)
		}
		return driver, nil
	}

	path, err := sqlitepath.ResolveSQLitePath(c.sqlitePath)
	if err != nil {
		return nil, err
	}

	driver, err := sqlite.NewDriver(ctx, path)
	if err != nil {
		return nil, fmt.Errorf("opening SQLite %s: %w", path, err)
	}
	return driver, nil
}

func printTotals(w io.Writer, totals []storage.Totals) {
	if len(totals) == 0 {
		fmt.Fprintln(w, cliui.DimStyle.Render("No requests recorded yet."))
		return
	}

	fmt.Fprintln(w, cliui.HeaderStyle.Render("Token usage"))
	fmt.Fprintf(w, "%-8s  %-32s  %10s  %14s  %14s\n", "BACKEND", "MODEL", "REQUESTS", "PROMPT", "COMPLETION")

	var requests int64
	var prompt, completion uint64
	for _, t := range totals {
		fmt.Fprintf(w, "%-8s  %-32s  %10d  %14s  %14s\n",
			t.Backend,
			modelName(t.Model, 32),
			t.Requests,
			cliui.FormatCount(t.PromptTokens),
			cliui.FormatCount(t.CompletionTokens),
		)
		requests += t.Requests
		prompt += t.PromptTokens
		completion += t.CompletionTokens
	}

	fmt.Fprintf(w, "%-8s  %-32s  %10d  %14s  %14s\n",
		"total", "",
		requests,
		cliui.FormatCount(prompt),
		cliui.FormatCount(completion),
	)
}

func printRecent(w io.Writer, records []*llm.Metrics) {
	fmt.Fprintln(w)
	fmt.Fprintln(w, cliui.HeaderStyle.Render("Recent requests"))
	if len(records) == 0 {
		fmt.Fprintln(w, cliui.DimStyle.Render("No matching requests."))
		return
	}

	for _, m := range records {
		fmt.Fprintf(w, "%s  %-8s  %-24s  %8s  %8s  %8s  %s\n",
			m.Timestamp.Local().Format(time.DateTime),
			m.Backend,
			modelName(m.Model, 24),
			count(m.PromptTokens),
			count(m.CompletionTokens),
			cliui.FormatDuration(time.Duration(m.LatencyMs)*time.Millisecond),
			m.Outcome,
		)
	}
}

// modelName fits a model name into a column of the given width.
func modelName(model string, width int) string {
	if model == "" {
		return "-"
	}
	return utils.Truncate(model, width-3)
}

func count(n *uint64) string {
	if n == nil {
		return "-"
	}
	return cliui.FormatCount(*n)
}
