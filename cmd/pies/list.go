package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"github.com/google/subcommands"

	"github.com/camuig/pie-watch/internal/config"
	"github.com/camuig/pie-watch/internal/metrics"
	"github.com/camuig/pie-watch/internal/portfolio"
)

type listCmd struct {
	path   string
	asJSON bool
}

func (*listCmd) Name() string     { return "list" }
func (*listCmd) Synopsis() string { return "print the persisted pies with returns and totals" }
func (*listCmd) Usage() string {
	return `pies list [-f <state file>] [-json]

  Reads the state file written by piewatch and prints one row per pie with
  its invested and current value, result and annualized return.
`
}

func (c *listCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.path, "f", "", "state file (defaults to persist.path from the config)")
	f.BoolVar(&c.asJSON, "json", false, "print rows as JSON")
}

func (c *listCmd) Execute(_ context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	cfg, err := config.LoadUnvalidated(*configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return subcommands.ExitFailure
	}
	statePath := c.path
	if statePath == "" {
		statePath = cfg.Persist.Path
	}

	store, err := portfolio.Load(statePath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load %s: %v\n", statePath, err)
		return subcommands.ExitFailure
	}

	if c.asJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(metrics.Rows(store.Snapshot(), time.Now())); err != nil {
			fmt.Fprintln(os.Stderr, err)
			return subcommands.ExitFailure
		}
		return subcommands.ExitSuccess
	}

	printPies(os.Stdout, store.Snapshot(), cfg.Trading212.Currency, time.Now())
	return subcommands.ExitSuccess
}

func printPies(out io.Writer, records []portfolio.Record, currency string, now time.Time) {
	if len(records) == 0 {
		fmt.Fprintln(out, "No pies.")
		return
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintln(w, "Pie\tInvested\tValue\tResult\tAnnualized\tCash\t")
	for _, r := range metrics.Rows(records, now) {
		fmt.Fprintf(w, "%s\t%s\t%s\t%.2f%%\t%.2f%%\t%s\t\n",
			r.DisplayName,
			metrics.FormatAmount(r.Result.InvestedValue, currency),
			metrics.FormatAmount(r.Result.CurrentValue, currency),
			r.ResultPercent,
			r.AnnualizedReturn,
			metrics.FormatAmount(r.Cash, currency))
	}
	t := metrics.AggregateTotals(records)
	fmt.Fprintf(w, "Total\t%s\t%s\t%.2f%%\t\t\t\n",
		metrics.FormatAmount(t.Invested, currency),
		metrics.FormatAmount(t.Current, currency),
		t.ReturnPercent)
	w.Flush()
}
