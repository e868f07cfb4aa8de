package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/google/subcommands"

	"github.com/camuig/pie-watch/internal/broker"
	"github.com/camuig/pie-watch/internal/config"
	"github.com/camuig/pie-watch/internal/logger"
	"github.com/camuig/pie-watch/internal/portfolio"
	"github.com/camuig/pie-watch/internal/scheduler"
	"github.com/camuig/pie-watch/internal/storage"
)

type nopNotifier struct{}

func (nopNotifier) NotifyNewPie(portfolio.Record) {}
func (nopNotifier) NotifyError(string, error)     {}

type fetchCmd struct {
	dryRun bool
}

func (*fetchCmd) Name() string     { return "fetch" }
func (*fetchCmd) Synopsis() string { return "run one refresh cycle against the API and save" }
func (*fetchCmd) Usage() string {
	return `pies fetch [-dry-run]

  Lists pies once, merges them into the state file, fetches names and
  creation dates for pies that still miss them, then saves and prints.
`
}

func (c *fetchCmd) SetFlags(f *flag.FlagSet) {
	f.BoolVar(&c.dryRun, "dry-run", false, "print the merged result without saving")
}

func (c *fetchCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config error: %v\n", err)
		return subcommands.ExitFailure
	}
	log := logger.NewWithWriter(os.Stderr, cfg.Logging.Level, cfg.Logging.Format)

	store, err := portfolio.Load(cfg.Persist.Path)
	if err != nil {
		log.Warn("load pies, starting empty", "path", cfg.Persist.Path, "error", err)
	}

	client := broker.NewClient(cfg.Trading212.BaseURL, cfg.Trading212.Token, cfg.RequestTimeout(), log)
	sched := scheduler.NewScheduler(client, store, nil, nopNotifier{}, cfg.RefreshInterval(), log)

	res := sched.RunCycle(ctx)
	switch res.Outcome {
	case storage.OutcomeRateLimited:
		fmt.Fprintln(os.Stderr, "rate limited, try again shortly")
		return subcommands.ExitFailure
	case storage.OutcomeError:
		fmt.Fprintf(os.Stderr, "refresh failed: %v\n", res.Err)
		return subcommands.ExitFailure
	}

	printPies(os.Stdout, store.Snapshot(), cfg.Trading212.Currency, time.Now())
	fmt.Printf("\n%d pies, %d new, %d enriched\n", res.Pies, res.NewPies, res.Enriched)

	if c.dryRun {
		fmt.Println("Dry run, state file not written.")
		return subcommands.ExitSuccess
	}
	if err := scheduler.NewSaver(store, cfg.Persist.Path, log).Save(); err != nil {
		fmt.Fprintf(os.Stderr, "save: %v\n", err)
		return subcommands.ExitFailure
	}
	return subcommands.ExitSuccess
}
