package cli

import (
	"context"
	"flag"
	"fmt"
	"io"
	"maps"
	"slices"
	"strings"
	"text/tabwriter"

	"quotagate/internal/journal"
	"quotagate/internal/stats"
)

// runStats builds the handler for the stats command.
func runStats(cmd *Command) func(args []string, stdout, stderr io.Writer) int {
	return func(args []string, stdout, stderr io.Writer) int {
		if wantsHelp(args) {
			printCommandUsage(cmd, stdout)
			return ExitOK
		}

		flags := flag.NewFlagSet(cmd.Name, flag.ContinueOnError)
		flags.SetOutput(stderr)
		configPath := flags.String("config", "", "Path to config file (default: search for .quotagate/config.yml)")
		session := flags.String("session", "", "Limit the journal summary to one session id")
		if err := flags.Parse(args); err != nil {
			if err == flag.ErrHelp {
				printCommandUsage(cmd, stdout)
				return ExitOK
			}
			fmt.Fprintf(stderr, "invalid arguments: %v\n", err)
			printCommandUsage(cmd, stderr)
			return ExitUsage
		}
		if flags.NArg() > 0 {
			fmt.Fprintf(stderr, "unexpected arguments: %s\n", strings.Join(flags.Args(), " "))
			printCommandUsage(cmd, stderr)
			return ExitUsage
		}

		cfg, err := loadConfig(*configPath)
		if err != nil {
			fmt.Fprintf(stderr, "Failed to load config:\n%v\n", err)
			return ExitError
		}
		if cfg.Journal.Path == "" && cfg.Stats.RedisAddr == "" {
			fmt.Fprintln(stderr, "Neither journal.path nor stats.redis_addr is configured")
			return ExitError
		}

		ctx := context.Background()
		if cfg.Journal.Path != "" {
			if err := printJournalSummary(ctx, stdout, cfg.Journal.Path, *session); err != nil {
				fmt.Fprintf(stderr, "Journal summary failed: %v\n", err)
				return ExitError
			}
		}
		if cfg.Stats.RedisAddr != "" {
			rdb, err := stats.DialRedis(ctx, cfg.Stats.RedisAddr)
			if err != nil {
				fmt.Fprintf(stderr, "Shared counters unavailable: %v\n", err)
				return ExitError
			}
			defer rdb.Close()
			store := stats.NewRedisStore(rdb, stats.WithPrefix(cfg.Stats.Prefix), stats.WithTTL(cfg.Stats.TTL))
			counters, err := store.Snapshot(ctx)
			if err != nil {
				fmt.Fprintf(stderr, "Read shared counters: %v\n", err)
				return ExitError
			}
			printCounters(stdout, "Shared counters", counters)
		}
		return ExitOK
	}
}

func printJournalSummary(ctx context.Context, w io.Writer, path, session string) error {
	db, err := journal.OpenDB(ctx, path)
	if err != nil {
		return err
	}
	defer db.Close()
	summary, err := journal.Summarize(ctx, db, session)
	if err != nil {
		return err
	}

	fmt.Fprintf(w, "Journal %s\n", path)
	fmt.Fprintf(w, "  sessions: %d  calls: %d  probes: %d\n", summary.Sessions, summary.Calls, summary.Probes)
	fmt.Fprintf(w, "  transitions: %d  syncs: %d (failed %d, avg drift %s)\n",
		summary.Transitions, summary.Syncs, summary.FailedSyncs, summary.AvgDrift)
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "  KIND\tCALLS")
	for _, kind := range summary.Kinds {
		fmt.Fprintf(tw, "  %s\t%d\n", kind.Kind, kind.Count)
	}
	fmt.Fprintln(tw, "  CORE\tCALLS\tOK\tAVG LATENCY")
	for _, core := range summary.Cores {
		fmt.Fprintf(tw, "  %d\t%d\t%d\t%s\n", core.Core, core.Calls, core.OK, core.AvgLatency)
	}
	return tw.Flush()
}

func printCounters(w io.Writer, title string, counters stats.Counters) {
	fmt.Fprintln(w, title)
	printGroup(w, "calls", counters.Calls)
	for _, core := range slices.Sorted(maps.Keys(counters.Cores)) {
		printGroup(w, fmt.Sprintf("core %d", core), counters.Cores[core])
	}
	printGroup(w, "transitions", counters.Transitions)
	printGroup(w, "syncs", counters.Syncs)
}

func printGroup(w io.Writer, label string, values map[string]int64) {
	if len(values) == 0 {
		return
	}
	parts := make([]string, 0, len(values))
	for _, field := range slices.Sorted(maps.Keys(values)) {
		parts = append(parts, fmt.Sprintf("%s=%d", field, values[field]))
	}
	fmt.Fprintf(w, "  %-12s %s\n", label, strings.Join(parts, " "))
}
