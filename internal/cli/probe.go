package cli

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
)

// runProbe builds the handler for the probe command.
func runProbe(cmd *Command) func(args []string, stdout, stderr io.Writer) int {
	return func(args []string, stdout, stderr io.Writer) int {
		if wantsHelp(args) {
			printCommandUsage(cmd, stdout)
			return ExitOK
		}

		flags := flag.NewFlagSet(cmd.Name, flag.ContinueOnError)
		flags.SetOutput(stderr)
		configPath := flags.String("config", "", "Path to config file (default: search for .quotagate/config.yml)")
		verbose := flags.Bool("verbose", false, "Enable debug logging")
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
		logger, err := newLogger(cfg, *verbose, stderr)
		if err != nil {
			fmt.Fprintf(stderr, "Failed to build logger: %v\n", err)
			return ExitError
		}
		defer func() { _ = logger.Sync() }()

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
		defer stop()

		rt, err := buildRuntime(ctx, cfg, logger)
		if err != nil {
			fmt.Fprintf(stderr, "Failed to build gateway: %v\n", err)
			return ExitError
		}
		defer func() {
			if err := rt.close(); err != nil {
				fmt.Fprintf(stderr, "%v\n", err)
			}
		}()

		if err := rt.admin.Init(ctx); err != nil {
			fmt.Fprintf(stderr, "Init failed: %v\n", err)
			return ExitError
		}
		resp, pingErr := rt.admin.Ping(ctx)
		snap := rt.admin.Snapshot()
		if err := rt.admin.Close(); err != nil {
			fmt.Fprintf(stderr, "Close failed: %v\n", err)
		}

		if pingErr != nil {
			fmt.Fprintf(stdout, "Ping: %v\n", pingErr)
		} else {
			fmt.Fprintf(stdout, "Ping: %s\n", resp.Status.Code)
		}
		encoded, err := json.MarshalIndent(snap, "", "  ")
		if err != nil {
			fmt.Fprintf(stderr, "Encode snapshot: %v\n", err)
			return ExitError
		}
		fmt.Fprintln(stdout, string(encoded))
		if pingErr != nil || !resp.OK() {
			return ExitError
		}
		return ExitOK
	}
}
