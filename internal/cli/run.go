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
	"time"

	"go.uber.org/zap"

	"quotagate/internal/config"
	"quotagate/internal/spec"
	"quotagate/internal/ui/live"
	"quotagate/pkg/fast"
	"quotagate/pkg/gateway/httpapi"
)

const (
	snapshotInterval = 200 * time.Millisecond
	shutdownTimeout  = 10 * time.Second
)

func runRun(cmd *Command) func(args []string, stdout, stderr io.Writer) int {
	return func(args []string, stdout, stderr io.Writer) int {
		if wantsHelp(args) {
			printCommandUsage(cmd, stdout)
			return ExitOK
		}
		fs := flag.NewFlagSet(cmd.Name, flag.ContinueOnError)
		fs.SetOutput(stderr)
		configPath := fs.String("config", "", "Path to config file (default: search for .quotagate/config.yml)")
		batchPath := fs.String("batch", "", "Path to batch file")
		uiMode := fs.String("ui", "auto", "Output mode: auto|live|plain")
		timeout := fs.Duration("timeout", 0, "Give up waiting for results after this long (0 waits forever)")
		keepAlive := fs.Bool("keep-alive", false, "Ping the upstream while idle")
		verbose := fs.Bool("verbose", false, "Enable debug logging")
		noColor := fs.Bool("no-color", false, "Disable colors in the live UI")
		if err := fs.Parse(args); err != nil {
			if err == flag.ErrHelp {
				printCommandUsage(cmd, stdout)
				return ExitOK
			}
			fmt.Fprintf(stderr, "invalid arguments: %v\n", err)
			printCommandUsage(cmd, stderr)
			return ExitUsage
		}
		if fs.NArg() > 0 {
			fmt.Fprintf(stderr, "unexpected arguments: %s\n", strings.Join(fs.Args(), " "))
			printCommandUsage(cmd, stderr)
			return ExitUsage
		}
		if strings.TrimSpace(*batchPath) == "" {
			fmt.Fprintln(stderr, "--batch is required")
			printCommandUsage(cmd, stderr)
			return ExitUsage
		}

		decision, err := resolveUIMode(*uiMode, *verbose, stdout)
		if err != nil {
			fmt.Fprintf(stderr, "%v\n", err)
			return ExitUsage
		}
		if decision.warning != "" {
			fmt.Fprintln(stderr, decision.warning)
		}

		cfg, err := loadConfig(*configPath)
		if err != nil {
			fmt.Fprintf(stderr, "Failed to load config:\n%v\n", err)
			return ExitError
		}
		batch, err := config.LoadBatch(*batchPath)
		if err != nil {
			fmt.Fprintf(stderr, "Failed to load batch:\n%v\n", err)
			return ExitError
		}
		if *keepAlive {
			cfg.Pool.KeepAlive = true
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
		defer stop()
		if *timeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, *timeout)
			defer cancel()
		}
		return executeBatch(ctx, cfg, batch, runOptions{
			live:    decision.useLive,
			verbose: *verbose,
			noColor: *noColor || decision.noColor,
		}, stdout, stderr)
	}
}

type runOptions struct {
	live    bool
	verbose bool
	noColor bool
}

// executeBatch runs one batch through a fresh pool and prints the results.
func executeBatch(ctx context.Context, cfg spec.Config, batch spec.Batch, opts runOptions, stdout, stderr io.Writer) int {
	logger, err := newLogger(cfg, opts.verbose, stderr)
	if err != nil {
		fmt.Fprintf(stderr, "Failed to build logger: %v\n", err)
		return ExitError
	}
	defer func() { _ = logger.Sync() }()
	if opts.live {
		// The live UI owns the terminal.
		logger = zap.NewNop()
	}

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

	ctx, quit := context.WithCancel(ctx)
	defer quit()

	var ui *live.Controller
	poolOpts := []fast.Option{fast.WithLogger(logger)}
	if opts.live {
		ui = live.Start(stdout, live.Options{NoColor: opts.noColor, OnQuit: quit})
		poolOpts = append(poolOpts, fast.WithObserver(ui))
	}

	pool := fast.New(rt.admin, config.PoolConfig(cfg), poolOpts...)
	if err := pool.Start(ctx); err != nil {
		ui.Close()
		ui.Wait()
		fmt.Fprintf(stderr, "Failed to start pool: %v\n", err)
		return ExitError
	}

	req := buildRequest(batch)
	resp, err := pool.Submit(req)
	if err != nil {
		ui.Close()
		ui.Wait()
		closeCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		_ = pool.Close(closeCtx)
		fmt.Fprintf(stderr, "Submit failed: %v\n", err)
		return ExitError
	}
	if ui != nil {
		ui.OnBatchStart(resp.ID(), req.Names())
		go streamSnapshots(ctx, rt, resp, ui)
	}

	complete := resp.Wait(ctx)
	if ui != nil {
		ui.OnSnapshot(rt.admin.Snapshot())
		ui.OnBatchEnd(resp.ID())
		ui.Close()
		ui.Wait()
	}

	closeCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := pool.Close(closeCtx); err != nil {
		fmt.Fprintf(stderr, "Pool shutdown: %v\n", err)
	}

	printResults(stdout, resp, req.Names())
	if counters, err := rt.counters(closeCtx); err != nil {
		fmt.Fprintf(stderr, "Read counters: %v\n", err)
	} else {
		title := "Counters"
		if cfg.Stats.RedisAddr != "" {
			title = "Shared counters"
		}
		printCounters(stdout, title, counters)
	}
	if !complete {
		fmt.Fprintf(stderr, "Batch %s incomplete: %d of %d calls without result\n", resp.ID(), resp.Remaining(), resp.Len())
		return ExitError
	}
	return ExitOK
}

// buildRequest turns batch entries into named GET calls.
func buildRequest(batch spec.Batch) *fast.Request {
	req := fast.NewRequest()
	for _, entry := range batch.Requests {
		args := make([]any, len(entry.Args))
		for i, arg := range entry.Args {
			args[i] = arg
		}
		method := httpapi.Get(entry.Path)
		if name := strings.TrimSpace(entry.Name); name != "" {
			req.AddNamed(name, method, args...)
			continue
		}
		req.Add(method, args...)
	}
	return req
}

// streamSnapshots feeds gateway snapshots to the UI until the batch is done.
func streamSnapshots(ctx context.Context, rt *runtime, resp *fast.Response, ui *live.Controller) {
	ticker := time.NewTicker(snapshotInterval)
	defer ticker.Stop()
	for {
		ui.OnSnapshot(rt.admin.Snapshot())
		if resp.Done() {
			return
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// printResults writes one line per call in submit order.
func printResults(w io.Writer, resp *fast.Response, names []string) {
	fmt.Fprintf(w, "Batch %s\n", resp.ID())
	for _, name := range names {
		res, ok := resp.Get(name)
		if !ok {
			fmt.Fprintf(w, "  %-16s %-12s\n", name, "pending")
			continue
		}
		fmt.Fprintf(w, "  %-16s %-12s %s\n", name, res.Status, describeResult(res))
	}
}

// describeResult renders a status code and payload, or the error.
func describeResult(res fast.Result) string {
	if res.Err != nil {
		return res.Err.Error()
	}
	detail := res.Response.Status.Code
	switch payload := res.Response.Payload.(type) {
	case nil:
	case json.RawMessage:
		detail += " " + truncate(string(payload), 120)
	case string:
		detail += " " + truncate(strings.Join(strings.Fields(payload), " "), 120)
	default:
		detail += " " + truncate(fmt.Sprint(payload), 120)
	}
	return detail
}

func truncate(text string, limit int) string {
	if len(text) <= limit {
		return text
	}
	return text[:limit-3] + "..."
}
