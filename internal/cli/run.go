package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"

	"github.com/roach88/possync/internal/connectivity"
	"github.com/roach88/possync/internal/engine"
	"github.com/roach88/possync/internal/gateway/postgres"
	"github.com/roach88/possync/internal/statusapi"
	"github.com/roach88/possync/internal/store"
)

// RunOptions holds flags for the run command.
type RunOptions struct {
	*RootOptions
	Database string
	Addr     string
}

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RunOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Start the sync engine for this terminal",
		Long: `Start the sync engine: open the local operation log, watch the remote
order store, and drain queued operations whenever it is reachable.

The terminal starts offline. The connectivity monitor brings it online
after the first successful ping.

Example:
  possync run --config /etc/possync/terminal.yaml
  possync run --db ./till-2.db --addr 127.0.0.1:9090 --verbose`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTerminal(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to the local operation log (overrides store.path)")
	cmd.Flags().StringVar(&opts.Addr, "addr", "", "status API listen address (overrides status.addr)")

	return cmd
}

func runTerminal(opts *RunOptions, cmd *cobra.Command) error {
	setupLogging(opts.Verbose, cmd.ErrOrStderr())

	cfg, err := loadConfig(opts.RootOptions)
	if err != nil {
		return err
	}
	if opts.Database != "" {
		cfg.Store.Path = opts.Database
	}
	if opts.Addr != "" {
		cfg.Status.Addr = opts.Addr
	}
	if cfg.Remote.DSN == "" {
		return NewExitError(ExitCommandError, "remote.dsn is not configured")
	}

	parentCtx := cmd.Context()
	if parentCtx == nil {
		parentCtx = context.Background()
	}
	ctx, cancel := context.WithCancel(parentCtx)
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	go func() {
		select {
		case sig := <-sigChan:
			slog.Info("received signal, shutting down", "signal", sig)
			cancel()
		case <-ctx.Done():
		}
	}()

	slog.Info("opening operation log", "path", cfg.Store.Path)
	st, err := store.Open(cfg.Store.Path)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open database", err)
	}
	defer func() {
		if closeErr := st.Close(); closeErr != nil {
			slog.Error("error closing database", "error", closeErr)
		}
	}()

	invOpts, err := cfg.InvoiceOptions()
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid invoice settings", err)
	}
	gw, err := postgres.Open(ctx, cfg.Remote.DSN,
		postgres.WithAllocatorOptions(invOpts...),
		postgres.WithRetryPolicy(cfg.RetryPolicy()),
	)
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid remote.dsn", err)
	}
	defer gw.Close()

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	eng, err := engine.New(ctx, st, gw,
		engine.WithMetrics(engine.NewMetrics(reg)),
		engine.WithRetryInterval(cfg.EngineRetryInterval()),
	)
	if err != nil {
		return WrapExitError(ExitFailure, "failed to load operation log", err)
	}

	monitor := &connectivity.Monitor{
		Remote:        gw,
		Target:        eng,
		Interval:      cfg.ConnectivityInterval(),
		FailThreshold: cfg.Connectivity.FailThreshold,
	}

	components := map[string]func(context.Context) error{
		"engine":       eng.Run,
		"connectivity": monitor.Run,
	}
	if cfg.Status.Addr != "" {
		api := statusapi.New(eng, statusapi.WithGatherer(reg))
		components["status api"] = func(ctx context.Context) error {
			return api.ListenAndServe(ctx, cfg.Status.Addr)
		}
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Terminal started with %d pending operations (remote %s).\n", eng.PendingCount(), gw)
	fmt.Fprintln(cmd.OutOrStdout(), "Press Ctrl-C to stop.")

	if err := runAll(ctx, cancel, components); err != nil {
		return WrapExitError(ExitFailure, "terminal stopped", err)
	}
	slog.Info("terminal stopped gracefully", "pending", eng.PendingCount())
	return nil
}

// runAll runs every component until ctx is done or one of them fails, then
// cancels the rest and waits. Context cancellation is not an error.
func runAll(ctx context.Context, cancel context.CancelFunc, components map[string]func(context.Context) error) error {
	var (
		wg       sync.WaitGroup
		once     sync.Once
		firstErr error
	)
	for name, run := range components {
		wg.Add(1)
		go func(name string, run func(context.Context) error) {
			defer wg.Done()
			err := run(ctx)
			if err == nil || errors.Is(err, context.Canceled) || (ctx.Err() != nil && errors.Is(err, ctx.Err())) {
				return
			}
			once.Do(func() {
				slog.Error("component failed", "component", name, "error", err)
				firstErr = fmt.Errorf("%s: %w", name, err)
				cancel()
			})
		}(name, run)
	}
	wg.Wait()
	return firstErr
}
