package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/steveyegge/edit-ghi/internal/dashboard"
	"github.com/steveyegge/edit-ghi/internal/tracker"
	"github.com/steveyegge/edit-ghi/internal/ui"
	"github.com/steveyegge/edit-ghi/internal/watch"
)

var watchCmd = &cobra.Command{
	Use:     "watch [flags] file...",
	GroupID: "sync",
	Short:   "Reconcile again whenever a checklist file changes",
	Long: `Run a reconciliation now and again each time one of the files changes.

Changes are debounced (--debounce) and runs never overlap. A run whose
own edits change the files does not trigger another run. Per-item
failures are reported and watching continues; a missing or unsupported
tracker stops the command.

With --port, a dashboard is served on http://127.0.0.1:<port>/ and run
progress is broadcast to WebSocket clients on /ws.

Confirmation prompts are not available in watch mode; use --dry-run to
watch without applying changes.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runWatch,
}

func init() {
	addSyncFlags(watchCmd.Flags())
	watchCmd.Flags().Duration("debounce", watch.DefaultDebounce, "quiet period after a change before running")
	watchCmd.Flags().IntP("port", "p", 0, "serve the dashboard on this port (0: no dashboard)")
	rootCmd.AddCommand(watchCmd)
}

func runWatch(cmd *cobra.Command, args []string) error {
	d, closeFn, err := newDriver(cmd, args, false)
	if err != nil {
		return err
	}
	defer closeFn()

	var (
		server  *dashboard.Server
		handler *dashboard.Handler
	)
	if cfg.Watch.Port > 0 {
		server = dashboard.NewServer(dashboard.Config{Port: cfg.Watch.Port, Logger: logger("dashboard")})
		handler = dashboard.NewHandler(server, logger("dashboard"))
	}

	out := cmd.OutOrStdout()
	run := func(ctx context.Context) ([]string, error) {
		n := 0
		if handler != nil {
			n = handler.OnRunStarted("watch", args)
		}
		report, err := d.Run(ctx)
		if handler != nil {
			handler.OnReport(n, report, err)
		}
		if report == nil {
			return nil, err
		}
		if shouldPrintReport(report, err) {
			if perr := printReport(out, report); perr != nil {
				return report.LocalWrites, perr
			}
		}
		return report.LocalWrites, err
	}

	loop, err := watch.New(watch.Config{
		Files:    args,
		Run:      run,
		Debounce: cfg.Watch.Debounce,
		StopOn:   tracker.IsFatal,
		Logger:   logger("watch"),
		Trace:    trace,
	})
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		// The dashboard goes down with the loop
		defer cancel()
		return loop.Start(gctx)
	})
	if server != nil {
		g.Go(func() error { return server.Run(gctx) })
		fmt.Fprintf(cmd.ErrOrStderr(), "%s Dashboard on http://127.0.0.1:%d/\n", ui.RenderAccent("●"), cfg.Watch.Port)
	}
	fmt.Fprintf(cmd.ErrOrStderr(), "Watching %d file(s). Press Ctrl+C to stop\n", len(args))

	return g.Wait()
}
