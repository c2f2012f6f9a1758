package main

import (
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/steveyegge/edit-ghi/internal/config"
	"github.com/steveyegge/edit-ghi/internal/sync"
	"github.com/steveyegge/edit-ghi/internal/ui"
)

// newDriver builds a sync driver for files from the loaded config.
// The returned close function releases the cache.
func newDriver(cmd *cobra.Command, files []string, interactive bool) (*sync.Driver, func(), error) {
	t, err := openTracker(cmd.Context(), files)
	if err != nil {
		return nil, nil, err
	}

	dc := sync.Config{
		Files:       files,
		Tracker:     t,
		Filter:      cfg.StateFilter(),
		Options:     cfg.ReconcileOptions(),
		LocalTarget: cfg.LocalTarget,
		DryRun:      cfg.Sync.DryRun,
		Logger:      logger("sync"),
		Trace:       trace,
	}
	if interactive && cfg.Sync.Confirm {
		dc.Confirm = ui.Confirm
	}

	db := openCache(cmd.ErrOrStderr())
	closeFn := func() {}
	if db != nil {
		// Assigned only when non-nil so the interface stays nil otherwise
		dc.Recorder = db
		closeFn = func() { _ = db.Close() }
	}
	return sync.New(dc), closeFn, nil
}

// runSync performs one reconciliation of the files in args.
func runSync(cmd *cobra.Command, args []string) error {
	d, closeFn, err := newDriver(cmd, args, true)
	if err != nil {
		return err
	}
	defer closeFn()

	report, runErr := d.Run(cmd.Context())
	if report != nil && shouldPrintReport(report, runErr) {
		if err := printReport(cmd.OutOrStdout(), report); err != nil {
			return err
		}
	}
	return runErr
}

// shouldPrintReport is false for runs that stopped before deciding
// anything.
func shouldPrintReport(report *sync.Report, err error) bool {
	if err == nil {
		return true
	}
	return len(report.Results) > 0
}

func printReport(w io.Writer, report *sync.Report) error {
	if cfg.Format != config.FormatText {
		return ui.EncodeReport(w, report, cfg.Format)
	}
	return styles(w).RenderReport(w, report, ui.ReportOptions{Verbose: verbose})
}

// styles returns text styles for w, colored only on a terminal.
func styles(w io.Writer) *ui.Styles {
	f, ok := w.(*os.File)
	return ui.NewStyles(w, ok && ui.ColorEnabled(f))
}
