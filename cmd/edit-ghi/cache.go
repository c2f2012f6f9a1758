package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/steveyegge/edit-ghi/internal/cache"
	"github.com/steveyegge/edit-ghi/internal/config"
	"github.com/steveyegge/edit-ghi/internal/sync"
	"github.com/steveyegge/edit-ghi/internal/ui"
)

var statusCmd = &cobra.Command{
	Use:     "status",
	GroupID: "cache",
	Short:   "Show the run history cache and the last run",
	Args:    cobra.NoArgs,
	RunE:    runStatus,
}

var historyCmd = &cobra.Command{
	Use:     "history [run-id]",
	GroupID: "cache",
	Short:   "List recorded runs, or the item results of one run",
	Long: `List recorded runs, newest first. With a run id (or a unique prefix
of one as printed by the list), print the item results of that run.

--keep N deletes all but the N newest runs before listing.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runHistory,
}

var (
	historyLimit int
	historyKeep  int
)

func init() {
	historyCmd.Flags().IntVarP(&historyLimit, "limit", "n", 20, "number of runs to list (0: all)")
	historyCmd.Flags().IntVar(&historyKeep, "keep", 0, "prune all but this many newest runs")
	rootCmd.AddCommand(statusCmd, historyCmd)
}

// openExistingCache opens the cache for reading commands. It does not
// create a cache that was never written.
func openExistingCache() (*cache.DB, error) {
	if _, err := os.Stat(cfg.Cache.Path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("no run history at %s (run a sync first)", cfg.Cache.Path)
		}
		return nil, err
	}
	return cache.Open(cfg.Cache.Path)
}

func runStatus(cmd *cobra.Command, _ []string) error {
	db, err := openExistingCache()
	if err != nil {
		return err
	}
	defer db.Close()

	ctx := cmd.Context()
	stats, err := db.Stats(ctx)
	if err != nil {
		return err
	}
	last, err := db.LastRun(ctx)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if cfg.Format != config.FormatText {
		return ui.Encode(out, struct {
			cache.Stats `yaml:",inline"`
			LastRun     *cache.Run `json:"last_run" yaml:"last_run"`
		}{stats, last}, cfg.Format)
	}
	return styles(out).RenderStatus(out, stats, last)
}

func runHistory(cmd *cobra.Command, args []string) error {
	db, err := openExistingCache()
	if err != nil {
		return err
	}
	defer db.Close()

	ctx := cmd.Context()
	if historyKeep > 0 {
		n, err := db.Prune(ctx, historyKeep)
		if err != nil {
			return err
		}
		if n > 0 {
			fmt.Fprintf(cmd.ErrOrStderr(), "Pruned %d run(s)\n", n)
		}
	}

	limit := historyLimit
	if len(args) == 1 {
		limit = 0
	}
	runs, err := db.Runs(ctx, limit)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if len(args) == 0 {
		if cfg.Format != config.FormatText {
			return ui.Encode(out, runs, cfg.Format)
		}
		return styles(out).RenderHistory(out, runs)
	}

	run, err := findRun(runs, args[0])
	if err != nil {
		return err
	}
	results, err := db.Results(ctx, run.ID)
	if err != nil {
		return err
	}
	report := &sync.Report{
		RunID:       run.ID,
		Tracker:     run.Tracker,
		StartedAt:   run.StartedAt,
		FinishedAt:  run.FinishedAt,
		Files:       run.Files,
		DryRun:      run.DryRun,
		RemoteCount: run.RemoteCount,
		Results:     results,
	}
	return printReport(out, report)
}

// findRun resolves an id or unique id prefix.
func findRun(runs []cache.Run, id string) (*cache.Run, error) {
	var match *cache.Run
	for i := range runs {
		r := &runs[i]
		if r.ID == id {
			return r, nil
		}
		if len(id) >= 4 && len(r.ID) > len(id) && r.ID[:len(id)] == id {
			if match != nil {
				return nil, fmt.Errorf("run id %q is ambiguous", id)
			}
			match = r
		}
	}
	if match == nil {
		return nil, fmt.Errorf("%w: %s", cache.ErrRunNotFound, id)
	}
	return match, nil
}
