package sync

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"slices"
	"time"

	"github.com/google/uuid"

	"github.com/steveyegge/edit-ghi/internal/checklist"
	"github.com/steveyegge/edit-ghi/internal/debug"
	"github.com/steveyegge/edit-ghi/internal/reconcile"
	"github.com/steveyegge/edit-ghi/internal/remote"
	"github.com/steveyegge/edit-ghi/internal/tracker"
	"github.com/steveyegge/edit-ghi/internal/types"
)

// ConfirmFunc is asked to approve the planned decisions before anything
// is applied. Returning false aborts the run.
type ConfirmFunc func(ctx context.Context, decisions []reconcile.Decision) (bool, error)

// Recorder persists the outcome of a run, together with the remote
// snapshot it was decided against.
type Recorder interface {
	RecordRun(ctx context.Context, report *Report, snapshot []types.RemoteIssue) error
}

// Config configures a Driver.
type Config struct {
	// Files are the checklist documents, in order
	Files []string

	// Tracker is the remote collaborator
	Tracker tracker.Tracker

	// Filter limits which remote issues are fetched (default: all)
	Filter tracker.StateFilter

	// Options selects the reconciliation policy
	Options reconcile.Options

	// LocalTarget receives create-local lines (default: first file)
	LocalTarget string

	// DryRun decides and reports without applying anything
	DryRun bool

	// Confirm, when set, must approve the plan before it is applied
	Confirm ConfirmFunc

	// Recorder, when set, stores the run and remote snapshot
	Recorder Recorder

	// Logger receives progress lines (default: stderr with [sync] prefix)
	Logger *log.Logger

	// Trace receives debug trace lines
	Trace *debug.Logger

	// Now returns the current time (default: time.Now)
	Now func() time.Time
}

// Driver runs reconciliations for a fixed configuration. Each Run builds
// fresh parse results and a fresh remote store.
type Driver struct {
	cfg    Config
	logger *log.Logger
	now    func() time.Time
}

// New creates a driver.
//
// If cfg.Logger is nil, a default logger writing to stderr is used.
func New(cfg Config) *Driver {
	logger := cfg.Logger
	if logger == nil {
		logger = log.New(os.Stderr, "[sync] ", log.LstdFlags)
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	return &Driver{cfg: cfg, logger: logger, now: now}
}

// Files returns the configured input files.
func (d *Driver) Files() []string {
	return slices.Clone(d.cfg.Files)
}

// localFile is an input document held in memory until rewritten.
type localFile struct {
	path    string
	text    string
	edits   []checklist.Edit
	appends []string
}

func (f *localFile) dirty() bool {
	return len(f.edits) > 0 || len(f.appends) > 0
}

// Run performs one reconciliation.
func (d *Driver) Run(ctx context.Context) (*Report, error) {
	report := &Report{
		RunID:     uuid.NewString(),
		StartedAt: d.now(),
		Files:     slices.Clone(d.cfg.Files),
		DryRun:    d.cfg.DryRun,
	}
	if d.cfg.Tracker != nil {
		report.Tracker = d.cfg.Tracker.Name().String()
	}
	defer func() { report.FinishedAt = d.now() }()

	if len(d.cfg.Files) == 0 {
		return report, ErrNoFiles
	}
	if d.cfg.Tracker == nil {
		return report, errors.New("no tracker configured")
	}

	// Read every file before parsing any of them.
	files, order, err := d.load()
	if err != nil {
		return report, err
	}

	var items []*types.ChecklistItem
	for _, path := range order {
		docs, err := checklist.ParseSource(path, files[path].text)
		if err != nil {
			return report, err
		}
		items = append(items, checklist.Items(docs)...)
	}
	d.cfg.Trace.Trace("parse", "files", len(order), "items", len(items))

	version, err := d.cfg.Tracker.Version(ctx)
	if err != nil {
		if tracker.IsFatal(err) {
			return report, err
		}
		d.logger.Printf("Could not determine %s version: %v", report.Tracker, err)
	}
	d.cfg.Trace.Trace("version", "tracker", report.Tracker, "version", version)

	store := remote.NewStore(d.cfg.Tracker, d.cfg.Filter, d.cfg.Trace)
	snapshot, err := store.Issues(ctx)
	if err != nil {
		return report, err
	}
	report.RemoteCount = len(snapshot)

	rec := reconcile.New(store, d.cfg.Options, d.cfg.Trace)
	decisions, err := rec.DecideAll(ctx, items)
	if err != nil {
		return report, err
	}
	if d.cfg.Options.CreateLocal {
		unclaimed, err := rec.Unclaimed(ctx, reconcile.Claimed(decisions))
		if err != nil {
			return report, err
		}
		for _, is := range unclaimed {
			decisions = append(decisions, reconcile.Decision{Action: reconcile.ActionCreateLocal, Remote: &is})
		}
	}

	if d.cfg.DryRun {
		for _, dec := range decisions {
			report.Results = append(report.Results, newItemResult(reconcile.Result{Decision: dec, Issue: dec.Remote, Summary: reconcile.Summarize(dec.Changes)}))
		}
		d.logger.Printf("Dry run: %d decisions, nothing applied", len(decisions))
		return report, nil
	}

	if d.cfg.Confirm != nil && needsConfirmation(decisions) {
		ok, err := d.cfg.Confirm(ctx, decisions)
		if err != nil {
			return report, fmt.Errorf("confirmation failed: %w", err)
		}
		if !ok {
			report.Aborted = true
			return report, ErrAborted
		}
	}

	target := d.cfg.LocalTarget
	if target == "" {
		target = d.cfg.Files[0]
	}

	failed := 0
	for _, dec := range decisions {
		res, err := rec.Apply(ctx, d.cfg.Tracker, dec)
		ir := newItemResult(res)
		if err != nil {
			ir.Error = err.Error()
			failed++
			d.logger.Printf("Failed %s: %v", dec.Action, err)
			report.Results = append(report.Results, ir)
			continue
		}

		switch dec.Action {
		case reconcile.ActionUpdateLocal:
			f := files[dec.Item.Source.File]
			f.edits = append(f.edits, checklist.Edit{
				Line: dec.Item.Source.Line,
				Text: checklist.FormatRemote(*dec.Remote),
			})
			ir.Applied = true
		case reconcile.ActionCreateLocal:
			f, err := d.file(files, &order, target)
			if err != nil {
				ir.Error = err.Error()
				failed++
				break
			}
			f.appends = append(f.appends, checklist.FormatRemote(*dec.Remote))
			ir.Applied = true
		}
		report.Results = append(report.Results, ir)
	}

	for _, path := range order {
		f := files[path]
		if !f.dirty() {
			continue
		}
		out := checklist.Rewrite(f.text, f.edits, f.appends)
		if err := checklist.WriteFileAtomic(path, []byte(out)); err != nil {
			failed++
			d.logger.Printf("Failed to write %s: %v", path, err)
			continue
		}
		d.cfg.Trace.Trace("write", "file", path, "edits", len(f.edits), "appends", len(f.appends))
		report.LocalWrites = append(report.LocalWrites, path)
	}

	counts := report.Counts()
	d.logger.Printf("Run %s complete: created=%d updated=%d local=%d noop=%d ignored=%d failed=%d",
		report.RunID, counts.CreateRemote, counts.UpdateRemote, counts.UpdateLocal+counts.CreateLocal,
		counts.NoOp, counts.Ignored, failed)

	if d.cfg.Recorder != nil {
		report.FinishedAt = d.now()
		if err := d.cfg.Recorder.RecordRun(ctx, report, snapshot); err != nil {
			d.logger.Printf("Failed to record run: %v", err)
		}
	}

	if failed > 0 {
		return report, fmt.Errorf("%w: %d of %d", ErrApplyFailed, failed, len(decisions))
	}
	return report, nil
}

// load reads every configured file. Files listed twice are read once.
func (d *Driver) load() (map[string]*localFile, []string, error) {
	files := make(map[string]*localFile, len(d.cfg.Files))
	var order []string
	for _, path := range d.cfg.Files {
		if _, ok := files[path]; ok {
			continue
		}
		// #nosec G304 - paths come from the command line
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, nil, fmt.Errorf("%w: %v", ErrInput, err)
		}
		files[path] = &localFile{path: path, text: string(data)}
		order = append(order, path)
	}
	return files, order, nil
}

// file returns the in-memory file for path, reading it on first use.
// A missing file starts empty and is created on write.
func (d *Driver) file(files map[string]*localFile, order *[]string, path string) (*localFile, error) {
	if f, ok := files[path]; ok {
		return f, nil
	}
	// #nosec G304 - path comes from configuration
	data, err := os.ReadFile(path)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%w: %v", ErrInput, err)
	}
	f := &localFile{path: path, text: string(data)}
	files[path] = f
	*order = append(*order, path)
	return f, nil
}

func needsConfirmation(decisions []reconcile.Decision) bool {
	for _, d := range decisions {
		if d.Action.MutatesRemote() || d.Action.MutatesLocal() {
			return true
		}
	}
	return false
}
