// Package sync drives one reconciliation run between checklist documents
// and a remote issue tracker.
//
// Overview
//
// A run loads every input file, parses all checklist items, fetches the
// remote issues once, decides an action per item and applies the actions:
//
//	files ──► checklist.ParseSource ──► []*types.ChecklistItem
//	                                           │
//	tracker.List ──► remote.Store ──► reconcile.Reconciler
//	                                           │
//	                      ┌────────────────────┼───────────────────┐
//	                      ▼                    ▼                   ▼
//	               tracker.Create/Edit   checklist.Rewrite     Report
//	                  (remote side)       (local files)    (ui, cache, dashboard)
//
// Loading and parsing are all-or-nothing: an unreadable file or a
// malformed item stops the run before any remote call. Applying is
// best-effort: a failed item is recorded in the report and the run
// continues with the next one. Nothing is rolled back.
//
// Usage
//
//	t, err := tracker.Open("gh", tracker.Options{Repo: "acme/web"})
//	if err != nil {
//	    return err
//	}
//	d := sync.New(sync.Config{
//	    Files:   []string{"TODO.md"},
//	    Tracker: t,
//	    Options: reconcile.Options{CreateRemote: true},
//	})
//	report, err := d.Run(ctx)
//
// Run returns the report even when it also returns ErrApplyFailed, so
// callers can show which items failed.
package sync
