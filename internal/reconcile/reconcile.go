// Package reconcile matches checklist items to remote issues and decides,
// per item, which side to change.
//
// Matching uses the item's explicit [#N] number when present and falls
// back to title containment otherwise. Cross references (#N, owner/repo#N)
// never drive matching. The decision for an item is a fixed policy chosen
// by Options:
//
//	unmatched               -> CreateRemote (if enabled) or Ignored
//	matched, consistent     -> NoOp
//	matched, inconsistent   -> UpdateRemote, UpdateLocal or Ignored
//
// Title containment is a known source of false positives for short
// titles: "Fix" matches any remote issue whose title contains "Fix".
package reconcile

import (
	"context"
	"fmt"

	"github.com/steveyegge/edit-ghi/internal/debug"
	"github.com/steveyegge/edit-ghi/internal/types"
)

// Action is the outcome chosen for one item.
type Action string

const (
	ActionNoOp         Action = "noop"
	ActionCreateRemote Action = "create-remote"
	ActionUpdateRemote Action = "update-remote"
	ActionUpdateLocal  Action = "update-local"
	ActionCreateLocal  Action = "create-local"
	ActionIgnored      Action = "ignored"
)

// String returns the action name.
func (a Action) String() string {
	return string(a)
}

// MutatesRemote reports whether applying the action calls the tracker.
func (a Action) MutatesRemote() bool {
	return a == ActionCreateRemote || a == ActionUpdateRemote
}

// MutatesLocal reports whether applying the action rewrites a document.
func (a Action) MutatesLocal() bool {
	return a == ActionUpdateLocal || a == ActionCreateLocal
}

// MatchKind records how an item was matched.
type MatchKind string

const (
	MatchNone   MatchKind = ""
	MatchNumber MatchKind = "number"
	MatchTitle  MatchKind = "title"
)

// Options selects the reconciliation policy.
type Options struct {
	// CreateRemote creates remote issues for unmatched items (--add-to-gh)
	CreateRemote bool

	// UpdateRemote overwrites remote issues from local items (--update-gh)
	UpdateRemote bool

	// CreateLocal appends unmatched remote issues to a document (--add-to-file)
	CreateLocal bool

	// UpdateLocal rewrites local items from remote issues (--update-local)
	UpdateLocal bool
}

// Finder looks up remote issues. *remote.Store satisfies it.
type Finder interface {
	Issues(ctx context.Context) ([]types.RemoteIssue, error)
	FindByNumber(ctx context.Context, number int) (types.RemoteIssue, bool, error)
	FindByTitleSubstring(ctx context.Context, title string) (types.RemoteIssue, bool, error)
}

// Decision is the planned action for one item.
type Decision struct {
	Item    *types.ChecklistItem
	Action  Action
	Match   MatchKind
	Remote  *types.RemoteIssue
	Changes []types.Change
	Reason  string
}

// Reconciler decides actions for checklist items.
type Reconciler struct {
	finder Finder
	opts   Options
	trace  *debug.Logger
}

// New creates a reconciler over a remote issue finder.
func New(finder Finder, opts Options, trace *debug.Logger) *Reconciler {
	return &Reconciler{finder: finder, opts: opts, trace: trace}
}

// Options returns the reconciliation policy.
func (r *Reconciler) Options() Options {
	return r.opts
}

// Match finds the remote issue for item. An item with an explicit number
// is looked up by that number only.
func (r *Reconciler) Match(ctx context.Context, item *types.ChecklistItem) (types.RemoteIssue, MatchKind, bool, error) {
	if item.HasExplicitNumber() {
		issue, ok, err := r.finder.FindByNumber(ctx, item.ExplicitNumber)
		if err != nil {
			return types.RemoteIssue{}, MatchNone, false, err
		}
		r.trace.Trace("match", "title", item.Title, "by", MatchNumber, "number", item.ExplicitNumber, "found", ok)
		if !ok {
			return types.RemoteIssue{}, MatchNone, false, nil
		}
		return issue, MatchNumber, true, nil
	}

	issue, ok, err := r.finder.FindByTitleSubstring(ctx, item.Title)
	if err != nil {
		return types.RemoteIssue{}, MatchNone, false, err
	}
	if !ok {
		r.trace.Trace("match", "title", item.Title, "by", MatchTitle, "found", false)
		return types.RemoteIssue{}, MatchNone, false, nil
	}
	r.trace.Trace("match", "title", item.Title, "by", MatchTitle, "number", issue.Number, "found", true)
	return issue, MatchTitle, true, nil
}

// Compare returns the changes that would make remote agree with item.
// Labels only count when the item declares some.
func Compare(item *types.ChecklistItem, remote *types.RemoteIssue) []types.Change {
	remoteRec := remote.Record()
	localRec := item.Record()
	if len(item.Labels) == 0 {
		localRec.Labels = remoteRec.Labels
	}
	return remoteRec.Diff(localRec)
}

// Decide plans the action for item.
func (r *Reconciler) Decide(ctx context.Context, item *types.ChecklistItem) (Decision, error) {
	d := Decision{Item: item}

	issue, kind, ok, err := r.Match(ctx, item)
	if err != nil {
		return d, err
	}

	if !ok {
		switch {
		case item.HasExplicitNumber():
			d.Action = ActionIgnored
			d.Reason = fmt.Sprintf("issue #%d not found remotely", item.ExplicitNumber)
		case r.opts.CreateRemote:
			d.Action = ActionCreateRemote
		default:
			d.Action = ActionIgnored
			d.Reason = "no matching remote issue"
		}
		r.trace.Trace("decide", "title", item.Title, "action", d.Action)
		return d, nil
	}

	d.Match = kind
	d.Remote = &issue
	d.Changes = Compare(item, &issue)
	switch {
	case len(d.Changes) == 0:
		d.Action = ActionNoOp
	case r.opts.UpdateRemote:
		d.Action = ActionUpdateRemote
	case r.opts.UpdateLocal:
		d.Action = ActionUpdateLocal
	default:
		d.Action = ActionIgnored
		d.Reason = fmt.Sprintf("out of sync with #%d", issue.Number)
	}
	r.trace.Trace("decide", "title", item.Title, "number", issue.Number, "action", d.Action, "changes", len(d.Changes))
	return d, nil
}

// DecideAll plans actions for items in order. It stops at the first
// lookup failure.
func (r *Reconciler) DecideAll(ctx context.Context, items []*types.ChecklistItem) ([]Decision, error) {
	decisions := make([]Decision, 0, len(items))
	for _, item := range items {
		d, err := r.Decide(ctx, item)
		if err != nil {
			return decisions, err
		}
		decisions = append(decisions, d)
	}
	return decisions, nil
}

// Claimed returns the remote issue numbers matched by decisions.
func Claimed(decisions []Decision) map[int]bool {
	claimed := make(map[int]bool)
	for _, d := range decisions {
		if d.Remote != nil {
			claimed[d.Remote.Number] = true
		}
		if d.Item != nil && d.Item.HasExplicitNumber() {
			claimed[d.Item.ExplicitNumber] = true
		}
	}
	return claimed
}

// Unclaimed returns the remote issues, in tracker order, that no local
// item matched.
func (r *Reconciler) Unclaimed(ctx context.Context, claimed map[int]bool) ([]types.RemoteIssue, error) {
	issues, err := r.finder.Issues(ctx)
	if err != nil {
		return nil, err
	}
	var out []types.RemoteIssue
	for _, is := range issues {
		if !claimed[is.Number] {
			out = append(out, is)
		}
	}
	return out, nil
}
