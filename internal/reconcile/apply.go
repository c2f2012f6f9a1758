package reconcile

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/sergi/go-diff/diffmatchpatch"

	"github.com/steveyegge/edit-ghi/internal/tracker"
	"github.com/steveyegge/edit-ghi/internal/types"
)

// Mutator creates and edits remote issues. tracker.Tracker satisfies it.
type Mutator interface {
	Create(ctx context.Context, req tracker.CreateRequest) (types.RemoteIssue, error)
	Edit(ctx context.Context, req tracker.EditRequest) (types.RemoteIssue, error)
}

// Result is the outcome of applying one decision.
type Result struct {
	Decision

	// Issue is the remote issue after the action: the created or edited
	// issue, or the matched one for actions that do not touch the remote.
	Issue *types.RemoteIssue

	// Summary describes what changed, e.g. "state: open -> closed"
	Summary string

	// Applied is true when a remote mutation was performed
	Applied bool
}

// Apply performs the remote side of a decision. NoOp, Ignored and the
// local actions make no tracker calls.
func (r *Reconciler) Apply(ctx context.Context, m Mutator, d Decision) (Result, error) {
	res := Result{Decision: d, Issue: d.Remote, Summary: Summarize(d.Changes)}

	switch d.Action {
	case ActionCreateRemote:
		req := CreateRequest(d.Item)
		issue, err := m.Create(ctx, req)
		if err != nil {
			r.trace.Trace("create-failed", "title", req.Title, "error", err)
			return res, fmt.Errorf("create %q: %w", req.Title, err)
		}
		r.trace.Trace("create", "title", issue.Title, "number", issue.Number, "state", issue.State)
		res.Issue = &issue
		res.Applied = true
		res.Summary = fmt.Sprintf("created #%d", issue.Number)

	case ActionUpdateRemote:
		req := EditRequest(d.Item, d.Remote)
		issue, err := m.Edit(ctx, req)
		if err != nil {
			r.trace.Trace("edit-failed", "number", req.Number, "error", err)
			return res, fmt.Errorf("edit #%d: %w", req.Number, err)
		}
		r.trace.Trace("edit", "number", issue.Number, "summary", res.Summary)
		res.Issue = &issue
		res.Applied = true
	}
	return res, nil
}

// CreateRequest builds the tracker request for a new remote issue.
func CreateRequest(item *types.ChecklistItem) tracker.CreateRequest {
	return tracker.CreateRequest{
		Title:  item.Title,
		State:  item.State,
		Labels: slices.Clone(item.Labels),
	}
}

// EditRequest builds the tracker request that overwrites remote with the
// item's title and state, and its labels when it declares any.
func EditRequest(item *types.ChecklistItem, remote *types.RemoteIssue) tracker.EditRequest {
	req := tracker.EditRequest{
		Number:  remote.Number,
		Title:   item.Title,
		State:   item.State,
		Current: remote,
	}
	if len(item.Labels) > 0 {
		req.Labels = slices.Clone(item.Labels)
	}
	return req
}

// Summarize renders changes as "field: from -> to" parts joined by "; ".
// Title changes are rendered as an inline diff.
func Summarize(changes []types.Change) string {
	parts := make([]string, 0, len(changes))
	for _, c := range changes {
		switch c.Field {
		case types.FieldTitle:
			parts = append(parts, "title: "+TitleDiff(c.From, c.To))
		default:
			parts = append(parts, fmt.Sprintf("%s: %s -> %s", c.Field, orNone(c.From), orNone(c.To)))
		}
	}
	return strings.Join(parts, "; ")
}

func orNone(s string) string {
	if s == "" {
		return "(none)"
	}
	return s
}

// TitleDiff renders an inline diff of two titles, marking
// deletions as [-text-] and insertions as {+text+}.
func TitleDiff(from, to string) string {
	dmp := diffmatchpatch.New()
	diffs := dmp.DiffMain(from, to, false)
	diffs = dmp.DiffCleanupSemantic(diffs)

	var b strings.Builder
	for _, d := range diffs {
		switch d.Type {
		case diffmatchpatch.DiffDelete:
			b.WriteString("[-" + d.Text + "-]")
		case diffmatchpatch.DiffInsert:
			b.WriteString("{+" + d.Text + "+}")
		default:
			b.WriteString(d.Text)
		}
	}
	return b.String()
}
