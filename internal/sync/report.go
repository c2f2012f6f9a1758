package sync

import (
	"time"

	"github.com/steveyegge/edit-ghi/internal/reconcile"
	"github.com/steveyegge/edit-ghi/internal/types"
)

// ItemResult is the outcome for one checklist item or, for create-local,
// one remote issue.
type ItemResult struct {
	Action  reconcile.Action `json:"action" yaml:"action"`
	Title   string           `json:"title" yaml:"title"`
	Source  string           `json:"source,omitempty" yaml:"source,omitempty"`
	Number  int              `json:"number,omitempty" yaml:"number,omitempty"`
	Match   string           `json:"match,omitempty" yaml:"match,omitempty"`
	Changes []types.Change   `json:"changes,omitempty" yaml:"changes,omitempty"`
	Summary string           `json:"summary,omitempty" yaml:"summary,omitempty"`
	Reason  string           `json:"reason,omitempty" yaml:"reason,omitempty"`
	Applied bool             `json:"applied" yaml:"applied"`
	Error   string           `json:"error,omitempty" yaml:"error,omitempty"`
}

// Failed reports whether applying the item failed.
func (r ItemResult) Failed() bool {
	return r.Error != ""
}

// Report summarizes one run.
type Report struct {
	RunID       string       `json:"run_id" yaml:"run_id"`
	Tracker     string       `json:"tracker" yaml:"tracker"`
	StartedAt   time.Time    `json:"started_at" yaml:"started_at"`
	FinishedAt  time.Time    `json:"finished_at" yaml:"finished_at"`
	Files       []string     `json:"files" yaml:"files"`
	DryRun      bool         `json:"dry_run,omitempty" yaml:"dry_run,omitempty"`
	Aborted     bool         `json:"aborted,omitempty" yaml:"aborted,omitempty"`
	RemoteCount int          `json:"remote_count" yaml:"remote_count"`
	Results     []ItemResult `json:"results" yaml:"results"`
	LocalWrites []string     `json:"local_writes,omitempty" yaml:"local_writes,omitempty"`
}

// Counts tallies results by action.
type Counts struct {
	NoOp         int `json:"noop" yaml:"noop"`
	CreateRemote int `json:"create_remote" yaml:"create_remote"`
	UpdateRemote int `json:"update_remote" yaml:"update_remote"`
	UpdateLocal  int `json:"update_local" yaml:"update_local"`
	CreateLocal  int `json:"create_local" yaml:"create_local"`
	Ignored      int `json:"ignored" yaml:"ignored"`
	Failed       int `json:"failed" yaml:"failed"`
}

// Total returns the number of results counted.
func (c Counts) Total() int {
	return c.NoOp + c.CreateRemote + c.UpdateRemote + c.UpdateLocal + c.CreateLocal + c.Ignored
}

// Counts tallies the report's results.
func (r *Report) Counts() Counts {
	var c Counts
	for _, res := range r.Results {
		switch res.Action {
		case reconcile.ActionNoOp:
			c.NoOp++
		case reconcile.ActionCreateRemote:
			c.CreateRemote++
		case reconcile.ActionUpdateRemote:
			c.UpdateRemote++
		case reconcile.ActionUpdateLocal:
			c.UpdateLocal++
		case reconcile.ActionCreateLocal:
			c.CreateLocal++
		case reconcile.ActionIgnored:
			c.Ignored++
		}
		if res.Failed() {
			c.Failed++
		}
	}
	return c
}

// Duration returns how long the run took.
func (r *Report) Duration() time.Duration {
	if r.FinishedAt.IsZero() {
		return 0
	}
	return r.FinishedAt.Sub(r.StartedAt)
}

func newItemResult(res reconcile.Result) ItemResult {
	ir := ItemResult{
		Action:  res.Action,
		Match:   string(res.Match),
		Changes: res.Changes,
		Summary: res.Summary,
		Reason:  res.Reason,
		Applied: res.Applied,
	}
	if res.Item != nil {
		ir.Title = res.Item.Title
		ir.Source = res.Item.Source.String()
	}
	if res.Issue != nil {
		ir.Number = res.Issue.Number
		if ir.Title == "" {
			ir.Title = res.Issue.Title
		}
	}
	return ir
}
