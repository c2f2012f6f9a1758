// Package tracker provides a unified interface to the remote issue tracker.
//
// The remote side of a sync run is always reached through a Tracker, which
// lists, creates and edits issues. Implementations wrap an issue tracker
// CLI and register themselves with the package registry on import:
//
//	import _ "github.com/steveyegge/edit-ghi/internal/tracker/gh"    // GitHub CLI
//	import _ "github.com/steveyegge/edit-ghi/internal/tracker/ghi"   // ghi
//	import _ "github.com/steveyegge/edit-ghi/internal/tracker/jsonl" // local file
//
//	t, err := tracker.Open("auto", tracker.Options{Repo: "acme/web"})
//	if err != nil {
//	    return err
//	}
//	issues, err := t.List(ctx, tracker.StateAll)
//
// Every call blocks until the underlying command exits. No timeout is
// applied beyond the caller's context.
package tracker

import (
	"context"
	"fmt"

	"github.com/steveyegge/edit-ghi/internal/debug"
	"github.com/steveyegge/edit-ghi/internal/types"
)

// Type names a tracker backend.
type Type string

const (
	// TypeAuto selects the first backend whose binary is installed.
	TypeAuto Type = "auto"

	// TypeGH drives the GitHub CLI (`gh issue ...`).
	TypeGH Type = "gh"

	// TypeGHI drives the ghi CLI (`ghi list|open|edit|close`).
	TypeGHI Type = "ghi"

	// TypeJSONL keeps issues in a local JSON-lines file.
	TypeJSONL Type = "jsonl"
)

// String returns the string representation of the tracker type.
func (t Type) String() string {
	return string(t)
}

// StateFilter selects which remote issues List returns.
type StateFilter string

const (
	StateAll    StateFilter = "all"
	StateOpen   StateFilter = "open"
	StateClosed StateFilter = "closed"
)

// ParseStateFilter validates a state filter name. Empty means StateAll.
func ParseStateFilter(s string) (StateFilter, error) {
	switch StateFilter(s) {
	case "", StateAll:
		return StateAll, nil
	case StateOpen, StateClosed:
		return StateFilter(s), nil
	}
	return "", fmt.Errorf("invalid state filter %q (want all, open or closed)", s)
}

// Includes reports whether an issue in state s passes the filter.
func (f StateFilter) Includes(s types.State) bool {
	switch f {
	case StateOpen:
		return s == types.StateOpen
	case StateClosed:
		return s == types.StateClosed
	default:
		return true
	}
}

// Tracker is the remote issue collaborator.
type Tracker interface {
	// Name returns the backend type
	Name() Type

	// Version returns the backend binary version. Implementations that
	// require a minimum version return ErrUnsupportedVersion when the
	// installed binary is too old.
	Version(ctx context.Context) (string, error)

	// List returns the remote issues passing filter, in the order the
	// tracker reports them.
	List(ctx context.Context, filter StateFilter) ([]types.RemoteIssue, error)

	// Create creates a new remote issue and returns it.
	Create(ctx context.Context, req CreateRequest) (types.RemoteIssue, error)

	// Edit updates an existing remote issue and returns its new state.
	Edit(ctx context.Context, req EditRequest) (types.RemoteIssue, error)
}

// CreateRequest describes a new remote issue.
type CreateRequest struct {
	Title string

	// State of the new issue. Closed issues are created and then closed.
	// Empty means open.
	State types.State

	Labels []string
}

// EditRequest describes changes to a remote issue. Zero fields are left
// untouched.
type EditRequest struct {
	Number int

	// Title replaces the issue title when non-empty
	Title string

	// State opens or closes the issue when non-empty
	State types.State

	// Labels replaces the label set when non-nil
	Labels []string

	// Current is the issue as last listed. Backends use it to compute
	// label deltas and to skip no-op state changes. Optional.
	Current *types.RemoteIssue
}

// Apply returns issue with the request's changes applied.
func (r EditRequest) Apply(issue types.RemoteIssue) types.RemoteIssue {
	issue.Number = r.Number
	if r.Title != "" {
		issue.Title = r.Title
	}
	if r.State != "" {
		issue.State = r.State
	}
	if r.Labels != nil {
		issue.Labels = append([]string(nil), r.Labels...)
	}
	return issue
}

// base returns the issue the edit starts from.
func (r EditRequest) base() types.RemoteIssue {
	if r.Current != nil {
		return *r.Current
	}
	return types.RemoteIssue{Number: r.Number}
}

// Result returns the issue after the edit, starting from Current when set.
func (r EditRequest) Result() types.RemoteIssue {
	return r.Apply(r.base())
}

// Options configures a tracker backend.
type Options struct {
	// Repo is the owner/name repository, for backends that need one.
	// Empty lets the backend infer it from the working directory.
	Repo string

	// Dir is the working directory for commands
	Dir string

	// Binary overrides the executable name
	Binary string

	// Path is the issue file for the jsonl backend
	Path string

	// Limit caps the number of issues listed (0 = backend default)
	Limit int

	// Runner executes commands (default: ExecContext)
	Runner Runner

	// Trace receives debug trace lines
	Trace *debug.Logger
}

// runner returns the configured runner or the default one.
func (o Options) runner() Runner {
	if o.Runner != nil {
		return o.Runner
	}
	return ExecContext
}

// Run executes a backend command through the configured runner, tracing
// the invocation.
func (o Options) Run(ctx context.Context, name string, args ...string) ([]byte, error) {
	o.Trace.Trace("exec", "cmd", name, "args", fmt.Sprint(args))
	out, err := o.runner()(ctx, o.Dir, name, args...)
	if err != nil {
		o.Trace.Trace("exec-failed", "cmd", name, "error", err)
		return nil, err
	}
	return out, nil
}
