// Package trackertest provides scripted command runners and an in-memory
// tracker for tests.
package trackertest

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"

	"github.com/steveyegge/edit-ghi/internal/tracker"
	"github.com/steveyegge/edit-ghi/internal/types"
)

// Response is a canned command result.
type Response struct {
	Out string
	Err error
}

// Runner is a scripted tracker.Runner. Responses are matched by the
// longest registered prefix of "name arg1 arg2 ...". When several
// responses are queued for a prefix they are consumed in order and the
// last one repeats.
type Runner struct {
	mu        sync.Mutex
	responses map[string][]Response
	calls     []string
}

// NewRunner creates an empty scripted runner.
func NewRunner() *Runner {
	return &Runner{responses: make(map[string][]Response)}
}

// On queues output for commands starting with prefix.
func (r *Runner) On(prefix, out string) *Runner {
	return r.respond(prefix, Response{Out: out})
}

// OnError queues a failure for commands starting with prefix.
func (r *Runner) OnError(prefix string, err error) *Runner {
	return r.respond(prefix, Response{Err: err})
}

func (r *Runner) respond(prefix string, resp Response) *Runner {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.responses[prefix] = append(r.responses[prefix], resp)
	return r
}

// Run implements tracker.Runner.
func (r *Runner) Run(ctx context.Context, dir, name string, args ...string) ([]byte, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	cmdline := strings.Join(append([]string{name}, args...), " ")
	r.calls = append(r.calls, cmdline)

	best := ""
	found := false
	for prefix := range r.responses {
		if strings.HasPrefix(cmdline, prefix) && (!found || len(prefix) > len(best)) {
			best, found = prefix, true
		}
	}
	if !found {
		return nil, fmt.Errorf("%w: unscripted command %q", tracker.ErrCommandFailed, cmdline)
	}

	queue := r.responses[best]
	resp := queue[0]
	if len(queue) > 1 {
		r.responses[best] = queue[1:]
	}
	if resp.Err != nil {
		return nil, resp.Err
	}
	return []byte(resp.Out), nil
}

// Calls returns every command line run so far.
func (r *Runner) Calls() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return slices.Clone(r.calls)
}

// Fake is an in-memory tracker.Tracker that records mutations.
type Fake struct {
	mu      sync.Mutex
	issues  []types.RemoteIssue
	next    int
	creates []tracker.CreateRequest
	edits   []tracker.EditRequest
	lists   int

	// ListErr, CreateErr and EditErr force failures when set.
	ListErr   error
	CreateErr error
	EditErr   error
}

// NewFake creates a fake tracker holding issues. New issues are numbered
// after the highest existing number.
func NewFake(issues ...types.RemoteIssue) *Fake {
	f := &Fake{}
	for _, is := range issues {
		f.issues = append(f.issues, clone(is))
		if is.Number > f.next {
			f.next = is.Number
		}
	}
	return f
}

func clone(is types.RemoteIssue) types.RemoteIssue {
	is.Labels = slices.Clone(is.Labels)
	return is
}

func (f *Fake) Name() tracker.Type { return "fake" }

func (f *Fake) Version(ctx context.Context) (string, error) { return "fake", nil }

func (f *Fake) List(ctx context.Context, filter tracker.StateFilter) ([]types.RemoteIssue, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lists++
	if f.ListErr != nil {
		return nil, f.ListErr
	}
	var out []types.RemoteIssue
	for _, is := range f.issues {
		if filter.Includes(is.State) {
			out = append(out, clone(is))
		}
	}
	return out, nil
}

func (f *Fake) Create(ctx context.Context, req tracker.CreateRequest) (types.RemoteIssue, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.creates = append(f.creates, req)
	if f.CreateErr != nil {
		return types.RemoteIssue{}, f.CreateErr
	}
	f.next++
	state := req.State
	if state == "" {
		state = types.StateOpen
	}
	is := types.RemoteIssue{Number: f.next, Title: req.Title, State: state, Labels: slices.Clone(req.Labels)}
	f.issues = append(f.issues, is)
	return clone(is), nil
}

func (f *Fake) Edit(ctx context.Context, req tracker.EditRequest) (types.RemoteIssue, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.edits = append(f.edits, req)
	if f.EditErr != nil {
		return types.RemoteIssue{}, f.EditErr
	}
	for i, is := range f.issues {
		if is.Number == req.Number {
			f.issues[i] = req.Apply(is)
			return clone(f.issues[i]), nil
		}
	}
	return types.RemoteIssue{}, fmt.Errorf("%w: #%d", tracker.ErrNotFound, req.Number)
}

// Creates returns the recorded create requests.
func (f *Fake) Creates() []tracker.CreateRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return slices.Clone(f.creates)
}

// Edits returns the recorded edit requests.
func (f *Fake) Edits() []tracker.EditRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return slices.Clone(f.edits)
}

// ListCalls returns how many times List was called.
func (f *Fake) ListCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.lists
}

// Issues returns a snapshot of the fake's issues.
func (f *Fake) Issues() []types.RemoteIssue {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]types.RemoteIssue, len(f.issues))
	for i, is := range f.issues {
		out[i] = clone(is)
	}
	return out
}
