// Package ghi implements the tracker interface on top of the ghi CLI.
//
// ghi has no machine-readable list output, so List expects rows of the form
//
//	number,state,"tag1,tag2",title
//
// and lists open and closed issues with separate commands.
package ghi

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"regexp"
	"slices"
	"strconv"
	"strings"

	"github.com/steveyegge/edit-ghi/internal/tracker"
	"github.com/steveyegge/edit-ghi/internal/types"
)

func init() {
	tracker.Register(tracker.TypeGHI, "ghi", New)
}

var createdPattern = regexp.MustCompile(`#([0-9]+)`)

// Tracker drives ghi commands.
type Tracker struct {
	opts   tracker.Options
	binary string
}

// Ensure Tracker implements tracker.Tracker
var _ tracker.Tracker = (*Tracker)(nil)

// New creates a ghi backend.
func New(opts tracker.Options) (tracker.Tracker, error) {
	binary := opts.Binary
	if binary == "" {
		binary = "ghi"
	}
	return &Tracker{opts: opts, binary: binary}, nil
}

// Name returns tracker.TypeGHI.
func (g *Tracker) Name() tracker.Type {
	return tracker.TypeGHI
}

// Version returns the first line of `ghi --version`.
func (g *Tracker) Version(ctx context.Context) (string, error) {
	out, err := g.run(ctx, "--version")
	if err != nil {
		return "", err
	}
	v := strings.TrimPrefix(tracker.FirstLine(out), "ghi version ")
	if v == "" {
		return "", fmt.Errorf("%w: empty ghi --version output", tracker.ErrInvalidOutput)
	}
	return v, nil
}

// List runs `ghi list --state open` and `ghi list --state closed` as the
// filter requires and concatenates the results, open issues first.
func (g *Tracker) List(ctx context.Context, filter tracker.StateFilter) ([]types.RemoteIssue, error) {
	var states []types.State
	switch filter {
	case tracker.StateOpen:
		states = []types.State{types.StateOpen}
	case tracker.StateClosed:
		states = []types.State{types.StateClosed}
	default:
		states = []types.State{types.StateOpen, types.StateClosed}
	}

	var issues []types.RemoteIssue
	for _, s := range states {
		out, err := g.run(ctx, g.withRepo([]string{"list", "--state", string(s)})...)
		if err != nil {
			return nil, err
		}
		rows, err := ParseRows(out, s)
		if err != nil {
			return nil, err
		}
		issues = append(issues, rows...)
	}
	return issues, nil
}

// ParseRows parses list rows. Rows whose first column is empty are
// skipped. A row without a state column value takes fallback.
func ParseRows(out []byte, fallback types.State) ([]types.RemoteIssue, error) {
	r := csv.NewReader(strings.NewReader(string(out)))
	r.FieldsPerRecord = -1
	r.LazyQuotes = true

	var issues []types.RemoteIssue
	for {
		rec, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: ghi list: %v", tracker.ErrInvalidOutput, err)
		}
		if len(rec) == 0 || strings.TrimSpace(rec[0]) == "" {
			continue
		}
		if len(rec) < 4 {
			return nil, fmt.Errorf("%w: ghi list row %q has %d columns, want 4", tracker.ErrInvalidOutput, strings.Join(rec, ","), len(rec))
		}

		number, err := strconv.Atoi(strings.TrimPrefix(strings.TrimSpace(rec[0]), "#"))
		if err != nil {
			return nil, fmt.Errorf("%w: ghi list row %q: bad issue number", tracker.ErrInvalidOutput, strings.Join(rec, ","))
		}
		state := fallback
		if s := strings.TrimSpace(rec[1]); s != "" {
			if state, err = types.ParseState(s); err != nil {
				return nil, fmt.Errorf("%w: issue #%d: %v", tracker.ErrInvalidOutput, number, err)
			}
		}

		issue := types.RemoteIssue{
			Number: number,
			State:  state,
			Labels: splitTags(rec[2]),
			// Titles may contain commas of their own.
			Title: strings.TrimSpace(strings.Join(rec[3:], ",")),
		}
		if err := issue.Validate(); err != nil {
			return nil, fmt.Errorf("%w: %v", tracker.ErrInvalidOutput, err)
		}
		issues = append(issues, issue)
	}
	return issues, nil
}

func splitTags(s string) []string {
	var tags []string
	for _, t := range strings.Split(s, ",") {
		if t = strings.TrimSpace(t); t != "" {
			tags = append(tags, t)
		}
	}
	return tags
}

// Create runs `ghi open` and closes the new issue when a closed one is
// requested.
func (g *Tracker) Create(ctx context.Context, req tracker.CreateRequest) (types.RemoteIssue, error) {
	args := []string{"open", "--message", req.Title}
	if len(req.Labels) > 0 {
		args = append(args, "--label", strings.Join(req.Labels, ","))
	}
	out, err := g.run(ctx, g.withRepo(args)...)
	if err != nil {
		return types.RemoteIssue{}, err
	}

	m := createdPattern.FindSubmatch(out)
	if m == nil {
		return types.RemoteIssue{}, fmt.Errorf("%w: no issue number in ghi open output %q", tracker.ErrInvalidOutput, tracker.FirstLine(out))
	}
	number, err := strconv.Atoi(string(m[1]))
	if err != nil || number <= 0 {
		return types.RemoteIssue{}, fmt.Errorf("%w: bad issue number %q", tracker.ErrInvalidOutput, m[1])
	}

	issue := types.RemoteIssue{Number: number, Title: req.Title, State: types.StateOpen, Labels: slices.Clone(req.Labels)}
	if req.State == types.StateClosed {
		if _, err := g.run(ctx, g.withRepo([]string{"close", strconv.Itoa(number)})...); err != nil {
			return issue, fmt.Errorf("created #%d but could not close it: %w", number, err)
		}
		issue.State = types.StateClosed
	}
	return issue, nil
}

// Edit runs `ghi edit` for the title, `ghi label --force` to replace
// labels, and `ghi close` or `ghi open` for state changes.
func (g *Tracker) Edit(ctx context.Context, req tracker.EditRequest) (types.RemoteIssue, error) {
	num := strconv.Itoa(req.Number)

	if req.Title != "" && (req.Current == nil || req.Current.Title != req.Title) {
		if _, err := g.run(ctx, g.withRepo([]string{"edit", num, "--message", req.Title})...); err != nil {
			return types.RemoteIssue{}, err
		}
	}

	if req.Labels != nil && (req.Current == nil || !sameLabels(req.Current.Labels, req.Labels)) {
		args := []string{"label", num, "--force"}
		if len(req.Labels) == 0 {
			args = []string{"label", num, "--delete"}
			if req.Current != nil {
				args = append(args, req.Current.Labels...)
			}
		} else {
			args = append(args, req.Labels...)
		}
		if _, err := g.run(ctx, g.withRepo(args)...); err != nil {
			return types.RemoteIssue{}, err
		}
	}

	if req.State != "" && (req.Current == nil || req.Current.State != req.State) {
		verb := "open"
		if req.State == types.StateClosed {
			verb = "close"
		}
		if _, err := g.run(ctx, g.withRepo([]string{verb, num})...); err != nil {
			return types.RemoteIssue{}, err
		}
	}
	return req.Result(), nil
}

func sameLabels(a, b []string) bool {
	a, b = slices.Clone(a), slices.Clone(b)
	slices.Sort(a)
	slices.Sort(b)
	return slices.Equal(slices.Compact(a), slices.Compact(b))
}

func (g *Tracker) withRepo(args []string) []string {
	if g.opts.Repo == "" {
		return args
	}
	return append(args, "--", g.opts.Repo)
}

func (g *Tracker) run(ctx context.Context, args ...string) ([]byte, error) {
	return g.opts.Run(ctx, g.binary, args...)
}
