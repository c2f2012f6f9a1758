// Package gh implements the tracker interface on top of the GitHub CLI.
package gh

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"path"
	"regexp"
	"slices"
	"strconv"
	"strings"

	"golang.org/x/mod/semver"

	"github.com/steveyegge/edit-ghi/internal/tracker"
	"github.com/steveyegge/edit-ghi/internal/types"
)

func init() {
	tracker.Register(tracker.TypeGH, "gh", New)
}

// MinVersion is the oldest gh release whose issue commands support --json.
const MinVersion = "v2.0.0"

// DefaultLimit is passed to `gh issue list --limit` when none is configured.
const DefaultLimit = 1000

// listFields are the JSON fields requested from `gh issue list`.
const listFields = "number,title,state,labels"

var versionPattern = regexp.MustCompile(`gh version ([0-9]+\.[0-9]+\.[0-9]+)`)

// Tracker drives `gh issue` commands.
type Tracker struct {
	opts   tracker.Options
	binary string
}

// Ensure Tracker implements tracker.Tracker
var _ tracker.Tracker = (*Tracker)(nil)

// New creates a gh backend.
func New(opts tracker.Options) (tracker.Tracker, error) {
	binary := opts.Binary
	if binary == "" {
		binary = "gh"
	}
	if opts.Limit <= 0 {
		opts.Limit = DefaultLimit
	}
	return &Tracker{opts: opts, binary: binary}, nil
}

// Name returns tracker.TypeGH.
func (g *Tracker) Name() tracker.Type {
	return tracker.TypeGH
}

// Version returns the installed gh version, failing with
// tracker.ErrUnsupportedVersion below MinVersion.
func (g *Tracker) Version(ctx context.Context) (string, error) {
	out, err := g.run(ctx, "--version")
	if err != nil {
		return "", err
	}
	m := versionPattern.FindStringSubmatch(tracker.FirstLine(out))
	if m == nil {
		return "", fmt.Errorf("%w: unrecognized gh --version output %q", tracker.ErrInvalidOutput, tracker.FirstLine(out))
	}
	v := "v" + m[1]
	if semver.Compare(v, MinVersion) < 0 {
		return m[1], fmt.Errorf("%w: gh %s is older than %s", tracker.ErrUnsupportedVersion, m[1], MinVersion)
	}
	return m[1], nil
}

// ghIssue is the JSON shape of `gh issue list --json number,title,state,labels`.
type ghIssue struct {
	Number int    `json:"number"`
	Title  string `json:"title"`
	State  string `json:"state"`
	Labels []struct {
		Name string `json:"name"`
	} `json:"labels"`
}

// List runs `gh issue list` and decodes its JSON output.
func (g *Tracker) List(ctx context.Context, filter tracker.StateFilter) ([]types.RemoteIssue, error) {
	if filter == "" {
		filter = tracker.StateAll
	}
	args := []string{"issue", "list",
		"--state", string(filter),
		"--limit", strconv.Itoa(g.opts.Limit),
		"--json", listFields,
	}
	out, err := g.run(ctx, g.withRepo(args)...)
	if err != nil {
		return nil, err
	}
	return ParseList(out)
}

// ParseList decodes `gh issue list --json` output.
func ParseList(out []byte) ([]types.RemoteIssue, error) {
	var raw []ghIssue
	if err := json.Unmarshal(out, &raw); err != nil {
		return nil, fmt.Errorf("%w: decode gh issue list: %v", tracker.ErrInvalidOutput, err)
	}

	issues := make([]types.RemoteIssue, 0, len(raw))
	for _, r := range raw {
		state, err := types.ParseState(r.State)
		if err != nil {
			return nil, fmt.Errorf("%w: issue #%d: %v", tracker.ErrInvalidOutput, r.Number, err)
		}
		issue := types.RemoteIssue{Number: r.Number, Title: r.Title, State: state}
		for _, l := range r.Labels {
			issue.Labels = append(issue.Labels, l.Name)
		}
		if err := issue.Validate(); err != nil {
			return nil, fmt.Errorf("%w: %v", tracker.ErrInvalidOutput, err)
		}
		issues = append(issues, issue)
	}
	return issues, nil
}

// Create runs `gh issue create`, then closes the issue if the request
// asks for a closed one.
func (g *Tracker) Create(ctx context.Context, req tracker.CreateRequest) (types.RemoteIssue, error) {
	args := []string{"issue", "create", "--title", req.Title, "--body", ""}
	for _, l := range req.Labels {
		args = append(args, "--label", l)
	}
	out, err := g.run(ctx, g.withRepo(args)...)
	if err != nil {
		return types.RemoteIssue{}, err
	}

	number, err := ParseIssueURL(out)
	if err != nil {
		return types.RemoteIssue{}, err
	}
	issue := types.RemoteIssue{
		Number: number,
		Title:  req.Title,
		State:  types.StateOpen,
		Labels: slices.Clone(req.Labels),
	}

	if req.State == types.StateClosed {
		if err := g.setState(ctx, number, types.StateClosed); err != nil {
			return issue, fmt.Errorf("created #%d but could not close it: %w", number, err)
		}
		issue.State = types.StateClosed
	}
	return issue, nil
}

// ParseIssueURL extracts the issue number from the URL `gh issue create`
// prints, e.g. https://github.com/acme/web/issues/12.
func ParseIssueURL(out []byte) (int, error) {
	lines := tracker.ParseLines(out)
	if len(lines) == 0 {
		return 0, fmt.Errorf("%w: gh issue create printed nothing", tracker.ErrInvalidOutput)
	}
	last := lines[len(lines)-1]
	u, err := url.Parse(last)
	if err != nil {
		return 0, fmt.Errorf("%w: %q is not an issue URL", tracker.ErrInvalidOutput, last)
	}
	n, err := strconv.Atoi(path.Base(u.Path))
	if err != nil || n <= 0 || path.Base(path.Dir(u.Path)) != "issues" {
		return 0, fmt.Errorf("%w: %q is not an issue URL", tracker.ErrInvalidOutput, last)
	}
	return n, nil
}

// Edit runs `gh issue edit` for title and label changes and
// `gh issue close|reopen` for state changes.
func (g *Tracker) Edit(ctx context.Context, req tracker.EditRequest) (types.RemoteIssue, error) {
	args := []string{"issue", "edit", strconv.Itoa(req.Number)}
	changed := false
	if req.Title != "" && (req.Current == nil || req.Current.Title != req.Title) {
		args = append(args, "--title", req.Title)
		changed = true
	}
	if req.Labels != nil {
		var current []string
		if req.Current != nil {
			current = req.Current.Labels
		}
		add, remove := labelDelta(current, req.Labels)
		if len(add) > 0 {
			args = append(args, "--add-label", strings.Join(add, ","))
			changed = true
		}
		if len(remove) > 0 {
			args = append(args, "--remove-label", strings.Join(remove, ","))
			changed = true
		}
	}
	if changed {
		if _, err := g.run(ctx, g.withRepo(args)...); err != nil {
			return types.RemoteIssue{}, err
		}
	}

	if req.State != "" && (req.Current == nil || req.Current.State != req.State) {
		if err := g.setState(ctx, req.Number, req.State); err != nil {
			return types.RemoteIssue{}, err
		}
	}
	return req.Result(), nil
}

func (g *Tracker) setState(ctx context.Context, number int, state types.State) error {
	verb := "reopen"
	if state == types.StateClosed {
		verb = "close"
	}
	_, err := g.run(ctx, g.withRepo([]string{"issue", verb, strconv.Itoa(number)})...)
	return err
}

// labelDelta returns the labels to add and remove to turn current into want.
func labelDelta(current, want []string) (add, remove []string) {
	for _, l := range want {
		if !slices.Contains(current, l) && !slices.Contains(add, l) {
			add = append(add, l)
		}
	}
	for _, l := range current {
		if !slices.Contains(want, l) {
			remove = append(remove, l)
		}
	}
	return add, remove
}

func (g *Tracker) withRepo(args []string) []string {
	if g.opts.Repo == "" {
		return args
	}
	return append(args, "--repo", g.opts.Repo)
}

func (g *Tracker) run(ctx context.Context, args ...string) ([]byte, error) {
	return g.opts.Run(ctx, g.binary, args...)
}
