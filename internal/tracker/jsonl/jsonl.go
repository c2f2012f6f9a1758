// Package jsonl implements a file-backed tracker storing one issue per
// line as JSON. It needs no network or CLI and is used for offline runs
// and fixtures.
package jsonl

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"sync"

	"github.com/steveyegge/edit-ghi/internal/tracker"
	"github.com/steveyegge/edit-ghi/internal/types"
)

func init() {
	tracker.Register(tracker.TypeJSONL, "", New)
}

// DefaultPath is used when no issue file is configured.
const DefaultPath = ".edit-ghi/issues.jsonl"

// Version is the file format version reported by Version.
const Version = "jsonl/1"

// Tracker reads and rewrites an issue file.
type Tracker struct {
	mu   sync.Mutex
	path string
	opts tracker.Options
}

// Ensure Tracker implements tracker.Tracker
var _ tracker.Tracker = (*Tracker)(nil)

// New creates a jsonl backend on opts.Path (default DefaultPath, relative
// to opts.Dir).
func New(opts tracker.Options) (tracker.Tracker, error) {
	path := opts.Path
	if path == "" {
		path = DefaultPath
	}
	if !filepath.IsAbs(path) && opts.Dir != "" {
		path = filepath.Join(opts.Dir, path)
	}
	return &Tracker{path: path, opts: opts}, nil
}

// Path returns the issue file path.
func (t *Tracker) Path() string {
	return t.path
}

// Name returns tracker.TypeJSONL.
func (t *Tracker) Name() tracker.Type {
	return tracker.TypeJSONL
}

// Version returns the file format version.
func (t *Tracker) Version(ctx context.Context) (string, error) {
	return Version, nil
}

// List reads the issue file. A missing file holds no issues.
func (t *Tracker) List(ctx context.Context, filter tracker.StateFilter) ([]types.RemoteIssue, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	all, err := t.load()
	if err != nil {
		return nil, err
	}
	var issues []types.RemoteIssue
	for _, is := range all {
		if filter.Includes(is.State) {
			issues = append(issues, is)
		}
	}
	t.opts.Trace.Trace("jsonl-list", "path", t.path, "count", len(issues))
	return issues, nil
}

// Create appends an issue numbered one past the highest existing number.
func (t *Tracker) Create(ctx context.Context, req tracker.CreateRequest) (types.RemoteIssue, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	all, err := t.load()
	if err != nil {
		return types.RemoteIssue{}, err
	}
	next := 1
	for _, is := range all {
		if is.Number >= next {
			next = is.Number + 1
		}
	}
	state := req.State
	if state == "" {
		state = types.StateOpen
	}
	issue := types.RemoteIssue{Number: next, Title: req.Title, State: state, Labels: slices.Clone(req.Labels)}
	if err := issue.Validate(); err != nil {
		return types.RemoteIssue{}, err
	}
	if err := t.save(append(all, issue)); err != nil {
		return types.RemoteIssue{}, err
	}
	return issue, nil
}

// Edit rewrites the matching issue. Returns tracker.ErrNotFound when the
// number does not exist.
func (t *Tracker) Edit(ctx context.Context, req tracker.EditRequest) (types.RemoteIssue, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	all, err := t.load()
	if err != nil {
		return types.RemoteIssue{}, err
	}
	i := slices.IndexFunc(all, func(is types.RemoteIssue) bool { return is.Number == req.Number })
	if i < 0 {
		return types.RemoteIssue{}, fmt.Errorf("%w: #%d in %s", tracker.ErrNotFound, req.Number, t.path)
	}
	all[i] = req.Apply(all[i])
	if err := t.save(all); err != nil {
		return types.RemoteIssue{}, err
	}
	return all[i], nil
}

// load reads every issue in the file.
func (t *Tracker) load() ([]types.RemoteIssue, error) {
	// #nosec G304 - path comes from configuration
	f, err := os.Open(t.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open issue file: %w", err)
	}
	defer f.Close()
	return Decode(f)
}

// Decode reads JSON-lines issues from r.
func Decode(r io.Reader) ([]types.RemoteIssue, error) {
	var issues []types.RemoteIssue
	decoder := json.NewDecoder(r)
	for n := 1; ; n++ {
		var issue types.RemoteIssue
		if err := decoder.Decode(&issue); err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return nil, fmt.Errorf("%w: issue %d: %v", tracker.ErrInvalidOutput, n, err)
		}
		if err := issue.Validate(); err != nil {
			return nil, fmt.Errorf("%w: issue %d: %v", tracker.ErrInvalidOutput, n, err)
		}
		issues = append(issues, issue)
	}
	return issues, nil
}

// Encode writes issues as JSON lines.
func Encode(w io.Writer, issues []types.RemoteIssue) error {
	bw := bufio.NewWriter(w)
	enc := json.NewEncoder(bw)
	for _, is := range issues {
		if err := enc.Encode(is); err != nil {
			return fmt.Errorf("failed to encode issue #%d: %w", is.Number, err)
		}
	}
	return bw.Flush()
}

// save writes all issues atomically via a temp file.
func (t *Tracker) save(issues []types.RemoteIssue) error {
	var buf bytes.Buffer
	if err := Encode(&buf, issues); err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(t.path), 0755); err != nil {
		return fmt.Errorf("failed to create issue directory: %w", err)
	}
	tmpPath := t.path + ".tmp"
	if err := os.WriteFile(tmpPath, buf.Bytes(), 0600); err != nil {
		return fmt.Errorf("failed to write temp file: %w", err)
	}
	if err := os.Rename(tmpPath, t.path); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("failed to rename temp file: %w", err)
	}
	return nil
}
