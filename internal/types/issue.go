// Package types defines the issue shapes shared by the checklist parser,
// the remote issue store and the reconciler.
//
// A ChecklistItem is the local representation of a task parsed from a
// document line. A RemoteIssue mirrors an issue held by the external
// tracker. Both project into a Record, the comparable shape used when
// deciding whether a local item and its remote counterpart agree.
package types

import (
	"errors"
	"fmt"
	"slices"
	"strings"
)

// ErrMalformedItem is returned when a checklist item cannot be constructed
// because it has no title or no well-formed state.
var ErrMalformedItem = errors.New("malformed checklist item")

// State is the open/closed state of an issue.
type State string

const (
	// StateOpen marks an unchecked item (`[ ]`) or an open remote issue.
	StateOpen State = "open"

	// StateClosed marks a checked item (`[x]`) or a closed remote issue.
	StateClosed State = "closed"
)

// String returns the string representation of the state.
func (s State) String() string {
	return string(s)
}

// Valid reports whether s is one of the defined states.
func (s State) Valid() bool {
	return s == StateOpen || s == StateClosed
}

// ParseState converts tracker output ("open", "OPEN", "closed", ...) into a State.
func ParseState(s string) (State, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "open", "opened", "reopened":
		return StateOpen, nil
	case "closed", "close":
		return StateClosed, nil
	}
	return "", fmt.Errorf("unknown issue state %q", s)
}

// Source locates a checklist item inside its input file.
type Source struct {
	// File is the path the item was read from (empty for in-memory input)
	File string

	// Document is the zero-based index of the `---` delimited document
	Document int

	// Line is the 1-based line number within the file
	Line int
}

// String formats the location as file:line.
func (s Source) String() string {
	if s.File == "" {
		return fmt.Sprintf("line %d", s.Line)
	}
	return fmt.Sprintf("%s:%d", s.File, s.Line)
}

// ChecklistItem is a parsed `- [ ]` / `- [x]` line.
type ChecklistItem struct {
	// State is derived from the checkbox syntax
	State State

	// Title is every token after the checkbox joined with single spaces.
	// Label and reference tokens are NOT stripped from it; it is what the
	// item is matched on, compared on and pushed as.
	Title string

	// Heading is the most recent `#` line of the same document, or ""
	Heading string

	// Labels from `[a,b]` tokens, deduplicated in first-seen order
	Labels []string

	// IssueRefs are cross references from `#12` and `owner/repo#12` tokens
	IssueRefs []int

	// ExplicitNumber is the item's own remote issue number from a `[#12]`
	// token. Zero means the item carries no self reference.
	ExplicitNumber int

	// Source is where the item was parsed from
	Source Source
}

// NewChecklistItem validates and returns a checklist item.
// Every item needs a non-empty title and a defined state.
func NewChecklistItem(item ChecklistItem) (*ChecklistItem, error) {
	if !item.State.Valid() {
		return nil, fmt.Errorf("%w: %s: invalid state %q", ErrMalformedItem, item.Source, item.State)
	}
	if strings.TrimSpace(item.Title) == "" {
		return nil, fmt.Errorf("%w: %s: title is required", ErrMalformedItem, item.Source)
	}
	if item.ExplicitNumber < 0 {
		return nil, fmt.Errorf("%w: %s: issue number must be positive (got %d)", ErrMalformedItem, item.Source, item.ExplicitNumber)
	}
	return &item, nil
}

// HasExplicitNumber reports whether the item names its own remote issue.
func (c *ChecklistItem) HasExplicitNumber() bool {
	return c.ExplicitNumber > 0
}

// AddLabel adds a label unless it is empty or already present.
func (c *ChecklistItem) AddLabel(label string) {
	if label == "" || slices.Contains(c.Labels, label) {
		return
	}
	c.Labels = append(c.Labels, label)
}

// AddIssueRef adds a cross reference unless it is already present.
func (c *ChecklistItem) AddIssueRef(n int) {
	if slices.Contains(c.IssueRefs, n) {
		return
	}
	c.IssueRefs = append(c.IssueRefs, n)
}

// Record projects the item into the comparable shape.
func (c *ChecklistItem) Record() Record {
	return newRecord(c.Title, c.State, c.Labels)
}

// RemoteIssue is an issue as reported by the external tracker.
type RemoteIssue struct {
	Number int      `json:"number" yaml:"number"`
	Title  string   `json:"title" yaml:"title"`
	State  State    `json:"state" yaml:"state"`
	Labels []string `json:"labels,omitempty" yaml:"labels,omitempty"`
}

// Validate checks the fields the reconciler depends on.
func (r *RemoteIssue) Validate() error {
	if r.Number <= 0 {
		return fmt.Errorf("number must be positive (got %d)", r.Number)
	}
	if r.Title == "" {
		return fmt.Errorf("issue #%d: title is required", r.Number)
	}
	if !r.State.Valid() {
		return fmt.Errorf("issue #%d: invalid state %q", r.Number, r.State)
	}
	return nil
}

// Record projects the remote issue into the comparable shape.
func (r *RemoteIssue) Record() Record {
	return newRecord(r.Title, r.State, r.Labels)
}
