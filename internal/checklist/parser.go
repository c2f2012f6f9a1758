// Package checklist parses the narrow checklist dialect used by edit-ghi
// documents and rewrites checklist lines in place.
//
// The format is line oriented:
//
//	# Sprint 1            sets the current heading
//	- [ ] Fix login bug   open item
//	- [x] Ship it [#12]   closed item that is remote issue #12
//	---                   starts a new document
//
// Everything else is ignored. See ClassifyLine and ClassifyToken for the
// exact rules.
package checklist

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/steveyegge/edit-ghi/internal/types"
)

// Document is one `---` delimited section of an input file.
type Document struct {
	// Index is the zero-based position of the document in its file
	Index int

	// Heading is the current heading while parsing; after parsing it holds
	// the last heading seen in the document
	Heading string

	// Items are the checklist items in source order
	Items []*types.ChecklistItem
}

// ParseError reports a malformed checklist item and where it was found.
type ParseError struct {
	File string
	Line int
	Text string
	Err  error
}

func (e *ParseError) Error() string {
	loc := fmt.Sprintf("line %d", e.Line)
	if e.File != "" {
		loc = fmt.Sprintf("%s:%d", e.File, e.Line)
	}
	return fmt.Sprintf("%s: %q: %v", loc, e.Text, e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// Parse parses in-memory text. See ParseSource.
func Parse(text string) ([]*Document, error) {
	return ParseSource("", text)
}

// ParseFile reads and parses a checklist file.
func ParseFile(path string) ([]*Document, error) {
	// #nosec G304 - path comes from the command line
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read checklist file %s: %w", path, err)
	}
	return ParseSource(path, string(data))
}

// ParseSource parses text read from the named file into documents.
//
// Empty text yields no documents; otherwise there is one document more
// than there are `---` separators. The heading resets at every separator.
// The first malformed item aborts the parse with a *ParseError wrapping
// types.ErrMalformedItem.
func ParseSource(name, text string) ([]*Document, error) {
	if text == "" {
		return nil, nil
	}

	current := &Document{}
	docs := []*Document{current}

	for i, raw := range strings.Split(text, "\n") {
		line := ClassifyLine(raw)

		switch line.Kind {
		case KindSeparator:
			current = &Document{Index: len(docs)}
			docs = append(docs, current)

		case KindHeading:
			current.Heading = line.Heading

		case KindItem:
			src := types.Source{File: name, Document: current.Index, Line: i + 1}
			item, err := buildItem(line, current.Heading, src)
			if err != nil {
				return nil, &ParseError{File: name, Line: i + 1, Text: strings.TrimSpace(raw), Err: err}
			}
			current.Items = append(current.Items, item)
		}
	}

	return docs, nil
}

// Items flattens documents into a single ordered item list.
func Items(docs []*Document) []*types.ChecklistItem {
	var items []*types.ChecklistItem
	for _, d := range docs {
		items = append(items, d.Items...)
	}
	return items
}

func buildItem(line Line, heading string, src types.Source) (*types.ChecklistItem, error) {
	item := types.ChecklistItem{
		State:   line.State,
		Title:   strings.Join(line.Remainder, " "),
		Heading: heading,
		Source:  src,
	}

	for _, tok := range line.Remainder {
		t := ClassifyToken(tok)
		switch t.Kind {
		case TokenRef, TokenQualifiedRef:
			item.AddIssueRef(t.Number)
		case TokenSelf:
			item.ExplicitNumber = t.Number
		case TokenLabels:
			for _, l := range t.Labels {
				item.AddLabel(l)
			}
		}
	}

	return types.NewChecklistItem(item)
}

// IsMalformed reports whether err came from a malformed checklist item.
func IsMalformed(err error) bool {
	return errors.Is(err, types.ErrMalformedItem)
}
