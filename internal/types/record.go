package types

import (
	"slices"
	"strings"
)

// Field names a comparable field of a Record.
type Field string

const (
	FieldTitle  Field = "title"
	FieldState  Field = "state"
	FieldLabels Field = "labels"
)

// Record is the comparable projection of a local item or a remote issue.
// Labels are sorted so two records with the same label set compare equal.
type Record struct {
	Title  string
	State  State
	Labels []string
}

func newRecord(title string, state State, labels []string) Record {
	sorted := slices.Clone(labels)
	slices.Sort(sorted)
	sorted = slices.Compact(sorted)
	return Record{Title: title, State: state, Labels: sorted}
}

// Change is a single field difference between two records.
type Change struct {
	Field Field  `json:"field" yaml:"field"`
	From  string `json:"from" yaml:"from"`
	To    string `json:"to" yaml:"to"`
}

// Equal reports whether both records agree on every field.
func (r Record) Equal(other Record) bool {
	return len(r.Diff(other)) == 0
}

// Diff lists the fields that must change to turn r into other,
// in title, state, labels order.
func (r Record) Diff(other Record) []Change {
	var changes []Change
	if r.Title != other.Title {
		changes = append(changes, Change{Field: FieldTitle, From: r.Title, To: other.Title})
	}
	if r.State != other.State {
		changes = append(changes, Change{Field: FieldState, From: string(r.State), To: string(other.State)})
	}
	if !slices.Equal(r.Labels, other.Labels) {
		changes = append(changes, Change{
			Field: FieldLabels,
			From:  strings.Join(r.Labels, ","),
			To:    strings.Join(other.Labels, ","),
		})
	}
	return changes
}
