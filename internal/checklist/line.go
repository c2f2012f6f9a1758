package checklist

import (
	"strings"

	"github.com/steveyegge/edit-ghi/internal/types"
)

// Separator is the line that starts a new document.
const Separator = "---"

// LineKind is the classification of a single input line.
type LineKind int

const (
	// KindBlank is a line with no tokens.
	KindBlank LineKind = iota
	// KindSeparator is a `---` document separator.
	KindSeparator
	// KindHeading is a line whose first token starts with `#`.
	KindHeading
	// KindItem is a `- [ ]` or `- [x]` checklist line.
	KindItem
	// KindIgnored is any other line, including `-` lines without a
	// recognized checkbox. Ignored lines are not errors.
	KindIgnored
)

// String returns a human-readable representation of the line kind.
func (k LineKind) String() string {
	switch k {
	case KindBlank:
		return "blank"
	case KindSeparator:
		return "separator"
	case KindHeading:
		return "heading"
	case KindItem:
		return "item"
	case KindIgnored:
		return "ignored"
	default:
		return "unknown"
	}
}

// Line is the result of classifying one input line.
type Line struct {
	Kind LineKind

	// Tokens are the whitespace separated words of the line
	Tokens []string

	// Heading is the rejoined line for KindHeading
	Heading string

	// State and Remainder are set for KindItem. Remainder holds every
	// token after the checkbox.
	State     types.State
	Remainder []string
}

// ClassifyLine classifies a raw line without any document context.
// A trailing carriage return is ignored so CRLF files parse the same way.
func ClassifyLine(raw string) Line {
	raw = strings.TrimSuffix(raw, "\r")
	if raw == Separator {
		return Line{Kind: KindSeparator}
	}

	tokens := strings.Fields(raw)
	if len(tokens) == 0 {
		return Line{Kind: KindBlank}
	}

	if strings.HasPrefix(tokens[0], "#") {
		return Line{Kind: KindHeading, Tokens: tokens, Heading: strings.Join(tokens, " ")}
	}

	if tokens[0] != "-" || len(tokens) < 2 {
		return Line{Kind: KindIgnored, Tokens: tokens}
	}

	switch {
	case tokens[1] == "[" && len(tokens) > 2 && tokens[2] == "]":
		return Line{Kind: KindItem, Tokens: tokens, State: types.StateOpen, Remainder: tokens[3:]}
	case tokens[1] == "[x]":
		return Line{Kind: KindItem, Tokens: tokens, State: types.StateClosed, Remainder: tokens[2:]}
	}

	return Line{Kind: KindIgnored, Tokens: tokens}
}
