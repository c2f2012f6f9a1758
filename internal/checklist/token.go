package checklist

import (
	"regexp"
	"strconv"
	"strings"
)

// TokenKind classifies a word that follows a checklist checkbox.
type TokenKind int

const (
	// TokenWord is plain title text.
	TokenWord TokenKind = iota
	// TokenRef is a `#123` cross reference.
	TokenRef
	// TokenQualifiedRef is an `owner/repo#123` cross reference.
	TokenQualifiedRef
	// TokenSelf is the `[#123]` self reference naming the item's own issue.
	TokenSelf
	// TokenLabels is a bracketed, comma separated label list like `[bug,ui]`.
	TokenLabels
)

// String returns a human-readable representation of the token kind.
func (k TokenKind) String() string {
	switch k {
	case TokenWord:
		return "word"
	case TokenRef:
		return "ref"
	case TokenQualifiedRef:
		return "qualified-ref"
	case TokenSelf:
		return "self"
	case TokenLabels:
		return "labels"
	default:
		return "unknown"
	}
}

var (
	refPattern       = regexp.MustCompile(`^#([0-9]+)$`)
	selfPattern      = regexp.MustCompile(`^\[#([0-9]+)\]$`)
	qualifiedPattern = regexp.MustCompile(`(?i)^[\w.]+/[\w.]+#([0-9]+)$`)
)

// Token is a classified remainder token.
type Token struct {
	Text   string
	Kind   TokenKind
	Number int      // TokenRef, TokenQualifiedRef, TokenSelf
	Labels []string // TokenLabels
}

// ClassifyToken decides what a single remainder token contributes to an item.
// Classification never removes the token from the item title.
func ClassifyToken(tok string) Token {
	t := Token{Text: tok, Kind: TokenWord}

	switch {
	case strings.HasPrefix(tok, "#"):
		if m := refPattern.FindStringSubmatch(tok); m != nil {
			if n, ok := positive(m[1]); ok {
				t.Kind, t.Number = TokenRef, n
			}
		}
		return t

	case strings.HasPrefix(tok, "["):
		if len(tok) > 3 {
			if m := selfPattern.FindStringSubmatch(tok); m != nil {
				if n, ok := positive(m[1]); ok {
					t.Kind, t.Number = TokenSelf, n
					return t
				}
			}
		}
		if strings.HasSuffix(tok, "]") && len(tok) >= 2 {
			t.Kind = TokenLabels
			for _, piece := range strings.Split(tok[1:len(tok)-1], ",") {
				if piece = strings.TrimSpace(piece); piece != "" {
					t.Labels = append(t.Labels, piece)
				}
			}
		}
		return t
	}

	if m := qualifiedPattern.FindStringSubmatch(tok); m != nil {
		if n, ok := positive(m[1]); ok {
			t.Kind, t.Number = TokenQualifiedRef, n
		}
	}
	return t
}

// positive parses a run of digits as an issue number. Zero and values that
// overflow int are rejected.
func positive(digits string) (int, bool) {
	n, err := strconv.Atoi(digits)
	if err != nil || n <= 0 {
		return 0, false
	}
	return n, true
}
