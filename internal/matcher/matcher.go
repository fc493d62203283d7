// Package matcher resolves a free-text reference ("delete the dentist one")
// to stored entries by keyword overlap with their titles.
package matcher

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// MinTokenLen is the shortest query token that takes part in matching.
const MinTokenLen = 4

// Kind classifies a match outcome.
type Kind int

const (
	None Kind = iota
	Unique
	Ambiguous
)

func (k Kind) String() string {
	switch k {
	case Unique:
		return "unique"
	case Ambiguous:
		return "ambiguous"
	default:
		return "none"
	}
}

// Result holds the outcome of Match. Indices are 0-based positions into the
// titles passed to Match, in their original order.
type Result struct {
	Kind    Kind
	Indices []int
}

// Index returns the matched position for a Unique result and -1 otherwise.
func (r Result) Index() int {
	if r.Kind != Unique {
		return -1
	}
	return r.Indices[0]
}

var lower = cases.Lower(language.Und)

// Tokens splits query into lowercase words of at least MinTokenLen runes.
// Punctuation and other separators are discarded.
func Tokens(query string) []string {
	fields := strings.FieldsFunc(lower.String(query), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	tokens := fields[:0]
	for _, f := range fields {
		if utf8.RuneCountInString(f) >= MinTokenLen {
			tokens = append(tokens, f)
		}
	}
	return tokens
}

// Match reports which titles contain at least one significant token of query.
func Match(titles []string, query string) Result {
	tokens := Tokens(query)
	if len(tokens) == 0 {
		return Result{Kind: None}
	}

	var indices []int
	for i, title := range titles {
		t := lower.String(title)
		for _, tok := range tokens {
			if strings.Contains(t, tok) {
				indices = append(indices, i)
				break
			}
		}
	}

	switch len(indices) {
	case 0:
		return Result{Kind: None}
	case 1:
		return Result{Kind: Unique, Indices: indices}
	default:
		return Result{Kind: Ambiguous, Indices: indices}
	}
}
