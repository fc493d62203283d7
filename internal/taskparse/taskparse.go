// Package taskparse holds the text heuristics used for task creation when no
// structured extraction is available: multi-item detection, item splitting
// and a keyword based fallback parser.
package taskparse

import (
	"regexp"
	"sort"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Priority levels. Higher is more urgent.
const (
	PriorityNormal    = 1
	PriorityImportant = 2
	PriorityUrgent    = 3
)

// Placeholder is the title used when nothing is left after cleaning.
const Placeholder = "Task"

// Draft is a parsed but not yet stored task.
type Draft struct {
	Title    string
	Priority int
	Notes    string
}

var (
	numberedRegex  = regexp.MustCompile(`\d+[.\-)]\s*\w+`)
	bulletRegex    = regexp.MustCompile(`•\s*\w+`)
	dashListRegex  = regexp.MustCompile(`-\s*\w+.*\n.*-\s*\w+`)
	conjunction    = " and "
	itemSplitRegex = regexp.MustCompile(`(?m)(?:^|\s)(?:\d+[.)\-]|•|-)\s+`)
	commaAndRegex  = regexp.MustCompile(`(?i),|\band\b`)

	fillerRegex = regexp.MustCompile(`(?i)\b(remind me to|remind me|don'?t let me forget to|i have to|i need to|i've got to|i got to|i gotta|i must|i should|i want to|note down|add a task to|add task|today|please)\b`)
	trimCutset  = " ,.-:;!?¡¿"
	spaceRegex  = regexp.MustCompile(`\s+`)
	punctRegex  = regexp.MustCompile(`\s+([,.;:!?])`)
	// An inverted mark closed right after a removed keyword, as in "¡urgent!".
	orphanRegex = regexp.MustCompile(`[¡¿]\s*[!?]`)
)

// priorityWords maps keywords to priorities. When several occur the one that
// appears last in the text wins. A bare "priority" comes last so the
// qualified phrases are matched and removed first.
var priorityWords = []struct {
	re       *regexp.Regexp
	priority int
}{
	{regexp.MustCompile(`(?i)\burgent(ly)?\b`), PriorityUrgent},
	{regexp.MustCompile(`(?i)\basap\b`), PriorityUrgent},
	{regexp.MustCompile(`(?i)\b(high|top) priority\b`), PriorityUrgent},
	{regexp.MustCompile(`(?i)\bimportant\b`), PriorityImportant},
	{regexp.MustCompile(`(?i)\b(medium|normal) priority\b`), PriorityImportant},
	{regexp.MustCompile(`(?i)\blow priority\b`), PriorityNormal},
	{regexp.MustCompile(`(?i)\bpriority\b`), PriorityImportant},
}

// DetectMultiple reports whether text looks like several tasks at once:
// a numbered list, bullets, a multi-line dash list, the conjunction "and"
// used at least twice, or at least two commas.
func DetectMultiple(text string) bool {
	if numberedRegex.MatchString(text) || bulletRegex.MatchString(text) || dashListRegex.MatchString(text) {
		return true
	}
	return strings.Count(strings.ToLower(text), conjunction) >= 2 || strings.Count(text, ",") >= 2
}

// SplitItems breaks a list-like text into its items. List markers take
// precedence; otherwise commas and "and" separate items. Each item is run
// through ParseFallback.
func SplitItems(text string) []Draft {
	var parts []string
	if numberedRegex.MatchString(text) || bulletRegex.MatchString(text) || dashListRegex.MatchString(text) {
		parts = itemSplitRegex.Split(text, -1)
		// A lead-in such as "today I have to:" is not an item.
		if lead := strings.TrimSpace(parts[0]); lead == "" || strings.HasSuffix(lead, ":") {
			parts = parts[1:]
		}
	} else {
		parts = commaAndRegex.Split(text, -1)
	}

	drafts := make([]Draft, 0, len(parts))
	for _, p := range parts {
		if strings.Trim(p, trimCutset) == "" {
			continue
		}
		drafts = append(drafts, ParseFallback(p))
	}
	return drafts
}

// ParseFallback derives a title and priority from text without any model:
// filler phrases and priority keywords are removed, the last priority
// keyword in the text sets the priority (default PriorityNormal), residual
// punctuation is trimmed and the first letter is capitalized.
func ParseFallback(text string) Draft {
	text = strings.TrimSpace(text)

	type hit struct{ start, end, priority int }
	var hits []hit
	for _, pw := range priorityWords {
		for _, loc := range pw.re.FindAllStringIndex(text, -1) {
			hits = append(hits, hit{loc[0], loc[1], pw.priority})
		}
	}
	// Longest first at the same start; a hit inside an earlier one is the
	// bare "priority" of a qualified phrase and does not count.
	sort.SliceStable(hits, func(i, j int) bool {
		if hits[i].start != hits[j].start {
			return hits[i].start < hits[j].start
		}
		return hits[i].end > hits[j].end
	})
	priority := PriorityNormal
	end := -1
	for _, h := range hits {
		if h.start < end {
			continue
		}
		priority, end = h.priority, h.end
	}

	title := text
	for _, pw := range priorityWords {
		title = pw.re.ReplaceAllString(title, " ")
	}
	title = orphanRegex.ReplaceAllString(title, " ")
	title = fillerRegex.ReplaceAllString(title, " ")
	title = spaceRegex.ReplaceAllString(title, " ")
	title = punctRegex.ReplaceAllString(title, "$1")
	title = strings.Trim(title, trimCutset)
	if title == "" {
		title = Placeholder
	}

	return Draft{Title: Capitalize(title), Priority: priority}
}

var upper = cases.Upper(language.Und)

// Capitalize upper-cases the first rune of s and leaves the rest untouched.
func Capitalize(s string) string {
	r, size := utf8.DecodeRuneInString(s)
	if r == utf8.RuneError {
		return s
	}
	return upper.String(string(r)) + s[size:]
}

// ClampPriority forces p into the supported range.
func ClampPriority(p int) int {
	switch {
	case p < PriorityNormal:
		return PriorityNormal
	case p > PriorityUrgent:
		return PriorityUrgent
	default:
		return p
	}
}
