// Package timeparse turns free-form time expressions ("in 5 minutes",
// "at 17:30", "tomorrow at 9", "friday at 18hs") into absolute points in
// time.
//
// Resolution runs an ordered chain of tiers and stops at the first one that
// matches: relative durations, explicit clock times, then a general natural
// language parser. The first two tiers always return a time strictly after
// the reference time. The last tier is biased toward the future but may
// still return a past time for inputs such as "yesterday at 10"; callers
// that require a future time must check the result themselves.
package timeparse

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/olebedev/when"
	"github.com/olebedev/when/rules/common"
	"github.com/olebedev/when/rules/en"
)

// Tier identifies which strategy produced a resolution.
type Tier int

const (
	TierNone Tier = iota
	TierRelative
	TierClock
	TierFallback
)

func (t Tier) String() string {
	switch t {
	case TierRelative:
		return "relative"
	case TierClock:
		return "clock"
	case TierFallback:
		return "fallback"
	default:
		return "none"
	}
}

var (
	relativeRegex = regexp.MustCompile(`(?i)\bin\s+(a|an|one|\d+)\s+(seconds?|secs?|minutes?|mins?|hours?|hrs?)\b`)
	clockRegex    = regexp.MustCompile(`(?i)\bat\s+(\d{1,2})(?:[:h.](\d{2}))?\s*(am\b|pm\b|a\.m\.|p\.m\.)?(?:\s*hs?\b)?`)

	// dayRegex names a day relative to the reference day; the clock tier
	// applies the time to that day.
	dayRegex = regexp.MustCompile(`(?i)\b(day after tomorrow|tomorrow|(?:(?:next|this)\s+)?(?:monday|tuesday|wednesday|thursday|friday|saturday|sunday))\b`)

	// dateRegex spots explicit calendar dates and "yesterday"; those are left
	// to the fallback parser, which keeps the parsed clock time.
	dateRegex = regexp.MustCompile(`(?i)\byesterday\b|\b\d{1,2}/\d{1,2}(?:/\d{2,4})?\b|\b(?:jan|feb|mar|apr|may|jun|jul|aug|sep|sept|oct|nov|dec)[a-z]*\.?\s+\d{1,2}(?:st|nd|rd|th)?\b|\b\d{1,2}(?:st|nd|rd|th)?\s+(?:of\s+)?(?:jan|feb|mar|apr|may|jun|jul|aug|sep|sept|oct|nov|dec)[a-z]*\b`)

	weekdays = map[string]time.Weekday{
		"sunday": time.Sunday, "monday": time.Monday, "tuesday": time.Tuesday,
		"wednesday": time.Wednesday, "thursday": time.Thursday,
		"friday": time.Friday, "saturday": time.Saturday,
	}

	clockMarkerRegex = regexp.MustCompile(`(?i):|\bhs\b|\dhs\b|\bat\b`)
	namedDayRegex    = regexp.MustCompile(`(?i)\b(tomorrow|yesterday)\b`)
)

// Resolver resolves temporal expressions relative to a caller supplied "now".
// A Resolver is safe for concurrent use.
type Resolver struct {
	parser *when.Parser
}

// New returns a Resolver with English and language-neutral fallback rules.
func New() *Resolver {
	w := when.New(nil)
	w.Add(en.All...)
	w.Add(common.All...)
	return &Resolver{parser: w}
}

// Resolve converts text into an absolute time. ok is false when no tier
// recognises the text.
func (r *Resolver) Resolve(text string, now time.Time) (time.Time, bool) {
	t, tier := r.ResolveTier(text, now)
	return t, tier != TierNone
}

// ResolveTier is Resolve but also reports the tier that matched.
func (r *Resolver) ResolveTier(text string, now time.Time) (time.Time, Tier) {
	text = strings.TrimSpace(text)
	if text == "" {
		return time.Time{}, TierNone
	}
	if t, ok := resolveRelative(text, now); ok {
		return t, TierRelative
	}
	if t, ok := resolveClock(text, now); ok {
		return t, TierClock
	}
	if t, ok := r.resolveFallback(text, now); ok {
		return t, TierFallback
	}
	return time.Time{}, TierNone
}

func resolveRelative(text string, now time.Time) (time.Time, bool) {
	m := relativeRegex.FindStringSubmatch(text)
	if m == nil {
		return time.Time{}, false
	}

	var n int64
	switch strings.ToLower(m[1]) {
	case "a", "an", "one":
		n = 1
	default:
		parsed, err := strconv.ParseInt(m[1], 10, 64)
		if err != nil || parsed <= 0 {
			return time.Time{}, false
		}
		n = parsed
	}

	unit := time.Second
	switch u := strings.ToLower(m[2]); {
	case strings.HasPrefix(u, "min"):
		unit = time.Minute
	case strings.HasPrefix(u, "h"):
		unit = time.Hour
	}

	d := time.Duration(n) * unit
	if d <= 0 || int64(d/unit) != n {
		return time.Time{}, false
	}
	return now.Add(d), true
}

func resolveClock(text string, now time.Time) (time.Time, bool) {
	if dateRegex.MatchString(text) {
		return time.Time{}, false
	}
	hour, minute, ok := parseClock(text)
	if !ok {
		return time.Time{}, false
	}

	target := time.Date(now.Year(), now.Month(), now.Day(), hour, minute, 0, 0, now.Location())
	day := strings.ToLower(dayRegex.FindString(text))
	switch {
	case day == "":
		if !target.After(now) {
			target = target.AddDate(0, 0, 1)
		}
	case day == "day after tomorrow":
		target = target.AddDate(0, 0, 2)
	case day == "tomorrow":
		target = target.AddDate(0, 0, 1)
	default:
		fields := strings.Fields(day)
		wd := weekdays[fields[len(fields)-1]]
		ahead := (int(wd) - int(now.Weekday()) + 7) % 7
		target = target.AddDate(0, 0, ahead)
		if !target.After(now) {
			target = target.AddDate(0, 0, 7)
		}
	}
	return target, true
}

// parseClock extracts the "at H[:MM] [am|pm] [hs]" time of day.
func parseClock(text string) (hour, minute int, ok bool) {
	m := clockRegex.FindStringSubmatch(text)
	if m == nil {
		return 0, 0, false
	}

	hour, _ = strconv.Atoi(m[1])
	if m[2] != "" {
		minute, _ = strconv.Atoi(m[2])
	}
	if minute > 59 {
		return 0, 0, false
	}

	switch meridiem := strings.ToLower(strings.ReplaceAll(m[3], ".", "")); meridiem {
	case "am", "pm":
		if hour < 1 || hour > 12 {
			return 0, 0, false
		}
		if hour == 12 {
			hour = 0
		}
		if meridiem == "pm" {
			hour += 12
		}
	default:
		if hour > 23 {
			return 0, 0, false
		}
	}
	return hour, minute, true
}

func (r *Resolver) resolveFallback(text string, now time.Time) (time.Time, bool) {
	res, err := r.parser.Parse(text, now)
	if err != nil || res == nil {
		return time.Time{}, false
	}

	t := res.Time
	// The parser drops 24h forms such as "at 18" or "at 18hs"; the clock
	// text wins over whatever time of day it guessed.
	if hour, minute, ok := parseClock(text); ok {
		t = time.Date(t.Year(), t.Month(), t.Day(), hour, minute, 0, 0, t.Location())
	}
	// Known edge case: without a bare clock marker a past result is returned
	// unchanged and it is up to the caller to reject it.
	if !t.After(now) && clockMarkerRegex.MatchString(text) && !namedDayRegex.MatchString(text) {
		t = t.AddDate(0, 0, 1)
	}
	return t, true
}
