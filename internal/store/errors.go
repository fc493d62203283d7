package store

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	// ErrParseFailure means no tier of the time resolver understood the text.
	ErrParseFailure = errors.New("time expression not understood")
	// ErrPastTime means a resolved time is not strictly in the future.
	ErrPastTime = errors.New("time is not in the future")
	// ErrIndexOutOfRange means a numeric reference is outside the listed range.
	ErrIndexOutOfRange = errors.New("index out of range")
	// ErrNotFound means a text reference matched nothing.
	ErrNotFound = errors.New("no matching entry")
	// ErrAmbiguousMatch means a text reference matched several entries.
	ErrAmbiguousMatch = errors.New("ambiguous match")
	// ErrNoUser is returned when an operation is called without a user id.
	ErrNoUser = errors.New("user id is required")
)

// PastTimeError carries the rejected time so callers can show it.
type PastTimeError struct {
	At time.Time
}

func (e *PastTimeError) Error() string {
	return fmt.Sprintf("%s: %s", ErrPastTime, e.At.Format(time.RFC3339))
}

func (e *PastTimeError) Is(target error) bool { return target == ErrPastTime }

// AmbiguousMatchError lists every entry a text reference matched.
// Positions are 1-based, as shown to users.
type AmbiguousMatchError struct {
	Candidates []string
	Positions  []int
}

func (e *AmbiguousMatchError) Error() string {
	return fmt.Sprintf("%s: %s", ErrAmbiguousMatch, strings.Join(e.Candidates, ", "))
}

func (e *AmbiguousMatchError) Is(target error) bool { return target == ErrAmbiguousMatch }
