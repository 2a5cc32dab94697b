// Package tracker keeps spell, grammar and style suggestion spans aligned with a
// document that is being edited while analysis runs in the background.
package tracker

import "errors"

// Category labels a suggestion. When spans overlap the higher priority wins.
type Category string

const (
	CategorySpelling Category = "spelling"
	CategoryGrammar  Category = "grammar"
	CategoryStyle    Category = "style"
)

// Priority returns the precedence of the category: spelling=3, grammar=2,
// style=1. Unknown categories return 0.
func (c Category) Priority() int {
	switch c {
	case CategorySpelling:
		return 3
	case CategoryGrammar:
		return 2
	case CategoryStyle:
		return 1
	default:
		return 0
	}
}

func (c Category) Valid() bool {
	return c.Priority() > 0
}

// Suggestion is one flagged issue. Offset and Length count runes of the
// plain-text projection the analysis ran on.
type Suggestion struct {
	ID           string   `json:"id"`
	Offset       int      `json:"offset"`
	Length       int      `json:"length"`
	Category     Category `json:"category"`
	Message      string   `json:"message"`
	Replacements []string `json:"replacements"`
}

// End returns the exclusive plain-text end offset.
func (s Suggestion) End() int {
	return s.Offset + s.Length
}

// LiveSpan is a suggestion's range in document positions.
type LiveSpan struct {
	From int `json:"from"`
	To   int `json:"to"`
}

// DisplaySpan is a coalesced highlight run. Start and End are plain-text
// offsets, From and To the matching document positions.
type DisplaySpan struct {
	Start    int      `json:"start"`
	End      int      `json:"end"`
	Category Category `json:"category"`
	From     int      `json:"from"`
	To       int      `json:"to"`
}

// Document is the editing surface the tracker reads positions from and
// applies fixes to.
type Document interface {
	PlainText() string
	PositionMap() PositionMap
	Replace(from, to int, text string) (StepMap, error)
}

var (
	// ErrNotFound is returned by ApplyFix when the suggestion is no longer held.
	ErrNotFound = errors.New("suggestion not found")
	// ErrInvalidRange reports a plain-text range outside the current projection.
	ErrInvalidRange = errors.New("range outside plain text")
)
