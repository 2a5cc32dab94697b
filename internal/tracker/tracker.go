package tracker

import (
	"fmt"
	"unicode/utf8"
)

// Option configures a Tracker.
type Option func(*Tracker)

// WithInvalidateTouched drops a suggestion whenever an edit changes text
// inside its span, instead of mapping the span through the edit.
func WithInvalidateTouched() Option {
	return func(t *Tracker) {
		t.invalidateTouched = true
	}
}

type entry struct {
	suggestion Suggestion
	span       LiveSpan
}

// Tracker owns the active suggestion set of one document and the live
// spans derived from it. It is not safe for concurrent use; the owner
// serialises calls.
type Tracker struct {
	doc               Document
	positions         PositionMap
	items             []entry
	invalidateTouched bool
}

// IngestReport counts what Ingest kept and why it dropped the rest.
type IngestReport struct {
	Accepted    int `json:"accepted"`
	Invalid     int `json:"invalid"`
	Duplicate   int `json:"duplicate"`
	OutOfBounds int `json:"outOfBounds"`
}

// SyncReport counts the outcome of SyncOnDocumentEdit.
type SyncReport struct {
	Kept    int `json:"kept"`
	Dropped int `json:"dropped"`
}

// AppliedFix describes a fix that was written into the document. From and
// To cover the inserted replacement in the edited document.
type AppliedFix struct {
	ID          string  `json:"id"`
	Offset      int     `json:"offset"`
	Length      int     `json:"length"`
	Replacement string  `json:"replacement"`
	Delta       int     `json:"delta"`
	From        int     `json:"from"`
	To          int     `json:"to"`
	Step        StepMap `json:"-"`
}

func New(doc Document, opts ...Option) *Tracker {
	t := &Tracker{
		doc:       doc,
		positions: doc.PositionMap(),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Ingest replaces the held set with the latest analysis pass. Entries with
// a non-positive length, a negative offset, an unknown category, an empty or
// repeated id, or a range past the current text are dropped individually.
func (t *Tracker) Ingest(suggestions []Suggestion) IngestReport {
	t.positions = t.doc.PositionMap()

	var report IngestReport
	items := make([]entry, 0, len(suggestions))
	seen := make(map[string]struct{}, len(suggestions))
	for _, s := range suggestions {
		if s.ID == "" || s.Length <= 0 || s.Offset < 0 || !s.Category.Valid() {
			report.Invalid++
			continue
		}
		if _, dup := seen[s.ID]; dup {
			report.Duplicate++
			continue
		}
		from, to, ok := t.positions.Range(s.Offset, s.Length)
		if !ok {
			report.OutOfBounds++
			continue
		}
		seen[s.ID] = struct{}{}
		s.Replacements = append([]string(nil), s.Replacements...)
		items = append(items, entry{suggestion: s, span: LiveSpan{From: from, To: to}})
	}
	t.items = items
	report.Accepted = len(items)
	return report
}

// ApplyFix writes replacement over the suggestion's live span and removes
// it. Every remaining suggestion whose offset is strictly greater than the
// fixed one moves by the length delta; the others keep their offsets.
// Suggestions that no longer fit the text afterwards are dropped. A missing
// id returns ErrNotFound and changes nothing.
func (t *Tracker) ApplyFix(id, replacement string) (AppliedFix, error) {
	idx := t.indexOf(id)
	if idx < 0 {
		return AppliedFix{}, ErrNotFound
	}
	fixed := t.items[idx]

	step, err := t.doc.Replace(fixed.span.From, fixed.span.To, replacement)
	if err != nil {
		return AppliedFix{}, fmt.Errorf("apply fix %s: %w", id, err)
	}

	delta := utf8.RuneCountInString(replacement) - fixed.suggestion.Length
	t.positions = t.doc.PositionMap()

	remaining := make([]entry, 0, len(t.items)-1)
	for i, e := range t.items {
		if i == idx {
			continue
		}
		if e.suggestion.Offset > fixed.suggestion.Offset {
			e.suggestion.Offset += delta
		}
		from, to, ok := t.positions.Range(e.suggestion.Offset, e.suggestion.Length)
		if !ok {
			continue
		}
		e.span = LiveSpan{From: from, To: to}
		remaining = append(remaining, e)
	}
	t.items = remaining

	return AppliedFix{
		ID:          id,
		Offset:      fixed.suggestion.Offset,
		Length:      fixed.suggestion.Length,
		Replacement: replacement,
		Delta:       delta,
		From:        step.Map(fixed.span.From, -1),
		To:          step.Map(fixed.span.To, 1),
		Step:        step,
	}, nil
}

// Dismiss removes a suggestion without touching the document.
func (t *Tracker) Dismiss(id string) bool {
	idx := t.indexOf(id)
	if idx < 0 {
		return false
	}
	t.items = append(t.items[:idx], t.items[idx+1:]...)
	return true
}

// SyncOnDocumentEdit re-resolves every live span after the document was
// changed by mapping. Spans that collapse, invert or leave the text are
// dropped.
func (t *Tracker) SyncOnDocumentEdit(mapping Mapping) SyncReport {
	t.positions = t.doc.PositionMap()

	var report SyncReport
	kept := t.items[:0]
	for _, e := range t.items {
		from, to, ok := mapping.mapSpan(e.span.From, e.span.To, t.invalidateTouched)
		if !ok || from >= to {
			report.Dropped++
			continue
		}
		offset := t.positions.Offset(from)
		length := t.positions.Offset(to) - offset
		nf, nt, ok := t.positions.Range(offset, length)
		if !ok {
			report.Dropped++
			continue
		}
		e.suggestion.Offset = offset
		e.suggestion.Length = length
		e.span = LiveSpan{From: nf, To: nt}
		kept = append(kept, e)
	}
	for i := len(kept); i < len(t.items); i++ {
		t.items[i] = entry{}
	}
	t.items = kept
	report.Kept = len(kept)
	return report
}

// RecomputeDecorations labels every character of doc's plain-text
// projection with the highest-priority category covering it and coalesces
// equal runs. It does not modify the tracker.
func (t *Tracker) RecomputeDecorations(doc Document) []DisplaySpan {
	positions := doc.PositionMap()
	n := positions.Len()
	spans := make([]DisplaySpan, 0)
	if n == 0 {
		return spans
	}

	winningCategory := make([]Category, n)
	winningPriority := make([]int, n)
	for _, e := range t.items {
		priority := e.suggestion.Category.Priority()
		start := max(e.suggestion.Offset, 0)
		end := min(e.suggestion.End(), n)
		for i := start; i < end; i++ {
			if priority > winningPriority[i] {
				winningPriority[i] = priority
				winningCategory[i] = e.suggestion.Category
			}
		}
	}

	for i := 0; i < n; {
		category := winningCategory[i]
		j := i + 1
		for j < n && winningCategory[j] == category {
			j++
		}
		if category != "" {
			spans = append(spans, DisplaySpan{
				Start:    i,
				End:      j,
				Category: category,
				From:     positions.At(i),
				To:       positions.At(j-1) + 1,
			})
		}
		i = j
	}
	return spans
}

// Decorations is RecomputeDecorations over the tracked document.
func (t *Tracker) Decorations() []DisplaySpan {
	return t.RecomputeDecorations(t.doc)
}

// Suggestions returns a copy of the held set in ingest order.
func (t *Tracker) Suggestions() []Suggestion {
	out := make([]Suggestion, 0, len(t.items))
	for _, e := range t.items {
		s := e.suggestion
		s.Replacements = append([]string(nil), s.Replacements...)
		out = append(out, s)
	}
	return out
}

// Span returns the live span of a held suggestion.
func (t *Tracker) Span(id string) (LiveSpan, bool) {
	idx := t.indexOf(id)
	if idx < 0 {
		return LiveSpan{}, false
	}
	return t.items[idx].span, true
}

func (t *Tracker) Len() int {
	return len(t.items)
}

func (t *Tracker) indexOf(id string) int {
	for i, e := range t.items {
		if e.suggestion.ID == id {
			return i
		}
	}
	return -1
}
