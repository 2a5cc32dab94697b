package main

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/fatih/color"

	"penwise/internal/analysis"
	"penwise/internal/tracker"
)

type palette struct {
	spelling *color.Color
	grammar  *color.Color
	style    *color.Color
	location *color.Color
	hint     *color.Color
	ok       *color.Color
}

func newPalette(enabled bool) palette {
	p := palette{
		spelling: color.New(color.FgRed, color.Bold),
		grammar:  color.New(color.FgYellow, color.Bold),
		style:    color.New(color.FgBlue, color.Bold),
		location: color.New(color.Bold),
		hint:     color.New(color.FgCyan),
		ok:       color.New(color.FgGreen, color.Bold),
	}
	for _, c := range []*color.Color{p.spelling, p.grammar, p.style, p.location, p.hint, p.ok} {
		if enabled {
			c.EnableColor()
		} else {
			c.DisableColor()
		}
	}
	return p
}

func (p palette) category(c tracker.Category) *color.Color {
	switch c {
	case tracker.CategorySpelling:
		return p.spelling
	case tracker.CategoryGrammar:
		return p.grammar
	default:
		return p.style
	}
}

// lineIndex maps rune offsets to 1-based line and column numbers.
type lineIndex struct {
	lines  [][]rune
	starts []int
}

func newLineIndex(text string) lineIndex {
	var idx lineIndex
	offset := 0
	for _, line := range strings.Split(text, "\n") {
		runes := []rune(line)
		idx.lines = append(idx.lines, runes)
		idx.starts = append(idx.starts, offset)
		offset += len(runes) + 1
	}
	return idx
}

func (l lineIndex) locate(offset int) (line, col int) {
	i := sort.Search(len(l.starts), func(i int) bool { return l.starts[i] > offset }) - 1
	if i < 0 {
		i = 0
	}
	return i + 1, offset - l.starts[i] + 1
}

// sortedSuggestions orders by offset, then by category priority.
func sortedSuggestions(in []tracker.Suggestion) []tracker.Suggestion {
	out := make([]tracker.Suggestion, len(in))
	copy(out, in)
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Offset != out[j].Offset {
			return out[i].Offset < out[j].Offset
		}
		return out[i].Category.Priority() > out[j].Category.Priority()
	})
	return out
}

// renderPretty prints one block per suggestion with the offending line and
// a caret marker, then a summary.
func renderPretty(w io.Writer, name, text string, res analysis.Result, p palette) {
	idx := newLineIndex(text)
	for _, s := range sortedSuggestions(res.Suggestions) {
		line, col := idx.locate(s.Offset)
		fmt.Fprintf(w, "%s %s %s\n",
			p.location.Sprintf("%s:%d:%d:", name, line, col),
			p.category(s.Category).Sprint(string(s.Category)+":"),
			s.Message)

		src := idx.lines[line-1]
		width := min(s.Length, len(src)-(col-1))
		fmt.Fprintf(w, "    %s\n", string(src))
		if width > 0 {
			fmt.Fprintf(w, "    %s%s\n", strings.Repeat(" ", col-1), p.category(s.Category).Sprint(strings.Repeat("^", width)))
		}
		if len(s.Replacements) > 0 {
			quoted := make([]string, len(s.Replacements))
			for i, r := range s.Replacements {
				quoted[i] = fmt.Sprintf("%q", r)
			}
			fmt.Fprintf(w, "    %s %s\n", p.hint.Sprint("suggest:"), strings.Join(quoted, ", "))
		}
	}
	renderSummary(w, res, p)
}

func renderSummary(w io.Writer, res analysis.Result, p palette) {
	counts := map[tracker.Category]int{}
	for _, s := range res.Suggestions {
		counts[s.Category]++
	}
	if len(res.Suggestions) == 0 {
		fmt.Fprintln(w, p.ok.Sprint("no suggestions"))
	} else {
		fmt.Fprintf(w, "%d suggestions (%s %d, %s %d, %s %d)\n", len(res.Suggestions),
			p.spelling.Sprint("spelling"), counts[tracker.CategorySpelling],
			p.grammar.Sprint("grammar"), counts[tracker.CategoryGrammar],
			p.style.Sprint("style"), counts[tracker.CategoryStyle])
	}
	st := res.Stats
	fmt.Fprintf(w, "%d words, %d sentences, reading ease %.1f, grade %.1f, %ds to read\n",
		st.Words, st.Sentences, st.ReadingEase, st.GradeLevel, st.ReadingTimeSeconds)
	for _, ps := range res.Providers {
		if ps.Error != "" {
			fmt.Fprintf(w, "%s %s: %s\n", p.grammar.Sprint("provider failed:"), ps.Name, ps.Error)
		}
	}
}

// renderHighlighted writes text with each decoration run colored by its
// category.
func renderHighlighted(w io.Writer, text string, spans []tracker.DisplaySpan, p palette) {
	runes := []rune(text)
	pos := 0
	for _, span := range spans {
		if span.Start < pos || span.End > len(runes) {
			continue
		}
		io.WriteString(w, string(runes[pos:span.Start]))
		io.WriteString(w, p.category(span.Category).Sprint(string(runes[span.Start:span.End])))
		pos = span.End
	}
	io.WriteString(w, string(runes[pos:]))
	if !strings.HasSuffix(text, "\n") {
		io.WriteString(w, "\n")
	}
}

type jsonReport struct {
	File        string                    `json:"file"`
	Suggestions []tracker.Suggestion      `json:"suggestions"`
	Decorations []tracker.DisplaySpan     `json:"decorations"`
	Stats       analysis.Stats            `json:"stats"`
	Providers   []analysis.ProviderStatus `json:"providers"`
}

func renderJSON(w io.Writer, name string, res analysis.Result, spans []tracker.DisplaySpan) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(jsonReport{
		File:        name,
		Suggestions: sortedSuggestions(res.Suggestions),
		Decorations: spans,
		Stats:       res.Stats,
		Providers:   res.Providers,
	})
}
