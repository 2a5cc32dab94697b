package analysis

import (
	"context"
	"strings"
	"testing"
)

func findRule(matches []Match, rule string) []Match {
	var out []Match
	for _, m := range matches {
		if m.Rule == rule {
			out = append(out, m)
		}
	}
	return out
}

func TestHeuristicsRules(t *testing.T) {
	longSentence := "Alpha " + strings.TrimSpace(strings.Repeat("beta alpha ", 18)) + "."

	cases := []struct {
		name        string
		text        string
		rule        string
		offset      int
		length      int
		replacement string
	}{
		{name: "repeated word", text: "We saw the the cat.", rule: "HEURISTIC_REPEATED_WORD", offset: 10, length: 4, replacement: ""},
		{name: "repeated word after multibyte", text: "Café the the end.", rule: "HEURISTIC_REPEATED_WORD", offset: 8, length: 4, replacement: ""},
		{name: "lowercase start", text: "hello there.", rule: "HEURISTIC_LOWERCASE_START", offset: 0, length: 1, replacement: "H"},
		{name: "passive voice", text: "The report was finished.", rule: "HEURISTIC_PASSIVE_VOICE", offset: 11, length: 12},
		{name: "double space", text: "Two  spaces.", rule: "HEURISTIC_WHITESPACE", offset: 3, length: 2, replacement: " "},
		{name: "repeated punctuation", text: "Wait!! Now.", rule: "HEURISTIC_PUNCTUATION", offset: 4, length: 2, replacement: "!"},
		{name: "vowel-less word", text: "A strngth test.", rule: "HEURISTIC_SPELLING", offset: 2, length: 7},
		{name: "long sentence", text: longSentence, rule: "HEURISTIC_LONG_SENTENCE", offset: 0, length: len(longSentence)},
	}

	h := NewHeuristics()
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			matches, err := h.Check(context.Background(), tc.text)
			if err != nil {
				t.Fatalf("Check() error = %v", err)
			}
			found := findRule(matches, tc.rule)
			if len(found) != 1 {
				t.Fatalf("expected one %s match, got %+v", tc.rule, matches)
			}
			m := found[0]
			if m.Offset != tc.offset || m.Length != tc.length {
				t.Fatalf("range = %d+%d, want %d+%d", m.Offset, m.Length, tc.offset, tc.length)
			}
			if tc.replacement != "" || len(m.Replacements) > 0 {
				if len(m.Replacements) != 1 || m.Replacements[0] != tc.replacement {
					t.Fatalf("replacements = %q, want [%q]", m.Replacements, tc.replacement)
				}
			}
		})
	}
}

func TestHeuristicsCleanText(t *testing.T) {
	matches, err := NewHeuristics().Check(context.Background(), "The BBC reported a calm night. Nothing happened.")
	if err != nil {
		t.Fatalf("Check() error = %v", err)
	}
	if len(matches) != 0 {
		t.Fatalf("expected no findings, got %+v", matches)
	}
}

func TestHeuristicsCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := NewHeuristics().Check(ctx, "text"); err == nil {
		t.Fatal("expected context error")
	}
}

func TestComputeStats(t *testing.T) {
	st := ComputeStats("The cat sat. The dog ran.")
	if st.Words != 6 || st.Sentences != 2 || st.Syllables != 6 {
		t.Fatalf("unexpected counts %+v", st)
	}
	if st.AvgSentenceLength != 3 || st.ReadingEase != 119.2 || st.GradeLevel != -2.6 {
		t.Fatalf("unexpected scores %+v", st)
	}
	if st.ReadingTimeSeconds != 2 {
		t.Fatalf("reading time = %d, want 2", st.ReadingTimeSeconds)
	}

	if empty := ComputeStats("  "); empty != (Stats{}) {
		t.Fatalf("expected zero stats, got %+v", empty)
	}
}

func TestCountSyllables(t *testing.T) {
	cases := map[string]int{
		"cat":       1,
		"make":      1,
		"table":     2,
		"reading":   2,
		"beautiful": 3,
		"rhythm":    1,
	}
	for word, want := range cases {
		if got := countSyllables(word); got != want {
			t.Errorf("countSyllables(%q) = %d, want %d", word, got, want)
		}
	}
}
