package analysis

import (
	"reflect"
	"testing"

	"penwise/internal/tracker"
)

func TestCategoryFor(t *testing.T) {
	cases := []struct {
		label string
		want  tracker.Category
	}{
		{"TYPOS", tracker.CategorySpelling},
		{"MISSPELLING", tracker.CategorySpelling},
		{"spelling", tracker.CategorySpelling},
		{"STYLE", tracker.CategoryStyle},
		{"REDUNDANCY", tracker.CategoryStyle},
		{"GRAMMAR", tracker.CategoryGrammar},
		{"PUNCTUATION", tracker.CategoryGrammar},
		{"", tracker.CategoryGrammar},
	}

	for _, tc := range cases {
		t.Run(tc.label, func(t *testing.T) {
			if got := CategoryFor(tc.label); got != tc.want {
				t.Fatalf("CategoryFor(%q) = %q, want %q", tc.label, got, tc.want)
			}
		})
	}
}

func TestNormalize(t *testing.T) {
	matches := []Match{
		{Provider: "lt", Rule: "MORFOLOGIK", Category: "TYPOS", Offset: 0, Length: 3, Message: " Possible typo. ",
			Replacements: []string{"The", "Tea", "The", "Ten", "Tel", "Toe", "Tech"}},
		{ID: "given", Category: "STYLE", Offset: 4, Length: 2},
		{Category: "GRAMMAR", Offset: -1, Length: 2},
		{Category: "GRAMMAR", Offset: 2, Length: 0},
	}

	got := Normalize(matches)
	if len(got) != 2 {
		t.Fatalf("expected 2 suggestions, got %+v", got)
	}

	first := got[0]
	if first.ID != SuggestionID(matches[0]) || first.ID == "" {
		t.Fatalf("unexpected synthesized id %q", first.ID)
	}
	if first.Category != tracker.CategorySpelling || first.Message != "Possible typo." {
		t.Fatalf("unexpected suggestion %+v", first)
	}
	wantReplacements := []string{"The", "Tea", "Ten", "Tel", "Toe"}
	if !reflect.DeepEqual(first.Replacements, wantReplacements) {
		t.Fatalf("replacements = %v, want %v", first.Replacements, wantReplacements)
	}
	if got[1].ID != "given" || got[1].Category != tracker.CategoryStyle {
		t.Fatalf("unexpected second suggestion %+v", got[1])
	}
}

func TestSuggestionIDIsStable(t *testing.T) {
	m := Match{Provider: "heuristic", Rule: "HEURISTIC_SPELLING", Offset: 4, Length: 3}
	if SuggestionID(m) != SuggestionID(m) {
		t.Fatal("expected the same id for the same match")
	}
	moved := m
	moved.Offset = 5
	if SuggestionID(m) == SuggestionID(moved) {
		t.Fatal("expected a different id for a different range")
	}
}
