package analysis

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"
)

var wordPattern = regexp.MustCompile(`[A-Za-z']+`)
var sentencePattern = regexp.MustCompile(`[^.!?\n]+[.!?]*`)
var repeatedPunctPattern = regexp.MustCompile(`[!?,;]{2,}`)
var multiSpacePattern = regexp.MustCompile(`[ \t]{2,}`)
var vowelPattern = regexp.MustCompile(`[aeiouy]`)
var hardClusterPattern = regexp.MustCompile(`[bcdfghjklmnpqrstvwxz]{6,}`)
var passivePattern = regexp.MustCompile(`(?i)\b(?:am|is|are|was|were|be|been|being)\s+[a-z]+ed\b`)

// longSentenceWords is the word count above which a sentence is flagged.
const longSentenceWords = 35

// Heuristics is an offline provider built from regular expressions. It is
// always available and backs up remote providers when they fail.
type Heuristics struct{}

func NewHeuristics() *Heuristics {
	return &Heuristics{}
}

func (h *Heuristics) Name() string {
	return "heuristic"
}

func (h *Heuristics) Check(ctx context.Context, text string) ([]Match, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	idx := newRuneIndex(text)
	var matches []Match
	add := func(rule, category string, start, end int, message string, replacements ...string) {
		offset := idx.at(start)
		matches = append(matches, Match{
			Provider:     h.Name(),
			Rule:         rule,
			Category:     category,
			Offset:       offset,
			Length:       idx.at(end) - offset,
			Message:      message,
			Replacements: replacements,
		})
	}

	words := wordPattern.FindAllStringIndex(text, -1)
	for i, w := range words {
		word := text[w[0]:w[1]]
		if word != strings.ToUpper(word) && looksMisspelled(strings.ToLower(word)) {
			add("HEURISTIC_SPELLING", "TYPOS", w[0], w[1], fmt.Sprintf("%q looks misspelled.", word))
		}
		if i == 0 {
			continue
		}
		prev := words[i-1]
		gap := text[prev[1]:w[0]]
		if gap != "" && strings.TrimSpace(gap) == "" && !strings.Contains(gap, "\n") &&
			strings.EqualFold(text[prev[0]:prev[1]], word) {
			add("HEURISTIC_REPEATED_WORD", "GRAMMAR", prev[1], w[1], fmt.Sprintf("Repeated word %q.", word), "")
		}
	}

	for _, s := range sentencePattern.FindAllStringIndex(text, -1) {
		start, end := s[0], s[1]
		sentence := text[start:end]
		trimmed := strings.TrimLeft(sentence, " \t")
		start += len(sentence) - len(trimmed)
		if strings.TrimSpace(trimmed) == "" {
			continue
		}
		if n := len(wordPattern.FindAllString(trimmed, -1)); n > longSentenceWords {
			add("HEURISTIC_LONG_SENTENCE", "STYLE", start, end,
				fmt.Sprintf("This sentence has %d words. Consider splitting it.", n))
		}
		first, size := utf8.DecodeRuneInString(trimmed)
		if unicode.IsLower(first) {
			add("HEURISTIC_LOWERCASE_START", "GRAMMAR", start, start+size,
				"Sentences should start with a capital letter.", string(unicode.ToUpper(first)))
		}
	}

	for _, m := range passivePattern.FindAllStringIndex(text, -1) {
		add("HEURISTIC_PASSIVE_VOICE", "STYLE", m[0], m[1], "Passive voice. Consider an active construction.")
	}
	for _, m := range multiSpacePattern.FindAllStringIndex(text, -1) {
		add("HEURISTIC_WHITESPACE", "STYLE", m[0], m[1], "Multiple spaces.", " ")
	}
	for _, m := range repeatedPunctPattern.FindAllStringIndex(text, -1) {
		add("HEURISTIC_PUNCTUATION", "GRAMMAR", m[0], m[1], "Repeated punctuation.", text[m[0]:m[0]+1])
	}
	return matches, nil
}

func looksMisspelled(w string) bool {
	if len(w) <= 2 {
		return false
	}
	if vowelPattern.FindString(w) == "" {
		return true
	}
	return hardClusterPattern.FindString(w) != ""
}

// runeIndex converts byte offsets of a string to rune offsets.
type runeIndex struct {
	byteToRune []int
}

func newRuneIndex(text string) runeIndex {
	m := make([]int, len(text)+1)
	runes := 0
	for i := range text {
		m[i] = runes
		runes++
	}
	m[len(text)] = runes
	// continuation bytes keep the offset of their rune start
	for i := 1; i < len(text); i++ {
		if !utf8.RuneStart(text[i]) {
			m[i] = m[i-1]
		}
	}
	return runeIndex{byteToRune: m}
}

func (r runeIndex) at(b int) int {
	return r.byteToRune[b]
}
