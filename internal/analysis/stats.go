package analysis

import (
	"math"
	"strings"
)

// Stats summarises the readability of a text.
type Stats struct {
	Words              int     `json:"words"`
	Sentences          int     `json:"sentences"`
	Syllables          int     `json:"syllables"`
	AvgSentenceLength  float64 `json:"avgSentenceLength"`
	ReadingEase        float64 `json:"readingEase"`
	GradeLevel         float64 `json:"gradeLevel"`
	ReadingTimeSeconds int     `json:"readingTimeSeconds"`
}

// wordsPerMinute is the reading speed used for ReadingTimeSeconds.
const wordsPerMinute = 238

// ComputeStats counts words, sentences and syllables and derives the Flesch
// reading ease and Flesch-Kincaid grade.
func ComputeStats(text string) Stats {
	words := wordPattern.FindAllString(text, -1)
	var st Stats
	for _, w := range words {
		if strings.Trim(w, "'") == "" {
			continue
		}
		st.Words++
		st.Syllables += countSyllables(w)
	}
	if st.Words == 0 {
		return st
	}
	for _, s := range sentencePattern.FindAllString(text, -1) {
		if wordPattern.MatchString(s) {
			st.Sentences++
		}
	}
	st.Sentences = max(st.Sentences, 1)

	wordsPerSentence := float64(st.Words) / float64(st.Sentences)
	syllablesPerWord := float64(st.Syllables) / float64(st.Words)
	st.AvgSentenceLength = round1(wordsPerSentence)
	st.ReadingEase = round1(206.835 - 1.015*wordsPerSentence - 84.6*syllablesPerWord)
	st.GradeLevel = round1(0.39*wordsPerSentence + 11.8*syllablesPerWord - 15.59)
	st.ReadingTimeSeconds = int(math.Ceil(float64(st.Words) * 60 / wordsPerMinute))
	return st
}

// countSyllables estimates syllables as vowel groups, dropping a silent
// trailing e. Every word has at least one.
func countSyllables(word string) int {
	w := strings.ToLower(strings.Trim(word, "'"))
	count := 0
	inGroup := false
	for _, r := range w {
		vowel := strings.ContainsRune("aeiouy", r)
		if vowel && !inGroup {
			count++
		}
		inGroup = vowel
	}
	if count > 1 && strings.HasSuffix(w, "e") && !strings.HasSuffix(w, "le") {
		count--
	}
	return max(count, 1)
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}
