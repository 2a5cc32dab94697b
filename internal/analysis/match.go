// Package analysis runs spelling, grammar and style checks over plain text
// and turns provider output into tracker suggestions.
package analysis

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"penwise/internal/tracker"
)

// MaxReplacements caps the replacement list kept per suggestion.
const MaxReplacements = 5

// suggestionNamespace seeds deterministic suggestion ids.
var suggestionNamespace = uuid.MustParse("6ba7b810-9dad-11d1-80b4-00c04fd430c8")

// Match is a provider finding as reported upstream. Offset and Length are
// rune offsets into the checked text.
type Match struct {
	ID           string   `json:"id,omitempty" msgpack:"id"`
	Provider     string   `json:"provider" msgpack:"provider"`
	Rule         string   `json:"rule" msgpack:"rule"`
	Category     string   `json:"category" msgpack:"category"`
	Offset       int      `json:"offset" msgpack:"offset"`
	Length       int      `json:"length" msgpack:"length"`
	Message      string   `json:"message" msgpack:"message"`
	Replacements []string `json:"replacements,omitempty" msgpack:"replacements"`
}

// Provider checks text and reports matches.
type Provider interface {
	Name() string
	Check(ctx context.Context, text string) ([]Match, error)
}

// CategoryFor maps an upstream category label to a tracker category.
func CategoryFor(label string) tracker.Category {
	upper := strings.ToUpper(label)
	switch {
	case strings.Contains(upper, "TYPO") || strings.Contains(upper, "SPELL"):
		return tracker.CategorySpelling
	case strings.Contains(upper, "STYLE") || strings.Contains(upper, "REDUNDANCY") ||
		strings.Contains(upper, "PLAIN_ENGLISH") || strings.Contains(upper, "READABILITY"):
		return tracker.CategoryStyle
	default:
		return tracker.CategoryGrammar
	}
}

// Normalize converts matches into suggestions. Matches with a negative
// offset or a non-positive length are dropped. Missing ids are derived from
// provider, rule and range so the same finding keeps its id across passes.
func Normalize(matches []Match) []tracker.Suggestion {
	out := make([]tracker.Suggestion, 0, len(matches))
	for _, m := range matches {
		if m.Offset < 0 || m.Length <= 0 {
			continue
		}
		id := m.ID
		if id == "" {
			id = SuggestionID(m)
		}
		out = append(out, tracker.Suggestion{
			ID:           id,
			Offset:       m.Offset,
			Length:       m.Length,
			Category:     CategoryFor(m.Category),
			Message:      strings.TrimSpace(m.Message),
			Replacements: cleanReplacements(m.Replacements),
		})
	}
	return out
}

// SuggestionID derives a stable id for a match.
func SuggestionID(m Match) string {
	key := fmt.Sprintf("%s:%s:%d:%d", m.Provider, m.Rule, m.Offset, m.Length)
	return uuid.NewSHA1(suggestionNamespace, []byte(key)).String()
}

func cleanReplacements(in []string) []string {
	out := make([]string, 0, min(len(in), MaxReplacements))
	seen := make(map[string]struct{}, len(in))
	for _, r := range in {
		if strings.TrimSpace(r) == "" && r != "" {
			r = " "
		}
		if _, dup := seen[r]; dup {
			continue
		}
		seen[r] = struct{}{}
		out = append(out, r)
		if len(out) == MaxReplacements {
			break
		}
	}
	return out
}
