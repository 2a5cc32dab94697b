package analysis

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
	"unicode/utf16"

	"golang.org/x/time/rate"
)

// LanguageTool checks text against a LanguageTool server.
type LanguageTool struct {
	endpoint string
	language string
	client   *http.Client
	limiter  *rate.Limiter
}

// NewLanguageTool creates a client for baseURL. perMinute bounds outgoing
// requests; zero or less disables throttling.
func NewLanguageTool(baseURL, language string, perMinute int) *LanguageTool {
	if baseURL == "" {
		baseURL = "http://localhost:8010"
	}
	if language == "" {
		language = "en-US"
	}
	limiter := rate.NewLimiter(rate.Inf, 0)
	if perMinute > 0 {
		limiter = rate.NewLimiter(rate.Every(time.Minute/time.Duration(perMinute)), max(1, perMinute/6))
	}
	return &LanguageTool{
		endpoint: strings.TrimRight(baseURL, "/") + "/v2/check",
		language: language,
		client:   &http.Client{Timeout: 45 * time.Second},
		limiter:  limiter,
	}
}

func (lt *LanguageTool) Name() string {
	return "languagetool"
}

type languageToolResponse struct {
	Matches []struct {
		Message      string `json:"message"`
		Offset       int    `json:"offset"`
		Length       int    `json:"length"`
		Replacements []struct {
			Value string `json:"value"`
		} `json:"replacements"`
		Rule struct {
			ID       string `json:"id"`
			Category struct {
				ID string `json:"id"`
			} `json:"category"`
		} `json:"rule"`
	} `json:"matches"`
}

// Check posts text to /v2/check and converts the UTF-16 offsets LanguageTool
// reports into rune offsets.
func (lt *LanguageTool) Check(ctx context.Context, text string) ([]Match, error) {
	if strings.TrimSpace(text) == "" {
		return nil, nil
	}
	if err := lt.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("languagetool: wait: %w", err)
	}

	vals := url.Values{}
	vals.Set("language", lt.language)
	vals.Set("text", text)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, lt.endpoint, strings.NewReader(vals.Encode()))
	if err != nil {
		return nil, fmt.Errorf("languagetool: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	resp, err := lt.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("languagetool: %w", err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("languagetool: read body: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("languagetool: status %d", resp.StatusCode)
	}

	var parsed languageToolResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("languagetool: decode: %w", err)
	}

	units := utf16Index(text)
	matches := make([]Match, 0, len(parsed.Matches))
	for _, m := range parsed.Matches {
		start, end := m.Offset, m.Offset+m.Length
		if start < 0 || end >= len(units) || start >= end {
			continue
		}
		offset := units[start]
		replacements := make([]string, 0, len(m.Replacements))
		for _, r := range m.Replacements {
			replacements = append(replacements, r.Value)
		}
		matches = append(matches, Match{
			Provider:     lt.Name(),
			Rule:         m.Rule.ID,
			Category:     m.Rule.Category.ID,
			Offset:       offset,
			Length:       units[end] - offset,
			Message:      m.Message,
			Replacements: replacements,
		})
	}
	return matches, nil
}

// utf16Index maps every UTF-16 code unit offset of text, plus the end, to a
// rune offset. The second unit of a surrogate pair maps to the rune after it.
func utf16Index(text string) []int {
	index := make([]int, 0, len(text)+1)
	runes := 0
	for _, r := range text {
		index = append(index, runes)
		if utf16.RuneLen(r) == 2 {
			index = append(index, runes+1)
		}
		runes++
	}
	return append(index, runes)
}
