package assist

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"penwise/internal/cache"
)

const maxCitationResults = 25

// Citation is one scholarly work matching a search.
type Citation struct {
	Title     string   `json:"title" msgpack:"title"`
	Authors   []string `json:"authors" msgpack:"authors"`
	Year      int      `json:"year,omitempty" msgpack:"year"`
	Venue     string   `json:"venue,omitempty" msgpack:"venue"`
	DOI       string   `json:"doi,omitempty" msgpack:"doi"`
	URL       string   `json:"url,omitempty" msgpack:"url"`
	Citations int      `json:"citedBy" msgpack:"cited_by"`
}

// Citations searches an OpenAlex-compatible works API.
type Citations struct {
	baseURL string
	mailto  string
	client  *http.Client
	limiter *rate.Limiter
	cache   cache.Store
	logger  *zap.SugaredLogger
}

// NewCitations creates a client for baseURL. mailto, when set, is sent as
// the polite-pool contact address.
func NewCitations(baseURL, mailto string, store cache.Store, limiter *rate.Limiter, logger *zap.SugaredLogger) *Citations {
	if baseURL == "" {
		baseURL = "https://api.openalex.org"
	}
	if limiter == nil {
		limiter = rate.NewLimiter(rate.Every(100*time.Millisecond), 1)
	}
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &Citations{
		baseURL: strings.TrimRight(baseURL, "/"),
		mailto:  mailto,
		client:  &http.Client{Timeout: 20 * time.Second},
		limiter: limiter,
		cache:   store,
		logger:  logger,
	}
}

type worksResponse struct {
	Results []struct {
		DisplayName     string `json:"display_name"`
		PublicationYear int    `json:"publication_year"`
		DOI             string `json:"doi"`
		ID              string `json:"id"`
		CitedByCount    int    `json:"cited_by_count"`
		Authorships     []struct {
			Author struct {
				DisplayName string `json:"display_name"`
			} `json:"author"`
		} `json:"authorships"`
		PrimaryLocation *struct {
			Source *struct {
				DisplayName string `json:"display_name"`
			} `json:"source"`
		} `json:"primary_location"`
	} `json:"results"`
}

// Search returns up to limit works matching query, most relevant first.
func (c *Citations) Search(ctx context.Context, query string, limit int) ([]Citation, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, ErrEmptyQuery
	}
	if limit <= 0 || limit > maxCitationResults {
		limit = 10
	}
	key := "citations:" + strconv.Itoa(limit) + ":" + strings.ToLower(query)
	if c.cache != nil {
		if hits, ok := cache.Load[[]Citation](ctx, c.cache, key); ok {
			return hits, nil
		}
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("citations: wait: %w", err)
	}
	params := url.Values{}
	params.Set("search", query)
	params.Set("per-page", strconv.Itoa(limit))
	if c.mailto != "" {
		params.Set("mailto", c.mailto)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/works?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("citations: create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("citations: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("citations: status %d", resp.StatusCode)
	}

	var parsed worksResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("citations: decode: %w", err)
	}

	hits := make([]Citation, 0, len(parsed.Results))
	for _, w := range parsed.Results {
		if strings.TrimSpace(w.DisplayName) == "" {
			continue
		}
		hit := Citation{
			Title:     w.DisplayName,
			Year:      w.PublicationYear,
			DOI:       strings.TrimPrefix(w.DOI, "https://doi.org/"),
			URL:       w.ID,
			Citations: w.CitedByCount,
			Authors:   make([]string, 0, len(w.Authorships)),
		}
		if w.DOI != "" {
			hit.URL = w.DOI
		}
		for _, a := range w.Authorships {
			if a.Author.DisplayName != "" {
				hit.Authors = append(hit.Authors, a.Author.DisplayName)
			}
		}
		if w.PrimaryLocation != nil && w.PrimaryLocation.Source != nil {
			hit.Venue = w.PrimaryLocation.Source.DisplayName
		}
		hits = append(hits, hit)
	}

	if c.cache != nil {
		if err := cache.Save(ctx, c.cache, key, hits); err != nil {
			c.logger.Warnw("citation cache encode failed", "query", query, "error", err)
		}
	}
	return hits, nil
}

// Format renders a citation in a compact author-year style.
func (c Citation) Format() string {
	var b strings.Builder
	switch len(c.Authors) {
	case 0:
	case 1:
		b.WriteString(c.Authors[0])
	case 2:
		b.WriteString(c.Authors[0] + " and " + c.Authors[1])
	default:
		b.WriteString(c.Authors[0] + " et al.")
	}
	if c.Year > 0 {
		if b.Len() > 0 {
			b.WriteString(" ")
		}
		b.WriteString("(" + strconv.Itoa(c.Year) + ")")
	}
	if b.Len() > 0 {
		b.WriteString(". ")
	}
	b.WriteString(c.Title)
	b.WriteString(".")
	if c.Venue != "" {
		b.WriteString(" " + c.Venue + ".")
	}
	if c.DOI != "" {
		b.WriteString(" doi:" + c.DOI)
	}
	return b.String()
}
