package analysis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"penwise/internal/tracker"
)

// ErrNoProvider is returned when every provider failed on a pass.
var ErrNoProvider = errors.New("no analysis provider succeeded")

// ProviderStatus reports how one provider fared on a pass.
type ProviderStatus struct {
	Name    string `json:"name"`
	Matches int    `json:"matches"`
	Cached  bool   `json:"cached"`
	Error   string `json:"error,omitempty"`
}

// Result is the outcome of one analysis pass over Text. Generation is set
// by the Scheduler that issued the pass.
type Result struct {
	Generation  uint64               `json:"generation"`
	Text        string               `json:"-"`
	Suggestions []tracker.Suggestion `json:"suggestions"`
	Stats       Stats                `json:"stats"`
	Providers   []ProviderStatus     `json:"providers"`
}

// Checker fans text out to its providers and merges their findings.
type Checker struct {
	providers  []Provider
	cache      Cache
	dictionary *Dictionary
	timeout    time.Duration
	logger     *zap.SugaredLogger
}

type CheckerOption func(*Checker)

func WithCache(cache Cache) CheckerOption {
	return func(c *Checker) { c.cache = cache }
}

// WithDictionary sets the shared dictionary applied to every pass.
func WithDictionary(dict *Dictionary) CheckerOption {
	return func(c *Checker) { c.dictionary = dict }
}

func WithTimeout(timeout time.Duration) CheckerOption {
	return func(c *Checker) { c.timeout = timeout }
}

func WithLogger(logger *zap.SugaredLogger) CheckerOption {
	return func(c *Checker) { c.logger = logger }
}

func NewChecker(providers []Provider, opts ...CheckerOption) *Checker {
	c := &Checker{
		providers: providers,
		timeout:   30 * time.Second,
		logger:    zap.NewNop().Sugar(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Check runs every provider concurrently on text. A failing provider is
// logged and skipped; the pass fails only when all of them fail. Matches
// are merged in provider order, identical ranges of the same category keep
// the first provider's finding, and spelling findings approved by the
// shared dictionary or by extra are removed.
func (c *Checker) Check(ctx context.Context, text string, extra ...*Dictionary) (Result, error) {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	found := make([][]Match, len(c.providers))
	statuses := make([]ProviderStatus, len(c.providers))
	var g errgroup.Group
	for i, p := range c.providers {
		g.Go(func() error {
			matches, cached, err := c.runProvider(ctx, p, text)
			statuses[i] = ProviderStatus{Name: p.Name(), Matches: len(matches), Cached: cached}
			if err != nil {
				statuses[i].Error = err.Error()
				c.logger.Warnw("analysis provider failed", "provider", p.Name(), "error", err)
				return nil
			}
			found[i] = matches
			return nil
		})
	}
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		return Result{}, err
	}
	succeeded := 0
	for _, st := range statuses {
		if st.Error == "" {
			succeeded++
		}
	}
	if len(c.providers) > 0 && succeeded == 0 {
		return Result{}, fmt.Errorf("%w: %s", ErrNoProvider, statuses[0].Error)
	}

	suggestions := Normalize(mergeMatches(found))
	dicts := make([]*Dictionary, 0, len(extra)+1)
	if c.dictionary != nil {
		dicts = append(dicts, c.dictionary)
	}
	for _, d := range extra {
		if d != nil {
			dicts = append(dicts, d)
		}
	}
	suggestions = Filter(text, suggestions, dicts...)

	return Result{
		Text:        text,
		Suggestions: suggestions,
		Stats:       ComputeStats(text),
		Providers:   statuses,
	}, nil
}

func (c *Checker) runProvider(ctx context.Context, p Provider, text string) ([]Match, bool, error) {
	key := CacheKey(p.Name(), text)
	if c.cache != nil {
		if matches, ok := c.cache.Get(ctx, key); ok {
			return matches, true, nil
		}
	}
	matches, err := p.Check(ctx, text)
	if err != nil {
		return nil, false, err
	}
	if c.cache != nil {
		c.cache.Set(ctx, key, matches)
	}
	return matches, false, nil
}

type rangeKey struct {
	offset   int
	length   int
	category tracker.Category
}

func mergeMatches(found [][]Match) []Match {
	var out []Match
	seen := make(map[rangeKey]struct{})
	for _, matches := range found {
		for _, m := range matches {
			k := rangeKey{offset: m.Offset, length: m.Length, category: CategoryFor(m.Category)}
			if _, dup := seen[k]; dup {
				continue
			}
			seen[k] = struct{}{}
			out = append(out, m)
		}
	}
	return out
}
