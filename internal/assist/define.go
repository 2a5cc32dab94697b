// Package assist holds the writing aids that sit beside the suggestion
// tracker: term definitions from a local language model and citation search.
package assist

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"penwise/internal/cache"
)

var ErrEmptyQuery = errors.New("assist: empty query")

// Definition is a short explanation of a term as used in its context.
type Definition struct {
	Term       string `json:"term" msgpack:"term"`
	Definition string `json:"definition" msgpack:"definition"`
	Model      string `json:"model" msgpack:"model"`
	Cached     bool   `json:"cached" msgpack:"-"`
}

// Definer asks an Ollama server to define terms.
type Definer struct {
	baseURL string
	model   string
	client  *http.Client
	limiter *rate.Limiter
	cache   cache.Store
	logger  *zap.SugaredLogger
}

// NewDefiner creates a definer for baseURL. A nil store disables caching.
func NewDefiner(baseURL, model string, store cache.Store, limiter *rate.Limiter, logger *zap.SugaredLogger) *Definer {
	if baseURL == "" {
		baseURL = "http://localhost:11434"
	}
	if model == "" {
		model = "llama3.2"
	}
	if limiter == nil {
		limiter = rate.NewLimiter(rate.Inf, 0)
	}
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &Definer{
		baseURL: strings.TrimRight(baseURL, "/"),
		model:   model,
		client:  &http.Client{Timeout: 120 * time.Second},
		limiter: limiter,
		cache:   store,
		logger:  logger,
	}
}

type generateRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
	Stream bool   `json:"stream"`
}

type generateResponse struct {
	Response string `json:"response"`
	Done     bool   `json:"done"`
}

// Define returns a definition of term, using the surrounding sentence to
// pick the intended sense.
func (d *Definer) Define(ctx context.Context, term, passage string) (Definition, error) {
	term = strings.TrimSpace(term)
	if term == "" {
		return Definition{}, ErrEmptyQuery
	}
	key := d.cacheKey(term, passage)
	if d.cache != nil {
		if def, ok := cache.Load[Definition](ctx, d.cache, key); ok {
			def.Cached = true
			return def, nil
		}
	}

	if err := d.limiter.Wait(ctx); err != nil {
		return Definition{}, fmt.Errorf("define: wait: %w", err)
	}
	text, err := d.generate(ctx, definePrompt(term, passage))
	if err != nil {
		return Definition{}, err
	}
	def := Definition{Term: term, Definition: strings.TrimSpace(text), Model: d.model}
	if d.cache != nil {
		if err := cache.Save(ctx, d.cache, key, def); err != nil {
			d.logger.Warnw("definition cache encode failed", "term", term, "error", err)
		}
	}
	return def, nil
}

func (d *Definer) generate(ctx context.Context, prompt string) (string, error) {
	body, err := json.Marshal(generateRequest{Model: d.model, Prompt: prompt, Stream: false})
	if err != nil {
		return "", fmt.Errorf("define: marshal request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.baseURL+"/api/generate", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("define: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := d.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("define: calling ollama: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("define: ollama returned status %d", resp.StatusCode)
	}

	var parsed generateResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", fmt.Errorf("define: decode response: %w", err)
	}
	return parsed.Response, nil
}

func (d *Definer) cacheKey(term, passage string) string {
	sum := sha256.Sum256([]byte(strings.ToLower(term) + "\x00" + strings.TrimSpace(passage)))
	return "define:" + d.model + ":" + hex.EncodeToString(sum[:])
}

func definePrompt(term, passage string) string {
	var b strings.Builder
	b.WriteString("Define the term \"")
	b.WriteString(term)
	b.WriteString("\" in one or two plain sentences for a general reader.")
	if c := strings.TrimSpace(passage); c != "" {
		b.WriteString(" It appears in this passage: \"")
		b.WriteString(c)
		b.WriteString("\". Use the sense that fits the passage.")
	}
	b.WriteString(" Reply with the definition only.")
	return b.String()
}
