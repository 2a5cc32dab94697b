package analysis

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
	"golang.org/x/text/cases"

	"penwise/internal/tracker"
)

// Dictionary is a set of approved words. Lookups are case-folded, so "LaTeX"
// also approves "latex".
type Dictionary struct {
	mu    sync.RWMutex
	words map[string]string
}

func NewDictionary(words ...string) *Dictionary {
	d := &Dictionary{words: make(map[string]string, len(words))}
	for _, w := range words {
		d.Add(w)
	}
	return d
}

func fold(word string) string {
	return cases.Fold().String(strings.TrimSpace(word))
}

// Add approves a word and reports whether it was new.
func (d *Dictionary) Add(word string) bool {
	key := fold(word)
	if key == "" {
		return false
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.words[key]; ok {
		return false
	}
	d.words[key] = strings.TrimSpace(word)
	return true
}

func (d *Dictionary) Remove(word string) bool {
	key := fold(word)
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.words[key]; !ok {
		return false
	}
	delete(d.words, key)
	return true
}

func (d *Dictionary) Contains(word string) bool {
	if d == nil {
		return false
	}
	key := fold(word)
	d.mu.RLock()
	defer d.mu.RUnlock()
	_, ok := d.words[key]
	return ok
}

// Replace swaps the whole word set.
func (d *Dictionary) Replace(words []string) {
	next := make(map[string]string, len(words))
	for _, w := range words {
		if key := fold(w); key != "" {
			next[key] = strings.TrimSpace(w)
		}
	}
	d.mu.Lock()
	d.words = next
	d.mu.Unlock()
}

// Words returns the approved words in their original spelling, sorted.
func (d *Dictionary) Words() []string {
	d.mu.RLock()
	out := make([]string, 0, len(d.words))
	for _, w := range d.words {
		out = append(out, w)
	}
	d.mu.RUnlock()
	sort.Strings(out)
	return out
}

func (d *Dictionary) Len() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.words)
}

// Filter removes spelling suggestions whose covered text is approved by any
// of dicts.
func Filter(text string, suggestions []tracker.Suggestion, dicts ...*Dictionary) []tracker.Suggestion {
	if len(dicts) == 0 {
		return suggestions
	}
	runes := []rune(text)
	out := make([]tracker.Suggestion, 0, len(suggestions))
	for _, s := range suggestions {
		if s.Category == tracker.CategorySpelling && s.Offset >= 0 && s.End() <= len(runes) {
			word := string(runes[s.Offset:s.End()])
			if approved(word, dicts) {
				continue
			}
		}
		out = append(out, s)
	}
	return out
}

func approved(word string, dicts []*Dictionary) bool {
	for _, d := range dicts {
		if d.Contains(word) {
			return true
		}
	}
	return false
}

// LoadDictionaryFile reads one word per line. Blank lines and lines starting
// with # are ignored.
func LoadDictionaryFile(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open dictionary: %w", err)
	}
	defer f.Close()

	var words []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		words = append(words, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read dictionary: %w", err)
	}
	return words, nil
}

// WatchDictionaryFile loads path into dict and reloads it whenever the file
// is written or recreated, until ctx is cancelled. The parent directory is
// watched so editors that replace the file by rename are picked up.
func WatchDictionaryFile(ctx context.Context, path string, dict *Dictionary, logger *zap.SugaredLogger) error {
	words, err := LoadDictionaryFile(path)
	if err != nil {
		return err
	}
	dict.Replace(words)

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	if err := watcher.Add(filepath.Dir(path)); err != nil {
		_ = watcher.Close()
		return fmt.Errorf("watch %s: %w", filepath.Dir(path), err)
	}

	target := filepath.Clean(path)
	go func() {
		defer watcher.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if filepath.Clean(event.Name) != target {
					continue
				}
				if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
					continue
				}
				words, err := LoadDictionaryFile(path)
				if err != nil {
					logger.Warnw("dictionary reload failed", "path", path, "error", err)
					continue
				}
				dict.Replace(words)
				logger.Infow("dictionary reloaded", "path", path, "words", len(words))
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				logger.Warnw("dictionary watcher error", "error", err)
			}
		}
	}()
	return nil
}
