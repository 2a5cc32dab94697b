package app

import (
	"context"
	"database/sql"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"penwise/internal/analysis"
	"penwise/internal/assist"
	"penwise/internal/config"
	"penwise/internal/export"
	"penwise/internal/search"
	"penwise/internal/store"
	"penwise/internal/tracker"
)

// fakeStore keeps documents and dictionaries in memory. Any func field
// that is set replaces the in-memory behaviour for that call.
type fakeStore struct {
	mu          sync.Mutex
	documents   map[string]store.Document
	words       map[string][]string
	updates     int
	pingFn      func(context.Context) error
	listFn      func(context.Context) ([]store.Document, error)
	insertFn    func(context.Context, store.Document) error
	addWordFn   func(context.Context, string, string) error
	getDocument func(context.Context, string) (store.Document, error)
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		documents: make(map[string]store.Document),
		words:     make(map[string][]string),
	}
}

func (f *fakeStore) ListDocuments(ctx context.Context) ([]store.Document, error) {
	if f.listFn != nil {
		return f.listFn(ctx)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]store.Document, 0, len(f.documents))
	for _, item := range f.documents {
		item.Content = nil
		out = append(out, item)
	}
	return out, nil
}

func (f *fakeStore) GetDocument(ctx context.Context, id string) (store.Document, error) {
	if f.getDocument != nil {
		return f.getDocument(ctx, id)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	item, ok := f.documents[id]
	if !ok {
		return store.Document{}, sql.ErrNoRows
	}
	return item, nil
}

func (f *fakeStore) InsertDocument(ctx context.Context, item store.Document) error {
	if f.insertFn != nil {
		return f.insertFn(ctx, item)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	now := time.Now().UTC()
	item.CreatedAt, item.UpdatedAt = now, now
	f.documents[item.ID] = item
	return nil
}

func (f *fakeStore) UpdateDocumentContent(_ context.Context, item store.Document) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	current, ok := f.documents[item.ID]
	if !ok {
		return false, nil
	}
	if item.Title != "" {
		current.Title = item.Title
	}
	current.Content = item.Content
	current.PlainText = item.PlainText
	current.UpdatedBy = item.UpdatedBy
	current.UpdatedAt = time.Now().UTC()
	f.documents[item.ID] = current
	f.updates++
	return true, nil
}

func (f *fakeStore) DeleteDocument(_ context.Context, id string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.documents[id]; !ok {
		return false, nil
	}
	delete(f.documents, id)
	return true, nil
}

func (f *fakeStore) ListDictionaryWords(_ context.Context, owner string) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.words[owner]...), nil
}

func (f *fakeStore) AddDictionaryWord(ctx context.Context, owner, word string) error {
	if f.addWordFn != nil {
		return f.addWordFn(ctx, owner, word)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, w := range f.words[owner] {
		if strings.EqualFold(w, word) {
			return nil
		}
	}
	f.words[owner] = append(f.words[owner], word)
	return nil
}

func (f *fakeStore) RemoveDictionaryWord(_ context.Context, owner, word string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	words := f.words[owner]
	for i, w := range words {
		if strings.EqualFold(w, word) {
			f.words[owner] = append(words[:i:i], words[i+1:]...)
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeStore) Ping(ctx context.Context) error {
	if f.pingFn != nil {
		return f.pingFn(ctx)
	}
	return nil
}

func (f *fakeStore) document(t *testing.T, id string) store.Document {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	item, ok := f.documents[id]
	if !ok {
		t.Fatalf("document %s not stored", id)
	}
	return item
}

// fakeAnalyzer flags every occurrence of each misspelling it knows, unless
// a dictionary passed to Check approves the word. An empty fix offers no
// replacement.
type fakeAnalyzer struct {
	fixes map[string]string
}

func newFakeAnalyzer() *fakeAnalyzer {
	return &fakeAnalyzer{fixes: map[string]string{"Teh": "The", "recieve": "receive"}}
}

func (f *fakeAnalyzer) Check(_ context.Context, text string, extra ...*analysis.Dictionary) (analysis.Result, error) {
	var out []tracker.Suggestion
	runes := []rune(text)
	for word, fix := range f.fixes {
		approved := false
		for _, d := range extra {
			if d != nil && d.Contains(word) {
				approved = true
			}
		}
		if approved {
			continue
		}
		target := []rune(word)
		for i := 0; i+len(target) <= len(runes); i++ {
			if string(runes[i:i+len(target)]) != word {
				continue
			}
			sg := tracker.Suggestion{
				ID:       strings.ToLower(word) + "-" + strconv.Itoa(i),
				Offset:   i,
				Length:   len(target),
				Category: tracker.CategorySpelling,
				Message:  "Possible spelling mistake.",
			}
			if fix != "" {
				sg.Replacements = []string{fix}
			}
			out = append(out, sg)
		}
	}
	return analysis.Result{
		Suggestions: out,
		Stats:       analysis.ComputeStats(text),
		Providers:   []analysis.ProviderStatus{{Name: "fake", Matches: len(out)}},
	}, nil
}

type fakeSearch struct {
	mu      sync.Mutex
	indexed map[string]search.DocumentRecord
	deleted []string
	results []search.Result
}

func (f *fakeSearch) Search(_ context.Context, q search.Query) search.Response {
	return search.Response{Results: f.results, Total: len(f.results), Query: q.Text}
}

func (f *fakeSearch) IndexDocument(doc search.DocumentRecord) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.indexed == nil {
		f.indexed = make(map[string]search.DocumentRecord)
	}
	f.indexed[doc.ID] = doc
}

func (f *fakeSearch) DeleteDocument(id string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleted = append(f.deleted, id)
}

type fakeArchive struct {
	storeFn func(context.Context, string, *export.Result) (string, error)
}

func (f *fakeArchive) Store(ctx context.Context, documentID string, result *export.Result) (string, error) {
	return f.storeFn(ctx, documentID, result)
}

type fakeDefiner struct {
	defineFn func(context.Context, string, string) (assist.Definition, error)
}

func (f *fakeDefiner) Define(ctx context.Context, term, passage string) (assist.Definition, error) {
	return f.defineFn(ctx, term, passage)
}

type fakeCitations struct {
	searchFn func(context.Context, string, int) ([]assist.Citation, error)
}

func (f *fakeCitations) Search(ctx context.Context, query string, limit int) ([]assist.Citation, error) {
	return f.searchFn(ctx, query, limit)
}

func newTestService(t *testing.T, fs *fakeStore, opts ...Option) *Service {
	t.Helper()
	cfg := config.Config{
		AnalysisDebounce: time.Hour,
		AnalysisTimeout:  5 * time.Second,
		SessionTTL:       time.Hour,
		MaxSessions:      8,
	}
	svc := newService(cfg, fs, newFakeAnalyzer(), opts...)
	t.Cleanup(svc.Shutdown)
	return svc
}
