package search

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	meili "github.com/meilisearch/meilisearch-go"
)

type fakeBackend struct {
	mu      sync.Mutex
	healthy bool
	search  func(q Query) ([]Result, int, error)
	indexed []DocumentRecord
	deleted []string
}

func (f *fakeBackend) Healthy() bool { return f.healthy }

func (f *fakeBackend) Search(_ context.Context, q Query) ([]Result, int, error) {
	return f.search(q)
}

func (f *fakeBackend) IndexDocuments(docs []DocumentRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.indexed = append(f.indexed, docs...)
	return nil
}

func (f *fakeBackend) DeleteDocument(id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleted = append(f.deleted, id)
	return nil
}

func (f *fakeBackend) snapshot() ([]DocumentRecord, []string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]DocumentRecord(nil), f.indexed...), append([]string(nil), f.deleted...)
}

type fakeLoader struct {
	records []DocumentRecord
	err     error
}

func (f fakeLoader) LoadAllRecords(context.Context) ([]DocumentRecord, error) {
	return f.records, f.err
}

func staticResults(results ...Result) func(Query) ([]Result, int, error) {
	return func(Query) ([]Result, int, error) { return results, len(results), nil }
}

func TestServiceSearchFallback(t *testing.T) {
	primaryHit := Result{ID: "doc-primary", Title: "Primary"}
	fallbackHit := Result{ID: "doc-fallback", Title: "Fallback"}

	cases := []struct {
		name    string
		primary *fakeBackend
		want    string
	}{
		{name: "healthy primary", primary: &fakeBackend{healthy: true, search: staticResults(primaryHit)}, want: "doc-primary"},
		{name: "unhealthy primary", primary: &fakeBackend{healthy: false, search: staticResults(primaryHit)}, want: "doc-fallback"},
		{
			name: "primary error",
			primary: &fakeBackend{healthy: true, search: func(Query) ([]Result, int, error) {
				return nil, 0, errors.New("down")
			}},
			want: "doc-fallback",
		},
		{name: "no primary", primary: nil, want: "doc-fallback"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var primary Backend
			if tc.primary != nil {
				primary = tc.primary
			}
			svc := NewService(primary, &fakeBackend{healthy: true, search: staticResults(fallbackHit)}, nil, nil)
			resp := svc.Search(context.Background(), Query{Text: "cat"})
			if len(resp.Results) != 1 || resp.Results[0].ID != tc.want || resp.Query != "cat" {
				t.Fatalf("unexpected response: %+v", resp)
			}
		})
	}
}

func TestServiceSearchNeverReturnsNil(t *testing.T) {
	failing := &fakeBackend{healthy: true, search: func(Query) ([]Result, int, error) {
		return nil, 0, errors.New("boom")
	}}
	svc := NewService(nil, failing, nil, nil)
	resp := svc.Search(context.Background(), Query{Text: "x"})
	if resp.Results == nil || len(resp.Results) != 0 {
		t.Fatalf("expected empty results, got %+v", resp)
	}

	empty := &fakeBackend{healthy: true, search: staticResults()}
	resp = NewService(nil, empty, nil, nil).Search(context.Background(), Query{Text: "x"})
	if resp.Results == nil {
		t.Fatal("expected non-nil results")
	}
}

func TestServiceIndexAndDelete(t *testing.T) {
	primary := &fakeBackend{healthy: true}
	svc := NewService(primary, nil, nil, nil)

	svc.IndexDocument(DocumentRecord{ID: "d1", Title: "One"})
	svc.DeleteDocument("d2")

	deadline := time.Now().Add(2 * time.Second)
	for {
		indexed, deleted := primary.snapshot()
		if len(indexed) == 1 && len(deleted) == 1 {
			if indexed[0].ID != "d1" || deleted[0] != "d2" {
				t.Fatalf("unexpected writes: %+v %v", indexed, deleted)
			}
			return
		}
		if time.Now().After(deadline) {
			t.Fatalf("writes not observed: %+v %v", indexed, deleted)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestServiceSkipsWritesWhenUnhealthy(t *testing.T) {
	primary := &fakeBackend{healthy: false}
	svc := NewService(primary, nil, fakeLoader{records: []DocumentRecord{{ID: "d1"}}}, nil)

	svc.IndexDocument(DocumentRecord{ID: "d1"})
	svc.ReindexAll(context.Background())
	time.Sleep(20 * time.Millisecond)

	if indexed, _ := primary.snapshot(); len(indexed) != 0 {
		t.Fatalf("expected no writes, got %+v", indexed)
	}
}

func TestServiceReindexAll(t *testing.T) {
	primary := &fakeBackend{healthy: true}
	records := []DocumentRecord{{ID: "d1"}, {ID: "d2"}}

	NewService(primary, nil, fakeLoader{records: records}, nil).ReindexAll(context.Background())
	if indexed, _ := primary.snapshot(); len(indexed) != 2 {
		t.Fatalf("expected 2 indexed records, got %+v", indexed)
	}

	failing := &fakeBackend{healthy: true}
	NewService(failing, nil, fakeLoader{err: errors.New("db down")}, nil).ReindexAll(context.Background())
	if indexed, _ := failing.snapshot(); len(indexed) != 0 {
		t.Fatalf("expected no writes after load failure, got %+v", indexed)
	}
}

func TestHitToResult(t *testing.T) {
	hit := meili.Hit{
		"id":         json.RawMessage(`"doc-1"`),
		"title":      json.RawMessage(`"Field Notes"`),
		"text":       json.RawMessage(`"A long body of text"`),
		"_formatted": json.RawMessage(`{"id":"doc-1","title":"Field <mark>Notes</mark>","text":"…body of…","updatedAt":"12"}`),
	}
	got := hitToResult(hit)
	if got.ID != "doc-1" || got.Title != "Field <mark>Notes</mark>" || got.Snippet != "…body of…" {
		t.Fatalf("unexpected result: %+v", got)
	}

	plain := meili.Hit{"id": json.RawMessage(`"doc-2"`), "title": json.RawMessage(`"Plain"`)}
	if got := hitToResult(plain); got.Title != "Plain" || got.Snippet != "" {
		t.Fatalf("unexpected plain result: %+v", got)
	}
}

func TestNormalizeQuery(t *testing.T) {
	cases := []struct {
		in   Query
		want Query
	}{
		{in: Query{Limit: 0, Offset: -3}, want: Query{Limit: 20, Offset: 0}},
		{in: Query{Limit: 500}, want: Query{Limit: 20}},
		{in: Query{Limit: 5, Offset: 10}, want: Query{Limit: 5, Offset: 10}},
	}
	for _, tc := range cases {
		if got := normalizeQuery(tc.in); got != tc.want {
			t.Fatalf("normalizeQuery(%+v) = %+v, want %+v", tc.in, got, tc.want)
		}
	}
}
