package app

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"penwise/internal/assist"
	"penwise/internal/editor"
	"penwise/internal/export"
	"penwise/internal/search"
)

func doRequest(t *testing.T, handler http.Handler, method, path string, body any, owner string) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if owner != "" {
		req.Header.Set(ownerHeader, owner)
	}
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	return rr
}

func decodeResponse[T any](t *testing.T, rr *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	if err := json.Unmarshal(rr.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode response %q: %v", rr.Body.String(), err)
	}
	return out
}

func expectError(t *testing.T, rr *httptest.ResponseRecorder, status int, code string) {
	t.Helper()
	if rr.Code != status {
		t.Fatalf("status = %d, want %d: %s", rr.Code, status, rr.Body.String())
	}
	body := decodeResponse[map[string]any](t, rr)
	if body["code"] != code {
		t.Fatalf("code = %v, want %s", body["code"], code)
	}
}

func createDocument(t *testing.T, handler http.Handler, title, text string) string {
	t.Helper()
	rr := doRequest(t, handler, http.MethodPost, "/api/documents", map[string]any{"title": title, "text": text}, "")
	if rr.Code != http.StatusCreated {
		t.Fatalf("create status = %d: %s", rr.Code, rr.Body.String())
	}
	created := decodeResponse[struct {
		Document DocumentView `json:"document"`
	}](t, rr)
	if !strings.HasPrefix(created.Document.ID, "doc_") {
		t.Fatalf("unexpected id %q", created.Document.ID)
	}
	return created.Document.ID
}

func TestHealthEndpoint(t *testing.T) {
	server := NewHTTPServer(newTestService(t, newFakeStore()), "*")

	rr := doRequest(t, server.Handler(), http.MethodGet, "/api/health", nil, "")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}
	response := decodeResponse[map[string]any](t, rr)
	if response["ok"] != true {
		t.Errorf("expected ok=true, got %v", response["ok"])
	}
	if rr.Header().Get("X-Request-ID") == "" {
		t.Error("expected a request id header")
	}
}

type readyPayload struct {
	OK     bool `json:"ok"`
	Checks struct {
		Database struct {
			Status string `json:"status"`
		} `json:"database"`
		Sessions struct {
			Open int `json:"open"`
		} `json:"sessions"`
	} `json:"checks"`
}

func TestReadyEndpoint(t *testing.T) {
	cases := []struct {
		name       string
		pingErr    error
		wantStatus int
		wantDB     string
	}{
		{name: "ready", wantStatus: http.StatusOK, wantDB: "ok"},
		{name: "database down", pingErr: errors.New("connection refused"), wantStatus: http.StatusServiceUnavailable, wantDB: "error"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			fs := newFakeStore()
			fs.pingFn = func(context.Context) error { return tc.pingErr }
			server := NewHTTPServer(newTestService(t, fs), "*")

			rr := doRequest(t, server.Handler(), http.MethodGet, "/api/ready", nil, "")
			if rr.Code != tc.wantStatus {
				t.Fatalf("status = %d, want %d", rr.Code, tc.wantStatus)
			}
			response := decodeResponse[readyPayload](t, rr)
			if response.Checks.Database.Status != tc.wantDB || response.OK != (tc.pingErr == nil) {
				t.Fatalf("unexpected ready payload: %s", rr.Body.String())
			}
		})
	}
}

func TestRoutingFallbacks(t *testing.T) {
	handler := NewHTTPServer(newTestService(t, newFakeStore()), "https://app.example").Handler()

	rr := doRequest(t, handler, http.MethodOptions, "/api/documents", nil, "")
	if rr.Code != http.StatusNoContent || rr.Header().Get("Access-Control-Allow-Origin") != "https://app.example" {
		t.Fatalf("preflight = %d %v", rr.Code, rr.Header())
	}
	if !strings.Contains(rr.Header().Get("Access-Control-Allow-Headers"), ownerHeader) {
		t.Fatal("owner header should be allowed cross-origin")
	}

	expectError(t, doRequest(t, handler, http.MethodPatch, "/api/documents", nil, ""), http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED")
	expectError(t, doRequest(t, handler, http.MethodGet, "/api/nope", nil, ""), http.StatusNotFound, "NOT_FOUND")
	expectError(t, doRequest(t, handler, http.MethodGet, "/api/documents/missing", nil, ""), http.StatusNotFound, "NOT_FOUND")
	expectError(t, doRequest(t, handler, http.MethodPost, "/api/documents/missing/session", nil, ""), http.StatusNotFound, "NOT_FOUND")

	req := httptest.NewRequest(http.MethodPost, "/api/documents", strings.NewReader("{not json"))
	bad := httptest.NewRecorder()
	handler.ServeHTTP(bad, req)
	expectError(t, bad, http.StatusBadRequest, "INVALID_BODY")
}

func TestSuggestionLifecycle(t *testing.T) {
	fs := newFakeStore()
	svc := newTestService(t, fs, WithExporter(export.NewService("", nil)))
	handler := NewHTTPServer(svc, "*").Handler()

	id := createDocument(t, handler, "Draft", "Teh cat will recieve it.")
	base := "/api/documents/" + id

	rr := doRequest(t, handler, http.MethodPost, base+"/session", nil, "")
	if rr.Code != http.StatusCreated {
		t.Fatalf("open session status = %d: %s", rr.Code, rr.Body.String())
	}
	snap := decodeResponse[editor.Snapshot](t, rr)
	if snap.Text != "Teh cat will recieve it." || !snap.Pending {
		t.Fatalf("unexpected opened session: %+v", snap)
	}
	if rr := doRequest(t, handler, http.MethodPost, base+"/session", nil, ""); rr.Code != http.StatusOK {
		t.Fatalf("reopen status = %d", rr.Code)
	}

	rr = doRequest(t, handler, http.MethodPost, base+"/analyze", nil, "")
	if rr.Code != http.StatusOK {
		t.Fatalf("analyze status = %d: %s", rr.Code, rr.Body.String())
	}
	snap = decodeResponse[editor.Snapshot](t, rr)
	if len(snap.Suggestions) != 2 || snap.Pending || snap.Stats.Words != 5 {
		t.Fatalf("unexpected analysis: %+v", snap)
	}

	rr = doRequest(t, handler, http.MethodGet, base+"/decorations", nil, "")
	decorations := decodeResponse[map[string][]map[string]any](t, rr)
	if len(decorations["decorations"]) != 2 {
		t.Fatalf("decorations = %v", decorations)
	}

	rr = doRequest(t, handler, http.MethodPost, base+"/export", map[string]any{"format": "html"}, "")
	if rr.Code != http.StatusOK || !strings.HasPrefix(rr.Header().Get("Content-Type"), "text/html") {
		t.Fatalf("export = %d %s", rr.Code, rr.Header().Get("Content-Type"))
	}
	if !strings.Contains(rr.Body.String(), `<mark class="pw-spelling">Teh</mark>`) {
		t.Fatalf("export missing marks: %s", rr.Body.String())
	}
	if !strings.Contains(rr.Header().Get("Content-Disposition"), "Draft.html") {
		t.Fatalf("content disposition = %q", rr.Header().Get("Content-Disposition"))
	}
	expectError(t, doRequest(t, handler, http.MethodPost, base+"/export", map[string]any{"format": "docx"}, ""), http.StatusUnprocessableEntity, "VALIDATION_ERROR")

	rr = doRequest(t, handler, http.MethodPost, base+"/suggestions/teh-0/apply", map[string]any{}, "")
	if rr.Code != http.StatusOK {
		t.Fatalf("apply status = %d: %s", rr.Code, rr.Body.String())
	}
	fix := decodeResponse[FixResult](t, rr)
	if fix.Applied.Replacement != "The" || fix.Snapshot.Text != "The cat will recieve it." {
		t.Fatalf("unexpected fix: %+v", fix)
	}
	if len(fix.Snapshot.Suggestions) != 1 || fix.Snapshot.Suggestions[0].Offset != 13 {
		t.Fatalf("remaining suggestion moved: %+v", fix.Snapshot.Suggestions)
	}
	if got := fs.document(t, id).PlainText; got != "The cat will recieve it." {
		t.Fatalf("stored text = %q", got)
	}

	expectError(t, doRequest(t, handler, http.MethodPost, base+"/suggestions/teh-0/apply", map[string]any{}, ""), http.StatusNotFound, "SUGGESTION_NOT_FOUND")

	rr = doRequest(t, handler, http.MethodPost, base+"/suggestions/recieve-13/apply", map[string]any{"replacement": "get"}, "")
	fix = decodeResponse[FixResult](t, rr)
	if fix.Snapshot.Text != "The cat will get it." || len(fix.Snapshot.Suggestions) != 0 {
		t.Fatalf("unexpected custom fix: %+v", fix)
	}

	expectError(t, doRequest(t, handler, http.MethodPost, base+"/edits", map[string]any{"offset": 100, "delete": 1}, ""), http.StatusUnprocessableEntity, "INVALID_RANGE")
	expectError(t, doRequest(t, handler, http.MethodPost, base+"/edits", map[string]any{}, ""), http.StatusUnprocessableEntity, "VALIDATION_ERROR")

	rr = doRequest(t, handler, http.MethodPost, base+"/edits", map[string]any{
		"edits": []map[string]any{{"offset": 0, "delete": 3, "insert": "Teh"}},
	}, "")
	snap = decodeResponse[editor.Snapshot](t, rr)
	if snap.Text != "Teh cat will get it." {
		t.Fatalf("edit text = %q", snap.Text)
	}
	if got := fs.document(t, id).PlainText; got != "Teh cat will get it." {
		t.Fatalf("stored text after edit = %q", got)
	}

	doRequest(t, handler, http.MethodPost, base+"/analyze", nil, "")
	rr = doRequest(t, handler, http.MethodPost, base+"/suggestions/teh-0/dismiss", nil, "")
	snap = decodeResponse[editor.Snapshot](t, rr)
	if len(snap.Suggestions) != 0 || snap.Text != "Teh cat will get it." {
		t.Fatalf("dismiss left %+v", snap)
	}
	expectError(t, doRequest(t, handler, http.MethodPost, base+"/suggestions/teh-0/dismiss", nil, ""), http.StatusNotFound, "SUGGESTION_NOT_FOUND")

	if rr := doRequest(t, handler, http.MethodDelete, base+"/session", nil, ""); rr.Code != http.StatusOK {
		t.Fatalf("close session status = %d", rr.Code)
	}
	expectError(t, doRequest(t, handler, http.MethodDelete, base+"/session", nil, ""), http.StatusNotFound, "SESSION_NOT_OPEN")

	rr = doRequest(t, handler, http.MethodGet, base, nil, "")
	got := decodeResponse[struct {
		Document DocumentView `json:"document"`
	}](t, rr)
	if got.Document.Text != "Teh cat will get it." || got.Document.Title != "Draft" {
		t.Fatalf("stored document = %+v", got.Document)
	}

	if rr := doRequest(t, handler, http.MethodDelete, base, nil, ""); rr.Code != http.StatusOK {
		t.Fatalf("delete status = %d", rr.Code)
	}
	expectError(t, doRequest(t, handler, http.MethodGet, base, nil, ""), http.StatusNotFound, "NOT_FOUND")
}

func TestNoReplacement(t *testing.T) {
	svc := newTestService(t, newFakeStore())
	svc.analyzer.(*fakeAnalyzer).fixes = map[string]string{"Teh": ""}
	handler := NewHTTPServer(svc, "*").Handler()

	id := createDocument(t, handler, "Draft", "Teh end.")
	path := "/api/documents/" + id + "/suggestions/teh-0/apply"
	doRequest(t, handler, http.MethodPost, "/api/documents/"+id+"/analyze", nil, "")

	expectError(t, doRequest(t, handler, http.MethodPost, path, map[string]any{}, ""), http.StatusUnprocessableEntity, "NO_REPLACEMENT")

	rr := doRequest(t, handler, http.MethodPost, path, map[string]any{"replacement": ""}, "")
	if rr.Code != http.StatusOK {
		t.Fatalf("apply status = %d: %s", rr.Code, rr.Body.String())
	}
	if fix := decodeResponse[FixResult](t, rr); fix.Snapshot.Text != " end." {
		t.Fatalf("text = %q", fix.Snapshot.Text)
	}
}

func TestEditJoiningParagraphsIsRejected(t *testing.T) {
	fs := newFakeStore()
	handler := NewHTTPServer(newTestService(t, fs), "*").Handler()
	id := createDocument(t, handler, "Two lines", "One.\nTwo.")
	base := "/api/documents/" + id

	cases := []struct {
		name string
		body map[string]any
	}{
		{name: "delete separator", body: map[string]any{"offset": 4, "delete": 1}},
		{name: "replace across blocks", body: map[string]any{"offset": 2, "delete": 5, "insert": "x"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			expectError(t, doRequest(t, handler, http.MethodPost, base+"/edits", tc.body, ""), http.StatusUnprocessableEntity, "UNSUPPORTED_RANGE")
			if got := fs.document(t, id).PlainText; got != "One.\nTwo." {
				t.Fatalf("stored text = %q", got)
			}
		})
	}
}

func TestDictionaryEndpoints(t *testing.T) {
	fs := newFakeStore()
	handler := NewHTTPServer(newTestService(t, fs), "*").Handler()
	id := createDocument(t, handler, "Notes", "We recieve mail.")

	rr := doRequest(t, handler, http.MethodGet, "/api/dictionary", nil, "ana")
	listed := decodeResponse[struct {
		Owner string   `json:"owner"`
		Words []string `json:"words"`
	}](t, rr)
	if listed.Owner != "ana" || len(listed.Words) != 0 {
		t.Fatalf("unexpected dictionary: %+v", listed)
	}

	rr = doRequest(t, handler, http.MethodPost, "/api/dictionary", map[string]any{"word": "recieve"}, "ana")
	listed = decodeResponse[struct {
		Owner string   `json:"owner"`
		Words []string `json:"words"`
	}](t, rr)
	if len(listed.Words) != 1 || listed.Words[0] != "recieve" {
		t.Fatalf("unexpected words after add: %+v", listed)
	}
	expectError(t, doRequest(t, handler, http.MethodPost, "/api/dictionary", map[string]any{"word": "two words"}, "ana"), http.StatusUnprocessableEntity, "VALIDATION_ERROR")

	rr = doRequest(t, handler, http.MethodPost, "/api/documents/"+id+"/analyze", nil, "ana")
	if snap := decodeResponse[editor.Snapshot](t, rr); len(snap.Suggestions) != 0 {
		t.Fatalf("approved word flagged: %+v", snap.Suggestions)
	}
	rr = doRequest(t, handler, http.MethodGet, "/api/documents/"+id+"/session", nil, "bob")
	if snap := decodeResponse[editor.Snapshot](t, rr); len(snap.Suggestions) != 1 {
		t.Fatalf("another writer's dictionary hid a suggestion: %+v", snap.Suggestions)
	}

	if rr := doRequest(t, handler, http.MethodDelete, "/api/dictionary/recieve", nil, "ana"); rr.Code != http.StatusOK {
		t.Fatalf("remove status = %d", rr.Code)
	}
	rr = doRequest(t, handler, http.MethodPost, "/api/documents/"+id+"/analyze", nil, "ana")
	if snap := decodeResponse[editor.Snapshot](t, rr); len(snap.Suggestions) != 1 {
		t.Fatalf("removed word should be flagged again: %+v", snap.Suggestions)
	}
	expectError(t, doRequest(t, handler, http.MethodDelete, "/api/dictionary/recieve", nil, "ana"), http.StatusNotFound, "WORD_NOT_FOUND")

	rr = doRequest(t, handler, http.MethodGet, "/api/dictionary", nil, "")
	if listed := decodeResponse[map[string]any](t, rr); listed["owner"] != defaultOwner {
		t.Fatalf("expected default owner, got %v", listed["owner"])
	}
}

func TestSearchEndpoint(t *testing.T) {
	t.Run("unconfigured", func(t *testing.T) {
		handler := NewHTTPServer(newTestService(t, newFakeStore()), "*").Handler()
		expectError(t, doRequest(t, handler, http.MethodGet, "/api/search?q=cat", nil, ""), http.StatusServiceUnavailable, "SEARCH_UNAVAILABLE")
	})

	t.Run("configured", func(t *testing.T) {
		svc := newTestService(t, newFakeStore())
		index := &fakeSearch{results: []search.Result{{ID: "doc_1", Title: "Cats", Snippet: "the <em>cat</em>"}}}
		svc.search = index
		handler := NewHTTPServer(svc, "*").Handler()

		expectError(t, doRequest(t, handler, http.MethodGet, "/api/search?q=+", nil, ""), http.StatusUnprocessableEntity, "VALIDATION_ERROR")

		rr := doRequest(t, handler, http.MethodGet, "/api/search?q=cat&limit=5", nil, "")
		response := decodeResponse[search.Response](t, rr)
		if response.Total != 1 || response.Query != "cat" || response.Results[0].ID != "doc_1" {
			t.Fatalf("unexpected search response: %+v", response)
		}

		id := createDocument(t, handler, "Indexed", "Body text.")
		if rec, ok := index.indexed[id]; !ok || rec.Title != "Indexed" || rec.Text != "Body text." {
			t.Fatalf("document not indexed: %+v", index.indexed)
		}
		doRequest(t, handler, http.MethodDelete, "/api/documents/"+id, nil, "")
		if len(index.deleted) != 1 || index.deleted[0] != id {
			t.Fatalf("document not removed from index: %v", index.deleted)
		}
	})
}

func TestAssistEndpoints(t *testing.T) {
	t.Run("unconfigured", func(t *testing.T) {
		handler := NewHTTPServer(newTestService(t, newFakeStore()), "*").Handler()
		expectError(t, doRequest(t, handler, http.MethodPost, "/api/assist/define", map[string]any{"term": "gist"}, ""), http.StatusServiceUnavailable, "ASSIST_UNAVAILABLE")
		expectError(t, doRequest(t, handler, http.MethodGet, "/api/assist/citations?q=x", nil, ""), http.StatusServiceUnavailable, "ASSIST_UNAVAILABLE")
	})

	t.Run("configured", func(t *testing.T) {
		svc := newTestService(t, newFakeStore())
		svc.definer = &fakeDefiner{defineFn: func(_ context.Context, term, passage string) (assist.Definition, error) {
			if term == "" {
				return assist.Definition{}, assist.ErrEmptyQuery
			}
			return assist.Definition{Term: term, Definition: "The main point (" + passage + ").", Model: "fake"}, nil
		}}
		svc.citations = &fakeCitations{searchFn: func(_ context.Context, query string, limit int) ([]assist.Citation, error) {
			if limit != 3 {
				t.Errorf("limit = %d, want 3", limit)
			}
			return []assist.Citation{{Title: query, Authors: []string{"Strunk", "White"}, Year: 1959}}, nil
		}}
		handler := NewHTTPServer(svc, "*").Handler()

		rr := doRequest(t, handler, http.MethodPost, "/api/assist/define", map[string]any{"term": "gist", "context": "get the gist"}, "")
		def := decodeResponse[assist.Definition](t, rr)
		if def.Term != "gist" || def.Definition != "The main point (get the gist)." {
			t.Fatalf("unexpected definition: %+v", def)
		}
		expectError(t, doRequest(t, handler, http.MethodPost, "/api/assist/define", map[string]any{"term": ""}, ""), http.StatusUnprocessableEntity, "VALIDATION_ERROR")

		rr = doRequest(t, handler, http.MethodGet, "/api/assist/citations?q=Elements+of+Style&limit=3", nil, "")
		hits := decodeResponse[struct {
			Results   []assist.Citation `json:"results"`
			Formatted []string          `json:"formatted"`
		}](t, rr)
		if len(hits.Results) != 1 || hits.Formatted[0] != "Strunk and White (1959). Elements of Style." {
			t.Fatalf("unexpected citations: %+v", hits)
		}
	})
}

func TestExportArchive(t *testing.T) {
	cases := []struct {
		name       string
		storeErr   error
		wantHeader string
	}{
		{name: "archived", wantHeader: "https://objects.example/doc.html"},
		{name: "archive down", storeErr: errors.New("bucket gone")},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			svc := newTestService(t, newFakeStore(), WithExporter(export.NewService("", nil)))
			var archivedID string
			svc.archive = &fakeArchive{storeFn: func(_ context.Context, documentID string, result *export.Result) (string, error) {
				archivedID = documentID
				if len(result.Data) == 0 {
					t.Error("archived an empty export")
				}
				return "https://objects.example/doc.html", tc.storeErr
			}}
			handler := NewHTTPServer(svc, "*").Handler()
			id := createDocument(t, handler, "Draft", "Plain words.")

			rr := doRequest(t, handler, http.MethodPost, "/api/documents/"+id+"/export", map[string]any{"format": "html"}, "")
			if rr.Code != http.StatusOK {
				t.Fatalf("export status = %d: %s", rr.Code, rr.Body.String())
			}
			if archivedID != id {
				t.Fatalf("archived %q, want %q", archivedID, id)
			}
			if got := rr.Header().Get("X-Penwise-Archive-URL"); got != tc.wantHeader {
				t.Fatalf("archive header = %q, want %q", got, tc.wantHeader)
			}
		})
	}
}

func TestExportUnconfigured(t *testing.T) {
	handler := NewHTTPServer(newTestService(t, newFakeStore()), "*").Handler()
	id := createDocument(t, handler, "Draft", "Plain words.")
	expectError(t, doRequest(t, handler, http.MethodPost, "/api/documents/"+id+"/export", map[string]any{"format": "pdf"}, ""), http.StatusServiceUnavailable, "EXPORT_UNAVAILABLE")
}
