package app

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"penwise/internal/analysis"
	"penwise/internal/assist"
	"penwise/internal/config"
	"penwise/internal/document"
	"penwise/internal/editor"
	"penwise/internal/export"
	"penwise/internal/search"
	"penwise/internal/store"
	"penwise/internal/tracker"
	"penwise/internal/util"
)

const defaultOwner = "anonymous"

type DocumentSummary struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	UpdatedBy string    `json:"updatedBy"`
	UpdatedAt time.Time `json:"updatedAt"`
	Open      bool      `json:"open"`
}

type DocumentView struct {
	ID        string          `json:"id"`
	Title     string          `json:"title"`
	Content   json.RawMessage `json:"content"`
	Text      string          `json:"text"`
	UpdatedBy string          `json:"updatedBy"`
	CreatedAt time.Time       `json:"createdAt"`
	UpdatedAt time.Time       `json:"updatedAt"`
}

// DocumentInput creates or replaces a document. Content takes precedence
// over Text; Text is split into one paragraph per line.
type DocumentInput struct {
	Title   string          `json:"title"`
	Content json.RawMessage `json:"content"`
	Text    string          `json:"text"`
}

type FixResult struct {
	Applied  tracker.AppliedFix `json:"applied"`
	Snapshot editor.Snapshot    `json:"session"`
}

type dataStore interface {
	ListDocuments(context.Context) ([]store.Document, error)
	GetDocument(context.Context, string) (store.Document, error)
	InsertDocument(context.Context, store.Document) error
	UpdateDocumentContent(context.Context, store.Document) (bool, error)
	DeleteDocument(context.Context, string) (bool, error)
	ListDictionaryWords(context.Context, string) ([]string, error)
	AddDictionaryWord(context.Context, string, string) error
	RemoveDictionaryWord(context.Context, string, string) (bool, error)
	Ping(context.Context) error
}

type searchIndex interface {
	Search(context.Context, search.Query) search.Response
	IndexDocument(search.DocumentRecord)
	DeleteDocument(string)
}

type exporter interface {
	Export(context.Context, export.Request) (*export.Result, error)
}

type archiver interface {
	Store(ctx context.Context, documentID string, result *export.Result) (string, error)
}

type definer interface {
	Define(ctx context.Context, term, passage string) (assist.Definition, error)
}

type citationSearcher interface {
	Search(ctx context.Context, query string, limit int) ([]assist.Citation, error)
}

type Service struct {
	cfg       config.Config
	store     dataStore
	analyzer  editor.Analyzer
	sessions  *editor.Manager
	search    searchIndex
	exporter  exporter
	archive   archiver
	definer   definer
	citations citationSearcher
	logger    *zap.SugaredLogger

	dictMu       sync.Mutex
	dictionaries map[string]*analysis.Dictionary
}

// Option wires an optional collaborator into the Service.
type Option func(*Service)

func WithSearch(svc *search.Service) Option {
	return func(s *Service) { s.search = svc }
}

func WithExporter(svc *export.Service) Option {
	return func(s *Service) { s.exporter = svc }
}

func WithArchive(a *export.Archive) Option {
	return func(s *Service) { s.archive = a }
}

func WithDefiner(d *assist.Definer) Option {
	return func(s *Service) { s.definer = d }
}

func WithCitations(c *assist.Citations) Option {
	return func(s *Service) { s.citations = c }
}

func WithLogger(logger *zap.SugaredLogger) Option {
	return func(s *Service) { s.logger = logger }
}

func New(cfg config.Config, dataStore *store.PostgresStore, analyzer *analysis.Checker, opts ...Option) *Service {
	return newService(cfg, dataStore, analyzer, opts...)
}

func newService(cfg config.Config, dataStore dataStore, analyzer editor.Analyzer, opts ...Option) *Service {
	s := &Service{
		cfg:          cfg,
		store:        dataStore,
		analyzer:     analyzer,
		dictionaries: make(map[string]*analysis.Dictionary),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = zap.NewNop().Sugar()
	}
	s.sessions = editor.NewManager(cfg.MaxSessions, cfg.SessionTTL, s.logger)
	return s
}

func (s *Service) Ping(ctx context.Context) error {
	return s.store.Ping(ctx)
}

// Shutdown closes every open session.
func (s *Service) Shutdown() {
	s.sessions.CloseAll()
}

// Bootstrap seeds a welcome document into an empty store.
func (s *Service) Bootstrap(ctx context.Context) error {
	documents, err := s.store.ListDocuments(ctx)
	if err != nil {
		return err
	}
	if len(documents) > 0 {
		return nil
	}
	_, err = s.CreateDocument(ctx, DocumentInput{
		Title: "Welcome to Penwise",
		Text: "Penwise reads over you're shoulder while you write.\n" +
			"Suggestions are underlined in place and move with the text as you edit.\n" +
			"Apply a fix or dismiss it, and the rest stay where they belong.",
	}, "penwise")
	return err
}

func (s *Service) ListDocuments(ctx context.Context) ([]DocumentSummary, error) {
	documents, err := s.store.ListDocuments(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]DocumentSummary, 0, len(documents))
	for _, item := range documents {
		_, open := s.sessions.Get(item.ID)
		out = append(out, DocumentSummary{
			ID:        item.ID,
			Title:     item.Title,
			UpdatedBy: item.UpdatedBy,
			UpdatedAt: item.UpdatedAt,
			Open:      open,
		})
	}
	return out, nil
}

func (s *Service) GetDocument(ctx context.Context, documentID string) (DocumentView, error) {
	item, err := s.store.GetDocument(ctx, documentID)
	if err != nil {
		return DocumentView{}, err
	}
	return documentView(item), nil
}

func (s *Service) CreateDocument(ctx context.Context, input DocumentInput, owner string) (DocumentView, error) {
	title := strings.TrimSpace(input.Title)
	if title == "" {
		return DocumentView{}, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "title is required", nil)
	}
	doc, err := buildDocument(input)
	if err != nil {
		return DocumentView{}, err
	}
	content, err := json.Marshal(doc)
	if err != nil {
		return DocumentView{}, fmt.Errorf("marshal document: %w", err)
	}
	item := store.Document{
		ID:        util.NewID("doc"),
		Title:     title,
		Content:   content,
		PlainText: doc.PlainText(),
		UpdatedBy: ownerOrDefault(owner),
	}
	if err := s.store.InsertDocument(ctx, item); err != nil {
		return DocumentView{}, err
	}
	s.index(item.ID, item.Title, item.PlainText)
	return s.GetDocument(ctx, item.ID)
}

// UpdateDocument replaces a document's title or content. Replacing the
// content closes its editing session, since held suggestions no longer
// describe the new text.
func (s *Service) UpdateDocument(ctx context.Context, documentID string, input DocumentInput, owner string) (DocumentView, error) {
	hasContent := len(input.Content) > 0 && string(input.Content) != "null"
	if strings.TrimSpace(input.Title) == "" && !hasContent && input.Text == "" {
		return DocumentView{}, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "title, content or text is required", nil)
	}
	item, err := s.store.GetDocument(ctx, documentID)
	if err != nil {
		return DocumentView{}, err
	}
	item.Title = strings.TrimSpace(input.Title)
	item.UpdatedBy = ownerOrDefault(owner)
	if hasContent || input.Text != "" {
		doc, err := buildDocument(input)
		if err != nil {
			return DocumentView{}, err
		}
		content, err := json.Marshal(doc)
		if err != nil {
			return DocumentView{}, fmt.Errorf("marshal document: %w", err)
		}
		item.Content = content
		item.PlainText = doc.PlainText()
		s.sessions.Close(documentID)
	}
	updated, err := s.store.UpdateDocumentContent(ctx, item)
	if err != nil {
		return DocumentView{}, err
	}
	if !updated {
		return DocumentView{}, sql.ErrNoRows
	}
	view, err := s.GetDocument(ctx, documentID)
	if err != nil {
		return DocumentView{}, err
	}
	s.index(view.ID, view.Title, view.Text)
	return view, nil
}

func (s *Service) DeleteDocument(ctx context.Context, documentID string) error {
	deleted, err := s.store.DeleteDocument(ctx, documentID)
	if err != nil {
		return err
	}
	if !deleted {
		return sql.ErrNoRows
	}
	s.sessions.Close(documentID)
	if s.search != nil {
		s.search.DeleteDocument(documentID)
	}
	return nil
}

// OpenSession starts tracking suggestions for a document, or returns the
// session already open for it. created reports whether a new one started.
func (s *Service) OpenSession(ctx context.Context, documentID, owner string) (editor.Snapshot, bool, error) {
	view, created, err := s.view(ctx, documentID, owner)
	if err != nil {
		return editor.Snapshot{}, false, err
	}
	snap, err := view.Snapshot()
	return snap, created, err
}

func (s *Service) CloseSession(documentID string) error {
	if !s.sessions.Close(documentID) {
		return domainError(http.StatusNotFound, "SESSION_NOT_OPEN", "No editing session is open for this document", nil)
	}
	return nil
}

func (s *Service) SessionSnapshot(ctx context.Context, documentID, owner string) (editor.Snapshot, error) {
	snap, _, err := s.OpenSession(ctx, documentID, owner)
	return snap, err
}

// Edit applies edits to the session and writes the result through to the
// store. Edits before a rejected one stay applied and are saved too.
func (s *Service) Edit(ctx context.Context, documentID, owner string, edits []editor.Edit) (editor.Snapshot, error) {
	if len(edits) == 0 {
		return editor.Snapshot{}, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "at least one edit is required", nil)
	}
	view, _, err := s.view(ctx, documentID, owner)
	if err != nil {
		return editor.Snapshot{}, err
	}
	snap, editErr := view.Edit(edits...)
	if editErr != nil {
		if snap, err = view.Snapshot(); err != nil {
			return editor.Snapshot{}, editErr
		}
	}
	if err := s.persist(ctx, snap, owner); err != nil {
		return editor.Snapshot{}, err
	}
	if editErr != nil {
		return editor.Snapshot{}, editErr
	}
	return snap, nil
}

func (s *Service) Analyze(ctx context.Context, documentID, owner string) (editor.Snapshot, error) {
	view, _, err := s.view(ctx, documentID, owner)
	if err != nil {
		return editor.Snapshot{}, err
	}
	return view.Analyze(ctx)
}

func (s *Service) Decorations(ctx context.Context, documentID, owner string) ([]tracker.DisplaySpan, error) {
	view, _, err := s.view(ctx, documentID, owner)
	if err != nil {
		return nil, err
	}
	return view.Decorations()
}

// ApplyFix writes a suggestion's replacement into the document. A nil
// replacement takes the suggestion's first one.
func (s *Service) ApplyFix(ctx context.Context, documentID, owner, suggestionID string, replacement *string) (FixResult, error) {
	view, _, err := s.view(ctx, documentID, owner)
	if err != nil {
		return FixResult{}, err
	}
	applied, snap, err := view.ApplyFix(suggestionID, replacement)
	if err != nil {
		return FixResult{}, err
	}
	if err := s.persist(ctx, snap, owner); err != nil {
		return FixResult{}, err
	}
	return FixResult{Applied: applied, Snapshot: snap}, nil
}

func (s *Service) Dismiss(ctx context.Context, documentID, owner, suggestionID string) (editor.Snapshot, error) {
	view, _, err := s.view(ctx, documentID, owner)
	if err != nil {
		return editor.Snapshot{}, err
	}
	return view.Dismiss(suggestionID)
}

// Export renders the document as it stands in its session, marks included.
func (s *Service) Export(ctx context.Context, documentID, owner, format string) (*export.Result, error) {
	parsed, err := export.ParseFormat(format)
	if err != nil {
		return nil, err
	}
	if s.exporter == nil {
		return nil, domainError(http.StatusServiceUnavailable, "EXPORT_UNAVAILABLE", "Export is not configured", nil)
	}
	item, err := s.store.GetDocument(ctx, documentID)
	if err != nil {
		return nil, err
	}
	snap, err := s.SessionSnapshot(ctx, documentID, owner)
	if err != nil {
		return nil, err
	}
	doc, err := document.Parse(snap.Content)
	if err != nil {
		return nil, err
	}
	result, err := s.exporter.Export(ctx, export.Request{
		Title:       item.Title,
		Author:      item.UpdatedBy,
		UpdatedAt:   item.UpdatedAt,
		Doc:         doc,
		Suggestions: snap.Suggestions,
		Decorations: snap.Decorations,
		Stats:       snap.Stats,
		Format:      parsed,
	})
	if err != nil {
		return nil, err
	}
	if s.archive != nil {
		link, err := s.archive.Store(ctx, documentID, result)
		if err != nil {
			s.logger.Warnw("export archive failed", "document_id", documentID, "error", err)
		} else {
			result.ArchiveURL = link
		}
	}
	return result, nil
}

func (s *Service) Search(ctx context.Context, query string, limit, offset int) (search.Response, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return search.Response{}, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "q is required", nil)
	}
	if s.search == nil {
		return search.Response{}, domainError(http.StatusServiceUnavailable, "SEARCH_UNAVAILABLE", "Search is not configured", nil)
	}
	return s.search.Search(ctx, search.Query{Text: query, Limit: limit, Offset: offset}), nil
}

func (s *Service) ListDictionary(ctx context.Context, owner string) ([]string, error) {
	dict, err := s.dictionary(ctx, owner)
	if err != nil {
		return nil, err
	}
	return dict.Words(), nil
}

// AddDictionaryWord approves word for owner. Suggestions already held by
// open sessions are hidden from owner's next read.
func (s *Service) AddDictionaryWord(ctx context.Context, owner, word string) ([]string, error) {
	word = strings.TrimSpace(word)
	if word == "" || strings.ContainsAny(word, " \t\n") {
		return nil, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "word must be a single non-empty word", nil)
	}
	dict, err := s.dictionary(ctx, owner)
	if err != nil {
		return nil, err
	}
	if err := s.store.AddDictionaryWord(ctx, ownerOrDefault(owner), word); err != nil {
		return nil, err
	}
	dict.Add(word)
	return dict.Words(), nil
}

func (s *Service) RemoveDictionaryWord(ctx context.Context, owner, word string) error {
	dict, err := s.dictionary(ctx, owner)
	if err != nil {
		return err
	}
	removed, err := s.store.RemoveDictionaryWord(ctx, ownerOrDefault(owner), word)
	if err != nil {
		return err
	}
	if !removed {
		return domainError(http.StatusNotFound, "WORD_NOT_FOUND", "Word is not in the dictionary", nil)
	}
	dict.Remove(word)
	return nil
}

func (s *Service) Define(ctx context.Context, term, passage string) (assist.Definition, error) {
	if s.definer == nil {
		return assist.Definition{}, domainError(http.StatusServiceUnavailable, "ASSIST_UNAVAILABLE", "Definitions are not configured", nil)
	}
	return s.definer.Define(ctx, term, passage)
}

func (s *Service) Citations(ctx context.Context, query string, limit int) ([]assist.Citation, error) {
	if s.citations == nil {
		return nil, domainError(http.StatusServiceUnavailable, "ASSIST_UNAVAILABLE", "Citation search is not configured", nil)
	}
	return s.citations.Search(ctx, query, limit)
}

func (s *Service) analysisTimeout() time.Duration {
	if s.cfg.AnalysisTimeout > 0 {
		return s.cfg.AnalysisTimeout
	}
	return 30 * time.Second
}

func (s *Service) session(ctx context.Context, documentID string) (*editor.Session, bool, error) {
	return s.sessions.Open(documentID, func() (*editor.Session, error) {
		item, err := s.store.GetDocument(ctx, documentID)
		if err != nil {
			return nil, err
		}
		doc, err := document.Parse(item.Content)
		if err != nil {
			return nil, err
		}
		sess := editor.NewSession(documentID, doc, s.analyzer, editor.Options{
			SchedulerOptions: []analysis.SchedulerOption{analysis.WithDebounce(s.cfg.AnalysisDebounce)},
			Logger:           s.logger,
		})
		sess.Refresh()
		return sess, nil
	})
}

// view opens the document's session and reads it through owner's approved
// words. Sessions are shared across writers; dictionaries are not.
func (s *Service) view(ctx context.Context, documentID, owner string) (editor.View, bool, error) {
	dict, err := s.dictionary(ctx, owner)
	if err != nil {
		return editor.View{}, false, err
	}
	sess, created, err := s.session(ctx, documentID)
	if err != nil {
		return editor.View{}, false, err
	}
	return sess.As(dict), created, nil
}

// dictionary returns owner's approved words, loading them on first use.
// Views hold the returned value, so later changes reach them.
func (s *Service) dictionary(ctx context.Context, owner string) (*analysis.Dictionary, error) {
	owner = ownerOrDefault(owner)
	s.dictMu.Lock()
	defer s.dictMu.Unlock()
	if dict, ok := s.dictionaries[owner]; ok {
		return dict, nil
	}
	words, err := s.store.ListDictionaryWords(ctx, owner)
	if err != nil {
		return nil, err
	}
	dict := analysis.NewDictionary(words...)
	s.dictionaries[owner] = dict
	return dict, nil
}

func (s *Service) persist(ctx context.Context, snap editor.Snapshot, owner string) error {
	updated, err := s.store.UpdateDocumentContent(ctx, store.Document{
		ID:        snap.DocumentID,
		Content:   snap.Content,
		PlainText: snap.Text,
		UpdatedBy: ownerOrDefault(owner),
	})
	if err != nil {
		return err
	}
	if !updated {
		s.sessions.Close(snap.DocumentID)
		return sql.ErrNoRows
	}
	if s.search != nil {
		item, err := s.store.GetDocument(ctx, snap.DocumentID)
		if err != nil {
			s.logger.Warnw("reload for indexing failed", "document_id", snap.DocumentID, "error", err)
			return nil
		}
		s.index(item.ID, item.Title, item.PlainText)
	}
	return nil
}

func (s *Service) index(id, title, text string) {
	if s.search == nil {
		return
	}
	s.search.IndexDocument(search.DocumentRecord{
		ID:        id,
		Title:     title,
		Text:      text,
		UpdatedAt: time.Now().Unix(),
	})
}

func buildDocument(input DocumentInput) (*document.Doc, error) {
	if len(input.Content) > 0 && string(input.Content) != "null" {
		return document.Parse(input.Content)
	}
	return document.FromText(input.Text), nil
}

func documentView(item store.Document) DocumentView {
	content := item.Content
	if len(content) == 0 {
		content = json.RawMessage(`{"type":"doc","content":[]}`)
	}
	return DocumentView{
		ID:        item.ID,
		Title:     item.Title,
		Content:   content,
		Text:      item.PlainText,
		UpdatedBy: item.UpdatedBy,
		CreatedAt: item.CreatedAt,
		UpdatedAt: item.UpdatedAt,
	}
}

func ownerOrDefault(owner string) string {
	owner = strings.TrimSpace(owner)
	if owner == "" {
		return defaultOwner
	}
	return owner
}
