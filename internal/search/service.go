package search

import (
	"context"

	"go.uber.org/zap"
)

// Service is the facade that tries the primary index first and falls back
// to PG FTS.
type Service struct {
	primary  Backend
	fallback Searcher
	loader   RecordLoader
	logger   *zap.SugaredLogger
}

// NewService creates a search service. primary may be nil if Meilisearch is
// not configured; loader may be nil to disable reindexing.
func NewService(primary Backend, fallback Searcher, loader RecordLoader, logger *zap.SugaredLogger) *Service {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &Service{primary: primary, fallback: fallback, loader: loader, logger: logger}
}

func (s *Service) primaryReady() bool {
	return s.primary != nil && s.primary.Healthy()
}

// Search tries the primary index if healthy, otherwise falls back to PG FTS.
func (s *Service) Search(ctx context.Context, q Query) Response {
	if s.primaryReady() {
		results, total, err := s.primary.Search(ctx, q)
		if err == nil {
			return Response{Results: nonNil(results), Total: total, Query: q.Text}
		}
		s.logger.Warnw("primary search failed, falling back to pgfts", "error", err)
	}
	if s.fallback == nil {
		return Response{Results: []Result{}, Query: q.Text}
	}

	results, total, err := s.fallback.Search(ctx, q)
	if err != nil {
		s.logger.Errorw("pgfts search failed", "error", err)
		return Response{Results: []Result{}, Total: 0, Query: q.Text}
	}
	return Response{Results: nonNil(results), Total: total, Query: q.Text}
}

// IndexDocument indexes a document (fire-and-forget).
func (s *Service) IndexDocument(doc DocumentRecord) {
	if !s.primaryReady() {
		return
	}
	go func() {
		if err := s.primary.IndexDocuments([]DocumentRecord{doc}); err != nil {
			s.logger.Warnw("index document failed", "document_id", doc.ID, "error", err)
		}
	}()
}

// DeleteDocument removes a document from the index (fire-and-forget).
func (s *Service) DeleteDocument(id string) {
	if !s.primaryReady() {
		return
	}
	go func() {
		if err := s.primary.DeleteDocument(id); err != nil {
			s.logger.Warnw("delete document failed", "document_id", id, "error", err)
		}
	}()
}

// ReindexAll reads every document from the loader and pushes it to the
// primary index.
func (s *Service) ReindexAll(ctx context.Context) {
	if !s.primaryReady() || s.loader == nil {
		return
	}
	documents, err := s.loader.LoadAllRecords(ctx)
	if err != nil {
		s.logger.Warnw("reindex load failed", "error", err)
		return
	}
	if err := s.primary.IndexDocuments(documents); err != nil {
		s.logger.Warnw("reindex documents failed", "error", err)
		return
	}
	s.logger.Infow("reindexed documents", "count", len(documents))
}

func nonNil(r []Result) []Result {
	if r == nil {
		return []Result{}
	}
	return r
}
