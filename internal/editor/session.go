// Package editor keeps one live editing session per open document: the
// document, its suggestion tracker and the background analysis feeding it.
package editor

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"penwise/internal/analysis"
	"penwise/internal/tracker"
)

var (
	ErrSessionClosed = errors.New("session closed")
	ErrNoReplacement = errors.New("suggestion has no replacement")
)

// Document is what a session edits.
type Document interface {
	tracker.Document
	OffsetRange(offset, length int) (int, int, error)
}

// Analyzer runs one analysis pass. *analysis.Checker satisfies it.
type Analyzer interface {
	Check(ctx context.Context, text string, extra ...*analysis.Dictionary) (analysis.Result, error)
}

// Edit replaces Delete runes at Offset of the plain text with Insert.
type Edit struct {
	Offset int    `json:"offset"`
	Delete int    `json:"delete"`
	Insert string `json:"insert"`
}

// Snapshot is a consistent view of a session.
type Snapshot struct {
	DocumentID  string                    `json:"documentId"`
	Content     json.RawMessage           `json:"content"`
	Text        string                    `json:"text"`
	Generation  uint64                    `json:"generation"`
	Pending     bool                      `json:"pending"`
	Suggestions []tracker.Suggestion      `json:"suggestions"`
	Decorations []tracker.DisplaySpan     `json:"decorations"`
	Stats       analysis.Stats            `json:"stats"`
	Providers   []analysis.ProviderStatus `json:"providers"`
}

// Session serialises every tracker mutation behind one mutex. Analysis
// runs outside the lock on a text snapshot and is ingested only while that
// snapshot still matches the document. The held set is shared by every
// reader; per-reader dictionaries apply when it is read through As.
type Session struct {
	id        string
	logger    *zap.SugaredLogger
	scheduler *analysis.Scheduler
	cancel    context.CancelFunc

	mu         sync.Mutex
	doc        Document
	tracker    *tracker.Tracker
	generation uint64
	stats      analysis.Stats
	providers  []analysis.ProviderStatus
	closed     bool
}

// Options tunes a session.
type Options struct {
	SchedulerOptions []analysis.SchedulerOption
	TrackerOptions   []tracker.Option
	Logger           *zap.SugaredLogger
}

func NewSession(id string, doc Document, analyzer Analyzer, opts Options) *Session {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	ctx, cancel := context.WithCancel(context.Background())
	s := &Session{
		id:      id,
		logger:  logger.With("document_id", id),
		cancel:  cancel,
		doc:     doc,
		tracker: tracker.New(doc, opts.TrackerOptions...),
	}
	analyze := func(ctx context.Context, text string) (analysis.Result, error) {
		return analyzer.Check(ctx, text)
	}
	schedOpts := append([]analysis.SchedulerOption{analysis.WithSchedulerLogger(s.logger)}, opts.SchedulerOptions...)
	s.scheduler = analysis.NewScheduler(ctx, analyze, s.deliver, schedOpts...)
	return s
}

func (s *Session) ID() string {
	return s.id
}

// View is a session read through one writer's approved words: spelling
// suggestions dict approves are hidden from its snapshots and cannot be
// applied or dismissed through it.
type View struct {
	s    *Session
	dict *analysis.Dictionary
}

// As returns the session as seen by the owner of dict. A nil dict hides
// nothing.
func (s *Session) As(dict *analysis.Dictionary) View {
	return View{s: s, dict: dict}
}

func (s *Session) Snapshot() (Snapshot, error) { return s.As(nil).Snapshot() }

func (s *Session) Edit(edits ...Edit) (Snapshot, error) { return s.As(nil).Edit(edits...) }

func (s *Session) Analyze(ctx context.Context) (Snapshot, error) { return s.As(nil).Analyze(ctx) }

func (s *Session) ApplyFix(id string, replacement *string) (tracker.AppliedFix, Snapshot, error) {
	return s.As(nil).ApplyFix(id, replacement)
}

func (s *Session) Dismiss(id string) (Snapshot, error) { return s.As(nil).Dismiss(id) }

func (s *Session) Decorations() ([]tracker.DisplaySpan, error) { return s.As(nil).Decorations() }

// Snapshot returns the current state.
func (v View) Snapshot() (Snapshot, error) {
	s := v.s
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return Snapshot{}, ErrSessionClosed
	}
	return s.snapshotLocked(v.dict)
}

// Edit applies edits in order, each in the coordinates left by the one
// before, keeps the held spans aligned and schedules a new analysis pass.
func (v View) Edit(edits ...Edit) (Snapshot, error) {
	s := v.s
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return Snapshot{}, ErrSessionClosed
	}

	mapping := make(tracker.Mapping, 0, len(edits))
	var editErr error
	for i, e := range edits {
		from, to, err := s.doc.OffsetRange(e.Offset, e.Delete)
		if err != nil {
			editErr = fmt.Errorf("edit %d: %w", i, err)
			break
		}
		step, err := s.doc.Replace(from, to, e.Insert)
		if err != nil {
			editErr = fmt.Errorf("edit %d: %w", i, err)
			break
		}
		if !step.Empty() {
			mapping = append(mapping, step)
		}
	}

	if len(mapping) > 0 {
		report := s.tracker.SyncOnDocumentEdit(mapping)
		if report.Dropped > 0 {
			s.logger.Debugw("suggestions dropped after edit", "dropped", report.Dropped, "kept", report.Kept)
		}
		s.scheduler.Schedule(s.doc.PlainText())
	}
	if editErr != nil {
		return Snapshot{}, editErr
	}
	return s.snapshotLocked(v.dict)
}

// Analyze runs a pass immediately and returns the state after it was
// ingested. A pass overtaken by a newer edit returns analysis.ErrStale.
func (v View) Analyze(ctx context.Context) (Snapshot, error) {
	s := v.s
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return Snapshot{}, ErrSessionClosed
	}
	text := s.doc.PlainText()
	s.mu.Unlock()

	if _, err := s.scheduler.RunNow(ctx, text); err != nil {
		return Snapshot{}, err
	}
	return v.Snapshot()
}

// Refresh queues a debounced pass over the current text.
func (s *Session) Refresh() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.scheduler.Schedule(s.doc.PlainText())
}

// ApplyFix writes a replacement for suggestion id. A nil replacement uses
// the suggestion's first one.
func (v View) ApplyFix(id string, replacement *string) (tracker.AppliedFix, Snapshot, error) {
	s := v.s
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return tracker.AppliedFix{}, Snapshot{}, ErrSessionClosed
	}

	target, ok := s.findLocked(v.dict, id)
	if !ok {
		return tracker.AppliedFix{}, Snapshot{}, tracker.ErrNotFound
	}
	var text string
	if replacement != nil {
		text = *replacement
	} else {
		if len(target.Replacements) == 0 {
			return tracker.AppliedFix{}, Snapshot{}, ErrNoReplacement
		}
		text = target.Replacements[0]
	}

	applied, err := s.tracker.ApplyFix(id, text)
	if err != nil {
		return tracker.AppliedFix{}, Snapshot{}, err
	}
	s.scheduler.Schedule(s.doc.PlainText())
	snap, err := s.snapshotLocked(v.dict)
	return applied, snap, err
}

// Dismiss drops a suggestion without editing the document.
func (v View) Dismiss(id string) (Snapshot, error) {
	s := v.s
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return Snapshot{}, ErrSessionClosed
	}
	if _, ok := s.findLocked(v.dict, id); !ok || !s.tracker.Dismiss(id) {
		return Snapshot{}, tracker.ErrNotFound
	}
	return s.snapshotLocked(v.dict)
}

func (v View) Decorations() ([]tracker.DisplaySpan, error) {
	s := v.s
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, ErrSessionClosed
	}
	_, decorations := s.visibleLocked(v.dict)
	return decorations, nil
}

// Close stops background analysis. It is safe to call more than once.
func (s *Session) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.mu.Unlock()

	s.scheduler.Close()
	s.cancel()
	s.logger.Debugw("session closed")
}

// deliver ingests a finished pass unless the document moved on since the
// pass read it.
func (s *Session) deliver(res analysis.Result) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	if res.Generation != s.scheduler.Latest() || res.Text != s.doc.PlainText() {
		s.logger.Debugw("discarding stale analysis", "generation", res.Generation, "latest", s.scheduler.Latest())
		return
	}
	report := s.tracker.Ingest(res.Suggestions)
	if report.Invalid+report.Duplicate+report.OutOfBounds > 0 {
		s.logger.Debugw("suggestions rejected on ingest",
			"invalid", report.Invalid,
			"duplicate", report.Duplicate,
			"out_of_bounds", report.OutOfBounds,
		)
	}
	s.generation = res.Generation
	s.stats = res.Stats
	s.providers = res.Providers
}

func (s *Session) snapshotLocked(dict *analysis.Dictionary) (Snapshot, error) {
	content, err := json.Marshal(s.doc)
	if err != nil {
		return Snapshot{}, fmt.Errorf("marshal document: %w", err)
	}
	suggestions, decorations := s.visibleLocked(dict)
	return Snapshot{
		DocumentID:  s.id,
		Content:     content,
		Text:        s.doc.PlainText(),
		Generation:  s.generation,
		Pending:     s.scheduler.Latest() > s.generation,
		Suggestions: suggestions,
		Decorations: decorations,
		Stats:       s.stats,
		Providers:   append([]analysis.ProviderStatus(nil), s.providers...),
	}, nil
}

// visibleLocked returns the held suggestions minus the spelling findings
// dict approves, and the decorations of what is left.
func (s *Session) visibleLocked(dict *analysis.Dictionary) ([]tracker.Suggestion, []tracker.DisplaySpan) {
	held := s.tracker.Suggestions()
	if dict == nil || dict.Len() == 0 {
		return held, s.tracker.Decorations()
	}
	shown := analysis.Filter(s.doc.PlainText(), held, dict)
	if len(shown) == len(held) {
		return held, s.tracker.Decorations()
	}
	view := tracker.New(s.doc)
	view.Ingest(shown)
	return shown, view.Decorations()
}

func (s *Session) findLocked(dict *analysis.Dictionary, id string) (tracker.Suggestion, bool) {
	shown := s.tracker.Suggestions()
	if dict != nil {
		shown = analysis.Filter(s.doc.PlainText(), shown, dict)
	}
	for _, sg := range shown {
		if sg.ID == id {
			return sg, true
		}
	}
	return tracker.Suggestion{}, false
}
