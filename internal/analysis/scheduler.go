package analysis

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

// DefaultDebounce is the quiescence window before a scheduled pass runs.
const DefaultDebounce = 800 * time.Millisecond

var (
	// ErrStale is returned by RunNow when a newer pass was issued while it ran.
	ErrStale  = errors.New("stale analysis response")
	ErrClosed = errors.New("scheduler closed")
)

// AnalyzeFunc runs one analysis pass over an immutable text snapshot.
type AnalyzeFunc func(ctx context.Context, text string) (Result, error)

// Scheduler debounces analysis requests and delivers only the result of
// the newest one. Every Schedule or RunNow issues a higher generation and
// cancels the pass in flight; a result whose generation is no longer the
// latest is dropped.
type Scheduler struct {
	analyze  AnalyzeFunc
	deliver  func(Result)
	debounce time.Duration
	baseCtx  context.Context
	logger   *zap.SugaredLogger

	seq    atomic.Uint64
	latest atomic.Uint64

	mu     sync.Mutex
	timer  *time.Timer
	cancel context.CancelFunc
	closed bool
}

type SchedulerOption func(*Scheduler)

func WithDebounce(d time.Duration) SchedulerOption {
	return func(s *Scheduler) {
		if d > 0 {
			s.debounce = d
		}
	}
}

func WithSchedulerLogger(logger *zap.SugaredLogger) SchedulerOption {
	return func(s *Scheduler) { s.logger = logger }
}

// NewScheduler creates a scheduler whose passes run under ctx and whose
// fresh results go to deliver.
func NewScheduler(ctx context.Context, analyze AnalyzeFunc, deliver func(Result), opts ...SchedulerOption) *Scheduler {
	s := &Scheduler{
		analyze:  analyze,
		deliver:  deliver,
		debounce: DefaultDebounce,
		baseCtx:  ctx,
		logger:   zap.NewNop().Sugar(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Schedule issues a new generation for text and (re)starts the debounce
// timer. It returns the generation.
func (s *Scheduler) Schedule(text string) uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return s.latest.Load()
	}
	gen := s.issueLocked()
	s.timer = time.AfterFunc(s.debounce, func() {
		ctx, ok := s.begin(gen)
		if !ok {
			return
		}
		_, _ = s.execute(ctx, gen, text)
	})
	return gen
}

// RunNow skips the debounce window and runs a pass for text synchronously.
// The result is delivered and returned unless a newer generation was issued
// meanwhile, in which case ErrStale is returned.
func (s *Scheduler) RunNow(ctx context.Context, text string) (Result, error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return Result{}, ErrClosed
	}
	gen := s.issueLocked()
	s.mu.Unlock()

	runCtx, ok := s.begin(gen)
	if !ok {
		return Result{}, ErrStale
	}
	stop := context.AfterFunc(ctx, s.cancelIfLatest(gen))
	defer stop()
	return s.execute(runCtx, gen, text)
}

// Latest returns the newest issued generation.
func (s *Scheduler) Latest() uint64 {
	return s.latest.Load()
}

// Close stops the timer and cancels the pass in flight. Later calls to
// Schedule and RunNow do nothing.
func (s *Scheduler) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	if s.timer != nil {
		s.timer.Stop()
	}
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
}

// issueLocked bumps the generation, stops a pending timer and cancels the
// pass in flight.
func (s *Scheduler) issueLocked() uint64 {
	gen := s.seq.Add(1)
	s.latest.Store(gen)
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
	return gen
}

// begin creates the context for generation gen, or reports false when gen
// is already outdated.
func (s *Scheduler) begin(gen uint64) (context.Context, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed || !s.isLatest(gen) {
		return nil, false
	}
	ctx, cancel := context.WithCancel(s.baseCtx)
	s.cancel = cancel
	return ctx, true
}

func (s *Scheduler) cancelIfLatest(gen uint64) func() {
	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		if s.isLatest(gen) && s.cancel != nil {
			s.cancel()
			s.cancel = nil
		}
	}
}

func (s *Scheduler) isLatest(gen uint64) bool {
	return gen != 0 && s.latest.Load() == gen
}

func (s *Scheduler) execute(ctx context.Context, gen uint64, text string) (Result, error) {
	start := time.Now()
	res, err := s.analyze(ctx, text)
	if err != nil {
		if !s.isLatest(gen) {
			s.logger.Debugw("analysis superseded", "generation", gen, "error", err)
			return Result{}, ErrStale
		}
		if ctx.Err() != nil {
			s.logger.Debugw("analysis canceled", "generation", gen)
		} else {
			s.logger.Warnw("analysis failed", "generation", gen, "error", err)
		}
		return Result{}, err
	}
	res.Generation = gen
	res.Text = text
	if !s.isLatest(gen) {
		s.logger.Debugw("discarding stale analysis", "generation", gen, "latest", s.latest.Load())
		return Result{}, ErrStale
	}
	s.logger.Debugw("analysis done",
		"generation", gen,
		"suggestions", len(res.Suggestions),
		"duration_ms", time.Since(start).Milliseconds(),
	)
	if s.deliver != nil {
		s.deliver(res)
	}
	return res, nil
}
