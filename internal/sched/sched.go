// Package sched implements the delayed task queue behind the crawl
// chain. Cycles for different sources run concurrently on a small worker
// pool; within one source the chain is strictly sequential because only
// a finishing cycle enqueues the next one.
package sched

import (
	"context"
	"sync"
	"time"

	"crawld/internal/logger"
	"crawld/internal/source"
	"crawld/internal/store"
)

// Runner executes one crawl cycle. Implemented by crawl.Runner.
type Runner interface {
	RunCycle(ctx context.Context, sourceID int64) *store.CrawlLog
}

// SourceLister provides the active sources for bootstrap.
type SourceLister interface {
	ActiveSources(ctx context.Context) ([]*source.Source, error)
}

// Scheduler is a timer-wheel-lite: a pending map of due times checked on
// an interval tick, feeding a worker pool.
type Scheduler struct {
	runner  Runner
	log     logger.Logger
	tick    time.Duration
	workers int
	now     func() time.Time

	mu      sync.Mutex
	pending map[int64]time.Time

	work chan int64
	wg   sync.WaitGroup
}

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithTick sets the due-check interval.
func WithTick(d time.Duration) Option {
	return func(s *Scheduler) { s.tick = d }
}

// WithWorkers sets the worker pool size.
func WithWorkers(n int) Option {
	return func(s *Scheduler) { s.workers = n }
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(s *Scheduler) { s.now = now }
}

// New builds a scheduler. The runner may be nil at construction time and
// set later with SetRunner; the scheduler is the runner's queue, so the
// two reference each other.
func New(runner Runner, log logger.Logger, opts ...Option) *Scheduler {
	s := &Scheduler{
		runner:  runner,
		log:     log,
		tick:    time.Second,
		workers: 4,
		now:     time.Now,
		pending: make(map[int64]time.Time),
		work:    make(chan int64),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// SetRunner attaches the cycle runner. Must be called before Run.
func (s *Scheduler) SetRunner(r Runner) {
	s.runner = r
}

// Enqueue schedules a cycle for the source after delay. A source with a
// cycle already pending is left alone: the chain guarantees one in-flight
// cycle per source, and duplicate external kicks must not break that.
func (s *Scheduler) Enqueue(sourceID int64, delay time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if due, ok := s.pending[sourceID]; ok {
		s.log.Debug("cycle already pending, ignoring enqueue",
			logger.Int64("source_id", sourceID),
			logger.Time("due", due))
		return
	}
	s.pending[sourceID] = s.now().Add(delay)
	s.log.Debug("cycle enqueued",
		logger.Int64("source_id", sourceID),
		logger.Duration("delay", delay))
}

// Pending reports how many cycles are waiting to run.
func (s *Scheduler) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.pending)
}

// Bootstrap enqueues an immediate cycle for every active source, kicking
// off each source's chain.
func (s *Scheduler) Bootstrap(ctx context.Context, sources SourceLister) error {
	active, err := sources.ActiveSources(ctx)
	if err != nil {
		return err
	}
	for _, src := range active {
		s.Enqueue(src.ID, 0)
	}
	s.log.Info("scheduler bootstrapped", logger.Int("sources", len(active)))
	return nil
}

// Run dispatches due cycles until ctx is cancelled, then waits for
// in-flight cycles to finish.
func (s *Scheduler) Run(ctx context.Context) {
	for i := 0; i < s.workers; i++ {
		s.wg.Add(1)
		go s.worker(ctx)
	}

	ticker := time.NewTicker(s.tick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			close(s.work)
			s.wg.Wait()
			return
		case <-ticker.C:
			s.dispatchDue(ctx)
		}
	}
}

func (s *Scheduler) dispatchDue(ctx context.Context) {
	now := s.now()

	s.mu.Lock()
	var due []int64
	for id, t := range s.pending {
		if !t.After(now) {
			due = append(due, id)
		}
	}
	for _, id := range due {
		delete(s.pending, id)
	}
	s.mu.Unlock()

	for _, id := range due {
		select {
		case s.work <- id:
		case <-ctx.Done():
			return
		}
	}
}

func (s *Scheduler) worker(ctx context.Context) {
	defer s.wg.Done()
	for id := range s.work {
		s.runner.RunCycle(ctx, id)
	}
}
