// Package crawl drives one full crawl cycle per source: fetch, extract,
// normalize, dedupe, persist, reconcile, log, reschedule. Every cycle,
// success or failure, ends by enqueueing its own successor; the chain
// only stops when a source is deactivated.
package crawl

import (
	"context"
	"errors"
	"time"

	"crawld/internal/extract"
	"crawld/internal/fetch"
	"crawld/internal/logger"
	"crawld/internal/notify"
	"crawld/internal/source"
	"crawld/internal/store"
)

// DefaultFailureRetryDelay is how long a failed cycle waits before its
// retry, independent of the source's normal interval. Named after the
// original deployment's fixed 30-minute backoff; it bounds retry storms
// while still self-healing.
const DefaultFailureRetryDelay = 30 * time.Minute

// Store is the slice of persistence the orchestrator needs.
type Store interface {
	GetSource(ctx context.Context, id int64) (*source.Source, error)
	ItemExists(ctx context.Context, fingerprint string) (bool, error)
	CreateItem(ctx context.Context, item *store.Item) error
	TouchLastCrawled(ctx context.Context, id int64, t time.Time) error
	AppendCrawlLog(ctx context.Context, log *store.CrawlLog) error
	ItemStore
}

// Queue schedules a future crawl cycle for a source.
type Queue interface {
	Enqueue(sourceID int64, delay time.Duration)
}

// Runner executes crawl cycles.
type Runner struct {
	store      Store
	queue      Queue
	notifier   notify.Notifier
	log        logger.Logger
	reconciler *Reconciler

	fetchOpts  fetch.Options
	retryDelay time.Duration

	// fetcherFor and now are injection points for tests.
	fetcherFor func(*source.Source) fetch.Fetcher
	now        func() time.Time
}

// Option configures a Runner.
type Option func(*Runner)

// WithRetryDelay overrides the failure retry delay.
func WithRetryDelay(d time.Duration) Option {
	return func(r *Runner) { r.retryDelay = d }
}

// WithFetchOptions sets user agent, timeout and settle time for fetches.
func WithFetchOptions(opts fetch.Options) Option {
	return func(r *Runner) { r.fetchOpts = opts }
}

// WithFetcher overrides fetch strategy selection.
func WithFetcher(f func(*source.Source) fetch.Fetcher) Option {
	return func(r *Runner) { r.fetcherFor = f }
}

// WithNotifier attaches a new-item notifier.
func WithNotifier(n notify.Notifier) Option {
	return func(r *Runner) { r.notifier = n }
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(r *Runner) { r.now = now }
}

// NewRunner builds a cycle runner.
func NewRunner(s Store, q Queue, rec *Reconciler, log logger.Logger, opts ...Option) *Runner {
	r := &Runner{
		store:      s,
		queue:      q,
		reconciler: rec,
		log:        log,
		retryDelay: DefaultFailureRetryDelay,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.fetcherFor == nil {
		r.fetcherFor = func(src *source.Source) fetch.Fetcher {
			return fetch.ForSource(src, r.fetchOpts)
		}
	}
	return r
}

// RunCycle executes one crawl cycle and returns its audit log row.
// Errors are captured into the row rather than returned; in steady state
// nobody waits synchronously on a cycle.
func (r *Runner) RunCycle(ctx context.Context, sourceID int64) *store.CrawlLog {
	start := r.now()
	log := r.log.With(logger.Int64("source_id", sourceID))

	src, err := r.store.GetSource(ctx, sourceID)
	if err != nil {
		// Missing sources are not retried; like deactivation, fixing
		// this requires an external kick anyway.
		return r.fail(ctx, log, sourceID, start, err, false)
	}
	if !src.Active {
		return r.fail(ctx, log, sourceID, start, errors.New("source is not active"), false)
	}

	newCount, err := r.collect(ctx, log, src)
	if err != nil {
		return r.fail(ctx, log, sourceID, start, err, true)
	}

	if err := r.store.TouchLastCrawled(ctx, sourceID, r.now()); err != nil {
		return r.fail(ctx, log, sourceID, start, err, true)
	}

	end := r.now()
	row := &store.CrawlLog{
		SourceID:        sourceID,
		Status:          store.StatusSuccess,
		ItemsCollected:  newCount,
		StartedAt:       start,
		CompletedAt:     end,
		DurationSeconds: end.Sub(start).Seconds(),
	}
	if err := r.store.AppendCrawlLog(ctx, row); err != nil {
		log.Error("failed to append crawl log", logger.Error(err))
	}

	log.Info("crawl cycle finished",
		logger.Int("new_items", newCount),
		logger.Duration("took", end.Sub(start)))

	r.queue.Enqueue(sourceID, src.Interval())
	return row
}

// collect performs fetch through reconcile and returns the number of
// newly persisted items.
func (r *Runner) collect(ctx context.Context, log logger.Logger, src *source.Source) (int, error) {
	ext, err := extract.Resolve(src)
	if err != nil {
		return 0, err
	}

	html, err := r.fetcherFor(src).Fetch(ctx, src)
	if err != nil {
		return 0, err
	}

	records, err := ext.Extract(html, src.Config)
	if err != nil {
		return 0, err
	}

	// Walk in reverse extraction order so the oldest-appearing record is
	// persisted first and collected_at ordering matches true recency.
	newCount := 0
	currentURLs := make(map[string]struct{}, len(records))
	for i := len(records) - 1; i >= 0; i-- {
		rec := records[i]
		if !rec.Valid() {
			continue
		}
		if rec.Date != "" {
			rec.Date = extract.NormalizeDate(rec.Date, r.now())
		}
		currentURLs[rec.URL] = struct{}{}

		created, err := r.persist(ctx, log, src, rec)
		if err != nil {
			return 0, err
		}
		if created {
			newCount++
		}
	}

	if _, err := r.reconciler.Reconcile(ctx, src, currentURLs); err != nil {
		return 0, err
	}
	return newCount, nil
}

// persist stores one record unless its fingerprint is already known.
// A duplicate-insert race resolves as "not inserted".
func (r *Runner) persist(ctx context.Context, log logger.Logger, src *source.Source, rec extract.Record) (bool, error) {
	fp := rec.Fingerprint()
	exists, err := r.store.ItemExists(ctx, fp)
	if err != nil {
		return false, err
	}
	if exists {
		return false, nil
	}

	payload, err := rec.Payload()
	if err != nil {
		return false, err
	}
	item := &store.Item{
		SourceID:    src.ID,
		Payload:     payload,
		URL:         rec.URL,
		Fingerprint: fp,
		CollectedAt: r.now(),
	}
	if err := r.store.CreateItem(ctx, item); err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			return false, nil
		}
		return false, err
	}

	if r.notifier != nil {
		// Best effort only; a broken subscriber endpoint must never
		// abort a crawl.
		if err := r.notifier.NotifyNewItem(ctx, src, item); err != nil {
			log.Warn("new item notification failed", logger.Error(err))
		}
	}
	return true, nil
}

// fail records a failure log row and, when reschedule is set, enqueues
// the retry at the fixed failure delay.
func (r *Runner) fail(ctx context.Context, log logger.Logger, sourceID int64, start time.Time, cause error, reschedule bool) *store.CrawlLog {
	end := r.now()
	row := &store.CrawlLog{
		SourceID:        sourceID,
		Status:          store.StatusFailed,
		ItemsCollected:  0,
		ErrorMessage:    cause.Error(),
		StartedAt:       start,
		CompletedAt:     end,
		DurationSeconds: end.Sub(start).Seconds(),
	}
	if err := r.store.AppendCrawlLog(ctx, row); err != nil {
		log.Error("failed to append crawl log", logger.Error(err))
	}

	log.Error("crawl cycle failed", logger.Error(cause))

	if reschedule {
		r.queue.Enqueue(sourceID, r.retryDelay)
	}
	return row
}
