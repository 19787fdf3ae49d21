package crawl_test

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"crawld/internal/crawl"
	"crawld/internal/fetch"
	"crawld/internal/logger"
	"crawld/internal/source"
	"crawld/internal/store"
)

type fakeStore struct {
	sources map[int64]*source.Source
	items   map[string]*store.Item // keyed by fingerprint
	logs    []*store.CrawlLog
	touched int
	nextID  int64
}

func newFakeStore(sources ...*source.Source) *fakeStore {
	fs := &fakeStore{
		sources: map[int64]*source.Source{},
		items:   map[string]*store.Item{},
	}
	for _, src := range sources {
		fs.sources[src.ID] = src
	}
	return fs
}

func (f *fakeStore) GetSource(_ context.Context, id int64) (*source.Source, error) {
	src, ok := f.sources[id]
	if !ok {
		return nil, fmt.Errorf("source %d: %w", id, store.ErrNotFound)
	}
	return src, nil
}

func (f *fakeStore) ItemExists(_ context.Context, fp string) (bool, error) {
	_, ok := f.items[fp]
	return ok, nil
}

func (f *fakeStore) CreateItem(_ context.Context, item *store.Item) error {
	if _, ok := f.items[item.Fingerprint]; ok {
		return store.ErrDuplicate
	}
	f.nextID++
	item.ID = f.nextID
	f.items[item.Fingerprint] = item
	return nil
}

func (f *fakeStore) ItemURLs(_ context.Context, sourceID int64) ([]store.ItemRef, error) {
	var refs []store.ItemRef
	for _, item := range f.items {
		if item.SourceID == sourceID {
			refs = append(refs, store.ItemRef{ID: item.ID, URL: item.URL})
		}
	}
	return refs, nil
}

func (f *fakeStore) DeleteItem(_ context.Context, id int64) error {
	for fp, item := range f.items {
		if item.ID == id {
			delete(f.items, fp)
			return nil
		}
	}
	return fmt.Errorf("item %d: %w", id, store.ErrNotFound)
}

func (f *fakeStore) TouchLastCrawled(context.Context, int64, time.Time) error {
	f.touched++
	return nil
}

func (f *fakeStore) AppendCrawlLog(_ context.Context, log *store.CrawlLog) error {
	f.logs = append(f.logs, log)
	return nil
}

type enqueued struct {
	sourceID int64
	delay    time.Duration
}

type fakeQueue struct {
	calls []enqueued
}

func (q *fakeQueue) Enqueue(sourceID int64, delay time.Duration) {
	q.calls = append(q.calls, enqueued{sourceID, delay})
}

type fakeFetcher struct {
	html string
	err  error
}

func (f fakeFetcher) Fetch(context.Context, *source.Source) (string, error) {
	return f.html, f.err
}

type failingNotifier struct{ calls int }

func (n *failingNotifier) NotifyNewItem(context.Context, *source.Source, *store.Item) error {
	n.calls++
	return errors.New("subscriber endpoint down")
}

func testSource() *source.Source {
	return &source.Source{
		ID:           1,
		Name:         "Test Board",
		URL:          "https://example.com/news",
		CrawlerType:  source.TypeStatic,
		IntervalMins: 10,
		Active:       true,
		Config: source.Config{
			Selectors: source.Selectors{
				Container: "li",
				Title:     "a",
				URL:       "a",
			},
			BaseURL: "https://example.com",
		},
	}
}

func boardHTML(n int) string {
	html := "<ul>"
	for i := 1; i <= n; i++ {
		html += fmt.Sprintf(`<li><a href="/news/%d">Notice number %d</a></li>`, i, i)
	}
	return html + "</ul>"
}

func newRunner(fs *fakeStore, q *fakeQueue, f fetch.Fetcher, opts ...crawl.Option) *crawl.Runner {
	rec := crawl.NewReconciler(fs, logger.Nop(), 0)
	opts = append(opts, crawl.WithFetcher(func(*source.Source) fetch.Fetcher { return f }))
	return crawl.NewRunner(fs, q, rec, logger.Nop(), opts...)
}

func TestRunCycle_Success(t *testing.T) {
	fs := newFakeStore(testSource())
	q := &fakeQueue{}
	runner := newRunner(fs, q, fakeFetcher{html: boardHTML(5)})

	row := runner.RunCycle(context.Background(), 1)

	assert.Equal(t, store.StatusSuccess, row.Status)
	assert.Equal(t, 5, row.ItemsCollected)
	assert.Empty(t, row.ErrorMessage)
	assert.Equal(t, 1, fs.touched, "last_crawled_at stamped once")

	require.Len(t, fs.logs, 1)
	assert.Equal(t, store.StatusSuccess, fs.logs[0].Status)

	require.Len(t, q.calls, 1, "exactly one successor enqueued")
	assert.Equal(t, int64(1), q.calls[0].sourceID)
	assert.Equal(t, 600*time.Second, q.calls[0].delay)
}

func TestRunCycle_RecrawlCreatesNothing(t *testing.T) {
	fs := newFakeStore(testSource())
	fetcher := fakeFetcher{html: boardHTML(5)}

	first := newRunner(fs, &fakeQueue{}, fetcher).RunCycle(context.Background(), 1)
	require.Equal(t, 5, first.ItemsCollected)

	second := newRunner(fs, &fakeQueue{}, fetcher).RunCycle(context.Background(), 1)
	assert.Equal(t, store.StatusSuccess, second.Status)
	assert.Equal(t, 0, second.ItemsCollected, "unchanged upstream yields zero new items")
	assert.Len(t, fs.items, 5)
}

func TestRunCycle_FetchFailure(t *testing.T) {
	fs := newFakeStore(testSource())
	q := &fakeQueue{}
	runner := newRunner(fs, q, fakeFetcher{err: errors.New("dial tcp: i/o timeout")})

	row := runner.RunCycle(context.Background(), 1)

	assert.Equal(t, store.StatusFailed, row.Status)
	assert.Equal(t, 0, row.ItemsCollected)
	assert.Contains(t, row.ErrorMessage, "timeout")
	assert.Zero(t, fs.touched)

	require.Len(t, fs.logs, 1)
	require.Len(t, q.calls, 1, "failures still chain")
	assert.Equal(t, 1800*time.Second, q.calls[0].delay,
		"retry uses the fixed failure delay, not the source interval")
}

func TestRunCycle_InactiveSourceIsNotRescheduled(t *testing.T) {
	src := testSource()
	src.Active = false
	fs := newFakeStore(src)
	q := &fakeQueue{}

	row := newRunner(fs, q, fakeFetcher{html: boardHTML(5)}).RunCycle(context.Background(), 1)

	assert.Equal(t, store.StatusFailed, row.Status)
	assert.Empty(t, q.calls, "deactivation is the cancellation mechanism")
	require.Len(t, fs.logs, 1)
}

func TestRunCycle_MissingSourceIsNotRescheduled(t *testing.T) {
	fs := newFakeStore()
	q := &fakeQueue{}

	row := newRunner(fs, q, fakeFetcher{}).RunCycle(context.Background(), 42)

	assert.Equal(t, store.StatusFailed, row.Status)
	assert.Empty(t, q.calls)
}

func TestRunCycle_UnknownExtractorFails(t *testing.T) {
	src := testSource()
	src.Extractor = "does-not-exist"
	fs := newFakeStore(src)
	q := &fakeQueue{}

	row := newRunner(fs, q, fakeFetcher{html: boardHTML(5)}).RunCycle(context.Background(), 1)

	assert.Equal(t, store.StatusFailed, row.Status)
	assert.Contains(t, row.ErrorMessage, "does-not-exist")
	require.Len(t, q.calls, 1, "misconfiguration is rescheduled like any failure")
}

func TestRunCycle_NotifierFailureDoesNotFailCycle(t *testing.T) {
	fs := newFakeStore(testSource())
	n := &failingNotifier{}
	runner := newRunner(fs, &fakeQueue{}, fakeFetcher{html: boardHTML(4)},
		crawl.WithNotifier(n))

	row := runner.RunCycle(context.Background(), 1)

	assert.Equal(t, store.StatusSuccess, row.Status)
	assert.Equal(t, 4, row.ItemsCollected)
	assert.Equal(t, 4, n.calls, "one notification attempt per new item")
}

func TestRunCycle_ReconcilesStaleItems(t *testing.T) {
	fs := newFakeStore(testSource())

	// First cycle stores five items; second cycle sees only items 2..5,
	// so item 1 must be pruned.
	newRunner(fs, &fakeQueue{}, fakeFetcher{html: boardHTML(5)}).RunCycle(context.Background(), 1)
	require.Len(t, fs.items, 5)

	html := "<ul>"
	for i := 2; i <= 5; i++ {
		html += fmt.Sprintf(`<li><a href="/news/%d">Notice number %d</a></li>`, i, i)
	}
	html += "</ul>"

	row := newRunner(fs, &fakeQueue{}, fakeFetcher{html: html}).RunCycle(context.Background(), 1)
	assert.Equal(t, store.StatusSuccess, row.Status)
	assert.Len(t, fs.items, 4)

	for _, item := range fs.items {
		assert.NotEqual(t, "https://example.com/news/1", item.URL)
	}
}

func TestRunCycle_OldestFirstOrdering(t *testing.T) {
	fs := newFakeStore(testSource())
	newRunner(fs, &fakeQueue{}, fakeFetcher{html: boardHTML(3)}).RunCycle(context.Background(), 1)

	// Extraction order is newest first; persistence must reverse it so
	// insertion ids follow true recency.
	byURL := map[string]int64{}
	for _, item := range fs.items {
		byURL[item.URL] = item.ID
	}
	require.Len(t, byURL, 3)
	assert.Greater(t, byURL["https://example.com/news/1"], byURL["https://example.com/news/3"])
}
