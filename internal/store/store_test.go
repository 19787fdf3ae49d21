package store_test

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"crawld/internal/source"
	"crawld/internal/store"
)

func openTestStore(t *testing.T) *store.Store {
	t.Helper()
	s, err := store.Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func seedSource(t *testing.T, s *store.Store) *source.Source {
	t.Helper()
	src := &source.Source{
		Name:         "Test Board",
		Slug:         "test-board",
		URL:          "https://example.com/news",
		CrawlerType:  source.TypeStatic,
		IntervalMins: 10,
		Active:       true,
		Config: source.Config{
			Selectors: source.Selectors{Container: "li", Title: "a"},
			BaseURL:   "https://example.com",
		},
	}
	require.NoError(t, s.UpsertSource(context.Background(), src))
	require.NotZero(t, src.ID)
	return src
}

func TestUpsertSource_RoundTrip(t *testing.T) {
	s := openTestStore(t)
	src := seedSource(t, s)

	got, err := s.GetSource(context.Background(), src.ID)
	require.NoError(t, err)

	assert.Equal(t, "Test Board", got.Name)
	assert.Equal(t, source.TypeStatic, got.CrawlerType)
	assert.Equal(t, "li", got.Config.Selectors.Container, "config blob survives the round trip")
	assert.True(t, got.Active)
	assert.False(t, got.LastCrawledAt.Valid)
}

func TestUpsertSource_UpdatesBySlug(t *testing.T) {
	s := openTestStore(t)
	src := seedSource(t, s)

	src.IntervalMins = 60
	src.Active = false
	require.NoError(t, s.UpsertSource(context.Background(), src))

	got, err := s.GetSource(context.Background(), src.ID)
	require.NoError(t, err)
	assert.Equal(t, 60, got.IntervalMins)
	assert.False(t, got.Active)

	all, err := s.AllSources(context.Background())
	require.NoError(t, err)
	assert.Len(t, all, 1, "same slug must not create a second row")
}

func TestGetSource_NotFound(t *testing.T) {
	s := openTestStore(t)
	_, err := s.GetSource(context.Background(), 99)
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestActiveSources_FiltersInactive(t *testing.T) {
	s := openTestStore(t)
	seedSource(t, s)

	inactive := &source.Source{
		Name: "Dormant", Slug: "dormant", URL: "https://example.com/x",
		CrawlerType: source.TypeStatic, IntervalMins: 10, Active: false,
		Config: source.Config{Selectors: source.Selectors{Container: "li", Title: "a"}},
	}
	require.NoError(t, s.UpsertSource(context.Background(), inactive))

	active, err := s.ActiveSources(context.Background())
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, "test-board", active[0].Slug)
}

func TestTouchLastCrawled(t *testing.T) {
	s := openTestStore(t)
	src := seedSource(t, s)

	now := time.Now().UTC().Truncate(time.Second)
	require.NoError(t, s.TouchLastCrawled(context.Background(), src.ID, now))

	got, err := s.GetSource(context.Background(), src.ID)
	require.NoError(t, err)
	require.True(t, got.LastCrawledAt.Valid)
	assert.WithinDuration(t, now, got.LastCrawledAt.Time, time.Second)
}

func TestCreateItem_FingerprintIsUnique(t *testing.T) {
	s := openTestStore(t)
	src := seedSource(t, s)

	item := &store.Item{
		SourceID:    src.ID,
		Payload:     `{"title":"Notice"}`,
		URL:         "https://example.com/news/1",
		Fingerprint: "abc123",
		CollectedAt: time.Now().UTC(),
	}
	require.NoError(t, s.CreateItem(context.Background(), item))
	require.NotZero(t, item.ID)

	dup := &store.Item{
		SourceID:    src.ID,
		Payload:     `{"title":"Notice"}`,
		URL:         "https://example.com/news/1",
		Fingerprint: "abc123",
		CollectedAt: time.Now().UTC(),
	}
	err := s.CreateItem(context.Background(), dup)
	assert.ErrorIs(t, err, store.ErrDuplicate)

	exists, err := s.ItemExists(context.Background(), "abc123")
	require.NoError(t, err)
	assert.True(t, exists)

	exists, err = s.ItemExists(context.Background(), "nope")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestItemURLs_And_Delete(t *testing.T) {
	s := openTestStore(t)
	src := seedSource(t, s)

	for i, url := range []string{"https://example.com/1", "https://example.com/2"} {
		require.NoError(t, s.CreateItem(context.Background(), &store.Item{
			SourceID:    src.ID,
			Payload:     "{}",
			URL:         url,
			Fingerprint: string(rune('a' + i)),
			CollectedAt: time.Now().UTC(),
		}))
	}

	refs, err := s.ItemURLs(context.Background(), src.ID)
	require.NoError(t, err)
	require.Len(t, refs, 2)

	require.NoError(t, s.DeleteItem(context.Background(), refs[0].ID))

	refs, err = s.ItemURLs(context.Background(), src.ID)
	require.NoError(t, err)
	assert.Len(t, refs, 1)
}

func TestCrawlLogs_AppendAndList(t *testing.T) {
	s := openTestStore(t)
	src := seedSource(t, s)

	start := time.Now().UTC().Add(-time.Minute)
	for i := 0; i < 3; i++ {
		require.NoError(t, s.AppendCrawlLog(context.Background(), &store.CrawlLog{
			SourceID:        src.ID,
			Status:          store.StatusSuccess,
			ItemsCollected:  i,
			StartedAt:       start.Add(time.Duration(i) * time.Second),
			CompletedAt:     start.Add(time.Duration(i)*time.Second + 500*time.Millisecond),
			DurationSeconds: 0.5,
		}))
	}
	require.NoError(t, s.AppendCrawlLog(context.Background(), &store.CrawlLog{
		SourceID:        src.ID,
		Status:          store.StatusFailed,
		ErrorMessage:    "fetch timeout",
		StartedAt:       start.Add(10 * time.Second),
		CompletedAt:     start.Add(11 * time.Second),
		DurationSeconds: 1,
	}))

	logs, err := s.RecentCrawlLogs(context.Background(), src.ID, 10)
	require.NoError(t, err)
	require.Len(t, logs, 4)
	assert.Equal(t, store.StatusFailed, logs[0].Status, "newest first")
	assert.Equal(t, "fetch timeout", logs[0].ErrorMessage)

	logs, err = s.RecentCrawlLogs(context.Background(), 0, 2)
	require.NoError(t, err)
	assert.Len(t, logs, 2, "limit applies")
}
