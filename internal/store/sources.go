package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"crawld/internal/source"
)

// ErrNotFound is returned when a requested row does not exist.
var ErrNotFound = errors.New("not found")

const sourceColumns = `id, name, slug, url, crawler_type, extractor, config,
	crawl_interval, is_active, last_crawled_at`

// GetSource loads one source by id.
func (s *Store) GetSource(ctx context.Context, id int64) (*source.Source, error) {
	var src source.Source
	query := `SELECT ` + sourceColumns + ` FROM sources WHERE id = ?`
	if err := s.db.GetContext(ctx, &src, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("source %d: %w", id, ErrNotFound)
		}
		return nil, fmt.Errorf("get source: %w", err)
	}
	if err := src.DecodeConfig(); err != nil {
		return nil, err
	}
	return &src, nil
}

// ActiveSources lists every source with the active flag set.
func (s *Store) ActiveSources(ctx context.Context) ([]*source.Source, error) {
	var sources []*source.Source
	query := `SELECT ` + sourceColumns + ` FROM sources WHERE is_active = 1 ORDER BY id`
	if err := s.db.SelectContext(ctx, &sources, query); err != nil {
		return nil, fmt.Errorf("list active sources: %w", err)
	}
	for _, src := range sources {
		if err := src.DecodeConfig(); err != nil {
			return nil, err
		}
	}
	return sources, nil
}

// AllSources lists every source, active or not.
func (s *Store) AllSources(ctx context.Context) ([]*source.Source, error) {
	var sources []*source.Source
	query := `SELECT ` + sourceColumns + ` FROM sources ORDER BY id`
	if err := s.db.SelectContext(ctx, &sources, query); err != nil {
		return nil, fmt.Errorf("list sources: %w", err)
	}
	for _, src := range sources {
		if err := src.DecodeConfig(); err != nil {
			return nil, err
		}
	}
	return sources, nil
}

// UpsertSource inserts a source or, when its slug already exists, updates
// the crawl settings in place. The source's ID is populated either way.
func (s *Store) UpsertSource(ctx context.Context, src *source.Source) error {
	if err := src.EncodeConfig(); err != nil {
		return err
	}

	query := `
		INSERT INTO sources (name, slug, url, crawler_type, extractor, config, crawl_interval, is_active)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(slug) DO UPDATE SET
			name = excluded.name,
			url = excluded.url,
			crawler_type = excluded.crawler_type,
			extractor = excluded.extractor,
			config = excluded.config,
			crawl_interval = excluded.crawl_interval,
			is_active = excluded.is_active
	`
	if _, err := s.db.ExecContext(ctx, query,
		src.Name, src.Slug, src.URL, src.CrawlerType, src.Extractor,
		src.RawConfig, src.IntervalMins, src.Active,
	); err != nil {
		return fmt.Errorf("upsert source %q: %w", src.Slug, err)
	}

	if err := s.db.GetContext(ctx, &src.ID,
		`SELECT id FROM sources WHERE slug = ?`, src.Slug); err != nil {
		return fmt.Errorf("resolve source id for %q: %w", src.Slug, err)
	}
	return nil
}

// TouchLastCrawled stamps the source's last crawl time.
func (s *Store) TouchLastCrawled(ctx context.Context, id int64, t time.Time) error {
	if _, err := s.db.ExecContext(ctx,
		`UPDATE sources SET last_crawled_at = ? WHERE id = ?`, t, id); err != nil {
		return fmt.Errorf("touch last_crawled_at: %w", err)
	}
	return nil
}
