package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/mattn/go-sqlite3"
)

// ErrDuplicate is returned by CreateItem when the fingerprint already
// exists. The unique constraint, not application logic, is what keeps
// overlapping cycles from double-inserting.
var ErrDuplicate = errors.New("duplicate fingerprint")

// Item is one deduplicated collected record. Payload is the open-ended
// JSON document produced by the extractor; URL is denormalized out of it
// so reconciliation can query by URL.
type Item struct {
	ID          int64     `db:"id"`
	SourceID    int64     `db:"source_id"`
	Payload     string    `db:"payload"`
	URL         string    `db:"url"`
	Fingerprint string    `db:"fingerprint"`
	CollectedAt time.Time `db:"collected_at"`
}

// ItemRef is the (url, handle) pair the reconciler works over.
type ItemRef struct {
	ID  int64  `db:"id"`
	URL string `db:"url"`
}

// ItemExists reports whether a fingerprint is already persisted.
func (s *Store) ItemExists(ctx context.Context, fingerprint string) (bool, error) {
	var n int
	err := s.db.GetContext(ctx, &n,
		`SELECT COUNT(1) FROM items WHERE fingerprint = ?`, fingerprint)
	if err != nil {
		return false, fmt.Errorf("check fingerprint: %w", err)
	}
	return n > 0, nil
}

// CreateItem inserts a collected record. A fingerprint collision returns
// ErrDuplicate and inserts nothing.
func (s *Store) CreateItem(ctx context.Context, item *Item) error {
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO items (source_id, payload, url, fingerprint, collected_at)
		 VALUES (?, ?, ?, ?, ?)`,
		item.SourceID, item.Payload, item.URL, item.Fingerprint, item.CollectedAt)
	if err != nil {
		var sqlErr sqlite3.Error
		if errors.As(err, &sqlErr) && sqlErr.ExtendedCode == sqlite3.ErrConstraintUnique {
			return ErrDuplicate
		}
		return fmt.Errorf("create item: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("create item: %w", err)
	}
	item.ID = id
	return nil
}

// ItemURLs lists (id, url) for every item belonging to a source.
func (s *Store) ItemURLs(ctx context.Context, sourceID int64) ([]ItemRef, error) {
	var refs []ItemRef
	err := s.db.SelectContext(ctx, &refs,
		`SELECT id, url FROM items WHERE source_id = ?`, sourceID)
	if err != nil {
		return nil, fmt.Errorf("list item urls: %w", err)
	}
	return refs, nil
}

// DeleteItem removes one item by id.
func (s *Store) DeleteItem(ctx context.Context, id int64) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM items WHERE id = ?`, id); err != nil {
		return fmt.Errorf("delete item %d: %w", id, err)
	}
	return nil
}

// RecentItems lists the newest items for a source, newest first.
func (s *Store) RecentItems(ctx context.Context, sourceID int64, limit int) ([]Item, error) {
	var items []Item
	err := s.db.SelectContext(ctx, &items,
		`SELECT id, source_id, payload, url, fingerprint, collected_at
		 FROM items WHERE source_id = ?
		 ORDER BY collected_at DESC, id DESC LIMIT ?`, sourceID, limit)
	if err != nil {
		return nil, fmt.Errorf("list recent items: %w", err)
	}
	return items, nil
}
