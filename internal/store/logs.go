package store

import (
	"context"
	"fmt"
	"time"
)

// Cycle outcome states recorded in crawl_logs.
const (
	StatusSuccess = "success"
	StatusFailed  = "failed"
	StatusPartial = "partial"
)

// CrawlLog is the append-only audit record of one crawl cycle. Rows are
// never mutated or deleted.
type CrawlLog struct {
	ID              int64     `db:"id"`
	SourceID        int64     `db:"source_id"`
	Status          string    `db:"status"`
	ItemsCollected  int       `db:"items_collected"`
	ErrorMessage    string    `db:"error_message"`
	StartedAt       time.Time `db:"started_at"`
	CompletedAt     time.Time `db:"completed_at"`
	DurationSeconds float64   `db:"duration_seconds"`
}

// AppendCrawlLog writes one cycle's audit row.
func (s *Store) AppendCrawlLog(ctx context.Context, log *CrawlLog) error {
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO crawl_logs (source_id, status, items_collected, error_message,
			started_at, completed_at, duration_seconds)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		log.SourceID, log.Status, log.ItemsCollected, log.ErrorMessage,
		log.StartedAt, log.CompletedAt, log.DurationSeconds)
	if err != nil {
		return fmt.Errorf("append crawl log: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("append crawl log: %w", err)
	}
	log.ID = id
	return nil
}

// RecentCrawlLogs lists the newest log rows, optionally filtered by
// source (sourceID 0 means all sources).
func (s *Store) RecentCrawlLogs(ctx context.Context, sourceID int64, limit int) ([]CrawlLog, error) {
	var logs []CrawlLog
	var err error
	if sourceID > 0 {
		err = s.db.SelectContext(ctx, &logs,
			`SELECT id, source_id, status, items_collected, error_message,
				started_at, completed_at, duration_seconds
			 FROM crawl_logs WHERE source_id = ?
			 ORDER BY started_at DESC, id DESC LIMIT ?`, sourceID, limit)
	} else {
		err = s.db.SelectContext(ctx, &logs,
			`SELECT id, source_id, status, items_collected, error_message,
				started_at, completed_at, duration_seconds
			 FROM crawl_logs
			 ORDER BY started_at DESC, id DESC LIMIT ?`, limit)
	}
	if err != nil {
		return nil, fmt.Errorf("list crawl logs: %w", err)
	}
	return logs, nil
}
