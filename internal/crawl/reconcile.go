package crawl

import (
	"context"
	"fmt"

	"crawld/internal/logger"
	"crawld/internal/source"
	"crawld/internal/store"
)

// DefaultMinReconcileURLs is the minimum size of a cycle's URL set
// before any stale deletion happens. Carried over from the original
// deployment as a named, overridable constant; below it a crawl result
// is assumed to be a partial or broken fetch rather than evidence of
// upstream deletions.
const DefaultMinReconcileURLs = 3

// ItemStore is the slice of persistence the reconciler needs.
type ItemStore interface {
	ItemURLs(ctx context.Context, sourceID int64) ([]store.ItemRef, error)
	DeleteItem(ctx context.Context, id int64) error
}

// Reconciler removes persisted items whose URLs vanished upstream.
// Staleness is only detected, never assumed: an empty or suspiciously
// small current set causes no deletions at all.
type Reconciler struct {
	store   ItemStore
	log     logger.Logger
	minURLs int
}

// NewReconciler builds a reconciler. minURLs <= 0 takes the default.
func NewReconciler(s ItemStore, log logger.Logger, minURLs int) *Reconciler {
	if minURLs <= 0 {
		minURLs = DefaultMinReconcileURLs
	}
	return &Reconciler{store: s, log: log, minURLs: minURLs}
}

// Reconcile deletes every item of the source whose URL is absent from
// currentURLs and returns how many were removed. Both safety guards must
// hold or nothing is deleted.
func (r *Reconciler) Reconcile(ctx context.Context, src *source.Source, currentURLs map[string]struct{}) (int, error) {
	if len(currentURLs) == 0 {
		r.log.Warn("skipping reconciliation: empty crawl result",
			logger.Int64("source_id", src.ID))
		return 0, nil
	}
	if len(currentURLs) < r.minURLs {
		r.log.Warn("skipping reconciliation: crawl result below threshold",
			logger.Int64("source_id", src.ID),
			logger.Int("got", len(currentURLs)),
			logger.Int("min", r.minURLs))
		return 0, nil
	}

	refs, err := r.store.ItemURLs(ctx, src.ID)
	if err != nil {
		return 0, fmt.Errorf("list stored urls: %w", err)
	}

	deleted := 0
	for _, ref := range refs {
		if _, ok := currentURLs[ref.URL]; ok {
			continue
		}
		if err := r.store.DeleteItem(ctx, ref.ID); err != nil {
			return deleted, fmt.Errorf("delete stale item: %w", err)
		}
		deleted++
	}

	if deleted > 0 {
		r.log.Info("removed stale items",
			logger.Int64("source_id", src.ID),
			logger.Int("deleted", deleted))
	}
	return deleted, nil
}
