// Package history appends immutable completion records and reconstructs
// completion statistics from them.
package history

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/ticklist/internal/docstore"
	"github.com/ticklist/internal/model"
)

// PlaceholderTitle substitutes for the title of a history record whose item
// has since been deleted.
const PlaceholderTitle = "Unknown Item"

type Recorder struct {
	store  docstore.Store
	logger *slog.Logger
}

func NewRecorder(store docstore.Store, logger *slog.Logger) *Recorder {
	return &Recorder{store: store, logger: logger}
}

// Record appends one completion record for an item that just transitioned to
// completed. Best effort: a failed append is logged and dropped, and the item
// stays completed either way.
func (r *Recorder) Record(ctx context.Context, item model.ChecklistItem) {
	if item.CompletedAt == nil {
		return
	}
	rec := model.HistoryRecord{
		ItemID:      item.ID,
		UserID:      item.UserID,
		CompletedAt: *item.CompletedAt,
	}
	if _, err := r.store.Add(ctx, docstore.CollHistory, rec.Fields()); err != nil {
		r.logger.Error("record completion", "item_id", item.ID, "error", err)
	}
}

// ListForUser returns a user's completion records, newest first, each
// enriched with the current title of its item. Records whose item has been
// deleted get PlaceholderTitle; a dangling reference is not a fault.
func (r *Recorder) ListForUser(ctx context.Context, userID string) ([]model.HistoryRecord, error) {
	docs, err := r.store.Query(ctx, docstore.CollHistory,
		[]docstore.Filter{{Field: "userId", Value: userID}},
		&docstore.Order{Field: "completedAt", Desc: true})
	if err != nil {
		return nil, fmt.Errorf("query history: %w", err)
	}

	records := make([]model.HistoryRecord, 0, len(docs))
	for _, d := range docs {
		rec := model.HistoryFromFields(d.ID, d.Fields)

		item, err := r.store.Get(ctx, docstore.CollChecklist, rec.ItemID)
		switch {
		case errors.Is(err, docstore.ErrNotFound):
			rec.ItemTitle = PlaceholderTitle
		case err != nil:
			return nil, fmt.Errorf("resolve item title: %w", err)
		default:
			rec.ItemTitle = model.ItemFromFields(item.ID, item.Fields).Title
			if rec.ItemTitle == "" {
				rec.ItemTitle = PlaceholderTitle
			}
		}
		records = append(records, rec)
	}
	return records, nil
}

// Stats derives a user's checklist statistics. LastCompleted comes from the
// newest history record, not from item state: a reset recurring item no
// longer reads completed, but its history does.
func (r *Recorder) Stats(ctx context.Context, userID string) (model.ChecklistStats, error) {
	items, err := r.store.Query(ctx, docstore.CollChecklist,
		[]docstore.Filter{{Field: "userId", Value: userID}},
		&docstore.Order{Field: "createdAt", Desc: true})
	if err != nil {
		return model.ChecklistStats{}, fmt.Errorf("query items: %w", err)
	}

	stats := model.ChecklistStats{TotalItems: len(items)}
	for _, d := range items {
		if model.ItemFromFields(d.ID, d.Fields).Completed {
			stats.CompletedItems++
		}
	}

	hist, err := r.store.Query(ctx, docstore.CollHistory,
		[]docstore.Filter{{Field: "userId", Value: userID}},
		&docstore.Order{Field: "completedAt", Desc: true})
	if err != nil {
		return model.ChecklistStats{}, fmt.Errorf("query history: %w", err)
	}
	if len(hist) > 0 {
		rec := model.HistoryFromFields(hist[0].ID, hist[0].Fields)
		if !rec.CompletedAt.IsZero() {
			stats.LastCompleted = &rec.CompletedAt
		}
	}
	return stats, nil
}
