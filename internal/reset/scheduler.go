// Package reset reverts completed repeatable items to incomplete once per
// calendar day. It is a polling cron substitute: it only runs when the
// checklist is fetched, only mutates data during the trigger hour, and a
// durable per-device marker keeps it to one reset per day.
package reset

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/ticklist/internal/docstore"
	"github.com/ticklist/internal/model"
)

// The day boundary is fixed to one reference timezone so "today" means the
// same thing regardless of where a device is.
const (
	ReferenceZone = "Europe/Lisbon"
	TriggerHour   = 4

	dateLayout = "2006-01-02"
)

type Scheduler struct {
	store  docstore.Store
	marker MarkerStore
	loc    *time.Location
	hour   int
	now    func() time.Time
	logger *slog.Logger
}

func NewScheduler(store docstore.Store, marker MarkerStore, logger *slog.Logger) (*Scheduler, error) {
	loc, err := time.LoadLocation(ReferenceZone)
	if err != nil {
		return nil, fmt.Errorf("load reference zone: %w", err)
	}
	return &Scheduler{
		store:  store,
		marker: marker,
		loc:    loc,
		hour:   TriggerHour,
		now:    time.Now,
		logger: logger,
	}, nil
}

// SetClock overrides the time source. Tests use it to steer the trigger
// window.
func (s *Scheduler) SetClock(now func() time.Time) {
	s.now = now
}

// Run applies the daily reset if it is due, given the caller's current view
// of the items. It returns the IDs of the items it reverted so the caller can
// mirror the change locally.
//
// Outside the trigger hour, or when the marker already names today, Run does
// nothing. Only items that are both completed and repeatable are reverted,
// all in one atomic batch; the marker advances only after the batch commits,
// so a failed commit is retried at the next eligible check.
func (s *Scheduler) Run(ctx context.Context, items []model.ChecklistItem) ([]string, error) {
	now := s.now().In(s.loc)
	if now.Hour() != s.hour {
		return nil, nil
	}

	today := now.Format(dateLayout)
	last, err := s.marker.LastReset()
	if err != nil {
		return nil, fmt.Errorf("read reset marker: %w", err)
	}
	if last == today {
		return nil, nil
	}

	var ids []string
	batch := s.store.Batch()
	for _, item := range items {
		if item.Completed && item.Repeatable {
			batch.Update(docstore.CollChecklist, item.ID, map[string]any{
				"completed": false,
				"updatedAt": s.now(),
			})
			ids = append(ids, item.ID)
		}
	}
	if len(ids) == 0 {
		return nil, nil
	}

	if err := batch.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit reset batch: %w", err)
	}

	if err := s.marker.SetLastReset(today); err != nil {
		// The items are already reverted. The next eligible run finds
		// nothing to reset and skips, so a lost marker write only costs a
		// re-check, never a double reset of still-completed work.
		s.logger.Error("persist reset marker", "date", today, "error", err)
	}

	s.logger.Info("daily reset applied", "items", len(ids), "date", today)
	return ids, nil
}
