// Package checklist owns the canonical in-memory mirror of one user's
// checklist and keeps it consistent with the document store.
package checklist

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/ticklist/internal/docstore"
	"github.com/ticklist/internal/history"
	"github.com/ticklist/internal/identity"
	"github.com/ticklist/internal/model"
	"github.com/ticklist/internal/reset"
)

// ErrEmptyTitle rejects items without a title.
var ErrEmptyTitle = errors.New("title is required")

// resetCheckInterval limits how often a fetch re-evaluates the daily reset.
const resetCheckInterval = time.Hour

// Repository mirrors one user's items. The mutex only guards the in-memory
// state and is released across store I/O: overlapping operations interleave
// and the last write wins, both remotely and locally. Local state is only
// updated after the corresponding remote write succeeds.
type Repository struct {
	store    docstore.Store
	identity identity.Provider
	history  *history.Recorder
	resetter *reset.Scheduler
	logger   *slog.Logger
	now      func() time.Time

	mu             sync.Mutex
	items          []model.ChecklistItem
	searchQuery    string
	loading        bool
	lastErr        string
	lastResetCheck time.Time
}

func NewRepository(store docstore.Store, ident identity.Provider, rec *history.Recorder, sched *reset.Scheduler, logger *slog.Logger) *Repository {
	return &Repository{
		store:    store,
		identity: ident,
		history:  rec,
		resetter: sched,
		logger:   logger,
		now:      time.Now,
	}
}

// FetchItems replaces the mirror with the user's items from the store, newest
// first, then evaluates the daily reset if more than an hour has passed since
// the last check. A store failure leaves the previous mirror untouched.
func (r *Repository) FetchItems(ctx context.Context) error {
	if err := r.identity.AwaitReady(ctx); err != nil {
		return fmt.Errorf("await identity: %w", err)
	}
	uid, ok := r.identity.CurrentUserID()
	if !ok {
		return r.fail(identity.ErrUnauthenticated, "User not authenticated")
	}

	r.setLoading(true)
	defer r.setLoading(false)

	docs, err := r.store.Query(ctx, docstore.CollChecklist,
		[]docstore.Filter{{Field: "userId", Value: uid}},
		&docstore.Order{Field: "createdAt", Desc: true})
	if err != nil {
		r.logger.Error("fetch items", "error", err)
		return r.fail(fmt.Errorf("fetch items: %w", err), "Failed to fetch items")
	}

	items := make([]model.ChecklistItem, 0, len(docs))
	for _, d := range docs {
		items = append(items, model.ItemFromFields(d.ID, d.Fields))
	}

	r.mu.Lock()
	r.items = items
	r.lastErr = ""
	due := r.lastResetCheck.IsZero() || r.now().Sub(r.lastResetCheck) > resetCheckInterval
	r.mu.Unlock()

	if due && r.resetter != nil {
		if err := r.checkReset(ctx); err != nil {
			r.logger.Error("reset check", "error", err)
			// The guard timestamp stays put so the next fetch retries.
			return r.fail(fmt.Errorf("reset check: %w", err), "Failed to fetch items")
		}
		r.mu.Lock()
		r.lastResetCheck = r.now()
		r.mu.Unlock()
	}
	return nil
}

// AddItem creates an item and prepends it to the mirror, so the addition is
// visible without a refetch.
func (r *Repository) AddItem(ctx context.Context, title, description string, repeatable bool) (*model.ChecklistItem, error) {
	uid, ok := r.identity.CurrentUserID()
	if !ok {
		return nil, r.fail(identity.ErrUnauthenticated, "User not authenticated")
	}
	if strings.TrimSpace(title) == "" {
		return nil, r.fail(ErrEmptyTitle, "Title is required")
	}

	now := r.now()
	item := model.ChecklistItem{
		Title:       title,
		Description: description,
		Repeatable:  repeatable,
		UserID:      uid,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	id, err := r.store.Add(ctx, docstore.CollChecklist, item.Fields())
	if err != nil {
		r.logger.Error("add item", "error", err)
		return nil, r.fail(fmt.Errorf("add item: %w", err), "Failed to add item")
	}
	item.ID = id

	r.mu.Lock()
	r.items = slices.Insert(r.items, 0, item)
	r.lastErr = ""
	r.mu.Unlock()
	return &item, nil
}

// ToggleItem flips an item's completed flag. Unknown IDs are a silent no-op:
// the item was deleted elsewhere and there is nothing to report. A false→true
// transition stamps completedAt and appends a history record; true→false
// leaves completedAt stale on purpose: it records the most recent
// completion, not current status.
func (r *Repository) ToggleItem(ctx context.Context, id string) error {
	_, ok := r.identity.CurrentUserID()
	if !ok {
		return r.fail(identity.ErrUnauthenticated, "User not authenticated")
	}

	r.mu.Lock()
	idx := slices.IndexFunc(r.items, func(it model.ChecklistItem) bool { return it.ID == id })
	if idx < 0 {
		r.mu.Unlock()
		return nil
	}
	item := r.items[idx]
	r.mu.Unlock()

	completed := !item.Completed
	now := r.now()
	fields := map[string]any{
		"completed": completed,
		"updatedAt": now,
	}
	if completed {
		fields["completedAt"] = now
	}

	if err := r.store.Update(ctx, docstore.CollChecklist, id, fields); err != nil {
		r.logger.Error("toggle item", "item_id", id, "error", err)
		return r.fail(fmt.Errorf("toggle item: %w", err), "Failed to update item")
	}

	r.mu.Lock()
	if idx := slices.IndexFunc(r.items, func(it model.ChecklistItem) bool { return it.ID == id }); idx >= 0 {
		r.items[idx].Completed = completed
		r.items[idx].UpdatedAt = now
		if completed {
			t := now
			r.items[idx].CompletedAt = &t
		}
	}
	r.lastErr = ""
	r.mu.Unlock()

	if completed && r.history != nil {
		item.Completed = true
		item.UpdatedAt = now
		item.CompletedAt = &now
		r.history.Record(ctx, item)
	}
	return nil
}

// ItemUpdate carries the editable fields. Nil means "leave unchanged".
type ItemUpdate struct {
	Title       string
	Description *string
	Repeatable  *bool
}

// UpdateItem merges the given fields into the remote document and the mirror.
// Unknown IDs are a silent no-op.
func (r *Repository) UpdateItem(ctx context.Context, id string, upd ItemUpdate) error {
	_, ok := r.identity.CurrentUserID()
	if !ok {
		return r.fail(identity.ErrUnauthenticated, "User not authenticated")
	}
	if strings.TrimSpace(upd.Title) == "" {
		return r.fail(ErrEmptyTitle, "Title is required")
	}

	r.mu.Lock()
	idx := slices.IndexFunc(r.items, func(it model.ChecklistItem) bool { return it.ID == id })
	r.mu.Unlock()
	if idx < 0 {
		return nil
	}

	now := r.now()
	fields := map[string]any{
		"title":     upd.Title,
		"updatedAt": now,
	}
	if upd.Description != nil {
		fields["description"] = *upd.Description
	}
	if upd.Repeatable != nil {
		fields["repeatable"] = *upd.Repeatable
	}

	if err := r.store.Update(ctx, docstore.CollChecklist, id, fields); err != nil {
		r.logger.Error("update item", "item_id", id, "error", err)
		return r.fail(fmt.Errorf("update item: %w", err), "Failed to update item")
	}

	r.mu.Lock()
	if idx := slices.IndexFunc(r.items, func(it model.ChecklistItem) bool { return it.ID == id }); idx >= 0 {
		r.items[idx].Title = upd.Title
		if upd.Description != nil {
			r.items[idx].Description = *upd.Description
		}
		if upd.Repeatable != nil {
			r.items[idx].Repeatable = *upd.Repeatable
		}
		r.items[idx].UpdatedAt = now
	}
	r.lastErr = ""
	r.mu.Unlock()
	return nil
}

// DeleteItem removes the remote document and the mirror entry. History rows
// referencing the item are left in place; listings substitute a placeholder
// title for them.
func (r *Repository) DeleteItem(ctx context.Context, id string) error {
	_, ok := r.identity.CurrentUserID()
	if !ok {
		return r.fail(identity.ErrUnauthenticated, "User not authenticated")
	}

	if err := r.store.Delete(ctx, docstore.CollChecklist, id); err != nil {
		r.logger.Error("delete item", "item_id", id, "error", err)
		return r.fail(fmt.Errorf("delete item: %w", err), "Failed to delete item")
	}

	r.mu.Lock()
	r.items = slices.DeleteFunc(r.items, func(it model.ChecklistItem) bool { return it.ID == id })
	r.lastErr = ""
	r.mu.Unlock()
	return nil
}

func (r *Repository) checkReset(ctx context.Context) error {
	r.mu.Lock()
	items := slices.Clone(r.items)
	r.mu.Unlock()

	ids, err := r.resetter.Run(ctx, items)
	if err != nil {
		return err
	}
	if len(ids) == 0 {
		return nil
	}

	now := r.now()
	r.mu.Lock()
	for i := range r.items {
		if slices.Contains(ids, r.items[i].ID) {
			r.items[i].Completed = false
			r.items[i].UpdatedAt = now
		}
	}
	r.mu.Unlock()
	return nil
}

func (r *Repository) fail(err error, msg string) error {
	r.mu.Lock()
	r.lastErr = msg
	r.mu.Unlock()
	return err
}

func (r *Repository) setLoading(v bool) {
	r.mu.Lock()
	r.loading = v
	r.mu.Unlock()
}

// Err returns the last operation's error message; "" after a successful
// operation.
func (r *Repository) Err() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.lastErr
}

func (r *Repository) Loading() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.loading
}
