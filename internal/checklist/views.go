package checklist

import (
	"slices"
	"strings"

	"github.com/ticklist/internal/model"
)

// The derived views are pure functions over the current mirror; they never
// touch the store.

// visible reports whether an item belongs in the active view: everything not
// completed, plus completed repeatable items (those stay visible until the
// daily reset). A completed one-off item is archived.
func visible(it model.ChecklistItem) bool {
	return !it.Completed || it.Repeatable
}

// SetSearchQuery narrows FilteredItems to a case-insensitive substring match
// on title or description.
func (r *Repository) SetSearchQuery(q string) {
	r.mu.Lock()
	r.searchQuery = q
	r.mu.Unlock()
}

// FilteredItems returns the active items matching the current search query.
func (r *Repository) FilteredItems() []model.ChecklistItem {
	r.mu.Lock()
	defer r.mu.Unlock()

	q := strings.ToLower(r.searchQuery)
	var out []model.ChecklistItem
	for _, it := range r.items {
		if !visible(it) {
			continue
		}
		if q != "" &&
			!strings.Contains(strings.ToLower(it.Title), q) &&
			!strings.Contains(strings.ToLower(it.Description), q) {
			continue
		}
		out = append(out, it)
	}
	return out
}

// ActiveItems returns every visible item, ignoring the search query.
func (r *Repository) ActiveItems() []model.ChecklistItem {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []model.ChecklistItem
	for _, it := range r.items {
		if visible(it) {
			out = append(out, it)
		}
	}
	return out
}

// CompletedItems returns archived items: completed and not repeatable.
func (r *Repository) CompletedItems() []model.ChecklistItem {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []model.ChecklistItem
	for _, it := range r.items {
		if it.Completed && !it.Repeatable {
			out = append(out, it)
		}
	}
	return out
}

// Items returns a copy of the full mirror in store order.
func (r *Repository) Items() []model.ChecklistItem {
	r.mu.Lock()
	defer r.mu.Unlock()
	return slices.Clone(r.items)
}
