package checklist

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/ticklist/internal/docstore"
	"github.com/ticklist/internal/history"
	"github.com/ticklist/internal/identity"
	"github.com/ticklist/internal/model"
	"github.com/ticklist/internal/reset"
)

type repoFixture struct {
	repo   *Repository
	store  *docstore.Memory
	marker *reset.MemMarker
	now    time.Time
}

// advance moves the fixture clock; the repository and scheduler share it.
func (f *repoFixture) advance(d time.Duration) {
	f.now = f.now.Add(d)
}

func setupRepo(t *testing.T) *repoFixture {
	t.Helper()

	store := docstore.NewMemory()
	marker := &reset.MemMarker{}
	logger := slog.Default()

	f := &repoFixture{
		store:  store,
		marker: marker,
		// Midday, well clear of the trigger hour.
		now: time.Date(2026, 3, 9, 12, 0, 0, 0, time.UTC),
	}

	sched, err := reset.NewScheduler(store, marker, logger)
	if err != nil {
		t.Fatalf("new scheduler: %v", err)
	}
	sched.SetClock(func() time.Time { return f.now })

	rec := history.NewRecorder(store, logger)
	f.repo = NewRepository(store, identity.Static{UserID: "u1"}, rec, sched, logger)
	f.repo.now = func() time.Time { return f.now }
	return f
}

func (f *repoFixture) historyCount(t *testing.T) int {
	t.Helper()
	docs, err := f.store.Query(context.Background(), docstore.CollHistory,
		[]docstore.Filter{{Field: "userId", Value: "u1"}}, nil)
	if err != nil {
		t.Fatalf("query history: %v", err)
	}
	return len(docs)
}

func (f *repoFixture) storedItem(t *testing.T, id string) model.ChecklistItem {
	t.Helper()
	doc, err := f.store.Get(context.Background(), docstore.CollChecklist, id)
	if err != nil {
		t.Fatalf("get item %s: %v", id, err)
	}
	return model.ItemFromFields(doc.ID, doc.Fields)
}

func titles(items []model.ChecklistItem) []string {
	out := make([]string, len(items))
	for i, it := range items {
		out[i] = it.Title
	}
	return out
}

func TestFetchItemsUnauthenticated(t *testing.T) {
	f := setupRepo(t)
	f.repo.identity = identity.Static{}

	err := f.repo.FetchItems(context.Background())
	if !errors.Is(err, identity.ErrUnauthenticated) {
		t.Fatalf("expected ErrUnauthenticated, got %v", err)
	}
	if f.repo.Err() == "" {
		t.Error("expected error message to be set")
	}
	if len(f.repo.Items()) != 0 {
		t.Error("state changed by unauthenticated operation")
	}
}

func TestAddItemPrependsAndPersists(t *testing.T) {
	f := setupRepo(t)
	ctx := context.Background()

	first, err := f.repo.AddItem(ctx, "First", "", false)
	if err != nil {
		t.Fatalf("add first: %v", err)
	}
	if first.ID == "" {
		t.Fatal("expected store-assigned id")
	}
	if first.Completed {
		t.Error("new item must start incomplete")
	}

	f.advance(time.Minute)
	if _, err := f.repo.AddItem(ctx, "Second", "", false); err != nil {
		t.Fatalf("add second: %v", err)
	}

	// Visible without a refetch, newest first.
	if diff := cmp.Diff([]string{"Second", "First"}, titles(f.repo.Items())); diff != "" {
		t.Errorf("local order mismatch (-want +got):\n%s", diff)
	}

	// Refetch agrees with the store's reverse-chronological order.
	if err := f.repo.FetchItems(ctx); err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if diff := cmp.Diff([]string{"Second", "First"}, titles(f.repo.Items())); diff != "" {
		t.Errorf("fetched order mismatch (-want +got):\n%s", diff)
	}
}

func TestAddItemRequiresTitle(t *testing.T) {
	f := setupRepo(t)

	if _, err := f.repo.AddItem(context.Background(), "   ", "", false); !errors.Is(err, ErrEmptyTitle) {
		t.Fatalf("expected ErrEmptyTitle, got %v", err)
	}
}

func TestToggleCompletesOneOffItem(t *testing.T) {
	f := setupRepo(t)
	ctx := context.Background()

	item, err := f.repo.AddItem(ctx, "Mow lawn", "", false)
	if err != nil {
		t.Fatalf("add: %v", err)
	}

	if err := f.repo.ToggleItem(ctx, item.ID); err != nil {
		t.Fatalf("toggle: %v", err)
	}

	got := f.repo.Items()[0]
	if !got.Completed {
		t.Error("item not completed")
	}
	if got.CompletedAt == nil || !got.CompletedAt.Equal(f.now) {
		t.Errorf("completedAt = %v, want %v", got.CompletedAt, f.now)
	}

	// Archived: out of the active view, into the completed view.
	if len(f.repo.ActiveItems()) != 0 {
		t.Error("completed one-off item still in active view")
	}
	if len(f.repo.CompletedItems()) != 1 {
		t.Error("completed one-off item missing from completed view")
	}

	if n := f.historyCount(t); n != 1 {
		t.Errorf("history records = %d, want 1", n)
	}

	stored := f.storedItem(t, item.ID)
	if !stored.Completed {
		t.Error("remote item not completed")
	}
}

func TestToggleRepeatableStaysActive(t *testing.T) {
	f := setupRepo(t)
	ctx := context.Background()

	item, err := f.repo.AddItem(ctx, "Meditate", "", true)
	if err != nil {
		t.Fatalf("add: %v", err)
	}
	if err := f.repo.ToggleItem(ctx, item.ID); err != nil {
		t.Fatalf("toggle: %v", err)
	}

	if len(f.repo.ActiveItems()) != 1 {
		t.Error("completed repeatable item left the active view")
	}
	if len(f.repo.CompletedItems()) != 0 {
		t.Error("repeatable item appeared in the archived view")
	}
}

func TestToggleBackLeavesCompletedAtStale(t *testing.T) {
	f := setupRepo(t)
	ctx := context.Background()

	item, err := f.repo.AddItem(ctx, "Stretch", "", false)
	if err != nil {
		t.Fatalf("add: %v", err)
	}
	if err := f.repo.ToggleItem(ctx, item.ID); err != nil {
		t.Fatalf("toggle on: %v", err)
	}
	completedAt := f.now

	f.advance(10 * time.Minute)
	if err := f.repo.ToggleItem(ctx, item.ID); err != nil {
		t.Fatalf("toggle off: %v", err)
	}

	got := f.repo.Items()[0]
	if got.Completed {
		t.Error("item still completed")
	}
	// completedAt records the most recent completion and is not cleared.
	if got.CompletedAt == nil || !got.CompletedAt.Equal(completedAt) {
		t.Errorf("completedAt = %v, want stale %v", got.CompletedAt, completedAt)
	}

	// Un-completing creates no history record and removes none.
	if n := f.historyCount(t); n != 1 {
		t.Errorf("history records = %d, want 1", n)
	}
}

func TestToggleUnknownIDIsNoop(t *testing.T) {
	f := setupRepo(t)

	if err := f.repo.ToggleItem(context.Background(), "missing"); err != nil {
		t.Fatalf("toggle unknown id: %v", err)
	}
	if n := f.historyCount(t); n != 0 {
		t.Errorf("history records = %d, want 0", n)
	}
}

func TestUpdateItem(t *testing.T) {
	f := setupRepo(t)
	ctx := context.Background()

	item, err := f.repo.AddItem(ctx, "Read", "", false)
	if err != nil {
		t.Fatalf("add: %v", err)
	}

	desc := "one chapter"
	repeatable := true
	err = f.repo.UpdateItem(ctx, item.ID, ItemUpdate{
		Title:       "Read fiction",
		Description: &desc,
		Repeatable:  &repeatable,
	})
	if err != nil {
		t.Fatalf("update: %v", err)
	}

	got := f.repo.Items()[0]
	if got.Title != "Read fiction" || got.Description != "one chapter" || !got.Repeatable {
		t.Errorf("local item = %+v", got)
	}

	stored := f.storedItem(t, item.ID)
	if stored.Title != "Read fiction" || stored.Description != "one chapter" || !stored.Repeatable {
		t.Errorf("stored item = %+v", stored)
	}
}

func TestUpdateItemRequiresTitle(t *testing.T) {
	f := setupRepo(t)
	ctx := context.Background()

	item, err := f.repo.AddItem(ctx, "Read", "", false)
	if err != nil {
		t.Fatalf("add: %v", err)
	}
	if err := f.repo.UpdateItem(ctx, item.ID, ItemUpdate{Title: ""}); !errors.Is(err, ErrEmptyTitle) {
		t.Fatalf("expected ErrEmptyTitle, got %v", err)
	}
}

func TestDeleteItemLeavesHistoryOrphan(t *testing.T) {
	f := setupRepo(t)
	ctx := context.Background()

	item, err := f.repo.AddItem(ctx, "Vacuum", "", false)
	if err != nil {
		t.Fatalf("add: %v", err)
	}
	if err := f.repo.ToggleItem(ctx, item.ID); err != nil {
		t.Fatalf("toggle: %v", err)
	}
	if err := f.repo.DeleteItem(ctx, item.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}

	if len(f.repo.Items()) != 0 {
		t.Error("item still in mirror")
	}
	if _, err := f.store.Get(ctx, docstore.CollChecklist, item.ID); !errors.Is(err, docstore.ErrNotFound) {
		t.Errorf("remote item still present: %v", err)
	}
	// History is not cascade-deleted.
	if n := f.historyCount(t); n != 1 {
		t.Errorf("history records = %d, want orphan kept", n)
	}
}

func TestSearchFiltersTitleAndDescription(t *testing.T) {
	f := setupRepo(t)
	ctx := context.Background()

	if _, err := f.repo.AddItem(ctx, "Buy milk", "", false); err != nil {
		t.Fatalf("add: %v", err)
	}
	if _, err := f.repo.AddItem(ctx, "Walk dog", "evening loop", false); err != nil {
		t.Fatalf("add: %v", err)
	}

	f.repo.SetSearchQuery("WALK")
	if diff := cmp.Diff([]string{"Walk dog"}, titles(f.repo.FilteredItems())); diff != "" {
		t.Errorf("title match (-want +got):\n%s", diff)
	}

	f.repo.SetSearchQuery("evening")
	if diff := cmp.Diff([]string{"Walk dog"}, titles(f.repo.FilteredItems())); diff != "" {
		t.Errorf("description match (-want +got):\n%s", diff)
	}

	f.repo.SetSearchQuery("")
	if got := len(f.repo.FilteredItems()); got != 2 {
		t.Errorf("unfiltered count = %d, want 2", got)
	}
}

func TestFilteredItemsExcludesArchivedOnly(t *testing.T) {
	f := setupRepo(t)
	ctx := context.Background()

	oneOff, err := f.repo.AddItem(ctx, "One-off", "", false)
	if err != nil {
		t.Fatalf("add: %v", err)
	}
	rep, err := f.repo.AddItem(ctx, "Daily", "", true)
	if err != nil {
		t.Fatalf("add: %v", err)
	}
	if err := f.repo.ToggleItem(ctx, oneOff.ID); err != nil {
		t.Fatalf("toggle one-off: %v", err)
	}
	if err := f.repo.ToggleItem(ctx, rep.ID); err != nil {
		t.Fatalf("toggle repeatable: %v", err)
	}

	// Excluded iff completed && !repeatable.
	if diff := cmp.Diff([]string{"Daily"}, titles(f.repo.FilteredItems())); diff != "" {
		t.Errorf("filtered view (-want +got):\n%s", diff)
	}
}

// erroringStore injects a query failure under an otherwise working store.
type erroringStore struct {
	docstore.Store
	queryErr error
}

func (e *erroringStore) Query(ctx context.Context, collection string, filters []docstore.Filter, order *docstore.Order) ([]docstore.Document, error) {
	if e.queryErr != nil {
		return nil, e.queryErr
	}
	return e.Store.Query(ctx, collection, filters, order)
}

func TestFetchFailureKeepsPreviousItems(t *testing.T) {
	f := setupRepo(t)
	ctx := context.Background()

	flaky := &erroringStore{Store: f.store}
	f.repo.store = flaky

	if _, err := f.repo.AddItem(ctx, "Keep me", "", false); err != nil {
		t.Fatalf("add: %v", err)
	}
	if err := f.repo.FetchItems(ctx); err != nil {
		t.Fatalf("fetch: %v", err)
	}

	flaky.queryErr = errors.New("store unavailable")
	if err := f.repo.FetchItems(ctx); err == nil {
		t.Fatal("expected fetch error")
	}

	if diff := cmp.Diff([]string{"Keep me"}, titles(f.repo.Items())); diff != "" {
		t.Errorf("previous items lost (-want +got):\n%s", diff)
	}
	if f.repo.Err() == "" {
		t.Error("expected error message to be set")
	}

	// A later successful operation clears the error slot.
	flaky.queryErr = nil
	if err := f.repo.FetchItems(ctx); err != nil {
		t.Fatalf("recovered fetch: %v", err)
	}
	if f.repo.Err() != "" {
		t.Errorf("error slot = %q, want cleared", f.repo.Err())
	}
}

func TestFetchAppliesDailyReset(t *testing.T) {
	f := setupRepo(t)
	ctx := context.Background()

	rep, err := f.repo.AddItem(ctx, "Daily", "", true)
	if err != nil {
		t.Fatalf("add: %v", err)
	}
	oneOff, err := f.repo.AddItem(ctx, "One-off", "", false)
	if err != nil {
		t.Fatalf("add: %v", err)
	}
	if err := f.repo.ToggleItem(ctx, rep.ID); err != nil {
		t.Fatalf("toggle: %v", err)
	}
	if err := f.repo.ToggleItem(ctx, oneOff.ID); err != nil {
		t.Fatalf("toggle: %v", err)
	}

	// Next morning inside the trigger hour, reference time.
	loc, err := time.LoadLocation(reset.ReferenceZone)
	if err != nil {
		t.Fatalf("load zone: %v", err)
	}
	f.now = time.Date(2026, 3, 10, reset.TriggerHour, 20, 0, 0, loc)

	if err := f.repo.FetchItems(ctx); err != nil {
		t.Fatalf("fetch: %v", err)
	}

	var gotRep, gotOne model.ChecklistItem
	for _, it := range f.repo.Items() {
		switch it.ID {
		case rep.ID:
			gotRep = it
		case oneOff.ID:
			gotOne = it
		}
	}
	if gotRep.Completed {
		t.Error("repeatable item not reset")
	}
	if !gotOne.Completed {
		t.Error("one-off item was reset")
	}
	if f.storedItem(t, rep.ID).Completed {
		t.Error("repeatable item not reset remotely")
	}
	if got, _ := f.marker.LastReset(); got != "2026-03-10" {
		t.Errorf("marker = %q, want %q", got, "2026-03-10")
	}
}

func TestFetchResetCheckIsHourlyGuarded(t *testing.T) {
	f := setupRepo(t)
	ctx := context.Background()

	rep, err := f.repo.AddItem(ctx, "Daily", "", true)
	if err != nil {
		t.Fatalf("add: %v", err)
	}
	if err := f.repo.ToggleItem(ctx, rep.ID); err != nil {
		t.Fatalf("toggle: %v", err)
	}

	loc, err := time.LoadLocation(reset.ReferenceZone)
	if err != nil {
		t.Fatalf("load zone: %v", err)
	}
	f.now = time.Date(2026, 3, 10, reset.TriggerHour, 5, 0, 0, loc)

	if err := f.repo.FetchItems(ctx); err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if f.storedItem(t, rep.ID).Completed {
		t.Fatal("first eligible fetch did not reset")
	}

	// Complete it again and clear the marker: a fetch within the guard
	// interval must not re-run the reset even though it would qualify.
	if err := f.repo.ToggleItem(ctx, rep.ID); err != nil {
		t.Fatalf("re-toggle: %v", err)
	}
	if err := f.marker.SetLastReset(""); err != nil {
		t.Fatalf("clear marker: %v", err)
	}

	f.advance(40 * time.Minute)
	if err := f.repo.FetchItems(ctx); err != nil {
		t.Fatalf("guarded fetch: %v", err)
	}
	if !f.storedItem(t, rep.ID).Completed {
		t.Error("reset ran again within the one-hour guard")
	}

	// Past the guard but outside the trigger hour: still no reset.
	f.advance(40 * time.Minute)
	if err := f.repo.FetchItems(ctx); err != nil {
		t.Fatalf("late fetch: %v", err)
	}
	if !f.storedItem(t, rep.ID).Completed {
		t.Error("reset ran outside the trigger hour")
	}
}
