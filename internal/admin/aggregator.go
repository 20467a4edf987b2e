// Package admin aggregates every user's checklist data for the
// administrative view. It reads the same collections as the checklist
// repository but keeps its own per-user mirrors; nothing here is shared
// mutable state with a user's repository.
package admin

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"sync"

	"github.com/ticklist/internal/docstore"
	"github.com/ticklist/internal/history"
	"github.com/ticklist/internal/identity"
	"github.com/ticklist/internal/model"
)

type Aggregator struct {
	store    docstore.Store
	identity identity.Provider
	history  *history.Recorder
	logger   *slog.Logger

	mu           sync.Mutex
	users        []model.User
	selectedUser *model.User
	userStats    *model.ChecklistStats
	userItems    map[string][]model.ChecklistItem
	userHistory  map[string][]model.HistoryRecord
	lastErr      string
}

func NewAggregator(store docstore.Store, ident identity.Provider, rec *history.Recorder, logger *slog.Logger) *Aggregator {
	return &Aggregator{
		store:       store,
		identity:    ident,
		history:     rec,
		logger:      logger,
		userItems:   make(map[string][]model.ChecklistItem),
		userHistory: make(map[string][]model.HistoryRecord),
	}
}

// authorize waits for the auth state to resolve, then fails closed unless the
// acting identity has admin capability.
func (a *Aggregator) authorize(ctx context.Context) error {
	if err := a.identity.AwaitReady(ctx); err != nil {
		return fmt.Errorf("await identity: %w", err)
	}
	if _, ok := a.identity.CurrentUserID(); !ok || !a.identity.IsAdmin() {
		return a.fail(identity.ErrUnauthorized, "Unauthorized")
	}
	return nil
}

// FetchUsers loads every user record.
func (a *Aggregator) FetchUsers(ctx context.Context) error {
	if err := a.authorize(ctx); err != nil {
		return err
	}

	docs, err := a.store.Query(ctx, docstore.CollUsers, nil, &docstore.Order{Field: "createdAt"})
	if err != nil {
		a.logger.Error("fetch users", "error", err)
		return a.fail(fmt.Errorf("fetch users: %w", err), "Failed to fetch users")
	}

	users := make([]model.User, 0, len(docs))
	for _, d := range docs {
		users = append(users, model.UserFromFields(d.ID, d.Fields))
	}

	a.mu.Lock()
	a.users = users
	a.lastErr = ""
	a.mu.Unlock()
	return nil
}

// SelectUser marks a user as inspected and loads their items, history, and
// stats. Unknown IDs are a no-op.
func (a *Aggregator) SelectUser(ctx context.Context, userID string) error {
	if err := a.authorize(ctx); err != nil {
		return err
	}

	a.mu.Lock()
	idx := slices.IndexFunc(a.users, func(u model.User) bool { return u.ID == userID })
	if idx < 0 {
		a.mu.Unlock()
		return nil
	}
	u := a.users[idx]
	a.selectedUser = &u
	a.mu.Unlock()

	if err := a.FetchUserItems(ctx, userID); err != nil {
		return err
	}
	if err := a.FetchUserHistory(ctx, userID); err != nil {
		return err
	}
	return a.FetchUserStats(ctx, userID)
}

// FetchUserItems mirrors one user's items, newest first.
func (a *Aggregator) FetchUserItems(ctx context.Context, userID string) error {
	if err := a.authorize(ctx); err != nil {
		return err
	}

	docs, err := a.store.Query(ctx, docstore.CollChecklist,
		[]docstore.Filter{{Field: "userId", Value: userID}},
		&docstore.Order{Field: "createdAt", Desc: true})
	if err != nil {
		a.logger.Error("fetch user items", "user_id", userID, "error", err)
		return a.fail(fmt.Errorf("fetch user items: %w", err), "Failed to fetch user items")
	}

	items := make([]model.ChecklistItem, 0, len(docs))
	for _, d := range docs {
		items = append(items, model.ItemFromFields(d.ID, d.Fields))
	}

	a.mu.Lock()
	a.userItems[userID] = items
	a.lastErr = ""
	a.mu.Unlock()
	return nil
}

// FetchUserHistory mirrors one user's title-enriched history.
func (a *Aggregator) FetchUserHistory(ctx context.Context, userID string) error {
	if err := a.authorize(ctx); err != nil {
		return err
	}

	records, err := a.history.ListForUser(ctx, userID)
	if err != nil {
		a.logger.Error("fetch user history", "user_id", userID, "error", err)
		return a.fail(fmt.Errorf("fetch user history: %w", err), "Failed to fetch user history")
	}

	a.mu.Lock()
	a.userHistory[userID] = records
	a.lastErr = ""
	a.mu.Unlock()
	return nil
}

// FetchUserStats derives one user's statistics.
func (a *Aggregator) FetchUserStats(ctx context.Context, userID string) error {
	if err := a.authorize(ctx); err != nil {
		return err
	}

	stats, err := a.history.Stats(ctx, userID)
	if err != nil {
		a.logger.Error("fetch user stats", "user_id", userID, "error", err)
		return a.fail(fmt.Errorf("fetch user stats: %w", err), "Failed to fetch user stats")
	}

	a.mu.Lock()
	a.userStats = &stats
	a.lastErr = ""
	a.mu.Unlock()
	return nil
}

// DeleteUser erases an account: all of the user's items and history plus the
// user record itself, in one atomic batch.
func (a *Aggregator) DeleteUser(ctx context.Context, userID string) error {
	if err := a.authorize(ctx); err != nil {
		return err
	}

	batch := a.store.Batch()

	items, err := a.store.Query(ctx, docstore.CollChecklist,
		[]docstore.Filter{{Field: "userId", Value: userID}}, nil)
	if err != nil {
		return a.fail(fmt.Errorf("query user items: %w", err), "Failed to delete user")
	}
	for _, d := range items {
		batch.Delete(docstore.CollChecklist, d.ID)
	}

	hist, err := a.store.Query(ctx, docstore.CollHistory,
		[]docstore.Filter{{Field: "userId", Value: userID}}, nil)
	if err != nil {
		return a.fail(fmt.Errorf("query user history: %w", err), "Failed to delete user")
	}
	for _, d := range hist {
		batch.Delete(docstore.CollHistory, d.ID)
	}

	batch.Delete(docstore.CollUsers, userID)

	if err := batch.Commit(ctx); err != nil {
		a.logger.Error("delete user", "user_id", userID, "error", err)
		return a.fail(fmt.Errorf("delete user: %w", err), "Failed to delete user")
	}

	a.mu.Lock()
	a.users = slices.DeleteFunc(a.users, func(u model.User) bool { return u.ID == userID })
	if a.selectedUser != nil && a.selectedUser.ID == userID {
		a.selectedUser = nil
		a.userStats = nil
	}
	delete(a.userItems, userID)
	delete(a.userHistory, userID)
	a.lastErr = ""
	a.mu.Unlock()

	a.logger.Info("user erased", "user_id", userID, "items", len(items), "history", len(hist))
	return nil
}

// --- Accessors over the aggregator's mirrors ---

func (a *Aggregator) Users() []model.User {
	a.mu.Lock()
	defer a.mu.Unlock()
	return slices.Clone(a.users)
}

func (a *Aggregator) SelectedUser() *model.User {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.selectedUser == nil {
		return nil
	}
	u := *a.selectedUser
	return &u
}

func (a *Aggregator) UserStats() *model.ChecklistStats {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.userStats == nil {
		return nil
	}
	s := *a.userStats
	return &s
}

func (a *Aggregator) UserItems(userID string) []model.ChecklistItem {
	a.mu.Lock()
	defer a.mu.Unlock()
	return slices.Clone(a.userItems[userID])
}

func (a *Aggregator) UserHistory(userID string) []model.HistoryRecord {
	a.mu.Lock()
	defer a.mu.Unlock()
	return slices.Clone(a.userHistory[userID])
}

func (a *Aggregator) Err() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.lastErr
}

func (a *Aggregator) fail(err error, msg string) error {
	a.mu.Lock()
	a.lastErr = msg
	a.mu.Unlock()
	return err
}
