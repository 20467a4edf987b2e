package checklist

import (
	"log/slog"
	"sync"

	"github.com/ticklist/internal/docstore"
	"github.com/ticklist/internal/history"
	"github.com/ticklist/internal/identity"
	"github.com/ticklist/internal/reset"
)

// Manager hands out one Repository per user for the HTTP surface. Each
// repository owns its own mirror; they share the store, the history recorder,
// and the reset scheduler.
type Manager struct {
	store  docstore.Store
	rec    *history.Recorder
	sched  *reset.Scheduler
	logger *slog.Logger

	mu    sync.Mutex
	repos map[string]*Repository
}

func NewManager(store docstore.Store, rec *history.Recorder, sched *reset.Scheduler, logger *slog.Logger) *Manager {
	return &Manager{
		store:  store,
		rec:    rec,
		sched:  sched,
		logger: logger,
		repos:  make(map[string]*Repository),
	}
}

// For returns the repository for a user, creating it on first use.
func (m *Manager) For(userID string, admin bool) *Repository {
	m.mu.Lock()
	defer m.mu.Unlock()

	if r, ok := m.repos[userID]; ok {
		return r
	}
	r := NewRepository(m.store, identity.Static{UserID: userID, Admin: admin}, m.rec, m.sched,
		m.logger.With("user_id", userID))
	m.repos[userID] = r
	return r
}

// Drop forgets a user's repository, e.g. after account erasure.
func (m *Manager) Drop(userID string) {
	m.mu.Lock()
	delete(m.repos, userID)
	m.mu.Unlock()
}
