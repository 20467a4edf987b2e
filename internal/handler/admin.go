package handler

import (
	"log/slog"
	"net/http"

	"github.com/ticklist/internal/admin"
	adminauth "github.com/ticklist/internal/auth"
	"github.com/ticklist/internal/checklist"
	"github.com/ticklist/internal/docstore"
	"github.com/ticklist/internal/history"
	"github.com/ticklist/internal/identity"
)

type AdminHandler struct {
	store   docstore.Store
	history *history.Recorder
	repos   *checklist.Manager
	logger  *slog.Logger
}

func NewAdminHandler(store docstore.Store, rec *history.Recorder, repos *checklist.Manager, logger *slog.Logger) *AdminHandler {
	return &AdminHandler{store: store, history: rec, repos: repos, logger: logger}
}

// aggregator builds a request-scoped aggregator bound to the acting identity.
// The middleware already gates on admin capability; the aggregator re-checks
// and fails closed regardless.
func (h *AdminHandler) aggregator(r *http.Request) *admin.Aggregator {
	ac, _ := adminauth.FromContext(r.Context())
	ident := identity.Static{UserID: ac.UserID, Admin: ac.Admin}
	return admin.NewAggregator(h.store, ident, h.history, h.logger)
}

func (h *AdminHandler) ListUsers(w http.ResponseWriter, r *http.Request) {
	agg := h.aggregator(r)
	if err := agg.FetchUsers(r.Context()); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"users": agg.Users()})
}

// UserDetail returns one user's items, enriched history, and stats.
func (h *AdminHandler) UserDetail(w http.ResponseWriter, r *http.Request) {
	userID := r.PathValue("id")
	agg := h.aggregator(r)

	if err := agg.FetchUsers(r.Context()); err != nil {
		writeError(w, err)
		return
	}
	if err := agg.SelectUser(r.Context(), userID); err != nil {
		writeError(w, err)
		return
	}

	user := agg.SelectedUser()
	if user == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "user not found"})
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"user":    user,
		"items":   agg.UserItems(userID),
		"history": agg.UserHistory(userID),
		"stats":   agg.UserStats(),
	})
}

func (h *AdminHandler) DeleteUser(w http.ResponseWriter, r *http.Request) {
	userID := r.PathValue("id")
	agg := h.aggregator(r)

	if err := agg.DeleteUser(r.Context(), userID); err != nil {
		writeError(w, err)
		return
	}

	// Any cached mirror for the erased user is stale now.
	h.repos.Drop(userID)
	w.WriteHeader(http.StatusNoContent)
}
