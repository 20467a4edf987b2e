package handler

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/ticklist/internal/auth"
	"github.com/ticklist/internal/checklist"
	"github.com/ticklist/internal/history"
)

type ChecklistHandler struct {
	repos   *checklist.Manager
	history *history.Recorder
}

func NewChecklistHandler(repos *checklist.Manager, rec *history.Recorder) *ChecklistHandler {
	return &ChecklistHandler{repos: repos, history: rec}
}

func (h *ChecklistHandler) repo(r *http.Request) *checklist.Repository {
	ac, _ := auth.FromContext(r.Context())
	return h.repos.For(ac.UserID, ac.Admin)
}

type itemRequest struct {
	Title       string  `json:"title"`
	Description *string `json:"description"`
	Repeatable  *bool   `json:"repeatable"`
}

// List refreshes the mirror and returns the active view, optionally narrowed
// by the `q` search parameter.
func (h *ChecklistHandler) List(w http.ResponseWriter, r *http.Request) {
	repo := h.repo(r)
	repo.SetSearchQuery(r.URL.Query().Get("q"))

	if err := repo.FetchItems(r.Context()); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": repo.FilteredItems()})
}

// Completed returns the archived one-off items from the current mirror.
func (h *ChecklistHandler) Completed(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"items": h.repo(r).CompletedItems()})
}

func (h *ChecklistHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req itemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON"})
		return
	}

	req.Title = strings.TrimSpace(req.Title)
	desc := ""
	if req.Description != nil {
		desc = *req.Description
	}
	repeatable := req.Repeatable != nil && *req.Repeatable

	item, err := h.repo(r).AddItem(r.Context(), req.Title, desc, repeatable)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, item)
}

func (h *ChecklistHandler) Toggle(w http.ResponseWriter, r *http.Request) {
	if err := h.repo(r).ToggleItem(r.Context(), r.PathValue("id")); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *ChecklistHandler) Update(w http.ResponseWriter, r *http.Request) {
	var req itemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON"})
		return
	}

	upd := checklist.ItemUpdate{
		Title:       strings.TrimSpace(req.Title),
		Description: req.Description,
		Repeatable:  req.Repeatable,
	}
	if err := h.repo(r).UpdateItem(r.Context(), r.PathValue("id"), upd); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *ChecklistHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.repo(r).DeleteItem(r.Context(), r.PathValue("id")); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// History lists the acting user's completion records, newest first.
func (h *ChecklistHandler) History(w http.ResponseWriter, r *http.Request) {
	records, err := h.history.ListForUser(r.Context(), auth.UserID(r.Context()))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"history": records})
}
