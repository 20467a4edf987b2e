package server

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/ticklist/internal/checklist"
	"github.com/ticklist/internal/docstore"
	"github.com/ticklist/internal/handler"
	"github.com/ticklist/internal/history"
	"github.com/ticklist/internal/identity"
	"github.com/ticklist/internal/middleware"
	"github.com/ticklist/internal/reset"
)

type Server struct {
	identitySvc *identity.Service
	authH       *handler.AuthHandler
	checklistH  *handler.ChecklistHandler
	adminH      *handler.AdminHandler
	logger      *slog.Logger
}

func New(store docstore.Store, identitySvc *identity.Service, marker reset.MarkerStore, logger *slog.Logger) (*Server, error) {
	rec := history.NewRecorder(store, logger.With("component", "history"))

	sched, err := reset.NewScheduler(store, marker, logger.With("component", "reset"))
	if err != nil {
		return nil, err
	}

	repos := checklist.NewManager(store, rec, sched, logger.With("component", "checklist"))

	return &Server{
		identitySvc: identitySvc,
		authH:       handler.NewAuthHandler(identitySvc),
		checklistH:  handler.NewChecklistHandler(repos, rec),
		adminH:      handler.NewAdminHandler(store, rec, repos, logger.With("component", "admin")),
		logger:      logger,
	}, nil
}

func (s *Server) Router() http.Handler {
	outerMux := http.NewServeMux()

	// Public routes
	outerMux.HandleFunc("POST /api/register", s.authH.Register)
	outerMux.HandleFunc("POST /api/login", s.authH.Login)
	outerMux.HandleFunc("GET /health", s.healthHandler)

	// Protected routes
	protectedMux := http.NewServeMux()
	protectedMux.HandleFunc("GET /api/items", s.checklistH.List)
	protectedMux.HandleFunc("POST /api/items", s.checklistH.Create)
	protectedMux.HandleFunc("GET /api/items/completed", s.checklistH.Completed)
	protectedMux.HandleFunc("POST /api/items/{id}/toggle", s.checklistH.Toggle)
	protectedMux.HandleFunc("PUT /api/items/{id}", s.checklistH.Update)
	protectedMux.HandleFunc("DELETE /api/items/{id}", s.checklistH.Delete)
	protectedMux.HandleFunc("GET /api/history", s.checklistH.History)

	// Admin routes, additionally gated on admin capability
	adminMux := http.NewServeMux()
	adminMux.HandleFunc("GET /api/admin/users", s.adminH.ListUsers)
	adminMux.HandleFunc("GET /api/admin/users/{id}", s.adminH.UserDetail)
	adminMux.HandleFunc("DELETE /api/admin/users/{id}", s.adminH.DeleteUser)
	protectedMux.Handle("/api/admin/", middleware.RequireAdmin(adminMux))

	authMiddleware := middleware.RequireAuth(s.identitySvc)
	outerMux.Handle("/", authMiddleware(protectedMux))

	return middleware.RequestLogger(s.logger.With("component", "http"))(outerMux)
}

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}
