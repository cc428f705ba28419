package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/ropl-btc/project-tasks/pkg/respond"
)

// NewRouter wires the API. authenticate guards everything under /api.
func NewRouter(tasks *TaskHandler, notes *NoteHandler, authenticate func(http.Handler) http.Handler) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		respond.JSON(w, r, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/api", func(r chi.Router) {
		r.Use(authenticate)
		r.Route("/tasks", tasks.Routes)
		r.Route("/notes", notes.Routes)
	})
	return r
}
