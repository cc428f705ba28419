package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/ropl-btc/project-tasks/internal/auth"
	"github.com/ropl-btc/project-tasks/internal/model"
	"github.com/ropl-btc/project-tasks/internal/service"
	"github.com/ropl-btc/project-tasks/pkg/respond"
)

const previewLength = 60

type NoteHandler struct {
	service *service.TaskService
	logger  *zap.Logger
}

func NewNoteHandler(srv *service.TaskService, logger *zap.Logger) *NoteHandler {
	return &NoteHandler{service: srv, logger: logger}
}

func (h *NoteHandler) Routes(r chi.Router) {
	r.Get("/", h.List)
	r.Post("/", h.Create)
	r.Post("/refresh", h.Refresh)
	r.Patch("/{id}", h.Update)
	r.Delete("/{id}", h.Delete)
}

type noteRequest struct {
	Content string `json:"content"`
}

// noteResponse adds the list preview shown in the notes overview.
type noteResponse struct {
	model.Note
	Preview string `json:"preview"`
}

func toResponse(n model.Note) noteResponse {
	return noteResponse{Note: n, Preview: model.Truncate(model.PreviewText(n.Content), previewLength)}
}

func toResponses(notes []model.Note) []noteResponse {
	out := make([]noteResponse, len(notes))
	for i, n := range notes {
		out[i] = toResponse(n)
	}
	return out
}

func (h *NoteHandler) List(w http.ResponseWriter, r *http.Request) {
	owner, _ := auth.OwnerFromContext(r.Context())
	notes, err := h.service.Notes(r.Context(), owner)
	if err != nil {
		handleErrors(h.logger, w, r, err)
		return
	}
	respond.JSON(w, r, http.StatusOK, toResponses(notes))
}

func (h *NoteHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req noteRequest
	if err := respond.Decode(r, &req); err != nil {
		respond.Error(w, r, http.StatusBadRequest, "invalid json")
		return
	}

	owner, _ := auth.OwnerFromContext(r.Context())
	note, err := h.service.AddNote(r.Context(), owner, req.Content)
	if err != nil {
		handleErrors(h.logger, w, r, err)
		return
	}
	w.Header().Set("Location", "/api/notes/"+note.ID)
	respond.JSON(w, r, http.StatusCreated, toResponse(note))
}

func (h *NoteHandler) Update(w http.ResponseWriter, r *http.Request) {
	var req noteRequest
	if err := respond.Decode(r, &req); err != nil {
		respond.Error(w, r, http.StatusBadRequest, "invalid json")
		return
	}

	owner, _ := auth.OwnerFromContext(r.Context())
	note, err := h.service.UpdateNote(r.Context(), owner, chi.URLParam(r, "id"), req.Content)
	if err != nil {
		handleErrors(h.logger, w, r, err)
		return
	}
	respond.JSON(w, r, http.StatusOK, toResponse(note))
}

func (h *NoteHandler) Delete(w http.ResponseWriter, r *http.Request) {
	owner, _ := auth.OwnerFromContext(r.Context())
	if err := h.service.DeleteNote(r.Context(), owner, chi.URLParam(r, "id")); err != nil {
		handleErrors(h.logger, w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *NoteHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	owner, _ := auth.OwnerFromContext(r.Context())
	notes, err := h.service.RefreshNotes(r.Context(), owner)
	if err != nil {
		handleErrors(h.logger, w, r, err)
		return
	}
	respond.JSON(w, r, http.StatusOK, toResponses(notes))
}
