package handler

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/ropl-btc/project-tasks/internal/auth"
	"github.com/ropl-btc/project-tasks/internal/model"
	"github.com/ropl-btc/project-tasks/internal/repo"
	"github.com/ropl-btc/project-tasks/internal/service"
	"github.com/ropl-btc/project-tasks/internal/store"
	"github.com/ropl-btc/project-tasks/internal/vision"
	"github.com/ropl-btc/project-tasks/pkg/respond"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

type TaskHandler struct {
	service *service.TaskService
	logger  *zap.Logger
}

func NewTaskHandler(srv *service.TaskService, logger *zap.Logger) *TaskHandler {
	return &TaskHandler{
		service: srv,
		logger:  logger,
	}
}

// Routes mounts the task endpoints. Every route expects an owner in the request context.
func (h *TaskHandler) Routes(r chi.Router) {
	r.Get("/", h.List)
	r.Post("/", h.Create)
	r.Post("/reorder", h.Reorder)
	r.Post("/refresh", h.Refresh)
	r.Post("/capture", h.Capture)
	r.Get("/export.xlsx", h.Export)
	r.Patch("/{id}", h.Update)
	r.Post("/{id}/status", h.CycleStatus)
	r.Delete("/{id}", h.Delete)
}

type createTaskRequest struct {
	Text     string         `json:"text"`
	Priority model.Priority `json:"priority"`
}

type statusRequest struct {
	Direction string `json:"direction"`
}

type reorderRequest struct {
	From   int  `json:"from"`
	To     int  `json:"to"`
	Commit bool `json:"commit"`
}

type captureRequest struct {
	Image string `json:"image"`
}

func (h *TaskHandler) List(w http.ResponseWriter, r *http.Request) {
	owner, _ := auth.OwnerFromContext(r.Context())

	sortBy, err := model.ParseSortType(r.URL.Query().Get("sort"))
	if err != nil {
		respond.Error(w, r, http.StatusBadRequest, err.Error())
		return
	}
	showCompleted := true
	if v := r.URL.Query().Get("show_completed"); v != "" {
		showCompleted, err = strconv.ParseBool(v)
		if err != nil {
			respond.Error(w, r, http.StatusBadRequest, "show_completed must be true or false")
			return
		}
	}

	tasks, err := h.service.List(r.Context(), owner, sortBy, showCompleted)
	if err != nil {
		h.handleErrors(w, r, err)
		return
	}
	respond.JSON(w, r, http.StatusOK, tasks)
}

func (h *TaskHandler) Create(w http.ResponseWriter, r *http.Request) {
	// An empty body creates a blank task.
	var req createTaskRequest
	if err := respond.Decode(r, &req); err != nil && !errors.Is(err, io.EOF) {
		h.logger.Error("failed to decode json", zap.Error(err))
		respond.Error(w, r, http.StatusBadRequest, fmt.Sprintf("invalid json: %v", err))
		return
	}

	owner, _ := auth.OwnerFromContext(r.Context())
	task, err := h.service.AddTask(r.Context(), owner, req.Text, req.Priority)
	if err != nil {
		h.handleErrors(w, r, err)
		return
	}

	w.Header().Set("Location", "/api/tasks/"+task.ID)
	respond.JSON(w, r, http.StatusCreated, task)
}

func (h *TaskHandler) Update(w http.ResponseWriter, r *http.Request) {
	var patch model.TaskPatch
	if err := respond.Decode(r, &patch); err != nil {
		respond.Error(w, r, http.StatusBadRequest, "invalid json")
		return
	}

	owner, _ := auth.OwnerFromContext(r.Context())
	task, err := h.service.UpdateTask(r.Context(), owner, chi.URLParam(r, "id"), patch)
	if err != nil {
		h.handleErrors(w, r, err)
		return
	}
	respond.JSON(w, r, http.StatusOK, task)
}

func (h *TaskHandler) CycleStatus(w http.ResponseWriter, r *http.Request) {
	req := statusRequest{Direction: "next"}
	if r.ContentLength != 0 {
		if err := respond.Decode(r, &req); err != nil {
			respond.Error(w, r, http.StatusBadRequest, "invalid json")
			return
		}
	}

	var forward bool
	switch req.Direction {
	case "next":
		forward = true
	case "previous":
	default:
		respond.Error(w, r, http.StatusBadRequest, "direction must be next or previous")
		return
	}

	owner, _ := auth.OwnerFromContext(r.Context())
	task, err := h.service.CycleStatus(r.Context(), owner, chi.URLParam(r, "id"), forward)
	if err != nil {
		h.handleErrors(w, r, err)
		return
	}
	respond.JSON(w, r, http.StatusOK, task)
}

func (h *TaskHandler) Delete(w http.ResponseWriter, r *http.Request) {
	owner, _ := auth.OwnerFromContext(r.Context())
	if err := h.service.DeleteTask(r.Context(), owner, chi.URLParam(r, "id")); err != nil {
		h.handleErrors(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *TaskHandler) Reorder(w http.ResponseWriter, r *http.Request) {
	var req reorderRequest
	if err := respond.Decode(r, &req); err != nil {
		respond.Error(w, r, http.StatusBadRequest, "invalid json")
		return
	}

	owner, _ := auth.OwnerFromContext(r.Context())
	tasks, err := h.service.Reorder(r.Context(), owner, req.From, req.To, req.Commit)
	if err != nil {
		h.handleErrors(w, r, err)
		return
	}
	respond.JSON(w, r, http.StatusOK, tasks)
}

func (h *TaskHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	owner, _ := auth.OwnerFromContext(r.Context())
	tasks, err := h.service.Refresh(r.Context(), owner)
	if err != nil {
		h.handleErrors(w, r, err)
		return
	}
	respond.JSON(w, r, http.StatusOK, tasks)
}

func (h *TaskHandler) Capture(w http.ResponseWriter, r *http.Request) {
	var req captureRequest
	if err := respond.Decode(r, &req); err != nil {
		respond.Error(w, r, http.StatusBadRequest, "invalid json")
		return
	}

	owner, _ := auth.OwnerFromContext(r.Context())
	added, err := h.service.Capture(r.Context(), owner, req.Image)
	if err != nil {
		h.handleErrors(w, r, err)
		return
	}
	respond.JSON(w, r, http.StatusCreated, added)
}

func (h *TaskHandler) Export(w http.ResponseWriter, r *http.Request) {
	owner, _ := auth.OwnerFromContext(r.Context())

	// Headers go out with the first byte, so a failure part way can only be logged.
	w.Header().Set("Content-Type", xlsxContentType)
	w.Header().Set("Content-Disposition", `attachment; filename="tasks.xlsx"`)
	if err := h.service.Export(r.Context(), owner, w); err != nil {
		w.Header().Del("Content-Disposition")
		h.handleErrors(w, r, err)
	}
}

func (h *TaskHandler) handleErrors(w http.ResponseWriter, r *http.Request, err error) {
	handleErrors(h.logger, w, r, err)
}

func handleErrors(logger *zap.Logger, w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, store.ErrUnauthenticated):
		respond.Error(w, r, http.StatusUnauthorized, "unauthenticated")
	case errors.Is(err, store.ErrNotFound), errors.Is(err, repo.ErrorNotFound):
		respond.Error(w, r, http.StatusNotFound, "not found")
	case errors.Is(err, repo.ErrorConflict):
		respond.Error(w, r, http.StatusConflict, "conflict")
	case errors.Is(err, store.ErrValidation), errors.Is(err, store.ErrInvalidIndex), errors.Is(err, vision.ErrInvalidImage):
		respond.Error(w, r, http.StatusBadRequest, err.Error())
	case errors.Is(err, vision.ErrMalformedResponse):
		respond.Error(w, r, http.StatusBadGateway, "could not read tasks from the image")
	case errors.Is(err, service.ErrCaptureUnavailable):
		respond.Error(w, r, http.StatusServiceUnavailable, err.Error())
	default:
		logger.Error("internal error", zap.Error(err))
		respond.Error(w, r, http.StatusInternalServerError, "internal error")
	}
}
