package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/BuzzLyutic/tasks-api/internal/model"
	"github.com/BuzzLyutic/tasks-api/internal/service"
	"github.com/BuzzLyutic/tasks-api/pkg/respond"
)

const maxBodyBytes = 1 << 20

var (
	errEmptyBody = errors.New("empty request body")
	errInvalidID = errors.New("invalid task id")
)

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

func (h *TaskHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req model.TaskCreate
	if err := decodeJSON(r, &req); err != nil {
		respond.Error(w, r, http.StatusUnprocessableEntity, err.Error())
		return
	}

	task, err := h.service.Create(r.Context(), req)
	if err != nil {
		h.handleErrors(w, r, err)
		return
	}

	w.Header().Set("Location", fmt.Sprintf("/tasks/%d", task.ID))
	respond.JSON(w, r, http.StatusCreated, task)
}

func (h *TaskHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := taskID(r)
	if err != nil {
		respond.Error(w, r, http.StatusUnprocessableEntity, err.Error())
		return
	}

	task, err := h.service.Get(r.Context(), id)
	if err != nil {
		h.handleErrors(w, r, err)
		return
	}
	respond.JSON(w, r, http.StatusOK, task)
}

func (h *TaskHandler) List(w http.ResponseWriter, r *http.Request) {
	tasks, err := h.service.List(r.Context())
	if err != nil {
		h.handleErrors(w, r, err)
		return
	}
	respond.JSON(w, r, http.StatusOK, tasks)
}

func (h *TaskHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := taskID(r)
	if err != nil {
		respond.Error(w, r, http.StatusUnprocessableEntity, err.Error())
		return
	}

	var req model.TaskUpdate
	if err := decodeJSON(r, &req); err != nil {
		respond.Error(w, r, http.StatusUnprocessableEntity, err.Error())
		return
	}

	task, err := h.service.Update(r.Context(), id, req)
	if err != nil {
		h.handleErrors(w, r, err)
		return
	}
	respond.JSON(w, r, http.StatusOK, task)
}

func (h *TaskHandler) Patch(w http.ResponseWriter, r *http.Request) {
	id, err := taskID(r)
	if err != nil {
		respond.Error(w, r, http.StatusUnprocessableEntity, err.Error())
		return
	}

	var req model.TaskPatch
	if err := decodeJSON(r, &req); err != nil {
		respond.Error(w, r, http.StatusUnprocessableEntity, err.Error())
		return
	}

	task, err := h.service.Patch(r.Context(), id, req)
	if err != nil {
		h.handleErrors(w, r, err)
		return
	}
	respond.JSON(w, r, http.StatusOK, task)
}

func (h *TaskHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := taskID(r)
	if err != nil {
		respond.Error(w, r, http.StatusUnprocessableEntity, err.Error())
		return
	}

	if err := h.service.Delete(r.Context(), id); err != nil {
		h.handleErrors(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *TaskHandler) Stats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.service.GetStats(r.Context())
	if err != nil {
		h.handleErrors(w, r, err)
		return
	}
	respond.JSON(w, r, http.StatusOK, stats)
}

func (h *TaskHandler) handleErrors(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, service.ErrNotFound):
		respond.Error(w, r, http.StatusNotFound, "Task not found")
	case errors.Is(err, service.ErrDuplicateTitle):
		respond.Error(w, r, http.StatusConflict, "Task with this title already exists")
	case errors.Is(err, service.ErrNoFieldsProvided):
		respond.Error(w, r, http.StatusBadRequest, "No fields provided to update")
	case errors.Is(err, service.ErrValidation):
		respond.Error(w, r, http.StatusUnprocessableEntity, err.Error())
	default:
		h.logger.Error("internal error",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Error(err),
		)
		respond.Error(w, r, http.StatusInternalServerError, "internal error")
	}
}

func taskID(r *http.Request) (int64, error) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		return 0, errInvalidID
	}
	return id, nil
}

func decodeJSON(r *http.Request, dst any) error {
	if r.Body == nil {
		return errEmptyBody
	}
	err := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes)).Decode(dst)
	if errors.Is(err, io.EOF) {
		return errEmptyBody
	}
	if err != nil {
		return fmt.Errorf("invalid json: %v", err)
	}
	return nil
}
