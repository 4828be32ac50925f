package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/celiaho/HocusFocusToDo/internal/model"
	"github.com/celiaho/HocusFocusToDo/internal/service"
)

// TaskHandler handles HTTP requests for the task board of a document.
type TaskHandler struct {
	service *service.TaskService
}

// NewTaskHandler creates a new TaskHandler.
func NewTaskHandler(svc *service.TaskService) *TaskHandler {
	return &TaskHandler{service: svc}
}

// HandleBoard handles GET /documents/{id}/tasks requests.
func (h *TaskHandler) HandleBoard(w http.ResponseWriter, r *http.Request) {
	id, ok := identity(w, r)
	if !ok {
		return
	}

	board, err := h.service.Board(r.Context(), id, chi.URLParam(r, "id"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, board)
}

// HandleReplaceBoard handles PUT /documents/{id}/tasks requests.
func (h *TaskHandler) HandleReplaceBoard(w http.ResponseWriter, r *http.Request) {
	id, ok := identity(w, r)
	if !ok {
		return
	}

	docID := chi.URLParam(r, "id")
	if err := h.service.Authorize(r.Context(), id, docID); err != nil {
		writeServiceError(w, r, err)
		return
	}

	var board model.TaskBoard
	if !decodeJSON(w, r, &board) {
		return
	}

	resp, err := h.service.ReplaceBoard(r.Context(), id, docID, board)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, resp)
}

// HandleAdd handles POST /documents/{id}/tasks requests.
func (h *TaskHandler) HandleAdd(w http.ResponseWriter, r *http.Request) {
	id, ok := identity(w, r)
	if !ok {
		return
	}

	docID := chi.URLParam(r, "id")
	if err := h.service.Authorize(r.Context(), id, docID); err != nil {
		writeServiceError(w, r, err)
		return
	}

	var req model.TaskRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	task, err := h.service.AddTask(r.Context(), id, docID, req)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, taskResponse(task))
}

// HandleUpdate handles PATCH /documents/{id}/tasks/{taskId} requests.
func (h *TaskHandler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	id, ok := identity(w, r)
	if !ok {
		return
	}

	docID := chi.URLParam(r, "id")
	if err := h.service.Authorize(r.Context(), id, docID); err != nil {
		writeServiceError(w, r, err)
		return
	}

	var req model.TaskUpdateRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	task, err := h.service.UpdateTask(r.Context(), id, docID, chi.URLParam(r, "taskId"), req)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, taskResponse(task))
}

// HandleDelete handles DELETE /documents/{id}/tasks/{taskId} requests.
func (h *TaskHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	id, ok := identity(w, r)
	if !ok {
		return
	}

	if err := h.service.DeleteTask(r.Context(), id, chi.URLParam(r, "id"), chi.URLParam(r, "taskId")); err != nil {
		writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, messageResponse("task deleted"))
}

// taskWithQuadrant is a task together with the quadrant it sits in.
type taskWithQuadrant struct {
	model.Task
	Quadrant model.Quadrant `json:"quadrant"`
}

func taskResponse(t model.Task) taskWithQuadrant {
	return taskWithQuadrant{Task: t, Quadrant: t.Quadrant}
}
