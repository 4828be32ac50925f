package handler

import (
	"net/http"
	"net/url"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/celiaho/HocusFocusToDo/internal/model"
	"github.com/celiaho/HocusFocusToDo/internal/service"
)

// DocumentHandler handles HTTP requests for documents and their shares.
type DocumentHandler struct {
	service *service.DocumentService
}

// NewDocumentHandler creates a new DocumentHandler.
func NewDocumentHandler(svc *service.DocumentService) *DocumentHandler {
	return &DocumentHandler{service: svc}
}

// HandleList handles GET /documents requests.
func (h *DocumentHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	id, ok := identity(w, r)
	if !ok {
		return
	}

	q, err := parseListQuery(r.URL.Query())
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	resp, err := h.service.List(r.Context(), id, q)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, resp)
}

// HandleCreate handles POST /documents requests.
func (h *DocumentHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	id, ok := identity(w, r)
	if !ok {
		return
	}

	var req model.DocumentRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	resp, err := h.service.Create(r.Context(), id, req)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, resp)
}

// HandleGet handles GET /documents/{id} requests.
func (h *DocumentHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	id, ok := identity(w, r)
	if !ok {
		return
	}

	resp, err := h.service.Get(r.Context(), id, chi.URLParam(r, "id"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, resp)
}

// HandleUpdate handles PUT /documents/{id} requests.
func (h *DocumentHandler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	id, ok := identity(w, r)
	if !ok {
		return
	}

	docID := chi.URLParam(r, "id")
	if err := h.service.Authorize(r.Context(), id, docID, service.ActionUpdate); err != nil {
		writeServiceError(w, r, err)
		return
	}

	var req model.DocumentRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	resp, err := h.service.Update(r.Context(), id, docID, req)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, resp)
}

// HandleDelete handles DELETE /documents/{id} requests.
func (h *DocumentHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	id, ok := identity(w, r)
	if !ok {
		return
	}

	if err := h.service.Delete(r.Context(), id, chi.URLParam(r, "id")); err != nil {
		writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, messageResponse("document deleted"))
}

// HandleShares handles GET /documents/{id}/shares requests.
func (h *DocumentHandler) HandleShares(w http.ResponseWriter, r *http.Request) {
	id, ok := identity(w, r)
	if !ok {
		return
	}

	resp, err := h.service.Shares(r.Context(), id, chi.URLParam(r, "id"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, resp)
}

// HandleShare handles PUT /documents/{id}/shares/{userId} requests.
func (h *DocumentHandler) HandleShare(w http.ResponseWriter, r *http.Request) {
	id, ok := identity(w, r)
	if !ok {
		return
	}

	resp, err := h.service.Share(r.Context(), id, chi.URLParam(r, "id"), chi.URLParam(r, "userId"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, resp)
}

// HandleUnshare handles DELETE /documents/{id}/shares/{userId} requests.
func (h *DocumentHandler) HandleUnshare(w http.ResponseWriter, r *http.Request) {
	id, ok := identity(w, r)
	if !ok {
		return
	}

	resp, err := h.service.Unshare(r.Context(), id, chi.URLParam(r, "id"), chi.URLParam(r, "userId"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, resp)
}

// HandleCollaborators handles GET /documents/{id}/collaborators requests.
func (h *DocumentHandler) HandleCollaborators(w http.ResponseWriter, r *http.Request) {
	id, ok := identity(w, r)
	if !ok {
		return
	}

	resp, err := h.service.Collaborators(r.Context(), id, chi.URLParam(r, "id"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, resp)
}

// parseListQuery reads the listing parameters. Absent values keep their
// defaults: every document, newest modification first.
func parseListQuery(v url.Values) (model.DocumentQuery, error) {
	q := model.DocumentQuery{
		Scope:      model.DocumentScope(v.Get("scope")),
		SortBy:     model.DocumentSort(v.Get("sort_by")),
		Descending: true,
	}

	switch v.Get("order") {
	case "", "desc":
	case "asc":
		q.Descending = false
	default:
		return q, model.NewValidationError("order", "must be asc or desc")
	}

	var err error
	if q.Page, err = intParam(v, "page"); err != nil {
		return q, err
	}
	if q.Limit, err = intParam(v, "limit"); err != nil {
		return q, err
	}
	return q, nil
}

// intParam parses an optional positive integer; absent yields 0.
func intParam(v url.Values, key string) (int, error) {
	raw := v.Get(key)
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 {
		return 0, model.NewValidationError(key, "must be a positive integer")
	}
	return n, nil
}
