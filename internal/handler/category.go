package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"regexp"
	"strings"

	"github.com/rowanhale/chime/internal/auth"
	"github.com/rowanhale/chime/internal/model"
	"github.com/rowanhale/chime/internal/store"
)

const maxCategoryNameLen = 50

var hexColorRe = regexp.MustCompile(`^#([0-9a-fA-F]{3}|[0-9a-fA-F]{6})$`)

type CategoryHandler struct {
	categoryStore *store.CategoryStore
	logger        *slog.Logger
}

func NewCategoryHandler(cs *store.CategoryStore, logger *slog.Logger) *CategoryHandler {
	return &CategoryHandler{categoryStore: cs, logger: logger}
}

type categoryRequest struct {
	Name  string `json:"name"`
	Color string `json:"color"`
}

// Create handles POST /api/categories
func (h *CategoryHandler) Create(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserID(r.Context())

	var req categoryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		writeError(w, http.StatusBadRequest, "name is required")
		return
	}
	if len(req.Name) > maxCategoryNameLen {
		writeError(w, http.StatusBadRequest, "name must be at most 50 characters")
		return
	}
	if req.Color == "" {
		req.Color = "#6b7280"
	}
	if !hexColorRe.MatchString(req.Color) {
		writeError(w, http.StatusBadRequest, "color must be a hex value like #3b82f6")
		return
	}

	cat, err := h.categoryStore.Create(userID, req.Name, req.Color)
	if err != nil {
		h.logger.Error("create category", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to create category")
		return
	}

	writeJSON(w, http.StatusCreated, cat)
}

// List handles GET /api/categories
func (h *CategoryHandler) List(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserID(r.Context())

	cats, err := h.categoryStore.List(userID)
	if err != nil {
		h.logger.Error("list categories", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to list categories")
		return
	}
	if cats == nil {
		cats = []model.Category{}
	}
	writeJSON(w, http.StatusOK, cats)
}

// Delete handles DELETE /api/categories/{id}. Reminders in the category keep
// existing; their category_id is nulled by the schema.
func (h *CategoryHandler) Delete(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserID(r.Context())

	id, err := parseIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}

	existing, err := h.categoryStore.GetByID(id, userID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to get category")
		return
	}
	if existing == nil {
		writeError(w, http.StatusNotFound, "category not found")
		return
	}

	if err := h.categoryStore.Delete(id, userID); err != nil {
		h.logger.Error("delete category", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to delete category")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
