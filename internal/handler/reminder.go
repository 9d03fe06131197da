package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/rowanhale/chime/internal/auth"
	"github.com/rowanhale/chime/internal/model"
	"github.com/rowanhale/chime/internal/store"
	"github.com/rowanhale/chime/internal/websocket"
)

const (
	maxTitleLen       = 100
	maxDescriptionLen = 500
)

type ReminderHandler struct {
	reminderStore *store.ReminderStore
	categoryStore *store.CategoryStore
	hub           *websocket.Hub
	logger        *slog.Logger
}

func NewReminderHandler(rs *store.ReminderStore, cs *store.CategoryStore, hub *websocket.Hub, logger *slog.Logger) *ReminderHandler {
	return &ReminderHandler{reminderStore: rs, categoryStore: cs, hub: hub, logger: logger}
}

func (h *ReminderHandler) broadcast(userID int64, msg websocket.Message) {
	if h.hub != nil {
		h.hub.BroadcastToUser(userID, msg)
	}
}

type reminderRequest struct {
	Title       string     `json:"title"`
	Description string     `json:"description"`
	DueDate     *time.Time `json:"due_date"`
	CategoryID  *int64     `json:"category_id"`
	Priority    string     `json:"priority"`
	RepeatRule  *string    `json:"repeat_rule"`
	AudioURL    *string    `json:"audio_url"`
}

func validPriority(p string) bool {
	switch p {
	case model.PriorityNone, model.PriorityLow, model.PriorityMedium, model.PriorityHigh:
		return true
	}
	return false
}

// validate normalizes the request in place and returns a client-facing error
// message, or "" when the request is acceptable.
func (h *ReminderHandler) validate(userID int64, req *reminderRequest) (string, error) {
	req.Title = strings.TrimSpace(req.Title)
	if req.Title == "" {
		return "title is required", nil
	}
	if len(req.Title) > maxTitleLen {
		return "title must be at most 100 characters", nil
	}
	if len(req.Description) > maxDescriptionLen {
		return "description must be at most 500 characters", nil
	}
	if req.Priority == "" {
		req.Priority = model.PriorityNone
	}
	if !validPriority(req.Priority) {
		return "priority must be one of none, low, medium, high", nil
	}
	if req.CategoryID != nil {
		cat, err := h.categoryStore.GetByID(*req.CategoryID, userID)
		if err != nil {
			return "", err
		}
		if cat == nil {
			return "category not found", nil
		}
	}
	return "", nil
}

// Create handles POST /api/reminders
func (h *ReminderHandler) Create(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserID(r.Context())

	var req reminderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	msg, err := h.validate(userID, &req)
	if err != nil {
		h.logger.Error("validate reminder", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to create reminder")
		return
	}
	if msg != "" {
		writeError(w, http.StatusBadRequest, msg)
		return
	}

	reminder, err := h.reminderStore.Create(userID, req.Title, req.Description, req.DueDate, req.CategoryID, req.Priority, req.RepeatRule, req.AudioURL)
	if err != nil {
		h.logger.Error("create reminder", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to create reminder")
		return
	}

	h.broadcast(userID, websocket.NewMessage("reminder", "created", reminder.ID, nil))

	writeJSON(w, http.StatusCreated, reminder)
}

// List handles GET /api/reminders
func (h *ReminderHandler) List(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserID(r.Context())

	opts := store.ListOptions{
		Query:  strings.TrimSpace(r.URL.Query().Get("q")),
		Status: r.URL.Query().Get("status"),
	}
	switch opts.Status {
	case "", "pending", "completed", "scheduled":
	default:
		writeError(w, http.StatusBadRequest, "status must be pending, completed, or scheduled")
		return
	}
	if raw := r.URL.Query().Get("category_id"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid category_id")
			return
		}
		opts.CategoryID = &id
	}

	reminders, err := h.reminderStore.List(userID, opts)
	if err != nil {
		h.logger.Error("list reminders", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to list reminders")
		return
	}
	if reminders == nil {
		reminders = []model.Reminder{}
	}
	writeJSON(w, http.StatusOK, reminders)
}

// Get handles GET /api/reminders/{id}
func (h *ReminderHandler) Get(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserID(r.Context())

	id, err := parseIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}

	reminder, err := h.reminderStore.GetByID(id, userID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to get reminder")
		return
	}
	if reminder == nil {
		writeError(w, http.StatusNotFound, "reminder not found")
		return
	}
	writeJSON(w, http.StatusOK, reminder)
}

// Update handles PUT /api/reminders/{id}
func (h *ReminderHandler) Update(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserID(r.Context())

	id, err := parseIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}

	existing, err := h.reminderStore.GetByID(id, userID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to get reminder")
		return
	}
	if existing == nil {
		writeError(w, http.StatusNotFound, "reminder not found")
		return
	}

	var req reminderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	msg, err := h.validate(userID, &req)
	if err != nil {
		h.logger.Error("validate reminder", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to update reminder")
		return
	}
	if msg != "" {
		writeError(w, http.StatusBadRequest, msg)
		return
	}

	reminder, err := h.reminderStore.Update(id, userID, req.Title, req.Description, req.DueDate, req.CategoryID, req.Priority, req.RepeatRule, req.AudioURL)
	if err != nil {
		h.logger.Error("update reminder", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to update reminder")
		return
	}

	h.broadcast(userID, websocket.NewMessage("reminder", "updated", id, nil))

	writeJSON(w, http.StatusOK, reminder)
}

type completeRequest struct {
	Completed bool `json:"completed"`
}

// SetCompleted handles PATCH /api/reminders/{id}/complete. Reopening a
// completed reminder clears its notified flag so a still-due date fires
// again on the next sweep.
func (h *ReminderHandler) SetCompleted(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserID(r.Context())

	id, err := parseIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}

	var req completeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	reminder, err := h.reminderStore.SetCompleted(id, userID, req.Completed)
	if err != nil {
		h.logger.Error("set reminder completion", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to update reminder")
		return
	}
	if reminder == nil {
		writeError(w, http.StatusNotFound, "reminder not found")
		return
	}

	action := "reopened"
	if req.Completed {
		action = "completed"
	}
	h.broadcast(userID, websocket.NewMessage("reminder", action, id, nil))

	writeJSON(w, http.StatusOK, reminder)
}

// Delete handles DELETE /api/reminders/{id}
func (h *ReminderHandler) Delete(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserID(r.Context())

	id, err := parseIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}

	existing, err := h.reminderStore.GetByID(id, userID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to get reminder")
		return
	}
	if existing == nil {
		writeError(w, http.StatusNotFound, "reminder not found")
		return
	}

	if err := h.reminderStore.Delete(id, userID); err != nil {
		h.logger.Error("delete reminder", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to delete reminder")
		return
	}

	h.broadcast(userID, websocket.NewMessage("reminder", "deleted", id, nil))

	w.WriteHeader(http.StatusNoContent)
}
