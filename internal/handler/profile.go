package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"github.com/rowanhale/chime/internal/auth"
	"github.com/rowanhale/chime/internal/push"
	"github.com/rowanhale/chime/internal/store"
)

const (
	minDisplayNameLen = 2
	maxDisplayNameLen = 50
	maxSoundLen       = 500
)

type ProfileHandler struct {
	profileStore *store.ProfileStore
	logger       *slog.Logger
}

func NewProfileHandler(ps *store.ProfileStore, logger *slog.Logger) *ProfileHandler {
	return &ProfileHandler{profileStore: ps, logger: logger}
}

// Get handles GET /api/profile. A user who registered before profiles
// existed gets one created on first read.
func (h *ProfileHandler) Get(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserID(r.Context())

	profile, err := h.profileStore.GetByUserID(userID)
	if err != nil {
		h.logger.Error("get profile", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to get profile")
		return
	}
	if profile == nil {
		profile, err = h.profileStore.Create(userID, "")
		if err != nil {
			h.logger.Error("create profile", "error", err)
			writeError(w, http.StatusInternalServerError, "failed to get profile")
			return
		}
	}
	writeJSON(w, http.StatusOK, profile)
}

type displayNameRequest struct {
	DisplayName string `json:"display_name"`
}

// UpdateDisplayName handles PUT /api/profile/display-name
func (h *ProfileHandler) UpdateDisplayName(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserID(r.Context())

	var req displayNameRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	req.DisplayName = strings.TrimSpace(req.DisplayName)
	if len(req.DisplayName) < minDisplayNameLen || len(req.DisplayName) > maxDisplayNameLen {
		writeError(w, http.StatusBadRequest, "display name must be 2 to 50 characters")
		return
	}

	profile, err := h.profileStore.UpdateDisplayName(userID, req.DisplayName)
	if err != nil {
		h.logger.Error("update display name", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to update profile")
		return
	}
	writeJSON(w, http.StatusOK, profile)
}

type soundRequest struct {
	Sound           string  `json:"sound"`
	CustomSoundName *string `json:"custom_sound_name"`
}

// UpdateSound handles PUT /api/profile/sound. Sound is either a builtin
// identifier or the URL of an uploaded clip; an empty value resets to the
// default sound.
func (h *ProfileHandler) UpdateSound(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserID(r.Context())

	var req soundRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	req.Sound = strings.TrimSpace(req.Sound)
	if req.Sound == "" {
		req.Sound = push.DefaultSound
	}
	if len(req.Sound) > maxSoundLen {
		writeError(w, http.StatusBadRequest, "sound is too long")
		return
	}

	profile, err := h.profileStore.UpdateNotificationSound(userID, req.Sound, req.CustomSoundName)
	if err != nil {
		h.logger.Error("update notification sound", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to update profile")
		return
	}
	writeJSON(w, http.StatusOK, profile)
}
