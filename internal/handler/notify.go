package handler

import (
	"context"
	"crypto/subtle"
	"log/slog"
	"net/http"
	"strings"

	"github.com/rowanhale/chime/internal/push"
)

// sweeper runs one due-reminder sweep. *push.Sweeper is the real one.
type sweeper interface {
	Sweep(ctx context.Context) (*push.Result, error)
}

type NotifyHandler struct {
	sweeper sweeper
	token   string
	logger  *slog.Logger
}

// NewNotifyHandler creates the manual sweep trigger. When token is non-empty
// the endpoint requires it as a bearer token, which lets an external cron
// drive sweeps without a session.
func NewNotifyHandler(sw sweeper, token string, logger *slog.Logger) *NotifyHandler {
	return &NotifyHandler{sweeper: sw, token: token, logger: logger}
}

type checkResponse struct {
	Success   bool            `json:"success"`
	Processed int             `json:"processed"`
	Details   []push.Delivery `json:"details"`
}

// Check handles POST /api/notifications/check. It runs a full sweep
// synchronously and reports every delivery attempt.
func (h *NotifyHandler) Check(w http.ResponseWriter, r *http.Request) {
	if h.token != "" && !h.authorized(r) {
		writeError(w, http.StatusUnauthorized, "invalid sweep token")
		return
	}

	result, err := h.sweeper.Sweep(r.Context())
	if err != nil {
		h.logger.Error("sweep failed", "error", err)
		writeError(w, http.StatusInternalServerError, "sweep failed")
		return
	}

	writeJSON(w, http.StatusOK, checkResponse{
		Success:   true,
		Processed: result.Processed,
		Details:   result.Details,
	})
}

func (h *NotifyHandler) authorized(r *http.Request) bool {
	header := r.Header.Get("Authorization")
	presented, ok := strings.CutPrefix(header, "Bearer ")
	if !ok {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(presented), []byte(h.token)) == 1
}
