package handler

import (
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/rowanhale/chime/internal/auth"
	"github.com/rowanhale/chime/internal/storage"
)

const maxAudioBytes = 5 << 20

var audioContentTypes = map[string]bool{
	"audio/mpeg": true,
	"audio/mp4":  true,
	"audio/ogg":  true,
	"audio/wav":  true,
	"audio/webm": true,
}

type UploadHandler struct {
	storage *storage.Store
	logger  *slog.Logger
}

// NewUploadHandler creates the audio upload API. store is nil when object
// storage is not configured; uploads then report the feature as unavailable.
func NewUploadHandler(store *storage.Store, logger *slog.Logger) *UploadHandler {
	return &UploadHandler{storage: store, logger: logger}
}

// UploadAudio handles POST /api/uploads/audio with a multipart "audio" field.
// The returned URL is what the client saves as a custom notification sound or
// a reminder voice memo.
func (h *UploadHandler) UploadAudio(w http.ResponseWriter, r *http.Request) {
	if h.storage == nil {
		writeError(w, http.StatusServiceUnavailable, "uploads are not configured")
		return
	}

	userID := auth.UserID(r.Context())

	r.Body = http.MaxBytesReader(w, r.Body, maxAudioBytes)
	file, header, err := r.FormFile("audio")
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			writeError(w, http.StatusRequestEntityTooLarge, "audio file must be at most 5 MB")
			return
		}
		writeError(w, http.StatusBadRequest, "audio file is required")
		return
	}
	defer file.Close()

	contentType := header.Header.Get("Content-Type")
	if !audioContentTypes[contentType] {
		writeError(w, http.StatusBadRequest, "unsupported audio type")
		return
	}

	key, url, err := h.storage.UploadAudio(r.Context(), userID, header.Filename, contentType, file)
	if err != nil {
		h.logger.Error("upload audio", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to upload audio")
		return
	}

	writeJSON(w, http.StatusCreated, map[string]string{"key": key, "url": url})
}

// ServeAudio handles GET /api/audio/{key...} for buckets that are not
// publicly readable.
func (h *UploadHandler) ServeAudio(w http.ResponseWriter, r *http.Request) {
	if h.storage == nil {
		writeError(w, http.StatusServiceUnavailable, "uploads are not configured")
		return
	}

	key := r.PathValue("key")
	if key == "" {
		writeError(w, http.StatusBadRequest, "invalid key")
		return
	}

	body, contentType, err := h.storage.Download(r.Context(), key)
	if err != nil {
		h.logger.Error("download audio", "key", key, "error", err)
		writeError(w, http.StatusNotFound, "audio not found")
		return
	}
	defer body.Close()

	if contentType != "" {
		w.Header().Set("Content-Type", contentType)
	}
	w.Header().Set("Cache-Control", "private, max-age=86400")
	io.Copy(w, body)
}
