package handler

import (
	"log/slog"
	"net/http"

	"github.com/subdivision/pot-server/internal/objectstore"
)

// maxImageBytes caps a single pot image upload.
const maxImageBytes = 10 << 20

// ImageHandler accepts pot image uploads and stores them in the object
// store. The returned key goes into the pot's imageUrl field on create or
// update, where it is swapped for a signed URL on every read.
type ImageHandler struct {
	store  objectstore.Store
	logger *slog.Logger
}

func NewImageHandler(store objectstore.Store, logger *slog.Logger) *ImageHandler {
	return &ImageHandler{store: store, logger: logger}
}

// HandleUpload stores one image from a multipart form field named "image".
//
// HTTP: POST /api/images/upload (RequireAuth)
func (h *ImageHandler) HandleUpload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxImageBytes)
	if err := r.ParseMultipartForm(maxImageBytes); err != nil {
		http.Error(w, "Invalid multipart form", http.StatusBadRequest)
		return
	}

	file, header, err := r.FormFile("image")
	if err != nil {
		http.Error(w, "Missing image field", http.StatusBadRequest)
		return
	}
	defer file.Close()

	contentType := header.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	key, err := h.store.Upload(r.Context(), file, contentType)
	if err != nil {
		h.logger.Error("Image upload failed", "filename", header.Filename, "error", err)
		writeError(w, err)
		return
	}

	h.logger.Info("Image uploaded", "key", key, "size", header.Size)
	writeJSON(w, http.StatusCreated, map[string]string{"imageKey": key})
}
