package handlers

import (
	"io"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/sparkride/apiserver/internal/services"
)

// UploadsHandler streams stored bike images back to clients.
type UploadsHandler struct {
	images *services.ImageService
}

func NewUploadsHandler(images *services.ImageService) *UploadsHandler {
	return &UploadsHandler{images: images}
}

// UploadsRouter registers the public image-serving route.
func UploadsRouter(r chi.Router, images *services.ImageService) {
	handler := NewUploadsHandler(images)
	r.Get("/{key}", handler.ServeImage)
}

func (h *UploadsHandler) ServeImage(w http.ResponseWriter, r *http.Request) {
	key := strings.TrimSpace(chi.URLParam(r, "key"))
	if key == "" || strings.Contains(key, "/") {
		writeError(w, http.StatusBadRequest, "invalid image key")
		return
	}

	if !h.images.Enabled() {
		writeError(w, http.StatusNotFound, "image not found")
		return
	}

	reader, contentType, err := h.images.Open(r.Context(), key)
	if err != nil {
		writeError(w, http.StatusNotFound, "image not found")
		return
	}
	defer reader.Close()

	w.Header().Set("Content-Type", contentType)
	w.WriteHeader(http.StatusOK)
	_, _ = io.Copy(w, reader)
}
