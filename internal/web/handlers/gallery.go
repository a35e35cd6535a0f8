package handlers

import (
	"net/http"

	"github.com/sirupsen/logrus"
)

// GalleryHandler handles gallery inspection and maintenance
type GalleryHandler struct {
	svc Service
	log *logrus.Entry
}

// NewGalleryHandler creates a new gallery handler
func NewGalleryHandler(svc Service, log *logrus.Entry) *GalleryHandler {
	return &GalleryHandler{svc: svc, log: log}
}

// Stats returns gallery, storage and cache statistics.
func (h *GalleryHandler) Stats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.svc.Stats(r.Context())
	if err != nil {
		respondServiceError(w, h.log, "reading gallery stats", err)
		return
	}
	respondJSON(w, http.StatusOK, stats)
}

// Rebuild reloads every stored identity and rebuilds the gallery.
func (h *GalleryHandler) Rebuild(w http.ResponseWriter, r *http.Request) {
	report, err := h.svc.Rebuild(r.Context())
	if err != nil {
		respondServiceError(w, h.log, "gallery rebuild", err)
		return
	}
	respondJSON(w, http.StatusOK, report)
}
