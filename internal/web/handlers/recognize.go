package handlers

import (
	"net/http"

	"github.com/sirupsen/logrus"
)

// RecognizeHandler handles recognition requests
type RecognizeHandler struct {
	svc Service
	log *logrus.Entry
}

// NewRecognizeHandler creates a new recognition handler
func NewRecognizeHandler(svc Service, log *logrus.Entry) *RecognizeHandler {
	return &RecognizeHandler{svc: svc, log: log}
}

// Recognize matches every face in the uploaded image against the gallery.
func (h *RecognizeHandler) Recognize(w http.ResponseWriter, r *http.Request) {
	data, err := readImage(w, r)
	if err != nil {
		respondServiceError(w, h.log, "recognition", err)
		return
	}

	result, err := h.svc.Recognize(r.Context(), data)
	if err != nil {
		respondServiceError(w, h.log, "recognition", err)
		return
	}
	respondJSON(w, http.StatusOK, result)
}
