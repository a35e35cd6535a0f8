package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/sirupsen/logrus"

	"github.com/kozaktomas/face-gallery/internal/gallery"
	"github.com/kozaktomas/face-gallery/internal/recognition"
)

// IdentitiesHandler handles identity management endpoints
type IdentitiesHandler struct {
	svc Service
	log *logrus.Entry
}

// NewIdentitiesHandler creates a new identities handler
func NewIdentitiesHandler(svc Service, log *logrus.Entry) *IdentitiesHandler {
	return &IdentitiesHandler{svc: svc, log: log}
}

// IdentitiesResponse lists the stored identities.
type IdentitiesResponse struct {
	Identities []recognition.IdentityInfo `json:"identities"`
	Count      int                        `json:"count"`
}

// CreateIdentityRequest is the body of POST /identities.
type CreateIdentityRequest struct {
	Name string `json:"name"`
}

// DeleteIdentityResponse reports a deletion and the rebuild that followed.
type DeleteIdentityResponse struct {
	Deleted string                 `json:"deleted"`
	Rebuild *gallery.RebuildReport `json:"rebuild"`
}

// List returns all identities with their gallery state.
func (h *IdentitiesHandler) List(w http.ResponseWriter, r *http.Request) {
	ids, err := h.svc.Identities()
	if err != nil {
		respondServiceError(w, h.log, "listing identities", err)
		return
	}
	respondJSON(w, http.StatusOK, IdentitiesResponse{Identities: ids, Count: len(ids)})
}

// Create adds an empty identity.
func (h *IdentitiesHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req CreateIdentityRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, errInvalidRequestBody)
		return
	}

	name, err := h.svc.CreateIdentity(req.Name)
	if err != nil {
		respondServiceError(w, h.log, "creating identity", err)
		return
	}
	h.log.WithField("identity", sanitizeForLog(name)).Info("Identity created")
	respondJSON(w, http.StatusCreated, map[string]string{"name": name})
}

// Delete removes an identity and all of its images.
func (h *IdentitiesHandler) Delete(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")

	report, err := h.svc.DeleteIdentity(r.Context(), name)
	if err != nil {
		respondServiceError(w, h.log, "deleting identity", err)
		return
	}
	h.log.WithField("identity", sanitizeForLog(name)).Info("Identity deleted")
	respondJSON(w, http.StatusOK, DeleteIdentityResponse{Deleted: name, Rebuild: report})
}

// AddImage enrolls one image into an existing identity.
func (h *IdentitiesHandler) AddImage(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")

	data, err := readImage(w, r)
	if err != nil {
		respondServiceError(w, h.log, "enrollment", err)
		return
	}

	result, err := h.svc.Enroll(r.Context(), name, data)
	if err != nil {
		respondServiceError(w, h.log, "enrollment", err)
		return
	}
	respondJSON(w, http.StatusCreated, result)
}

// GetImage serves a stored image file.
func (h *IdentitiesHandler) GetImage(w http.ResponseWriter, r *http.Request) {
	path, err := h.svc.ImagePath(chi.URLParam(r, "name"), chi.URLParam(r, "file"))
	if err != nil {
		respondServiceError(w, h.log, "reading image", err)
		return
	}
	w.Header().Set("Cache-Control", "private, max-age=3600")
	http.ServeFile(w, r, path)
}
