// Package handlers implements the HTTP endpoints of the face gallery API.
package handlers

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/kozaktomas/face-gallery/internal/facematch"
	"github.com/kozaktomas/face-gallery/internal/gallery"
	"github.com/kozaktomas/face-gallery/internal/imaging"
	"github.com/kozaktomas/face-gallery/internal/recognition"
	"github.com/kozaktomas/face-gallery/internal/storage"
)

// errInvalidRequestBody is a shared error message for invalid JSON request bodies.
const errInvalidRequestBody = "invalid request body"

// MaxUploadBytes bounds every image upload.
const MaxUploadBytes = 32 << 20

var errNoImage = errors.New("no image in request")

// Service is the recognition backend the handlers call.
type Service interface {
	Recognize(ctx context.Context, imageData []byte) (*recognition.Recognition, error)
	Identities() ([]recognition.IdentityInfo, error)
	CreateIdentity(label string) (string, error)
	DeleteIdentity(ctx context.Context, label string) (*gallery.RebuildReport, error)
	Enroll(ctx context.Context, label string, imageData []byte) (*recognition.EnrollResult, error)
	ImagePath(label, file string) (string, error)
	Stats(ctx context.Context) (*recognition.Stats, error)
	Rebuild(ctx context.Context, opts ...gallery.RebuildOption) (*gallery.RebuildReport, error)
}

// sanitizeForLog removes newlines and carriage returns to prevent log injection.
func sanitizeForLog(s string) string {
	return strings.NewReplacer("\n", "", "\r", "").Replace(s)
}

// respondJSON sends a JSON response.
func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		json.NewEncoder(w).Encode(data)
	}
}

// respondError sends an error response.
func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}

// errorStatus maps service errors to HTTP status codes.
func errorStatus(err error) int {
	switch {
	case errors.Is(err, storage.ErrIdentityNotFound), errors.Is(err, storage.ErrImageNotFound):
		return http.StatusNotFound
	case errors.Is(err, storage.ErrIdentityExists), errors.Is(err, recognition.ErrDuplicateImage):
		return http.StatusConflict
	case errors.Is(err, recognition.ErrNoFace), errors.Is(err, facematch.ErrFaceTooSmall),
		errors.Is(err, facematch.ErrRollTooLarge):
		return http.StatusUnprocessableEntity
	case errors.Is(err, errNoImage), errors.Is(err, facematch.ErrInvalidLabel),
		errors.Is(err, imaging.ErrEmptyImage), errors.Is(err, imaging.ErrInvalidImage):
		return http.StatusBadRequest
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return http.StatusServiceUnavailable
	}
	var maxErr *http.MaxBytesError
	if errors.As(err, &maxErr) {
		return http.StatusRequestEntityTooLarge
	}
	return http.StatusInternalServerError
}

// respondServiceError replies with the mapped status. Server-side failures are
// logged and their details hidden from the client.
func respondServiceError(w http.ResponseWriter, log *logrus.Entry, action string, err error) {
	status := errorStatus(err)
	if status >= http.StatusInternalServerError && status != http.StatusServiceUnavailable {
		log.WithError(err).Errorf("%s failed", action)
		respondError(w, status, action+" failed")
		return
	}
	respondError(w, status, err.Error())
}

type imagePayload struct {
	Image string `json:"image"`
}

// readImage extracts the uploaded image from a multipart "image" field or a
// JSON body {"image": "<base64 or data URL>"}.
func readImage(w http.ResponseWriter, r *http.Request) ([]byte, error) {
	r.Body = http.MaxBytesReader(w, r.Body, MaxUploadBytes)

	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
		if err := r.ParseMultipartForm(MaxUploadBytes); err != nil {
			var maxErr *http.MaxBytesError
			if errors.As(err, &maxErr) {
				return nil, err
			}
			return nil, fmt.Errorf("%w: %v", errNoImage, err)
		}
		file, _, err := r.FormFile("image")
		if err != nil {
			return nil, fmt.Errorf("%w: missing form field \"image\"", errNoImage)
		}
		defer file.Close()
		data, err := io.ReadAll(file)
		if err != nil {
			return nil, fmt.Errorf("reading upload: %w", err)
		}
		if len(data) == 0 {
			return nil, fmt.Errorf("%w: empty file", errNoImage)
		}
		return data, nil
	}

	var payload imagePayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %s", errNoImage, errInvalidRequestBody)
	}
	return decodeBase64Image(payload.Image)
}

// decodeBase64Image accepts raw base64 or a data URL.
func decodeBase64Image(s string) ([]byte, error) {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "data:") {
		idx := strings.Index(s, ",")
		if idx < 0 || !strings.Contains(s[:idx], ";base64") {
			return nil, fmt.Errorf("%w: data URL is not base64 encoded", errNoImage)
		}
		s = s[idx+1:]
	}
	if s == "" {
		return nil, fmt.Errorf("%w: empty image", errNoImage)
	}
	data, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid base64: %v", errNoImage, err)
	}
	return data, nil
}

// HealthCheck handles the health check endpoint.
func HealthCheck(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{
		"status": "ok",
	})
}
