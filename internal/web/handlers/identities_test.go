package handlers

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/kozaktomas/face-gallery/internal/facematch"
	"github.com/kozaktomas/face-gallery/internal/gallery"
	"github.com/kozaktomas/face-gallery/internal/recognition"
	"github.com/kozaktomas/face-gallery/internal/storage"
)

func TestIdentities_List(t *testing.T) {
	svc := &fakeService{identities: []recognition.IdentityInfo{
		{Identity: storage.Identity{Name: "Alice", Images: 2, Preview: "Alice/a.jpg"}, Representatives: 1, InGallery: true},
		{Identity: storage.Identity{Name: "Bob"}},
	}}
	h := NewIdentitiesHandler(svc, testLogger())

	recorder := httptest.NewRecorder()
	h.List(recorder, httptest.NewRequest(http.MethodGet, "/api/v1/identities", nil))

	if recorder.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", recorder.Code)
	}
	var got struct {
		Identities []map[string]any `json:"identities"`
		Count      int              `json:"count"`
	}
	if err := json.Unmarshal(recorder.Body.Bytes(), &got); err != nil {
		t.Fatal(err)
	}
	if got.Count != 2 || got.Identities[0]["name"] != "Alice" || got.Identities[0]["in_gallery"] != true {
		t.Errorf("unexpected response %s", recorder.Body.String())
	}
}

func TestIdentities_Create(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		err        error
		wantStatus int
	}{
		{"created", `{"name": "Alice"}`, nil, http.StatusCreated},
		{"exists", `{"name": "Alice"}`, storage.ErrIdentityExists, http.StatusConflict},
		{"invalid label", `{"name": "unknown"}`, facematch.ErrInvalidLabel, http.StatusBadRequest},
		{"bad body", `{"name": `, nil, http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewIdentitiesHandler(&fakeService{err: tt.err}, testLogger())
			recorder := httptest.NewRecorder()
			h.Create(recorder, httptest.NewRequest(http.MethodPost, "/api/v1/identities", bytes.NewBufferString(tt.body)))

			if recorder.Code != tt.wantStatus {
				t.Errorf("expected %d, got %d: %s", tt.wantStatus, recorder.Code, recorder.Body.String())
			}
		})
	}
}

func TestIdentities_Delete(t *testing.T) {
	svc := &fakeService{report: &gallery.RebuildReport{Size: 4, Backend: "linear"}}
	h := NewIdentitiesHandler(svc, testLogger())

	req := requestWithChiParams(httptest.NewRequest(http.MethodDelete, "/api/v1/identities/Bob", nil),
		map[string]string{"name": "Bob"})
	recorder := httptest.NewRecorder()
	h.Delete(recorder, req)

	if recorder.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", recorder.Code)
	}
	if svc.gotLabel != "Bob" {
		t.Errorf("service received label %q", svc.gotLabel)
	}
	var got DeleteIdentityResponse
	if err := json.Unmarshal(recorder.Body.Bytes(), &got); err != nil {
		t.Fatal(err)
	}
	if got.Deleted != "Bob" || got.Rebuild == nil || got.Rebuild.Size != 4 {
		t.Errorf("unexpected response %+v", got)
	}
}

func TestIdentities_DeleteMissing(t *testing.T) {
	h := NewIdentitiesHandler(&fakeService{err: fmt.Errorf("%w: Zed", storage.ErrIdentityNotFound)}, testLogger())
	req := requestWithChiParams(httptest.NewRequest(http.MethodDelete, "/", nil), map[string]string{"name": "Zed"})
	recorder := httptest.NewRecorder()
	h.Delete(recorder, req)

	if recorder.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", recorder.Code)
	}
}

func TestIdentities_AddImage(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
	}{
		{"enrolled", nil, http.StatusCreated},
		{"no face", recognition.ErrNoFace, http.StatusUnprocessableEntity},
		{"face too small", fmt.Errorf("%w: 40x40", facematch.ErrFaceTooSmall), http.StatusUnprocessableEntity},
		{"duplicate", recognition.ErrDuplicateImage, http.StatusConflict},
		{"missing identity", storage.ErrIdentityNotFound, http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &fakeService{
				err:    tt.err,
				enroll: &recognition.EnrollResult{Identity: "Alice", Image: "x.jpg", Faces: 1},
			}
			h := NewIdentitiesHandler(svc, testLogger())
			req := requestWithChiParams(multipartRequest(t, "/api/v1/identities/Alice/images", "image", []byte("img")),
				map[string]string{"name": "Alice"})
			recorder := httptest.NewRecorder()
			h.AddImage(recorder, req)

			if recorder.Code != tt.wantStatus {
				t.Errorf("expected %d, got %d: %s", tt.wantStatus, recorder.Code, recorder.Body.String())
			}
			if svc.gotLabel != "Alice" || string(svc.gotImage) != "img" {
				t.Errorf("service received (%q, %q)", svc.gotLabel, svc.gotImage)
			}
		})
	}
}

func TestIdentities_GetImage(t *testing.T) {
	path := filepath.Join(t.TempDir(), "a.jpg")
	if err := os.WriteFile(path, []byte("\xff\xd8\xffjpeg"), 0o644); err != nil {
		t.Fatal(err)
	}
	svc := &fakeService{imagePath: path}
	h := NewIdentitiesHandler(svc, testLogger())

	req := requestWithChiParams(httptest.NewRequest(http.MethodGet, "/api/v1/identities/Alice/images/a.jpg", nil),
		map[string]string{"name": "Alice", "file": "a.jpg"})
	recorder := httptest.NewRecorder()
	h.GetImage(recorder, req)

	if recorder.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", recorder.Code)
	}
	if svc.gotFile != "a.jpg" {
		t.Errorf("service received file %q", svc.gotFile)
	}
	if ct := recorder.Header().Get("Content-Type"); ct != "image/jpeg" {
		t.Errorf("expected image/jpeg, got %q", ct)
	}
}

func TestIdentities_GetImageMissing(t *testing.T) {
	h := NewIdentitiesHandler(&fakeService{err: storage.ErrImageNotFound}, testLogger())
	req := requestWithChiParams(httptest.NewRequest(http.MethodGet, "/", nil),
		map[string]string{"name": "Alice", "file": "../etc/passwd"})
	recorder := httptest.NewRecorder()
	h.GetImage(recorder, req)

	if recorder.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", recorder.Code)
	}
}
