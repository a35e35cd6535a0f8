package handlers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/kozaktomas/face-gallery/internal/matcher"
	"github.com/kozaktomas/face-gallery/internal/recognition"
)

func TestRecognize_Multipart(t *testing.T) {
	svc := &fakeService{recognition: &recognition.Recognition{
		Faces: []recognition.FaceResult{
			{Name: "Alice", Distance: 0.2, Confidence: 0.8, Decision: matcher.DecisionDirect, BBox: []float64{1, 2, 3, 4}},
		},
		GallerySize: 3,
	}}
	h := NewRecognizeHandler(svc, testLogger())

	recorder := httptest.NewRecorder()
	h.Recognize(recorder, multipartRequest(t, "/api/v1/recognize", "image", []byte("img")))

	if recorder.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", recorder.Code, recorder.Body.String())
	}
	if string(svc.gotImage) != "img" {
		t.Errorf("service received %q", svc.gotImage)
	}

	var got recognition.Recognition
	if err := json.Unmarshal(recorder.Body.Bytes(), &got); err != nil {
		t.Fatalf("failed to unmarshal: %v", err)
	}
	if len(got.Faces) != 1 || got.Faces[0].Name != "Alice" || got.Faces[0].Decision != matcher.DecisionDirect {
		t.Errorf("unexpected response %+v", got)
	}
}

func TestRecognize_JSONDataURL(t *testing.T) {
	svc := &fakeService{recognition: &recognition.Recognition{Faces: []recognition.FaceResult{}}}
	h := NewRecognizeHandler(svc, testLogger())

	body := bytes.NewBufferString(`{"image": "data:image/png;base64,aW1n"}`)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/recognize", body)
	req.Header.Set("Content-Type", "application/json")
	recorder := httptest.NewRecorder()
	h.Recognize(recorder, req)

	if recorder.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", recorder.Code, recorder.Body.String())
	}
	if string(svc.gotImage) != "img" {
		t.Errorf("service received %q", svc.gotImage)
	}
}

func TestRecognize_MissingImage(t *testing.T) {
	svc := &fakeService{}
	h := NewRecognizeHandler(svc, testLogger())

	req := httptest.NewRequest(http.MethodPost, "/api/v1/recognize", bytes.NewBufferString(`{}`))
	recorder := httptest.NewRecorder()
	h.Recognize(recorder, req)

	if recorder.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", recorder.Code)
	}
	if svc.gotImage != nil {
		t.Error("service must not be called without an image")
	}
}

func TestRecognize_TooLarge(t *testing.T) {
	h := NewRecognizeHandler(&fakeService{}, testLogger())

	huge := bytes.Repeat([]byte("A"), MaxUploadBytes+1024)
	body := append(append([]byte(`{"image": "`), huge...), []byte(`"}`)...)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/recognize", bytes.NewReader(body))
	recorder := httptest.NewRecorder()
	h.Recognize(recorder, req)

	if recorder.Code != http.StatusRequestEntityTooLarge {
		t.Errorf("expected 413, got %d", recorder.Code)
	}
}
