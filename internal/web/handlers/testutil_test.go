package handlers

import (
	"bytes"
	"context"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/sirupsen/logrus"

	"github.com/kozaktomas/face-gallery/internal/gallery"
	"github.com/kozaktomas/face-gallery/internal/recognition"
)

// fakeService records its inputs and returns canned answers.
type fakeService struct {
	recognition *recognition.Recognition
	identities  []recognition.IdentityInfo
	enroll      *recognition.EnrollResult
	report      *gallery.RebuildReport
	stats       *recognition.Stats
	imagePath   string
	err         error

	gotImage []byte
	gotLabel string
	gotFile  string
}

func (f *fakeService) Recognize(ctx context.Context, data []byte) (*recognition.Recognition, error) {
	f.gotImage = data
	return f.recognition, f.err
}

func (f *fakeService) Identities() ([]recognition.IdentityInfo, error) {
	return f.identities, f.err
}

func (f *fakeService) CreateIdentity(label string) (string, error) {
	f.gotLabel = label
	if f.err != nil {
		return "", f.err
	}
	return label, nil
}

func (f *fakeService) DeleteIdentity(ctx context.Context, label string) (*gallery.RebuildReport, error) {
	f.gotLabel = label
	return f.report, f.err
}

func (f *fakeService) Enroll(ctx context.Context, label string, data []byte) (*recognition.EnrollResult, error) {
	f.gotLabel = label
	f.gotImage = data
	return f.enroll, f.err
}

func (f *fakeService) ImagePath(label, file string) (string, error) {
	f.gotLabel = label
	f.gotFile = file
	return f.imagePath, f.err
}

func (f *fakeService) Stats(ctx context.Context) (*recognition.Stats, error) {
	return f.stats, f.err
}

func (f *fakeService) Rebuild(ctx context.Context, opts ...gallery.RebuildOption) (*gallery.RebuildReport, error) {
	return f.report, f.err
}

func testLogger() *logrus.Entry {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return logrus.NewEntry(l)
}

// requestWithChiParams creates a request with chi URL parameters
func requestWithChiParams(r *http.Request, params map[string]string) *http.Request {
	rctx := chi.NewRouteContext()
	for key, value := range params {
		rctx.URLParams.Add(key, value)
	}
	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
}

// multipartRequest builds a POST with data in the given form field
func multipartRequest(t *testing.T, path, field string, data []byte) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	part, err := writer.CreateFormFile(field, "face.jpg")
	if err != nil {
		t.Fatal(err)
	}
	part.Write(data)
	writer.Close()

	req := httptest.NewRequest(http.MethodPost, path, &buf)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	return req
}
