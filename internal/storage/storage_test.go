package storage

import (
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"

	"github.com/kozaktomas/face-gallery/internal/facematch"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	log := logrus.New()
	log.SetOutput(io.Discard)
	s, err := New(t.TempDir(), logrus.NewEntry(log))
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	return s
}

func TestStore_CreateAndList(t *testing.T) {
	s := newTestStore(t)

	for _, name := range []string{"Bob", "Alice"} {
		if err := s.Create(name); err != nil {
			t.Fatalf("Create(%s) failed: %v", name, err)
		}
	}

	ids, err := s.List()
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(ids) != 2 || ids[0].Name != "Alice" || ids[1].Name != "Bob" {
		t.Fatalf("unexpected identities %+v", ids)
	}
	if ids[0].Images != 0 || ids[0].Preview != "" {
		t.Errorf("expected empty identity, got %+v", ids[0])
	}
}

func TestStore_CreateDuplicate(t *testing.T) {
	s := newTestStore(t)
	if err := s.Create("Jiří Novák"); err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	for _, dup := range []string{"Jiří Novák", "jiri-novak", "JIRI NOVAK"} {
		if err := s.Create(dup); !errors.Is(err, ErrIdentityExists) {
			t.Errorf("Create(%q) error = %v, want ErrIdentityExists", dup, err)
		}
	}
}

func TestStore_CreateInvalid(t *testing.T) {
	s := newTestStore(t)
	for _, bad := range []string{"", "unknown", "../escape", " padded "} {
		if err := s.Create(bad); !errors.Is(err, facematch.ErrInvalidLabel) {
			t.Errorf("Create(%q) error = %v, want ErrInvalidLabel", bad, err)
		}
	}
}

func TestStore_AddImageWritesSidecar(t *testing.T) {
	s := newTestStore(t)
	if err := s.Create("Alice"); err != nil {
		t.Fatal(err)
	}

	name, err := s.AddImage("Alice", []byte("jpeg-bytes"), ImageMeta{BBox: []float64{1, 2, 3, 4}, RollDegrees: 3.5, DHash: "00ff"})
	if err != nil {
		t.Fatalf("AddImage failed: %v", err)
	}
	if filepath.Ext(name) != ".jpg" || len(name) != 36+4 {
		t.Errorf("unexpected image name %q", name)
	}

	images, err := s.Images("Alice")
	if err != nil {
		t.Fatalf("Images failed: %v", err)
	}
	if len(images) != 1 || images[0].Meta == nil {
		t.Fatalf("expected one image with metadata, got %+v", images)
	}
	if images[0].Meta.DHash != "00ff" || images[0].Meta.CreatedAt.IsZero() {
		t.Errorf("unexpected metadata %+v", images[0].Meta)
	}

	ids, _ := s.List()
	if ids[0].Images != 1 || ids[0].Preview != "Alice/"+name {
		t.Errorf("unexpected listing %+v", ids[0])
	}
}

func TestStore_AddImageMissingIdentity(t *testing.T) {
	s := newTestStore(t)
	if _, err := s.AddImage("Nobody", []byte("x"), ImageMeta{}); !errors.Is(err, ErrIdentityNotFound) {
		t.Errorf("expected ErrIdentityNotFound, got %v", err)
	}
}

func TestStore_LoadOrdersImagesAndSkipsOtherFiles(t *testing.T) {
	s := newTestStore(t)
	if err := s.Create("Alice"); err != nil {
		t.Fatal(err)
	}
	dir := filepath.Join(s.Root(), "Alice")
	for name, data := range map[string]string{"b.png": "B", "a.JPG": "A", "notes.txt": "x", "a.json": "{}"} {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(data), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	if err := s.Create("Empty"); err != nil {
		t.Fatal(err)
	}

	loaded, err := s.Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if len(loaded) != 2 {
		t.Fatalf("expected 2 identities, got %d", len(loaded))
	}
	alice := loaded["Alice"]
	if len(alice) != 2 || alice[0].Name != "a.JPG" || string(alice[1].Data) != "B" {
		t.Errorf("unexpected images %+v", alice)
	}
	if len(loaded["Empty"]) != 0 {
		t.Errorf("expected no images for Empty")
	}
}

func TestStore_Delete(t *testing.T) {
	s := newTestStore(t)
	if err := s.Create("Alice"); err != nil {
		t.Fatal(err)
	}
	if err := s.Delete("Alice"); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if s.Exists("Alice") {
		t.Error("identity still exists")
	}
	if err := s.Delete("Alice"); !errors.Is(err, ErrIdentityNotFound) {
		t.Errorf("expected ErrIdentityNotFound, got %v", err)
	}
}

func TestStore_ImagePath(t *testing.T) {
	s := newTestStore(t)
	if err := s.Create("Alice"); err != nil {
		t.Fatal(err)
	}
	name, err := s.AddImage("Alice", []byte("x"), ImageMeta{})
	if err != nil {
		t.Fatal(err)
	}

	p, err := s.ImagePath("Alice", name)
	if err != nil {
		t.Fatalf("ImagePath failed: %v", err)
	}
	if filepath.Dir(p) != filepath.Join(s.Root(), "Alice") {
		t.Errorf("unexpected path %s", p)
	}

	for _, bad := range []string{"../Alice/" + name, "missing.jpg", "", strings.TrimSuffix(name, ".jpg") + ".json"} {
		if _, err := s.ImagePath("Alice", bad); !errors.Is(err, ErrImageNotFound) {
			t.Errorf("ImagePath(%q) error = %v, want ErrImageNotFound", bad, err)
		}
	}
}
