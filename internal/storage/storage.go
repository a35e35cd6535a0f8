// Package storage keeps enrolled source images on disk, one directory per identity.
package storage

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/kozaktomas/face-gallery/internal/facematch"
	"github.com/kozaktomas/face-gallery/internal/gallery"
)

var (
	// ErrIdentityExists is returned when creating an identity that is already stored.
	ErrIdentityExists = errors.New("identity already exists")
	// ErrIdentityNotFound is returned for operations on a missing identity.
	ErrIdentityNotFound = errors.New("identity not found")
	// ErrImageNotFound is returned when a stored image cannot be resolved.
	ErrImageNotFound = errors.New("image not found")
)

const sidecarExt = ".json"

// ImageMeta is written next to every enrolled image.
type ImageMeta struct {
	BBox        []float64 `json:"bbox,omitempty"`
	FaceWidth   float64   `json:"face_width,omitempty"`
	FaceHeight  float64   `json:"face_height,omitempty"`
	RollDegrees float64   `json:"roll_degrees"`
	RollStatus  string    `json:"roll_status,omitempty"`
	DetScore    float64   `json:"det_score,omitempty"`
	Width       int       `json:"width,omitempty"`
	Height      int       `json:"height,omitempty"`
	DHash       string    `json:"dhash,omitempty"`
	Model       string    `json:"model,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// Identity summarizes one stored identity.
type Identity struct {
	Name    string `json:"name"`
	Images  int    `json:"image_count"`
	Preview string `json:"preview_image,omitempty"` // "<name>/<file>" of the first image
}

// StoredImage is one image of an identity with its sidecar, if any.
type StoredImage struct {
	Name string     `json:"name"`
	Meta *ImageMeta `json:"meta,omitempty"`
}

// Store is a directory-per-identity image store rooted at a gallery directory.
type Store struct {
	root string
	log  *logrus.Entry
	mu   sync.Mutex
}

// New opens (and creates if needed) a store rooted at dir.
func New(dir string, log *logrus.Entry) (*Store, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("resolving gallery dir: %w", err)
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, fmt.Errorf("creating gallery dir: %w", err)
	}
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Store{root: abs, log: log}, nil
}

// Root returns the absolute gallery directory.
func (s *Store) Root() string {
	return s.root
}

// List returns every identity sorted by name.
func (s *Store) List() ([]Identity, error) {
	names, err := s.identityNames()
	if err != nil {
		return nil, err
	}

	out := make([]Identity, 0, len(names))
	for _, name := range names {
		files, err := s.imageFiles(name)
		if err != nil {
			return nil, err
		}
		id := Identity{Name: name, Images: len(files)}
		if len(files) > 0 {
			id.Preview = name + "/" + files[0]
		}
		out = append(out, id)
	}
	return out, nil
}

// Exists reports whether label is a stored identity.
func (s *Store) Exists(label string) bool {
	dir, err := s.identityDir(label)
	if err != nil {
		return false
	}
	info, err := os.Stat(dir)
	return err == nil && info.IsDir()
}

// Create makes an empty identity. Labels that differ from an existing one only by
// case or diacritics are rejected as duplicates.
func (s *Store) Create(label string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	dir, err := s.identityDir(label)
	if err != nil {
		return err
	}

	names, err := s.identityNames()
	if err != nil {
		return err
	}
	key := facematch.LabelKey(label)
	for _, existing := range names {
		if existing == label || facematch.LabelKey(existing) == key {
			return fmt.Errorf("%w: %s", ErrIdentityExists, existing)
		}
	}

	if err := os.Mkdir(dir, 0o755); err != nil {
		if errors.Is(err, fs.ErrExist) {
			return fmt.Errorf("%w: %s", ErrIdentityExists, label)
		}
		return fmt.Errorf("creating identity dir: %w", err)
	}
	s.log.WithField("identity", label).Info("Identity created")
	return nil
}

// AddImage stores a JPEG for label as <uuid>.jpg with a <uuid>.json sidecar and
// returns the image file name.
func (s *Store) AddImage(label string, jpegData []byte, meta ImageMeta) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	dir, err := s.existingDir(label)
	if err != nil {
		return "", err
	}

	id := uuid.New().String()
	name := id + ".jpg"
	imgPath := filepath.Join(dir, name)
	if err := os.WriteFile(imgPath, jpegData, 0o644); err != nil {
		return "", fmt.Errorf("writing image: %w", err)
	}

	if meta.CreatedAt.IsZero() {
		meta.CreatedAt = time.Now().UTC()
	}
	sidecar, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		os.Remove(imgPath)
		return "", fmt.Errorf("encoding image metadata: %w", err)
	}
	if err := os.WriteFile(filepath.Join(dir, id+sidecarExt), sidecar, 0o644); err != nil {
		os.Remove(imgPath)
		return "", fmt.Errorf("writing image metadata: %w", err)
	}

	s.log.WithFields(logrus.Fields{"identity": label, "image": name}).Info("Image enrolled")
	return name, nil
}

// Images lists the images of label in name order with their sidecars.
func (s *Store) Images(label string) ([]StoredImage, error) {
	dir, err := s.existingDir(label)
	if err != nil {
		return nil, err
	}
	files, err := s.imageFiles(label)
	if err != nil {
		return nil, err
	}

	out := make([]StoredImage, 0, len(files))
	for _, f := range files {
		img := StoredImage{Name: f}
		if meta, err := readSidecar(filepath.Join(dir, sidecarName(f))); err == nil {
			img.Meta = meta
		}
		out = append(out, img)
	}
	return out, nil
}

// Delete removes label together with all of its images.
func (s *Store) Delete(label string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	dir, err := s.existingDir(label)
	if err != nil {
		return err
	}
	if err := os.RemoveAll(dir); err != nil {
		return fmt.Errorf("removing identity dir: %w", err)
	}
	s.log.WithField("identity", label).Info("Identity deleted")
	return nil
}

// Load reads every identity's images for a gallery rebuild. Images are ordered by
// file name so rebuilds see a stable order. Unreadable files are logged and skipped.
func (s *Store) Load() (map[string][]gallery.SourceImage, error) {
	names, err := s.identityNames()
	if err != nil {
		return nil, err
	}

	out := make(map[string][]gallery.SourceImage, len(names))
	for _, name := range names {
		files, err := s.imageFiles(name)
		if err != nil {
			return nil, err
		}
		images := make([]gallery.SourceImage, 0, len(files))
		for _, f := range files {
			data, err := os.ReadFile(filepath.Join(s.root, name, f))
			if err != nil {
				s.log.WithError(err).WithFields(logrus.Fields{"identity": name, "image": f}).Warn("Skipping unreadable image")
				continue
			}
			images = append(images, gallery.SourceImage{Name: f, Data: data})
		}
		out[name] = images
	}
	return out, nil
}

// ImagePath resolves a stored image of label, refusing names that escape the identity dir.
func (s *Store) ImagePath(label, name string) (string, error) {
	dir, err := s.existingDir(label)
	if err != nil {
		return "", err
	}
	if name == "" || name != filepath.Base(name) || strings.HasPrefix(name, ".") || !isImageFile(name) {
		return "", fmt.Errorf("%w: %s", ErrImageNotFound, name)
	}
	p := filepath.Join(dir, name)
	if _, err := os.Stat(p); err != nil {
		return "", fmt.Errorf("%w: %s", ErrImageNotFound, name)
	}
	return p, nil
}

func (s *Store) identityDir(label string) (string, error) {
	normalized, err := facematch.NormalizeLabel(label)
	if err != nil {
		return "", err
	}
	if normalized != label {
		return "", fmt.Errorf("%w: %q is not normalized", facematch.ErrInvalidLabel, label)
	}
	return filepath.Join(s.root, label), nil
}

func (s *Store) existingDir(label string) (string, error) {
	dir, err := s.identityDir(label)
	if err != nil {
		return "", err
	}
	info, err := os.Stat(dir)
	if err != nil || !info.IsDir() {
		return "", fmt.Errorf("%w: %s", ErrIdentityNotFound, label)
	}
	return dir, nil
}

func (s *Store) identityNames() ([]string, error) {
	entries, err := os.ReadDir(s.root)
	if err != nil {
		return nil, fmt.Errorf("reading gallery dir: %w", err)
	}
	var names []string
	for _, e := range entries {
		if e.IsDir() && !strings.HasPrefix(e.Name(), ".") {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)
	return names, nil
}

func (s *Store) imageFiles(label string) ([]string, error) {
	entries, err := os.ReadDir(filepath.Join(s.root, label))
	if err != nil {
		return nil, fmt.Errorf("reading identity dir: %w", err)
	}
	var files []string
	for _, e := range entries {
		if !e.IsDir() && isImageFile(e.Name()) {
			files = append(files, e.Name())
		}
	}
	sort.Strings(files)
	return files, nil
}

func isImageFile(name string) bool {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".jpg", ".jpeg", ".png":
		return true
	}
	return false
}

func sidecarName(image string) string {
	return strings.TrimSuffix(image, filepath.Ext(image)) + sidecarExt
}

func readSidecar(path string) (*ImageMeta, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var meta ImageMeta
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil, err
	}
	return &meta, nil
}
