// Package recognition composes identity storage, the embedding service, the gallery
// and the matcher into the operations exposed by the CLI and the HTTP API.
package recognition

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/kozaktomas/face-gallery/internal/database"
	"github.com/kozaktomas/face-gallery/internal/embedding"
	"github.com/kozaktomas/face-gallery/internal/facematch"
	"github.com/kozaktomas/face-gallery/internal/gallery"
	"github.com/kozaktomas/face-gallery/internal/matcher"
	"github.com/kozaktomas/face-gallery/internal/storage"
)

var (
	// ErrNoFace is returned when the embedding service finds no face in an image.
	ErrNoFace = errors.New("no face detected")
	// ErrDuplicateImage is returned when enrolling a picture the identity already has.
	ErrDuplicateImage = errors.New("image already enrolled")
)

// Detector finds faces and computes their embeddings.
type Detector interface {
	DetectFaces(ctx context.Context, imageData []byte) ([]embedding.Face, error)
	Model() string
}

// Options tunes enrollment and recognition.
type Options struct {
	Quality    facematch.QualityGate
	Policy     matcher.Policy
	MaxImagePx int
	DedupeIoU  float64 // overlapping detections at or above this IoU collapse to one
}

// DefaultOptions returns the stock settings.
func DefaultOptions() Options {
	return Options{
		Quality:    facematch.DefaultQualityGate(),
		Policy:     matcher.DefaultPolicy(),
		MaxImagePx: 1600,
		DedupeIoU:  0.7,
	}
}

// Service is safe for concurrent use. Recognition runs concurrently; enrollment,
// deletion and rebuilds are serialized.
type Service struct {
	store    *storage.Store
	detector Detector
	cache    database.EmbeddingCache
	gallery  *gallery.Gallery
	matcher  *matcher.Matcher
	opts     Options
	log      *logrus.Entry

	mu sync.Mutex
}

// New creates a service. cache may be nil.
func New(store *storage.Store, detector Detector, cache database.EmbeddingCache, g *gallery.Gallery, opts Options, log *logrus.Entry) *Service {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Service{
		store:    store,
		detector: detector,
		cache:    cache,
		gallery:  g,
		matcher:  matcher.New(g, opts.Policy),
		opts:     opts,
		log:      log,
	}
}

// Gallery returns the underlying gallery.
func (s *Service) Gallery() *gallery.Gallery {
	return s.gallery
}

// Policy returns the matching policy in use.
func (s *Service) Policy() matcher.Policy {
	return s.opts.Policy
}

// Extract returns the embedding of the largest face in a stored source image,
// consulting the cache first. It implements gallery.Extractor.
func (s *Service) Extract(ctx context.Context, identity string, img gallery.SourceImage) ([]float32, error) {
	key := database.CacheKey(img.Data, s.detector.Model())
	if emb := s.cached(ctx, key); emb != nil {
		return emb, nil
	}

	faces, err := s.detector.DetectFaces(ctx, img.Data)
	if err != nil {
		return nil, fmt.Errorf("detecting faces in %s/%s: %w", identity, img.Name, err)
	}
	face, ok := embedding.LargestFace(faces)
	if !ok {
		return nil, fmt.Errorf("%s/%s: %w", identity, img.Name, ErrNoFace)
	}

	s.remember(ctx, key, face.Embedding)
	return face.Embedding, nil
}

func (s *Service) cached(ctx context.Context, key string) []float32 {
	if s.cache == nil {
		return nil
	}
	entry, err := s.cache.Get(ctx, key)
	if err != nil {
		s.log.WithError(err).Warn("Embedding cache lookup failed")
		return nil
	}
	if entry == nil {
		return nil
	}
	return entry.Embedding
}

func (s *Service) remember(ctx context.Context, key string, emb []float32) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Put(ctx, key, emb, s.detector.Model()); err != nil {
		s.log.WithError(err).Warn("Embedding cache write failed")
	}
}

// Rebuild reloads every stored identity and rebuilds the gallery.
func (s *Service) Rebuild(ctx context.Context, opts ...gallery.RebuildOption) (*gallery.RebuildReport, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rebuildLocked(ctx, opts...)
}

func (s *Service) rebuildLocked(ctx context.Context, opts ...gallery.RebuildOption) (*gallery.RebuildReport, error) {
	images, err := s.store.Load()
	if err != nil {
		return nil, fmt.Errorf("loading gallery images: %w", err)
	}
	return s.gallery.Rebuild(ctx, images, s, opts...)
}

// IdentityCount returns how many identities are stored, regardless of gallery state.
func (s *Service) IdentityCount() (int, error) {
	ids, err := s.store.List()
	if err != nil {
		return 0, err
	}
	return len(ids), nil
}

// Stats summarizes the gallery, the store and the cache.
func (s *Service) Stats(ctx context.Context) (*Stats, error) {
	stored, err := s.IdentityCount()
	if err != nil {
		return nil, err
	}

	st := &Stats{
		Gallery:          s.gallery.Stats(),
		StoredIdentities: stored,
		Model:            s.detector.Model(),
		Policy:           s.opts.Policy,
		CacheEntries:     -1,
	}
	if s.cache != nil {
		n, err := s.cache.Count(ctx)
		if err != nil {
			s.log.WithError(err).Warn("Embedding cache count failed")
		} else {
			st.CacheEntries = n
		}
	}
	return st, nil
}

// Stats is returned by Service.Stats.
type Stats struct {
	Gallery          gallery.Stats  `json:"gallery"`
	StoredIdentities int            `json:"stored_identities"`
	CacheEntries     int            `json:"cache_entries"` // -1 when no cache is configured
	Model            string         `json:"model"`
	Policy           matcher.Policy `json:"policy"`
}

// Timings records how long the phases of a request took.
type Timings struct {
	Decode    time.Duration `json:"decode_ns"`
	Detection time.Duration `json:"detection_ns"`
	Matching  time.Duration `json:"matching_ns"`
}

var _ gallery.Extractor = (*Service)(nil)
