// Package gallery keeps the in-memory set of enrolled identities as unit-norm
// representative embeddings and answers nearest-neighbor queries against it.
package gallery

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// IndexMode selects the search backend after a rebuild.
type IndexMode string

const (
	// IndexAuto uses linear scan below the ANN threshold and HNSW at or above it.
	IndexAuto IndexMode = "auto"
	// IndexLinear always uses linear scan.
	IndexLinear IndexMode = "linear"
	// IndexHNSW always tries the approximate index.
	IndexHNSW IndexMode = "hnsw"
)

// Options configures a Gallery.
type Options struct {
	Builder      BuilderOptions
	IndexMode    IndexMode
	ANNThreshold int

	// NewApproximate builds the approximate backend. Defaults to NewHNSWIndex.
	NewApproximate func(entries []Entry, seed int64) (Backend, error)
}

// DefaultOptions returns the stock gallery settings.
func DefaultOptions() Options {
	return Options{
		Builder:      DefaultBuilderOptions(),
		IndexMode:    IndexAuto,
		ANNThreshold: 100,
	}
}

// SourceImage is one stored image of an identity.
type SourceImage struct {
	Name string
	Data []byte
}

// Extractor produces the face embedding of a single source image.
type Extractor interface {
	Extract(ctx context.Context, identity string, img SourceImage) ([]float32, error)
}

// ExtractorFunc adapts a function to the Extractor interface.
type ExtractorFunc func(ctx context.Context, identity string, img SourceImage) ([]float32, error)

// Extract calls f.
func (f ExtractorFunc) Extract(ctx context.Context, identity string, img SourceImage) ([]float32, error) {
	return f(ctx, identity, img)
}

// IdentityReport describes how one identity fared during a rebuild.
type IdentityReport struct {
	Label            string   `json:"label"`
	Images           int      `json:"images"`
	Embeddings       int      `json:"embeddings"`
	SkippedImages    []string `json:"skipped_images,omitempty"`
	Representatives  int      `json:"representatives"`
	Outliers         int      `json:"outliers"`
	Degenerate       bool     `json:"degenerate_filter,omitempty"`
	RejectedClusters int      `json:"rejected_clusters,omitempty"`
	Omitted          bool     `json:"omitted,omitempty"`
}

// RebuildReport aggregates the outcome of a rebuild.
type RebuildReport struct {
	Identities    []IdentityReport `json:"identities"`
	Size          int              `json:"size"`
	Dimension     int              `json:"dimension"`
	Backend       string           `json:"backend"`
	IndexFallback bool             `json:"index_fallback,omitempty"`
	IndexError    string           `json:"index_error,omitempty"`
	Duration      time.Duration    `json:"duration_ns"`
}

// Omitted returns the labels of identities left out for lack of usable embeddings.
func (r *RebuildReport) Omitted() []string {
	var out []string
	for _, id := range r.Identities {
		if id.Omitted {
			out = append(out, id.Label)
		}
	}
	return out
}

// Stats is a point-in-time summary of the gallery.
type Stats struct {
	Size       int       `json:"size"`
	Identities int       `json:"identities"`
	Dimension  int       `json:"dimension"`
	Backend    string    `json:"backend"`
	BuiltAt    time.Time `json:"built_at"`
}

// RebuildOption customizes a single rebuild call.
type RebuildOption func(*rebuildConfig)

type rebuildConfig struct {
	progress func(label string)
}

// WithProgress calls fn after each identity has been processed.
func WithProgress(fn func(label string)) RebuildOption {
	return func(c *rebuildConfig) { c.progress = fn }
}

// Gallery holds every representative in a stable order together with the
// backend that searches them. Rebuilds are exclusive; searches share a read lock.
type Gallery struct {
	opts    Options
	builder *Builder
	log     *logrus.Entry

	mu        sync.RWMutex
	entries   []Entry
	backend   Backend
	perLabel  map[string]int
	dimension int
	builtAt   time.Time
}

// New creates an empty gallery.
func New(opts Options, log *logrus.Entry) *Gallery {
	if opts.NewApproximate == nil {
		opts.NewApproximate = func(entries []Entry, seed int64) (Backend, error) {
			return NewHNSWIndex(entries, seed)
		}
	}
	if opts.IndexMode == "" {
		opts.IndexMode = IndexAuto
	}
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Gallery{
		opts:     opts,
		builder:  NewBuilder(opts.Builder),
		log:      log,
		backend:  NewLinearScan(nil),
		perLabel: make(map[string]int),
	}
}

// Rebuild clears the gallery and reconstructs it from identities. Images whose
// extraction fails are skipped; identities without any usable embedding are
// omitted. Readers are blocked for the whole rebuild and see the new state
// only once it is complete. If ctx is cancelled the previous state is kept.
func (g *Gallery) Rebuild(ctx context.Context, identities map[string][]SourceImage, ex Extractor, opts ...RebuildOption) (*RebuildReport, error) {
	var cfg rebuildConfig
	for _, o := range opts {
		o(&cfg)
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("gallery rebuild interrupted: %w", err)
	}

	start := time.Now()
	labels := make([]string, 0, len(identities))
	for label := range identities {
		labels = append(labels, label)
	}
	sort.Strings(labels)

	report := &RebuildReport{Identities: make([]IdentityReport, 0, len(labels))}
	var entries []Entry
	perLabel := make(map[string]int, len(labels))
	dim := 0

	for _, label := range labels {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("gallery rebuild interrupted: %w", err)
		}

		ir, reps, err := g.buildIdentity(ctx, label, identities[label], ex, &dim)
		if err != nil {
			return nil, err
		}
		report.Identities = append(report.Identities, ir)
		for _, r := range reps {
			entries = append(entries, Entry{Label: label, Vector: r})
		}
		if len(reps) > 0 {
			perLabel[label] = len(reps)
		}

		if cfg.progress != nil {
			cfg.progress(label)
		}
	}

	backend, indexErr := g.selectBackend(entries)
	if indexErr != nil {
		report.IndexFallback = true
		report.IndexError = indexErr.Error()
		g.log.WithError(indexErr).WithField("size", len(entries)).
			Warn("Approximate index unavailable, falling back to linear scan")
	}

	g.entries = entries
	g.backend = backend
	g.perLabel = perLabel
	g.dimension = dim
	g.builtAt = time.Now()

	report.Size = len(entries)
	report.Dimension = dim
	report.Backend = backend.Name()
	report.Duration = time.Since(start)

	g.log.WithFields(logrus.Fields{
		"identities":      len(perLabel),
		"omitted":         len(report.Omitted()),
		"representatives": len(entries),
		"backend":         backend.Name(),
		"duration":        report.Duration.Round(time.Millisecond),
	}).Info("Gallery rebuilt")

	return report, nil
}

// buildIdentity extracts the embeddings of one identity and derives its
// representatives. Only context cancellation is returned as an error.
func (g *Gallery) buildIdentity(ctx context.Context, label string, images []SourceImage, ex Extractor, dim *int) (IdentityReport, [][]float32, error) {
	ir := IdentityReport{Label: label, Images: len(images)}
	log := g.log.WithField("identity", label)

	var embeddings [][]float32
	for _, img := range images {
		emb, err := ex.Extract(ctx, label, img)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return ir, nil, fmt.Errorf("gallery rebuild interrupted: %w", ctxErr)
			}
			log.WithError(err).WithField("image", img.Name).Warn("Skipping image: extraction failed")
			ir.SkippedImages = append(ir.SkippedImages, img.Name)
			continue
		}
		if *dim != 0 && len(emb) != *dim {
			log.WithField("image", img.Name).Warnf("Skipping image: embedding dimension %d, gallery uses %d", len(emb), *dim)
			ir.SkippedImages = append(ir.SkippedImages, img.Name)
			continue
		}
		if *dim == 0 {
			*dim = len(emb)
		}
		embeddings = append(embeddings, emb)
	}
	ir.Embeddings = len(embeddings)

	if len(embeddings) == 0 {
		log.Warn("No usable embeddings, identity omitted from gallery")
		ir.Omitted = true
		return ir, nil, nil
	}

	res, err := g.builder.Build(embeddings)
	if err != nil {
		log.WithError(err).Warn("Cannot build representatives, identity omitted from gallery")
		ir.Omitted = true
		return ir, nil, nil
	}
	if res.Degenerate {
		log.Warn("Outlier filter rejected every embedding, using unfiltered set")
	} else if res.Outliers > 0 {
		log.Infof("Filtered %d outlier embeddings", res.Outliers)
	}

	ir.Representatives = len(res.Representatives)
	ir.Outliers = res.Outliers
	ir.Degenerate = res.Degenerate
	ir.RejectedClusters = res.RejectedClusters
	return ir, res.Representatives, nil
}

// selectBackend picks linear scan or the approximate index for entries. A
// failed approximate build degrades to linear scan and reports the cause.
func (g *Gallery) selectBackend(entries []Entry) (Backend, error) {
	useANN := false
	switch g.opts.IndexMode {
	case IndexHNSW:
		useANN = len(entries) > 0
	case IndexLinear:
	default:
		useANN = g.opts.ANNThreshold > 0 && len(entries) >= g.opts.ANNThreshold
	}
	if !useANN {
		return NewLinearScan(entries), nil
	}

	backend, err := g.opts.NewApproximate(entries, g.opts.Builder.Seed)
	if err != nil {
		return NewLinearScan(entries), err
	}
	if backend == nil {
		return NewLinearScan(entries), errors.New("approximate index builder returned no index")
	}
	return backend, nil
}

// Search returns up to k entries nearest to query, ascending by distance.
// k is clamped to the gallery size. A query whose dimension differs from the
// gallery's has no candidates, whichever backend is active.
func (g *Gallery) Search(query []float32, k int) []Candidate {
	g.mu.RLock()
	defer g.mu.RUnlock()

	k = min(k, len(g.entries))
	if k <= 0 {
		return nil
	}
	if len(query) != g.dimension {
		g.log.WithFields(logrus.Fields{
			"query_dimension":   len(query),
			"gallery_dimension": g.dimension,
		}).Warn("Query embedding dimension does not match gallery, no candidates")
		return nil
	}
	return g.backend.Search(query, k)
}

// Size returns the total number of representatives.
func (g *Gallery) Size() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.entries)
}

// Entries returns a copy of the gallery rows in index order.
func (g *Gallery) Entries() []Entry {
	g.mu.RLock()
	defer g.mu.RUnlock()
	out := make([]Entry, len(g.entries))
	copy(out, g.entries)
	return out
}

// Representatives returns how many representatives label has (0 if absent).
func (g *Gallery) Representatives(label string) int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.perLabel[label]
}

// Stats summarizes the current gallery.
func (g *Gallery) Stats() Stats {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return Stats{
		Size:       len(g.entries),
		Identities: len(g.perLabel),
		Dimension:  g.dimension,
		Backend:    g.backend.Name(),
		BuiltAt:    g.builtAt,
	}
}
