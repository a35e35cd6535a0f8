package gallery

import (
	"errors"
	"math"
)

var (
	// ErrNoEmbeddings is returned when a representative is requested for zero embeddings.
	ErrNoEmbeddings = errors.New("no embeddings to build representatives from")
	// ErrZeroVector is returned when the primary representative has zero norm.
	ErrZeroVector = errors.New("representative has zero norm")
)

// BuilderOptions tunes how representatives are derived from an identity's embeddings.
type BuilderOptions struct {
	// OutlierStdDevs is how many standard deviations above the mean of the
	// per-embedding mean distances an embedding may lie before it is dropped.
	OutlierStdDevs float64
	// MinClusterSamples is the minimum number of surviving embeddings needed
	// before secondary (cluster) representatives are considered.
	MinClusterSamples int
	// MaxClusters caps the cluster count for secondary representatives.
	MaxClusters int
	// DiversityThreshold is the distance a cluster centroid must exceed to every
	// representative already chosen for the identity.
	DiversityThreshold float64
	// Seed fixes the clustering RNG.
	Seed int64
}

// DefaultBuilderOptions returns the stock representative settings.
func DefaultBuilderOptions() BuilderOptions {
	return BuilderOptions{
		OutlierStdDevs:     1.5,
		MinClusterSamples:  5,
		MaxClusters:        3,
		DiversityThreshold: 0.1,
		Seed:               0,
	}
}

// BuildResult holds the representatives for one identity plus what happened on the way.
type BuildResult struct {
	Representatives [][]float32
	// Outliers is the number of embeddings removed by the outlier filter.
	Outliers int
	// Degenerate is set when the filter rejected everything and the unfiltered
	// set was used instead.
	Degenerate bool
	// RejectedClusters counts cluster centroids dropped by the diversity gate.
	RejectedClusters int
}

// Builder turns the embeddings of one identity into unit-norm representatives.
type Builder struct {
	opts BuilderOptions
}

// NewBuilder creates a representative builder.
func NewBuilder(opts BuilderOptions) *Builder {
	return &Builder{opts: opts}
}

// Build computes the representatives for one identity. The primary (mean)
// representative is always first; secondary cluster representatives follow.
func (b *Builder) Build(embeddings [][]float32) (BuildResult, error) {
	var res BuildResult
	if len(embeddings) == 0 {
		return res, ErrNoEmbeddings
	}

	if len(embeddings) == 1 {
		v, ok := Normalize(embeddings[0])
		if !ok {
			return res, ErrZeroVector
		}
		res.Representatives = [][]float32{v}
		return res, nil
	}

	kept := b.filterOutliers(embeddings)
	switch {
	case len(kept) == 0:
		kept = embeddings
		res.Degenerate = true
	default:
		res.Outliers = len(embeddings) - len(kept)
	}

	primary, ok := Normalize(Mean(kept))
	if !ok {
		return res, ErrZeroVector
	}
	res.Representatives = [][]float32{primary}

	if len(kept) < b.opts.MinClusterSamples || b.opts.MaxClusters <= 0 {
		return res, nil
	}

	k := min(b.opts.MaxClusters, len(kept)/2)
	for _, center := range kMeans(kept, k, b.opts.Seed) {
		c, ok := Normalize(center)
		if !ok || !b.diverse(c, res.Representatives) {
			res.RejectedClusters++
			continue
		}
		res.Representatives = append(res.Representatives, c)
	}
	return res, nil
}

// filterOutliers keeps embeddings whose mean distance to the others is at most
// mean + OutlierStdDevs*stddev over all such mean distances.
func (b *Builder) filterOutliers(embeddings [][]float32) [][]float32 {
	n := len(embeddings)
	dist := make([][]float64, n)
	for i := range dist {
		dist[i] = make([]float64, n)
	}
	for i := range n {
		for j := i + 1; j < n; j++ {
			d := EuclideanDistance(embeddings[i], embeddings[j])
			dist[i][j] = d
			dist[j][i] = d
		}
	}

	avg := make([]float64, n)
	for i := range n {
		sum := 0.0
		for j := range n {
			sum += dist[i][j]
		}
		avg[i] = sum / float64(n-1)
	}

	mu, sigma := meanStdDev(avg)
	limit := mu + b.opts.OutlierStdDevs*sigma

	kept := make([][]float32, 0, n)
	for i, a := range avg {
		if a <= limit {
			kept = append(kept, embeddings[i])
		}
	}
	return kept
}

func (b *Builder) diverse(candidate []float32, chosen [][]float32) bool {
	for _, rep := range chosen {
		if EuclideanDistance(candidate, rep) <= b.opts.DiversityThreshold {
			return false
		}
	}
	return true
}

// meanStdDev returns the mean and population standard deviation of xs.
func meanStdDev(xs []float64) (float64, float64) {
	mean := 0.0
	for _, x := range xs {
		mean += x
	}
	mean /= float64(len(xs))

	variance := 0.0
	for _, x := range xs {
		d := x - mean
		variance += d * d
	}
	variance /= float64(len(xs))
	return mean, math.Sqrt(variance)
}
