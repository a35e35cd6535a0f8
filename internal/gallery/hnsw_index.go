package gallery

import (
	"errors"
	"fmt"
	"math/rand"

	"github.com/coder/hnsw"
)

// HNSW parameters for face representatives.
const (
	// HNSWMaxNeighbors (M) is the maximum number of neighbors per node.
	// Higher values improve recall but increase memory and build time.
	HNSWMaxNeighbors = 16

	// HNSWEfSearch is the search candidate pool size.
	HNSWEfSearch = 100

	// HNSWSearchMultiplier is the factor to request more candidates from HNSW
	// so the exact re-ranking still has k good entries to pick from.
	HNSWSearchMultiplier = 3
)

// HNSWIndex is the approximate backend. The graph is built once per gallery
// rebuild and never updated incrementally.
type HNSWIndex struct {
	graph   *hnsw.Graph[int]
	entries []Entry
}

// NewHNSWIndex builds an HNSW graph over entries using Euclidean distance.
// Graph layer assignment uses seed so the same gallery yields the same graph.
func NewHNSWIndex(entries []Entry, seed int64) (idx *HNSWIndex, err error) {
	if len(entries) == 0 {
		return nil, errors.New("no entries to index")
	}

	// hnsw panics on dimension mismatch; surface it as an error.
	defer func() {
		if r := recover(); r != nil {
			idx = nil
			err = fmt.Errorf("building HNSW graph: %v", r)
		}
	}()

	dim := len(entries[0].Vector)
	g := hnsw.NewGraph[int]()
	g.M = HNSWMaxNeighbors
	g.Ml = 1.0 / float64(HNSWMaxNeighbors) // Standard HNSW formula
	g.EfSearch = HNSWEfSearch
	g.Distance = hnsw.EuclideanDistance
	g.Rng = rand.New(rand.NewSource(seed)) //nolint:gosec // level assignment, not crypto

	for i, e := range entries {
		if len(e.Vector) != dim {
			return nil, fmt.Errorf("entry %d has dimension %d, want %d", i, len(e.Vector), dim)
		}
		g.Add(hnsw.MakeNode(i, e.Vector))
	}

	return &HNSWIndex{graph: g, entries: entries}, nil
}

// Search queries the graph and re-ranks the returned nodes by exact Euclidean
// distance so rankings agree with the linear backend.
func (h *HNSWIndex) Search(query []float32, k int) []Candidate {
	if k <= 0 || h.graph == nil || len(query) != len(h.entries[0].Vector) {
		return nil
	}

	want := min(k*HNSWSearchMultiplier, len(h.entries))
	neighbors := h.graph.Search(query, want)

	out := make([]Candidate, 0, len(neighbors))
	for _, n := range neighbors {
		if n.Key < 0 || n.Key >= len(h.entries) {
			continue
		}
		e := h.entries[n.Key]
		out = append(out, Candidate{Index: n.Key, Label: e.Label, Distance: EuclideanDistance(query, e.Vector)})
	}
	sortCandidates(out)

	if len(out) > k {
		out = out[:k]
	}
	return out
}

// Name returns the backend name.
func (h *HNSWIndex) Name() string { return BackendHNSW }

// Len returns the number of indexed entries.
func (h *HNSWIndex) Len() int { return len(h.entries) }
