package gallery

import "sort"

// Backend names reported in gallery stats.
const (
	BackendLinear = "linear"
	BackendHNSW   = "hnsw"
)

// Entry is one representative stored in the gallery. Its position in the
// gallery is also its row key in the search backend.
type Entry struct {
	Label  string
	Vector []float32
}

// Candidate is a gallery entry ranked against a query.
type Candidate struct {
	Index    int
	Label    string
	Distance float64
}

// Backend finds the entries nearest to a query embedding.
type Backend interface {
	// Search returns at most k candidates sorted ascending by distance.
	Search(query []float32, k int) []Candidate
	// Name identifies the backend variant.
	Name() string
	// Len returns the number of indexed entries.
	Len() int
}

// LinearScan is the exact backend: every query is compared with every entry.
type LinearScan struct {
	entries []Entry
}

// NewLinearScan creates an exact backend over entries.
func NewLinearScan(entries []Entry) *LinearScan {
	return &LinearScan{entries: entries}
}

// Search computes the Euclidean distance to every entry and keeps the k closest.
func (l *LinearScan) Search(query []float32, k int) []Candidate {
	if k <= 0 || len(l.entries) == 0 {
		return nil
	}

	all := make([]Candidate, len(l.entries))
	for i, e := range l.entries {
		all[i] = Candidate{Index: i, Label: e.Label, Distance: EuclideanDistance(query, e.Vector)}
	}
	sortCandidates(all)

	if len(all) > k {
		all = all[:k]
	}
	return all
}

// Name returns the backend name.
func (l *LinearScan) Name() string { return BackendLinear }

// Len returns the number of entries.
func (l *LinearScan) Len() int { return len(l.entries) }

// sortCandidates orders by distance, breaking ties by gallery position so
// results are stable across backends.
func sortCandidates(c []Candidate) {
	sort.SliceStable(c, func(i, j int) bool {
		if c[i].Distance != c[j].Distance {
			return c[i].Distance < c[j].Distance
		}
		return c[i].Index < c[j].Index
	})
}
