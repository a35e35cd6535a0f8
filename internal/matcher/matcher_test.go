package matcher

import (
	"context"
	"math"
	"testing"

	"github.com/kozaktomas/face-gallery/internal/gallery"
)

type stubSearcher struct {
	candidates []gallery.Candidate
	lastK      int
}

func (s *stubSearcher) Search(query []float32, k int) []gallery.Candidate {
	s.lastK = k
	if len(s.candidates) > k {
		return s.candidates[:k]
	}
	return s.candidates
}

func approx(a, b float64) bool {
	return math.Abs(a-b) < 1e-6
}

func TestDecide_EmptyGallery(t *testing.T) {
	res := DefaultPolicy().Decide(nil)

	if res.Identity != Unknown {
		t.Errorf("expected %q, got %q", Unknown, res.Identity)
	}
	if res.Confidence != 0.0 {
		t.Errorf("expected confidence 0, got %f", res.Confidence)
	}
	if res.Distance != 1.0 {
		t.Errorf("expected distance 1.0, got %f", res.Distance)
	}
	if res.Decision != DecisionEmpty {
		t.Errorf("expected decision %q, got %q", DecisionEmpty, res.Decision)
	}
}

func TestDecide_DirectAccept(t *testing.T) {
	res := DefaultPolicy().Decide([]gallery.Candidate{
		{Label: "alice", Distance: 0.39},
		{Label: "bob", Distance: 1.2},
	})

	if res.Identity != "alice" {
		t.Fatalf("expected alice, got %q", res.Identity)
	}
	if !approx(res.Confidence, 0.61) {
		t.Errorf("expected confidence 0.61, got %f", res.Confidence)
	}
	if res.Decision != DecisionDirect {
		t.Errorf("expected direct decision, got %q", res.Decision)
	}
}

func TestDecide_SingleCandidateAboveAcceptRejected(t *testing.T) {
	res := DefaultPolicy().Decide([]gallery.Candidate{{Label: "alice", Distance: 0.41}})

	if res.Known() {
		t.Fatalf("expected unknown, got %q", res.Identity)
	}
	if !approx(res.Distance, 0.41) {
		t.Errorf("expected distance 0.41, got %f", res.Distance)
	}
	if !approx(res.Confidence, 0.59) {
		t.Errorf("expected confidence 0.59, got %f", res.Confidence)
	}
	if res.Decision != DecisionNoMatch {
		t.Errorf("expected no_match, got %q", res.Decision)
	}
}

func TestDecide_VoteAccepts(t *testing.T) {
	res := DefaultPolicy().Decide([]gallery.Candidate{
		{Label: "A", Distance: 0.45},
		{Label: "A", Distance: 0.50},
		{Label: "B", Distance: 0.60},
	})

	if res.Identity != "A" {
		t.Fatalf("expected A, got %q", res.Identity)
	}
	if res.Decision != DecisionVote {
		t.Errorf("expected vote decision, got %q", res.Decision)
	}
	if !approx(res.Distance, 0.45) {
		t.Errorf("expected winner distance 0.45, got %f", res.Distance)
	}
	if !approx(res.Confidence, 0.55) {
		t.Errorf("expected confidence 0.55, got %f", res.Confidence)
	}
}

func TestDecide_VoteWinnerDistanceIsClosestOfItsLabel(t *testing.T) {
	// B wins the vote although A is nearest.
	res := DefaultPolicy().Decide([]gallery.Candidate{
		{Label: "A", Distance: 0.50},
		{Label: "B", Distance: 0.51},
		{Label: "B", Distance: 0.52},
	})

	if res.Identity != "B" {
		t.Fatalf("expected B, got %q", res.Identity)
	}
	if !approx(res.Distance, 0.51) {
		t.Errorf("expected distance 0.51, got %f", res.Distance)
	}
}

func TestDecide_VoteAmbiguous(t *testing.T) {
	res := DefaultPolicy().Decide([]gallery.Candidate{
		{Label: "A", Distance: 0.45},
		{Label: "B", Distance: 0.46},
		{Label: "C", Distance: 0.47},
	})

	if res.Known() {
		t.Fatalf("expected unknown, got %q", res.Identity)
	}
	if res.Distance != 0.6 || res.Confidence != 0.4 {
		t.Errorf("expected ambiguous sentinel (0.6, 0.4), got (%f, %f)", res.Distance, res.Confidence)
	}
	if res.Decision != DecisionAmbiguous {
		t.Errorf("expected ambiguous, got %q", res.Decision)
	}
}

func TestDecide_VoteUsesOnlyTopThree(t *testing.T) {
	// Two far A entries beyond the top three must not tip the vote.
	res := DefaultPolicy().Decide([]gallery.Candidate{
		{Label: "A", Distance: 0.45},
		{Label: "B", Distance: 0.46},
		{Label: "C", Distance: 0.47},
		{Label: "A", Distance: 0.48},
		{Label: "A", Distance: 0.49},
	})

	if res.Decision != DecisionAmbiguous {
		t.Errorf("expected ambiguous, got %q (%s)", res.Decision, res.Identity)
	}
}

func TestDecide_TooFar(t *testing.T) {
	res := DefaultPolicy().Decide([]gallery.Candidate{
		{Label: "A", Distance: 0.55},
		{Label: "A", Distance: 0.56},
	})

	if res.Known() {
		t.Fatalf("expected unknown, got %q", res.Identity)
	}
	if !approx(res.Distance, 0.55) || !approx(res.Confidence, 0.45) {
		t.Errorf("expected (0.55, 0.45), got (%f, %f)", res.Distance, res.Confidence)
	}
}

func TestDecide_ConfidenceClamped(t *testing.T) {
	res := DefaultPolicy().Decide([]gallery.Candidate{{Label: "A", Distance: 1.7}})

	if res.Confidence != 0 {
		t.Errorf("expected confidence clamped to 0, got %f", res.Confidence)
	}
	if res.Distance != 1.7 {
		t.Errorf("expected raw distance 1.7, got %f", res.Distance)
	}
}

func TestDecide_CustomPolicy(t *testing.T) {
	p := DefaultPolicy()
	p.AcceptDistance = 0.5

	res := p.Decide([]gallery.Candidate{{Label: "A", Distance: 0.45}})
	if res.Identity != "A" || res.Decision != DecisionDirect {
		t.Errorf("expected direct A with relaxed threshold, got %q (%s)", res.Identity, res.Decision)
	}
}

func TestMatcher_RequestsTopK(t *testing.T) {
	s := &stubSearcher{}
	m := New(s, DefaultPolicy())

	res := m.Match([]float32{1, 0})

	if s.lastK != 5 {
		t.Errorf("expected k=5, got %d", s.lastK)
	}
	if res.Identity != Unknown || res.Decision != DecisionEmpty {
		t.Errorf("expected empty-gallery unknown, got %q (%s)", res.Identity, res.Decision)
	}
}

func TestMatcher_DecisionBoundaryAgainstGallery(t *testing.T) {
	g := gallery.New(gallery.DefaultOptions(), nil)
	vectors := map[string][]float32{
		"alice": {1, 0, 0, 0},
		"bob":   {0, 0, 1, 0},
		"carol": {0, 0, 0, 1},
	}
	identities := map[string][]gallery.SourceImage{}
	for label := range vectors {
		identities[label] = []gallery.SourceImage{{Name: label + ".jpg"}}
	}
	ex := gallery.ExtractorFunc(func(_ context.Context, identity string, _ gallery.SourceImage) ([]float32, error) {
		return vectors[identity], nil
	})
	if _, err := g.Rebuild(context.Background(), identities, ex); err != nil {
		t.Fatalf("rebuild failed: %v", err)
	}

	m := New(g, DefaultPolicy())
	res := m.Match([]float32{1, 0.39, 0, 0})

	if res.Identity != "alice" {
		t.Fatalf("expected alice, got %q", res.Identity)
	}
	if math.Abs(res.Confidence-0.61) > 1e-6 {
		t.Errorf("expected confidence ~0.61, got %f", res.Confidence)
	}
}

func TestMatcher_SingleEntryJustOutsideAccept(t *testing.T) {
	g := gallery.New(gallery.DefaultOptions(), nil)
	identities := map[string][]gallery.SourceImage{"alice": {{Name: "a.jpg"}}}
	ex := gallery.ExtractorFunc(func(context.Context, string, gallery.SourceImage) ([]float32, error) {
		return []float32{1, 0, 0, 0}, nil
	})
	if _, err := g.Rebuild(context.Background(), identities, ex); err != nil {
		t.Fatalf("rebuild failed: %v", err)
	}

	res := New(g, DefaultPolicy()).Match([]float32{1, 0.41, 0, 0})

	if res.Known() {
		t.Errorf("expected unknown, got %q", res.Identity)
	}
}

func TestPolicy_NonPositiveCountsUseDefaults(t *testing.T) {
	p := DefaultPolicy()
	p.TopK = 0
	p.VoteCandidates = -1

	s := &stubSearcher{candidates: []gallery.Candidate{
		{Label: "A", Distance: 0.45},
		{Label: "A", Distance: 0.5},
		{Label: "B", Distance: 0.9},
	}}
	m := New(s, p)
	if m.Policy().TopK != 5 || m.Policy().VoteCandidates != 3 {
		t.Errorf("expected stock counts, got %+v", m.Policy())
	}

	res := m.Match([]float32{1, 0})
	if s.lastK != 5 {
		t.Errorf("expected k=5, got %d", s.lastK)
	}
	if res.Identity != "A" || res.Decision != DecisionVote {
		t.Errorf("expected A by vote, got %q (%s)", res.Identity, res.Decision)
	}

	if direct := p.Decide(s.candidates); direct.Identity != "A" {
		t.Errorf("Decide with zero vote candidates: got %+v", direct)
	}
}

func TestMatcher_WrongDimensionQueryIsEmpty(t *testing.T) {
	g := gallery.New(gallery.DefaultOptions(), nil)
	ex := gallery.ExtractorFunc(func(context.Context, string, gallery.SourceImage) ([]float32, error) {
		return []float32{1, 0, 0, 0}, nil
	})
	if _, err := g.Rebuild(context.Background(), map[string][]gallery.SourceImage{
		"alice": {{Name: "a.jpg"}},
	}, ex); err != nil {
		t.Fatalf("rebuild failed: %v", err)
	}

	res := New(g, DefaultPolicy()).Match([]float32{1, 0})
	if res.Identity != Unknown || res.Distance != 1.0 || res.Confidence != 0.0 || res.Decision != DecisionEmpty {
		t.Errorf("expected (unknown, 1.0, 0.0, empty), got %+v", res)
	}
}
