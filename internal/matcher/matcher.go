// Package matcher decides which enrolled identity, if any, a query embedding belongs to.
package matcher

import (
	"github.com/kozaktomas/face-gallery/internal/gallery"
)

// Unknown is the identity reported when no enrolled identity is accepted.
const Unknown = "unknown"

// Decision records which branch of the policy produced a result.
type Decision string

const (
	DecisionDirect    Decision = "direct"    // Best candidate close enough to accept outright
	DecisionVote      Decision = "vote"      // Accepted by weighted vote among top candidates
	DecisionAmbiguous Decision = "ambiguous" // Vote had no clear winner
	DecisionNoMatch   Decision = "no_match"  // Nearest candidate too far away
	DecisionEmpty     Decision = "empty"     // Gallery had no entries
)

// Policy holds the decision thresholds.
type Policy struct {
	// TopK is how many candidates are requested from the gallery.
	TopK int `json:"top_k"`
	// AcceptDistance accepts the best candidate directly below this distance.
	AcceptDistance float64 `json:"accept_distance"`
	// VoteDistance enables voting when the best candidate is below this distance.
	VoteDistance float64 `json:"vote_distance"`
	// VoteCandidates is how many of the nearest candidates take part in the vote.
	VoteCandidates int `json:"vote_candidates"`
	// VoteShare is the normalized weight the winning label must exceed.
	VoteShare float64 `json:"vote_share"`
	// VoteEpsilon keeps 1/(d+eps) finite for exact matches.
	VoteEpsilon float64 `json:"vote_epsilon"`
	// AmbiguousDistance and AmbiguousConfidence are reported when the vote fails.
	AmbiguousDistance   float64 `json:"ambiguous_distance"`
	AmbiguousConfidence float64 `json:"ambiguous_confidence"`
}

// DefaultPolicy returns the stock thresholds.
func DefaultPolicy() Policy {
	return Policy{
		TopK:                5,
		AcceptDistance:      0.4,
		VoteDistance:        0.55,
		VoteCandidates:      3,
		VoteShare:           0.6,
		VoteEpsilon:         0.01,
		AmbiguousDistance:   0.6,
		AmbiguousConfidence: 0.4,
	}
}

// withDefaults replaces non-positive candidate counts with the stock values.
func (p Policy) withDefaults() Policy {
	def := DefaultPolicy()
	if p.TopK <= 0 {
		p.TopK = def.TopK
	}
	if p.VoteCandidates <= 0 {
		p.VoteCandidates = def.VoteCandidates
	}
	return p
}

// Searcher ranks gallery entries against a query.
type Searcher interface {
	Search(query []float32, k int) []gallery.Candidate
}

// Result is the outcome of matching one query embedding.
type Result struct {
	Identity   string              `json:"name"`
	Distance   float64             `json:"distance"`
	Confidence float64             `json:"confidence"`
	Decision   Decision            `json:"decision"`
	Candidates []gallery.Candidate `json:"-"`
}

// Known reports whether an enrolled identity was accepted.
func (r Result) Known() bool {
	return r.Identity != Unknown
}

// Matcher applies a Policy to the candidates a Searcher returns.
type Matcher struct {
	searcher Searcher
	policy   Policy
}

// New creates a matcher over searcher. Non-positive TopK or VoteCandidates
// fall back to the stock values.
func New(searcher Searcher, policy Policy) *Matcher {
	return &Matcher{searcher: searcher, policy: policy.withDefaults()}
}

// Policy returns the active thresholds.
func (m *Matcher) Policy() Policy {
	return m.policy
}

// Match finds the identity of query. It never fails: an empty gallery or a
// poor match yields Unknown.
func (m *Matcher) Match(query []float32) Result {
	return m.policy.Decide(m.searcher.Search(query, m.policy.TopK))
}

// Decide applies the policy to candidates sorted ascending by distance.
func (p Policy) Decide(candidates []gallery.Candidate) Result {
	p = p.withDefaults()
	if len(candidates) == 0 {
		return Result{Identity: Unknown, Distance: 1.0, Confidence: 0.0, Decision: DecisionEmpty}
	}

	best := candidates[0]
	if best.Distance < p.AcceptDistance {
		return Result{
			Identity:   best.Label,
			Distance:   best.Distance,
			Confidence: confidence(best.Distance),
			Decision:   DecisionDirect,
			Candidates: candidates,
		}
	}

	if best.Distance < p.VoteDistance && len(candidates) >= 2 {
		return p.vote(candidates)
	}

	return Result{
		Identity:   Unknown,
		Distance:   best.Distance,
		Confidence: confidence(best.Distance),
		Decision:   DecisionNoMatch,
		Candidates: candidates,
	}
}

// vote weights each of the top candidates by 1/(d+eps), normalizes the weights
// and accumulates them per label. Ties go to the label seen first (closest).
func (p Policy) vote(candidates []gallery.Candidate) Result {
	top := candidates[:min(p.VoteCandidates, len(candidates))]

	weights := make([]float64, len(top))
	total := 0.0
	for i, c := range top {
		weights[i] = 1 / (c.Distance + p.VoteEpsilon)
		total += weights[i]
	}

	var order []string
	share := make(map[string]float64, len(top))
	for i, c := range top {
		if _, seen := share[c.Label]; !seen {
			order = append(order, c.Label)
		}
		share[c.Label] += weights[i] / total
	}

	winner := order[0]
	for _, label := range order[1:] {
		if share[label] > share[winner] {
			winner = label
		}
	}

	if share[winner] <= p.VoteShare {
		return Result{
			Identity:   Unknown,
			Distance:   p.AmbiguousDistance,
			Confidence: p.AmbiguousConfidence,
			Decision:   DecisionAmbiguous,
			Candidates: candidates,
		}
	}

	// top is sorted, so the first candidate with the winning label is its closest.
	var dist float64
	for _, c := range top {
		if c.Label == winner {
			dist = c.Distance
			break
		}
	}
	return Result{
		Identity:   winner,
		Distance:   dist,
		Confidence: confidence(dist),
		Decision:   DecisionVote,
		Candidates: candidates,
	}
}

// confidence maps a distance to 1-d clamped to [0, 1].
func confidence(distance float64) float64 {
	return max(0, min(1, 1-distance))
}
