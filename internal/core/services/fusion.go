package services

import (
	"math"
	"sort"
	"time"

	"github.com/lightfastai/lightfast-search/internal/core/domain"
)

// GraphOnlyCap scales graph confidence into the ceiling for graph-only results
const GraphOnlyCap = 0.85

// FusionOptions tunes one fusion pass
type FusionOptions struct {
	// TopK truncates the output; 0 keeps everything
	TopK int
	// ScopeBias is added to workspace-origin composites when merging an org fallback
	ScopeBias float64
}

// Fuse merges candidate lists into one deduplicated, deterministically ordered
// result set. It is a pure function of its inputs and is commutative over lists.
// Items that only the profile retriever produced are not admitted.
func Fuse(lists []*domain.CandidateList, cal *domain.Calibration, now time.Time, opts FusionOptions) []*domain.RetrievalResult {
	if cal == nil {
		cal = domain.DefaultCalibration("")
	}

	ordered := make([]*domain.CandidateList, 0, len(lists))
	for _, l := range lists {
		if l != nil {
			ordered = append(ordered, l)
		}
	}
	sort.SliceStable(ordered, func(i, j int) bool {
		if ordered[i].Signal != ordered[j].Signal {
			return ordered[i].Signal < ordered[j].Signal
		}
		return ordered[i].Target.Level > ordered[j].Target.Level // workspace before org
	})

	byID := make(map[string]*domain.RetrievalResult)
	for _, list := range ordered {
		for _, c := range list.Candidates {
			if c.Item == nil {
				continue
			}
			r, ok := byID[c.Item.ID]
			if !ok {
				item := *c.Item
				r = &domain.RetrievalResult{Item: &item, Origin: c.Origin}
				byID[c.Item.ID] = r
			} else {
				r.Item.MergeMissing(c.Item)
			}
			if c.Origin == domain.ScopeLevelWorkspace {
				r.Origin = domain.ScopeLevelWorkspace
			}
			setMax(&r.Scores, list.Signal, clamp01(c.Score))
			if list.Signal == domain.SignalGraph && c.Confidence > r.GraphConfidence {
				r.GraphConfidence = clamp01(c.Confidence)
			}
			r.Evidence.Merge(c.Evidence)
		}
	}

	results := make([]*domain.RetrievalResult, 0, len(byID))
	for _, r := range byID {
		if !r.HasPrimarySignal() {
			continue
		}
		r.Scores.Recency = RecencyScore(r.Item.OccurredAt, now, cal.RecencyHalfLife)
		r.Scores.Importance = r.Item.Importance()

		composite := weightedSum(r.Scores, cal.Weights)
		if opts.ScopeBias > 0 && r.Origin == domain.ScopeLevelWorkspace {
			composite += opts.ScopeBias
		}
		if r.GraphOnly() {
			if limit := GraphOnlyCap * r.GraphConfidence; composite > limit {
				composite = limit
				r.Capped = true
			}
		}
		r.Composite = composite
		results = append(results, r)
	}

	SortResults(results)
	if opts.TopK > 0 && len(results) > opts.TopK {
		results = results[:opts.TopK]
	}
	return results
}

// SortResults orders by score desc, then occurredAt desc, then ID asc
func SortResults(results []*domain.RetrievalResult) {
	sort.SliceStable(results, func(i, j int) bool {
		a, b := results[i], results[j]
		if a.Score() != b.Score() {
			return a.Score() > b.Score()
		}
		if !a.Item.OccurredAt.Equal(b.Item.OccurredAt) {
			return a.Item.OccurredAt.After(b.Item.OccurredAt)
		}
		return a.Item.ID < b.Item.ID
	})
}

// RecencyScore decays exponentially with age. Future timestamps score 1,
// unknown timestamps 0.
func RecencyScore(occurredAt, now time.Time, halfLife time.Duration) float64 {
	if occurredAt.IsZero() {
		return 0
	}
	if halfLife <= 0 {
		halfLife = domain.DefaultRecencyHalfLife
	}
	age := now.Sub(occurredAt)
	if age <= 0 {
		return 1
	}
	return math.Exp(-math.Ln2 * float64(age) / float64(halfLife))
}

// ContributionShares is each signal's share of the summed weighted scores of results
func ContributionShares(results []*domain.RetrievalResult, weights domain.FusionWeights) map[domain.Signal]float64 {
	parts := make(map[domain.Signal]float64, 6)
	var total float64
	for _, r := range results {
		for _, s := range domain.AllSignals() {
			v := weights.For(s) * r.Scores.Get(s)
			parts[s] += v
			total += v
		}
	}

	shares := make(map[domain.Signal]float64, len(parts))
	for _, s := range domain.AllSignals() {
		if total == 0 {
			shares[s] = 0
			continue
		}
		shares[s] = math.Round(parts[s]/total*10000) / 10000
	}
	return shares
}

func weightedSum(s domain.SignalScores, w domain.FusionWeights) float64 {
	return w.Vector*s.Vector +
		w.Lexical*s.Lexical +
		w.Graph*s.Graph +
		w.Recency*s.Recency +
		w.Importance*s.Importance +
		w.Profile*s.Profile
}

func setMax(s *domain.SignalScores, signal domain.Signal, v float64) {
	switch signal {
	case domain.SignalVector:
		s.Vector = math.Max(s.Vector, v)
	case domain.SignalLexical:
		s.Lexical = math.Max(s.Lexical, v)
	case domain.SignalGraph:
		s.Graph = math.Max(s.Graph, v)
	case domain.SignalProfile:
		s.Profile = math.Max(s.Profile, v)
	}
}
