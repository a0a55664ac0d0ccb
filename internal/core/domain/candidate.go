package domain

// Signal names one input to the composite score
type Signal string

const (
	SignalVector     Signal = "vector"
	SignalLexical    Signal = "lexical"
	SignalGraph      Signal = "graph"
	SignalProfile    Signal = "profile"
	SignalRecency    Signal = "recency"
	SignalImportance Signal = "importance"
)

// AllSignals lists every composite input in a stable order
func AllSignals() []Signal {
	return []Signal{SignalVector, SignalLexical, SignalGraph, SignalRecency, SignalImportance, SignalProfile}
}

// Evidence references what made a retriever emit a candidate
type Evidence struct {
	ChunkIDs  []string `json:"chunk_ids,omitempty"`
	EntityIDs []string `json:"entity_ids,omitempty"`
	EdgeIDs   []string `json:"edge_ids,omitempty"`
	Snippet   string   `json:"snippet,omitempty"`
}

// Merge appends other's references, skipping duplicates
func (e *Evidence) Merge(other Evidence) {
	e.ChunkIDs = appendUnique(e.ChunkIDs, other.ChunkIDs...)
	e.EntityIDs = appendUnique(e.EntityIDs, other.EntityIDs...)
	e.EdgeIDs = appendUnique(e.EdgeIDs, other.EdgeIDs...)
	if e.Snippet == "" {
		e.Snippet = other.Snippet
	}
}

func appendUnique(dst []string, values ...string) []string {
	for _, v := range values {
		if v == "" {
			continue
		}
		seen := false
		for _, existing := range dst {
			if existing == v {
				seen = true
				break
			}
		}
		if !seen {
			dst = append(dst, v)
		}
	}
	return dst
}

// Candidate is one (item, score, evidence) tuple from a retriever.
// Score is normalized to [0,1]; RawScore keeps the store's value.
type Candidate struct {
	Item       *Item
	Score      float64
	RawScore   float64
	Confidence float64
	Origin     ScopeLevel
	Evidence   Evidence
}

// CandidateList is the immutable output of one retriever run
type CandidateList struct {
	Signal     Signal
	Target     ScopeTarget
	Candidates []Candidate
	Traversal  *GraphTraversal
}

// Len returns the number of candidates
func (l *CandidateList) Len() int {
	if l == nil {
		return 0
	}
	return len(l.Candidates)
}

// SignalScores holds the normalized per-signal scores of one result
type SignalScores struct {
	Vector     float64 `json:"vector"`
	Lexical    float64 `json:"lexical"`
	Graph      float64 `json:"graph"`
	Profile    float64 `json:"profile"`
	Recency    float64 `json:"recency"`
	Importance float64 `json:"importance"`
}

// Get returns the score of a signal
func (s SignalScores) Get(signal Signal) float64 {
	switch signal {
	case SignalVector:
		return s.Vector
	case SignalLexical:
		return s.Lexical
	case SignalGraph:
		return s.Graph
	case SignalProfile:
		return s.Profile
	case SignalRecency:
		return s.Recency
	case SignalImportance:
		return s.Importance
	}
	return 0
}

// RetrievalResult is the per-query fused result for one item
type RetrievalResult struct {
	Item            *Item
	Scores          SignalScores
	GraphConfidence float64
	Composite       float64
	Capped          bool
	Reranked        bool
	RerankScore     float64
	Origin          ScopeLevel
	Evidence        Evidence
}

// Score is the ranking score after any rerank
func (r *RetrievalResult) Score() float64 {
	if r.Reranked {
		return r.RerankScore
	}
	return r.Composite
}

// GraphOnly reports whether the item was matched only through the graph
func (r *RetrievalResult) GraphOnly() bool {
	return r.Scores.Graph > 0 && r.Scores.Lexical == 0 && r.Scores.Vector == 0
}

// HasPrimarySignal reports whether lexical, vector or graph matched the item
func (r *RetrievalResult) HasPrimarySignal() bool {
	return r.Scores.Lexical > 0 || r.Scores.Vector > 0 || r.Scores.Graph > 0
}
