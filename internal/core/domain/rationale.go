package domain

// Rationale is the explainability payload of a search response
type Rationale struct {
	RouterMode RouterState     `json:"routerMode"`
	Graph      *GraphRationale `json:"graph,omitempty"`
}

// GraphRationale is the union of visible subgraphs behind the results
type GraphRationale struct {
	Entities       []RationaleEntity `json:"entities"`
	Edges          []RationaleEdge   `json:"edges"`
	EvidenceChunks []string          `json:"evidenceChunks"`
}

// RationaleEntity is an entity shown in a rationale
type RationaleEntity struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Kind string `json:"kind"`
	Hop  int    `json:"hop"`
}

// RationaleEdge is a visible edge shown in a rationale
type RationaleEdge struct {
	ID         string     `json:"id"`
	Type       EdgeType   `json:"type"`
	From       string     `json:"from"`
	To         string     `json:"to"`
	Confidence float64    `json:"confidence"`
	DetectedBy DetectedBy `json:"detectedBy"`
}

// HitRationale is the minimal subgraph justifying one result
type HitRationale struct {
	Entities        []string `json:"entities"`
	Edges           []string `json:"edges"`
	Evidence        []string `json:"evidence"`
	GraphConfidence float64  `json:"graphConfidence"`
}
