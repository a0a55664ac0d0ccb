package domain

import "time"

// FusionWeights are the per-signal weights of the composite score
type FusionWeights struct {
	Vector     float64 `json:"vector"`
	Lexical    float64 `json:"lexical"`
	Graph      float64 `json:"graph"`
	Recency    float64 `json:"recency"`
	Importance float64 `json:"importance"`
	Profile    float64 `json:"profile"`
}

// DefaultFusionWeights is the baseline used when a workspace has no calibration
func DefaultFusionWeights() FusionWeights {
	return FusionWeights{
		Vector:     0.35,
		Lexical:    0.30,
		Graph:      0.15,
		Recency:    0.10,
		Importance: 0.07,
		Profile:    0.03,
	}
}

// Sum returns the total weight
func (w FusionWeights) Sum() float64 {
	return w.Vector + w.Lexical + w.Graph + w.Recency + w.Importance + w.Profile
}

// For returns the weight of a signal
func (w FusionWeights) For(signal Signal) float64 {
	switch signal {
	case SignalVector:
		return w.Vector
	case SignalLexical:
		return w.Lexical
	case SignalGraph:
		return w.Graph
	case SignalRecency:
		return w.Recency
	case SignalImportance:
		return w.Importance
	case SignalProfile:
		return w.Profile
	}
	return 0
}

// RerankMode selects how model relevance is combined with retained signals
type RerankMode string

const (
	RerankModeBalanced RerankMode = "balanced"
	RerankModeThorough RerankMode = "thorough"
)

// Calibration defaults
const (
	DefaultRerankThreshold = 0.2
	DefaultRerankWindow    = 50
	DefaultRecallFloor     = 3
	DefaultScopeBiasDelta  = 0.05
	DefaultRecencyHalfLife = 14 * 24 * time.Hour
)

// Calibration is the workspace-specific ranking configuration.
// It is fetched once per query and treated as immutable for that query.
type Calibration struct {
	WorkspaceID            string        `json:"workspace_id"`
	Weights                FusionWeights `json:"weights"`
	RerankThreshold        float64       `json:"rerank_threshold"`
	RerankMode             RerankMode    `json:"rerank_mode"`
	RerankWindow           int           `json:"rerank_window"`
	RecallFloor            int           `json:"recall_floor"`
	ScopeBiasDelta         float64       `json:"scope_bias_delta"`
	RecencyHalfLife        time.Duration `json:"recency_half_life"`
	PersonalizationEnabled bool          `json:"personalization_enabled"`
	UpdatedAt              time.Time     `json:"updated_at"`
}

// DefaultCalibration returns the baseline calibration for a workspace
func DefaultCalibration(workspaceID string) *Calibration {
	return &Calibration{
		WorkspaceID:            workspaceID,
		Weights:                DefaultFusionWeights(),
		RerankThreshold:        DefaultRerankThreshold,
		RerankMode:             RerankModeBalanced,
		RerankWindow:           DefaultRerankWindow,
		RecallFloor:            DefaultRecallFloor,
		ScopeBiasDelta:         DefaultScopeBiasDelta,
		RecencyHalfLife:        DefaultRecencyHalfLife,
		PersonalizationEnabled: true,
	}
}

// Normalize replaces out-of-range values with defaults
func (c *Calibration) Normalize() {
	w := &c.Weights
	for _, v := range []*float64{&w.Vector, &w.Lexical, &w.Graph, &w.Recency, &w.Importance, &w.Profile} {
		if *v < 0 {
			*v = 0
		}
	}
	if w.Sum() == 0 {
		c.Weights = DefaultFusionWeights()
	}
	if c.RerankThreshold < 0 || c.RerankThreshold > 1 {
		c.RerankThreshold = DefaultRerankThreshold
	}
	if c.RerankMode != RerankModeBalanced && c.RerankMode != RerankModeThorough {
		c.RerankMode = RerankModeBalanced
	}
	if c.RerankWindow <= 0 {
		c.RerankWindow = DefaultRerankWindow
	}
	if c.RecallFloor < 0 {
		c.RecallFloor = DefaultRecallFloor
	}
	if c.ScopeBiasDelta < 0 {
		c.ScopeBiasDelta = 0
	}
	if c.RecencyHalfLife <= 0 {
		c.RecencyHalfLife = DefaultRecencyHalfLife
	}
}
