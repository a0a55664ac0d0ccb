package domain

import (
	"math"
	"time"
)

// Profile is a per-entity centroid vector used only as a scoring bias
type Profile struct {
	EntityID    string    `json:"entity_id"`
	WorkspaceID string    `json:"workspace_id"`
	Centroid    []float32 `json:"-"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// ProfileKey identifies a profile. Profiles are per workspace, so the same
// actor may carry a different centroid in each workspace.
type ProfileKey struct {
	WorkspaceID string
	EntityID    string
}

// CosineSimilarity returns the cosine of the angle between a and b.
// Mismatched or zero vectors score 0.
func CosineSimilarity(a, b []float32) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		na += x * x
		nb += y * y
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}
