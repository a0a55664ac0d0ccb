package domain

import (
	"math"
	"testing"
	"time"
)

func TestItemImportance(t *testing.T) {
	tests := []struct {
		significance int
		want         float64
	}{
		{-5, 0},
		{0, 0},
		{40, 0.4},
		{100, 1},
		{150, 1},
	}
	for _, tt := range tests {
		item := &Item{Significance: tt.significance}
		if got := item.Importance(); math.Abs(got-tt.want) > 1e-9 {
			t.Errorf("Importance(%d) = %v, want %v", tt.significance, got, tt.want)
		}
	}
}

func TestItemVisibleTo(t *testing.T) {
	tests := []struct {
		name string
		item Item
		org  string
		ws   string
		act  string
		want bool
	}{
		{"org visible anywhere", Item{Visibility: VisibilityOrg, WorkspaceID: "ws_a"}, "", "ws_b", "", true},
		{"workspace same", Item{Visibility: VisibilityWorkspace, WorkspaceID: "ws_a"}, "", "ws_a", "", true},
		{"workspace other", Item{Visibility: VisibilityWorkspace, WorkspaceID: "ws_a"}, "", "ws_b", "", false},
		{"private owner", Item{Visibility: VisibilityPrivate, ActorID: "u1"}, "", "ws_a", "u1", true},
		{"private other", Item{Visibility: VisibilityPrivate, ActorID: "u1"}, "", "ws_a", "u2", false},
		{"private anonymous", Item{Visibility: VisibilityPrivate, ActorID: "u1"}, "", "ws_a", "", false},
		{"unset visibility", Item{}, "", "ws_a", "", true},
		{"same org", Item{Visibility: VisibilityWorkspace, OrganizationID: "org_1", WorkspaceID: "ws_a"}, "org_1", "ws_a", "", true},
		{"other org workspace item", Item{Visibility: VisibilityWorkspace, OrganizationID: "org_2", WorkspaceID: "ws_a"}, "org_1", "ws_a", "", false},
		{"other org org item", Item{Visibility: VisibilityOrg, OrganizationID: "org_2"}, "org_1", "ws_a", "", false},
		{"other org own private item", Item{Visibility: VisibilityPrivate, OrganizationID: "org_2", ActorID: "u1"}, "org_1", "ws_a", "u1", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.item.VisibleTo(tt.org, tt.ws, tt.act); got != tt.want {
				t.Errorf("VisibleTo() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestItemMergeMissing(t *testing.T) {
	occurred := time.Date(2025, 1, 2, 0, 0, 0, 0, time.UTC)
	item := &Item{ID: "doc_1", Title: "kept"}
	item.MergeMissing(&Item{
		ID:         "doc_1",
		Title:      "ignored",
		Source:     "github",
		URL:        "https://example.com/pr/1",
		OccurredAt: occurred,
	})

	if item.Title != "kept" {
		t.Errorf("expected existing title to be kept, got %q", item.Title)
	}
	if item.Source != "github" || item.URL == "" || !item.OccurredAt.Equal(occurred) {
		t.Errorf("expected missing fields to be filled, got %+v", item)
	}
	if item.NeedsHydration() {
		t.Error("expected hydrated item not to need hydration")
	}

	item.MergeMissing(nil)
}

func TestCosineSimilarity(t *testing.T) {
	if got := CosineSimilarity([]float32{1, 0}, []float32{1, 0}); math.Abs(got-1) > 1e-9 {
		t.Errorf("expected 1 for identical vectors, got %v", got)
	}
	if got := CosineSimilarity([]float32{1, 0}, []float32{-1, 0}); math.Abs(got+1) > 1e-9 {
		t.Errorf("expected -1 for opposite vectors, got %v", got)
	}
	if got := CosineSimilarity([]float32{1, 0}, []float32{0, 1}); math.Abs(got) > 1e-9 {
		t.Errorf("expected 0 for orthogonal vectors, got %v", got)
	}
	if CosineSimilarity([]float32{1}, []float32{1, 2}) != 0 {
		t.Error("expected mismatched dimensions to score 0")
	}
	if CosineSimilarity([]float32{0, 0}, []float32{1, 2}) != 0 {
		t.Error("expected zero vector to score 0")
	}
}

func TestEvidenceMerge(t *testing.T) {
	e := Evidence{ChunkIDs: []string{"c1"}, EntityIDs: []string{"e1"}}
	e.Merge(Evidence{ChunkIDs: []string{"c1", "c2"}, EdgeIDs: []string{"r1", ""}, Snippet: "text"})

	if len(e.ChunkIDs) != 2 || e.ChunkIDs[1] != "c2" {
		t.Errorf("unexpected chunk ids %v", e.ChunkIDs)
	}
	if len(e.EdgeIDs) != 1 {
		t.Errorf("expected empty ids to be skipped, got %v", e.EdgeIDs)
	}
	if e.Snippet != "text" {
		t.Errorf("expected snippet to be adopted, got %q", e.Snippet)
	}
}

func TestScopeTargetNamespace(t *testing.T) {
	ws := WorkspaceTarget("org_1", "ws_123")
	if got := ws.Namespace(VectorFamilyChunks); got != "ws_ws_123:chunks" {
		t.Errorf("unexpected workspace namespace %q", got)
	}
	org := OrgTarget("org_1")
	if got := org.Namespace(VectorFamilyObservations); got != "org_org_1:observations" {
		t.Errorf("unexpected org namespace %q", got)
	}
}
