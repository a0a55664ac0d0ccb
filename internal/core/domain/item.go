package domain

import "time"

// ItemKind is the kind of retrievable unit behind a result
type ItemKind string

const (
	ItemKindObservation ItemKind = "observation"
	ItemKindDocument    ItemKind = "document"
)

// Visibility is the privacy flag carried by every retrievable item
type Visibility string

const (
	VisibilityOrg       Visibility = "org"
	VisibilityWorkspace Visibility = "workspace"
	VisibilityPrivate   Visibility = "private"
)

// Item is the retrieval-time projection of an observation or document.
// ID is the dedup key: the document ID or the observation ID.
type Item struct {
	ID             string     `json:"id"`
	Kind           ItemKind   `json:"kind"`
	ChunkID        string     `json:"chunk_id,omitempty"`
	WorkspaceID    string     `json:"workspace_id"`
	OrganizationID string     `json:"organization_id"`
	Source         string     `json:"source"`
	Type           string     `json:"type"`
	Title          string     `json:"title"`
	Text           string     `json:"text,omitempty"`
	Author         string     `json:"author,omitempty"`
	ActorID        string     `json:"actor_id,omitempty"`
	URL            string     `json:"url,omitempty"`
	OccurredAt     time.Time  `json:"occurred_at"`
	Significance   int        `json:"significance"`
	Labels         []string   `json:"labels,omitempty"`
	Visibility     Visibility `json:"visibility"`
}

// Importance normalizes the stored significance score to [0,1]
func (i *Item) Importance() float64 {
	switch {
	case i.Significance <= 0:
		return 0
	case i.Significance >= 100:
		return 1
	}
	return float64(i.Significance) / 100
}

// VisibleTo reports whether the item may be returned to a caller
// searching from workspaceID in organizationID as actorID. Items of another
// organization are never visible, whatever their visibility.
func (i *Item) VisibleTo(organizationID, workspaceID, actorID string) bool {
	if organizationID != "" && i.OrganizationID != "" && i.OrganizationID != organizationID {
		return false
	}
	switch i.Visibility {
	case VisibilityPrivate:
		return actorID != "" && i.ActorID == actorID
	case VisibilityWorkspace:
		return i.WorkspaceID == "" || i.WorkspaceID == workspaceID
	default:
		return true
	}
}

// NeedsHydration is true when display fields are missing
func (i *Item) NeedsHydration() bool {
	return i.Title == "" || i.Source == "" || i.OccurredAt.IsZero()
}

// MergeMissing copies fields that are empty on i from other
func (i *Item) MergeMissing(other *Item) {
	if other == nil {
		return
	}
	if i.Kind == "" {
		i.Kind = other.Kind
	}
	if i.Title == "" {
		i.Title = other.Title
	}
	if i.Text == "" {
		i.Text = other.Text
	}
	if i.Source == "" {
		i.Source = other.Source
	}
	if i.Type == "" {
		i.Type = other.Type
	}
	if i.Author == "" {
		i.Author = other.Author
	}
	if i.ActorID == "" {
		i.ActorID = other.ActorID
	}
	if i.URL == "" {
		i.URL = other.URL
	}
	if i.OccurredAt.IsZero() {
		i.OccurredAt = other.OccurredAt
	}
	if i.Significance == 0 {
		i.Significance = other.Significance
	}
	if len(i.Labels) == 0 {
		i.Labels = other.Labels
	}
	if i.WorkspaceID == "" {
		i.WorkspaceID = other.WorkspaceID
	}
	if i.OrganizationID == "" {
		i.OrganizationID = other.OrganizationID
	}
	if i.Visibility == "" {
		i.Visibility = other.Visibility
	}
}
