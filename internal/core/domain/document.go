package domain

import "time"

// SignificanceGate is the minimum significance an event needs to become an observation
const SignificanceGate = 40

// Category is the classification of an observation
type Category string

const (
	CategoryBugFix         Category = "bug_fix"
	CategoryFeature        Category = "feature"
	CategoryRefactor       Category = "refactor"
	CategoryDocumentation  Category = "documentation"
	CategoryTesting        Category = "testing"
	CategoryInfrastructure Category = "infrastructure"
	CategorySecurity       Category = "security"
	CategoryPerformance    Category = "performance"
	CategoryIncident       Category = "incident"
	CategoryDecision       Category = "decision"
	CategoryDiscussion     Category = "discussion"
	CategoryRelease        Category = "release"
	CategoryDeployment     Category = "deployment"
	CategoryOther          Category = "other"
)

// Categories lists every observation category
func Categories() []Category {
	return []Category{
		CategoryBugFix, CategoryFeature, CategoryRefactor, CategoryDocumentation,
		CategoryTesting, CategoryInfrastructure, CategorySecurity, CategoryPerformance,
		CategoryIncident, CategoryDecision, CategoryDiscussion, CategoryRelease,
		CategoryDeployment, CategoryOther,
	}
}

// Valid reports whether c is a known category
func (c Category) Valid() bool {
	for _, known := range Categories() {
		if c == known {
			return true
		}
	}
	return false
}

// Observation is an atomic capture of a discrete engineering event.
// Written by ingestion; read-only here.
type Observation struct {
	ID             string            `json:"id"`
	WorkspaceID    string            `json:"workspace_id"`
	OrganizationID string            `json:"organization_id"`
	Source         string            `json:"source"`
	SourceType     string            `json:"source_type"`
	Title          string            `json:"title"`
	Body           string            `json:"body"`
	ActorID        string            `json:"actor_id,omitempty"`
	OccurredAt     time.Time         `json:"occurred_at"`
	Significance   int               `json:"significance"`
	Category       Category          `json:"category"`
	Topics         []string          `json:"topics,omitempty"`
	EmbeddingRefs  map[string]string `json:"embedding_refs,omitempty"`
	Visibility     Visibility        `json:"visibility"`
}

// PassesSignificanceGate reports whether the observation clears the ingestion gate
func (o *Observation) PassesSignificanceGate() bool {
	return o.Significance >= SignificanceGate
}

// AsItem projects the observation to a retrievable item
func (o *Observation) AsItem() *Item {
	return &Item{
		ID:             o.ID,
		Kind:           ItemKindObservation,
		WorkspaceID:    o.WorkspaceID,
		OrganizationID: o.OrganizationID,
		Source:         o.Source,
		Type:           o.SourceType,
		Title:          o.Title,
		Text:           o.Body,
		ActorID:        o.ActorID,
		OccurredAt:     o.OccurredAt,
		Significance:   o.Significance,
		Labels:         o.Topics,
		Visibility:     o.Visibility,
	}
}

// Document is a versioned retrievable unit split into chunks
type Document struct {
	ID          string    `json:"id"`
	WorkspaceID string    `json:"workspace_id"`
	Source      string    `json:"source"`
	SourceID    string    `json:"source_id"`
	Title       string    `json:"title"`
	Summary     string    `json:"summary,omitempty"`
	ContentRef  string    `json:"content_ref,omitempty"`
	ContentHash string    `json:"content_hash"`
	Lineage     []string  `json:"lineage,omitempty"`
	Version     int       `json:"version"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// NeedsReingest is false when the incoming content hash is unchanged
func (d *Document) NeedsReingest(contentHash string) bool {
	return d.ContentHash != contentHash
}

// Chunk is a segment of a document version with its own embedding
type Chunk struct {
	ID           string     `json:"id"`
	DocumentID   string     `json:"document_id"`
	Version      int        `json:"version"`
	Content      string     `json:"content"`
	Position     int        `json:"position"`
	SupersededAt *time.Time `json:"superseded_at,omitempty"`
}

// Active is true for chunks of the current document version
func (c *Chunk) Active() bool {
	return c.SupersededAt == nil
}
