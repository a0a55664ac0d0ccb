package vespa

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/lightfastai/lightfast-search/internal/core/domain"
	"github.com/lightfastai/lightfast-search/internal/core/ports/driven"
)

// Verify interface compliance
var _ driven.VectorIndex = (*VectorIndex)(nil)

// Config holds Vespa connection configuration
type Config struct {
	// BaseURL is the Vespa query/document endpoint (e.g., http://localhost:8080)
	BaseURL string

	// DocumentNamespace is the document/v1 namespace holding item vectors
	DocumentNamespace string

	// Timeout for HTTP requests
	Timeout time.Duration

	// TargetHitsFactor widens the ANN candidate set relative to topK
	TargetHitsFactor int
}

// DefaultConfig returns sensible defaults
func DefaultConfig(baseURL string) Config {
	return Config{
		BaseURL:           baseURL,
		DocumentNamespace: "lightfast",
		Timeout:           5 * time.Second,
		TargetHitsFactor:  2,
	}
}

// VectorIndex implements driven.VectorIndex using Vespa nearestNeighbor queries.
// Every document carries its namespace (ws_<id>:<family> or org_<id>:<family>)
// so a single "item" schema serves every tenant and family.
type VectorIndex struct {
	baseURL    string
	docNS      string
	factor     int
	httpClient *http.Client
}

// NewVectorIndex creates a new Vespa-backed VectorIndex
func NewVectorIndex(cfg Config) (*VectorIndex, error) {
	base, err := validateEndpoint(cfg.BaseURL)
	if err != nil {
		return nil, err
	}
	if cfg.DocumentNamespace == "" {
		cfg.DocumentNamespace = "lightfast"
	}
	if cfg.TargetHitsFactor <= 0 {
		cfg.TargetHitsFactor = 2
	}
	return &VectorIndex{
		baseURL: base,
		docNS:   cfg.DocumentNamespace,
		factor:  cfg.TargetHitsFactor,
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
	}, nil
}

// validateEndpoint accepts http(s) URLs only and strips a trailing slash
func validateEndpoint(endpoint string) (string, error) {
	if endpoint == "" {
		return "", errors.New("vespa endpoint is required")
	}
	u, err := url.Parse(endpoint)
	if err != nil {
		return "", fmt.Errorf("invalid vespa endpoint: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", fmt.Errorf("invalid vespa endpoint scheme %q", u.Scheme)
	}
	if u.Host == "" {
		return "", errors.New("vespa endpoint has no host")
	}
	return strings.TrimSuffix(endpoint, "/"), nil
}

// vespaFields is the item document as stored in Vespa
type vespaFields struct {
	ID             string    `json:"id"`
	Kind           string    `json:"kind"`
	ChunkID        string    `json:"chunk_id"`
	Namespace      string    `json:"namespace"`
	WorkspaceID    string    `json:"workspace_id"`
	OrganizationID string    `json:"organization_id"`
	Source         string    `json:"source"`
	Type           string    `json:"type"`
	Title          string    `json:"title"`
	Content        string    `json:"content"`
	Author         string    `json:"author"`
	ActorID        string    `json:"actor_id"`
	URL            string    `json:"url"`
	OccurredAt     int64     `json:"occurred_at"`
	Significance   int       `json:"significance"`
	Labels         []string  `json:"labels"`
	Visibility     string    `json:"visibility"`
	Embedding      []float32 `json:"embedding,omitempty"`
}

func (f *vespaFields) item() *domain.Item {
	item := &domain.Item{
		ID:             f.ID,
		Kind:           domain.ItemKind(f.Kind),
		ChunkID:        f.ChunkID,
		WorkspaceID:    f.WorkspaceID,
		OrganizationID: f.OrganizationID,
		Source:         f.Source,
		Type:           f.Type,
		Title:          f.Title,
		Text:           f.Content,
		Author:         f.Author,
		ActorID:        f.ActorID,
		URL:            f.URL,
		Significance:   f.Significance,
		Labels:         f.Labels,
		Visibility:     domain.Visibility(f.Visibility),
	}
	if f.OccurredAt > 0 {
		item.OccurredAt = time.Unix(f.OccurredAt, 0).UTC()
	}
	return item
}

// vespaSearchResponse represents Vespa's search response format
type vespaSearchResponse struct {
	Root struct {
		Children []struct {
			Relevance float64     `json:"relevance"`
			Fields    vespaFields `json:"fields"`
		} `json:"children"`
		Errors []struct {
			Message string `json:"message"`
		} `json:"errors"`
	} `json:"root"`
}

// Query runs a nearestNeighbor query restricted to one namespace.
// The "cosine" rank profile scores hits by cosine similarity.
func (v *VectorIndex) Query(ctx context.Context, q driven.VectorQuery) ([]driven.VectorHit, error) {
	if len(q.Vector) == 0 {
		return nil, errors.New("vespa query: empty vector")
	}
	topK := q.TopK
	if topK <= 0 {
		topK = 10
	}

	searchReq := map[string]interface{}{
		"yql":                    buildYQL(q.Namespace, q.OrganizationID, topK*v.factor, q.Filters),
		"hits":                   topK,
		"ranking.profile":        "cosine",
		"input.query(embedding)": q.Vector,
	}
	body, err := json.Marshal(searchReq)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, v.baseURL+"/search/", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := v.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("vespa query: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		respBody, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("vespa query failed: %s - %s", resp.Status, string(respBody))
	}

	var searchResp vespaSearchResponse
	if err := json.NewDecoder(resp.Body).Decode(&searchResp); err != nil {
		return nil, fmt.Errorf("decode vespa response: %w", err)
	}
	if len(searchResp.Root.Errors) > 0 {
		return nil, fmt.Errorf("vespa query failed: %s", searchResp.Root.Errors[0].Message)
	}

	hits := make([]driven.VectorHit, 0, len(searchResp.Root.Children))
	for _, child := range searchResp.Root.Children {
		fields := child.Fields
		hits = append(hits, driven.VectorHit{Item: fields.item(), Score: child.Relevance})
	}
	return hits, nil
}

// buildYQL selects items of one namespace near the query embedding.
// Source, type and time filters are pushed down; the rest are applied by the caller.
func buildYQL(namespace, organizationID string, targetHits int, f domain.Filters) string {
	conditions := []string{
		fmt.Sprintf("namespace contains %s", quote(namespace)),
		fmt.Sprintf("({targetHits:%d}nearestNeighbor(embedding,embedding))", targetHits),
	}
	if organizationID != "" {
		conditions = append(conditions, fmt.Sprintf("organization_id contains %s", quote(organizationID)))
	}
	if len(f.Sources) > 0 {
		conditions = append(conditions, anyOf("source", f.Sources))
	}
	if len(f.Types) > 0 {
		conditions = append(conditions, anyOf("type", f.Types))
	}
	if f.After != nil {
		conditions = append(conditions, fmt.Sprintf("occurred_at >= %d", f.After.Unix()))
	}
	if f.Before != nil {
		conditions = append(conditions, fmt.Sprintf("occurred_at <= %d", f.Before.Unix()))
	}
	return "select * from item where " + strings.Join(conditions, " and ")
}

func anyOf(field string, values []string) string {
	parts := make([]string, len(values))
	for i, v := range values {
		parts[i] = fmt.Sprintf("%s contains %s", field, quote(strings.ToLower(v)))
	}
	return "(" + strings.Join(parts, " or ") + ")"
}

// quote escapes a YQL string literal
func quote(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	return `"` + strings.ReplaceAll(s, `"`, `\"`) + `"`
}

// Fetch returns the stored embedding of an item or chunk.
// Documents are grouped by namespace so the same id may exist in several families.
func (v *VectorIndex) Fetch(ctx context.Context, namespace, id string) ([]float32, error) {
	endpoint := fmt.Sprintf("%s/document/v1/%s/item/group/%s/%s?format.tensors=short-value",
		v.baseURL, v.docNS, url.PathEscape(namespace), url.PathEscape(id))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}

	resp, err := v.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("vespa fetch: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, domain.ErrNotFound
	}
	if resp.StatusCode >= 400 {
		respBody, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("vespa fetch failed: %s - %s", resp.Status, string(respBody))
	}

	var doc struct {
		Fields vespaFields `json:"fields"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&doc); err != nil {
		return nil, fmt.Errorf("decode vespa document: %w", err)
	}
	if len(doc.Fields.Embedding) == 0 {
		return nil, domain.ErrNotFound
	}
	return doc.Fields.Embedding, nil
}

// HealthCheck verifies the Vespa container is up
func (v *VectorIndex) HealthCheck(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, v.baseURL+"/state/v1/health", nil)
	if err != nil {
		return err
	}

	resp, err := v.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("vespa health check failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("vespa unhealthy: %s", resp.Status)
	}
	return nil
}
