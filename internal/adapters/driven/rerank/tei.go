// Package rerank provides relevance models for the rerank stage.
package rerank

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/lightfastai/lightfast-search/internal/core/ports/driven"
)

// Verify interface compliance
var _ driven.Reranker = (*TEIReranker)(nil)

// TEIConfig holds configuration for the TEI reranker
type TEIConfig struct {
	// BaseURL is the TEI server URL (e.g., "http://localhost:8081")
	BaseURL string

	// Model is reported in logs and usage only; TEI serves one model per server
	Model string

	// Timeout for HTTP requests (default: 5s). The rerank stage applies its own deadline too.
	Timeout time.Duration
}

// TEIReranker scores passages with a cross-encoder behind TEI's /rerank endpoint
type TEIReranker struct {
	baseURL string
	model   string
	client  *http.Client
}

type teiRequest struct {
	Query     string   `json:"query"`
	Texts     []string `json:"texts"`
	RawScores bool     `json:"raw_scores"`
	Truncate  bool     `json:"truncate"`
}

type teiResult struct {
	Index int     `json:"index"`
	Score float64 `json:"score"`
}

// NewTEIReranker creates a new TEI reranker client
func NewTEIReranker(cfg TEIConfig) (*TEIReranker, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("TEI base URL is required")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Second
	}
	if cfg.Model == "" {
		cfg.Model = "tei"
	}
	return &TEIReranker{
		baseURL: strings.TrimSuffix(cfg.BaseURL, "/"),
		model:   cfg.Model,
		client:  &http.Client{Timeout: cfg.Timeout},
	}, nil
}

// Rerank returns sigmoid relevance scores aligned with texts.
// A response that does not score every text is an error.
func (r *TEIReranker) Rerank(ctx context.Context, query string, texts []string) ([]float64, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	body, err := json.Marshal(teiRequest{Query: query, Texts: texts, Truncate: true})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.baseURL+"/rerank", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("HTTP request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("TEI rerank returned status %d: %s", resp.StatusCode, string(respBody))
	}

	var results []teiResult
	if err := json.NewDecoder(resp.Body).Decode(&results); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}

	scores := make([]float64, len(texts))
	seen := make([]bool, len(texts))
	for _, res := range results {
		if res.Index < 0 || res.Index >= len(texts) {
			return nil, fmt.Errorf("TEI rerank returned out-of-range index %d", res.Index)
		}
		scores[res.Index] = clamp01(res.Score)
		seen[res.Index] = true
	}
	for i, ok := range seen {
		if !ok {
			return nil, fmt.Errorf("TEI rerank did not score text %d", i)
		}
	}
	return scores, nil
}

func (r *TEIReranker) Name() string {
	return r.model
}

func clamp01(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	}
	return v
}
