package rerank

import (
	"fmt"
	"strings"
	"time"

	"github.com/lightfastai/lightfast-search/internal/core/ports/driven"
)

// Reranker providers
const (
	ProviderTEI     = "tei"
	ProviderOverlap = "overlap"
	ProviderNone    = "none"
)

// New creates the configured reranker. The "none" provider returns nil and
// every search then falls back to fused order.
func New(provider, baseURL string, timeout time.Duration) (driven.Reranker, error) {
	switch strings.ToLower(provider) {
	case ProviderTEI:
		r, err := NewTEIReranker(TEIConfig{BaseURL: baseURL, Timeout: timeout})
		if err != nil {
			return nil, err
		}
		return r, nil
	case ProviderOverlap:
		return NewOverlapReranker(), nil
	case "", ProviderNone:
		return nil, nil
	default:
		return nil, fmt.Errorf("unknown rerank provider: %s", provider)
	}
}
