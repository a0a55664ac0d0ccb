package ai

import (
	"fmt"
	"strings"
	"time"

	"github.com/lightfastai/lightfast-search/internal/core/ports/driven"
)

// Embedding providers
const (
	ProviderOpenAI  = "openai"
	ProviderHashing = "hashing"
	ProviderNone    = "none"
)

// EmbeddingConfig selects and configures the query embedder
type EmbeddingConfig struct {
	Provider   string
	APIKey     string
	Model      string
	BaseURL    string
	Dimensions int
	Timeout    time.Duration
}

// NewEmbeddingService creates the configured embedder.
// It returns nil for the "none" provider; the dense retriever then reports itself unavailable.
func NewEmbeddingService(cfg EmbeddingConfig) (driven.EmbeddingService, error) {
	switch strings.ToLower(cfg.Provider) {
	case ProviderOpenAI:
		svc, err := NewOpenAIEmbedding(OpenAIConfig{
			APIKey:     cfg.APIKey,
			Model:      cfg.Model,
			BaseURL:    cfg.BaseURL,
			Dimensions: cfg.Dimensions,
			Timeout:    cfg.Timeout,
		})
		if err != nil {
			return nil, err
		}
		return svc, nil
	case ProviderHashing:
		return NewHashingEmbedding(cfg.Dimensions), nil
	case "", ProviderNone:
		return nil, nil
	default:
		return nil, fmt.Errorf("unknown embedding provider: %s", cfg.Provider)
	}
}
