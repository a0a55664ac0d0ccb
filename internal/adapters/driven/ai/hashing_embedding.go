package ai

import (
	"context"
	"hash/fnv"
	"math"
	"strings"
	"unicode"

	"github.com/lightfastai/lightfast-search/internal/core/ports/driven"
)

// Ensure HashingEmbedding implements EmbeddingService
var _ driven.EmbeddingService = (*HashingEmbedding)(nil)

// HashingEmbedding is a local feature-hashing embedder for development and
// air-gapped installs. Token counts are hashed into a fixed number of signed
// buckets and L2 normalized, so identical token bags embed identically.
type HashingEmbedding struct {
	dimensions int
}

// NewHashingEmbedding creates a hashing embedder. Non-positive dimensions default to 256.
func NewHashingEmbedding(dimensions int) *HashingEmbedding {
	if dimensions <= 0 {
		dimensions = 256
	}
	return &HashingEmbedding{dimensions: dimensions}
}

func (h *HashingEmbedding) EmbedQuery(ctx context.Context, query string) ([]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	vec := make([]float64, h.dimensions)
	tokens := strings.FieldsFunc(strings.ToLower(query), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	for _, tok := range tokens {
		f := fnv.New64a()
		f.Write([]byte(tok))
		sum := f.Sum64()
		bucket := int(sum % uint64(h.dimensions))
		if sum&(1<<63) != 0 {
			vec[bucket]--
		} else {
			vec[bucket]++
		}
	}

	var norm float64
	for _, v := range vec {
		norm += v * v
	}
	out := make([]float32, h.dimensions)
	if norm == 0 {
		return out, nil
	}
	norm = math.Sqrt(norm)
	for i, v := range vec {
		out[i] = float32(v / norm)
	}
	return out, nil
}

func (h *HashingEmbedding) Dimensions() int {
	return h.dimensions
}

func (h *HashingEmbedding) Model() string {
	return "feature-hashing"
}

func (h *HashingEmbedding) HealthCheck(ctx context.Context) error {
	return nil
}

func (h *HashingEmbedding) Close() error {
	return nil
}
