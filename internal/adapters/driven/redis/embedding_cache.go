package redis

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"errors"
	"log/slog"
	"math"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/lightfastai/lightfast-search/internal/core/ports/driven"
)

// Verify interface compliance
var _ driven.EmbeddingService = (*EmbeddingCache)(nil)

const embeddingPrefix = "embedding:"

// DefaultEmbeddingTTL is how long query embeddings are kept
const DefaultEmbeddingTTL = 24 * time.Hour

// EmbeddingCache memoizes query embeddings by model and normalized query text.
// Vectors are stored as little-endian float32.
type EmbeddingCache struct {
	client *redis.Client
	next   driven.EmbeddingService
	ttl    time.Duration
	logger *slog.Logger
}

// EmbeddingCacheConfig holds cache dependencies
type EmbeddingCacheConfig struct {
	Client *redis.Client
	Next   driven.EmbeddingService
	TTL    time.Duration
	Logger *slog.Logger
}

// NewEmbeddingCache creates a new EmbeddingCache
func NewEmbeddingCache(cfg EmbeddingCacheConfig) *EmbeddingCache {
	if cfg.TTL <= 0 {
		cfg.TTL = DefaultEmbeddingTTL
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &EmbeddingCache{client: cfg.Client, next: cfg.Next, ttl: cfg.TTL, logger: cfg.Logger}
}

func (c *EmbeddingCache) key(query string) string {
	normalized := strings.Join(strings.Fields(strings.ToLower(query)), " ")
	sum := sha256.Sum256([]byte(normalized))
	return embeddingPrefix + c.next.Model() + ":" + hex.EncodeToString(sum[:])
}

// EmbedQuery returns a cached embedding or computes and caches one
func (c *EmbeddingCache) EmbedQuery(ctx context.Context, query string) ([]float32, error) {
	key := c.key(query)

	data, err := c.client.Get(ctx, key).Bytes()
	switch {
	case err == nil:
		if vec, ok := decodeVector(data); ok {
			return vec, nil
		}
	case !errors.Is(err, redis.Nil):
		c.logger.Warn("embedding cache read failed", "error", err)
	}

	vec, err := c.next.EmbedQuery(ctx, query)
	if err != nil {
		return nil, err
	}
	if err := c.client.Set(ctx, key, encodeVector(vec), c.ttl).Err(); err != nil {
		c.logger.Warn("embedding cache write failed", "error", err)
	}
	return vec, nil
}

func (c *EmbeddingCache) Dimensions() int {
	return c.next.Dimensions()
}

func (c *EmbeddingCache) Model() string {
	return c.next.Model()
}

func (c *EmbeddingCache) HealthCheck(ctx context.Context) error {
	return c.next.HealthCheck(ctx)
}

func (c *EmbeddingCache) Close() error {
	return c.next.Close()
}

func encodeVector(vec []float32) []byte {
	buf := make([]byte, 4*len(vec))
	for i, v := range vec {
		binary.LittleEndian.PutUint32(buf[4*i:], math.Float32bits(v))
	}
	return buf
}

func decodeVector(data []byte) ([]float32, bool) {
	if len(data) == 0 || len(data)%4 != 0 {
		return nil, false
	}
	vec := make([]float32, len(data)/4)
	for i := range vec {
		vec[i] = math.Float32frombits(binary.LittleEndian.Uint32(data[4*i:]))
	}
	return vec, true
}
