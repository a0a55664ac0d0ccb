package redis

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/lightfastai/lightfast-search/internal/core/domain"
	"github.com/lightfastai/lightfast-search/internal/core/ports/driven/mocks"
)

// setupTestRedis creates a miniredis-backed client
func setupTestRedis(t *testing.T) (*redis.Client, *miniredis.Miniredis) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("failed to start miniredis: %v", err)
	}
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() {
		client.Close()
		mr.Close()
	})
	return client, mr
}

func TestCalibrationCacheReadThrough(t *testing.T) {
	client, mr := setupTestRedis(t)
	store := mocks.NewMockCalibrationStore()
	stored := domain.DefaultCalibration("ws_123")
	stored.RerankMode = domain.RerankModeThorough
	stored.RecallFloor = 5
	store.Set(stored)

	cache := NewCalibrationCache(CalibrationCacheConfig{Client: client, Next: store, TTL: 30 * time.Second})
	ctx := context.Background()

	first, err := cache.GetCalibration(ctx, "ws_123")
	if err != nil {
		t.Fatalf("GetCalibration() error = %v", err)
	}
	second, err := cache.GetCalibration(ctx, "ws_123")
	if err != nil {
		t.Fatalf("GetCalibration() error = %v", err)
	}

	if store.Calls() != 1 {
		t.Errorf("expected 1 store call, got %d", store.Calls())
	}
	if second.RerankMode != domain.RerankModeThorough || second.RecallFloor != 5 || first.RecencyHalfLife != second.RecencyHalfLife {
		t.Errorf("cached calibration differs: %+v", second)
	}
	if ttl := mr.TTL(calibrationPrefix + "ws_123"); ttl != 30*time.Second {
		t.Errorf("ttl = %v, want 30s", ttl)
	}

	mr.FastForward(31 * time.Second)
	if _, err := cache.GetCalibration(ctx, "ws_123"); err != nil {
		t.Fatalf("GetCalibration() error = %v", err)
	}
	if store.Calls() != 2 {
		t.Errorf("expected reload after expiry, got %d calls", store.Calls())
	}
}

func TestCalibrationCacheInvalidate(t *testing.T) {
	client, mr := setupTestRedis(t)
	store := mocks.NewMockCalibrationStore()
	cache := NewCalibrationCache(CalibrationCacheConfig{Client: client, Next: store})
	ctx := context.Background()

	if _, err := cache.GetCalibration(ctx, "ws_1"); err != nil {
		t.Fatalf("GetCalibration() error = %v", err)
	}
	if !mr.Exists(calibrationPrefix + "ws_1") {
		t.Fatal("expected cached entry")
	}
	if err := cache.Invalidate(ctx, "ws_1"); err != nil {
		t.Fatalf("Invalidate() error = %v", err)
	}
	if mr.Exists(calibrationPrefix + "ws_1") {
		t.Error("expected entry to be removed")
	}
}

func TestCalibrationCacheFallsThroughWhenRedisDown(t *testing.T) {
	client, mr := setupTestRedis(t)
	mr.Close()

	store := mocks.NewMockCalibrationStore()
	cache := NewCalibrationCache(CalibrationCacheConfig{Client: client, Next: store})

	cal, err := cache.GetCalibration(context.Background(), "ws_1")
	if err != nil {
		t.Fatalf("GetCalibration() error = %v", err)
	}
	if cal.WorkspaceID != "ws_1" || store.Calls() != 1 {
		t.Errorf("unexpected result %+v after %d calls", cal, store.Calls())
	}
}

func TestCalibrationCacheCorruptEntry(t *testing.T) {
	client, mr := setupTestRedis(t)
	if err := mr.Set(calibrationPrefix+"ws_1", "{not json"); err != nil {
		t.Fatalf("seed: %v", err)
	}
	store := mocks.NewMockCalibrationStore()
	cache := NewCalibrationCache(CalibrationCacheConfig{Client: client, Next: store})

	if _, err := cache.GetCalibration(context.Background(), "ws_1"); err != nil {
		t.Fatalf("GetCalibration() error = %v", err)
	}
	if store.Calls() != 1 {
		t.Errorf("expected store call for corrupt entry")
	}
}

func TestCalibrationCacheStoreError(t *testing.T) {
	client, _ := setupTestRedis(t)
	store := mocks.NewMockCalibrationStore()
	boom := errors.New("db down")
	store.SetError(boom)
	cache := NewCalibrationCache(CalibrationCacheConfig{Client: client, Next: store})

	if _, err := cache.GetCalibration(context.Background(), "ws_1"); !errors.Is(err, boom) {
		t.Fatalf("expected store error, got %v", err)
	}
}

func TestEmbeddingCache(t *testing.T) {
	client, mr := setupTestRedis(t)
	embedder := mocks.NewMockEmbeddingService()
	embedder.SetVector("Billing incidents", []float32{0.25, -1, 3.5})
	cache := NewEmbeddingCache(EmbeddingCacheConfig{Client: client, Next: embedder})
	ctx := context.Background()

	first, err := cache.EmbedQuery(ctx, "Billing incidents")
	if err != nil {
		t.Fatalf("EmbedQuery() error = %v", err)
	}
	// whitespace and case normalize to the same key
	second, err := cache.EmbedQuery(ctx, "  billing   INCIDENTS ")
	if err != nil {
		t.Fatalf("EmbedQuery() error = %v", err)
	}

	if embedder.Calls() != 1 {
		t.Errorf("expected 1 embedder call, got %d", embedder.Calls())
	}
	if len(second) != 3 || second[0] != first[0] || second[1] != -1 || second[2] != 3.5 {
		t.Errorf("cached vector = %v", second)
	}
	if keys := mr.Keys(); len(keys) != 1 || keys[0][:len(embeddingPrefix)] != embeddingPrefix {
		t.Errorf("unexpected keys %v", keys)
	}
	if cache.Model() != embedder.Model() || cache.Dimensions() != embedder.Dimensions() {
		t.Error("model metadata should pass through")
	}
}

func TestEmbeddingCacheDoesNotCacheFailures(t *testing.T) {
	client, mr := setupTestRedis(t)
	embedder := mocks.NewMockEmbeddingService()
	embedder.SetFailNext(true)
	cache := NewEmbeddingCache(EmbeddingCacheConfig{Client: client, Next: embedder})

	if _, err := cache.EmbedQuery(context.Background(), "deploys"); err == nil {
		t.Fatal("expected error")
	}
	if len(mr.Keys()) != 0 {
		t.Error("failures must not be cached")
	}
	if _, err := cache.EmbedQuery(context.Background(), "deploys"); err != nil {
		t.Fatalf("EmbedQuery() error = %v", err)
	}
}

func TestVectorCodec(t *testing.T) {
	vec := []float32{0, 1.5, -2.25}
	got, ok := decodeVector(encodeVector(vec))
	if !ok || len(got) != 3 || got[1] != 1.5 || got[2] != -2.25 {
		t.Errorf("round trip = %v, %v", got, ok)
	}
	if _, ok := decodeVector([]byte{1, 2, 3}); ok {
		t.Error("expected truncated payload to be rejected")
	}
}
