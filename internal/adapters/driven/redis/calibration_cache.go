package redis

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/lightfastai/lightfast-search/internal/core/domain"
	"github.com/lightfastai/lightfast-search/internal/core/ports/driven"
)

// Verify interface compliance
var _ driven.CalibrationStore = (*CalibrationCache)(nil)

const calibrationPrefix = "calibration:"

// DefaultCalibrationTTL bounds how stale a cached calibration may be
const DefaultCalibrationTTL = time.Minute

// CalibrationCache is a read-through cache in front of a CalibrationStore.
// Redis failures fall through to the underlying store.
type CalibrationCache struct {
	client *redis.Client
	next   driven.CalibrationStore
	ttl    time.Duration
	logger *slog.Logger
}

// CalibrationCacheConfig holds cache dependencies
type CalibrationCacheConfig struct {
	Client *redis.Client
	Next   driven.CalibrationStore
	TTL    time.Duration
	Logger *slog.Logger
}

// NewCalibrationCache creates a new CalibrationCache
func NewCalibrationCache(cfg CalibrationCacheConfig) *CalibrationCache {
	if cfg.TTL <= 0 {
		cfg.TTL = DefaultCalibrationTTL
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &CalibrationCache{client: cfg.Client, next: cfg.Next, ttl: cfg.TTL, logger: cfg.Logger}
}

// GetCalibration returns the cached calibration or loads and caches it
func (c *CalibrationCache) GetCalibration(ctx context.Context, workspaceID string) (*domain.Calibration, error) {
	key := calibrationPrefix + workspaceID

	data, err := c.client.Get(ctx, key).Bytes()
	switch {
	case err == nil:
		var cal domain.Calibration
		if err := json.Unmarshal(data, &cal); err == nil {
			return &cal, nil
		}
		c.logger.Warn("discarding corrupt cached calibration", "workspace_id", workspaceID)
	case !errors.Is(err, redis.Nil):
		c.logger.Warn("calibration cache read failed", "workspace_id", workspaceID, "error", err)
	}

	cal, err := c.next.GetCalibration(ctx, workspaceID)
	if err != nil {
		return nil, err
	}

	if data, err := json.Marshal(cal); err == nil {
		if err := c.client.Set(ctx, key, data, c.ttl).Err(); err != nil {
			c.logger.Warn("calibration cache write failed", "workspace_id", workspaceID, "error", err)
		}
	}
	return cal, nil
}

// Invalidate drops a cached calibration after recalibration
func (c *CalibrationCache) Invalidate(ctx context.Context, workspaceID string) error {
	return c.client.Del(ctx, calibrationPrefix+workspaceID).Err()
}
