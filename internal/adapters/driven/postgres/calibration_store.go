package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/lightfastai/lightfast-search/internal/core/domain"
	"github.com/lightfastai/lightfast-search/internal/core/ports/driven"
)

// Verify interface compliance
var _ driven.CalibrationStore = (*CalibrationStore)(nil)

// CalibrationStore implements driven.CalibrationStore using PostgreSQL
type CalibrationStore struct {
	db *DB
}

// NewCalibrationStore creates a new CalibrationStore
func NewCalibrationStore(db *DB) *CalibrationStore {
	return &CalibrationStore{db: db}
}

// GetCalibration returns the stored calibration, or the defaults when the
// workspace was never recalibrated. Out-of-range values are normalized.
func (s *CalibrationStore) GetCalibration(ctx context.Context, workspaceID string) (*domain.Calibration, error) {
	query := `
		SELECT workspace_id, weights, rerank_threshold, rerank_mode, rerank_window,
			recall_floor, scope_bias_delta, recency_half_life_secs, personalization_enabled, updated_at
		FROM calibrations
		WHERE workspace_id = $1
	`

	var (
		c           domain.Calibration
		weightsJSON []byte
		mode        string
		halfLife    int64
	)
	err := s.db.QueryRowContext(ctx, query, workspaceID).Scan(
		&c.WorkspaceID,
		&weightsJSON,
		&c.RerankThreshold,
		&mode,
		&c.RerankWindow,
		&c.RecallFloor,
		&c.ScopeBiasDelta,
		&halfLife,
		&c.PersonalizationEnabled,
		&c.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.DefaultCalibration(workspaceID), nil
	}
	if err != nil {
		return nil, fmt.Errorf("get calibration: %w", err)
	}

	if err := json.Unmarshal(weightsJSON, &c.Weights); err != nil {
		return nil, fmt.Errorf("decode calibration weights: %w", err)
	}
	c.RerankMode = domain.RerankMode(mode)
	c.RecencyHalfLife = time.Duration(halfLife) * time.Second
	c.Normalize()
	return &c, nil
}

// SaveCalibration creates or replaces a workspace calibration
func (s *CalibrationStore) SaveCalibration(ctx context.Context, c *domain.Calibration) error {
	weightsJSON, err := json.Marshal(c.Weights)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO calibrations (workspace_id, weights, rerank_threshold, rerank_mode, rerank_window,
			recall_floor, scope_bias_delta, recency_half_life_secs, personalization_enabled, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (workspace_id) DO UPDATE SET
			weights = EXCLUDED.weights,
			rerank_threshold = EXCLUDED.rerank_threshold,
			rerank_mode = EXCLUDED.rerank_mode,
			rerank_window = EXCLUDED.rerank_window,
			recall_floor = EXCLUDED.recall_floor,
			scope_bias_delta = EXCLUDED.scope_bias_delta,
			recency_half_life_secs = EXCLUDED.recency_half_life_secs,
			personalization_enabled = EXCLUDED.personalization_enabled,
			updated_at = EXCLUDED.updated_at
	`
	_, err = s.db.ExecContext(ctx, query,
		c.WorkspaceID,
		weightsJSON,
		c.RerankThreshold,
		string(c.RerankMode),
		c.RerankWindow,
		c.RecallFloor,
		c.ScopeBiasDelta,
		int64(c.RecencyHalfLife/time.Second),
		c.PersonalizationEnabled,
		c.UpdatedAt,
	)
	return err
}
