package driven

import (
	"context"

	"github.com/lightfastai/lightfast-search/internal/core/domain"
)

// CalibrationStore reads per-workspace ranking calibration.
// Written by an offline recalibration job.
type CalibrationStore interface {
	// GetCalibration returns the workspace calibration, or the defaults when none is stored
	GetCalibration(ctx context.Context, workspaceID string) (*domain.Calibration, error)
}
