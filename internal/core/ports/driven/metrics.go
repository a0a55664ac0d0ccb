package driven

import (
	"time"

	"github.com/lightfastai/lightfast-search/internal/core/domain"
)

// SearchMetrics records pipeline measurements
type SearchMetrics interface {
	ObserveSearch(mode domain.SearchMode, scope domain.Scope, status string, took time.Duration)
	ObserveStage(stage string, took time.Duration)
	RetrieverFailed(signal domain.Signal)
	RerankFallback()
	ScopeFallback()
}
