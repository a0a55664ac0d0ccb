package driven

import (
	"context"

	"github.com/lightfastai/lightfast-search/internal/core/domain"
)

// TelemetryPublisher emits search events to downstream consumers
type TelemetryPublisher interface {
	PublishSearch(ctx context.Context, event *domain.SearchEvent) error
	Close() error
}
