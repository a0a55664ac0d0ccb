package services

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/lightfastai/lightfast-search/internal/core/domain"
	"github.com/lightfastai/lightfast-search/internal/core/ports/driven"
	"github.com/lightfastai/lightfast-search/internal/resilience"
	"github.com/lightfastai/lightfast-search/internal/runtime"
)

const (
	thoroughModelWeight  = 0.6
	thoroughVectorWeight = 0.4

	// maxPassageChars bounds the text sent to the relevance model per result
	maxPassageChars = 2000
)

// RerankStage rescores the head of the fused ranking with a relevance model.
// Any failure falls back to the fused order; it never returns an error.
type RerankStage struct {
	services *runtime.Services
	executor *resilience.Executor
	timeout  time.Duration
	metrics  driven.SearchMetrics
	logger   *slog.Logger
}

// NewRerankStage creates a new RerankStage
func NewRerankStage(services *runtime.Services, executor *resilience.Executor, timeout time.Duration, metrics driven.SearchMetrics, logger *slog.Logger) *RerankStage {
	if logger == nil {
		logger = slog.Default()
	}
	if metrics == nil {
		metrics = noopMetrics{}
	}
	return &RerankStage{
		services: services,
		executor: executor,
		timeout:  timeout,
		metrics:  metrics,
		logger:   logger,
	}
}

// Apply reranks up to cal.RerankWindow leading results and drops those under
// cal.RerankThreshold. Results past the window keep their fused order behind.
func (s *RerankStage) Apply(ctx context.Context, query string, results []*domain.RetrievalResult, cal *domain.Calibration) ([]*domain.RetrievalResult, domain.RerankUsage) {
	usage := domain.RerankUsage{Mode: string(cal.RerankMode)}
	if len(results) == 0 {
		return results, usage
	}

	window := len(results)
	if cal.RerankWindow > 0 && window > cal.RerankWindow {
		window = cal.RerankWindow
	}
	head, tail := results[:window], results[window:]

	scores, err := s.score(ctx, query, head)
	if err != nil {
		s.metrics.RerankFallback()
		s.logger.Warn("rerank fallback to fused order",
			"request_id", domain.RequestIDFromContext(ctx),
			"mode", cal.RerankMode,
			"error", err,
		)
		usage.Fallback = true
		return results, usage
	}

	kept := make([]*domain.RetrievalResult, 0, len(results))
	for i, r := range head {
		score := clamp01(scores[i])
		if cal.RerankMode == domain.RerankModeThorough {
			score = thoroughModelWeight*score + thoroughVectorWeight*r.Scores.Vector
		}
		if score < cal.RerankThreshold {
			usage.Dropped++
			continue
		}
		r.Reranked = true
		r.RerankScore = score
		kept = append(kept, r)
	}
	SortResults(kept)

	usage.Applied = true
	return append(kept, tail...), usage
}

func (s *RerankStage) score(ctx context.Context, query string, head []*domain.RetrievalResult) ([]float64, error) {
	var reranker driven.Reranker
	if s.services != nil {
		reranker = s.services.Reranker()
	}
	if reranker == nil {
		return nil, fmt.Errorf("%w: no reranker configured", domain.ErrRerankUnavailable)
	}

	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	texts := make([]string, len(head))
	for i, r := range head {
		texts[i] = passage(r)
	}

	var scores []float64
	call := func(ctx context.Context) error {
		var err error
		scores, err = reranker.Rerank(ctx, query, texts)
		return err
	}

	var err error
	if s.executor != nil {
		err = s.executor.Execute(ctx, "rerank."+reranker.Name(), call, resilience.StoreClassifier)
	} else {
		err = call(ctx)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrRerankUnavailable, err)
	}
	if len(scores) != len(texts) {
		return nil, fmt.Errorf("%w: got %d scores for %d passages", domain.ErrRerankUnavailable, len(scores), len(texts))
	}
	return scores, nil
}

// passage is the matched span when one is known, else title and body
func passage(r *domain.RetrievalResult) string {
	text := r.Evidence.Snippet
	if text == "" {
		text = strings.TrimSpace(r.Item.Title + ". " + r.Item.Text)
	}
	if utf8.RuneCountInString(text) > maxPassageChars {
		text = string([]rune(text)[:maxPassageChars])
	}
	return text
}
