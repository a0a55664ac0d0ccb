package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/lightfastai/lightfast-search/internal/core/domain"
	"github.com/lightfastai/lightfast-search/internal/core/ports/driven"
	"github.com/lightfastai/lightfast-search/internal/core/ports/driving"
	"github.com/lightfastai/lightfast-search/internal/resilience"
	"github.com/lightfastai/lightfast-search/internal/runtime"
)

// telemetryTimeout bounds the fire-and-forget publish of a search event
const telemetryTimeout = 2 * time.Second

// Ensure searchService implements SearchService
var _ driving.SearchService = (*searchService)(nil)

// searchService runs the retrieval pipeline:
//
//	classify → route → fan out to retrievers → fuse → (org fallback) → rerank → hydrate → explain
type searchService struct {
	classifier   *QueryClassifier
	lexical      Retriever
	dense        Retriever
	graph        Retriever
	profile      Scorer
	vectorIndex  driven.VectorIndex
	calibrations driven.CalibrationStore
	items        driven.ItemStore
	telemetry    driven.TelemetryPublisher
	metrics      driven.SearchMetrics
	services     *runtime.Services
	fanout       *fanout
	rerank       *RerankStage
	now          func() time.Time
	logger       *slog.Logger
}

// SearchServiceConfig holds dependencies for the search service.
// ItemStore, Telemetry, Metrics and Executor are optional.
type SearchServiceConfig struct {
	LexicalIndex     driven.LexicalIndex
	VectorIndex      driven.VectorIndex
	GraphStore       driven.GraphStore
	ProfileStore     driven.ProfileStore
	CalibrationStore driven.CalibrationStore
	ItemStore        driven.ItemStore
	Telemetry        driven.TelemetryPublisher
	Metrics          driven.SearchMetrics
	Services         *runtime.Services
	Executor         *resilience.Executor
	Timeouts         Timeouts
	Now              func() time.Time
	Logger           *slog.Logger
}

// NewSearchService creates a new SearchService
func NewSearchService(cfg SearchServiceConfig) driving.SearchService {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	metrics := cfg.Metrics
	if metrics == nil {
		metrics = noopMetrics{}
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	timeouts := cfg.Timeouts
	if timeouts == (Timeouts{}) {
		timeouts = DefaultTimeouts()
	}

	return &searchService{
		classifier:   NewQueryClassifier(),
		lexical:      NewLexicalRetriever(cfg.LexicalIndex),
		dense:        NewDenseRetriever(cfg.VectorIndex, cfg.Services),
		graph:        NewGraphRetriever(cfg.GraphStore, now),
		profile:      NewProfileRetriever(cfg.ProfileStore),
		vectorIndex:  cfg.VectorIndex,
		calibrations: cfg.CalibrationStore,
		items:        cfg.ItemStore,
		telemetry:    cfg.Telemetry,
		metrics:      metrics,
		services:     cfg.Services,
		fanout: &fanout{
			timeouts: timeouts,
			executor: cfg.Executor,
			metrics:  metrics,
			logger:   logger,
		},
		rerank: NewRerankStage(cfg.Services, cfg.Executor, timeouts.Rerank, metrics, logger),
		now:    now,
		logger: logger,
	}
}

// plan is one fully resolved query ready for the pipeline
type plan struct {
	requestID      string
	query          *domain.ResolvedQuery
	router         *ScopeRouter
	classification domain.Classification
	retrievers     []Retriever
	scorers        []Scorer
	degraded       []domain.Signal
	calibration    *domain.Calibration
	topK           int
	rerank         bool
	include        domain.IncludeOptions
	organizationID string
}

// Search ranks items for a natural-language query
func (s *searchService) Search(ctx context.Context, req *domain.SearchRequest) (*domain.SearchResponse, error) {
	start := time.Now()
	requestID := s.requestID(ctx)

	req.Normalize()
	if err := req.Validate(); err != nil {
		return nil, s.fail(req.Mode, req.Scope, start, err)
	}
	cls, err := s.classifier.Classify(req)
	if err != nil {
		return nil, s.fail(req.Mode, req.Scope, start, err)
	}

	cal := s.calibration(ctx, req.WorkspaceID)
	p := &plan{
		requestID:      requestID,
		router:         NewScopeRouter(req.Scope, req.OrganizationID, req.WorkspaceID, cls.OrgIntent),
		classification: cls,
		calibration:    cal,
		topK:           req.TopK,
		rerank:         req.Quality.RerankEnabled() && cls.ResolvedMode != domain.SearchModeFast,
		include:        req.Include,
		organizationID: req.OrganizationID,
		query: &domain.ResolvedQuery{
			Text:           req.Query,
			Terms:          queryTerms(req.Query, cls.Autoprompt),
			Intent:         cls.Intent,
			Mode:           cls.ResolvedMode,
			Identifier:     cls.Identifier,
			Families:       vectorFamilies(cls.Intent, cls.ResolvedMode),
			EdgeTypes:      edgeAllowlist(cls.Intent),
			Filters:        req.Filters,
			Limit:          retrievalLimit(req.TopK, cal),
			ActorID:        req.ActorID,
			WorkspaceID:    req.WorkspaceID,
			OrganizationID: req.OrganizationID,
		},
	}
	p.retrievers, p.scorers, p.degraded = s.retrieversFor(cls.ResolvedMode, cal, false)

	resp, err := s.execute(ctx, p, start)
	if err != nil {
		return nil, s.fail(req.Mode, req.Scope, start, err)
	}
	return resp, nil
}

// Similar ranks items near the stored embedding of a chunk or document.
// The subject itself is never returned.
func (s *searchService) Similar(ctx context.Context, req *domain.SimilarRequest) (*domain.SearchResponse, error) {
	start := time.Now()
	requestID := s.requestID(ctx)

	req.Normalize()
	if err := req.Validate(); err != nil {
		return nil, s.fail(domain.SearchModeNeural, req.Scope, start, err)
	}

	router := NewScopeRouter(req.Scope, req.OrganizationID, req.WorkspaceID, false)
	family := domain.VectorFamilyChunks
	if req.Subject == domain.SimilarSubjectDocument {
		family = domain.VectorFamilySummaries
	}
	vector, err := s.vectorIndex.Fetch(ctx, router.Target().Namespace(family), req.ID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			err = fmt.Errorf("%s %q: %w", req.Subject, req.ID, domain.ErrNotFound)
		} else {
			err = fmt.Errorf("%w: fetch subject vector: %w", domain.ErrServiceUnavailable, err)
		}
		return nil, s.fail(domain.SearchModeNeural, req.Scope, start, err)
	}

	cal := s.calibration(ctx, req.WorkspaceID)
	p := &plan{
		requestID: requestID,
		router:    router,
		classification: domain.Classification{
			Intent:        domain.IntentSemantic,
			ResolvedScope: router.RouterScope(),
			ResolvedMode:  domain.SearchModeNeural,
		},
		calibration:    cal,
		topK:           req.TopK,
		include:        req.Include,
		organizationID: req.OrganizationID,
		query: &domain.ResolvedQuery{
			Intent:         domain.IntentSemantic,
			Mode:           domain.SearchModeNeural,
			Families:       []domain.VectorFamily{family},
			Filters:        req.Filters,
			Limit:          retrievalLimit(req.TopK, cal),
			Vector:         vector,
			ExcludeIDs:     []string{req.ID},
			ActorID:        req.ActorID,
			WorkspaceID:    req.WorkspaceID,
			OrganizationID: req.OrganizationID,
		},
	}
	p.retrievers, p.scorers, p.degraded = s.retrieversFor(domain.SearchModeNeural, cal, true)

	resp, err := s.execute(ctx, p, start)
	if err != nil {
		return nil, s.fail(domain.SearchModeNeural, req.Scope, start, err)
	}
	return resp, nil
}

// retrieversFor selects the retrievers a mode runs and the scorers applied
// to what they find. Signals the mode wants but the runtime cannot serve are
// reported as degraded.
func (s *searchService) retrieversFor(mode domain.SearchMode, cal *domain.Calibration, presetVector bool) ([]Retriever, []Scorer, []domain.Signal) {
	var wanted []Retriever
	switch mode {
	case domain.SearchModeFast, domain.SearchModeKeyword:
		wanted = []Retriever{s.lexical}
	case domain.SearchModeNeural:
		wanted = []Retriever{s.dense}
	case domain.SearchModeKnowledge:
		wanted = []Retriever{s.lexical, s.dense}
	case domain.SearchModeGraph:
		wanted = []Retriever{s.graph, s.lexical}
	default:
		wanted = []Retriever{s.lexical, s.dense, s.graph}
	}

	var out []Retriever
	var degraded []domain.Signal
	for _, r := range wanted {
		if r.Signal() == domain.SignalVector && !presetVector && (s.services == nil || !s.services.Config().CanDoSemanticSearch()) {
			degraded = append(degraded, domain.SignalVector)
			continue
		}
		out = append(out, r)
	}

	var scorers []Scorer
	if mode != domain.SearchModeFast && cal.PersonalizationEnabled {
		scorers = append(scorers, s.profile)
	}
	return out, scorers, degraded
}

func (s *searchService) execute(ctx context.Context, p *plan, start time.Time) (*domain.SearchResponse, error) {
	usage := domain.Usage{
		ResolvedMode:   p.classification.ResolvedMode,
		InferredFamily: p.classification.Intent,
	}
	degraded := append([]domain.Signal(nil), p.degraded...)
	now := s.now()

	pass, err := s.fanout.run(ctx, p.query, p.router.Target(), p.retrievers, p.scorers...)
	if err != nil {
		return nil, err
	}
	s.recordPass(pass, &usage)
	degraded = append(degraded, pass.failed...)
	lists := pass.lists

	fuseStart := time.Now()
	results := Fuse(lists, p.calibration, now, FusionOptions{})

	if p.router.NeedsOrg(len(results), p.calibration.RecallFloor) {
		if err := p.router.Fallback(); err != nil {
			return nil, err
		}
		s.metrics.ScopeFallback()
		s.logger.Info("scope fallback to org",
			"request_id", p.requestID,
			"workspace_results", len(results),
			"recall_floor", p.calibration.RecallFloor,
		)

		orgPass, err := s.fanout.run(ctx, p.query, p.router.Target(), p.retrievers, p.scorers...)
		switch {
		case ctx.Err() != nil:
			return nil, ctx.Err()
		case err != nil:
			// the workspace pass already produced a valid ranking
			s.logger.Warn("org fallback retrieval failed", "request_id", p.requestID, "error", err)
		}
		if orgPass != nil {
			s.recordPass(orgPass, &usage)
			degraded = append(degraded, orgPass.failed...)
			lists = append(lists, orgPass.lists...)
		}
		results = Fuse(lists, p.calibration, now, FusionOptions{ScopeBias: p.calibration.ScopeBiasDelta})
	}
	usage.Stages.Fusion = time.Since(fuseStart).Milliseconds()
	s.metrics.ObserveStage("fusion", time.Since(fuseStart))

	if p.rerank {
		rerankStart := time.Now()
		results, usage.Rerank = s.rerank.Apply(ctx, p.query.Text, results, p.calibration)
		usage.Stages.Rerank = time.Since(rerankStart).Milliseconds()
		s.metrics.ObserveStage("rerank", time.Since(rerankStart))
		if err := ctx.Err(); err != nil {
			return nil, err
		}
	}

	if len(results) > p.topK {
		results = results[:p.topK]
	}

	hydrateStart := time.Now()
	s.hydrate(ctx, p.requestID, results)
	usage.Stages.Hydrate = time.Since(hydrateStart).Milliseconds()
	s.metrics.ObserveStage("hydrate", time.Since(hydrateStart))

	resp := &domain.SearchResponse{
		Results:   make([]*domain.SearchHit, 0, len(results)),
		RequestID: p.requestID,
	}

	var rationale RationaleSet
	if p.include.Rationale {
		traversals := make([]*domain.GraphTraversal, 0, 2)
		for _, l := range lists {
			if l.Traversal != nil {
				traversals = append(traversals, l.Traversal)
			}
		}
		rationale = BuildRationale(results, traversals, p.router.State())
		resp.Rationale = rationale.Response
	}

	for _, r := range results {
		hit := toHit(r, p.query.Terms)
		if p.include.Rationale {
			hit.Rationale = rationale.Hits[r.Item.ID]
			scores := r.Scores
			hit.Signals = &scores
		}
		resp.Results = append(resp.Results, hit)
	}

	usage.RouterScope = p.router.RouterScope()
	usage.ContributionShares = ContributionShares(results, p.calibration.Weights)
	usage.DegradedSignals = sortedSignals(degraded)
	usage.LatencyMs = time.Since(start).Milliseconds()
	resp.Usage = usage

	s.metrics.ObserveSearch(p.classification.ResolvedMode, usage.RouterScope, "ok", time.Since(start))
	s.publish(ctx, p, resp)
	return resp, nil
}

func (s *searchService) recordPass(pass *fanoutResult, usage *domain.Usage) {
	for signal, took := range pass.took {
		usage.Stages.Set(signal, took)
		s.metrics.ObserveStage(string(signal), took)
	}
}

// calibration fetches the workspace calibration once per query.
// A store failure falls back to the defaults rather than failing the query.
func (s *searchService) calibration(ctx context.Context, workspaceID string) *domain.Calibration {
	if s.calibrations == nil || workspaceID == "" {
		return domain.DefaultCalibration(workspaceID)
	}
	cal, err := s.calibrations.GetCalibration(ctx, workspaceID)
	if err != nil || cal == nil {
		s.logger.Warn("calibration unavailable, using defaults", "workspace_id", workspaceID, "error", err)
		return domain.DefaultCalibration(workspaceID)
	}
	cal.Normalize()
	return cal
}

// hydrate fills display fields from the item store. Failures leave results as retrieved.
func (s *searchService) hydrate(ctx context.Context, requestID string, results []*domain.RetrievalResult) {
	if s.items == nil {
		return
	}
	var ids []string
	for _, r := range results {
		if r.Item.NeedsHydration() || r.Item.URL == "" || r.Item.Author == "" {
			ids = append(ids, r.Item.ID)
		}
	}
	if len(ids) == 0 {
		return
	}
	found, err := s.items.GetItems(ctx, ids)
	if err != nil {
		s.logger.Warn("hydration failed", "request_id", requestID, "error", err)
		return
	}
	for _, r := range results {
		r.Item.MergeMissing(found[r.Item.ID])
	}
}

func (s *searchService) publish(ctx context.Context, p *plan, resp *domain.SearchResponse) {
	if s.telemetry == nil {
		return
	}
	event := &domain.SearchEvent{
		RequestID:       resp.RequestID,
		OrganizationID:  p.organizationID,
		WorkspaceID:     p.query.WorkspaceID,
		RouterMode:      p.router.State(),
		RouterScope:     resp.Usage.RouterScope,
		ResolvedMode:    resp.Usage.ResolvedMode,
		InferredFamily:  resp.Usage.InferredFamily,
		ResultCount:     len(resp.Results),
		LatencyMs:       resp.Usage.LatencyMs,
		RerankFallback:  resp.Usage.Rerank.Fallback,
		DegradedSignals: resp.Usage.DegradedSignals,
		OccurredAt:      s.now().UTC(),
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), telemetryTimeout)
		defer cancel()
		if err := s.telemetry.PublishSearch(ctx, event); err != nil {
			s.logger.Warn("publish search event", "request_id", event.RequestID, "error", err)
		}
	}()
}

func (s *searchService) fail(mode domain.SearchMode, scope domain.Scope, start time.Time, err error) error {
	code := domain.ErrorCode(err)
	if code == "" {
		code = "Internal"
	}
	s.metrics.ObserveSearch(mode, scope, code, time.Since(start))
	return err
}

func (s *searchService) requestID(ctx context.Context) string {
	if id := domain.RequestIDFromContext(ctx); id != "" {
		return id
	}
	return uuid.NewString()
}

// retrievalLimit is how many candidates each retriever is asked for
func retrievalLimit(topK int, cal *domain.Calibration) int {
	return max(topK, cal.RerankWindow)
}

func toHit(r *domain.RetrievalResult, terms []string) *domain.SearchHit {
	item := r.Item
	highlight := r.Evidence.Snippet
	if highlight == "" {
		highlight = Highlight(item.Text, terms)
	} else if len([]rune(highlight)) > MaxHighlightChars {
		highlight = truncateRunes([]rune(highlight), 0, MaxHighlightChars)
	}

	return &domain.SearchHit{
		DocumentID: item.ID,
		ChunkID:    item.ChunkID,
		Score:      roundScore(r.Score()),
		Title:      item.Title,
		Type:       item.Type,
		Source:     item.Source,
		OccurredAt: item.OccurredAt,
		Author:     item.Author,
		Highlight:  highlight,
		URL:        item.URL,
	}
}

func roundScore(v float64) float64 {
	return float64(int64(v*1e6+0.5)) / 1e6
}

// noopMetrics discards measurements when no metrics sink is configured
type noopMetrics struct{}

func (noopMetrics) ObserveSearch(domain.SearchMode, domain.Scope, string, time.Duration) {}
func (noopMetrics) ObserveStage(string, time.Duration)                                   {}
func (noopMetrics) RetrieverFailed(domain.Signal)                                        {}
func (noopMetrics) RerankFallback()                                                      {}
func (noopMetrics) ScopeFallback()                                                       {}
