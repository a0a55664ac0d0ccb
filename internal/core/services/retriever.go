package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/lightfastai/lightfast-search/internal/core/domain"
	"github.com/lightfastai/lightfast-search/internal/core/ports/driven"
	"github.com/lightfastai/lightfast-search/internal/resilience"
)

// Retriever produces ranked candidates for a query within one scope target.
// Implementations emit scores already normalized to [0,1] and never mutate shared state.
type Retriever interface {
	Signal() domain.Signal
	Retrieve(ctx context.Context, q *domain.ResolvedQuery, target domain.ScopeTarget) (*domain.CandidateList, error)
}

// Scorer assigns its signal to candidates the retrievers of the same pass
// found. Scorers run once those retrievers finish, under the same timeout
// and breaker rules, and never surface items of their own.
type Scorer interface {
	Signal() domain.Signal
	Score(ctx context.Context, q *domain.ResolvedQuery, target domain.ScopeTarget, found []*domain.CandidateList) (*domain.CandidateList, error)
}

// Timeouts bounds each pipeline stage independently
type Timeouts struct {
	Lexical time.Duration
	Vector  time.Duration
	Graph   time.Duration
	Profile time.Duration
	Rerank  time.Duration
}

// DefaultTimeouts returns the per-stage budgets
func DefaultTimeouts() Timeouts {
	return Timeouts{
		Lexical: 150 * time.Millisecond,
		Vector:  150 * time.Millisecond,
		Graph:   150 * time.Millisecond,
		Profile: 80 * time.Millisecond,
		Rerank:  500 * time.Millisecond,
	}
}

// For returns the budget of a retriever signal
func (t Timeouts) For(signal domain.Signal) time.Duration {
	switch signal {
	case domain.SignalLexical:
		return t.Lexical
	case domain.SignalVector:
		return t.Vector
	case domain.SignalGraph:
		return t.Graph
	case domain.SignalProfile:
		return t.Profile
	}
	return 0
}

// fanoutResult is what one retrieval pass produced
type fanoutResult struct {
	lists  []*domain.CandidateList
	failed []domain.Signal
	took   map[domain.Signal]time.Duration
}

// fanout runs retrievers concurrently, each under its own timeout and breaker
type fanout struct {
	timeouts Timeouts
	executor *resilience.Executor
	metrics  driven.SearchMetrics
	logger   *slog.Logger
}

type retrieval struct {
	list *domain.CandidateList
	err  error
	took time.Duration
}

// run fans out to every retriever and waits for all of them, then runs the
// scorers over what was found.
// A failed or timed-out retriever contributes nothing; when every retriever
// fails the pass returns ErrNoCandidateSources. A failed scorer only degrades.
func (f *fanout) run(ctx context.Context, q *domain.ResolvedQuery, target domain.ScopeTarget, retrievers []Retriever, scorers ...Scorer) (*fanoutResult, error) {
	if len(retrievers) == 0 {
		return nil, fmt.Errorf("%w: no retrievers enabled", domain.ErrNoCandidateSources)
	}

	calls := make([]stageCall, len(retrievers))
	for i, r := range retrievers {
		calls[i] = stageCall{signal: r.Signal(), fn: func(ctx context.Context) (*domain.CandidateList, error) {
			return r.Retrieve(ctx, q, target)
		}}
	}
	out := &fanoutResult{took: make(map[domain.Signal]time.Duration, len(retrievers)+len(scorers))}
	if err := f.collect(ctx, q, target, calls, out); err != nil {
		return nil, err
	}
	if len(out.failed) == len(retrievers) {
		return out, fmt.Errorf("%w: %v", domain.ErrNoCandidateSources, out.failed)
	}

	if len(scorers) > 0 {
		found := append([]*domain.CandidateList(nil), out.lists...)
		calls = make([]stageCall, len(scorers))
		for i, sc := range scorers {
			calls[i] = stageCall{signal: sc.Signal(), fn: func(ctx context.Context) (*domain.CandidateList, error) {
				return sc.Score(ctx, q, target, found)
			}}
		}
		if err := f.collect(ctx, q, target, calls, out); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// stageCall is one signal's work within a pass
type stageCall struct {
	signal domain.Signal
	fn     func(ctx context.Context) (*domain.CandidateList, error)
}

// collect runs calls concurrently and records their lists and failures in out
func (f *fanout) collect(ctx context.Context, q *domain.ResolvedQuery, target domain.ScopeTarget, calls []stageCall, out *fanoutResult) error {
	slots := make([]retrieval, len(calls))
	var wg sync.WaitGroup
	for i, c := range calls {
		wg.Add(1)
		go func(i int, c stageCall) {
			defer wg.Done()
			start := time.Now()
			list, err := f.callOne(ctx, c, target)
			slots[i] = retrieval{list: list, err: err, took: time.Since(start)}
		}(i, c)
	}
	wg.Wait()

	if err := ctx.Err(); err != nil {
		return err
	}

	for i, slot := range slots {
		signal := calls[i].signal
		out.took[signal] += slot.took
		if slot.err != nil {
			out.failed = append(out.failed, signal)
			f.metrics.RetrieverFailed(signal)
			f.logger.Warn("retriever failed",
				"request_id", domain.RequestIDFromContext(ctx),
				"signal", signal,
				"target", target.Level,
				"took_ms", slot.took.Milliseconds(),
				"error", slot.err,
			)
			continue
		}
		out.lists = append(out.lists, admit(slot.list, q, target))
	}
	return nil
}

func (f *fanout) callOne(ctx context.Context, c stageCall, target domain.ScopeTarget) (*domain.CandidateList, error) {
	if budget := f.timeouts.For(c.signal); budget > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, budget)
		defer cancel()
	}

	var list *domain.CandidateList
	call := func(ctx context.Context) error {
		var err error
		list, err = c.fn(ctx)
		return err
	}

	var err error
	if f.executor != nil {
		err = f.executor.Execute(ctx, "retriever."+string(c.signal), call, resilience.StoreClassifier)
	} else {
		err = call(ctx)
	}
	if err != nil {
		if errors.Is(err, domain.ErrRetrieverUnavailable) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %s: %w", domain.ErrRetrieverUnavailable, c.signal, err)
	}
	if list == nil {
		list = &domain.CandidateList{Signal: c.signal, Target: target}
	}
	return list, nil
}

// admit drops candidates the caller may not see and stamps their origin.
// Items of the caller's own workspace keep workspace origin even when the
// org aggregator surfaced them. The retriever's list is not modified.
func admit(list *domain.CandidateList, q *domain.ResolvedQuery, target domain.ScopeTarget) *domain.CandidateList {
	out := &domain.CandidateList{
		Signal:     list.Signal,
		Target:     target,
		Traversal:  list.Traversal,
		Candidates: make([]domain.Candidate, 0, len(list.Candidates)),
	}
	for _, c := range list.Candidates {
		if c.Item == nil || c.Item.ID == "" {
			continue
		}
		if q.Excluded(c.Item.ID) || (c.Item.ChunkID != "" && q.Excluded(c.Item.ChunkID)) {
			continue
		}
		if !q.Filters.Matches(c.Item) || !c.Item.VisibleTo(q.OrganizationID, q.WorkspaceID, q.ActorID) {
			continue
		}
		c.Origin = originOf(c.Item, q, target)
		c.Score = clamp01(c.Score)
		out.Candidates = append(out.Candidates, c)
	}
	return out
}

func originOf(item *domain.Item, q *domain.ResolvedQuery, target domain.ScopeTarget) domain.ScopeLevel {
	if target.Level == domain.ScopeLevelWorkspace {
		return domain.ScopeLevelWorkspace
	}
	if q.WorkspaceID != "" && item.WorkspaceID == q.WorkspaceID {
		return domain.ScopeLevelWorkspace
	}
	return domain.ScopeLevelOrg
}

func clamp01(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	}
	return v
}

func sortedSignals(signals []domain.Signal) []domain.Signal {
	out := dedupeSignals(signals)
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func dedupeSignals(signals []domain.Signal) []domain.Signal {
	seen := make(map[domain.Signal]bool, len(signals))
	var out []domain.Signal
	for _, s := range signals {
		if !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	return out
}
