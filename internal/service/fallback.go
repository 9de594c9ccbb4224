package service

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"surveysearch/internal/model"
)

// RunOptions customise one controller run.
type RunOptions struct {
	// OnAttempt is called after every attempt reaches a terminal state.
	OnAttempt func(model.Attempt)
}

// Controller runs the selected strategy and, when it comes back empty,
// at most the listed relaxations for that strategy. Relaxed attempts start
// only after the previous attempt has finished.
type Controller struct {
	strategies map[model.StrategyDecision]Strategy
	ranker     *Ranker
	observer   RetrievalObserver
	logger     *zap.Logger
}

func NewController(strategies []Strategy, ranker *Ranker, observer RetrievalObserver, logger *zap.Logger) *Controller {
	if logger == nil {
		logger = zap.NewNop()
	}
	if ranker == nil {
		ranker = NewRanker(DefaultRankingWeights())
	}
	byName := make(map[model.StrategyDecision]Strategy, len(strategies))
	for _, s := range strategies {
		byName[s.Name()] = s
	}
	return &Controller{
		strategies: byName,
		ranker:     ranker,
		observer:   observerOrNoop(observer),
		logger:     logger,
	}
}

type run struct {
	plan     Plan
	opts     RunOptions
	attempts []model.Attempt
}

// Run executes plan. Zero results and errors stay distinct: an error is
// never turned into an empty success.
func (c *Controller) Run(ctx context.Context, plan Plan, opts RunOptions) (*model.ResultSet, error) {
	r := &run{plan: plan, opts: opts}
	req := StrategyRequest{
		Filters:          plan.Query.Filters,
		SemanticKeywords: plan.Query.SemanticKeywords,
		SearchText:       plan.Query.SearchText,
	}
	if plan.Query.Limit != nil {
		req.Limit = *plan.Query.Limit
	}

	primary, err := c.attempt(ctx, r, plan.Strategy, "", req)
	if err != nil {
		return c.recoverFromError(ctx, r, req, err)
	}
	if !primary.Empty() {
		return c.finish(r, primary, ""), nil
	}

	switch plan.Strategy {
	case model.SemanticOnly:
		relaxed := req
		relaxed.NoDistanceCeiling = true
		rs, err := c.attempt(ctx, r, model.SemanticOnly, model.FallbackSemanticNoThreshold, relaxed)
		if err != nil {
			return c.fallbackError(r, primary, model.FallbackSemanticNoThreshold, err)
		}
		if !rs.Empty() || req.Filters.IsEmpty() {
			return c.finishRelaxed(r, primary, rs, model.FallbackSemanticNoThreshold), nil
		}
		// Filters were ignored by SemanticOnly; bring them back.
		rs, err = c.attempt(ctx, r, model.Hybrid, model.FallbackHybridEscalation, req)
		if err != nil {
			return c.fallbackError(r, primary, model.FallbackHybridEscalation, err)
		}
		return c.finishRelaxed(r, primary, rs, model.FallbackHybridEscalation), nil

	case model.FilterOnly:
		if !plan.Query.HasSemanticSignal() {
			break
		}
		rs, err := c.attempt(ctx, r, model.SemanticOnly, model.FallbackSemanticFromFilter, req)
		if err != nil {
			return c.fallbackError(r, primary, model.FallbackSemanticFromFilter, err)
		}
		return c.finishRelaxed(r, primary, rs, model.FallbackSemanticFromFilter), nil

	case model.Hybrid:
		// Without keywords the primary never applied the keyword filter, so
		// the relaxed attempt would repeat it verbatim.
		if len(distinctKeywords(req.SemanticKeywords)) == 0 {
			break
		}
		relaxed := req
		relaxed.DropKeywordFilter = true
		rs, err := c.attempt(ctx, r, model.Hybrid, model.FallbackHybridNoKeyword, relaxed)
		if err != nil {
			return c.fallbackError(r, primary, model.FallbackHybridNoKeyword, err)
		}
		return c.finishRelaxed(r, primary, rs, model.FallbackHybridNoKeyword), nil
	}

	return c.finish(r, primary, ""), nil
}

// recoverFromError degrades to FilterOnly when embeddings are down and
// structured filters exist. Every other error propagates.
func (c *Controller) recoverFromError(ctx context.Context, r *run, req StrategyRequest, cause error) (*model.ResultSet, error) {
	if !model.IsKind(cause, model.ErrEmbeddingUnavailable) || req.Filters.IsEmpty() || r.plan.Strategy == model.FilterOnly {
		c.observer.ObserveError(model.KindOf(cause))
		return nil, cause
	}

	c.logger.Warn("embedding unavailable, degrading to filter retrieval",
		zap.String("strategy", string(r.plan.Strategy)),
		zap.Error(cause),
	)
	rs, err := c.attempt(ctx, r, model.FilterOnly, model.FallbackFilterEmbeddingUnavailable, req)
	if err != nil {
		c.observer.ObserveError(model.KindOf(err))
		return nil, err
	}
	return c.finish(r, rs, model.FallbackFilterEmbeddingUnavailable), nil
}

// fallbackError handles a relaxed attempt that errored. The primary empty
// result is real, so an embedding outage during relaxation returns it with
// the tag; any other error propagates.
func (c *Controller) fallbackError(r *run, primary *model.ResultSet, tag string, err error) (*model.ResultSet, error) {
	if model.IsKind(err, model.ErrEmbeddingUnavailable) {
		c.logger.Warn("fallback attempt could not embed, keeping empty result",
			zap.String("fallback", tag),
			zap.Error(err),
		)
		return c.finish(r, primary, tag), nil
	}
	c.observer.ObserveError(model.KindOf(err))
	return nil, err
}

// finishRelaxed keeps the relaxed result when it found something and the
// original empty result otherwise. Either way the tag is recorded.
func (c *Controller) finishRelaxed(r *run, primary, relaxed *model.ResultSet, tag string) *model.ResultSet {
	if relaxed.Empty() {
		return c.finish(r, primary, tag)
	}
	return c.finish(r, relaxed, tag)
}

func (c *Controller) finish(r *run, rs *model.ResultSet, tag string) *model.ResultSet {
	out := *rs
	if hasDistances(out.Candidates) {
		out.Candidates = c.ranker.Rerank(out.Candidates, r.plan.Query.SemanticKeywords)
	}
	if tag != "" {
		t := tag
		out.FallbackUsed = &t
	}
	out.Attempts = r.attempts

	c.observer.ObserveSearch(string(out.StrategyUsed), tag)
	c.logger.Info("retrieval finished",
		zap.String("strategy", string(out.StrategyUsed)),
		zap.String("fallback", tag),
		zap.Int("candidates", len(out.Candidates)),
		zap.Int("total", out.TotalCount),
		zap.Int("attempts", len(r.attempts)),
	)
	return &out
}

func (c *Controller) attempt(
	ctx context.Context,
	r *run,
	strategy model.StrategyDecision,
	tag string,
	req StrategyRequest,
) (*model.ResultSet, error) {
	a := model.Attempt{Strategy: strategy, Fallback: tag, State: model.AttemptPending}
	fields := []zap.Field{zap.String("strategy", string(strategy)), zap.String("fallback", tag)}
	c.logger.Debug("attempt pending", fields...)

	s, ok := c.strategies[strategy]
	if !ok {
		err := fmt.Errorf("no %s strategy registered", strategy)
		c.record(r, a, model.AttemptFailed, 0, err)
		return nil, err
	}

	if err := ctx.Err(); err != nil {
		c.record(r, a, model.AttemptFailed, 0, err)
		return nil, err
	}

	a.State = model.AttemptExecuting
	c.logger.Debug("attempt executing", fields...)
	start := time.Now()

	rs, err := s.Search(ctx, req)
	a.Duration = time.Since(start)
	if err != nil {
		c.record(r, a, model.AttemptFailed, 0, err)
		return nil, err
	}
	c.record(r, a, model.AttemptSucceeded, len(rs.Candidates), nil)
	return rs, nil
}

func (c *Controller) record(r *run, a model.Attempt, state model.AttemptState, n int, err error) {
	a.State = state
	a.Candidates = n
	fields := []zap.Field{
		zap.String("strategy", string(a.Strategy)),
		zap.String("fallback", a.Fallback),
		zap.String("state", string(state)),
		zap.Int("candidates", n),
		zap.Duration("elapsed", a.Duration),
	}
	if err != nil {
		a.Error = err.Error()
		c.logger.Warn("attempt failed", append(fields, zap.String("kind", model.KindOf(err)), zap.Error(err))...)
	} else {
		c.logger.Info("attempt succeeded", fields...)
	}

	r.attempts = append(r.attempts, a)
	c.observer.ObserveAttempt(string(a.Strategy), string(state), a.Duration)
	if r.opts.OnAttempt != nil {
		r.opts.OnAttempt(a)
	}
}

func hasDistances(cs []model.Candidate) bool {
	for _, c := range cs {
		if c.Distance != nil {
			return true
		}
	}
	return false
}
