package service

import (
	"context"

	"go.uber.org/zap"

	"surveysearch/internal/model"
)

// HybridStrategy pre-filters on structured predicates and ranks the
// remainder by distance. It never applies a distance ceiling: the filters
// already bound the pool. The page is large so demographics cover the whole
// matching set.
type HybridStrategy struct {
	relevance *RelevanceAdapter
	opts      RetrievalOptions
	logger    *zap.Logger
}

func NewHybridStrategy(relevance *RelevanceAdapter, opts RetrievalOptions, logger *zap.Logger) *HybridStrategy {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &HybridStrategy{relevance: relevance, opts: opts.normalize(), logger: logger}
}

func (s *HybridStrategy) Name() model.StrategyDecision {
	return model.Hybrid
}

func (s *HybridStrategy) Search(ctx context.Context, req StrategyRequest) (*model.ResultSet, error) {
	ctx, cancel := withBudget(ctx, s.opts.CallBudget)
	defer cancel()

	// The caller trims the page; the full pool feeds the distribution.
	limit := max(req.Limit, s.opts.HybridDefaultLimit)

	filters := req.Filters
	rr := RelevanceRequest{
		Text:           embeddingText(req),
		Filters:        &filters,
		Limit:          limit,
		Keywords:       req.SemanticKeywords,
		RequireKeyword: !req.DropKeywordFilter && len(distinctKeywords(req.SemanticKeywords)) > 0,
	}

	res, err := s.relevance.Rank(ctx, rr)
	if err != nil {
		return nil, err
	}

	s.logger.Debug("hybrid retrieval done",
		zap.Bool("keyword_filter", rr.RequireKeyword),
		zap.Int("limit", limit),
		zap.Int("candidates", len(res.Candidates)),
		zap.Int("total", res.Total),
	)
	return model.NewResultSet(model.Hybrid, res.Candidates, res.Total), nil
}
