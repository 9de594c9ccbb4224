package service

import (
	"context"

	"go.uber.org/zap"

	"surveysearch/internal/model"
)

// SemanticStrategy ranks every respondent by distance to the query text,
// ignoring structured filters. Nothing under the ceiling is an empty
// result, not an error.
type SemanticStrategy struct {
	relevance *RelevanceAdapter
	opts      RetrievalOptions
	logger    *zap.Logger
}

func NewSemanticStrategy(relevance *RelevanceAdapter, opts RetrievalOptions, logger *zap.Logger) *SemanticStrategy {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SemanticStrategy{relevance: relevance, opts: opts.normalize(), logger: logger}
}

func (s *SemanticStrategy) Name() model.StrategyDecision {
	return model.SemanticOnly
}

func (s *SemanticStrategy) Search(ctx context.Context, req StrategyRequest) (*model.ResultSet, error) {
	ctx, cancel := withBudget(ctx, s.opts.CallBudget)
	defer cancel()

	limit := req.Limit
	if limit <= 0 {
		limit = s.opts.SemanticDefaultLimit
	}

	rr := RelevanceRequest{
		Text:     embeddingText(req),
		Limit:    limit,
		Keywords: req.SemanticKeywords,
	}
	if !req.NoDistanceCeiling {
		ceiling := s.opts.SemanticDistanceCeiling
		rr.DistanceCeiling = &ceiling
	}

	res, err := s.relevance.Rank(ctx, rr)
	if err != nil {
		return nil, err
	}

	s.logger.Debug("semantic retrieval done",
		zap.Bool("ceiling", rr.DistanceCeiling != nil),
		zap.Int("limit", limit),
		zap.Int("candidates", len(res.Candidates)),
	)
	return model.NewResultSet(model.SemanticOnly, res.Candidates, res.Total), nil
}
