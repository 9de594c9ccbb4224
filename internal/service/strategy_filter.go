package service

import (
	"context"
	"fmt"
	"sort"

	"go.uber.org/zap"

	"surveysearch/internal/model"
	"surveysearch/internal/repository"
)

// FilterStrategy answers purely structured queries with one statement.
// Without any filter it returns a small capped sample instead of scanning.
type FilterStrategy struct {
	runner repository.QueryRunner
	opts   RetrievalOptions
	logger *zap.Logger
}

func NewFilterStrategy(runner repository.QueryRunner, opts RetrievalOptions, logger *zap.Logger) *FilterStrategy {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &FilterStrategy{runner: runner, opts: opts.normalize(), logger: logger}
}

func (s *FilterStrategy) Name() model.StrategyDecision {
	return model.FilterOnly
}

func (s *FilterStrategy) Search(ctx context.Context, req StrategyRequest) (*model.ResultSet, error) {
	ctx, cancel := withBudget(ctx, s.opts.CallBudget)
	defer cancel()

	b := repository.NewPredicateBuilder()
	if err := applyFilters(b, req.Filters); err != nil {
		return nil, err
	}
	where, params, err := b.Render()
	if err != nil {
		return nil, err
	}

	limit := s.limit(req)
	// COUNT(*) OVER () keeps page and total in one snapshot.
	sql := fmt.Sprintf(`SELECT %s, COUNT(*) OVER () AS %s
FROM %s r
WHERE %s
ORDER BY r.respondent_id ASC`,
		repository.CandidateColumns, repository.ColumnTotalCount, repository.RespondentsTable, where)

	rows, err := s.runner.Query(ctx, repository.QuerySpec{SQL: sql, Params: params, MaxRows: limit})
	if err != nil {
		return nil, err
	}
	candidates, total, err := candidatesFromRows(rows)
	if err != nil {
		return nil, err
	}
	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].ID < candidates[j].ID
	})

	s.logger.Debug("filter retrieval done",
		zap.Int("predicates", len(b.Predicates())),
		zap.Int("limit", limit),
		zap.Int("candidates", len(candidates)),
		zap.Int("total", total),
	)
	return model.NewResultSet(model.FilterOnly, candidates, total), nil
}

func (s *FilterStrategy) limit(req StrategyRequest) int {
	if req.Filters.IsEmpty() {
		if req.Limit > 0 && req.Limit < s.opts.UnfilteredSampleLimit {
			return req.Limit
		}
		return s.opts.UnfilteredSampleLimit
	}
	switch {
	case req.Limit <= 0:
		return s.opts.FilterDefaultLimit
	case req.Limit > s.opts.FilterMaxLimit:
		return s.opts.FilterMaxLimit
	}
	return req.Limit
}
