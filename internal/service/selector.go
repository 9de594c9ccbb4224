package service

import (
	"strings"

	"go.uber.org/zap"

	"surveysearch/internal/model"
)

// Select picks the retrieval strategy for a parsed query. With neither
// filters nor semantic signal it returns FilterOnly, which the filter
// strategy turns into a small capped sample.
func Select(q model.ParsedQuery) model.StrategyDecision {
	hasFilters := !q.Filters.IsEmpty()
	hasSemantic := q.HasSemanticSignal()

	switch {
	case hasFilters && hasSemantic:
		return model.Hybrid
	case hasSemantic:
		return model.SemanticOnly
	default:
		return model.FilterOnly
	}
}

// Plan is a corrected query with its strategy.
type Plan struct {
	Query       model.ParsedQuery      `json:"query"`
	Strategy    model.StrategyDecision `json:"strategy"`
	Forced      bool                   `json:"forced,omitempty"`
	Corrections []Correction           `json:"corrections,omitempty"`
}

// Selector runs the correction pass and then Select. Correction must come
// first: lifting "Seoul" out of the keywords can turn SemanticOnly into
// Hybrid or FilterOnly.
type Selector struct {
	corrector *Corrector
	logger    *zap.Logger
}

func NewSelector(corrector *Corrector, logger *zap.Logger) *Selector {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Selector{corrector: corrector, logger: logger}
}

// Plan corrects q and decides. A non-empty forced name overrides the
// decision; it is validated and logged.
func (s *Selector) Plan(q model.ParsedQuery, forced string) (Plan, error) {
	corrected, changes := q.Clone(), []Correction(nil)
	if s.corrector != nil {
		corrected, changes = s.corrector.Correct(q)
	}

	plan := Plan{Query: corrected, Strategy: Select(corrected), Corrections: changes}

	if strings.TrimSpace(forced) != "" {
		decision, err := model.ParseStrategy(forced)
		if err != nil {
			return Plan{}, err
		}
		if decision != plan.Strategy {
			s.logger.Info("strategy forced by caller",
				zap.String("selected", string(plan.Strategy)),
				zap.String("forced", string(decision)),
			)
		}
		plan.Strategy = decision
		plan.Forced = true
	}

	s.logger.Info("strategy selected",
		zap.String("strategy", string(plan.Strategy)),
		zap.Bool("forced", plan.Forced),
		zap.Bool("has_filters", !corrected.Filters.IsEmpty()),
		zap.Bool("has_semantic_signal", corrected.HasSemanticSignal()),
		zap.Int("corrections", len(changes)),
	)
	return plan, nil
}
