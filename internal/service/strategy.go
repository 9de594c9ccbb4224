package service

import (
	"context"
	"time"

	"surveysearch/internal/model"
)

// StrategyRequest is the shared input of every retrieval strategy. The two
// flags are relaxations set only by the fallback controller.
type StrategyRequest struct {
	Filters          model.Filters
	SemanticKeywords []string
	SearchText       string
	Limit            int

	NoDistanceCeiling bool
	DropKeywordFilter bool
}

// Strategy runs one retrieval call. Strategies never retry; relaxation is
// the controller's job.
type Strategy interface {
	Name() model.StrategyDecision
	Search(ctx context.Context, req StrategyRequest) (*model.ResultSet, error)
}

// RetrievalOptions holds per-strategy page sizes and the per-call budget.
type RetrievalOptions struct {
	FilterDefaultLimit      int
	FilterMaxLimit          int
	UnfilteredSampleLimit   int
	SemanticDefaultLimit    int
	SemanticDistanceCeiling float64
	HybridDefaultLimit      int
	CallBudget              time.Duration
}

func DefaultRetrievalOptions() RetrievalOptions {
	return RetrievalOptions{
		FilterDefaultLimit:      300,
		FilterMaxLimit:          1000,
		UnfilteredSampleLimit:   50,
		SemanticDefaultLimit:    50,
		SemanticDistanceCeiling: 0.9,
		HybridDefaultLimit:      2000,
		CallBudget:              15 * time.Second,
	}
}

func (o RetrievalOptions) normalize() RetrievalOptions {
	def := DefaultRetrievalOptions()
	if o.FilterDefaultLimit <= 0 {
		o.FilterDefaultLimit = def.FilterDefaultLimit
	}
	if o.FilterMaxLimit <= 0 {
		o.FilterMaxLimit = def.FilterMaxLimit
	}
	if o.FilterDefaultLimit > o.FilterMaxLimit {
		o.FilterDefaultLimit = o.FilterMaxLimit
	}
	if o.UnfilteredSampleLimit <= 0 {
		o.UnfilteredSampleLimit = def.UnfilteredSampleLimit
	}
	if o.SemanticDefaultLimit <= 0 {
		o.SemanticDefaultLimit = def.SemanticDefaultLimit
	}
	if o.SemanticDistanceCeiling <= 0 {
		o.SemanticDistanceCeiling = def.SemanticDistanceCeiling
	}
	if o.HybridDefaultLimit <= 0 {
		o.HybridDefaultLimit = def.HybridDefaultLimit
	}
	if o.CallBudget <= 0 {
		o.CallBudget = def.CallBudget
	}
	return o
}

// withBudget bounds a single retrieval call in wall-clock time.
func withBudget(ctx context.Context, budget time.Duration) (context.Context, context.CancelFunc) {
	if budget <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, budget)
}

func embeddingText(req StrategyRequest) string {
	return model.ParsedQuery{SemanticKeywords: req.SemanticKeywords, SearchText: req.SearchText}.EmbeddingText()
}
