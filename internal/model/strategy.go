package model

import (
	"fmt"
	"strings"
	"time"
)

// StrategyDecision names one of the three retrieval strategies.
type StrategyDecision string

const (
	FilterOnly   StrategyDecision = "filter_only"
	SemanticOnly StrategyDecision = "semantic_only"
	Hybrid       StrategyDecision = "hybrid"
)

// ParseStrategy accepts the canonical names used on the wire.
func ParseStrategy(s string) (StrategyDecision, error) {
	switch StrategyDecision(strings.ToLower(strings.TrimSpace(s))) {
	case FilterOnly:
		return FilterOnly, nil
	case SemanticOnly:
		return SemanticOnly, nil
	case Hybrid:
		return Hybrid, nil
	}
	return "", fmt.Errorf("%w: unknown strategy %q", ErrInvalidRequest, s)
}

// Fallback tags recorded on a ResultSet when a relaxed attempt ran.
const (
	FallbackSemanticNoThreshold        = "semantic_no_threshold"
	FallbackHybridEscalation           = "hybrid_escalation"
	FallbackSemanticFromFilter         = "semantic_from_filter"
	FallbackHybridNoKeyword            = "hybrid_no_keyword"
	FallbackFilterEmbeddingUnavailable = "filter_embedding_unavailable"
)

// AttemptState tracks a single retrieval call.
type AttemptState string

const (
	AttemptPending   AttemptState = "pending"
	AttemptExecuting AttemptState = "executing"
	AttemptSucceeded AttemptState = "succeeded"
	AttemptFailed    AttemptState = "failed"
)

// Attempt is one entry of the attempt trail.
type Attempt struct {
	Strategy   StrategyDecision `json:"strategy"`
	Fallback   string           `json:"fallback,omitempty"`
	State      AttemptState     `json:"state"`
	Candidates int              `json:"candidates"`
	Error      string           `json:"error,omitempty"`
	Duration   time.Duration    `json:"duration_ns"`
}
