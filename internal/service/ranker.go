package service

import (
	"sort"
	"strings"

	"surveysearch/internal/model"
)

// RankingWeights configures the reranker. The 0.6/0.4 split and the [0,2]
// distance range are tunable defaults, not derived constants.
type RankingWeights struct {
	Vector        float64
	Keyword       float64
	DistanceRange float64
}

// DefaultRankingWeights returns the shipped defaults.
func DefaultRankingWeights() RankingWeights {
	return RankingWeights{Vector: 0.6, Keyword: 0.4, DistanceRange: 2.0}
}

// Ranker combines semantic distance and keyword coverage into one score
type Ranker struct {
	weights RankingWeights
}

// NewRanker creates a new ranker with specified weights
func NewRanker(weights RankingWeights) *Ranker {
	if weights.DistanceRange <= 0 {
		weights.DistanceRange = DefaultRankingWeights().DistanceRange
	}
	return &Ranker{weights: weights}
}

// VectorScore maps a distance to [0,1], 1 being identical. A missing
// distance scores 0.
func (r *Ranker) VectorScore(distance *float64) float64 {
	if distance == nil {
		return 0
	}
	d := max(*distance, 0)
	return 1 - min(1, d/r.weights.DistanceRange)
}

// KeywordScore is the fraction of distinct query keywords flagged as
// present in the candidate.
func KeywordScore(matches map[string]bool, keywords []string) float64 {
	seen := map[string]bool{}
	hits := 0
	for _, kw := range keywords {
		kw = strings.TrimSpace(kw)
		if kw == "" || seen[kw] {
			continue
		}
		seen[kw] = true
		if matches[kw] {
			hits++
		}
	}
	if len(seen) == 0 {
		return 0
	}
	return float64(hits) / float64(len(seen))
}

// Rerank scores a copy of candidates and sorts it by final score
// descending, then distance ascending, then id ascending. The input slice is
// not modified.
func (r *Ranker) Rerank(candidates []model.Candidate, keywords []string) []model.Candidate {
	out := make([]model.Candidate, len(candidates))
	copy(out, candidates)

	for i := range out {
		kwScore := KeywordScore(out[i].KeywordMatches, keywords)
		final := r.weights.Vector*r.VectorScore(out[i].Distance) + r.weights.Keyword*kwScore
		out[i].KeywordMatchScore = &kwScore
		out[i].FinalScore = &final
	}

	sort.SliceStable(out, func(i, j int) bool {
		return rankedBefore(out[i], out[j])
	})
	return out
}

func rankedBefore(a, b model.Candidate) bool {
	if *a.FinalScore != *b.FinalScore {
		return *a.FinalScore > *b.FinalScore
	}
	switch {
	case a.Distance != nil && b.Distance != nil && *a.Distance != *b.Distance:
		return *a.Distance < *b.Distance
	case a.Distance != nil && b.Distance == nil:
		return true
	case a.Distance == nil && b.Distance != nil:
		return false
	}
	return a.ID < b.ID
}
