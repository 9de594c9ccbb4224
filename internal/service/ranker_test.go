package service

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"surveysearch/internal/model"
)

func float64Ptr(v float64) *float64 {
	return &v
}

func TestRankerScores(t *testing.T) {
	r := NewRanker(DefaultRankingWeights())

	out := r.Rerank([]model.Candidate{
		{ID: 1, Distance: float64Ptr(0.5), KeywordMatches: map[string]bool{"running": true, "marathon": false}},
	}, []string{"running", "marathon"})

	require.Len(t, out, 1)
	// vector 1-0.25=0.75, keyword 0.5
	assert.InDelta(t, 0.5, *out[0].KeywordMatchScore, 1e-9)
	assert.InDelta(t, 0.6*0.75+0.4*0.5, *out[0].FinalScore, 1e-9)
}

func TestRankerOrdersByFinalScoreThenDistanceThenID(t *testing.T) {
	r := NewRanker(DefaultRankingWeights())
	keywords := []string{"shopping"}

	in := []model.Candidate{
		{ID: 4, Distance: float64Ptr(0.8)},
		{ID: 3, Distance: float64Ptr(0.8)},
		{ID: 2, Distance: float64Ptr(1.0), KeywordMatches: map[string]bool{"shopping": true}},
		{ID: 1, Distance: float64Ptr(0.2)},
		{ID: 5},
	}
	out := r.Rerank(in, keywords)

	ids := make([]int64, len(out))
	for i, c := range out {
		ids[i] = c.ID
	}
	// id2: 0.6*0.5+0.4 = 0.70; id1: 0.6*0.9 = 0.54; id3/id4: 0.36; id5: 0
	assert.Equal(t, []int64{2, 1, 3, 4, 5}, ids)

	// input untouched
	assert.Nil(t, in[0].FinalScore)
	assert.Equal(t, int64(4), in[0].ID)
}

func TestRankerNegatedKeywordDoesNotCount(t *testing.T) {
	matcher := NewNegationMatcher(DefaultNegationWindow, []string{"never"})
	r := NewRanker(DefaultRankingWeights())
	keywords := []string{"run"}

	negated := model.Candidate{ID: 1, Distance: float64Ptr(0.3), Text: "has never run regularly"}
	negated.KeywordMatches = matcher.MatchAll(negated.Text, keywords)
	positive := model.Candidate{ID: 2, Distance: float64Ptr(0.3), Text: "I run regularly"}
	positive.KeywordMatches = matcher.MatchAll(positive.Text, keywords)

	out := r.Rerank([]model.Candidate{negated, positive}, keywords)
	require.Len(t, out, 2)
	assert.Equal(t, int64(2), out[0].ID)
	assert.Equal(t, 0.0, *out[1].KeywordMatchScore)
	assert.Equal(t, 1.0, *out[0].KeywordMatchScore)
}

func TestRankerFinalScoreMonotonicInDistance(t *testing.T) {
	r := NewRanker(DefaultRankingWeights())
	rng := rand.New(rand.NewSource(7))
	keywords := []string{"a", "b"}

	for i := 0; i < 200; i++ {
		matches := map[string]bool{"a": rng.Intn(2) == 0, "b": rng.Intn(2) == 0}
		far := rng.Float64() * 3
		near := far * rng.Float64()

		out := r.Rerank([]model.Candidate{
			{ID: 1, Distance: float64Ptr(far), KeywordMatches: matches},
			{ID: 2, Distance: float64Ptr(near), KeywordMatches: matches},
		}, keywords)

		var farScore, nearScore float64
		for _, c := range out {
			if c.ID == 1 {
				farScore = *c.FinalScore
			} else {
				nearScore = *c.FinalScore
			}
		}
		require.GreaterOrEqual(t, nearScore, farScore, "far=%v near=%v", far, near)
		assert.Equal(t, int64(2), out[0].ID)
	}
}

func TestRankerTotalOrder(t *testing.T) {
	r := NewRanker(DefaultRankingWeights())
	rng := rand.New(rand.NewSource(11))

	var in []model.Candidate
	for i := 0; i < 60; i++ {
		c := model.Candidate{ID: int64(i)}
		if i%7 != 0 {
			c.Distance = float64Ptr(float64(rng.Intn(5)) / 4)
		}
		c.KeywordMatches = map[string]bool{"x": rng.Intn(2) == 0}
		in = append(in, c)
	}

	first := r.Rerank(in, []string{"x"})
	rng.Shuffle(len(in), func(i, j int) { in[i], in[j] = in[j], in[i] })
	second := r.Rerank(in, []string{"x"})

	require.Len(t, second, len(first))
	for i := range first {
		assert.Equal(t, first[i].ID, second[i].ID, "position %d", i)
	}
	for i := 1; i < len(first); i++ {
		assert.False(t, rankedBefore(first[i], first[i-1]), "position %d out of order", i)
	}
}

func TestRankerCustomWeights(t *testing.T) {
	r := NewRanker(RankingWeights{Vector: 0, Keyword: 1, DistanceRange: 1})

	out := r.Rerank([]model.Candidate{
		{ID: 1, Distance: float64Ptr(0.1)},
		{ID: 2, Distance: float64Ptr(0.9), KeywordMatches: map[string]bool{"k": true}},
	}, []string{"k"})
	assert.Equal(t, int64(2), out[0].ID)
	assert.Equal(t, 0.0, r.VectorScore(float64Ptr(5)))
	assert.Equal(t, 0.0, KeywordScore(nil, nil))
}
