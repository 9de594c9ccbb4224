package service

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/pgvector/pgvector-go"
	"go.uber.org/zap"

	"surveysearch/internal/model"
	"surveysearch/internal/repository"
)

// RelevanceRequest asks for rows ranked by semantic closeness to Text.
type RelevanceRequest struct {
	Text string
	// Filters, when set, pre-filter the candidate pool.
	Filters *model.Filters
	// DistanceCeiling, when set, is pushed into the WHERE clause.
	DistanceCeiling *float64
	Limit           int
	// Keywords are flagged per candidate with the negation guard.
	Keywords []string
	// RequireKeyword keeps only candidates with at least one non-negated
	// keyword match.
	RequireKeyword bool
	Timeout        time.Duration
}

// RelevanceResult holds candidates in ascending distance order.
type RelevanceResult struct {
	Candidates []model.Candidate
	Total      int
}

// RelevanceAdapter embeds text and ranks respondents by vector distance in
// one statement.
type RelevanceAdapter struct {
	runner    repository.QueryRunner
	embedder  Embedder
	dimension int
	negation  *NegationMatcher
	logger    *zap.Logger
}

// NewRelevanceAdapter fails fast when the embedder's declared dimension does
// not match the store column.
func NewRelevanceAdapter(
	runner repository.QueryRunner,
	embedder Embedder,
	storeDimension int,
	negation *NegationMatcher,
	logger *zap.Logger,
) (*RelevanceAdapter, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if negation == nil {
		negation = NewNegationMatcher(DefaultNegationWindow, nil)
	}
	if storeDimension <= 0 {
		return nil, fmt.Errorf("store vector dimension must be positive, got %d", storeDimension)
	}
	if embedder != nil && embedder.Dimension() != storeDimension {
		return nil, model.DimensionMismatch("relevance adapter", storeDimension, embedder.Dimension())
	}
	return &RelevanceAdapter{
		runner:    runner,
		embedder:  embedder,
		dimension: storeDimension,
		negation:  negation,
		logger:    logger,
	}, nil
}

// Rank runs the embedding round trip, then the store round trip.
func (a *RelevanceAdapter) Rank(ctx context.Context, req RelevanceRequest) (RelevanceResult, error) {
	text := strings.TrimSpace(req.Text)
	if text == "" {
		return RelevanceResult{}, model.WrapError(model.ErrInvalidRequest, "rank", fmt.Errorf("no text to embed"))
	}
	if a.embedder == nil {
		return RelevanceResult{}, model.WrapError(model.ErrEmbeddingUnavailable, "rank", fmt.Errorf("no embedder configured"))
	}

	vec, err := a.embedder.Embed(ctx, text)
	if err != nil {
		if model.IsKind(err, model.ErrEmbeddingUnavailable) {
			return RelevanceResult{}, err
		}
		return RelevanceResult{}, model.WrapError(model.ErrEmbeddingUnavailable, "rank", err)
	}
	if len(vec) != a.dimension {
		return RelevanceResult{}, model.DimensionMismatch("rank", a.dimension, len(vec))
	}

	spec, err := a.buildQuery(vec, req)
	if err != nil {
		return RelevanceResult{}, err
	}

	rows, err := a.runner.Query(ctx, spec)
	if err != nil {
		return RelevanceResult{}, err
	}
	candidates, total, err := candidatesFromRows(rows)
	if err != nil {
		return RelevanceResult{}, err
	}

	keywords := distinctKeywords(req.Keywords)
	if len(keywords) > 0 {
		kept := candidates[:0]
		for _, c := range candidates {
			c.KeywordMatches = a.negation.MatchAll(c.Text, keywords)
			if req.RequireKeyword && !anyMatch(c.KeywordMatches) {
				total--
				continue
			}
			kept = append(kept, c)
		}
		candidates = kept
	}
	if total < len(candidates) {
		total = len(candidates)
	}

	sortByDistance(candidates)

	a.logger.Debug("relevance ranking done",
		zap.Int("candidates", len(candidates)),
		zap.Int("total", total),
		zap.Bool("ceiling", req.DistanceCeiling != nil),
		zap.Bool("prefiltered", req.Filters != nil && !req.Filters.IsEmpty()),
		zap.Int("keywords", len(keywords)),
	)
	return RelevanceResult{Candidates: candidates, Total: total}, nil
}

func (a *RelevanceAdapter) buildQuery(vec []float32, req RelevanceRequest) (repository.QuerySpec, error) {
	b := repository.NewPredicateBuilder()

	distanceExpr := fmt.Sprintf("(e.embedding <-> CAST(%s AS vector(%d)))", b.Bind(pgvector.NewVector(vec)), a.dimension)

	if req.Filters != nil {
		if err := applyFilters(b, *req.Filters); err != nil {
			return repository.QuerySpec{}, err
		}
	}
	if req.DistanceCeiling != nil {
		b.AtMost(repository.KindDistance, repository.Expr(distanceExpr), *req.DistanceCeiling)
	}
	if req.RequireKeyword {
		b.ContainsAny(repository.Col("r."+repository.ColumnText), req.Keywords)
	}

	where, params, err := b.Render()
	if err != nil {
		return repository.QuerySpec{}, err
	}

	// Nearest-first survives the executor's outer LIMIT only because Postgres
	// inlines a single-use CTE; sortByDistance reorders what comes back but
	// cannot recover rows the LIMIT cut.
	sql := fmt.Sprintf(`SELECT %s, %s AS %s, COUNT(*) OVER () AS %s
FROM %s e
JOIN %s r ON r.respondent_id = e.respondent_id
WHERE %s
ORDER BY %s ASC, r.respondent_id ASC`,
		repository.CandidateColumns, distanceExpr, repository.ColumnDistance, repository.ColumnTotalCount,
		repository.EmbeddingsTable, repository.RespondentsTable,
		where, repository.ColumnDistance)

	return repository.QuerySpec{SQL: sql, Params: params, MaxRows: req.Limit, Timeout: req.Timeout}, nil
}

func distinctKeywords(keywords []string) []string {
	seen := map[string]bool{}
	var out []string
	for _, kw := range keywords {
		kw = strings.TrimSpace(kw)
		if kw == "" || seen[kw] {
			continue
		}
		seen[kw] = true
		out = append(out, kw)
	}
	return out
}

func anyMatch(flags map[string]bool) bool {
	for _, ok := range flags {
		if ok {
			return true
		}
	}
	return false
}

// sortByDistance restores distance order after the CTE wrapper, which does
// not guarantee it. Missing distances sort last.
func sortByDistance(cs []model.Candidate) {
	sort.SliceStable(cs, func(i, j int) bool {
		a, b := cs[i].Distance, cs[j].Distance
		switch {
		case a != nil && b != nil && *a != *b:
			return *a < *b
		case a != nil && b == nil:
			return true
		case a == nil && b != nil:
			return false
		}
		return cs[i].ID < cs[j].ID
	})
}
