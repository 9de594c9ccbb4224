package service

import (
	"context"
	"strings"
	"sync"

	"surveysearch/internal/model"
	"surveysearch/internal/repository"
)

// fakeRunner records every spec and answers with respond.
type fakeRunner struct {
	mu      sync.Mutex
	specs   []repository.QuerySpec
	respond func(spec repository.QuerySpec) ([]repository.Row, error)
}

func (f *fakeRunner) Query(_ context.Context, spec repository.QuerySpec) ([]repository.Row, error) {
	f.mu.Lock()
	f.specs = append(f.specs, spec)
	f.mu.Unlock()
	if f.respond == nil {
		return nil, nil
	}
	return f.respond(spec)
}

func (f *fakeRunner) lastSpec() repository.QuerySpec {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.specs[len(f.specs)-1]
}

func (f *fakeRunner) paramValues() []any {
	spec := f.lastSpec()
	out := make([]any, 0, len(spec.Params))
	for _, v := range spec.Params {
		out = append(out, v)
	}
	return out
}

type fakeEmbedder struct {
	dim   int
	err   error
	calls int
}

func (f *fakeEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	vec := make([]float32, f.dim)
	for i := range vec {
		vec[i] = float32(len(text)%7+i) / 10
	}
	return vec, nil
}

func (f *fakeEmbedder) Dimension() int {
	return f.dim
}

type testRow struct {
	id       int64
	gender   string
	age      int64
	region   string
	text     string
	distance *float64
}

// rowsOf renders testRows the way the executor returns them, with the
// window count set to total.
func rowsOf(total int64, withDistance bool, trs ...testRow) []repository.Row {
	cols := []string{
		repository.ColumnID, repository.ColumnGender, repository.ColumnAge,
		repository.ColumnRegion, repository.ColumnText,
	}
	if withDistance {
		cols = append(cols, repository.ColumnDistance)
	}
	cols = append(cols, repository.ColumnTotalCount)

	rows := make([]repository.Row, 0, len(trs))
	for _, tr := range trs {
		values := []any{tr.id, tr.gender, tr.age, tr.region, tr.text}
		if withDistance {
			var d any
			if tr.distance != nil {
				d = *tr.distance
			}
			values = append(values, d)
		}
		values = append(values, total)
		rows = append(rows, repository.Row{Columns: cols, Values: values})
	}
	return rows
}

func hasCeiling(spec repository.QuerySpec) bool {
	return strings.Contains(spec.SQL, ") <= :")
}

// stubStrategy answers from a queue of canned results.
type stubStrategy struct {
	name    model.StrategyDecision
	results []stubResult
	reqs    []StrategyRequest
}

type stubResult struct {
	rs  *model.ResultSet
	err error
}

func (s *stubStrategy) Name() model.StrategyDecision {
	return s.name
}

func (s *stubStrategy) Search(_ context.Context, req StrategyRequest) (*model.ResultSet, error) {
	s.reqs = append(s.reqs, req)
	if len(s.results) == 0 {
		return model.NewResultSet(s.name, nil, 0), nil
	}
	next := s.results[0]
	s.results = s.results[1:]
	if next.err != nil {
		return nil, next.err
	}
	next.rs.StrategyUsed = s.name
	return next.rs, nil
}
