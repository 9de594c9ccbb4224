package service

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"surveysearch/internal/model"
	"surveysearch/internal/repository"
)

type fakeParser struct {
	result model.ParsedQuery
	err    error
}

func (p *fakeParser) Parse(context.Context, string) (model.ParsedQuery, error) {
	return p.result.Clone(), p.err
}

type fakeStore struct {
	mu       sync.Mutex
	logs     []repository.SearchLogEntry
	feedback []string
}

func (s *fakeStore) GetRespondent(_ context.Context, id int64) (*model.Respondent, error) {
	if id != 42 {
		return nil, model.WrapError(model.ErrNotFound, "respondent", nil)
	}
	return &model.Respondent{ID: 42, Region: model.StringPtr("Seoul")}, nil
}

func (s *fakeStore) LogSearch(_ context.Context, entry repository.SearchLogEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.logs = append(s.logs, entry)
	return nil
}

func (s *fakeStore) LogFeedback(_ context.Context, searchID string, _ int64, action string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.feedback = append(s.feedback, searchID+":"+action)
	return nil
}

func newTestSearchService(t *testing.T, parser QueryParser, st *stubs, store SearchStore) *SearchService {
	t.Helper()
	logger := zaptest.NewLogger(t)
	controller := NewController([]Strategy{st.filter, st.semantic, st.hybrid}, nil, nil, logger)
	selector := NewSelector(NewCorrector(nil, logger, nil), logger)
	return NewSearchService(parser, selector, controller, store, logger)
}

func candidatesWithDemographics() stubResult {
	return stubResult{rs: model.NewResultSet("", []model.Candidate{
		{ID: 1, Gender: "F", Age: 23, Region: "Seoul"},
		{ID: 2, Gender: "F", Age: 27, Region: "Seoul"},
		{ID: 3, Gender: "M", Age: 25, Region: "Seoul"},
	}, 3)}
}

func TestSearchService_Search(t *testing.T) {
	st := &stubs{
		filter:   &stubStrategy{name: model.FilterOnly, results: []stubResult{candidatesWithDemographics()}},
		semantic: &stubStrategy{name: model.SemanticOnly},
		hybrid:   &stubStrategy{name: model.Hybrid},
	}
	store := &fakeStore{}
	parser := &fakeParser{result: model.ParsedQuery{SemanticKeywords: []string{"서울", "20대"}}}
	svc := newTestSearchService(t, parser, st, store)

	resp, err := svc.Search(context.Background(), &model.SearchRequest{
		Query:   "서울 사는 20대 2명",
		Options: &model.SearchOptions{Limit: 2},
	})
	require.NoError(t, err)
	svc.Wait()

	assert.Equal(t, model.FilterOnly, resp.StrategyUsed)
	assert.Equal(t, "Seoul", *resp.Parsed.Filters.Region)
	assert.Equal(t, "20s", *resp.Parsed.Filters.AgeBucket)

	require.Len(t, resp.Candidates, 2, "page trimmed to the requested limit")
	assert.Equal(t, 3, resp.TotalCount)
	assert.Equal(t, 2, resp.Distribution.ByGender["F"])
	assert.Equal(t, 1, resp.Distribution.ByGender["M"])
	assert.Equal(t, 3, resp.Distribution.ByAgeBucket["20s"])

	_, err = uuid.Parse(resp.SearchID)
	require.NoError(t, err)
	require.Len(t, store.logs, 1)
	assert.Equal(t, resp.SearchID, store.logs[0].SearchID)
	assert.Equal(t, model.FilterOnly, store.logs[0].Strategy)
	assert.Equal(t, 3, store.logs[0].ResultCount)

	require.Len(t, st.filter.reqs, 1)
	assert.Equal(t, 2, st.filter.reqs[0].Limit)
}

func TestSearchService_Errors(t *testing.T) {
	st := &stubs{
		filter:   &stubStrategy{name: model.FilterOnly},
		semantic: &stubStrategy{name: model.SemanticOnly},
		hybrid:   &stubStrategy{name: model.Hybrid},
	}
	store := &fakeStore{}

	svc := newTestSearchService(t, &fakeParser{}, st, store)
	_, err := svc.Search(context.Background(), &model.SearchRequest{Query: "  "})
	assert.True(t, model.IsKind(err, model.ErrInvalidRequest))

	svc = newTestSearchService(t, &fakeParser{err: model.WrapError(model.ErrParseFailure, "parse", nil)}, st, store)
	_, err = svc.Search(context.Background(), &model.SearchRequest{Query: "anything"})
	assert.True(t, model.IsKind(err, model.ErrParseFailure))

	svc = newTestSearchService(t, &fakeParser{result: model.ParsedQuery{SearchText: "x"}}, st, store)
	_, err = svc.Search(context.Background(), &model.SearchRequest{Query: "x", Options: &model.SearchOptions{Strategy: "magic"}})
	assert.True(t, model.IsKind(err, model.ErrInvalidRequest))

	svc.Wait()
	assert.Empty(t, store.logs, "failed searches are not logged")
}

func TestSearchService_StreamEvents(t *testing.T) {
	st := &stubs{
		filter:   &stubStrategy{name: model.FilterOnly},
		semantic: &stubStrategy{name: model.SemanticOnly, results: []stubResult{nothing(), found(4)}},
		hybrid:   &stubStrategy{name: model.Hybrid},
	}
	svc := newTestSearchService(t, &fakeParser{result: model.ParsedQuery{SearchText: "people who enjoy running"}}, st, &fakeStore{})

	var events []string
	resp, err := svc.SearchStream(context.Background(), &model.SearchRequest{Query: "runners"}, func(event string, _ any) error {
		events = append(events, event)
		return nil
	})
	require.NoError(t, err)
	svc.Wait()

	assert.Equal(t, []string{"parsed", "strategy", "attempt", "attempt"}, events)
	assert.Equal(t, model.FallbackSemanticNoThreshold, *resp.FallbackUsed)
}

func TestSearchService_StreamCallbackAborts(t *testing.T) {
	st := &stubs{
		filter:   &stubStrategy{name: model.FilterOnly},
		semantic: &stubStrategy{name: model.SemanticOnly},
		hybrid:   &stubStrategy{name: model.Hybrid},
	}
	svc := newTestSearchService(t, &fakeParser{result: model.ParsedQuery{SearchText: "x"}}, st, &fakeStore{})

	gone := errors.New("client disconnected")
	_, err := svc.SearchStream(context.Background(), &model.SearchRequest{Query: "x"}, func(string, any) error {
		return gone
	})
	assert.ErrorIs(t, err, gone)
	assert.Empty(t, st.semantic.reqs)
}

func TestSearchService_RespondentAndFeedback(t *testing.T) {
	store := &fakeStore{}
	svc := newTestSearchService(t, &fakeParser{}, &stubs{
		filter:   &stubStrategy{name: model.FilterOnly},
		semantic: &stubStrategy{name: model.SemanticOnly},
		hybrid:   &stubStrategy{name: model.Hybrid},
	}, store)

	r, err := svc.GetRespondent(context.Background(), 42)
	require.NoError(t, err)
	assert.Equal(t, "Seoul", *r.Region)

	_, err = svc.GetRespondent(context.Background(), 7)
	assert.True(t, model.IsKind(err, model.ErrNotFound))

	err = svc.LogFeedback(context.Background(), "not-a-uuid", 42, "click")
	assert.True(t, model.IsKind(err, model.ErrInvalidRequest))

	id := uuid.NewString()
	require.NoError(t, svc.LogFeedback(context.Background(), id, 42, "click"))
	assert.Equal(t, []string{id + ":click"}, store.feedback)
}
