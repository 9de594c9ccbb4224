package service

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"surveysearch/internal/model"
	"surveysearch/internal/repository"
)

// SearchStore is the static-SQL side of the repository.
type SearchStore interface {
	GetRespondent(ctx context.Context, id int64) (*model.Respondent, error)
	LogSearch(ctx context.Context, entry repository.SearchLogEntry) error
	LogFeedback(ctx context.Context, searchID string, respondentID int64, action string) error
}

// SearchService handles search business logic: parse, correct and select,
// retrieve with fallback, summarise, log.
type SearchService struct {
	parser     QueryParser
	selector   *Selector
	controller *Controller
	store      SearchStore
	logger     *zap.Logger

	logTimeout time.Duration
	pending    sync.WaitGroup
}

// NewSearchService creates a new search service
func NewSearchService(
	parser QueryParser,
	selector *Selector,
	controller *Controller,
	store SearchStore,
	logger *zap.Logger,
) *SearchService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SearchService{
		parser:     parser,
		selector:   selector,
		controller: controller,
		store:      store,
		logger:     logger,
		logTimeout: 5 * time.Second,
	}
}

// SearchEventCallback is called for streaming search events
type SearchEventCallback func(event string, data any) error

// Search performs a complete search
func (s *SearchService) Search(ctx context.Context, req *model.SearchRequest) (*model.SearchResponse, error) {
	return s.search(ctx, req, nil)
}

// SearchStream performs a search and reports "parsed", "strategy" and
// "attempt" events as the pipeline advances. A callback error aborts the
// search.
func (s *SearchService) SearchStream(ctx context.Context, req *model.SearchRequest, callback SearchEventCallback) (*model.SearchResponse, error) {
	return s.search(ctx, req, callback)
}

func (s *SearchService) search(ctx context.Context, req *model.SearchRequest, callback SearchEventCallback) (*model.SearchResponse, error) {
	startTime := time.Now()

	query := strings.TrimSpace(req.Query)
	if query == "" {
		return nil, model.WrapError(model.ErrInvalidRequest, "search", nil)
	}
	opts := req.Options
	if opts == nil {
		opts = &model.SearchOptions{}
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var streamErr error
	emit := func(event string, data any) {
		if callback == nil || streamErr != nil {
			return
		}
		if err := callback(event, data); err != nil {
			streamErr = err
			cancel()
		}
	}

	parsed, err := s.parser.Parse(ctx, query)
	if err != nil {
		return nil, err
	}
	if opts.Limit > 0 {
		limit := opts.Limit
		parsed.Limit = &limit
	}
	emit("parsed", parsed)
	if streamErr != nil {
		return nil, streamErr
	}

	plan, err := s.selector.Plan(parsed, opts.Strategy)
	if err != nil {
		return nil, err
	}
	emit("strategy", plan)
	if streamErr != nil {
		return nil, streamErr
	}

	rs, err := s.controller.Run(ctx, plan, RunOptions{
		OnAttempt: func(a model.Attempt) { emit("attempt", a) },
	})
	if streamErr != nil {
		return nil, streamErr
	}
	if err != nil {
		return nil, err
	}

	// The distribution covers the whole retrieved pool, the page may not.
	rs.Distribution = model.Summarize(rs.Candidates)
	if plan.Query.Limit != nil && len(rs.Candidates) > *plan.Query.Limit {
		rs.Candidates = rs.Candidates[:*plan.Query.Limit]
	}

	took := time.Since(startTime).Milliseconds()
	searchID := uuid.NewString()

	s.logSearch(repository.SearchLogEntry{
		SearchID:       searchID,
		Query:          query,
		Strategy:       rs.StrategyUsed,
		Fallback:       rs.FallbackUsed,
		Keywords:       plan.Query.SemanticKeywords,
		ResultCount:    rs.TotalCount,
		ResponseTimeMs: int(took),
	})

	s.logger.Info("search completed",
		zap.String("search_id", searchID),
		zap.String("strategy", string(rs.StrategyUsed)),
		zap.Int("results", len(rs.Candidates)),
		zap.Int("total", rs.TotalCount),
		zap.Int64("took_ms", took),
	)

	return &model.SearchResponse{
		SearchID:  searchID,
		Query:     query,
		Parsed:    &plan.Query,
		ResultSet: rs,
		Took:      took,
	}, nil
}

// logSearch writes the search log off the request path.
func (s *SearchService) logSearch(entry repository.SearchLogEntry) {
	if s.store == nil {
		return
	}
	s.pending.Add(1)
	go func() {
		defer s.pending.Done()
		ctx, cancel := context.WithTimeout(context.Background(), s.logTimeout)
		defer cancel()
		if err := s.store.LogSearch(ctx, entry); err != nil {
			s.logger.Warn("failed to log search", zap.String("search_id", entry.SearchID), zap.Error(err))
		}
	}()
}

// Wait blocks until pending search logs are written.
func (s *SearchService) Wait() {
	s.pending.Wait()
}

// GetRespondent retrieves a single respondent by ID
func (s *SearchService) GetRespondent(ctx context.Context, id int64) (*model.Respondent, error) {
	return s.store.GetRespondent(ctx, id)
}

// LogFeedback logs user feedback/action
func (s *SearchService) LogFeedback(ctx context.Context, searchID string, respondentID int64, action string) error {
	if _, err := uuid.Parse(searchID); err != nil {
		return model.WrapError(model.ErrInvalidRequest, "search id", err)
	}
	return s.store.LogFeedback(ctx, searchID, respondentID, action)
}
