package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"surveysearch/internal/model"
	"surveysearch/internal/service"
)

// Searcher is the service surface the HTTP layer needs.
type Searcher interface {
	Search(ctx context.Context, req *model.SearchRequest) (*model.SearchResponse, error)
	SearchStream(ctx context.Context, req *model.SearchRequest, callback service.SearchEventCallback) (*model.SearchResponse, error)
	GetRespondent(ctx context.Context, id int64) (*model.Respondent, error)
	LogFeedback(ctx context.Context, searchID string, respondentID int64, action string) error
}

// SearchHandler handles search-related HTTP requests
type SearchHandler struct {
	searchService Searcher
	defaultLimit  int
	maxLimit      int
	logger        *zap.Logger
}

// NewSearchHandler creates a new search handler. A zero defaultLimit leaves
// the page size to the chosen strategy.
func NewSearchHandler(searchService Searcher, defaultLimit, maxLimit int, logger *zap.Logger) *SearchHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SearchHandler{
		searchService: searchService,
		defaultLimit:  defaultLimit,
		maxLimit:      maxLimit,
		logger:        logger,
	}
}

func (h *SearchHandler) bind(c *gin.Context) (*model.SearchRequest, bool) {
	var req model.SearchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request: " + err.Error(), "kind": "invalid_request"})
		return nil, false
	}

	if req.Options == nil {
		req.Options = &model.SearchOptions{Limit: h.defaultLimit}
	}
	if req.Options.Limit <= 0 {
		req.Options.Limit = h.defaultLimit
	}
	if h.maxLimit > 0 && req.Options.Limit > h.maxLimit {
		req.Options.Limit = h.maxLimit
	}
	return &req, true
}

// Search handles POST /api/v1/search
func (h *SearchHandler) Search(c *gin.Context) {
	req, ok := h.bind(c)
	if !ok {
		return
	}

	response, err := h.searchService.Search(c.Request.Context(), req)
	if err != nil {
		h.logger.Warn("search failed", zap.String("query", req.Query), zap.Error(err))
		abortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, response)
}

// SearchStream handles POST /api/v1/search/stream - SSE streaming search
func (h *SearchHandler) SearchStream(c *gin.Context) {
	req, ok := h.bind(c)
	if !ok {
		return
	}

	// Set SSE headers
	c.Header("Content-Type", "text/event-stream; charset=utf-8")
	c.Header("Cache-Control", "no-cache, no-store, must-revalidate")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")

	flusher, ok := c.Writer.(http.Flusher)
	if !ok {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Streaming not supported"})
		return
	}

	sendSSE(c, "start", map[string]any{"query": req.Query})
	flusher.Flush()

	response, err := h.searchService.SearchStream(c.Request.Context(), req, func(event string, data any) error {
		if err := c.Request.Context().Err(); err != nil {
			return err
		}
		sendSSE(c, event, data)
		flusher.Flush()
		return nil
	})
	if err != nil {
		h.logger.Warn("streaming search failed", zap.String("query", req.Query), zap.Error(err))
		sendSSE(c, "error", map[string]any{"error": err.Error(), "kind": model.KindOf(err), "status": statusFor(err)})
		flusher.Flush()
		return
	}

	sendSSE(c, "results", response)
	flusher.Flush()

	sendSSE(c, "done", map[string]any{"search_id": response.SearchID, "took_ms": response.Took})
	flusher.Flush()
}

// sendSSE sends a Server-Sent Event
func sendSSE(c *gin.Context, event string, data any) {
	if data == nil {
		fmt.Fprintf(c.Writer, "event: %s\ndata: {}\n\n", event)
		return
	}
	jsonData, err := json.Marshal(data)
	if err != nil {
		fmt.Fprintf(c.Writer, "event: error\ndata: {\"error\": \"JSON marshal failed\"}\n\n")
		return
	}
	fmt.Fprintf(c.Writer, "event: %s\ndata: %s\n\n", event, jsonData)
}

// GetRespondent handles GET /api/v1/respondents/:id
func (h *SearchHandler) GetRespondent(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid respondent ID", "kind": "invalid_request"})
		return
	}

	respondent, err := h.searchService.GetRespondent(c.Request.Context(), id)
	if err != nil {
		abortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, respondent)
}
