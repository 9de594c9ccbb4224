package handler

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"surveysearch/internal/model"
)

var validActions = map[string]bool{
	"click":        true,
	"view_details": true,
	"export":       true,
}

// FeedbackHandler handles feedback-related HTTP requests
type FeedbackHandler struct {
	searchService Searcher
}

// NewFeedbackHandler creates a new feedback handler
func NewFeedbackHandler(searchService Searcher) *FeedbackHandler {
	return &FeedbackHandler{
		searchService: searchService,
	}
}

// Submit handles POST /api/v1/feedback
func (h *FeedbackHandler) Submit(c *gin.Context) {
	var req model.FeedbackRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request: " + err.Error(), "kind": "invalid_request"})
		return
	}

	action := strings.ToLower(strings.TrimSpace(req.Action))
	if !validActions[action] {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid action. Must be one of: click, view_details, export", "kind": "invalid_request"})
		return
	}

	if err := h.searchService.LogFeedback(c.Request.Context(), req.SearchID, req.RespondentID, action); err != nil {
		abortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, model.FeedbackResponse{
		Success: true,
		Message: "Feedback logged successfully",
	})
}
