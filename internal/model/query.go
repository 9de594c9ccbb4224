package model

// SearchRequest represents a search query request
type SearchRequest struct {
	Query   string         `json:"query" binding:"required"`
	Options *SearchOptions `json:"options,omitempty"`
}

// SearchOptions tweaks a single search
type SearchOptions struct {
	Limit    int    `json:"limit"`
	Strategy string `json:"strategy,omitempty"` // force filter_only|semantic_only|hybrid
}

// SearchResponse represents a search result response
type SearchResponse struct {
	SearchID string       `json:"search_id"`
	Query    string       `json:"query"`
	Parsed   *ParsedQuery `json:"parsed"`
	*ResultSet
	Took int64 `json:"took_ms"`
}

// FeedbackRequest represents user feedback/action
type FeedbackRequest struct {
	SearchID     string `json:"search_id" binding:"required"`
	RespondentID int64  `json:"respondent_id" binding:"required"`
	Action       string `json:"action" binding:"required"` // click, view_details, export
}

// FeedbackResponse represents feedback response
type FeedbackResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
}
