package model

import "strings"

// Filters holds the structured predicates lifted from a query. A nil field
// means the predicate is absent.
type Filters struct {
	Gender    *string `json:"gender,omitempty"`
	AgeBucket *string `json:"age_bucket,omitempty"`
	Region    *string `json:"region,omitempty"`
}

// IsEmpty reports whether no predicate is set.
func (f Filters) IsEmpty() bool {
	return isBlank(f.Gender) && isBlank(f.AgeBucket) && isBlank(f.Region)
}

// ParsedQuery is the structured form of a natural-language question.
type ParsedQuery struct {
	Filters          Filters  `json:"filters"`
	SemanticKeywords []string `json:"semantic_keywords,omitempty"`
	SearchText       string   `json:"search_text,omitempty"`
	Limit            *int     `json:"limit,omitempty"`
}

// HasSemanticSignal reports whether keywords or a search sentence are present.
func (q ParsedQuery) HasSemanticSignal() bool {
	if strings.TrimSpace(q.SearchText) != "" {
		return true
	}
	for _, kw := range q.SemanticKeywords {
		if strings.TrimSpace(kw) != "" {
			return true
		}
	}
	return false
}

// EmbeddingText prefers the descriptive sentence and falls back to the
// joined keywords.
func (q ParsedQuery) EmbeddingText() string {
	if text := strings.TrimSpace(q.SearchText); text != "" {
		return text
	}
	parts := make([]string, 0, len(q.SemanticKeywords))
	for _, kw := range q.SemanticKeywords {
		if kw = strings.TrimSpace(kw); kw != "" {
			parts = append(parts, kw)
		}
	}
	return strings.Join(parts, " ")
}

// Clone returns a deep copy so that corrections never alias caller state.
func (q ParsedQuery) Clone() ParsedQuery {
	out := ParsedQuery{
		Filters: Filters{
			Gender:    cloneString(q.Filters.Gender),
			AgeBucket: cloneString(q.Filters.AgeBucket),
			Region:    cloneString(q.Filters.Region),
		},
		SearchText: q.SearchText,
	}
	if q.SemanticKeywords != nil {
		out.SemanticKeywords = append([]string{}, q.SemanticKeywords...)
	}
	if q.Limit != nil {
		limit := *q.Limit
		out.Limit = &limit
	}
	return out
}

func isBlank(s *string) bool {
	return s == nil || strings.TrimSpace(*s) == ""
}

func cloneString(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}

// StringPtr is a small helper for building filters.
func StringPtr(s string) *string {
	return &s
}
