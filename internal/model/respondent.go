package model

// Respondent is one row of the survey table.
type Respondent struct {
	ID         int64   `json:"id" db:"respondent_id"`
	Gender     *string `json:"gender,omitempty" db:"gender"`
	BirthYear  *int    `json:"birth_year,omitempty" db:"birth_year"`
	Age        *int    `json:"age,omitempty" db:"age"`
	Region     *string `json:"region,omitempty" db:"region"`
	AnswerText *string `json:"answer_text,omitempty" db:"answer_text"`
}

// Candidate is one retrieved respondent together with its relevance signals.
type Candidate struct {
	ID                int64           `json:"id"`
	Gender            string          `json:"gender,omitempty"`
	Age               int             `json:"age,omitempty"`
	Region            string          `json:"region,omitempty"`
	Text              string          `json:"text,omitempty"`
	Distance          *float64        `json:"distance,omitempty"`
	KeywordMatches    map[string]bool `json:"keyword_matches,omitempty"`
	KeywordMatchScore *float64        `json:"keyword_match_score,omitempty"`
	FinalScore        *float64        `json:"final_score,omitempty"`
}

// Distribution counts candidates per demographic attribute.
type Distribution struct {
	ByGender    map[string]int `json:"by_gender"`
	ByAgeBucket map[string]int `json:"by_age_bucket"`
	ByRegion    map[string]int `json:"by_region"`
}

// ResultSet is the outcome of a retrieval.
type ResultSet struct {
	Candidates   []Candidate      `json:"candidates"`
	TotalCount   int              `json:"total_count"`
	HasResults   bool             `json:"has_results"`
	StrategyUsed StrategyDecision `json:"strategy_used"`
	FallbackUsed *string          `json:"fallback_used"`
	Attempts     []Attempt        `json:"attempts,omitempty"`
	Distribution *Distribution    `json:"distribution,omitempty"`
}

// NewResultSet fills the derived fields.
func NewResultSet(strategy StrategyDecision, candidates []Candidate, total int) *ResultSet {
	if candidates == nil {
		candidates = []Candidate{}
	}
	if total < len(candidates) {
		total = len(candidates)
	}
	return &ResultSet{
		Candidates:   candidates,
		TotalCount:   total,
		HasResults:   len(candidates) > 0,
		StrategyUsed: strategy,
	}
}

// Empty reports whether nothing was retrieved.
func (r *ResultSet) Empty() bool {
	return r == nil || len(r.Candidates) == 0
}

// Summarize counts every candidate by gender, age bucket and region.
func Summarize(candidates []Candidate) *Distribution {
	d := &Distribution{
		ByGender:    map[string]int{},
		ByAgeBucket: map[string]int{},
		ByRegion:    map[string]int{},
	}
	for _, c := range candidates {
		d.ByGender[orUnknown(c.Gender)]++
		d.ByRegion[orUnknown(c.Region)]++
		if c.Age > 0 {
			d.ByAgeBucket[AgeBucketFor(c.Age)]++
		} else {
			d.ByAgeBucket["unknown"]++
		}
	}
	return d
}

func orUnknown(s string) string {
	if s == "" {
		return "unknown"
	}
	return s
}
