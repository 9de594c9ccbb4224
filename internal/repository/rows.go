package repository

import (
	"fmt"
	"strconv"

	"surveysearch/internal/model"
)

// Schema names shared by every retrieval statement.
const (
	RespondentsTable = "respondents"
	EmbeddingsTable  = "respondent_embeddings"

	ColumnID         = "respondent_id"
	ColumnGender     = "gender"
	ColumnAge        = "age"
	ColumnRegion     = "region"
	ColumnText       = "answer_text"
	ColumnDistance   = "distance"
	ColumnTotalCount = "total_count"

	// AgeExpr computes age from birth year for the respondents alias "r".
	AgeExpr = "CAST(date_part('year', CURRENT_DATE) - r.birth_year AS integer)"

	// CandidateColumns is the projection every retrieval statement shares.
	CandidateColumns = "r.respondent_id, r.gender, " + AgeExpr + " AS age, r.region, r.answer_text"
)

// CandidateFromRow decodes the shared projection. Distance is optional.
func CandidateFromRow(row Row) (model.Candidate, error) {
	var c model.Candidate

	raw, ok := row.Get(ColumnID)
	if !ok {
		return c, fmt.Errorf("row has no %s column", ColumnID)
	}
	id, err := asInt64(raw)
	if err != nil {
		return c, fmt.Errorf("decode %s: %w", ColumnID, err)
	}
	c.ID = id

	if v, ok := row.Get(ColumnGender); ok {
		c.Gender = asString(v)
	}
	if v, ok := row.Get(ColumnAge); ok && v != nil {
		age, err := asInt64(v)
		if err != nil {
			return c, fmt.Errorf("decode %s: %w", ColumnAge, err)
		}
		c.Age = int(age)
	}
	if v, ok := row.Get(ColumnRegion); ok {
		c.Region = asString(v)
	}
	if v, ok := row.Get(ColumnText); ok {
		c.Text = asString(v)
	}
	if v, ok := row.Get(ColumnDistance); ok && v != nil {
		d, err := asFloat64(v)
		if err != nil {
			return c, fmt.Errorf("decode %s: %w", ColumnDistance, err)
		}
		c.Distance = &d
	}
	return c, nil
}

// TotalFromRows reads the COUNT(*) OVER () column of the first row.
func TotalFromRows(rows []Row) int {
	if len(rows) == 0 {
		return 0
	}
	v, ok := rows[0].Get(ColumnTotalCount)
	if !ok || v == nil {
		return len(rows)
	}
	n, err := asInt64(v)
	if err != nil {
		return len(rows)
	}
	return int(n)
}

func asInt64(v any) (int64, error) {
	switch t := v.(type) {
	case int64:
		return t, nil
	case int32:
		return int64(t), nil
	case int:
		return int64(t), nil
	case float64:
		return int64(t), nil
	case string:
		return strconv.ParseInt(t, 10, 64)
	}
	return 0, fmt.Errorf("unexpected type %T", v)
}

func asFloat64(v any) (float64, error) {
	switch t := v.(type) {
	case float64:
		return t, nil
	case float32:
		return float64(t), nil
	case int64:
		return float64(t), nil
	case string:
		return strconv.ParseFloat(t, 64)
	}
	return 0, fmt.Errorf("unexpected type %T", v)
}

func asString(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	}
	return fmt.Sprint(v)
}
