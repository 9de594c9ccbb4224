package service

import (
	"fmt"
	"strings"

	"surveysearch/internal/model"
	"surveysearch/internal/repository"
)

// applyFilters translates structured filters into predicates: gender is an
// equality, the age bucket a BETWEEN over computed age, the region a
// case-insensitive substring match.
func applyFilters(b *repository.PredicateBuilder, f model.Filters) error {
	if f.Gender != nil && strings.TrimSpace(*f.Gender) != "" {
		b.Equal(repository.Col("r."+repository.ColumnGender), strings.TrimSpace(*f.Gender))
	}
	if f.AgeBucket != nil && strings.TrimSpace(*f.AgeBucket) != "" {
		bucket, ok := model.ParseAgeBucket(*f.AgeBucket)
		if !ok {
			return model.WrapError(model.ErrInvalidRequest, "age bucket", fmt.Errorf("unrecognised value %q", *f.AgeBucket))
		}
		b.Between(repository.Expr(repository.AgeExpr), bucket.Min, bucket.Max)
	}
	if f.Region != nil && strings.TrimSpace(*f.Region) != "" {
		b.Contains(repository.Col("r."+repository.ColumnRegion), strings.TrimSpace(*f.Region))
	}
	return nil
}

// candidatesFromRows decodes rows and returns the window-count total.
func candidatesFromRows(rows []repository.Row) ([]model.Candidate, int, error) {
	out := make([]model.Candidate, 0, len(rows))
	for _, row := range rows {
		c, err := repository.CandidateFromRow(row)
		if err != nil {
			return nil, 0, model.WrapError(model.ErrExecutionFailure, "decode row", err)
		}
		out = append(out, c)
	}
	return out, repository.TotalFromRows(rows), nil
}
