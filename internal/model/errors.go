package model

import (
	"context"
	"errors"
	"fmt"

	"github.com/lib/pq"
)

var (
	ErrRejectedQuery        = errors.New("rejected query")
	ErrExecutionFailure     = errors.New("execution failure")
	ErrEmbeddingUnavailable = errors.New("embedding unavailable")
	ErrDimensionMismatch    = errors.New("dimension mismatch")
	ErrParseFailure         = errors.New("parse failure")
	ErrInvalidRequest       = errors.New("invalid request")
	ErrNotFound             = errors.New("not found")
)

// queryCanceled is the SQLSTATE Postgres reports when statement_timeout fires.
const queryCanceled = "57014"

// WrapError preserves typed semantic errors with operation context.
func WrapError(kind error, operation string, err error) error {
	if err == nil {
		return fmt.Errorf("%s: %w", operation, kind)
	}
	return fmt.Errorf("%s: %w: %w", operation, kind, err)
}

// DimensionMismatch builds an error that is both ErrDimensionMismatch and
// ErrEmbeddingUnavailable.
func DimensionMismatch(operation string, want, got int) error {
	return fmt.Errorf("%s: %w: %w: expected %d dimensions, got %d",
		operation, ErrEmbeddingUnavailable, ErrDimensionMismatch, want, got)
}

func IsKind(err error, kind error) bool {
	return errors.Is(err, kind)
}

// IsTimeout reports whether err stems from a statement timeout or an expired
// caller deadline.
func IsTimeout(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return string(pqErr.Code) == queryCanceled
	}
	return false
}

// KindOf returns a short label for the error taxonomy, used for metrics and
// HTTP mapping.
func KindOf(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrRejectedQuery):
		return "rejected_query"
	case errors.Is(err, ErrDimensionMismatch):
		return "dimension_mismatch"
	case errors.Is(err, ErrEmbeddingUnavailable):
		return "embedding_unavailable"
	case errors.Is(err, ErrExecutionFailure):
		if IsTimeout(err) {
			return "execution_timeout"
		}
		return "execution_failure"
	case errors.Is(err, ErrParseFailure):
		return "parse_failure"
	case errors.Is(err, ErrInvalidRequest):
		return "invalid_request"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, context.Canceled):
		return "canceled"
	case errors.Is(err, context.DeadlineExceeded):
		return "deadline_exceeded"
	default:
		return "internal"
	}
}
