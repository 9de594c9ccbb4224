package handler

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"surveysearch/internal/model"
)

// statusFor maps the error taxonomy to HTTP status codes.
func statusFor(err error) int {
	switch {
	case model.IsKind(err, model.ErrRejectedQuery), model.IsKind(err, model.ErrInvalidRequest):
		return http.StatusBadRequest
	case model.IsKind(err, model.ErrParseFailure):
		return http.StatusUnprocessableEntity
	case model.IsKind(err, model.ErrEmbeddingUnavailable):
		return http.StatusServiceUnavailable
	case model.IsKind(err, model.ErrNotFound):
		return http.StatusNotFound
	case model.IsKind(err, model.ErrExecutionFailure):
		if model.IsTimeout(err) {
			return http.StatusGatewayTimeout
		}
		return http.StatusBadGateway
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	}
	return http.StatusInternalServerError
}

func errorBody(err error) gin.H {
	return gin.H{"error": err.Error(), "kind": model.KindOf(err)}
}

func abortWithError(c *gin.Context, err error) {
	c.JSON(statusFor(err), errorBody(err))
}
