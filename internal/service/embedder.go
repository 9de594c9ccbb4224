package service

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"surveysearch/internal/model"
	"surveysearch/internal/resilience"
)

const embedOperation = "embeddings"

// Embedder turns text into a fixed-dimension vector.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	Dimension() int
}

// OpenAIEmbedder calls the embeddings endpoint through the resilience
// guard. It holds no per-request state.
type OpenAIEmbedder struct {
	client    AIClient
	dimension int
	guard     *resilience.Guard
	logger    *zap.Logger
}

func NewOpenAIEmbedder(client AIClient, dimension int, guard *resilience.Guard, logger *zap.Logger) *OpenAIEmbedder {
	if logger == nil {
		logger = zap.NewNop()
	}
	if guard == nil {
		guard = resilience.NewGuard(resilience.DefaultPolicy(), logger)
	}
	return &OpenAIEmbedder{client: client, dimension: dimension, guard: guard, logger: logger}
}

func (e *OpenAIEmbedder) Dimension() int {
	return e.dimension
}

// Embed returns ErrEmbeddingUnavailable on any upstream failure and a
// dimension mismatch error when the provider returns the wrong length.
func (e *OpenAIEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, model.WrapError(model.ErrEmbeddingUnavailable, "embed", fmt.Errorf("empty text"))
	}
	if e.client == nil || !e.client.IsEnabled() {
		return nil, model.WrapError(model.ErrEmbeddingUnavailable, "embed", ErrAIDisabled)
	}

	var vector []float32
	err := e.guard.Do(ctx, embedOperation, func(ctx context.Context) error {
		vectors, err := e.client.CreateEmbeddings(ctx, []string{text})
		if err != nil {
			return err
		}
		if len(vectors) != 1 {
			return fmt.Errorf("expected 1 embedding, got %d", len(vectors))
		}
		vector = vectors[0]
		return nil
	}, classifyUpstreamError)
	if err != nil {
		e.logger.Warn("embedding unavailable",
			zap.Bool("circuit_open", resilience.BreakerOpen(err)),
			zap.Error(err),
		)
		return nil, model.WrapError(model.ErrEmbeddingUnavailable, "embed", err)
	}

	if e.dimension > 0 && len(vector) != e.dimension {
		return nil, model.DimensionMismatch("embed", e.dimension, len(vector))
	}
	return vector, nil
}
