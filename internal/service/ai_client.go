package service

import (
	"context"
)

// AIClient is the interface for OpenAI-compatible providers
type AIClient interface {
	// ChatCompletion runs one non-streaming chat request
	ChatCompletion(ctx context.Context, req ChatCompletionRequest) (*ChatCompletionResponse, error)

	// CreateEmbeddings generates embeddings for texts, in input order
	CreateEmbeddings(ctx context.Context, texts []string) ([][]float32, error)

	// IsEnabled returns whether the AI client is configured and ready
	IsEnabled() bool
}

// AIQueryResponse is the JSON object the parser asks the model for
type AIQueryResponse struct {
	Gender     *string  `json:"gender,omitempty"`
	AgeBucket  *string  `json:"age_bucket,omitempty"`
	Region     *string  `json:"region,omitempty"`
	Keywords   []string `json:"keywords,omitempty"`
	SearchText string   `json:"search_text,omitempty"`
	Limit      *int     `json:"limit,omitempty"`
}

// Ensure OpenAIClient implements AIClient
var _ AIClient = (*OpenAIClient)(nil)
