package service

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"surveysearch/internal/config"
	"surveysearch/internal/model"
	"surveysearch/internal/resilience"
)

func newFakeOpenAI(t *testing.T, handler http.HandlerFunc) *OpenAIClient {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	return NewOpenAIClient(&config.OpenAIConfig{
		APIKey:              "test-key",
		APIBase:             srv.URL,
		ChatModel:           "test-chat",
		EmbeddingModel:      "test-embed",
		EmbeddingDimensions: 3,
		Timeout:             5 * time.Second,
		Enabled:             true,
	}, nil)
}

func fastRetries() *resilience.Guard {
	return resilience.NewGuard(resilience.Policy{Attempts: 2, Backoff: time.Millisecond}, nil)
}

func chatReply(content string) map[string]any {
	return map[string]any{
		"id":    "chatcmpl-1",
		"model": "test-chat",
		"choices": []map[string]any{
			{"index": 0, "message": map[string]string{"role": "assistant", "content": content}, "finish_reason": "stop"},
		},
	}
}

func TestLLMQueryParser_Parse(t *testing.T) {
	client := newFakeOpenAI(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))

		var req ChatCompletionRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "test-chat", req.Model)
		require.NotNil(t, req.ResponseFormat)
		assert.Equal(t, "json_object", req.ResponseFormat.Type)

		content := "```json\n{\"gender\": \"F\", \"age_bucket\": \"30s\", \"region\": null, " +
			"\"keywords\": [\"online shopping\", \" \"], \"search_text\": \"frequent online shoppers\", \"limit\": 20}\n```"
		_ = json.NewEncoder(w).Encode(chatReply(content))
	})

	p := NewLLMQueryParser(client, fastRetries(), nil)
	got, err := p.Parse(context.Background(), "30대 여성 중 온라인 쇼핑을 자주 하는 사람 20명")
	require.NoError(t, err)

	assert.Equal(t, "F", *got.Filters.Gender)
	assert.Equal(t, "30s", *got.Filters.AgeBucket)
	assert.Nil(t, got.Filters.Region)
	assert.Equal(t, []string{"online shopping"}, got.SemanticKeywords)
	assert.Equal(t, "frequent online shoppers", got.SearchText)
	require.NotNil(t, got.Limit)
	assert.Equal(t, 20, *got.Limit)
}

func TestLLMQueryParser_Failures(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		content string
	}{
		{name: "server error", status: http.StatusInternalServerError},
		{name: "bad request", status: http.StatusBadRequest},
		{name: "prose without json", status: http.StatusOK, content: "I could not understand the question."},
		{name: "negative limit", status: http.StatusOK, content: `{"keywords": ["x"], "limit": -3}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := newFakeOpenAI(t, func(w http.ResponseWriter, r *http.Request) {
				if tt.status != http.StatusOK {
					http.Error(w, "upstream broke", tt.status)
					return
				}
				_ = json.NewEncoder(w).Encode(chatReply(tt.content))
			})

			_, err := NewLLMQueryParser(client, fastRetries(), nil).Parse(context.Background(), "anything")
			require.Error(t, err)
			assert.True(t, model.IsKind(err, model.ErrParseFailure), "got %v", err)
		})
	}
}

func TestLLMQueryParser_RetriesTransientStatus(t *testing.T) {
	var calls atomic.Int32
	client := newFakeOpenAI(t, func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			http.Error(w, "busy", http.StatusServiceUnavailable)
			return
		}
		_ = json.NewEncoder(w).Encode(chatReply(`{"keywords": ["running"], "search_text": ""}`))
	})

	got, err := NewLLMQueryParser(client, fastRetries(), nil).Parse(context.Background(), "runners")
	require.NoError(t, err)
	assert.Equal(t, []string{"running"}, got.SemanticKeywords)
	assert.Equal(t, int32(2), calls.Load())
}

func TestLLMQueryParser_EmptyAndDisabled(t *testing.T) {
	p := NewLLMQueryParser(NewOpenAIClient(&config.OpenAIConfig{}, nil), nil, nil)

	_, err := p.Parse(context.Background(), "   ")
	assert.True(t, model.IsKind(err, model.ErrInvalidRequest))

	_, err = p.Parse(context.Background(), "people in Seoul")
	assert.True(t, model.IsKind(err, model.ErrParseFailure))
	assert.ErrorIs(t, err, ErrAIDisabled)
}

func TestOpenAIEmbedder_Embed(t *testing.T) {
	client := newFakeOpenAI(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/embeddings", r.URL.Path)
		var req EmbeddingRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, []string{"people who enjoy running"}, req.Input)
		assert.Equal(t, "float", req.EncodingFormat)

		_ = json.NewEncoder(w).Encode(map[string]any{
			"model": "test-embed",
			"data":  []map[string]any{{"index": 0, "embedding": []float32{0.1, 0.2, 0.3}}},
		})
	})

	e := NewOpenAIEmbedder(client, 3, fastRetries(), nil)
	vec, err := e.Embed(context.Background(), "people who enjoy running")
	require.NoError(t, err)
	assert.Equal(t, []float32{0.1, 0.2, 0.3}, vec)
	assert.Equal(t, 3, e.Dimension())
}

func TestOpenAIEmbedder_Failures(t *testing.T) {
	t.Run("dimension mismatch", func(t *testing.T) {
		client := newFakeOpenAI(t, func(w http.ResponseWriter, r *http.Request) {
			_ = json.NewEncoder(w).Encode(map[string]any{
				"data": []map[string]any{{"index": 0, "embedding": []float32{0.1, 0.2}}},
			})
		})
		_, err := NewOpenAIEmbedder(client, 3, fastRetries(), nil).Embed(context.Background(), "x")
		assert.True(t, model.IsKind(err, model.ErrDimensionMismatch))
		assert.True(t, model.IsKind(err, model.ErrEmbeddingUnavailable))
	})

	t.Run("provider down", func(t *testing.T) {
		client := newFakeOpenAI(t, func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "down", http.StatusBadGateway)
		})
		_, err := NewOpenAIEmbedder(client, 3, fastRetries(), nil).Embed(context.Background(), "x")
		assert.True(t, model.IsKind(err, model.ErrEmbeddingUnavailable))
		assert.False(t, model.IsKind(err, model.ErrDimensionMismatch))
	})

	t.Run("disabled client", func(t *testing.T) {
		e := NewOpenAIEmbedder(NewOpenAIClient(&config.OpenAIConfig{}, nil), 3, nil, nil)
		_, err := e.Embed(context.Background(), "x")
		assert.True(t, model.IsKind(err, model.ErrEmbeddingUnavailable))
	})
}
