package service

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"surveysearch/internal/model"
	"surveysearch/internal/resilience"
	"surveysearch/internal/utils"
)

const parseOperation = "chat_completion"

// QueryParser turns a natural-language question into a ParsedQuery.
type QueryParser interface {
	Parse(ctx context.Context, text string) (model.ParsedQuery, error)
}

const parserSystemPrompt = `You convert questions about survey respondents into JSON.
Return one JSON object with these fields and nothing else:
- "gender": "M" or "F" when the question restricts gender, otherwise null
- "age_bucket": a decade such as "20s" or "60s+" when the question restricts age, otherwise null
- "region": a Korean region name such as "Seoul" or "Gyeonggi" when the question restricts region, otherwise null
- "keywords": short topical terms about what respondents said or do, without gender, age or region words
- "search_text": one descriptive sentence of the kind of respondent being sought, or "" when there is no topic
- "limit": the number of respondents requested, or null
Questions may be in Korean or English.`

// LLMQueryParser asks an OpenAI-compatible chat model for the JSON above.
type LLMQueryParser struct {
	client AIClient
	guard  *resilience.Guard
	logger *zap.Logger
}

func NewLLMQueryParser(client AIClient, guard *resilience.Guard, logger *zap.Logger) *LLMQueryParser {
	if logger == nil {
		logger = zap.NewNop()
	}
	if guard == nil {
		guard = resilience.NewGuard(resilience.DefaultPolicy(), logger)
	}
	return &LLMQueryParser{client: client, guard: guard, logger: logger}
}

// Parse never degrades to an empty query: every upstream or decoding problem
// is an ErrParseFailure.
func (p *LLMQueryParser) Parse(ctx context.Context, text string) (model.ParsedQuery, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return model.ParsedQuery{}, model.WrapError(model.ErrInvalidRequest, "parse", fmt.Errorf("empty query"))
	}
	if p.client == nil || !p.client.IsEnabled() {
		return model.ParsedQuery{}, model.WrapError(model.ErrParseFailure, "parse", ErrAIDisabled)
	}

	var content string
	err := p.guard.Do(ctx, parseOperation, func(ctx context.Context) error {
		resp, err := p.client.ChatCompletion(ctx, ChatCompletionRequest{
			Messages: []ChatMessage{
				{Role: "system", Content: parserSystemPrompt},
				{Role: "user", Content: text},
			},
			ResponseFormat: &ResponseFormat{Type: "json_object"},
		})
		if err != nil {
			return err
		}
		if len(resp.Choices) == 0 {
			return fmt.Errorf("no choices in response")
		}
		content = resp.Choices[0].Message.Content
		return nil
	}, classifyUpstreamError)
	if err != nil {
		p.logger.Warn("query parse failed", zap.Error(err))
		return model.ParsedQuery{}, model.WrapError(model.ErrParseFailure, "parse", err)
	}

	var raw AIQueryResponse
	if err := utils.ParseAIJSON(content, &raw); err != nil {
		p.logger.Warn("unparseable model output", zap.String("content", utils.Truncate(content, 200)), zap.Error(err))
		return model.ParsedQuery{}, model.WrapError(model.ErrParseFailure, "decode parser output", err)
	}

	parsed, err := raw.toParsedQuery()
	if err != nil {
		return model.ParsedQuery{}, model.WrapError(model.ErrParseFailure, "decode parser output", err)
	}

	p.logger.Debug("query parsed",
		zap.String("query", text),
		zap.Any("filters", parsed.Filters),
		zap.Strings("keywords", parsed.SemanticKeywords),
		zap.String("search_text", parsed.SearchText),
	)
	return parsed, nil
}

func (r AIQueryResponse) toParsedQuery() (model.ParsedQuery, error) {
	q := model.ParsedQuery{
		Filters: model.Filters{
			Gender:    trimmedOrNil(r.Gender),
			AgeBucket: trimmedOrNil(r.AgeBucket),
			Region:    trimmedOrNil(r.Region),
		},
		SearchText: strings.TrimSpace(r.SearchText),
	}
	for _, kw := range r.Keywords {
		if kw = strings.TrimSpace(kw); kw != "" {
			q.SemanticKeywords = append(q.SemanticKeywords, kw)
		}
	}
	if r.Limit != nil {
		if *r.Limit <= 0 {
			return model.ParsedQuery{}, fmt.Errorf("invalid limit %d", *r.Limit)
		}
		limit := *r.Limit
		q.Limit = &limit
	}
	return q, nil
}

func trimmedOrNil(s *string) *string {
	if s == nil {
		return nil
	}
	v := strings.TrimSpace(*s)
	if v == "" || strings.EqualFold(v, "null") {
		return nil
	}
	return &v
}
