package classify

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/sashabaranov/go-openai"

	coreerrors "github.com/jamesbarge/pictures/internal/core/errors"
)

const classifyPrompt = `You classify cinema listing titles. Given a raw listing title, respond with strict JSON only, no prose:
{"event_types":["special_event"|"q_and_a"|"festival"|"double_bill"|"marathon"|"season"],"format":"35mm"|"70mm"|"IMAX"|"4K"|"","is_3d":false,"subtitled":false,"audio_described":false,"relaxed":false,"season":""}
List every applicable event type, most specific first. Leave fields empty or false when the title gives no signal.`

// llmService classifies titles via an OpenAI-compatible chat completion
// returning strict JSON.
type llmService struct {
	client  *openai.Client
	model   string
	timeout time.Duration
	logger  *zerolog.Logger
}

// NewLLMService creates the external classification backend. Returns nil
// when no API key is configured so the classifier degrades to local
// heuristics.
func NewLLMService(apiKey, model string, timeout time.Duration, logger *zerolog.Logger) Service {
	if apiKey == "" {
		return nil
	}

	return &llmService{
		client:  openai.NewClient(apiKey),
		model:   model,
		timeout: timeout,
		logger:  logger,
	}
}

func (s *llmService) Classify(ctx context.Context, rawTitle string) (*ServiceResult, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	resp, err := s.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: s.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: classifyPrompt},
			{Role: openai.ChatMessageRoleUser, Content: rawTitle},
		},
		Temperature: 0,
	})
	if err != nil {
		return nil, fmt.Errorf("classify completion: %w", err)
	}

	if len(resp.Choices) == 0 {
		return nil, coreerrors.ErrEmptyResponse
	}

	content := extractJSON(resp.Choices[0].Message.Content)

	var result ServiceResult
	if err := json.Unmarshal([]byte(content), &result); err != nil {
		return nil, fmt.Errorf("parse classification response: %w", err)
	}

	return &result, nil
}

// extractJSON strips markdown code fences some models wrap around JSON.
func extractJSON(content string) string {
	content = strings.TrimSpace(content)
	content = strings.TrimPrefix(content, "```json")
	content = strings.TrimPrefix(content, "```")
	content = strings.TrimSuffix(content, "```")

	return strings.TrimSpace(content)
}
