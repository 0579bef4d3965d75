package openai

import (
	"context"
	"errors"
	"fmt"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"clinsight/internal/config"
	"clinsight/internal/domain"
	"clinsight/internal/llm"
	"clinsight/internal/port"
)

// Reasoner implements port.Reasoner with a JSON-mode chat completion.
type Reasoner struct {
	client     *openai.Client
	model      string
	maxRetries int
	backoff    time.Duration
}

// NewReasoner creates an OpenAI-backed reasoner from a provider config.
func NewReasoner(cfg *config.ProviderConfig) *Reasoner {
	model := cfg.Model
	if model == "" {
		model = "gpt-4o"
	}
	return &Reasoner{
		client:     newClient(cfg, 180*time.Second),
		model:      model,
		maxRetries: cfg.MaxRetries,
		backoff:    2 * time.Second,
	}
}

func (r *Reasoner) Reason(ctx context.Context, input port.ReasoningInput) (*domain.StructuredAnalysis, error) {
	req := openai.ChatCompletionRequest{
		Model: r.model,
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: llm.ReasoningSystemPrompt()},
			{Role: openai.ChatMessageRoleUser, Content: llm.ReasoningUserPrompt(input.CaseText, input.Research)},
		},
	}
	setTokenLimit(&req, 8192)

	var content string
	err := llm.Retry(ctx, "openai.Reason", r.maxRetries, r.backoff, func(ctx context.Context) error {
		resp, err := r.client.CreateChatCompletion(ctx, req)
		if err != nil {
			return llm.ClassifyOpenAIError(providerName, err)
		}
		if len(resp.Choices) == 0 {
			return errors.New("empty response from API: no choices")
		}
		if resp.Choices[0].FinishReason == openai.FinishReasonLength {
			return &domain.ContractError{Detail: "output truncated (finish_reason: length)"}
		}
		content = resp.Choices[0].Message.Content
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("openai reasoning: %w", err)
	}

	analysis, err := llm.DecodeStructuredAnalysis(content)
	if err != nil {
		return nil, err
	}
	analysis.Model = providerName + "/" + r.model
	return analysis, nil
}
