package anthropic

import (
	"context"
	"fmt"
	"time"

	"clinsight/internal/config"
	"clinsight/internal/domain"
	"clinsight/internal/llm"
	"clinsight/internal/port"
)

// Reasoner implements port.Reasoner using the Anthropic Messages API.
type Reasoner struct {
	client     *client
	maxRetries int
	backoff    time.Duration
}

// NewReasoner creates a Claude-backed reasoner from a provider config.
func NewReasoner(cfg *config.ProviderConfig) *Reasoner {
	return newReasoner(cfg, "")
}

// NewReasonerWithEndpoint creates a reasoner pointing at a custom API endpoint (for testing).
func NewReasonerWithEndpoint(cfg *config.ProviderConfig, endpoint string) *Reasoner {
	return newReasoner(cfg, endpoint)
}

func newReasoner(cfg *config.ProviderConfig, endpoint string) *Reasoner {
	return &Reasoner{
		client:     newClient(cfg, endpoint, 180*time.Second),
		maxRetries: cfg.MaxRetries,
		backoff:    2 * time.Second,
	}
}

func (r *Reasoner) Reason(ctx context.Context, input port.ReasoningInput) (*domain.StructuredAnalysis, error) {
	req := &messagesRequest{
		Model:     r.client.model,
		MaxTokens: 8192,
		System:    llm.ReasoningSystemPrompt(),
		Messages: []message{{
			Role:    "user",
			Content: []contentBlock{{Type: "text", Text: llm.ReasoningUserPrompt(input.CaseText, input.Research)}},
		}},
	}

	var content string
	err := llm.Retry(ctx, "anthropic.Reason", r.maxRetries, r.backoff, func(ctx context.Context) error {
		resp, err := r.client.send(ctx, req)
		if err != nil {
			return err
		}
		if resp.StopReason == "max_tokens" {
			return &domain.ContractError{Detail: "output truncated (stop_reason: max_tokens)"}
		}
		content = resp.text()
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("anthropic reasoning: %w", err)
	}

	analysis, err := llm.DecodeStructuredAnalysis(content)
	if err != nil {
		return nil, err
	}
	analysis.Model = providerName + "/" + r.client.model
	return analysis, nil
}
