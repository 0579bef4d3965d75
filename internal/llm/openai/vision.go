package openai

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"clinsight/internal/config"
	"clinsight/internal/llm"
	"clinsight/internal/port"
)

// Describer implements port.VisionDescriber with multimodal chat input.
type Describer struct {
	client     *openai.Client
	model      string
	maxRetries int
	backoff    time.Duration
}

// NewDescriber creates an OpenAI-backed image describer from a provider config.
func NewDescriber(cfg *config.ProviderConfig) *Describer {
	model := cfg.Model
	if model == "" {
		model = "gpt-4o"
	}
	return &Describer{
		client:     newClient(cfg, 90*time.Second),
		model:      model,
		maxRetries: cfg.MaxRetries,
		backoff:    time.Second,
	}
}

func (d *Describer) Describe(ctx context.Context, input port.VisionInput) (string, error) {
	if len(input.Images) == 0 {
		return "", errors.New("openai vision: no images")
	}

	parts := []openai.ChatMessagePart{
		{Type: openai.ChatMessagePartTypeText, Text: llm.VisionPrompt(input.CaseText)},
	}
	for _, img := range input.Images {
		dataURI := fmt.Sprintf("data:%s;base64,%s", img.ContentType, base64.StdEncoding.EncodeToString(img.Data))
		parts = append(parts, openai.ChatMessagePart{
			Type: openai.ChatMessagePartTypeImageURL,
			ImageURL: &openai.ChatMessageImageURL{
				URL:    dataURI,
				Detail: openai.ImageURLDetailHigh,
			},
		})
	}

	req := openai.ChatCompletionRequest{
		Model: d.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, MultiContent: parts},
		},
	}
	setTokenLimit(&req, 2048)

	var text string
	err := llm.Retry(ctx, "openai.Describe", d.maxRetries, d.backoff, func(ctx context.Context) error {
		resp, err := d.client.CreateChatCompletion(ctx, req)
		if err != nil {
			return llm.ClassifyOpenAIError(providerName, err)
		}
		if len(resp.Choices) == 0 {
			return errors.New("empty response from API: no choices")
		}
		text = strings.TrimSpace(resp.Choices[0].Message.Content)
		if text == "" {
			return errors.New("empty image description")
		}
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("openai vision: %w", err)
	}
	return text, nil
}
