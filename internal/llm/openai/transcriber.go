package openai

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"clinsight/internal/config"
	"clinsight/internal/llm"
	"clinsight/internal/port"
)

// Transcriber implements port.Transcriber with the Whisper audio API.
type Transcriber struct {
	client     *openai.Client
	model      string
	maxRetries int
	backoff    time.Duration
}

// NewTranscriber creates an OpenAI-backed transcriber from a provider config.
func NewTranscriber(cfg *config.ProviderConfig) *Transcriber {
	model := cfg.Model
	if model == "" {
		model = openai.Whisper1
	}
	return &Transcriber{
		client:     newClient(cfg, 120*time.Second),
		model:      model,
		maxRetries: cfg.MaxRetries,
		backoff:    time.Second,
	}
}

func (t *Transcriber) Transcribe(ctx context.Context, input port.TranscriptionInput) (string, error) {
	if len(input.Audio) == 0 {
		return "", fmt.Errorf("openai transcription: empty audio")
	}
	fileName := input.FileName
	if fileName == "" {
		fileName = "recording.webm"
	}

	var text string
	err := llm.Retry(ctx, "openai.Transcribe", t.maxRetries, t.backoff, func(ctx context.Context) error {
		resp, err := t.client.CreateTranscription(ctx, openai.AudioRequest{
			Model:    t.model,
			FilePath: fileName,
			Reader:   bytes.NewReader(input.Audio),
			Language: input.Language,
			Format:   openai.AudioResponseFormatJSON,
		})
		if err != nil {
			return llm.ClassifyOpenAIError(providerName, err)
		}
		text = resp.Text
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("openai transcription: %w", err)
	}
	return strings.TrimSpace(text), nil
}
