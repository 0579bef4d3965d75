package gemini

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"google.golang.org/genai"

	"clinsight/internal/config"
	"clinsight/internal/llm"
	"clinsight/internal/port"
)

const providerName = "gemini"

func init() {
	llm.Describers.Register(providerName, func(cfg *config.ProviderConfig) (port.VisionDescriber, error) {
		return NewDescriber(context.Background(), cfg)
	})
}

// Describer implements port.VisionDescriber with Gemini multimodal input.
type Describer struct {
	client     *genai.Client
	model      string
	maxRetries int
	backoff    time.Duration
}

// NewDescriber creates a Gemini-backed image describer from a provider config.
func NewDescriber(ctx context.Context, cfg *config.ProviderConfig) (*Describer, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("gemini API key is required")
	}
	model := cfg.Model
	if model == "" {
		model = "gemini-2.5-flash"
	}
	clientCfg := &genai.ClientConfig{
		APIKey:     cfg.APIKey,
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: &http.Client{Timeout: cfg.Timeout(90 * time.Second)},
	}
	if cfg.BaseURL != "" {
		clientCfg.HTTPOptions = genai.HTTPOptions{BaseURL: cfg.BaseURL}
	}
	client, err := genai.NewClient(ctx, clientCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create GenAI client: %w", err)
	}
	return &Describer{
		client:     client,
		model:      model,
		maxRetries: cfg.MaxRetries,
		backoff:    time.Second,
	}, nil
}

func (d *Describer) Describe(ctx context.Context, input port.VisionInput) (string, error) {
	if len(input.Images) == 0 {
		return "", errors.New("gemini vision: no images")
	}

	parts := []*genai.Part{genai.NewPartFromText(llm.VisionPrompt(input.CaseText))}
	for _, img := range input.Images {
		parts = append(parts, genai.NewPartFromBytes(img.Data, img.ContentType))
	}
	contents := []*genai.Content{genai.NewContentFromParts(parts, genai.RoleUser)}

	var text string
	err := llm.Retry(ctx, "gemini.Describe", d.maxRetries, d.backoff, func(ctx context.Context) error {
		resp, err := d.client.Models.GenerateContent(ctx, d.model, contents, nil)
		if err != nil {
			return classify(err)
		}
		text = strings.TrimSpace(resp.Text())
		if text == "" {
			return errors.New("empty image description")
		}
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("gemini vision: %w", err)
	}
	return text, nil
}

func classify(err error) error {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) && apiErr.Code == http.StatusTooManyRequests {
		return llm.NewRateLimitError(providerName, err, 0)
	}
	var apiErrPtr *genai.APIError
	if errors.As(err, &apiErrPtr) && apiErrPtr.Code == http.StatusTooManyRequests {
		return llm.NewRateLimitError(providerName, err, 0)
	}
	return err
}
