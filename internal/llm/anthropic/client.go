// Package anthropic adapts the Anthropic Messages API to the reasoning and
// vision roles. There is no SDK in use; requests are plain JSON over HTTP.
package anthropic

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"clinsight/internal/config"
	"clinsight/internal/llm"
	"clinsight/internal/port"
)

const (
	providerName = "anthropic"
	apiURL       = "https://api.anthropic.com/v1/messages"
	apiVersion   = "2023-06-01"
	defaultModel = "claude-sonnet-4-20250514"
)

func init() {
	llm.Reasoners.Register(providerName, func(cfg *config.ProviderConfig) (port.Reasoner, error) {
		return NewReasoner(cfg), nil
	})
	llm.Describers.Register(providerName, func(cfg *config.ProviderConfig) (port.VisionDescriber, error) {
		return NewDescriber(cfg), nil
	})
}

type client struct {
	apiKey   string
	model    string
	endpoint string
	http     *http.Client
}

func newClient(cfg *config.ProviderConfig, endpoint string, defaultTimeout time.Duration) *client {
	model := cfg.Model
	if model == "" {
		model = defaultModel
	}
	if endpoint == "" {
		endpoint = apiURL
		if cfg.BaseURL != "" {
			endpoint = strings.TrimRight(cfg.BaseURL, "/") + "/v1/messages"
		}
	}
	return &client{
		apiKey:   cfg.APIKey,
		model:    model,
		endpoint: endpoint,
		http:     &http.Client{Timeout: cfg.Timeout(defaultTimeout)},
	}
}

type message struct {
	Role    string         `json:"role"`
	Content []contentBlock `json:"content"`
}

type contentBlock struct {
	Type   string       `json:"type"`
	Text   string       `json:"text,omitempty"`
	Source *imageSource `json:"source,omitempty"`
}

type imageSource struct {
	Type      string `json:"type"`
	MediaType string `json:"media_type"`
	Data      string `json:"data"`
}

type messagesRequest struct {
	Model     string    `json:"model"`
	MaxTokens int       `json:"max_tokens"`
	System    string    `json:"system,omitempty"`
	Messages  []message `json:"messages"`
}

// messagesResponse models the Anthropic Messages API response.
type messagesResponse struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
	StopReason string `json:"stop_reason"`
}

// text returns the concatenated text blocks of the response.
func (r *messagesResponse) text() string {
	var b strings.Builder
	for _, block := range r.Content {
		if block.Type == "text" {
			b.WriteString(block.Text)
		}
	}
	return b.String()
}

func (c *client) send(ctx context.Context, reqBody *messagesRequest) (*messagesResponse, error) {
	bodyBytes, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("marshaling request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(bodyBytes))
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-key", c.apiKey)
	req.Header.Set("anthropic-version", apiVersion)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("calling anthropic API: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		baseErr := fmt.Errorf("anthropic API error (status %d): %s", resp.StatusCode, llm.Truncate(string(respBody), 300))
		if resp.StatusCode == http.StatusTooManyRequests {
			retryAfter := llm.ParseRetryAfterHeader(resp.Header.Get("Retry-After"))
			return nil, llm.NewRateLimitError(providerName, baseErr, retryAfter)
		}
		return nil, baseErr
	}

	var parsed messagesResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return nil, fmt.Errorf("unmarshaling response: %w", err)
	}
	if len(parsed.Content) == 0 {
		return nil, fmt.Errorf("empty response from API")
	}
	return &parsed, nil
}
