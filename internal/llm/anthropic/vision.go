package anthropic

import (
	"context"
	"encoding/base64"
	"fmt"
	"strings"
	"time"

	"clinsight/internal/config"
	"clinsight/internal/llm"
	"clinsight/internal/port"
)

// Describer implements port.VisionDescriber with Claude image input.
type Describer struct {
	client *client
}

// NewDescriber creates a Claude-backed image describer.
func NewDescriber(cfg *config.ProviderConfig) *Describer {
	return &Describer{client: newClient(cfg, "", 90*time.Second)}
}

// NewDescriberWithEndpoint creates a describer pointing at a custom API endpoint (for testing).
func NewDescriberWithEndpoint(cfg *config.ProviderConfig, endpoint string) *Describer {
	return &Describer{client: newClient(cfg, endpoint, 90*time.Second)}
}

func (d *Describer) Describe(ctx context.Context, input port.VisionInput) (string, error) {
	if len(input.Images) == 0 {
		return "", fmt.Errorf("no images to describe")
	}

	blocks := make([]contentBlock, 0, len(input.Images)+1)
	for _, img := range input.Images {
		blocks = append(blocks, contentBlock{
			Type: "image",
			Source: &imageSource{
				Type:      "base64",
				MediaType: mediaType(img.ContentType),
				Data:      base64.StdEncoding.EncodeToString(img.Data),
			},
		})
	}
	blocks = append(blocks, contentBlock{Type: "text", Text: llm.VisionPrompt(input.CaseText)})

	resp, err := d.client.send(ctx, &messagesRequest{
		Model:     d.client.model,
		MaxTokens: 2048,
		Messages:  []message{{Role: "user", Content: blocks}},
	})
	if err != nil {
		return "", fmt.Errorf("anthropic vision: %w", err)
	}
	return strings.TrimSpace(resp.text()), nil
}

func mediaType(contentType string) string {
	if i := strings.IndexByte(contentType, ';'); i >= 0 {
		contentType = contentType[:i]
	}
	return strings.TrimSpace(contentType)
}
