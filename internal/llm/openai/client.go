package openai

import (
	"net/http"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"clinsight/internal/config"
	"clinsight/internal/llm"
	"clinsight/internal/port"
)

const providerName = "openai"

func init() {
	llm.Reasoners.Register(providerName, func(cfg *config.ProviderConfig) (port.Reasoner, error) {
		return NewReasoner(cfg), nil
	})
	llm.Transcribers.Register(providerName, func(cfg *config.ProviderConfig) (port.Transcriber, error) {
		return NewTranscriber(cfg), nil
	})
	llm.Describers.Register(providerName, func(cfg *config.ProviderConfig) (port.VisionDescriber, error) {
		return NewDescriber(cfg), nil
	})
}

// newClient builds a go-openai client honoring BaseURL and the provider timeout.
func newClient(cfg *config.ProviderConfig, defaultTimeout time.Duration) *openai.Client {
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	}
	clientCfg.HTTPClient = &http.Client{Timeout: cfg.Timeout(defaultTimeout)}
	return openai.NewClientWithConfig(clientCfg)
}

// usesCompletionTokens reports whether model expects max_completion_tokens
// instead of max_tokens.
func usesCompletionTokens(model string) bool {
	for _, prefix := range []string{"o1", "o3", "o4", "gpt-5"} {
		if strings.HasPrefix(model, prefix) {
			return true
		}
	}
	return false
}

func setTokenLimit(req *openai.ChatCompletionRequest, maxTokens int) {
	if usesCompletionTokens(req.Model) {
		req.MaxCompletionTokens = maxTokens
	} else {
		req.MaxTokens = maxTokens
	}
}
