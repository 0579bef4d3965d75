package perplexity

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"clinsight/internal/config"
	"clinsight/internal/domain"
	"clinsight/internal/llm"
	"clinsight/internal/port"
)

const (
	providerName = "perplexity"
	apiURL       = "https://api.perplexity.ai/chat/completions"
)

func init() {
	llm.Researchers.Register(providerName, func(cfg *config.ProviderConfig) (port.Researcher, error) {
		endpoint := apiURL
		if cfg.BaseURL != "" {
			endpoint = strings.TrimRight(cfg.BaseURL, "/") + "/chat/completions"
		}
		return newResearcher(cfg, endpoint), nil
	})
}

// Researcher implements port.Researcher against the Perplexity chat
// completions API in academic search mode.
type Researcher struct {
	apiKey     string
	model      string
	endpoint   string
	maxRetries int
	backoff    time.Duration
	client     *http.Client
}

// NewResearcher creates a Perplexity-backed researcher from a provider config.
func NewResearcher(cfg *config.ProviderConfig) *Researcher {
	return newResearcher(cfg, apiURL)
}

// NewResearcherWithEndpoint creates a researcher pointing at a custom API endpoint (for testing).
func NewResearcherWithEndpoint(cfg *config.ProviderConfig, endpoint string) *Researcher {
	return newResearcher(cfg, endpoint)
}

func newResearcher(cfg *config.ProviderConfig, endpoint string) *Researcher {
	model := cfg.Model
	if model == "" {
		model = "sonar-pro"
	}
	return &Researcher{
		apiKey:     cfg.APIKey,
		model:      model,
		endpoint:   endpoint,
		maxRetries: cfg.MaxRetries,
		backoff:    time.Second,
		client:     &http.Client{Timeout: cfg.Timeout(90 * time.Second)},
	}
}

func (r *Researcher) Research(ctx context.Context, caseText string) (*domain.ResearchReport, error) {
	reqBody := map[string]interface{}{
		"model": r.model,
		"messages": []map[string]string{
			{"role": "system", "content": llm.ResearchSystemPrompt()},
			{"role": "user", "content": caseText},
		},
		"search_mode": "academic",
	}
	bodyBytes, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("marshaling request: %w", err)
	}

	var report *domain.ResearchReport
	err = llm.Retry(ctx, "perplexity.Research", r.maxRetries, r.backoff, func(ctx context.Context) error {
		respBody, err := r.post(ctx, bodyBytes)
		if err != nil {
			return err
		}
		report, err = parseResponse(respBody)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("perplexity research: %w", err)
	}
	report.Model = providerName + "/" + r.model
	return report, nil
}

func (r *Researcher) post(ctx context.Context, body []byte) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+r.apiKey)

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("calling perplexity API: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		baseErr := fmt.Errorf("perplexity API error (status %d): %s", resp.StatusCode, llm.Truncate(string(respBody), 300))
		if resp.StatusCode == http.StatusTooManyRequests {
			retryAfter := llm.ParseRetryAfterHeader(resp.Header.Get("Retry-After"))
			return nil, llm.NewRateLimitError(providerName, baseErr, retryAfter)
		}
		return nil, baseErr
	}
	return respBody, nil
}

// apiResponse models the subset of the Perplexity response we consume.
type apiResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Citations     []string `json:"citations"`
	SearchResults []struct {
		Title string `json:"title"`
		URL   string `json:"url"`
		Date  string `json:"date"`
	} `json:"search_results"`
}

func parseResponse(body []byte) (*domain.ResearchReport, error) {
	var resp apiResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("unmarshaling response: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("empty response from API: no choices")
	}

	report := &domain.ResearchReport{
		Report:     strings.TrimSpace(resp.Choices[0].Message.Content),
		References: []domain.Reference{},
	}

	// search_results carry titles; bare citations are the fallback.
	seen := map[string]bool{}
	for _, sr := range resp.SearchResults {
		if sr.URL == "" && sr.Title == "" {
			continue
		}
		if sr.URL != "" && seen[sr.URL] {
			continue
		}
		seen[sr.URL] = true
		ref := domain.Reference{
			Title:  strings.TrimSpace(sr.Title),
			URL:    sr.URL,
			Date:   sr.Date,
			Source: hostOf(sr.URL),
		}
		if ref.Title == "" {
			ref.Identifier = sr.URL
		}
		report.References = append(report.References, ref)
	}
	if len(report.References) == 0 {
		for _, c := range resp.Citations {
			c = strings.TrimSpace(c)
			if c == "" || seen[c] {
				continue
			}
			seen[c] = true
			report.References = append(report.References, domain.Reference{
				Title:      c,
				URL:        c,
				Identifier: c,
				Source:     hostOf(c),
			})
		}
	}
	if report.Report == "" && len(report.References) == 0 {
		return nil, fmt.Errorf("research response carried no report and no citations")
	}
	return report, nil
}

func hostOf(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	return strings.TrimPrefix(u.Hostname(), "www.")
}
