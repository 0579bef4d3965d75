package perplexity_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"clinsight/internal/config"
	"clinsight/internal/llm"
	"clinsight/internal/llm/perplexity"
)

func TestResearcher_SearchResults(t *testing.T) {
	var gotBody map[string]interface{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer pplx-key", r.Header.Get("Authorization"))
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
		_, _ = io.WriteString(w, `{
			"choices":[{"message":{"content":"  Still disease evidence summary  "}}],
			"search_results":[
				{"title":"AOSD review","url":"https://www.ncbi.nlm.nih.gov/pmc/1","date":"2024-01-01"},
				{"title":"dup","url":"https://www.ncbi.nlm.nih.gov/pmc/1"},
				{"title":"Yamaguchi criteria","url":"https://rheum.example.org/crit"}
			],
			"citations":["https://ignored.example"]
		}`)
	}))
	defer srv.Close()

	r := perplexity.NewResearcherWithEndpoint(&config.ProviderConfig{APIKey: "pplx-key", Model: "sonar-pro"}, srv.URL)
	report, err := r.Research(context.Background(), "fever rash arthralgia")
	require.NoError(t, err)

	assert.Equal(t, "Still disease evidence summary", report.Report)
	require.Len(t, report.References, 2)
	assert.Equal(t, "AOSD review", report.References[0].Title)
	assert.Equal(t, "ncbi.nlm.nih.gov", report.References[0].Source)
	assert.Equal(t, "rheum.example.org", report.References[1].Source)
	assert.Equal(t, "perplexity/sonar-pro", report.Model)
	assert.Equal(t, "academic", gotBody["search_mode"])
}

func TestResearcher_CitationsFallback(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"choices":[{"message":{"content":"report"}}],"citations":["https://a.example/x","https://a.example/x","https://b.example/y"]}`)
	}))
	defer srv.Close()

	report, err := perplexity.NewResearcherWithEndpoint(&config.ProviderConfig{}, srv.URL).Research(context.Background(), "case")
	require.NoError(t, err)
	require.Len(t, report.References, 2)
	assert.Equal(t, "https://a.example/x", report.References[0].URL)
	assert.Equal(t, "a.example", report.References[0].Source)
}

func TestResearcher_UntitledSearchResultKeepsIdentifier(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"choices":[{"message":{"content":"report"}}],
			"search_results":[{"url":"https://www.ahajournals.org/doi/10.1161/x"},{"title":"Titled","url":"https://b.example/y"}]}`)
	}))
	defer srv.Close()

	report, err := perplexity.NewResearcherWithEndpoint(&config.ProviderConfig{}, srv.URL).Research(context.Background(), "case")
	require.NoError(t, err)
	require.Len(t, report.References, 2)
	assert.Empty(t, report.References[0].Title)
	assert.Equal(t, "https://www.ahajournals.org/doi/10.1161/x", report.References[0].Identifier)
	assert.Equal(t, "ahajournals.org", report.References[0].Source)
	assert.Empty(t, report.References[1].Identifier)
}

func TestResearcher_EmptyResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"choices":[{"message":{"content":"  "}}]}`)
	}))
	defer srv.Close()

	_, err := perplexity.NewResearcherWithEndpoint(&config.ProviderConfig{}, srv.URL).Research(context.Background(), "case")
	assert.Error(t, err)
}

func TestResearcher_RateLimit(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.Header().Set("Retry-After", "7")
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	_, err := perplexity.NewResearcherWithEndpoint(&config.ProviderConfig{MaxRetries: 2}, srv.URL).Research(context.Background(), "case")
	var rl *llm.RateLimitError
	require.True(t, errors.As(err, &rl))
	assert.Equal(t, "7s", rl.RetryAfter.String())
	assert.Equal(t, 1, calls)
}

func TestResearcher_ServerErrorIsRetried(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_, _ = io.WriteString(w, `{"choices":[{"message":{"content":"ok"}}]}`)
	}))
	defer srv.Close()

	report, err := perplexity.NewResearcherWithEndpoint(&config.ProviderConfig{MaxRetries: 1}, srv.URL).Research(context.Background(), "case")
	require.NoError(t, err)
	assert.Equal(t, "ok", report.Report)
	assert.Equal(t, 2, calls)
}
