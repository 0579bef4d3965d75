package openai_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"clinsight/internal/config"
	"clinsight/internal/domain"
	"clinsight/internal/llm"
	openaiadapter "clinsight/internal/llm/openai"
	"clinsight/internal/port"
)

func validPayload() string {
	sections := map[string]string{}
	for _, id := range domain.SectionOrder {
		sections[string(id)] = "content for " + string(id)
	}
	b, _ := json.Marshal(map[string]interface{}{"title": "Syncope", "sections": sections})
	return string(b)
}

func chatResponse(content, finishReason string) string {
	b, _ := json.Marshal(map[string]interface{}{
		"id":     "chatcmpl-1",
		"object": "chat.completion",
		"model":  "gpt-4o",
		"choices": []map[string]interface{}{{
			"index":         0,
			"message":       map[string]string{"role": "assistant", "content": content},
			"finish_reason": finishReason,
		}},
	})
	return string(b)
}

func providerConfig(srv *httptest.Server) *config.ProviderConfig {
	return &config.ProviderConfig{Provider: "openai", APIKey: "sk-test", Model: "gpt-4o", BaseURL: srv.URL + "/v1"}
}

func TestReasoner_Success(t *testing.T) {
	var gotBody map[string]interface{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, chatResponse(validPayload(), "stop"))
	}))
	defer srv.Close()

	r := openaiadapter.NewReasoner(providerConfig(srv))
	out, err := r.Reason(context.Background(), port.ReasoningInput{
		CaseText: "62yo with syncope",
		Research: &domain.ResearchReport{Report: "ESC syncope guideline"},
	})
	require.NoError(t, err)
	assert.Equal(t, "Syncope", out.Title)
	assert.Len(t, out.Sections, domain.SectionCount)
	assert.Equal(t, "openai/gpt-4o", out.Model)

	msgs := gotBody["messages"].([]interface{})
	require.Len(t, msgs, 2)
	assert.Contains(t, msgs[1].(map[string]interface{})["content"], "ESC syncope guideline")
	assert.Equal(t, "json_object", gotBody["response_format"].(map[string]interface{})["type"])
}

func TestReasoner_TruncatedOutputIsContractViolation(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, chatResponse(`{"title":"x","sections":{`, "length"))
	}))
	defer srv.Close()

	_, err := openaiadapter.NewReasoner(providerConfig(srv)).Reason(context.Background(), port.ReasoningInput{CaseText: "x"})
	assert.ErrorIs(t, err, domain.ErrContractViolation)
}

func TestReasoner_InvalidSectionsAreContractViolation(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, chatResponse(`{"title":"x","sections":{"clinical_context":"only one"}}`, "stop"))
	}))
	defer srv.Close()

	_, err := openaiadapter.NewReasoner(providerConfig(srv)).Reason(context.Background(), port.ReasoningInput{CaseText: "x"})
	assert.ErrorIs(t, err, domain.ErrContractViolation)
}

func TestReasoner_RateLimited(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = io.WriteString(w, `{"error":{"message":"slow down","type":"rate_limit_error"}}`)
	}))
	defer srv.Close()

	cfg := providerConfig(srv)
	cfg.MaxRetries = 3
	_, err := openaiadapter.NewReasoner(cfg).Reason(context.Background(), port.ReasoningInput{CaseText: "x"})
	var rl *llm.RateLimitError
	require.True(t, errors.As(err, &rl))
	assert.Equal(t, 1, calls)
}

func TestTranscriber_Success(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/audio/transcriptions", r.URL.Path)
		assert.True(t, strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data"))
		assert.NoError(t, r.ParseMultipartForm(1<<20))
		assert.Equal(t, "whisper-1", r.FormValue("model"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"text":"  patient reports chest pain  "}`)
	}))
	defer srv.Close()

	cfg := providerConfig(srv)
	cfg.Model = "whisper-1"
	text, err := openaiadapter.NewTranscriber(cfg).Transcribe(context.Background(), port.TranscriptionInput{
		Audio:    []byte("fake-webm"),
		FileName: "case.webm",
	})
	require.NoError(t, err)
	assert.Equal(t, "patient reports chest pain", text)
}

func TestTranscriber_EmptyAudio(t *testing.T) {
	tr := openaiadapter.NewTranscriber(&config.ProviderConfig{APIKey: "k"})
	_, err := tr.Transcribe(context.Background(), port.TranscriptionInput{})
	assert.Error(t, err)
}

func TestDescriber_SendsImagesAsDataURIs(t *testing.T) {
	var gotBody map[string]interface{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, chatResponse("  1. Annular plaque on forearm  ", "stop"))
	}))
	defer srv.Close()

	out, err := openaiadapter.NewDescriber(providerConfig(srv)).Describe(context.Background(), port.VisionInput{
		CaseText: "itchy rash",
		Images:   []domain.ImagePayload{{Data: []byte{0x89, 0x50}, ContentType: "image/png"}},
	})
	require.NoError(t, err)
	assert.Equal(t, "1. Annular plaque on forearm", out)

	raw, _ := json.Marshal(gotBody)
	assert.Contains(t, string(raw), "data:image/png;base64,")
}

func TestDescriber_NoImages(t *testing.T) {
	_, err := openaiadapter.NewDescriber(&config.ProviderConfig{APIKey: "k"}).Describe(context.Background(), port.VisionInput{})
	assert.Error(t, err)
}
