package llm_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"clinsight/internal/domain"
	"clinsight/internal/llm"
)

func TestReasoningSystemPrompt_NamesEverySection(t *testing.T) {
	prompt := llm.ReasoningSystemPrompt()
	for _, id := range domain.SectionOrder {
		assert.Contains(t, prompt, `"`+string(id)+`"`)
	}
}

func TestReasoningUserPrompt(t *testing.T) {
	without := llm.ReasoningUserPrompt("  chest pain  ", nil)
	assert.Contains(t, without, "CLINICAL CASE:\nchest pain")
	assert.Contains(t, without, "none available")

	with := llm.ReasoningUserPrompt("chest pain", &domain.ResearchReport{
		Report:     "ACS guidelines",
		References: []domain.Reference{{Title: "ESC 2023", URL: "https://esc.example"}},
	})
	assert.Contains(t, with, "ACS guidelines")
	assert.Contains(t, with, "[1] ESC 2023 (https://esc.example)")
}

func TestVisionPrompt(t *testing.T) {
	assert.NotContains(t, llm.VisionPrompt(""), "Clinical context")
	assert.Contains(t, llm.VisionPrompt("rash on forearm"), "Clinical context:\nrash on forearm")
}
