package llm

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"clinsight/internal/domain"
)

type reasoningPayload struct {
	Title       string                      `json:"title"`
	Sections    map[domain.SectionID]string `json:"sections"`
	RareDisease json.RawMessage             `json:"rare_disease"`
}

// DecodeStructuredAnalysis validates a raw reasoning response against the
// section contract. Any deviation is a *domain.ContractError and no section
// is ever patched or defaulted.
func DecodeStructuredAnalysis(raw string) (*domain.StructuredAnalysis, error) {
	text := stripCodeFence(strings.TrimSpace(raw))
	if text == "" {
		return nil, &domain.ContractError{Detail: "empty reasoning payload"}
	}

	dec := json.NewDecoder(strings.NewReader(text))
	var payload reasoningPayload
	if err := dec.Decode(&payload); err != nil {
		return nil, &domain.ContractError{Detail: fmt.Sprintf("malformed JSON: %v (raw: %s)", err, Truncate(text, 200))}
	}
	if payload.Sections == nil {
		return nil, &domain.ContractError{Detail: "missing \"sections\" object"}
	}

	sections, err := domain.BuildSections(payload.Sections)
	if err != nil {
		return nil, err
	}

	out := &domain.StructuredAnalysis{
		Title:    strings.TrimSpace(payload.Title),
		Sections: sections,
	}

	rd := bytes.TrimSpace(payload.RareDisease)
	if len(rd) > 0 && !bytes.Equal(rd, []byte("null")) {
		var data domain.RareDiseaseData
		if err := json.Unmarshal(rd, &data); err != nil {
			return nil, &domain.ContractError{Detail: fmt.Sprintf("malformed rare_disease: %v", err)}
		}
		for i, c := range data.Candidates {
			if strings.TrimSpace(c.Name) == "" {
				return nil, &domain.ContractError{Detail: fmt.Sprintf("rare_disease candidate %d has no name", i)}
			}
		}
		out.RareDisease = &data
	}
	return out, nil
}

// stripCodeFence removes a single surrounding ```json fence, which some
// models emit even when asked for raw JSON.
func stripCodeFence(s string) string {
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if nl := strings.IndexByte(s, '\n'); nl >= 0 {
		s = s[nl+1:]
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}
