package domain

import (
	"fmt"
	"strings"
)

// SectionID identifies one of the fixed analysis sections.
type SectionID string

const (
	SectionClinicalContext           SectionID = "clinical_context"
	SectionKeyFindings               SectionID = "key_findings"
	SectionDiagnosticHypotheses      SectionID = "diagnostic_hypotheses"
	SectionRecommendedInvestigations SectionID = "recommended_investigations"
	SectionTherapeuticDecisions      SectionID = "therapeutic_decisions"
	SectionPrognosis                 SectionID = "prognosis"
	SectionPatientExplanation        SectionID = "patient_explanation"
)

// SectionOrder is the only valid sequence of sections in a structured analysis.
var SectionOrder = []SectionID{
	SectionClinicalContext,
	SectionKeyFindings,
	SectionDiagnosticHypotheses,
	SectionRecommendedInvestigations,
	SectionTherapeuticDecisions,
	SectionPrognosis,
	SectionPatientExplanation,
}

// SectionTitles holds the display title of each section.
var SectionTitles = map[SectionID]string{
	SectionClinicalContext:           "Clinical Context",
	SectionKeyFindings:               "Key Findings",
	SectionDiagnosticHypotheses:      "Diagnostic Hypotheses",
	SectionRecommendedInvestigations: "Recommended Investigations",
	SectionTherapeuticDecisions:      "Therapeutic Decisions",
	SectionPrognosis:                 "Prognosis",
	SectionPatientExplanation:        "Patient Explanation",
}

// SectionCount is the number of sections every analysis carries.
const SectionCount = 7

// IsValid reports whether id is one of the fixed section identifiers.
func (id SectionID) IsValid() bool {
	_, ok := SectionTitles[id]
	return ok
}

// Section is one named block of a structured analysis.
type Section struct {
	ID      SectionID `json:"id"`
	Title   string    `json:"title"`
	Content string    `json:"content"`
}

// BuildSections orders contents by SectionOrder. It fails if any section is
// missing, empty, or unknown.
func BuildSections(contents map[SectionID]string) ([]Section, error) {
	for id := range contents {
		if !id.IsValid() {
			return nil, &ContractError{Detail: fmt.Sprintf("unknown section %q", id)}
		}
	}
	sections := make([]Section, 0, SectionCount)
	for _, id := range SectionOrder {
		content, ok := contents[id]
		if !ok {
			return nil, &ContractError{Detail: fmt.Sprintf("missing section %q", id)}
		}
		content = strings.TrimSpace(content)
		if content == "" {
			return nil, &ContractError{Detail: fmt.Sprintf("section %q is empty", id)}
		}
		sections = append(sections, Section{ID: id, Title: SectionTitles[id], Content: content})
	}
	return sections, nil
}

// ValidateSections checks that sections match the fixed contract exactly,
// including order.
func ValidateSections(sections []Section) error {
	if len(sections) != SectionCount {
		return &ContractError{Detail: fmt.Sprintf("expected %d sections, got %d", SectionCount, len(sections))}
	}
	for i, s := range sections {
		if s.ID != SectionOrder[i] {
			return &ContractError{Detail: fmt.Sprintf("section %d is %q, expected %q", i, s.ID, SectionOrder[i])}
		}
		if strings.TrimSpace(s.Content) == "" {
			return &ContractError{Detail: fmt.Sprintf("section %q is empty", s.ID)}
		}
	}
	return nil
}
