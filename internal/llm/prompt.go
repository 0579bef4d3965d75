package llm

import (
	"fmt"
	"strings"

	"clinsight/internal/domain"
)

// ReasoningSystemPrompt instructs the reasoning model to return the fixed
// seven-section JSON object and nothing else.
func ReasoningSystemPrompt() string {
	var ids strings.Builder
	for i, id := range domain.SectionOrder {
		fmt.Fprintf(&ids, "%d. %q (%s)\n", i+1, id, domain.SectionTitles[id])
	}
	return `You are a senior clinical reasoning assistant supporting a licensed clinician.
Analyze the clinical case and return ONLY a JSON object, with no markdown, no code fences and no commentary.

The object must have exactly these top-level keys:
- "title": a short descriptive title for the case (max 80 characters)
- "sections": an object with EXACTLY these seven keys, each mapped to a non-empty string:
` + ids.String() + `- "rare_disease": an object {"considered": bool, "summary": string, "candidates": [{"name": string, "rationale": string, "orpha_code": string}]}

Do not add, rename, merge or omit section keys. Write the patient explanation in plain language.
Ground claims in the research context when it is provided and say so when evidence is limited.`
}

// ReasoningUserPrompt renders the case text plus whatever research is available.
func ReasoningUserPrompt(caseText string, research *domain.ResearchReport) string {
	var b strings.Builder
	b.WriteString("CLINICAL CASE:\n")
	b.WriteString(strings.TrimSpace(caseText))
	b.WriteString("\n\n")
	if research.IsEmpty() {
		b.WriteString("RESEARCH CONTEXT: none available for this case.\n")
		return b.String()
	}
	b.WriteString("RESEARCH CONTEXT:\n")
	b.WriteString(strings.TrimSpace(research.Report))
	b.WriteString("\n")
	if len(research.References) > 0 {
		b.WriteString("\nREFERENCES:\n")
		for i, ref := range research.References {
			fmt.Fprintf(&b, "[%d] %s", i+1, ref.Label())
			if ref.URL != "" && ref.URL != ref.Label() {
				fmt.Fprintf(&b, " (%s)", ref.URL)
			}
			b.WriteString("\n")
		}
	}
	return b.String()
}

// ResearchSystemPrompt instructs the research model to survey literature.
func ResearchSystemPrompt() string {
	return `You are a medical literature research assistant. For the clinical case provided,
summarize the most relevant peer-reviewed evidence: current guidelines, differential diagnosis
literature, diagnostic accuracy of key investigations and treatment evidence.
Prefer systematic reviews, guidelines and recent high-quality studies. Cite every claim.`
}

// VisionPrompt asks for objective findings from case images.
func VisionPrompt(caseText string) string {
	prompt := `Describe the clinically relevant findings visible in the attached image(s).
Be objective and specific (location, size, morphology, color, laterality). Number findings per image.
Do not give a final diagnosis.`
	if strings.TrimSpace(caseText) != "" {
		prompt += "\n\nClinical context:\n" + strings.TrimSpace(caseText)
	}
	return prompt
}
