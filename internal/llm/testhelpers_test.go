package llm_test

import (
	"encoding/json"

	"clinsight/internal/domain"
)

// validPayload returns a reasoning response that satisfies the section contract.
func validPayload() string {
	sections := map[string]string{}
	for _, id := range domain.SectionOrder {
		sections[string(id)] = "content for " + string(id)
	}
	b, _ := json.Marshal(map[string]interface{}{
		"title":    "Fever of unknown origin",
		"sections": sections,
		"rare_disease": map[string]interface{}{
			"considered": true,
			"summary":    "consider periodic fever syndromes",
			"candidates": []map[string]string{{"name": "Familial Mediterranean fever", "orpha_code": "ORPHA:342"}},
		},
	})
	return string(b)
}
