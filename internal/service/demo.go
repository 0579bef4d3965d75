package service

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	"clinsight/internal/domain"
)

const demoTitle = "Demo analysis: acute chest pain in a middle-aged adult"

var demoContent = map[domain.SectionID]string{
	domain.SectionClinicalContext: "Sample case used to preview the report layout. A 55-year-old presents with " +
		"retrosternal chest pain radiating to the left arm, onset 40 minutes before arrival, with diaphoresis.",
	domain.SectionKeyFindings: "- Typical anginal character of the pain\n- Cardiovascular risk factors: " +
		"hypertension, smoking\n- Haemodynamically stable on arrival",
	domain.SectionDiagnosticHypotheses: "1. Acute coronary syndrome\n2. Aortic dissection\n3. Pulmonary embolism\n" +
		"4. Gastro-oesophageal reflux",
	domain.SectionRecommendedInvestigations: "- 12-lead ECG within 10 minutes\n- Serial high-sensitivity troponin\n" +
		"- Chest radiograph\n- Bedside echocardiography if available",
	domain.SectionTherapeuticDecisions: "Antiplatelet loading unless contraindicated, analgesia, and urgent " +
		"cardiology referral if ECG or troponin confirm ischaemia.",
	domain.SectionPrognosis: "Depends on the final diagnosis and time to reperfusion; early treatment of an " +
		"acute coronary syndrome substantially improves outcome.",
	domain.SectionPatientExplanation: "Your chest pain may come from your heart. We are running quick tests to " +
		"check, and we will explain each result and the next steps as soon as we have them.",
}

// DemoRecord builds the fixed record returned when the real pipeline is not
// requested. It always carries the seven sections in contract order.
func DemoRecord(userID, caseText string, now time.Time) *domain.AnalysisRecord {
	sections := make([]domain.Section, 0, domain.SectionCount)
	for _, id := range domain.SectionOrder {
		sections = append(sections, domain.Section{ID: id, Title: domain.SectionTitles[id], Content: demoContent[id]})
	}
	caseText = strings.TrimSpace(caseText)
	if caseText == "" {
		caseText = "55-year-old with chest pain"
	}
	return &domain.AnalysisRecord{
		ID:       uuid.New(),
		UserID:   userID,
		Title:    demoTitle,
		CaseText: caseText,
		Sections: sections,
		References: []domain.Reference{
			{Title: "2023 ESC Guidelines for the management of acute coronary syndromes", Source: "European Heart Journal", Date: "2023"},
			{Title: "Fourth Universal Definition of Myocardial Infarction", Source: "Circulation", Date: "2018"},
		},
		Models:    domain.ModelInfo{Reasoning: "demo", Research: "demo"},
		IsDemo:    true,
		CreatedAt: now.UTC(),
	}
}

// runDemo waits out the simulated latency and returns the demo record.
// It never touches the ledger, an adapter or the history store.
func (s *analysisService) runDemo(ctx context.Context, req *domain.AnalysisRequest) (*domain.AnalysisResult, error) {
	if strings.TrimSpace(req.CaseText) == "" && (req.Audio == nil || len(req.Audio.Data) == 0) && len(req.Images) == 0 {
		return nil, &domain.NormalizationError{Reason: domain.ReasonEmptyCase}
	}

	if s.cfg.DemoDelay > 0 {
		timer := time.NewTimer(s.cfg.DemoDelay)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-timer.C:
		}
	}

	return &domain.AnalysisResult{
		RunID:  uuid.NewString(),
		Record: DemoRecord(req.UserID, req.CaseText, s.now()),
	}, nil
}
