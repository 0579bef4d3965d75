package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"clinsight/internal/config"
	"clinsight/internal/domain"
	"clinsight/internal/port"
)

var errShuttingDown = errors.New("analysis service is shutting down")

const maxTitleRunes = 80

// AnalysisService runs submissions through the analysis pipeline.
type AnalysisService interface {
	Analyze(ctx context.Context, req *domain.AnalysisRequest) (*domain.AnalysisResult, error)
	Precheck(ctx context.Context, userID string) error
	Shutdown(ctx context.Context) error
}

// AnalysisDeps are the collaborators of the orchestrator. Storage and
// Admission are optional.
type AnalysisDeps struct {
	Normalizer    *Normalizer
	Ledger        port.CreditLedger
	History       port.AnalysisRepository
	Researcher    port.Researcher
	Reasoner      port.Reasoner
	Storage       port.ObjectStorage
	Admission     port.Admission
	Pipeline      config.PipelineConfig
	StartingGrant int
	Now           func() time.Time
}

type analysisService struct {
	normalizer    *Normalizer
	ledger        port.CreditLedger
	history       port.AnalysisRepository
	researcher    port.Researcher
	reasoner      port.Reasoner
	storage       port.ObjectStorage
	admission     port.Admission
	cfg           config.PipelineConfig
	startingGrant int
	now           func() time.Time

	mu     sync.Mutex
	closed bool
	wg     sync.WaitGroup
}

// NewAnalysisService creates the orchestrator.
func NewAnalysisService(deps AnalysisDeps) AnalysisService {
	cfg := deps.Pipeline
	cfg.RunTimeout = orDefault(cfg.RunTimeout, 5*time.Minute)
	cfg.ResearchTimeout = orDefault(cfg.ResearchTimeout, 90*time.Second)
	cfg.ReasoningTimeout = orDefault(cfg.ReasoningTimeout, 3*time.Minute)
	cfg.StorageTimeout = orDefault(cfg.StorageTimeout, 15*time.Second)
	if cfg.PersistAttempts <= 0 {
		cfg.PersistAttempts = 1
	}
	if cfg.UploadConcurrency <= 0 {
		cfg.UploadConcurrency = 1
	}
	now := deps.Now
	if now == nil {
		now = time.Now
	}
	return &analysisService{
		normalizer:    deps.Normalizer,
		ledger:        deps.Ledger,
		history:       deps.History,
		researcher:    deps.Researcher,
		reasoner:      deps.Reasoner,
		storage:       deps.Storage,
		admission:     deps.Admission,
		cfg:           cfg,
		startingGrant: deps.StartingGrant,
		now:           now,
	}
}

// Analyze runs one submission. A real-pipeline run continues on a detached
// context when the caller goes away, so a reservation is always either
// committed with a record or released.
func (s *analysisService) Analyze(ctx context.Context, req *domain.AnalysisRequest) (*domain.AnalysisResult, error) {
	if req == nil || req.UserID == "" {
		return nil, fmt.Errorf("%w: missing user", domain.ErrInvalidInput)
	}
	if !req.UseRealPipeline {
		return s.runDemo(ctx, req)
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil, errShuttingDown
	}
	s.wg.Add(1)
	s.mu.Unlock()

	r := &run{
		id:    uuid.NewString(),
		state: domain.RunStateIdle,
		req:   req,
	}
	r.logger = log.With().Str("run_id", r.id).Str("user_id", req.UserID).Logger()

	type outcome struct {
		res *domain.AnalysisResult
		err error
	}
	done := make(chan outcome, 1)

	runCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.cfg.RunTimeout)
	go func() {
		defer s.wg.Done()
		defer cancel()
		res, err := s.execute(runCtx, r)
		done <- outcome{res: res, err: err}
	}()

	select {
	case o := <-done:
		return o.res, o.err
	case <-ctx.Done():
		r.logger.Warn().Msg("analysisService.Analyze: caller went away, run continues in background")
		return nil, ctx.Err()
	}
}

// Precheck reports ErrInsufficientCredits when a real-pipeline run for the
// user would be refused at reservation. It reserves nothing, so a run may
// still fail the check it passed here.
func (s *analysisService) Precheck(ctx context.Context, userID string) error {
	if userID == "" {
		return fmt.Errorf("%w: missing user", domain.ErrInvalidInput)
	}
	acct, err := s.ledger.EnsureAccount(ctx, userID, s.startingGrant)
	if err != nil {
		return &domain.StorageError{Op: "ensure account", Err: err}
	}
	if !acct.IsAdmin && acct.Balance < 1 {
		return domain.ErrInsufficientCredits
	}
	return nil
}

// Shutdown refuses new runs and waits for in-flight runs to settle.
func (s *analysisService) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()

	waited := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(waited)
	}()
	select {
	case <-waited:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("analysisService.Shutdown: %w", ctx.Err())
	}
}

type run struct {
	id          string
	state       domain.RunState
	req         *domain.AnalysisRequest
	reservation *domain.Reservation
	warnings    []string
	logger      zerolog.Logger
}

func (r *run) to(next domain.RunState) {
	if !r.state.CanTransition(next) {
		// Reaching here is a programming error in execute.
		r.logger.Error().Str("from", string(r.state)).Str("to", string(next)).Msg("analysisService: illegal state transition")
	}
	r.logger.Debug().Str("from", string(r.state)).Str("to", string(next)).Msg("analysisService: transition")
	r.state = next
}

func (s *analysisService) execute(ctx context.Context, r *run) (*domain.AnalysisResult, error) {
	started := s.now()
	r.to(domain.RunStateNormalizing)

	if s.admission != nil {
		release, err := s.admission.Acquire(ctx, r.req.UserID)
		if err != nil {
			return nil, s.fail(ctx, r, err)
		}
		defer release()
	}

	nc, err := s.normalizer.Normalize(ctx, r.req)
	if err != nil {
		return nil, s.fail(ctx, r, err)
	}
	r.warnings = append(r.warnings, nc.Warnings...)

	r.to(domain.RunStateReserving)
	if _, err := s.ledger.EnsureAccount(ctx, r.req.UserID, s.startingGrant); err != nil {
		return nil, s.fail(ctx, r, &domain.StorageError{Op: "ensure account", Err: err})
	}
	reservation, err := s.ledger.Reserve(ctx, r.req.UserID)
	if err != nil {
		if !errors.Is(err, domain.ErrInsufficientCredits) {
			err = &domain.StorageError{Op: "reserve", Err: err}
		}
		return nil, s.fail(ctx, r, err)
	}
	r.reservation = reservation
	r.logger.Info().Str("reservation_id", reservation.ID.String()).Bool("debited", reservation.Debited).
		Msg("analysisService.Analyze: credit reserved")

	r.to(domain.RunStateResearching)
	report := s.research(ctx, r, nc.Text)

	r.to(domain.RunStateReasoning)
	analysis, err := s.reason(ctx, nc.Text, report)
	if err != nil {
		return nil, s.fail(ctx, r, err)
	}

	r.to(domain.RunStatePersisting)
	record := s.buildRecord(r, nc, report, analysis)
	record.Images = s.uploadImages(ctx, r, record)
	record.Warnings = r.warnings

	storeCtx, cancel := s.storageContext(ctx)
	err = s.ledger.Commit(storeCtx, reservation.ID, record)
	cancel()
	if err != nil {
		return nil, s.fail(ctx, r, &domain.StorageError{Op: "commit", Err: err})
	}

	if err := s.persist(ctx, r, record); err != nil {
		// The credit stays committed with the record attached; reconciliation
		// finishes the write under the same id.
		r.to(domain.RunStateFailed)
		r.logger.Error().Err(err).Str("analysis_id", record.ID.String()).
			Msg("analysisService.Analyze: persist failed after commit, left for reconciliation")
		return nil, &domain.RunError{RunID: r.id, State: domain.RunStatePersisting, Err: err}
	}

	markCtx, cancel := s.storageContext(ctx)
	if err := s.ledger.MarkPersisted(markCtx, reservation.ID); err != nil {
		r.logger.Warn().Err(err).Str("reservation_id", reservation.ID.String()).
			Msg("analysisService.Analyze: mark persisted failed, reconciliation will retry")
	}
	cancel()

	r.to(domain.RunStateCompleted)
	r.logger.Info().
		Str("analysis_id", record.ID.String()).
		Int("references", len(record.References)).
		Int("warnings", len(record.Warnings)).
		Dur("elapsed", s.now().Sub(started)).
		Msg("analysisService.Analyze: completed")
	return &domain.AnalysisResult{RunID: r.id, Record: record}, nil
}

// research is soft-fail: any error or empty report leaves a warning.
func (s *analysisService) research(ctx context.Context, r *run, caseText string) *domain.ResearchReport {
	if s.researcher == nil {
		r.warnings = append(r.warnings, WarningResearchUnavailable)
		return nil
	}
	rctx, cancel := context.WithTimeout(ctx, s.cfg.ResearchTimeout)
	defer cancel()

	report, err := s.researcher.Research(rctx, caseText)
	if err == nil && report.IsEmpty() {
		err = errors.New("empty research report")
	}
	if err != nil {
		r.logger.Warn().Err(domain.NewAdapterError(domain.StageResearch, err)).
			Msg("analysisService.Analyze: research failed, continuing without references")
		r.warnings = append(r.warnings, WarningResearchUnavailable)
		return nil
	}
	return report
}

// reason is hard-fail. Contract violations keep their type; everything else
// becomes an AdapterError.
func (s *analysisService) reason(ctx context.Context, caseText string, report *domain.ResearchReport) (*domain.StructuredAnalysis, error) {
	rctx, cancel := context.WithTimeout(ctx, s.cfg.ReasoningTimeout)
	defer cancel()

	analysis, err := s.reasoner.Reason(rctx, port.ReasoningInput{CaseText: caseText, Research: report})
	if err != nil {
		if errors.Is(err, domain.ErrContractViolation) {
			return nil, err
		}
		return nil, domain.NewAdapterError(domain.StageReasoning, err)
	}
	if analysis == nil {
		return nil, &domain.ContractError{Detail: "empty reasoning result"}
	}
	if err := domain.ValidateSections(analysis.Sections); err != nil {
		return nil, err
	}
	return analysis, nil
}

func (s *analysisService) buildRecord(r *run, nc *domain.NormalizedCase, report *domain.ResearchReport, analysis *domain.StructuredAnalysis) *domain.AnalysisRecord {
	caseText := nc.UserText
	if caseText == "" {
		caseText = nc.Transcript
	}
	title := strings.TrimSpace(analysis.Title)
	if title == "" {
		title = titleFromCase(caseText)
	}

	record := &domain.AnalysisRecord{
		ID:          uuid.New(),
		UserID:      r.req.UserID,
		Title:       title,
		CaseText:    caseText,
		Transcript:  nc.Transcript,
		Sections:    analysis.Sections,
		References:  []domain.Reference{},
		RareDisease: analysis.RareDisease,
		Models:      domain.ModelInfo{Reasoning: analysis.Model},
		HadAudio:    nc.HadAudio,
		HadImages:   nc.HadImages,
		CreatedAt:   s.now().UTC(),
	}
	if report != nil {
		record.References = append(record.References, report.References...)
		record.Models.Research = report.Model
	}
	for i, img := range r.req.Images {
		record.Images = append(record.Images, domain.ImageDescriptor{
			Index:       i,
			FileName:    img.FileName,
			ContentType: baseMediaType(img.ContentType),
			SizeBytes:   int64(len(img.Data)),
			Described:   nc.Findings != "",
		})
	}
	return record
}

// uploadImages stores attachments in parallel. A failed upload only leaves
// the descriptor unstored with a warning.
func (s *analysisService) uploadImages(ctx context.Context, r *run, record *domain.AnalysisRecord) []domain.ImageDescriptor {
	images := record.Images
	if s.storage == nil || len(images) == 0 {
		return images
	}

	var g errgroup.Group
	g.SetLimit(s.cfg.UploadConcurrency)
	for i := range images {
		desc := &images[i]
		payload := r.req.Images[i]
		key := fmt.Sprintf("analyses/%s/%s/%d.%s", record.UserID, record.ID, desc.Index, domain.AllowedImageTypes[desc.ContentType])
		g.Go(func() error {
			uctx, cancel := s.storageContext(ctx)
			defer cancel()
			_, err := s.storage.Put(uctx, ImageObject(key, desc.ContentType, record.ID, payload.Data))
			if err != nil {
				r.logger.Warn().Err(domain.NewAdapterError(domain.StageImageUpload, err)).
					Int("index", desc.Index).Msg("analysisService.Analyze: image upload failed")
				return nil
			}
			desc.StorageKey = key
			desc.Stored = true
			return nil
		})
	}
	_ = g.Wait()

	for _, desc := range images {
		if !desc.Stored {
			r.warnings = append(r.warnings, fmt.Sprintf("Image %d could not be stored and will not be available later.", desc.Index+1))
		}
	}
	return images
}

// ImageObject builds the storage input for one case image.
func ImageObject(key, contentType string, analysisID uuid.UUID, data []byte) port.PutObjectInput {
	return port.PutObjectInput{
		Key:         key,
		Body:        bytes.NewReader(data),
		ContentType: contentType,
		Size:        int64(len(data)),
		Metadata:    map[string]string{"analysis-id": analysisID.String()},
	}
}

// persist writes the record, retrying with the same id and linear backoff.
func (s *analysisService) persist(ctx context.Context, r *run, record *domain.AnalysisRecord) error {
	var lastErr error
	for attempt := 1; attempt <= s.cfg.PersistAttempts; attempt++ {
		pctx, cancel := s.storageContext(ctx)
		lastErr = s.history.Create(pctx, record)
		cancel()
		if lastErr == nil {
			return nil
		}
		r.logger.Warn().Err(lastErr).Int("attempt", attempt).Str("analysis_id", record.ID.String()).
			Msg("analysisService.Analyze: persist attempt failed")
		if attempt == s.cfg.PersistAttempts {
			break
		}
		wait := s.cfg.PersistBackoff * time.Duration(attempt)
		if wait <= 0 {
			continue
		}
		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return &domain.StorageError{Op: "persist", Err: ctx.Err()}
		case <-timer.C:
		}
	}
	return &domain.StorageError{Op: "persist", Err: lastErr}
}

// fail moves the run to Failed, releasing the reservation first when one
// is held.
func (s *analysisService) fail(ctx context.Context, r *run, cause error) error {
	failedIn := r.state
	refunded := false
	if r.reservation != nil {
		r.to(domain.RunStateRefunding)
		rctx, cancel := s.storageContext(ctx)
		if err := s.ledger.Release(rctx, r.reservation.ID); err != nil {
			r.logger.Error().Err(err).Str("reservation_id", r.reservation.ID.String()).
				Msg("analysisService.Analyze: release failed, reconciliation will refund")
		} else {
			refunded = true
		}
		cancel()
	}
	r.to(domain.RunStateFailed)

	event := r.logger.Warn()
	if !errors.Is(cause, domain.ErrInvalidInput) && !errors.Is(cause, domain.ErrInsufficientCredits) &&
		!errors.Is(cause, domain.ErrTooManyInFlight) {
		event = r.logger.Error()
	}
	event.Err(cause).Str("state", string(failedIn)).Bool("refunded", refunded).Msg("analysisService.Analyze: run failed")

	return &domain.RunError{RunID: r.id, State: failedIn, Refunded: refunded, Err: cause}
}

// storageContext bounds a store call. It survives run-deadline expiry so a
// refund or commit is never cut off by the stage that just timed out.
func (s *analysisService) storageContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(ctx), s.cfg.StorageTimeout)
}

func titleFromCase(caseText string) string {
	line := strings.TrimSpace(caseText)
	if i := strings.IndexByte(line, '\n'); i >= 0 {
		line = strings.TrimSpace(line[:i])
	}
	if utf8.RuneCountInString(line) <= maxTitleRunes {
		return line
	}
	runes := []rune(line)
	return strings.TrimSpace(string(runes[:maxTitleRunes])) + "…"
}
